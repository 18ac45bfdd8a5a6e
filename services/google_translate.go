package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"language-toolkit/internal/config"
	"language-toolkit/internal/errs"
	"language-toolkit/internal/translation"
)

// GoogleTranslator calls the Cloud Translation v2 REST API with an API key.
type GoogleTranslator struct {
	apiKey   string
	endpoint string
	call     upstreamCall
}

// NewGoogleTranslator creates a Google adapter.
func NewGoogleTranslator(apiKey string, opts Options) *GoogleTranslator {
	return &GoogleTranslator{
		apiKey:   apiKey,
		endpoint: opts.baseURL(config.GoogleTranslateEndpoint),
		call: upstreamCall{
			provider: string(translation.ProviderGoogle),
			op:       "google.translate",
			client:   opts.client(sharedTranslationClient),
			observer: opts.Observer,
		},
	}
}

func (g *GoogleTranslator) Provider() translation.Provider {
	return translation.ProviderGoogle
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

func (g *GoogleTranslator) Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if g.apiKey == "" {
		return "", errs.Upstream(errs.KindAuthFailed, g.call.provider, g.call.op, "Google API key is required")
	}

	form := url.Values{}
	form.Set("key", g.apiKey)
	form.Set("q", text)
	form.Set("target", targetCode)
	form.Set("format", "text")
	if sourceCode != "" {
		form.Set("source", sourceCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, g.call.op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out googleResponse
	if err := g.call.doJSON(ctx, req, &out); err != nil {
		return "", err
	}
	if len(out.Data.Translations) == 0 {
		return "", errs.Upstream(errs.KindUpstreamFailed, g.call.provider, g.call.op, "no translations in response")
	}
	return out.Data.Translations[0].TranslatedText, nil
}
