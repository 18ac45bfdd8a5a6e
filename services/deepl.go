package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"language-toolkit/internal/config"
	"language-toolkit/internal/errs"
	"language-toolkit/internal/logger"
	"language-toolkit/internal/translation"
)

// DeepLTranslator calls the DeepL v2 translate endpoint.
type DeepLTranslator struct {
	apiKey string
	base   string
	call   upstreamCall
}

// NewDeepLTranslator creates a DeepL adapter. Free-tier keys (suffix ":fx")
// are routed to the free endpoint unless opts.BaseURL overrides it.
func NewDeepLTranslator(apiKey string, opts Options) *DeepLTranslator {
	fallback := config.DeepLAPIEndpoint
	if strings.HasSuffix(apiKey, ":fx") {
		fallback = config.DeepLFreeAPIEndpoint
	}
	return &DeepLTranslator{
		apiKey: apiKey,
		base:   opts.baseURL(fallback),
		call: upstreamCall{
			provider: string(translation.ProviderDeepL),
			op:       "deepl.translate",
			client:   opts.client(sharedTranslationClient),
			observer: opts.Observer,
		},
	}
}

func (d *DeepLTranslator) Provider() translation.Provider {
	return translation.ProviderDeepL
}

type deepLResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate sends one text to DeepL. Empty input is returned unchanged
// without a request.
func (d *DeepLTranslator) Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if d.apiKey == "" {
		return "", errs.Upstream(errs.KindAuthFailed, d.call.provider, d.call.op, "DeepL API key is required")
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", targetCode)
	if sourceCode != "" {
		form.Set("source_lang", sourceCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base+"/v2/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, d.call.op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)

	var out deepLResponse
	if err := d.call.doJSON(ctx, req, &out); err != nil {
		return "", err
	}
	if len(out.Translations) == 0 {
		return "", errs.Upstream(errs.KindUpstreamFailed, d.call.provider, d.call.op, "no translations in response")
	}

	logger.Debug("DeepL: %d chars %s->%s (detected %s)", len(text), sourceCode, targetCode,
		out.Translations[0].DetectedSourceLanguage)
	return out.Translations[0].Text, nil
}
