package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"language-toolkit/internal/config"
	"language-toolkit/internal/errs"
	"language-toolkit/internal/text"
	"language-toolkit/internal/translation"
)

// OpenAITranslator translates with a chat completion model. Language codes
// for this provider are plain English language names.
type OpenAITranslator struct {
	apiKey string
	base   string
	model  string
	call   upstreamCall
}

// NewOpenAITranslator creates an OpenAI chat adapter.
func NewOpenAITranslator(apiKey string, opts Options) *OpenAITranslator {
	return &OpenAITranslator{
		apiKey: apiKey,
		base:   opts.baseURL(config.OpenAIAPIEndpoint),
		model:  config.OpenAITranslationModel,
		call: upstreamCall{
			provider: string(translation.ProviderOpenAI),
			op:       "openai.translate",
			client:   opts.client(sharedTranslationClient),
			observer: opts.Observer,
		},
	}
}

func (o *OpenAITranslator) Provider() translation.Provider {
	return translation.ProviderOpenAI
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func translationPrompt(sourceName, targetName string) string {
	from := "Detect the source language automatically."
	if sourceName != "" {
		from = fmt.Sprintf("The source language is %s.", sourceName)
	}
	return fmt.Sprintf(`You are a professional translator. %s
Translate the user's text into %s.
Preserve paragraph breaks, line breaks and formatting.
Return ONLY the translation. Do not add explanations, notes or quotes.`, from, targetName)
}

func (o *OpenAITranslator) Translate(ctx context.Context, input, sourceCode, targetCode string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return input, nil
	}
	if o.apiKey == "" {
		return "", errs.Upstream(errs.KindAuthFailed, o.call.provider, o.call.op, "OpenAI API key is required")
	}

	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: translationPrompt(languageName(sourceCode), languageName(targetCode))},
			{Role: "user", Content: input},
		},
		Temperature: config.TranslationTemperature,
		MaxTokens:   config.TranslationMaxTokens,
	})
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, o.call.op, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+config.OpenAIChatPath, bytes.NewReader(body))
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, o.call.op, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out chatResponse
	if err := o.call.doJSON(ctx, req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errs.Upstream(errs.KindUpstreamFailed, o.call.provider, o.call.op, "no response from model")
	}
	return text.CleanModelOutput(out.Choices[0].Message.Content), nil
}

// languageName accepts either a language name or an ISO code.
func languageName(code string) string {
	if code == "" {
		return ""
	}
	return text.GetLanguageName(code)
}
