package services

import (
	"time"

	internalhttp "language-toolkit/internal/http"
	"language-toolkit/internal/logger"
	"language-toolkit/internal/translation"
	"language-toolkit/models"
)

// NewToolkitFromConfig builds adapters for every provider with a key in cfg.
// Providers without a key are left out; the router then reports them as
// unavailable or uses a configured fallback.
func NewToolkitFromConfig(cfg *models.Config, table *translation.Table, observer CallObserver) *Toolkit {
	var translators []translation.Translator
	if cfg.DeepLKey != "" {
		translators = append(translators, NewDeepLTranslator(cfg.DeepLKey, Options{BaseURL: cfg.DeepLBaseURL(), Observer: observer}))
	}
	if cfg.GoogleKey != "" {
		translators = append(translators, NewGoogleTranslator(cfg.GoogleKey, Options{BaseURL: cfg.GoogleEndpoint, Observer: observer}))
	}
	if cfg.OpenAIKey != "" {
		translators = append(translators, NewOpenAITranslator(cfg.OpenAIKey, Options{BaseURL: cfg.OpenAIEndpoint, Observer: observer}))
	}

	opts := ToolkitOptions{
		Translation:  translation.NewService(table, translators...),
		Converter:    NewConverter(cfg.ConverterPath),
		FFmpeg:       NewFFmpeg(cfg.FFmpegPath),
		DefaultVoice: cfg.DefaultVoice,
		Retry: internalhttp.RetryConfig{
			MaxAttempts:   cfg.MaxRetries + 1,
			InitialDelay:  time.Duration(cfg.RetryDelay),
			MaxDelay:      internalhttp.DefaultRetryConfig().MaxDelay,
			BackoffFactor: 2.0,
		},
	}
	if cfg.OpenAIKey != "" {
		opts.Transcriber = NewOpenAITranscriber(cfg.OpenAIKey, Options{BaseURL: cfg.OpenAIEndpoint, Observer: observer})
	}
	if cfg.ElevenLabsKey != "" {
		opts.Synthesizer = NewElevenLabsSynthesizer(cfg.ElevenLabsKey, Options{BaseURL: cfg.ElevenLabsEndpoint, Observer: observer})
	}

	var names []string
	for _, tr := range translators {
		names = append(names, string(tr.Provider()))
	}
	logger.Info("Translation providers: %v; transcription: %t; speech: %t; converter: %s",
		names, opts.Transcriber != nil, opts.Synthesizer != nil, opts.Converter.Path())

	return NewToolkit(opts)
}

// Translation returns the routing service.
func (t *Toolkit) Translation() *translation.Service {
	return t.translation
}
