// Package http provides HTTP client utilities with connection pooling and retry logic.
package http

import (
	"net/http"
	"time"

	"language-toolkit/internal/config"
)

// ClientConfig configures the HTTP client behavior.
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultClientConfig returns the default HTTP client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             config.HTTPTimeout,
		MaxIdleConns:        config.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: config.HTTPMaxIdleConnsPerHost,
		IdleConnTimeout:     config.HTTPIdleConnTimeout,
	}
}

// NewPooledClient creates an HTTP client with connection pooling.
func NewPooledClient(cfg ClientConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
		},
	}
}

// NewDefaultClient creates an HTTP client with default pooling settings.
func NewDefaultClient() *http.Client {
	return NewPooledClient(DefaultClientConfig())
}

// Shared clients for the upstream providers.
var (
	// TranslationClient is shared by the DeepL, Google and OpenAI chat adapters.
	TranslationClient = NewDefaultClient()

	// MediaClient is used for transcription uploads and speech synthesis,
	// which move larger payloads.
	MediaClient = NewPooledClient(ClientConfig{
		Timeout:             10 * time.Minute,
		MaxIdleConns:        config.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: config.HTTPMaxIdleConnsPerHost,
		IdleConnTimeout:     config.HTTPIdleConnTimeout,
	})
)
