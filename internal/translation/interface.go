// Package translation provides the translator contract, the language mapping
// table and the router that picks a provider per target language.
package translation

import (
	"context"
	"strings"
)

// Provider identifies a translation provider. The set is closed.
type Provider string

const (
	ProviderDeepL  Provider = "deepl"
	ProviderGoogle Provider = "google"
	ProviderOpenAI Provider = "openai"
)

// Providers lists every supported provider.
var Providers = []Provider{ProviderDeepL, ProviderGoogle, ProviderOpenAI}

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderDeepL, ProviderGoogle, ProviderOpenAI:
		return true
	}
	return false
}

// CredentialEnv names the environment variable holding the provider's key.
func (p Provider) CredentialEnv() string {
	switch p {
	case ProviderDeepL:
		return "DEEPL_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	}
	return strings.ToUpper(string(p)) + "_API_KEY"
}

// SourceForm converts a provider-native target code into the form the
// provider accepts for a source language. DeepL rejects regional variants
// on the source side (EN-US, PT-PT, ZH-HANS are targets only).
func (p Provider) SourceForm(code string) string {
	if p == ProviderDeepL {
		if i := strings.IndexByte(code, '-'); i > 0 {
			return code[:i]
		}
	}
	return code
}

// Translator is implemented by every provider adapter. Codes are always
// provider-native; an empty sourceCode asks the provider to detect it.
type Translator interface {
	Provider() Provider
	Translate(ctx context.Context, text, sourceCode, targetCode string) (string, error)
}

// Route is the outcome of resolving a canonical target code.
type Route struct {
	Canonical    string   `json:"canonical"`
	Provider     Provider `json:"provider"`
	ProviderCode string   `json:"provider_code"`

	// FallbackFrom is set when the primary provider was unavailable and a
	// configured fallback was chosen instead.
	FallbackFrom Provider `json:"fallback_from,omitempty"`
}

// PairRoute is a resolved target plus the source expressed in the same
// provider's code system.
type PairRoute struct {
	Route
	SourceCode string `json:"source_code"`
}
