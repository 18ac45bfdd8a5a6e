package translation

import (
	"context"
	"fmt"
	"strings"

	"language-toolkit/internal/errs"
	"language-toolkit/internal/logger"
	"language-toolkit/models"
)

// AutoDetect is the source code asking the provider to detect the language.
const AutoDetect = "auto"

// Router maps canonical language codes to a provider and its native code.
// It is immutable after construction and safe for concurrent use.
type Router struct {
	table     *Table
	available map[Provider]bool
}

// NewRouter creates a router over table. available lists providers with
// configured credentials.
func NewRouter(table *Table, available []Provider) *Router {
	r := &Router{table: table, available: make(map[Provider]bool, len(available))}
	for _, p := range available {
		r.available[p] = true
	}
	return r
}

// Available reports whether provider p has credentials.
func (r *Router) Available(p Provider) bool {
	return r.available[p]
}

// Resolve picks the provider for a canonical target code. When the primary
// provider has no credentials the entry's fallbacks are tried in order;
// a chosen fallback is logged and reported through Route.FallbackFrom.
func (r *Router) Resolve(code string) (Route, error) {
	route, err := r.resolve(code)
	if err == nil && route.FallbackFrom != "" {
		logger.Warn("Provider %s has no credentials for %s, falling back to %s (%s)",
			route.FallbackFrom, route.Canonical, route.Provider, route.ProviderCode)
	}
	return route, err
}

func (r *Router) resolve(code string) (Route, error) {
	entry, ok := r.table.Lookup(code)
	if !ok {
		return Route{}, errs.E(errs.KindUnknownLanguage, "route", fmt.Sprintf("unsupported language: %q", code))
	}

	primary := Provider(entry.Provider)
	if r.available[primary] {
		return Route{Canonical: entry.Code, Provider: primary, ProviderCode: entry.ProviderCode}, nil
	}

	for _, fb := range entry.Fallbacks {
		p := Provider(fb.Provider)
		if !r.available[p] {
			continue
		}
		return Route{
			Canonical:    entry.Code,
			Provider:     p,
			ProviderCode: fb.Code,
			FallbackFrom: primary,
		}, nil
	}

	return Route{}, errs.Upstream(errs.KindProviderUnavailable, string(primary), "route",
		fmt.Sprintf("language %s requires provider %s: set %s", entry.Code, primary, primary.CredentialEnv()))
}

// ResolvePair resolves target, then expresses source in the chosen
// provider's code system. An empty or "auto" source yields an empty
// SourceCode.
func (r *Router) ResolvePair(source, target string) (PairRoute, error) {
	route, err := r.Resolve(target)
	if err != nil {
		return PairRoute{}, err
	}

	source = strings.TrimSpace(source)
	if source == "" || strings.EqualFold(source, AutoDetect) {
		return PairRoute{Route: route}, nil
	}

	entry, ok := r.table.Lookup(source)
	if !ok {
		return PairRoute{}, errs.E(errs.KindUnknownLanguage, "route", fmt.Sprintf("unsupported source language: %q", source))
	}
	code := codeFor(route.Provider, entry)
	if route.Provider != ProviderOpenAI {
		code = route.Provider.SourceForm(code)
	}
	return PairRoute{Route: route, SourceCode: code}, nil
}

// LanguageInfo describes one table entry for listings.
type LanguageInfo struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Provider  Provider `json:"provider"`
	Aliases   []string `json:"aliases,omitempty"`
	Available bool     `json:"available"`
}

// Languages lists the table with per-language availability.
func (r *Router) Languages() []LanguageInfo {
	entries := r.table.Entries()
	out := make([]LanguageInfo, 0, len(entries))
	for _, e := range entries {
		_, err := r.resolve(e.Code)
		out = append(out, LanguageInfo{
			Code:      e.Code,
			Name:      e.Name,
			Provider:  Provider(e.Provider),
			Aliases:   e.Aliases,
			Available: err == nil,
		})
	}
	return out
}

// Lookup exposes the table entry for a code.
func (r *Router) Lookup(code string) (models.LanguageEntry, bool) {
	return r.table.Lookup(code)
}

// Service binds a router to the configured translator adapters.
type Service struct {
	router      *Router
	translators map[Provider]Translator
}

// NewService builds a router whose available providers are exactly the
// given translators.
func NewService(table *Table, translators ...Translator) *Service {
	s := &Service{translators: make(map[Provider]Translator, len(translators))}
	var available []Provider
	for _, t := range translators {
		if t == nil {
			continue
		}
		s.translators[t.Provider()] = t
		available = append(available, t.Provider())
	}
	s.router = NewRouter(table, available)
	return s
}

// Router returns the service's router.
func (s *Service) Router() *Router {
	return s.router
}

// Prepare resolves a language pair and returns the translator to call.
// It performs no network I/O.
func (s *Service) Prepare(source, target string) (PairRoute, Translator, error) {
	route, err := s.router.ResolvePair(source, target)
	if err != nil {
		return PairRoute{}, nil, err
	}
	t, ok := s.translators[route.Provider]
	if !ok {
		return PairRoute{}, nil, errs.Upstream(errs.KindProviderUnavailable, string(route.Provider), "route",
			fmt.Sprintf("no adapter registered for provider %s", route.Provider))
	}
	return route, t, nil
}

// Translate resolves the pair and performs a single translate call.
func (s *Service) Translate(ctx context.Context, text, source, target string) (string, PairRoute, error) {
	route, t, err := s.Prepare(source, target)
	if err != nil {
		return "", route, err
	}
	out, err := t.Translate(ctx, text, route.SourceCode, route.ProviderCode)
	return out, route, err
}
