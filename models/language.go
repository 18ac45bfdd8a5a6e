package models

// ProviderCode is a provider together with that provider's native code for
// a language.
type ProviderCode struct {
	Provider string `json:"translator"`
	Code     string `json:"code_translator"`
}

// LanguageEntry is one row of the language mapping table.
type LanguageEntry struct {
	Code         string         `json:"code"`
	Name         string         `json:"name"`
	Provider     string         `json:"translator"`
	ProviderCode string         `json:"code_translator"`
	Aliases      []string       `json:"aliases,omitempty"`
	Fallbacks    []ProviderCode `json:"fallbacks,omitempty"`
}

// LanguageTable is the on-disk shape of the mapping table.
type LanguageTable struct {
	Languages []LanguageEntry `json:"languages"`
}
