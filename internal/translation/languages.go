package translation

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"language-toolkit/models"
)

// googleCodes holds canonical codes whose Google code differs from the
// lowercased canonical code.
var googleCodes = map[string]string{
	"zh-hans": "zh-CN",
	"zh-hant": "zh-TW",
	"nb-no":   "no",
	"pt-br":   "pt",
	"he":      "iw",
}

// nativeCode derives a provider code for an entry when the table does not
// list one for that provider.
func nativeCode(p Provider, entry models.LanguageEntry) string {
	switch p {
	case ProviderDeepL:
		return strings.ToUpper(entry.Code)
	case ProviderGoogle:
		if c, ok := googleCodes[strings.ToLower(entry.Code)]; ok {
			return c
		}
		return strings.ToLower(entry.Code)
	case ProviderOpenAI:
		return entry.Name
	}
	return entry.Code
}

func deepl(code, name, providerCode string, aliases ...string) models.LanguageEntry {
	e := models.LanguageEntry{
		Code:         code,
		Name:         name,
		Provider:     string(ProviderDeepL),
		ProviderCode: providerCode,
		Aliases:      aliases,
	}
	e.Fallbacks = []models.ProviderCode{{Provider: string(ProviderGoogle), Code: nativeCode(ProviderGoogle, e)}}
	return e
}

func google(code, name, providerCode string, aliases ...string) models.LanguageEntry {
	e := models.LanguageEntry{
		Code:         code,
		Name:         name,
		Provider:     string(ProviderGoogle),
		ProviderCode: providerCode,
		Aliases:      aliases,
	}
	e.Fallbacks = []models.ProviderCode{{Provider: string(ProviderOpenAI), Code: name}}
	return e
}

func openai(code, name string, aliases ...string) models.LanguageEntry {
	return models.LanguageEntry{
		Code:         code,
		Name:         name,
		Provider:     string(ProviderOpenAI),
		ProviderCode: name,
		Aliases:      aliases,
	}
}

// defaultLanguages is the built-in mapping table. DeepL covers the European
// and East Asian languages it supports; Google covers the rest; OpenAI
// handles languages neither offers reliably.
func defaultLanguages() []models.LanguageEntry {
	return []models.LanguageEntry{
		deepl("ar", "Arabic", "AR"),
		deepl("bg", "Bulgarian", "BG"),
		deepl("cs", "Czech", "CS"),
		deepl("da", "Danish", "DA"),
		deepl("de", "German", "DE"),
		deepl("el", "Greek", "EL"),
		deepl("en", "English", "EN-US", "en-US", "en-GB"),
		deepl("es", "Spanish", "ES"),
		deepl("et", "Estonian", "ET"),
		deepl("fi", "Finnish", "FI"),
		deepl("fr", "French", "FR"),
		deepl("hu", "Hungarian", "HU"),
		deepl("id", "Indonesian", "ID"),
		deepl("it", "Italian", "IT"),
		deepl("ja", "Japanese", "JA"),
		deepl("ko", "Korean", "KO"),
		deepl("lt", "Lithuanian", "LT"),
		deepl("lv", "Latvian", "LV"),
		deepl("nb-NO", "Norwegian Bokmål", "NB", "nb", "no"),
		deepl("nl", "Dutch", "NL"),
		deepl("pl", "Polish", "PL"),
		deepl("pt", "Portuguese", "PT-PT", "pt-PT"),
		deepl("pt-BR", "Brazilian Portuguese", "PT-BR"),
		deepl("ro", "Romanian", "RO"),
		deepl("ru", "Russian", "RU"),
		deepl("sk", "Slovak", "SK"),
		deepl("sl", "Slovenian", "SL"),
		deepl("sv", "Swedish", "SV"),
		deepl("tr", "Turkish", "TR"),
		deepl("uk", "Ukrainian", "UK"),
		deepl("zh-Hans", "Chinese (Simplified)", "ZH-HANS", "zh", "zh-CN"),
		deepl("zh-Hant", "Chinese (Traditional)", "ZH-HANT", "zh-TW"),
		google("fa", "Persian", "fa"),
		google("he", "Hebrew", "iw", "iw"),
		google("hi", "Hindi", "hi"),
		google("sw", "Swahili", "sw"),
		google("th", "Thai", "th"),
		google("vi", "Vietnamese", "vi"),
		openai("la", "Latin"),
	}
}

// Table is an immutable, validated language mapping table with
// case-insensitive lookup by canonical code or alias.
type Table struct {
	entries []models.LanguageEntry
	index   map[string]int
}

// NewTable validates entries and builds the lookup index. Duplicate codes or
// aliases, unknown providers and empty provider codes are rejected.
func NewTable(entries []models.LanguageEntry) (*Table, error) {
	t := &Table{index: make(map[string]int, len(entries)*2)}

	for _, e := range entries {
		if e.Code == "" {
			return nil, fmt.Errorf("language entry with empty code")
		}
		if !Provider(e.Provider).Valid() {
			return nil, fmt.Errorf("language %s: unknown provider %q", e.Code, e.Provider)
		}
		if e.ProviderCode == "" {
			return nil, fmt.Errorf("language %s: empty provider code", e.Code)
		}
		for _, fb := range e.Fallbacks {
			if !Provider(fb.Provider).Valid() || fb.Code == "" {
				return nil, fmt.Errorf("language %s: invalid fallback %+v", e.Code, fb)
			}
		}

		idx := len(t.entries)
		t.entries = append(t.entries, e)
		for _, key := range append([]string{e.Code}, e.Aliases...) {
			k := strings.ToLower(key)
			if prev, dup := t.index[k]; dup {
				return nil, fmt.Errorf("language code %q defined twice (%s and %s)", key, t.entries[prev].Code, e.Code)
			}
			t.index[k] = idx
		}
	}

	sort.SliceStable(t.entries, func(i, j int) bool { return t.entries[i].Code < t.entries[j].Code })
	// Rebuild the index after sorting.
	for i, e := range t.entries {
		for _, key := range append([]string{e.Code}, e.Aliases...) {
			t.index[strings.ToLower(key)] = i
		}
	}
	return t, nil
}

// DefaultTable returns the built-in table.
func DefaultTable() *Table {
	t, err := NewTable(defaultLanguages())
	if err != nil {
		panic("translation: invalid built-in language table: " + err.Error())
	}
	return t
}

// LoadTable reads a JSON table of the form {"languages":[...]}.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read language table: %w", err)
	}
	var raw models.LanguageTable
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse language table %s: %w", path, err)
	}
	if len(raw.Languages) == 0 {
		return nil, fmt.Errorf("language table %s has no languages", path)
	}
	return NewTable(raw.Languages)
}

// Lookup finds an entry by canonical code or alias, ignoring case.
func (t *Table) Lookup(code string) (models.LanguageEntry, bool) {
	idx, ok := t.index[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return models.LanguageEntry{}, false
	}
	return t.entries[idx], true
}

// Entries returns the entries sorted by canonical code.
func (t *Table) Entries() []models.LanguageEntry {
	return append([]models.LanguageEntry(nil), t.entries...)
}

// codeFor returns the entry's native code for provider p: the primary code,
// a listed fallback code, or a derived code.
func codeFor(p Provider, entry models.LanguageEntry) string {
	if Provider(entry.Provider) == p {
		return entry.ProviderCode
	}
	for _, fb := range entry.Fallbacks {
		if Provider(fb.Provider) == p {
			return fb.Code
		}
	}
	return nativeCode(p, entry)
}
