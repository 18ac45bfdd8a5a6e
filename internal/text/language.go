package text

import "strings"

// LanguageNames maps canonical language codes to English names. Chat-model
// providers are prompted with names rather than codes.
var LanguageNames = map[string]string{
	"ar":      "Arabic",
	"bg":      "Bulgarian",
	"cs":      "Czech",
	"da":      "Danish",
	"de":      "German",
	"el":      "Greek",
	"en":      "English",
	"es":      "Spanish",
	"et":      "Estonian",
	"fa":      "Persian",
	"fi":      "Finnish",
	"fr":      "French",
	"he":      "Hebrew",
	"hi":      "Hindi",
	"hu":      "Hungarian",
	"id":      "Indonesian",
	"it":      "Italian",
	"ja":      "Japanese",
	"ko":      "Korean",
	"lt":      "Lithuanian",
	"lv":      "Latvian",
	"nb-NO":   "Norwegian Bokmål",
	"nl":      "Dutch",
	"pl":      "Polish",
	"pt":      "Portuguese",
	"pt-BR":   "Brazilian Portuguese",
	"ro":      "Romanian",
	"ru":      "Russian",
	"sk":      "Slovak",
	"sl":      "Slovenian",
	"sv":      "Swedish",
	"th":      "Thai",
	"tr":      "Turkish",
	"uk":      "Ukrainian",
	"vi":      "Vietnamese",
	"zh-Hans": "Chinese (Simplified)",
	"zh-Hant": "Chinese (Traditional)",
}

// GetLanguageName returns the human-readable name for a language code,
// matching case-insensitively. Unknown codes are returned unchanged.
func GetLanguageName(code string) string {
	if name, ok := LanguageNames[code]; ok {
		return name
	}
	for k, name := range LanguageNames {
		if strings.EqualFold(k, code) {
			return name
		}
	}
	return code
}
