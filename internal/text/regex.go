package text

import "regexp"

// Pre-compiled patterns shared by the text helpers and document processors.
var (
	// whitespaceRegex matches runs of horizontal whitespace.
	whitespaceRegex = regexp.MustCompile(`[ \t]+`)

	// paragraphBreakRegex matches one or more blank lines.
	paragraphBreakRegex = regexp.MustCompile(`\n[ \t]*\n+`)

	// sentenceEndRegex matches the end of a sentence followed by whitespace.
	sentenceEndRegex = regexp.MustCompile(`[.!?。！？]["')\]]*\s+`)

	// llmPrefixRegex matches labels chat models sometimes put before a translation.
	llmPrefixRegex = regexp.MustCompile(`(?i)^(translation|translated text|here is the translation)\s*:\s*`)
)
