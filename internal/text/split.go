package text

import "strings"

// SplitByDelimiter splits text by a delimiter and returns cleaned, non-empty parts.
func SplitByDelimiter(text, delimiter string) []string {
	parts := strings.Split(text, delimiter)
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}

// ChunkSeparator joins chunks produced by ChunkText.
const ChunkSeparator = "\n\n"

// ChunkText splits text into chunks of at most maxChars bytes, breaking at
// paragraph boundaries first and sentence boundaries second. A single
// sentence longer than maxChars is split at whitespace, or hard-cut when it
// has none. Joining the chunks with ChunkSeparator yields the paragraphs of
// the input with normalized blank lines.
func ChunkText(text string, maxChars int) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphBreakRegex.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > maxChars {
			flush()
			chunks = append(chunks, splitLong(para, maxChars)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(ChunkSeparator)+len(para) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(ChunkSeparator)
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}

// splitLong breaks one oversized paragraph into pieces of at most maxChars.
func splitLong(para string, maxChars int) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceEndRegex.FindAllStringIndex(para, -1) {
		sentences = append(sentences, para[last:loc[1]])
		last = loc[1]
	}
	if last < len(para) {
		sentences = append(sentences, para[last:])
	}

	var out []string
	var current strings.Builder
	for _, s := range sentences {
		for len(s) > maxChars {
			if current.Len() > 0 {
				out = append(out, strings.TrimSpace(current.String()))
				current.Reset()
			}
			cut := strings.LastIndexAny(s[:maxChars], " \t\n")
			if cut <= 0 {
				cut = runeBoundary(s, maxChars)
			}
			out = append(out, strings.TrimSpace(s[:cut]))
			s = s[cut:]
		}
		if current.Len() > 0 && current.Len()+len(s) > maxChars {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(s)
	}
	if strings.TrimSpace(current.String()) != "" {
		out = append(out, strings.TrimSpace(current.String()))
	}
	return out
}

// runeBoundary returns the largest index <= n that does not split a UTF-8 sequence.
func runeBoundary(s string, n int) int {
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	if n == 0 {
		return len(s)
	}
	return n
}

// NormalizeSpaces collapses runs of spaces and tabs.
func NormalizeSpaces(s string) string {
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// CleanModelOutput strips labels and wrapping quotes chat models add around
// a translation.
func CleanModelOutput(s string) string {
	s = strings.TrimSpace(s)
	s = llmPrefixRegex.ReplaceAllString(s, "")
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}
