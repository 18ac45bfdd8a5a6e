// Package subtitle reads and writes SubRip (.srt) cue lists so subtitle
// documents can be translated cue by cue and transcripts exported with timing.
package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cue is one numbered, timed subtitle.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string // lines joined with "\n"
}

// List is an ordered sequence of cues.
type List []Cue

// Texts returns the cue texts in order.
func (l List) Texts() []string {
	texts := make([]string, len(l))
	for i, c := range l {
		texts[i] = c.Text
	}
	return texts
}

// WithTexts returns a copy of the list with texts replaced and timing kept.
// It returns an error when the counts differ.
func (l List) WithTexts(texts []string) (List, error) {
	if len(texts) != len(l) {
		return nil, fmt.Errorf("got %d texts for %d cues", len(texts), len(l))
	}
	out := make(List, len(l))
	for i, c := range l {
		c.Text = texts[i]
		out[i] = c
	}
	return out, nil
}

var timingRegex = regexp.MustCompile(`(\d{1,2}:\d{2}:\d{2}[,.]\d{1,3})\s*-->\s*(\d{1,2}:\d{2}:\d{2}[,.]\d{1,3})`)

// Parse reads SRT content. Cues without text are skipped; a missing index
// line is tolerated and the cue is numbered by position.
func Parse(r io.Reader) (List, error) {
	var cues List
	var cur *Cue
	var lines []string

	flush := func() {
		if cur != nil && len(lines) > 0 {
			cur.Text = strings.Join(lines, "\n")
			if cur.Index == 0 {
				cur.Index = len(cues) + 1
			}
			cues = append(cues, *cur)
		}
		cur = nil
		lines = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	pendingIndex := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimPrefix(line, "\uFEFF")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flush()
			pendingIndex = 0
		case cur == nil:
			if m := timingRegex.FindStringSubmatch(trimmed); m != nil {
				cur = &Cue{Index: pendingIndex, Start: ParseTimestamp(m[1]), End: ParseTimestamp(m[2])}
			} else if n, err := strconv.Atoi(trimmed); err == nil {
				pendingIndex = n
			}
		default:
			lines = append(lines, trimmed)
		}
	}
	flush()
	return cues, scanner.Err()
}

// Format renders cues as SRT.
func Format(cues List) string {
	var b strings.Builder
	for i, c := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", c.Index, FormatTimestamp(c.Start), FormatTimestamp(c.End), c.Text)
	}
	return b.String()
}

// ParseTimestamp converts "HH:MM:SS,mmm" (comma or dot) to a duration.
// Malformed input yields 0.
func ParseTimestamp(ts string) time.Duration {
	ts = strings.Replace(strings.TrimSpace(ts), ",", ".", 1)
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0
	}
	hours, _ := strconv.Atoi(parts[0])
	minutes, _ := strconv.Atoi(parts[1])
	secs, _ := strconv.ParseFloat(parts[2], 64)
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(secs*float64(time.Second)).Round(time.Millisecond)
}

// FormatTimestamp renders a duration as "HH:MM:SS,mmm".
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, (ms/60000)%60, (ms/1000)%60, ms%1000)
}

// FromSeconds converts fractional seconds, as returned by speech APIs, to a duration.
func FromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}
