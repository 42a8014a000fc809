package deck

import (
	"regexp"
	"strings"
)

var slideNumberLine = regexp.MustCompile(`^\s*\d+\s*[.)]?\s*$`)

// SpeakableText prepares narration for speech: lines holding only a slide
// number ("2", "12.", "4)") are dropped and runs of whitespace collapse to a
// single space.
func SpeakableText(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if slideNumberLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
}

// MinimalNarration derives a deterministic narration from the slide's own text.
// It is used when every narration attempt failed.
func MinimalNarration(raw string) string {
	var sentences []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•–·"))
		if line == "" || slideNumberLine.MatchString(line) {
			continue
		}
		if !strings.ContainsAny(line[len(line)-1:], ".!?:;") {
			line += "."
		}
		sentences = append(sentences, line)
	}
	return strings.Join(sentences, " ")
}

// WordCount returns the number of whitespace separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
