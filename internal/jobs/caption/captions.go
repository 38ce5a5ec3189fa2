package caption

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shortsfactory/internal/records"
)

// Event is one on-screen caption.
type Event struct {
	Start float64
	End   float64
	Text  string
}

var musicMarkers = []string{"music", "música", "musica", "[music]", "♪", "♫"}

// IsNoSpeech reports whether the transcript holds nothing worth captioning:
// no words at all, or at most three words that are all music markers.
func IsNoSpeech(words []records.Word) bool {
	if len(words) == 0 {
		return true
	}
	if len(words) > 3 {
		return false
	}
	for _, w := range words {
		lower := strings.ToLower(w.Word)
		matched := false
		for _, marker := range musicMarkers {
			if strings.Contains(lower, marker) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Group partitions words, in order, into ceil(len/size) events. Each event
// spans from its first word's start to its last word's end and shows the
// words uppercased for lang.
func Group(words []records.Word, size int, lang string) []Event {
	if size <= 0 {
		size = 1
	}
	upper := cases.Upper(parseLanguage(lang))
	events := make([]Event, 0, (len(words)+size-1)/size)
	for i := 0; i < len(words); i += size {
		group := words[i:min(i+size, len(words))]
		parts := make([]string, 0, len(group))
		for _, w := range group {
			parts = append(parts, upper.String(strings.TrimSpace(w.Word)))
		}
		events = append(events, Event{
			Start: group[0].Start,
			End:   group[len(group)-1].End,
			Text:  strings.Join(parts, " "),
		})
	}
	return events
}

func parseLanguage(lang string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return language.Und
	}
	return tag
}

// FormatTime renders seconds as an ASS timestamp, H:MM:SS.cc, truncating to
// centiseconds.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds*100 + 1e-6))
	cs := total % 100
	s := (total / 100) % 60
	m := (total / 6000) % 60
	h := total / 360000
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}
