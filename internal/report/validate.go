package report

import (
	"strconv"
	"strings"
	"time"

	"accidentbot/internal/domain"
)

const localDisplayLayout = "02/01/2006 03:04 PM"

var dateTimeLayouts = []string{
	"2/1/2006 15:04:05", "2-1-2006 15:04:05", "2006-1-2 15:04:05",
	"2/1/2006 15:04", "2-1-2006 15:04", "2006-1-2 15:04",
	"2/1/06 15:04:05", "2-1-06 15:04:05",
	"2/1/06 15:04", "2-1-06 15:04",
}

var dateOnlyLayouts = []string{"2/1/2006", "2-1-2006", "2006-1-2", "2/1/06", "2-1-06"}

var nowWords = map[string]bool{"now": true, "ahora": true}

// ParseOccurredAt interprets text as a wall-clock time in loc. "now" uses
// the supplied instant. The result is UTC with millisecond precision.
func ParseOccurredAt(text string, loc *time.Location, now time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if nowWords[strings.ToLower(text)] {
		return now.UTC().Truncate(time.Millisecond), true
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layouts := range [][]string{dateTimeLayouts, dateOnlyLayouts} {
		for _, layout := range layouts {
			if t, err := time.ParseInLocation(layout, text, loc); err == nil {
				return t.UTC().Truncate(time.Millisecond), true
			}
		}
	}
	return time.Time{}, false
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(domain.SubmissionTimeLayout)
}

func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(localDisplayLayout)
}

// ParseSex never rejects: anything that is not a masculine or feminine
// prefix is O.
func ParseSex(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "O"
	}
	for _, word := range []string{"masculine", "masculino"} {
		if strings.HasPrefix(word, lower) || strings.HasPrefix(lower, word) {
			return "M"
		}
	}
	for _, word := range []string{"feminine", "femenino"} {
		if strings.HasPrefix(word, lower) || strings.HasPrefix(lower, word) {
			return "F"
		}
	}
	return "O"
}

var sexHintWords = map[string]string{
	"m": "M", "male": "M", "man": "M", "masculine": "M", "masculino": "M", "hombre": "M", "varon": "M", "varón": "M",
	"f": "F", "female": "F", "woman": "F", "feminine": "F", "femenino": "F", "mujer": "F",
	"o": "O", "other": "O", "otro": "O",
}

// ParseSexHint is the strict variant for extracted entities: only an
// explicit sex word is accepted.
func ParseSexHint(text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if i := strings.Index(lower, " ("); i > 0 {
		lower = lower[:i]
	}
	sex, ok := sexHintWords[lower]
	return sex, ok
}

func ParseAge(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 || n > 120 {
		return 0, false
	}
	return n, true
}

func ParseCount(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func isCancel(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "/cancel", "cancel", "cancelar":
		return true
	}
	return false
}

const (
	confirmLabel = "Yes, submit"
	declineLabel = "No, cancel"
)

// parseConfirmation returns (affirmative, recognized).
func parseConfirmation(text string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "si", "sí", strings.ToLower(confirmLabel):
		return true, true
	case "no", "n", strings.ToLower(declineLabel):
		return false, true
	}
	return false, false
}
