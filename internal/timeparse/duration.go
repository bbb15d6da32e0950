// Package timeparse extracts durations from free-text user replies.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// Explicit numeric mentions win over colloquial phrases, hours over minutes
// over seconds. Fractional values are honored ("1.5 hours").
var (
	hoursRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|h)\b`)
	minutesRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:minutes?|mins?|m)\b`)
	secondsRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:seconds?|secs?|s)\b`)
)

// colloquial phrases in priority order; first match wins.
var colloquial = []struct {
	phrase   string
	duration time.Duration
}{
	{"half an hour", 30 * time.Minute},
	{"half hour", 30 * time.Minute},
	{"couple of minutes", 2 * time.Minute},
	{"couple minutes", 2 * time.Minute},
	{"few minutes", 3 * time.Minute},
	{"a bit", 2 * time.Minute},
	{"a little", 2 * time.Minute},
	{"quickly", 1 * time.Minute},
	{"quick", 1 * time.Minute},
}

// Extract returns the duration mentioned in text, or domain.ErrNoMatch when
// nothing matches. It never returns a zero duration with a nil error, so
// "no match" and "zero time requested" cannot be confused.
func Extract(text string) (time.Duration, error) {
	lower := strings.ToLower(text)

	if d, ok := match(hoursRe, lower, time.Hour); ok {
		return d, nil
	}
	if d, ok := match(minutesRe, lower, time.Minute); ok {
		return d, nil
	}
	if d, ok := match(secondsRe, lower, time.Second); ok {
		return d, nil
	}

	for _, c := range colloquial {
		if strings.Contains(lower, c.phrase) {
			return c.duration, nil
		}
	}

	return 0, domain.ErrNoMatch
}

func match(re *regexp.Regexp, text string, unit time.Duration) (time.Duration, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return time.Duration(value * float64(unit)), true
}
