// Package utils holds the small text and time helpers shared by the case
// engine, the labelling task and the HTTP layer.
package utils

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// iso8601Layout matches the microsecond precision used by the gateway.
const iso8601Layout = "2006-01-02T15:04:05.000000Z07:00"

// SafeMaxTime returns the latest of the given times, ignoring zero values.
// It returns the zero time when every value is zero.
func SafeMaxTime(times ...time.Time) time.Time {
	var max time.Time
	for _, t := range times {
		if t.IsZero() {
			continue
		}
		if max.IsZero() || t.After(max) {
			max = t
		}
	}
	return max
}

// Normalize collapses whitespace, lowercases and decomposes combined unicode
// characters so keyword matching is stable.
func Normalize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return norm.NFD.String(strings.ToLower(text))
}

// MatchKeywords reports whether any keyword occurs in text as a whole word,
// ignoring case. Word characters are unicode letters, marks, digits and _.
func MatchKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	text = Normalize(text)
	for _, kw := range keywords {
		kw = Normalize(kw)
		if kw == "" {
			continue
		}
		re, err := regexp.Compile(`(?:^|[^\p{L}\p{M}\p{N}_])` + regexp.QuoteMeta(kw) + `(?:$|[^\p{L}\p{M}\p{N}_])`)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Truncate shortens text to length runes, ending with "..." when cut.
func Truncate(text string, length int) string {
	return TruncateWith(text, length, "...")
}

func TruncateWith(text string, length int, suffix string) string {
	r := []rune(text)
	if len(r) <= length {
		return text
	}
	keep := length - len([]rune(suffix))
	if keep < 0 {
		keep = 0
	}
	return string(r[:keep]) + suffix
}

// StrToBool accepts 1/true/y/yes in any case; everything else is false.
func StrToBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "y", "yes":
		return true
	default:
		return false
	}
}

func DatetimeToMicroseconds(t time.Time) int64 {
	return t.UnixMicro()
}

func MicrosecondsToDatetime(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func FormatISO8601(t time.Time) string {
	return t.UTC().Format(iso8601Layout)
}

func ParseISO8601(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// SplitList splits a comma separated list, trimming blanks.
func SplitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}
