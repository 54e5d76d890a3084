package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeMaxTime(t *testing.T) {
	d1 := time.Date(2012, 3, 6, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2012, 5, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, d2, SafeMaxTime(d1, d2, time.Time{}))
	assert.Equal(t, d1, SafeMaxTime(time.Time{}, d1, time.Time{}))
	assert.True(t, SafeMaxTime(time.Time{}, time.Time{}).IsZero())
	assert.True(t, SafeMaxTime().IsZero())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "mary had a little lamb", Normalize("Mary  had\ta little lamb"))
	assert.Equal(t, "garc\u0327on", Normalize("Gar\u00e7on"))
}

func TestMatchKeywords(t *testing.T) {
	text := "Mary had a little lamb"
	tests := []struct {
		keywords []string
		want     bool
	}{
		{nil, false},
		{[]string{"sheep"}, false},
		{[]string{"lambburger"}, false},
		{[]string{"mary"}, true},
		{[]string{"lamb"}, true},
		{[]string{"big", "little"}, true},
		{[]string{"little lamb"}, true},
	}
	for _, tt := range tests {
		if got := MatchKeywords(text, tt.keywords); got != tt.want {
			t.Fatalf("MatchKeywords(%v) = %v, want %v", tt.keywords, got, tt.want)
		}
	}
}

func TestMatchKeywordsUnicode(t *testing.T) {
	assert.True(t, MatchKeywords("Mi niño tiene fiebre", []string{"niño"}))
	assert.True(t, MatchKeywords("Mi NIÑO tiene fiebre", []string{"niño"}))
	assert.False(t, MatchKeywords("Mis niños", []string{"niño"}))
	assert.True(t, MatchKeywords("Le bébé pleure", []string{"bébé"}))
	assert.False(t, MatchKeywords("bébés", []string{"bébé"}))
	// a trailing accent is part of the word
	assert.False(t, MatchKeywords("cafés", []string{"cafe"}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Hello...", Truncate("Hello World", 8))
	assert.Equal(t, "Hello W_", TruncateWith("Hello World", 8, "_"))
	assert.Equal(t, "Hello World", Truncate("Hello World", 98))
}

func TestStrToBool(t *testing.T) {
	for _, s := range []string{"0", "fALSe", "N", "No", "x", ""} {
		if StrToBool(s) {
			t.Fatalf("StrToBool(%q) should be false", s)
		}
	}
	for _, s := range []string{"1", "TrUE", "Y", "YeS"} {
		if !StrToBool(s) {
			t.Fatalf("StrToBool(%q) should be true", s)
		}
	}
}

func TestMicrosecondsRoundTrip(t *testing.T) {
	kigali := time.FixedZone("CAT", 2*60*60)
	d1 := time.Date(2015, 10, 9, 14, 48, 30, 123456000, time.UTC).In(kigali)

	us := DatetimeToMicroseconds(d1)
	d2 := MicrosecondsToDatetime(us)
	assert.Equal(t, time.Date(2015, 10, 9, 14, 48, 30, 123456000, time.UTC), d2)
}

func TestISO8601(t *testing.T) {
	d := time.Date(2014, 1, 2, 3, 4, 5, 123456000, time.UTC)
	s := FormatISO8601(d)
	assert.Equal(t, "2014-01-02T03:04:05.123456Z", s)

	back, err := ParseISO8601(s)
	assert.NoError(t, err)
	assert.True(t, back.Equal(d))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList("  "))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b "))
}
