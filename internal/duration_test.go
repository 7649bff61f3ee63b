package internal

import (
	"testing"
	"time"
)

func TestParseExpiryUnits(t *testing.T) {
	fallback := 7 * 24 * time.Hour

	cases := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{"seconds", "45s", 45 * time.Second},
		{"minutes", "90m", 90 * time.Minute},
		{"hours", "24h", 24 * time.Hour},
		{"days", "7d", 7 * 24 * time.Hour},
		{"bare integer is seconds", "604800", 604800 * time.Second},
		{"single day", "1d", 24 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseExpiry(tc.raw, fallback)
			if got != tc.want {
				t.Fatalf("ParseExpiry(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestParseExpiryFallback(t *testing.T) {
	fallback := 7 * 24 * time.Hour

	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"unknown unit", "7w"},
		{"unit only", "d"},
		{"garbage", "banana"},
		{"zero", "0"},
		{"zero with unit", "0d"},
		{"negative", "-5m"},
		{"float", "1.5h"},
		{"overflow", "99999999999999999999d"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseExpiry(tc.raw, fallback)
			if got != fallback {
				t.Fatalf("ParseExpiry(%q) = %v, want fallback %v", tc.raw, got, fallback)
			}
		})
	}
}

func TestExpirySecondsDefaultWeek(t *testing.T) {
	got := ExpirySeconds("7d", time.Minute)
	if got != 604800 {
		t.Fatalf("ExpirySeconds(7d) = %d, want 604800", got)
	}
}
