package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseMuteDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
		{"10d", 240 * time.Hour},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseMuteDuration(tc.in), "input %q", tc.in)
	}
}

func TestParseMuteDurationFallback(t *testing.T) {
	// Unparseable strings fall back to five minutes instead of erroring.
	for _, in := range []string{"", "m", "5", "abc", "5x", "-3m", "m5"} {
		assert.Equal(t, 5*time.Minute, ParseMuteDuration(in), "input %q", in)
	}
}

func TestValidMuteDuration(t *testing.T) {
	for _, in := range []string{"5s", "5m", "5h", "5d", "120m"} {
		assert.True(t, ValidMuteDuration(in), "input %q", in)
	}
	for _, in := range []string{"", "5", "m", "0m", "-5m", "5x", "five minutes"} {
		assert.False(t, ValidMuteDuration(in), "input %q", in)
	}
}
