package quota

import (
	"strconv"
	"time"
)

// fallbackMute is used when a mute duration string cannot be parsed.
// A forgiving default, not an error: admin-supplied strings survive from
// older deployments and should never break enforcement.
const fallbackMute = 5 * time.Minute

// ValidMuteDuration reports whether s is a well-formed duration string.
// Admin input is validated strictly at the command boundary; only stored
// values get the forgiving fallback.
func ValidMuteDuration(s string) bool {
	if len(s) < 2 {
		return false
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 1 {
		return false
	}
	switch s[len(s)-1] {
	case 's', 'm', 'h', 'd':
		return true
	}
	return false
}

// ParseMuteDuration parses "<integer><unit>" where unit is one of
// s, m, h, d. Anything unparseable yields the 5-minute fallback.
func ParseMuteDuration(s string) time.Duration {
	if len(s) < 2 {
		return fallbackMute
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return fallbackMute
	}

	switch s[len(s)-1] {
	case 's':
		return time.Duration(n) * time.Second
	case 'm':
		return time.Duration(n) * time.Minute
	case 'h':
		return time.Duration(n) * time.Hour
	case 'd':
		return time.Duration(n) * 24 * time.Hour
	}
	return fallbackMute
}
