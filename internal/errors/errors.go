package errors

import (
	"errors"
	"fmt"
)

// UsageError is returned by admin command parsing when the input is
// malformed. Its message is the only kind of failure ever shown in chat;
// everything else is logged and swallowed.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Usage
}

// Usage builds a UsageError with a plain usage string.
func Usage(usage string) *UsageError {
	return &UsageError{Usage: usage}
}

// Usagef builds a UsageError with a formatted usage string.
func Usagef(format string, args ...any) *UsageError {
	return &UsageError{Usage: fmt.Sprintf(format, args...)}
}

// UserMessage extracts the chat-visible reply for an error, reporting
// whether the error should be surfaced at all.
func UserMessage(err error) (string, bool) {
	var ue *UsageError
	if errors.As(err, &ue) {
		return ue.Error(), true
	}
	return "", false
}
