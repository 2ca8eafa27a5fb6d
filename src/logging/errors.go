package logging

import (
	"context"
	"errors"
	"strings"
)

func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429")
}

// IsTimeout reports whether err came from an exceeded deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Client.Timeout") || strings.Contains(msg, "i/o timeout")
}

// Reason condenses a provider error into a short tag for log fields.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case IsRateLimit(err):
		return "rate_limit"
	case IsTimeout(err):
		return "timeout"
	case strings.Contains(err.Error(), "401"), strings.Contains(err.Error(), "403"):
		return "auth"
	default:
		return "error"
	}
}
