package logging

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("status 429"), "rate_limit"},
		{fmt.Errorf("gemini API error: %w", context.DeadlineExceeded), "timeout"},
		{errors.New("status 401"), "auth"},
		{errors.New("boom"), "error"},
	}
	for _, tc := range cases {
		if got := Reason(tc.err); got != tc.want {
			t.Errorf("Reason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected a usable logger")
	}
	l := Nop()
	if OrNop(l) != l {
		t.Fatal("expected the same logger back")
	}
}
