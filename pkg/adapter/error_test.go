package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limited", &Error{Adapter: "openai", Status: 429}, true},
		{"server error", &Error{Adapter: "anthropic", Status: 503}, true},
		{"bad request", &Error{Adapter: "anthropic", Status: 400}, false},
		{"temporary flag", &Error{Adapter: "deepseek", Temporary: true}, true},
		{"plain error", errors.New("boom"), false},
		{"wrapped adapter error", fmt.Errorf("call failed: %w", &Error{Status: 500}), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &Error{Adapter: "deepseek", Status: 502, Err: inner}

	if !errors.Is(err, inner) {
		t.Fatalf("expected errors.Is to find inner error")
	}
	if err.Error() != "deepseek: connection reset" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
