package famerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NotFound("chore", "abc"), "not_found"},
		{Forbidden("parent role required"), "forbidden"},
		{InvalidState("completed"), "invalid_state"},
		{fmt.Errorf("chore %q: %w", "abc", ErrAlreadyClaimed), "already_claimed"},
		{fmt.Errorf("need 15, have 10: %w", ErrInsufficientBalance), "insufficient_balance"},
		{fmt.Errorf("reward %q: %w", "xyz", ErrOutOfStock), "out_of_stock"},
		{errors.New("disk on fire"), "internal_error"},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Errorf("Code(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestIsDomain(t *testing.T) {
	if !IsDomain(NotFound("member", "m1")) {
		t.Error("NotFound should be a domain error")
	}
	if IsDomain(errors.New("sqlite exploded")) {
		t.Error("unexpected failures are not domain errors")
	}
}

func TestWrappingPreservesSentinel(t *testing.T) {
	err := fmt.Errorf("outer context: %w", Forbidden("child cannot approve"))
	if !errors.Is(err, ErrForbidden) {
		t.Error("double-wrapped error should still match the sentinel")
	}
}
