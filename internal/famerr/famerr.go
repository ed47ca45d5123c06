// Package famerr defines the closed set of domain errors surfaced to
// command callers. Every failure a caller can act on maps to one of these
// sentinels; anything else is reported as a generic internal failure.
package famerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an unknown chore, member, reward, or claim id.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor's role or identity does not permit
	// the requested operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState indicates a transition that is not legal from the
	// entity's current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrAlreadyClaimed indicates a lost claim race.
	ErrAlreadyClaimed = errors.New("already claimed")
	// ErrInsufficientBalance indicates a reward cost exceeding the member's
	// current points.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOutOfStock indicates an exhausted reward quantity.
	ErrOutOfStock = errors.New("out of stock")
)

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, ErrNotFound)
}

// Forbidden wraps ErrForbidden with a reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrForbidden)
}

// InvalidState wraps ErrInvalidState with the offending status.
func InvalidState(status string) error {
	return fmt.Errorf("status %q: %w", status, ErrInvalidState)
}

// Code returns the wire error code for err, or "internal_error" for
// unexpected failures.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	default:
		return "internal_error"
	}
}

// IsDomain reports whether err is one of the typed domain errors, as
// opposed to an unexpected internal failure.
func IsDomain(err error) bool {
	return Code(err) != "internal_error"
}
