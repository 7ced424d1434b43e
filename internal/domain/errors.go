package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound is returned when an order id is unknown.
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotOwner is returned when a cancel names an order owned by someone else.
	ErrNotOwner = errors.New("order does not belong to requester")
	// ErrAlreadyTerminal is returned when a cancel targets a filled or
	// cancelled order. It produces no state change.
	ErrAlreadyTerminal = errors.New("order already in terminal state")
	// ErrSelfTrade is returned under the reject self-trade policy when an
	// incoming order would cross the same owner's resting order.
	ErrSelfTrade = errors.New("self trade rejected")
	// ErrInvalidOrderState signals a broken internal invariant, such as
	// inserting a terminal or empty order into the book. It is a bug-level
	// condition, not a user-facing error.
	ErrInvalidOrderState = errors.New("invalid order state")
	// ErrUnknownSymbol is returned for symbols outside the configured set.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// ValidationError rejects a malformed order intent before any book mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %s", e.Reason)
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
