// Package storage persists extension state in a key-value store with two durability
// tiers: a primary (Postgres or Redis) and a local-only in-memory fallback used
// when the primary reports a quota failure.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("key not found")
	// ErrQuotaExceeded is returned when a tier refuses a write for lack of space.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Store is a byte-oriented key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Error represents a failed storage operation.
type Error struct {
	Op      string
	Key     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage %s %q: %s: %v", e.Op, e.Key, e.Message, e.Cause)
	}
	return fmt.Sprintf("storage %s %q: %s", e.Op, e.Key, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func quotaError(op, key, message string, cause error) error {
	if cause == nil {
		cause = ErrQuotaExceeded
	} else {
		cause = fmt.Errorf("%w: %w", ErrQuotaExceeded, cause)
	}
	return &Error{Op: op, Key: key, Message: message, Cause: cause}
}
