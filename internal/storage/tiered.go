package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// WarningFunc is told about writes that were downgraded to the fallback tier.
type WarningFunc func(key string, err error)

// Tiered writes to a primary store and falls back to a secondary one when the
// primary is over quota. A value lives in at most one tier at a time.
type Tiered struct {
	primary  Store
	fallback Store
	logger   *zap.Logger

	// OnWarning, if set, is called after a write lands in the fallback tier.
	OnWarning WarningFunc
}

// NewTiered creates a tiered store.
func NewTiered(primary, fallback Store, logger *zap.Logger) *Tiered {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiered{primary: primary, fallback: fallback, logger: logger}
}

// Get prefers the fallback tier, which only holds values the primary refused.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := t.fallback.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		t.logger.Warn("fallback tier read failed", zap.String("key", key), zap.Error(err))
	}
	return t.primary.Get(ctx, key)
}

// Set writes to the primary tier. On ErrQuotaExceeded the value goes to the
// fallback tier and the call succeeds with a warning.
func (t *Tiered) Set(ctx context.Context, key string, value []byte) error {
	err := t.primary.Set(ctx, key, value)
	if err == nil {
		if derr := t.fallback.Delete(ctx, key); derr != nil {
			t.logger.Warn("failed to clear fallback copy", zap.String("key", key), zap.Error(derr))
		}
		return nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return err
	}

	if ferr := t.fallback.Set(ctx, key, value); ferr != nil {
		return &Error{Op: "set", Key: key, Message: "primary over quota and fallback write failed", Cause: errors.Join(err, ferr)}
	}
	t.logger.Warn("primary storage over quota, saved to local fallback",
		zap.String("key", key),
		zap.Int("bytes", len(value)),
		zap.Error(err))
	if t.OnWarning != nil {
		t.OnWarning(key, err)
	}
	return nil
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	return errors.Join(t.fallback.Delete(ctx, key), t.primary.Delete(ctx, key))
}
