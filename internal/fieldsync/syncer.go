package fieldsync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/types"
)

// FieldStore persists the local mapping.
type FieldStore interface {
	LoadLearnedFields(ctx context.Context) (types.LearnedFields, error)
	SaveLearnedFields(ctx context.Context, fields types.LearnedFields) error
}

// Peer is the remote copy of the mapping.
type Peer interface {
	PullLearnedFields(ctx context.Context) (types.LearnedFields, error)
	PushLearnedFields(ctx context.Context, fields types.LearnedFields) (types.LearnedFields, error)
}

// HistoryRecorder receives an entry for every hydrate or sync.
type HistoryRecorder interface {
	AppendHistory(ctx context.Context, entry types.HistoryEntry) error
}

// Direction names the operation a Result describes.
type Direction string

const (
	DirectionHydrate Direction = "hydrate"
	DirectionSync    Direction = "sync"
	DirectionLearn   Direction = "learn"
	// DirectionMerge describes an offline merge of two mappings.
	DirectionMerge   Direction = "merge"
)

// Result describes the outcome of one operation.
type Result struct {
	Direction Direction `json:"direction"`
	// Skipped is true when synchronisation is disabled; nothing was attempted.
	Skipped bool `json:"skipped"`
	// Persisted is true when the merged mapping differed from local and was saved.
	Persisted bool    `json:"persisted"`
	Summary   Summary `json:"summary"`
	Total     int     `json:"total"`
}

// Options configures a Syncer.
type Options struct {
	Enabled bool
	History HistoryRecorder
	Logger  *zap.Logger
	Now     func() time.Time
}

// Syncer applies every change to the local mapping through Merge.
type Syncer struct {
	store   FieldStore
	peer    Peer
	history HistoryRecorder
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	enabled bool
}

// NewSyncer creates a syncer. peer may be nil when only Learn is used.
func NewSyncer(store FieldStore, peer Peer, opts Options) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Syncer{store: store, peer: peer, history: opts.History, logger: logger, now: now, enabled: opts.Enabled}
}

// SetEnabled turns remote synchronisation on or off.
func (s *Syncer) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// Enabled reports whether remote synchronisation is on.
func (s *Syncer) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Hydrate pulls the remote mapping and merges it into local.
func (s *Syncer) Hydrate(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return &Result{Direction: DirectionHydrate, Skipped: true}, nil
	}
	if s.peer == nil {
		return nil, &Error{Op: "hydrate", Message: "no remote peer configured"}
	}

	local, err := s.store.LoadLearnedFields(ctx)
	if err != nil {
		return nil, &Error{Op: "hydrate", Message: "failed to load local fields", Cause: err}
	}
	remote, err := s.peer.PullLearnedFields(ctx)
	if err != nil {
		return nil, &Error{Op: "hydrate", Message: "failed to pull remote fields", Cause: err}
	}

	return s.apply(ctx, DirectionHydrate, local, remote)
}

// Sync pushes the local mapping and merges whatever the acknowledgement returns.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return &Result{Direction: DirectionSync, Skipped: true}, nil
	}
	if s.peer == nil {
		return nil, &Error{Op: "sync", Message: "no remote peer configured"}
	}

	local, err := s.store.LoadLearnedFields(ctx)
	if err != nil {
		return nil, &Error{Op: "sync", Message: "failed to load local fields", Cause: err}
	}
	ack, err := s.peer.PushLearnedFields(ctx, local)
	if err != nil {
		return nil, &Error{Op: "sync", Message: "failed to push local fields", Cause: err}
	}

	return s.apply(ctx, DirectionSync, local, ack)
}

// Learn records a locally resolved field. A zero UpdatedAt is stamped with the current time.
func (s *Syncer) Learn(ctx context.Context, entry types.LearnedFieldEntry) (*Result, error) {
	if strings.TrimSpace(entry.Key) == "" {
		return nil, &Error{Op: "learn", Message: "entry key is required"}
	}
	if entry.UpdatedAt == 0 {
		entry.UpdatedAt = s.now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := s.store.LoadLearnedFields(ctx)
	if err != nil {
		return nil, &Error{Op: "learn", Message: "failed to load local fields", Cause: err}
	}
	return s.apply(ctx, DirectionLearn, local, types.LearnedFields{entry.Key: entry})
}

// Fields returns a copy of the current local mapping.
func (s *Syncer) Fields(ctx context.Context) (types.LearnedFields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.LoadLearnedFields(ctx)
}

func (s *Syncer) apply(ctx context.Context, dir Direction, local, incoming types.LearnedFields) (*Result, error) {
	merged := Merge(local, incoming)
	res := &Result{
		Direction: dir,
		Summary:   Summarize(local, merged),
		Total:     len(merged),
	}

	if merged.Equal(local) {
		s.logger.Debug("learned fields unchanged", zap.String("direction", string(dir)), zap.Int("total", res.Total))
		s.record(ctx, res)
		return res, nil
	}

	if err := s.store.SaveLearnedFields(ctx, merged); err != nil {
		return nil, &Error{Op: string(dir), Message: "failed to save merged fields", Cause: err}
	}
	res.Persisted = true

	s.logger.Info("learned fields merged",
		zap.String("direction", string(dir)),
		zap.Int("added", res.Summary.Added),
		zap.Int("updated", res.Summary.Updated),
		zap.Int("total", res.Total))
	s.record(ctx, res)
	return res, nil
}

// record logs hydrate and sync runs; single learned answers are too frequent to keep.
func (s *Syncer) record(ctx context.Context, res *Result) {
	if s.history == nil || res.Direction == DirectionLearn {
		return
	}
	detail := fmt.Sprintf("%s: %d added, %d updated, %d total", res.Direction, res.Summary.Added, res.Summary.Updated, res.Total)
	if err := s.history.AppendHistory(ctx, types.NewHistoryEntry(types.HistoryFieldSync, "Field mapping", detail)); err != nil {
		s.logger.Warn("failed to record history", zap.Error(err))
	}
}
