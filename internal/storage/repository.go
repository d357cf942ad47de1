package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jonathan/apply-agent/internal/types"
)

// Keys under which the repository persists state.
const (
	KeyActiveResume  = "active_resume"
	KeyLearnedFields = "learned_fields"
	KeyProfile       = "profile"
	KeySettings      = "settings"
	KeyHistory       = "history"
)

// DefaultHistoryLimit is how many history entries are retained.
const DefaultHistoryLimit = 50

// Repository reads and writes typed state over a Store.
type Repository struct {
	store        Store
	historyLimit int

	// historyMu serialises the read-modify-write in AppendHistory.
	historyMu sync.Mutex
}

// NewRepository creates a repository. A non-positive historyLimit uses DefaultHistoryLimit.
func NewRepository(store Store, historyLimit int) *Repository {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Repository{store: store, historyLimit: historyLimit}
}

func (r *Repository) load(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, &Error{Op: "get", Key: key, Message: "stored value is not valid JSON", Cause: err}
	}
	return true, nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return r.store.Set(ctx, key, data)
}

// LoadActiveResume returns the saved resume snapshot, or nil if none was saved.
func (r *Repository) LoadActiveResume(ctx context.Context) (*types.ActiveResumeSnapshot, error) {
	var snap types.ActiveResumeSnapshot
	found, err := r.load(ctx, KeyActiveResume, &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

func (r *Repository) SaveActiveResume(ctx context.Context, snap types.ActiveResumeSnapshot) error {
	return r.save(ctx, KeyActiveResume, snap)
}

// LoadLearnedFields returns the local learned-field mapping; never nil.
func (r *Repository) LoadLearnedFields(ctx context.Context) (types.LearnedFields, error) {
	fields := types.LearnedFields{}
	if _, err := r.load(ctx, KeyLearnedFields, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = types.LearnedFields{}
	}
	return fields, nil
}

func (r *Repository) SaveLearnedFields(ctx context.Context, fields types.LearnedFields) error {
	return r.save(ctx, KeyLearnedFields, fields)
}

func (r *Repository) LoadProfile(ctx context.Context) (types.Profile, error) {
	var p types.Profile
	_, err := r.load(ctx, KeyProfile, &p)
	return p, err
}

func (r *Repository) SaveProfile(ctx context.Context, p types.Profile) error {
	return r.save(ctx, KeyProfile, p)
}

// LoadSettings returns the persisted settings, or defaults if none were saved.
func (r *Repository) LoadSettings(ctx context.Context, defaults types.Settings) (types.Settings, error) {
	s := defaults
	if _, err := r.load(ctx, KeySettings, &s); err != nil {
		return defaults, err
	}
	return s, nil
}

func (r *Repository) SaveSettings(ctx context.Context, s types.Settings) error {
	return r.save(ctx, KeySettings, s)
}

// AppendHistory adds an entry and drops the oldest ones beyond the limit.
func (r *Repository) AppendHistory(ctx context.Context, entry types.HistoryEntry) error {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()

	var entries []types.HistoryEntry
	if _, err := r.load(ctx, KeyHistory, &entries); err != nil {
		return err
	}
	entries = append(entries, entry)
	if len(entries) > r.historyLimit {
		entries = entries[len(entries)-r.historyLimit:]
	}
	return r.save(ctx, KeyHistory, entries)
}

// History returns the retained entries, newest first.
func (r *Repository) History(ctx context.Context) ([]types.HistoryEntry, error) {
	var entries []types.HistoryEntry
	if _, err := r.load(ctx, KeyHistory, &entries); err != nil {
		return nil, err
	}
	out := make([]types.HistoryEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out, nil
}
