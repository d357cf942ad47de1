package types

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds the applicant details the page collaborator fills from.
type Profile struct {
	FullName string            `json:"full_name"`
	Email    string            `json:"email" validate:"omitempty,email"`
	Phone    string            `json:"phone,omitempty"`
	Location string            `json:"location,omitempty"`
	Links    map[string]string `json:"links,omitempty"`
}

// Settings are persisted user preferences that override configuration defaults.
type Settings struct {
	SyncEnabled       bool   `json:"sync_enabled"`
	TailoringMode     string `json:"tailoring_mode,omitempty" validate:"omitempty,oneof=disabled background blocking"`
	ReviewIterations  int    `json:"review_iterations,omitempty" validate:"gte=0"`
	ReviewerMaxPasses int    `json:"reviewer_max_passes,omitempty" validate:"gte=0"`
}

// ActiveResumeSnapshot is the persisted copy of the resume the user chose to apply with.
type ActiveResumeSnapshot struct {
	Text           string    `json:"text"`
	Scores         Scores    `json:"scores"`
	ReviewerPassed bool      `json:"reviewer_passed"`
	JobTitle       string    `json:"job_title,omitempty"`
	SavedAt        time.Time `json:"saved_at"`
}

// HistoryKind classifies history log entries.
type HistoryKind string

const (
	HistoryTailor    HistoryKind = "tailor"
	HistoryReview    HistoryKind = "review"
	HistoryUse       HistoryKind = "use"
	HistoryAutopilot HistoryKind = "autopilot"
	HistoryFieldSync HistoryKind = "field_sync"
)

// HistoryEntry is one line in the bounded, append-only history log.
type HistoryEntry struct {
	ID     uuid.UUID   `json:"id"`
	Kind   HistoryKind `json:"kind"`
	Title  string      `json:"title"`
	Detail string      `json:"detail,omitempty"`
	At     time.Time   `json:"at"`
}

// NewHistoryEntry stamps a new entry with a fresh ID and the current time.
func NewHistoryEntry(kind HistoryKind, title, detail string) HistoryEntry {
	return HistoryEntry{
		ID:     uuid.New(),
		Kind:   kind,
		Title:  title,
		Detail: detail,
		At:     time.Now().UTC(),
	}
}
