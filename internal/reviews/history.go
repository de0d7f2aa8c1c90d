package reviews

import (
	"context"
	"sync"
	"time"
)

// Entry is one submitted decision, kept for the console's own audit trail.
type Entry struct {
	ID           string    `json:"id"`
	CheckpointID string    `json:"checkpoint_id"`
	InvoiceID    string    `json:"invoice_id,omitempty"`
	Decision     string    `json:"decision"`
	ReviewerID   string    `json:"reviewer_id"`
	Notes        string    `json:"notes,omitempty"`
	Outcome      string    `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	NextStage    string    `json:"next_stage,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
)

// History stores submitted decisions.
type History interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
}

// MemoryHistory is an in-memory History.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryHistory constructs a MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

// Append records an entry.
func (h *MemoryHistory) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return nil
}

// List returns entries newest first. limit <= 0 returns everything.
func (h *MemoryHistory) List(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(h.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.entries[i])
	}
	return out, nil
}
