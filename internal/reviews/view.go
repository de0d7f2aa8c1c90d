package reviews

import (
	"slices"

	"invoice-console/internal/workflows"
)

// ItemRow is one rendered queue row.
type ItemRow struct {
	CheckpointID string `json:"checkpoint_id"`
	ThreadID     string `json:"thread_id,omitempty"`
	InvoiceID    string `json:"invoice_id"`
	VendorName   string `json:"vendor_name"`
	Amount       string `json:"amount"`
	FailedStage  string `json:"failed_stage"`
	Reason       string `json:"reason"`
	CreatedAt    string `json:"created_at"`
	ReviewURL    string `json:"review_url,omitempty"`
}

// Panel is the open review with its decision form.
type Panel struct {
	ItemRow
	Decision   workflows.Decision `json:"decision"`
	Notes      string             `json:"notes"`
	ReviewerID string             `json:"reviewer_id"`
	Submitting bool               `json:"submitting"`
	CanSubmit  bool               `json:"can_submit"`
}

// Snapshot is the rendered review queue.
type Snapshot struct {
	Loaded bool      `json:"loaded"`
	Error  string    `json:"error,omitempty"`
	Notice string    `json:"notice,omitempty"`
	Items  []ItemRow `json:"items"`
	Panel  *Panel    `json:"panel,omitempty"`
}

// Render derives the queue view.
func (q *Queue) Render() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	snap := Snapshot{
		Loaded: q.loaded,
		Error:  q.errMsg,
		Notice: q.notice,
		Items:  make([]ItemRow, 0, len(q.items)),
	}
	for _, it := range q.items {
		snap.Items = append(snap.Items, renderItem(it, workflows.NotApplicable))
	}
	if panel, ok := q.panelLocked(); ok {
		snap.Panel = &panel
	}
	return snap
}

// Items returns the last fetched queue.
func (q *Queue) Items() []workflows.ReviewItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

func (q *Queue) panelLocked() (Panel, bool) {
	if q.open == "" {
		return Panel{}, false
	}
	item, ok := findItem(q.items, q.open)
	if !ok {
		return Panel{}, false
	}
	return Panel{
		ItemRow:    renderItem(item, noReason),
		Decision:   q.decision,
		Notes:      q.notes,
		ReviewerID: q.reviewerID,
		Submitting: q.submitting,
		CanSubmit:  q.decision != "" && !q.submitting,
	}, true
}

func renderItem(it workflows.ReviewItem, missingReason string) ItemRow {
	reason := it.Reason()
	if reason == "" {
		reason = missingReason
	}
	return ItemRow{
		CheckpointID: it.CheckpointID,
		ThreadID:     it.ThreadID,
		InvoiceID:    it.InvoiceID,
		VendorName:   it.VendorName,
		Amount:       workflows.FormatAmount(it.Amount),
		FailedStage:  workflows.OrNA(it.FailedStage),
		Reason:       reason,
		CreatedAt:    workflows.FormatTime(it.CreatedAt),
		ReviewURL:    it.ReviewURL,
	}
}
