package dashboard

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"invoice-console/internal/backend"
	"invoice-console/internal/poller"
	"invoice-console/internal/shared/metrics"
	"invoice-console/internal/shared/telemetry"
	"invoice-console/internal/workflows"
)

const viewName = "dashboard"

// View is the state of the workflow table: the last fetched snapshot plus
// the local tab, sort, selection and in-flight deletes. Safe for concurrent use.
type View struct {
	client   backend.Client
	interval time.Duration

	mu       sync.Mutex
	group    *poller.Group
	records  []workflows.Record
	loaded   bool
	errMsg   string
	tab      workflows.Tab
	sort     workflows.SortState
	selected string
	deleting map[string]bool
}

// NewView returns a dashboard with an empty collection, the all tab and created_at desc sorting.
func NewView(client backend.Client, interval time.Duration) *View {
	return &View{
		client:   client,
		interval: interval,
		tab:      workflows.TabAll,
		sort:     workflows.DefaultSort(),
		deleting: make(map[string]bool),
	}
}

// Start begins polling. Calling Start on a running view is a no-op.
func (v *View) Start(ctx context.Context) {
	v.mu.Lock()
	if v.group != nil && !v.group.Closed() {
		v.mu.Unlock()
		return
	}
	g := poller.NewGroup(ctx)
	v.group = g
	v.mu.Unlock()

	g.Every(v.interval, func(ctx context.Context) {
		_ = v.Refresh(ctx)
	})
}

// Close stops polling and any follow-up fetches.
func (v *View) Close() {
	v.mu.Lock()
	g := v.group
	v.mu.Unlock()
	if g != nil {
		g.Close()
	}
}

// Refresh fetches the full collection and replaces the snapshot with it.
// On failure the previous snapshot stays and the error is recorded.
func (v *View) Refresh(ctx context.Context) error {
	start := time.Now()
	records, err := v.client.ListWorkflows(ctx)
	metrics.ObservePoll(viewName, time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		v.mu.Lock()
		v.errMsg = backend.Message(err, "")
		v.mu.Unlock()
		telemetry.Warn("dashboard.refresh_failed", map[string]any{"view": viewName, "err": err.Error()})
		return err
	}
	v.apply(records)
	return nil
}

func (v *View) apply(records []workflows.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = records
	v.loaded = true
	v.errMsg = ""
	if v.selected != "" && !containsKey(records, v.selected) {
		v.selected = ""
	}
}

// SetTab switches the active filter tab.
func (v *View) SetTab(tab workflows.Tab) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tab = tab
}

// ToggleSort applies a column-header click.
func (v *View) ToggleSort(field workflows.SortField) workflows.SortState {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sort = v.sort.Toggle(field)
	return v.sort
}

// SetSort sets field and direction explicitly.
func (v *View) SetSort(state workflows.SortState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sort = state
}

// Select holds the record with key for the detail view. It reports false when
// the key is not in the current snapshot.
func (v *View) Select(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !containsKey(v.records, key) {
		return false
	}
	v.selected = key
	return true
}

// ClearSelection closes the detail view.
func (v *View) ClearSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selected = ""
}

// DismissError clears the visible error.
func (v *View) DismissError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errMsg = ""
}

// Records returns the current snapshot.
func (v *View) Records() []workflows.Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.records)
}

// Row is one rendered table row.
type Row struct {
	ThreadID     string          `json:"thread_id"`
	CheckpointID string          `json:"checkpoint_id,omitempty"`
	InvoiceID    string          `json:"invoice_id"`
	VendorName   string          `json:"vendor_name"`
	Amount       string          `json:"amount"`
	Status       workflows.Badge `json:"status"`
	Decision     workflows.Badge `json:"decision"`
	CurrentStage string          `json:"current_stage"`
	CreatedAt    string          `json:"created_at"`
	Deleting     bool            `json:"deleting"`
	Selected     bool            `json:"selected"`
}

// Snapshot is the rendered dashboard. Loaded stays false until the first
// successful fetch, so an Error without Loaded replaces the table.
type Snapshot struct {
	Loaded bool                `json:"loaded"`
	Error  string              `json:"error,omitempty"`
	Tab    workflows.Tab       `json:"tab"`
	Sort   workflows.SortState `json:"sort"`
	Counts workflows.TabCounts `json:"counts"`
	Total  int                 `json:"total"`
	Rows   []Row               `json:"rows"`
}

// Render derives the table from the snapshot. Counts cover the unfiltered collection.
func (v *View) Render() Snapshot {
	v.mu.Lock()
	records := v.records
	tab, sortState := v.tab, v.sort
	selected := v.selected
	deleting := make(map[string]bool, len(v.deleting))
	for id := range v.deleting {
		deleting[id] = true
	}
	snap := Snapshot{Loaded: v.loaded, Error: v.errMsg, Tab: tab, Sort: sortState}
	v.mu.Unlock()

	visible := workflows.Apply(records, tab, sortState)
	snap.Counts = workflows.CountTabs(records)
	snap.Total = len(records)
	snap.Rows = make([]Row, 0, len(visible))
	for _, r := range visible {
		snap.Rows = append(snap.Rows, Row{
			ThreadID:     r.ThreadID,
			CheckpointID: r.CheckpointID,
			InvoiceID:    r.InvoiceID,
			VendorName:   r.VendorName,
			Amount:       workflows.FormatAmount(r.Amount),
			Status:       workflows.ClassifyStatus(r),
			Decision:     workflows.ClassifyDecision(r),
			CurrentStage: workflows.OrNA(r.CurrentStage),
			CreatedAt:    workflows.FormatTime(r.CreatedAt),
			Deleting:     r.ThreadID != "" && deleting[r.ThreadID],
			Selected:     selected != "" && r.Key() == selected,
		})
	}
	return snap
}

// Detail is the rendered detail view of the selected record.
type Detail struct {
	ThreadID     string                 `json:"thread_id"`
	CheckpointID string                 `json:"checkpoint_id"`
	InvoiceID    string                 `json:"invoice_id"`
	VendorName   string                 `json:"vendor_name"`
	Amount       string                 `json:"amount"`
	Status       workflows.Badge        `json:"status"`
	CurrentStage string                 `json:"current_stage"`
	Decision     *DecisionSection       `json:"decision,omitempty"`
	Payload      json.RawMessage        `json:"invoice_payload,omitempty"`
	Stages       []workflows.StageEntry `json:"stages"`
	CreatedAt    string                 `json:"created_at"`
	UpdatedAt    string                 `json:"updated_at,omitempty"`
}

// DecisionSection is shown only for decided records.
type DecisionSection struct {
	Decision   workflows.Badge `json:"decision"`
	ReviewerID string          `json:"reviewer_id"`
	Notes      string          `json:"notes"`
}

// Detail renders the selected record. ok is false when nothing is selected.
func (v *View) Detail() (Detail, bool) {
	v.mu.Lock()
	var (
		rec   workflows.Record
		found bool
	)
	if v.selected != "" {
		for _, r := range v.records {
			if r.Key() == v.selected {
				rec, found = r, true
				break
			}
		}
	}
	v.mu.Unlock()
	if !found {
		return Detail{}, false
	}
	return renderDetail(rec), true
}

func renderDetail(r workflows.Record) Detail {
	d := Detail{
		ThreadID:     workflows.OrNA(r.ThreadID),
		CheckpointID: workflows.OrNA(r.CheckpointID),
		InvoiceID:    workflows.OrNA(r.InvoiceID),
		VendorName:   workflows.OrNA(r.VendorName),
		Amount:       workflows.FormatAmount(r.Amount),
		Status:       workflows.ClassifyStatus(r),
		CurrentStage: workflows.OrNA(r.CurrentStage),
		Stages:       workflows.StageEntries(r.Stages),
		CreatedAt:    workflows.FormatTime(r.CreatedAt),
	}
	if r.UpdatedAt != "" {
		d.UpdatedAt = workflows.FormatTime(r.UpdatedAt)
	}
	if r.Decision != "" {
		d.Decision = &DecisionSection{
			Decision:   workflows.ClassifyDecision(r),
			ReviewerID: workflows.OrNA(r.ReviewerID),
			Notes:      workflows.OrNA(r.Notes),
		}
	}
	if r.HasPayload() {
		d.Payload = r.InvoicePayload
	}
	return d
}

func (v *View) findLocked(threadID string) (workflows.Record, bool) {
	for _, r := range v.records {
		if r.ThreadID == threadID {
			return r, true
		}
	}
	return workflows.Record{}, false
}

func containsKey(records []workflows.Record, key string) bool {
	for _, r := range records {
		if r.Key() == key {
			return true
		}
	}
	return false
}
