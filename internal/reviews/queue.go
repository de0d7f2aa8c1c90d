package reviews

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoice-console/internal/backend"
	"invoice-console/internal/poller"
	"invoice-console/internal/shared/metrics"
	"invoice-console/internal/shared/telemetry"
	"invoice-console/internal/workflows"
)

const (
	viewName = "reviews"

	submitFallback = "Failed to submit decision"
	noReason       = "No detailed reason available"
)

var (
	ErrNoReviewOpen   = errors.New("no review is open")
	ErrReviewNotFound = errors.New("review not found in pending queue")
	ErrSubmitInFlight = errors.New("decision submission already in progress")
)

// Options tunes a Queue. Zero values use the console defaults.
type Options struct {
	PollInterval       time.Duration
	AcceptRefreshDelay time.Duration
	History            History
	Now                func() time.Time
}

// Queue is the pending human review view: the last fetched queue plus the
// open review panel and its form.
type Queue struct {
	client      backend.Client
	history     History
	interval    time.Duration
	acceptDelay time.Duration
	now         func() time.Time

	mu         sync.Mutex
	group      *poller.Group
	polling    bool
	items      []workflows.ReviewItem
	loaded     bool
	errMsg     string
	notice     string
	open       string
	decision   workflows.Decision
	notes      string
	reviewerID string
	submitting bool
}

// NewQueue constructs an empty queue view.
func NewQueue(client backend.Client, opts Options) *Queue {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.AcceptRefreshDelay <= 0 {
		opts.AcceptRefreshDelay = 2 * time.Second
	}
	if opts.History == nil {
		opts.History = NewMemoryHistory()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Queue{
		client:      client,
		history:     opts.History,
		interval:    opts.PollInterval,
		acceptDelay: opts.AcceptRefreshDelay,
		now:         opts.Now,
	}
}

// Start begins polling the pending queue. A closed queue can be started again.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.group != nil && !q.group.Closed() && q.polling {
		q.mu.Unlock()
		return
	}
	if q.group == nil || q.group.Closed() {
		q.group = poller.NewGroup(ctx)
	}
	q.polling = true
	g := q.group
	q.mu.Unlock()

	g.Every(q.interval, func(ctx context.Context) {
		_ = q.Refresh(ctx)
	})
}

// Close stops polling and cancels a pending deferred re-fetch.
func (q *Queue) Close() {
	q.mu.Lock()
	g := q.group
	q.polling = false
	q.mu.Unlock()
	if g != nil {
		g.Close()
	}
}

// tasks returns the view's task group, creating it for views that never called Start.
func (q *Queue) tasks() *poller.Group {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.group == nil {
		q.group = poller.NewGroup(context.Background())
	}
	return q.group
}

// Refresh replaces the queue with the backend's pending items. The open
// panel survives only if its checkpoint is still pending.
func (q *Queue) Refresh(ctx context.Context) error {
	start := time.Now()
	items, err := q.client.PendingReviews(ctx)
	metrics.ObservePoll(viewName, time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		q.mu.Lock()
		q.errMsg = backend.Message(err, "")
		q.mu.Unlock()
		telemetry.Warn("reviews.refresh_failed", map[string]any{"view": viewName, "err": err.Error()})
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = items
	q.loaded = true
	q.errMsg = ""
	if q.open != "" && !hasCheckpoint(items, q.open) {
		q.resetFormLocked()
	}
	return nil
}

// Open shows the review panel for checkpointID with a freshly generated display reviewer id.
func (q *Queue) Open(checkpointID string) (Panel, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if checkpointID == "" || !hasCheckpoint(q.items, checkpointID) {
		return Panel{}, ErrReviewNotFound
	}
	q.open = checkpointID
	q.decision = ""
	q.notes = ""
	q.reviewerID = NewReviewerID(q.now())
	panel, _ := q.panelLocked()
	return panel, nil
}

// SetDecision selects ACCEPT or REJECT, case-insensitively. An empty value clears the selection.
func (q *Queue) SetDecision(raw string) error {
	d, err := workflows.ParseDecision(raw)
	if err != nil && !errors.Is(err, workflows.ErrDecisionRequired) {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.open == "" {
		return ErrNoReviewOpen
	}
	q.decision = d
	return nil
}

// SetNotes replaces the reviewer notes.
func (q *Queue) SetNotes(notes string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.open == "" {
		return ErrNoReviewOpen
	}
	q.notes = notes
	return nil
}

// Cancel dismisses the panel and clears its form.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resetFormLocked()
}

// DismissNotice clears the last acknowledgment and error.
func (q *Queue) DismissNotice() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notice = ""
	q.errMsg = ""
}

// Outcome is the result of a submitted decision.
type Outcome struct {
	CheckpointID string             `json:"checkpoint_id"`
	Decision     workflows.Decision `json:"decision"`
	ReviewerID   string             `json:"reviewer_id"`
	Message      string             `json:"message"`
	NextStage    string             `json:"next_stage,omitempty"`
	ResumeToken  string             `json:"resume_token,omitempty"`
}

// Submit sends the open panel's decision. Validation failures return before
// any backend call and leave the form as is. Once the backend answers, the
// panel is closed and the form cleared whatever the outcome.
func (q *Queue) Submit(ctx context.Context) (Outcome, error) {
	q.mu.Lock()
	if q.open == "" {
		q.mu.Unlock()
		return Outcome{}, ErrNoReviewOpen
	}
	if q.decision == "" {
		q.mu.Unlock()
		return Outcome{}, workflows.ErrDecisionRequired
	}
	if q.submitting {
		q.mu.Unlock()
		return Outcome{}, ErrSubmitInFlight
	}
	item, _ := findItem(q.items, q.open)
	req := backend.DecisionRequest{
		CheckpointID: q.open,
		Decision:     q.decision,
		Notes:        q.notes,
	}
	q.submitting = true
	q.mu.Unlock()

	return q.submit(ctx, req, item.InvoiceID)
}

// Decide submits a decision for checkpointID without opening a panel.
func (q *Queue) Decide(ctx context.Context, checkpointID, decision, notes string) (Outcome, error) {
	if checkpointID == "" {
		return Outcome{}, backend.ErrCheckpointIDRequired
	}
	d, err := workflows.ParseDecision(decision)
	if err != nil {
		return Outcome{}, err
	}
	req := backend.DecisionRequest{CheckpointID: checkpointID, Decision: d, Notes: notes}
	q.mu.Lock()
	item, _ := findItem(q.items, checkpointID)
	q.mu.Unlock()
	return q.submit(ctx, req, item.InvoiceID)
}

func (q *Queue) submit(ctx context.Context, req backend.DecisionRequest, invoiceID string) (Outcome, error) {
	req.ReviewerID = NewReviewerID(q.now())
	out := Outcome{CheckpointID: req.CheckpointID, Decision: req.Decision, ReviewerID: req.ReviewerID}

	res, err := q.client.SubmitDecision(ctx, req)
	metrics.IncDecision(string(req.Decision), err)
	q.record(ctx, req, invoiceID, res, err)

	q.mu.Lock()
	if q.open == req.CheckpointID {
		q.resetFormLocked()
	}
	q.submitting = false
	if err != nil {
		out.Message = backend.Message(err, submitFallback)
		q.errMsg = out.Message
		q.notice = ""
		q.mu.Unlock()
		telemetry.Error("reviews.decision_failed", map[string]any{
			"view":          viewName,
			"checkpoint_id": req.CheckpointID,
			"decision":      req.Decision,
			"reviewer_id":   req.ReviewerID,
			"err":           err.Error(),
		})
		return out, fmt.Errorf("submit decision: %w", err)
	}

	out.NextStage = res.NextStage
	out.ResumeToken = res.ResumeToken
	out.Message = fmt.Sprintf("Decision submitted successfully! Reviewer ID: %s", req.ReviewerID)
	if req.Decision == workflows.DecisionAccept {
		out.Message += "\n\nWorkflow is resuming automatically..."
	}
	q.notice = out.Message
	q.errMsg = ""
	q.mu.Unlock()

	telemetry.Info("reviews.decision_submitted", map[string]any{
		"view":          viewName,
		"checkpoint_id": req.CheckpointID,
		"decision":      req.Decision,
		"reviewer_id":   req.ReviewerID,
		"next_stage":    res.NextStage,
	})

	// the backend resumes asynchronously; a later poll observes the item leaving the queue
	if req.Decision == workflows.DecisionAccept {
		q.tasks().After(q.acceptDelay, func(ctx context.Context) {
			_ = q.Refresh(ctx)
		})
	}
	_ = q.Refresh(ctx)
	return out, nil
}

func (q *Queue) record(ctx context.Context, req backend.DecisionRequest, invoiceID string, res backend.DecisionResult, submitErr error) {
	entry := Entry{
		ID:           uuid.NewString(),
		CheckpointID: req.CheckpointID,
		InvoiceID:    invoiceID,
		Decision:     string(req.Decision),
		ReviewerID:   req.ReviewerID,
		Notes:        req.Notes,
		Outcome:      OutcomeSubmitted,
		NextStage:    res.NextStage,
		CreatedAt:    q.now().UTC(),
	}
	if submitErr != nil {
		entry.Outcome = OutcomeFailed
		entry.Error = backend.Message(submitErr, "")
	}
	if err := q.history.Append(context.WithoutCancel(ctx), entry); err != nil {
		telemetry.Warn("reviews.history_append_failed", map[string]any{"checkpoint_id": req.CheckpointID, "err": err.Error()})
	}
}

// History returns recorded decisions, newest first.
func (q *Queue) History(ctx context.Context, limit int) ([]Entry, error) {
	return q.history.List(ctx, limit)
}

func (q *Queue) resetFormLocked() {
	q.open = ""
	q.decision = ""
	q.notes = ""
	q.reviewerID = ""
}

func hasCheckpoint(items []workflows.ReviewItem, checkpointID string) bool {
	_, ok := findItem(items, checkpointID)
	return ok
}

func findItem(items []workflows.ReviewItem, checkpointID string) (workflows.ReviewItem, bool) {
	for _, it := range items {
		if it.CheckpointID == checkpointID {
			return it, true
		}
	}
	return workflows.ReviewItem{}, false
}
