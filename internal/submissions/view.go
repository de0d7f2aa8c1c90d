package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"invoice-console/internal/backend"
	"invoice-console/internal/poller"
	"invoice-console/internal/shared/metrics"
	"invoice-console/internal/shared/telemetry"
)

// ReviewPath is where a paused submission sends the user.
const ReviewPath = "/review"

// View is the invoice submission screen. It has no polling; its only
// background work is the deferred redirect after a paused run.
type View struct {
	client        backend.Client
	redirectDelay time.Duration

	mu         sync.Mutex
	group      *poller.Group
	submitting bool
	result     *backend.RunResult
	errMsg     string
	redirect   string
}

// NewView constructs a submission view. A non-positive delay defaults to 2s.
func NewView(client backend.Client, redirectDelay time.Duration) *View {
	if redirectDelay <= 0 {
		redirectDelay = 2 * time.Second
	}
	return &View{
		client:        client,
		redirectDelay: redirectDelay,
		group:         poller.NewGroup(context.Background()),
	}
}

// Close cancels a pending redirect.
func (v *View) Close() {
	v.group.Close()
}

// Submit validates the form, posts it, and records the result. Validation
// failures never reach the backend.
func (v *View) Submit(ctx context.Context, form Form) (backend.RunResult, error) {
	if err := form.Validate(); err != nil {
		return backend.RunResult{}, err
	}
	payload, err := form.Payload()
	if err != nil {
		return backend.RunResult{}, err
	}

	v.mu.Lock()
	if v.submitting {
		v.mu.Unlock()
		return backend.RunResult{}, ErrSubmitInFlight
	}
	v.submitting = true
	v.result = nil
	v.errMsg = ""
	v.redirect = ""
	v.mu.Unlock()

	res, err := v.client.RunWorkflow(ctx, payload)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.submitting = false
	if err != nil {
		metrics.IncSubmission("error")
		v.errMsg = backend.Message(err, "")
		telemetry.Error("submissions.run_failed", map[string]any{
			"invoice_id": form.InvoiceID,
			"error":      err.Error(),
		})
		return backend.RunResult{}, fmt.Errorf("run workflow: %w", err)
	}

	metrics.IncSubmission(res.Status)
	v.result = &res
	telemetry.Info("submissions.run_started", map[string]any{
		"invoice_id":  form.InvoiceID,
		"thread_id":   res.ThreadID,
		"status":      res.Status,
		"attachments": len(form.Attachments),
	})
	if res.Paused() {
		v.group.After(v.redirectDelay, func(ctx context.Context) {
			v.mu.Lock()
			defer v.mu.Unlock()
			v.redirect = ReviewPath
		})
	}
	return res, nil
}

// Status looks up the current state of a submitted workflow.
func (v *View) Status(ctx context.Context, threadID string) (backend.StatusResult, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return backend.StatusResult{}, backend.ErrThreadIDRequired
	}
	return v.client.WorkflowStatus(ctx, threadID)
}

// DismissError clears the visible error.
func (v *View) DismissError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errMsg = ""
}

// Snapshot is the rendered submission screen.
type Snapshot struct {
	Form              Form               `json:"form"`
	Currencies        []string           `json:"currencies"`
	AllowedExtensions []string           `json:"allowed_extensions"`
	Submitting        bool               `json:"submitting"`
	Error             string             `json:"error,omitempty"`
	Result            *backend.RunResult `json:"result,omitempty"`
	Redirect          string             `json:"redirect,omitempty"`
}

// Render returns a blank form alongside the outcome of the last submission.
func (v *View) Render() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	snap := Snapshot{
		Form:              NewForm(),
		Currencies:        Currencies,
		AllowedExtensions: AllowedExtensions,
		Submitting:        v.submitting,
		Error:             v.errMsg,
		Redirect:          v.redirect,
	}
	if v.result != nil {
		res := *v.result
		snap.Result = &res
	}
	return snap
}

// IsValidation reports whether err was raised before any network call.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrUnsupportedCurrency) ||
		errors.Is(err, ErrUnsupportedAttachment)
}
