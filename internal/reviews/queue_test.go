package reviews

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"invoice-console/internal/backend"
	"invoice-console/internal/workflows"
)

type fakeClient struct {
	mu        sync.Mutex
	items     []workflows.ReviewItem
	listErr   error
	submitErr error
	requests  []backend.DecisionRequest

	pendingCalls atomic.Int32
}

func (f *fakeClient) ListWorkflows(context.Context) ([]workflows.Record, error) {
	return []workflows.Record{}, nil
}

func (f *fakeClient) DeleteWorkflow(context.Context, string) error { return nil }

func (f *fakeClient) RunWorkflow(context.Context, backend.Multipart) (backend.RunResult, error) {
	return backend.RunResult{}, nil
}

func (f *fakeClient) PendingReviews(context.Context) ([]workflows.ReviewItem, error) {
	f.pendingCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeClient) SubmitDecision(_ context.Context, req backend.DecisionRequest) (backend.DecisionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.submitErr != nil {
		return backend.DecisionResult{}, f.submitErr
	}
	return backend.DecisionResult{ResumeToken: "t:" + req.CheckpointID, NextStage: "RECONCILE"}, nil
}

func (f *fakeClient) WorkflowStatus(context.Context, string) (backend.StatusResult, error) {
	return backend.StatusResult{}, nil
}

func (f *fakeClient) setItems(items []workflows.ReviewItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = items
}

func (f *fakeClient) sent() []backend.DecisionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.DecisionRequest(nil), f.requests...)
}

func amount(v float64) *float64 { return &v }

func pendingItems() []workflows.ReviewItem {
	return []workflows.ReviewItem{
		{CheckpointID: "cp-1", InvoiceID: "INV-1", VendorName: "Acme", Amount: amount(99.9), CreatedAt: "2024-05-01T10:00:00Z", FailedStage: "VALIDATE", MismatchReason: "PO amount differs"},
		{CheckpointID: "cp-2", InvoiceID: "INV-2", VendorName: "Globex", CreatedAt: "2024-05-01T11:00:00Z"},
	}
}

// tickingClock advances one millisecond per call so consecutive reviewer ids differ.
func tickingClock() func() time.Time {
	var n atomic.Int64
	base := time.UnixMilli(1714557600000)
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Millisecond)
	}
}

func newTestQueue(t *testing.T, client *fakeClient) *Queue {
	t.Helper()
	q := NewQueue(client, Options{
		PollInterval:       time.Hour,
		AcceptRefreshDelay: 20 * time.Millisecond,
		Now:                tickingClock(),
	})
	t.Cleanup(q.Close)
	if err := q.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return q
}

func waitForCalls(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for counter.Load() < want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if counter.Load() < want {
		t.Fatalf("expected at least %d calls, got %d", want, counter.Load())
	}
}

func TestRenderFormatsQueue(t *testing.T) {
	client := &fakeClient{items: pendingItems()}
	q := newTestQueue(t, client)

	snap := q.Render()
	if !snap.Loaded || len(snap.Items) != 2 || snap.Panel != nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Items[0].Amount != "$99.90" || snap.Items[0].Reason != "PO amount differs" {
		t.Fatalf("unexpected first row: %+v", snap.Items[0])
	}
	if snap.Items[1].Amount != workflows.NotApplicable || snap.Items[1].FailedStage != workflows.NotApplicable || snap.Items[1].Reason != workflows.NotApplicable {
		t.Fatalf("unexpected second row: %+v", snap.Items[1])
	}
}

func TestOpenGeneratesDisplayReviewerID(t *testing.T) {
	q := newTestQueue(t, &fakeClient{items: pendingItems()})

	if _, err := q.Open("cp-missing"); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}
	panel, err := q.Open("cp-2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !reviewerIDPattern.MatchString(panel.ReviewerID) {
		t.Fatalf("unexpected reviewer id %q", panel.ReviewerID)
	}
	if panel.Reason != "No detailed reason available" || panel.CanSubmit {
		t.Fatalf("unexpected panel: %+v", panel)
	}
}

func TestSubmitWithoutDecisionMakesNoCall(t *testing.T) {
	client := &fakeClient{items: pendingItems()}
	q := newTestQueue(t, client)
	q.Open("cp-1")
	_ = q.SetNotes("checked")

	if _, err := q.Submit(context.Background()); !errors.Is(err, workflows.ErrDecisionRequired) {
		t.Fatalf("expected ErrDecisionRequired, got %v", err)
	}
	if _, err := q.Decide(context.Background(), "cp-1", "", "notes"); !errors.Is(err, workflows.ErrDecisionRequired) {
		t.Fatalf("expected ErrDecisionRequired from Decide, got %v", err)
	}
	if got := len(client.sent()); got != 0 {
		t.Fatalf("expected zero backend calls, got %d", got)
	}
	panel := q.Render().Panel
	if panel == nil || panel.Notes != "checked" {
		t.Fatalf("validation failure should keep the form, got %+v", panel)
	}
}

func TestSubmitWithoutOpenReview(t *testing.T) {
	client := &fakeClient{items: pendingItems()}
	q := newTestQueue(t, client)
	if _, err := q.Submit(context.Background()); !errors.Is(err, ErrNoReviewOpen) {
		t.Fatalf("expected ErrNoReviewOpen, got %v", err)
	}
	if err := q.SetDecision("ACCEPT"); !errors.Is(err, ErrNoReviewOpen) {
		t.Fatalf("expected ErrNoReviewOpen, got %v", err)
	}
}

func TestSetDecisionRejectsUnknown(t *testing.T) {
	q := newTestQueue(t, &fakeClient{items: pendingItems()})
	q.Open("cp-1")
	if err := q.SetDecision("maybe"); !errors.Is(err, workflows.ErrUnknownDecision) {
		t.Fatalf("expected ErrUnknownDecision, got %v", err)
	}
	if err := q.SetDecision("reject"); err != nil {
		t.Fatalf("SetDecision: %v", err)
	}
	if err := q.SetDecision(""); err != nil {
		t.Fatalf("clearing decision: %v", err)
	}
	if q.Render().Panel.CanSubmit {
		t.Fatal("cleared decision should disable submit")
	}
}

func TestSubmitAcceptSchedulesDeferredRefresh(t *testing.T) {
	client := &fakeClient{items: pendingItems()}
	q := newTestQueue(t, client)

	panel, _ := q.Open("cp-1")
	if err := q.SetDecision("accept"); err != nil {
		t.Fatalf("SetDecision: %v", err)
	}
	_ = q.SetNotes("vendor confirmed")
	before := client.pendingCalls.Load()

	out, err := q.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	sent := client.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one decision call, got %d", len(sent))
	}
	req := sent[0]
	if req.CheckpointID != "cp-1" || req.Decision != "ACCEPT" || req.Notes != "vendor confirmed" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.ReviewerID == panel.ReviewerID {
		t.Fatal("submitted reviewer id should be generated independently of the displayed one")
	}
	if !reviewerIDPattern.MatchString(req.ReviewerID) || out.ReviewerID != req.ReviewerID {
		t.Fatalf("unexpected reviewer id %q / %q", req.ReviewerID, out.ReviewerID)
	}
	want := "Decision submitted successfully! Reviewer ID: " + req.ReviewerID + "\n\nWorkflow is resuming automatically..."
	if out.Message != want {
		t.Fatalf("unexpected message %q", out.Message)
	}
	if out.NextStage != "RECONCILE" {
		t.Fatalf("unexpected next stage %q", out.NextStage)
	}

	snap := q.Render()
	if snap.Panel != nil || snap.Notice != want {
		t.Fatalf("expected panel dismissed with notice, got %+v", snap)
	}
	if client.pendingCalls.Load() < before+1 {
		t.Fatal("expected an immediate re-fetch")
	}
	waitForCalls(t, &client.pendingCalls, before+2)

	entries, _ := q.History(context.Background(), 10)
	if len(entries) != 1 || entries[0].Outcome != OutcomeSubmitted || entries[0].InvoiceID != "INV-1" {
		t.Fatalf("unexpected history: %+v", entries)
	}
}

func TestSubmitRejectHasNoDeferredRefresh(t *testing.T) {
	client := &fakeClient{items: pendingItems()}
	q := newTestQueue(t, client)
	q.Open("cp-2")
	_ = q.SetDecision("REJECT")
	before := client.pendingCalls.Load()

	out, err := q.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if strings.Contains(out.Message, "resuming") {
		t.Fatalf("reject should not mention resumption: %q", out.Message)
	}
	time.Sleep(60 * time.Millisecond)
	if got := client.pendingCalls.Load() - before; got != 1 {
		t.Fatalf("expected exactly one re-fetch, got %d", got)
	}
}

func TestSubmitFailureClearsFormAndSurfacesDetail(t *testing.T) {
	client := &fakeClient{items: pendingItems(), submitErr: &backend.APIError{Status: 400, Detail: "Checkpoint cp-1 already resolved"}}
	q := newTestQueue(t, client)
	q.Open("cp-1")
	_ = q.SetDecision("ACCEPT")
	_ = q.SetNotes("ok")

	out, err := q.Submit(context.Background())
	if err == nil {
		t.Fatal("expected submit error")
	}
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped APIError, got %v", err)
	}
	if out.Message != "Checkpoint cp-1 already resolved" {
		t.Fatalf("unexpected message %q", out.Message)
	}
	snap := q.Render()
	if snap.Panel != nil {
		t.Fatal("expected panel dismissed after failure")
	}
	if snap.Error != out.Message {
		t.Fatalf("expected error surfaced, got %q", snap.Error)
	}
	if _, err := q.Submit(context.Background()); !errors.Is(err, ErrNoReviewOpen) {
		t.Fatalf("form should not be resubmittable, got %v", err)
	}

	entries, _ := q.History(context.Background(), 10)
	if len(entries) != 1 || entries[0].Outcome != OutcomeFailed || entries[0].Error != out.Message {
		t.Fatalf("unexpected history: %+v", entries)
	}
}

func TestSubmitFailureWithoutDetailUsesFallback(t *testing.T) {
	client := &fakeClient{items: pendingItems(), submitErr: &backend.APIError{Status: 502}}
	q := newTestQueue(t, client)
	q.Open("cp-1")
	_ = q.SetDecision("REJECT")

	out, _ := q.Submit(context.Background())
	if out.Message != "Failed to submit decision" {
		t.Fatalf("unexpected message %q", out.Message)
	}
}

func TestRefreshKeepsOpenPanelWhileItemPending(t *testing.T) {
	client := &fakeClient{items: pendingItems()}
	q := newTestQueue(t, client)
	panel, _ := q.Open("cp-1")
	_ = q.SetDecision("REJECT")
	_ = q.SetNotes("draft")

	_ = q.Refresh(context.Background())
	got := q.Render().Panel
	if got == nil || got.Notes != "draft" || got.Decision != workflows.DecisionReject || got.ReviewerID != panel.ReviewerID {
		t.Fatalf("expected form to survive refresh, got %+v", got)
	}

	client.setItems(pendingItems()[1:])
	_ = q.Refresh(context.Background())
	if q.Render().Panel != nil {
		t.Fatal("expected panel cleared once the checkpoint left the queue")
	}
}

func TestRefreshFailureKeepsItems(t *testing.T) {
	client := &fakeClient{items: pendingItems()}
	q := newTestQueue(t, client)

	client.mu.Lock()
	client.listErr = errors.New("connection reset")
	client.mu.Unlock()
	_ = q.Refresh(context.Background())

	snap := q.Render()
	if snap.Error != "connection reset" || len(snap.Items) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestCloseCancelsDeferredRefresh(t *testing.T) {
	client := &fakeClient{items: pendingItems()}
	q := NewQueue(client, Options{PollInterval: time.Hour, AcceptRefreshDelay: 40 * time.Millisecond, Now: tickingClock()})
	_ = q.Refresh(context.Background())
	q.Open("cp-1")
	_ = q.SetDecision("ACCEPT")

	if _, err := q.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	q.Close()
	after := client.pendingCalls.Load()
	time.Sleep(80 * time.Millisecond)
	if client.pendingCalls.Load() != after {
		t.Fatal("deferred re-fetch fired after Close")
	}
}

func TestStartPolls(t *testing.T) {
	client := &fakeClient{items: pendingItems()}
	q := NewQueue(client, Options{PollInterval: 10 * time.Millisecond})
	q.Start(context.Background())
	waitForCalls(t, &client.pendingCalls, 3)
	q.Close()
}

func TestStartAfterCloseResumesPolling(t *testing.T) {
	client := &fakeClient{items: pendingItems()}
	q := NewQueue(client, Options{PollInterval: 10 * time.Millisecond})
	t.Cleanup(q.Close)

	q.Start(context.Background())
	waitForCalls(t, &client.pendingCalls, 2)
	q.Close()

	stopped := client.pendingCalls.Load()
	time.Sleep(30 * time.Millisecond)
	if client.pendingCalls.Load() != stopped {
		t.Fatal("expected no polls while closed")
	}

	q.Start(context.Background())
	waitForCalls(t, &client.pendingCalls, stopped+2)
}

func TestItemsReturnsCopy(t *testing.T) {
	q := newTestQueue(t, &fakeClient{items: pendingItems()})

	items := q.Items()
	items[0].CheckpointID = "mutated"
	if got := q.Items()[0].CheckpointID; got != "cp-1" {
		t.Fatalf("expected queue state untouched, got %q", got)
	}
}
