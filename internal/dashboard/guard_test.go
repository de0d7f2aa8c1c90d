package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"invoice-console/internal/backend"
	"invoice-console/internal/workflows"
)

func TestDeletePromptUsesInvoiceID(t *testing.T) {
	view := NewView(&fakeClient{list: staticList(fixture())}, time.Second)
	_ = view.Refresh(context.Background())

	var prompt string
	err := view.Delete(context.Background(), "t-2", ConfirmFunc(func(_ context.Context, p string) bool {
		prompt = p
		return false
	}))
	if !errors.Is(err, ErrDeleteDeclined) {
		t.Fatalf("expected ErrDeleteDeclined, got %v", err)
	}
	want := "Are you sure you want to delete invoice INV-2? This action cannot be undone."
	if prompt != want {
		t.Fatalf("unexpected prompt %q", prompt)
	}
}

func TestDeclinedDeleteMakesNoCall(t *testing.T) {
	client := &fakeClient{list: staticList(fixture())}
	view := NewView(client, time.Second)

	deny := ConfirmFunc(func(context.Context, string) bool { return false })
	if err := view.Delete(context.Background(), "t-1", deny); !errors.Is(err, ErrDeleteDeclined) {
		t.Fatalf("expected ErrDeleteDeclined, got %v", err)
	}
	if err := view.Delete(context.Background(), "t-1", nil); !errors.Is(err, ErrDeleteDeclined) {
		t.Fatalf("expected nil confirmer to decline, got %v", err)
	}
	if client.deleteCalls.Load() != 0 {
		t.Fatalf("expected no backend calls, got %d", client.deleteCalls.Load())
	}
}

func TestDeleteSuccessRefetchesAndClearsSelection(t *testing.T) {
	var mu sync.Mutex
	records := fixture()
	client := &fakeClient{
		list: func(context.Context) ([]workflows.Record, error) {
			mu.Lock()
			defer mu.Unlock()
			return records, nil
		},
		remove: func(_ context.Context, threadID string) error {
			mu.Lock()
			defer mu.Unlock()
			kept := records[:0:0]
			for _, r := range records {
				if r.ThreadID != threadID {
					kept = append(kept, r)
				}
			}
			records = kept
			return nil
		},
	}
	view := NewView(client, time.Second)
	_ = view.Refresh(context.Background())
	view.Select("t-3")

	before := client.listCalls.Load()
	if err := view.Delete(context.Background(), "t-3", AlwaysConfirm); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if client.listCalls.Load() != before+1 {
		t.Fatalf("expected one re-fetch, got %d", client.listCalls.Load()-before)
	}
	if _, ok := view.Detail(); ok {
		t.Fatal("expected selection to be cleared")
	}
	if snap := view.Render(); snap.Total != 2 {
		t.Fatalf("expected 2 records after delete, got %d", snap.Total)
	}
	if view.Deleting("t-3") {
		t.Fatal("expected lock to be released")
	}
}

func TestDeleteFailureSurfacesErrorAndUnlocks(t *testing.T) {
	attempts := 0
	client := &fakeClient{
		list: staticList(fixture()),
		remove: func(context.Context, string) error {
			attempts++
			if attempts == 1 {
				return &backend.APIError{Status: 404, Detail: "Workflow not found"}
			}
			return nil
		},
	}
	view := NewView(client, time.Second)
	_ = view.Refresh(context.Background())
	before := client.listCalls.Load()

	if err := view.Delete(context.Background(), "t-1", AlwaysConfirm); err == nil {
		t.Fatal("expected delete error")
	}
	if got := view.Render().Error; got != "Workflow not found" {
		t.Fatalf("expected backend detail, got %q", got)
	}
	if view.Deleting("t-1") {
		t.Fatal("expected lock to be released after failure")
	}
	if client.listCalls.Load() != before {
		t.Fatal("failed delete should not re-fetch")
	}

	if err := view.Delete(context.Background(), "t-1", AlwaysConfirm); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestConcurrentDeletesLockPerThread(t *testing.T) {
	releaseT1 := make(chan struct{})
	t1Started := make(chan struct{})
	client := &fakeClient{
		list: staticList([]workflows.Record{{ThreadID: "T1", InvoiceID: "INV-1"}, {ThreadID: "T2", InvoiceID: "INV-2"}}),
		remove: func(_ context.Context, threadID string) error {
			if threadID == "T1" {
				close(t1Started)
				<-releaseT1
			}
			return nil
		},
	}
	view := NewView(client, time.Second)
	_ = view.Refresh(context.Background())

	t1Done := make(chan error, 1)
	go func() { t1Done <- view.Delete(context.Background(), "T1", AlwaysConfirm) }()
	<-t1Started

	if !view.Deleting("T1") {
		t.Fatal("expected T1 to be marked deleting")
	}
	if view.Deleting("T2") {
		t.Fatal("T2 must stay actionable while T1 is in flight")
	}
	rows := view.Render().Rows
	for _, row := range rows {
		if row.Deleting != (row.ThreadID == "T1") {
			t.Fatalf("unexpected deleting flag on %s: %v", row.ThreadID, row.Deleting)
		}
	}

	if err := view.Delete(context.Background(), "T1", AlwaysConfirm); !errors.Is(err, ErrDeleteInFlight) {
		t.Fatalf("expected second T1 delete to be rejected, got %v", err)
	}
	if err := view.Delete(context.Background(), "T2", AlwaysConfirm); err != nil {
		t.Fatalf("T2 delete while T1 in flight: %v", err)
	}
	if !view.Deleting("T1") {
		t.Fatal("T1 should still be in flight")
	}

	close(releaseT1)
	if err := <-t1Done; err != nil {
		t.Fatalf("T1 delete: %v", err)
	}
	if client.deleteCalls.Load() != 2 {
		t.Fatalf("expected 2 backend deletes, got %d", client.deleteCalls.Load())
	}
}

func TestDeleteRequiresThreadID(t *testing.T) {
	view := NewView(&fakeClient{}, time.Second)
	if err := view.Delete(context.Background(), "  ", AlwaysConfirm); !errors.Is(err, backend.ErrThreadIDRequired) {
		t.Fatalf("expected ErrThreadIDRequired, got %v", err)
	}
}
