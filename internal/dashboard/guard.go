package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"invoice-console/internal/backend"
	"invoice-console/internal/shared/metrics"
	"invoice-console/internal/shared/telemetry"
)

var (
	ErrDeleteInFlight = errors.New("delete already in progress")
	ErrDeleteDeclined = errors.New("delete not confirmed")
)

// Confirmer asks the user to approve an irreversible action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// AlwaysConfirm approves every prompt.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) bool { return true })

// DeletePrompt is the confirmation text for deleting an invoice's workflow.
func DeletePrompt(invoiceID string) string {
	return fmt.Sprintf("Are you sure you want to delete invoice %s? This action cannot be undone.", invoiceID)
}

// Deleting reports whether a delete for threadID is in flight.
func (v *View) Deleting(threadID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deleting[threadID]
}

// Delete removes the workflow threadID after confirm approves it. While the
// call is in flight further deletes of the same thread are rejected; other
// threads are unaffected. Success re-fetches the whole collection.
func (v *View) Delete(ctx context.Context, threadID string, confirm Confirmer) error {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return backend.ErrThreadIDRequired
	}

	v.mu.Lock()
	if v.deleting[threadID] {
		v.mu.Unlock()
		return ErrDeleteInFlight
	}
	label := threadID
	if rec, ok := v.findLocked(threadID); ok && rec.InvoiceID != "" {
		label = rec.InvoiceID
	}
	v.mu.Unlock()

	if confirm == nil || !confirm.Confirm(ctx, DeletePrompt(label)) {
		return ErrDeleteDeclined
	}

	v.mu.Lock()
	if v.deleting[threadID] {
		v.mu.Unlock()
		return ErrDeleteInFlight
	}
	v.deleting[threadID] = true
	v.mu.Unlock()

	err := v.client.DeleteWorkflow(ctx, threadID)
	metrics.IncDelete(err)

	v.mu.Lock()
	delete(v.deleting, threadID)
	if err != nil {
		v.errMsg = backend.Message(err, "")
		v.mu.Unlock()
		telemetry.Error("dashboard.delete_failed", map[string]any{"view": viewName, "thread_id": threadID, "err": err.Error()})
		return err
	}
	v.errMsg = ""
	v.mu.Unlock()
	telemetry.Info("dashboard.deleted", map[string]any{"view": viewName, "thread_id": threadID})

	_ = v.Refresh(ctx)

	v.mu.Lock()
	if v.selected == threadID {
		v.selected = ""
	}
	v.mu.Unlock()
	return nil
}
