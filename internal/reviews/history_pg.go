package reviews

import (
	"context"
	"database/sql"
)

const defaultHistoryLimit = 100

// PGHistory implements History on the decision_history table.
type PGHistory struct {
	DB *sql.DB
}

// Append inserts an entry.
func (h *PGHistory) Append(ctx context.Context, e Entry) error {
	const query = `
INSERT INTO decision_history (
    id,
    checkpoint_id,
    invoice_id,
    decision,
    reviewer_id,
    notes,
    outcome,
    error,
    next_stage,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := h.DB.ExecContext(
		ctx,
		query,
		e.ID,
		e.CheckpointID,
		nullString(e.InvoiceID),
		e.Decision,
		e.ReviewerID,
		nullString(e.Notes),
		e.Outcome,
		nullString(e.Error),
		nullString(e.NextStage),
		e.CreatedAt,
	)
	return err
}

// List returns entries newest first.
func (h *PGHistory) List(ctx context.Context, limit int) ([]Entry, error) {
	const query = `
SELECT id, checkpoint_id, invoice_id, decision, reviewer_id, notes, outcome, error, next_stage, created_at
FROM decision_history
ORDER BY created_at DESC
LIMIT $1`

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := h.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var invoiceID, notes, errText, nextStage sql.NullString
		if err := rows.Scan(&e.ID, &e.CheckpointID, &invoiceID, &e.Decision, &e.ReviewerID, &notes, &e.Outcome, &errText, &nextStage, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.InvoiceID = invoiceID.String
		e.Notes = notes.String
		e.Error = errText.String
		e.NextStage = nextStage.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
