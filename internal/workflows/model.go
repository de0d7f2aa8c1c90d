package workflows

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle status reported by the backend for a workflow thread.
type Status string

const (
	StatusPaused         Status = "PAUSED"
	StatusCompleted      Status = "COMPLETED"
	StatusManualHandling Status = "REQUIRES_MANUAL_HANDLING"
)

// Decision is a human review decision. The empty value means no decision was recorded.
type Decision string

const (
	DecisionAccept Decision = "ACCEPT"
	DecisionReject Decision = "REJECT"
)

// ParseDecision normalizes user input into a Decision. Input is case-insensitive.
func ParseDecision(raw string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(raw))) {
	case DecisionAccept:
		return DecisionAccept, nil
	case DecisionReject:
		return DecisionReject, nil
	case "":
		return "", ErrDecisionRequired
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDecision, raw)
	}
}

// Record is one workflow as returned by GET /workflow/all. It is read-only on the client.
type Record struct {
	ThreadID        string          `json:"thread_id"`
	CheckpointID    string          `json:"checkpoint_id,omitempty"`
	InvoiceID       string          `json:"invoice_id,omitempty"`
	VendorName      string          `json:"vendor_name,omitempty"`
	Amount          *float64        `json:"amount,omitempty"`
	InvoicePayload  json.RawMessage `json:"invoice_payload,omitempty"`
	Status          Status          `json:"status,omitempty"`
	Decision        Decision        `json:"decision,omitempty"`
	WentThroughHITL bool            `json:"went_through_hitl,omitempty"`
	ReasonForHold   string          `json:"reason_for_hold,omitempty"`
	FailedStage     string          `json:"failed_stage,omitempty"`
	MismatchReason  string          `json:"mismatch_reason,omitempty"`
	Paused          bool            `json:"paused,omitempty"`
	CurrentStage    string          `json:"current_stage,omitempty"`
	ReviewerID      string          `json:"reviewer_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
	UpdatedAt       string          `json:"updated_at,omitempty"`
	Stages          Stages          `json:"stages,omitempty"`
}

// Key is the identity used to hold a record selected across re-fetches.
func (r Record) Key() string {
	if r.ThreadID != "" {
		return r.ThreadID
	}
	return r.CheckpointID
}

// HasPayload reports whether the backend sent a non-null invoice payload.
func (r Record) HasPayload() bool {
	return !isEmptyJSON(r.InvoicePayload)
}

// ReviewItem is an entry of the pending human review queue.
type ReviewItem struct {
	CheckpointID   string   `json:"checkpoint_id"`
	ThreadID       string   `json:"thread_id,omitempty"`
	InvoiceID      string   `json:"invoice_id"`
	VendorName     string   `json:"vendor_name"`
	Amount         *float64 `json:"amount"`
	CreatedAt      string   `json:"created_at"`
	ReasonForHold  string   `json:"reason_for_hold,omitempty"`
	MismatchReason string   `json:"mismatch_reason,omitempty"`
	FailedStage    string   `json:"failed_stage,omitempty"`
	ReviewURL      string   `json:"review_url,omitempty"`
}

// Reason returns the most specific diagnostic available for why the item is held.
func (i ReviewItem) Reason() string {
	if i.MismatchReason != "" {
		return i.MismatchReason
	}
	return i.ReasonForHold
}

// Stage is one named per-stage result. Data is opaque.
type Stage struct {
	Name string
	Data json.RawMessage
}

// Stages keeps per-stage results in the order the backend sent them.
type Stages []Stage

// UnmarshalJSON decodes a JSON object while preserving key order.
func (s *Stages) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("stages: expected object, got %v", tok)
	}
	var out Stages
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("stages: expected key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("stages[%s]: %w", key, err)
		}
		out = append(out, Stage{Name: key, Data: raw})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// MarshalJSON encodes stages back into an object in their original order.
func (s Stages) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, st := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(st.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(st.Data) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(st.Data)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp formats the backend emits. Naive timestamps are read as UTC.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}
