package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrThreadIDRequired     = errors.New("thread_id is required")
	ErrCheckpointIDRequired = errors.New("checkpoint_id is required")
)

// APIError is a non-2xx backend response. Detail is the backend's human-readable message, if any.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status code %d", e.Status)
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return apiErr
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		apiErr.Detail = strings.TrimSpace(text)
		return apiErr
	}
	// validation errors come back as a structured list
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Detail); err == nil && compact.String() != "null" {
		apiErr.Detail = compact.String()
	}
	return apiErr
}

// Message picks the text shown to a user for err: the backend detail when present,
// then fallback, then the error text itself.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}
