package submissions

import (
	"errors"
	"strings"
)

var (
	ErrMissingFields         = errors.New("missing required fields")
	ErrUnsupportedCurrency   = errors.New("unsupported currency")
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")
	ErrLineItemIndex         = errors.New("line item index out of range")
	ErrAttachmentIndex       = errors.New("attachment index out of range")
	ErrSubmitInFlight        = errors.New("submission already in progress")
)

// ValidationError lists the required fields left empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return ErrMissingFields.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrMissingFields
}
