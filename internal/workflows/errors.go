package workflows

import "errors"

var (
	ErrUnknownTab       = errors.New("unknown filter")
	ErrUnknownSortField = errors.New("unknown sort field")
	ErrUnknownDirection = errors.New("unknown sort direction")
	ErrUnknownDecision  = errors.New("unknown decision")
	ErrDecisionRequired = errors.New("please select a decision (Accept or Reject)")
)
