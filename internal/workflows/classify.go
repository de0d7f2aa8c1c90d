package workflows

import (
	"fmt"
	"strings"
)

// ReviewState is the display-only classification of a record. It is never sent to the backend.
type ReviewState string

const (
	StateCompleted      ReviewState = "Completed"
	StatePaused         ReviewState = "Paused"
	StateAccepted       ReviewState = "Accepted"
	StateRejected       ReviewState = "Rejected"
	StateManualHandling ReviewState = "ManualHandling"
	StatePendingReview  ReviewState = "PendingReview"
	StatePending        ReviewState = "Pending"
	StateUnknown        ReviewState = "Unknown"
)

// Tone is the badge styling hint.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
	ToneInfo    Tone = "info"
)

// Badge is a rendered classification.
type Badge struct {
	State ReviewState `json:"state"`
	Label string      `json:"label"`
	Tone  Tone        `json:"tone"`
}

// ClassifyStatus returns the status-column badge. First match wins:
// COMPLETED, PAUSED, ACCEPT, REJECT, REQUIRES_MANUAL_HANDLING, then the raw status.
func ClassifyStatus(r Record) Badge {
	switch {
	case r.Status == StatusCompleted:
		return Badge{State: StateCompleted, Label: "Completed", Tone: ToneSuccess}
	case r.Status == StatusPaused:
		return Badge{State: StatePaused, Label: "Paused", Tone: ToneWarning}
	case r.Decision == DecisionAccept:
		return Badge{State: StateAccepted, Label: "Accepted", Tone: ToneSuccess}
	case r.Decision == DecisionReject:
		return Badge{State: StateRejected, Label: "Rejected", Tone: ToneDanger}
	case r.Status == StatusManualHandling:
		return Badge{State: StateManualHandling, Label: "Manual Handling", Tone: ToneDanger}
	}
	label := string(r.Status)
	if label == "" {
		label = "Unknown"
	}
	return Badge{State: StateUnknown, Label: label, Tone: ToneInfo}
}

// ClassifyDecision returns the decision-column badge, computed independently of ClassifyStatus.
func ClassifyDecision(r Record) Badge {
	if r.Decision != "" {
		switch r.Decision {
		case DecisionAccept:
			return Badge{State: StateAccepted, Label: string(r.Decision), Tone: ToneSuccess}
		case DecisionReject:
			return Badge{State: StateRejected, Label: string(r.Decision), Tone: ToneDanger}
		default:
			return Badge{State: StateUnknown, Label: string(r.Decision), Tone: ToneDanger}
		}
	}
	switch {
	case r.Status == StatusCompleted && (r.WentThroughHITL || r.ReasonForHold != ""):
		// Surfaced on purpose: the backend completed a reviewed workflow without recording a decision.
		return Badge{State: StateCompleted, Label: "Completed (Decision Missing)", Tone: ToneWarning}
	case r.Status == StatusCompleted:
		return Badge{State: StateCompleted, Label: "Completed (No Review Needed)", Tone: ToneSuccess}
	case r.Status == StatusPaused:
		return Badge{State: StatePendingReview, Label: "Pending Review", Tone: ToneInfo}
	}
	return Badge{State: StatePending, Label: "Pending", Tone: ToneInfo}
}

// Tab is a dashboard filter.
type Tab string

const (
	TabAll       Tab = "all"
	TabPending   Tab = "pending"
	TabAccepted  Tab = "accepted"
	TabRejected  Tab = "rejected"
	TabCompleted Tab = "completed"
)

// Tabs lists the filters in display order.
var Tabs = []Tab{TabAll, TabPending, TabAccepted, TabRejected, TabCompleted}

// ParseTab validates a filter name.
func ParseTab(raw string) (Tab, error) {
	tab := Tab(strings.ToLower(strings.TrimSpace(raw)))
	if tab == "" {
		return TabAll, nil
	}
	for _, t := range Tabs {
		if t == tab {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTab, raw)
}

// InTab reports tab membership. It depends on status and decision only.
// Accepted, rejected and completed overlap; pending never includes a completed record.
func InTab(r Record, tab Tab) bool {
	switch tab {
	case TabPending:
		return r.Status == StatusPaused && r.Decision == "" && r.Status != StatusCompleted
	case TabAccepted:
		return r.Decision == DecisionAccept
	case TabRejected:
		return r.Decision == DecisionReject
	case TabCompleted:
		return r.Status == StatusCompleted
	default:
		return true
	}
}

// TabCounts holds per-tab totals over the unfiltered collection.
type TabCounts struct {
	All       int `json:"all"`
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Completed int `json:"completed"`
}

// CountTabs counts every tab over the full collection, so the active filter never changes a count.
func CountTabs(records []Record) TabCounts {
	counts := TabCounts{All: len(records)}
	for _, r := range records {
		if InTab(r, TabPending) {
			counts.Pending++
		}
		if InTab(r, TabAccepted) {
			counts.Accepted++
		}
		if InTab(r, TabRejected) {
			counts.Rejected++
		}
		if InTab(r, TabCompleted) {
			counts.Completed++
		}
	}
	return counts
}

// For returns the count of a single tab.
func (c TabCounts) For(tab Tab) int {
	switch tab {
	case TabPending:
		return c.Pending
	case TabAccepted:
		return c.Accepted
	case TabRejected:
		return c.Rejected
	case TabCompleted:
		return c.Completed
	default:
		return c.All
	}
}
