package workflows

import "testing"

func amount(v float64) *float64 { return &v }

func sampleRecords() []Record {
	return []Record{
		{ThreadID: "t-auto", Status: StatusCompleted},
		{ThreadID: "t-accepted", Status: StatusCompleted, Decision: DecisionAccept, WentThroughHITL: true},
		{ThreadID: "t-rejected", Status: StatusCompleted, Decision: DecisionReject, WentThroughHITL: true},
		{ThreadID: "t-paused", Status: StatusPaused},
		{ThreadID: "t-paused-decided", Status: StatusPaused, Decision: DecisionAccept},
		{ThreadID: "t-missing", Status: StatusCompleted, WentThroughHITL: true},
		{ThreadID: "t-hold", Status: StatusCompleted, ReasonForHold: "amount mismatch"},
		{ThreadID: "t-manual", Status: StatusManualHandling},
		{ThreadID: "t-running", Status: "IN_PROGRESS"},
		{ThreadID: "t-blank"},
		{ThreadID: "t-rejected-running", Status: "IN_PROGRESS", Decision: DecisionReject},
	}
}

func TestClassifyStatusPrecedence(t *testing.T) {
	cases := []struct {
		name  string
		rec   Record
		state ReviewState
		label string
	}{
		{"completed beats decision", Record{Status: StatusCompleted, Decision: DecisionReject}, StateCompleted, "Completed"},
		{"paused beats decision", Record{Status: StatusPaused, Decision: DecisionAccept}, StatePaused, "Paused"},
		{"accept", Record{Status: "IN_PROGRESS", Decision: DecisionAccept}, StateAccepted, "Accepted"},
		{"reject", Record{Status: StatusManualHandling, Decision: DecisionReject}, StateRejected, "Rejected"},
		{"manual", Record{Status: StatusManualHandling}, StateManualHandling, "Manual Handling"},
		{"raw status", Record{Status: "IN_PROGRESS"}, StateUnknown, "IN_PROGRESS"},
		{"absent status", Record{}, StateUnknown, "Unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyStatus(tc.rec)
			if got.State != tc.state || got.Label != tc.label {
				t.Fatalf("expected %s/%q, got %s/%q", tc.state, tc.label, got.State, got.Label)
			}
		})
	}
}

func TestClassifyDecision(t *testing.T) {
	cases := []struct {
		name  string
		rec   Record
		label string
		tone  Tone
	}{
		{"accept verbatim", Record{Status: StatusCompleted, Decision: DecisionAccept}, "ACCEPT", ToneSuccess},
		{"reject verbatim", Record{Status: StatusPaused, Decision: DecisionReject}, "REJECT", ToneDanger},
		{"hitl without decision", Record{Status: StatusCompleted, WentThroughHITL: true}, "Completed (Decision Missing)", ToneWarning},
		{"hold without decision", Record{Status: StatusCompleted, ReasonForHold: "po mismatch"}, "Completed (Decision Missing)", ToneWarning},
		{"auto completed", Record{Status: StatusCompleted}, "Completed (No Review Needed)", ToneSuccess},
		{"paused", Record{Status: StatusPaused}, "Pending Review", ToneInfo},
		{"anything else", Record{Status: "IN_PROGRESS", WentThroughHITL: true}, "Pending", ToneInfo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyDecision(tc.rec)
			if got.Label != tc.label || got.Tone != tc.tone {
				t.Fatalf("expected %q/%s, got %q/%s", tc.label, tc.tone, got.Label, got.Tone)
			}
		})
	}
}

func TestAcceptedAndRejectedAreExclusive(t *testing.T) {
	for _, r := range sampleRecords() {
		if InTab(r, TabAccepted) && InTab(r, TabRejected) {
			t.Fatalf("record %s is both accepted and rejected", r.ThreadID)
		}
	}
}

func TestCompletedIsSuperset(t *testing.T) {
	for _, r := range sampleRecords() {
		if r.Status == StatusCompleted && !InTab(r, TabCompleted) {
			t.Fatalf("completed record %s missing from completed tab", r.ThreadID)
		}
		if r.Status == StatusCompleted && InTab(r, TabPending) {
			t.Fatalf("completed record %s shown as pending", r.ThreadID)
		}
	}
}

func TestCountsMatchFilteredViews(t *testing.T) {
	records := sampleRecords()
	counts := CountTabs(records)
	for _, tab := range Tabs {
		if got := len(Filter(records, tab)); got != counts.For(tab) {
			t.Fatalf("tab %s: filter gives %d, count gives %d", tab, got, counts.For(tab))
		}
	}
	if counts.Pending != 1 || counts.Accepted != 2 || counts.Rejected != 2 || counts.Completed != 5 || counts.All != 11 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func tabsOf(r Record) []Tab {
	var out []Tab
	for _, tab := range Tabs {
		if tab != TabAll && InTab(r, tab) {
			out = append(out, tab)
		}
	}
	return out
}

func TestScenarioCompletedAndAccepted(t *testing.T) {
	r := Record{Status: StatusCompleted, Decision: DecisionAccept}
	if got := ClassifyStatus(r).Label; got != "Completed" {
		t.Fatalf("status badge: %q", got)
	}
	if got := ClassifyDecision(r).Label; got != "ACCEPT" {
		t.Fatalf("decision badge: %q", got)
	}
	tabs := tabsOf(r)
	if len(tabs) != 2 || tabs[0] != TabAccepted || tabs[1] != TabCompleted {
		t.Fatalf("expected accepted+completed, got %v", tabs)
	}
}

func TestScenarioPausedWithoutDecision(t *testing.T) {
	r := Record{Status: StatusPaused}
	if got := ClassifyStatus(r).Label; got != "Paused" {
		t.Fatalf("status badge: %q", got)
	}
	if got := ClassifyDecision(r).Label; got != "Pending Review" {
		t.Fatalf("decision badge: %q", got)
	}
	tabs := tabsOf(r)
	if len(tabs) != 1 || tabs[0] != TabPending {
		t.Fatalf("expected pending only, got %v", tabs)
	}
}

func TestScenarioCompletedDecisionMissing(t *testing.T) {
	r := Record{Status: StatusCompleted, WentThroughHITL: true}
	if got := ClassifyDecision(r).Label; got != "Completed (Decision Missing)" {
		t.Fatalf("decision badge: %q", got)
	}
	tabs := tabsOf(r)
	if len(tabs) != 1 || tabs[0] != TabCompleted {
		t.Fatalf("expected completed only, got %v", tabs)
	}
}

func TestTabIgnoresStageAndDiagnostics(t *testing.T) {
	base := Record{Status: StatusPaused}
	noisy := base
	noisy.CurrentStage = "COMPLETE"
	noisy.MismatchReason = "accepted by someone"
	noisy.ReasonForHold = "rejected"
	for _, tab := range Tabs {
		if InTab(base, tab) != InTab(noisy, tab) {
			t.Fatalf("tab %s changed by non-lifecycle fields", tab)
		}
	}
}

func TestParseTab(t *testing.T) {
	if tab, err := ParseTab(" Pending "); err != nil || tab != TabPending {
		t.Fatalf("expected pending, got %s %v", tab, err)
	}
	if tab, err := ParseTab(""); err != nil || tab != TabAll {
		t.Fatalf("expected all for empty, got %s %v", tab, err)
	}
	if _, err := ParseTab("archived"); err == nil {
		t.Fatal("expected error for unknown tab")
	}
}

func TestParseDecision(t *testing.T) {
	if d, err := ParseDecision("accept"); err != nil || d != DecisionAccept {
		t.Fatalf("expected ACCEPT, got %s %v", d, err)
	}
	if _, err := ParseDecision(""); err != ErrDecisionRequired {
		t.Fatalf("expected ErrDecisionRequired, got %v", err)
	}
	if _, err := ParseDecision("maybe"); err == nil {
		t.Fatal("expected error for unknown decision")
	}
}
