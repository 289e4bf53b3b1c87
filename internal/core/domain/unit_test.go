package domain

import (
	"errors"
	"testing"
)

func TestNewUnit_Defaults(t *testing.T) {
	u := NewUnit("file-1", 3, "tu-4", "Hello world")

	if u.ID == "" {
		t.Error("expected generated ID")
	}
	if u.Status != UnitStatusPending {
		t.Errorf("expected PENDING, got %s", u.Status)
	}
	if u.SourceLength != 11 {
		t.Errorf("expected source length 11, got %d", u.SourceLength)
	}
	if u.Revision != 0 {
		t.Errorf("expected revision 0, got %d", u.Revision)
	}
}

func TestCanTransition_Table(t *testing.T) {
	legal := []struct{ from, to UnitStatus }{
		{UnitStatusPending, UnitStatusTranslating},
		{UnitStatusTranslating, UnitStatusTranslated},
		{UnitStatusTranslating, UnitStatusTranslatedTM},
		{UnitStatusTranslating, UnitStatusError},
		{UnitStatusError, UnitStatusTranslating},
		{UnitStatusTranslated, UnitStatusReviewing},
		{UnitStatusTranslatedTM, UnitStatusReviewing},
		{UnitStatusTranslatedTM, UnitStatusTranslating},
		{UnitStatusReviewing, UnitStatusReviewPending},
		{UnitStatusReviewing, UnitStatusReviewFailed},
		{UnitStatusReviewFailed, UnitStatusReviewing},
		{UnitStatusReviewPending, UnitStatusReviewCompleted},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to UnitStatus }{
		{UnitStatusPending, UnitStatusTranslated},
		{UnitStatusPending, UnitStatusReviewing},
		{UnitStatusTranslated, UnitStatusPending},
		{UnitStatusCompleted, UnitStatusTranslating},
		{UnitStatusCompleted, UnitStatusPending},
		{UnitStatusReviewCompleted, UnitStatusReviewing},
		{UnitStatusError, UnitStatusTranslated},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestTransitionTo_IllegalLeavesStateUnchanged(t *testing.T) {
	u := NewUnit("f", 0, "tu-1", "src")

	err := u.TransitionTo(UnitStatusReviewing)
	if err == nil {
		t.Fatal("expected error")
	}

	var ste *StateTransitionError
	if !errors.As(err, &ste) {
		t.Fatalf("expected StateTransitionError, got %T", err)
	}
	if ste.From != UnitStatusPending || ste.To != UnitStatusReviewing {
		t.Errorf("error should name attempted and current states, got %s -> %s", ste.From, ste.To)
	}
	if u.Status != UnitStatusPending {
		t.Errorf("state changed on illegal transition: %s", u.Status)
	}
}

func TestTransitionTo_TranslatingClearsError(t *testing.T) {
	u := NewUnit("f", 0, "tu-1", "src")
	if err := u.TransitionTo(UnitStatusTranslating); err != nil {
		t.Fatal(err)
	}
	if err := u.MarkError("provider timeout"); err != nil {
		t.Fatal(err)
	}
	if u.Error != "provider timeout" {
		t.Errorf("expected error recorded, got %q", u.Error)
	}
	if u.CompletedAt == nil {
		t.Error("expected completion time stamped on ERROR")
	}

	// Retry re-enters TRANSLATING and clears the previous error.
	if err := u.TransitionTo(UnitStatusTranslating); err != nil {
		t.Fatal(err)
	}
	if u.Error != "" {
		t.Errorf("expected error cleared, got %q", u.Error)
	}
}

func TestMarkError_RequiresMessage(t *testing.T) {
	u := NewUnit("f", 0, "tu-1", "src")
	_ = u.TransitionTo(UnitStatusTranslating)

	if err := u.MarkError(""); err == nil {
		t.Fatal("expected error for empty message")
	}
	if u.Status != UnitStatusTranslating {
		t.Errorf("state changed on rejected MarkError: %s", u.Status)
	}
}

func TestTransitionTo_ReviewPendingRequiresReviewOrSkip(t *testing.T) {
	u := unitInStatus(t, UnitStatusReviewing)

	if err := u.TransitionTo(UnitStatusReviewPending); err == nil {
		t.Fatal("expected rejection without review suggestion")
	}

	u.Review = "suggested translation"
	if err := u.TransitionTo(UnitStatusReviewPending); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	skipped := unitInStatus(t, UnitStatusReviewing)
	skipped.ReviewSkipped = true
	if err := skipped.TransitionTo(UnitStatusReviewPending); err != nil {
		t.Fatalf("unexpected error for skipped unit: %v", err)
	}
}

func TestTransitionTo_ReviewCompletedRequiresFinalText(t *testing.T) {
	u := unitInStatus(t, UnitStatusReviewPending)

	if err := u.TransitionTo(UnitStatusReviewCompleted); err == nil {
		t.Fatal("expected rejection without final text")
	}

	u.FinalText = "texto final"
	if err := u.TransitionTo(UnitStatusReviewCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransitionTo_CompletedRejected(t *testing.T) {
	u := unitInStatus(t, UnitStatusReviewCompleted)
	if err := u.TransitionTo(UnitStatusCompleted); err == nil {
		t.Fatal("COMPLETED must only be reachable via Finalize")
	}
}

func TestFinalize(t *testing.T) {
	u := unitInStatus(t, UnitStatusReviewCompleted)

	if err := u.Finalize(RoleReviewer, false); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-PM actor, got %v", err)
	}

	if err := u.Finalize(RoleProjectManager, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Status != UnitStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", u.Status)
	}
	if u.CompletedAt == nil {
		t.Error("expected completion time")
	}
}

func TestFinalize_OpenIssues(t *testing.T) {
	u := unitInStatus(t, UnitStatusReviewCompleted)
	u.Issues = []Issue{{Type: IssueTypeAccuracy, Severity: SeverityHigh, Status: IssueStatusOpen}}

	if err := u.Finalize(RoleProjectManager, false); err == nil {
		t.Fatal("expected rejection with open issues and no override")
	}
	if u.Status != UnitStatusReviewCompleted {
		t.Errorf("state changed on rejected finalize: %s", u.Status)
	}

	// With the override the transition proceeds and a warning is recorded.
	if err := u.Finalize(RoleProjectManager, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Status != UnitStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", u.Status)
	}
	if len(u.Warnings) == 0 {
		t.Error("expected a recorded warning")
	}
}

func TestFinalize_WrongState(t *testing.T) {
	u := unitInStatus(t, UnitStatusTranslated)
	if err := u.Finalize(RoleProjectManager, false); err == nil {
		t.Fatal("expected rejection from non-REVIEW_COMPLETED state")
	}
}

func TestFinalTextOrTranslation(t *testing.T) {
	u := NewUnit("f", 0, "tu-1", "src")
	u.Translation = "working"
	if got := u.FinalTextOrTranslation(); got != "working" {
		t.Errorf("expected working translation, got %q", got)
	}
	u.FinalText = "confirmed"
	if got := u.FinalTextOrTranslation(); got != "confirmed" {
		t.Errorf("expected final text, got %q", got)
	}
}

// unitInStatus walks a fresh unit through legal transitions up to the
// requested status.
func unitInStatus(t *testing.T, status UnitStatus) *Unit {
	t.Helper()
	u := NewUnit("file-1", 0, "tu-1", "source text")
	path := map[UnitStatus][]UnitStatus{
		UnitStatusPending:         {},
		UnitStatusTranslating:     {UnitStatusTranslating},
		UnitStatusTranslated:      {UnitStatusTranslating, UnitStatusTranslated},
		UnitStatusTranslatedTM:    {UnitStatusTranslating, UnitStatusTranslatedTM},
		UnitStatusReviewing:       {UnitStatusTranslating, UnitStatusTranslated, UnitStatusReviewing},
		UnitStatusReviewPending:   {UnitStatusTranslating, UnitStatusTranslated, UnitStatusReviewing, UnitStatusReviewPending},
		UnitStatusReviewCompleted: {UnitStatusTranslating, UnitStatusTranslated, UnitStatusReviewing, UnitStatusReviewPending, UnitStatusReviewCompleted},
	}
	steps, ok := path[status]
	if !ok {
		t.Fatalf("no path to %s", status)
	}
	for _, next := range steps {
		switch next {
		case UnitStatusReviewPending:
			u.Review = "suggested"
		case UnitStatusReviewCompleted:
			u.FinalText = "final"
		}
		if err := u.TransitionTo(next); err != nil {
			t.Fatalf("setup transition to %s failed: %v", next, err)
		}
	}
	return u
}
