package domain

import "time"

// IssueType classifies a translation defect.
type IssueType string

const (
	IssueTypeAccuracy    IssueType = "accuracy"
	IssueTypeFluency     IssueType = "fluency"
	IssueTypeTerminology IssueType = "terminology"
	IssueTypeGrammar     IssueType = "grammar"
	IssueTypeStyle       IssueType = "style"
	IssueTypeConsistency IssueType = "consistency"
	IssueTypeFormatting  IssueType = "formatting"
	IssueTypeOther       IssueType = "other"
)

// IssueSeverity grades how serious a defect is.
type IssueSeverity string

const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

// IssueStatus represents the resolution lifecycle of an issue.
// resolved and rejected are terminal.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusResolved   IssueStatus = "resolved"
	IssueStatusRejected   IssueStatus = "rejected"
)

// ResolutionAction is what the reviewer decided about an issue.
type ResolutionAction string

const (
	ActionAccept ResolutionAction = "accept"
	ActionModify ResolutionAction = "modify"
	ActionReject ResolutionAction = "reject"
)

// Position marks the span of the translation an issue refers to.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Resolution records how an issue left the open state.
type Resolution struct {
	Action  ResolutionAction `json:"action"`
	Comment string           `json:"comment,omitempty"`
}

// Issue is one defect found in a translation.
// Resolution, ResolvedBy and ResolvedAt are set exactly when the issue
// leaves the open state, never before.
type Issue struct {
	Type        IssueType     `json:"type"`
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
	Position    *Position     `json:"position,omitempty"`
	Suggestion  string        `json:"suggestion,omitempty"`

	Status     IssueStatus `json:"status"`
	Resolution *Resolution `json:"resolution,omitempty"`
	ResolvedBy string      `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}

// Resolvable reports whether the issue can still be acted on.
func (i *Issue) Resolvable() bool {
	return i.Status == IssueStatusOpen || i.Status == IssueStatusInProgress
}

// Resolve applies a resolution, mapping the action to the terminal status:
// accept/modify -> resolved, reject -> rejected. Unknown actions map to
// resolved; the caller is expected to have validated or logged them.
func (i *Issue) Resolve(res Resolution, resolvedBy string) error {
	if !i.Resolvable() {
		return ErrInvalidInput
	}
	switch res.Action {
	case ActionReject:
		i.Status = IssueStatusRejected
	case ActionAccept, ActionModify:
		i.Status = IssueStatusResolved
	default:
		i.Status = IssueStatusResolved
	}
	now := time.Now()
	i.Resolution = &res
	i.ResolvedBy = resolvedBy
	i.ResolvedAt = &now
	return nil
}
