package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// UnitStatus represents the current state of a translation unit.
type UnitStatus string

const (
	UnitStatusPending         UnitStatus = "PENDING"
	UnitStatusTranslating     UnitStatus = "TRANSLATING"
	UnitStatusTranslated      UnitStatus = "TRANSLATED"
	UnitStatusTranslatedTM    UnitStatus = "TRANSLATED_TM"
	UnitStatusError           UnitStatus = "ERROR"
	UnitStatusReviewing       UnitStatus = "REVIEWING"
	UnitStatusReviewPending   UnitStatus = "REVIEW_PENDING"
	UnitStatusReviewFailed    UnitStatus = "REVIEW_FAILED"
	UnitStatusReviewCompleted UnitStatus = "REVIEW_COMPLETED"
	UnitStatusCompleted       UnitStatus = "COMPLETED"
)

// transitions is the single allow-list of legal status changes.
// COMPLETED is absent on purpose: it is only reachable through Finalize.
var transitions = map[UnitStatus][]UnitStatus{
	UnitStatusPending:       {UnitStatusTranslating},
	UnitStatusTranslating:   {UnitStatusTranslated, UnitStatusTranslatedTM, UnitStatusError},
	UnitStatusError:         {UnitStatusTranslating},
	UnitStatusTranslated:    {UnitStatusReviewing},
	UnitStatusTranslatedTM:  {UnitStatusReviewing, UnitStatusTranslating},
	UnitStatusReviewing:     {UnitStatusReviewPending, UnitStatusReviewFailed},
	UnitStatusReviewFailed:  {UnitStatusReviewing},
	UnitStatusReviewPending: {UnitStatusReviewCompleted},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to UnitStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Role identifies the kind of actor performing a privileged operation.
type Role string

const (
	RoleTranslator     Role = "translator"
	RoleReviewer       Role = "reviewer"
	RoleProjectManager Role = "project_manager"
)

// TokenCount holds AI token usage for one capability call.
type TokenCount struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// TranslationMeta records how a unit's translation was produced.
type TranslationMeta struct {
	AIModel          string     `json:"ai_model,omitempty"`
	PromptTemplateID string     `json:"prompt_template_id,omitempty"`
	TokenCount       TokenCount `json:"token_count"`
	ProcessingTime   float64    `json:"processing_time_seconds"`
	TranslatedAt     *time.Time `json:"translated_at,omitempty"`
}

// ReviewMeta records how a unit's review was produced.
type ReviewMeta struct {
	AIModel            string     `json:"ai_model,omitempty"`
	PromptTemplateID   string     `json:"prompt_template_id,omitempty"`
	TokenCount         TokenCount `json:"token_count"`
	ProcessingTime     float64    `json:"processing_time_seconds"`
	ModificationDegree float64    `json:"modification_degree"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
}

// Unit is one translatable span extracted from a bitext file.
// SourceText is immutable once extracted; all status mutations go
// through TransitionTo / the Mark helpers, which enforce the allow-list.
type Unit struct {
	ID         string `json:"id"`
	FileID     string `json:"file_id"`
	Index      int    `json:"index"`       // order within file, stable across re-extraction
	ExternalID string `json:"external_id"` // format-native unit id (trans-unit@id)

	SourceText  string `json:"source_text"`
	Translation string `json:"translation,omitempty"`
	Review      string `json:"review,omitempty"`     // AI-suggested translation from review
	FinalText   string `json:"final_text,omitempty"` // reviewer-confirmed text

	// RawTarget marks the write-back text as verbatim inner XML captured at
	// extraction. The codec splices such text as-is instead of escaping it;
	// any text produced by the pipeline clears the flag.
	RawTarget bool `json:"raw_target,omitempty"`

	SourceLength     int `json:"source_length"`
	TranslatedLength int `json:"translated_length"`

	Status UnitStatus `json:"status"`
	Error  string     `json:"error,omitempty"`

	Issues []Issue `json:"issues,omitempty"`

	TranslationMeta *TranslationMeta `json:"translation_metadata,omitempty"`
	ReviewMeta      *ReviewMeta      `json:"review_metadata,omitempty"`

	// FormatMeta is opaque per-codec data needed to re-insert the unit.
	// Owned exclusively by the codec, never interpreted elsewhere.
	FormatMeta map[string]string `json:"format_metadata,omitempty"`

	// ReviewSkipped marks a unit that entered REVIEW_PENDING without an
	// AI-suggested review (explicit reviewer decision).
	ReviewSkipped bool `json:"review_skipped,omitempty"`

	// QualityScore is set at review finalization, 0-100.
	QualityScore *int `json:"quality_score,omitempty"`

	// Warnings records non-fatal anomalies (e.g. finalized with open issues).
	Warnings []string `json:"warnings,omitempty"`

	// Revision is bumped on every store update; stores compare-and-swap on
	// it so concurrent writers to the same unit lose cleanly.
	Revision int `json:"revision"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewUnit creates a pending unit for a freshly extracted span.
func NewUnit(fileID string, index int, externalID, sourceText string) *Unit {
	now := time.Now()
	return &Unit{
		ID:           GenerateID(),
		FileID:       fileID,
		Index:        index,
		ExternalID:   externalID,
		SourceText:   sourceText,
		SourceLength: len([]rune(sourceText)),
		Status:       UnitStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TransitionTo moves the unit to the given status if the allow-list and the
// target state's entry requirements permit it. COMPLETED is rejected here;
// use Finalize.
func (u *Unit) TransitionTo(to UnitStatus) error {
	if to == UnitStatusCompleted {
		return &StateTransitionError{UnitID: u.ID, From: u.Status, To: to, Reason: "COMPLETED requires an explicit finalize"}
	}
	if !CanTransition(u.Status, to) {
		return &StateTransitionError{UnitID: u.ID, From: u.Status, To: to}
	}
	switch to {
	case UnitStatusReviewPending:
		if u.Review == "" && !u.ReviewSkipped {
			return &StateTransitionError{UnitID: u.ID, From: u.Status, To: to, Reason: "no review suggestion and not explicitly skipped"}
		}
	case UnitStatusReviewCompleted:
		if u.FinalText == "" {
			return &StateTransitionError{UnitID: u.ID, From: u.Status, To: to, Reason: "final text not set"}
		}
	}
	u.apply(to)
	if to == UnitStatusTranslating {
		u.Error = ""
	}
	return nil
}

// MarkError transitions the unit to ERROR with the given message.
// The message must be non-empty; completion time is stamped so failed
// units carry a timeline too.
func (u *Unit) MarkError(msg string) error {
	if msg == "" {
		return &StateTransitionError{UnitID: u.ID, From: u.Status, To: UnitStatusError, Reason: "error message required"}
	}
	if !CanTransition(u.Status, UnitStatusError) {
		return &StateTransitionError{UnitID: u.ID, From: u.Status, To: UnitStatusError}
	}
	u.apply(UnitStatusError)
	u.Error = msg
	now := time.Now()
	u.CompletedAt = &now
	return nil
}

// SetTranslation records a produced translation and its derived length.
// It does not change status; callers pair it with a transition. Produced
// text is plain, so the raw-target marker is cleared.
func (u *Unit) SetTranslation(text string) {
	u.Translation = text
	u.TranslatedLength = len([]rune(text))
	u.RawTarget = false
	u.UpdatedAt = time.Now()
}

// HasOpenIssues reports whether any issue is still open or in progress.
func (u *Unit) HasOpenIssues() bool {
	for i := range u.Issues {
		if u.Issues[i].Status == IssueStatusOpen || u.Issues[i].Status == IssueStatusInProgress {
			return true
		}
	}
	return false
}

// Finalize moves the unit to COMPLETED. Only a project manager may finalize,
// and only from REVIEW_COMPLETED. Units with open issues are rejected unless
// allowOpenIssues is set, in which case a warning is recorded and the
// transition proceeds.
func (u *Unit) Finalize(actor Role, allowOpenIssues bool) error {
	if actor != RoleProjectManager {
		return ErrForbidden
	}
	if u.Status != UnitStatusReviewCompleted {
		return &StateTransitionError{UnitID: u.ID, From: u.Status, To: UnitStatusCompleted, Reason: "only REVIEW_COMPLETED units can be finalized"}
	}
	if u.HasOpenIssues() {
		if !allowOpenIssues {
			return &StateTransitionError{UnitID: u.ID, From: u.Status, To: UnitStatusCompleted, Reason: "unit has open issues"}
		}
		u.Warnings = append(u.Warnings, "finalized with open issues")
	}
	u.apply(UnitStatusCompleted)
	now := time.Now()
	u.CompletedAt = &now
	return nil
}

func (u *Unit) apply(to UnitStatus) {
	u.Status = to
	u.UpdatedAt = time.Now()
}

// FinalTextOrTranslation selects the text that should be written back,
// preferring the reviewer-confirmed version.
func (u *Unit) FinalTextOrTranslation() string {
	if u.FinalText != "" {
		return u.FinalText
	}
	return u.Translation
}
