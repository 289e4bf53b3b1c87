package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driving"
)

// tmAdoptedModel marks translations adopted verbatim from an exact TM match.
const tmAdoptedModel = "TM_100%"

// extractLockTTL bounds how long one extraction may hold the per-file lock.
const extractLockTTL = 2 * time.Minute

// CapabilitySource resolves AI capabilities by configuration ID.
// Implemented by the runtime registry.
type CapabilitySource interface {
	Translator(ctx context.Context, configID string) (driven.Translator, error)
	Reviewer(ctx context.Context, configID string) (driven.Reviewer, error)
}

// ResolverConfig holds dependencies for the translation resolver.
type ResolverConfig struct {
	Units        driven.UnitStore
	Files        driven.FileStore
	TM           driven.TMStore
	Prompts      driven.PromptTemplateStore
	Codecs       driven.CodecResolver
	Capabilities CapabilitySource
	Lock         driven.DistributedLock
	Logger       *slog.Logger
}

// Resolver drives file extraction, TM-first unit translation and write-back.
type Resolver struct {
	units        driven.UnitStore
	files        driven.FileStore
	tm           driven.TMStore
	prompts      driven.PromptTemplateStore
	codecs       driven.CodecResolver
	capabilities CapabilitySource
	lock         driven.DistributedLock
	logger       *slog.Logger
}

var _ driving.TranslationPipeline = (*Resolver)(nil)

// NewResolver creates a new translation resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		units:        cfg.Units,
		files:        cfg.Files,
		tm:           cfg.TM,
		prompts:      cfg.Prompts,
		codecs:       cfg.Codecs,
		capabilities: cfg.Capabilities,
		lock:         cfg.Lock,
		logger:       logger,
	}
}

// ExtractFile parses a stored document and atomically replaces the file's
// units with the freshly extracted set. The replace runs under a per-file
// distributed lock so concurrent extractions of the same file cannot
// interleave.
func (r *Resolver) ExtractFile(ctx context.Context, fileID string, data []byte) ([]*domain.Unit, error) {
	file, err := r.files.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}

	codec, err := r.codecs.Detect(data)
	if err != nil {
		return nil, err
	}

	extraction, err := codec.Extract(data)
	if err != nil {
		return nil, err
	}

	units := make([]*domain.Unit, 0, len(extraction.Units))
	for _, eu := range extraction.Units {
		unit := domain.NewUnit(file.ID, eu.Index, eu.ExternalID, eu.SourceRaw)
		unit.FormatMeta = eu.Meta
		// Status hints seed construction-time state; lifecycle transitions
		// only apply from here on.
		switch eu.StatusHint {
		case domain.UnitStatusTranslated:
			unit.SetTranslation(eu.TargetRaw)
			unit.RawTarget = true
			unit.Status = domain.UnitStatusTranslated
		case domain.UnitStatusCompleted:
			unit.SetTranslation(eu.TargetRaw)
			unit.FinalText = eu.TargetRaw
			unit.RawTarget = true
			unit.Status = domain.UnitStatusCompleted
			now := time.Now()
			unit.CompletedAt = &now
		}
		units = append(units, unit)
	}

	lockName := "file:extract:" + fileID
	acquired, err := r.lock.Acquire(ctx, lockName, extractLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire extraction lock for file %s: %w", fileID, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: extraction already in progress for file %s", domain.ErrConflict, fileID)
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			r.logger.Warn("failed to release extraction lock", "file_id", fileID, "error", err)
		}
	}()

	if err := r.units.ReplaceFileUnits(ctx, fileID, units); err != nil {
		return nil, fmt.Errorf("replace units for file %s: %w", fileID, err)
	}

	file.Format = extraction.Info.Format
	if extraction.Info.SourceLanguage != "" {
		file.SourceLanguage = extraction.Info.SourceLanguage
	}
	if extraction.Info.TargetLanguage != "" {
		file.TargetLanguage = extraction.Info.TargetLanguage
	}
	if file.OriginalName == "" {
		file.OriginalName = extraction.Info.Original
	}
	file.Stats = domain.StatsFromUnits(units)
	file.Status = domain.StatusFromStats(file.Stats)
	file.UpdatedAt = time.Now()
	if err := r.files.Save(ctx, file); err != nil {
		return nil, fmt.Errorf("save file %s: %w", fileID, err)
	}

	r.logger.Info("file extracted",
		"file_id", fileID,
		"format", file.Format,
		"units", len(units),
	)
	return units, nil
}

// ResolveUnit resolves one unit: exact TM match first, AI call otherwise.
// Units already translated from TM are left untouched unless the options
// force retranslation. AI failures land the unit in ERROR with the message
// recorded; the error is also returned so batch callers can count it.
func (r *Resolver) ResolveUnit(ctx context.Context, unitID string, opts driving.ResolveOptions) (*domain.Unit, error) {
	unit, err := r.units.Get(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("get unit %s: %w", unitID, err)
	}

	if unit.Status == domain.UnitStatusTranslatedTM && !opts.RetranslateTM {
		return unit, nil
	}

	file, err := r.files.Get(ctx, unit.FileID)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", unit.FileID, err)
	}

	sourceLang, targetLang := opts.SourceLanguage, opts.TargetLanguage
	if sourceLang == "" {
		sourceLang = file.SourceLanguage
	}
	if targetLang == "" {
		targetLang = file.TargetLanguage
	}

	if err := unit.TransitionTo(domain.UnitStatusTranslating); err != nil {
		return unit, err
	}
	if err := r.units.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit %s: %w", unitID, err)
	}

	// Forced retranslation goes straight to the AI; an exact TM lookup
	// would only hand back the translation being replaced.
	if !opts.RetranslateTM {
		if entry := r.exactMatch(ctx, unit, file, sourceLang, targetLang); entry != nil {
			return r.adoptTMEntry(ctx, unit, entry)
		}
	}

	return r.translateWithAI(ctx, unit, file, opts, sourceLang, targetLang)
}

// exactMatch returns the exact TM entry for the unit's source text, or nil.
// TM unavailability is logged and treated as a miss so translation can
// still proceed through the AI.
func (r *Resolver) exactMatch(ctx context.Context, unit *domain.Unit, file *domain.File, sourceLang, targetLang string) *domain.TMEntry {
	query := domain.TMQuery{
		SourceText:     unit.SourceText,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
	}
	if file.ProjectID != "" {
		query.ProjectID = &file.ProjectID
	}

	matches, err := r.tm.FindMatches(ctx, query)
	if err != nil {
		r.logger.Warn("tm lookup failed, falling back to ai", "unit_id", unit.ID, "error", err)
		return nil
	}
	for _, m := range matches {
		if m.Score == 100 {
			return m.Entry
		}
	}
	return nil
}

func (r *Resolver) adoptTMEntry(ctx context.Context, unit *domain.Unit, entry *domain.TMEntry) (*domain.Unit, error) {
	unit.SetTranslation(entry.TargetText)
	now := time.Now()
	unit.TranslationMeta = &domain.TranslationMeta{
		AIModel:      tmAdoptedModel,
		TranslatedAt: &now,
	}
	if err := unit.TransitionTo(domain.UnitStatusTranslatedTM); err != nil {
		return unit, err
	}
	if err := r.units.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit %s: %w", unit.ID, err)
	}

	r.logger.Info("unit resolved from tm", "unit_id", unit.ID, "entry_id", entry.ID)
	return unit, nil
}

func (r *Resolver) translateWithAI(ctx context.Context, unit *domain.Unit, file *domain.File, opts driving.ResolveOptions, sourceLang, targetLang string) (*domain.Unit, error) {
	translator, err := r.capabilities.Translator(ctx, opts.AIConfigID)
	if err != nil {
		return r.failUnit(ctx, unit, err)
	}

	req := driven.TranslationRequest{
		SourceText:     unit.SourceText,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		Domain:         opts.Domain,
		Terminology:    opts.Terminology,
		Model:          opts.AIModel,
		Temperature:    opts.Temperature,
	}
	if opts.PromptTemplateID != "" {
		tpl, err := r.prompts.Get(ctx, opts.PromptTemplateID)
		if err != nil {
			return r.failUnit(ctx, unit, fmt.Errorf("load prompt template %s: %w", opts.PromptTemplateID, err))
		}
		req.SystemInstruction = tpl.System
		req.UserPrompt = tpl.User
	}

	result, err := translator.Translate(ctx, req)
	if err != nil {
		return r.failUnit(ctx, unit, err)
	}

	unit.SetTranslation(result.TranslatedText)
	now := time.Now()
	unit.TranslationMeta = &domain.TranslationMeta{
		AIModel:          result.Model,
		PromptTemplateID: opts.PromptTemplateID,
		TokenCount:       result.TokenCount,
		ProcessingTime:   result.ProcessingTime,
		TranslatedAt:     &now,
	}
	if err := unit.TransitionTo(domain.UnitStatusTranslated); err != nil {
		return unit, err
	}
	if err := r.units.Update(ctx, unit); err != nil {
		return nil, fmt.Errorf("update unit %s: %w", unit.ID, err)
	}

	r.logger.Info("unit resolved via ai",
		"unit_id", unit.ID,
		"model", result.Model,
		"tokens", result.TokenCount.Total,
	)
	return unit, nil
}

// failUnit records a resolution failure on the unit and persists it.
// The original error is returned alongside the updated unit.
func (r *Resolver) failUnit(ctx context.Context, unit *domain.Unit, cause error) (*domain.Unit, error) {
	var capErr *domain.CapabilityError
	if errors.As(cause, &capErr) {
		r.logger.Error("translation capability failed",
			"unit_id", unit.ID,
			"provider", capErr.Provider,
			"retryable", capErr.Retryable,
			"error", cause,
		)
	} else {
		r.logger.Error("unit resolution failed", "unit_id", unit.ID, "error", cause)
	}

	if markErr := unit.MarkError(cause.Error()); markErr != nil {
		return unit, errors.Join(cause, markErr)
	}
	if updateErr := r.units.Update(ctx, unit); updateErr != nil {
		return nil, errors.Join(cause, updateErr)
	}
	return unit, cause
}

// ExportFile writes translated text back into the original document bytes.
// Units without any produced text are left out so their existing targets
// stay untouched.
func (r *Resolver) ExportFile(ctx context.Context, fileID string, original []byte) ([]byte, error) {
	file, err := r.files.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}

	codec, err := r.codecs.ForFormat(file.Format)
	if err != nil {
		return nil, err
	}

	units, err := r.units.ListByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("list units for file %s: %w", fileID, err)
	}

	writeUnits := make([]driven.WriteUnit, 0, len(units))
	for _, u := range units {
		text := u.FinalTextOrTranslation()
		if text == "" {
			continue
		}
		writeUnits = append(writeUnits, driven.WriteUnit{
			ExternalID: u.ExternalID,
			Text:       text,
			Status:     u.Status,
			Raw:        u.RawTarget,
		})
	}

	out, err := codec.Write(original, writeUnits)
	if err != nil {
		return nil, err
	}

	r.logger.Info("file exported", "file_id", fileID, "units_written", len(writeUnits))
	return out, nil
}

// ConfirmToTM feeds a human-confirmed unit back into the translation memory,
// scoped to the file's project. Only finalized or review-completed units
// qualify.
func (r *Resolver) ConfirmToTM(ctx context.Context, unitID string) (*domain.TMEntry, error) {
	unit, err := r.units.Get(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("get unit %s: %w", unitID, err)
	}
	if unit.Status != domain.UnitStatusCompleted && unit.Status != domain.UnitStatusReviewCompleted {
		return nil, fmt.Errorf("%w: unit %s is %s, not confirmed", domain.ErrInvalidInput, unitID, unit.Status)
	}
	text := unit.FinalTextOrTranslation()
	if text == "" {
		return nil, fmt.Errorf("%w: unit %s has no confirmed text", domain.ErrInvalidInput, unitID)
	}

	file, err := r.files.Get(ctx, unit.FileID)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", unit.FileID, err)
	}

	key := domain.TMKey{
		SourceLanguage: file.SourceLanguage,
		TargetLanguage: file.TargetLanguage,
		SourceText:     unit.SourceText,
	}
	if file.ProjectID != "" {
		key.ProjectID = &file.ProjectID
	}

	entry, outcome, err := r.tm.AddEntry(ctx, key, text)
	if err != nil {
		return nil, fmt.Errorf("add tm entry for unit %s: %w", unitID, err)
	}

	r.logger.Info("unit confirmed to tm", "unit_id", unitID, "entry_id", entry.ID, "outcome", outcome)
	return entry, nil
}
