package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lingua-core/internal/codec"
	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driving"
)

// stubCapabilities hands out fixed capabilities regardless of config ID.
type stubCapabilities struct {
	translator driven.Translator
	reviewer   driven.Reviewer
	err        error
}

func (s *stubCapabilities) Translator(ctx context.Context, configID string) (driven.Translator, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.translator, nil
}

func (s *stubCapabilities) Reviewer(ctx context.Context, configID string) (driven.Reviewer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.reviewer, nil
}

type resolverFixture struct {
	units      *mocks.MockUnitStore
	files      *mocks.MockFileStore
	tm         *mocks.MockTMStore
	prompts    *mocks.MockPromptTemplateStore
	lock       *mocks.MockDistributedLock
	translator *mocks.MockTranslator
	resolver   *Resolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	f := &resolverFixture{
		units:      mocks.NewMockUnitStore(),
		files:      mocks.NewMockFileStore(),
		tm:         mocks.NewMockTMStore(),
		prompts:    mocks.NewMockPromptTemplateStore(),
		lock:       mocks.NewMockDistributedLock(),
		translator: mocks.NewMockTranslator(),
	}
	f.resolver = NewResolver(ResolverConfig{
		Units:        f.units,
		Files:        f.files,
		TM:           f.tm,
		Prompts:      f.prompts,
		Codecs:       codec.NewRegistry(),
		Capabilities: &stubCapabilities{translator: f.translator},
		Lock:         f.lock,
	})
	return f
}

func (f *resolverFixture) seedFile(t *testing.T) *domain.File {
	t.Helper()
	file := &domain.File{
		ID:             "file-1",
		ProjectID:      "proj-1",
		Name:           "handbook.xlf",
		Format:         domain.FormatXLIFF12,
		SourceLanguage: "en",
		TargetLanguage: "de",
		Status:         domain.FileStatusPending,
	}
	require.NoError(t, f.files.Save(context.Background(), file))
	return file
}

func (f *resolverFixture) seedUnit(t *testing.T, status domain.UnitStatus, sourceText string) *domain.Unit {
	t.Helper()
	unit := domain.NewUnit("file-1", 0, "u1", sourceText)
	unit.Status = status
	if status == domain.UnitStatusTranslatedTM {
		unit.SetTranslation("alte Fassung")
	}
	require.NoError(t, f.units.ReplaceFileUnits(context.Background(), "file-1", []*domain.Unit{unit}))
	return unit
}

func TestResolver_ResolveUnit_AdoptsExactTMMatch(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusPending, "Hello world")

	entry, _, err := f.tm.AddEntry(context.Background(), domain.TMKey{
		SourceLanguage: "en",
		TargetLanguage: "de",
		SourceText:     "Hello world",
	}, "Hallo Welt")
	require.NoError(t, err)

	resolved, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{AIConfigID: "cfg-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusTranslatedTM, resolved.Status)
	assert.Equal(t, "Hallo Welt", resolved.Translation)
	require.NotNil(t, resolved.TranslationMeta)
	assert.Equal(t, "TM_100%", resolved.TranslationMeta.AIModel)
	assert.Empty(t, f.translator.Requests)

	// The lookup itself accounts usage, exactly once per exact hit.
	bumped := f.tm.Bumped()
	require.Len(t, bumped, 1)
	assert.Equal(t, entry.ID, bumped[0])

	stored, err := f.units.Get(context.Background(), unit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusTranslatedTM, stored.Status)
}

func TestResolver_ResolveUnit_FallsBackToAI(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusPending, "Hello world")

	resolved, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{
		AIConfigID: "cfg-1",
		Domain:     "legal",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusTranslated, resolved.Status)
	assert.Equal(t, "[de] Hello world", resolved.Translation)
	require.NotNil(t, resolved.TranslationMeta)
	assert.Equal(t, "mock", resolved.TranslationMeta.AIModel)

	require.Len(t, f.translator.Requests, 1)
	req := f.translator.Requests[0]
	assert.Equal(t, "en", req.SourceLanguage)
	assert.Equal(t, "de", req.TargetLanguage)
	assert.Equal(t, "legal", req.Domain)
}

func TestResolver_ResolveUnit_AppliesPromptTemplate(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusPending, "Hello")
	f.prompts.Add(&domain.PromptTemplate{
		ID:     "tpl-1",
		Name:   "formal",
		System: "Translate formally.",
		User:   "Text: {{source}}",
	})

	resolved, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{
		AIConfigID:       "cfg-1",
		PromptTemplateID: "tpl-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tpl-1", resolved.TranslationMeta.PromptTemplateID)

	require.Len(t, f.translator.Requests, 1)
	assert.Equal(t, "Translate formally.", f.translator.Requests[0].SystemInstruction)
	assert.Equal(t, "Text: {{source}}", f.translator.Requests[0].UserPrompt)
}

func TestResolver_ResolveUnit_SkipsTranslatedTMWithoutFlag(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusTranslatedTM, "Hello world")

	resolved, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{AIConfigID: "cfg-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusTranslatedTM, resolved.Status)
	assert.Equal(t, "alte Fassung", resolved.Translation)
	assert.Empty(t, f.translator.Requests)
}

func TestResolver_ResolveUnit_RetranslateForcesAI(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusTranslatedTM, "Hello world")

	_, _, err := f.tm.AddEntry(context.Background(), domain.TMKey{
		SourceLanguage: "en",
		TargetLanguage: "de",
		SourceText:     "Hello world",
	}, "Hallo Welt")
	require.NoError(t, err)

	resolved, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{
		AIConfigID:    "cfg-1",
		RetranslateTM: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusTranslated, resolved.Status)
	assert.Equal(t, "[de] Hello world", resolved.Translation)
	require.Len(t, f.translator.Requests, 1)
	assert.Empty(t, f.tm.Bumped())
}

func TestResolver_ResolveUnit_CapabilityFailure(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusPending, "Hello world")
	f.translator.TranslateFunc = func(ctx context.Context, req driven.TranslationRequest) (*driven.TranslationResult, error) {
		return nil, &domain.CapabilityError{Provider: "openai", Message: "rate limit exceeded", Retryable: true}
	}

	resolved, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{AIConfigID: "cfg-1"})
	require.Error(t, err)
	var capErr *domain.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, domain.UnitStatusError, resolved.Status)
	assert.Contains(t, resolved.Error, "rate limit exceeded")

	stored, err := f.units.Get(context.Background(), unit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusError, stored.Status)
}

func TestResolver_ResolveUnit_ErrorUnitIsRetryable(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusError, "Hello world")
	unit.Error = "previous failure"

	resolved, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{AIConfigID: "cfg-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusTranslated, resolved.Status)
	assert.Empty(t, resolved.Error)
}

func TestResolver_ResolveUnit_IllegalStatus(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusReviewing, "Hello world")

	_, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{AIConfigID: "cfg-1"})
	var transErr *domain.StateTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, domain.UnitStatusReviewing, transErr.From)
}

const resolverSampleXLIFF = `<?xml version="1.0" encoding="UTF-8"?>
<xliff version="1.2" xmlns="urn:oasis:names:tc:xliff:document:1.2">
  <file original="handbook.docx" source-language="en" target-language="de" datatype="plaintext">
    <body>
      <trans-unit id="u1">
        <source>Hello world</source>
        <target state="translated">Hallo Welt</target>
      </trans-unit>
      <trans-unit id="u2">
        <source>Goodbye</source>
      </trans-unit>
    </body>
  </file>
</xliff>`

func TestResolver_ExtractFile(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)

	units, err := f.resolver.ExtractFile(context.Background(), "file-1", []byte(resolverSampleXLIFF))
	require.NoError(t, err)
	require.Len(t, units, 2)

	assert.Equal(t, domain.UnitStatusTranslated, units[0].Status)
	assert.Equal(t, "Hallo Welt", units[0].Translation)
	assert.Equal(t, domain.UnitStatusPending, units[1].Status)
	assert.Equal(t, 1, f.lock.AcquireCalls)

	file, err := f.files.Get(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Equal(t, domain.FormatXLIFF12, file.Format)
	assert.Equal(t, "en", file.SourceLanguage)
	assert.Equal(t, "de", file.TargetLanguage)
	assert.Equal(t, 2, file.Stats.Total)
	assert.Equal(t, 1, file.Stats.Pending)
	assert.Equal(t, 1, file.Stats.Translated)
}

func TestResolver_ExtractFile_LockContention(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)

	held, err := f.lock.Acquire(context.Background(), "file:extract:file-1", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = f.resolver.ExtractFile(context.Background(), "file-1", []byte(resolverSampleXLIFF))
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestResolver_ExtractFile_MalformedDocument(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)

	_, err := f.resolver.ExtractFile(context.Background(), "file-1", []byte("not xml at all"))
	require.Error(t, err)

	// A failed extraction must not touch the existing unit set.
	units, err := f.units.ListByFile(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestResolver_ExportFile(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)

	units, err := f.resolver.ExtractFile(context.Background(), "file-1", []byte(resolverSampleXLIFF))
	require.NoError(t, err)

	resolved, err := f.resolver.ResolveUnit(context.Background(), units[1].ID, driving.ResolveOptions{AIConfigID: "cfg-1"})
	require.NoError(t, err)
	require.Equal(t, domain.UnitStatusTranslated, resolved.Status)

	out, err := f.resolver.ExportFile(context.Background(), "file-1", []byte(resolverSampleXLIFF))
	require.NoError(t, err)
	assert.Contains(t, string(out), "[de] Goodbye")
	assert.Contains(t, string(out), "Hallo Welt")
	assert.Contains(t, string(out), `original="handbook.docx"`)
}

func TestResolver_ExportFile_RoundTripPreservesEntities(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<xliff version="1.2" xmlns="urn:oasis:names:tc:xliff:document:1.2">
  <file original="menu.xlf" source-language="en" target-language="de" datatype="plaintext">
    <body>
      <trans-unit id="m1">
        <source>Fish &amp; chips</source>
        <target state="translated">Fisch &amp; Pommes</target>
      </trans-unit>
    </body>
  </file>
</xliff>
`
	f := newResolverFixture(t)
	f.seedFile(t)

	units, err := f.resolver.ExtractFile(context.Background(), "file-1", []byte(doc))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.True(t, units[0].RawTarget)

	// Nothing was retranslated, so the export must reproduce the document
	// byte for byte, entities included.
	out, err := f.resolver.ExportFile(context.Background(), "file-1", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, string(out))
}

func TestResolver_ConfirmToTM(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := domain.NewUnit("file-1", 0, "u1", "Hello world")
	unit.SetTranslation("Hallo Welt")
	unit.FinalText = "Hallo, Welt"
	unit.Status = domain.UnitStatusCompleted
	require.NoError(t, f.units.ReplaceFileUnits(context.Background(), "file-1", []*domain.Unit{unit}))

	entry, err := f.resolver.ConfirmToTM(context.Background(), unit.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hallo, Welt", entry.TargetText)
	require.NotNil(t, entry.Key.ProjectID)
	assert.Equal(t, "proj-1", *entry.Key.ProjectID)

	matches, err := f.tm.FindMatches(context.Background(), domain.TMQuery{
		SourceText:     "Hello world",
		SourceLanguage: "en",
		TargetLanguage: "de",
		ProjectID:      entry.Key.ProjectID,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 100, matches[0].Score)
}

func TestResolver_ConfirmToTM_RejectsUnconfirmedUnit(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusPending, "Hello world")

	_, err := f.resolver.ConfirmToTM(context.Background(), unit.ID)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResolver_ResolveUnit_ConflictSurfaces(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusPending, "Hello world")
	f.units.UpdateErr = domain.ErrConflict

	_, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{AIConfigID: "cfg-1"})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestResolver_ResolveUnit_NormalizedTMLookup(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusPending, "  Hello   world  ")

	_, _, err := f.tm.AddEntry(context.Background(), domain.TMKey{
		SourceLanguage: "en",
		TargetLanguage: "de",
		SourceText:     "Hello world",
	}, "Hallo Welt")
	require.NoError(t, err)

	resolved, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{AIConfigID: "cfg-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusTranslatedTM, resolved.Status)
	assert.Equal(t, "Hallo Welt", resolved.Translation)
}

func TestResolver_ResolveUnit_CapabilitySourceFailure(t *testing.T) {
	f := newResolverFixture(t)
	f.seedFile(t)
	unit := f.seedUnit(t, domain.UnitStatusPending, "Hello world")
	f.resolver.capabilities = &stubCapabilities{err: errors.New("config missing")}

	resolved, err := f.resolver.ResolveUnit(context.Background(), unit.ID, driving.ResolveOptions{AIConfigID: "gone"})
	require.Error(t, err)
	assert.Equal(t, domain.UnitStatusError, resolved.Status)
	assert.True(t, strings.Contains(resolved.Error, "config missing"))
}
