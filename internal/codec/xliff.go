package codec

import (
	"log/slog"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BitextCodec = (*XLIFF12)(nil)

// XLIFF12 reads and writes standard XLIFF 1.2 documents. The native unit
// state lives in the target element's state attribute.
type XLIFF12 struct {
	logger *slog.Logger
}

// NewXLIFF12 creates the standard-dialect codec.
func NewXLIFF12() *XLIFF12 {
	return &XLIFF12{logger: slog.Default()}
}

// Format identifies the dialect.
func (c *XLIFF12) Format() domain.FileFormat {
	return domain.FormatXLIFF12
}

// Extract parses the document into ordered units. Inline markup inside
// source/target is captured verbatim as part of the unit text.
func (c *XLIFF12) Extract(data []byte) (*driven.Extraction, error) {
	scan, err := scanDocument(data)
	if err != nil {
		return nil, &domain.CodecError{Op: "extract", Cause: err}
	}
	ext := &driven.Extraction{
		Info: driven.FileInfo{
			Format:         domain.FormatXLIFF12,
			SourceLanguage: attrValue(scan.fileAttrs, "source-language"),
			TargetLanguage: attrValue(scan.fileAttrs, "target-language"),
			Original:       attrValue(scan.fileAttrs, "original"),
			Datatype:       attrValue(scan.fileAttrs, "datatype"),
		},
	}
	for i, u := range scan.units {
		sourceRaw := u.source.inner(data)
		targetRaw := u.target.inner(data)
		state := attrValueFromTag(data, u.target, "state")
		unit := driven.ExtractedUnit{
			Index:      i,
			ExternalID: u.id,
			SourceRaw:  sourceRaw,
			TargetRaw:  targetRaw,
			StatusHint: xliffStatusHint(u.target.present, targetRaw, state),
			Meta: map[string]string{
				"state": state,
			},
		}
		if hasInlineMarkup(sourceRaw) || hasInlineMarkup(targetRaw) {
			unit.Meta["inline"] = "1"
		}
		ext.Units = append(ext.Units, unit)
	}
	return ext, nil
}

// xliffStatusHint maps the native target state onto the shared status-hint
// vocabulary.
func xliffStatusHint(hasTarget bool, targetRaw, state string) domain.UnitStatus {
	if !hasTarget || targetRaw == "" {
		return domain.UnitStatusPending
	}
	switch state {
	case "final", "signed-off":
		return domain.UnitStatusCompleted
	case "translated", "needs-review-translation", "needs-review-l10n", "needs-review-adaptation":
		return domain.UnitStatusTranslated
	default:
		return domain.UnitStatusTranslated
	}
}

// xliffState maps a pipeline status back onto the native state vocabulary.
// Empty means the existing state attribute is left untouched.
func xliffState(status domain.UnitStatus) string {
	switch status {
	case domain.UnitStatusCompleted:
		return "final"
	case domain.UnitStatusReviewCompleted:
		return "reviewed"
	case domain.UnitStatusTranslated, domain.UnitStatusTranslatedTM:
		return "translated"
	default:
		return ""
	}
}

// Write splices translated text into the original document. Units whose
// native id is missing or unsafe are skipped with a warning; everything
// outside the rewritten targets stays byte-identical.
func (c *XLIFF12) Write(original []byte, units []driven.WriteUnit) ([]byte, error) {
	scan, err := scanDocument(original)
	if err != nil {
		return nil, &domain.CodecError{Op: "write", Cause: err}
	}

	byID := make(map[string]driven.WriteUnit, len(units))
	for _, wu := range units {
		if wu.ExternalID != "" {
			byID[wu.ExternalID] = wu
		}
	}

	var splices []splice
	for _, u := range scan.units {
		if u.id == "" || !safeID.MatchString(u.id) {
			c.logger.Warn("skipping unit with unsafe native id", "id", u.id)
			continue
		}
		wu, ok := byID[u.id]
		if !ok {
			continue
		}
		if wu.Text == "" {
			continue
		}
		splices = append(splices, targetSplices(original, u, writeText(wu), xliffState(wu.Status))...)
	}

	return applySplices(original, splices), nil
}

// targetSplices produces the replacements for one unit's target element:
// rewritten inner text plus, when mapped, the native state attribute.
// A missing target is inserted right after the source element.
func targetSplices(data []byte, u *unitSpan, text, state string) []splice {
	t := u.target
	if !t.present {
		insertAt := u.endTagPos
		if u.source.present {
			insertAt = u.source.end
		}
		tag := "<target>"
		if state != "" {
			tag = `<target state="` + state + `">`
		}
		return []splice{{start: insertAt, end: insertAt, replacement: tag + text + "</target>"}}
	}
	if t.selfClosing {
		raw := string(data[t.tagStart:t.end])
		open := raw[:len(raw)-2] + ">"
		if state != "" {
			open = rewriteAttr(open, "state", state)
		}
		return []splice{{start: t.tagStart, end: t.end, replacement: open + text + "</target>"}}
	}
	splices := []splice{{start: t.openEnd, end: t.innerEnd, replacement: text}}
	if state != "" {
		raw := string(data[t.tagStart:t.openEnd])
		splices = append(splices, splice{start: t.tagStart, end: t.openEnd, replacement: rewriteAttr(raw, "state", state)})
	}
	return splices
}

// attrValueFromTag reads an attribute straight from the raw start tag of a
// scanned span. Returns empty when the element is absent.
func attrValueFromTag(data []byte, s span, attr string) string {
	if !s.present {
		return ""
	}
	raw := string(data[s.tagStart:s.openEnd])
	return tagAttr(raw, attr)
}
