package codec

import (
	"log/slog"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BitextCodec = (*MemoQ)(nil)

// MemoQ reads and writes the namespaced MemoQ-XLIFF dialect. Unlike the
// standard dialect the native unit state lives on the trans-unit element
// as mq:status.
type MemoQ struct {
	logger *slog.Logger
}

// NewMemoQ creates the MemoQ-dialect codec.
func NewMemoQ() *MemoQ {
	return &MemoQ{logger: slog.Default()}
}

// Format identifies the dialect.
func (c *MemoQ) Format() domain.FileFormat {
	return domain.FormatMemoQ
}

// Extract parses the document into ordered units.
func (c *MemoQ) Extract(data []byte) (*driven.Extraction, error) {
	scan, err := scanDocument(data)
	if err != nil {
		return nil, &domain.CodecError{Op: "extract", Cause: err}
	}
	ext := &driven.Extraction{
		Info: driven.FileInfo{
			Format:         domain.FormatMemoQ,
			SourceLanguage: attrValue(scan.fileAttrs, "source-language"),
			TargetLanguage: attrValue(scan.fileAttrs, "target-language"),
			Original:       attrValue(scan.fileAttrs, "original"),
			Datatype:       attrValue(scan.fileAttrs, "datatype"),
		},
	}
	for i, u := range scan.units {
		sourceRaw := u.source.inner(data)
		targetRaw := u.target.inner(data)
		status := attrValueFromTag(data, u.unit, "mq:status")
		unit := driven.ExtractedUnit{
			Index:      i,
			ExternalID: u.id,
			SourceRaw:  sourceRaw,
			TargetRaw:  targetRaw,
			StatusHint: memoqStatusHint(u.target.present, targetRaw, status),
			Meta: map[string]string{
				"mq:status": status,
			},
		}
		if hasInlineMarkup(sourceRaw) || hasInlineMarkup(targetRaw) {
			unit.Meta["inline"] = "1"
		}
		ext.Units = append(ext.Units, unit)
	}
	return ext, nil
}

// memoqStatusHint maps mq:status onto the shared status-hint vocabulary.
func memoqStatusHint(hasTarget bool, targetRaw, status string) domain.UnitStatus {
	if !hasTarget || targetRaw == "" {
		return domain.UnitStatusPending
	}
	switch status {
	case "Proofread":
		return domain.UnitStatusCompleted
	case "ManuallyConfirmed", "Confirmed", "Translated":
		return domain.UnitStatusTranslated
	default:
		return domain.UnitStatusTranslated
	}
}

// memoqStatus maps a pipeline status back onto mq:status. Empty leaves the
// existing attribute untouched.
func memoqStatus(status domain.UnitStatus) string {
	switch status {
	case domain.UnitStatusCompleted:
		return "Proofread"
	case domain.UnitStatusReviewCompleted:
		return "Reviewer1Confirmed"
	case domain.UnitStatusTranslated, domain.UnitStatusTranslatedTM:
		return "ManuallyConfirmed"
	default:
		return ""
	}
}

// Write splices translated text into the original document and updates
// mq:status on the trans-unit start tag.
func (c *MemoQ) Write(original []byte, units []driven.WriteUnit) ([]byte, error) {
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
		// target text only; the native state lives on the trans-unit tag
		splices = append(splices, targetSplices(original, u, writeText(wu), "")...)
		if status := memoqStatus(wu.Status); status != "" {
			raw := string(original[u.unit.tagStart:u.unit.openEnd])
			splices = append(splices, splice{
				start:       u.unit.tagStart,
				end:         u.unit.openEnd,
				replacement: rewriteAttr(raw, "mq:status", status),
			})
		}
	}

	return applySplices(original, splices), nil
}
