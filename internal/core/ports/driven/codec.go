package driven

import "github.com/custodia-labs/lingua-core/internal/core/domain"

// ExtractedUnit is one translatable span pulled out of a bitext document.
// SourceRaw/TargetRaw carry the verbatim inner XML of the native source and
// target elements, inline markup included, so write-back can preserve it.
type ExtractedUnit struct {
	Index      int
	ExternalID string
	SourceRaw  string
	TargetRaw  string
	StatusHint domain.UnitStatus
	// Meta is opaque per-codec data needed to re-insert the unit; it is
	// stored on the unit as FormatMeta and never interpreted elsewhere.
	Meta map[string]string
}

// FileInfo is document-level metadata read during extraction.
type FileInfo struct {
	Format         domain.FileFormat
	SourceLanguage string
	TargetLanguage string
	Original       string
	Datatype       string
}

// Extraction is the full result of parsing one bitext document.
type Extraction struct {
	Info  FileInfo
	Units []ExtractedUnit
}

// WriteUnit carries the text and status to write back for one unit.
// Text priority (finalText > translation > existing target) is resolved by
// the caller; an empty Text leaves the existing target untouched.
// Raw marks Text as verbatim inner XML captured at extraction: it is
// spliced back as-is. Plain text produced by the pipeline is escaped.
type WriteUnit struct {
	ExternalID string
	Text       string
	Status     domain.UnitStatus
	Raw        bool
}

// BitextCodec parses a bitext dialect into ordered units and re-serializes
// a document substituting only translated content. Write-back leaves every
// byte outside the rewritten targets identical to the input.
type BitextCodec interface {
	Format() domain.FileFormat
	Extract(data []byte) (*Extraction, error)
	Write(original []byte, units []WriteUnit) ([]byte, error)
}

// CodecResolver picks the codec for a document, sniffing the dialect.
type CodecResolver interface {
	Detect(data []byte) (BitextCodec, error)
	ForFormat(format domain.FileFormat) (BitextCodec, error)
}
