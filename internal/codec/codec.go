// Package codec parses XLIFF-family bitext documents into ordered
// translation units and writes translated text back into the original
// bytes. Write-back is offset splicing: only the rewritten target content
// changes, every other byte of the document survives verbatim.
package codec

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CodecResolver = (*Registry)(nil)

// memoQNamespace is the xmlns:mq value identifying the MemoQ dialect.
const memoQNamespace = "MQXliff"

// safeID is the charset a native unit id must match to be written back.
// Units with ids outside it are skipped with a warning, not failed.
var safeID = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

// Registry resolves the codec for a document or format.
type Registry struct {
	xliff *XLIFF12
	memoq *MemoQ
}

// NewRegistry creates a registry with both supported dialects.
func NewRegistry() *Registry {
	return &Registry{
		xliff: NewXLIFF12(),
		memoq: NewMemoQ(),
	}
}

// Detect sniffs the dialect from the root element: an xliff document whose
// root declares the mq namespace is MemoQ-XLIFF, otherwise standard 1.2.
func (r *Registry) Detect(data []byte) (driven.BitextCodec, error) {
	scan, err := scanDocument(data)
	if err != nil {
		return nil, &domain.CodecError{Op: "detect", Cause: err}
	}
	for _, a := range scan.rootAttrs {
		if a.Name.Space == "xmlns" && strings.Contains(a.Value, memoQNamespace) {
			return r.memoq, nil
		}
	}
	return r.xliff, nil
}

// ForFormat returns the codec for a known format.
func (r *Registry) ForFormat(format domain.FileFormat) (driven.BitextCodec, error) {
	switch format {
	case domain.FormatXLIFF12:
		return r.xliff, nil
	case domain.FormatMemoQ:
		return r.memoq, nil
	default:
		return nil, &domain.CodecError{Op: "resolve", Cause: fmt.Errorf("unsupported format %q", format)}
	}
}

// splice is one byte-range replacement in the original document.
type splice struct {
	start, end  int
	replacement string
}

// applySplices rebuilds the document from the original bytes plus ordered
// replacements. Ranges must not overlap.
func applySplices(data []byte, splices []splice) []byte {
	sort.Slice(splices, func(i, j int) bool { return splices[i].start < splices[j].start })
	var out []byte
	pos := 0
	for _, s := range splices {
		out = append(out, data[pos:s.start]...)
		out = append(out, s.replacement...)
		pos = s.end
	}
	out = append(out, data[pos:]...)
	return out
}

// writeText prepares a unit's text for splicing. Extraction-sourced text
// is already inner XML (entities encoded, inline tags intact) and goes in
// verbatim; everything else is plain text and gets escaped.
func writeText(wu driven.WriteUnit) string {
	if wu.Raw {
		return wu.Text
	}
	return escapeText(wu.Text)
}

// escapeText escapes plain text for insertion into element content.
func escapeText(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// rewriteAttr sets attr="value" inside a raw start tag, preserving every
// other byte including attribute order. A missing attribute is appended
// just before the closing bracket.
func rewriteAttr(rawTag, attr, value string) string {
	re := regexp.MustCompile(`(\s` + regexp.QuoteMeta(attr) + `\s*=\s*")[^"]*(")`)
	if re.MatchString(rawTag) {
		return re.ReplaceAllString(rawTag, "${1}"+value+"${2}")
	}
	insert := ` ` + attr + `="` + value + `"`
	if strings.HasSuffix(rawTag, "/>") {
		return rawTag[:len(rawTag)-2] + insert + "/>"
	}
	return rawTag[:len(rawTag)-1] + insert + ">"
}

// tagAttr reads an attribute value straight out of a raw start tag.
func tagAttr(rawTag, attr string) string {
	re := regexp.MustCompile(`\s` + regexp.QuoteMeta(attr) + `\s*=\s*"([^"]*)"`)
	m := re.FindStringSubmatch(rawTag)
	if m == nil {
		return ""
	}
	return m[1]
}

// hasInlineMarkup reports whether a captured fragment carries child
// elements (inline tags) rather than plain character data.
func hasInlineMarkup(raw string) bool {
	return strings.ContainsRune(raw, '<')
}
