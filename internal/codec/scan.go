package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
)

// span records the byte layout of one element in the original document.
// Offsets index into the scanned byte slice, so write-back can splice
// replacement content without re-serializing anything else.
type span struct {
	present     bool
	selfClosing bool
	tagStart    int // offset of '<' of the start tag
	openEnd     int // offset just after the start tag (== inner start)
	innerEnd    int // offset of '<' of the end tag (== openEnd when empty)
	end         int // offset just after the end tag
}

// inner returns the verbatim inner bytes of the element.
func (s span) inner(data []byte) string {
	if !s.present || s.selfClosing || s.innerEnd <= s.openEnd {
		return ""
	}
	return string(data[s.openEnd:s.innerEnd])
}

// unitSpan is the byte layout of one trans-unit and its source/target.
type unitSpan struct {
	id        string
	attrs     []xml.Attr
	unit      span
	source    span
	target    span
	endTagPos int // offset of '<' of </trans-unit>, insertion fallback
}

// docScan is the structural index of one document.
type docScan struct {
	rootAttrs []xml.Attr
	fileAttrs []xml.Attr
	units     []*unitSpan
}

// scanDocument tokenizes the document once, recording byte spans for every
// trans-unit, source and target element. It is shared by both dialects;
// only attribute vocabulary differs between them.
func scanDocument(data []byte) (*docScan, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	scan := &docScan{}

	var (
		depth      int
		rootSeen   bool
		current    *unitSpan
		unitDepth  int
		active     *span // source or target being captured
		activeElem string
	)

	for {
		tagStart := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		after := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if !rootSeen {
				rootSeen = true
				scan.rootAttrs = copyAttrs(t.Attr)
			}
			switch {
			case t.Name.Local == "file" && scan.fileAttrs == nil:
				scan.fileAttrs = copyAttrs(t.Attr)
			case t.Name.Local == "trans-unit" && current == nil:
				current = &unitSpan{
					id:    attrValue(t.Attr, "id"),
					attrs: copyAttrs(t.Attr),
					unit:  span{present: true, tagStart: tagStart, openEnd: after},
				}
				unitDepth = depth
			case current != nil && active == nil && depth == unitDepth+1 &&
				(t.Name.Local == "source" || t.Name.Local == "target"):
				activeElem = t.Name.Local
				sp := span{present: true, tagStart: tagStart, openEnd: after}
				active = &sp
				storeActive(current, activeElem, sp)
			}

		case xml.EndElement:
			if active != nil && depth == unitDepth+1 {
				sp := loadActive(current, activeElem)
				sp.end = after
				if after == sp.openEnd {
					sp.selfClosing = true
					sp.innerEnd = sp.openEnd
				} else {
					sp.innerEnd = bytes.LastIndexByte(data[:after], '<')
				}
				storeActive(current, activeElem, sp)
				active = nil
				activeElem = ""
			} else if current != nil && depth == unitDepth && t.Name.Local == "trans-unit" {
				current.unit.end = after
				if after == current.unit.openEnd {
					current.unit.selfClosing = true
					current.endTagPos = after
				} else {
					current.endTagPos = bytes.LastIndexByte(data[:after], '<')
				}
				current.unit.innerEnd = current.endTagPos
				scan.units = append(scan.units, current)
				current = nil
			}
			depth--
		}
	}

	if !rootSeen {
		return nil, errors.New("no root element")
	}
	return scan, nil
}

func storeActive(u *unitSpan, elem string, sp span) {
	if u == nil {
		return
	}
	if elem == "source" {
		u.source = sp
	} else {
		u.target = sp
	}
}

func loadActive(u *unitSpan, elem string) span {
	if u == nil {
		return span{}
	}
	if elem == "source" {
		return u.source
	}
	return u.target
}

func copyAttrs(attrs []xml.Attr) []xml.Attr {
	out := make([]xml.Attr, len(attrs))
	copy(out, attrs)
	return out
}

// attrValue finds an attribute by local name, ignoring its namespace.
func attrValue(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
