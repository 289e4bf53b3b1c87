package codec

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/custodia-labs/lingua-core/internal/core/domain"
	"github.com/custodia-labs/lingua-core/internal/core/ports/driven"
)

const sampleXLIFF = `<?xml version="1.0" encoding="UTF-8"?>
<xliff version="1.2" xmlns="urn:oasis:names:tc:xliff:document:1.2">
  <file original="app.properties" source-language="en" target-language="de" datatype="plaintext">
    <header>
      <tool tool-id="lingua" tool-name="lingua-core"/>
    </header>
    <body>
      <trans-unit id="u1">
        <source>Hello world</source>
        <target state="translated">Hallo Welt</target>
      </trans-unit>
      <trans-unit id="u2">
        <source>Save <g id="1">all</g> files</source>
        <target state="final">Speichere <g id="1">alle</g> Dateien</target>
        <note>keep the tag</note>
      </trans-unit>
      <trans-unit id="u3">
        <source>Missing target</source>
      </trans-unit>
      <trans-unit id="u4">
        <source>Empty target</source>
        <target/>
      </trans-unit>
    </body>
  </file>
</xliff>
`

func TestXLIFF12_Extract(t *testing.T) {
	codec := NewXLIFF12()
	ext, err := codec.Extract([]byte(sampleXLIFF))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ext.Info.SourceLanguage != "en" || ext.Info.TargetLanguage != "de" {
		t.Errorf("unexpected languages: %+v", ext.Info)
	}
	if ext.Info.Original != "app.properties" {
		t.Errorf("unexpected original: %q", ext.Info.Original)
	}
	if len(ext.Units) != 4 {
		t.Fatalf("expected 4 units, got %d", len(ext.Units))
	}

	for i, u := range ext.Units {
		if u.Index != i {
			t.Errorf("unit %d: expected sequential index, got %d", i, u.Index)
		}
	}

	u1 := ext.Units[0]
	if u1.ExternalID != "u1" || u1.SourceRaw != "Hello world" || u1.TargetRaw != "Hallo Welt" {
		t.Errorf("unexpected unit 1: %+v", u1)
	}
	if u1.StatusHint != domain.UnitStatusTranslated {
		t.Errorf("unit 1: expected TRANSLATED hint, got %s", u1.StatusHint)
	}

	u2 := ext.Units[1]
	if u2.SourceRaw != `Save <g id="1">all</g> files` {
		t.Errorf("inline markup not preserved verbatim: %q", u2.SourceRaw)
	}
	if u2.StatusHint != domain.UnitStatusCompleted {
		t.Errorf("unit 2: expected COMPLETED hint for final state, got %s", u2.StatusHint)
	}
	if u2.Meta["inline"] != "1" {
		t.Error("unit 2: expected inline meta flag")
	}

	u3 := ext.Units[2]
	if u3.TargetRaw != "" || u3.StatusHint != domain.UnitStatusPending {
		t.Errorf("unit 3: expected empty translation and PENDING hint, got %+v", u3)
	}

	u4 := ext.Units[3]
	if u4.TargetRaw != "" || u4.StatusHint != domain.UnitStatusPending {
		t.Errorf("unit 4: expected PENDING hint for empty target, got %+v", u4)
	}
}

func TestXLIFF12_Write_RoundTripUntouched(t *testing.T) {
	codec := NewXLIFF12()
	out, err := codec.Write([]byte(sampleXLIFF), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != sampleXLIFF {
		t.Error("document with no translation changes must be byte-identical")
	}

	// Units with empty text leave the document untouched too.
	out, err = codec.Write([]byte(sampleXLIFF), []driven.WriteUnit{
		{ExternalID: "u1", Text: ""},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != sampleXLIFF {
		t.Error("empty write text must leave the existing target untouched")
	}
}

func TestXLIFF12_Write_SubstitutesOnlyTargets(t *testing.T) {
	codec := NewXLIFF12()
	out, err := codec.Write([]byte(sampleXLIFF), []driven.WriteUnit{
		{ExternalID: "u1", Text: "Hallo schöne Welt", Status: domain.UnitStatusCompleted},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := strings.Replace(sampleXLIFF,
		`<target state="translated">Hallo Welt</target>`,
		`<target state="final">Hallo schöne Welt</target>`, 1)
	if string(out) != expected {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestXLIFF12_Write_InsertsMissingTarget(t *testing.T) {
	codec := NewXLIFF12()
	out, err := codec.Write([]byte(sampleXLIFF), []driven.WriteUnit{
		{ExternalID: "u3", Text: "Fehlendes Ziel", Status: domain.UnitStatusTranslated},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := strings.Replace(sampleXLIFF,
		`<source>Missing target</source>`,
		`<source>Missing target</source><target state="translated">Fehlendes Ziel</target>`, 1)
	if string(out) != expected {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestXLIFF12_Write_ReplacesSelfClosingTarget(t *testing.T) {
	codec := NewXLIFF12()
	out, err := codec.Write([]byte(sampleXLIFF), []driven.WriteUnit{
		{ExternalID: "u4", Text: "Leeres Ziel", Status: domain.UnitStatusTranslated},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := strings.Replace(sampleXLIFF,
		`<target/>`,
		`<target state="translated">Leeres Ziel</target>`, 1)
	if string(out) != expected {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestXLIFF12_Write_PreservesInlineMarkup(t *testing.T) {
	codec := NewXLIFF12()
	out, err := codec.Write([]byte(sampleXLIFF), []driven.WriteUnit{
		{ExternalID: "u2", Text: `Sichere <g id="1">alle</g> Dateien`, Status: domain.UnitStatusReviewCompleted, Raw: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := strings.Replace(sampleXLIFF,
		`<target state="final">Speichere <g id="1">alle</g> Dateien</target>`,
		`<target state="reviewed">Sichere <g id="1">alle</g> Dateien</target>`, 1)
	if string(out) != expected {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestXLIFF12_Write_EscapesPlainText(t *testing.T) {
	codec := NewXLIFF12()
	out, err := codec.Write([]byte(sampleXLIFF), []driven.WriteUnit{
		{ExternalID: "u1", Text: "Salz & Pfeffer"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), ">Salz &amp; Pfeffer</target>") {
		t.Errorf("expected escaped ampersand:\n%s", out)
	}
}

func TestXLIFF12_Write_EscapesAngleBrackets(t *testing.T) {
	codec := NewXLIFF12()
	out, err := codec.Write([]byte(sampleXLIFF), []driven.WriteUnit{
		{ExternalID: "u1", Text: "a < b"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), ">a &lt; b</target>") {
		t.Errorf("expected escaped angle bracket:\n%s", out)
	}
	if _, err := codec.Extract(out); err != nil {
		t.Errorf("written document must stay parseable: %v", err)
	}
}

func TestXLIFF12_RoundTripPreservesEntities(t *testing.T) {
	doc := `<?xml version="1.0"?>
<xliff version="1.2">
  <file original="menu" source-language="en" target-language="de" datatype="plaintext">
    <body>
      <trans-unit id="m1">
        <source>Fish &amp; chips</source>
        <target state="translated">Fisch &amp; Pommes</target>
      </trans-unit>
    </body>
  </file>
</xliff>
`
	codec := NewXLIFF12()
	ext, err := codec.Extract([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.Units[0].TargetRaw != "Fisch &amp; Pommes" {
		t.Fatalf("target must be captured as raw inner XML, got %q", ext.Units[0].TargetRaw)
	}

	// Writing the captured target back unchanged must not re-escape it.
	out, err := codec.Write([]byte(doc), []driven.WriteUnit{
		{ExternalID: "m1", Text: ext.Units[0].TargetRaw, Status: domain.UnitStatusTranslated, Raw: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != doc {
		t.Errorf("extract-export cycle must be byte-identical:\n%s", out)
	}
}

func TestXLIFF12_Write_WarnsOnMissingID(t *testing.T) {
	doc := `<?xml version="1.0"?>
<xliff version="1.2">
  <file original="f" source-language="en" target-language="de" datatype="plaintext">
    <body>
      <trans-unit>
        <source>one</source>
        <target>eins</target>
      </trans-unit>
      <trans-unit id="good-1">
        <source>two</source>
        <target>zwei</target>
      </trans-unit>
    </body>
  </file>
</xliff>
`
	var logs bytes.Buffer
	codec := &XLIFF12{logger: slog.New(slog.NewTextHandler(&logs, nil))}
	out, err := codec.Write([]byte(doc), []driven.WriteUnit{
		{ExternalID: "good-1", Text: "ZWEI"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), "<target>ZWEI</target>") {
		t.Error("unit with a safe id must still be written")
	}
	if !strings.Contains(string(out), "<target>eins</target>") {
		t.Error("the id-less unit must stay untouched")
	}
	if !strings.Contains(logs.String(), "unsafe native id") {
		t.Errorf("expected a warning for the id-less unit, got logs:\n%s", logs.String())
	}
}

func TestXLIFF12_Write_SkipsUnsafeID(t *testing.T) {
	doc := `<?xml version="1.0"?>
<xliff version="1.2">
  <file original="f" source-language="en" target-language="de" datatype="plaintext">
    <body>
      <trans-unit id="bad id &quot;x&quot;">
        <source>one</source>
        <target>eins</target>
      </trans-unit>
      <trans-unit id="good-1">
        <source>two</source>
        <target>zwei</target>
      </trans-unit>
    </body>
  </file>
</xliff>
`
	codec := NewXLIFF12()
	out, err := codec.Write([]byte(doc), []driven.WriteUnit{
		{ExternalID: `bad id "x"`, Text: "EINS"},
		{ExternalID: "good-1", Text: "ZWEI"},
	})
	if err != nil {
		t.Fatalf("write must not fail on a single unsafe id: %v", err)
	}
	if strings.Contains(string(out), "EINS") {
		t.Error("unsafe unit must be skipped")
	}
	if !strings.Contains(string(out), "<target>ZWEI</target>") {
		t.Error("safe unit must still be written")
	}
}

func TestXLIFF12_MalformedDocument(t *testing.T) {
	codec := NewXLIFF12()
	_, err := codec.Extract([]byte("<xliff><file></xliff>"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	var ce *domain.CodecError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CodecError, got %T", err)
	}
	if ce.Op != "extract" {
		t.Errorf("expected extract op, got %q", ce.Op)
	}

	_, err = codec.Write([]byte("<xliff><file></xliff>"), nil)
	if !errors.As(err, &ce) || ce.Op != "write" {
		t.Errorf("expected write CodecError, got %v", err)
	}
}

func TestRegistry_Detect(t *testing.T) {
	reg := NewRegistry()

	c, err := reg.Detect([]byte(sampleXLIFF))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Format() != domain.FormatXLIFF12 {
		t.Errorf("expected xliff-1.2, got %s", c.Format())
	}

	c, err = reg.Detect([]byte(sampleMemoQ))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Format() != domain.FormatMemoQ {
		t.Errorf("expected memoq-xliff, got %s", c.Format())
	}
}

func TestRegistry_ForFormat(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.ForFormat(domain.FormatXLIFF12); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := reg.ForFormat(domain.FormatMemoQ); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := reg.ForFormat(domain.FileFormat("po")); err == nil {
		t.Error("expected error for unsupported format")
	}
}
