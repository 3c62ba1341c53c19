package worddoc

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestDocxParagraphsInOrder(t *testing.T) {
	raw := buildDocx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>RELATÓRIO MÉDICO</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Paciente: </w:t></w:r><w:r><w:t>Maria da Silva</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t>CID-10 M54.5</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	got := Text(raw)
	want := "RELATÓRIO MÉDICO\nPaciente: Maria da Silva\nCID-10 M54.5"
	if got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestDocxWithoutBodyIsEmpty(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("other.xml"); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if got := Text(buf.Bytes()); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestBrokenContainersAreEmpty(t *testing.T) {
	cases := map[string][]byte{
		"truncated zip": {'P', 'K', 0x03, 0x04, 0x00},
		"truncated ole": {0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00},
		"unknown":       []byte("plain text"),
	}
	for name, raw := range cases {
		if got := Text(raw); got != "" {
			t.Fatalf("%s: expected empty text, got %q", name, got)
		}
	}
}

func TestCleanWordText(t *testing.T) {
	got := cleanWordText("Holerite\r\x13 PAGE \x14\x15Total\x07Líquido\r\r")
	want := "Holerite\nPAGE Total Líquido"
	if got != want {
		t.Fatalf("cleanWordText() = %q, want %q", got, want)
	}
}

func singleRunDocx(t *testing.T, runBytes int) []byte {
	t.Helper()
	return buildDocx(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>`+
		strings.Repeat("a", runBytes)+
		`</w:t></w:r></w:p></w:body></w:document>`)
}

func TestDocxInflatingPastLimitIsEmpty(t *testing.T) {
	raw := singleRunDocx(t, 8<<20)
	if len(raw) > 256<<10 {
		t.Fatalf("expected a highly compressed container, got %d bytes", len(raw))
	}

	if got := TextWithLimit(raw, 1<<20); got != "" {
		t.Fatalf("expected empty text above the inflate limit, got %d bytes", len(got))
	}
}

func TestDocxTextIsCapped(t *testing.T) {
	raw := singleRunDocx(t, 3<<20)

	got := Text(raw)
	if len(got) != maxTextBytes {
		t.Fatalf("expected text capped at %d bytes, got %d", maxTextBytes, len(got))
	}
}

func TestDocxWithinLimitIsRead(t *testing.T) {
	raw := singleRunDocx(t, 2048)
	if got := TextWithLimit(raw, 1<<20); len(got) != 2048 {
		t.Fatalf("expected full text under the limit, got %d bytes", len(got))
	}
}
