package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

// singlePagePDF writes a minimal one-page PDF with a correct xref table.
func singlePagePDF(text string) []byte {
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func TestOpenRejectsGarbageAsCorrupted(t *testing.T) {
	_, err := Open([]byte("%PDF-1.4\nthis is not a pdf body"))
	if !domain.IsKind(err, domain.ErrCorruptedFile) {
		t.Fatalf("expected corrupted file error, got %v", err)
	}
}

func TestOpenReadsSinglePageText(t *testing.T) {
	doc, err := Open(singlePagePDF("Demonstrativo de Pagamento"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if doc.NumPages() != 1 {
		t.Fatalf("expected 1 page, got %d", doc.NumPages())
	}

	text, err := doc.PageText(1)
	if err != nil {
		t.Fatalf("PageText() error = %v", err)
	}
	if !strings.Contains(text, "Demonstrativo") {
		t.Fatalf("expected page text to contain %q, got %q", "Demonstrativo", text)
	}

	images, err := doc.PageImages(1)
	if err == nil && len(images) != 0 {
		t.Fatalf("expected no embedded images, got %d", len(images))
	}
}

func TestPageAccessOutOfRangeIsEmpty(t *testing.T) {
	doc, err := Open(singlePagePDF("RG"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if text, err := doc.PageText(7); err != nil || text != "" {
		t.Fatalf("expected empty text for missing page, got %q, %v", text, err)
	}
	if images, err := doc.PageImages(0); err != nil || images != nil {
		t.Fatalf("expected no images for page 0, got %v, %v", images, err)
	}
}

func encryptPDF(t *testing.T, raw []byte, userPW string) []byte {
	t.Helper()
	var out bytes.Buffer
	conf := model.NewAESConfiguration(userPW, "owner", 256)
	if err := api.Encrypt(bytes.NewReader(raw), &out, conf); err != nil {
		t.Fatalf("encrypt pdf: %v", err)
	}
	return out.Bytes()
}

func TestOpenDecryptsEmptyUserPassword(t *testing.T) {
	raw := encryptPDF(t, singlePagePDF("Demonstrativo de Pagamento"), "")

	doc, err := Open(raw)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	text, err := doc.PageText(1)
	if err != nil {
		t.Fatalf("PageText() error = %v", err)
	}
	if !strings.Contains(text, "Demonstrativo de Pagamento") {
		t.Fatalf("expected decrypted text, got %q", text)
	}
}

func TestOpenRejectsUserPassword(t *testing.T) {
	raw := encryptPDF(t, singlePagePDF("Demonstrativo de Pagamento"), "secret")

	_, err := Open(raw)
	if !domain.IsKind(err, domain.ErrPasswordProtected) {
		t.Fatalf("expected password protected error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrCorruptedFile) {
		t.Fatalf("password protected file must not be reported as corrupted: %v", err)
	}
}

func TestTextOnlyFallbackKeepsTextLayer(t *testing.T) {
	cause := errors.New("pdfcpu: xref stream corrupt")

	doc, err := openTextOnly(singlePagePDF("Carteira de Trabalho"), cause)
	if err != nil {
		t.Fatalf("openTextOnly() error = %v", err)
	}
	if doc.NumPages() != 1 {
		t.Fatalf("expected 1 page, got %d", doc.NumPages())
	}
	if text, _ := doc.PageText(1); !strings.Contains(text, "Carteira de Trabalho") {
		t.Fatalf("expected text layer, got %q", text)
	}
	if images, err := doc.PageImages(1); err != nil || images != nil {
		t.Fatalf("text-only document must not report images, got %v, %v", images, err)
	}

	_, err = openTextOnly([]byte("%PDF-1.4\nnot a pdf"), cause)
	if !domain.IsKind(err, domain.ErrCorruptedFile) || !errors.Is(err, cause) {
		t.Fatalf("expected corrupted error wrapping the pdfcpu cause, got %v", err)
	}
}
