package usecase

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

const DefaultMaxFileBytes int64 = 15 * 1024 * 1024

// Signature binds an extension to the magic numbers a genuine file of that type starts with.
type Signature struct {
	Extension string
	Format    domain.DetectedFormat
	Magic     [][]byte
}

// DefaultSignatures returns the accepted upload formats, in lookup order.
func DefaultSignatures() []Signature {
	return []Signature{
		{Extension: "pdf", Format: domain.FormatPDF, Magic: [][]byte{[]byte("%PDF")}},
		{Extension: "jpg", Format: domain.FormatImage, Magic: [][]byte{{0xFF, 0xD8, 0xFF}}},
		{Extension: "png", Format: domain.FormatImage, Magic: [][]byte{{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}}},
		{Extension: "docx", Format: domain.FormatDocx, Magic: [][]byte{{'P', 'K', 0x03, 0x04}}},
		{Extension: "doc", Format: domain.FormatDocx, Magic: [][]byte{{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}}},
	}
}

type IntegrityResult struct {
	Valid     bool
	Error     string
	Kind      domain.VerdictErrorKind
	Declared  string
	Sniffed   string
	Extension string
	Format    domain.DetectedFormat
}

type IntegrityValidator struct {
	maxBytes   int64
	signatures []Signature
}

func NewIntegrityValidator(maxBytes int64, signatures []Signature) *IntegrityValidator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	if len(signatures) == 0 {
		signatures = DefaultSignatures()
	}
	copied := make([]Signature, len(signatures))
	copy(copied, signatures)
	return &IntegrityValidator{maxBytes: maxBytes, signatures: copied}
}

// Check verifies size and magic number. A file whose header matches a known
// signature other than the declared one is still accepted: inside the same
// format family the declared extension is kept, across families the sniffed
// one wins so that PDF and word parsing always see their real format.
func (v *IntegrityValidator) Check(raw []byte, declaredExt string) IntegrityResult {
	declared := NormalizeExtension(declaredExt)
	res := IntegrityResult{Declared: declared, Format: domain.FormatUnsupported}

	if int64(len(raw)) > v.maxBytes {
		res.Kind = domain.KindFileTooLarge
		res.Error = fmt.Sprintf("file has %d bytes, limit is %d", len(raw), v.maxBytes)
		return res
	}

	if sig, ok := v.lookup(declared); ok && sig.matches(raw) {
		res.Valid = true
		res.Sniffed = declared
		res.Extension = declared
		res.Format = sig.Format
		return res
	}

	sniffed, ok := v.sniff(raw)
	if !ok {
		res.Kind = domain.KindInvalidSignature
		res.Error = "file header does not match any accepted format"
		return res
	}

	res.Valid = true
	res.Sniffed = sniffed.Extension
	res.Extension = sniffed.Extension
	res.Format = sniffed.Format
	if sig, ok := v.lookup(declared); ok && sig.Format == sniffed.Format {
		res.Extension = declared
	}
	return res
}

func (v *IntegrityValidator) lookup(ext string) (Signature, bool) {
	for _, sig := range v.signatures {
		if sig.Extension == ext {
			return sig, true
		}
	}
	return Signature{}, false
}

func (v *IntegrityValidator) sniff(raw []byte) (Signature, bool) {
	for _, sig := range v.signatures {
		if sig.matches(raw) {
			return sig, true
		}
	}
	return Signature{}, false
}

func (s Signature) matches(raw []byte) bool {
	for _, magic := range s.Magic {
		if len(magic) > 0 && bytes.HasPrefix(raw, magic) {
			return true
		}
	}
	return false
}

// NormalizeExtension accepts either a filename or a bare extension.
func NormalizeExtension(name string) string {
	ext := strings.ToLower(strings.TrimSpace(name))
	if e := filepath.Ext(ext); e != "" {
		ext = e
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}

// ImageMIME maps an accepted raster extension to its media type.
func ImageMIME(ext string) string {
	if ext == "png" {
		return "image/png"
	}
	return "image/jpeg"
}
