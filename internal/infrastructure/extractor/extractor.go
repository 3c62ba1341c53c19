// Package extractor turns verified uploads into text, dispatching on the detected format.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/document-validator/internal/core/domain"
	"github.com/kirillkom/document-validator/internal/core/ports"
	"github.com/kirillkom/document-validator/internal/infrastructure/extractor/pdfdoc"
	"github.com/kirillkom/document-validator/internal/infrastructure/extractor/worddoc"
)

const (
	DefaultOCRTimeout     = 30 * time.Second
	DefaultOCRConcurrency = 3
	DefaultMaxPDFPages    = 30
)

// PDFDocument is a parsed PDF whose pages can be read independently.
type PDFDocument interface {
	NumPages() int
	PageText(page int) (string, error)
	PageImages(page int) ([][]byte, error)
}

// PDFOpener parses raw PDF bytes. It returns domain.ErrPasswordProtected or
// domain.ErrCorruptedFile when the file cannot be read.
type PDFOpener func(raw []byte) (PDFDocument, error)

// WordReader returns the paragraph text of a .docx or .doc file, or "" on failure.
type WordReader func(raw []byte) string

type Options struct {
	OCRTimeout     time.Duration
	OCRConcurrency int
	MaxPDFPages    int
	OpenPDF        PDFOpener
	ReadWord       WordReader

	// MaxWordInflatedBytes bounds the decompressed body of word documents
	// read by the default WordReader.
	MaxWordInflatedBytes int64
	Logger               *slog.Logger
}

type Extractor struct {
	ocr         ports.OCRService
	ocrTimeout  time.Duration
	concurrency int
	maxPages    int
	openPDF     PDFOpener
	readWord    WordReader
	logger      *slog.Logger
}

func New(ocr ports.OCRService, opts Options) *Extractor {
	e := &Extractor{
		ocr:         ocr,
		ocrTimeout:  opts.OCRTimeout,
		concurrency: opts.OCRConcurrency,
		maxPages:    opts.MaxPDFPages,
		openPDF:     opts.OpenPDF,
		readWord:    opts.ReadWord,
		logger:      opts.Logger,
	}
	if e.ocrTimeout <= 0 {
		e.ocrTimeout = DefaultOCRTimeout
	}
	if e.concurrency <= 0 {
		e.concurrency = DefaultOCRConcurrency
	}
	if e.maxPages <= 0 {
		e.maxPages = DefaultMaxPDFPages
	}
	if e.openPDF == nil {
		e.openPDF = func(raw []byte) (PDFDocument, error) { return pdfdoc.Open(raw) }
	}
	if e.readWord == nil {
		limit := opts.MaxWordInflatedBytes
		e.readWord = func(raw []byte) string { return worddoc.TextWithLimit(raw, limit) }
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

func (e *Extractor) Extract(ctx context.Context, doc domain.Document, format domain.DetectedFormat) (domain.ExtractionResult, error) {
	switch format {
	case domain.FormatImage:
		return e.extractImage(ctx, doc)
	case domain.FormatPDF:
		return e.extractPDF(ctx, doc)
	case domain.FormatDocx:
		text := e.readWord(doc.Content)
		if text == "" {
			e.logger.Warn("word_extraction_empty", "file_name", doc.Filename, "extension", doc.Extension)
		}
		return domain.ExtractionResult{Text: text, Modality: domain.ModalityText}, nil
	case domain.FormatUnsupported:
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrInvalidInput, "extract content", fmt.Errorf("unsupported format for %q", doc.Filename))
	default:
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrInvalidInput, "extract content", fmt.Errorf("unknown format %q", format))
	}
}

func (e *Extractor) extractImage(ctx context.Context, doc domain.Document) (domain.ExtractionResult, error) {
	text, err := e.recognize(ctx, doc.Content)
	if err != nil {
		// The OCR service refuses images it cannot read at all; that is an
		// illegible upload, not an outage.
		if domain.IsKind(err, domain.ErrInvalidInput) {
			e.logger.Warn("ocr_rejected_image", "file_name", doc.Filename, "error", err)
			return domain.ExtractionResult{Modality: domain.ModalityImage, Images: 1, OCRFailures: 1}, nil
		}
		return domain.ExtractionResult{}, fmt.Errorf("ocr image: %w", err)
	}
	return domain.ExtractionResult{Text: text, Modality: domain.ModalityImage, Images: 1}, nil
}

func (e *Extractor) recognize(ctx context.Context, image []byte) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.ocrTimeout)
	defer cancel()
	return e.ocr.Recognize(callCtx, image)
}
