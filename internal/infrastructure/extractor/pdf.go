package extractor

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

type pageContent struct {
	text      string
	imageFrom int
	imageTo   int
}

// extractPDF gathers the native text layer of every page and the OCR text of
// embedded images. Images are recognized concurrently but merged back in page
// and image order, so the result does not depend on scheduling.
func (e *Extractor) extractPDF(ctx context.Context, doc domain.Document) (domain.ExtractionResult, error) {
	pdf, err := e.openPDF(doc.Content)
	if err != nil {
		kind := domain.ExtractionCorrupted
		if errors.Is(err, domain.ErrPasswordProtected) {
			kind = domain.ExtractionPasswordProtected
		}
		e.logger.Warn("pdf_open_failed", "file_name", doc.Filename, "kind", kind, "error", err)
		return domain.ExtractionResult{Modality: domain.ModalityText, ErrorKind: kind}, nil
	}

	pageCount := pdf.NumPages()
	if pageCount > e.maxPages {
		e.logger.Info("pdf_pages_capped", "file_name", doc.Filename, "pages", pageCount, "max_pages", e.maxPages)
		pageCount = e.maxPages
	}

	pages := make([]pageContent, 0, pageCount)
	var images [][]byte
	for page := 1; page <= pageCount; page++ {
		text, err := pdf.PageText(page)
		if err != nil {
			e.logger.Warn("pdf_page_text_failed", "file_name", doc.Filename, "page", page, "error", err)
		}
		pageImages, err := pdf.PageImages(page)
		if err != nil {
			e.logger.Warn("pdf_page_images_failed", "file_name", doc.Filename, "page", page, "error", err)
		}
		pages = append(pages, pageContent{
			text:      strings.TrimSpace(text),
			imageFrom: len(images),
			imageTo:   len(images) + len(pageImages),
		})
		images = append(images, pageImages...)
	}

	ocrTexts, failures, err := e.recognizeAll(ctx, doc.Filename, images)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	parts := make([]string, 0, len(pages)+len(images))
	for _, p := range pages {
		if p.text != "" {
			parts = append(parts, p.text)
		}
		for _, t := range ocrTexts[p.imageFrom:p.imageTo] {
			if t != "" {
				parts = append(parts, t)
			}
		}
	}

	result := domain.ExtractionResult{
		Text:        strings.Join(parts, "\n"),
		Modality:    domain.ModalityText,
		Pages:       len(pages),
		Images:      len(images),
		OCRFailures: failures,
	}
	if strings.TrimSpace(result.Text) == "" {
		result.ErrorKind = domain.ExtractionEmptyContent
		if len(images) > 0 {
			result.ErrorKind = domain.ExtractionNoTextFound
		}
	}
	return result, nil
}

// recognizeAll OCRs every image with bounded parallelism. A failing image is
// logged and left empty; only cancellation of ctx aborts the batch.
func (e *Extractor) recognizeAll(ctx context.Context, filename string, images [][]byte) ([]string, int, error) {
	texts := make([]string, len(images))
	failed := make([]bool, len(images))
	if len(images) == 0 {
		return texts, 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, img := range images {
		g.Go(func() error {
			if gctx.Err() != nil {
				failed[i] = true
				return nil
			}
			text, err := e.recognize(gctx, img)
			if err != nil {
				failed[i] = true
				e.logger.Warn("pdf_image_ocr_failed", "file_name", filename, "image", i, "error", err)
				return nil
			}
			texts[i] = strings.TrimSpace(text)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	failures := 0
	for _, f := range failed {
		if f {
			failures++
		}
	}
	return texts, failures, nil
}
