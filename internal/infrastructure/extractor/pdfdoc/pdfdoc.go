// Package pdfdoc reads PDF uploads: pdfcpu handles decryption and embedded
// images, ledongthuc/pdf reads the text layer.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

type Document struct {
	pages  int
	text   *pdf.Reader
	images *model.Context
}

// Open parses raw. Encrypted files are opened with the empty user password;
// anything needing a real password yields domain.ErrPasswordProtected.
func Open(raw []byte) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadContext(bytes.NewReader(raw), conf)
	if err != nil {
		if isPasswordError(err) {
			return nil, domain.WrapError(domain.ErrPasswordProtected, "open pdf", err)
		}
		return openTextOnly(raw, err)
	}

	plain := raw
	if ctx.Encrypt != nil {
		var buf bytes.Buffer
		if err := api.Decrypt(bytes.NewReader(raw), &buf, model.NewDefaultConfiguration()); err != nil {
			return nil, domain.WrapError(domain.ErrPasswordProtected, "decrypt pdf", err)
		}
		plain = buf.Bytes()
	}

	doc := &Document{pages: ctx.PageCount}

	// pdfcpu validation is stricter than the text reader, so images are optional.
	if imgCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(plain), model.NewDefaultConfiguration()); err == nil {
		doc.images = imgCtx
	}

	textReader, err := newTextReader(plain)
	if err == nil {
		doc.text = textReader
		if n := textReader.NumPage(); n > doc.pages {
			doc.pages = n
		}
	}
	if doc.text == nil && doc.images == nil {
		return nil, domain.WrapError(domain.ErrCorruptedFile, "open pdf", fmt.Errorf("no readable content: %w", err))
	}
	return doc, nil
}

func (d *Document) NumPages() int {
	return d.pages
}

func (d *Document) PageText(page int) (text string, err error) {
	if d.text == nil || page < 1 || page > d.text.NumPage() {
		return "", nil
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read page %d text: %v", page, r)
		}
	}()

	p := d.text.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("read page %d text: %w", page, err)
	}
	return strings.TrimSpace(text), nil
}

// PageImages returns the embedded raster images of page ordered by object number.
func (d *Document) PageImages(page int) ([][]byte, error) {
	if d.images == nil || page < 1 || page > d.images.PageCount {
		return nil, nil
	}
	found, err := pdfcpu.ExtractPageImages(d.images, page, false)
	if err != nil {
		return nil, fmt.Errorf("extract page %d images: %w", page, err)
	}

	objNrs := make([]int, 0, len(found))
	for nr := range found {
		objNrs = append(objNrs, nr)
	}
	sort.Ints(objNrs)

	out := make([][]byte, 0, len(objNrs))
	for _, nr := range objNrs {
		img := found[nr]
		if img.Reader == nil {
			continue
		}
		data, err := io.ReadAll(img)
		if err != nil {
			return out, fmt.Errorf("read image %d on page %d: %w", nr, page, err)
		}
		if len(data) > 0 {
			out = append(out, data)
		}
	}
	return out, nil
}

// openTextOnly serves files pdfcpu cannot parse but whose text layer is still
// readable. Such files never carry images.
func openTextOnly(raw []byte, cause error) (*Document, error) {
	textReader, err := newTextReader(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCorruptedFile, "open pdf", fmt.Errorf("%w (text layer: %v)", cause, err))
	}
	return &Document{pages: textReader.NumPage(), text: textReader}, nil
}

func newTextReader(raw []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("parse pdf text layer: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
}

func isPasswordError(err error) bool {
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password")
}
