// Package worddoc reads paragraph text from .docx and legacy .doc files.
// Every failure yields an empty string; the legibility gate rejects it later.
package worddoc

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DefaultMaxInflatedBytes bounds the decompressed document body. Upload size
// says nothing about it: a few hundred KiB of zip can inflate to gigabytes.
const DefaultMaxInflatedBytes int64 = 64 << 20

// maxTextBytes caps collected text. Downstream stages read far less.
const maxTextBytes = 1 << 20

var (
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Text sniffs the container and returns paragraphs joined by newlines.
func Text(raw []byte) string {
	return TextWithLimit(raw, DefaultMaxInflatedBytes)
}

// TextWithLimit is Text with an explicit ceiling on the decompressed body.
// Bodies above maxInflated yield "".
func TextWithLimit(raw []byte, maxInflated int64) string {
	if maxInflated <= 0 {
		maxInflated = DefaultMaxInflatedBytes
	}
	switch {
	case bytes.HasPrefix(raw, zipMagic):
		return docxText(raw, maxInflated)
	case bytes.HasPrefix(raw, oleMagic):
		return docText(raw, maxInflated)
	default:
		return ""
	}
}

func docxText(raw []byte, maxInflated int64) string {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return ""
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil || body.UncompressedSize64 > uint64(maxInflated) {
		return ""
	}

	rc, err := body.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	decoder := xml.NewDecoder(io.LimitReader(rc, maxInflated))
	var (
		paragraphs []string
		collected  int
		current    strings.Builder
		inText     bool
		full       bool
	)
	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			paragraphs = append(paragraphs, text)
			collected += len(text) + 1
		}
		current.Reset()
	}
	for !full {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ""
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				current.Reset()
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.CharData:
			if !inText {
				continue
			}
			if room := maxTextBytes - collected - current.Len(); len(t) >= room {
				current.Write(t[:max(room, 0)])
				full = true
				continue
			}
			current.Write(t)
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		}
	}
	if full {
		flush()
	}
	return strings.ToValidUTF8(strings.Join(paragraphs, "\n"), "")
}

// Word 97-2003 File Information Block offsets.
const (
	fibIdent     = 0xA5EC
	fibFcMinOff  = 0x18
	fibCcpTextOf = 0x4C
)

// docText reads the main text run of a Word binary document. Pieces stored
// through a complex piece table are not reassembled; the contiguous run that
// starts at fcMin covers documents saved without fast-save.
func docText(raw []byte, maxInflated int64) string {
	stream := wordDocumentStream(raw, maxInflated)
	if len(stream) < fibCcpTextOf+4 {
		return ""
	}
	if binary.LittleEndian.Uint16(stream[0:2]) != fibIdent {
		return ""
	}

	fcMin := int(binary.LittleEndian.Uint32(stream[fibFcMinOff:]))
	ccpText := int(binary.LittleEndian.Uint32(stream[fibCcpTextOf:]))
	if fcMin <= 0 || ccpText <= 0 || fcMin >= len(stream) {
		return ""
	}

	var decoded []byte
	if end := fcMin + 2*ccpText; end <= len(stream) && looksUTF16(stream[fcMin:end]) {
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(stream[fcMin:end])
		if err != nil {
			return ""
		}
		decoded = out
	} else {
		end := fcMin + ccpText
		if end > len(stream) {
			return ""
		}
		out, err := charmap.Windows1252.NewDecoder().Bytes(stream[fcMin:end])
		if err != nil {
			return ""
		}
		decoded = out
	}
	return cleanWordText(string(decoded))
}

func wordDocumentStream(raw []byte, maxInflated int64) []byte {
	doc, err := mscfb.New(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		if entry.Size > maxInflated {
			return nil
		}
		buf := make([]byte, entry.Size)
		n, err := io.ReadFull(entry, buf)
		if err != nil && n == 0 {
			return nil
		}
		return buf[:n]
	}
	return nil
}

// looksUTF16 guesses the encoding from the share of zero high bytes.
func looksUTF16(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	zeros := 0
	pairs := len(b) / 2
	for i := 1; i < len(b); i += 2 {
		if b[i] == 0 {
			zeros++
		}
	}
	return zeros*2 >= pairs
}

// cleanWordText turns paragraph marks into newlines and drops field and cell markers.
func cleanWordText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\r' || r == 0x0B || r == 0x0C:
			b.WriteByte('\n')
		case r == '\t':
			b.WriteByte('\t')
		case r == 0x07:
			b.WriteByte(' ')
		case r < 0x20:
		default:
			b.WriteRune(r)
		}
	}

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
