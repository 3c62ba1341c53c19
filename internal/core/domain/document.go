package domain

type DetectedFormat string

const (
	FormatImage       DetectedFormat = "image"
	FormatPDF         DetectedFormat = "pdf"
	FormatDocx        DetectedFormat = "docx"
	FormatUnsupported DetectedFormat = "unsupported"
)

type Modality string

const (
	ModalityImage Modality = "image"
	ModalityText  Modality = "text"
)

// Document is the transient upload under validation. It never outlives the request.
type Document struct {
	Content   []byte
	Filename  string
	Extension string
}

func (d Document) Size() int64 {
	return int64(len(d.Content))
}

type ExtractionErrorKind string

const (
	ExtractionOK                ExtractionErrorKind = ""
	ExtractionPasswordProtected ExtractionErrorKind = "password_protected"
	ExtractionCorrupted         ExtractionErrorKind = "corrupted"
	ExtractionEmptyContent      ExtractionErrorKind = "empty_content"
	ExtractionNoTextFound       ExtractionErrorKind = "no_text_found"
)

// ExtractionResult carries the text gathered from a document. An empty Text
// with ExtractionOK is only produced for image modality.
type ExtractionResult struct {
	Text        string              `json:"-"`
	Modality    Modality            `json:"modality"`
	ErrorKind   ExtractionErrorKind `json:"error_kind,omitempty"`
	Pages       int                 `json:"pages,omitempty"`
	Images      int                 `json:"images,omitempty"`
	OCRFailures int                 `json:"ocr_failures,omitempty"`
}

type ValidationRequest struct {
	Content      []byte
	Filename     string
	ExpectedType string
	// RequestID correlates pipeline logs with the transport request; optional.
	RequestID string
}
