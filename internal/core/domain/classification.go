package domain

type Method string

const (
	MethodInput            Method = "input"
	MethodIntegrity        Method = "integrity"
	MethodExtraction       Method = "extraction"
	MethodOCR              Method = "ocr"
	MethodLegibility       Method = "legibility"
	MethodLegibilityBypass Method = "legibility_bypass"
	MethodRegex            Method = "regex"
	MethodSemanticVisual   Method = "semantic_visual"
	MethodSemanticText     Method = "semantic_text"
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// IllegibleType is the detected type reported when the legibility gate rejects a document.
const IllegibleType = "Ilegível"

type ClassificationCandidate struct {
	DetectedType string   `json:"detected_type"`
	IsMatch      bool     `json:"is_match"`
	Confidence   string   `json:"confidence,omitempty"`
	Reasoning    string   `json:"reasoning,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Method       Method   `json:"method"`
}

// ClassificationInput is what the semantic classifier receives. Exactly one of
// Image or Text is populated, according to Modality.
type ClassificationInput struct {
	ExpectedType string
	Modality     Modality
	Image        []byte
	ImageMIME    string
	Text         string
	Truncated    bool
}

// PatternRule pairs a category label with a regular expression evaluated over
// folded (lower-cased, diacritic-free) text.
type PatternRule struct {
	Label   string `json:"label" yaml:"label"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

type Synonym struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// RuleSet is the immutable business vocabulary injected into the pipeline.
type RuleSet struct {
	Version        string
	Categories     []string
	CatchAll       string
	FastRules      []PatternRule
	Synonyms       []Synonym
	AbsencePhrases []string
}
