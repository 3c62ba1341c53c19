package usecase

import (
	"regexp"
	"unicode/utf8"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

var meaningfulTokenRe = regexp.MustCompile(`\p{L}{3,}`)

type LegibilityThresholds struct {
	MinChars  int
	MinTokens int
}

var (
	DefaultImageLegibility = LegibilityThresholds{MinChars: 80, MinTokens: 10}
	DefaultTextLegibility  = LegibilityThresholds{MinChars: 40, MinTokens: 5}
)

// LegibilityGate rejects extractions that carry too little signal to classify.
// OCR output is noisier, so image thresholds are stricter.
type LegibilityGate struct {
	image LegibilityThresholds
	text  LegibilityThresholds
}

func NewLegibilityGate(image, text LegibilityThresholds) *LegibilityGate {
	if image.MinChars <= 0 && image.MinTokens <= 0 {
		image = DefaultImageLegibility
	}
	if text.MinChars <= 0 && text.MinTokens <= 0 {
		text = DefaultTextLegibility
	}
	return &LegibilityGate{image: image, text: text}
}

func (g *LegibilityGate) Passes(text string, modality domain.Modality) bool {
	cleaned := collapseWhitespace(text)
	if cleaned == "" {
		return false
	}

	limits := g.text
	if modality == domain.ModalityImage {
		limits = g.image
	}

	if utf8.RuneCountInString(cleaned) < limits.MinChars {
		return false
	}
	return countMeaningfulTokens(cleaned) >= limits.MinTokens
}

func countMeaningfulTokens(text string) int {
	return len(meaningfulTokenRe.FindAllStringIndex(text, -1))
}
