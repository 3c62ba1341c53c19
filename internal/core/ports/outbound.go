package ports

import (
	"context"
	"time"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

// OCRService converts image bytes into plain text.
type OCRService interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// SemanticClassifier asks an AI model which category a document belongs to.
type SemanticClassifier interface {
	Classify(ctx context.Context, input domain.ClassificationInput) (domain.ClassificationCandidate, error)
}

// ContentExtractor gathers text from a document whose format has already been verified.
type ContentExtractor interface {
	Extract(ctx context.Context, doc domain.Document, format domain.DetectedFormat) (domain.ExtractionResult, error)
}

// PromptBuilder renders the classifier instructions for an expected category.
type PromptBuilder interface {
	BuildPrompt(expectedType string) (string, error)
}

// PipelineObserver receives timing and outcome signals from a validation run.
type PipelineObserver interface {
	ObserveStage(stage string, elapsed time.Duration)
	ObserveVerdict(verdict domain.ValidationVerdict, elapsed time.Duration)
}
