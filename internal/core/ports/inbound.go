package ports

import (
	"context"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

// DocumentValidator is the inbound contract for a single synchronous validation run.
// Business rejections come back as a verdict; the error is reserved for malformed
// input and unrecoverable failures.
type DocumentValidator interface {
	Validate(ctx context.Context, req domain.ValidationRequest) (domain.ValidationVerdict, error)
}

// CategoryCatalog lists the accepted expected categories.
type CategoryCatalog interface {
	Categories() []string
	CatchAll() string
}
