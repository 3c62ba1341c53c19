package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/document-validator/internal/core/domain"
	"github.com/kirillkom/document-validator/internal/core/ports"
)

const (
	DefaultMaxClassifierChars = 12000
	DefaultClassifierTimeout  = 60 * time.Second

	truncationMarker = "\n[... texto truncado ...]"
)

const (
	msgFileTooLarge          = "Arquivo muito grande. Envie um arquivo menor."
	msgInvalidSignature      = "Formato de arquivo não permitido ou arquivo adulterado. Envie PDF, JPG, PNG, DOC ou DOCX."
	msgPasswordProtected     = "PDF protegido por senha. Remova a senha e envie novamente."
	msgCorrupted             = "Arquivo PDF corrompido ou ilegível. Gere o arquivo novamente e reenvie."
	msgEmptyContent          = "O PDF não possui texto nem imagens. Verifique se o arquivo correto foi enviado."
	msgNoTextFound           = "Não foi possível ler o texto das imagens do PDF. Envie uma digitalização mais nítida."
	msgOCRUnavailable        = "Serviço de leitura de imagens indisponível. Tente novamente em instantes."
	msgIllegible             = "Documento ilegível. Reenvie uma foto ou digitalização mais nítida."
	msgRateLimited           = "Serviço de análise sobrecarregado. Tente novamente em instantes."
	msgClassifierTimeout     = "A análise do documento excedeu o tempo limite. Tente novamente."
	msgSafetyBlocked         = "O documento foi bloqueado pela política de conteúdo do serviço de análise."
	msgClassifierResponse    = "O serviço de análise retornou uma resposta inválida."
	msgClassifierUnavailable = "Serviço de análise indisponível. Tente novamente mais tarde."
)

type Options struct {
	MaxFileBytes       int64
	Signatures         []Signature
	ImageLegibility    LegibilityThresholds
	TextLegibility     LegibilityThresholds
	MaxClassifierChars int
	ClassifierTimeout  time.Duration
	Observer           ports.PipelineObserver
	Logger             *slog.Logger
}

// ValidateDocumentUseCase runs integrity, extraction, legibility, fast and
// semantic classification, then reconciliation, strictly in that order.
type ValidateDocumentUseCase struct {
	integrity  *IntegrityValidator
	extractor  ports.ContentExtractor
	gate       *LegibilityGate
	fast       *FastClassifier
	classifier ports.SemanticClassifier
	reconciler *Reconciler

	categories map[string]string
	ordered    []string
	catchAll   string
	version    string

	maxClassifierChars int
	classifierTimeout  time.Duration
	observer           ports.PipelineObserver
	logger             *slog.Logger
}

func NewValidateDocumentUseCase(
	rules domain.RuleSet,
	extractor ports.ContentExtractor,
	classifier ports.SemanticClassifier,
	opts Options,
) (*ValidateDocumentUseCase, error) {
	if extractor == nil || classifier == nil {
		return nil, errors.New("validate usecase: extractor and classifier are required")
	}
	if len(rules.Categories) == 0 {
		return nil, errors.New("validate usecase: category list is empty")
	}

	fast, err := NewFastClassifier(rules.FastRules, rules.AbsencePhrases)
	if err != nil {
		return nil, fmt.Errorf("validate usecase: %w", err)
	}

	categories := make(map[string]string, len(rules.Categories))
	ordered := make([]string, 0, len(rules.Categories))
	for _, c := range rules.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		categories[foldText(c)] = c
		ordered = append(ordered, c)
	}
	catchAll := ""
	if strings.TrimSpace(rules.CatchAll) != "" {
		canonical, ok := categories[foldText(rules.CatchAll)]
		if !ok {
			return nil, fmt.Errorf("validate usecase: catch-all %q is not a category", rules.CatchAll)
		}
		catchAll = canonical
	}

	maxChars := opts.MaxClassifierChars
	if maxChars <= 0 {
		maxChars = DefaultMaxClassifierChars
	}
	timeout := opts.ClassifierTimeout
	if timeout <= 0 {
		timeout = DefaultClassifierTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ValidateDocumentUseCase{
		integrity:          NewIntegrityValidator(opts.MaxFileBytes, opts.Signatures),
		extractor:          extractor,
		gate:               NewLegibilityGate(opts.ImageLegibility, opts.TextLegibility),
		fast:               fast,
		classifier:         classifier,
		reconciler:         NewReconciler(rules.Synonyms, rules.AbsencePhrases),
		categories:         categories,
		ordered:            ordered,
		catchAll:           catchAll,
		version:            rules.Version,
		maxClassifierChars: maxChars,
		classifierTimeout:  timeout,
		observer:           opts.Observer,
		logger:             logger,
	}, nil
}

func (uc *ValidateDocumentUseCase) Categories() []string {
	out := make([]string, len(uc.ordered))
	copy(out, uc.ordered)
	return out
}

func (uc *ValidateDocumentUseCase) CatchAll() string {
	return uc.catchAll
}

func (uc *ValidateDocumentUseCase) Validate(ctx context.Context, req domain.ValidationRequest) (domain.ValidationVerdict, error) {
	if len(req.Content) == 0 {
		return domain.ValidationVerdict{}, domain.WrapError(domain.ErrInvalidInput, "validate document", errors.New("file content is empty"))
	}
	expected, ok := uc.categories[foldText(req.ExpectedType)]
	if !ok {
		return domain.ValidationVerdict{}, domain.WrapError(
			domain.ErrInvalidInput,
			"validate document",
			fmt.Errorf("unknown expected type %q", req.ExpectedType),
		)
	}

	start := time.Now()
	verdict, err := uc.run(ctx, req, expected)
	if err != nil {
		uc.logger.Error("pipeline_failed",
			"request_id", req.RequestID,
			"expected_type", expected,
			"file_name", req.Filename,
			"error", err,
		)
		return domain.ValidationVerdict{}, err
	}

	elapsed := time.Since(start)
	if uc.observer != nil {
		uc.observer.ObserveVerdict(verdict, elapsed)
	}
	uc.logger.Info("pipeline_verdict",
		"request_id", req.RequestID,
		"expected_type", expected,
		"file_name", req.Filename,
		"status", verdict.Status,
		"method", verdict.Method,
		"error_kind", verdict.ErrorKind,
		"detected_type", verdict.Candidate.DetectedType,
		"rules_version", uc.version,
		"duration_ms", float64(elapsed.Microseconds())/1000.0,
	)
	return verdict, nil
}

func (uc *ValidateDocumentUseCase) run(ctx context.Context, req domain.ValidationRequest, expected string) (domain.ValidationVerdict, error) {
	stageStart := time.Now()
	check := uc.integrity.Check(req.Content, req.Filename)
	uc.observeStage("integrity", stageStart)
	if !check.Valid {
		uc.logger.Warn("integrity_rejected", "file_name", req.Filename, "kind", check.Kind, "reason", check.Error)
		return integrityVerdict(check), nil
	}
	if check.Declared != check.Sniffed {
		uc.logger.Info("integrity_mislabeled",
			"file_name", req.Filename,
			"declared", check.Declared,
			"sniffed", check.Sniffed,
			"processed_as", check.Extension,
		)
	}

	doc := domain.Document{Content: req.Content, Filename: req.Filename, Extension: check.Extension}

	stageStart = time.Now()
	extraction, err := uc.extractor.Extract(ctx, doc, check.Format)
	uc.observeStage("extraction", stageStart)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ValidationVerdict{}, fmt.Errorf("extract content: %w", ctxErr)
		}
		uc.logger.Warn("ocr_failed", "file_name", req.Filename, "error", err)
		return ocrVerdict(err), nil
	}
	if extraction.ErrorKind != domain.ExtractionOK {
		return extractionVerdict(extraction.ErrorKind), nil
	}

	if !uc.gate.Passes(extraction.Text, extraction.Modality) {
		return domain.RejectVerdict(
			domain.KindIllegible,
			domain.MethodLegibility,
			msgIllegible,
			domain.ClassificationCandidate{DetectedType: domain.IllegibleType, Method: domain.MethodLegibility},
		), nil
	}

	if uc.catchAll != "" && expected == uc.catchAll {
		return domain.AcceptVerdict(fmt.Sprintf(msgCatchAllBypass, expected), domain.ClassificationCandidate{
			DetectedType: expected,
			IsMatch:      true,
			Method:       domain.MethodLegibilityBypass,
		}), nil
	}

	if extraction.Modality == domain.ModalityText {
		if candidate, ok := uc.fast.Classify(extraction.Text, expected); ok {
			return domain.AcceptVerdict(msgValidated, candidate), nil
		}
	}

	input := uc.classificationInput(req.Content, check.Sniffed, extraction, expected)
	stageStart = time.Now()
	candidate, err := uc.classify(ctx, input)
	uc.observeStage("semantic", stageStart)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ValidationVerdict{}, fmt.Errorf("classify document: %w", ctxErr)
		}
		uc.logger.Warn("classifier_failed", "file_name", req.Filename, "modality", input.Modality, "error", err)
		return classifierVerdict(err, semanticMethod(input.Modality)), nil
	}

	return uc.reconciler.Reconcile(expected, candidate), nil
}

func (uc *ValidateDocumentUseCase) classificationInput(
	raw []byte,
	sniffedExt string,
	extraction domain.ExtractionResult,
	expected string,
) domain.ClassificationInput {
	input := domain.ClassificationInput{ExpectedType: expected, Modality: extraction.Modality}
	if extraction.Modality == domain.ModalityImage {
		input.Image = raw
		input.ImageMIME = ImageMIME(sniffedExt)
		return input
	}
	input.Text, input.Truncated = truncateText(extraction.Text, uc.maxClassifierChars)
	return input
}

func (uc *ValidateDocumentUseCase) classify(ctx context.Context, input domain.ClassificationInput) (domain.ClassificationCandidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.classifierTimeout)
	defer cancel()

	candidate, err := uc.classifier.Classify(callCtx, input)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !domain.IsKind(err, domain.ErrTimeout) {
			err = domain.WrapError(domain.ErrTimeout, "classify document", err)
		}
		return domain.ClassificationCandidate{}, err
	}

	candidate.Method = semanticMethod(input.Modality)
	return candidate, nil
}

func semanticMethod(modality domain.Modality) domain.Method {
	if modality == domain.ModalityImage {
		return domain.MethodSemanticVisual
	}
	return domain.MethodSemanticText
}

func (uc *ValidateDocumentUseCase) observeStage(stage string, start time.Time) {
	if uc.observer != nil {
		uc.observer.ObserveStage(stage, time.Since(start))
	}
}

// truncateText caps text at max runes and appends a marker when it cuts.
func truncateText(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:max]) + truncationMarker, true
}

func integrityVerdict(check IntegrityResult) domain.ValidationVerdict {
	message := msgInvalidSignature
	if check.Kind == domain.KindFileTooLarge {
		message = msgFileTooLarge
	}
	return domain.RejectVerdict(check.Kind, domain.MethodIntegrity, message, domain.ClassificationCandidate{})
}

func extractionVerdict(kind domain.ExtractionErrorKind) domain.ValidationVerdict {
	var (
		verdictKind domain.VerdictErrorKind
		message     string
	)
	switch kind {
	case domain.ExtractionPasswordProtected:
		verdictKind, message = domain.KindPasswordProtected, msgPasswordProtected
	case domain.ExtractionEmptyContent:
		verdictKind, message = domain.KindEmptyContent, msgEmptyContent
	case domain.ExtractionNoTextFound:
		verdictKind, message = domain.KindNoTextFound, msgNoTextFound
	default:
		verdictKind, message = domain.KindCorrupted, msgCorrupted
	}
	return domain.RejectVerdict(verdictKind, domain.MethodExtraction, message, domain.ClassificationCandidate{})
}

func ocrVerdict(err error) domain.ValidationVerdict {
	v := domain.RejectVerdict(domain.KindOCRUnavailable, domain.MethodOCR, msgOCRUnavailable, domain.ClassificationCandidate{})
	v.Retryable = isRetryableTransport(err)
	return v
}

func classifierVerdict(err error, method domain.Method) domain.ValidationVerdict {
	switch {
	case domain.IsKind(err, domain.ErrRateLimited):
		return domain.RetryableVerdict(domain.KindRateLimited, method, msgRateLimited)
	case domain.IsKind(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.RetryableVerdict(domain.KindTimeout, method, msgClassifierTimeout)
	case domain.IsKind(err, domain.ErrSafetyBlocked):
		return domain.RejectVerdict(domain.KindSafetyBlocked, method, msgSafetyBlocked, domain.ClassificationCandidate{})
	case domain.IsKind(err, domain.ErrClassifierResponse):
		return domain.RejectVerdict(domain.KindClassifierResponse, method, msgClassifierResponse, domain.ClassificationCandidate{})
	default:
		v := domain.RejectVerdict(domain.KindClassifierUnavailable, method, msgClassifierUnavailable, domain.ClassificationCandidate{})
		v.Retryable = domain.IsKind(err, domain.ErrTemporary)
		return v
	}
}

func isRetryableTransport(err error) bool {
	return domain.IsKind(err, domain.ErrTemporary) ||
		domain.IsKind(err, domain.ErrRateLimited) ||
		domain.IsKind(err, domain.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
