package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-validator/internal/adapters/presenter"
	"github.com/kirillkom/document-validator/internal/core/domain"
	"github.com/kirillkom/document-validator/internal/core/ports"
	"github.com/kirillkom/document-validator/internal/observability/metrics"
)

const (
	defaultService      = "api"
	defaultMaxFileBytes = 15 * 1024 * 1024
	multipartMemory     = 8 << 20
)

type Options struct {
	Service string
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics
	// MCPHandler, when set, is mounted at /mcp.
	MCPHandler http.Handler

	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	ValidateRequests bool

	// MaxFileBytes sizes the body limit. Bodies up to twice this size still
	// reach the pipeline so oversized files get a file_too_large verdict.
	MaxFileBytes int64
}

type Router struct {
	validator ports.DocumentValidator
	catalog   ports.CategoryCatalog
	opts      Options
	logger    *slog.Logger
	openapi   *openAPIValidator
}

func NewRouter(validator ports.DocumentValidator, catalog ports.CategoryCatalog, opts Options) (*Router, error) {
	if opts.Service == "" {
		opts.Service = defaultService
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = defaultMaxFileBytes
	}
	rt := &Router{
		validator: validator,
		catalog:   catalog,
		opts:      opts,
		logger:    opts.Logger,
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	if opts.ValidateRequests {
		v, err := newOpenAPIValidator(openAPISpec)
		if err != nil {
			return nil, err
		}
		rt.openapi = v
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.yaml", rt.openAPIDocument)
	mux.HandleFunc("/v1/categories", rt.listCategories)
	mux.Handle("/api/validate_document", rt.withBackpressure(http.HandlerFunc(rt.validateJSON)))
	mux.Handle("/v1/documents/validate", rt.withBackpressure(http.HandlerFunc(rt.validateUpload)))
	if rt.opts.Metrics != nil {
		mux.Handle("/metrics", rt.opts.Metrics.Handler())
	}
	if rt.opts.MCPHandler != nil {
		mux.Handle("/mcp", rt.opts.MCPHandler)
	}

	var handler http.Handler = mux
	if rt.openapi != nil {
		handler = rt.openapi.middleware(handler)
	}
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, rt.rejectionHook("rate_limited"))
	handler = recoverMiddleware(rt.logger, handler)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) withBackpressure(next http.Handler) http.Handler {
	return backpressureWithHook(next, rt.opts.MaxInFlight, rt.opts.BackpressureWait, rt.rejectionHook("overloaded"))
}

func (rt *Router) rejectionHook(reason string) func() {
	if rt.opts.Metrics == nil {
		return nil
	}
	return func() { rt.opts.Metrics.RecordRejection(rt.opts.Service, reason) }
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, presenter.NewError("method not allowed", nil))
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPISpec)
}

func (rt *Router) listCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, presenter.NewError("method not allowed", nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": rt.catalog.Categories(),
		"catch_all":  rt.catalog.CatchAll(),
	})
}

type validateJSONRequest struct {
	FileBase64   string `json:"file_base64"`
	ImageBase64  string `json:"image_base64"`
	ExpectedType string `json:"expected_type"`
	FileName     string `json:"file_name"`
}

func (rt *Router) validateJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, presenter.NewError("method not allowed", nil))
		return
	}

	// base64 inflates by 4/3; leave headroom for the other fields.
	limit := rt.opts.MaxFileBytes*2*4/3 + 64*1024
	var req validateJSONRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, presenter.NewError(presenter.MessageInvalidInput, err))
			return
		}
		writeJSON(w, http.StatusBadRequest, presenter.NewError(presenter.MessageInvalidJSON, nil))
		return
	}

	encoded := req.FileBase64
	if strings.TrimSpace(encoded) == "" {
		encoded = req.ImageBase64
	}
	if strings.TrimSpace(encoded) == "" || strings.TrimSpace(req.ExpectedType) == "" {
		writeJSON(w, http.StatusBadRequest, presenter.NewError(presenter.MessageMissingData, nil))
		return
	}
	content, err := presenter.DecodeBase64(encoded)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, presenter.NewError(presenter.MessageInvalidInput, err))
		return
	}

	rt.runValidation(w, r, domain.ValidationRequest{
		Content:      content,
		Filename:     presenter.FileName(req.FileName),
		ExpectedType: strings.TrimSpace(req.ExpectedType),
	})
}

func (rt *Router) validateUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, presenter.NewError("method not allowed", nil))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxFileBytes*2+64*1024)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, presenter.NewError(presenter.MessageInvalidInput, err))
			return
		}
		writeJSON(w, http.StatusBadRequest, presenter.NewError("multipart form is required", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, presenter.NewError("multipart field 'file' is required", nil))
		return
	}
	defer file.Close()

	expected := strings.TrimSpace(r.FormValue("expected_type"))
	if expected == "" {
		writeJSON(w, http.StatusBadRequest, presenter.NewError("multipart field 'expected_type' is required", nil))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, presenter.NewError(presenter.MessageInvalidInput, err))
		return
	}

	rt.runValidation(w, r, domain.ValidationRequest{
		Content:      content,
		Filename:     presenter.FileName(header.Filename),
		ExpectedType: expected,
	})
}

func (rt *Router) runValidation(w http.ResponseWriter, r *http.Request, req domain.ValidationRequest) {
	requestID := requestIDFromContext(r.Context())
	req.RequestID = requestID

	verdict, err := rt.validator.Validate(r.Context(), req)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status == http.StatusBadRequest {
			writeJSON(w, status, presenter.NewError(presenter.MessageInvalidInput, err))
			return
		}
		rt.logger.Error("validate_document_failed", "request_id", requestID, "file_name", req.Filename, "error", err)
		writeJSON(w, status, presenter.NewError(presenter.MessageInternal, nil))
		return
	}

	writeJSON(w, http.StatusOK, presenter.FromVerdict(verdict, req.Filename, requestID))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
