package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/document-validator/internal/adapters/presenter"
	"github.com/kirillkom/document-validator/internal/core/domain"
	"github.com/kirillkom/document-validator/internal/observability/metrics"
)

type validatorFake struct {
	got     domain.ValidationRequest
	calls   int
	verdict domain.ValidationVerdict
	err     error
}

func (f *validatorFake) Validate(_ context.Context, req domain.ValidationRequest) (domain.ValidationVerdict, error) {
	f.calls++
	f.got = req
	return f.verdict, f.err
}

type catalogFake struct{}

func (catalogFake) Categories() []string { return []string{"RG", "CPF", "Holerite", "Outros"} }
func (catalogFake) CatchAll() string     { return "Outros" }

func acceptedRG() domain.ValidationVerdict {
	return domain.AcceptVerdict("Documento validado com sucesso", domain.ClassificationCandidate{
		DetectedType: "RG",
		IsMatch:      true,
		Confidence:   domain.ConfidenceHigh,
		Method:       domain.MethodSemanticVisual,
	})
}

func newTestHandler(t *testing.T, validator *validatorFake, opts Options) http.Handler {
	t.Helper()
	rt, err := NewRouter(validator, catalogFake{}, opts)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return rt.Handler()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func decodeResponse(t *testing.T, res *httptest.ResponseRecorder) presenter.ValidationResponse {
	t.Helper()
	var out presenter.ValidationResponse
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return out
}

func TestValidateJSONReturnsVerdict(t *testing.T) {
	validator := &validatorFake{verdict: acceptedRG()}
	h := newTestHandler(t, validator, Options{ValidateRequests: true})

	res := postJSON(t, h, "/api/validate_document", map[string]string{
		"image_base64":  "JVBERi0=",
		"expected_type": "RG",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	out := decodeResponse(t, res)
	if out.Result != presenter.ResultOK || out.DetectedType != "RG" || out.FileProcessed != presenter.DefaultFileName {
		t.Fatalf("unexpected response %+v", out)
	}
	if out.RequestID == "" || res.Header().Get(requestIDHeader) != out.RequestID {
		t.Fatalf("request id not propagated: body=%q header=%q", out.RequestID, res.Header().Get(requestIDHeader))
	}
	if validator.got.RequestID != out.RequestID || string(validator.got.Content) != "%PDF-" {
		t.Fatalf("unexpected pipeline request %+v", validator.got)
	}
}

func TestValidateJSONBusinessRejectionIs200(t *testing.T) {
	validator := &validatorFake{verdict: domain.RejectVerdict(domain.KindWrongType, domain.MethodSemanticText,
		`Tipo de documento errado: identificado como "CPF", mas era esperado "RG"`,
		domain.ClassificationCandidate{DetectedType: "CPF", IsMatch: true})}
	h := newTestHandler(t, validator, Options{})

	res := postJSON(t, h, "/api/validate_document", map[string]string{
		"file_base64":   "JVBERi0=",
		"expected_type": "RG",
		"file_name":     "cpf.pdf",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	out := decodeResponse(t, res)
	if out.Result != presenter.ResultNOK || out.ErrorKind != domain.KindWrongType || out.DetectedType != "CPF" {
		t.Fatalf("unexpected response %+v", out)
	}
}

func TestValidateJSONRejectsMalformedInput(t *testing.T) {
	validator := &validatorFake{verdict: acceptedRG()}
	h := newTestHandler(t, validator, Options{})

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"file_base64":`},
		{"missing file", `{"expected_type":"RG"}`},
		{"missing type", `{"file_base64":"JVBERi0="}`},
		{"bad base64", `{"file_base64":"***","expected_type":"RG"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/validate_document", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, res.Code)
		}
	}
	if validator.calls != 0 {
		t.Fatalf("pipeline must not run for malformed input, ran %d times", validator.calls)
	}
}

func TestOpenAPIValidationRejectsWrongShape(t *testing.T) {
	validator := &validatorFake{verdict: acceptedRG()}
	h := newTestHandler(t, validator, Options{ValidateRequests: true})

	res := postJSON(t, h, "/api/validate_document", map[string]any{
		"file_base64":   "JVBERi0=",
		"expected_type": 42,
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 from contract validation, got %d", res.Code)
	}
	if validator.calls != 0 {
		t.Fatalf("pipeline must not run for invalid contract")
	}
}

func TestValidateMapsPipelineErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "validate document", errors.New("unknown expected type")), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newTestHandler(t, &validatorFake{err: tc.err}, Options{})
		res := postJSON(t, h, "/api/validate_document", map[string]string{
			"file_base64":   "JVBERi0=",
			"expected_type": "Passaporte",
		})
		if res.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, res.Code)
		}
		var out presenter.ErrorResponse
		_ = json.Unmarshal(res.Body.Bytes(), &out)
		if out.Result != presenter.ResultNOK {
			t.Fatalf("expected NOK error body, got %q", res.Body.String())
		}
		if tc.code == http.StatusInternalServerError && strings.Contains(res.Body.String(), "boom") {
			t.Fatalf("internal error details leaked: %s", res.Body.String())
		}
	}
}

func TestValidateUploadMultipart(t *testing.T) {
	validator := &validatorFake{verdict: acceptedRG()}
	h := newTestHandler(t, validator, Options{ValidateRequests: true})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "identidade.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	_ = mw.WriteField("expected_type", "RG")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/validate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if validator.got.Filename != "identidade.png" || validator.got.ExpectedType != "RG" {
		t.Fatalf("unexpected pipeline request %+v", validator.got)
	}
}

func TestValidateUploadRequiresFile(t *testing.T) {
	h := newTestHandler(t, &validatorFake{}, Options{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("expected_type", "RG")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/validate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCategoriesAndHealth(t *testing.T) {
	h := newTestHandler(t, &validatorFake{}, Options{ValidateRequests: true})

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/categories", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var out struct {
		Categories []string `json:"categories"`
		CatchAll   string   `json:"catch_all"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(out.Categories) != 4 || out.CatchAll != "Outros" {
		t.Fatalf("unexpected categories %+v", out)
	}

	res = httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "/api/validate_document") {
		t.Fatalf("openapi document not served: %d", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, &validatorFake{}, Options{})

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/validate_document", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	registry := metrics.NewRegistry()
	h := newTestHandler(t, &validatorFake{verdict: acceptedRG()}, Options{
		Metrics: metrics.NewHTTPServerMetrics("api", registry),
	})

	postJSON(t, h, "/api/validate_document", map[string]string{"file_base64": "JVBERi0=", "expected_type": "RG"})

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(res.Body.String(), `docval_http_requests_total{method="POST",path="/api/validate_document",service="api",status="200"} 1`) {
		t.Fatalf("request metric missing from scrape:\n%s", res.Body.String())
	}
}

func TestPanicsBecome500(t *testing.T) {
	h := recoverMiddleware(slogDiscard(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}
