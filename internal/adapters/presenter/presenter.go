// Package presenter renders pipeline verdicts in the wire shape shared by
// the HTTP and MCP adapters.
package presenter

import (
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

const (
	ResultOK  = "OK"
	ResultNOK = "NOK"

	DefaultFileName     = "arquivo_sem_nome"
	undetectedType      = "Não identificado"
	MessageInternal     = "Erro interno no Backend."
	MessageInvalidJSON  = "O corpo da requisição não é um JSON válido."
	MessageMissingData  = "Faltando dados. O JSON deve ter 'file_base64' e 'expected_type'."
	MessageInvalidInput = "Requisição inválida."
)

type ValidationResponse struct {
	Result        string                         `json:"result"`
	Status        domain.VerdictStatus           `json:"status"`
	Message       string                         `json:"message"`
	DetectedType  string                         `json:"detected_type"`
	Method        domain.Method                  `json:"method"`
	Confidence    string                         `json:"confidence,omitempty"`
	ErrorKind     domain.VerdictErrorKind        `json:"error_kind,omitempty"`
	Retryable     bool                           `json:"retryable"`
	FileProcessed string                         `json:"file_processed"`
	RequestID     string                         `json:"request_id,omitempty"`
	Details       domain.ClassificationCandidate `json:"details"`
}

type ErrorResponse struct {
	Result  string `json:"result"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func FromVerdict(v domain.ValidationVerdict, fileName, requestID string) ValidationResponse {
	result := ResultNOK
	if v.OK() {
		result = ResultOK
	}
	detected := strings.TrimSpace(v.Candidate.DetectedType)
	if detected == "" {
		detected = undetectedType
	}
	return ValidationResponse{
		Result:        result,
		Status:        v.Status,
		Message:       v.Message,
		DetectedType:  detected,
		Method:        v.Method,
		Confidence:    v.Candidate.Confidence,
		ErrorKind:     v.ErrorKind,
		Retryable:     v.Retryable,
		FileProcessed: fileName,
		RequestID:     requestID,
		Details:       v.Candidate,
	}
}

func NewError(message string, err error) ErrorResponse {
	out := ErrorResponse{Result: ResultNOK, Message: message}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// FileName keeps only the base name of a client-supplied path.
func FileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return DefaultFileName
	}
	base := filepath.Base(name)
	if base == "." || base == "/" {
		return DefaultFileName
	}
	return base
}

// DecodeBase64 accepts plain or data-URI base64, padded or not.
func DecodeBase64(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ";base64,")
		if idx < 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode base64", errors.New("data URI is not base64"))
		}
		s = s[idx+len(";base64,"):]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode base64", errors.New("empty payload"))
	}

	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		out, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode base64", err)
	}
	return out, nil
}
