package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/document-validator/internal/core/domain"
	"github.com/kirillkom/document-validator/internal/infrastructure/llm"
)

type promptFake struct{}

func (promptFake) BuildPrompt(expected string) (string, error) {
	return "Documento esperado: " + expected, nil
}

func TestClassifierSendsImageToVisionModel(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"{\"detected_type\":\"CNH\",\"is_match\":false,\"reasoning\":\"Carteira de motorista.\"}"}`))
	}))
	defer server.Close()

	cls := NewClassifier(New(server.URL, nil), "llama3", "llava", promptFake{}, newParser(t))
	got, err := cls.Classify(context.Background(), domain.ClassificationInput{
		ExpectedType: "RG",
		Modality:     domain.ModalityImage,
		Image:        []byte("img"),
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.DetectedType != "CNH" || got.IsMatch || got.Method != domain.MethodSemanticVisual {
		t.Fatalf("unexpected candidate %+v", got)
	}
	if payload["model"] != "llava" || payload["system"] != "Documento esperado: RG" {
		t.Fatalf("unexpected payload %v", payload)
	}
	images, _ := payload["images"].([]any)
	if len(images) != 1 || images[0] != "aW1n" {
		t.Fatalf("unexpected images %v", payload["images"])
	}
	if _, ok := payload["format"].(map[string]any); !ok {
		t.Fatalf("expected schema-constrained format, got %v", payload["format"])
	}
}

func TestClassifierUsesTextModelForText(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"response":"{\"detected_type\":\"Holerite\",\"is_match\":true}"}`))
	}))
	defer server.Close()

	cls := NewClassifier(New(server.URL, nil), "llama3", "", promptFake{}, newParser(t))
	got, err := cls.Classify(context.Background(), domain.ClassificationInput{
		ExpectedType: "Holerite",
		Modality:     domain.ModalityText,
		Text:         "SALARIO BASE",
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Method != domain.MethodSemanticText || payload["model"] != "llama3" {
		t.Fatalf("unexpected result %+v / %v", got, payload["model"])
	}
	if prompt, _ := payload["prompt"].(string); !strings.Contains(prompt, "SALARIO BASE") {
		t.Fatalf("text missing from prompt %q", prompt)
	}
}

func TestClassifierIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	cls := NewClassifier(New(server.URL, nil), "llama3", "", promptFake{}, newParser(t))
	_, err := cls.Classify(context.Background(), domain.ClassificationInput{ExpectedType: "RG", Modality: domain.ModalityText, Text: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error with response body, got %v", err)
	}
}

func TestClassifierRejectsMalformedModelOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"desculpe"}`))
	}))
	defer server.Close()

	cls := NewClassifier(New(server.URL, nil), "llama3", "", promptFake{}, newParser(t))
	_, err := cls.Classify(context.Background(), domain.ClassificationInput{ExpectedType: "RG", Modality: domain.ModalityText, Text: "x"})
	if !domain.IsKind(err, domain.ErrClassifierResponse) {
		t.Fatalf("expected classifier response error, got %v", err)
	}
}

func newParser(t *testing.T) *llm.ResponseParser {
	t.Helper()
	p, err := llm.NewResponseParser()
	if err != nil {
		t.Fatalf("NewResponseParser() error = %v", err)
	}
	return p
}
