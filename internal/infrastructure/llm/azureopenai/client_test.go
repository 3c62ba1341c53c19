package azureopenai

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
	return "Tipo esperado: " + expected, nil
}

func newTestClassifier(t *testing.T, url string) *Classifier {
	t.Helper()
	c, err := New(Config{Endpoint: url, Key: "k", Deployment: "gpt-4o"}, promptFake{}, newParser(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func completion(content, finish string) string {
	payload := map[string]any{
		"choices": []map[string]any{{
			"finish_reason": finish,
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func TestClassifyVisualSendsDataURI(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/gpt-4o/chat/completions" || r.URL.Query().Get("api-version") != DefaultAPIVersion {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("api-key") != "k" {
			t.Errorf("missing api-key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(completion(`{"step_1_keywords":"REGISTRO GERAL","detected_type":"RG","is_match":true,"confidence":"high","reasoning":"Carteira de identidade."}`, "stop")))
	}))
	defer server.Close()

	got, err := newTestClassifier(t, server.URL).Classify(context.Background(), domain.ClassificationInput{
		ExpectedType: "RG",
		Modality:     domain.ModalityImage,
		Image:        []byte{0xFF, 0xD8, 0xFF},
		ImageMIME:    "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.DetectedType != "RG" || !got.IsMatch || got.Method != domain.MethodSemanticVisual {
		t.Fatalf("unexpected candidate %+v", got)
	}

	if captured["temperature"] != float64(0) || captured["max_tokens"] != float64(DefaultMaxTokens) {
		t.Fatalf("unexpected sampling params %v / %v", captured["temperature"], captured["max_tokens"])
	}
	format, _ := captured["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", captured["response_format"])
	}
	raw, _ := json.Marshal(captured["messages"])
	if !strings.Contains(string(raw), "data:image/jpeg;base64,/9j/") || !strings.Contains(string(raw), `"detail":"high"`) {
		t.Fatalf("image part missing from %s", raw)
	}
	if !strings.Contains(string(raw), "Tipo esperado: RG") {
		t.Fatalf("system prompt missing from %s", raw)
	}
}

func TestClassifyTextMarksTruncation(t *testing.T) {
	var raw string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		raw = string(payload.Messages[1].Content)
		_, _ = w.Write([]byte(completion(`{"detected_type":"Holerite","is_match":true}`, "stop")))
	}))
	defer server.Close()

	got, err := newTestClassifier(t, server.URL).Classify(context.Background(), domain.ClassificationInput{
		ExpectedType: "Holerite",
		Modality:     domain.ModalityText,
		Text:         "PROVENTOS DESCONTOS",
		Truncated:    true,
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Method != domain.MethodSemanticText {
		t.Fatalf("Method = %q", got.Method)
	}
	if !strings.Contains(raw, "PROVENTOS DESCONTOS") || !strings.Contains(raw, "truncado") {
		t.Fatalf("unexpected user content %s", raw)
	}
}

func TestClassifyMapsFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":"429"}}`, domain.ErrRateLimited},
		{"gateway timeout", http.StatusGatewayTimeout, "timeout", domain.ErrTimeout},
		{"content filter", http.StatusBadRequest, `{"error":{"code":"content_filter","message":"ResponsibleAIPolicyViolation"}}`, domain.ErrSafetyBlocked},
		{"unavailable", http.StatusServiceUnavailable, "busy", domain.ErrTemporary},
		{"filtered completion", http.StatusOK, completion("", "content_filter"), domain.ErrSafetyBlocked},
		{"empty completion", http.StatusOK, completion("  ", "stop"), domain.ErrClassifierResponse},
		{"not json", http.StatusOK, completion("Não sei.", "stop"), domain.ErrClassifierResponse},
		{"no choices", http.StatusOK, `{"choices":[]}`, domain.ErrClassifierResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := newTestClassifier(t, server.URL).Classify(context.Background(), domain.ClassificationInput{
				ExpectedType: "CPF",
				Modality:     domain.ModalityText,
				Text:         "texto",
			})
			if !domain.IsKind(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Endpoint: "https://x", Key: "k"}, promptFake{}, newParser(t)); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without deployment, got %v", err)
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
