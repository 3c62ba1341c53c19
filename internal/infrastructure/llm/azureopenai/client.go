// Package azureopenai classifies documents with an Azure OpenAI chat
// deployment, sending either the page image or the extracted text.
package azureopenai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-validator/internal/core/domain"
	"github.com/kirillkom/document-validator/internal/core/ports"
	"github.com/kirillkom/document-validator/internal/infrastructure/llm"
	"github.com/kirillkom/document-validator/internal/infrastructure/resilience"
)

const (
	DefaultAPIVersion = "2024-02-15-preview"
	DefaultMaxTokens  = 300
	serviceName       = "azure-openai"
	operation         = "classifier.azure_openai"
)

const (
	visualInstruction = "Analise a imagem do documento anexada e responda no formato JSON solicitado."
	textInstruction   = "Analise o texto extraído do documento abaixo e responda no formato JSON solicitado."
	truncatedNotice   = "Observação: o texto foi truncado; considere apenas o trecho disponível."
)

type Config struct {
	Endpoint   string
	Key        string
	Deployment string
	APIVersion string
	MaxTokens  int
	HTTPClient *http.Client
	Executor   *resilience.Executor
}

type Classifier struct {
	endpoint   string
	key        string
	deployment string
	apiVersion string
	maxTokens  int
	httpClient *http.Client
	executor   *resilience.Executor
	prompts    ports.PromptBuilder
	parser     *llm.ResponseParser
}

func New(cfg Config, prompts ports.PromptBuilder, parser *llm.ResponseParser) (*Classifier, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" || strings.TrimSpace(cfg.Key) == "" || strings.TrimSpace(cfg.Deployment) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "azure openai config", errors.New("endpoint, key and deployment are required"))
	}
	if prompts == nil || parser == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "azure openai config", errors.New("prompt builder and parser are required"))
	}
	c := &Classifier{
		endpoint:   endpoint,
		key:        cfg.Key,
		deployment: cfg.Deployment,
		apiVersion: cfg.APIVersion,
		maxTokens:  cfg.MaxTokens,
		httpClient: cfg.HTTPClient,
		executor:   cfg.Executor,
		prompts:    prompts,
		parser:     parser,
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail"`
}

type chatRequest struct {
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Classifier) Classify(ctx context.Context, input domain.ClassificationInput) (domain.ClassificationCandidate, error) {
	system, err := c.prompts.BuildPrompt(input.ExpectedType)
	if err != nil {
		return domain.ClassificationCandidate{}, fmt.Errorf("build classification prompt: %w", err)
	}

	method := domain.MethodSemanticText
	if input.Modality == domain.ModalityImage {
		method = domain.MethodSemanticVisual
	}

	request := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: userContent(input)},
		},
		Temperature:    0,
		MaxTokens:      c.maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	content, err := resilience.Do(ctx, c.executor, operation, func(callCtx context.Context) (string, error) {
		return c.complete(callCtx, request)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return domain.ClassificationCandidate{}, resilience.WrapFailure(operation, err)
	}
	return c.parser.Parse(content, method)
}

func userContent(input domain.ClassificationInput) []contentPart {
	if input.Modality == domain.ModalityImage {
		mime := input.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		return []contentPart{
			{Type: "text", Text: visualInstruction},
			{Type: "image_url", ImageURL: &imageURL{
				URL:    "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(input.Image),
				Detail: "high",
			}},
		}
	}

	text := textInstruction + "\n\n" + input.Text
	if input.Truncated {
		text = textInstruction + "\n" + truncatedNotice + "\n\n" + input.Text
	}
	return []contentPart{{Type: "text", Text: text}}
}

func (c *Classifier) complete(ctx context.Context, request chatRequest) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal %s request: %w", operation, err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", c.endpoint, c.deployment, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s chat request: %w", serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		statusErr := resilience.NewStatusError(serviceName, "chat", resp)
		if isContentFilter(statusErr.Body) {
			return "", domain.WrapError(domain.ErrSafetyBlocked, operation, statusErr)
		}
		return "", statusErr
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.WrapError(domain.ErrClassifierResponse, operation, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", domain.WrapError(domain.ErrClassifierResponse, operation, errors.New("response has no choices"))
	}

	choice := out.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", domain.WrapError(domain.ErrSafetyBlocked, operation, errors.New("completion stopped by content filter"))
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", domain.WrapError(domain.ErrClassifierResponse, operation, errors.New("empty completion"))
	}
	return content, nil
}

func isContentFilter(body string) bool {
	return strings.Contains(body, "content_filter") || strings.Contains(body, "ResponsibleAIPolicyViolation")
}
