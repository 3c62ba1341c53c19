// Package ollama classifies documents with a local Ollama model. Vision
// models receive the page image; text models receive the extracted text.
package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-validator/internal/core/domain"
	"github.com/kirillkom/document-validator/internal/core/ports"
	"github.com/kirillkom/document-validator/internal/infrastructure/llm"
	"github.com/kirillkom/document-validator/internal/infrastructure/resilience"
)

const operation = "classifier.ollama"

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Classifier struct {
	client      *Client
	textModel   string
	visionModel string
	prompts     ports.PromptBuilder
	parser      *llm.ResponseParser
}

// NewClassifier uses visionModel for image inputs; an empty visionModel falls
// back to textModel.
func NewClassifier(client *Client, textModel, visionModel string, prompts ports.PromptBuilder, parser *llm.ResponseParser) *Classifier {
	if strings.TrimSpace(visionModel) == "" {
		visionModel = textModel
	}
	return &Classifier{
		client:      client,
		textModel:   textModel,
		visionModel: visionModel,
		prompts:     prompts,
		parser:      parser,
	}
}

func (c *Classifier) Classify(ctx context.Context, input domain.ClassificationInput) (domain.ClassificationCandidate, error) {
	system, err := c.prompts.BuildPrompt(input.ExpectedType)
	if err != nil {
		return domain.ClassificationCandidate{}, fmt.Errorf("build classification prompt: %w", err)
	}

	reqBody := map[string]any{
		"system": system,
		"stream": false,
		"format": json.RawMessage(llm.ResponseSchema),
		"options": map[string]any{
			"temperature": 0,
		},
	}
	method := domain.MethodSemanticText
	if input.Modality == domain.ModalityImage {
		method = domain.MethodSemanticVisual
		reqBody["model"] = c.visionModel
		reqBody["prompt"] = "Analise a imagem do documento anexada."
		reqBody["images"] = []string{base64.StdEncoding.EncodeToString(input.Image)}
	} else {
		reqBody["model"] = c.textModel
		prompt := "Texto extraído do documento:\n\n" + input.Text
		if input.Truncated {
			prompt = "Texto extraído do documento (truncado):\n\n" + input.Text
		}
		reqBody["prompt"] = prompt
	}

	respText, err := resilience.Do(ctx, c.client.executor, operation, func(callCtx context.Context) (string, error) {
		return c.client.generate(callCtx, reqBody)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return domain.ClassificationCandidate{}, resilience.WrapFailure(operation, err)
	}
	return c.parser.Parse(respText, method)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
