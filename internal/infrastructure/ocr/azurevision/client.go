// Package azurevision reads text from images with the Azure AI Vision
// Image Analysis "read" feature.
package azurevision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-validator/internal/core/domain"
	"github.com/kirillkom/document-validator/internal/infrastructure/resilience"
)

const (
	DefaultAPIVersion = "2024-02-01"
	serviceName       = "azure-vision"
	operation         = "ocr.read"
)

type Config struct {
	Endpoint   string
	Key        string
	APIVersion string
	HTTPClient *http.Client
	Executor   *resilience.Executor
}

type Client struct {
	endpoint   string
	key        string
	apiVersion string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" || strings.TrimSpace(cfg.Key) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "azure vision config", errors.New("endpoint and key are required"))
	}
	c := &Client{
		endpoint:   endpoint,
		key:        cfg.Key,
		apiVersion: cfg.APIVersion,
		httpClient: cfg.HTTPClient,
		executor:   cfg.Executor,
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return c, nil
}

type readResponse struct {
	ReadResult struct {
		Blocks []struct {
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"blocks"`
	} `json:"readResult"`
}

// Recognize returns the recognized lines joined by newlines. An image with no
// text yields "" and a nil error.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, operation, errors.New("empty image"))
	}

	text, err := resilience.Do(ctx, c.executor, operation, func(callCtx context.Context) (string, error) {
		return c.read(callCtx, image)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return "", resilience.WrapFailure(operation, err)
	}
	return text, nil
}

func (c *Client) read(ctx context.Context, image []byte) (string, error) {
	url := fmt.Sprintf("%s/computervision/imageanalysis:analyze?api-version=%s&features=read", c.endpoint, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s request: %w", serviceName, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", resilience.NewStatusError(serviceName, operation, resp)
	}

	var out readResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.WrapError(domain.ErrTemporary, operation, fmt.Errorf("decode response: %w", err))
	}

	var lines []string
	for _, block := range out.ReadResult.Blocks {
		for _, line := range block.Lines {
			if t := strings.TrimSpace(line.Text); t != "" {
				lines = append(lines, t)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
