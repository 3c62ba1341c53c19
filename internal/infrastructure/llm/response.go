// Package llm holds what the classifier backends share: the response
// contract and its parser.
package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

// ResponseSchema is the JSON contract the classification prompt asks for.
const ResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["detected_type", "is_match"],
  "properties": {
    "step_1_keywords": {
      "oneOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}}
      ]
    },
    "detected_type": {"type": "string", "minLength": 1},
    "is_match": {"type": "boolean"},
    "confidence": {"type": "string"},
    "reasoning": {"type": "string"}
  }
}`

const schemaURL = "classification.schema.json"

type ResponseParser struct {
	schema *jsonschema.Schema
}

func NewResponseParser() (*ResponseParser, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(ResponseSchema)); err != nil {
		return nil, fmt.Errorf("add classification schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile classification schema: %w", err)
	}
	return &ResponseParser{schema: schema}, nil
}

type wireResponse struct {
	Keywords     json.RawMessage `json:"step_1_keywords"`
	DetectedType string          `json:"detected_type"`
	IsMatch      bool            `json:"is_match"`
	Confidence   string          `json:"confidence"`
	Reasoning    string          `json:"reasoning"`
}

// Parse validates raw model output and converts it into a candidate tagged
// with method. Any deviation from the contract is ErrClassifierResponse.
func (p *ResponseParser) Parse(raw string, method domain.Method) (domain.ClassificationCandidate, error) {
	body := []byte(ExtractJSONObject(raw))
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.ClassificationCandidate{}, domain.WrapError(domain.ErrClassifierResponse, "parse classification", errors.New("empty response"))
	}

	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		return domain.ClassificationCandidate{}, domain.WrapError(domain.ErrClassifierResponse, "parse classification", err)
	}
	if err := p.schema.Validate(generic); err != nil {
		return domain.ClassificationCandidate{}, domain.WrapError(domain.ErrClassifierResponse, "parse classification", fmt.Errorf("json does not match schema: %w", err))
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return domain.ClassificationCandidate{}, domain.WrapError(domain.ErrClassifierResponse, "parse classification", err)
	}

	return domain.ClassificationCandidate{
		DetectedType: strings.TrimSpace(wire.DetectedType),
		IsMatch:      wire.IsMatch,
		Confidence:   normalizeConfidence(wire.Confidence),
		Reasoning:    strings.TrimSpace(wire.Reasoning),
		Keywords:     decodeKeywords(wire.Keywords),
		Method:       method,
	}, nil
}

// ExtractJSONObject trims prose or code fences around the outermost object.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func decodeKeywords(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return nil
		}
		list = strings.FieldsFunc(joined, func(r rune) bool { return r == ',' || r == ';' || r == '\n' })
	}

	out := make([]string, 0, len(list))
	for _, kw := range list {
		if kw = strings.Trim(strings.TrimSpace(kw), `"'`); kw != "" {
			out = append(out, kw)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeConfidence(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high", "alta", "alto":
		return domain.ConfidenceHigh
	case "medium", "média", "media", "médio", "medio":
		return domain.ConfidenceMedium
	case "low", "baixa", "baixo":
		return domain.ConfidenceLow
	default:
		return ""
	}
}
