// Package knowledge holds the versioned business vocabulary of the validator:
// categories, fast-path rules, synonyms, absence phrases and the classifier prompt.
package knowledge

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

//go:embed default.yaml
var defaultYAML []byte

type KnowledgeBase struct {
	Version        string               `yaml:"version"`
	CatchAll       string               `yaml:"catch_all"`
	Categories     []string             `yaml:"categories"`
	FastRules      []domain.PatternRule `yaml:"fast_rules"`
	Synonyms       []domain.Synonym     `yaml:"synonyms"`
	AbsencePhrases []string             `yaml:"absence_phrases"`
	Prompt         string               `yaml:"prompt"`

	prompt *template.Template
}

type promptData struct {
	ExpectedType   string
	CategoriesJSON string
	AbsenceJSON    string
}

// Default returns the knowledge base compiled into the binary.
func Default() (*KnowledgeBase, error) {
	return Parse(defaultYAML)
}

// Load reads a knowledge base from path, or the embedded one when path is empty.
func Load(path string) (*KnowledgeBase, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	if err := yaml.Unmarshal(raw, &kb); err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}
	if err := kb.validate(); err != nil {
		return nil, err
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(kb.Prompt)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	kb.prompt = tmpl
	return &kb, nil
}

func (kb *KnowledgeBase) validate() error {
	if len(kb.Categories) == 0 {
		return errors.New("knowledge base: categories are required")
	}
	seen := make(map[string]struct{}, len(kb.Categories))
	for _, c := range kb.Categories {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			return errors.New("knowledge base: empty category")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("knowledge base: duplicate category %q", c)
		}
		seen[key] = struct{}{}
	}
	if kb.CatchAll != "" {
		if _, ok := seen[strings.ToLower(strings.TrimSpace(kb.CatchAll))]; !ok {
			return fmt.Errorf("knowledge base: catch_all %q is not listed in categories", kb.CatchAll)
		}
	}
	for i, rule := range kb.FastRules {
		if strings.TrimSpace(rule.Label) == "" {
			return fmt.Errorf("knowledge base: fast rule %d has no label", i)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("knowledge base: fast rule %q: %w", rule.Label, err)
		}
	}
	if strings.TrimSpace(kb.Prompt) == "" {
		return errors.New("knowledge base: prompt is required")
	}
	return nil
}

func (kb *KnowledgeBase) RuleSet() domain.RuleSet {
	return domain.RuleSet{
		Version:        kb.Version,
		Categories:     append([]string(nil), kb.Categories...),
		CatchAll:       kb.CatchAll,
		FastRules:      append([]domain.PatternRule(nil), kb.FastRules...),
		Synonyms:       append([]domain.Synonym(nil), kb.Synonyms...),
		AbsencePhrases: append([]string(nil), kb.AbsencePhrases...),
	}
}

// BuildPrompt renders the classifier instructions for expectedType.
func (kb *KnowledgeBase) BuildPrompt(expectedType string) (string, error) {
	categories, err := json.Marshal(kb.Categories)
	if err != nil {
		return "", fmt.Errorf("encode categories: %w", err)
	}
	absence, err := json.Marshal(kb.AbsencePhrases)
	if err != nil {
		return "", fmt.Errorf("encode absence phrases: %w", err)
	}

	var buf bytes.Buffer
	err = kb.prompt.Execute(&buf, promptData{
		ExpectedType:   expectedType,
		CategoriesJSON: string(categories),
		AbsenceJSON:    string(absence),
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
