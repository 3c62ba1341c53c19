package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

type compiledRule struct {
	label   string
	pattern *regexp.Regexp
}

// FastClassifier resolves text documents with ordered keyword rules before any
// AI call is made. The first matching rule wins, so specific rules must come
// before generic ones.
type FastClassifier struct {
	rules   []compiledRule
	absence []string
}

func NewFastClassifier(rules []domain.PatternRule, absencePhrases []string) (*FastClassifier, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		label := strings.TrimSpace(rule.Label)
		if label == "" {
			return nil, fmt.Errorf("fast rule %d: label is required", i)
		}
		re, err := regexp.Compile(`(?s)` + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("fast rule %d (%s): %w", i, label, err)
		}
		compiled = append(compiled, compiledRule{label: label, pattern: re})
	}

	absence := make([]string, 0, len(absencePhrases))
	for _, phrase := range absencePhrases {
		if folded := foldText(phrase); folded != "" {
			absence = append(absence, folded)
		}
	}
	return &FastClassifier{rules: compiled, absence: absence}, nil
}

// Match returns the label of the first rule matching text.
func (c *FastClassifier) Match(text string) (string, bool) {
	folded := foldText(text)
	for _, rule := range c.rules {
		if rule.pattern.MatchString(folded) {
			return rule.label, true
		}
	}
	return "", false
}

// Classify short-circuits to a success candidate when a rule label and the
// expected category contain one another. Documents that declare an absence of
// data are left for the semantic stage and its audit.
func (c *FastClassifier) Classify(text, expectedType string) (domain.ClassificationCandidate, bool) {
	folded := foldText(text)
	for _, phrase := range c.absence {
		if strings.Contains(folded, phrase) {
			return domain.ClassificationCandidate{}, false
		}
	}

	label, ok := c.Match(text)
	if !ok {
		return domain.ClassificationCandidate{}, false
	}
	if !containsEither(foldText(expectedType), foldText(label)) {
		return domain.ClassificationCandidate{}, false
	}

	return domain.ClassificationCandidate{
		DetectedType: label,
		IsMatch:      true,
		Confidence:   domain.ConfidenceHigh,
		Reasoning:    fmt.Sprintf("regra de palavras-chave para %q", label),
		Method:       domain.MethodRegex,
	}, true
}
