package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

const (
	msgValidated      = "Documento validado com sucesso"
	msgNotMatched     = "O documento enviado não corresponde ao tipo esperado"
	msgWrongType      = "Tipo de documento errado: identificado como %q, mas era esperado %q"
	msgAbsenceOfData  = "Documento sem dados válidos: encontrada a frase de ausência %q"
	msgCatchAllBypass = "Documento legível aceito na categoria %q"
)

type synonymRule struct {
	pattern *regexp.Regexp
	to      string
}

// Reconciler fuses the classifier self-report with a normalized comparison of
// the detected and expected categories.
type Reconciler struct {
	synonyms []synonymRule
	absence  []string
}

func NewReconciler(synonyms []domain.Synonym, absencePhrases []string) *Reconciler {
	folded := make([]domain.Synonym, 0, len(synonyms))
	for _, s := range synonyms {
		from, to := foldText(s.From), foldText(s.To)
		if from == "" || from == to {
			continue
		}
		folded = append(folded, domain.Synonym{From: from, To: to})
	}
	sort.SliceStable(folded, func(i, j int) bool {
		return utf8.RuneCountInString(folded[i].From) > utf8.RuneCountInString(folded[j].From)
	})

	rules := make([]synonymRule, 0, len(folded))
	for _, s := range folded {
		rules = append(rules, synonymRule{
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(s.From) + `\b`),
			to:      s.To,
		})
	}

	absence := make([]string, 0, len(absencePhrases))
	for _, phrase := range absencePhrases {
		if f := foldText(phrase); f != "" {
			absence = append(absence, f)
		}
	}
	return &Reconciler{synonyms: rules, absence: absence}
}

// Canonical folds a category label and rewrites synonyms, longest first.
func (r *Reconciler) Canonical(label string) string {
	out := foldText(label)
	for _, rule := range r.synonyms {
		out = rule.pattern.ReplaceAllLiteralString(out, rule.to)
	}
	return out
}

// TypeMatches reports whether the canonical forms contain one another.
func (r *Reconciler) TypeMatches(detected, expected string) bool {
	return containsEither(r.Canonical(detected), r.Canonical(expected))
}

// FindAbsence looks for an absence-of-data phrase in any of texts.
func (r *Reconciler) FindAbsence(texts ...string) (string, bool) {
	for _, text := range texts {
		folded := foldText(text)
		if folded == "" {
			continue
		}
		for _, phrase := range r.absence {
			if strings.Contains(folded, phrase) {
				return phrase, true
			}
		}
	}
	return "", false
}

func (r *Reconciler) Reconcile(expectedType string, candidate domain.ClassificationCandidate) domain.ValidationVerdict {
	audited := []string{candidate.Reasoning, candidate.DetectedType}
	audited = append(audited, candidate.Keywords...)
	if phrase, found := r.FindAbsence(audited...); found {
		return domain.RejectVerdict(
			domain.KindAbsenceOfData,
			candidate.Method,
			fmt.Sprintf(msgAbsenceOfData, phrase),
			candidate,
		)
	}

	if !candidate.IsMatch {
		message := strings.TrimSpace(candidate.Reasoning)
		if message == "" {
			message = msgNotMatched
		}
		return domain.RejectVerdict(domain.KindNotMatched, candidate.Method, message, candidate)
	}

	if !r.TypeMatches(candidate.DetectedType, expectedType) {
		return domain.RejectVerdict(
			domain.KindWrongType,
			candidate.Method,
			fmt.Sprintf(msgWrongType, candidate.DetectedType, expectedType),
			candidate,
		)
	}

	return domain.AcceptVerdict(msgValidated, candidate)
}
