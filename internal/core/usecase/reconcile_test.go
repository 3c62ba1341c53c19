package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

func newDefaultReconciler(t *testing.T) *Reconciler {
	t.Helper()
	rules := defaultRules(t)
	return NewReconciler(rules.Synonyms, rules.AbsencePhrases)
}

func TestReconcileAcceptsEveryCategoryAgainstItself(t *testing.T) {
	r := newDefaultReconciler(t)
	for _, category := range defaultRules(t).Categories {
		v := r.Reconcile(category, domain.ClassificationCandidate{
			DetectedType: category,
			IsMatch:      true,
			Reasoning:    "documento compatível",
			Method:       domain.MethodSemanticText,
		})
		if v.Status != domain.StatusSuccess {
			t.Fatalf("category %q: expected success, got %+v", category, v)
		}
	}
}

func TestReconcileFoldsSynonymsAndDiacritics(t *testing.T) {
	r := newDefaultReconciler(t)
	cases := []struct {
		detected string
		expected string
	}{
		{detected: "CIC", expected: "CPF"},
		{detected: "Contracheque", expected: "Holerite"},
		{detected: "Extrato de Conta Corrente", expected: "Extrato Bancário"},
		{detected: "extrato bancario", expected: "Extrato Bancário"},
		{detected: "Comprovante de Residência", expected: "Comprovante de Endereço"},
		{detected: "CTPS", expected: "Carteira de Trabalho (Folha de Rosto)"},
	}
	for _, tc := range cases {
		v := r.Reconcile(tc.expected, domain.ClassificationCandidate{DetectedType: tc.detected, IsMatch: true})
		if v.Status != domain.StatusSuccess {
			t.Fatalf("%q vs %q: expected success, got %+v", tc.detected, tc.expected, v)
		}
	}
}

func TestReconcileRejectsWrongTypeEvenWhenClassifierMatches(t *testing.T) {
	r := newDefaultReconciler(t)

	v := r.Reconcile("RG", domain.ClassificationCandidate{
		DetectedType: "CPF",
		IsMatch:      true,
		Reasoning:    "documento de identificação",
		Method:       domain.MethodSemanticVisual,
	})
	if v.Status != domain.StatusError || v.ErrorKind != domain.KindWrongType {
		t.Fatalf("expected wrong_type error, got %+v", v)
	}
	if !strings.Contains(v.Message, "CPF") || !strings.Contains(v.Message, "RG") {
		t.Fatalf("message must name detected and expected types: %q", v.Message)
	}
	if v.Method != domain.MethodSemanticVisual {
		t.Fatalf("expected method to be preserved, got %q", v.Method)
	}
}

func TestReconcileRejectsEmptyDetectedType(t *testing.T) {
	r := newDefaultReconciler(t)

	v := r.Reconcile("Holerite", domain.ClassificationCandidate{IsMatch: true})
	if v.ErrorKind != domain.KindWrongType {
		t.Fatalf("empty detected type must not match, got %+v", v)
	}
}

func TestReconcileUsesReasoningWhenClassifierRejects(t *testing.T) {
	r := newDefaultReconciler(t)

	v := r.Reconcile("Holerite", domain.ClassificationCandidate{
		DetectedType: "Holerite",
		IsMatch:      false,
		Reasoning:    "cabeçalho sem valores monetários",
	})
	if v.ErrorKind != domain.KindNotMatched || v.Message != "cabeçalho sem valores monetários" {
		t.Fatalf("unexpected verdict %+v", v)
	}

	v = r.Reconcile("Holerite", domain.ClassificationCandidate{DetectedType: "Holerite"})
	if v.Message == "" {
		t.Fatalf("expected generic fallback message")
	}
}

func TestReconcileAuditsAbsencePhrases(t *testing.T) {
	r := newDefaultReconciler(t)
	cases := map[string]domain.ClassificationCandidate{
		"reasoning": {
			DetectedType: "Declaração de Imposto de Renda",
			IsMatch:      true,
			Reasoning:    "O documento informa: NADA CONSTA para o exercício.",
		},
		"detected type": {
			DetectedType: "Aviso de Inexistência",
			IsMatch:      true,
		},
		"keywords": {
			DetectedType: "Extrato Bancário",
			IsMatch:      true,
			Keywords:     []string{"Conta Corrente", "Ausencia de movimentacao"},
		},
	}
	for name, candidate := range cases {
		t.Run(name, func(t *testing.T) {
			v := r.Reconcile(candidate.DetectedType, candidate)
			if v.Status != domain.StatusError || v.ErrorKind != domain.KindAbsenceOfData {
				t.Fatalf("expected absence_of_data, got %+v", v)
			}
		})
	}
}
