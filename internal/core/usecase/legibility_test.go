package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/document-validator/internal/core/domain"
)

func TestLegibilityRejectsBlankText(t *testing.T) {
	gate := NewLegibilityGate(LegibilityThresholds{}, LegibilityThresholds{})
	for _, text := range []string{"", "   ", "\n\t \r\n"} {
		if gate.Passes(text, domain.ModalityText) {
			t.Fatalf("blank text %q must fail", text)
		}
	}
}

func TestLegibilityUsesStricterImageThresholds(t *testing.T) {
	gate := NewLegibilityGate(DefaultImageLegibility, DefaultTextLegibility)
	text := "Extrato de conta corrente do cliente com saldo final positivo"

	if !gate.Passes(text, domain.ModalityText) {
		t.Fatalf("expected text-native content to pass")
	}
	if gate.Passes(text, domain.ModalityImage) {
		t.Fatalf("expected the same content to fail as OCR output")
	}
}

func TestLegibilityCountsOnlyMeaningfulTokens(t *testing.T) {
	gate := NewLegibilityGate(DefaultImageLegibility, DefaultTextLegibility)
	noise := strings.Repeat("12 ab ;; 7x ", 20)

	if gate.Passes(noise, domain.ModalityText) {
		t.Fatalf("numeric noise must not pass")
	}
}

func TestLegibilityAcceptsLegibleOCR(t *testing.T) {
	gate := NewLegibilityGate(DefaultImageLegibility, DefaultTextLegibility)
	text := "REPUBLICA FEDERATIVA DO BRASIL   CARTEIRA DE IDENTIDADE\nREGISTRO GERAL 12.345.678-9 NOME MARIA DA SILVA FILIACAO JOSE DA SILVA"

	if !gate.Passes(text, domain.ModalityImage) {
		t.Fatalf("expected legible OCR text to pass")
	}
}
