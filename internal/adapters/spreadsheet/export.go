// Package spreadsheet renders the knowledge base as an .xlsx workbook so
// business reviewers can audit rules without reading YAML.
package spreadsheet

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-validator/internal/knowledge"
)

const (
	SheetSummary    = "Resumo"
	SheetCategories = "Categorias"
	SheetRules      = "Regras"
	SheetSynonyms   = "Sinonimos"
	SheetAbsence    = "Ausencia"
	SheetPrompt     = "Prompt"
)

type sheet struct {
	name    string
	headers []string
	rows    [][]any
	widths  []float64
}

// Export writes one sheet per knowledge-base section to w.
func Export(w io.Writer, kb *knowledge.KnowledgeBase) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, s := range sheets(kb) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("rename first sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func sheets(kb *knowledge.KnowledgeBase) []sheet {
	categories := make([][]any, 0, len(kb.Categories))
	for i, c := range kb.Categories {
		catchAll := ""
		if c == kb.CatchAll {
			catchAll = "sim"
		}
		categories = append(categories, []any{i + 1, c, catchAll})
	}

	rules := make([][]any, 0, len(kb.FastRules))
	for i, r := range kb.FastRules {
		rules = append(rules, []any{i + 1, r.Label, r.Pattern})
	}

	synonyms := make([][]any, 0, len(kb.Synonyms))
	for _, s := range kb.Synonyms {
		synonyms = append(synonyms, []any{s.From, s.To})
	}

	absence := make([][]any, 0, len(kb.AbsencePhrases))
	for _, p := range kb.AbsencePhrases {
		absence = append(absence, []any{p})
	}

	return []sheet{
		{
			name:    SheetSummary,
			headers: []string{"Campo", "Valor"},
			rows: [][]any{
				{"Versão", kb.Version},
				{"Categoria coringa", kb.CatchAll},
				{"Categorias", len(kb.Categories)},
				{"Regras rápidas", len(kb.FastRules)},
				{"Sinônimos", len(kb.Synonyms)},
				{"Frases de ausência", len(kb.AbsencePhrases)},
			},
			widths: []float64{24, 40},
		},
		{name: SheetCategories, headers: []string{"#", "Categoria", "Coringa"}, rows: categories, widths: []float64{6, 44, 10}},
		{name: SheetRules, headers: []string{"Ordem", "Rótulo", "Padrão (texto normalizado)"}, rows: rules, widths: []float64{8, 28, 90}},
		{name: SheetSynonyms, headers: []string{"De", "Para"}, rows: synonyms, widths: []float64{36, 36}},
		{name: SheetAbsence, headers: []string{"Frase"}, rows: absence, widths: []float64{48}},
		{name: SheetPrompt, headers: []string{"Modelo do prompt"}, rows: [][]any{{kb.Prompt}}, widths: []float64{140}},
	}
}

func writeSheet(f *excelize.File, s sheet) error {
	for i, h := range s.headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(s.name, cell, h); err != nil {
			return fmt.Errorf("write %s header: %w", s.name, err)
		}
	}
	for r, row := range s.rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(s.name, cell, v); err != nil {
				return fmt.Errorf("write %s row %s: %w", s.name, strconv.Itoa(r+2), err)
			}
		}
	}
	for i, width := range s.widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(s.name, col, col, width)
	}
	return nil
}
