package main

import (
	"flag"
	"log"
	"os"

	"github.com/kirillkom/document-validator/internal/adapters/spreadsheet"
	"github.com/kirillkom/document-validator/internal/knowledge"
	"github.com/kirillkom/document-validator/internal/observability/logging"
)

func main() {
	kbPath := flag.String("kb", os.Getenv("KNOWLEDGE_BASE_PATH"), "knowledge base YAML (embedded default when empty)")
	out := flag.String("out", "knowledge-base.xlsx", "output .xlsx path")
	flag.Parse()

	logger := logging.NewJSONLogger("kbexport", "info")

	var (
		kb  *knowledge.KnowledgeBase
		err error
	)
	if *kbPath == "" {
		kb, err = knowledge.Default()
	} else {
		kb, err = knowledge.Load(*kbPath)
	}
	if err != nil {
		log.Fatalf("load knowledge base: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	if err := spreadsheet.Export(f, kb); err != nil {
		_ = f.Close()
		log.Fatalf("export: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("close output: %v", err)
	}
	logger.Info("kb_export_written", "path", *out, "version", kb.Version, "categories", len(kb.Categories))
}
