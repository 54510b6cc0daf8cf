package main

// Extract one invoice and print the record:
//   go run ./cmd/extractinvoice -file invoice.pdf [-no-llm] [-out record.json]

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"receipts-backend/internal/bootstrap"
	"receipts-backend/internal/extract"
	"receipts-backend/internal/invoice"
	"receipts-backend/internal/llm"
	"receipts-backend/internal/shared/config"
	"receipts-backend/internal/shared/telemetry"
)

type output struct {
	File      string         `json:"file"`
	PageCount int            `json:"pageCount,omitempty"`
	Record    invoice.Record `json:"record"`
	Trace     invoice.Trace  `json:"trace"`
}

func main() {
	telemetry.SetOutput(io.Discard)
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to a PDF or plain-text invoice")
	noLLM := flag.Bool("no-llm", false, "Skip the classifier; rule-based extraction only")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	verbose := flag.Bool("v", false, "Log to stderr")
	flag.Parse()

	if *verbose {
		telemetry.SetOutput(os.Stderr)
	}

	if strings.TrimSpace(*filePath) == "" {
		exitErr("file path is required")
	}
	data, err := os.ReadFile(*filePath)
	if err != nil {
		exitErr(fmt.Sprintf("read file: %v", err))
	}

	ctx := context.Background()
	out := output{File: filepath.Base(*filePath)}
	text := string(data)
	if strings.EqualFold(filepath.Ext(*filePath), ".pdf") {
		res, err := extract.FromBytes(ctx, data, cfg.PDFTimeout)
		if err != nil {
			exitErr(fmt.Sprintf("extract pdf text: %v", err))
		}
		text = res.Text
		out.PageCount = res.PageCount
	}

	var classifier llm.Completer
	if !*noLLM {
		cfg.LLMModel = *model
		classifier, err = bootstrap.NewClassifier(cfg)
		if err != nil {
			exitErr(err.Error())
		}
	}

	_, out.Trace = invoice.ExtractDetailed(text)
	out.Record = invoice.NewPipeline(classifier).ExtractInvoice(ctx, text)

	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	pretty = append(pretty, '\n')

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
