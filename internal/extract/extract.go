package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"receipts-backend/internal/shared/storage/object"
)

// Result is the output of the PDF-text collaborator.
type Result struct {
	Text      string
	PageCount int
}

// Extractor pulls plain text from stored PDFs with a per-document timeout.
type Extractor struct {
	Store   object.ObjectStore
	Timeout time.Duration
}

// parsePDF is replaced in tests.
var parsePDF = readPDF

// ExtractText reads the object at key and extracts its text. Image-only PDFs produce empty
// text, which is not an error.
func (e *Extractor) ExtractText(ctx context.Context, key string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	body, err := e.Store.Open(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("extract text key=%s: %w", key, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return Result{}, fmt.Errorf("extract text key=%s: read: %w", key, err)
	}

	res, err := FromBytes(ctx, raw, e.Timeout)
	if err != nil {
		return Result{}, fmt.Errorf("extract text key=%s: %w", key, err)
	}
	return res, nil
}

// FromBytes extracts text from an in-memory PDF. The parser runs in its own goroutine so a
// malformed document cannot hold the caller past timeout; a timeout of zero means no limit.
func FromBytes(ctx context.Context, data []byte, timeout time.Duration) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		res Result
		err error
	}
	parse := parsePDF
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("pdf parse panic: %v", rec)}
			}
		}()
		res, err := parse(data)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, fmt.Errorf("pdf extraction timeout: %w", ctx.Err())
	}
}

// readPDF rebuilds each page's lines and joins pages with a newline.
func readPDF(data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("empty pdf data")
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, err
	}
	pages := pdfReader.NumPage()
	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		texts = append(texts, pageText(pdfReader.Page(i)))
	}
	return Result{Text: strings.Join(texts, "\n"), PageCount: pages}, nil
}
