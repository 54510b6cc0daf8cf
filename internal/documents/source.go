package documents

import (
	"context"
	"fmt"
	"path"
	"strings"

	"receipts-backend/internal/extract"
	"receipts-backend/internal/shared/storage/object"
)

// TextExtractor is the PDF-text collaborator.
type TextExtractor interface {
	ExtractText(ctx context.Context, key string) (extract.Result, error)
}

// Source lists the PDFs under a folder of an object store and loads their text.
type Source struct {
	Store  object.ObjectStore
	Prefix string
	Text   TextExtractor
}

// List returns the current PDF documents sorted by ID.
func (s *Source) List(ctx context.Context) ([]Document, error) {
	prefix := strings.Trim(strings.TrimSpace(s.Prefix), "/")
	infos, err := s.Store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]Document, 0, len(infos))
	for _, info := range infos {
		if !isPDF(info.Key) {
			continue
		}
		id := info.Key
		if prefix != "" {
			id = strings.TrimPrefix(id, prefix+"/")
		}
		docs = append(docs, Document{
			ID:         id,
			Key:        info.Key,
			SizeBytes:  info.SizeBytes,
			ModifiedAt: info.ModifiedAt,
		})
	}
	return docs, nil
}

// Load extracts the text of one document.
func (s *Source) Load(ctx context.Context, doc Document) (extract.Result, error) {
	return s.Text.ExtractText(ctx, doc.Key)
}

func isPDF(key string) bool {
	base := path.Base(key)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(path.Ext(base), ".pdf")
}
