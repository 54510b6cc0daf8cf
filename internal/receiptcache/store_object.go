package receiptcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"receipts-backend/internal/shared/storage/object"
)

// ObjectStore persists the entry as one JSON object, on local disk or S3.
type ObjectStore struct {
	Objects object.ObjectStore
	Key     string
}

// Load reads and decodes the entry. A missing object is not an error.
func (s *ObjectStore) Load(ctx context.Context) (*Entry, error) {
	rc, err := s.Objects.Open(ctx, s.Key)
	if errors.Is(err, object.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var entry Entry
	if err := json.NewDecoder(rc).Decode(&entry); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Key, err)
	}
	return &entry, nil
}

// Save overwrites the object with the encoded entry.
func (s *ObjectStore) Save(ctx context.Context, entry Entry) error {
	payload, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	if _, err := s.Objects.SaveWithKey(ctx, s.Key, "application/json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("save %s: %w", s.Key, err)
	}
	return nil
}

// Clear deletes the object. Deleting a missing object succeeds.
func (s *ObjectStore) Clear(ctx context.Context) error {
	if err := s.Objects.Delete(ctx, s.Key); err != nil && !errors.Is(err, object.ErrNotFound) {
		return err
	}
	return nil
}
