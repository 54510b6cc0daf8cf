package receiptcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGStore persists the entry in the single-row receipt_cache table.
type PGStore struct {
	DB *sql.DB
}

// Load returns the stored row, or nil when the table is empty.
func (s *PGStore) Load(ctx context.Context) (*Entry, error) {
	const query = `
SELECT aggregate, document_ids, fingerprint, cached_at
FROM receipt_cache
WHERE id = 1`
	var (
		aggregateJSON []byte
		idsJSON       []byte
		entry         Entry
	)
	err := s.DB.QueryRowContext(ctx, query).Scan(&aggregateJSON, &idsJSON, &entry.Fingerprint, &entry.CachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(aggregateJSON, &entry.Aggregate); err != nil {
		return nil, fmt.Errorf("decode aggregate: %w", err)
	}
	if err := json.Unmarshal(idsJSON, &entry.DocumentIDs); err != nil {
		return nil, fmt.Errorf("decode document ids: %w", err)
	}
	entry.CachedAt = entry.CachedAt.UTC()
	return &entry, nil
}

// Save upserts the single row.
func (s *PGStore) Save(ctx context.Context, entry Entry) error {
	const query = `
INSERT INTO receipt_cache (id, aggregate, document_ids, fingerprint, cached_at)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	aggregate = EXCLUDED.aggregate,
	document_ids = EXCLUDED.document_ids,
	fingerprint = EXCLUDED.fingerprint,
	cached_at = EXCLUDED.cached_at`
	aggregateJSON, err := json.Marshal(entry.Aggregate)
	if err != nil {
		return err
	}
	ids := entry.DocumentIDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, query, string(aggregateJSON), string(idsJSON), entry.Fingerprint, entry.CachedAt)
	return err
}

// Clear deletes the row.
func (s *PGStore) Clear(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM receipt_cache WHERE id = 1`)
	return err
}
