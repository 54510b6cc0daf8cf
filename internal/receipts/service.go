package receipts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"receipts-backend/internal/aggregate"
	"receipts-backend/internal/documents"
	"receipts-backend/internal/extract"
	"receipts-backend/internal/invoice"
	"receipts-backend/internal/receiptcache"
	"receipts-backend/internal/shared/metrics"
	"receipts-backend/internal/shared/telemetry"
)

const (
	warningNotDurable = "cache_not_durable"
	recomputeKey      = "recompute"
)

// DocumentSource is the live document set.
type DocumentSource interface {
	List(ctx context.Context) ([]documents.Document, error)
	Load(ctx context.Context, doc documents.Document) (extract.Result, error)
}

// Warning is a non-fatal problem reported alongside a successful response.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// View is the cache status plus the cached aggregate, if any.
type View struct {
	receiptcache.Status
	Aggregate *aggregate.Result `json:"aggregate,omitempty"`
	RunID     string            `json:"runId,omitempty"`
	Warnings  []Warning         `json:"warnings,omitempty"`
}

// Service runs the extraction pipeline over the document set and serves the cached aggregate.
type Service struct {
	Docs       DocumentSource
	Pipeline   *invoice.Pipeline
	Cache      *receiptcache.Cache
	PDFTimeout time.Duration

	group singleflight.Group
}

type recomputeResult struct {
	runID    string
	live     []string
	warnings []Warning
}

// ExtractInvoice runs the per-document pipeline on raw text.
func (s *Service) ExtractInvoice(ctx context.Context, text string) invoice.Record {
	return s.Pipeline.ExtractInvoice(ctx, text)
}

// ExtractPDF extracts the text of an uploaded PDF and runs the pipeline on it. A PDF whose text
// cannot be read is treated as empty text.
func (s *Service) ExtractPDF(ctx context.Context, data []byte) (invoice.Record, int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\r\n\t "), []byte("%PDF")) {
		return invoice.Record{}, 0, fmt.Errorf("%w: file is not a PDF", ErrInvalidInput)
	}
	res, err := extract.FromBytes(ctx, data, s.PDFTimeout)
	if err != nil {
		telemetry.Warn("extract.pdf_unreadable", map[string]any{"error": err.Error(), "bytes": len(data)})
		res = extract.Result{}
	}
	return s.Pipeline.ExtractInvoice(ctx, res.Text), res.PageCount, nil
}

// Documents lists the live document set.
func (s *Service) Documents(ctx context.Context) ([]documents.Document, error) {
	return s.Docs.List(ctx)
}

// Status reports the cache state against the live document set. It never recomputes.
func (s *Service) Status(ctx context.Context) (View, error) {
	live, err := s.liveIDs(ctx)
	if err != nil {
		return View{}, err
	}
	return s.view(live), nil
}

// GetAggregate serves the cached aggregate when it is fresh and recomputes otherwise.
func (s *Service) GetAggregate(ctx context.Context) (View, error) {
	live, err := s.liveIDs(ctx)
	if err != nil {
		return View{}, err
	}
	v := s.view(live)
	if v.State == receiptcache.StateFresh {
		return v, nil
	}
	telemetry.Info("aggregate.refresh", map[string]any{
		"state":   string(v.State),
		"added":   len(v.Added),
		"removed": len(v.Removed),
	})
	return s.Recompute(ctx)
}

// Recompute rebuilds the aggregate from every live document and replaces the cache entry.
// Concurrent calls share one run. The run is detached from ctx and completes even if the
// caller goes away.
func (s *Service) Recompute(ctx context.Context) (View, error) {
	ch := s.group.DoChan(recomputeKey, func() (any, error) {
		return s.recompute(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return View{}, res.Err
		}
		out := res.Val.(recomputeResult)
		if res.Shared {
			telemetry.Debug("recompute.coalesced", map[string]any{"run_id": out.runID})
		}
		v := s.view(out.live)
		v.RunID = out.runID
		v.Warnings = out.warnings
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Clear drops the cached aggregate.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.Cache.Clear(ctx); err != nil {
		return err
	}
	telemetry.Info("cache.cleared", nil)
	return nil
}

// Export renders the cached aggregate as XLSX.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	entry, ok := s.Cache.Read()
	if !ok {
		return nil, ErrNotComputed
	}
	return WriteWorkbook(entry)
}

func (s *Service) recompute(ctx context.Context) (recomputeResult, error) {
	runID := uuid.NewString()
	start := time.Now()
	telemetry.Info("recompute.start", map[string]any{"run_id": runID})

	docs, err := s.Docs.List(ctx)
	if err != nil {
		metrics.ObserveRecompute("error", time.Since(start))
		telemetry.Error("recompute.list_failed", map[string]any{"run_id": runID, "error": err.Error()})
		return recomputeResult{}, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	records := make([]aggregate.DocumentRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, s.processDocument(ctx, runID, doc))
	}
	metrics.IncDocumentsProcessed(len(records))

	agg := aggregate.Build(records)
	ids := documents.IDs(docs)
	out := recomputeResult{runID: runID, live: ids}

	outcome := "ok"
	if _, err := s.Cache.Write(ctx, agg, ids); err != nil {
		if !errors.Is(err, receiptcache.ErrNotDurable) {
			metrics.ObserveRecompute("error", time.Since(start))
			return recomputeResult{}, err
		}
		outcome = "not_durable"
		out.warnings = append(out.warnings, Warning{
			Code:    warningNotDurable,
			Message: "aggregate was computed but could not be saved; it will be lost on restart",
		})
	}
	metrics.ObserveRecompute(outcome, time.Since(start))
	telemetry.Info("recompute.done", map[string]any{
		"run_id":      runID,
		"outcome":     outcome,
		"documents":   len(records),
		"items":       len(agg.LineItems),
		"grand_total": agg.GrandTotal.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return out, nil
}

func (s *Service) processDocument(ctx context.Context, runID string, doc documents.Document) aggregate.DocumentRecord {
	res, err := s.Docs.Load(ctx, doc)
	if err != nil {
		telemetry.Warn("recompute.document_unreadable", map[string]any{
			"run_id":   runID,
			"document": doc.ID,
			"error":    err.Error(),
		})
		res = extract.Result{}
	}
	rec := s.Pipeline.ExtractInvoice(ctx, res.Text)
	_, hasTotal := aggregate.ResolveTotal(rec)
	telemetry.Info("recompute.document", map[string]any{
		"run_id":           runID,
		"document":         doc.ID,
		"pages":            res.PageCount,
		"items":            len(rec.LineItems),
		"line_item_source": rec.LineItemSource,
		"has_total":        hasTotal,
	})
	return aggregate.DocumentRecord{SourceID: doc.ID, PageCount: res.PageCount, Record: rec}
}

func (s *Service) liveIDs(ctx context.Context) ([]string, error) {
	docs, err := s.Docs.List(ctx)
	if err != nil {
		return nil, err
	}
	return documents.IDs(docs), nil
}

func (s *Service) view(live []string) View {
	st, entry, ok := s.Cache.Snapshot(live)
	v := View{Status: st}
	if ok {
		agg := entry.Aggregate
		v.Aggregate = &agg
	}
	return v
}
