package receipts

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"receipts-backend/internal/aggregate"
	"receipts-backend/internal/invoice"
	"receipts-backend/internal/receiptcache"
	"receipts-backend/internal/shared/telemetry"
)

const (
	sheetLineItems = "Line Items"
	sheetDocuments = "Documents"
	sheetSummary   = "Summary"
)

// WriteWorkbook renders a cache entry as an XLSX spending summary.
func WriteWorkbook(entry receiptcache.Entry) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetLineItems); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}
	for _, name := range []string{sheetDocuments, sheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx new sheet %s: %w", name, err)
		}
	}

	agg := entry.Aggregate
	items := [][]any{{"Source", "Document", "Description", "Category", "Amount"}}
	for _, it := range agg.LineItems {
		label := it.Label
		if label == "" {
			label = invoice.LabelOther
		}
		items = append(items, []any{it.Source, it.SourceID, it.Description, label, it.Amount.InexactFloat64()})
	}
	if err := writeRows(f, sheetLineItems, items); err != nil {
		return nil, err
	}

	docs := [][]any{{"Document", "Invoice #", "Date", "Vendor", "Subtotal", "Tax", "Total", "Balance Due", "Paid", "Resolved Total"}}
	for _, d := range agg.PerDocument {
		r := d.Record
		resolved := any("")
		if total, ok := aggregate.ResolveTotal(r); ok {
			resolved = total.InexactFloat64()
		}
		docs = append(docs, []any{
			d.SourceID, r.InvoiceNumber, r.Date, r.Vendor,
			amountCell(r.Subtotal), amountCell(r.Tax), amountCell(r.TotalAmount),
			amountCell(r.BalanceDue), amountCell(r.Paid), resolved,
		})
	}
	if err := writeRows(f, sheetDocuments, docs); err != nil {
		return nil, err
	}

	summary := [][]any{{"Category", "Total", "Percentage"}}
	for _, ct := range agg.CategoryBreakdown {
		summary = append(summary, []any{ct.Label, ct.Total.InexactFloat64(), ct.Percentage})
	}
	summary = append(summary,
		[]any{},
		[]any{"Total Tax", agg.TotalTax.InexactFloat64()},
		[]any{"Grand Total", agg.GrandTotal.InexactFloat64()},
		[]any{"Cached At", entry.CachedAt.Format(time.RFC3339)},
	)
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(sheetLineItems, "A", "B", 24)
	_ = f.SetColWidth(sheetLineItems, "C", "C", 48)
	_ = f.SetColWidth(sheetLineItems, "D", "E", 14)
	_ = f.SetColWidth(sheetDocuments, "A", "D", 24)
	_ = f.SetColWidth(sheetDocuments, "E", "J", 14)
	_ = f.SetColWidth(sheetSummary, "A", "C", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	telemetry.Info("export.xlsx.ok", map[string]any{
		"items":      len(agg.LineItems),
		"documents":  len(agg.PerDocument),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("xlsx %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func amountCell(m *invoice.Money) any {
	if m == nil {
		return ""
	}
	return m.InexactFloat64()
}
