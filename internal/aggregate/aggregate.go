// Package aggregate merges per-document invoice records into one consolidated spending view.
package aggregate

import (
	"github.com/shopspring/decimal"

	"receipts-backend/internal/invoice"
)

// DocumentRecord pairs a document identifier with its extracted record.
type DocumentRecord struct {
	SourceID  string         `json:"sourceId"`
	PageCount int            `json:"pageCount,omitempty"`
	Record    invoice.Record `json:"record"`
}

// CategoryTotal is one row of the spend-by-category breakdown.
type CategoryTotal struct {
	Label      string        `json:"label"`
	Total      invoice.Money `json:"total"`
	Percentage float64       `json:"percentage"`
}

// Result is the consolidated view over a document set. It is always rebuilt wholesale.
type Result struct {
	PerDocument       []DocumentRecord   `json:"perDocument"`
	LineItems         []invoice.LineItem `json:"consolidatedLineItems"`
	TotalTax          invoice.Money      `json:"totalTax"`
	GrandTotal        invoice.Money      `json:"grandTotal"`
	DocumentIDs       []string           `json:"documentIds"`
	CategoryBreakdown []CategoryTotal    `json:"categoryBreakdown"`
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	out := r
	if r.PerDocument != nil {
		out.PerDocument = make([]DocumentRecord, len(r.PerDocument))
		for i, d := range r.PerDocument {
			d.Record = d.Record.Clone()
			out.PerDocument[i] = d
		}
	}
	if r.LineItems != nil {
		out.LineItems = make([]invoice.LineItem, len(r.LineItems))
		copy(out.LineItems, r.LineItems)
	}
	if r.DocumentIDs != nil {
		out.DocumentIDs = make([]string, len(r.DocumentIDs))
		copy(out.DocumentIDs, r.DocumentIDs)
	}
	if r.CategoryBreakdown != nil {
		out.CategoryBreakdown = make([]CategoryTotal, len(r.CategoryBreakdown))
		copy(out.CategoryBreakdown, r.CategoryBreakdown)
	}
	return out
}

// ResolveTotal picks a document's best available total: totalAmount, then balanceDue, then
// subtotal+tax when both are present. ok is false when none apply.
func ResolveTotal(r invoice.Record) (invoice.Money, bool) {
	switch {
	case r.TotalAmount != nil:
		return *r.TotalAmount, true
	case r.BalanceDue != nil:
		return *r.BalanceDue, true
	case r.Subtotal != nil && r.Tax != nil:
		return r.Subtotal.Add(*r.Tax), true
	default:
		return invoice.Money{}, false
	}
}

// Build aggregates docs in input order. Documents without a resolvable total contribute zero.
// Line items are copied, tagged with their document, and concatenated in document order.
func Build(docs []DocumentRecord) Result {
	res := Result{
		PerDocument: make([]DocumentRecord, 0, len(docs)),
		LineItems:   []invoice.LineItem{},
		DocumentIDs: make([]string, 0, len(docs)),
	}
	for _, d := range docs {
		res.PerDocument = append(res.PerDocument, d)
		res.DocumentIDs = append(res.DocumentIDs, d.SourceID)

		if d.Record.Tax != nil {
			res.TotalTax = res.TotalTax.Add(*d.Record.Tax)
		}
		if total, ok := ResolveTotal(d.Record); ok {
			res.GrandTotal = res.GrandTotal.Add(total)
		}

		source := d.Record.InvoiceNumber
		if source == "" {
			source = d.SourceID
		}
		for _, item := range d.Record.LineItems {
			item.SourceID = d.SourceID
			item.Source = source
			res.LineItems = append(res.LineItems, item)
		}
	}
	res.CategoryBreakdown = Breakdown(res.LineItems, res.GrandTotal)
	return res
}

var hundred = decimal.NewFromInt(100)

// Breakdown sums item amounts by label in vocabulary order. Unlabeled items count as Other.
// Percentages are relative to grandTotal, or to the item sum when grandTotal is zero.
func Breakdown(items []invoice.LineItem, grandTotal invoice.Money) []CategoryTotal {
	sums := map[string]invoice.Money{}
	var itemSum invoice.Money
	for _, it := range items {
		label := invoice.CanonicalLabel(it.Label)
		sums[label] = sums[label].Add(it.Amount)
		itemSum = itemSum.Add(it.Amount)
	}

	denominator := grandTotal
	if denominator.IsZero() {
		denominator = itemSum
	}

	out := []CategoryTotal{}
	for _, label := range invoice.Labels {
		total, ok := sums[label]
		if !ok {
			continue
		}
		pct := 0.0
		if !denominator.IsZero() {
			pct = total.Decimal.Div(denominator.Decimal).Mul(hundred).Round(1).InexactFloat64()
		}
		out = append(out, CategoryTotal{Label: label, Total: total, Percentage: pct})
	}
	return out
}
