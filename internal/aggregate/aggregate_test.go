package aggregate

import (
	"encoding/json"
	"math/rand"
	"testing"

	"receipts-backend/internal/invoice"
)

func money(s string) *invoice.Money {
	m := invoice.MustMoney(s)
	return &m
}

func TestBuildBalanceDueFallback(t *testing.T) {
	res := Build([]DocumentRecord{
		{SourceID: "a.pdf", Record: invoice.Record{TotalAmount: money("50.00")}},
		{SourceID: "b.pdf", Record: invoice.Record{BalanceDue: money("30.00")}},
	})
	if !res.GrandTotal.Equal(invoice.MustMoney("80.00").Decimal) {
		t.Fatalf("grandTotal = %s, want 80.00", res.GrandTotal)
	}
}

func TestResolveTotalOrder(t *testing.T) {
	tests := []struct {
		name   string
		rec    invoice.Record
		want   string
		wantOK bool
	}{
		{name: "total wins", rec: invoice.Record{TotalAmount: money("10"), BalanceDue: money("5"), Subtotal: money("1"), Tax: money("1")}, want: "10.00", wantOK: true},
		{name: "balance next", rec: invoice.Record{BalanceDue: money("5"), Subtotal: money("1"), Tax: money("1")}, want: "5.00", wantOK: true},
		{name: "subtotal plus tax", rec: invoice.Record{Subtotal: money("100"), Tax: money("20")}, want: "120.00", wantOK: true},
		{name: "subtotal alone", rec: invoice.Record{Subtotal: money("100")}, wantOK: false},
		{name: "nothing", rec: invoice.Record{}, wantOK: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveTotal(tt.rec)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.String() != tt.want {
				t.Fatalf("total = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildTagsAndOrdersLineItems(t *testing.T) {
	docA := invoice.Record{
		InvoiceNumber: "INV-7",
		Tax:           money("2.00"),
		TotalAmount:   money("12.00"),
		LineItems: []invoice.LineItem{
			{Description: "Boiler service", Amount: invoice.MustMoney("8.00"), Label: invoice.LabelMaintenance},
			{Description: "Valve", Amount: invoice.MustMoney("2.00")},
		},
	}
	docB := invoice.Record{
		LineItems: []invoice.LineItem{{Description: "Antivirus", Amount: invoice.MustMoney("20.00"), Label: invoice.LabelLicense}},
	}
	res := Build([]DocumentRecord{{SourceID: "a.pdf", Record: docA}, {SourceID: "b.pdf", Record: docB}})

	if len(res.LineItems) != 3 {
		t.Fatalf("expected 3 items, got %d", len(res.LineItems))
	}
	wantOrder := []string{"Boiler service", "Valve", "Antivirus"}
	for i, w := range wantOrder {
		if res.LineItems[i].Description != w {
			t.Fatalf("item %d = %q, want %q", i, res.LineItems[i].Description, w)
		}
	}
	if res.LineItems[0].SourceID != "a.pdf" || res.LineItems[0].Source != "INV-7" {
		t.Fatalf("item not tagged with source: %+v", res.LineItems[0])
	}
	if res.LineItems[2].SourceID != "b.pdf" || res.LineItems[2].Source != "b.pdf" {
		t.Fatalf("item without invoice number should use filename: %+v", res.LineItems[2])
	}
	if docA.LineItems[0].SourceID != "" {
		t.Fatalf("input records must not be mutated")
	}
	if res.TotalTax.String() != "2.00" || res.GrandTotal.String() != "12.00" {
		t.Fatalf("totals = tax %s grand %s", res.TotalTax, res.GrandTotal)
	}
	if len(res.DocumentIDs) != 2 || res.DocumentIDs[1] != "b.pdf" {
		t.Fatalf("documentIds = %v", res.DocumentIDs)
	}
}

func TestBuildTotalsIgnoreOrder(t *testing.T) {
	docs := []DocumentRecord{
		{SourceID: "a", Record: invoice.Record{TotalAmount: money("10.10"), Tax: money("1.01"), LineItems: []invoice.LineItem{{Description: "A", Amount: invoice.MustMoney("1")}}}},
		{SourceID: "b", Record: invoice.Record{BalanceDue: money("20.20")}},
		{SourceID: "c", Record: invoice.Record{Subtotal: money("30.00"), Tax: money("6.00"), LineItems: []invoice.LineItem{{Description: "C", Amount: invoice.MustMoney("3")}}}},
		{SourceID: "d", Record: invoice.Record{}},
	}
	base := Build(docs)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		perm := make([]DocumentRecord, len(docs))
		for j, k := range rng.Perm(len(docs)) {
			perm[j] = docs[k]
		}
		got := Build(perm)
		if !got.GrandTotal.Equal(base.GrandTotal.Decimal) || !got.TotalTax.Equal(base.TotalTax.Decimal) {
			t.Fatalf("permutation changed totals: %s/%s vs %s/%s", got.GrandTotal, got.TotalTax, base.GrandTotal, base.TotalTax)
		}
		var wantItems []string
		for _, d := range perm {
			for _, it := range d.Record.LineItems {
				wantItems = append(wantItems, it.Description)
			}
		}
		if len(got.LineItems) != len(wantItems) {
			t.Fatalf("item count %d, want %d", len(got.LineItems), len(wantItems))
		}
		for j, w := range wantItems {
			if got.LineItems[j].Description != w {
				t.Fatalf("items not in permuted document order: %v", got.LineItems)
			}
		}
	}
	if base.GrandTotal.String() != "66.30" || base.TotalTax.String() != "7.01" {
		t.Fatalf("unexpected totals %s %s", base.GrandTotal, base.TotalTax)
	}
}

func TestBreakdown(t *testing.T) {
	items := []invoice.LineItem{
		{Description: "Repair", Amount: invoice.MustMoney("30"), Label: invoice.LabelMaintenance},
		{Description: "Misc", Amount: invoice.MustMoney("10")},
		{Description: "Fridge", Amount: invoice.MustMoney("60"), Label: invoice.LabelAppliance},
	}
	got := Breakdown(items, invoice.MustMoney("200"))
	if len(got) != 3 {
		t.Fatalf("expected 3 categories, got %+v", got)
	}
	if got[0].Label != invoice.LabelMaintenance || got[1].Label != invoice.LabelAppliance || got[2].Label != invoice.LabelOther {
		t.Fatalf("unexpected order %+v", got)
	}
	if got[1].Percentage != 30 || got[2].Total.String() != "10.00" {
		t.Fatalf("unexpected values %+v", got)
	}

	noTotal := Breakdown(items, invoice.Money{})
	if noTotal[1].Percentage != 60 {
		t.Fatalf("percentage should fall back to item sum, got %+v", noTotal)
	}
}

func TestResultJSONShape(t *testing.T) {
	res := Build([]DocumentRecord{{SourceID: "a.pdf", Record: invoice.Record{TotalAmount: money("120")}}})
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["grandTotal"] != 120.0 || decoded["totalTax"] != 0.0 {
		t.Fatalf("unexpected totals in %s", data)
	}
	if _, ok := decoded["consolidatedLineItems"].([]any); !ok {
		t.Fatalf("consolidatedLineItems should be an array: %s", data)
	}

	var back Result
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("decode Result: %v", err)
	}
	if back.PerDocument[0].Record.TotalAmount == nil || back.PerDocument[0].Record.TotalAmount.String() != "120.00" {
		t.Fatalf("record did not survive JSON: %+v", back.PerDocument[0])
	}
}
