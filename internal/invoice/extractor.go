package invoice

import (
	"strings"
	"unicode/utf8"
)

const (
	vendorLines    = 3
	vendorMaxRunes = 100
)

// Trace records which rule produced each field, for logging and debugging.
type Trace struct {
	Rules        map[string]string `json:"rules"`
	TaxDiscarded bool              `json:"taxDiscarded"`
}

// Extract parses raw document text into a Record. It is a pure function: it never fails and
// leaves fields it cannot find absent. Line items come from the rule-based pass only.
func Extract(text string) Record {
	rec, _ := ExtractDetailed(text)
	return rec
}

// ExtractDetailed is Extract plus the per-field rule trace.
func ExtractDetailed(text string) (Record, Trace) {
	trace := Trace{Rules: map[string]string{}}
	str := func(field string, chain ruleChain) string {
		v, name, ok := chain.first(text)
		if !ok {
			return ""
		}
		trace.Rules[field] = name
		return v
	}
	amount := func(field string, chain ruleChain) *Money {
		v, name, ok := chain.first(text)
		if !ok {
			return nil
		}
		m, ok := ParseAmount(v)
		if !ok {
			return nil
		}
		trace.Rules[field] = name
		return moneyPtr(m)
	}

	rec := Record{
		InvoiceNumber: str("invoiceNumber", invoiceNumberRules),
		Date:          str("date", dateRules),
		Subtotal:      amount("subtotal", subtotalRules),
		Tax:           amount("tax", taxRules),
		TotalAmount:   amount("totalAmount", totalRules),
		BalanceDue:    amount("balanceDue", balanceRules),
		Paid:          amount("paid", paidRules),
		Vendor:        vendorFrom(text),
		LineItems:     RecognizeLines(text),
	}
	if len(rec.LineItems) > 0 {
		rec.LineItemSource = ItemsFromRules
	} else {
		rec.LineItems = []LineItem{}
	}
	trace.TaxDiscarded = SelfCorrect(&rec)
	return rec, trace
}

// SelfCorrect drops a tax value that is not strictly below the total, since that usually means
// the tax rules matched the grand total. Equal values are dropped too, even on zero-rated
// invoices where they may be genuine. It reports whether tax was discarded.
func SelfCorrect(rec *Record) bool {
	if rec == nil || rec.Tax == nil || rec.TotalAmount == nil {
		return false
	}
	if rec.Tax.GreaterThanOrEqual(rec.TotalAmount.Decimal) {
		rec.Tax = nil
		return true
	}
	return false
}

func vendorFrom(text string) string {
	var picked []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		picked = append(picked, line)
		if len(picked) == vendorLines {
			break
		}
	}
	vendor := strings.Join(picked, " ")
	if utf8.RuneCountInString(vendor) > vendorMaxRunes {
		vendor = strings.TrimSpace(string([]rune(vendor)[:vendorMaxRunes]))
	}
	return vendor
}
