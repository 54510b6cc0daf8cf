package invoice

// Category labels assigned to line items.
const (
	LabelMaintenance = "Maintenance"
	LabelAppliance   = "Appliance"
	LabelLicense     = "License"
	LabelOther       = "Other"
)

// Labels is the fixed label vocabulary in display order.
var Labels = []string{LabelMaintenance, LabelAppliance, LabelLicense, LabelOther}

// Line item provenance values.
const (
	ItemsFromRules      = "rules"
	ItemsFromClassifier = "classifier"
)

// LineItem is one itemized charge within an invoice.
type LineItem struct {
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	SourceID    string `json:"sourceId,omitempty"`
	Source      string `json:"source,omitempty"`
	Label       string `json:"label,omitempty"`
}

// Record is the structured result of extracting one document.
// Absent fields are empty strings or nil pointers.
type Record struct {
	InvoiceNumber  string     `json:"invoiceNumber,omitempty"`
	Date           string     `json:"date,omitempty"`
	Subtotal       *Money     `json:"subtotal,omitempty"`
	Tax            *Money     `json:"tax,omitempty"`
	TotalAmount    *Money     `json:"totalAmount,omitempty"`
	BalanceDue     *Money     `json:"balanceDue,omitempty"`
	Paid           *Money     `json:"paid,omitempty"`
	Vendor         string     `json:"vendor,omitempty"`
	LineItems      []LineItem `json:"lineItems"`
	LineItemSource string     `json:"lineItemSource,omitempty"`
}

// CanonicalLabel maps a free-form label onto the vocabulary, defaulting to Other.
func CanonicalLabel(raw string) string {
	for _, l := range Labels {
		if equalFoldTrim(raw, l) {
			return l
		}
	}
	return LabelOther
}

// Clone returns a copy that shares no slices or amounts with r.
func (r Record) Clone() Record {
	out := r
	out.Subtotal = cloneMoney(r.Subtotal)
	out.Tax = cloneMoney(r.Tax)
	out.TotalAmount = cloneMoney(r.TotalAmount)
	out.BalanceDue = cloneMoney(r.BalanceDue)
	out.Paid = cloneMoney(r.Paid)
	if r.LineItems != nil {
		out.LineItems = make([]LineItem, len(r.LineItems))
		copy(out.LineItems, r.LineItems)
	}
	return out
}

func cloneMoney(m *Money) *Money {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
