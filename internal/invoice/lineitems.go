package invoice

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"receipts-backend/internal/llm"
	"receipts-backend/internal/shared/telemetry"
)

var (
	lineItemPattern = regexp.MustCompile(`^\s*([A-Za-z&][A-Za-z\s&\-(),.']{2,69}?)\s+(?:£|\$|€)?(\d[\d,]*\.?\d{0,2})\s*$`)
	lineItemDeny    = regexp.MustCompile(`(?i)^(description|quantity|unit price|sub[\s-]?total|grand total|total|vat|tax|balance|paid|date|invoice|amount|gbp|due)`)

	maxItemAmount = decimal.NewFromInt(50000)
)

// RecognizeLines is the rule-based line-item pass. Each line must be a description followed by
// an amount; header and footer labels are rejected, as are amounts outside (0, 50000).
func RecognizeLines(text string) []LineItem {
	var items []LineItem
	for _, line := range strings.Split(text, "\n") {
		m := lineItemPattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		desc := strings.Join(strings.Fields(m[1]), " ")
		if lineItemDeny.MatchString(desc) {
			continue
		}
		amount, ok := ParseAmount(m[2])
		if !ok || !plausibleItemAmount(amount) {
			continue
		}
		items = append(items, LineItem{Description: desc, Amount: amount})
	}
	return items
}

func plausibleItemAmount(m Money) bool {
	return m.IsPositive() && m.LessThan(maxItemAmount)
}

// Recognizer finds line items, asking the classifier when the rule pass finds none.
type Recognizer struct {
	Classifier llm.Completer
}

// Recognize runs the rule pass and falls back to the classifier. The second return value is the
// provenance of the items, or "" when none were found.
func (r *Recognizer) Recognize(ctx context.Context, text string) ([]LineItem, string) {
	if items := RecognizeLines(text); len(items) > 0 {
		return items, ItemsFromRules
	}
	items := r.Fallback(ctx, text)
	if len(items) == 0 {
		return nil, ""
	}
	return items, ItemsFromClassifier
}

// Fallback asks the classifier for line items. Failures yield no items.
func (r *Recognizer) Fallback(ctx context.Context, text string) []LineItem {
	if r == nil || r.Classifier == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeLineItems)
	resp, err := r.Classifier.Complete(ctx, llm.LineItemPrompt(text))
	if err != nil {
		telemetry.Warn("lineitems.classifier_failed", map[string]any{"error": err.Error()})
		return nil
	}
	items, tier := ParseLineItems(resp)
	if tier == "" {
		telemetry.Warn("lineitems.unparseable", map[string]any{"response_bytes": len(resp)})
		return nil
	}
	telemetry.Info("lineitems.classifier", map[string]any{"tier": tier, "items": len(items)})
	return items
}
