package invoice

import (
	"context"
	"encoding/json"
	"strings"

	"receipts-backend/internal/llm"
	"receipts-backend/internal/shared/telemetry"
)

// Labeler assigns a category to each line item using the classifier. Any failure labels every
// item Other.
type Labeler struct {
	Classifier llm.Completer
}

// Label returns a copy of items with Label populated.
func (l *Labeler) Label(ctx context.Context, items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	if len(out) == 0 {
		return out
	}

	labels := l.classify(ctx, out)
	for i := range out {
		if labels == nil {
			out[i].Label = LabelOther
			continue
		}
		out[i].Label = labels[i]
	}
	return out
}

func (l *Labeler) classify(ctx context.Context, items []LineItem) []string {
	if l == nil || l.Classifier == nil {
		return nil
	}
	descriptions := make([]string, len(items))
	for i, it := range items {
		descriptions[i] = it.Description
	}

	ctx = llm.WithPurpose(ctx, llm.PurposeCategories)
	resp, err := l.Classifier.Complete(ctx, llm.CategoryPrompt(descriptions, Labels))
	if err != nil {
		telemetry.Warn("labels.classifier_failed", map[string]any{"error": err.Error(), "items": len(items)})
		return nil
	}
	labels, ok := ParseLabels(resp, len(items))
	if !ok {
		telemetry.Warn("labels.unparseable", map[string]any{"items": len(items), "response_bytes": len(resp)})
		return nil
	}
	return labels
}

// labelEntry accepts either a bare string or an object with a "label" or "category" field.
type labelEntry string

func (e *labelEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*e = labelEntry(s)
		return nil
	}
	var obj struct {
		Label    string `json:"label"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Label != "" {
		*e = labelEntry(obj.Label)
	} else {
		*e = labelEntry(obj.Category)
	}
	return nil
}

// ParseLabels reads a JSON array of labels from a classifier response, one per item in order.
// The result is rejected when the count does not match, since labels cannot be realigned.
func ParseLabels(resp string, want int) ([]string, bool) {
	for _, body := range jsonCandidates(resp) {
		var entries []labelEntry
		if err := json.Unmarshal([]byte(body), &entries); err != nil {
			continue
		}
		if len(entries) != want {
			return nil, false
		}
		labels := make([]string, len(entries))
		for i, e := range entries {
			labels[i] = CanonicalLabel(strings.TrimSpace(string(e)))
		}
		return labels, true
	}
	return nil, false
}
