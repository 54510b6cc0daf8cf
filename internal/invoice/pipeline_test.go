package invoice

import (
	"context"
	"strings"
	"sync"
	"testing"

	"receipts-backend/internal/llm"
)

type scriptedClassifier struct {
	mu       sync.Mutex
	purposes []string
	prompts  []string
	answers  map[string]string
}

func (c *scriptedClassifier) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	purpose := llm.PurposeFromContext(ctx)
	c.purposes = append(c.purposes, purpose)
	c.prompts = append(c.prompts, prompt)
	answer, ok := c.answers[purpose]
	if !ok {
		return "", llm.ErrUnavailable
	}
	return answer, nil
}

func TestPipelineUsesClassifierWhenRulesFindNoItems(t *testing.T) {
	c := &scriptedClassifier{answers: map[string]string{
		llm.PurposeLineItems:  `[{"description":"Gas safety check","amount":80}]`,
		llm.PurposeCategories: `["Maintenance"]`,
	}}
	text := "Acme Gas\nGas safety check performed on boiler\nTotal: £80.00\n"

	rec := NewPipeline(c).ExtractInvoice(context.Background(), text)

	if rec.LineItemSource != ItemsFromClassifier || len(rec.LineItems) != 1 {
		t.Fatalf("unexpected items %+v (source %q)", rec.LineItems, rec.LineItemSource)
	}
	if rec.LineItems[0].Label != LabelMaintenance {
		t.Fatalf("label = %q", rec.LineItems[0].Label)
	}
	assertMoney(t, "totalAmount", rec.TotalAmount, "80.00")
	if len(c.purposes) != 2 || c.purposes[0] != llm.PurposeLineItems || c.purposes[1] != llm.PurposeCategories {
		t.Fatalf("unexpected classifier calls %v", c.purposes)
	}
	if !strings.Contains(c.prompts[0], "Gas safety check performed on boiler") {
		t.Fatalf("line item prompt should carry the document text")
	}
}

func TestPipelineKeepsRuleItems(t *testing.T) {
	c := &scriptedClassifier{answers: map[string]string{
		llm.PurposeCategories: `["Maintenance","Appliance"]`,
	}}

	rec := NewPipeline(c).ExtractInvoice(context.Background(), sampleInvoice)

	if rec.LineItemSource != ItemsFromRules || len(rec.LineItems) != 2 {
		t.Fatalf("unexpected items %+v", rec.LineItems)
	}
	if rec.LineItems[0].Label != LabelMaintenance || rec.LineItems[1].Label != LabelAppliance {
		t.Fatalf("unexpected labels %+v", rec.LineItems)
	}
	if len(c.purposes) != 1 || c.purposes[0] != llm.PurposeCategories {
		t.Fatalf("only labeling should call the classifier, got %v", c.purposes)
	}
}

func TestPipelineWithoutClassifier(t *testing.T) {
	rec := NewPipeline(nil).ExtractInvoice(context.Background(), sampleInvoice)
	if len(rec.LineItems) != 2 {
		t.Fatalf("expected rule items, got %+v", rec.LineItems)
	}
	for _, it := range rec.LineItems {
		if it.Label != LabelOther {
			t.Fatalf("expected Other without a classifier, got %+v", it)
		}
	}
}

func TestPipelineClassifierDown(t *testing.T) {
	c := &scriptedClassifier{}
	rec := NewPipeline(c).ExtractInvoice(context.Background(), "Handwritten note\nTOTAL: £120.00\n")
	if rec.LineItems == nil || len(rec.LineItems) != 0 || rec.LineItemSource != "" {
		t.Fatalf("expected empty items, got %+v (source %q)", rec.LineItems, rec.LineItemSource)
	}
	assertMoney(t, "totalAmount", rec.TotalAmount, "120.00")
}

func TestPipelineEmptyTextSkipsClassifier(t *testing.T) {
	c := &scriptedClassifier{}
	rec := NewPipeline(c).ExtractInvoice(context.Background(), "  \n ")
	if len(c.purposes) != 0 {
		t.Fatalf("classifier should not be called for empty text, got %v", c.purposes)
	}
	if len(rec.LineItems) != 0 {
		t.Fatalf("expected no items")
	}
}

func TestPipelineSelfCorrects(t *testing.T) {
	rec := NewPipeline(nil).ExtractInvoice(context.Background(), "VAT: £120.00\nTOTAL: £120.00\n")
	assertMoney(t, "tax", rec.Tax, "")
}
