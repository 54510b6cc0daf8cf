package invoice

import (
	"context"

	"receipts-backend/internal/llm"
	"receipts-backend/internal/shared/metrics"
	"receipts-backend/internal/shared/telemetry"
)

// Pipeline is the full per-document extraction: rule-based fields and items, the classifier
// fallback for items, then category labels.
type Pipeline struct {
	Items  *Recognizer
	Labels *Labeler
}

// NewPipeline builds a pipeline whose recognizer and labeler share one classifier. A nil
// classifier disables the fallback and labels everything Other.
func NewPipeline(classifier llm.Completer) *Pipeline {
	return &Pipeline{
		Items:  &Recognizer{Classifier: classifier},
		Labels: &Labeler{Classifier: classifier},
	}
}

// ExtractInvoice runs the pipeline on one document's text. It never fails.
func (p *Pipeline) ExtractInvoice(ctx context.Context, text string) Record {
	rec, trace := ExtractDetailed(text)
	if trace.TaxDiscarded {
		metrics.IncTaxSelfCorrection()
		telemetry.Info("extract.tax_discarded", map[string]any{"total": rec.TotalAmount.String()})
	}

	if len(rec.LineItems) == 0 && p != nil && p.Items != nil {
		if items := p.Items.Fallback(ctx, text); len(items) > 0 {
			rec.LineItems = items
			rec.LineItemSource = ItemsFromClassifier
		}
	}
	if len(rec.LineItems) > 0 {
		var labeler *Labeler
		if p != nil {
			labeler = p.Labels
		}
		rec.LineItems = labeler.Label(ctx, rec.LineItems)
	}
	return rec
}
