package llm

import (
	"context"
	"errors"
)

// Completer is the text-classification service: one prompt in, raw model text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrUnavailable reports that the classifier could not answer in time or at all.
var ErrUnavailable = errors.New("classifier unavailable")

// Purposes used to tag classifier calls in logs and metrics.
const (
	PurposeLineItems  = "line_items"
	PurposeCategories = "categories"
)

type purposeKey struct{}

// WithPurpose tags ctx with the reason for a classifier call.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFromContext returns the purpose set by WithPurpose, or "unknown".
func PurposeFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(purposeKey{}).(string); ok && p != "" {
		return p
	}
	return "unknown"
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
