package llm

import (
	_ "embed"
	"fmt"
	"strings"
)

var (
	//go:embed prompts/line_items.txt
	lineItemsTemplate string
	//go:embed prompts/categories.txt
	categoriesTemplate string
)

// LineItemPrompt builds the strict line-item extraction prompt for one invoice.
func LineItemPrompt(invoiceText string) string {
	replacer := strings.NewReplacer("{{INVOICE_TEXT}}", strings.TrimSpace(invoiceText))
	return replacer.Replace(lineItemsTemplate)
}

// CategoryPrompt builds the labeling prompt for the given item descriptions.
func CategoryPrompt(descriptions []string, labels []string) string {
	var items strings.Builder
	for i, d := range descriptions {
		fmt.Fprintf(&items, "%d. %s\n", i+1, strings.TrimSpace(d))
	}
	replacer := strings.NewReplacer(
		"{{LABELS}}", strings.Join(labels, ", "),
		"{{ITEMS}}", strings.TrimRight(items.String(), "\n"),
	)
	return replacer.Replace(categoriesTemplate)
}
