package documents

import "time"

// Document is one PDF in the live document set. ID is the path relative to the documents
// folder and doubles as the source identifier in aggregates.
type Document struct {
	ID         string    `json:"id"`
	Key        string    `json:"-"`
	SizeBytes  int64     `json:"sizeBytes"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// IDs returns the document identifiers in order.
func IDs(docs []Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}
