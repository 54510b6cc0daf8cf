package util

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// SetFingerprint returns a stable SHA-256 hex digest of a set of identifiers. Order and
// duplicates do not affect the result.
func SetFingerprint(ids []string) string {
	uniq := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for id := range uniq {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}
