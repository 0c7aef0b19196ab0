package shopping

import (
	"sort"
	"strings"
)

// GroupingAssignment maps item ids to the canonical names assigned by the
// grouping oracle, together with the fingerprint of the item texts it was
// computed against. It is valid only while the live fingerprint matches.
type GroupingAssignment struct {
	Names       map[string]string `json:"names"` // itemId -> canonicalName
	Fingerprint string            `json:"fingerprint"`
}

// normalize lowercases and trims an item text for grouping and fingerprint
// purposes.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Fingerprint reduces an item collection to a content hash of its texts.
// It is insensitive to item order and to which meal an item belongs, so
// moving the same text between meals does not invalidate a cached
// assignment; adding, removing, or editing any text does.
func Fingerprint(items []SourceItem) string {
	texts := make([]string, 0, len(items))
	for _, item := range items {
		texts = append(texts, normalize(item.Text))
	}
	sort.Strings(texts)
	return strings.Join(texts, "|")
}
