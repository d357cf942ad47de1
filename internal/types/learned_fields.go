package types

import (
	"sort"
	"strings"
)

// LearnedFieldEntry is a previously resolved answer for a form field signature.
type LearnedFieldEntry struct {
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Portal    string `json:"portal,omitempty"`
	UpdatedAt int64  `json:"updatedAt"` // unix milliseconds
}

// LearnedFields maps a field signature to its learned entry.
type LearnedFields map[string]LearnedFieldEntry

// Keys returns the field signatures in sorted order.
func (lf LearnedFields) Keys() []string {
	keys := make([]string, 0, len(lf))
	for k := range lf {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy; entries are values so the copy is independent.
func (lf LearnedFields) Clone() LearnedFields {
	out := make(LearnedFields, len(lf))
	for k, v := range lf {
		out[k] = v
	}
	return out
}

// Equal reports whether both mappings hold identical entries under identical keys.
func (lf LearnedFields) Equal(other LearnedFields) bool {
	if len(lf) != len(other) {
		return false
	}
	for k, v := range lf {
		o, ok := other[k]
		if !ok || o != v {
			return false
		}
	}
	return true
}

// FieldSignature builds the mapping key for a field from its label and input type.
// Labels are lower-cased and whitespace-collapsed so cosmetic differences map to one entry.
func FieldSignature(label, fieldType string) string {
	label = strings.Join(strings.Fields(strings.ToLower(label)), " ")
	fieldType = strings.ToLower(strings.TrimSpace(fieldType))
	if fieldType == "" {
		fieldType = "text"
	}
	return fieldType + ":" + label
}
