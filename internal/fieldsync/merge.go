// Package fieldsync reconciles the locally learned field mapping with its remote peer
// using last-write-wins on each entry's updatedAt.
package fieldsync

import "github.com/jonathan/apply-agent/internal/types"

// Merge returns the union of local and remote. For keys on both sides the entry
// with the larger UpdatedAt survives; on an exact tie the remote entry wins.
// Neither input is modified.
func Merge(local, remote types.LearnedFields) types.LearnedFields {
	out := make(types.LearnedFields, len(local)+len(remote))
	for k, v := range local {
		out[k] = v
	}
	for k, r := range remote {
		if l, ok := out[k]; ok && l.UpdatedAt > r.UpdatedAt {
			continue
		}
		out[k] = r
	}
	return out
}

// Summary counts how a merge changed a mapping.
type Summary struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Changed reports whether anything was added or updated.
func (s Summary) Changed() bool {
	return s.Added > 0 || s.Updated > 0
}

// Summarize compares a mapping before and after a merge.
func Summarize(before, after types.LearnedFields) Summary {
	var s Summary
	for k, a := range after {
		b, ok := before[k]
		switch {
		case !ok:
			s.Added++
		case b != a:
			s.Updated++
		default:
			s.Unchanged++
		}
	}
	return s
}
