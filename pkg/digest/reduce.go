package digest

import (
	"sort"

	"ai-digest-bot/pkg/store"
)

// Reduce drops invalid records, collapses duplicates by composite key
// (first occurrence wins), orders by timestamp descending and keeps the
// first limit records. Records without a timestamp sort as oldest; ties
// keep ingestion order. The input slice is not modified.
func Reduce(records []store.NormalizedRecord, limit int) []store.NormalizedRecord {
	if limit <= 0 {
		return []store.NormalizedRecord{}
	}

	seen := make(map[string]struct{}, len(records))
	out := make([]store.NormalizedRecord, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		key := r.CompositeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortTime().After(out[j].SortTime())
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ExcludeSeen removes records whose composite key is in seen.
func ExcludeSeen(records []store.NormalizedRecord, seen []string) []store.NormalizedRecord {
	if len(seen) == 0 {
		return records
	}
	skip := make(map[string]struct{}, len(seen))
	for _, k := range seen {
		skip[k] = struct{}{}
	}
	out := make([]store.NormalizedRecord, 0, len(records))
	for _, r := range records {
		if _, ok := skip[r.CompositeKey()]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}
