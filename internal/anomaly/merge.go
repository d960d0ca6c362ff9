package anomaly

import "sort"

// Merge combines an existing collection with newly fetched records,
// deduplicating on (flight_id, timestamp). New unique records are prepended
// to the existing set. Returns the merged collection and whether any
// genuinely new record arrived.
//
// Merge is pure: it never mutates either input and consults no clock.
func Merge(existing, incoming []Record) ([]Record, bool) {
	seen := make(map[Key]bool, len(existing))
	for _, rec := range existing {
		seen[rec.Key()] = true
	}

	var fresh []Record
	for _, rec := range incoming {
		k := rec.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		fresh = append(fresh, rec)
	}

	if len(fresh) == 0 {
		// Nothing new - return a copy so callers can't alias the input.
		out := make([]Record, len(existing))
		copy(out, existing)
		return out, false
	}

	merged := make([]Record, 0, len(fresh)+len(existing))
	merged = append(merged, fresh...)
	merged = append(merged, existing...)
	return merged, true
}

// SortByTimeDesc orders records newest first, in place. Ties keep their
// relative order so merge results stay deterministic regardless of arrival
// order.
func SortByTimeDesc(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
}
