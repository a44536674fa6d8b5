package privacy

// ApplyKAnonymity partitions records by key and drops every group whose
// cardinality is below k. Surviving records keep their input order. Returns
// the kept records and the number of suppressed groups.
func ApplyKAnonymity[T any](records []T, key func(T) string, k int) ([]T, int) {
	if k <= 1 || len(records) == 0 {
		return records, 0
	}

	counts := make(map[string]int)
	for _, r := range records {
		counts[key(r)]++
	}

	kept := make([]T, 0, len(records))
	suppressed := make(map[string]struct{})
	for _, r := range records {
		g := key(r)
		if counts[g] >= k {
			kept = append(kept, r)
		} else {
			suppressed[g] = struct{}{}
		}
	}

	return kept, len(suppressed)
}
