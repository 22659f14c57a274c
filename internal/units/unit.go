// Package units clusters parsed entries into correction units. A unit is all
// entries sharing one grouping key; it is the atomic item of scheduling and
// of failure tracking.
package units

import "receiptfix/internal/records"

// Unit is the set of entries sharing a grouping key.
//
// Labels and OpenRefs are distinct-value projections in first-seen order.
// The order matters: the target application's search-and-add step must be
// driven in a deterministic, reproducible sequence.
type Unit struct {
	Key     int64
	Entries []records.Entry

	// Labels holds the distinct entry labels, insertion order preserved.
	Labels []string

	// OpenRefs holds the distinct invoice references drawn only from entries
	// that still need correction. Settled entries never appear here.
	OpenRefs []int64

	// RawLines holds the original feed lines, for ledger replay.
	RawLines []string
}

// EntryCount returns the number of entries, the workload proxy used by the
// partitioner's bin packing.
func (u *Unit) EntryCount() int { return len(u.Entries) }

// Refs returns the distinct invoice references touched by any entry in the
// unit, regardless of status, in first-seen order. This is the affinity set
// used to keep partition groups disjoint.
func (u *Unit) Refs() []int64 {
	seen := make(map[int64]struct{}, len(u.Entries))
	var refs []int64
	for _, e := range u.Entries {
		if _, ok := seen[e.RefB]; ok {
			continue
		}
		seen[e.RefB] = struct{}{}
		refs = append(refs, e.RefB)
	}
	return refs
}

// Group clusters entries into units. Unit order follows the first appearance
// of each grouping key in the feed.
func Group(entries []records.Entry) []*Unit {
	byKey := make(map[int64]*Unit)
	var out []*Unit

	for _, e := range entries {
		u, ok := byKey[e.Key]
		if !ok {
			u = &Unit{Key: e.Key}
			byKey[e.Key] = u
			out = append(out, u)
		}
		u.Entries = append(u.Entries, e)
		u.RawLines = append(u.RawLines, e.Raw)
	}

	for _, u := range out {
		labelSeen := make(map[string]struct{})
		refSeen := make(map[int64]struct{})
		for _, e := range u.Entries {
			if _, ok := labelSeen[e.Label]; !ok {
				labelSeen[e.Label] = struct{}{}
				u.Labels = append(u.Labels, e.Label)
			}
			if !e.NeedsCorrection() {
				continue
			}
			if _, ok := refSeen[e.RefB]; !ok {
				refSeen[e.RefB] = struct{}{}
				u.OpenRefs = append(u.OpenRefs, e.RefB)
			}
		}
	}
	return out
}
