// Package partition splits the unit population into disjoint work streams.
// Two units land in the same stream whenever they touch a common invoice
// reference, so no two streams' remote-job invocations can contend for a
// reference.
package partition

import (
	"fmt"
	"sort"

	"receiptfix/internal/faults"
	"receiptfix/internal/units"
)

// Group is one disjoint subset of units.
type Group struct {
	Index int
	Units []*units.Unit
}

// EntryCount returns the group's total entry count, the load measure used
// when packing components into groups.
func (g *Group) EntryCount() int {
	n := 0
	for _, u := range g.Units {
		n += u.EntryCount()
	}
	return n
}

// Keys returns the set of grouping keys in the group.
func (g *Group) Keys() map[int64]struct{} {
	keys := make(map[int64]struct{}, len(g.Units))
	for _, u := range g.Units {
		keys[u.Key] = struct{}{}
	}
	return keys
}

// Refs returns the set of invoice references touched by any unit in the group.
func (g *Group) Refs() map[int64]struct{} {
	refs := make(map[int64]struct{})
	for _, u := range g.Units {
		for _, r := range u.Refs() {
			refs[r] = struct{}{}
		}
	}
	return refs
}

// component is a connected cluster of units in the unit/reference affinity
// graph, the indivisible grain of partitioning.
type component struct {
	units   []*units.Unit
	entries int
}

// Split partitions us into k disjoint groups. Connected components of the
// affinity graph are computed with union-find, sorted by descending entry
// count, and packed first-fit-decreasing onto the least-loaded group. The
// result is verified before it is returned; a verification failure is a
// fatal configuration error.
func Split(us []*units.Unit, k int) ([]*Group, error) {
	if k < 1 {
		return nil, fmt.Errorf("group count %d: %w", k, faults.ErrInvalidConfiguration)
	}

	uf := newUnionFind(len(us))
	refOwner := make(map[int64]int) // ref -> first unit index that touched it
	for i, u := range us {
		for _, r := range u.Refs() {
			if j, ok := refOwner[r]; ok {
				uf.union(i, j)
			} else {
				refOwner[r] = i
			}
		}
	}

	byRoot := make(map[int]*component)
	var comps []*component
	for i, u := range us {
		root := uf.find(i)
		c, ok := byRoot[root]
		if !ok {
			c = &component{}
			byRoot[root] = c
			comps = append(comps, c)
		}
		c.units = append(c.units, u)
		c.entries += u.EntryCount()
	}

	// Largest components first; ties keep discovery order for determinism.
	sort.SliceStable(comps, func(a, b int) bool {
		return comps[a].entries > comps[b].entries
	})

	groups := make([]*Group, k)
	for i := range groups {
		groups[i] = &Group{Index: i}
	}
	loads := make([]int, k)
	for _, c := range comps {
		target := 0
		for i := 1; i < k; i++ {
			if loads[i] < loads[target] {
				target = i
			}
		}
		groups[target].Units = append(groups[target].Units, c.units...)
		loads[target] += c.entries
	}

	if err := Verify(groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Verify checks pairwise disjointness of both the unit sets and the touched
// reference sets, by direct intersection. A violation means the affinity
// graph or the packing step is broken.
func Verify(groups []*Group) error {
	for a := 0; a < len(groups); a++ {
		keysA, refsA := groups[a].Keys(), groups[a].Refs()
		for b := a + 1; b < len(groups); b++ {
			for key := range groups[b].Keys() {
				if _, ok := keysA[key]; ok {
					return fmt.Errorf("unit %d in groups %d and %d: %w",
						key, groups[a].Index, groups[b].Index, faults.ErrPartitionInvariant)
				}
			}
			for ref := range groups[b].Refs() {
				if _, ok := refsA[ref]; ok {
					return fmt.Errorf("reference %d in groups %d and %d: %w",
						ref, groups[a].Index, groups[b].Index, faults.ErrPartitionInvariant)
				}
			}
		}
	}
	return nil
}
