package partition

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptfix/internal/faults"
	"receiptfix/internal/records"
	"receiptfix/internal/units"
)

// feed builds a parsed feed where each line is "refA refB label _ key delta".
func feed(t *testing.T, lines ...string) ([]records.Entry, []*units.Unit) {
	t.Helper()
	entries, err := records.Parse(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return entries, units.Group(entries)
}

func TestSplit_DisjointAndComplete(t *testing.T) {
	// Units 10 and 20 share ref 900; unit 30 shares 902 with 40; 50 is alone.
	_, us := feed(t,
		"1\t900\tA\tx\t10\t1.0",
		"2\t900\tB\tx\t20\t1.0",
		"3\t901\tC\tx\t20\t1.0",
		"4\t902\tD\tx\t30\t1.0",
		"5\t902\tE\tx\t40\t1.0",
		"6\t903\tF\tx\t50\t1.0",
	)

	for k := 1; k <= 4; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			groups, err := Split(us, k)
			require.NoError(t, err)
			require.Len(t, groups, k)

			// Every unit lands in exactly one group.
			seen := make(map[int64]int)
			for _, g := range groups {
				for _, u := range g.Units {
					seen[u.Key]++
				}
			}
			require.Len(t, seen, len(us))
			for key, n := range seen {
				assert.Equal(t, 1, n, "unit %d assigned %d times", key, n)
			}

			// The union of refs over all groups equals the input's refs.
			want := make(map[int64]struct{})
			for _, u := range us {
				for _, r := range u.Refs() {
					want[r] = struct{}{}
				}
			}
			got := make(map[int64]struct{})
			for _, g := range groups {
				for r := range g.Refs() {
					_, dup := got[r]
					assert.False(t, dup, "ref %d in two groups", r)
					got[r] = struct{}{}
				}
			}
			assert.Empty(t, cmp.Diff(want, got))
		})
	}
}

func TestSplit_ConnectedUnitsStayTogether(t *testing.T) {
	// A chain: 10-20 share 900, 20-30 share 901. All three must land together.
	_, us := feed(t,
		"1\t900\tA\tx\t10\t1.0",
		"2\t900\tB\tx\t20\t1.0",
		"3\t901\tC\tx\t20\t1.0",
		"4\t901\tD\tx\t30\t1.0",
		"5\t950\tE\tx\t40\t1.0",
	)

	groups, err := Split(us, 2)
	require.NoError(t, err)

	var chainGroup = -1
	for _, g := range groups {
		keys := g.Keys()
		_, has10 := keys[10]
		_, has20 := keys[20]
		_, has30 := keys[30]
		if has10 || has20 || has30 {
			require.True(t, has10 && has20 && has30, "chain split across groups")
			chainGroup = g.Index
		}
	}
	require.NotEqual(t, -1, chainGroup)
}

func TestSplit_BalanceBound(t *testing.T) {
	// Independent components of sizes 5,4,3,2,1 entries (unique refs/keys).
	var lines []string
	line := 0
	for comp, size := range []int{5, 4, 3, 2, 1} {
		for i := 0; i < size; i++ {
			line++
			lines = append(lines, fmt.Sprintf("%d\t%d\tL%d\tx\t%d\t1.0",
				line, 1000+line, comp, 100+comp))
		}
	}
	_, us := feed(t, lines...)

	groups, err := Split(us, 2)
	require.NoError(t, err)

	largest := 5 // largest single component
	minLoad, maxLoad := groups[0].EntryCount(), groups[0].EntryCount()
	for _, g := range groups[1:] {
		if n := g.EntryCount(); n < minLoad {
			minLoad = n
		} else if n > maxLoad {
			maxLoad = n
		}
	}
	assert.LessOrEqual(t, maxLoad-minLoad, largest, "first-fit-decreasing bound violated")
}

func TestSplit_InvalidGroupCount(t *testing.T) {
	_, us := feed(t, "1\t900\tA\tx\t10\t1.0")
	_, err := Split(us, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrInvalidConfiguration))
}

func TestVerify_RejectsOverlap(t *testing.T) {
	_, us := feed(t,
		"1\t900\tA\tx\t10\t1.0",
		"2\t901\tB\tx\t20\t1.0",
	)

	t.Run("shared unit", func(t *testing.T) {
		groups := []*Group{
			{Index: 0, Units: []*units.Unit{us[0]}},
			{Index: 1, Units: []*units.Unit{us[0], us[1]}},
		}
		err := Verify(groups)
		require.Error(t, err)
		assert.True(t, errors.Is(err, faults.ErrPartitionInvariant))
		assert.True(t, faults.Fatal(err))
	})

	t.Run("shared ref", func(t *testing.T) {
		_, other := feed(t, "3\t900\tC\tx\t30\t1.0")
		groups := []*Group{
			{Index: 0, Units: []*units.Unit{us[0]}},
			{Index: 1, Units: []*units.Unit{other[0]}},
		}
		err := Verify(groups)
		require.Error(t, err)
		assert.True(t, errors.Is(err, faults.ErrPartitionInvariant))
	})
}

func TestWriteGroups_ReparseableInOrder(t *testing.T) {
	entries, us := feed(t,
		"1\t900\tA\tx\t10\t1.0",
		"2\t901\tB\tx\t20\t1.0",
		"3\t900\tC\tx\t10\t2.0",
		"4\t902\tD\tx\t30\t1.0",
	)

	groups, err := Split(us, 2)
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := WriteGroups(dir, entries, groups)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	var total int
	for i, path := range paths {
		got, err := records.ParseFile(path)
		require.NoError(t, err)
		total += len(got)

		// Every reparsed entry belongs to this group, in original feed order.
		keys := groups[i].Keys()
		var want []string
		for _, e := range entries {
			if _, ok := keys[e.Key]; ok {
				want = append(want, e.Raw)
			}
		}
		var raws []string
		for _, e := range got {
			_, ok := keys[e.Key]
			assert.True(t, ok, "entry with key %d leaked into group %d", e.Key, i)
			raws = append(raws, e.Raw)
		}
		assert.Empty(t, cmp.Diff(want, raws))
	}
	assert.Equal(t, len(entries), total)
}
