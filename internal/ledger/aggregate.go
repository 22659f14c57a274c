package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Two header formats exist across historical runs:
//
//	# 55001 — reason text        (current)
//	55001 reason text            (legacy, bare-number prefix)
//
// Both are normalized here and nowhere else. Raw tab-separated feed lines are
// interleaved with headers and must be skipped, as must the blank separators.

// Aggregate scans every ledger file under dir and returns the numerically
// sorted, deduplicated set of blocked grouping keys appearing in either
// header format. It is idempotent over any mix of runs.
func Aggregate(dir string) ([]int64, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return nil, fmt.Errorf("scan ledger dir: %w", err)
	}

	seen := make(map[int64]struct{})
	for _, path := range paths {
		if err := aggregateFile(path, seen); err != nil {
			return nil, err
		}
	}

	keys := make([]int64, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func aggregateFile(path string, seen map[int64]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if key, ok := headerKey(sc.Text()); ok {
			seen[key] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read ledger %s: %w", path, err)
	}
	return nil
}

// headerKey extracts the grouping key if line is a header in either format.
func headerKey(line string) (int64, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.ContainsRune(line, '\t') {
		// Blank separator or a replayed raw feed line.
		return 0, false
	}

	if rest, ok := strings.CutPrefix(line, "#"); ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return 0, false
		}
		key, err := strconv.ParseInt(fields[0], 10, 64)
		return key, err == nil
	}

	// Legacy format: a bare number leads the line.
	fields := strings.Fields(line)
	key, err := strconv.ParseInt(fields[0], 10, 64)
	return key, err == nil
}

// WriteKeys writes one key per line, the exclusion-list format consumed by
// later runs.
func WriteKeys(path string, keys []int64) error {
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%d\n", k)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write exclusion list: %w", err)
	}
	return nil
}

// LoadExclusions reads an exclusion list: one grouping key per line, blank
// lines and #-comments ignored. A missing file means no exclusions.
func LoadExclusions(path string) (map[int64]struct{}, error) {
	keys := make(map[int64]struct{})
	if path == "" {
		return keys, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, fmt.Errorf("open exclusion list: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("exclusion list line %d: %q is not a grouping key", line, text)
		}
		keys[key] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read exclusion list: %w", err)
	}
	return keys, nil
}
