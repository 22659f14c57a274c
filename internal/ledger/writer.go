// Package ledger is the append-only record of units that hit an
// unrecoverable condition. One physical log per run; a separate aggregation
// step merges the logs of many runs into an exclusion list for later runs.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"receiptfix/internal/units"
)

// Writer appends failure records to one run-scoped file. Records are never
// mutated. The mutex upholds the single-writer guarantee when partition
// groups run in parallel against a shared writer.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewWriter creates the run's ledger file under dir, named with a timestamp
// and a short run id so concurrent group runs never collide.
func NewWriter(dir, runID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	short := runID
	if short == "" {
		short = uuid.NewString()
	}
	if len(short) > 8 {
		short = short[:8]
	}
	path := filepath.Join(dir, fmt.Sprintf("ledger-%s-%s.log",
		time.Now().Format("20060102-150405"), short))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	return &Writer{f: f, path: path}, nil
}

// Path returns the ledger file's location.
func (w *Writer) Path() string { return w.path }

// Record appends one failure: a header carrying the grouping key and reason,
// the unit's original feed lines, and a blank separator.
func (w *Writer) Record(u *units.Unit, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "# %d — %s\n", u.Key, strings.ReplaceAll(reason, "\n", " "))
	for _, line := range u.RawLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := w.f.WriteString(b.String()); err != nil {
		return fmt.Errorf("append ledger record for %d: %w", u.Key, err)
	}
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
