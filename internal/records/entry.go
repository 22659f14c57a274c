// Package records parses the raw tab-separated correction feed into typed
// entries. One line is one record; field positions are fixed.
package records

// Status tags a record's correction state. The closed set is small on
// purpose: an unknown tag in the feed is a parse defect, not a new state.
type Status string

const (
	// StatusOpen marks a record that still needs correction. It is the
	// default when the trailing status column is absent or empty.
	StatusOpen Status = "open"

	// StatusSettled marks a record already resolved upstream. Settled
	// records never contribute their invoice reference to the remote job.
	StatusSettled Status = "settled"
)

// Entry is one raw correction record, immutable once parsed.
type Entry struct {
	RefA   int64   // resource reference A
	RefB   int64   // resource reference B, the invoice-like index
	Label  string  // search label for the target application
	Key    int64   // grouping key, the receipt-like index
	Delta  float64 // correction amount
	Status Status

	// Raw is the original line, kept for ledger replay and partition emit.
	Raw string
	// Line is the 1-based line number in the source feed.
	Line int
}

// NeedsCorrection reports whether the entry's invoice reference qualifies
// for the remote-job parameter.
func (e Entry) NeedsCorrection() bool { return e.Status == StatusOpen }
