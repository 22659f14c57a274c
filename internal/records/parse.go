package records

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"receiptfix/internal/faults"
)

// Fixed column layout of the source feed.
const (
	colRefA   = 0
	colRefB   = 1
	colLabel  = 2
	colKey    = 4
	colDelta  = 5
	colStatus = 6 // optional trailing column

	minColumns = 6
)

// ParseFile reads and parses the source feed at path. A missing file is a
// SourceUnavailable condition that aborts the run.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("source feed %s: %w", path, faults.ErrSourceUnavailable)
		}
		return nil, fmt.Errorf("open source feed: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads tab-separated records from r in file order. Blank lines are
// ignored; any malformed field stops the parse with a ParseError.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}
		e, err := parseLine(raw, line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read source feed: %w", err)
	}
	return entries, nil
}

func parseLine(raw string, line int) (Entry, error) {
	fields := strings.Split(raw, "\t")
	if len(fields) < minColumns {
		return Entry{}, &faults.ParseError{
			Line:   line,
			Column: len(fields),
			Value:  raw,
			Reason: fmt.Sprintf("expected at least %d tab-separated columns, got", minColumns),
		}
	}

	refA, err := parseInt(fields[colRefA], line, colRefA)
	if err != nil {
		return Entry{}, err
	}
	refB, err := parseInt(fields[colRefB], line, colRefB)
	if err != nil {
		return Entry{}, err
	}
	key, err := parseInt(fields[colKey], line, colKey)
	if err != nil {
		return Entry{}, err
	}
	delta, err := parseFloat(fields[colDelta], line, colDelta)
	if err != nil {
		return Entry{}, err
	}

	status := StatusOpen
	if len(fields) > colStatus {
		tag := strings.TrimSpace(fields[colStatus])
		switch Status(tag) {
		case "", StatusOpen:
			// default
		case StatusSettled:
			status = StatusSettled
		default:
			return Entry{}, &faults.ParseError{
				Line:   line,
				Column: colStatus,
				Value:  tag,
				Reason: "unknown status tag",
			}
		}
	}

	return Entry{
		RefA:   refA,
		RefB:   refB,
		Label:  strings.TrimSpace(fields[colLabel]),
		Key:    key,
		Delta:  delta,
		Status: status,
		Raw:    raw,
		Line:   line,
	}, nil
}

func parseInt(s string, line, col int) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, &faults.ParseError{Line: line, Column: col, Value: s, Reason: "not an integer"}
	}
	return v, nil
}

func parseFloat(s string, line, col int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &faults.ParseError{Line: line, Column: col, Value: s, Reason: "not a number"}
	}
	return v, nil
}
