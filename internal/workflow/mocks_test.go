package workflow

import (
	"context"
	"fmt"

	"receiptfix/internal/target"
	"receiptfix/internal/units"
)

// fakeApp scripts the target-application driver. Every call is appended to
// calls so tests can assert ordering.
type fakeApp struct {
	calls []string

	fields map[string]string // ReadField responses

	// statusValues feeds ReadStatusField; the last value repeats once the
	// script is exhausted.
	statusValues []string
	statusIdx    int

	// notifyText, when non-empty, is reported by DetectNotification.
	notifyText string
}

func (f *fakeApp) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeApp) OpenByKey(_ context.Context, key int64) error {
	f.record("open %d", key)
	return nil
}

func (f *fakeApp) ReadField(_ context.Context, field string) (string, error) {
	f.record("read %s", field)
	return f.fields[field], nil
}

func (f *fakeApp) SelectFromFilteredList(_ context.Context, field, value string) error {
	f.record("select %s=%s", field, value)
	return nil
}

func (f *fakeApp) ToggleOption(_ context.Context, option string) error {
	f.record("toggle %s", option)
	return nil
}

func (f *fakeApp) FillField(_ context.Context, field, value string) error {
	f.record("fill %s=%s", field, value)
	return nil
}

func (f *fakeApp) Submit(_ context.Context) error {
	f.record("submit")
	return nil
}

func (f *fakeApp) ReadStatusField(_ context.Context, field string) (string, error) {
	if len(f.statusValues) == 0 {
		return "", nil
	}
	v := f.statusValues[f.statusIdx]
	if f.statusIdx < len(f.statusValues)-1 {
		f.statusIdx++
	}
	return v, nil
}

func (f *fakeApp) DetectNotification(_ context.Context) (string, bool, error) {
	if f.notifyText == "" {
		return "", false, nil
	}
	return f.notifyText, true, nil
}

func (f *fakeApp) DismissNotification(_ context.Context) error {
	f.record("dismiss")
	return nil
}

func (f *fakeApp) CancelAndConfirm(_ context.Context) error {
	f.record("cancel")
	return nil
}

func (f *fakeApp) FetchPendingList(_ context.Context) ([]target.PendingItem, error) {
	return nil, nil
}

func (f *fakeApp) OpenListItem(_ context.Context, item target.PendingItem) error {
	f.record("open item %s", item.ID)
	return nil
}

func (f *fakeApp) ItemClosed(_ context.Context) (bool, error) { return true, nil }

func (f *fakeApp) RemoveAllReferences(_ context.Context) error {
	f.record("remove refs")
	return nil
}

func (f *fakeApp) SearchAndAddReference(_ context.Context, label string) error {
	f.record("add ref %s", label)
	return nil
}

// fakeLedger captures recorded failures.
type fakeLedger struct {
	keys    []int64
	reasons []string
}

func (f *fakeLedger) Record(u *units.Unit, reason string) error {
	f.keys = append(f.keys, u.Key)
	f.reasons = append(f.reasons, reason)
	return nil
}
