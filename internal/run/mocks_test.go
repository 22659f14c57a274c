package run

import (
	"context"
	"fmt"

	"receiptfix/internal/target"
	"receiptfix/internal/units"
	"receiptfix/internal/workflow"
)

// e2eApp emulates the target application across both phases: units corrected
// in phase 1 become pending-work items (newest first) that the drain later
// consumes.
type e2eApp struct {
	fatal map[int64]struct{} // units whose submit raises the blocking notification

	currentKey int64
	itemMode   bool
	opened     target.PendingItem
	pending    []target.PendingItem
}

func newE2EApp(fatalKeys ...int64) *e2eApp {
	f := &e2eApp{fatal: make(map[int64]struct{})}
	for _, k := range fatalKeys {
		f.fatal[k] = struct{}{}
	}
	return f
}

func (f *e2eApp) isFatal() bool {
	_, ok := f.fatal[f.currentKey]
	return ok
}

func (f *e2eApp) OpenByKey(_ context.Context, key int64) error {
	f.currentKey = key
	f.itemMode = false
	return nil
}

func (f *e2eApp) ReadField(_ context.Context, field string) (string, error) {
	return "INV-" + field, nil
}

func (f *e2eApp) SelectFromFilteredList(context.Context, string, string) error { return nil }
func (f *e2eApp) ToggleOption(context.Context, string) error                   { return nil }
func (f *e2eApp) FillField(context.Context, string, string) error              { return nil }

func (f *e2eApp) Submit(context.Context) error {
	if !f.itemMode && !f.isFatal() {
		// A corrected unit surfaces as the newest pending item.
		item := target.PendingItem{ID: fmt.Sprintf("item-%d", f.currentKey)}
		f.pending = append([]target.PendingItem{item}, f.pending...)
	}
	return nil
}

func (f *e2eApp) ReadStatusField(context.Context, string) (string, error) {
	if !f.itemMode && f.isFatal() {
		return "9", nil
	}
	return "0", nil
}

func (f *e2eApp) DetectNotification(context.Context) (string, bool, error) {
	if !f.itemMode && f.isFatal() {
		return workflow.BlockingPhrase, true, nil
	}
	return "", false, nil
}

func (f *e2eApp) DismissNotification(context.Context) error { return nil }
func (f *e2eApp) CancelAndConfirm(context.Context) error    { return nil }

func (f *e2eApp) FetchPendingList(context.Context) ([]target.PendingItem, error) {
	return append([]target.PendingItem(nil), f.pending...), nil
}

func (f *e2eApp) OpenListItem(_ context.Context, item target.PendingItem) error {
	f.itemMode = true
	f.opened = item
	return nil
}

func (f *e2eApp) ItemClosed(context.Context) (bool, error) {
	kept := f.pending[:0]
	for _, it := range f.pending {
		if it.ID != f.opened.ID {
			kept = append(kept, it)
		}
	}
	f.pending = kept
	return true, nil
}

func (f *e2eApp) RemoveAllReferences(context.Context) error          { return nil }
func (f *e2eApp) SearchAndAddReference(context.Context, string) error { return nil }

// e2eJobs emulates the job service. When timeoutRuns is set, that many
// initial job runs never report completion.
type e2eJobs struct {
	params      []string
	timeoutRuns int
	runs        int
}

func (f *e2eJobs) OpenJobSurface(context.Context) error { return nil }

func (f *e2eJobs) StartWithParameter(_ context.Context, param string) error {
	f.runs++
	f.params = append(f.params, param)
	return nil
}

func (f *e2eJobs) RefreshStatus(context.Context) error { return nil }

func (f *e2eJobs) ReadStatus(context.Context) (string, error) {
	if f.runs <= f.timeoutRuns {
		return "Running", nil
	}
	return "Completed", nil
}

type memLedger struct {
	keys []int64
}

func (m *memLedger) Record(u *units.Unit, reason string) error {
	m.keys = append(m.keys, u.Key)
	return nil
}
