package drain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"receiptfix/internal/target"
	"receiptfix/internal/units"
	"receiptfix/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// drainApp scripts the pending-list surface of the application driver.
type drainApp struct {
	lists   [][]target.PendingItem // successive fetch results; last repeats
	idx     int
	fetches int

	closed     bool   // ItemClosed result
	notifyText string // reported when the item does not close

	calls []string
}

func (f *drainApp) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *drainApp) FetchPendingList(context.Context) ([]target.PendingItem, error) {
	f.fetches++
	if len(f.lists) == 0 {
		return nil, nil
	}
	items := f.lists[f.idx]
	if f.idx < len(f.lists)-1 {
		f.idx++
	}
	return items, nil
}

func (f *drainApp) OpenListItem(_ context.Context, item target.PendingItem) error {
	f.record("open %s", item.ID)
	return nil
}

func (f *drainApp) ItemClosed(context.Context) (bool, error) { return f.closed, nil }

func (f *drainApp) RemoveAllReferences(context.Context) error {
	f.record("remove refs")
	return nil
}

func (f *drainApp) SearchAndAddReference(_ context.Context, label string) error {
	f.record("add %s", label)
	return nil
}

func (f *drainApp) Submit(context.Context) error {
	f.record("submit")
	return nil
}

func (f *drainApp) DetectNotification(context.Context) (string, bool, error) {
	if f.notifyText == "" {
		return "", false, nil
	}
	return f.notifyText, true, nil
}

func (f *drainApp) DismissNotification(context.Context) error {
	f.record("dismiss")
	return nil
}

// Unused surface of the interface.
func (f *drainApp) OpenByKey(context.Context, int64) error                  { return nil }
func (f *drainApp) ReadField(context.Context, string) (string, error)       { return "", nil }
func (f *drainApp) SelectFromFilteredList(context.Context, string, string) error { return nil }
func (f *drainApp) ToggleOption(context.Context, string) error              { return nil }
func (f *drainApp) FillField(context.Context, string, string) error         { return nil }
func (f *drainApp) ReadStatusField(context.Context, string) (string, error) { return "", nil }
func (f *drainApp) CancelAndConfirm(context.Context) error {
	f.record("cancel")
	return nil
}

type captureLedger struct {
	keys    []int64
	reasons []string
}

func (c *captureLedger) Record(u *units.Unit, reason string) error {
	c.keys = append(c.keys, u.Key)
	c.reasons = append(c.reasons, reason)
	return nil
}

func item(id string) target.PendingItem { return target.PendingItem{ID: id} }

func testCfg() Config {
	return Config{
		MaxIterations:  100,
		StallThreshold: 3,
		SubmitPoll:     time.Millisecond,
		SubmitDeadline: 20 * time.Millisecond,
	}
}

func TestRun_DrainsToEmpty(t *testing.T) {
	app := &drainApp{
		closed: true,
		lists: [][]target.PendingItem{
			{item("b"), item("a")}, // newest first, tail "a" is oldest
			{item("b")},
			{},
		},
	}
	led := &captureLedger{}
	loop := NewLoop(app, workflow.NewClassifier(nil), led, zaptest.NewLogger(t).Sugar(), testCfg())

	queue := []*units.Unit{
		{Key: 10, Labels: []string{"A", "B"}},
		{Key: 20, Labels: []string{"C"}},
	}
	res, err := loop.Run(context.Background(), queue)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Submitted)
	assert.False(t, res.Stalled)
	assert.Zero(t, res.Leftover)
	assert.Empty(t, led.keys)

	assert.Equal(t, []string{
		"open a", // oldest item first
		"remove refs",
		"add A",
		"add B",
		"submit",
		"open b",
		"remove refs",
		"add C",
		"submit",
	}, app.calls)
}

func TestRun_StallAbortsAfterThirdUnchangedObservation(t *testing.T) {
	five := []target.PendingItem{item("e"), item("d"), item("c"), item("b"), item("a")}
	app := &drainApp{
		closed: true,
		lists:  [][]target.PendingItem{five}, // size never decreases
	}
	loop := NewLoop(app, workflow.NewClassifier(nil), &captureLedger{}, zaptest.NewLogger(t).Sugar(), testCfg())

	res, err := loop.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, res.Stalled)
	// Baseline fetch + three unchanged observations + the post-loop fetch.
	assert.Equal(t, 5, app.fetches)
	assert.Equal(t, 3, res.Submitted, "items before the abort are still processed")
	assert.Equal(t, 5, res.Leftover)
}

func TestRun_CarryOverSubmittedUnchanged(t *testing.T) {
	app := &drainApp{
		closed: true,
		lists: [][]target.PendingItem{
			{item("x")},
			{},
		},
	}
	loop := NewLoop(app, workflow.NewClassifier(nil), &captureLedger{}, zaptest.NewLogger(t).Sugar(), testCfg())

	res, err := loop.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Submitted)
	assert.Equal(t, []string{"open x", "submit"}, app.calls,
		"carry-over items keep their references untouched")
}

func TestRun_FatalNotificationLedgersWithoutCancel(t *testing.T) {
	app := &drainApp{
		notifyText: "Operation not allowed on this resource",
		lists: [][]target.PendingItem{
			{item("x")},
			{},
		},
	}
	led := &captureLedger{}
	loop := NewLoop(app, workflow.NewClassifier(nil), led, zaptest.NewLogger(t).Sugar(), testCfg())

	res, err := loop.Run(context.Background(), []*units.Unit{{Key: 77, Labels: []string{"A"}}})
	require.NoError(t, err)

	assert.Zero(t, res.Submitted)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, workflow.StateFailed, res.Outcomes[0].State)
	require.Equal(t, []int64{77}, led.keys)
	assert.Contains(t, led.reasons[0], "not allowed")
	assert.NotContains(t, app.calls, "cancel", "drain never cancels a row")
	assert.NotContains(t, app.calls, "dismiss")
}

func TestRun_InformationalNotificationCountsAsSubmitted(t *testing.T) {
	app := &drainApp{
		notifyText: "saved with remarks",
		lists: [][]target.PendingItem{
			{item("x")},
			{},
		},
	}
	led := &captureLedger{}
	loop := NewLoop(app, workflow.NewClassifier(nil), led, zaptest.NewLogger(t).Sugar(), testCfg())

	res, err := loop.Run(context.Background(), []*units.Unit{{Key: 5, Labels: []string{"A"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Submitted)
	assert.Empty(t, led.keys)
	assert.Contains(t, app.calls, "dismiss")
}

func TestRun_ReportsLeftover(t *testing.T) {
	app := &drainApp{
		closed: true,
		lists: [][]target.PendingItem{
			{item("y"), item("x")},
			{item("y")}, // shrink once, then the loop's bound kicks in
		},
	}
	cfg := testCfg()
	cfg.MaxIterations = 2
	loop := NewLoop(app, workflow.NewClassifier(nil), &captureLedger{}, zaptest.NewLogger(t).Sugar(), cfg)

	res, err := loop.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Leftover, "post-loop fetch reports what remains")
}
