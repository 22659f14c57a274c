// Package target declares the boundary to the two external systems: the
// line-of-business application and the job-execution service. The
// orchestration core consumes only these interfaces; the browser package
// provides the production implementations, tests supply fakes.
//
// Every call blocks until the external system acknowledges or the context's
// deadline converts it into a timeout failure.
package target

import "context"

// PendingItem identifies one row in the application's pending-work list.
// The list is newest-first; its tail is the oldest pending item.
type PendingItem struct {
	ID    string
	Title string
}

// AppDriver drives the target application session.
type AppDriver interface {
	// OpenByKey opens the representation of a unit by its grouping key.
	OpenByKey(ctx context.Context, key int64) error

	// ReadField reads a descriptive field from the opened representation.
	ReadField(ctx context.Context, field string) (string, error)

	// SelectFromFilteredList picks value from the filtered selector named by
	// field in the correction dialog.
	SelectFromFilteredList(ctx context.Context, field, value string) error

	// ToggleOption enables the named option. Callers own the ordering; some
	// options only become togglable after another is enabled.
	ToggleOption(ctx context.Context, option string) error

	// FillField writes value into the named input.
	FillField(ctx context.Context, field, value string) error

	// Submit confirms the current dialog or item.
	Submit(ctx context.Context) error

	// ReadStatusField reads the designated index field used to detect that a
	// submit has taken effect.
	ReadStatusField(ctx context.Context, field string) (string, error)

	// DetectNotification reports any transient notification currently shown,
	// without dismissing it.
	DetectNotification(ctx context.Context) (text string, present bool, err error)

	// DismissNotification closes the current notification.
	DismissNotification(ctx context.Context) error

	// CancelAndConfirm abandons the opened representation, answering the
	// confirmation prompt.
	CancelAndConfirm(ctx context.Context) error

	// FetchPendingList returns the remote pending-work list, newest first.
	FetchPendingList(ctx context.Context) ([]PendingItem, error)

	// OpenListItem opens one pending-work row.
	OpenListItem(ctx context.Context, item PendingItem) error

	// ItemClosed reports whether the opened item's representation has closed,
	// the success signal after a pending-item submit.
	ItemClosed(ctx context.Context) (bool, error)

	// RemoveAllReferences detaches every invoice reference currently attached
	// to the opened item.
	RemoveAllReferences(ctx context.Context) error

	// SearchAndAddReference attaches one invoice reference found by label
	// search.
	SearchAndAddReference(ctx context.Context, label string) error
}

// JobDriver drives the job-execution service session.
type JobDriver interface {
	// OpenJobSurface navigates to the job-launch surface.
	OpenJobSurface(ctx context.Context) error

	// StartWithParameter submits the start action with the aggregated
	// invoice-reference parameter.
	StartWithParameter(ctx context.Context, param string) error

	// RefreshStatus issues a refresh action on the status surface.
	RefreshStatus(ctx context.Context) error

	// ReadStatus reads the current job status display.
	ReadStatus(ctx context.Context) (string, error)
}
