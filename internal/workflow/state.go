// Package workflow runs the per-unit correction phase against the target
// application and owns the notification classifier shared with the drain
// loop.
package workflow

// State is a unit's position in the correction lifecycle. States are
// ephemeral, held in memory for the run.
//
// The correction phase drives Pending through Corrected or Blocked; the
// drain loop drives Corrected through Reconciled to Submitted or Failed; the
// job trigger marks JobTriggered and Completed at batch granularity.
type State string

const (
	StatePending      State = "pending"
	StateOpened       State = "opened"
	StateCorrected    State = "corrected"
	StateBlocked      State = "blocked"
	StateReconciled   State = "reconciled"
	StateSubmitted    State = "submitted"
	StateJobTriggered State = "job_triggered"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Terminal reports whether no further phase will move the unit.
func (s State) Terminal() bool {
	return s == StateBlocked || s == StateCompleted || s == StateFailed
}
