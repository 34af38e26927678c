package model

// State is a step of the release state machine.
type State string

const (
	StateInit            State = "init"
	StatePreReleaseHooks State = "pre_release_hooks"
	StateVersionResolved State = "version_resolved"
	StateBuilt           State = "built"
	StateCommitted       State = "committed"
	StateTagged          State = "tagged"
	StatePublished       State = "published"
	StatePostReleaseHook State = "post_release_hooks"
	StateDone            State = "done"
	StateErrorRollback   State = "error_rollback"
	StateCancelled       State = "cancelled"
	StateFailed          State = "failed"
)

// RunResult is the terminal report of one orchestration run.
type RunResult struct {
	State      State
	Plan       *ReleasePlan
	Publish    *PublishResult
	RolledBack bool
	Actions    []Action
}

// Cancelled reports whether the operator declined a confirmation gate.
func (r *RunResult) Cancelled() bool {
	return r != nil && r.State == StateCancelled
}
