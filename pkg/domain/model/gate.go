package model

// Gate identifies a confirmation point where the run blocks for a decision.
// Declining any gate before a mutation is a clean cancellation.
type Gate string

const (
	GateBranch   Gate = "branch"
	GateDirty    Gate = "dirty"
	GateProceed  Gate = "proceed"
	GateRollback Gate = "rollback"
)
