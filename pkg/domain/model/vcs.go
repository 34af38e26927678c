package model

// VcsStatus is the working tree state checked before any mutation.
type VcsStatus struct {
	Branch                string
	HasUncommittedChanges bool
}
