package model

// ReleasePlan is built once per orchestration run and never modified after
// the operator approved it.
type ReleasePlan struct {
	CurrentVersion Version
	NextVersion    Version
	ProjectName    string
	CommitMessage  string
	ReleaseNotes   string
	DryRun         bool

	// NeedsVersionRecord is set when neither the version file nor the
	// manifest held a version and the fallback was used.
	NeedsVersionRecord bool
	Backend            string
	Branch             string
	BaseCommit         string
}

// Tag returns the release tag of the planned version.
func (p *ReleasePlan) Tag() string {
	return p.NextVersion.Tag()
}

// DefaultCommitMessage is the commit message used when the operator does not
// supply one.
func DefaultCommitMessage(v Version) string {
	return "Release " + v.Tag()
}
