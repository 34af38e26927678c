package model

import "time"

// Config is the static configuration of a run. It is assembled once at
// startup from defaults, the optional config file and CLI flags, then passed
// by value into every component constructor.
type Config struct {
	// RepoDir is the root of the working tree being released.
	RepoDir string

	VersionFile    string
	DefaultVersion Version
	SkipTests      bool

	// BuildBackend is "maven", "gradle" or empty for auto-detection.
	BuildBackend string
	// MainBranch is empty for auto-detection.
	MainBranch string
	PluginDir  string
	Remote     string

	Publish PublishConfig
}

// PublishConfig holds the release host retry policy.
type PublishConfig struct {
	MaxAttempts       int
	CreateRetryDelay  time.Duration
	UploadMaxAttempts int
	UploadRetryDelay  time.Duration
	RequestTimeout    time.Duration
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		RepoDir:        ".",
		VersionFile:    "VERSION",
		DefaultVersion: Version{Minor: 1},
		PluginDir:      "plugins",
		Remote:         "origin",
		Publish: PublishConfig{
			MaxAttempts:       3,
			CreateRetryDelay:  10 * time.Second,
			UploadMaxAttempts: 3,
			UploadRetryDelay:  5 * time.Second,
			RequestTimeout:    300 * time.Second,
		},
	}
}

// RunOptions are the per-invocation choices of the operator.
type RunOptions struct {
	Bump            Bump
	CustomVersion   string
	DryRun          bool
	UploadOnly      bool
	SkipVersionSync bool
	SyncLatest      bool
	ReleaseNotes    string
	CommitMessage   string
}
