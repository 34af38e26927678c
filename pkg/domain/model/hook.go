package model

import "github.com/m-mizutani/goerr/v2"

// HookName identifies a lifecycle point where plugins run.
type HookName string

const (
	HookPreRelease  HookName = "pre-release"
	HookPreCommit   HookName = "pre-commit"
	HookPostBuild   HookName = "post-build"
	HookPostRelease HookName = "post-release"
	HookOnError     HookName = "on-error"
)

// AllHooks lists every hook in lifecycle order.
var AllHooks = []HookName{HookPreRelease, HookPostBuild, HookPreCommit, HookPostRelease, HookOnError}

// Validate rejects hook names outside the fixed set.
func (h HookName) Validate() error {
	for _, known := range AllHooks {
		if h == known {
			return nil
		}
	}
	return goerr.New("unknown hook", goerr.V("hook", string(h)))
}

// BestEffort reports whether plugin failures in this hook are only logged.
func (h HookName) BestEffort() bool {
	return h == HookOnError
}

// HookInvocation is the set of plugin executables discovered for one hook
// point, in execution order.
type HookInvocation struct {
	Hook        HookName
	Executables []string
}
