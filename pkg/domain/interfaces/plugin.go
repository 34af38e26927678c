package interfaces

import (
	"context"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// PluginRunner executes external programs at lifecycle hooks.
type PluginRunner interface {
	// Discover lists plugins for hook in execution order
	Discover(ctx context.Context, hook model.HookName) (*model.HookInvocation, error)
	// Run executes the plugins of hook. Failures are fatal except for
	// best-effort hooks.
	Run(ctx context.Context, hook model.HookName) error
}

// Prompter is the operator decision point. Non-interactive callers provide a
// deterministic policy.
type Prompter interface {
	Confirm(ctx context.Context, gate model.Gate, question string) (bool, error)
	Input(ctx context.Context, title, defaultValue string) (string, error)
}
