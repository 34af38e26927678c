package interfaces

import (
	"context"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// VcsGateway is the minimal set of version control operations a release
// needs, against one working tree and one remote.
type VcsGateway interface {
	Status(ctx context.Context) (*model.VcsStatus, error)
	HeadCommit(ctx context.Context) (string, error)
	// MainBranch returns the configured or detected main branch. Detection
	// runs once per gateway.
	MainBranch(ctx context.Context) (string, error)
	RemoteURL(ctx context.Context) (string, error)

	CommitAll(ctx context.Context, message string) error
	Push(ctx context.Context) error
	Tag(ctx context.Context, name, message string) error
	PushTag(ctx context.Context, name string) error

	DeleteTagLocalAndRemote(ctx context.Context, name string) error
	HardReset(ctx context.Context, commit string) error
	ForcePush(ctx context.Context) error
}

// ChangelogGenerator lists commit subjects since the most recent tag.
type ChangelogGenerator interface {
	Generate(ctx context.Context) (string, error)
}
