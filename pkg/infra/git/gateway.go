package git

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/infra/command"
)

const defaultSigner = "shipit"

// Gateway works on a local working tree with go-git. Operations that talk
// to the remote shell out to the git CLI so the user's credential helpers
// and SSH agent apply.
type Gateway struct {
	dir    string
	repo   *git.Repository
	remote string
	runner command.Runner
	now    func() time.Time

	configuredMain string
	mainOnce       sync.Once
	mainBranch     string
}

// Option configures a Gateway
type Option func(*Gateway)

// WithRemote sets the remote name used for push and main branch detection
func WithRemote(name string) Option {
	return func(g *Gateway) {
		g.remote = name
	}
}

// WithMainBranch disables detection and uses name as the main branch
func WithMainBranch(name string) Option {
	return func(g *Gateway) {
		g.configuredMain = name
	}
}

// WithRunner replaces the git CLI runner
func WithRunner(r command.Runner) Option {
	return func(g *Gateway) {
		g.runner = r
	}
}

// WithClock replaces the time source of commit and tag signatures
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// NewGateway opens the repository containing dir
func NewGateway(dir string, opts ...Option) (*Gateway, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, goerr.Wrap(err, "not a git repository",
			goerr.V("dir", dir),
			goerr.T(model.ErrTagPrecondition))
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, goerr.Wrap(err, "repository has no working tree",
			goerr.V("dir", dir),
			goerr.T(model.ErrTagPrecondition))
	}

	g := &Gateway{
		dir:    wt.Filesystem.Root(),
		repo:   repo,
		remote: "origin",
		runner: command.NewExecRunner(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

var _ interfaces.VcsGateway = (*Gateway)(nil)

// Dir returns the root of the working tree
func (g *Gateway) Dir() string {
	return g.dir
}

// GitDir returns the repository's git directory. For linked worktrees and
// submodules, where .git is a file, it is the directory that file points to.
func (g *Gateway) GitDir() string {
	if st, ok := g.repo.Storer.(*filesystem.Storage); ok {
		return st.Filesystem().Root()
	}
	return filepath.Join(g.dir, git.GitDirName)
}

func (g *Gateway) Status(ctx context.Context) (*model.VcsStatus, error) {
	head, err := g.repo.Head()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve HEAD")
	}

	branch := "HEAD"
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	wt, err := g.repo.Worktree()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open working tree")
	}
	status, err := wt.Status()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read working tree status")
	}

	return &model.VcsStatus{
		Branch:                branch,
		HasUncommittedChanges: !status.IsClean(),
	}, nil
}

func (g *Gateway) HeadCommit(ctx context.Context) (string, error) {
	head, err := g.repo.Head()
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve HEAD")
	}
	return head.Hash().String(), nil
}

// MainBranch resolves the main branch once: the configured name, else the
// remote's advertised HEAD, else a local main or master, else "main".
func (g *Gateway) MainBranch(ctx context.Context) (string, error) {
	g.mainOnce.Do(func() {
		g.mainBranch = g.detectMainBranch(ctx)
	})
	return g.mainBranch, nil
}

func (g *Gateway) detectMainBranch(ctx context.Context) string {
	logger := ctxlog.From(ctx)

	if g.configuredMain != "" {
		return g.configuredMain
	}

	if name, err := g.remoteHead(ctx); err != nil {
		logger.Debug("Could not read remote HEAD", "remote", g.remote, "error", err)
	} else if name != "" {
		return name
	}

	for _, candidate := range []string{"main", "master"} {
		if _, err := g.repo.Reference(plumbing.NewBranchReferenceName(candidate), true); err == nil {
			return candidate
		}
	}

	logger.Warn("Could not detect main branch, assuming main")
	return "main"
}

func (g *Gateway) remoteHead(ctx context.Context) (string, error) {
	remote, err := g.repo.Remote(g.remote)
	if err != nil {
		return "", err
	}

	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return "", err
	}
	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference {
			return ref.Target().Short(), nil
		}
	}
	return "", nil
}

func (g *Gateway) RemoteURL(ctx context.Context) (string, error) {
	remote, err := g.repo.Remote(g.remote)
	if err != nil {
		return "", goerr.Wrap(err, "remote not configured",
			goerr.V("remote", g.remote),
			goerr.T(model.ErrTagPrecondition))
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", goerr.New("remote has no URL",
			goerr.V("remote", g.remote),
			goerr.T(model.ErrTagPrecondition))
	}
	return urls[0], nil
}

// signature uses the user identity from git config when there is one
func (g *Gateway) signature() *object.Signature {
	sig := &object.Signature{Name: defaultSigner, Email: defaultSigner + "@localhost", When: g.now()}

	cfg, err := g.repo.ConfigScoped(gitconfig.GlobalScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}

// CommitAll stages every change, including deletions, and commits it
func (g *Gateway) CommitAll(ctx context.Context, message string) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return goerr.Wrap(err, "failed to open working tree")
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return goerr.Wrap(err, "failed to stage changes")
	}

	sig := g.signature()
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to commit", goerr.V("message", message))
	}

	ctxlog.From(ctx).Info("Committed", "commit", hash.String(), "message", message)
	return nil
}

// Tag creates an annotated tag on HEAD
func (g *Gateway) Tag(ctx context.Context, name, message string) error {
	head, err := g.repo.Head()
	if err != nil {
		return goerr.Wrap(err, "failed to resolve HEAD")
	}

	if _, err := g.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger:  g.signature(),
		Message: message,
	}); err != nil {
		return goerr.Wrap(err, "failed to create tag", goerr.V("tag", name))
	}

	ctxlog.From(ctx).Info("Tagged", "tag", name, "commit", head.Hash().String())
	return nil
}

// HardReset moves the current branch to commit and discards working tree
// changes
func (g *Gateway) HardReset(ctx context.Context, commit string) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return goerr.Wrap(err, "failed to open working tree")
	}
	if err := wt.Reset(&git.ResetOptions{
		Commit: plumbing.NewHash(commit),
		Mode:   git.HardReset,
	}); err != nil {
		return goerr.Wrap(err, "failed to reset", goerr.V("commit", commit))
	}

	ctxlog.From(ctx).Info("Reset working tree", "commit", commit)
	return nil
}

func (g *Gateway) git(ctx context.Context, args ...string) (*command.Result, error) {
	cmd := command.Command{Dir: g.dir, Name: "git", Args: args}
	res, err := g.runner.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return res, goerr.New("git command failed",
			goerr.V("command", cmd.String()),
			goerr.V("exit_code", res.ExitCode),
			goerr.V("output", strings.TrimSpace(res.Output)))
	}
	return res, nil
}

// Push pushes the current branch to the remote
func (g *Gateway) Push(ctx context.Context) error {
	if _, err := g.git(ctx, "push", g.remote, "HEAD"); err != nil {
		return goerr.Wrap(err, "failed to push", goerr.V("remote", g.remote))
	}
	return nil
}

func (g *Gateway) PushTag(ctx context.Context, name string) error {
	if _, err := g.git(ctx, "push", g.remote, "refs/tags/"+name); err != nil {
		return goerr.Wrap(err, "failed to push tag", goerr.V("remote", g.remote), goerr.V("tag", name))
	}
	return nil
}

// ForcePush overwrites the remote branch with the local one. The lease
// refuses to clobber commits pushed by someone else in the meantime.
func (g *Gateway) ForcePush(ctx context.Context) error {
	if _, err := g.git(ctx, "push", "--force-with-lease", g.remote, "HEAD"); err != nil {
		return goerr.Wrap(err, "failed to force push", goerr.V("remote", g.remote))
	}
	return nil
}

// DeleteTagLocalAndRemote removes the tag on both sides. A tag missing on
// either side is not an error.
func (g *Gateway) DeleteTagLocalAndRemote(ctx context.Context, name string) error {
	logger := ctxlog.From(ctx)

	if err := g.repo.DeleteTag(name); err != nil {
		if !errors.Is(err, git.ErrTagNotFound) {
			return goerr.Wrap(err, "failed to delete local tag", goerr.V("tag", name))
		}
		logger.Debug("Local tag already absent", "tag", name)
	}

	res, err := g.git(ctx, "push", g.remote, ":refs/tags/"+name)
	if err != nil {
		if res != nil && strings.Contains(res.Output, "remote ref does not exist") {
			logger.Debug("Remote tag already absent", "tag", name)
			return nil
		}
		return goerr.Wrap(err, "failed to delete remote tag", goerr.V("remote", g.remote), goerr.V("tag", name))
	}

	logger.Info("Deleted tag", "tag", name)
	return nil
}
