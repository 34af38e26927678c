package usecase_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// fakeGitHub is an in-memory release API. Failure hooks receive the 1-based
// call count of their method.
type fakeGitHub struct {
	mu       sync.Mutex
	nextID   int64
	releases []*model.Release
	latest   string

	createCalls int
	uploadCalls int
	getCalls    int
	latestCalls int

	// createFail returns persist=true to store the release even when err is
	// set, like a response lost after the host committed it
	createFail func(call int) (persist bool, err error)
	uploadFail func(call int) error
	getFail    func(call int) error
	block      bool
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{nextID: 1}
}

func (f *fakeGitHub) find(tag string) *model.Release {
	for _, r := range f.releases {
		if r.Tag == tag {
			return r
		}
	}
	return nil
}

func (f *fakeGitHub) findID(id int64) *model.Release {
	for _, r := range f.releases {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeGitHub) addRelease(tag string, assets ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &model.Release{ID: f.nextID, Tag: tag, Name: tag}
	f.nextID++
	for _, name := range assets {
		r.Assets = append(r.Assets, model.Asset{ID: f.nextID, Name: name})
		f.nextID++
	}
	f.releases = append(f.releases, r)
	f.latest = tag
}

func (f *fakeGitHub) assetNames(tag string) map[string]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(tag)
	if r == nil {
		return nil
	}
	return r.AssetNames()
}

func notFound(what string) error {
	return goerr.New("not found", goerr.V("what", what), goerr.T(model.ErrTagNotFound))
}

func (f *fakeGitHub) GetReleaseByTag(ctx context.Context, tag string) (*model.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++

	if f.getFail != nil {
		if err := f.getFail(f.getCalls); err != nil {
			return nil, err
		}
	}
	return f.lookup(tag)
}

func (f *fakeGitHub) lookup(tag string) (*model.Release, error) {
	r := f.find(tag)
	if r == nil {
		return nil, notFound(tag)
	}
	copied := *r
	copied.Assets = append([]model.Asset(nil), r.Assets...)
	return &copied, nil
}

func (f *fakeGitHub) GetLatestRelease(ctx context.Context) (*model.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestCalls++
	if f.latest == "" {
		return nil, notFound("latest")
	}
	return f.lookup(f.latest)
}

func (f *fakeGitHub) CreateRelease(ctx context.Context, tag, name, body string) (*model.Release, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	persist, err := true, error(nil)
	if f.createFail != nil {
		persist, err = f.createFail(f.createCalls)
	}
	if f.find(tag) != nil {
		return nil, goerr.New("release already exists", goerr.V("tag", tag), goerr.T(model.ErrTagAlreadyExists))
	}
	if persist {
		f.releases = append(f.releases, &model.Release{ID: f.nextID, Tag: tag, Name: name})
		f.nextID++
		f.latest = tag
	}
	if err != nil {
		return nil, err
	}
	return &model.Release{ID: f.nextID - 1, Tag: tag, Name: name}, nil
}

func (f *fakeGitHub) ListAssets(ctx context.Context, releaseID int64) ([]model.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.findID(releaseID)
	if r == nil {
		return nil, notFound("release")
	}
	return append([]model.Asset(nil), r.Assets...), nil
}

func (f *fakeGitHub) UploadAsset(ctx context.Context, releaseID int64, name, path string) (*model.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++

	if f.uploadFail != nil {
		if err := f.uploadFail(f.uploadCalls); err != nil {
			return nil, err
		}
	}
	r := f.findID(releaseID)
	if r == nil {
		return nil, notFound("release")
	}
	for _, a := range r.Assets {
		if a.Name == name {
			return nil, goerr.New("asset already exists", goerr.V("name", name), goerr.T(model.ErrTagAlreadyExists))
		}
	}
	asset := model.Asset{ID: f.nextID, Name: name}
	f.nextID++
	r.Assets = append(r.Assets, asset)
	return &asset, nil
}

func (f *fakeGitHub) DeleteAsset(ctx context.Context, assetID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.releases {
		for i, a := range r.Assets {
			if a.ID == assetID {
				r.Assets = append(r.Assets[:i], r.Assets[i+1:]...)
				return nil
			}
		}
	}
	return notFound("asset")
}

// callLog collects the mutating calls of every fake in order
type callLog struct {
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) has(call string) bool {
	for _, c := range l.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (l *callLog) index(call string) int {
	for i, c := range l.calls {
		if c == call {
			return i
		}
	}
	return -1
}

type fakeVcs struct {
	log    *callLog
	branch string
	main   string
	dirty  bool
	head   string

	pushFail error
}

func (v *fakeVcs) Status(ctx context.Context) (*model.VcsStatus, error) {
	return &model.VcsStatus{Branch: v.branch, HasUncommittedChanges: v.dirty}, nil
}

func (v *fakeVcs) HeadCommit(ctx context.Context) (string, error) { return v.head, nil }

func (v *fakeVcs) MainBranch(ctx context.Context) (string, error) { return v.main, nil }

func (v *fakeVcs) RemoteURL(ctx context.Context) (string, error) {
	return "https://github.com/acme/widget.git", nil
}

func (v *fakeVcs) CommitAll(ctx context.Context, message string) error {
	v.log.add("commit")
	return nil
}

func (v *fakeVcs) Push(ctx context.Context) error {
	if v.pushFail != nil {
		return v.pushFail
	}
	v.log.add("push")
	return nil
}

func (v *fakeVcs) Tag(ctx context.Context, name, message string) error {
	v.log.add("tag:%s", name)
	return nil
}

func (v *fakeVcs) PushTag(ctx context.Context, name string) error {
	v.log.add("push-tag:%s", name)
	return nil
}

func (v *fakeVcs) DeleteTagLocalAndRemote(ctx context.Context, name string) error {
	v.log.add("delete-tag:%s", name)
	return nil
}

func (v *fakeVcs) HardReset(ctx context.Context, commit string) error {
	v.log.add("reset:%s", commit)
	return nil
}

func (v *fakeVcs) ForcePush(ctx context.Context) error {
	v.log.add("force-push")
	return nil
}

type fakeChangelog struct{}

func (fakeChangelog) Generate(ctx context.Context) (string, error) {
	return "- fix widget\n- add gadget", nil
}

type fakeBuild struct {
	log      *callLog
	outDir   string
	project  string
	manifest *string

	ignoreSet bool
	fail      bool
}

func (b *fakeBuild) Name() string            { return "fake" }
func (b *fakeBuild) RequiredTools() []string { return []string{"fakebuild"} }

func (b *fakeBuild) SetManifestVersion(ctx context.Context, v model.Version) error {
	b.log.add("set-manifest:%s", v)
	if !b.ignoreSet {
		s := v.String()
		b.manifest = &s
	}
	return nil
}

func (b *fakeBuild) ReadManifestVersion(ctx context.Context) (*string, error) {
	return b.manifest, nil
}

func (b *fakeBuild) ReadProjectIdentifier(ctx context.Context) (string, error) {
	return b.project, nil
}

func (b *fakeBuild) Build(ctx context.Context, v model.Version, artifactID string, skipTests bool) (*model.BuildResult, error) {
	b.log.add("build:%s", v)
	if b.fail {
		return &model.BuildResult{Success: false, Diagnostic: "compilation failed"}, nil
	}
	path := filepath.Join(b.outDir, fmt.Sprintf("%s-%s.bin", artifactID, v))
	if err := os.WriteFile(path, []byte("binary"), 0644); err != nil {
		return nil, err
	}
	return &model.BuildResult{ArtifactPath: path, Success: true}, nil
}

type fakePlugins struct {
	log    *callLog
	failOn map[model.HookName]error
}

func (p *fakePlugins) Discover(ctx context.Context, hook model.HookName) (*model.HookInvocation, error) {
	return &model.HookInvocation{Hook: hook, Executables: []string{"plugins/" + string(hook) + "/01-check.sh"}}, nil
}

func (p *fakePlugins) Run(ctx context.Context, hook model.HookName) error {
	p.log.add("hook:%s", hook)
	if err := p.failOn[hook]; err != nil {
		return err
	}
	return nil
}

type fakeVersions struct {
	value *string
}

func (s *fakeVersions) Read(ctx context.Context) (*string, error) {
	return s.value, nil
}

func (s *fakeVersions) Write(ctx context.Context, v model.Version) error {
	str := v.String()
	s.value = &str
	return nil
}

// fakePrompter approves every gate unless answers says otherwise
type fakePrompter struct {
	answers map[model.Gate]bool
	asked   []model.Gate
}

func (p *fakePrompter) Confirm(ctx context.Context, gate model.Gate, question string) (bool, error) {
	p.asked = append(p.asked, gate)
	if ok, found := p.answers[gate]; found {
		return ok, nil
	}
	return true, nil
}

func (p *fakePrompter) Input(ctx context.Context, title, defaultValue string) (string, error) {
	return defaultValue, nil
}

func (p *fakePrompter) wasAsked(gate model.Gate) bool {
	for _, g := range p.asked {
		if g == gate {
			return true
		}
	}
	return false
}

func ptr(s string) *string { return &s }

func noSleep(calls *int) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*calls++
		return nil
	}
}

func testPublishConfig() model.PublishConfig {
	return model.PublishConfig{
		MaxAttempts:       3,
		CreateRetryDelay:  time.Second,
		UploadMaxAttempts: 2,
		UploadRetryDelay:  time.Second,
		RequestTimeout:    time.Minute,
	}
}

func writeArtifact(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte("binary"), 0644))
	return path
}
