package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Publisher implements interfaces.ReleaseHost on top of the raw GitHub API
// with fixed-delay retries. Calls are sequential; there is no fan-out.
type Publisher struct {
	client interfaces.GitHubClient
	cfg    model.PublishConfig
	sleep  SleepFunc
}

// PublisherOption configures a Publisher
type PublisherOption func(*Publisher)

// WithSleep replaces the inter-attempt wait
func WithSleep(fn SleepFunc) PublisherOption {
	return func(p *Publisher) {
		p.sleep = fn
	}
}

// NewPublisher creates a release host client with the configured retry policy
func NewPublisher(client interfaces.GitHubClient, cfg model.PublishConfig, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client: client,
		cfg:    cfg,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ interfaces.ReleaseHost = (*Publisher)(nil)

func (p *Publisher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.RequestTimeout)
}

// CreateRelease creates the release for tag and attaches artifactPath when
// given. Attachment problems degrade to a release without the artifact; only
// a release that cannot be created at all is an error.
func (p *Publisher) CreateRelease(ctx context.Context, tag, title, notes, artifactPath string) (*model.PublishResult, error) {
	logger := ctxlog.From(ctx)
	result := &model.PublishResult{}

	if artifactPath != "" {
		state := model.NewRetryState(p.cfg.MaxAttempts, p.cfg.CreateRetryDelay)
		for {
			result.Attempts = state.Attempt
			release, existed, err := p.createOrAdopt(ctx, tag, title, notes)
			if err == nil {
				result.Release = release
				result.AlreadyExists = result.AlreadyExists || existed
				err = p.attachOnce(ctx, release, artifactPath)
				if err == nil {
					result.Attached = true
					result.Asset = model.NewReleaseAsset(tag, artifactPath)
					logger.Info("Release created with artifact",
						"tag", tag,
						"artifact", filepath.Base(artifactPath),
						"attempt", state.Attempt,
						"url", release.HTMLURL,
					)
					return result, nil
				}
			}

			logger.Warn("Release attempt failed",
				"tag", tag,
				"attempt", state.Attempt,
				"max_attempts", state.MaxAttempts,
				"error", err,
			)
			if !state.Next() {
				break
			}
			if err := p.sleep(ctx, state.Backoff); err != nil {
				return nil, goerr.Wrap(err, "release interrupted", goerr.V("tag", tag), goerr.T(model.ErrTagPublish))
			}
		}

		logger.Warn("Falling back to release without artifact", "tag", tag)
	}

	release, existed, err := p.createOrAdopt(ctx, tag, title, notes)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create release",
			goerr.V("tag", tag),
			goerr.T(model.ErrTagPublish))
	}
	result.Release = release
	result.AlreadyExists = result.AlreadyExists || existed
	if result.Attempts == 0 {
		result.Attempts = 1
	}

	if artifactPath == "" {
		return result, nil
	}

	if err := p.UploadAsset(ctx, tag, artifactPath, true); err != nil {
		msg := fmt.Sprintf("release %s exists but %s could not be attached: %v; attach it later with `shipit release --upload-only` or upload it manually at %s",
			tag, filepath.Base(artifactPath), err, release.HTMLURL)
		result.Warnings = append(result.Warnings, msg)
		logger.Warn("Artifact not attached", "tag", tag, "error", err)
		return result, nil
	}

	result.Attached = true
	result.Asset = model.NewReleaseAsset(tag, artifactPath)
	return result, nil
}

// createOrAdopt creates the release, or fetches it when the host reports that
// it already exists (for example a previous attempt succeeded but its
// response was lost).
func (p *Publisher) createOrAdopt(ctx context.Context, tag, title, notes string) (*model.Release, bool, error) {
	reqCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	release, err := p.client.CreateRelease(reqCtx, tag, title, notes)
	if err == nil {
		return release, false, nil
	}
	if !goerr.HasTag(err, model.ErrTagAlreadyExists) {
		return nil, false, err
	}

	ctxlog.From(ctx).Info("Release already exists, reusing it", "tag", tag)
	release, err = p.getRelease(ctx, tag)
	if err != nil {
		return nil, false, err
	}
	return release, true, nil
}

func (p *Publisher) getRelease(ctx context.Context, tag string) (*model.Release, error) {
	reqCtx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.client.GetReleaseByTag(reqCtx, tag)
}

func (p *Publisher) listAssets(ctx context.Context, releaseID int64) ([]model.Asset, error) {
	reqCtx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.client.ListAssets(reqCtx, releaseID)
}

// attachOnce replaces a same-named asset and uploads once
func (p *Publisher) attachOnce(ctx context.Context, release *model.Release, artifactPath string) error {
	if err := p.deleteSameName(ctx, release, filepath.Base(artifactPath)); err != nil {
		return err
	}

	reqCtx, cancel := p.withTimeout(ctx)
	defer cancel()
	_, err := p.client.UploadAsset(reqCtx, release.ID, filepath.Base(artifactPath), artifactPath)
	return err
}

func (p *Publisher) deleteSameName(ctx context.Context, release *model.Release, name string) error {
	assets, err := p.listAssets(ctx, release.ID)
	if err != nil {
		return err
	}

	for _, a := range assets {
		if a.Name != name {
			continue
		}
		ctxlog.From(ctx).Info("Deleting existing asset before upload",
			"tag", release.Tag,
			"asset", a.Name,
			"asset_id", a.ID,
		)
		reqCtx, cancel := p.withTimeout(ctx)
		err := p.client.DeleteAsset(reqCtx, a.ID)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// UploadAsset attaches artifactPath to the existing release for tag. With
// replaceExisting a same-named asset is deleted first, so repeated calls
// converge to exactly one asset of that name.
func (p *Publisher) UploadAsset(ctx context.Context, tag, artifactPath string, replaceExisting bool) error {
	logger := ctxlog.From(ctx)
	name := filepath.Base(artifactPath)

	release, err := p.getRelease(ctx, tag)
	if err != nil {
		return goerr.Wrap(err, "release not available for upload",
			goerr.V("tag", tag),
			goerr.T(model.ErrTagPublish))
	}

	if replaceExisting {
		if err := p.deleteSameName(ctx, release, name); err != nil {
			return goerr.Wrap(err, "failed to replace existing asset",
				goerr.V("tag", tag),
				goerr.V("asset", name))
		}
	}

	state := model.NewRetryState(p.cfg.UploadMaxAttempts, p.cfg.UploadRetryDelay)
	for {
		reqCtx, cancel := p.withTimeout(ctx)
		_, err = p.client.UploadAsset(reqCtx, release.ID, name, artifactPath)
		cancel()
		if err == nil {
			break
		}

		logger.Warn("Asset upload failed",
			"tag", tag,
			"asset", name,
			"attempt", state.Attempt,
			"max_attempts", state.MaxAttempts,
			"error", err,
		)
		if !state.Next() {
			return goerr.Wrap(err, "failed to upload asset",
				goerr.V("tag", tag),
				goerr.V("asset", name),
				goerr.V("attempts", state.Attempt))
		}
		if err := p.sleep(ctx, state.Backoff); err != nil {
			return goerr.Wrap(err, "upload interrupted", goerr.V("tag", tag))
		}
	}

	// The upload response is authoritative; a failed verification only warns
	assets, err := p.listAssets(ctx, release.ID)
	if err != nil {
		logger.Warn("Could not verify uploaded asset", "tag", tag, "asset", name, "error", err)
		return nil
	}
	found := false
	for _, a := range assets {
		if a.Name == name {
			found = true
			break
		}
	}
	if !found {
		logger.Warn("Uploaded asset not listed on release", "tag", tag, "asset", name)
		return nil
	}

	logger.Info("Asset uploaded", "tag", tag, "asset", name)
	return nil
}

// ReleaseExists reports whether a release is published for tag. Lookup
// errors other than "not found" are retried with the create policy.
func (p *Publisher) ReleaseExists(ctx context.Context, tag string) (bool, error) {
	state := model.NewRetryState(p.cfg.MaxAttempts, p.cfg.CreateRetryDelay)
	for {
		_, err := p.getRelease(ctx, tag)
		if err == nil {
			return true, nil
		}
		if goerr.HasTag(err, model.ErrTagNotFound) {
			return false, nil
		}

		if state.Last() {
			return false, goerr.Wrap(err, "failed to look up release",
				goerr.V("tag", tag),
				goerr.V("attempts", state.Attempt))
		}
		ctxlog.From(ctx).Warn("Release lookup failed",
			"tag", tag,
			"attempt", state.Attempt,
			"max_attempts", state.MaxAttempts,
			"error", err,
		)
		state.Next()
		if err := p.sleep(ctx, state.Backoff); err != nil {
			return false, goerr.Wrap(err, "release lookup interrupted", goerr.V("tag", tag))
		}
	}
}

// ListAssetNames returns the asset names of the release for tag
func (p *Publisher) ListAssetNames(ctx context.Context, tag string) (map[string]struct{}, error) {
	release, err := p.getRelease(ctx, tag)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to look up release", goerr.V("tag", tag))
	}

	assets, err := p.listAssets(ctx, release.ID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list assets", goerr.V("tag", tag))
	}

	release.Assets = assets
	return release.AssetNames(), nil
}

// LatestReleaseTag returns the tag of the latest published release, or an
// empty string when nothing was published yet.
func (p *Publisher) LatestReleaseTag(ctx context.Context) (string, error) {
	reqCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	release, err := p.client.GetLatestRelease(reqCtx)
	if err != nil {
		if goerr.HasTag(err, model.ErrTagNotFound) {
			return "", nil
		}
		return "", goerr.Wrap(err, "failed to get latest release")
	}
	return release.Tag, nil
}
