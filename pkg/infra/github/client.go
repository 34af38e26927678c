package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/domain/types"
)

type client struct {
	githubClient *github.Client
	repo         Repository
}

type config struct {
	token          string
	appID          int64
	installationID int64
	privateKey     []byte
	baseURL        string
	uploadURL      string
	enterpriseURL  string
	timeout        time.Duration
	transport      http.RoundTripper
}

// Option is a functional option for the GitHub client
type Option func(*config)

// WithToken authenticates with a personal access token
func WithToken(token string) Option {
	return func(c *config) {
		c.token = token
	}
}

// WithApp authenticates as a GitHub App installation
func WithApp(appID, installationID int64, privateKey []byte) Option {
	return func(c *config) {
		c.appID = appID
		c.installationID = installationID
		c.privateKey = privateKey
	}
}

// WithEnterpriseURL points the client at a GitHub Enterprise Server
func WithEnterpriseURL(u string) Option {
	return func(c *config) {
		c.enterpriseURL = u
	}
}

// WithBaseURL sets the REST and upload endpoints directly. Both must end
// with a slash.
func WithBaseURL(baseURL, uploadURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
		c.uploadURL = uploadURL
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithTransport replaces the base HTTP transport
func WithTransport(rt http.RoundTripper) Option {
	return func(c *config) {
		c.transport = rt
	}
}

// NewClient creates a release API client for repo
func NewClient(repo Repository, opts ...Option) (interfaces.GitHubClient, error) {
	cfg := &config{
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if repo.Owner == "" || repo.Name == "" {
		return nil, goerr.New("GitHub repository is not specified",
			goerr.V("repo", repo.String()),
			goerr.T(model.ErrTagPrecondition))
	}

	httpClient := &http.Client{Transport: cfg.transport, Timeout: cfg.timeout}
	if cfg.appID != 0 {
		itr, err := ghinstallation.New(cfg.transport, cfg.appID, cfg.installationID, cfg.privateKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create GitHub App transport",
				goerr.V("app_id", cfg.appID),
				goerr.T(model.ErrTagPrecondition))
		}
		httpClient.Transport = itr
	}

	githubClient := github.NewClient(httpClient)
	githubClient.UserAgent = types.AppName + "/" + types.Version
	if cfg.token != "" && cfg.appID == 0 {
		githubClient = githubClient.WithAuthToken(cfg.token)
	}

	if cfg.enterpriseURL != "" {
		c, err := githubClient.WithEnterpriseURLs(cfg.enterpriseURL, cfg.enterpriseURL)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub Enterprise URL",
				goerr.V("url", cfg.enterpriseURL),
				goerr.T(model.ErrTagPrecondition))
		}
		githubClient = c
	}

	if cfg.baseURL != "" {
		base, err := url.Parse(cfg.baseURL)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub API URL", goerr.V("url", cfg.baseURL))
		}
		upload, err := url.Parse(cfg.uploadURL)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub upload URL", goerr.V("url", cfg.uploadURL))
		}
		githubClient.BaseURL = base
		githubClient.UploadURL = upload
	}

	return &client{
		githubClient: githubClient,
		repo:         repo,
	}, nil
}

// GetReleaseByTag fetches the release published for tag
func (c *client) GetReleaseByTag(ctx context.Context, tag string) (*model.Release, error) {
	release, _, err := c.githubClient.Repositories.GetReleaseByTag(ctx, c.repo.Owner, c.repo.Name, tag)
	if err != nil {
		return nil, classifyError(err, "failed to get release by tag", goerr.V("tag", tag))
	}

	return toRelease(release), nil
}

// GetLatestRelease fetches the most recent published release
func (c *client) GetLatestRelease(ctx context.Context) (*model.Release, error) {
	release, _, err := c.githubClient.Repositories.GetLatestRelease(ctx, c.repo.Owner, c.repo.Name)
	if err != nil {
		return nil, classifyError(err, "failed to get latest release")
	}

	return toRelease(release), nil
}

// CreateRelease creates a published (non-draft) release for tag
func (c *client) CreateRelease(ctx context.Context, tag, name, body string) (*model.Release, error) {
	release, _, err := c.githubClient.Repositories.CreateRelease(ctx, c.repo.Owner, c.repo.Name, &github.RepositoryRelease{
		TagName:    github.Ptr(tag),
		Name:       github.Ptr(name),
		Body:       github.Ptr(body),
		Draft:      github.Ptr(false),
		Prerelease: github.Ptr(false),
	})
	if err != nil {
		return nil, classifyError(err, "failed to create release", goerr.V("tag", tag))
	}

	return toRelease(release), nil
}

// ListAssets lists every asset attached to a release
func (c *client) ListAssets(ctx context.Context, releaseID int64) ([]model.Asset, error) {
	var assets []model.Asset
	opts := &github.ListOptions{PerPage: 100}

	for {
		page, resp, err := c.githubClient.Repositories.ListReleaseAssets(ctx, c.repo.Owner, c.repo.Name, releaseID, opts)
		if err != nil {
			return nil, classifyError(err, "failed to list release assets", goerr.V("release_id", releaseID))
		}
		for _, a := range page {
			assets = append(assets, toAsset(a))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return assets, nil
}

// UploadAsset uploads a local file as a release asset
func (c *client) UploadAsset(ctx context.Context, releaseID int64, name, path string) (*model.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open artifact", goerr.V("path", path))
	}
	defer f.Close()

	asset, _, err := c.githubClient.Repositories.UploadReleaseAsset(ctx, c.repo.Owner, c.repo.Name, releaseID, &github.UploadOptions{
		Name: name,
	}, f)
	if err != nil {
		return nil, classifyError(err, "failed to upload release asset",
			goerr.V("release_id", releaseID),
			goerr.V("name", name))
	}

	result := toAsset(asset)
	return &result, nil
}

// DeleteAsset deletes a release asset
func (c *client) DeleteAsset(ctx context.Context, assetID int64) error {
	if _, err := c.githubClient.Repositories.DeleteReleaseAsset(ctx, c.repo.Owner, c.repo.Name, assetID); err != nil {
		return classifyError(err, "failed to delete release asset", goerr.V("asset_id", assetID))
	}
	return nil
}

// classifyError tags not-found and already-exists responses so callers can
// treat them as recoverable.
func classifyError(err error, msg string, opts ...goerr.Option) error {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) {
		if errResp.Response != nil {
			opts = append(opts, goerr.V("status", errResp.Response.StatusCode))
			if errResp.Response.StatusCode == http.StatusNotFound {
				opts = append(opts, goerr.T(model.ErrTagNotFound))
			}
		}
		for _, e := range errResp.Errors {
			if e.Code == "already_exists" {
				opts = append(opts, goerr.T(model.ErrTagAlreadyExists))
				break
			}
		}
		if strings.Contains(strings.ToLower(errResp.Message), "already exists") {
			opts = append(opts, goerr.T(model.ErrTagAlreadyExists))
		}
	}

	return goerr.Wrap(err, msg, opts...)
}

func toRelease(r *github.RepositoryRelease) *model.Release {
	release := &model.Release{
		ID:      r.GetID(),
		Tag:     r.GetTagName(),
		Name:    r.GetName(),
		HTMLURL: r.GetHTMLURL(),
	}
	for _, a := range r.Assets {
		release.Assets = append(release.Assets, toAsset(a))
	}
	return release
}

func toAsset(a *github.ReleaseAsset) model.Asset {
	return model.Asset{
		ID:   a.GetID(),
		Name: a.GetName(),
		Size: a.GetSize(),
	}
}
