package config

import (
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/infra/github"
)

// GitHub holds GitHub configuration
type GitHub struct {
	Token          string `masq:"secret"`
	AppID          int64
	InstallationID int64
	PrivateKey     string `masq:"secret"`
	Repository     string
	EnterpriseURL  string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub token with contents:write permission",
			Destination: &c.Token,
			Sources:     cli.EnvVars("SHIPIT_GITHUB_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID, used instead of a token",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("SHIPIT_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-app-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("SHIPIT_GITHUB_APP_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-app-private-key",
			Usage:       "GitHub App private key (PEM content or file path)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("SHIPIT_GITHUB_APP_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-repository",
			Usage:       "owner/repo to publish to. Derived from the git remote when empty",
			Destination: &c.Repository,
			Sources:     cli.EnvVars("SHIPIT_GITHUB_REPOSITORY", "GITHUB_REPOSITORY"),
		},
		&cli.StringFlag{
			Name:        "github-enterprise-url",
			Usage:       "GitHub Enterprise Server URL",
			Destination: &c.EnterpriseURL,
			Sources:     cli.EnvVars("SHIPIT_GITHUB_ENTERPRISE_URL"),
		},
	}
}

// Apply fills settings not given by flag or environment from the config file
func (c *GitHub) Apply(cmd *cli.Command, f *File) {
	fileValue(cmd, "github-repository", &c.Repository, f.GitHub.Repository)
	fileValue(cmd, "github-enterprise-url", &c.EnterpriseURL, f.GitHub.EnterpriseURL)
	fileValue(cmd, "github-app-id", &c.AppID, f.GitHub.AppID)
	fileValue(cmd, "github-app-installation-id", &c.InstallationID, f.GitHub.InstallID)
}

func (c *GitHub) privateKey() ([]byte, error) {
	if strings.Contains(c.PrivateKey, "-----BEGIN") {
		return []byte(c.PrivateKey), nil
	}
	raw, err := os.ReadFile(c.PrivateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read GitHub App private key",
			goerr.V("path", c.PrivateKey),
			goerr.T(model.ErrTagPrecondition))
	}
	return raw, nil
}

// NewClient builds the release API client. remoteURL is used to find the
// repository when none is configured.
func (c *GitHub) NewClient(remoteURL string, timeout time.Duration) (interfaces.GitHubClient, error) {
	slug := c.Repository
	if slug == "" {
		slug = remoteURL
	}
	repo, err := github.ParseRepository(slug)
	if err != nil {
		return nil, err
	}

	opts := []github.Option{github.WithTimeout(timeout)}
	switch {
	case c.AppID != 0:
		if c.InstallationID == 0 || c.PrivateKey == "" {
			return nil, goerr.New("GitHub App requires installation ID and private key",
				goerr.V("app_id", c.AppID),
				goerr.T(model.ErrTagPrecondition))
		}
		key, err := c.privateKey()
		if err != nil {
			return nil, err
		}
		opts = append(opts, github.WithApp(c.AppID, c.InstallationID, key))
	case c.Token != "":
		opts = append(opts, github.WithToken(c.Token))
	default:
		return nil, goerr.New("GitHub credentials are not configured, set GITHUB_TOKEN or a GitHub App",
			goerr.T(model.ErrTagPrecondition))
	}

	if c.EnterpriseURL != "" {
		opts = append(opts, github.WithEnterpriseURL(c.EnterpriseURL))
	}

	return github.NewClient(repo, opts...)
}
