package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// Publish holds the retry policy towards the release host
type Publish struct {
	MaxAttempts       int
	CreateRetryDelay  time.Duration
	UploadMaxAttempts int
	UploadRetryDelay  time.Duration
	RequestTimeout    time.Duration
}

// Flags returns CLI flags for publish configuration
func (c *Publish) Flags() []cli.Flag {
	defaults := model.DefaultConfig().Publish
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "publish-max-attempts",
			Usage:       "Attempts to create the release",
			Value:       defaults.MaxAttempts,
			Destination: &c.MaxAttempts,
			Sources:     cli.EnvVars("SHIPIT_PUBLISH_MAX_ATTEMPTS"),
		},
		&cli.DurationFlag{
			Name:        "publish-retry-delay",
			Usage:       "Delay between release creation attempts",
			Value:       defaults.CreateRetryDelay,
			Destination: &c.CreateRetryDelay,
			Sources:     cli.EnvVars("SHIPIT_PUBLISH_RETRY_DELAY"),
		},
		&cli.IntFlag{
			Name:        "upload-max-attempts",
			Usage:       "Attempts to upload the artifact",
			Value:       defaults.UploadMaxAttempts,
			Destination: &c.UploadMaxAttempts,
			Sources:     cli.EnvVars("SHIPIT_UPLOAD_MAX_ATTEMPTS"),
		},
		&cli.DurationFlag{
			Name:        "upload-retry-delay",
			Usage:       "Delay between upload attempts",
			Value:       defaults.UploadRetryDelay,
			Destination: &c.UploadRetryDelay,
			Sources:     cli.EnvVars("SHIPIT_UPLOAD_RETRY_DELAY"),
		},
		&cli.DurationFlag{
			Name:        "request-timeout",
			Usage:       "Timeout of a single request to the release host",
			Value:       defaults.RequestTimeout,
			Destination: &c.RequestTimeout,
			Sources:     cli.EnvVars("SHIPIT_REQUEST_TIMEOUT"),
		},
	}
}

// Apply fills settings not given by flag or environment from the config file
func (c *Publish) Apply(cmd *cli.Command, f *File) error {
	fileValue(cmd, "publish-max-attempts", &c.MaxAttempts, f.Publish.MaxAttempts)
	fileValue(cmd, "upload-max-attempts", &c.UploadMaxAttempts, f.Publish.UploadMaxAttempts)

	durations := []struct {
		flag string
		raw  string
		dst  *time.Duration
	}{
		{"publish-retry-delay", f.Publish.CreateRetryDelay, &c.CreateRetryDelay},
		{"upload-retry-delay", f.Publish.UploadRetryDelay, &c.UploadRetryDelay},
		{"request-timeout", f.Publish.RequestTimeout, &c.RequestTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return goerr.Wrap(err, "invalid duration in config file",
				goerr.V("key", d.flag),
				goerr.V("value", d.raw),
				goerr.T(model.ErrTagPrecondition))
		}
		fileValue(cmd, d.flag, d.dst, v)
	}
	return nil
}

// Config returns the publish policy
func (c *Publish) Config() model.PublishConfig {
	return model.PublishConfig{
		MaxAttempts:       c.MaxAttempts,
		CreateRetryDelay:  c.CreateRetryDelay,
		UploadMaxAttempts: c.UploadMaxAttempts,
		UploadRetryDelay:  c.UploadRetryDelay,
		RequestTimeout:    c.RequestTimeout,
	}
}
