package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// DefaultFile is the config file looked up in the repository root
const DefaultFile = ".shipit.toml"

// File is the optional TOML configuration file. Flags and environment
// variables take precedence over it.
type File struct {
	VersionFile    string `toml:"version_file"`
	DefaultVersion string `toml:"default_version"`
	SkipTests      *bool  `toml:"skip_tests"`
	BuildBackend   string `toml:"build_backend"`
	MainBranch     string `toml:"main_branch"`
	PluginDir      string `toml:"plugin_dir"`
	Remote         string `toml:"remote"`

	GitHub  FileGitHub  `toml:"github"`
	Publish FilePublish `toml:"publish"`
}

type FileGitHub struct {
	Repository    string `toml:"repository"`
	EnterpriseURL string `toml:"enterprise_url"`
	AppID         int64  `toml:"app_id"`
	InstallID     int64  `toml:"installation_id"`
}

type FilePublish struct {
	MaxAttempts       int    `toml:"max_attempts"`
	CreateRetryDelay  string `toml:"create_retry_delay"`
	UploadMaxAttempts int    `toml:"upload_max_attempts"`
	UploadRetryDelay  string `toml:"upload_retry_delay"`
	RequestTimeout    string `toml:"request_timeout"`
}

// LoadFile reads the TOML config at path. A missing file yields an empty
// config unless required is set. Unknown keys are rejected.
func LoadFile(path string, required bool) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return &File{}, nil
		}
		return nil, goerr.Wrap(err, "failed to open config file",
			goerr.V("path", path),
			goerr.T(model.ErrTagPrecondition))
	}
	defer fd.Close()

	var f File
	if err := toml.NewDecoder(fd).DisallowUnknownFields().Decode(&f); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file",
			goerr.V("path", path),
			goerr.T(model.ErrTagPrecondition))
	}
	return &f, nil
}

// fileValue copies v into dst when the flag was neither given on the
// command line nor through its environment variable
func fileValue[T comparable](cmd *cli.Command, flag string, dst *T, v T) {
	var zero T
	if v == zero || cmd.IsSet(flag) {
		return
	}
	*dst = v
}
