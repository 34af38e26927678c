package build

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/infra/command"
)

// Maven builds projects described by pom.xml
type Maven struct {
	dir    string
	runner command.Runner
}

// NewMaven creates the maven backend for dir
func NewMaven(dir string, runner command.Runner) interfaces.BuildAdapter {
	return &Maven{dir: dir, runner: runner}
}

type pomProject struct {
	XMLName    xml.Name `xml:"project"`
	ArtifactID string   `xml:"artifactId"`
	Version    string   `xml:"version"`
}

func (m *Maven) Name() string { return "maven" }

func (m *Maven) RequiredTools() []string { return []string{"mvn"} }

func (m *Maven) readPom() (*pomProject, error) {
	path := filepath.Join(m.dir, "pom.xml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read pom.xml",
			goerr.V("path", path),
			goerr.T(model.ErrTagPrecondition))
	}

	var pom pomProject
	if err := xml.Unmarshal(raw, &pom); err != nil {
		return nil, goerr.Wrap(err, "failed to parse pom.xml",
			goerr.V("path", path),
			goerr.T(model.ErrTagPrecondition))
	}
	return &pom, nil
}

func (m *Maven) ReadManifestVersion(ctx context.Context) (*string, error) {
	pom, err := m.readPom()
	if err != nil {
		return nil, err
	}
	v := strings.TrimSpace(pom.Version)
	if v == "" {
		return nil, nil
	}
	return &v, nil
}

func (m *Maven) ReadProjectIdentifier(ctx context.Context) (string, error) {
	pom, err := m.readPom()
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(pom.ArtifactID)
	if id == "" {
		return "", goerr.New("pom.xml has no artifactId",
			goerr.V("dir", m.dir),
			goerr.T(model.ErrTagPrecondition))
	}
	return id, nil
}

// SetManifestVersion lets the versions plugin rewrite the pom so that
// formatting and comments survive.
func (m *Maven) SetManifestVersion(ctx context.Context, v model.Version) error {
	cmd := command.Command{
		Dir:  m.dir,
		Name: "mvn",
		Args: []string{"-B", "-q", "versions:set", "-DnewVersion=" + v.String(), "-DgenerateBackupPoms=false"},
	}
	res, err := m.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if !res.Success() {
		return goerr.New("failed to set maven project version",
			goerr.V("command", cmd.String()),
			goerr.V("exit_code", res.ExitCode),
			goerr.V("output", tail(res.Output)))
	}
	return nil
}

func (m *Maven) Build(ctx context.Context, v model.Version, artifactID string, skipTests bool) (*model.BuildResult, error) {
	args := []string{"-B", "package"}
	if skipTests {
		args = append(args, "-DskipTests")
	}
	cmd := command.Command{Dir: m.dir, Name: "mvn", Args: args}

	ctxlog.From(ctx).Info("Building", "backend", m.Name(), "command", cmd.String())
	res, err := m.runner.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return &model.BuildResult{
			Success:    false,
			Diagnostic: cmd.String() + ": " + tail(res.Output),
		}, nil
	}

	path, err := resolveArtifact(filepath.Join(m.dir, "target"), artifactID, v, ".jar")
	if err != nil {
		return nil, err
	}
	return &model.BuildResult{ArtifactPath: path, Success: true}, nil
}
