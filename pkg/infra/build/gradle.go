package build

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/infra/command"
)

const gradleProperties = "gradle.properties"

var (
	gradleVersionLine = regexp.MustCompile(`(?m)^[ \t]*version[ \t]*[=:][ \t]*(.*?)[ \t]*$`)
	gradleRootProject = regexp.MustCompile(`rootProject\.name\s*=\s*["']([^"']+)["']`)
)

// Gradle builds projects with a build.gradle[.kts]. The project version
// lives in gradle.properties.
type Gradle struct {
	dir    string
	runner command.Runner
}

// NewGradle creates the gradle backend for dir
func NewGradle(dir string, runner command.Runner) interfaces.BuildAdapter {
	return &Gradle{dir: dir, runner: runner}
}

func (g *Gradle) Name() string { return "gradle" }

func (g *Gradle) wrapper() string {
	path := filepath.Join(g.dir, "gradlew")
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return path
	}
	return ""
}

// RequiredTools is empty when the project ships its own wrapper
func (g *Gradle) RequiredTools() []string {
	if g.wrapper() != "" {
		return nil
	}
	return []string{"gradle"}
}

func (g *Gradle) ReadManifestVersion(ctx context.Context) (*string, error) {
	raw, err := os.ReadFile(filepath.Join(g.dir, gradleProperties))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read gradle.properties", goerr.V("dir", g.dir))
	}

	m := gradleVersionLine.FindSubmatch(raw)
	if m == nil {
		return nil, nil
	}
	v := string(m[1])
	if v == "" {
		return nil, nil
	}
	return &v, nil
}

// SetManifestVersion rewrites the version property in place, keeping the
// rest of the file, or appends it
func (g *Gradle) SetManifestVersion(ctx context.Context, v model.Version) error {
	path := filepath.Join(g.dir, gradleProperties)
	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return goerr.Wrap(err, "failed to read gradle.properties", goerr.V("path", path))
	}

	line := "version=" + v.String()
	var updated string
	if gradleVersionLine.Match(raw) {
		replaced := false
		updated = gradleVersionLine.ReplaceAllStringFunc(string(raw), func(string) string {
			if replaced {
				return ""
			}
			replaced = true
			return line
		})
	} else {
		updated = string(raw)
		if updated != "" && !strings.HasSuffix(updated, "\n") {
			updated += "\n"
		}
		updated += line + "\n"
	}

	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return goerr.Wrap(err, "failed to write gradle.properties", goerr.V("path", path))
	}
	return nil
}

func (g *Gradle) ReadProjectIdentifier(ctx context.Context) (string, error) {
	for _, name := range []string{"settings.gradle", "settings.gradle.kts"} {
		raw, err := os.ReadFile(filepath.Join(g.dir, name))
		if err != nil {
			continue
		}
		if m := gradleRootProject.FindSubmatch(raw); m != nil {
			return string(m[1]), nil
		}
	}

	// Gradle itself names the root project after its directory
	abs, err := filepath.Abs(g.dir)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve project directory", goerr.V("dir", g.dir))
	}
	return filepath.Base(abs), nil
}

func (g *Gradle) Build(ctx context.Context, v model.Version, artifactID string, skipTests bool) (*model.BuildResult, error) {
	name := g.wrapper()
	if name == "" {
		name = "gradle"
	}
	args := []string{"--no-daemon", "build"}
	if skipTests {
		args = append(args, "-x", "test")
	}
	cmd := command.Command{Dir: g.dir, Name: name, Args: args}

	ctxlog.From(ctx).Info("Building", "backend", g.Name(), "command", cmd.String())
	res, err := g.runner.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return &model.BuildResult{
			Success:    false,
			Diagnostic: cmd.String() + ": " + tail(res.Output),
		}, nil
	}

	path, err := resolveArtifact(filepath.Join(g.dir, "build", "libs"), artifactID, v, ".jar")
	if err != nil {
		return nil, err
	}
	return &model.BuildResult{ArtifactPath: path, Success: true}, nil
}
