package build

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
	"github.com/m-mizutani/shipit/pkg/infra/command"
)

// Factory creates a backend for the project rooted at dir
type Factory func(dir string, runner command.Runner) interfaces.BuildAdapter

// Backend describes a registered build backend
type Backend struct {
	Name string
	// Manifests are file names whose presence in the project root selects
	// this backend during detection
	Manifests []string
	New       Factory
}

// Registry is the closed set of build backends, extended only through
// Register.
type Registry struct {
	backends []Backend
}

// NewRegistry returns a registry with the built-in backends
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(Backend{Name: "maven", Manifests: []string{"pom.xml"}, New: NewMaven})
	r.Register(Backend{Name: "gradle", Manifests: []string{"build.gradle", "build.gradle.kts"}, New: NewGradle})
	return r
}

// Register adds or replaces a backend. Detection tries backends in
// registration order.
func (r *Registry) Register(b Backend) {
	for i := range r.backends {
		if r.backends[i].Name == b.Name {
			r.backends[i] = b
			return
		}
	}
	r.backends = append(r.backends, b)
}

// Names lists registered backends, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		names = append(names, b.Name)
	}
	sort.Strings(names)
	return names
}

// New creates the named backend. An empty name means detect from dir.
func (r *Registry) New(name, dir string, runner command.Runner) (interfaces.BuildAdapter, error) {
	if name == "" {
		detected, err := r.Detect(dir)
		if err != nil {
			return nil, err
		}
		name = detected
	}

	for _, b := range r.backends {
		if b.Name == name {
			return b.New(dir, runner), nil
		}
	}
	return nil, goerr.New("unknown build backend",
		goerr.V("backend", name),
		goerr.V("available", strings.Join(r.Names(), ", ")),
		goerr.T(model.ErrTagPrecondition))
}

// Detect picks the first backend whose manifest exists in dir
func (r *Registry) Detect(dir string) (string, error) {
	for _, b := range r.backends {
		for _, m := range b.Manifests {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				return b.Name, nil
			}
		}
	}
	return "", goerr.New("no supported build manifest found",
		goerr.V("dir", dir),
		goerr.V("available", strings.Join(r.Names(), ", ")),
		goerr.T(model.ErrTagPrecondition))
}
