package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// outputTail keeps the end of build output, where failures are reported
const outputTail = 4000

// resolveArtifact finds the packaged file in outDir. The conventional
// {artifactID}-{version}{ext} name wins; otherwise the first file with ext
// in directory order is taken.
func resolveArtifact(outDir, artifactID string, v model.Version, ext string) (string, error) {
	expected := filepath.Join(outDir, fmt.Sprintf("%s-%s%s", artifactID, v, ext))
	if info, err := os.Stat(expected); err == nil && info.Mode().IsRegular() {
		return expected, nil
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", goerr.Wrap(err, "build output directory not readable",
			goerr.V("dir", outDir),
			goerr.V("expected", expected),
			goerr.T(model.ErrTagArtifactNotFound))
	}

	var listing []string
	for _, e := range entries {
		listing = append(listing, e.Name())
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ext) {
			return filepath.Join(outDir, e.Name()), nil
		}
	}

	return "", goerr.New("no build artifact found",
		goerr.V("dir", outDir),
		goerr.V("expected", expected),
		goerr.V("listing", strings.Join(listing, ", ")),
		goerr.T(model.ErrTagArtifactNotFound))
}

func tail(output string) string {
	if len(output) <= outputTail {
		return output
	}
	return "..." + output[len(output)-outputTail:]
}
