// Package artifacts loads the two pre-trained pipelines the service
// serves. Loading happens exactly once at startup and is all-or-nothing:
// both artifact files must exist before either is decoded, so the rest of
// the process never observes a half-populated bundle.
package artifacts

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"credit-serve/internal/pipeline"
)

const (
	// RegressionArtifact is the credit-limit regressor file name.
	RegressionArtifact = "best_regression_pipeline.gob"
	// ClassificationArtifact is the tier classifier file name.
	ClassificationArtifact = "best_classification_pipeline.gob"
)

// Error kinds. Callers discriminate with errors.Is; the underlying decode
// message is always wrapped in, never swallowed.
var (
	ErrArtifactsMissing     = errors.New("artifacts missing")
	ErrArtifactIncompatible = errors.New("artifact incompatible")
	ErrArtifactLoadFailed   = errors.New("artifact load failed")
)

// skewMarkers are substrings characteristic of gob decoding a stream
// written by a different revision of the pipeline types. Matching on the
// decoder's message text is deliberate: these are the codec's real
// version-skew signatures.
var skewMarkers = []string{
	"type mismatch",
	"unknown type id",
	"wrong type",
}

// Bundle holds the two loaded pipelines. It is populated once at startup
// and read-only afterwards; concurrent requests share it without locking.
type Bundle struct {
	Regression     *pipeline.Pipeline
	Classification *pipeline.Pipeline
}

// Load reads both pipelines from dir. It fails with ErrArtifactsMissing
// naming the first absent file, ErrArtifactIncompatible when decoding
// fails with a known version-skew signature, or ErrArtifactLoadFailed for
// any other decode error. There is no retry.
func Load(dir string) (*Bundle, error) {
	regPath := filepath.Join(dir, RegressionArtifact)
	clfPath := filepath.Join(dir, ClassificationArtifact)

	for _, path := range []string{regPath, clfPath} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, errors.Mark(
				errors.Newf("artifacts not found: place %s in %s", filepath.Base(path), dir),
				ErrArtifactsMissing)
		}
	}

	reg, err := loadPipeline(regPath)
	if err != nil {
		return nil, err
	}
	clf, err := loadPipeline(clfPath)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("dir", dir).
		Strs("classes", clf.Classes()).
		Bool("proba", clf.HasProba()).
		Msg("pipelines loaded")

	return &Bundle{Regression: reg, Classification: clf}, nil
}

func loadPipeline(path string) (*pipeline.Pipeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open %s", filepath.Base(path)), ErrArtifactLoadFailed)
	}
	defer file.Close()

	p, err := pipeline.Decode(file)
	if err != nil {
		return nil, classifyDecodeError(err, filepath.Base(path))
	}
	return p, nil
}

func classifyDecodeError(err error, name string) error {
	msg := err.Error()
	for _, marker := range skewMarkers {
		if strings.Contains(msg, marker) {
			wrapped := errors.Wrapf(err, "pipeline compatibility issue in %s", name)
			wrapped = errors.WithHint(wrapped,
				"the artifact was serialized with incompatible pipeline type versions; recreate it with the current library versions")
			return errors.Mark(wrapped, ErrArtifactIncompatible)
		}
	}
	return errors.Mark(errors.Wrapf(err, "failed to load %s", name), ErrArtifactLoadFailed)
}
