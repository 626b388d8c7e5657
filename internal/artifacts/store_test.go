package artifacts

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-serve/internal/pipeline"
	"credit-serve/internal/pipeline/pipelinetest"
)

func writeArtifact(t *testing.T, dir, name string, p *pipeline.Pipeline) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, pipeline.Encode(&buf, p))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o600))
}

func TestLoad_Success(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, RegressionArtifact, pipelinetest.RegressionPipeline())
	writeArtifact(t, dir, ClassificationArtifact, pipelinetest.ClassificationPipeline())

	bundle, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, bundle.Regression)
	require.NotNil(t, bundle.Classification)

	assert.True(t, bundle.Classification.HasProba())
	assert.Equal(t, []string{"Medium", "High", "Low"}, bundle.Classification.Classes())
}

func TestLoad_MissingRegressionArtifact(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, ClassificationArtifact, pipelinetest.ClassificationPipeline())

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArtifactsMissing))
	assert.Contains(t, err.Error(), RegressionArtifact)
}

func TestLoad_MissingClassificationArtifact(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, RegressionArtifact, pipelinetest.RegressionPipeline())

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArtifactsMissing))
	assert.Contains(t, err.Error(), ClassificationArtifact)
}

func TestLoad_CorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, RegressionArtifact), []byte("not a gob stream"), 0o600))
	writeArtifact(t, dir, ClassificationArtifact, pipelinetest.ClassificationPipeline())

	_, err := Load(dir)
	require.Error(t, err)
	// corruption without a skew signature is a plain load failure
	assert.True(t, errors.Is(err, ErrArtifactLoadFailed) || errors.Is(err, ErrArtifactIncompatible))
	assert.False(t, errors.Is(err, ErrArtifactsMissing))
}

func TestClassifyDecodeError_SkewMarkers(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"type mismatch", errors.New("gob: type mismatch in decoder"), ErrArtifactIncompatible},
		{"unknown type id", errors.New("gob: unknown type id or corrupted data"), ErrArtifactIncompatible},
		{"wrong type", errors.New("gob: wrong type (pipeline.Forest) for received value"), ErrArtifactIncompatible},
		{"other", errors.New("unexpected EOF"), ErrArtifactLoadFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := classifyDecodeError(tc.err, "best_regression_pipeline.gob")
			assert.True(t, errors.Is(classified, tc.kind))
			// the underlying message is wrapped, never swallowed
			assert.Contains(t, classified.Error(), tc.err.Error())
		})
	}
}

func TestClassifyDecodeError_IncompatibleCarriesHint(t *testing.T) {
	classified := classifyDecodeError(errors.New("gob: type mismatch in decoder"), "x.gob")
	hints := errors.GetAllHints(classified)
	require.NotEmpty(t, hints)
	assert.Contains(t, hints[0], "recreate")
}
