package infer

import (
	"math"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-serve/internal/pipeline"
	"credit-serve/internal/pipeline/pipelinetest"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions int
	failures    int
	latencies   []float64
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) FailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) LatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, v)
}

func TestPredictRegression_FiniteValue(t *testing.T) {
	s := NewService(nil)
	p := pipelinetest.RegressionPipeline()

	value, err := s.PredictRegression(p, map[string]any{
		"Customer_Age":    45.0,
		"Total_Trans_Amt": 3000.0,
	})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(value))
	assert.False(t, math.IsInf(value, 0))
	assert.Equal(t, 200.0, value)
}

func TestPredictRegression_WrapsFailure(t *testing.T) {
	s := NewService(nil)
	p := pipeline.New(nil, pipelinetest.RegressionForest())

	_, err := s.PredictRegression(p, map[string]any{"x": 1.0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegressionPrediction))
}

func TestPredictRegression_RecoversPanic(t *testing.T) {
	s := NewService(nil)
	p := pipeline.New(pipelinetest.NumOnlyPreprocess("x"), &pipelinetest.Panicky{})

	_, err := s.PredictRegression(p, map[string]any{"x": 1.0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRegressionPrediction))
	assert.Contains(t, err.Error(), "estimator exploded")
}

func TestPredictClassification_WithProba(t *testing.T) {
	s := NewService(nil)
	p := pipelinetest.ClassificationPipeline()

	label, proba, err := s.PredictClassification(p, map[string]any{
		"Customer_Age":    45.0,
		"Total_Trans_Amt": 3000.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Low", label)

	// keyed by the pipeline's own classes, summing to 1 within tolerance
	sum := 0.0
	for _, class := range p.Classes() {
		v, ok := proba[class]
		require.True(t, ok, "missing class %s", class)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestPredictClassification_FallbackProba(t *testing.T) {
	s := NewService(nil)
	p := pipeline.New(
		pipelinetest.NumOnlyPreprocess("x"),
		&pipelinetest.LabelOnly{Names: []string{"Low", "Medium", "High"}},
	)
	require.False(t, p.HasProba())

	label, proba, err := s.PredictClassification(p, map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.Equal(t, "Low", label)

	assert.Equal(t, map[string]float64{"Low": 0.33, "Medium": 0.33, "High": 0.34}, proba)
	sum := 0.0
	for _, v := range proba {
		sum += v
	}
	assert.Equal(t, 1.0, sum)
}

func TestPredictWithTiming_Regression(t *testing.T) {
	m := &MockMetrics{}
	s := NewService(m)
	p := pipelinetest.RegressionPipeline()

	result, runtimeMS, err := s.PredictWithTiming(p, map[string]any{
		"Customer_Age":    45.0,
		"Total_Trans_Amt": 3000.0,
	}, TaskRegression)
	require.NoError(t, err)
	assert.Equal(t, TaskRegression, result.Task)
	assert.Equal(t, 200.0, result.Value)
	assert.GreaterOrEqual(t, runtimeMS, 0.0)

	assert.Equal(t, 1, m.predictions)
	assert.Equal(t, 0, m.failures)
	assert.Len(t, m.latencies, 1)
}

func TestPredictWithTiming_UnknownTaskFailsBeforeModelCall(t *testing.T) {
	m := &MockMetrics{}
	s := NewService(m)
	// a panicking estimator proves the model is never reached
	p := pipeline.New(pipelinetest.NumOnlyPreprocess("x"), &pipelinetest.Panicky{})

	_, _, err := s.PredictWithTiming(p, map[string]any{"x": 1.0}, Task("ranking"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTask))

	// nothing was counted: the failure happened before any timing
	assert.Equal(t, 0, m.predictions)
	assert.Empty(t, m.latencies)
}

func TestPredictWithTiming_CountsFailures(t *testing.T) {
	m := &MockMetrics{}
	s := NewService(m)
	p := pipeline.New(nil, pipelinetest.RegressionForest())

	_, _, err := s.PredictWithTiming(p, map[string]any{"x": 1.0}, TaskRegression)
	require.Error(t, err)
	assert.Equal(t, 1, m.failures)
}

func TestFallbackProba_SumsToOne(t *testing.T) {
	p := FallbackProba()
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	assert.Equal(t, 1.0, sum)
}
