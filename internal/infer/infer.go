// Package infer performs single-record inference against a loaded
// pipeline: regression for the credit limit, classification for the tier,
// both with wall-clock timing. Every failure is wrapped into one of the
// per-request error kinds so the transport layer can branch without
// parsing message text.
package infer

import (
	"time"

	"github.com/cockroachdb/errors"

	"credit-serve/internal/pipeline"
	"credit-serve/internal/tabular"
)

// Task selects which pipeline operation PredictWithTiming dispatches to.
type Task string

const (
	TaskRegression     Task = "regression"
	TaskClassification Task = "classification"
)

// Error kinds, discriminated with errors.Is.
var (
	ErrRegressionPrediction     = errors.New("regression prediction failed")
	ErrClassificationPrediction = errors.New("classification prediction failed")
	ErrUnknownTask              = errors.New("unknown task")
)

// Result is a tagged prediction outcome: Value for regression, Label and
// Probabilities for classification.
type Result struct {
	Task          Task
	Value         float64
	Label         string
	Probabilities map[string]float64
}

// MetricsInterface is the subset of metrics the service records.
type MetricsInterface interface {
	PredictionsInc()
	FailuresInc()
	LatencyObserve(seconds float64)
}

// Service performs predictions against pipelines it does not own. The
// zero metrics case is handled, so tests can construct it bare.
type Service struct {
	metrics MetricsInterface
}

func NewService(metrics MetricsInterface) *Service {
	return &Service{metrics: metrics}
}

// PredictRegression wraps the payload into a single-row frame and returns
// the first pipeline output as a float. Any failure, including a panic in
// the pipeline, surfaces as ErrRegressionPrediction with the underlying
// message wrapped in; no partial result is returned.
func (s *Service) PredictRegression(p *pipeline.Pipeline, payload map[string]any) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Mark(errors.Newf("regression prediction failed: %v", r), ErrRegressionPrediction)
		}
	}()

	frame := tabular.FromPayload(payload)
	preds, perr := p.Predict(frame)
	if perr != nil {
		return 0, errors.Mark(errors.Wrap(perr, "regression prediction failed"), ErrRegressionPrediction)
	}
	if len(preds) == 0 {
		return 0, errors.Mark(errors.New("regression prediction failed: pipeline returned no output"), ErrRegressionPrediction)
	}
	return preds[0], nil
}

// PredictClassification predicts the tier label and its probability
// distribution. When the pipeline has no probability capability the
// constant fallback distribution is substituted; the class-keyed mapping
// otherwise follows the pipeline's own class order.
func (s *Service) PredictClassification(p *pipeline.Pipeline, payload map[string]any) (label string, proba map[string]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Mark(errors.Newf("classification prediction failed: %v", r), ErrClassificationPrediction)
		}
	}()

	frame := tabular.FromPayload(payload)
	labels, perr := p.PredictLabels(frame)
	if perr != nil {
		return "", nil, errors.Mark(errors.Wrap(perr, "classification prediction failed"), ErrClassificationPrediction)
	}
	if len(labels) == 0 {
		return "", nil, errors.Mark(errors.New("classification prediction failed: pipeline returned no output"), ErrClassificationPrediction)
	}

	if !p.HasProba() {
		return labels[0], FallbackProba(), nil
	}

	vectors, perr := p.PredictProba(frame)
	if perr != nil {
		return "", nil, errors.Mark(errors.Wrap(perr, "classification prediction failed"), ErrClassificationPrediction)
	}
	classes := p.Classes()
	proba = make(map[string]float64, len(classes))
	for i, class := range classes {
		if i < len(vectors[0]) {
			proba[class] = vectors[0][i]
		}
	}
	return labels[0], proba, nil
}

// PredictWithTiming validates the task, then dispatches and measures the
// prediction alone in wall-clock milliseconds. An unrecognized task fails
// before any timing or model call.
func (s *Service) PredictWithTiming(p *pipeline.Pipeline, payload map[string]any, task Task) (*Result, float64, error) {
	switch task {
	case TaskRegression, TaskClassification:
	default:
		return nil, 0, errors.Mark(errors.Newf("unknown task: %s", task), ErrUnknownTask)
	}

	if s.metrics != nil {
		s.metrics.PredictionsInc()
	}

	start := time.Now()
	result := &Result{Task: task}
	var err error
	switch task {
	case TaskRegression:
		result.Value, err = s.PredictRegression(p, payload)
	case TaskClassification:
		result.Label, result.Probabilities, err = s.PredictClassification(p, payload)
	}
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.LatencyObserve(elapsed.Seconds())
		if err != nil {
			s.metrics.FailuresInc()
		}
	}
	if err != nil {
		return nil, 0, err
	}
	return result, elapsed.Seconds() * 1000, nil
}

// FallbackProba is the constant distribution served when a classifier has
// no probability capability. It sums to exactly 1.00.
func FallbackProba() map[string]float64 {
	return map[string]float64{"Low": 0.33, "Medium": 0.33, "High": 0.34}
}
