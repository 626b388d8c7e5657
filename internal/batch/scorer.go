// Package batch scores an entire CSV table against a loaded pipeline in
// one pass and re-emits it with prediction columns appended. The whole
// table is held in memory; there is no chunking or streaming, which caps
// practical input size but keeps row order trivially stable.
package batch

import (
	"github.com/cockroachdb/errors"

	"credit-serve/internal/infer"
	"credit-serve/internal/pipeline"
	"credit-serve/internal/tabular"
)

// Mode selects which kind of scoring columns are appended.
type Mode string

const (
	ModeRegression     Mode = "regression"
	ModeClassification Mode = "classification"
)

// ErrScoring marks every batch failure: parse errors, prediction errors,
// row-count mismatches, serialization errors. No partial CSV is ever
// emitted.
var ErrScoring = errors.New("csv scoring failed")

// Appended column names. Classification probability columns are named
// proba_<class> in the pipeline's own class order.
const (
	RegressionColumn     = "pred_credit_limit"
	ClassificationColumn = "pred_tier"
	ProbaColumnPrefix    = "proba_"
)

// ScoreCSV parses raw as a headered CSV table, scores every row with the
// pipeline, appends the mode's prediction columns after the last original
// column, and serializes the augmented table back to CSV with the
// original rows and columns untouched.
func ScoreCSV(raw []byte, mode Mode, p *pipeline.Pipeline) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errors.Mark(errors.Newf("csv scoring failed: %v", r), ErrScoring)
		}
	}()

	frame, ferr := tabular.ReadCSV(raw)
	if ferr != nil {
		return nil, errors.Mark(errors.Wrap(ferr, "csv scoring failed"), ErrScoring)
	}

	switch mode {
	case ModeRegression:
		if err := appendRegression(frame, p); err != nil {
			return nil, err
		}
	case ModeClassification:
		if err := appendClassification(frame, p); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Mark(errors.Newf("csv scoring failed: unknown mode: %s", mode), ErrScoring)
	}

	data, werr := frame.WriteCSV()
	if werr != nil {
		return nil, errors.Mark(errors.Wrap(werr, "csv scoring failed"), ErrScoring)
	}
	return data, nil
}

func appendRegression(frame *tabular.Frame, p *pipeline.Pipeline) error {
	preds, err := p.Predict(frame)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "csv scoring failed"), ErrScoring)
	}
	if len(preds) != frame.NumRows() {
		return errors.Mark(errors.Newf("csv scoring failed: %d predictions for %d rows", len(preds), frame.NumRows()), ErrScoring)
	}
	if err := frame.AddFloatColumn(RegressionColumn, preds); err != nil {
		return errors.Mark(errors.Wrap(err, "csv scoring failed"), ErrScoring)
	}
	return nil
}

func appendClassification(frame *tabular.Frame, p *pipeline.Pipeline) error {
	labels, err := p.PredictLabels(frame)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "csv scoring failed"), ErrScoring)
	}
	if len(labels) != frame.NumRows() {
		return errors.Mark(errors.Newf("csv scoring failed: %d predictions for %d rows", len(labels), frame.NumRows()), ErrScoring)
	}
	if err := frame.AddStringColumn(ClassificationColumn, labels); err != nil {
		return errors.Mark(errors.Wrap(err, "csv scoring failed"), ErrScoring)
	}

	if !p.HasProba() {
		// constant columns, fixed Low/Medium/High order
		fallback := infer.FallbackProba()
		for _, class := range []string{"Low", "Medium", "High"} {
			values := make([]float64, frame.NumRows())
			for i := range values {
				values[i] = fallback[class]
			}
			if err := frame.AddFloatColumn(ProbaColumnPrefix+class, values); err != nil {
				return errors.Mark(errors.Wrap(err, "csv scoring failed"), ErrScoring)
			}
		}
		return nil
	}

	vectors, err := p.PredictProba(frame)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "csv scoring failed"), ErrScoring)
	}
	if len(vectors) != frame.NumRows() {
		return errors.Mark(errors.Newf("csv scoring failed: %d probability rows for %d rows", len(vectors), frame.NumRows()), ErrScoring)
	}
	for j, class := range p.Classes() {
		values := make([]float64, frame.NumRows())
		for i, vec := range vectors {
			if j < len(vec) {
				values[i] = vec[j]
			}
		}
		if err := frame.AddFloatColumn(ProbaColumnPrefix+class, values); err != nil {
			return errors.Mark(errors.Wrap(err, "csv scoring failed"), ErrScoring)
		}
	}
	return nil
}
