package pipeline

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// Linear is a fitted linear regressor. It carries no class labels, no
// probability estimation, no tree structure, and no native importances;
// pipelines built on it resolve none of the optional capabilities.
type Linear struct {
	Coef      []float64
	Intercept float64
}

func (l *Linear) Predict(X *mat.Dense) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != len(l.Coef) {
		return nil, errors.Newf("linear model fitted on %d features, input has %d", len(l.Coef), cols)
	}
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		v := l.Intercept
		for j := 0; j < cols; j++ {
			v += X.At(i, j) * l.Coef[j]
		}
		out[i] = v
	}
	return out, nil
}
