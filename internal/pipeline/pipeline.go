// Package pipeline implements the pre-fit model pipelines the serving
// layer loads at startup. A pipeline is a preprocessing stage followed by
// an estimator stage, serialized with encoding/gob by the offline training
// process. The serving code treats pipelines as capability objects:
// probability estimation, tree structure, and native importances are
// optional and resolved once at decode time, never re-probed per call.
package pipeline

import (
	"encoding/gob"
	"io"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"

	"credit-serve/internal/tabular"
)

// Estimator is the minimal estimator-stage contract: one output per input
// row. For classifiers the outputs are class indices.
type Estimator interface {
	Predict(X *mat.Dense) ([]float64, error)
}

// LabelEstimator is implemented by estimators fitted on class labels.
// Classes returns the fitted label order, which is not guaranteed to be
// sorted; all probability zipping must use this order.
type LabelEstimator interface {
	Classes() []string
}

// ProbabilityEstimator is the optional probability-estimation capability.
type ProbabilityEstimator interface {
	LabelEstimator
	PredictProba(X *mat.Dense) ([][]float64, error)
}

// TreeEstimator is implemented by tree-ensemble estimators that can
// attribute a prediction back to individual input features.
type TreeEstimator interface {
	Attributions(x []float64) []float64
}

// ImportanceProvider exposes a native per-feature importance vector.
type ImportanceProvider interface {
	FeatureImportances() []float64
}

// Pipeline is an opaque pre-fit model: preprocessing stage plus estimator
// stage. Instances are immutable after decode and safe for concurrent
// readers.
type Pipeline struct {
	Preprocess *ColumnTransformer
	Estimator  Estimator

	// capability views, bound once by New/Decode
	labels LabelEstimator
	proba  ProbabilityEstimator
	tree   TreeEstimator
	imps   ImportanceProvider
}

// New wraps a preprocessing stage and estimator into a pipeline and
// resolves its capabilities.
func New(preprocess *ColumnTransformer, estimator Estimator) *Pipeline {
	p := &Pipeline{Preprocess: preprocess, Estimator: estimator}
	p.bind()
	return p
}

func (p *Pipeline) bind() {
	if le, ok := p.Estimator.(LabelEstimator); ok && len(le.Classes()) > 0 {
		p.labels = le
		if pe, ok := p.Estimator.(ProbabilityEstimator); ok {
			p.proba = pe
		}
	}
	if te, ok := p.Estimator.(TreeEstimator); ok {
		p.tree = te
	}
	if ip, ok := p.Estimator.(ImportanceProvider); ok && len(ip.FeatureImportances()) > 0 {
		p.imps = ip
	}
}

// Predict transforms the frame and runs the estimator, returning one
// output per row.
func (p *Pipeline) Predict(f *tabular.Frame) ([]float64, error) {
	if p == nil || p.Preprocess == nil || p.Estimator == nil {
		return nil, errors.New("pipeline is not initialized")
	}
	X, err := p.Preprocess.Transform(f)
	if err != nil {
		return nil, err
	}
	return p.Estimator.Predict(X)
}

// PredictLabels runs Predict and maps class indices through the fitted
// class list. Fails for estimators without labels.
func (p *Pipeline) PredictLabels(f *tabular.Frame) ([]string, error) {
	if p == nil || p.labels == nil {
		return nil, errors.New("estimator has no class labels")
	}
	preds, err := p.Predict(f)
	if err != nil {
		return nil, err
	}
	classes := p.labels.Classes()
	out := make([]string, len(preds))
	for i, v := range preds {
		idx := int(v)
		if idx < 0 || idx >= len(classes) {
			return nil, errors.Newf("predicted class index %d out of range for %d classes", idx, len(classes))
		}
		out[i] = classes[idx]
	}
	return out, nil
}

// PredictProba returns one probability vector per row, ordered by
// Classes. Only valid when HasProba reports true.
func (p *Pipeline) PredictProba(f *tabular.Frame) ([][]float64, error) {
	if p == nil || p.proba == nil {
		return nil, errors.New("estimator does not support probability estimation")
	}
	X, err := p.Preprocess.Transform(f)
	if err != nil {
		return nil, err
	}
	return p.proba.PredictProba(X)
}

// Classes returns the fitted class order, or nil for regressors.
func (p *Pipeline) Classes() []string {
	if p == nil || p.labels == nil {
		return nil
	}
	return p.labels.Classes()
}

// HasProba reports whether the probability-estimation capability was
// present at load time.
func (p *Pipeline) HasProba() bool {
	return p != nil && p.proba != nil
}

// Tree returns the tree-attribution capability if the estimator exposes
// one.
func (p *Pipeline) Tree() (TreeEstimator, bool) {
	if p == nil || p.tree == nil {
		return nil, false
	}
	return p.tree, true
}

// NativeImportances returns the estimator's native importance vector if
// one was fitted.
func (p *Pipeline) NativeImportances() ([]float64, bool) {
	if p == nil || p.imps == nil {
		return nil, false
	}
	return p.imps.FeatureImportances(), true
}

// NumericFeatures returns the column list of the "num" preprocessing
// entry, or nil.
func (p *Pipeline) NumericFeatures() []string {
	if p == nil || p.Preprocess == nil {
		return nil
	}
	return p.Preprocess.ColumnsFor("num")
}

// FirstEntryColumns returns the column list of the first preprocessing
// entry. Importance extraction pairs importance vectors against this
// list, matching how the training process ordered its transformers.
func (p *Pipeline) FirstEntryColumns() []string {
	if p == nil || p.Preprocess == nil || len(p.Preprocess.Entries) == 0 {
		return nil
	}
	return p.Preprocess.Entries[0].Columns
}

// Decode reads a gob-serialized pipeline and resolves its capabilities.
func Decode(r io.Reader) (*Pipeline, error) {
	var p Pipeline
	if err := gob.NewDecoder(r).Decode(&p); err != nil {
		return nil, err
	}
	p.bind()
	return &p, nil
}

// Encode serializes a pipeline with gob. Used by the offline export path
// and by tests.
func Encode(w io.Writer, p *Pipeline) error {
	return gob.NewEncoder(w).Encode(p)
}

func init() {
	gob.Register(&Forest{})
	gob.Register(&Linear{})
	gob.Register(&NumericTransformer{})
	gob.Register(&CategoricalTransformer{})
}
