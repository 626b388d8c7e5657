// Package pipelinetest builds small fitted pipelines and estimator stubs
// for tests across the serving packages.
package pipelinetest

import (
	"gonum.org/v1/gonum/mat"

	"credit-serve/internal/pipeline"
)

// NumOnlyPreprocess returns a preprocessing stage with a single "num"
// entry over the given columns, fitted to the identity transform
// (zero mean, unit scale, zero imputation).
func NumOnlyPreprocess(columns ...string) *pipeline.ColumnTransformer {
	n := len(columns)
	return &pipeline.ColumnTransformer{Entries: []pipeline.TransformerEntry{{
		Name: "num",
		Transformer: &pipeline.NumericTransformer{
			Median: make([]float64, n),
			Mean:   make([]float64, n),
			Scale:  ones(n),
		},
		Columns: columns,
	}}}
}

// Preprocess returns a num+cat preprocessing stage: identity-fitted
// numeric columns plus one categorical column with the given categories.
func Preprocess(numeric []string, catColumn string, categories []string) *pipeline.ColumnTransformer {
	n := len(numeric)
	return &pipeline.ColumnTransformer{Entries: []pipeline.TransformerEntry{
		{
			Name: "num",
			Transformer: &pipeline.NumericTransformer{
				Median: make([]float64, n),
				Mean:   make([]float64, n),
				Scale:  ones(n),
			},
			Columns: numeric,
		},
		{
			Name: "cat",
			Transformer: &pipeline.CategoricalTransformer{
				Categories: [][]string{categories},
				Mode:       []string{categories[0]},
			},
			Columns: []string{catColumn},
		},
	}}
}

// RegressionForest returns a one-tree forest splitting on the first
// feature at zero: 100 below, 200 above.
func RegressionForest() *pipeline.Forest {
	return &pipeline.Forest{Trees: []pipeline.Tree{{Nodes: []pipeline.TreeNode{
		{Feature: 0, Threshold: 0, Left: 1, Right: 2, Samples: 100},
		{Leaf: true, Value: []float64{100}, Samples: 50},
		{Leaf: true, Value: []float64{200}, Samples: 50},
	}}}}
}

// ClassificationForest returns a one-tree forest over three classes in a
// deliberately non-alphabetical order. The first feature decides between
// the first and last class.
func ClassificationForest() *pipeline.Forest {
	return &pipeline.Forest{
		ClassNames: []string{"Medium", "High", "Low"},
		Trees: []pipeline.Tree{{Nodes: []pipeline.TreeNode{
			{Feature: 0, Threshold: 0, Left: 1, Right: 2, Samples: 100},
			{Leaf: true, Value: []float64{8, 1, 1}, Samples: 50},
			{Leaf: true, Value: []float64{1, 1, 8}, Samples: 50},
		}}},
	}
}

// RegressionPipeline is a ready-to-use regression pipeline over two
// numeric features.
func RegressionPipeline() *pipeline.Pipeline {
	return pipeline.New(NumOnlyPreprocess("Customer_Age", "Total_Trans_Amt"), RegressionForest())
}

// ClassificationPipeline is a ready-to-use classification pipeline with
// the probability capability.
func ClassificationPipeline() *pipeline.Pipeline {
	return pipeline.New(NumOnlyPreprocess("Customer_Age", "Total_Trans_Amt"), ClassificationForest())
}

// LabelOnly is a classifier stub without the probability capability.
type LabelOnly struct {
	Names []string
}

func (e *LabelOnly) Predict(X *mat.Dense) ([]float64, error) {
	rows, _ := X.Dims()
	return make([]float64, rows), nil
}

func (e *LabelOnly) Classes() []string { return e.Names }

// NativeOnly is an estimator stub exposing only a native importance
// vector: not tree-based, no labels.
type NativeOnly struct {
	Imps []float64
}

func (e *NativeOnly) Predict(X *mat.Dense) ([]float64, error) {
	rows, _ := X.Dims()
	return make([]float64, rows), nil
}

func (e *NativeOnly) FeatureImportances() []float64 { return e.Imps }

// Panicky is an estimator that panics on every call, for catch-all
// fallback tests.
type Panicky struct{}

func (e *Panicky) Predict(_ *mat.Dense) ([]float64, error) { panic("estimator exploded") }

func (e *Panicky) Attributions(_ []float64) []float64 { panic("estimator exploded") }

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
