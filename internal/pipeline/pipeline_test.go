package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-serve/internal/tabular"
)

func numPreprocess(columns ...string) *ColumnTransformer {
	n := len(columns)
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	return &ColumnTransformer{Entries: []TransformerEntry{{
		Name: "num",
		Transformer: &NumericTransformer{
			Median: make([]float64, n),
			Mean:   make([]float64, n),
			Scale:  scale,
		},
		Columns: columns,
	}}}
}

func regressionForest() *Forest {
	return &Forest{Trees: []Tree{{Nodes: []TreeNode{
		{Feature: 0, Threshold: 0, Left: 1, Right: 2, Samples: 100},
		{Leaf: true, Value: []float64{100}, Samples: 50},
		{Leaf: true, Value: []float64{200}, Samples: 50},
	}}}}
}

func classificationForest() *Forest {
	return &Forest{
		ClassNames: []string{"Medium", "High", "Low"},
		Trees: []Tree{{Nodes: []TreeNode{
			{Feature: 0, Threshold: 0, Left: 1, Right: 2, Samples: 100},
			{Leaf: true, Value: []float64{8, 1, 1}, Samples: 50},
			{Leaf: true, Value: []float64{1, 1, 8}, Samples: 50},
		}}},
	}
}

func TestNumericTransformer_ImputeAndScale(t *testing.T) {
	nt := &NumericTransformer{
		Median: []float64{10},
		Mean:   []float64{5},
		Scale:  []float64{2},
	}
	f := tabular.NewFrame([]string{"x"})
	f.Rows = append(f.Rows, []any{9.0}, []any{nil})

	X, err := nt.Transform(f, []string{"x"})
	require.NoError(t, err)

	assert.Equal(t, 2.0, X.At(0, 0))  // (9-5)/2
	assert.Equal(t, 2.5, X.At(1, 0))  // imputed median 10
}

func TestNumericTransformer_MissingColumnImputed(t *testing.T) {
	nt := &NumericTransformer{Median: []float64{4}, Mean: []float64{0}, Scale: []float64{1}}
	f := tabular.NewFrame([]string{"other"})
	f.Rows = append(f.Rows, []any{1.0})

	X, err := nt.Transform(f, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 4.0, X.At(0, 0))
}

func TestCategoricalTransformer_OneHot(t *testing.T) {
	ct := &CategoricalTransformer{
		Categories: [][]string{{"M", "F"}},
		Mode:       []string{"M"},
	}
	f := tabular.NewFrame([]string{"Gender"})
	f.Rows = append(f.Rows, []any{"F"}, []any{"Unknown"}, []any{nil})

	X, err := ct.Transform(f, []string{"Gender"})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 1}, []float64{X.At(0, 0), X.At(0, 1)})
	// unknown category encodes all-zero
	assert.Equal(t, []float64{0, 0}, []float64{X.At(1, 0), X.At(1, 1)})
	// missing imputes the mode
	assert.Equal(t, []float64{1, 0}, []float64{X.At(2, 0), X.At(2, 1)})
}

func TestPipeline_PredictRegression(t *testing.T) {
	p := New(numPreprocess("x", "y"), regressionForest())

	f := tabular.NewFrame([]string{"x", "y"})
	f.Rows = append(f.Rows, []any{-1.0, 0.0}, []any{3.0, 0.0})

	preds, err := p.Predict(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200}, preds)
}

func TestPipeline_PredictLabelsAndProba(t *testing.T) {
	p := New(numPreprocess("x"), classificationForest())

	f := tabular.NewFrame([]string{"x"})
	f.Rows = append(f.Rows, []any{-1.0}, []any{1.0})

	labels, err := p.PredictLabels(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"Medium", "Low"}, labels)

	require.True(t, p.HasProba())
	proba, err := p.PredictProba(f)
	require.NoError(t, err)
	require.Len(t, proba, 2)

	sum := 0.0
	for _, v := range proba[0] {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	// class order is the fitted order, not sorted
	assert.Equal(t, []string{"Medium", "High", "Low"}, p.Classes())
	assert.Equal(t, 0.8, proba[0][0])
}

func TestPipeline_RegressorHasNoClassCapabilities(t *testing.T) {
	p := New(numPreprocess("x"), regressionForest())

	assert.False(t, p.HasProba())
	assert.Nil(t, p.Classes())

	f := tabular.NewFrame([]string{"x"})
	f.Rows = append(f.Rows, []any{1.0})
	_, err := p.PredictLabels(f)
	assert.Error(t, err)
}

func TestPipeline_GobRoundTrip(t *testing.T) {
	forest := classificationForest()
	forest.Importance = []float64{0.7, 0.3}
	p := New(numPreprocess("x", "y"), forest)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, p))

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	// capabilities must be re-resolved after decode
	require.True(t, decoded.HasProba())
	assert.Equal(t, []string{"Medium", "High", "Low"}, decoded.Classes())
	_, ok := decoded.Tree()
	assert.True(t, ok)
	imps, ok := decoded.NativeImportances()
	require.True(t, ok)
	assert.Equal(t, []float64{0.7, 0.3}, imps)

	f := tabular.NewFrame([]string{"x", "y"})
	f.Rows = append(f.Rows, []any{2.0, 0.0})
	labels, err := decoded.PredictLabels(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"Low"}, labels)
}

func TestForest_Attributions(t *testing.T) {
	forest := regressionForest()

	attr := forest.Attributions([]float64{5, 0})
	require.Len(t, attr, 2)
	// the single split is on feature 0; feature 1 never contributes
	assert.NotZero(t, attr[0])
	assert.Zero(t, attr[1])

	// going right adds value, going left removes it, relative to the
	// 150 expectation at the root
	right := forest.Attributions([]float64{5, 0})
	left := forest.Attributions([]float64{-5, 0})
	assert.Equal(t, 50.0, right[0])
	assert.Equal(t, -50.0, left[0])
}

func TestLinear_Predict(t *testing.T) {
	p := New(numPreprocess("x", "y"), &Linear{Coef: []float64{2, -1}, Intercept: 10})

	f := tabular.NewFrame([]string{"x", "y"})
	f.Rows = append(f.Rows, []any{3.0, 4.0})

	preds, err := p.Predict(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{12}, preds) // 10 + 2*3 - 4

	assert.False(t, p.HasProba())
	_, ok := p.Tree()
	assert.False(t, ok)
	_, ok = p.NativeImportances()
	assert.False(t, ok)
}
