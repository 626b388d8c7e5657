package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"credit-serve/internal/pipeline"
	"credit-serve/internal/pipeline/pipelinetest"
)

func TestExtract_NumAndCatEntries(t *testing.T) {
	p := pipeline.New(
		pipelinetest.Preprocess([]string{"Customer_Age", "Total_Trans_Amt"}, "Gender", []string{"M", "F"}),
		pipelinetest.RegressionForest(),
	)

	s := Extract(p)
	assert.Equal(t, []string{"Customer_Age", "Total_Trans_Amt"}, s.NumericFeatures)
	assert.Equal(t, []string{"Gender"}, s.CategoricalFeatures)
}

func TestExtract_IgnoresUnrecognizedEntries(t *testing.T) {
	ct := &pipeline.ColumnTransformer{Entries: []pipeline.TransformerEntry{
		{Name: "num", Columns: []string{"a", "b"}},
		{Name: "passthrough", Columns: []string{"x"}},
		{Name: "cat", Columns: []string{"c"}},
	}}
	p := pipeline.New(ct, pipelinetest.RegressionForest())

	s := Extract(p)
	assert.Equal(t, []string{"a", "b"}, s.NumericFeatures)
	assert.Equal(t, []string{"c"}, s.CategoricalFeatures)
}

func TestExtract_NilPipelineFallsBack(t *testing.T) {
	s := Extract(nil)
	assert.Equal(t, Fallback(), s)
}

func TestExtract_NoPreprocessFallsBack(t *testing.T) {
	p := pipeline.New(nil, pipelinetest.RegressionForest())
	s := Extract(p)
	assert.Equal(t, Fallback(), s)
}

func TestFallback_Shape(t *testing.T) {
	s := Fallback()
	assert.Len(t, s.NumericFeatures, 13)
	assert.Len(t, s.CategoricalFeatures, 5)
	assert.Equal(t, "Customer_Age", s.NumericFeatures[0])
	assert.Equal(t, "Card_Category", s.CategoricalFeatures[4])
}
