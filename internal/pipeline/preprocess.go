package pipeline

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"

	"credit-serve/internal/tabular"
)

// Transformer turns a set of raw frame columns into a numeric block.
type Transformer interface {
	Transform(f *tabular.Frame, columns []string) (*mat.Dense, error)
}

// TransformerEntry is one (name, transformer, columns) triple of the
// preprocessing stage. The names "num" and "cat" are the recognized
// numeric and categorical entries; anything else is carried but ignored
// by schema introspection.
type TransformerEntry struct {
	Name        string
	Transformer Transformer
	Columns     []string
}

// ColumnTransformer is the preprocessing stage: an ordered list of
// transformer entries whose output blocks are concatenated left to right.
type ColumnTransformer struct {
	Entries []TransformerEntry
}

// ColumnsFor returns the column list of the named entry, or nil.
func (ct *ColumnTransformer) ColumnsFor(name string) []string {
	if ct == nil {
		return nil
	}
	var cols []string
	for _, e := range ct.Entries {
		if e.Name == name {
			cols = e.Columns
		}
	}
	return cols
}

// Transform applies every entry to the frame and stacks the blocks
// horizontally into one dense matrix.
func (ct *ColumnTransformer) Transform(f *tabular.Frame) (*mat.Dense, error) {
	if ct == nil || len(ct.Entries) == 0 {
		return nil, errors.New("preprocessing stage has no transformers")
	}
	if f == nil || f.NumRows() == 0 {
		return nil, errors.New("input frame is empty")
	}

	blocks := make([]*mat.Dense, 0, len(ct.Entries))
	totalCols := 0
	for _, e := range ct.Entries {
		if e.Transformer == nil {
			return nil, errors.Newf("transformer entry %q has no transformer", e.Name)
		}
		block, err := e.Transformer.Transform(f, e.Columns)
		if err != nil {
			return nil, errors.Wrapf(err, "transformer %q", e.Name)
		}
		_, c := block.Dims()
		totalCols += c
		blocks = append(blocks, block)
	}

	out := mat.NewDense(f.NumRows(), totalCols, nil)
	offset := 0
	for _, block := range blocks {
		r, c := block.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out.Set(i, offset+j, block.At(i, j))
			}
		}
		offset += c
	}
	return out, nil
}

// NumericTransformer is a fitted numeric preprocessor: median imputation
// followed by standardization. The fitted vectors are aligned with the
// entry's column list. Columns absent from the input frame are tolerated
// and filled with the imputation value.
type NumericTransformer struct {
	Median []float64
	Mean   []float64
	Scale  []float64
}

func (nt *NumericTransformer) Transform(f *tabular.Frame, columns []string) (*mat.Dense, error) {
	if len(nt.Median) != len(columns) || len(nt.Mean) != len(columns) || len(nt.Scale) != len(columns) {
		return nil, errors.Newf("numeric transformer fitted on %d features, entry lists %d columns", len(nt.Median), len(columns))
	}

	out := mat.NewDense(f.NumRows(), len(columns), nil)
	for i := 0; i < f.NumRows(); i++ {
		for j, col := range columns {
			v := nt.Median[j]
			if cell, ok := f.At(i, col); ok {
				if num, ok := cell.(float64); ok {
					v = num
				}
			}
			scale := nt.Scale[j]
			if scale == 0 {
				scale = 1
			}
			out.Set(i, j, (v-nt.Mean[j])/scale)
		}
	}
	return out, nil
}

// CategoricalTransformer is a fitted categorical preprocessor:
// most-frequent imputation followed by one-hot expansion. Unknown
// categories encode to an all-zero block, matching handle_unknown=ignore
// semantics.
type CategoricalTransformer struct {
	// Categories holds the fitted category list per column, in fitted
	// order; the one-hot block width is the sum of their lengths.
	Categories [][]string
	// Mode holds the most frequent category per column, used for missing
	// values.
	Mode []string
}

func (ct *CategoricalTransformer) Transform(f *tabular.Frame, columns []string) (*mat.Dense, error) {
	if len(ct.Categories) != len(columns) || len(ct.Mode) != len(columns) {
		return nil, errors.Newf("categorical transformer fitted on %d features, entry lists %d columns", len(ct.Categories), len(columns))
	}

	width := 0
	for _, cats := range ct.Categories {
		width += len(cats)
	}

	out := mat.NewDense(f.NumRows(), width, nil)
	for i := 0; i < f.NumRows(); i++ {
		offset := 0
		for j, col := range columns {
			value := ct.Mode[j]
			if cell, ok := f.At(i, col); ok && cell != nil {
				if s, ok := cell.(string); ok {
					value = s
				}
			}
			for k, cat := range ct.Categories[j] {
				if cat == value {
					out.Set(i, offset+k, 1)
					break
				}
			}
			offset += len(ct.Categories[j])
		}
	}
	return out, nil
}
