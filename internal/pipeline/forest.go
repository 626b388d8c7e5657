package pipeline

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// TreeNode is one node of a fitted decision tree, flattened into the
// tree's node slice. Leaf nodes carry the prediction value: a single
// element for regression, a class distribution for classification.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Leaf      bool
	Value     []float64
	Samples   int
}

// Tree is a fitted decision tree; Nodes[0] is the root.
type Tree struct {
	Nodes []TreeNode
}

// Forest is a fitted tree ensemble. ClassNames is empty for regression
// forests. Importance is the native impurity-based importance vector
// produced during training, when the trainer exported one.
type Forest struct {
	Trees      []Tree
	ClassNames []string
	Importance []float64
}

// Predict returns one output per row: the ensemble mean for regression,
// the index of the highest-probability class for classification.
func (f *Forest) Predict(X *mat.Dense) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	rows, _ := X.Dims()
	out := make([]float64, rows)

	if len(f.ClassNames) > 0 {
		proba, err := f.PredictProba(X)
		if err != nil {
			return nil, err
		}
		for i, dist := range proba {
			best := 0
			for j := 1; j < len(dist); j++ {
				if dist[j] > dist[best] {
					best = j
				}
			}
			out[i] = float64(best)
		}
		return out, nil
	}

	for i := 0; i < rows; i++ {
		x := mat.Row(nil, i, X)
		sum := 0.0
		for _, tree := range f.Trees {
			leaf, err := tree.apply(x)
			if err != nil {
				return nil, err
			}
			sum += leaf.Value[0]
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out, nil
}

// PredictProba averages the per-tree class distributions, normalized per
// row. Only valid for classification forests.
func (f *Forest) PredictProba(X *mat.Dense) ([][]float64, error) {
	if len(f.ClassNames) == 0 {
		return nil, errors.New("forest was not fitted on class labels")
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}

	rows, _ := X.Dims()
	nClasses := len(f.ClassNames)
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		x := mat.Row(nil, i, X)
		dist := make([]float64, nClasses)
		for _, tree := range f.Trees {
			leaf, err := tree.apply(x)
			if err != nil {
				return nil, err
			}
			if len(leaf.Value) != nClasses {
				return nil, errors.Newf("leaf distribution has %d entries for %d classes", len(leaf.Value), nClasses)
			}
			total := 0.0
			for _, v := range leaf.Value {
				total += v
			}
			if total == 0 {
				continue
			}
			for j, v := range leaf.Value {
				dist[j] += v / total
			}
		}
		total := 0.0
		for _, v := range dist {
			total += v
		}
		if total > 0 {
			for j := range dist {
				dist[j] /= total
			}
		}
		out[i] = dist
	}
	return out, nil
}

// Classes returns the fitted class order.
func (f *Forest) Classes() []string {
	return f.ClassNames
}

// FeatureImportances returns the native importance vector.
func (f *Forest) FeatureImportances() []float64 {
	return f.Importance
}

// Attributions decomposes the ensemble prediction for one sample into
// per-feature contributions: walking each decision path, the change in
// the node's expected value at every split is credited to the split
// feature. Features beyond the sample width are skipped.
func (f *Forest) Attributions(x []float64) []float64 {
	attr := make([]float64, len(x))
	if len(f.Trees) == 0 {
		return attr
	}
	for _, tree := range f.Trees {
		tree.pathAttributions(x, attr)
	}
	for i := range attr {
		attr[i] /= float64(len(f.Trees))
	}
	return attr
}

func (t *Tree) apply(x []float64) (*TreeNode, error) {
	if len(t.Nodes) == 0 {
		return nil, errors.New("tree has no nodes")
	}
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		node := &t.Nodes[idx]
		if node.Leaf {
			if len(node.Value) == 0 {
				return nil, errors.New("leaf node has no value")
			}
			return node, nil
		}
		next := node.Left
		if node.Feature >= 0 && node.Feature < len(x) && x[node.Feature] > node.Threshold {
			next = node.Right
		}
		if next < 0 || next >= len(t.Nodes) {
			return nil, errors.Newf("tree child index %d out of range", next)
		}
		idx = next
	}
	return nil, errors.New("tree traversal did not reach a leaf")
}

func (t *Tree) pathAttributions(x []float64, attr []float64) {
	if len(t.Nodes) == 0 {
		return
	}
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		node := &t.Nodes[idx]
		if node.Leaf {
			return
		}
		next := node.Left
		if node.Feature >= 0 && node.Feature < len(x) && x[node.Feature] > node.Threshold {
			next = node.Right
		}
		if next < 0 || next >= len(t.Nodes) {
			return
		}
		if node.Feature >= 0 && node.Feature < len(attr) {
			attr[node.Feature] += t.expectedValue(next) - t.expectedValue(idx)
		}
		idx = next
	}
}

// expectedValue is the sample-weighted mean prediction of the subtree
// rooted at node i.
func (t *Tree) expectedValue(i int) float64 {
	if i < 0 || i >= len(t.Nodes) {
		return 0
	}
	node := &t.Nodes[i]
	if node.Leaf {
		return leafScalar(node.Value)
	}

	leftValue, rightValue := 0.0, 0.0
	leftCount, rightCount := 0.0, 0.0
	if node.Left >= 0 && node.Left < len(t.Nodes) && node.Left != i {
		leftValue = t.expectedValue(node.Left)
		leftCount = float64(t.Nodes[node.Left].Samples)
	}
	if node.Right >= 0 && node.Right < len(t.Nodes) && node.Right != i {
		rightValue = t.expectedValue(node.Right)
		rightCount = float64(t.Nodes[node.Right].Samples)
	}
	total := leftCount + rightCount
	if total == 0 {
		return 0
	}
	return (leftValue*leftCount + rightValue*rightCount) / total
}

func leafScalar(value []float64) float64 {
	if len(value) == 0 {
		return 0
	}
	if len(value) == 1 {
		return value[0]
	}
	// classification leaf: score is the winning class share
	best, total := value[0], 0.0
	for _, v := range value {
		if v > best {
			best = v
		}
		total += v
	}
	if total == 0 {
		return 0
	}
	return best / total
}
