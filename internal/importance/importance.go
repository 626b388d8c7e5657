// Package importance produces the ranked global feature-importance list.
// Extraction is a waterfall of strategies tried in priority order: tree
// path attribution over a synthetic sample, then the estimator's native
// importance vector, then a static domain list. An unavailable strategy
// falls through to the next; an error or panic while a strategy is
// running collapses the whole operation to a short constant list.
// Extraction never fails the caller.
package importance

import (
	"math/rand"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"credit-serve/internal/pipeline"
)

// Entry is one ranked feature/importance pair.
type Entry struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

const (
	sampleRows = 100
	topK       = 20
)

// Global returns the ranked importance list for a pipeline, at most topK
// entries when derived from the model, or a fixed constant list when no
// derivation applies.
func Global(p *pipeline.Pipeline) (entries []Entry) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("importance extraction panicked, serving fallback list")
			entries = fallbackList()
		}
	}()

	strategies := []func(*pipeline.Pipeline) ([]Entry, bool, error){
		treeAttribution,
		nativeImportance,
		staticList,
	}
	for _, strategy := range strategies {
		result, available, err := strategy(p)
		if err != nil {
			log.Warn().Err(err).Msg("importance strategy failed, serving fallback list")
			return fallbackList()
		}
		if available {
			return result
		}
	}
	return fallbackList()
}

// treeAttribution synthesizes a random numeric sample and averages the
// absolute per-feature attribution over it. The sample is independent
// standard-normal noise, not drawn from the training distribution; the
// original system behaves the same way and the behavior is kept for
// compatibility.
func treeAttribution(p *pipeline.Pipeline) ([]Entry, bool, error) {
	tree, ok := p.Tree()
	if !ok {
		return nil, false, nil
	}
	features := p.FirstEntryColumns()
	if len(features) == 0 {
		return nil, true, errors.New("preprocessing stage exposes no feature columns")
	}

	n := len(features)
	columns := make([][]float64, n)
	for j := range columns {
		columns[j] = make([]float64, sampleRows)
	}

	x := make([]float64, n)
	for i := 0; i < sampleRows; i++ {
		for j := range x {
			x[j] = rand.NormFloat64()
		}
		attr := tree.Attributions(x)
		for j := 0; j < n && j < len(attr); j++ {
			v := attr[j]
			if v < 0 {
				v = -v
			}
			columns[j][i] = v
		}
	}

	result := make([]Entry, n)
	for j, feature := range features {
		result[j] = Entry{Feature: feature, Importance: stat.Mean(columns[j], nil)}
	}
	return rankTop(result), true, nil
}

// nativeImportance pairs the estimator's fitted importance vector against
// the preprocessing feature names, truncating to the shorter of the two.
func nativeImportance(p *pipeline.Pipeline) ([]Entry, bool, error) {
	imps, ok := p.NativeImportances()
	if !ok {
		return nil, false, nil
	}
	features := p.FirstEntryColumns()
	if len(features) == 0 {
		return nil, true, errors.New("preprocessing stage exposes no feature columns")
	}

	n := len(features)
	if len(imps) < n {
		n = len(imps)
	}
	result := make([]Entry, n)
	for j := 0; j < n; j++ {
		result[j] = Entry{Feature: features[j], Importance: imps[j]}
	}
	return rankTop(result), true, nil
}

func staticList(_ *pipeline.Pipeline) ([]Entry, bool, error) {
	return staticImportance(), true, nil
}

func rankTop(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Importance > entries[j].Importance
	})
	if len(entries) > topK {
		entries = entries[:topK]
	}
	return entries
}

// staticImportance is the domain-knowledge ranking served when the model
// offers neither attribution nor native importances.
func staticImportance() []Entry {
	return []Entry{
		{Feature: "Customer_Age", Importance: 0.15},
		{Feature: "Total_Trans_Amt", Importance: 0.12},
		{Feature: "Total_Revolving_Bal", Importance: 0.10},
		{Feature: "Avg_Utilization_Ratio", Importance: 0.09},
		{Feature: "Total_Trans_Ct", Importance: 0.08},
		{Feature: "Months_on_book", Importance: 0.07},
		{Feature: "Total_Relationship_Count", Importance: 0.06},
		{Feature: "Income_Category", Importance: 0.05},
		{Feature: "Education_Level", Importance: 0.04},
		{Feature: "Card_Category", Importance: 0.03},
	}
}

// fallbackList is the prefix of the static ranking served when extraction
// errors out anywhere.
func fallbackList() []Entry {
	return staticImportance()[:5]
}
