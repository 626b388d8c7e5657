// Package schema extracts the declared feature lists from a pipeline's
// preprocessing stage. Extraction never fails: when the pipeline does not
// expose the expected structure the static credit-dataset schema is
// returned instead, so the schema and meta surfaces always have something
// valid to serve.
package schema

import (
	"github.com/rs/zerolog/log"

	"credit-serve/internal/pipeline"
)

// FeatureSchema lists the numeric and categorical features a pipeline was
// fitted with, in fitted order.
type FeatureSchema struct {
	NumericFeatures     []string `json:"numeric_features"`
	CategoricalFeatures []string `json:"categorical_features"`
}

// Extract walks the preprocessing entries: "num" contributes the numeric
// list, "cat" the categorical list, other entries are ignored. A pipeline
// without an introspectable preprocessing stage yields Fallback.
func Extract(p *pipeline.Pipeline) (s FeatureSchema) {
	defer func() {
		// schema lookup must never fail the caller
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("schema introspection panicked, serving fallback schema")
			s = Fallback()
		}
	}()

	if p == nil || p.Preprocess == nil {
		log.Warn().Msg("pipeline exposes no preprocessing stage, serving fallback schema")
		return Fallback()
	}

	for _, entry := range p.Preprocess.Entries {
		switch entry.Name {
		case "num":
			s.NumericFeatures = entry.Columns
		case "cat":
			s.CategoricalFeatures = entry.Columns
		}
	}
	return s
}

// Fallback is the static schema of the credit dataset, used when
// introspection is impossible.
func Fallback() FeatureSchema {
	return FeatureSchema{
		NumericFeatures: []string{
			"Customer_Age", "Dependent_count", "Months_on_book",
			"Total_Relationship_Count", "Months_Inactive_12_mon",
			"Contacts_Count_12_mon", "Total_Revolving_Bal",
			"Avg_Open_To_Buy", "Total_Amt_Chng_Q4_Q1",
			"Total_Trans_Amt", "Total_Trans_Ct",
			"Total_Ct_Chng_Q4_Q1", "Avg_Utilization_Ratio",
		},
		CategoricalFeatures: []string{
			"Gender", "Education_Level", "Marital_Status",
			"Income_Category", "Card_Category",
		},
	}
}
