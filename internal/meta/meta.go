// Package meta assembles the descriptive metadata surface: optional
// training-summary metric tables read verbatim from the artifacts
// directory, static training/rationale text, and the feature schema.
package meta

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"credit-serve/internal/schema"
	"credit-serve/internal/tabular"
)

const (
	// RegressionSummaryFile and ClassificationSummaryFile are the optional
	// metric tables the training process leaves next to the artifacts.
	RegressionSummaryFile     = "final_regression_summary_train_test.csv"
	ClassificationSummaryFile = "final_classification_summary_train_test.csv"
)

// TrainingSummary describes how the offline training process produced the
// artifacts. Static text; this service performs inference only.
const TrainingSummary = "80/20 train/test split, fixed seed. ColumnTransformer preprocessing: " +
	"Numeric = median impute then standardize; Categorical = most-frequent impute then " +
	"One-Hot (unknown categories ignored). Models trained offline; " +
	"this service performs inference only."

// ModelRationale explains the model family choice. Static text.
const ModelRationale = "Random Forest chosen over Linear/GBDT/ANN for strong accuracy/variance balance " +
	"on ~10k tabular rows, robustness to non-linearities/outliers, low tuning sensitivity, " +
	"and explainability (feature importances/attributions). ANN provided no consistent lift " +
	"for this dataset at higher ops cost."

// Meta is the full metadata response body.
type Meta struct {
	RegressionMetricsTable     []map[string]any     `json:"regression_metrics_table"`
	ClassificationMetricsTable []map[string]any     `json:"classification_metrics_table"`
	TrainingSummary            string               `json:"training_summary"`
	ModelChoiceRationale       string               `json:"model_choice_rationale"`
	Attributes                 schema.FeatureSchema `json:"attributes"`
}

// Build assembles the metadata from the artifacts directory and an
// already-extracted schema. Missing or unreadable summary files simply
// leave the corresponding table nil; they are never an error.
func Build(artifactsDir string, s schema.FeatureSchema) Meta {
	return Meta{
		RegressionMetricsTable:     ReadMetricsTable(filepath.Join(artifactsDir, RegressionSummaryFile)),
		ClassificationMetricsTable: ReadMetricsTable(filepath.Join(artifactsDir, ClassificationSummaryFile)),
		TrainingSummary:            TrainingSummary,
		ModelChoiceRationale:       ModelRationale,
		Attributes:                 s,
	}
}

// ReadMetricsTable reads a summary CSV into an ordered sequence of row
// mappings with no schema enforcement. The data is opaque pass-through;
// nil means absent.
func ReadMetricsTable(path string) []map[string]any {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read metrics table")
		}
		return nil
	}

	frame, err := tabular.ReadCSV(raw)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to parse metrics table")
		return nil
	}

	rows := make([]map[string]any, 0, frame.NumRows())
	for i := 0; i < frame.NumRows(); i++ {
		row := make(map[string]any, len(frame.Columns))
		for _, col := range frame.Columns {
			if v, ok := frame.At(i, col); ok {
				row[col] = v
			}
		}
		rows = append(rows, row)
	}
	return rows
}
