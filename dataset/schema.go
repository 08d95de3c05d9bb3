// Package dataset reads, prepares and splits the wine quality tables.
//
// The raw UCI files (one per wine colour) are combined into a single
// prepared table with a wine_type flag and a binary quality label. The
// prepared table feeds training; uploads with the same columns feed the
// dashboard's predictions.
package dataset

// Column names shared by every table in the pipeline.
const (
	LabelColumn    = "quality"
	WineTypeColumn = "wine_type"
)

// GoodQualityThreshold is the lowest raw score labelled as good wine.
const GoodQualityThreshold = 7

// Wine type flag values.
const (
	WineTypeWhite = 0.0
	WineTypeRed   = 1.0
)

// RawFeatureNames are the physicochemical columns of the UCI raw files, in
// file order.
var RawFeatureNames = []string{
	"fixed acidity",
	"volatile acidity",
	"citric acid",
	"residual sugar",
	"chlorides",
	"free sulfur dioxide",
	"total sulfur dioxide",
	"density",
	"pH",
	"sulphates",
	"alcohol",
}

// FeatureNames is the model input order: the raw features then wine_type.
var FeatureNames = append(append([]string(nil), RawFeatureNames...), WineTypeColumn)

// PreparedColumns is the column order of the prepared CSV.
var PreparedColumns = append(append([]string(nil), FeatureNames...), LabelColumn)

// ClassNames maps the binary label to its display string.
var ClassNames = []string{"Not Good", "Good"}

// Binarize maps a raw quality score to the binary label.
func Binarize(score float64) float64 {
	if score >= GoodQualityThreshold {
		return 1
	}
	return 0
}

// ClassName returns the display string of a binary label.
func ClassName(label float64) string {
	if label == 1 {
		return ClassNames[1]
	}
	return ClassNames[0]
}

// diffColumns reports which of want are absent from got and which of got are
// not in want.
func diffColumns(want, got []string) (missing, unknown []string) {
	have := make(map[string]bool, len(got))
	for _, c := range got {
		have[c] = true
	}
	expected := make(map[string]bool, len(want))
	for _, c := range want {
		expected[c] = true
		if !have[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range got {
		if !expected[c] {
			unknown = append(unknown, c)
		}
	}
	return missing, unknown
}
