// Package pipeline trains, evaluates and persists the six wine quality
// classifiers, and replays the persisted artifacts for predictions.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/sklearn/ensemble"
	"github.com/iitrpratibha/ml-wine-quality-classification/sklearn/linear_model"
	"github.com/iitrpratibha/ml-wine-quality-classification/sklearn/naive_bayes"
	"github.com/iitrpratibha/ml-wine-quality-classification/sklearn/neighbors"
	"github.com/iitrpratibha/ml-wine-quality-classification/sklearn/tree"
)

// Algorithm identifies one of the compared classifiers. The zero value is
// LogisticRegression; the declaration order is the display order.
type Algorithm int

const (
	LogisticRegression Algorithm = iota
	DecisionTree
	KNN
	NaiveBayes
	RandomForest
	GradientBoosting
)

// DefaultAlgorithm is preselected in the prediction form.
const DefaultAlgorithm = RandomForest

var algorithmNames = [...]string{
	LogisticRegression: "Logistic Regression",
	DecisionTree:       "Decision Tree",
	KNN:                "kNN",
	NaiveBayes:         "Naive Bayes",
	RandomForest:       "Random Forest",
	GradientBoosting:   "Gradient Boosting",
}

// Algorithms returns every algorithm in display order.
func Algorithms() []Algorithm {
	return []Algorithm{LogisticRegression, DecisionTree, KNN, NaiveBayes, RandomForest, GradientBoosting}
}

// Valid reports whether a is a known algorithm.
func (a Algorithm) Valid() bool {
	return a >= LogisticRegression && a <= GradientBoosting
}

// Name is the display name, also used as the key in results.json.
func (a Algorithm) Name() string {
	if !a.Valid() {
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
	return algorithmNames[a]
}

func (a Algorithm) String() string { return a.Name() }

// Slug is the artifact file stem, e.g. "random_forest".
func (a Algorithm) Slug() string {
	return strings.ReplaceAll(strings.ToLower(a.Name()), " ", "_")
}

// FileName is the artifact file holding the fitted model.
func (a Algorithm) FileName() string {
	return a.Slug() + ".gob"
}

// New returns an unfitted classifier with the fixed hyperparameters used
// for every training run. seed drives all randomness.
func (a Algorithm) New(seed int64) model.Classifier {
	switch a {
	case LogisticRegression:
		return linear_model.NewLogisticRegression(
			linear_model.WithLRPenalty("l2"),
			linear_model.WithLRC(1.0),
			linear_model.WithLRMaxIter(1000),
			linear_model.WithLRRandomState(seed),
		)
	case DecisionTree:
		return tree.NewDecisionTreeClassifier(
			tree.WithCriterion("gini"),
			tree.WithMaxDepth(-1),
			tree.WithMinSamplesSplit(2),
			tree.WithMinSamplesLeaf(1),
			tree.WithRandomState(seed),
		)
	case KNN:
		return neighbors.NewKNeighborsClassifier(
			neighbors.WithNNeighbors(5),
			neighbors.WithWeights("uniform"),
			neighbors.WithMetric("euclidean"),
		)
	case NaiveBayes:
		return naive_bayes.NewGaussianNB(naive_bayes.WithVarSmoothing(1e-9))
	case RandomForest:
		return ensemble.NewRandomForestClassifier(
			ensemble.WithNEstimators(100),
			ensemble.WithForestMaxFeatures("sqrt"),
			ensemble.WithBootstrap(true),
			ensemble.WithForestRandomState(seed),
		)
	case GradientBoosting:
		return ensemble.NewGradientBoostingClassifier(
			ensemble.WithBoostingRounds(100),
			ensemble.WithBoostMaxDepth(6),
			ensemble.WithLearningRate(0.3),
			ensemble.WithLambda(1.0),
			ensemble.WithMinChildWeight(1),
			ensemble.WithBoostRandomState(seed),
		)
	}
	panic(fmt.Sprintf("pipeline: unknown algorithm %d", int(a)))
}

// ParseAlgorithm accepts a display name or slug, case-insensitively.
// "XGBoost" is accepted for GradientBoosting.
func ParseAlgorithm(s string) (Algorithm, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	for _, a := range Algorithms() {
		if key == strings.ToLower(a.Name()) || key == a.Slug() {
			return a, nil
		}
	}
	switch key {
	case "xgboost", "xgb":
		return GradientBoosting, nil
	case "k_nearest_neighbors", "k nearest neighbors":
		return KNN, nil
	}
	return 0, errors.NewValidationError("model", "unknown algorithm", s)
}

// MarshalText encodes the display name.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, errors.NewValidationError("model", "unknown algorithm", int(a))
	}
	return []byte(a.Name()), nil
}

// UnmarshalText accepts anything ParseAlgorithm does.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
