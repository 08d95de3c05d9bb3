package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is implemented by models that report mean accuracy on (X, y).
type Scorer interface {
	Score(X, y mat.Matrix) float64
}

// Classifier is the capability every algorithm in the pipeline has.
type Classifier interface {
	Fitter
	Predictor
	Scorer
}

// ProbabilisticClassifier is a Classifier that also estimates class
// probabilities. PredictProba returns an n×k matrix whose columns follow the
// order of Classes().
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []float64
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// FeatureImportancer is implemented by tree based models.
type FeatureImportancer interface {
	GetFeatureImportances() []float64
}

// MeanAccuracy returns the fraction of rows where p.Predict(X) equals y.
// Prediction errors and empty input score 0.
func MeanAccuracy(p Predictor, X, y mat.Matrix) float64 {
	pred, err := p.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := y.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}
