// Package naive_bayes implements naive Bayes classifiers compatible with
// scikit-learn's naive_bayes module.
package naive_bayes

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	_ model.ProbabilisticClassifier = (*GaussianNB)(nil)
	_ model.ParameterGetter         = (*GaussianNB)(nil)
	_ model.ParameterSetter         = (*GaussianNB)(nil)
)

// GaussianNB models each feature within each class as an independent normal
// distribution. A small epsilon, var_smoothing times the largest feature
// variance, is added to every variance for stability.
type GaussianNB struct {
	state *model.StateManager

	varSmoothing float64
	priors       []float64 // optional fixed class priors

	classes_     []float64
	classCount_  []float64
	theta_       [][]float64 // per-class feature means
	var_         [][]float64 // per-class feature variances, without epsilon
	epsilon_     float64
	nFeatures_   int
	nSamplesSeen int
}

// GaussianNBOption is a functional option for GaussianNB
type GaussianNBOption func(*GaussianNB)

// NewGaussianNB creates a GaussianNB with var_smoothing = 1e-9.
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{
		state:        model.NewStateManager(),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// WithVarSmoothing sets the share of the largest variance added to all variances
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) { nb.varSmoothing = v }
}

// WithPriors fixes the class priors instead of estimating them from the data
func WithPriors(priors []float64) GaussianNBOption {
	return func(nb *GaussianNB) { nb.priors = append([]float64(nil), priors...) }
}

// Fit estimates per-class means and variances from scratch.
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	nb.state.Reset()
	nb.classes_ = nil
	nb.nSamplesSeen = 0
	return nb.PartialFit(X, y, nil)
}

// PartialFit updates the model with one more batch. On the first call
// classes may list every label the model will ever see; when nil the labels
// present in y are used.
func (nb *GaussianNB) PartialFit(X, y mat.Matrix, classes []float64) error {
	if nb.varSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be >= 0", nb.varSmoothing)
	}
	nSamples, nFeatures, err := model.ValidateXY("GaussianNB.Fit", X, y)
	if err != nil {
		return err
	}

	first := nb.classes_ == nil
	if first {
		if classes == nil {
			classes, _ = model.EncodeLabels(y)
		}
		nb.initClasses(classes, nFeatures)
	} else if nFeatures != nb.nFeatures_ {
		return errors.NewDimensionError("GaussianNB.PartialFit", nb.nFeatures_, nFeatures, 1)
	}

	index := make(map[float64]int, len(nb.classes_))
	for k, c := range nb.classes_ {
		index[c] = k
	}
	groups := make([][]int, len(nb.classes_))
	for i := 0; i < nSamples; i++ {
		k, ok := index[y.At(i, 0)]
		if !ok {
			return errors.NewValueError("GaussianNB.PartialFit", fmt.Sprintf("label %v is not in classes %v", y.At(i, 0), nb.classes_))
		}
		groups[k] = append(groups[k], i)
	}

	col := make([]float64, nSamples)
	maxVar := 0.0
	for j := 0; j < nFeatures; j++ {
		mat.Col(col, j, X)
		if _, v := stat.PopMeanVariance(col, nil); v > maxVar {
			maxVar = v
		}
	}
	nb.epsilon_ = nb.varSmoothing * maxVar

	vals := make([]float64, 0, nSamples)
	for k, rows := range groups {
		if len(rows) == 0 {
			continue
		}
		for j := 0; j < nFeatures; j++ {
			vals = vals[:0]
			for _, i := range rows {
				vals = append(vals, X.At(i, j))
			}
			nb.theta_[k][j], nb.var_[k][j] = updateMeanVariance(
				nb.classCount_[k], nb.theta_[k][j], nb.var_[k][j], vals)
		}
		nb.classCount_[k] += float64(len(rows))
	}

	nb.nSamplesSeen += nSamples
	nb.state.SetDimensions(nFeatures, nb.nSamplesSeen)
	nb.state.SetFitted()
	return nil
}

func (nb *GaussianNB) initClasses(classes []float64, nFeatures int) {
	nb.classes_ = append([]float64(nil), classes...)
	nb.nFeatures_ = nFeatures
	K := len(classes)
	nb.classCount_ = make([]float64, K)
	nb.theta_ = make([][]float64, K)
	nb.var_ = make([][]float64, K)
	for k := 0; k < K; k++ {
		nb.theta_[k] = make([]float64, nFeatures)
		nb.var_[k] = make([]float64, nFeatures)
	}
}

// updateMeanVariance merges a new batch into running (population) mean and
// variance statistics computed over nPast samples.
func updateMeanVariance(nPast, mu, v float64, batch []float64) (float64, float64) {
	newMu, newVar := stat.PopMeanVariance(batch, nil)
	if nPast == 0 {
		return newMu, newVar
	}
	nNew := float64(len(batch))
	total := nPast + nNew
	mean := (nPast*mu + nNew*newMu) / total

	oldSSD := nPast * v
	newSSD := nNew * newVar
	ssd := oldSSD + newSSD + (nNew*nPast/total)*(mu-newMu)*(mu-newMu)
	return mean, ssd / total
}

func (nb *GaussianNB) logPriors() []float64 {
	out := make([]float64, len(nb.classes_))
	if nb.priors != nil {
		for k := range out {
			out[k] = math.Log(nb.priors[k])
		}
		return out
	}
	total := floats.Sum(nb.classCount_)
	for k, c := range nb.classCount_ {
		out[k] = math.Log(c / total)
	}
	return out
}

// jointLogLikelihood returns log P(c) + log P(x|c) for every row and class.
func (nb *GaussianNB) jointLogLikelihood(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := nb.state.RequireFitted("GaussianNB", method); err != nil {
		return nil, err
	}
	if err := nb.state.CheckFeatures("GaussianNB."+method, X); err != nil {
		return nil, err
	}
	if nb.priors != nil && len(nb.priors) != len(nb.classes_) {
		return nil, errors.NewValidationError("priors", fmt.Sprintf("need %d values", len(nb.classes_)), nb.priors)
	}

	n, p := X.Dims()
	K := len(nb.classes_)
	priors := nb.logPriors()

	// per-class constant term: -0.5 Σ log(2πσ²)
	norm := make([]float64, K)
	for k := 0; k < K; k++ {
		for j := 0; j < p; j++ {
			norm[k] -= 0.5 * math.Log(2*math.Pi*(nb.var_[k][j]+nb.epsilon_))
		}
	}

	out := mat.NewDense(n, K, nil)
	for i := 0; i < n; i++ {
		for k := 0; k < K; k++ {
			s := 0.0
			for j := 0; j < p; j++ {
				d := X.At(i, j) - nb.theta_[k][j]
				s += d * d / (nb.var_[k][j] + nb.epsilon_)
			}
			out.Set(i, k, priors[k]+norm[k]-0.5*s)
		}
	}
	return out, nil
}

// PredictLogProba returns normalised log posterior probabilities.
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("PredictLogProba", X)
	if err != nil {
		return nil, err
	}
	n, K := jll.Dims()
	row := make([]float64, K)
	for i := 0; i < n; i++ {
		mat.Row(row, i, jll)
		floats.AddConst(-floats.LogSumExp(row), row)
		jll.SetRow(i, row)
	}
	return jll, nil
}

// PredictProba returns posterior class probabilities.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	out := logProba.(*mat.Dense)
	out.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, out)
	return out, nil
}

// Predict returns the class with the highest posterior.
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	jll, err := nb.jointLogLikelihood("Predict", X)
	if err != nil {
		return nil, err
	}
	n, K := jll.Dims()
	out := mat.NewDense(n, 1, nil)
	row := make([]float64, K)
	for i := 0; i < n; i++ {
		mat.Row(row, i, jll)
		out.Set(i, 0, nb.classes_[floats.MaxIdx(row)])
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (nb *GaussianNB) Score(X, y mat.Matrix) float64 {
	return model.MeanAccuracy(nb, X, y)
}

// Classes returns the class labels in model order.
func (nb *GaussianNB) Classes() []float64 {
	return append([]float64(nil), nb.classes_...)
}

// NSamplesSeen returns the number of samples used so far.
func (nb *GaussianNB) NSamplesSeen() int {
	return nb.nSamplesSeen
}

// Theta returns a copy of the per-class feature means.
func (nb *GaussianNB) Theta() [][]float64 {
	out := make([][]float64, len(nb.theta_))
	for k, row := range nb.theta_ {
		out[k] = append([]float64(nil), row...)
	}
	return out
}

// Var returns a copy of the per-class feature variances, epsilon included.
func (nb *GaussianNB) Var() [][]float64 {
	out := make([][]float64, len(nb.var_))
	for k, row := range nb.var_ {
		out[k] = make([]float64, len(row))
		for j, v := range row {
			out[k][j] = v + nb.epsilon_
		}
	}
	return out
}

// GetParams returns the hyperparameters
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
		"priors":        nb.priors,
	}
}

// SetParams sets the hyperparameters
func (nb *GaussianNB) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "var_smoothing":
			nb.varSmoothing, ok = value.(float64)
		case "priors":
			nb.priors, ok = value.([]float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return nil
}

type gaussianNBSnapshot struct {
	State        model.ModelState
	VarSmoothing float64
	Priors       []float64
	Classes      []float64
	ClassCount   []float64
	Theta        [][]float64
	Var          [][]float64
	Epsilon      float64
	NFeatures    int
	NSamplesSeen int
}

// GobEncode serialises the fitted model.
func (nb *GaussianNB) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(gaussianNBSnapshot{
		State:        nb.state.GetState(),
		VarSmoothing: nb.varSmoothing,
		Priors:       nb.priors,
		Classes:      nb.classes_,
		ClassCount:   nb.classCount_,
		Theta:        nb.theta_,
		Var:          nb.var_,
		Epsilon:      nb.epsilon_,
		NFeatures:    nb.nFeatures_,
		NSamplesSeen: nb.nSamplesSeen,
	})
	return buf.Bytes(), err
}

// GobDecode restores a model written by GobEncode.
func (nb *GaussianNB) GobDecode(data []byte) error {
	var snap gaussianNBSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	if nb.state == nil {
		nb.state = model.NewStateManager()
	}
	nb.state.SetState(snap.State)
	nb.varSmoothing = snap.VarSmoothing
	nb.priors = snap.Priors
	nb.classes_ = snap.Classes
	nb.classCount_ = snap.ClassCount
	nb.theta_ = snap.Theta
	nb.var_ = snap.Var
	nb.epsilon_ = snap.Epsilon
	nb.nFeatures_ = snap.NFeatures
	nb.nSamplesSeen = snap.NSamplesSeen
	return nil
}
