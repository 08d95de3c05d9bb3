// Package linear_model provides linear classifiers compatible with
// scikit-learn's linear_model module.
package linear_model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

var (
	_ model.ProbabilisticClassifier = (*LogisticRegression)(nil)
	_ model.ParameterGetter         = (*LogisticRegression)(nil)
	_ model.ParameterSetter         = (*LogisticRegression)(nil)
)

// LogisticRegression implements logistic regression for classification
// Compatible with scikit-learn's LogisticRegression
//
// The objective follows scikit-learn: the summed log-loss plus
// ||w||²/(2C) for the "l2" penalty. The intercept is never penalised.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	randomState  int64   // Random seed for the "gd" solver's initial weights
	solver       string  // Solver: "lbfgs" or "gd"
	maxIter      int     // Maximum iterations
	multiClass   string  // Multi-class: "auto", "ovr", "multinomial"
	tol          float64 // Tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features or 1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []float64   // Unique class labels
	nClasses_  int         // Number of classes
	nFeatures_ int         // Number of features
	nIter_     []int       // Actual iterations per fitted problem
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		randomState:  -1,
		solver:       "lbfgs",
		maxIter:      100,
		multiClass:   "auto",
		tol:          1e-4,
	}

	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRSolver sets the optimization solver
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.solver = solver
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRMultiClass sets the multi-class strategy
func WithLRMultiClass(mode string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.multiClass = mode
	}
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

func (lr *LogisticRegression) validateParams() error {
	if lr.penalty != "l2" && lr.penalty != "none" {
		return errors.NewValidationError("penalty", "supported penalties are 'l2' and 'none'", lr.penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be >= 1", lr.maxIter)
	}
	if lr.solver != "lbfgs" && lr.solver != "gd" {
		return errors.NewValidationError("solver", "must be 'lbfgs' or 'gd'", lr.solver)
	}
	switch lr.multiClass {
	case "auto", "ovr", "multinomial":
	default:
		return errors.NewValidationError("multi_class", "must be 'auto', 'ovr' or 'multinomial'", lr.multiClass)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.ValidateXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}

	classes, encoded := model.EncodeLabels(y)
	if len(classes) < 2 {
		return errors.NewModelError("LogisticRegression.Fit", "invalid labels", errors.ErrSingleClass)
	}

	rows := make([][]float64, nSamples)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}

	lr.classes_ = classes
	lr.nClasses_ = len(classes)
	lr.nFeatures_ = nFeatures

	switch {
	case lr.nClasses_ == 2:
		target := make([]float64, nSamples)
		for i, k := range encoded {
			target[i] = float64(k)
		}
		w, b, iters, err := lr.fitBinary(rows, target)
		if err != nil {
			return err
		}
		lr.coef_ = [][]float64{w}
		lr.intercept_ = []float64{b}
		lr.nIter_ = []int{iters}
	case lr.multiClass == "ovr":
		if err := lr.fitOVR(rows, encoded); err != nil {
			return err
		}
	default:
		if err := lr.fitMultinomial(rows, encoded); err != nil {
			return err
		}
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// regStrength returns the per-sample L2 coefficient: 1/(C·n), or 0 without a penalty.
func (lr *LogisticRegression) regStrength(nSamples int) float64 {
	if lr.penalty == "none" {
		return 0
	}
	return 1.0 / (lr.C * float64(nSamples))
}

// fitBinary minimises the mean log-loss for targets in {0, 1}.
func (lr *LogisticRegression) fitBinary(rows [][]float64, target []float64) (w []float64, b float64, iters int, err error) {
	if lr.solver == "gd" {
		return lr.fitBinaryGD(rows, target)
	}

	n := len(rows)
	p := len(rows[0])
	lambda := lr.regStrength(n)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			loss := 0.0
			for i, row := range rows {
				z := floats.Dot(row, x[:p]) + x[p]
				loss += softplus(z) - target[i]*z
			}
			return loss/float64(n) + 0.5*lambda*floats.Dot(x[:p], x[:p])
		},
		Grad: func(grad, x []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i, row := range rows {
				z := floats.Dot(row, x[:p]) + x[p]
				residual := errors.Sigmoid(z) - target[i]
				floats.AddScaled(grad[:p], residual, row)
				grad[p] += residual
			}
			floats.Scale(1/float64(n), grad)
			floats.AddScaled(grad[:p], lambda, x[:p])
			if !lr.fitIntercept {
				grad[p] = 0
			}
		},
	}

	x, iters, err := lr.minimize(problem, make([]float64, p+1))
	if err != nil {
		return nil, 0, 0, err
	}
	return x[:p], x[p], iters, nil
}

// fitBinaryGD is plain gradient descent with a decaying step size.
func (lr *LogisticRegression) fitBinaryGD(rows [][]float64, target []float64) ([]float64, float64, int, error) {
	n := len(rows)
	p := len(rows[0])
	lambda := lr.regStrength(n)

	seed := lr.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	weights := make([]float64, p)
	for j := range weights {
		weights[j] = rng.NormFloat64() * 0.01
	}
	intercept := 0.0

	gradWeights := make([]float64, p)
	baseLearningRate := 1.0
	iter := 0
	for ; iter < lr.maxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0
		for i, row := range rows {
			residual := errors.Sigmoid(floats.Dot(row, weights)+intercept) - target[i]
			gradIntercept += residual
			floats.AddScaled(gradWeights, residual, row)
		}
		floats.Scale(1/float64(n), gradWeights)
		gradIntercept /= float64(n)
		floats.AddScaled(gradWeights, lambda, weights)

		if err := errors.CheckNumericalStability("LogisticRegression.gd", gradWeights, iter); err != nil {
			return nil, 0, iter, err
		}

		maxGrad := math.Max(floats.Norm(gradWeights, math.Inf(1)), math.Abs(gradIntercept))
		if maxGrad < lr.tol {
			return weights, intercept, iter + 1, nil
		}

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		floats.AddScaled(weights, -learningRate, gradWeights)
		if lr.fitIntercept {
			intercept -= learningRate * gradIntercept
		}
	}

	errors.Warn(errors.NewConvergenceWarning("LogisticRegression", iter, ""))
	return weights, intercept, iter, nil
}

// fitOVR fits one binary problem per class.
func (lr *LogisticRegression) fitOVR(rows [][]float64, encoded []int) error {
	lr.coef_ = make([][]float64, lr.nClasses_)
	lr.intercept_ = make([]float64, lr.nClasses_)
	lr.nIter_ = make([]int, lr.nClasses_)

	target := make([]float64, len(rows))
	for k := 0; k < lr.nClasses_; k++ {
		for i, c := range encoded {
			target[i] = 0
			if c == k {
				target[i] = 1
			}
		}
		w, b, iters, err := lr.fitBinary(rows, target)
		if err != nil {
			return err
		}
		lr.coef_[k] = w
		lr.intercept_[k] = b
		lr.nIter_[k] = iters
	}
	return nil
}

// fitMultinomial minimises the softmax cross-entropy over all classes jointly.
func (lr *LogisticRegression) fitMultinomial(rows [][]float64, encoded []int) error {
	if lr.solver != "lbfgs" {
		return errors.NewValidationError("solver", "multinomial fitting requires 'lbfgs'", lr.solver)
	}
	n := len(rows)
	p := len(rows[0])
	K := lr.nClasses_
	stride := p + 1
	lambda := lr.regStrength(n)
	scores := make([]float64, K)

	computeScores := func(x, row []float64) {
		for k := 0; k < K; k++ {
			block := x[k*stride : (k+1)*stride]
			scores[k] = floats.Dot(row, block[:p]) + block[p]
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			loss := 0.0
			for i, row := range rows {
				computeScores(x, row)
				loss += floats.LogSumExp(scores) - scores[encoded[i]]
			}
			reg := 0.0
			for k := 0; k < K; k++ {
				w := x[k*stride : k*stride+p]
				reg += floats.Dot(w, w)
			}
			return loss/float64(n) + 0.5*lambda*reg
		},
		Grad: func(grad, x []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i, row := range rows {
				computeScores(x, row)
				lse := floats.LogSumExp(scores)
				for k := 0; k < K; k++ {
					residual := math.Exp(scores[k] - lse)
					if encoded[i] == k {
						residual--
					}
					block := grad[k*stride : (k+1)*stride]
					floats.AddScaled(block[:p], residual, row)
					block[p] += residual
				}
			}
			floats.Scale(1/float64(n), grad)
			for k := 0; k < K; k++ {
				floats.AddScaled(grad[k*stride:k*stride+p], lambda, x[k*stride:k*stride+p])
				if !lr.fitIntercept {
					grad[k*stride+p] = 0
				}
			}
		},
	}

	x, iters, err := lr.minimize(problem, make([]float64, K*stride))
	if err != nil {
		return err
	}
	lr.coef_ = make([][]float64, K)
	lr.intercept_ = make([]float64, K)
	for k := 0; k < K; k++ {
		lr.coef_[k] = append([]float64(nil), x[k*stride:k*stride+p]...)
		lr.intercept_[k] = x[k*stride+p]
	}
	lr.nIter_ = []int{iters}
	return nil
}

// minimize runs L-BFGS and raises a ConvergenceWarning when max_iter is hit.
func (lr *LogisticRegression) minimize(problem optimize.Problem, init []float64) ([]float64, int, error) {
	settings := &optimize.Settings{
		MajorIterations:   lr.maxIter,
		GradientThreshold: lr.tol,
		Converger: &optimize.FunctionConverge{
			Relative:   1e-12,
			Iterations: 20,
		},
	}
	result, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if result == nil {
		return nil, 0, errors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}
	if cerr := errors.CheckNumericalStability("LogisticRegression.lbfgs", result.X, result.Stats.MajorIterations); cerr != nil {
		return nil, 0, cerr
	}
	if result.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", result.Stats.MajorIterations, ""))
	} else if err != nil {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", result.Stats.MajorIterations, err.Error()))
	}
	return result.X, result.Stats.MajorIterations, nil
}

// softplus computes log(1 + exp(z)) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func (lr *LogisticRegression) checkPredict(method string, X mat.Matrix) error {
	if err := lr.state.RequireFitted("LogisticRegression", method); err != nil {
		return err
	}
	return lr.state.CheckFeatures("LogisticRegression."+method, X)
}

// DecisionFunction returns the linear scores: n×1 for binary problems, n×K otherwise.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.checkPredict("DecisionFunction", X); err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	out := mat.NewDense(nSamples, len(lr.coef_), nil)
	row := make([]float64, lr.nFeatures_)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		for k, w := range lr.coef_ {
			out.Set(i, k, floats.Dot(row, w)+lr.intercept_[k])
		}
	}
	return out, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, nCols := scores.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		if nCols == 1 {
			// Binary: positive score means the second class
			if scores.At(i, 0) > 0 {
				predictions.Set(i, 0, lr.classes_[1])
			} else {
				predictions.Set(i, 0, lr.classes_[0])
			}
			continue
		}
		best := 0
		for k := 1; k < nCols; k++ {
			if scores.At(i, k) > scores.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, lr.classes_[best])
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, nCols := scores.Dims()
	probas := mat.NewDense(nSamples, lr.nClasses_, nil)
	buf := make([]float64, nCols)
	for i := 0; i < nSamples; i++ {
		if nCols == 1 {
			prob1 := errors.Sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1.0-prob1)
			probas.Set(i, 1, prob1)
			continue
		}
		mat.Row(buf, i, scores)
		if lr.multiClass == "ovr" {
			// normalised one-vs-rest sigmoids, as scikit-learn does
			for k := range buf {
				buf[k] = errors.Sigmoid(buf[k])
			}
			floats.Scale(1/floats.Sum(buf), buf)
		} else {
			lse := floats.LogSumExp(buf)
			for k := range buf {
				buf[k] = math.Exp(buf[k] - lse)
			}
		}
		probas.SetRow(i, buf)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	return model.MeanAccuracy(lr, X, y)
}

// Classes returns the sorted class labels seen during Fit
func (lr *LogisticRegression) Classes() []float64 {
	return append([]float64(nil), lr.classes_...)
}

// Coef returns a copy of the learned coefficients
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for k, w := range lr.coef_ {
		out[k] = append([]float64(nil), w...)
	}
	return out
}

// Intercept returns a copy of the learned intercepts
func (lr *LogisticRegression) Intercept() []float64 {
	return append([]float64(nil), lr.intercept_...)
}

// NIter returns the number of solver iterations per fitted problem
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"multi_class":   lr.multiClass,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters. Values are checked on the next Fit.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "random_state":
			lr.randomState, ok = value.(int64)
		case "solver":
			lr.solver, ok = value.(string)
		case "max_iter":
			lr.maxIter, ok = value.(int)
		case "multi_class":
			lr.multiClass, ok = value.(string)
		case "tol":
			lr.tol, ok = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return nil
}

type logisticSnapshot struct {
	State        model.ModelState
	Penalty      string
	C            float64
	FitIntercept bool
	RandomState  int64
	Solver       string
	MaxIter      int
	MultiClass   string
	Tol          float64
	Coef         [][]float64
	Intercept    []float64
	Classes      []float64
	NIter        []int
}

// GobEncode serialises the fitted model.
func (lr *LogisticRegression) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(logisticSnapshot{
		State:        lr.state.GetState(),
		Penalty:      lr.penalty,
		C:            lr.C,
		FitIntercept: lr.fitIntercept,
		RandomState:  lr.randomState,
		Solver:       lr.solver,
		MaxIter:      lr.maxIter,
		MultiClass:   lr.multiClass,
		Tol:          lr.tol,
		Coef:         lr.coef_,
		Intercept:    lr.intercept_,
		Classes:      lr.classes_,
		NIter:        lr.nIter_,
	})
	return buf.Bytes(), err
}

// GobDecode restores a model written by GobEncode.
func (lr *LogisticRegression) GobDecode(data []byte) error {
	var snap logisticSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	if lr.state == nil {
		lr.state = model.NewStateManager()
	}
	lr.state.SetState(snap.State)
	lr.penalty = snap.Penalty
	lr.C = snap.C
	lr.fitIntercept = snap.FitIntercept
	lr.randomState = snap.RandomState
	lr.solver = snap.Solver
	lr.maxIter = snap.MaxIter
	lr.multiClass = snap.MultiClass
	lr.tol = snap.Tol
	lr.coef_ = snap.Coef
	lr.intercept_ = snap.Intercept
	lr.classes_ = snap.Classes
	lr.nClasses_ = len(snap.Classes)
	lr.nFeatures_ = snap.State.NFeatures
	lr.nIter_ = snap.NIter
	return nil
}
