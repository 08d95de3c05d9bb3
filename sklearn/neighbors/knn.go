// Package neighbors implements nearest-neighbour classification compatible
// with scikit-learn's KNeighborsClassifier.
package neighbors

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/core/parallel"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.ProbabilisticClassifier = (*KNeighborsClassifier)(nil)
	_ model.ParameterGetter         = (*KNeighborsClassifier)(nil)
	_ model.ParameterSetter         = (*KNeighborsClassifier)(nil)
)

// parallelThreshold is the number of query rows below which prediction runs
// on the calling goroutine.
const parallelThreshold = 64

// KNeighborsClassifier votes among the k training rows closest to each query
// row. Distances are Euclidean (or Manhattan); ties in distance are broken by
// training row order.
type KNeighborsClassifier struct {
	state *model.StateManager

	nNeighbors int
	weights    string // "uniform" or "distance"
	metric     string // "euclidean" or "manhattan"

	fitX_     [][]float64
	fitY_     []int
	classes_  []float64
	nClasses_ int
}

// KNNOption is a functional option for KNeighborsClassifier
type KNNOption func(*KNeighborsClassifier)

// NewKNeighborsClassifier creates a classifier with k=5, uniform weights and
// the Euclidean metric.
func NewKNeighborsClassifier(opts ...KNNOption) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
		weights:    "uniform",
		metric:     "euclidean",
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// WithNNeighbors sets k
func WithNNeighbors(k int) KNNOption {
	return func(knn *KNeighborsClassifier) { knn.nNeighbors = k }
}

// WithWeights sets the vote weighting ("uniform" or "distance")
func WithWeights(w string) KNNOption {
	return func(knn *KNeighborsClassifier) { knn.weights = w }
}

// WithMetric sets the distance metric ("euclidean" or "manhattan")
func WithMetric(m string) KNNOption {
	return func(knn *KNeighborsClassifier) { knn.metric = m }
}

func (knn *KNeighborsClassifier) validateParams() error {
	if knn.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be >= 1", knn.nNeighbors)
	}
	if knn.weights != "uniform" && knn.weights != "distance" {
		return errors.NewValidationError("weights", "must be 'uniform' or 'distance'", knn.weights)
	}
	if knn.metric != "euclidean" && knn.metric != "manhattan" {
		return errors.NewValidationError("metric", "must be 'euclidean' or 'manhattan'", knn.metric)
	}
	return nil
}

// Fit stores the training data.
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if err := knn.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.ValidateXY("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if knn.nNeighbors > nSamples {
		return errors.NewValidationError("n_neighbors", fmt.Sprintf("must be <= n_samples (%d)", nSamples), knn.nNeighbors)
	}

	knn.classes_, knn.fitY_ = model.EncodeLabels(y)
	knn.nClasses_ = len(knn.classes_)
	knn.fitX_ = make([][]float64, nSamples)
	for i := range knn.fitX_ {
		knn.fitX_[i] = mat.Row(nil, i, X)
	}

	knn.state.SetDimensions(nFeatures, nSamples)
	knn.state.SetFitted()
	return nil
}

type neighbor struct {
	dist  float64
	index int
}

// kNearest returns the k closest training rows to q, nearest first.
func (knn *KNeighborsClassifier) kNearest(q []float64) []neighbor {
	k := knn.nNeighbors
	best := make([]neighbor, 0, k+1)
	for i, row := range knn.fitX_ {
		var d float64
		if knn.metric == "manhattan" {
			d = floats.Distance(q, row, 1)
		} else {
			d = floats.Distance(q, row, 2)
		}
		if len(best) == k && d >= best[k-1].dist {
			continue
		}
		// insertion keeps earlier rows ahead on equal distance
		pos := len(best)
		for pos > 0 && best[pos-1].dist > d {
			pos--
		}
		best = append(best, neighbor{})
		copy(best[pos+1:], best[pos:])
		best[pos] = neighbor{dist: d, index: i}
		if len(best) > k {
			best = best[:k]
		}
	}
	return best
}

func (knn *KNeighborsClassifier) vote(q []float64, out []float64) {
	for c := range out {
		out[c] = 0
	}
	nb := knn.kNearest(q)

	if knn.weights == "distance" {
		// exact matches take all the weight
		exact := false
		for _, n := range nb {
			if n.dist == 0 {
				out[knn.fitY_[n.index]]++
				exact = true
			}
		}
		if !exact {
			for _, n := range nb {
				out[knn.fitY_[n.index]] += 1 / n.dist
			}
		}
	} else {
		for _, n := range nb {
			out[knn.fitY_[n.index]]++
		}
	}
	floats.Scale(1/floats.Sum(out), out)
}

// PredictProba returns, for every row, the (weighted) share of neighbours
// in each class.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := knn.state.RequireFitted("KNeighborsClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := knn.state.CheckFeatures("KNeighborsClassifier.PredictProba", X); err != nil {
		return nil, err
	}

	n, p := X.Dims()
	out := mat.NewDense(n, knn.nClasses_, nil)
	parallel.ParallelizeWithThreshold(n, parallelThreshold, func(start, end int) {
		q := make([]float64, p)
		probs := make([]float64, knn.nClasses_)
		for i := start; i < end; i++ {
			mat.Row(q, i, X)
			knn.vote(q, probs)
			out.SetRow(i, probs)
		}
	})
	return out, nil
}

// Predict returns the class with the most votes; ties go to the smaller label.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probs, err := knn.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	row := make([]float64, knn.nClasses_)
	for i := 0; i < n; i++ {
		mat.Row(row, i, probs)
		out.Set(i, 0, knn.classes_[floats.MaxIdx(row)])
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (knn *KNeighborsClassifier) Score(X, y mat.Matrix) float64 {
	return model.MeanAccuracy(knn, X, y)
}

// Classes returns the sorted class labels seen during Fit.
func (knn *KNeighborsClassifier) Classes() []float64 {
	return append([]float64(nil), knn.classes_...)
}

// GetParams returns the hyperparameters
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.nNeighbors,
		"weights":     knn.weights,
		"metric":      knn.metric,
	}
}

// SetParams sets the hyperparameters
func (knn *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_neighbors":
			knn.nNeighbors, ok = value.(int)
		case "weights":
			knn.weights, ok = value.(string)
		case "metric":
			knn.metric, ok = value.(string)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return knn.validateParams()
}

type knnSnapshot struct {
	State      model.ModelState
	NNeighbors int
	Weights    string
	Metric     string
	FitX       [][]float64
	FitY       []int
	Classes    []float64
}

// GobEncode serialises the stored training set.
func (knn *KNeighborsClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(knnSnapshot{
		State:      knn.state.GetState(),
		NNeighbors: knn.nNeighbors,
		Weights:    knn.weights,
		Metric:     knn.metric,
		FitX:       knn.fitX_,
		FitY:       knn.fitY_,
		Classes:    knn.classes_,
	})
	return buf.Bytes(), err
}

// GobDecode restores a classifier written by GobEncode.
func (knn *KNeighborsClassifier) GobDecode(data []byte) error {
	var snap knnSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	if knn.state == nil {
		knn.state = model.NewStateManager()
	}
	knn.state.SetState(snap.State)
	knn.nNeighbors = snap.NNeighbors
	knn.weights = snap.Weights
	knn.metric = snap.Metric
	knn.fitX_ = snap.FitX
	knn.fitY_ = snap.FitY
	knn.classes_ = snap.Classes
	knn.nClasses_ = len(snap.Classes)
	return nil
}
