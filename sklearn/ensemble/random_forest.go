// Package ensemble implements tree ensembles: a bagged random forest and a
// second-order gradient boosted classifier.
package ensemble

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math/rand"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/core/parallel"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/sklearn/tree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.ProbabilisticClassifier = (*RandomForestClassifier)(nil)
	_ model.FeatureImportancer      = (*RandomForestClassifier)(nil)
	_ model.ParameterGetter         = (*RandomForestClassifier)(nil)
	_ model.ParameterSetter         = (*RandomForestClassifier)(nil)
)

// RandomForestClassifier averages the class probabilities of decision trees
// grown on bootstrap samples with a random feature subset at every split.
//
// Per-tree seeds are drawn from the forest seed before any tree is grown, so
// the fitted forest does not depend on how many trees are built concurrently.
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     int64
	nJobs           int

	trees_              []*tree.DecisionTreeClassifier
	classes_            []float64
	featureImportances_ []float64
}

// RandomForestOption is a functional option for RandomForestClassifier
type RandomForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a forest with scikit-learn defaults:
// 100 trees, gini, sqrt features per split, bootstrap sampling.
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithNEstimators sets the number of trees
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithForestMaxDepth limits the depth of every tree; -1 means unlimited
func WithForestMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithForestMaxFeatures sets the per-split feature sampling ("", "sqrt", "log2")
func WithForestMaxFeatures(mode string) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = mode }
}

// WithBootstrap toggles bootstrap sampling of the training rows
func WithBootstrap(b bool) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithForestRandomState seeds the forest
func WithForestRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs bounds the number of trees grown concurrently; <= 0 uses all CPUs
func WithNJobs(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// Fit grows the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext grows the forest and stops early when ctx is cancelled.
func (rf *RandomForestClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	nSamples, nFeatures, err := model.ValidateXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	classes, _ := model.EncodeLabels(y)

	seed := rf.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	err = parallel.ForEach(ctx, rf.nEstimators, rf.nJobs, func(_ context.Context, t int) error {
		Xt, yt := X, y
		if rf.bootstrap {
			Xt, yt = bootstrapSample(X, y, nSamples, rand.New(rand.NewSource(seeds[t])))
		}
		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(rf.maxFeatures),
			tree.WithRandomState(seeds[t]),
		)
		if err := dt.Fit(Xt, yt); err != nil {
			return errors.Wrapf(err, "tree %d", t)
		}
		trees[t] = dt
		return nil
	})
	if err != nil {
		return err
	}

	importances := make([]float64, nFeatures)
	for _, dt := range trees {
		floats.Add(importances, dt.GetFeatureImportances())
	}
	if total := floats.Sum(importances); total > 0 {
		floats.Scale(1/total, importances)
	}

	rf.trees_ = trees
	rf.classes_ = classes
	rf.featureImportances_ = importances
	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()
	return nil
}

func bootstrapSample(X, y mat.Matrix, n int, rng *rand.Rand) (*mat.Dense, *mat.Dense) {
	_, p := X.Dims()
	Xb := mat.NewDense(n, p, nil)
	yb := mat.NewDense(n, 1, nil)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		src := rng.Intn(n)
		mat.Row(row, src, X)
		Xb.SetRow(i, row)
		yb.Set(i, 0, y.At(src, 0))
	}
	return Xb, yb
}

// PredictProba averages the tree probabilities. A tree whose bootstrap sample
// missed a class contributes 0 for it.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := rf.state.CheckFeatures("RandomForestClassifier.PredictProba", X); err != nil {
		return nil, err
	}

	n, _ := X.Dims()
	K := len(rf.classes_)
	index := make(map[float64]int, K)
	for k, c := range rf.classes_ {
		index[c] = k
	}

	out := mat.NewDense(n, K, nil)
	for _, dt := range rf.trees_ {
		p, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		for tk, c := range dt.Classes() {
			k := index[c]
			for i := 0; i < n; i++ {
				out.Set(i, k, out.At(i, k)+p.At(i, tk))
			}
		}
	}
	out.Scale(1/float64(len(rf.trees_)), out)
	return out, nil
}

// Predict returns the class with the highest averaged probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, K := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	row := make([]float64, K)
	for i := 0; i < n; i++ {
		mat.Row(row, i, proba)
		out.Set(i, 0, rf.classes_[floats.MaxIdx(row)])
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	return model.MeanAccuracy(rf, X, y)
}

// Classes returns the sorted class labels seen during Fit.
func (rf *RandomForestClassifier) Classes() []float64 {
	return append([]float64(nil), rf.classes_...)
}

// GetFeatureImportances returns the mean tree importance, normalised to sum to 1.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), rf.featureImportances_...)
}

// NTrees returns the number of fitted trees.
func (rf *RandomForestClassifier) NTrees() int {
	return len(rf.trees_)
}

// GetParams returns the hyperparameters
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams sets the hyperparameters
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			rf.nEstimators, ok = value.(int)
		case "criterion":
			rf.criterion, ok = value.(string)
		case "max_depth":
			rf.maxDepth, ok = value.(int)
		case "min_samples_split":
			rf.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			rf.minSamplesLeaf, ok = value.(int)
		case "max_features":
			rf.maxFeatures, ok = value.(string)
		case "bootstrap":
			rf.bootstrap, ok = value.(bool)
		case "random_state":
			rf.randomState, ok = value.(int64)
		case "n_jobs":
			rf.nJobs, ok = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return nil
}

type forestSnapshot struct {
	State           model.ModelState
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	RandomState     int64
	NJobs           int
	Trees           []*tree.DecisionTreeClassifier
	Classes         []float64
	Importances     []float64
}

// GobEncode serialises the forest, including every tree.
func (rf *RandomForestClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(forestSnapshot{
		State:           rf.state.GetState(),
		NEstimators:     rf.nEstimators,
		Criterion:       rf.criterion,
		MaxDepth:        rf.maxDepth,
		MinSamplesSplit: rf.minSamplesSplit,
		MinSamplesLeaf:  rf.minSamplesLeaf,
		MaxFeatures:     rf.maxFeatures,
		Bootstrap:       rf.bootstrap,
		RandomState:     rf.randomState,
		NJobs:           rf.nJobs,
		Trees:           rf.trees_,
		Classes:         rf.classes_,
		Importances:     rf.featureImportances_,
	})
	return buf.Bytes(), err
}

// GobDecode restores a forest written by GobEncode.
func (rf *RandomForestClassifier) GobDecode(data []byte) error {
	var snap forestSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	if rf.state == nil {
		rf.state = model.NewStateManager()
	}
	rf.state.SetState(snap.State)
	rf.nEstimators = snap.NEstimators
	rf.criterion = snap.Criterion
	rf.maxDepth = snap.MaxDepth
	rf.minSamplesSplit = snap.MinSamplesSplit
	rf.minSamplesLeaf = snap.MinSamplesLeaf
	rf.maxFeatures = snap.MaxFeatures
	rf.bootstrap = snap.Bootstrap
	rf.randomState = snap.RandomState
	rf.nJobs = snap.NJobs
	rf.trees_ = snap.Trees
	rf.classes_ = snap.Classes
	rf.featureImportances_ = snap.Importances
	return nil
}
