package ensemble

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.ProbabilisticClassifier = (*GradientBoostingClassifier)(nil)
	_ model.FeatureImportancer      = (*GradientBoostingClassifier)(nil)
	_ model.ParameterGetter         = (*GradientBoostingClassifier)(nil)
	_ model.ParameterSetter         = (*GradientBoostingClassifier)(nil)
)

// GBNode is one node of a boosted tree. Leaves carry the already shrunk
// output value; internal nodes send x[Feature] <= Threshold to Left.
type GBNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	IsLeaf    bool
	Value     float64
	Gain      float64
	Cover     float64
}

// GBTree is a single regression tree on the logit scale.
type GBTree struct {
	Nodes []GBNode
}

func (t *GBTree) predict(x []float64) float64 {
	i := 0
	for !t.Nodes[i].IsLeaf {
		if x[t.Nodes[i].Feature] <= t.Nodes[i].Threshold {
			i = t.Nodes[i].Left
		} else {
			i = t.Nodes[i].Right
		}
	}
	return t.Nodes[i].Value
}

// GradientBoostingClassifier is a binary classifier boosting second-order
// regression trees on the logistic loss, XGBoost style.
//
// Each round fits a tree to the gradient g = p - y and hessian h = p(1-p) of
// the current raw score. A split is scored as
//
//	0.5 * (GL²/(HL+λ) + GR²/(HR+λ) - G²/(H+λ)) - γ
//
// and a leaf outputs -G/(H+λ) scaled by the learning rate.
type GradientBoostingClassifier struct {
	state *model.StateManager

	nEstimators    int
	maxDepth       int
	learningRate   float64
	lambda         float64
	minChildWeight float64
	gamma          float64
	subsample      float64
	randomState    int64

	trees_              []GBTree
	baseScore_          float64
	classes_            []float64
	featureImportances_ []float64
	trainLoss_          []float64
}

// GradientBoostingOption is a functional option for GradientBoostingClassifier
type GradientBoostingOption func(*GradientBoostingClassifier)

// NewGradientBoostingClassifier creates a booster with XGBoost defaults:
// 100 rounds, depth 6, eta 0.3, lambda 1, min_child_weight 1.
func NewGradientBoostingClassifier(opts ...GradientBoostingOption) *GradientBoostingClassifier {
	gb := &GradientBoostingClassifier{
		state:          model.NewStateManager(),
		nEstimators:    100,
		maxDepth:       6,
		learningRate:   0.3,
		lambda:         1.0,
		minChildWeight: 1.0,
		gamma:          0,
		subsample:      1.0,
		randomState:    42,
	}
	for _, opt := range opts {
		opt(gb)
	}
	return gb
}

// WithBoostingRounds sets the number of boosting rounds
func WithBoostingRounds(n int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.nEstimators = n }
}

// WithBoostMaxDepth sets the maximum depth of each tree
func WithBoostMaxDepth(depth int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.maxDepth = depth }
}

// WithLearningRate sets the shrinkage applied to every leaf
func WithLearningRate(eta float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.learningRate = eta }
}

// WithLambda sets the L2 regularisation on leaf weights
func WithLambda(lambda float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.lambda = lambda }
}

// WithMinChildWeight sets the minimum hessian sum in a child
func WithMinChildWeight(w float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.minChildWeight = w }
}

// WithGamma sets the minimum loss reduction required to split
func WithGamma(gamma float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.gamma = gamma }
}

// WithSubsample sets the row fraction sampled for each round
func WithSubsample(frac float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.subsample = frac }
}

// WithBoostRandomState seeds row subsampling
func WithBoostRandomState(seed int64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.randomState = seed }
}

func (gb *GradientBoostingClassifier) validateParams() error {
	switch {
	case gb.nEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", gb.nEstimators)
	case gb.maxDepth < 1:
		return errors.NewValidationError("max_depth", "must be >= 1", gb.maxDepth)
	case gb.learningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", gb.learningRate)
	case gb.lambda < 0:
		return errors.NewValidationError("lambda", "must be >= 0", gb.lambda)
	case gb.minChildWeight < 0:
		return errors.NewValidationError("min_child_weight", "must be >= 0", gb.minChildWeight)
	case gb.gamma < 0:
		return errors.NewValidationError("gamma", "must be >= 0", gb.gamma)
	case gb.subsample <= 0 || gb.subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", gb.subsample)
	}
	return nil
}

// Fit boosts nEstimators trees on X and binary labels y.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	if err := gb.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.ValidateXY("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	classes, encoded := model.EncodeLabels(y)
	switch {
	case len(classes) < 2:
		return errors.NewModelError("GradientBoostingClassifier.Fit", "invalid labels", errors.ErrSingleClass)
	case len(classes) > 2:
		return errors.NewValidationError("y", "only binary classification is supported", len(classes))
	}

	logger := log.GetLoggerWithName("GradientBoostingClassifier")

	target := make([]float64, nSamples)
	for i, c := range encoded {
		target[i] = float64(c)
	}
	pos := floats.Sum(target) / float64(nSamples)
	base := math.Log(pos / (1 - pos))

	cols := make([][]float64, nFeatures)
	orders := make([][]int, nFeatures)
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
		order := make([]int, nSamples)
		for i := range order {
			order[i] = i
		}
		col := cols[j]
		sort.SliceStable(order, func(a, b int) bool { return col[order[a]] < col[order[b]] })
		orders[j] = order
	}

	rng := rand.New(rand.NewSource(gb.randomState))
	raw := make([]float64, nSamples)
	for i := range raw {
		raw[i] = base
	}
	grad := make([]float64, nSamples)
	hess := make([]float64, nSamples)
	gains := make([]float64, nFeatures)
	row := make([]float64, nFeatures)

	gb.trees_ = make([]GBTree, 0, gb.nEstimators)
	gb.trainLoss_ = make([]float64, 0, gb.nEstimators)

	for round := 0; round < gb.nEstimators; round++ {
		for i := range raw {
			p := errors.Sigmoid(raw[i])
			grad[i] = p - target[i]
			hess[i] = math.Max(p*(1-p), 1e-16)
		}

		inSample := gb.sampleRows(nSamples, rng)
		t := gb.buildTree(cols, orders, grad, hess, inSample, gains)
		gb.trees_ = append(gb.trees_, t)

		for i := range raw {
			for j := range row {
				row[j] = cols[j][i]
			}
			raw[i] += t.predict(row)
		}

		loss := logLoss(raw, target)
		if err := errors.CheckScalar("GradientBoostingClassifier.Fit", loss, round); err != nil {
			return err
		}
		gb.trainLoss_ = append(gb.trainLoss_, loss)
		if (round+1)%10 == 0 {
			logger.Debug("Boosting progress",
				log.IterationKey, round+1,
				log.LossKey, loss,
			)
		}
	}

	if total := floats.Sum(gains); total > 0 {
		floats.Scale(1/total, gains)
	}
	gb.baseScore_ = base
	gb.classes_ = classes
	gb.featureImportances_ = gains
	gb.state.SetDimensions(nFeatures, nSamples)
	gb.state.SetFitted()
	return nil
}

// sampleRows returns the membership mask of the rows used this round; nil
// means every row.
func (gb *GradientBoostingClassifier) sampleRows(n int, rng *rand.Rand) []bool {
	if gb.subsample >= 1 {
		return nil
	}
	k := int(math.Ceil(gb.subsample * float64(n)))
	mask := make([]bool, n)
	for _, i := range rng.Perm(n)[:k] {
		mask[i] = true
	}
	return mask
}

type splitCandidate struct {
	gain      float64
	feature   int
	threshold float64
	gl, hl    float64
}

// buildTree grows one tree level by level. Each level makes a single pass
// over every presorted feature column, keeping running left sums per open
// node, so the cost per level is O(n·p) regardless of node count.
func (gb *GradientBoostingClassifier) buildTree(cols [][]float64, orders [][]int, grad, hess []float64, inSample []bool, gains []float64) GBTree {
	n := len(grad)
	nodeOf := make([]int, n)
	var g0, h0 float64
	for i := 0; i < n; i++ {
		if inSample != nil && !inSample[i] {
			nodeOf[i] = -1
			continue
		}
		g0 += grad[i]
		h0 += hess[i]
	}

	t := GBTree{Nodes: []GBNode{{Cover: h0}}}
	sumG := []float64{g0}
	open := []int{0}

	for depth := 0; depth < gb.maxDepth && len(open) > 0; depth++ {
		slot := make(map[int]int, len(open))
		for s, id := range open {
			slot[id] = s
		}
		best := make([]splitCandidate, len(open))
		gl := make([]float64, len(open))
		hl := make([]float64, len(open))
		last := make([]float64, len(open))
		seen := make([]bool, len(open))

		for j, order := range orders {
			for s := range open {
				gl[s], hl[s], seen[s] = 0, 0, false
			}
			col := cols[j]
			for _, i := range order {
				id := nodeOf[i]
				if id < 0 {
					continue
				}
				s, ok := slot[id]
				if !ok {
					continue
				}
				v := col[i]
				if seen[s] && v > last[s] {
					G, H := sumG[id], t.Nodes[id].Cover
					hr := H - hl[s]
					if hl[s] >= gb.minChildWeight && hr >= gb.minChildWeight {
						gain := gb.splitGain(gl[s], hl[s], G-gl[s], hr, G, H)
						if gain > best[s].gain {
							best[s] = splitCandidate{gain: gain, feature: j, threshold: midpoint(last[s], v), gl: gl[s], hl: hl[s]}
						}
					}
				}
				gl[s] += grad[i]
				hl[s] += hess[i]
				last[s] = v
				seen[s] = true
			}
		}

		var next []int
		split := make(map[int]bool, len(open))
		for s, id := range open {
			b := best[s]
			if b.gain <= 0 {
				continue
			}
			left, right := len(t.Nodes), len(t.Nodes)+1
			G, H := sumG[id], t.Nodes[id].Cover
			t.Nodes = append(t.Nodes, GBNode{Cover: b.hl}, GBNode{Cover: H - b.hl})
			sumG = append(sumG, b.gl, G-b.gl)
			nd := &t.Nodes[id]
			nd.Feature, nd.Threshold = b.feature, b.threshold
			nd.Left, nd.Right, nd.Gain = left, right, b.gain
			gains[b.feature] += b.gain
			split[id] = true
			next = append(next, left, right)
		}
		for i := 0; i < n; i++ {
			id := nodeOf[i]
			if id < 0 || !split[id] {
				continue
			}
			nd := t.Nodes[id]
			if cols[nd.Feature][i] <= nd.Threshold {
				nodeOf[i] = nd.Left
			} else {
				nodeOf[i] = nd.Right
			}
		}
		for _, id := range open {
			if !split[id] {
				gb.makeLeaf(&t.Nodes[id], sumG[id])
			}
		}
		open = next
	}
	for _, id := range open {
		gb.makeLeaf(&t.Nodes[id], sumG[id])
	}
	return t
}

// midpoint returns a threshold t with lo <= t < hi, so rows equal to hi
// always go right.
func midpoint(lo, hi float64) float64 {
	t := lo + (hi-lo)/2
	if t >= hi {
		t = lo
	}
	return t
}

func (gb *GradientBoostingClassifier) splitGain(gl, hl, gr, hr, g, h float64) float64 {
	return 0.5*(gl*gl/(hl+gb.lambda)+gr*gr/(hr+gb.lambda)-g*g/(h+gb.lambda)) - gb.gamma
}

func (gb *GradientBoostingClassifier) makeLeaf(nd *GBNode, g float64) {
	nd.IsLeaf = true
	nd.Value = -g / (nd.Cover + gb.lambda) * gb.learningRate
}

func logLoss(raw, target []float64) float64 {
	var sum float64
	for i, r := range raw {
		p := errors.Sigmoid(r)
		sum -= target[i]*errors.StabilizeLog(p) + (1-target[i])*errors.StabilizeLog(1-p)
	}
	return sum / float64(len(raw))
}

// DecisionFunction returns the raw logit score for each row.
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := gb.state.RequireFitted("GradientBoostingClassifier", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := gb.state.CheckFeatures("GradientBoostingClassifier.DecisionFunction", X); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	out := mat.NewDense(n, 1, nil)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		score := gb.baseScore_
		for k := range gb.trees_ {
			score += gb.trees_[k].predict(row)
		}
		out.Set(i, 0, score)
	}
	return out, nil
}

// PredictProba returns [P(classes[0]), P(classes[1])] per row.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	raw, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, _ := raw.Dims()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := errors.Sigmoid(raw.At(i, 0))
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns classes[1] where the raw score is positive.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	raw, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, _ := raw.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := gb.classes_[0]
		if raw.At(i, 0) > 0 {
			c = gb.classes_[1]
		}
		out.Set(i, 0, c)
	}
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (gb *GradientBoostingClassifier) Score(X, y mat.Matrix) float64 {
	return model.MeanAccuracy(gb, X, y)
}

// Classes returns the two class labels seen during Fit.
func (gb *GradientBoostingClassifier) Classes() []float64 {
	return append([]float64(nil), gb.classes_...)
}

// GetFeatureImportances returns total split gain per feature, normalised.
func (gb *GradientBoostingClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), gb.featureImportances_...)
}

// TrainLoss returns the training log-loss after each round.
func (gb *GradientBoostingClassifier) TrainLoss() []float64 {
	return append([]float64(nil), gb.trainLoss_...)
}

// NTrees returns the number of fitted trees.
func (gb *GradientBoostingClassifier) NTrees() int { return len(gb.trees_) }

// GetParams returns the hyperparameters
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     gb.nEstimators,
		"max_depth":        gb.maxDepth,
		"learning_rate":    gb.learningRate,
		"lambda":           gb.lambda,
		"min_child_weight": gb.minChildWeight,
		"gamma":            gb.gamma,
		"subsample":        gb.subsample,
		"random_state":     gb.randomState,
	}
}

// SetParams sets the hyperparameters
func (gb *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			gb.nEstimators, ok = value.(int)
		case "max_depth":
			gb.maxDepth, ok = value.(int)
		case "learning_rate":
			gb.learningRate, ok = value.(float64)
		case "lambda":
			gb.lambda, ok = value.(float64)
		case "min_child_weight":
			gb.minChildWeight, ok = value.(float64)
		case "gamma":
			gb.gamma, ok = value.(float64)
		case "subsample":
			gb.subsample, ok = value.(float64)
		case "random_state":
			gb.randomState, ok = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return gb.validateParams()
}

type boostingSnapshot struct {
	State          model.ModelState
	NEstimators    int
	MaxDepth       int
	LearningRate   float64
	Lambda         float64
	MinChildWeight float64
	Gamma          float64
	Subsample      float64
	RandomState    int64
	Trees          []GBTree
	BaseScore      float64
	Classes        []float64
	Importances    []float64
	TrainLoss      []float64
}

// GobEncode serialises the booster.
func (gb *GradientBoostingClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(boostingSnapshot{
		State:          gb.state.GetState(),
		NEstimators:    gb.nEstimators,
		MaxDepth:       gb.maxDepth,
		LearningRate:   gb.learningRate,
		Lambda:         gb.lambda,
		MinChildWeight: gb.minChildWeight,
		Gamma:          gb.gamma,
		Subsample:      gb.subsample,
		RandomState:    gb.randomState,
		Trees:          gb.trees_,
		BaseScore:      gb.baseScore_,
		Classes:        gb.classes_,
		Importances:    gb.featureImportances_,
		TrainLoss:      gb.trainLoss_,
	})
	return buf.Bytes(), err
}

// GobDecode restores a booster written by GobEncode.
func (gb *GradientBoostingClassifier) GobDecode(data []byte) error {
	var snap boostingSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	if gb.state == nil {
		gb.state = model.NewStateManager()
	}
	gb.state.SetState(snap.State)
	gb.nEstimators = snap.NEstimators
	gb.maxDepth = snap.MaxDepth
	gb.learningRate = snap.LearningRate
	gb.lambda = snap.Lambda
	gb.minChildWeight = snap.MinChildWeight
	gb.gamma = snap.Gamma
	gb.subsample = snap.Subsample
	gb.randomState = snap.RandomState
	gb.trees_ = snap.Trees
	gb.baseScore_ = snap.BaseScore
	gb.classes_ = snap.Classes
	gb.featureImportances_ = snap.Importances
	gb.trainLoss_ = snap.TrainLoss
	return nil
}
