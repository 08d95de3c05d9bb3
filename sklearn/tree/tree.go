// Package tree implements a CART decision tree classifier compatible with
// scikit-learn's DecisionTreeClassifier.
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.ProbabilisticClassifier = (*DecisionTreeClassifier)(nil)
	_ model.FeatureImportancer      = (*DecisionTreeClassifier)(nil)
	_ model.ParameterGetter         = (*DecisionTreeClassifier)(nil)
	_ model.ParameterSetter         = (*DecisionTreeClassifier)(nil)
)

// Node is one node of a fitted tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	NSamples  int
	Impurity  float64
	// Value holds the class distribution of the training samples that
	// reached this node, normalised to sum to 1.
	Value []float64
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

// DecisionTreeClassifier grows a binary tree by greedily choosing the split
// that minimises the weighted child impurity. Samples go left when
// x[feature] <= threshold.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // -1 for unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "" (all), "sqrt" or "log2"
	randomState     int64  // -1 draws a seed

	// Learned state
	nodes_              []Node
	classes_            []float64
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
	depth_              int
	nLeaves_            int

	rng *rand.Rand
}

// DecisionTreeOption is a functional option for DecisionTreeClassifier
type DecisionTreeOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults:
// gini, unlimited depth, min_samples_split=2, min_samples_leaf=1.
func NewDecisionTreeClassifier(opts ...DecisionTreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the impurity measure ("gini" or "entropy")
func WithCriterion(criterion string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth limits the depth of the tree; -1 means unlimited
func WithMaxDepth(depth int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node
func WithMinSamplesSplit(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples required in each leaf
func WithMinSamplesLeaf(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split:
// "" for all, "sqrt" or "log2".
func WithMaxFeatures(mode string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = mode }
}

// WithRandomState seeds the feature sampling used with WithMaxFeatures
func WithRandomState(seed int64) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

func (dt *DecisionTreeClassifier) validateParams() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	switch dt.maxFeatures {
	case "", "sqrt", "log2":
	default:
		return errors.NewValidationError("max_features", "must be '', 'sqrt' or 'log2'", dt.maxFeatures)
	}
	return nil
}

// builder holds the per-fit working data.
type builder struct {
	dt       *DecisionTreeClassifier
	cols     [][]float64 // column-major copy of X
	y        []int
	nFeat    int
	maxFeat  int
	gainByFt []float64
}

// Fit builds the tree from X (n×p) and y (n×1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.ValidateXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	classes, encoded := model.EncodeLabels(y)

	cols := make([][]float64, nFeatures)
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
	}

	seed := dt.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	dt.rng = rand.New(rand.NewSource(seed))

	b := &builder{
		dt:       dt,
		cols:     cols,
		y:        encoded,
		nFeat:    nFeatures,
		maxFeat:  resolveMaxFeatures(dt.maxFeatures, nFeatures),
		gainByFt: make([]float64, nFeatures),
	}

	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = nFeatures
	dt.nodes_ = dt.nodes_[:0]
	dt.depth_ = 0
	dt.nLeaves_ = 0

	idx := make([]int, nSamples)
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx, 0)

	total := 0.0
	for _, g := range b.gainByFt {
		total += g
	}
	dt.featureImportances_ = make([]float64, nFeatures)
	if total > 0 {
		for j, g := range b.gainByFt {
			dt.featureImportances_[j] = g / total
		}
	}

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

func resolveMaxFeatures(mode string, nFeatures int) int {
	var k int
	switch mode {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	if k > nFeatures {
		k = nFeatures
	}
	return k
}

func (b *builder) counts(idx []int) []float64 {
	c := make([]float64, b.dt.nClasses_)
	for _, i := range idx {
		c[b.y[i]]++
	}
	return c
}

func (b *builder) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	if b.dt.criterion == "entropy" {
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

// grow appends the subtree for idx and returns its node id.
func (b *builder) grow(idx []int, depth int) int {
	dt := b.dt
	counts := b.counts(idx)
	n := float64(len(idx))
	imp := b.impurity(counts, n)

	value := make([]float64, len(counts))
	for k, c := range counts {
		value[k] = c / n
	}

	id := len(dt.nodes_)
	dt.nodes_ = append(dt.nodes_, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		NSamples: len(idx),
		Impurity: imp,
		Value:    value,
	})
	if depth > dt.depth_ {
		dt.depth_ = depth
	}

	stop := imp <= 0 ||
		len(idx) < dt.minSamplesSplit ||
		len(idx) < 2*dt.minSamplesLeaf ||
		(dt.maxDepth >= 0 && depth >= dt.maxDepth)
	if stop {
		dt.nLeaves_++
		return id
	}

	feature, threshold, childImp, ok := b.bestSplit(idx, counts)
	if !ok {
		dt.nLeaves_++
		return id
	}
	b.gainByFt[feature] += n*imp - childImp

	var left, right []int
	col := b.cols[feature]
	for _, i := range idx {
		if col[i] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	dt.nodes_[id].Feature = feature
	dt.nodes_[id].Threshold = threshold
	dt.nodes_[id].Left = l
	dt.nodes_[id].Right = r
	return id
}

// bestSplit scans candidate features and returns the split with the lowest
// sample-weighted child impurity (n_left*imp_left + n_right*imp_right).
func (b *builder) bestSplit(idx []int, parent []float64) (feature int, threshold, childImp float64, ok bool) {
	features := make([]int, b.nFeat)
	for j := range features {
		features[j] = j
	}
	if b.maxFeat < b.nFeat {
		b.dt.rng.Shuffle(len(features), func(i, j int) { features[i], features[j] = features[j], features[i] })
	}

	minLeaf := b.dt.minSamplesLeaf
	n := len(idx)
	sorted := make([]int, n)
	left := make([]float64, len(parent))
	right := make([]float64, len(parent))
	best := math.Inf(1)

	for visited, f := range features {
		// keep looking past maxFeat only while nothing valid was found
		if visited >= b.maxFeat && ok {
			break
		}
		col := b.cols[f]
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return col[sorted[a]] < col[sorted[c]] })
		if col[sorted[0]] == col[sorted[n-1]] {
			continue
		}

		for k := range left {
			left[k] = 0
			right[k] = parent[k]
		}
		for i := 0; i < n-1; i++ {
			cls := b.y[sorted[i]]
			left[cls]++
			right[cls]--

			nl := i + 1
			nr := n - nl
			xi, xn := col[sorted[i]], col[sorted[i+1]]
			if xi == xn || nl < minLeaf || nr < minLeaf {
				continue
			}
			c := float64(nl)*b.impurity(left, float64(nl)) + float64(nr)*b.impurity(right, float64(nr))
			if c < best {
				best = c
				feature = f
				threshold = midpoint(xi, xn)
				ok = true
			}
		}
	}
	return feature, threshold, best, ok
}

// midpoint returns a threshold t with lo <= t < hi. Halfway between two
// adjacent floats can round up to hi, in which case lo is used.
func midpoint(lo, hi float64) float64 {
	t := lo + (hi-lo)/2
	if t >= hi {
		t = lo
	}
	return t
}

func (dt *DecisionTreeClassifier) leafFor(X mat.Matrix, i int) *Node {
	node := &dt.nodes_[0]
	for !node.IsLeaf() {
		if X.At(i, node.Feature) <= node.Threshold {
			node = &dt.nodes_[node.Left]
		} else {
			node = &dt.nodes_[node.Right]
		}
	}
	return node
}

func (dt *DecisionTreeClassifier) checkPredict(method string, X mat.Matrix) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	return dt.state.CheckFeatures("DecisionTreeClassifier."+method, X)
}

// PredictProba returns the class distribution of the leaf each row reaches.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, dt.nClasses_, nil)
	for i := 0; i < n; i++ {
		out.SetRow(i, dt.leafFor(X, i).Value)
	}
	return out, nil
}

// Predict returns the majority class of the leaf each row reaches.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("Predict", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, dt.classes_[argmax(dt.leafFor(X, i).Value)])
	}
	return out, nil
}

func argmax(v []float64) int {
	best := 0
	for k := 1; k < len(v); k++ {
		if v[k] > v[best] {
			best = k
		}
	}
	return best
}

// Score returns the mean accuracy on the given test data and labels.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	return model.MeanAccuracy(dt, X, y)
}

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalised total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the fitted tree (a lone root has depth 0).
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth_ }

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.nLeaves_ }

// GetParams returns the hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			dt.criterion, ok = value.(string)
		case "max_depth":
			dt.maxDepth, ok = value.(int)
		case "min_samples_split":
			dt.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			dt.minSamplesLeaf, ok = value.(int)
		case "max_features":
			dt.maxFeatures, ok = value.(string)
		case "random_state":
			dt.randomState, ok = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return dt.validateParams()
}

type treeSnapshot struct {
	State           model.ModelState
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	RandomState     int64
	Nodes           []Node
	Classes         []float64
	Importances     []float64
	Depth           int
	NLeaves         int
}

// GobEncode serialises the fitted tree.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(treeSnapshot{
		State:           dt.state.GetState(),
		Criterion:       dt.criterion,
		MaxDepth:        dt.maxDepth,
		MinSamplesSplit: dt.minSamplesSplit,
		MinSamplesLeaf:  dt.minSamplesLeaf,
		MaxFeatures:     dt.maxFeatures,
		RandomState:     dt.randomState,
		Nodes:           dt.nodes_,
		Classes:         dt.classes_,
		Importances:     dt.featureImportances_,
		Depth:           dt.depth_,
		NLeaves:         dt.nLeaves_,
	})
	return buf.Bytes(), err
}

// GobDecode restores a tree written by GobEncode.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var snap treeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	if dt.state == nil {
		dt.state = model.NewStateManager()
	}
	dt.state.SetState(snap.State)
	dt.criterion = snap.Criterion
	dt.maxDepth = snap.MaxDepth
	dt.minSamplesSplit = snap.MinSamplesSplit
	dt.minSamplesLeaf = snap.MinSamplesLeaf
	dt.maxFeatures = snap.MaxFeatures
	dt.randomState = snap.RandomState
	dt.nodes_ = snap.Nodes
	dt.classes_ = snap.Classes
	dt.nClasses_ = len(snap.Classes)
	dt.nFeatures_ = snap.State.NFeatures
	dt.featureImportances_ = snap.Importances
	dt.depth_ = snap.Depth
	dt.nLeaves_ = snap.NLeaves
	return nil
}
