package ensemble

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"
	"testing"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// makeBlobs returns two noisy clusters around (0,0) and (3,3) plus one pure
// noise feature.
func makeBlobs(nPerClass int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	n := 2 * nPerClass
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := float64(i % 2)
		X.Set(i, 0, 3*c+rng.NormFloat64()*0.7)
		X.Set(i, 1, 3*c+rng.NormFloat64()*0.7)
		X.Set(i, 2, rng.NormFloat64())
		y.Set(i, 0, c)
	}
	return X, y
}

func assertRowsSumToOne(t *testing.T, proba mat.Matrix) {
	t.Helper()
	n, k := proba.Dims()
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < k; j++ {
			p := proba.At(i, j)
			if p < 0 || p > 1 {
				t.Fatalf("row %d: probability %v out of [0,1]", i, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("row %d: probabilities sum to %v", i, sum)
		}
	}
}

func TestRandomForest_FitPredict(t *testing.T) {
	X, y := makeBlobs(100, 1)
	rf := NewRandomForestClassifier(WithNEstimators(25), WithForestRandomState(42))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if rf.NTrees() != 25 {
		t.Errorf("expected 25 trees, got %d", rf.NTrees())
	}
	if acc := rf.Score(X, y); acc < 0.95 {
		t.Errorf("training accuracy too low: %.3f", acc)
	}

	proba, err := rf.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	assertRowsSumToOne(t, proba)

	imp := rf.GetFeatureImportances()
	if len(imp) != 3 {
		t.Fatalf("expected 3 importances, got %d", len(imp))
	}
	total := imp[0] + imp[1] + imp[2]
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("importances sum to %v", total)
	}
	if imp[2] >= imp[0]+imp[1] {
		t.Errorf("noise feature dominates importances: %v", imp)
	}
}

func TestRandomForest_DeterministicAcrossWorkers(t *testing.T) {
	X, y := makeBlobs(60, 2)

	serial := NewRandomForestClassifier(WithNEstimators(15), WithForestRandomState(42), WithNJobs(1))
	wide := NewRandomForestClassifier(WithNEstimators(15), WithForestRandomState(42), WithNJobs(8))
	if err := serial.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := wide.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	p1, _ := serial.PredictProba(X)
	p2, _ := wide.PredictProba(X)
	if !mat.Equal(p1, p2) {
		t.Error("forests with the same seed differ when grown with different worker counts")
	}
}

func TestRandomForest_ClassMissingFromBootstrap(t *testing.T) {
	// class 2 appears once, so most bootstrap samples miss it
	X := mat.NewDense(12, 1, []float64{0, 1, 2, 3, 4, 5, 10, 11, 12, 13, 14, 20})
	y := mat.NewDense(12, 1, []float64{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 2})

	rf := NewRandomForestClassifier(WithNEstimators(10), WithForestRandomState(7))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	proba, err := rf.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if _, k := proba.Dims(); k != 3 {
		t.Fatalf("expected 3 probability columns, got %d", k)
	}
	assertRowsSumToOne(t, proba)
}

func TestRandomForest_Errors(t *testing.T) {
	rf := NewRandomForestClassifier()
	if _, err := rf.Predict(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected not fitted error")
	}

	bad := NewRandomForestClassifier(WithNEstimators(0))
	X, y := makeBlobs(10, 3)
	if err := bad.Fit(X, y); err == nil {
		t.Error("expected validation error for n_estimators=0")
	}

	if err := rf.SetParams(map[string]interface{}{"n_estimators": "ten"}); err == nil {
		t.Error("expected type error from SetParams")
	}
	if err := rf.SetParams(map[string]interface{}{"unknown": 1}); err == nil {
		t.Error("expected unknown parameter error from SetParams")
	}
}

func TestRandomForest_Gob(t *testing.T) {
	X, y := makeBlobs(40, 4)
	rf := NewRandomForestClassifier(WithNEstimators(8), WithForestRandomState(42))
	if err := rf.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	before, _ := rf.PredictProba(X)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	restored := &RandomForestClassifier{}
	if err := gob.NewDecoder(&buf).Decode(restored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	after, err := restored.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba after decode: %v", err)
	}
	if !mat.Equal(before, after) {
		t.Error("predictions changed after gob round trip")
	}
}

func TestGradientBoosting_FitPredict(t *testing.T) {
	X, y := makeBlobs(100, 5)
	gb := NewGradientBoostingClassifier(WithBoostingRounds(30))
	if err := gb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if gb.NTrees() != 30 {
		t.Errorf("expected 30 trees, got %d", gb.NTrees())
	}
	if acc := gb.Score(X, y); acc < 0.95 {
		t.Errorf("training accuracy too low: %.3f", acc)
	}

	proba, err := gb.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	assertRowsSumToOne(t, proba)

	loss := gb.TrainLoss()
	if len(loss) != 30 {
		t.Fatalf("expected 30 loss values, got %d", len(loss))
	}
	if loss[len(loss)-1] >= loss[0] {
		t.Errorf("training loss did not decrease: first %v, last %v", loss[0], loss[len(loss)-1])
	}

	imp := gb.GetFeatureImportances()
	if imp[2] >= imp[0]+imp[1] {
		t.Errorf("noise feature dominates importances: %v", imp)
	}
}

func TestGradientBoosting_AdjacentFloats(t *testing.T) {
	lo := math.Nextafter(1, 2)
	hi := math.Nextafter(lo, 2)
	if m := midpoint(lo, hi); m < lo || m >= hi {
		t.Fatalf("midpoint(%v, %v) = %v, want lo <= m < hi", lo, hi, m)
	}

	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		if i < 5 {
			X.Set(i, 0, lo)
		} else {
			X.Set(i, 0, hi)
			y.Set(i, 0, 1)
		}
	}

	gb := NewGradientBoostingClassifier(WithBoostingRounds(10))
	if err := gb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if acc := gb.Score(X, y); acc != 1 {
		t.Errorf("expected the two values to be separated, accuracy %.3f", acc)
	}
}

func TestGradientBoosting_PredictMatchesProba(t *testing.T) {
	X, y := makeBlobs(50, 6)
	// labels other than 0/1 must be mapped back
	for i := 0; i < 100; i++ {
		y.Set(i, 0, y.At(i, 0)*4+3)
	}
	gb := NewGradientBoostingClassifier(WithBoostingRounds(10), WithBoostMaxDepth(3))
	if err := gb.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if got := gb.Classes(); got[0] != 3 || got[1] != 7 {
		t.Fatalf("unexpected classes %v", got)
	}
	pred, _ := gb.Predict(X)
	proba, _ := gb.PredictProba(X)
	for i := 0; i < 100; i++ {
		want := 3.0
		if proba.At(i, 1) > 0.5 {
			want = 7
		}
		if pred.At(i, 0) != want {
			t.Fatalf("row %d: predict %v disagrees with proba %v", i, pred.At(i, 0), proba.At(i, 1))
		}
	}
}

func TestGradientBoosting_SubsampleDeterministic(t *testing.T) {
	X, y := makeBlobs(50, 7)
	a := NewGradientBoostingClassifier(WithBoostingRounds(10), WithSubsample(0.7), WithBoostRandomState(3))
	b := NewGradientBoostingClassifier(WithBoostingRounds(10), WithSubsample(0.7), WithBoostRandomState(3))
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	pa, _ := a.DecisionFunction(X)
	pb, _ := b.DecisionFunction(X)
	if !mat.Equal(pa, pb) {
		t.Error("same seed produced different boosters")
	}
}

func TestGradientBoosting_Errors(t *testing.T) {
	gb := NewGradientBoostingClassifier()
	if _, err := gb.PredictProba(mat.NewDense(1, 2, nil)); err == nil {
		t.Error("expected not fitted error")
	}

	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	multi := mat.NewDense(6, 1, []float64{0, 0, 1, 1, 2, 2})
	if err := gb.Fit(X, multi); err == nil {
		t.Error("expected error for three classes")
	}

	single := mat.NewDense(6, 1, []float64{1, 1, 1, 1, 1, 1})
	err := gb.Fit(X, single)
	if !errors.Is(err, errors.ErrSingleClass) {
		t.Errorf("expected ErrSingleClass, got %v", err)
	}

	tests := []struct {
		name string
		opt  GradientBoostingOption
	}{
		{"zero rounds", WithBoostingRounds(0)},
		{"zero depth", WithBoostMaxDepth(0)},
		{"negative eta", WithLearningRate(-0.1)},
		{"negative lambda", WithLambda(-1)},
		{"subsample above one", WithSubsample(1.5)},
	}
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewGradientBoostingClassifier(tt.opt).Fit(X, y); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGradientBoosting_Gob(t *testing.T) {
	X, y := makeBlobs(40, 8)
	gb := NewGradientBoostingClassifier(WithBoostingRounds(15))
	if err := gb.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	before, _ := gb.PredictProba(X)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gb); err != nil {
		t.Fatalf("encode: %v", err)
	}
	restored := &GradientBoostingClassifier{}
	if err := gob.NewDecoder(&buf).Decode(restored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	after, err := restored.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(before, after) {
		t.Error("predictions changed after gob round trip")
	}
	if restored.GetParams()["learning_rate"] != 0.3 {
		t.Errorf("learning rate not restored: %v", restored.GetParams()["learning_rate"])
	}
}
