package naive_bayes

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func trainingData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		-2, -1, // class 0
		-1, -1, // class 0
		-1, -2, // class 0
		1, 1, // class 1
		1, 2, // class 1
		2, 1, // class 1
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

// TestGaussianNBBasicFit tests basic fitting functionality
func TestGaussianNBBasicFit(t *testing.T) {
	X, y := trainingData()

	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !nb.state.IsFitted() {
		t.Error("Model should be fitted after Fit()")
	}
	if len(nb.Classes()) != 2 {
		t.Errorf("Expected 2 classes, got %d", len(nb.Classes()))
	}

	theta := nb.Theta()
	want := [][]float64{{-4.0 / 3, -4.0 / 3}, {4.0 / 3, 4.0 / 3}}
	for k := range want {
		for j := range want[k] {
			if math.Abs(theta[k][j]-want[k][j]) > 1e-12 {
				t.Errorf("theta[%d][%d] = %v, want %v", k, j, theta[k][j], want[k][j])
			}
		}
	}

	// population variance of {-2,-1,-1} is 2/9, plus a tiny epsilon
	if v := nb.Var()[0][0]; math.Abs(v-2.0/9) > 1e-8 {
		t.Errorf("var[0][0] = %v, want ~%v", v, 2.0/9)
	}
}

// TestGaussianNBPredict tests predictions on new points
func TestGaussianNBPredict(t *testing.T) {
	X, y := trainingData()
	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	pred, err := nb.Predict(mat.NewDense(2, 2, []float64{-0.8, -1, 3, 2}))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if pred.At(0, 0) != 0 || pred.At(1, 0) != 1 {
		t.Errorf("unexpected predictions: %v", mat.Formatted(pred))
	}
	if score := nb.Score(X, y); score != 1.0 {
		t.Errorf("expected perfect training score, got %v", score)
	}
}

// TestGaussianNBPredictProba tests that probabilities are normalised and agree with Predict
func TestGaussianNBPredictProba(t *testing.T) {
	X, y := trainingData()
	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	XTest := mat.NewDense(3, 2, []float64{0, 0, -1, -1, 0.5, 0.2})
	proba, err := nb.PredictProba(XTest)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	pred, _ := nb.Predict(XTest)

	for i := 0; i < 3; i++ {
		p0, p1 := proba.At(i, 0), proba.At(i, 1)
		if math.Abs(p0+p1-1) > 1e-10 {
			t.Errorf("row %d probabilities sum to %v", i, p0+p1)
		}
		predicted := 0.0
		if p1 > p0 {
			predicted = 1
		}
		if pred.At(i, 0) != predicted {
			t.Errorf("row %d: Predict %v disagrees with PredictProba %v", i, pred.At(i, 0), []float64{p0, p1})
		}
	}

	// the origin is symmetric between the two classes
	if math.Abs(proba.At(0, 0)-0.5) > 1e-10 {
		t.Errorf("expected 0.5 at the origin, got %v", proba.At(0, 0))
	}
}

// TestGaussianNBPredictLogProba tests log-probabilities match probabilities
func TestGaussianNBPredictLogProba(t *testing.T) {
	X, y := trainingData()
	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	XTest := mat.NewDense(1, 2, []float64{-0.5, 0.25})
	logProba, err := nb.PredictLogProba(XTest)
	if err != nil {
		t.Fatal(err)
	}
	proba, _ := nb.PredictProba(XTest)
	for j := 0; j < 2; j++ {
		if math.Abs(math.Exp(logProba.At(0, j))-proba.At(0, j)) > 1e-12 {
			t.Errorf("class %d: exp(log p) != p", j)
		}
	}
}

// TestGaussianNBPartialFit tests that batches give the same model as one Fit
func TestGaussianNBPartialFit(t *testing.T) {
	X, y := trainingData()

	full := NewGaussianNB()
	if err := full.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	inc := NewGaussianNB()
	first := X.Slice(0, 4, 0, 2)
	second := X.Slice(4, 6, 0, 2)
	if err := inc.PartialFit(first, y.Slice(0, 4, 0, 1), []float64{0, 1}); err != nil {
		t.Fatalf("first PartialFit failed: %v", err)
	}
	if err := inc.PartialFit(second, y.Slice(4, 6, 0, 1), nil); err != nil {
		t.Fatalf("second PartialFit failed: %v", err)
	}

	if inc.NSamplesSeen() != 6 {
		t.Errorf("NSamplesSeen = %d, want 6", inc.NSamplesSeen())
	}
	a, b := full.Theta(), inc.Theta()
	for k := range a {
		for j := range a[k] {
			if math.Abs(a[k][j]-b[k][j]) > 1e-12 {
				t.Errorf("theta[%d][%d]: full %v, incremental %v", k, j, a[k][j], b[k][j])
			}
		}
	}

	if err := inc.PartialFit(second, mat.NewDense(2, 1, []float64{3, 3}), nil); err == nil {
		t.Error("expected error for a label outside the declared classes")
	}
}

// TestGaussianNBPriors tests fixed priors shift the decision
func TestGaussianNBPriors(t *testing.T) {
	X, y := trainingData()
	nb := NewGaussianNB(WithPriors([]float64{0.999, 0.001}))
	if err := nb.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	pred, _ := nb.Predict(mat.NewDense(1, 2, []float64{0, 0}))
	if pred.At(0, 0) != 0 {
		t.Errorf("strong prior should pull the origin to class 0, got %v", pred.At(0, 0))
	}
}

// TestGaussianNBInvalidInput tests error handling
func TestGaussianNBInvalidInput(t *testing.T) {
	nb := NewGaussianNB()
	XNaN := mat.NewDense(2, 2, []float64{1, math.NaN(), 3, 4})
	if err := nb.Fit(XNaN, mat.NewDense(2, 1, []float64{0, 1})); err == nil {
		t.Error("Expected error for NaN input")
	}

	_, err := NewGaussianNB().Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("Expected NotFittedError, got %v", err)
	}
}

// TestGaussianNBGob tests that a saved model predicts identically
func TestGaussianNBGob(t *testing.T) {
	X, y := trainingData()
	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(nb); err != nil {
		t.Fatalf("encode: %v", err)
	}
	loaded := NewGaussianNB()
	if err := gob.NewDecoder(&buf).Decode(loaded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	want, _ := nb.PredictProba(X)
	got, err := loaded.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(want, got) {
		t.Error("loaded model should predict identically")
	}
}
