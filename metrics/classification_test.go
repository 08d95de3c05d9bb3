package metrics

import (
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// captureWarnings collects every warning raised until the test ends.
func captureWarnings(t *testing.T) func() []error {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []error
	)
	errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, w)
	})
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), seen...)
	}
}

func vec(v ...float64) *mat.VecDense {
	return mat.NewVecDense(len(v), v)
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect classifier",
			yTrue: []float64{0, 0, 0, 1, 1, 1},
			yPred: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9},
			want:  1.0,
		},
		{
			name:  "Worst classifier",
			yTrue: []float64{0, 0, 0, 1, 1, 1},
			yPred: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1},
			want:  0.0,
		},
		{
			name:  "Random classifier",
			yTrue: []float64{0, 1, 0, 1},
			yPred: []float64{0.5, 0.5, 0.5, 0.5},
			want:  0.5,
		},
		{
			name:  "Typical case",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.75,
		},
		{
			name:  "All positive labels",
			yTrue: []float64{1, 1, 1, 1},
			yPred: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.5, // Undefined case, returns 0.5
		},
		{
			name:  "All negative labels",
			yTrue: []float64{0, 0, 0, 0},
			yPred: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.5, // Undefined case, returns 0.5
		},
		{
			name:    "Non-binary labels",
			yTrue:   []float64{0, 0.5, 1},
			yPred:   []float64{0.1, 0.5, 0.9},
			wantErr: true,
		},
		{
			name:    "Dimension mismatch",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0.5},
			wantErr: true,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := AUC(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("AUC() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("AUC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBinaryLogLoss(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect predictions",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0, 0, 1, 1},
			want:  0.0, // Will be small epsilon value due to clipping
		},
		{
			name:  "Typical case",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0.1, 0.2, 0.8, 0.9},
			want:  0.164252, // Approximate expected value
		},
		{
			name:  "Worst predictions",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0.9, 0.9, 0.1, 0.1},
			want:  2.3025851, // Approximate expected value
		},
		{
			name:  "Clipping edge case",
			yTrue: []float64{0, 1},
			yPred: []float64{0, 1}, // Will be clipped to avoid log(0)
			want:  0.0,             // Small value due to epsilon
		},
		{
			name:    "Non-binary labels",
			yTrue:   []float64{0, 0.5, 1},
			yPred:   []float64{0.1, 0.5, 0.9},
			wantErr: true,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := BinaryLogLoss(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("BinaryLogLoss() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 0.01 {
				t.Errorf("BinaryLogLoss() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 2, 1, 0},
			want:  1.0,
		},
		{
			name:  "80% accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 1, 1, 0},
			want:  0.8,
		},
		{
			name:  "Zero accuracy",
			yTrue: []float64{0, 0, 0},
			yPred: []float64{1, 1, 1},
			want:  0.0,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := Accuracy(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("Accuracy() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Accuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBinaryScores(t *testing.T) {
	tests := []struct {
		name                       string
		yTrue, yPred               []float64
		precision, recall, f1, mcc float64
	}{
		{
			name:      "Perfect",
			yTrue:     []float64{0, 0, 1, 1},
			yPred:     []float64{0, 0, 1, 1},
			precision: 1, recall: 1, f1: 1, mcc: 1,
		},
		{
			name:      "Inverted",
			yTrue:     []float64{0, 0, 1, 1},
			yPred:     []float64{1, 1, 0, 0},
			precision: 0, recall: 0, f1: 0, mcc: -1,
		},
		{
			// TP=2 FP=1 FN=1 TN=4
			name:      "Mixed",
			yTrue:     []float64{1, 1, 1, 0, 0, 0, 0, 0},
			yPred:     []float64{1, 1, 0, 1, 0, 0, 0, 0},
			precision: 2.0 / 3, recall: 2.0 / 3, f1: 2.0 / 3,
			mcc:       (2*4 - 1*1) / math.Sqrt(3*3*5*5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yTrue, yPred := vec(tt.yTrue...), vec(tt.yPred...)
			checks := []struct {
				metric string
				fn     func(a, b *mat.VecDense) (float64, error)
				want   float64
			}{
				{"precision", Precision, tt.precision},
				{"recall", Recall, tt.recall},
				{"f1", F1Score, tt.f1},
				{"mcc", MatthewsCorrCoef, tt.mcc},
			}
			for _, c := range checks {
				got, err := c.fn(yTrue, yPred)
				if err != nil {
					t.Fatalf("%s: unexpected error %v", c.metric, err)
				}
				if math.Abs(got-c.want) > 1e-9 {
					t.Errorf("%s = %v, want %v", c.metric, got, c.want)
				}
			}
		})
	}
}

func TestMajorityClassPredictor(t *testing.T) {
	warnings := captureWarnings(t)

	yTrue := vec(0, 0, 0, 0, 0, 0, 0, 1, 1, 0)
	yPred := vec(0, 0, 0, 0, 0, 0, 0, 0, 0, 0)

	c, err := CountBinary(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if c.TN != 8 || c.FN != 2 || c.TP != 0 || c.FP != 0 {
		t.Fatalf("unexpected counts %+v", c)
	}
	if got := c.Recall(); got != 0 {
		t.Errorf("recall = %v, want 0", got)
	}
	if got := c.Precision(); got != 0 {
		t.Errorf("precision = %v, want 0", got)
	}
	if got := c.MCC(); got != 0 {
		t.Errorf("mcc = %v, want 0", got)
	}

	var metrics []string
	for _, w := range warnings() {
		var um *errors.UndefinedMetricWarning
		if errors.As(w, &um) {
			metrics = append(metrics, um.Metric)
		}
	}
	if strings.Join(metrics, ",") != "precision,mcc" {
		t.Errorf("unexpected warnings for %v", metrics)
	}
}

func TestAUCSingleClassWarns(t *testing.T) {
	warnings := captureWarnings(t)
	got, err := AUC(vec(1, 1, 1), vec(0.2, 0.5, 0.9))
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.5 {
		t.Errorf("AUC = %v, want 0.5", got)
	}
	if len(warnings()) != 1 {
		t.Errorf("expected one warning, got %v", warnings())
	}
}

func TestMetricRanges(t *testing.T) {
	captureWarnings(t)
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 5 + rng.Intn(40)
		yTrue := mat.NewVecDense(n, nil)
		yPred := mat.NewVecDense(n, nil)
		score := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			yTrue.SetVec(i, float64(rng.Intn(2)))
			yPred.SetVec(i, float64(rng.Intn(2)))
			score.SetVec(i, rng.Float64())
		}

		c, err := CountBinary(yTrue, yPred)
		if err != nil {
			t.Fatal(err)
		}
		for name, v := range map[string]float64{
			"precision": c.Precision(),
			"recall":    c.Recall(),
			"f1":        c.F1(),
		} {
			if v < 0 || v > 1 {
				t.Fatalf("%s out of range: %v", name, v)
			}
		}
		if m := c.MCC(); m < -1-1e-12 || m > 1+1e-12 {
			t.Fatalf("mcc out of range: %v", m)
		}
		auc, err := AUC(yTrue, score)
		if err != nil {
			t.Fatal(err)
		}
		if auc < 0 || auc > 1 {
			t.Fatalf("auc out of range: %v", auc)
		}
	}
}

func TestConfusionMatrix(t *testing.T) {
	yTrue := vec(0, 0, 1, 1, 1)
	yPred := vec(0, 1, 1, 1, 0)

	cm, err := ConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := mat.NewDense(2, 2, []float64{
		1, 1,
		1, 2,
	})
	if !mat.Equal(cm, want) {
		t.Errorf("ConfusionMatrix =\n%v\nwant\n%v", mat.Formatted(cm), mat.Formatted(want))
	}

	// fixed labels keep a 2×2 shape even when a class never occurs
	cm, err = ConfusionMatrix(vec(0, 0), vec(0, 0), []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if r, c := cm.Dims(); r != 2 || c != 2 || cm.At(0, 0) != 2 {
		t.Errorf("unexpected matrix %v", mat.Formatted(cm))
	}

	if _, err := ConfusionMatrix(vec(0, 1), vec(0), nil); err == nil {
		t.Error("expected dimension error")
	}
}

func TestClassificationReport(t *testing.T) {
	yTrue := vec(1, 1, 1, 0, 0, 0, 0, 0)
	yPred := vec(1, 1, 0, 1, 0, 0, 0, 0)

	rep, err := ClassificationReport(yTrue, yPred, []float64{0, 1}, []string{"Not Good", "Good"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Classes) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(rep.Classes))
	}

	good := rep.Classes[1]
	if good.Label != "Good" || good.Support != 3 {
		t.Errorf("unexpected positive row %+v", good)
	}
	if math.Abs(good.Precision-2.0/3) > 1e-9 || math.Abs(good.Recall-2.0/3) > 1e-9 {
		t.Errorf("unexpected positive scores %+v", good)
	}
	notGood := rep.Classes[0]
	if math.Abs(notGood.Precision-0.8) > 1e-9 || math.Abs(notGood.Recall-0.8) > 1e-9 {
		t.Errorf("unexpected negative scores %+v", notGood)
	}
	if math.Abs(rep.Accuracy-0.75) > 1e-9 {
		t.Errorf("accuracy = %v, want 0.75", rep.Accuracy)
	}
	wantMacro := (0.8 + 2.0/3) / 2
	if math.Abs(rep.MacroAvg.F1-wantMacro) > 1e-9 {
		t.Errorf("macro F1 = %v, want %v", rep.MacroAvg.F1, wantMacro)
	}
	wantWeighted := (0.8*5 + 2.0/3*3) / 8
	if math.Abs(rep.WeightedAvg.Recall-wantWeighted) > 1e-9 {
		t.Errorf("weighted recall = %v, want %v", rep.WeightedAvg.Recall, wantWeighted)
	}

	text := rep.String()
	for _, want := range []string{"precision", "Not Good", "Good", "accuracy", "macro avg", "weighted avg"} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q:\n%s", want, text)
		}
	}
}

// Benchmark tests
func BenchmarkAUC(b *testing.B) {
	// Create test data
	n := 1000
	yTrue := make([]float64, n)
	yPred := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < n/2 {
			yTrue[i] = 0
			yPred[i] = float64(i) / float64(n)
		} else {
			yTrue[i] = 1
			yPred[i] = float64(i) / float64(n)
		}
	}
	yTrueVec := mat.NewVecDense(n, yTrue)
	yPredVec := mat.NewVecDense(n, yPred)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yTrueVec, yPredVec)
	}
}

func BenchmarkBinaryLogLoss(b *testing.B) {
	// Create test data
	n := 1000
	yTrue := make([]float64, n)
	yPred := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < n/2 {
			yTrue[i] = 0
			yPred[i] = 0.1 + 0.3*float64(i)/float64(n)
		} else {
			yTrue[i] = 1
			yPred[i] = 0.6 + 0.3*float64(i-n/2)/float64(n/2)
		}
	}
	yTrueVec := mat.NewVecDense(n, yTrue)
	yPredVec := mat.NewVecDense(n, yPred)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BinaryLogLoss(yTrueVec, yPredVec)
	}
}
