// Package metrics implements the classification scores used to compare the
// trained models: accuracy, ROC AUC, precision, recall, F1, Matthews
// correlation, log-loss, the confusion matrix and a per-class report.
//
// Binary scores treat label 1 as the positive class. A score whose
// denominator is zero is reported as 0 and an UndefinedMetricWarning is
// emitted, mirroring scikit-learn's zero_division=0.
package metrics

import (
	"math"
	"sort"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PositiveLabel is the label treated as the positive class by binary scores.
const PositiveLabel = 1.0

const logLossEps = 1e-15

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// Accuracy is the fraction of exact label matches.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// BinaryCounts is the 2×2 confusion table for the positive label.
type BinaryCounts struct {
	TP, FP, TN, FN int
}

// CountBinary tallies predictions against the positive label.
func CountBinary(yTrue, yPred *mat.VecDense) (BinaryCounts, error) {
	n, err := checkPair("CountBinary", yTrue, yPred)
	if err != nil {
		return BinaryCounts{}, err
	}
	var c BinaryCounts
	for i := 0; i < n; i++ {
		actual := yTrue.AtVec(i) == PositiveLabel
		predicted := yPred.AtVec(i) == PositiveLabel
		switch {
		case actual && predicted:
			c.TP++
		case !actual && predicted:
			c.FP++
		case actual && !predicted:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// ratio returns num/den, or 0 with a warning when den is zero.
func ratio(metric, condition string, num, den float64) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, condition, 0))
		return 0
	}
	return num / den
}

// Precision is TP / (TP + FP).
func (c BinaryCounts) Precision() float64 {
	return ratio("precision", "no predicted samples", float64(c.TP), float64(c.TP+c.FP))
}

// Recall is TP / (TP + FN).
func (c BinaryCounts) Recall() float64 {
	return ratio("recall", "no true samples", float64(c.TP), float64(c.TP+c.FN))
}

// F1 is the harmonic mean of precision and recall, written as
// 2TP / (2TP + FP + FN) so it stays defined when only one of them is.
func (c BinaryCounts) F1() float64 {
	return ratio("f1", "no true nor predicted samples", float64(2*c.TP), float64(2*c.TP+c.FP+c.FN))
}

// MCC is the Matthews correlation coefficient in [-1, 1].
func (c BinaryCounts) MCC() float64 {
	tp, fp, tn, fn := float64(c.TP), float64(c.FP), float64(c.TN), float64(c.FN)
	den := math.Sqrt((tp + fp) * (tp + fn) * (tn + fp) * (tn + fn))
	return ratio("mcc", "a constant row or column in the confusion matrix", tp*tn-fp*fn, den)
}

// Precision of the positive label; 0 when nothing was predicted positive.
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	c, err := CountBinary(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return c.Precision(), nil
}

// Recall of the positive label; 0 when no sample is positive.
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	c, err := CountBinary(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return c.Recall(), nil
}

// F1Score of the positive label.
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	c, err := CountBinary(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return c.F1(), nil
}

// MatthewsCorrCoef returns the MCC of the binary predictions.
func MatthewsCorrCoef(yTrue, yPred *mat.VecDense) (float64, error) {
	c, err := CountBinary(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return c.MCC(), nil
}

// AUC computes the area under the ROC curve of positive-class scores.
// Tied scores contribute half credit. When yTrue holds a single class the
// curve is undefined and 0.5 is returned with a warning.
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	scores := make([]float64, n)
	classes := make([]bool, n)
	nPos := 0
	for i := 0; i < n; i++ {
		scores[i] = yScore.AtVec(i)
		classes[i] = yTrue.AtVec(i) == PositiveLabel
		if classes[i] {
			nPos++
		}
	}
	if nPos == 0 || nPos == n {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// BinaryLogLoss is the mean negative log-likelihood of positive-class
// probabilities, clipped to [eps, 1-eps].
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yProb.AtVec(i), logLossEps, 1-logLossEps)
		if yTrue.AtVec(i) == PositiveLabel {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// Labels returns the sorted union of labels in yTrue and yPred.
func Labels(yTrue, yPred *mat.VecDense) []float64 {
	seen := make(map[float64]struct{})
	var labels []float64
	for _, v := range []*mat.VecDense{yTrue, yPred} {
		for i := 0; i < v.Len(); i++ {
			x := v.AtVec(i)
			if _, ok := seen[x]; !ok {
				seen[x] = struct{}{}
				labels = append(labels, x)
			}
		}
	}
	sort.Float64s(labels)
	return labels
}

// ConfusionMatrix returns C where C[i][j] counts samples of labels[i]
// predicted as labels[j]. A nil labels uses Labels(yTrue, yPred). Samples
// whose true or predicted label is not listed are ignored.
func ConfusionMatrix(yTrue, yPred *mat.VecDense, labels []float64) (*mat.Dense, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if labels == nil {
		labels = Labels(yTrue, yPred)
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "no labels")
	}
	index := make(map[float64]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r, okR := index[yTrue.AtVec(i)]
		c, okC := index[yPred.AtVec(i)]
		if okR && okC {
			cm.Set(r, c, cm.At(r, c)+1)
		}
	}
	return cm, nil
}
