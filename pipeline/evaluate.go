package pipeline

import (
	"strings"

	"github.com/iitrpratibha/ml-wine-quality-classification/metrics"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// Metric names a score column of the comparison table.
type Metric string

const (
	MetricAccuracy  Metric = "Accuracy"
	MetricAUC       Metric = "AUC"
	MetricPrecision Metric = "Precision"
	MetricRecall    Metric = "Recall"
	MetricF1        Metric = "F1"
	MetricMCC       Metric = "MCC"
)

// Metrics lists every metric in table order.
var Metrics = []Metric{MetricAccuracy, MetricAUC, MetricPrecision, MetricRecall, MetricF1, MetricMCC}

// ParseMetric matches a metric name case-insensitively.
func ParseMetric(s string) (Metric, bool) {
	for _, m := range Metrics {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, true
		}
	}
	return "", false
}

// Scores is the metrics record of one model.
type Scores struct {
	Accuracy  float64 `json:"Accuracy"`
	AUC       float64 `json:"AUC"`
	Precision float64 `json:"Precision"`
	Recall    float64 `json:"Recall"`
	F1        float64 `json:"F1"`
	MCC       float64 `json:"MCC"`
}

// Get returns the value of metric m.
func (s Scores) Get(m Metric) float64 {
	switch m {
	case MetricAccuracy:
		return s.Accuracy
	case MetricAUC:
		return s.AUC
	case MetricPrecision:
		return s.Precision
	case MetricRecall:
		return s.Recall
	case MetricF1:
		return s.F1
	case MetricMCC:
		return s.MCC
	}
	return 0
}

// Values returns the scores in Metrics order.
func (s Scores) Values() []float64 {
	out := make([]float64, len(Metrics))
	for i, m := range Metrics {
		out[i] = s.Get(m)
	}
	return out
}

func (s *Scores) set(m Metric, v float64) {
	switch m {
	case MetricAccuracy:
		s.Accuracy = v
	case MetricAUC:
		s.AUC = v
	case MetricPrecision:
		s.Precision = v
	case MetricRecall:
		s.Recall = v
	case MetricF1:
		s.F1 = v
	case MetricMCC:
		s.MCC = v
	}
}

// Round4 rounds half away from zero to 4 decimal places.
func Round4(v float64) float64 {
	return scalar.Round(v, 4)
}

// Evaluate computes the six metrics from true labels, predicted labels and
// positive-class scores, each rounded to 4 decimals. Undefined precision,
// recall, F1 and MCC are 0.
func Evaluate(yTrue, yPred, yScore []float64) (Scores, error) {
	return evaluateVec(vecOf(yTrue), vecOf(yPred), vecOf(yScore))
}

func vecOf(v []float64) *mat.VecDense {
	if len(v) == 0 {
		return nil
	}
	return mat.NewVecDense(len(v), append([]float64(nil), v...))
}

func evaluateVec(yTrue, yPred, yScore *mat.VecDense) (Scores, error) {
	acc, err := metrics.Accuracy(yTrue, yPred)
	if err != nil {
		return Scores{}, err
	}
	auc, err := metrics.AUC(yTrue, yScore)
	if err != nil {
		return Scores{}, err
	}
	c, err := metrics.CountBinary(yTrue, yPred)
	if err != nil {
		return Scores{}, err
	}
	return Scores{
		Accuracy:  Round4(acc),
		AUC:       Round4(auc),
		Precision: Round4(c.Precision()),
		Recall:    Round4(c.Recall()),
		F1:        Round4(c.F1()),
		MCC:       Round4(c.MCC()),
	}, nil
}
