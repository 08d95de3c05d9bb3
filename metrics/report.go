package metrics

import (
	"fmt"
	"strings"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ClassScores holds the one-vs-rest scores of a single label.
type ClassScores struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

// Report is the per-class breakdown printed by scikit-learn's
// classification_report.
type Report struct {
	Classes     []ClassScores `json:"classes"`
	Accuracy    float64       `json:"accuracy"`
	MacroAvg    ClassScores   `json:"macro_avg"`
	WeightedAvg ClassScores   `json:"weighted_avg"`
}

// ClassificationReport builds per-class scores from the confusion matrix.
// names, when given, must match labels one to one and replace the numeric
// labels in the output.
func ClassificationReport(yTrue, yPred *mat.VecDense, labels []float64, names []string) (*Report, error) {
	if labels == nil {
		if _, err := checkPair("ClassificationReport", yTrue, yPred); err != nil {
			return nil, err
		}
		labels = Labels(yTrue, yPred)
	}
	cm, err := ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}

	k := len(labels)
	rep := &Report{Classes: make([]ClassScores, k)}
	var correct, total int
	for i := 0; i < k; i++ {
		tp := cm.At(i, i)
		var rowSum, colSum float64
		for j := 0; j < k; j++ {
			rowSum += cm.At(i, j)
			colSum += cm.At(j, i)
		}
		c := BinaryCounts{TP: int(tp), FP: int(colSum - tp), FN: int(rowSum - tp)}

		label := fmt.Sprintf("%g", labels[i])
		if i < len(names) {
			label = names[i]
		}
		rep.Classes[i] = ClassScores{
			Label:     label,
			Precision: c.Precision(),
			Recall:    c.Recall(),
			F1:        c.F1(),
			Support:   int(rowSum),
		}
		correct += int(tp)
		total += int(rowSum)
	}
	rep.Accuracy = errors.SafeDivide(float64(correct), float64(total))

	rep.MacroAvg = ClassScores{Label: "macro avg", Support: total}
	rep.WeightedAvg = ClassScores{Label: "weighted avg", Support: total}
	for _, c := range rep.Classes {
		rep.MacroAvg.Precision += c.Precision / float64(k)
		rep.MacroAvg.Recall += c.Recall / float64(k)
		rep.MacroAvg.F1 += c.F1 / float64(k)
		w := errors.SafeDivide(float64(c.Support), float64(total))
		rep.WeightedAvg.Precision += c.Precision * w
		rep.WeightedAvg.Recall += c.Recall * w
		rep.WeightedAvg.F1 += c.F1 * w
	}
	return rep, nil
}

// String renders the report as a fixed-width text table.
func (r *Report) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		if len(c.Label) > width {
			width = len(c.Label)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.MacroAvg.Support)
	for _, c := range []ClassScores{r.MacroAvg, r.WeightedAvg} {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	return b.String()
}
