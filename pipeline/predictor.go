package pipeline

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/iitrpratibha/ml-wine-quality-classification/dataset"
	"github.com/iitrpratibha/ml-wine-quality-classification/metrics"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Columns appended to an upload in the prediction download.
const (
	PredictedColumn  = "Predicted_Quality"
	ConfidenceColumn = "Confidence"
)

// Evaluation scores predictions against the labels of an upload. Undefined
// scores are 0.
type Evaluation struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64

	// Confusion is 2×2 with rows true label, columns predicted label, in
	// the order Not Good, Good.
	Confusion *mat.Dense
	Report    *metrics.Report
}

// PredictionResult is the outcome of one prediction request.
type PredictionResult struct {
	ID        string
	Algorithm Algorithm
	Upload    *dataset.Upload

	// Labels holds the predicted binary label per row.
	Labels []float64

	// Positive holds P(Good) per row.
	Positive []float64

	// Confidence is max(p, 1-p) of Positive.
	Confidence []float64

	// ApproximateConfidence is set when the classifier has no probability
	// estimates and Positive is a copy of Labels.
	ApproximateConfidence bool

	Evaluation *Evaluation
	Duration   time.Duration
}

// Predictor replays cached artifacts on uploads. It never fits anything.
type Predictor struct {
	registry *Registry
}

// NewPredictor creates a predictor over registry.
func NewPredictor(registry *Registry) *Predictor {
	return &Predictor{registry: registry}
}

// Predict scales the upload with the training scaler, predicts with the
// cached classifier of alg and, when the upload is labelled, evaluates the
// predictions.
func (p *Predictor) Predict(alg Algorithm, u *dataset.Upload) (*PredictionResult, error) {
	if !alg.Valid() {
		return nil, errors.NewValidationError("model", "unknown algorithm", int(alg))
	}
	start := time.Now()

	scaler, err := p.registry.Scaler()
	if err != nil {
		return nil, err
	}
	clf, err := p.registry.Model(alg)
	if err != nil {
		return nil, err
	}

	res := &PredictionResult{ID: uuid.NewString(), Algorithm: alg, Upload: u}
	err = errors.SafeExecute(alg.Slug()+".predict", func() error {
		X, err := scaler.Transform(u.Features)
		if err != nil {
			return err
		}
		pred, err := clf.Predict(X)
		if err != nil {
			return err
		}
		res.Labels = mat.Col(nil, 0, pred)
		res.Positive, res.ApproximateConfidence, err = PositiveScores(alg.Name(), clf, X, res.Labels)
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Confidence = make([]float64, len(res.Positive))
	for i, pos := range res.Positive {
		if pos >= 1-pos {
			res.Confidence[i] = pos
		} else {
			res.Confidence[i] = 1 - pos
		}
	}

	if u.HasLabels() {
		res.Evaluation, err = evaluateUpload(u.Labels, res.Labels)
		if err != nil {
			return nil, err
		}
	}
	res.Duration = time.Since(start)

	log.GetLoggerWithName("predictor").Info("Prediction served",
		log.ModelNameKey, alg.Name(),
		log.OperationKey, log.OperationPredict,
		log.SourceKey, u.Source,
		log.SamplesKey, u.NRows(),
		log.DurationMsKey, res.Duration.Milliseconds(),
		"request.id", res.ID,
	)
	return res, nil
}

var binaryLabels = []float64{0, 1}

func evaluateUpload(yTrue, yPred []float64) (*Evaluation, error) {
	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	p := mat.NewVecDense(len(yPred), append([]float64(nil), yPred...))

	acc, err := metrics.Accuracy(t, p)
	if err != nil {
		return nil, err
	}
	c, err := metrics.CountBinary(t, p)
	if err != nil {
		return nil, err
	}
	cm, err := metrics.ConfusionMatrix(t, p, binaryLabels)
	if err != nil {
		return nil, err
	}
	rep, err := metrics.ClassificationReport(t, p, binaryLabels, dataset.ClassNames)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Accuracy:  acc,
		Precision: c.Precision(),
		Recall:    c.Recall(),
		F1:        c.F1(),
		Confusion: cm,
		Report:    rep,
	}, nil
}

// Class returns the display label of row i.
func (r *PredictionResult) Class(i int) string {
	return dataset.ClassName(r.Labels[i])
}

// Counts returns how many rows were predicted Not Good and Good.
func (r *PredictionResult) Counts() (notGood, good int) {
	for _, l := range r.Labels {
		if l == 1 {
			good++
		} else {
			notGood++
		}
	}
	return notGood, good
}

// Header is the download header: the uploaded columns then the prediction.
func (r *PredictionResult) Header() []string {
	return append(append([]string(nil), r.Upload.Table.Columns...), PredictedColumn, ConfidenceColumn)
}

// WriteCSV writes the download: every uploaded column, the predicted class
// and the confidence rounded to 4 decimals.
func (r *PredictionResult) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Header()); err != nil {
		return err
	}
	for i, row := range r.Upload.Table.Rows {
		rec := make([]string, 0, len(row)+2)
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rec = append(rec, r.Class(i), strconv.FormatFloat(Round4(r.Confidence[i]), 'f', 4, 64))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the download as a workbook with one sheet.
func (r *PredictionResult) WriteXLSX(w io.Writer) error {
	return dataset.WriteXLSXRows(w, "Predictions", r.Header(), len(r.Labels), func(i int) []interface{} {
		row := r.Upload.Table.Rows[i]
		out := make([]interface{}, 0, len(row)+2)
		for _, v := range row {
			out = append(out, v)
		}
		return append(out, r.Class(i), Round4(r.Confidence[i]))
	})
}
