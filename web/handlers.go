package web

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/iitrpratibha/ml-wine-quality-classification/dataset"
	"github.com/iitrpratibha/ml-wine-quality-classification/metrics"
	"github.com/iitrpratibha/ml-wine-quality-classification/pipeline"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
)

// previewRows caps the rows shown in the results table.
const previewRows = 100

type homeView struct {
	Algorithms []pipeline.Algorithm
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "home", page{
		Title: "Wine Quality Classification",
		Data:  homeView{Algorithms: pipeline.Algorithms()},
	})
}

type cell struct {
	Value float64
	// Class is "max" or "min" for the best and worst value of a column.
	Class string
}

type comparisonRow struct {
	Name  string
	Cells []cell
}

type bestCard struct {
	Metric pipeline.Metric
	Model  string
	Score  float64
}

type comparisonView struct {
	Metrics  []pipeline.Metric
	Selected pipeline.Metric
	Rows     []comparisonRow
	Best     []bestCard
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	selected := pipeline.MetricAccuracy
	if m, ok := pipeline.ParseMetric(r.URL.Query().Get("metric")); ok {
		selected = m
	}
	view := comparisonView{Metrics: pipeline.Metrics, Selected: selected}

	sum, err := s.registry.Summary()
	if err != nil {
		s.logger.Warn("Summary unavailable", log.ErrorKey, err)
		s.render(w, statusOf(err), "comparison", page{Title: "Model Comparison", Error: userMessage(err), Data: view})
		return
	}

	best := make([]string, len(pipeline.Metrics))
	worst := make([]string, len(pipeline.Metrics))
	for i, m := range pipeline.Metrics {
		name, score := sum.Best(m)
		best[i] = name
		worst[i], _ = sum.Worst(m)
		view.Best = append(view.Best, bestCard{Metric: m, Model: name, Score: score})
	}
	for _, row := range sum.Table() {
		cr := comparisonRow{Name: row.Name}
		for i, v := range row.Values {
			c := cell{Value: v}
			switch row.Name {
			case best[i]:
				c.Class = "max"
			case worst[i]:
				c.Class = "min"
			}
			cr.Cells = append(cr.Cells, c)
		}
		view.Rows = append(view.Rows, cr)
	}
	s.render(w, http.StatusOK, "comparison", page{Title: "Model Comparison", Data: view})
}

func (s *Server) handleMetricChart(w http.ResponseWriter, r *http.Request) {
	m := pipeline.MetricAccuracy
	if q := r.URL.Query().Get("metric"); q != "" {
		parsed, ok := pipeline.ParseMetric(q)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown metric %q", q), http.StatusBadRequest)
			return
		}
		m = parsed
	}
	sum, err := s.registry.Summary()
	if err != nil {
		http.Error(w, userMessage(err), statusOf(err))
		return
	}
	png, err := MetricBarChart(sum, m)
	if err != nil {
		s.logger.Error("Chart failed", log.ErrorKey, err)
		http.Error(w, "chart rendering failed", http.StatusInternalServerError)
		return
	}
	writePNG(w, png)
}

func (s *Server) handleHeatmapChart(w http.ResponseWriter, r *http.Request) {
	sum, err := s.registry.Summary()
	if err != nil {
		http.Error(w, userMessage(err), statusOf(err))
		return
	}
	png, err := MetricHeatmap(sum)
	if err != nil {
		s.logger.Error("Chart failed", log.ErrorKey, err)
		http.Error(w, "chart rendering failed", http.StatusInternalServerError)
		return
	}
	writePNG(w, png)
}

func (s *Server) handleCorrelationChart(w http.ResponseWriter, r *http.Request) {
	view, err := s.preparedView()
	if err != nil {
		http.Error(w, "dataset file not found", http.StatusNotFound)
		return
	}
	writePNG(w, view.chart)
}

type predictForm struct {
	Algorithms []pipeline.Algorithm
	Selected   pipeline.Algorithm
	Columns    []string
	MaxUpload  int64
}

type predictView struct {
	predictForm
	Result *resultView
}

type resultView struct {
	Model        string
	ID           string
	FileName     string
	Rows         int
	Header       []string
	Preview      [][]string
	Truncated    bool
	Approximate  bool
	NotGood      int
	Good         int
	Download     template.URL
	Distribution template.URL
	Evaluation   *evaluationView
}

type evaluationView struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	Confusion template.URL
	Report    *metrics.Report
}

func (s *Server) form(selected pipeline.Algorithm) predictForm {
	return predictForm{
		Algorithms: pipeline.Algorithms(),
		Selected:   selected,
		Columns:    dataset.FeatureNames,
		MaxUpload:  s.opts.MaxUploadBytes >> 20,
	}
}

func (s *Server) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "predict", page{
		Title: "Make Predictions",
		Data:  predictView{predictForm: s.form(pipeline.DefaultAlgorithm)},
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	view := predictView{predictForm: s.form(pipeline.DefaultAlgorithm)}
	fail := func(err error) {
		s.logger.Warn("Prediction failed", log.ErrorKey, err)
		s.render(w, statusOf(err), "predict", page{Title: "Make Predictions", Error: userMessage(err), Data: view})
	}

	alg, upload, err := s.readUpload(w, r)
	if alg.Valid() {
		view.Selected = alg
	}
	if err != nil {
		fail(err)
		return
	}
	res, err := s.predict(r, alg, upload)
	if err != nil {
		fail(err)
		return
	}
	rv, err := newResultView(res)
	if err != nil {
		fail(err)
		return
	}
	view.Result = rv
	s.render(w, http.StatusOK, "predict", page{Title: "Make Predictions", Data: view})
}

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: fmt.Sprintf("unknown format %q (use csv or xlsx)", format)})
		return
	}

	alg, upload, err := s.readUpload(w, r)
	if err != nil {
		writeJSON(w, statusOf(err), apiError{Error: userMessage(err)})
		return
	}
	res, err := s.predict(r, alg, upload)
	if err != nil {
		writeJSON(w, statusOf(err), apiError{Error: userMessage(err)})
		return
	}

	w.Header().Set("X-Prediction-Id", res.ID)
	if res.ApproximateConfidence {
		w.Header().Set("X-Approximate-Confidence", "true")
	}
	switch format {
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="wine_quality_predictions.xlsx"`)
		err = res.WriteXLSX(w)
	default:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="wine_quality_predictions.csv"`)
		err = res.WriteCSV(w)
	}
	if err != nil {
		s.logger.Error("Download failed", log.ErrorKey, err)
	}
}

// readUpload reads the model choice (form field or query parameter
// "model") and the multipart file field "file".
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (pipeline.Algorithm, *dataset.Upload, error) {
	if r.ContentLength > s.opts.MaxUploadBytes {
		return -1, nil, &http.MaxBytesError{Limit: s.opts.MaxUploadBytes}
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return -1, nil, err
		}
		return -1, nil, errors.NewSchemaErrorf("upload", "expected a multipart form with a file field: %v", err)
	}

	name := r.FormValue("model")
	alg := pipeline.DefaultAlgorithm
	if name != "" {
		parsed, err := pipeline.ParseAlgorithm(name)
		if err != nil {
			return -1, nil, err
		}
		alg = parsed
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return alg, nil, errors.NewSchemaErrorf("upload", "no file uploaded")
	}
	defer file.Close()
	upload, err := dataset.ParseUpload(header.Filename, file)
	return alg, upload, err
}

// predict runs one prediction while holding a slot of the prediction
// semaphore.
func (s *Server) predict(r *http.Request, alg pipeline.Algorithm, u *dataset.Upload) (*pipeline.PredictionResult, error) {
	if err := s.predicts.Acquire(r.Context(), 1); err != nil {
		return nil, errors.Wrap(err, "wait for prediction slot")
	}
	defer s.predicts.Release(1)
	return s.predictor.Predict(alg, u)
}

func newResultView(res *pipeline.PredictionResult) (*resultView, error) {
	var csvBuf strings.Builder
	if err := res.WriteCSV(&csvBuf); err != nil {
		return nil, err
	}
	notGood, good := res.Counts()
	dist, err := DistributionChart(notGood, good)
	if err != nil {
		return nil, err
	}

	rv := &resultView{
		Model:        res.Algorithm.Name(),
		ID:           res.ID,
		FileName:     res.Upload.Source,
		Rows:         len(res.Labels),
		Header:       res.Header(),
		Approximate:  res.ApproximateConfidence,
		NotGood:      notGood,
		Good:         good,
		Download:     dataURI("text/csv", []byte(csvBuf.String())),
		Distribution: dataURI("image/png", dist),
	}
	for i, row := range res.Upload.Table.Rows {
		if i == previewRows {
			rv.Truncated = true
			break
		}
		cells := make([]string, 0, len(row)+2)
		for _, v := range row {
			cells = append(cells, fmt.Sprint(v))
		}
		cells = append(cells, res.Class(i), fmt.Sprintf("%.4f", res.Confidence[i]))
		rv.Preview = append(rv.Preview, cells)
	}

	if ev := res.Evaluation; ev != nil {
		cm, err := ConfusionChart(ev.Confusion, "Confusion Matrix - "+res.Algorithm.Name(), dataset.ClassNames)
		if err != nil {
			return nil, err
		}
		rv.Evaluation = &evaluationView{
			Accuracy:  ev.Accuracy,
			Precision: ev.Precision,
			Recall:    ev.Recall,
			F1:        ev.F1,
			Confusion: dataURI("image/png", cm),
			Report:    ev.Report,
		}
	}
	return rv, nil
}

type aboutView struct {
	Description template.HTML
	Available   bool
	Rows        int
	Red         int
	White       int
	Good        int
	NotGood     int
	Stats       []dataset.ColumnStats
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	view := aboutView{Description: s.about}
	if dv, err := s.preparedView(); err != nil {
		s.logger.Debug("Prepared dataset unavailable", log.ErrorKey, err)
	} else {
		view.Available = true
		view.Rows = dv.table.NRows()
		view.Stats = dv.stats
		view.NotGood, view.Good, _ = dv.table.ClassCounts()
		if types, err := dv.table.Column(dataset.WineTypeColumn); err == nil {
			for _, t := range types {
				if t == dataset.WineTypeRed {
					view.Red++
				} else {
					view.White++
				}
			}
		}
	}
	s.render(w, http.StatusOK, "about", page{Title: "About Dataset", Data: view})
}

type health struct {
	Status    string `json:"status"`
	Artifacts bool   `json:"artifacts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := s.registry.Summary()
	writeJSON(w, http.StatusOK, health{Status: "ok", Artifacts: err == nil})
}
