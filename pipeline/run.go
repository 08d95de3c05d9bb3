package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/dataset"
	"github.com/iitrpratibha/ml-wine-quality-classification/metrics"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
	"github.com/iitrpratibha/ml-wine-quality-classification/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// Defaults of a training run.
const (
	DefaultSeed     int64   = 42
	DefaultTestSize float64 = 0.2
)

// RunConfig configures a training run.
type RunConfig struct {
	Seed     int64
	TestSize float64

	// Algorithms to train, in order. Empty means Algorithms().
	Algorithms []Algorithm

	// Store receives the artifacts. Nil skips persistence.
	Store *Store

	// Now stamps the manifest; nil uses time.Now.
	Now func() time.Time
}

// DefaultRunConfig returns the configuration of the reference run.
func DefaultRunConfig() RunConfig {
	return RunConfig{Seed: DefaultSeed, TestSize: DefaultTestSize}
}

// ModelResult is the outcome of training one algorithm.
type ModelResult struct {
	Algorithm Algorithm
	Model     model.Classifier
	Scores    Scores
	LogLoss   float64

	// ProbabilityFallback is set when the classifier had no probability
	// estimates and its labels were scored as pseudo-probabilities.
	ProbabilityFallback bool
	FitDuration         time.Duration
}

// Report is everything a training run produced.
type Report struct {
	RunID    string
	Summary  *Summary
	Results  []ModelResult
	Scaler   *preprocessing.StandardScaler
	Split    *dataset.Split
	Manifest *Manifest
}

// Run splits the prepared table, fits the scaler on the training rows,
// trains and scores every algorithm on the scaled test rows and, when
// cfg.Store is set, persists all artifacts. The first failing algorithm
// aborts the run.
func Run(ctx context.Context, cfg RunConfig, table *dataset.Table) (*Report, error) {
	algs := cfg.Algorithms
	if len(algs) == 0 {
		algs = Algorithms()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	runID := uuid.NewString()
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID)

	X, y, err := table.XY()
	if err != nil {
		return nil, err
	}
	split, err := dataset.StratifiedSplit(X, y, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}
	nTrain, nFeatures := split.XTrain.Dims()
	nTest, _ := split.XTest.Dims()
	logger.Info("Dataset split",
		log.SamplesKey, nTrain+nTest,
		log.FeaturesKey, nFeatures,
		"train", nTrain,
		"test", nTest,
		log.RandomSeedKey, cfg.Seed,
	)

	scaler := preprocessing.NewStandardScaler()
	XTrain, err := scaler.FitTransform(split.XTrain)
	if err != nil {
		return nil, errors.Wrap(err, "scale training features")
	}
	XTest, err := scaler.Transform(split.XTest)
	if err != nil {
		return nil, errors.Wrap(err, "scale test features")
	}

	yTest := mat.Col(nil, 0, split.YTest)
	report := &Report{
		RunID:   runID,
		Summary: NewSummary(),
		Scaler:  scaler,
		Split:   split,
	}

	for _, alg := range algs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := trainOne(ctx, alg, cfg.Seed, XTrain, split.YTrain, XTest, yTest)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", alg.Name())
		}
		logger.Info("Model evaluated",
			log.ModelNameKey, alg.Name(),
			log.DurationMsKey, res.FitDuration.Milliseconds(),
			log.AccuracyKey, res.Scores.Accuracy,
			log.AUCKey, res.Scores.AUC,
			log.PrecisionKey, res.Scores.Precision,
			log.RecallKey, res.Scores.Recall,
			log.F1Key, res.Scores.F1,
			log.MCCKey, res.Scores.MCC,
		)
		report.Results = append(report.Results, res)
		report.Summary.Set(alg.Name(), res.Scores)
	}

	report.Manifest = buildManifest(runID, now(), cfg, split, report)

	if cfg.Store != nil {
		if err := persist(cfg.Store, report); err != nil {
			return nil, err
		}
		logger.Info("Artifacts saved", log.PathKey, cfg.Store.Dir())
	}
	return report, nil
}

// fitContexter is implemented by estimators that can stop early.
type fitContexter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

func trainOne(ctx context.Context, alg Algorithm, seed int64, XTrain, yTrain, XTest mat.Matrix, yTest []float64) (ModelResult, error) {
	res := ModelResult{Algorithm: alg, Model: alg.New(seed)}

	start := time.Now()
	err := errors.SafeExecute(alg.Slug()+".fit", func() error {
		if fc, ok := res.Model.(fitContexter); ok {
			return fc.FitContext(ctx, XTrain, yTrain)
		}
		return res.Model.Fit(XTrain, yTrain)
	})
	if err != nil {
		return res, errors.Wrap(err, "fit")
	}
	res.FitDuration = time.Since(start)

	var pred, score []float64
	err = errors.SafeExecute(alg.Slug()+".predict", func() error {
		p, err := res.Model.Predict(XTest)
		if err != nil {
			return err
		}
		pred = mat.Col(nil, 0, p)
		score, res.ProbabilityFallback, err = PositiveScores(alg.Name(), res.Model, XTest, pred)
		return err
	})
	if err != nil {
		return res, errors.Wrap(err, "predict")
	}

	res.Scores, err = Evaluate(yTest, pred, score)
	if err != nil {
		return res, errors.Wrap(err, "evaluate")
	}
	res.LogLoss, err = metrics.BinaryLogLoss(vecOf(yTest), vecOf(score))
	if err != nil {
		return res, errors.Wrap(err, "log loss")
	}
	return res, nil
}

// PositiveScores returns P(label=1) per row. A classifier without
// probability estimates falls back to its predicted labels, which is
// reported through a ProbabilityFallbackWarning and the returned flag.
func PositiveScores(name string, m model.Classifier, X mat.Matrix, pred []float64) (scores []float64, fallback bool, err error) {
	pc, ok := m.(model.ProbabilisticClassifier)
	if !ok {
		errors.Warn(errors.NewProbabilityFallbackWarning(name))
		return append([]float64(nil), pred...), true, nil
	}
	proba, err := pc.PredictProba(X)
	if err != nil {
		return nil, false, err
	}
	n, _ := proba.Dims()
	scores = make([]float64, n)
	for k, c := range pc.Classes() {
		if c == metrics.PositiveLabel {
			mat.Col(scores, k, proba)
		}
	}
	return scores, false, nil
}

func buildManifest(runID string, at time.Time, cfg RunConfig, split *dataset.Split, r *Report) *Manifest {
	nTrain, _ := split.XTrain.Dims()
	nTest, _ := split.XTest.Dims()
	m := &Manifest{
		RunID:          runID,
		CreatedAt:      at.UTC(),
		Seed:           cfg.Seed,
		TestSize:       cfg.TestSize,
		TrainSamples:   nTrain,
		TestSamples:    nTest,
		TrainPositives: int(mat.Sum(split.YTrain)),
		TestPositives:  int(mat.Sum(split.YTest)),
		Features:       append([]string(nil), dataset.FeatureNames...),
		Best:           make(map[Metric]BestModel, len(Metrics)),
	}
	for _, res := range r.Results {
		m.Models = append(m.Models, ManifestModel{
			Name:                res.Algorithm.Name(),
			File:                res.Algorithm.FileName(),
			FitSeconds:          res.FitDuration.Seconds(),
			LogLoss:             Round4(res.LogLoss),
			ProbabilityFallback: res.ProbabilityFallback,
		})
	}
	for _, metric := range Metrics {
		name, score := r.Summary.Best(metric)
		m.Best[metric] = BestModel{Model: name, Score: score}
	}
	return m
}

func persist(store *Store, r *Report) error {
	for _, res := range r.Results {
		if err := store.SaveModel(res.Algorithm, res.Model); err != nil {
			return err
		}
	}
	if err := store.SaveScaler(r.Scaler); err != nil {
		return err
	}
	if err := store.SaveSummary(r.Summary); err != nil {
		return err
	}
	return store.SaveManifest(r.Manifest)
}
