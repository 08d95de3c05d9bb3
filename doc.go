// Package winequality classifies Portuguese "Vinho Verde" wines as Good
// (quality 7 or higher) or Not Good from 12 physicochemical features, and
// compares six classifiers on the task.
//
// The work is split across three commands that share files on disk:
//
//	go run ./cmd/prepare    # data/winequality-{red,white}.csv -> data/wine_quality_prepared.csv
//	go run ./cmd/train      # prepared CSV -> model/*.gob, results.json, results.csv, manifest.json
//	go run ./cmd/dashboard  # serves the comparison, predictions and dataset pages on :8501
//
// Settings come from an optional .env file, WINE_* environment variables
// and command-line flags; see package config.
//
// # Packages
//
//   - dataset: raw and prepared CSV I/O, preparation, stratified split,
//     uploads (CSV and XLSX) and descriptive statistics
//   - preprocessing: StandardScaler
//   - sklearn/linear_model, sklearn/tree, sklearn/neighbors,
//     sklearn/naive_bayes, sklearn/ensemble: the six classifiers
//   - metrics: accuracy, AUC, precision, recall, F1, MCC, confusion matrix
//     and classification report
//   - pipeline: the training run, artifact store, read-only registry and
//     batch predictor
//   - web: the dashboard
//   - core/model, core/parallel: estimator interfaces, gob persistence and
//     the worker fan-out used by the ensembles
//   - pkg/errors, pkg/log: typed errors and warnings, structured logging
//
// # Classifiers
//
// Every classifier follows the same shape:
//
//	clf := ensemble.NewRandomForestClassifier(
//	    ensemble.WithNEstimators(100),
//	    ensemble.WithForestRandomState(42),
//	)
//	if err := clf.Fit(XTrain, yTrain); err != nil {
//	    return err
//	}
//	proba, err := clf.PredictProba(XTest) // columns follow clf.Classes()
//
// Fitted classifiers and the scaler implement gob.GobEncoder and are saved
// with model.SaveModel; a reloaded model predicts exactly what the original
// did.
package winequality
