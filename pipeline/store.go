package pipeline

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/preprocessing"
)

// Artifact file names inside the model directory.
const (
	ScalerFile      = "scaler.gob"
	SummaryJSONFile = "results.json"
	SummaryCSVFile  = "results.csv"
	ManifestFile    = "manifest.json"
)

// Manifest describes one training run.
type Manifest struct {
	RunID          string               `json:"run_id"`
	CreatedAt      time.Time            `json:"created_at"`
	Seed           int64                `json:"seed"`
	TestSize       float64              `json:"test_size"`
	TrainSamples   int                  `json:"train_samples"`
	TestSamples    int                  `json:"test_samples"`
	TrainPositives int                  `json:"train_positives"`
	TestPositives  int                  `json:"test_positives"`
	Features       []string             `json:"features"`
	Models         []ManifestModel      `json:"models"`
	Best           map[Metric]BestModel `json:"best"`
}

// ManifestModel records one persisted classifier.
type ManifestModel struct {
	Name                string  `json:"name"`
	File                string  `json:"file"`
	FitSeconds          float64 `json:"fit_seconds"`
	LogLoss             float64 `json:"log_loss"`
	ProbabilityFallback bool    `json:"probability_fallback,omitempty"`
}

// BestModel is the winner of one metric.
type BestModel struct {
	Model string  `json:"model"`
	Score float64 `json:"score"`
}

// Store reads and writes training artifacts in one directory. Every write
// replaces its file wholesale through a temp file and rename.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the full path of an artifact file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// SaveModel persists a fitted classifier as <slug>.gob.
func (s *Store) SaveModel(a Algorithm, m model.Classifier) error {
	return model.SaveModel(m, s.Path(a.FileName()))
}

// LoadModel restores the classifier of algorithm a.
func (s *Store) LoadModel(a Algorithm) (model.Classifier, error) {
	if !a.Valid() {
		return nil, errors.NewValidationError("model", "unknown algorithm", int(a))
	}
	m := a.New(0)
	if err := model.LoadModel(m, s.Path(a.FileName())); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveScaler persists the fitted scaler.
func (s *Store) SaveScaler(sc *preprocessing.StandardScaler) error {
	return model.SaveModel(sc, s.Path(ScalerFile))
}

// LoadScaler restores the fitted scaler.
func (s *Store) LoadScaler() (*preprocessing.StandardScaler, error) {
	sc := preprocessing.NewStandardScaler()
	if err := model.LoadModel(sc, s.Path(ScalerFile)); err != nil {
		return nil, err
	}
	if !sc.IsFitted() {
		return nil, errors.NewArtifactError("load", s.Path(ScalerFile), errors.New("scaler is not fitted"))
	}
	return sc, nil
}

// SaveSummary writes results.json and results.csv.
func (s *Store) SaveSummary(sum *Summary) error {
	if err := s.writeJSON(SummaryJSONFile, sum); err != nil {
		return err
	}
	return model.WriteFileAtomic(s.Path(SummaryCSVFile), sum.WriteCSV)
}

// LoadSummary reads results.json.
func (s *Store) LoadSummary() (*Summary, error) {
	sum := NewSummary()
	if err := s.readJSON(SummaryJSONFile, sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// SaveManifest writes manifest.json.
func (s *Store) SaveManifest(m *Manifest) error {
	return s.writeJSON(ManifestFile, m)
}

// LoadManifest reads manifest.json.
func (s *Store) LoadManifest() (*Manifest, error) {
	var m Manifest
	if err := s.readJSON(ManifestFile, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return errors.NewArtifactError("save", s.Path(name), err)
	}
	return model.WriteFileAtomic(s.Path(name), func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

func (s *Store) readJSON(name string, v interface{}) error {
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewArtifactError("load", path, errors.ErrArtifactNotFound)
		}
		return errors.NewArtifactError("load", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewArtifactError("load", path, err)
	}
	return nil
}
