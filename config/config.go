// Package config resolves the settings shared by the prepare, train and
// dashboard commands from an optional .env file, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvDataDir     = "WINE_DATA_DIR"
	EnvModelDir    = "WINE_MODEL_DIR"
	EnvRedCSV      = "WINE_RED_CSV"
	EnvWhiteCSV    = "WINE_WHITE_CSV"
	EnvPreparedCSV = "WINE_PREPARED_CSV"
	EnvSeed        = "WINE_SEED"
	EnvTestSize    = "WINE_TEST_SIZE"
	EnvAddr        = "WINE_ADDR"
	EnvLogLevel    = "WINE_LOG_LEVEL"
	EnvLogFormat   = "WINE_LOG_FORMAT"
	EnvMaxUploadMB = "WINE_MAX_UPLOAD_MB"
)

// DefaultEnvFile is read when Load is called without files.
const DefaultEnvFile = ".env"

// Default file names inside the data directory.
const (
	RedFileName      = "winequality-red.csv"
	WhiteFileName    = "winequality-white.csv"
	PreparedFileName = "wine_quality_prepared.csv"
)

// Config is the complete application configuration.
type Config struct {
	Paths    PathConfig
	Training TrainingConfig
	Server   ServerConfig
	Log      LogConfig
}

// PathConfig locates inputs and artifacts. Empty file paths resolve
// against DataDir.
type PathConfig struct {
	DataDir     string
	ModelDir    string
	RedCSV      string
	WhiteCSV    string
	PreparedCSV string
}

// TrainingConfig holds the split parameters.
type TrainingConfig struct {
	Seed     int64
	TestSize float64
}

// ServerConfig holds dashboard settings.
type ServerConfig struct {
	Addr        string
	MaxUploadMB int
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string
	Format string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths:    PathConfig{DataDir: "data", ModelDir: "model"},
		Training: TrainingConfig{Seed: 42, TestSize: 0.2},
		Server:   ServerConfig{Addr: ":8501", MaxUploadMB: 10},
		Log:      LogConfig{Level: "info", Format: log.FormatConsole},
	}
}

// Red returns the raw red wine CSV path.
func (p PathConfig) Red() string { return p.inData(p.RedCSV, RedFileName) }

// White returns the raw white wine CSV path.
func (p PathConfig) White() string { return p.inData(p.WhiteCSV, WhiteFileName) }

// Prepared returns the prepared CSV path.
func (p PathConfig) Prepared() string { return p.inData(p.PreparedCSV, PreparedFileName) }

func (p PathConfig) inData(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(p.DataDir, name)
}

// MaxUploadBytes is the upload limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// Load reads the given .env files (DefaultEnvFile when none are given;
// missing files are skipped) and the process environment, which wins over
// the files. The result is validated.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	fileVars := make(map[string]string)
	for _, f := range envFiles {
		vars, err := godotenv.Read(f)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "read %s", f)
		}
		for k, v := range vars {
			if _, seen := fileVars[k]; !seen {
				fileVars[k] = v
			}
		}
	}
	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	})
}

// FromLookup builds a validated configuration from a variable lookup.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	get := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	get(EnvDataDir, &c.Paths.DataDir)
	get(EnvModelDir, &c.Paths.ModelDir)
	get(EnvRedCSV, &c.Paths.RedCSV)
	get(EnvWhiteCSV, &c.Paths.WhiteCSV)
	get(EnvPreparedCSV, &c.Paths.PreparedCSV)
	get(EnvAddr, &c.Server.Addr)
	get(EnvLogLevel, &c.Log.Level)
	get(EnvLogFormat, &c.Log.Format)

	var raw string
	if get(EnvSeed, &raw); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.NewValidationError(EnvSeed, "must be an integer", raw)
		}
		c.Training.Seed = seed
	}
	raw = ""
	if get(EnvTestSize, &raw); raw != "" {
		size, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.NewValidationError(EnvTestSize, "must be a number", raw)
		}
		c.Training.TestSize = size
	}
	raw = ""
	if get(EnvMaxUploadMB, &raw); raw != "" {
		mb, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.NewValidationError(EnvMaxUploadMB, "must be an integer", raw)
		}
		c.Server.MaxUploadMB = mb
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// RegisterFlags binds the overridable settings to fs, using the current
// values as defaults. Call Validate after parsing.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Paths.DataDir, "data-dir", c.Paths.DataDir, "directory holding the raw and prepared CSV files")
	fs.StringVar(&c.Paths.ModelDir, "model-dir", c.Paths.ModelDir, "directory holding the trained artifacts")
	fs.StringVar(&c.Paths.RedCSV, "red", c.Paths.RedCSV, "raw red wine CSV (default <data-dir>/"+RedFileName+")")
	fs.StringVar(&c.Paths.WhiteCSV, "white", c.Paths.WhiteCSV, "raw white wine CSV (default <data-dir>/"+WhiteFileName+")")
	fs.StringVar(&c.Paths.PreparedCSV, "prepared", c.Paths.PreparedCSV, "prepared CSV (default <data-dir>/"+PreparedFileName+")")
	fs.Int64Var(&c.Training.Seed, "seed", c.Training.Seed, "random seed for the split and the models")
	fs.Float64Var(&c.Training.TestSize, "test-size", c.Training.TestSize, "fraction of rows held out for evaluation")
	fs.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "dashboard listen address")
	fs.IntVar(&c.Server.MaxUploadMB, "max-upload-mb", c.Server.MaxUploadMB, "largest accepted upload in MiB")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "debug, info, warn or error")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "console or json")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return errors.NewValidationError("test_size", "must be in (0, 1)", c.Training.TestSize)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.NewValidationError("max_upload_mb", "must be positive", c.Server.MaxUploadMB)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case log.FormatConsole, log.FormatJSON:
	default:
		return errors.NewValidationError("log_format", "must be json or console", c.Log.Format)
	}
	if c.Paths.ModelDir == "" {
		return errors.NewValidationError("model_dir", "must not be empty", c.Paths.ModelDir)
	}
	return nil
}
