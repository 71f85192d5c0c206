// Package config loads and validates the YAML configuration for the
// ingestion, extraction, clustering, prediction, and execution layers.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pudingtabi/sequor/pkg/errors"
)

// Config is the root configuration.
type Config struct {
	// Ingestion controls the buffered event-ingestion actor.
	Ingestion IngestionConfig `yaml:"ingestion,omitempty" validate:"omitempty"`

	// Extraction controls pattern mining over the event log.
	Extraction ExtractionConfig `yaml:"extraction,omitempty" validate:"omitempty"`

	// Clustering controls pattern grouping by graph-edit distance.
	Clustering ClusteringConfig `yaml:"clustering,omitempty" validate:"omitempty"`

	// Prediction controls workflow prediction scoring cutoffs.
	Prediction PredictionConfig `yaml:"prediction,omitempty" validate:"omitempty"`

	// Execution controls pattern runs.
	Execution ExecutionConfig `yaml:"execution,omitempty" validate:"omitempty"`

	// Logging controls log output.
	Logging LoggingConfig `yaml:"logging,omitempty" validate:"omitempty"`
}

// IngestionConfig configures the event store and ingestion actor.
type IngestionConfig struct {
	// StorePath is the SQLite event-log file. Empty selects the in-memory
	// store.
	StorePath string `yaml:"store_path,omitempty"`

	BufferSize    int           `yaml:"buffer_size,omitempty" validate:"omitempty,min=1"`
	FlushInterval time.Duration `yaml:"flush_interval,omitempty" validate:"omitempty,min=0"`
}

// ExtractionConfig configures pattern mining.
type ExtractionConfig struct {
	MinSupport int           `yaml:"min_support,omitempty" validate:"omitempty,min=1"`
	Window     time.Duration `yaml:"window,omitempty" validate:"omitempty,min=0"`
}

// ClusteringConfig configures agglomerative clustering.
type ClusteringConfig struct {
	Threshold float64 `yaml:"threshold,omitempty" validate:"omitempty,gt=0"`
	MinSize   int     `yaml:"min_size,omitempty" validate:"omitempty,min=1"`
}

// PredictionConfig configures decision cutoffs. Thresholds are inclusive
// and AutoExecute must not sit below Suggest.
type PredictionConfig struct {
	AutoExecuteThreshold float64 `yaml:"auto_execute_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	SuggestThreshold     float64 `yaml:"suggest_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	MaxSuggestions       int     `yaml:"max_suggestions,omitempty" validate:"omitempty,min=1"`
}

// ExecutionConfig configures pattern runs.
type ExecutionConfig struct {
	RunTimeout  time.Duration `yaml:"run_timeout,omitempty" validate:"omitempty,min=0"`
	StepTimeout time.Duration `yaml:"step_timeout,omitempty" validate:"omitempty,min=0"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level    string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error fatal"`
	FilePath string `yaml:"file_path,omitempty"`
	Color    bool   `yaml:"color,omitempty"`
}

// Load reads a YAML config file, overlays it on the defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.InvalidInput, "failed to read config file"),
			errors.Fields{"path": path},
		)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes over the defaults and validates the result.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints plus the cross-field threshold
// ordering.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, errors.ValidationFailed, "invalid configuration")
	}
	if c.Prediction.AutoExecuteThreshold < c.Prediction.SuggestThreshold {
		return errors.New(errors.ValidationFailed, "auto_execute_threshold must not be below suggest_threshold")
	}
	return nil
}
