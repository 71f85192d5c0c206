package config

import "time"

// Default returns the configuration used when a field or file is absent.
// The numeric values match the package-level defaults of the layers they
// configure.
func Default() *Config {
	return &Config{
		Ingestion: IngestionConfig{
			BufferSize:    64,
			FlushInterval: 5 * time.Second,
		},
		Extraction: ExtractionConfig{
			MinSupport: 3,
			Window:     30 * time.Minute,
		},
		Clustering: ClusteringConfig{
			Threshold: 0.3,
			MinSize:   2,
		},
		Prediction: PredictionConfig{
			AutoExecuteThreshold: 0.80,
			SuggestThreshold:     0.50,
			MaxSuggestions:       3,
		},
		Execution: ExecutionConfig{
			RunTimeout:  10 * time.Minute,
			StepTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			Color: true,
		},
	}
}
