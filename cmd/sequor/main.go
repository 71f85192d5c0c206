// Command sequor mines workflow patterns from tool-usage event logs,
// clusters them, and predicts the best pattern for a task description.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pudingtabi/sequor/pkg/config"
	"github.com/pudingtabi/sequor/pkg/extractor"
	"github.com/pudingtabi/sequor/pkg/logging"
)

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:   "sequor",
		Short: "Mine, cluster, and predict tool-usage workflow patterns",
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML)")

	root.AddCommand(ingestCMD(&cfgPath), extractCMD(&cfgPath), clusterCMD(&cfgPath), predictCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogging(cfg *config.Config) error {
	outputs := []logging.Output{
		logging.NewConsoleOutput(true, logging.WithColor(cfg.Logging.Color)),
	}
	if cfg.Logging.FilePath != "" {
		fileOut, err := logging.NewFileOutput(cfg.Logging.FilePath)
		if err != nil {
			return err
		}
		outputs = append(outputs, fileOut)
	}
	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(strings.ToUpper(cfg.Logging.Level)),
		Outputs:  outputs,
	}))
	return nil
}

// openStore picks the SQLite event log when one is configured, the
// in-memory store otherwise. The returned closer is safe to call on
// either.
func openStore(cfg *config.Config) (extractor.EventStore, func() error, error) {
	if cfg.Ingestion.StorePath == "" {
		return extractor.NewInMemoryEventStore(), func() error { return nil }, nil
	}
	store, err := extractor.NewSQLiteEventStore(cfg.Ingestion.StorePath)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
