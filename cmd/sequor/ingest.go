package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pudingtabi/sequor/pkg/extractor"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

func ingestCMD(cfgPath *string) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Append JSONL events to the event log",
		Long: `Reads one JSON event per line ({"session_id", "tool", "operation",
"params", "success", "duration_ms", "timestamp"}) and appends them to the
configured event store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if err := setupLogging(cfg); err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			ing := extractor.NewIngestor(store,
				extractor.WithBufferSize(cfg.Ingestion.BufferSize),
				extractor.WithFlushInterval(cfg.Ingestion.FlushInterval),
			)

			count := 0
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				var e workflow.Event
				if err := json.Unmarshal(line, &e); err != nil {
					return fmt.Errorf("line %d: %w", count+1, err)
				}
				ing.LogEvent(e)
				count++
			}
			if err := scanner.Err(); err != nil {
				return err
			}
			if err := ing.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d events\n", count)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSONL file to read ('-' for stdin)")

	return cmd
}
