package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/pudingtabi/sequor/pkg/extractor"
)

func extractCMD(cfgPath *string) *cobra.Command {
	var minSupport int
	var sessions []string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Mine recurring patterns from the event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if err := setupLogging(cfg); err != nil {
				return err
			}

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			support := cfg.Extraction.MinSupport
			if minSupport > 0 {
				support = minSupport
			}

			patterns, err := extractor.New(store).ExtractPatterns(cmd.Context(), extractor.Options{
				MinSupport: support,
				Window:     cfg.Extraction.Window,
				SessionIDs: sessions,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(patterns)
		},
	}
	cmd.Flags().IntVar(&minSupport, "min-support", 0, "override the configured minimum support")
	cmd.Flags().StringSliceVar(&sessions, "session", nil, "restrict mining to these session ids")

	return cmd
}
