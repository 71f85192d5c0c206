package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/pudingtabi/sequor/pkg/cluster"
	"github.com/pudingtabi/sequor/pkg/extractor"
)

func clusterCMD(cfgPath *string) *cobra.Command {
	var minSupport int

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Mine patterns and group them by structural similarity",
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
			})
			if err != nil {
				return err
			}

			clusters, err := cluster.ClusterPatterns(cmd.Context(), patterns, cluster.Options{
				Threshold: cfg.Clustering.Threshold,
				MinSize:   cfg.Clustering.MinSize,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(clusters)
		},
	}
	cmd.Flags().IntVar(&minSupport, "min-support", 0, "override the configured minimum support")

	return cmd
}
