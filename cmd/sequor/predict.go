package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pudingtabi/sequor/pkg/predictor"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

func predictCMD(cfgPath *string) *cobra.Command {
	var patternsPath string
	var contextPairs []string

	cmd := &cobra.Command{
		Use:   "predict <task description>",
		Short: "Predict the best workflow pattern for a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if err := setupLogging(cfg); err != nil {
				return err
			}

			registry, err := loadPatterns(patternsPath)
			if err != nil {
				return err
			}

			taskContext := make(map[string]interface{}, len(contextPairs))
			for _, pair := range contextPairs {
				k, v, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("context entry %q is not key=value", pair)
				}
				taskContext[k] = v
			}

			decision := predictor.New(registry).PredictWorkflow(
				cmd.Context(), strings.Join(args, " "), taskContext)

			out := cmd.OutOrStdout()
			switch decision.Outcome {
			case predictor.OutcomeReady:
				fmt.Fprintf(out, "ready: %s (score %.2f)\n", decision.Pattern.Name, decision.Score)
				if len(decision.Bindings) > 0 {
					raw, _ := json.MarshalIndent(decision.Bindings, "", "  ")
					fmt.Fprintf(out, "bindings: %s\n", raw)
				}
			case predictor.OutcomeSuggest:
				fmt.Fprintf(out, "suggest (top score %.2f):\n", decision.Score)
				for _, p := range decision.Suggestions {
					fmt.Fprintf(out, "  %s\n", p.Name)
				}
			default:
				fmt.Fprintf(out, "manual: %s\n", decision.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&patternsPath, "patterns", "p", "", "JSON file of patterns (required)")
	cmd.Flags().StringArrayVar(&contextPairs, "context", nil, "task context entries as key=value")
	_ = cmd.MarkFlagRequired("patterns")

	return cmd
}

func loadPatterns(path string) (*workflow.InMemoryPatternRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var patterns []*workflow.Pattern
	if err := json.Unmarshal(raw, &patterns); err != nil {
		return nil, fmt.Errorf("failed to parse patterns file: %w", err)
	}

	registry := workflow.NewInMemoryPatternRegistry()
	for _, p := range patterns {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
