package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/vehicle-ai-core/internal/command"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/logging"
	"github.com/nerrad567/vehicle-ai-core/internal/nlp"
)

// parseOutput is printed by the parse command.
type parseOutput struct {
	Text       string          `json:"text"`
	Result     nlp.ParseResult `json:"result"`
	Action     string          `json:"action"`
	Parameters map[string]any  `json:"parameters"`
	Threshold  float64         `json:"threshold"`
	Executable bool            `json:"executable"`
}

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <text>",
		Short: "Interpret a command without executing it",
		Long: `Runs text through the ML parser (or the keyword fallback when the
service is unreachable) and prints the normalized result, the action it maps
to, and whether it would pass the confidence gate.`,
		Example: `  vehicled parse "make it warmer"
  vehicled parse --threshold 0.3 "turn the music down"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(configPath(cmd))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			threshold := cfg.NLP.HTTPThreshold
			if cmd.Flags().Changed("threshold") {
				threshold, _ = cmd.Flags().GetFloat64("threshold")
			}

			// Stdout carries the JSON result; keep diagnostics off it.
			logCfg := cfg.Logging
			logCfg.Output = "stderr"
			log := logging.New(logCfg, version)

			parser := nlp.NewNormalizer(nlp.NewMLClient(cfg.ML),
				nlp.WithKeywordFallback(cfg.Features.MLFallback),
				nlp.WithLogger(log),
			)

			text := strings.Join(args, " ")
			res := parser.Parse(cmd.Context(), text)
			action, params := nlp.Translate(res)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(parseOutput{
				Text:       text,
				Result:     res,
				Action:     action,
				Parameters: params,
				Threshold:  threshold,
				Executable: command.Allowed(res, threshold),
			})
		},
	}
	cmd.Flags().Float64("threshold", 0, "Confidence gate to evaluate (default nlp.http_threshold)")
	return cmd
}
