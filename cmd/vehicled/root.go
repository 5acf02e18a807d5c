package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// defaultConfigPath is used when neither --config nor VEHICLE_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vehicled",
		Short:         "Vehicle AI Core backend",
		Long:          `vehicled serves the vehicle state API, the dashboard WebSocket and the voice command pipeline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to config.yaml (default $VEHICLE_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(newServeCmd(), newParseCmd(), newVersionCmd())
	return root
}

// configPath resolves the configuration file: the --config flag wins,
// then VEHICLE_CONFIG, then the default path.
func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path != "" {
		return path
	}
	if path := os.Getenv("VEHICLE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vehicled version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vehicled %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
