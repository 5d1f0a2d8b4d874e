package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pipeplot/config"
)

// validateCmd validates a config file without reading any input.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a pipeplot configuration file without reading any input.

This command parses the YAML, expands environment variables, compiles every
channel pattern and validates all fields. Patterns that do not have exactly
one capture group are reported as warnings: a pattern without groups plots
the whole match, and groups after the first are ignored.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  pipeplot validate -c pipeplot.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	set, err := config.BuildMatchers(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:       %d\n", cfg.Port)
	fmt.Fprintf(out, "  Window:     %s\n", cfg.Window.Duration())
	fmt.Fprintf(out, "  Chunk size: %d\n", cfg.ChunkSize)
	fmt.Fprintf(out, "  Channels:   %d\n", set.Len())

	for i, m := range set.Matchers() {
		fmt.Fprintf(out, "    [%d] %s: %s\n", i, m.Name(), m.Pattern())
		switch g := m.Groups(); {
		case g == 0:
			fmt.Fprintf(out, "        warning: no capture group, the whole match is plotted\n")
		case g > 1:
			fmt.Fprintf(out, "        warning: %d capture groups, only the first is plotted\n", g)
		}
	}

	return nil
}
