// Package main is the entry point for the pipeplot CLI.
//
// pipeplot can be used as a library (SDK) or as a standalone binary that
// plots whatever is piped into it. This CLI provides the standalone binary.
//
// Usage:
//
//	sensor | pipeplot run -r 'T=(\d+)' -n temp   # Plot a stream
//	pipeplot run -c pipeplot.yaml < /dev/ttyUSB0  # Plot with a config file
//	pipeplot validate -c pipeplot.yaml            # Validate configuration
//	pipeplot export --from ./archive -o run.csv   # Export a recorded run
//	pipeplot version                              # Show version info
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "pipeplot",
	Short: "Plot numbers from any text stream",
	Long: `pipeplot reads a byte stream, pulls numbers out of it with regular
expressions and plots them live in the browser.

Each regular expression is one channel. The first capture group of every
match is parsed as a number; a pattern without groups uses the whole match.

Quick start:
  1. Pipe something into it: my-sensor | pipeplot run -r 'T=(\d+)'
  2. Open http://localhost:8080 in your browser

With no -r flag, tokens written as $21.5$ are plotted on a single channel.`,
	SilenceUsage: true,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this pipeplot binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pipeplot %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "increase log verbosity (-v for debug)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format: json or text")

	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}

// newLogger creates the CLI logger on w.
//
// Logs go to stderr so that stdout stays free for exported data.
func newLogger(w io.Writer, format string, verbosity int) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbosity > 0 {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (expected 'json' or 'text')", format)
	}
}

// loggerFromFlags builds the logger selected by the persistent flags.
func loggerFromFlags(cmd *cobra.Command) (*slog.Logger, error) {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	format, _ := cmd.Flags().GetString("log-format")
	return newLogger(cmd.ErrOrStderr(), format, verbosity)
}
