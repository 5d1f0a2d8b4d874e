package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pipeplot"
	"github.com/jpalmerr/pipeplot/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// runCmd plots the stream arriving on stdin.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plot numbers read from stdin",
	Long: `Read stdin, extract one number per match of each pattern and serve
a live plot.

Settings come from the config file first; flags given on the command line
override them. Repeat -r once per channel, and -n to name the channels in
the same order.

pipeplot keeps serving the final window after stdin ends until
interrupted (Ctrl+C) or SIGTERM, unless --exit-on-close is set.

Example:
  my-sensor | pipeplot run -r 'T=(-?\d+\.?\d*)' -n temp -r 'H=(\d+)' -n humidity
  pipeplot run -c pipeplot.yaml -o run.csv.zst < /dev/ttyUSB0
  seq 1 100 | pipeplot run -r '\d+' --headless -o out.csv`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringP("config", "c", "", "path to config file")
	f.StringArrayP("regex", "r", nil, "channel pattern, repeat once per channel")
	f.StringArrayP("name", "n", nil, "channel name, in the same order as -r")
	f.StringP("output", "o", "", "write every reading to this CSV file (.gz, .zst, .lz4 compress)")
	f.String("archive", "", "record every reading in this archive directory")
	f.String("title", "", "dashboard title")
	f.Int("port", 8080, "dashboard HTTP port")
	f.Int64("window", 5000, "window length in milliseconds")
	f.Int("chunk-size", 128, "bytes requested per read")
	f.Int("max-buffer", 1<<20, "max bytes held waiting for a match (0 = unbounded)")
	f.Bool("exit-on-close", false, "exit when stdin ends")
	f.Bool("headless", false, "do not start the dashboard server (implies --exit-on-close)")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}

	opts, err := buildRunOptions(cmd)
	if err != nil {
		return err
	}
	opts = append(opts,
		pipeplot.WithInput(cmd.InOrStdin()),
		pipeplot.WithLogger(logger),
	)

	p, err := pipeplot.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create plotter: %w", err)
	}

	logger.Info("starting",
		"channels", p.Matchers().Len(),
		"port", p.Port(),
		"window", p.Window().String(),
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return startWithTimeout(ctx, p.Start, logger.Warn)
}

// startWithTimeout runs start and waits for it to return, giving it
// shutdownTimeout to finish once ctx is cancelled.
func startWithTimeout(ctx context.Context, start func(context.Context) error, warn func(string, ...any)) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- start(ctx)
	}()

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			return err
		case <-time.After(shutdownTimeout):
			warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// buildRunOptions merges the config file with the flags that were set.
func buildRunOptions(cmd *cobra.Command) ([]pipeplot.Option, error) {
	f := cmd.Flags()

	var (
		cfg  *config.Config
		opts []pipeplot.Option
		err  error
	)

	if path, _ := f.GetString("config"); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		opts, err = config.BuildOptions(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build options: %w", err)
		}
	}

	set, err := matchersFromFlags(cmd, cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pipeplot.WithMatchers(set))

	if f.Changed("output") {
		v, _ := f.GetString("output")
		opts = append(opts, pipeplot.WithOutput(v))
	}
	if f.Changed("archive") {
		v, _ := f.GetString("archive")
		opts = append(opts, pipeplot.WithArchive(v))
	}
	if f.Changed("title") {
		v, _ := f.GetString("title")
		opts = append(opts, pipeplot.WithTitle(v))
	}
	if f.Changed("port") {
		v, _ := f.GetInt("port")
		opts = append(opts, pipeplot.WithPort(v))
	}
	if f.Changed("window") {
		v, _ := f.GetInt64("window")
		opts = append(opts, pipeplot.WithWindow(time.Duration(v)*time.Millisecond))
	}
	if f.Changed("chunk-size") {
		v, _ := f.GetInt("chunk-size")
		opts = append(opts, pipeplot.WithChunkSize(v))
	}
	if f.Changed("max-buffer") {
		v, _ := f.GetInt("max-buffer")
		opts = append(opts, pipeplot.WithMaxBuffer(v))
	}
	if f.Changed("exit-on-close") {
		v, _ := f.GetBool("exit-on-close")
		opts = append(opts, pipeplot.WithExitOnClose(v))
	}
	if f.Changed("headless") {
		v, _ := f.GetBool("headless")
		opts = append(opts, pipeplot.WithHeadless(v))
	}

	return opts, nil
}

// matchersFromFlags picks the channel patterns: -r flags win over the
// config file, which wins over the default set. -n names are applied last.
func matchersFromFlags(cmd *cobra.Command, cfg *config.Config) (pipeplot.MatcherSet, error) {
	f := cmd.Flags()
	regexes, _ := f.GetStringArray("regex")
	names, _ := f.GetStringArray("name")

	var (
		set pipeplot.MatcherSet
		err error
	)
	switch {
	case len(regexes) > 0:
		set, err = pipeplot.NewMatcherSet(regexes...)
	case cfg != nil:
		set, err = config.BuildMatchers(cfg)
	default:
		set = pipeplot.DefaultMatcherSet()
	}
	if err != nil {
		return pipeplot.MatcherSet{}, err
	}

	if len(names) > set.Len() {
		return pipeplot.MatcherSet{}, fmt.Errorf("%d names given for %d channels", len(names), set.Len())
	}
	return set.WithNames(names...), nil
}
