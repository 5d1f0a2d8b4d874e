package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pipeplot/internal/series"
	"github.com/jpalmerr/pipeplot/internal/sink"
)

// exportCmd converts a recorded run to CSV.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a recorded run as CSV",
	Long: `Export readings recorded by "pipeplot run" as CSV.

--from is either an archive directory written with --archive, or a CSV file
written with -o (plain or compressed). For an archive the most recent
stream is exported unless --stream names another one, and --pattern limits
the output to one channel pattern. Use --list to show the streams of an
archive.

Rows are written in arrival order. Readings extracted from the same read
share a timestamp and are ordered by channel, then by position.

The output format follows the -o extension (.gz, .zst, .lz4 compress).
Without -o, plain CSV is written to stdout.

Example:
  pipeplot export --from ./archive --list
  pipeplot export --from ./archive -o last.csv
  pipeplot export --from ./archive --pattern 'T=(\d+)' -o temp.csv.zst
  pipeplot export --from run.csv.gz -o run.csv`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	f := exportCmd.Flags()
	f.String("from", "", "archive directory or CSV file (required)")
	f.String("stream", "", "archive stream to export (default: most recent)")
	f.String("pattern", "", "only export readings of this channel pattern")
	f.StringP("output", "o", "", "output CSV file (default: stdout)")
	f.Bool("list", false, "list the streams of an archive and exit")
	_ = exportCmd.MarkFlagRequired("from")
}

func runExport(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	from, _ := f.GetString("from")
	stream, _ := f.GetString("stream")
	pattern, _ := f.GetString("pattern")
	output, _ := f.GetString("output")
	list, _ := f.GetBool("list")

	info, err := os.Stat(from)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", from, err)
	}

	var rows []sink.Row
	if info.IsDir() {
		streams, err := sink.Streams(from)
		if err != nil {
			return err
		}
		if list {
			printStreams(cmd, streams)
			return nil
		}

		meta, err := pickStream(streams, stream)
		if err != nil {
			return err
		}
		rows, err = sink.ReadArchive(from, meta.Stream, pattern)
		if err != nil {
			return err
		}
	} else {
		if list || stream != "" || pattern != "" {
			return errors.New("--list, --stream and --pattern require an archive directory")
		}
		rows, err = sink.ReadCSV(from)
		if err != nil {
			return err
		}
	}

	var out sink.Sink
	if output == "" {
		out = sink.NewCSV(cmd.OutOrStdout())
	} else {
		csv, err := sink.Open(output)
		if err != nil {
			return err
		}
		out = csv
	}

	if err := writeRows(out, rows); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func writeRows(s sink.Sink, rows []sink.Row) error {
	if err := s.WriteHeader(); err != nil {
		return err
	}
	for _, r := range rows {
		if err := s.WriteRow(r.Elapsed, series.Reading{Channel: r.Channel, Value: r.Value}); err != nil {
			return err
		}
	}
	return nil
}

// pickStream returns the named stream, or the most recent one when name
// is empty. streams are sorted oldest first.
func pickStream(streams []sink.ArchiveMeta, name string) (sink.ArchiveMeta, error) {
	if len(streams) == 0 {
		return sink.ArchiveMeta{}, errors.New("archive has no streams")
	}
	if name == "" {
		return streams[len(streams)-1], nil
	}
	for _, m := range streams {
		if m.Stream == name {
			return m, nil
		}
	}
	return sink.ArchiveMeta{}, fmt.Errorf("stream %q not found in archive", name)
}

func printStreams(cmd *cobra.Command, streams []sink.ArchiveMeta) {
	out := cmd.OutOrStdout()
	for _, m := range streams {
		fmt.Fprintf(out, "%s  %s  %d channels\n", m.Stream, m.Started.Format(time.RFC3339), len(m.Patterns))
		for i, p := range m.Patterns {
			fmt.Fprintf(out, "    [%d] %s\n", i, p)
		}
	}
}
