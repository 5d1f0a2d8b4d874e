package config

import (
	"github.com/jpalmerr/pipeplot"
)

// BuildMatchers compiles the configured channels into a matcher set.
//
// A config without channels yields [pipeplot.DefaultMatcherSet].
func BuildMatchers(cfg *Config) (pipeplot.MatcherSet, error) {
	set, err := pipeplot.NewMatcherSet(cfg.Patterns()...)
	if err != nil {
		return pipeplot.MatcherSet{}, err
	}
	return set.WithNames(cfg.Names()...), nil
}

// BuildOptions converts parsed configuration into SDK options.
//
// Only fields that were set contribute an option, so the result can be
// followed by further options that override it.
func BuildOptions(cfg *Config) ([]pipeplot.Option, error) {
	set, err := BuildMatchers(cfg)
	if err != nil {
		return nil, err
	}

	opts := []pipeplot.Option{
		pipeplot.WithMatchers(set),
		pipeplot.WithExitOnClose(cfg.ExitOnClose),
	}

	if cfg.Port != 0 {
		opts = append(opts, pipeplot.WithPort(cfg.Port))
	}
	if cfg.Window != 0 {
		opts = append(opts, pipeplot.WithWindow(cfg.Window.Duration()))
	}
	if cfg.ChunkSize != 0 {
		opts = append(opts, pipeplot.WithChunkSize(cfg.ChunkSize))
	}
	if cfg.MaxBuffer != nil {
		opts = append(opts, pipeplot.WithMaxBuffer(*cfg.MaxBuffer))
	}
	if cfg.Title != "" {
		opts = append(opts, pipeplot.WithTitle(cfg.Title))
	}
	if cfg.Output != "" {
		opts = append(opts, pipeplot.WithOutput(cfg.Output))
	}
	if cfg.Archive != "" {
		opts = append(opts, pipeplot.WithArchive(cfg.Archive))
	}

	return opts, nil
}
