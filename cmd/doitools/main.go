// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the doitools CLI, which finds
// cryptobib entries without a DOI, searches Crossref for them, decides which
// search results are the same publication, and patches the accepted DOIs
// into the bibliography.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kmccurley/cryptobib/internal/config"
	"github.com/kmccurley/cryptobib/internal/lookup"
	"github.com/kmccurley/cryptobib/internal/observability"
	"github.com/kmccurley/cryptobib/internal/secrets"
	"github.com/kmccurley/cryptobib/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// v holds flags, file and environment configuration.
	v = config.New()

	// configErr is the error from initConfig, reported by PersistentPreRunE.
	configErr error

	// cfg is the validated configuration of the running command.
	cfg types.PipelineConfig

	logger  = zerolog.Nop()
	metrics *observability.Metrics
)

// rootCmd is the base command for the doitools CLI.
var rootCmd = &cobra.Command{
	Use:   "doitools",
	Short: "Find and insert missing DOIs in the cryptobib bibliography",
	Long: `doitools adds DOIs to cryptobib entries that lack one.

The work is split into stages that communicate through files, so each can be
rerun or inspected on its own:

  detect   list article and inproceedings entries without a doi field
  lookup   search Crossref for a window of those entries
  resolve  pick the candidate that is the same publication, if any
  patch    insert the accepted DOIs into the bibliography
  review   list the records a resolve run could not match`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return withExit(ExitConfigError, configErr)
		}

		dir, _ := cmd.Flags().GetString("secrets_dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return withExit(ExitConfigError, err)
		}

		cfg, err = config.Load(v, s)
		if err != nil {
			return withExit(ExitConfigError, err)
		}

		logger = observability.NewLogger(cfg.Logging, os.Stderr)
		if used := v.ConfigFileUsed(); used != "" {
			logger.Info().Str("file", used).Msg("using config file")
		}
		if len(s) > 0 {
			logger.Debug().Strs("keys", slices.Sorted(maps.Keys(s))).Msg("loaded secrets")
		}

		metrics = observability.NewMetrics("doitools")
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./doitools.yaml or ~/.config/doitools/doitools.yaml)")
	pf.String("secrets_dir", secrets.DefaultDir, "directory of secret files")
	pf.String("metrics_file", "", "write Prometheus metrics to this file when the command ends")
	pf.String("log_level", "", "log level: trace, debug, info, warn, error")
	pf.String("log_format", "", "log format: console or json")

	_ = v.BindPFlag("logging.level", pf.Lookup("log_level"))
	_ = v.BindPFlag("logging.format", pf.Lookup("log_format"))
}

func initConfig() {
	if err := config.LoadDotEnv(".env"); err != nil {
		configErr = err
		return
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "doitools"))
	}
	if _, err := config.ReadFile(v, cfgFile, paths...); err != nil {
		configErr = err
	}
}

// bindFlag makes a command flag override a configuration key when set.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding %s to --%s: %v", key, flag, err))
	}
}

// requireFile checks that an input file exists.
func requireFile(flag, path string) error {
	if path == "" {
		return fmt.Errorf("--%s is required", flag)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputMissing, path)
		}
		return fmt.Errorf("checking %s: %w", path, err)
	}
	return nil
}

// checkOutput fails with lookup.ErrOutputExists when path already exists,
// so a run stops before doing any work it could not save.
func checkOutput(path string) error {
	if path == "" || path == "-" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", lookup.ErrOutputExists, path)
	}
	return nil
}

// nopCloser keeps stdout open when an output file is not given.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// createOutput opens path for writing, refusing to overwrite an existing
// file. An empty path or "-" selects stdout.
func createOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := lookup.CreateExclusive(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// writeMetrics writes the metrics textfile when --metrics_file was given.
func writeMetrics() {
	path, _ := rootCmd.PersistentFlags().GetString("metrics_file")
	if err := metrics.WriteTextfile(path); err != nil {
		logger.Error().Err(err).Msg("writing metrics")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	writeMetrics()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
