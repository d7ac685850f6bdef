package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/djlord-it/eoflow/internal/config"
	"github.com/djlord-it/eoflow/internal/process"
	"github.com/djlord-it/eoflow/internal/seed"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func invalidConfig(err error) error {
	return &exitError{code: exitInvalidConfig, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitRuntimeError
}

func main() {
	root := newRootCmd()
	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "eoflow: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "eoflow",
		Short: "eoflow - execution orchestration for earth-observation processes",
		Long: `eoflow runs processes, workflows and cron schedules for an
earth-observation data service, locally or on a Prefect-compatible backend.

Configuration comes from environment variables (STATE_DIR, STATE_BACKEND,
SCHEDULER_POLL_INTERVAL, REMOTE_API_URL, HTTP_ADDR, ...) optionally layered
over a YAML file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")

	load := func() (config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, invalidConfig(err)
		}
		return cfg, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API and the scheduler",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				return runServe(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate configuration and referenced files (no connections made)",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				if err := runValidate(cfg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "configuration valid")
				return nil
			},
		},
		&cobra.Command{
			Use:   "config",
			Short: "Print effective configuration as JSON (secrets masked)",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				data, err := cfg.MaskedJSON()
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "eoflow version %s (commit: %s)\n", version, commit)
			},
		},
	)
	return root
}

// runValidate checks the configuration and parses the processes and seed
// files it points at.
func runValidate(cfg config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return invalidConfig(err)
	}
	if cfg.ProcessesFile != "" {
		if _, err := process.LoadFile(cfg.ProcessesFile); err != nil {
			return invalidConfig(err)
		}
	}
	if cfg.SeedFile != "" {
		if _, err := seed.LoadFile(cfg.SeedFile); err != nil {
			return invalidConfig(err)
		}
	}
	return nil
}
