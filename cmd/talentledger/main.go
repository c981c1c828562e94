package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/config"
	"github.com/djlord-it/talentledger/internal/logging"
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

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func fail(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return exitRuntimeError
	}
	return exitSuccess
}

// app carries state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "talentledger",
		Short:         "talentledger - recruiter interaction ledger and workflow dispatch service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `talentledger keeps a per-recruiter ledger of candidate interactions,
dispatches outbound automation workflows and sends candidate email.

Configuration is read from environment variables (DATABASE_URL, HTTP_ADDR,
LEDGER_SETTLE_DELAY, ...) and optionally from a YAML file passed with --config.
Run "talentledger config" to print the effective configuration.`,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "a YAML config file (keys are lower-case variable names)")
	root.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	_ = a.v.BindPFlag("log_debug", root.PersistentFlags().Lookup("debug"))
	_ = a.v.BindPFlag("log_json", root.PersistentFlags().Lookup("json"))

	root.AddCommand(
		newServeCmd(a),
		newValidateCmd(a),
		newConfigCmd(a),
		newMigrateCmd(a),
		newImportCmd(a),
		newVersionCmd(),
	)
	return root
}

// load reads configuration without validating it.
func (a *app) load() (config.Config, error) {
	cfg, err := config.LoadFrom(a.v, a.cfgFile)
	if err != nil {
		return config.Config{}, fail(exitInvalidConfig, "configuration error: %w", err)
	}
	return cfg, nil
}

// loadValid reads and validates configuration.
func (a *app) loadValid() (config.Config, error) {
	cfg, err := a.load()
	if err != nil {
		return cfg, err
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, fail(exitInvalidConfig, "configuration error: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		return nil, fail(exitRuntimeError, "build logger: %w", err)
	}
	return logger, nil
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration (no connections made)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return &exitError{code: exitInvalidConfig, err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration valid")
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print effective configuration as JSON (secrets masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			data, err := cfg.MaskedJSON()
			if err != nil {
				return fail(exitRuntimeError, "failed to marshal config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "talentledger version %s (commit: %s)\n", version, commit)
		},
	}
}
