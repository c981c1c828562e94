// Command worker runs AI pre-screening for candidates out of process and
// announces each result to the talentledger server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/djlord-it/talentledger/internal/config"
	"github.com/djlord-it/talentledger/internal/logging"
	"github.com/djlord-it/talentledger/internal/prescreen"
	"github.com/djlord-it/talentledger/internal/store/postgres"
	"github.com/djlord-it/talentledger/internal/store/sqlite"
	"github.com/djlord-it/talentledger/internal/transport/channel"

	_ "github.com/lib/pq"
)

const (
	exitSuccess      = 0
	exitRuntimeError = 1
	exitUsage        = 2
)

// defaultConcurrency bounds parallel screener calls.
const defaultConcurrency = 4

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	cfgFile     string
	recruiter   string
	concurrency int
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	code := exitSuccess

	cmd := &cobra.Command{
		Use:           "worker --recruiter <id> <candidate-id>...",
		Short:         "Pre-screen candidates and publish completion signals",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			recruiterID, candidateIDs, err := parseIDs(opts.recruiter, args)
			if err != nil {
				code = exitUsage
				return err
			}

			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				code = exitUsage
				return err
			}

			logger, err := logging.New(cfg.LogJSON, cfg.LogDebug)
			if err != nil {
				code = exitRuntimeError
				return err
			}
			defer logger.Sync()

			job, cleanup, err := buildJob(cmd.Context(), cfg, logger)
			if err != nil {
				code = exitRuntimeError
				return err
			}
			defer cleanup()

			failed := screenAll(cmd.Context(), job, recruiterID, candidateIDs, opts.concurrency, logger)
			fmt.Fprintf(cmd.OutOrStdout(), "screened %d candidates, %d failed\n", len(candidateIDs)-failed, failed)
			if failed > 0 {
				code = exitRuntimeError
				return fmt.Errorf("%d candidates failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.cfgFile, "config", "", "a YAML config file")
	cmd.Flags().StringVar(&opts.recruiter, "recruiter", "", "recruiter the results are recorded for (required)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", defaultConcurrency, "candidates screened in parallel")
	_ = cmd.MarkFlagRequired("recruiter")

	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "worker:", err)
		if code == exitSuccess {
			code = exitUsage
		}
		return code
	}
	return exitSuccess
}

func parseIDs(recruiter string, args []string) (uuid.UUID, []uuid.UUID, error) {
	recruiterID, err := uuid.Parse(recruiter)
	if err != nil || recruiterID == uuid.Nil {
		return uuid.Nil, nil, fmt.Errorf("invalid --recruiter %q", recruiter)
	}
	candidates := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("invalid candidate id %q", arg)
		}
		candidates = append(candidates, id)
	}
	return recruiterID, candidates, nil
}

type jobStore interface {
	prescreen.EntityStore
	prescreen.InteractionWriter
}

// buildJob wires the screener, store and publisher. Without SIGNAL_ENDPOINT
// results are still written; servers pick them up on their next reload.
func buildJob(ctx context.Context, cfg config.Config, logger *zap.Logger) (*prescreen.Job, func(), error) {
	if cfg.GeminiAPIKey == "" {
		return nil, nil, errors.New("GEMINI_API_KEY is required")
	}
	screener, err := prescreen.NewGeminiScreener(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, nil, err
	}

	var (
		store   jobStore
		cleanup func()
	)
	switch {
	case cfg.SQLitePath != "":
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, cleanup = s, func() { s.Close() }
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		store, cleanup = postgres.New(db), func() { db.Close() }
	default:
		return nil, nil, errors.New("DATABASE_URL or SQLITE_PATH is required")
	}

	var publisher prescreen.Publisher
	if cfg.SignalEndpoint != "" {
		publisher = prescreen.NewHTTPPublisher(cfg.SignalEndpoint)
		logger.Info("publishing completion signals", zap.String("endpoint", cfg.SignalEndpoint))
	} else {
		publisher = prescreen.NewBusPublisher(channel.NewSignalBus(channel.WithLogger(logger)))
		logger.Warn("SIGNAL_ENDPOINT not set; servers will see results on their next reload")
	}

	job := prescreen.NewJob(store, screener, store, publisher).WithLogger(logger)
	logger.Info("screener ready", zap.String("model", screener.Model()))
	return job, cleanup, nil
}

// runner is the part of *prescreen.Job used by screenAll.
type runner interface {
	Run(ctx context.Context, recruiterID, candidateID uuid.UUID) (prescreen.Assessment, error)
}

// screenAll runs every candidate with at most concurrency in flight and
// returns the number that failed. One failure does not stop the rest.
func screenAll(ctx context.Context, job runner, recruiterID uuid.UUID, candidates []uuid.UUID, concurrency int, logger *zap.Logger) int {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]error, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range candidates {
		g.Go(func() error {
			if _, err := job.Run(gctx, recruiterID, id); err != nil {
				logger.Error("pre-screening failed",
					zap.String(logging.FieldCandidateID, id.String()),
					zap.Error(err),
				)
				results[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range results {
		if err != nil {
			failed++
		}
	}
	return failed
}

var _ runner = (*prescreen.Job)(nil)
