package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/djlord-it/talentledger/internal/config"
	"github.com/djlord-it/talentledger/internal/domain"
	"github.com/djlord-it/talentledger/internal/ledger"
	"github.com/djlord-it/talentledger/internal/store/postgres"
	"github.com/djlord-it/talentledger/internal/store/sqlite"
	"github.com/djlord-it/talentledger/internal/workflow"

	_ "github.com/lib/pq"
)

// appStore is the union of the store contracts used by the server.
type appStore interface {
	ledger.Store
	workflow.EntityStore
	workflow.DispatchLog
	UpsertCandidate(ctx context.Context, c domain.Candidate) error
	ListDispatchRecords(ctx context.Context, limit, offset int) ([]domain.DispatchRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

type pgStore struct {
	*postgres.Store
	db *sql.DB
}

func (s *pgStore) Close() error { return s.db.Close() }

var (
	_ appStore = (*pgStore)(nil)
	_ appStore = (*sqlite.Store)(nil)
)

// openStore connects to PostgreSQL, or opens the embedded SQLite database
// when SQLITE_PATH is set. The SQLite schema is applied on open.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (appStore, *sql.DB, error) {
	if cfg.SQLitePath != "" {
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite store opened", zap.String("path", cfg.SQLitePath))
		return s, nil, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	logger.Info("db pool configured",
		zap.Int("max_open", cfg.DBMaxOpenConns),
		zap.Int("max_idle", cfg.DBMaxIdleConns),
		zap.Duration("max_lifetime", cfg.DBConnMaxLifetime),
		zap.Duration("max_idle_time", cfg.DBConnMaxIdleTime),
	)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &pgStore{Store: postgres.New(db), db: db}, db, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadValid()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, db, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return fail(exitRuntimeError, "%w", err)
			}
			defer store.Close()

			if db != nil {
				if err := postgres.Migrate(cmd.Context(), db); err != nil {
					return fail(exitRuntimeError, "migrate: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-candidates <file.json|file.yaml>",
		Short: "Create or update candidates from a JSON or YAML list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := readCandidates(args[0])
			if err != nil {
				return fail(exitRuntimeError, "%w", err)
			}

			cfg, err := a.loadValid()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, _, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return fail(exitRuntimeError, "%w", err)
			}
			defer store.Close()

			n, err := importCandidates(cmd.Context(), store, candidates, time.Now().UTC())
			if err != nil {
				return fail(exitRuntimeError, "import candidates: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d candidates\n", n)
			return nil
		},
	}
}

func readCandidates(path string) ([]domain.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// YAML is normalized to JSON so both formats share the json tags.
		var raw []map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if data, err = json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	var candidates []domain.Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return candidates, nil
}

type candidateWriter interface {
	UpsertCandidate(ctx context.Context, c domain.Candidate) error
}

// importCandidates upserts candidates, assigning ids and timestamps where
// missing. It stops at the first failure.
func importCandidates(ctx context.Context, store candidateWriter, candidates []domain.Candidate, now time.Time) (int, error) {
	for i, c := range candidates {
		if c.FullName == "" || c.Email == "" {
			return i, fmt.Errorf("candidate %d: full_name and email are required", i)
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		if err := store.UpsertCandidate(ctx, c); err != nil {
			return i, fmt.Errorf("candidate %s: %w", c.ID, err)
		}
	}
	return len(candidates), nil
}
