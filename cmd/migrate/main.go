// Command migrate applies SQL migrations from the migrations directory.
// Files run in lexical order; each application is recorded in
// schema_migrations so reruns are no-ops.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/infrastructure/telemetry"
)

const (
	migrationsTable = "schema_migrations"
	migrationsDir   = "migrations"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, status, create")
		name   = flag.String("name", "", "Migration name (for create action)")
		steps  = flag.Int("steps", 0, "Number of migrations to apply (0 = all)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *action == "create" {
		if *name == "" {
			logger.Fatal("migration name is required for create")
		}
		path, err := createMigration(*name)
		if err != nil {
			logger.Fatal("failed to create migration", zap.Error(err))
		}
		logger.Info("created migration", zap.String("file", path))
		return
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	m := &migrator{db: db, logger: logger}
	ctx := context.Background()

	switch *action {
	case "up":
		err = m.up(ctx, *steps)
	case "status":
		err = m.status(ctx)
	default:
		logger.Fatal("unknown action", zap.String("action", *action))
	}
	if err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}

type migrator struct {
	db     *sql.DB
	logger *zap.Logger
}

func (m *migrator) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, migrationsTable)
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *migrator) applied(ctx context.Context) (map[string]time.Time, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}
	rows, err := m.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, applied_at FROM %s", migrationsTable))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		out[id] = at
	}
	return out, rows.Err()
}

func (m *migrator) pending(ctx context.Context) ([]string, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migration files: %w", err)
	}
	sort.Strings(files)

	var out []string
	for _, f := range files {
		if _, ok := done[migrationID(f)]; !ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *migrator) up(ctx context.Context, steps int) error {
	pending, err := m.pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.logger.Info("no pending migrations")
		return nil
	}
	if steps > 0 && steps < len(pending) {
		pending = pending[:steps]
	}

	for _, file := range pending {
		if err := m.apply(ctx, file); err != nil {
			return fmt.Errorf("failed to apply %s: %w", file, err)
		}
		m.logger.Info("applied migration", zap.String("file", file))
	}
	m.logger.Info("migrations completed", zap.Int("count", len(pending)))
	return nil
}

// apply runs one file inside a transaction and records it in the same
// transaction so a mid-file failure leaves nothing half-applied.
func (m *migrator) apply(ctx context.Context, file string) error {
	body, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, filename) VALUES ($1, $2)", migrationsTable),
		migrationID(file), filepath.Base(file))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (m *migrator) status(ctx context.Context) error {
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, f := range files {
		id := migrationID(f)
		if at, ok := done[id]; ok {
			m.logger.Info("applied", zap.String("id", id), zap.Time("at", at))
		} else {
			m.logger.Info("pending", zap.String("id", id))
		}
	}
	return nil
}

func createMigration(name string) (string, error) {
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(migrationsDir,
		fmt.Sprintf("%s_%s.sql", time.Now().UTC().Format("20060102150405"), name))
	header := fmt.Sprintf("-- Migration: %s\n\n", name)
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// migrationID is the filename's leading timestamp prefix, or the whole stem
// when no underscore separates one.
func migrationID(file string) string {
	base := filepath.Base(file)
	stem := base[:len(base)-len(filepath.Ext(base))]
	for i, r := range stem {
		if r == '_' {
			return stem[:i]
		}
	}
	return stem
}
