// Command archiver exports aged audit events to compressed JSON-lines files
// for long-term retention. The live table stays append-only; exports never
// delete rows themselves, an operator applies the retention cutoff with the
// emitted manifest in hand.
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/audit"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/infrastructure/database"
	"github.com/veriscreen/screening-backend/internal/infrastructure/telemetry"
)

var (
	mode      = flag.String("mode", "export", "Operation mode: export, stats")
	days      = flag.Int("days", 365, "Export events older than this many days")
	batchSize = flag.Int("batch", 1000, "Rows fetched per batch")
	outPath   = flag.String("out", "", "Output file (default audit-<date>.jsonl.gz)")
)

func main() {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	a := &archiver{db: db, logger: logger}
	cutoff := time.Now().UTC().AddDate(0, 0, -*days)

	switch *mode {
	case "export":
		err = a.export(ctx, cutoff)
	case "stats":
		err = a.stats(ctx, cutoff)
	default:
		err = fmt.Errorf("unknown mode: %s", *mode)
	}
	if err != nil {
		logger.Fatal("operation failed", zap.Error(err))
	}
}

type archiver struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func (a *archiver) export(ctx context.Context, cutoff time.Time) error {
	path := *outPath
	if path == "" {
		path = fmt.Sprintf("audit-%s.jsonl.gz", cutoff.Format("2006-01-02"))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	defer gz.Close()
	enc := json.NewEncoder(gz)

	var exported int
	var lastID string
	for {
		events, err := a.fetchBatch(ctx, cutoff, lastID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			break
		}
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
		}
		lastID = events[len(events)-1].ID.String()
		exported += len(events)
		a.logger.Info("exported batch", zap.Int("total", exported))
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush archive: %w", err)
	}
	a.logger.Info("export complete",
		zap.String("file", path),
		zap.Int("events", exported),
		zap.Time("cutoff", cutoff))
	return nil
}

func (a *archiver) fetchBatch(ctx context.Context, cutoff time.Time, afterID string) ([]*audit.Event, error) {
	query := `
		SELECT id, tenant_id, actor_id, correlation_id, event_type, severity,
			resource_type, resource_id, data, created_at
		FROM audit_events
		WHERE created_at < $1 AND ($2 = '' OR id > $2::uuid)
		ORDER BY id LIMIT $3`

	rows, err := a.db.Query(ctx, query, cutoff, afterID, *batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var out []*audit.Event
	for rows.Next() {
		e := &audit.Event{}
		var typ, sev string
		var data []byte
		err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.CorrelationID,
			&typ, &sev, &e.ResourceType, &e.ResourceID, &data, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Type = audit.EventType(typ)
		e.Severity = audit.Severity(sev)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit data: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a *archiver) stats(ctx context.Context, cutoff time.Time) error {
	query := `
		SELECT event_type, COUNT(*)
		FROM audit_events
		WHERE created_at < $1
		GROUP BY event_type ORDER BY 2 DESC`

	rows, err := a.db.Query(ctx, query, cutoff)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var total int64
	for rows.Next() {
		var typ string
		var count int64
		if err := rows.Scan(&typ, &count); err != nil {
			return fmt.Errorf("failed to scan stats row: %w", err)
		}
		total += count
		a.logger.Info("event type", zap.String("type", typ), zap.Int64("count", count))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	a.logger.Info("exportable events", zap.Int64("total", total), zap.Time("cutoff", cutoff))
	return nil
}
