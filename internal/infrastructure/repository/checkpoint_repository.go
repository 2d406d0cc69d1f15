package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	invsvc "github.com/veriscreen/screening-backend/internal/service/investigation"
)

type checkpointRepository struct {
	db *pgxpool.Pool
}

// NewCheckpointRepository creates the append-only investigation checkpoint
// store. Each checkpoint is a full JSONB snapshot; Latest returns the newest
// row per screening, so resume never needs to replay the sequence.
func NewCheckpointRepository(db *pgxpool.Pool) invsvc.CheckpointStore {
	return &checkpointRepository{db: db}
}

func (r *checkpointRepository) Append(ctx context.Context, cp *investigation.Checkpoint) error {
	blob, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	query := `
		INSERT INTO investigation_checkpoints (screening_id, snapshot, created_at)
		VALUES ($1, $2, $3)`

	if _, err := r.db.Exec(ctx, query, cp.ScreeningID, blob, cp.CreatedAt); err != nil {
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}
	return nil
}

func (r *checkpointRepository) Latest(ctx context.Context, screeningID string) (*investigation.Checkpoint, error) {
	query := `
		SELECT snapshot FROM investigation_checkpoints
		WHERE screening_id = $1
		ORDER BY created_at DESC, id DESC LIMIT 1`

	var blob []byte
	err := r.db.QueryRow(ctx, query, screeningID).Scan(&blob)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest checkpoint: %w", err)
	}

	cp := &investigation.Checkpoint{}
	if err := json.Unmarshal(blob, cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return cp, nil
}
