package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"subindex/internal/chain"
)

type PostgresCheckpointRepository struct {
	db *sql.DB
}

func NewPostgresCheckpointRepository(db *sql.DB) *PostgresCheckpointRepository {
	return &PostgresCheckpointRepository{db: db}
}

// InitSchema creates the single-row checkpoint table.
func (r *PostgresCheckpointRepository) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id           SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		block_number BIGINT NOT NULL,
		log_index    BIGINT NOT NULL
	);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init checkpoint schema: %w", err)
	}
	return nil
}

func (r *PostgresCheckpointRepository) Get(ctx context.Context) (*chain.Checkpoint, error) {
	cp := &chain.Checkpoint{}
	err := r.db.QueryRowContext(ctx,
		`SELECT block_number, log_index FROM checkpoints WHERE id = 1`).
		Scan(&cp.BlockNumber, &cp.LogIndex)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cp, nil
}

func (r *PostgresCheckpointRepository) Save(ctx context.Context, cp chain.Checkpoint) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO checkpoints (id, block_number, log_index) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET
		   block_number = EXCLUDED.block_number,
		   log_index = EXCLUDED.log_index`,
		cp.BlockNumber, cp.LogIndex)
	return err
}

func (r *PostgresCheckpointRepository) Reset(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM checkpoints`)
	return err
}

// MemoryCheckpointRepository backs tests and dry runs.
type MemoryCheckpointRepository struct {
	mu sync.Mutex
	cp *chain.Checkpoint
}

func NewMemoryCheckpointRepository() *MemoryCheckpointRepository {
	return &MemoryCheckpointRepository{}
}

func (r *MemoryCheckpointRepository) Get(ctx context.Context) (*chain.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cp == nil {
		return nil, nil
	}
	c := *r.cp
	return &c, nil
}

func (r *MemoryCheckpointRepository) Save(ctx context.Context, cp chain.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cp = &cp
	return nil
}

func (r *MemoryCheckpointRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cp = nil
	return nil
}
