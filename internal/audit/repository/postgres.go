package repository

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jmoiron/sqlx"

	"subindex/internal/audit"
)

type PostgresAuditRepository struct {
	DB *sqlx.DB
}

func NewPostgresAuditRepository(db *sqlx.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{DB: db}
}

func (r *PostgresAuditRepository) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS withdrawals (
		tx_hash         TEXT NOT NULL,
		log_index       BIGINT NOT NULL,
		kind            TEXT NOT NULL,
		account         TEXT NOT NULL,
		amount          NUMERIC(78,0) NOT NULL,
		block_number    BIGINT NOT NULL,
		block_timestamp BIGINT NOT NULL,
		PRIMARY KEY (tx_hash, log_index)
	);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_account ON withdrawals (account);

	CREATE TABLE IF NOT EXISTS ownership_transfers (
		tx_hash         TEXT NOT NULL,
		log_index       BIGINT NOT NULL,
		previous_owner  TEXT NOT NULL,
		new_owner       TEXT NOT NULL,
		block_number    BIGINT NOT NULL,
		block_timestamp BIGINT NOT NULL,
		PRIMARY KEY (tx_hash, log_index)
	);

	CREATE TABLE IF NOT EXISTS day_ticks (
		tx_hash         TEXT NOT NULL,
		log_index       BIGINT NOT NULL,
		day             BIGINT NOT NULL,
		block_number    BIGINT NOT NULL,
		block_timestamp BIGINT NOT NULL,
		PRIMARY KEY (tx_hash, log_index)
	);

	CREATE TABLE IF NOT EXISTS user_registrations (
		tx_hash         TEXT NOT NULL,
		log_index       BIGINT NOT NULL,
		"user"          TEXT NOT NULL,
		action          TEXT NOT NULL,
		block_number    BIGINT NOT NULL,
		block_timestamp BIGINT NOT NULL,
		PRIMARY KEY (tx_hash, log_index)
	);
	`
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init audit schema: %w", err)
	}
	return nil
}

func (r *PostgresAuditRepository) RecordWithdrawal(ctx context.Context, w *audit.Withdrawal) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO withdrawals (tx_hash, log_index, kind, account, amount, block_number, block_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tx_hash, log_index) DO NOTHING`,
		w.TxHash, w.LogIndex, w.Kind, w.Account, w.Amount.String(), w.BlockNumber, w.BlockTimestamp)
	return err
}

func (r *PostgresAuditRepository) RecordOwnershipTransfer(ctx context.Context, t *audit.OwnershipTransfer) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO ownership_transfers (tx_hash, log_index, previous_owner, new_owner, block_number, block_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tx_hash, log_index) DO NOTHING`,
		t.TxHash, t.LogIndex, t.PreviousOwner, t.NewOwner, t.BlockNumber, t.BlockTimestamp)
	return err
}

func (r *PostgresAuditRepository) RecordDayTick(ctx context.Context, d *audit.DayTick) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO day_ticks (tx_hash, log_index, day, block_number, block_timestamp)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tx_hash, log_index) DO NOTHING`,
		d.TxHash, d.LogIndex, d.Day, d.BlockNumber, d.BlockTimestamp)
	return err
}

func (r *PostgresAuditRepository) RecordUserRegistration(ctx context.Context, u *audit.UserRegistration) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_registrations (tx_hash, log_index, "user", action, block_number, block_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tx_hash, log_index) DO NOTHING`,
		u.TxHash, u.LogIndex, u.User, u.Action, u.BlockNumber, u.BlockTimestamp)
	return err
}

func (r *PostgresAuditRepository) ListWithdrawalsByAccount(ctx context.Context, account string, limit int) ([]*audit.Withdrawal, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT tx_hash, log_index, kind, account, amount, block_number, block_timestamp
		 FROM withdrawals WHERE account = $1
		 ORDER BY block_number, log_index LIMIT $2`,
		account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ws []*audit.Withdrawal
	for rows.Next() {
		w := &audit.Withdrawal{}
		var amount string
		if err := rows.Scan(&w.TxHash, &w.LogIndex, &w.Kind, &w.Account, &amount, &w.BlockNumber, &w.BlockTimestamp); err != nil {
			return nil, err
		}
		w.Amount, _ = new(big.Int).SetString(amount, 10)
		ws = append(ws, w)
	}
	return ws, rows.Err()
}

func (r *PostgresAuditRepository) ListOwnershipTransfers(ctx context.Context, limit int) ([]*audit.OwnershipTransfer, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT tx_hash, log_index, previous_owner, new_owner, block_number, block_timestamp
		 FROM ownership_transfers ORDER BY block_number, log_index LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ts []*audit.OwnershipTransfer
	for rows.Next() {
		t := &audit.OwnershipTransfer{}
		if err := rows.Scan(&t.TxHash, &t.LogIndex, &t.PreviousOwner, &t.NewOwner, &t.BlockNumber, &t.BlockTimestamp); err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	return ts, rows.Err()
}

func (r *PostgresAuditRepository) ListDayTicks(ctx context.Context, limit int) ([]*audit.DayTick, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT tx_hash, log_index, day, block_number, block_timestamp
		 FROM day_ticks ORDER BY block_number, log_index LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ds []*audit.DayTick
	for rows.Next() {
		d := &audit.DayTick{}
		if err := rows.Scan(&d.TxHash, &d.LogIndex, &d.Day, &d.BlockNumber, &d.BlockTimestamp); err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}

func (r *PostgresAuditRepository) Reset(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `TRUNCATE withdrawals, ownership_transfers, day_ticks, user_registrations`)
	return err
}
