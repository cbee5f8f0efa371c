package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"subindex/internal/subscription"
)

type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

// InitSchema creates the projection tables. seq preserves insertion order
// for the query surface; it never changes on upsert.
func (r *PostgresSubscriptionRepository) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS inactive_subscriptions (
		id               TEXT PRIMARY KEY,
		seq              BIGSERIAL,
		admin            TEXT NOT NULL,
		"user"           TEXT NOT NULL,
		price            NUMERIC(78,0) NOT NULL,
		payment_interval BIGINT NOT NULL,
		duration         BIGINT NOT NULL,
		status           TEXT NOT NULL,
		block_number     BIGINT NOT NULL,
		block_timestamp  BIGINT NOT NULL,
		transaction_hash TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_inactive_user ON inactive_subscriptions ("user", status);

	CREATE TABLE IF NOT EXISTS active_subscriptions (
		id                TEXT PRIMARY KEY,
		seq               BIGSERIAL,
		admin             TEXT NOT NULL,
		"user"            TEXT NOT NULL,
		price             NUMERIC(78,0) NOT NULL,
		payment_interval  BIGINT NOT NULL,
		start_time        BIGINT NOT NULL,
		end_time          BIGINT NOT NULL,
		next_payment_time BIGINT NOT NULL,
		status            TEXT NOT NULL,
		block_number      BIGINT NOT NULL,
		block_timestamp   BIGINT NOT NULL,
		transaction_hash  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_active_user ON active_subscriptions ("user", status);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init subscription schema: %w", err)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) GetInactive(ctx context.Context, id string) (*subscription.InactiveSubscription, error) {
	sub := &subscription.InactiveSubscription{}
	var price string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, admin, "user", price, payment_interval, duration, status,
		        block_number, block_timestamp, transaction_hash
		 FROM inactive_subscriptions WHERE id = $1`, id).Scan(
		&sub.ID, &sub.Admin, &sub.User, &price, &sub.PaymentInterval, &sub.Duration,
		&sub.Status, &sub.BlockNumber, &sub.BlockTimestamp, &sub.TransactionHash,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sub.Price = parseNumeric(price)
	return sub, nil
}

func (r *PostgresSubscriptionRepository) UpsertInactive(ctx context.Context, sub *subscription.InactiveSubscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO inactive_subscriptions
		 (id, admin, "user", price, payment_interval, duration, status, block_number, block_timestamp, transaction_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   admin = EXCLUDED.admin,
		   "user" = EXCLUDED."user",
		   price = EXCLUDED.price,
		   payment_interval = EXCLUDED.payment_interval,
		   duration = EXCLUDED.duration,
		   status = EXCLUDED.status,
		   block_number = EXCLUDED.block_number,
		   block_timestamp = EXCLUDED.block_timestamp,
		   transaction_hash = EXCLUDED.transaction_hash`,
		sub.ID, sub.Admin, sub.User, sub.Price.String(), sub.PaymentInterval, sub.Duration,
		sub.Status, sub.BlockNumber, sub.BlockTimestamp, sub.TransactionHash)
	return err
}

func (r *PostgresSubscriptionRepository) GetActive(ctx context.Context, id string) (*subscription.ActiveSubscription, error) {
	sub := &subscription.ActiveSubscription{}
	var price string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, admin, "user", price, payment_interval, start_time, end_time,
		        next_payment_time, status, block_number, block_timestamp, transaction_hash
		 FROM active_subscriptions WHERE id = $1`, id).Scan(
		&sub.ID, &sub.Admin, &sub.User, &price, &sub.PaymentInterval, &sub.StartTime,
		&sub.EndTime, &sub.NextPaymentTime, &sub.Status, &sub.BlockNumber,
		&sub.BlockTimestamp, &sub.TransactionHash,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sub.Price = parseNumeric(price)
	return sub, nil
}

func (r *PostgresSubscriptionRepository) UpsertActive(ctx context.Context, sub *subscription.ActiveSubscription) error {
	return upsertActive(ctx, r.db, sub)
}

// Activate retires the pending offer and writes the active subscription in
// one transaction, so the pair can never be observed in neither state.
func (r *PostgresSubscriptionRepository) Activate(ctx context.Context, id string, sub *subscription.ActiveSubscription) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE inactive_subscriptions SET status = $1, admin = $2 WHERE id = $3`,
		subscription.StatusTombstoned, subscription.SentinelAdmin, id); err != nil {
		return err
	}
	if err := upsertActive(ctx, tx, sub); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresSubscriptionRepository) TombstoneActive(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE active_subscriptions SET status = $1, admin = $2 WHERE id = $3`,
		subscription.StatusTombstoned, subscription.SentinelAdmin, id)
	return err
}

func (r *PostgresSubscriptionRepository) ListInactiveByUser(ctx context.Context, user string, limit int) ([]*subscription.InactiveSubscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, admin, "user", price, payment_interval, duration, status,
		        block_number, block_timestamp, transaction_hash
		 FROM inactive_subscriptions
		 WHERE "user" = $1 AND status != $2
		 ORDER BY seq LIMIT $3`,
		user, subscription.StatusTombstoned, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*subscription.InactiveSubscription
	for rows.Next() {
		sub := &subscription.InactiveSubscription{}
		var price string
		if err := rows.Scan(
			&sub.ID, &sub.Admin, &sub.User, &price, &sub.PaymentInterval, &sub.Duration,
			&sub.Status, &sub.BlockNumber, &sub.BlockTimestamp, &sub.TransactionHash,
		); err != nil {
			return nil, err
		}
		sub.Price = parseNumeric(price)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *PostgresSubscriptionRepository) ListActiveByUser(ctx context.Context, user string, limit int) ([]*subscription.ActiveSubscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, admin, "user", price, payment_interval, start_time, end_time,
		        next_payment_time, status, block_number, block_timestamp, transaction_hash
		 FROM active_subscriptions
		 WHERE "user" = $1 AND status != $2
		 ORDER BY seq LIMIT $3`,
		user, subscription.StatusTombstoned, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*subscription.ActiveSubscription
	for rows.Next() {
		sub := &subscription.ActiveSubscription{}
		var price string
		if err := rows.Scan(
			&sub.ID, &sub.Admin, &sub.User, &price, &sub.PaymentInterval, &sub.StartTime,
			&sub.EndTime, &sub.NextPaymentTime, &sub.Status, &sub.BlockNumber,
			&sub.BlockTimestamp, &sub.TransactionHash,
		); err != nil {
			return nil, err
		}
		sub.Price = parseNumeric(price)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Reset empties both projection tables. Required before replaying from a
// different start block: handlers overwrite blindly, so replaying onto a
// non-empty store silently corrupts the projection.
func (r *PostgresSubscriptionRepository) Reset(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `TRUNCATE inactive_subscriptions, active_subscriptions`)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertActive(ctx context.Context, db execer, sub *subscription.ActiveSubscription) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO active_subscriptions
		 (id, admin, "user", price, payment_interval, start_time, end_time, next_payment_time,
		  status, block_number, block_timestamp, transaction_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   admin = EXCLUDED.admin,
		   "user" = EXCLUDED."user",
		   price = EXCLUDED.price,
		   payment_interval = EXCLUDED.payment_interval,
		   start_time = EXCLUDED.start_time,
		   end_time = EXCLUDED.end_time,
		   next_payment_time = EXCLUDED.next_payment_time,
		   status = EXCLUDED.status,
		   block_number = EXCLUDED.block_number,
		   block_timestamp = EXCLUDED.block_timestamp,
		   transaction_hash = EXCLUDED.transaction_hash`,
		sub.ID, sub.Admin, sub.User, sub.Price.String(), sub.PaymentInterval, sub.StartTime,
		sub.EndTime, sub.NextPaymentTime, sub.Status, sub.BlockNumber, sub.BlockTimestamp,
		sub.TransactionHash)
	return err
}

func parseNumeric(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
