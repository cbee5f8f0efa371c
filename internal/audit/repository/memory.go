package repository

import (
	"context"
	"fmt"
	"sync"

	"subindex/internal/audit"
)

// MemoryAuditRepository mirrors the Postgres semantics in process memory,
// including the (tx_hash, log_index) uniqueness of every table.
type MemoryAuditRepository struct {
	mu            sync.Mutex
	withdrawals   []*audit.Withdrawal
	transfers     []*audit.OwnershipTransfer
	ticks         []*audit.DayTick
	registrations []*audit.UserRegistration
	seen          map[string]struct{}
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{seen: make(map[string]struct{})}
}

func (r *MemoryAuditRepository) dedup(table, txHash string, logIndex uint32) bool {
	key := fmt.Sprintf("%s:%s:%d", table, txHash, logIndex)
	if _, ok := r.seen[key]; ok {
		return true
	}
	r.seen[key] = struct{}{}
	return false
}

func (r *MemoryAuditRepository) RecordWithdrawal(ctx context.Context, w *audit.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dedup("withdrawals", w.TxHash, w.LogIndex) {
		return nil
	}
	c := *w
	r.withdrawals = append(r.withdrawals, &c)
	return nil
}

func (r *MemoryAuditRepository) RecordOwnershipTransfer(ctx context.Context, t *audit.OwnershipTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dedup("ownership_transfers", t.TxHash, t.LogIndex) {
		return nil
	}
	c := *t
	r.transfers = append(r.transfers, &c)
	return nil
}

func (r *MemoryAuditRepository) RecordDayTick(ctx context.Context, d *audit.DayTick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dedup("day_ticks", d.TxHash, d.LogIndex) {
		return nil
	}
	c := *d
	r.ticks = append(r.ticks, &c)
	return nil
}

func (r *MemoryAuditRepository) RecordUserRegistration(ctx context.Context, u *audit.UserRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dedup("user_registrations", u.TxHash, u.LogIndex) {
		return nil
	}
	c := *u
	r.registrations = append(r.registrations, &c)
	return nil
}

func (r *MemoryAuditRepository) ListWithdrawalsByAccount(ctx context.Context, account string, limit int) ([]*audit.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ws []*audit.Withdrawal
	for _, w := range r.withdrawals {
		if w.Account != account {
			continue
		}
		c := *w
		ws = append(ws, &c)
		if len(ws) == limit {
			break
		}
	}
	return ws, nil
}

func (r *MemoryAuditRepository) ListOwnershipTransfers(ctx context.Context, limit int) ([]*audit.OwnershipTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ts []*audit.OwnershipTransfer
	for _, t := range r.transfers {
		c := *t
		ts = append(ts, &c)
		if len(ts) == limit {
			break
		}
	}
	return ts, nil
}

func (r *MemoryAuditRepository) ListDayTicks(ctx context.Context, limit int) ([]*audit.DayTick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ds []*audit.DayTick
	for _, d := range r.ticks {
		c := *d
		ds = append(ds, &c)
		if len(ds) == limit {
			break
		}
	}
	return ds, nil
}

func (r *MemoryAuditRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.withdrawals = nil
	r.transfers = nil
	r.ticks = nil
	r.registrations = nil
	r.seen = make(map[string]struct{})
	return nil
}
