package service

import (
	"context"
	"fmt"

	"subindex/internal/audit"
	"subindex/internal/chain"
	"subindex/internal/subscription"
)

type AuditRepository interface {
	RecordWithdrawal(ctx context.Context, w *audit.Withdrawal) error
	RecordOwnershipTransfer(ctx context.Context, t *audit.OwnershipTransfer) error
	RecordDayTick(ctx context.Context, d *audit.DayTick) error
	RecordUserRegistration(ctx context.Context, u *audit.UserRegistration) error
	ListWithdrawalsByAccount(ctx context.Context, account string, limit int) ([]*audit.Withdrawal, error)
	ListOwnershipTransfers(ctx context.Context, limit int) ([]*audit.OwnershipTransfer, error)
	ListDayTicks(ctx context.Context, limit int) ([]*audit.DayTick, error)
	Reset(ctx context.Context) error
}

// Service turns administrative chain events into audit rows and serves
// the audit listings. It never reads or writes subscription state.
type Service struct {
	repo AuditRepository
}

func NewService(repo AuditRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) RecordWithdrawal(ctx context.Context, ev chain.Withdrawal) error {
	w := &audit.Withdrawal{
		TxHash:         ev.TxHash,
		LogIndex:       ev.LogIndex,
		Kind:           string(ev.Kind),
		Account:        subscription.NormalizeAddress(ev.Account),
		Amount:         ev.Amount,
		BlockNumber:    ev.BlockNumber,
		BlockTimestamp: ev.BlockTimestamp,
	}
	if err := s.repo.RecordWithdrawal(ctx, w); err != nil {
		return fmt.Errorf("record %s withdrawal %s/%d: %w", w.Kind, w.TxHash, w.LogIndex, err)
	}
	return nil
}

func (s *Service) RecordOwnershipTransfer(ctx context.Context, ev chain.OwnershipTransferred) error {
	t := &audit.OwnershipTransfer{
		TxHash:         ev.TxHash,
		LogIndex:       ev.LogIndex,
		PreviousOwner:  subscription.NormalizeAddress(ev.PreviousOwner),
		NewOwner:       subscription.NormalizeAddress(ev.NewOwner),
		BlockNumber:    ev.BlockNumber,
		BlockTimestamp: ev.BlockTimestamp,
	}
	if err := s.repo.RecordOwnershipTransfer(ctx, t); err != nil {
		return fmt.Errorf("record ownership transfer %s/%d: %w", t.TxHash, t.LogIndex, err)
	}
	return nil
}

func (s *Service) RecordDayTick(ctx context.Context, ev chain.DayProcessed) error {
	d := &audit.DayTick{
		TxHash:         ev.TxHash,
		LogIndex:       ev.LogIndex,
		Day:            ev.Day,
		BlockNumber:    ev.BlockNumber,
		BlockTimestamp: ev.BlockTimestamp,
	}
	if err := s.repo.RecordDayTick(ctx, d); err != nil {
		return fmt.Errorf("record day tick %s/%d: %w", d.TxHash, d.LogIndex, err)
	}
	return nil
}

func (s *Service) RecordUserRegistration(ctx context.Context, ev chain.UserRegistration) error {
	action := "registered"
	if !ev.Registered {
		action = "unregistered"
	}
	u := &audit.UserRegistration{
		TxHash:         ev.TxHash,
		LogIndex:       ev.LogIndex,
		User:           subscription.NormalizeAddress(ev.User),
		Action:         action,
		BlockNumber:    ev.BlockNumber,
		BlockTimestamp: ev.BlockTimestamp,
	}
	if err := s.repo.RecordUserRegistration(ctx, u); err != nil {
		return fmt.Errorf("record user %s %s/%d: %w", action, u.TxHash, u.LogIndex, err)
	}
	return nil
}

func (s *Service) ListWithdrawalsByAccount(ctx context.Context, account string, limit int) ([]*audit.Withdrawal, error) {
	return s.repo.ListWithdrawalsByAccount(ctx, subscription.NormalizeAddress(account), clampLimit(limit))
}

func (s *Service) ListOwnershipTransfers(ctx context.Context, limit int) ([]*audit.OwnershipTransfer, error) {
	return s.repo.ListOwnershipTransfers(ctx, clampLimit(limit))
}

func (s *Service) ListDayTicks(ctx context.Context, limit int) ([]*audit.DayTick, error) {
	return s.repo.ListDayTicks(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
