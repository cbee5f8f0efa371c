package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"subindex/internal/chain"
	"subindex/internal/metrics"
	"subindex/internal/subscription"
)

// DefaultPageSize matches the page the original frontend requested.
const (
	DefaultPageSize = 5
	MaxPageSize     = 100
)

// Repository is the projection store: a keyed read/upsert mapping with no
// delete operation. Get methods return (nil, nil) when the key is absent.
type Repository interface {
	GetInactive(ctx context.Context, id string) (*subscription.InactiveSubscription, error)
	UpsertInactive(ctx context.Context, sub *subscription.InactiveSubscription) error
	GetActive(ctx context.Context, id string) (*subscription.ActiveSubscription, error)
	UpsertActive(ctx context.Context, sub *subscription.ActiveSubscription) error
	// Activate tombstones the inactive row and upserts the active row as a
	// single transaction.
	Activate(ctx context.Context, id string, sub *subscription.ActiveSubscription) error
	TombstoneActive(ctx context.Context, id string) error
	ListInactiveByUser(ctx context.Context, user string, limit int) ([]*subscription.InactiveSubscription, error)
	ListActiveByUser(ctx context.Context, user string, limit int) ([]*subscription.ActiveSubscription, error)
	Reset(ctx context.Context) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// HandleOffered upserts the pending subscription for the (admin, user)
// pair. A re-offer overwrites the previous terms in place, last write wins.
func (s *Service) HandleOffered(ctx context.Context, ev chain.SubscriptionOffered) error {
	sub := &subscription.InactiveSubscription{
		ID:              subscription.Key(ev.Admin, ev.User),
		Admin:           subscription.NormalizeAddress(ev.Admin),
		User:            subscription.NormalizeAddress(ev.User),
		Price:           ev.Price,
		PaymentInterval: ev.PaymentInterval,
		Duration:        ev.Duration,
		Status:          subscription.StatusPending,
		BlockNumber:     ev.BlockNumber,
		BlockTimestamp:  ev.BlockTimestamp,
		TransactionHash: ev.TxHash,
	}
	if err := s.repo.UpsertInactive(ctx, sub); err != nil {
		return fmt.Errorf("upsert inactive subscription %s: %w", sub.ID, err)
	}
	return nil
}

// HandleActivated retires the pending offer and creates the active
// subscription in one transaction. When no offer is stored for the key
// (replay from a later start block), the activation is still applied so
// the projection converges; only the missing offer is reported.
func (s *Service) HandleActivated(ctx context.Context, ev chain.SubscriptionActivated) error {
	id := subscription.Key(ev.Admin, ev.User)

	prior, err := s.repo.GetInactive(ctx, id)
	if err != nil {
		return fmt.Errorf("load inactive subscription %s: %w", id, err)
	}
	if prior == nil {
		s.skip(chain.KindSubscriptionActivated, "missing_prior_offer", id, ev.BlockNumber)
	}

	sub := &subscription.ActiveSubscription{
		ID:              id,
		Admin:           subscription.NormalizeAddress(ev.Admin),
		User:            subscription.NormalizeAddress(ev.User),
		Price:           ev.Price,
		PaymentInterval: ev.PaymentInterval,
		StartTime:       ev.StartTime,
		EndTime:         ev.EndTime,
		NextPaymentTime: ev.StartTime + ev.PaymentInterval,
		Status:          subscription.StatusActive,
		BlockNumber:     ev.BlockNumber,
		BlockTimestamp:  ev.BlockTimestamp,
		TransactionHash: ev.TxHash,
	}
	if err := s.repo.Activate(ctx, id, sub); err != nil {
		return fmt.Errorf("activate subscription %s: %w", id, err)
	}
	return nil
}

// HandlePayment records the schedule the event asserts. The contract
// already computed nextPaymentTime; no arithmetic happens here. All fields
// the event does not carry keep their stored values.
func (s *Service) HandlePayment(ctx context.Context, ev chain.PaymentMade) error {
	id := subscription.Key(ev.Admin, ev.User)

	sub, err := s.repo.GetActive(ctx, id)
	if err != nil {
		return fmt.Errorf("load active subscription %s: %w", id, err)
	}
	if sub == nil {
		s.skip(chain.KindPaymentMade, "missing_active_subscription", id, ev.BlockNumber)
		return nil
	}

	sub.Price = ev.Price
	sub.NextPaymentTime = ev.NextPaymentTime
	sub.BlockNumber = ev.BlockNumber
	sub.BlockTimestamp = ev.BlockTimestamp
	sub.TransactionHash = ev.TxHash

	if err := s.repo.UpsertActive(ctx, sub); err != nil {
		return fmt.Errorf("record payment for subscription %s: %w", id, err)
	}
	return nil
}

// HandleCancelled tombstones the active subscription. Remaining fields are
// left stale under the tombstone; readers must not use them.
func (s *Service) HandleCancelled(ctx context.Context, ev chain.SubscriptionCancelled) error {
	id := subscription.Key(ev.Admin, ev.User)

	sub, err := s.repo.GetActive(ctx, id)
	if err != nil {
		return fmt.Errorf("load active subscription %s: %w", id, err)
	}
	if sub == nil {
		s.skip(chain.KindSubscriptionCancelled, "missing_active_subscription", id, ev.BlockNumber)
		return nil
	}

	if err := s.repo.TombstoneActive(ctx, id); err != nil {
		return fmt.Errorf("tombstone subscription %s: %w", id, err)
	}
	return nil
}

// ListInactiveByUser returns live pending offers for a user in insertion
// order. Tombstoned rows never surface.
func (s *Service) ListInactiveByUser(ctx context.Context, user string, limit int) ([]*subscription.InactiveSubscription, error) {
	return s.repo.ListInactiveByUser(ctx, subscription.NormalizeAddress(user), clampLimit(limit))
}

// ListActiveByUser returns live active subscriptions for a user.
func (s *Service) ListActiveByUser(ctx context.Context, user string, limit int) ([]*subscription.ActiveSubscription, error) {
	return s.repo.ListActiveByUser(ctx, subscription.NormalizeAddress(user), clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func (s *Service) skip(kind chain.Kind, reason, id string, block uint64) {
	metrics.HandlerSkipsTotal.WithLabelValues(string(kind), reason).Inc()
	log.Warn().
		Str("event", string(kind)).
		Str("reason", reason).
		Str("key", id).
		Uint64("block", block).
		Msg("missing prior state for event")
}
