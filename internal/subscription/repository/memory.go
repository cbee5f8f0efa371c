package repository

import (
	"context"
	"math/big"
	"sync"

	"subindex/internal/subscription"
)

// MemorySubscriptionRepository keeps the projection in process memory.
// Used by the test suite and by dry runs without a database. Semantics
// mirror the Postgres implementation, including insertion order.
type MemorySubscriptionRepository struct {
	mu       sync.Mutex
	inactive map[string]*subscription.InactiveSubscription
	active   map[string]*subscription.ActiveSubscription
	// insertion order of first write per table
	inactiveOrder []string
	activeOrder   []string
}

func NewMemorySubscriptionRepository() *MemorySubscriptionRepository {
	return &MemorySubscriptionRepository{
		inactive: make(map[string]*subscription.InactiveSubscription),
		active:   make(map[string]*subscription.ActiveSubscription),
	}
}

func (r *MemorySubscriptionRepository) GetInactive(ctx context.Context, id string) (*subscription.InactiveSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.inactive[id]
	if !ok {
		return nil, nil
	}
	return copyInactive(sub), nil
}

func (r *MemorySubscriptionRepository) UpsertInactive(ctx context.Context, sub *subscription.InactiveSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertInactiveLocked(sub)
	return nil
}

func (r *MemorySubscriptionRepository) GetActive(ctx context.Context, id string) (*subscription.ActiveSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.active[id]
	if !ok {
		return nil, nil
	}
	return copyActive(sub), nil
}

func (r *MemorySubscriptionRepository) UpsertActive(ctx context.Context, sub *subscription.ActiveSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertActiveLocked(sub)
	return nil
}

func (r *MemorySubscriptionRepository) Activate(ctx context.Context, id string, sub *subscription.ActiveSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prior, ok := r.inactive[id]; ok {
		prior.Status = subscription.StatusTombstoned
		prior.Admin = subscription.SentinelAdmin
	}
	r.upsertActiveLocked(sub)
	return nil
}

func (r *MemorySubscriptionRepository) TombstoneActive(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.active[id]; ok {
		sub.Status = subscription.StatusTombstoned
		sub.Admin = subscription.SentinelAdmin
	}
	return nil
}

func (r *MemorySubscriptionRepository) ListInactiveByUser(ctx context.Context, user string, limit int) ([]*subscription.InactiveSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var subs []*subscription.InactiveSubscription
	for _, id := range r.inactiveOrder {
		sub := r.inactive[id]
		if sub.User != user || sub.Status == subscription.StatusTombstoned {
			continue
		}
		subs = append(subs, copyInactive(sub))
		if len(subs) == limit {
			break
		}
	}
	return subs, nil
}

func (r *MemorySubscriptionRepository) ListActiveByUser(ctx context.Context, user string, limit int) ([]*subscription.ActiveSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var subs []*subscription.ActiveSubscription
	for _, id := range r.activeOrder {
		sub := r.active[id]
		if sub.User != user || sub.Status == subscription.StatusTombstoned {
			continue
		}
		subs = append(subs, copyActive(sub))
		if len(subs) == limit {
			break
		}
	}
	return subs, nil
}

func (r *MemorySubscriptionRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inactive = make(map[string]*subscription.InactiveSubscription)
	r.active = make(map[string]*subscription.ActiveSubscription)
	r.inactiveOrder = nil
	r.activeOrder = nil
	return nil
}

func (r *MemorySubscriptionRepository) upsertInactiveLocked(sub *subscription.InactiveSubscription) {
	if _, ok := r.inactive[sub.ID]; !ok {
		r.inactiveOrder = append(r.inactiveOrder, sub.ID)
	}
	r.inactive[sub.ID] = copyInactive(sub)
}

func (r *MemorySubscriptionRepository) upsertActiveLocked(sub *subscription.ActiveSubscription) {
	if _, ok := r.active[sub.ID]; !ok {
		r.activeOrder = append(r.activeOrder, sub.ID)
	}
	r.active[sub.ID] = copyActive(sub)
}

func copyInactive(sub *subscription.InactiveSubscription) *subscription.InactiveSubscription {
	c := *sub
	c.Price = copyPrice(sub.Price)
	return &c
}

func copyActive(sub *subscription.ActiveSubscription) *subscription.ActiveSubscription {
	c := *sub
	c.Price = copyPrice(sub.Price)
	return &c
}

func copyPrice(p *big.Int) *big.Int {
	if p == nil {
		return nil
	}
	return new(big.Int).Set(p)
}
