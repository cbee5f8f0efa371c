package service

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subindex/internal/chain"
	"subindex/internal/subscription"
	"subindex/internal/subscription/repository"
)

const (
	admin = "0x1111111111111111111111111111111111111111"
	user  = "0x2222222222222222222222222222222222222222"
)

func provenance(block uint64) chain.Provenance {
	return chain.Provenance{
		BlockNumber:    block,
		BlockTimestamp: block * 2,
		TxHash:         "0xabc",
		LogIndex:       1,
	}
}

func offered(price int64, interval, duration uint64, block uint64) chain.SubscriptionOffered {
	return chain.SubscriptionOffered{
		Admin:           admin,
		User:            user,
		Price:           big.NewInt(price),
		PaymentInterval: interval,
		Duration:        duration,
		Provenance:      provenance(block),
	}
}

func activated(start, end uint64, block uint64) chain.SubscriptionActivated {
	return chain.SubscriptionActivated{
		Admin:           admin,
		User:            user,
		Price:           big.NewInt(100),
		PaymentInterval: 86400,
		StartTime:       start,
		EndTime:         end,
		Provenance:      provenance(block),
	}
}

func newService() (*Service, *repository.MemorySubscriptionRepository) {
	repo := repository.NewMemorySubscriptionRepository()
	return NewService(repo), repo
}

func TestActivationTombstonesOfferAndCreatesActive(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()

	require.NoError(t, svc.HandleOffered(ctx, offered(100, 86400, 2592000, 10)))
	require.NoError(t, svc.HandleActivated(ctx, activated(1000, 1000+2592000, 11)))

	key := subscription.Key(admin, user)

	inactive, err := repo.GetInactive(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, inactive)
	assert.Equal(t, subscription.SentinelAdmin, inactive.Admin)
	assert.Equal(t, subscription.StatusTombstoned, inactive.Status)

	active, err := repo.GetActive(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, admin, active.Admin)
	assert.Equal(t, user, active.User)
	assert.Equal(t, big.NewInt(100), active.Price)
	assert.Equal(t, uint64(86400), active.PaymentInterval)
	assert.Equal(t, uint64(1000), active.StartTime)
	assert.Equal(t, uint64(1000+86400), active.NextPaymentTime)
	assert.Equal(t, subscription.StatusActive, active.Status)
}

func TestPaymentReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()

	require.NoError(t, svc.HandleOffered(ctx, offered(100, 86400, 2592000, 10)))
	require.NoError(t, svc.HandleActivated(ctx, activated(1000, 2593000, 11)))

	// nextPaymentTime comes straight from the event; applying it twice
	// must not recompute anything.
	payment := chain.PaymentMade{
		Admin:           admin,
		User:            user,
		Price:           big.NewInt(100),
		NextPaymentTime: 173800,
		Provenance:      provenance(12),
	}
	require.NoError(t, svc.HandlePayment(ctx, payment))
	require.NoError(t, svc.HandlePayment(ctx, payment))

	active, err := repo.GetActive(ctx, subscription.Key(admin, user))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, uint64(173800), active.NextPaymentTime)
}

func TestPaymentPreservesUnrelatedFields(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()

	require.NoError(t, svc.HandleOffered(ctx, offered(100, 86400, 2592000, 10)))
	require.NoError(t, svc.HandleActivated(ctx, activated(1000, 2593000, 11)))

	require.NoError(t, svc.HandlePayment(ctx, chain.PaymentMade{
		Admin:           admin,
		User:            user,
		Price:           big.NewInt(120),
		NextPaymentTime: 173800,
		Provenance:      provenance(12),
	}))

	active, err := repo.GetActive(ctx, subscription.Key(admin, user))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, uint64(1000), active.StartTime)
	assert.Equal(t, uint64(2593000), active.EndTime)
	assert.Equal(t, uint64(86400), active.PaymentInterval)
	assert.Equal(t, big.NewInt(120), active.Price)
}

func TestCancellationTombstonesActiveOnly(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()

	require.NoError(t, svc.HandleOffered(ctx, offered(100, 86400, 2592000, 10)))
	require.NoError(t, svc.HandleActivated(ctx, activated(1000, 2593000, 11)))
	require.NoError(t, svc.HandleCancelled(ctx, chain.SubscriptionCancelled{
		Admin:      admin,
		User:       user,
		Provenance: provenance(12),
	}))

	active, err := repo.GetActive(ctx, subscription.Key(admin, user))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, subscription.SentinelAdmin, active.Admin)
	assert.Equal(t, subscription.StatusTombstoned, active.Status)
}

func TestReofferIsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()

	require.NoError(t, svc.HandleOffered(ctx, offered(100, 86400, 2592000, 10)))
	require.NoError(t, svc.HandleOffered(ctx, offered(250, 86400, 2592000, 11)))

	inactive, err := repo.GetInactive(ctx, subscription.Key(admin, user))
	require.NoError(t, err)
	require.NotNil(t, inactive)
	assert.Equal(t, big.NewInt(250), inactive.Price)
	assert.Equal(t, uint64(11), inactive.BlockNumber)
}

func TestActivationWithoutOfferStillConverges(t *testing.T) {
	// Replays can start past the offer block; the activation must still
	// produce the active row instead of crashing the stream.
	ctx := context.Background()
	svc, repo := newService()

	require.NoError(t, svc.HandleActivated(ctx, activated(1000, 2593000, 11)))

	active, err := repo.GetActive(ctx, subscription.Key(admin, user))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, subscription.StatusActive, active.Status)
}

func TestPaymentWithoutActiveIsSkipped(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()

	require.NoError(t, svc.HandlePayment(ctx, chain.PaymentMade{
		Admin:           admin,
		User:            user,
		Price:           big.NewInt(100),
		NextPaymentTime: 173800,
		Provenance:      provenance(12),
	}))

	active, err := repo.GetActive(ctx, subscription.Key(admin, user))
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestCancellationWithoutActiveIsSkipped(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	require.NoError(t, svc.HandleCancelled(ctx, chain.SubscriptionCancelled{
		Admin:      admin,
		User:       user,
		Provenance: provenance(12),
	}))
}

func TestTombstonedRowsNeverSurfaceInQueries(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	require.NoError(t, svc.HandleOffered(ctx, offered(100, 86400, 2592000, 10)))
	require.NoError(t, svc.HandleActivated(ctx, activated(1000, 2593000, 11)))

	inactive, err := svc.ListInactiveByUser(ctx, user, 0)
	require.NoError(t, err)
	assert.Empty(t, inactive)

	active, err := svc.ListActiveByUser(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, svc.HandleCancelled(ctx, chain.SubscriptionCancelled{
		Admin:      admin,
		User:       user,
		Provenance: provenance(12),
	}))

	active, err = svc.ListActiveByUser(ctx, user, 0)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestListLimitDefaultsToPageSize(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	admins := []string{
		"0x3333333333333333333333333333333333333331",
		"0x3333333333333333333333333333333333333332",
		"0x3333333333333333333333333333333333333333",
		"0x3333333333333333333333333333333333333334",
		"0x3333333333333333333333333333333333333335",
		"0x3333333333333333333333333333333333333336",
		"0x3333333333333333333333333333333333333337",
	}
	for i, a := range admins {
		ev := offered(100, 86400, 2592000, uint64(10+i))
		ev.Admin = a
		require.NoError(t, svc.HandleOffered(ctx, ev))
	}

	subs, err := svc.ListInactiveByUser(ctx, user, 0)
	require.NoError(t, err)
	assert.Len(t, subs, DefaultPageSize)
	// insertion order
	assert.Equal(t, admins[0], subs[0].Admin)
}
