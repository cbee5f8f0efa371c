package service

import (
	"context"

	"subindex/internal/chain"
)

// RPCClient is the slice of the Ethereum JSON-RPC surface the poller uses.
type RPCClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, from, to uint64, address string) ([]chain.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// SubscriptionHandlers are the lifecycle handlers the ingestor dispatches
// to. Implemented by the subscription service.
type SubscriptionHandlers interface {
	HandleOffered(ctx context.Context, ev chain.SubscriptionOffered) error
	HandleActivated(ctx context.Context, ev chain.SubscriptionActivated) error
	HandlePayment(ctx context.Context, ev chain.PaymentMade) error
	HandleCancelled(ctx context.Context, ev chain.SubscriptionCancelled) error
}

// AuditRecorder receives the administrative events. Implemented by the
// audit service.
type AuditRecorder interface {
	RecordWithdrawal(ctx context.Context, ev chain.Withdrawal) error
	RecordOwnershipTransfer(ctx context.Context, ev chain.OwnershipTransferred) error
	RecordDayTick(ctx context.Context, ev chain.DayProcessed) error
	RecordUserRegistration(ctx context.Context, ev chain.UserRegistration) error
}

// CheckpointStore persists the last durably processed stream position.
type CheckpointStore interface {
	Get(ctx context.Context) (*chain.Checkpoint, error)
	Save(ctx context.Context, cp chain.Checkpoint) error
	Reset(ctx context.Context) error
}

// Resetter empties a projection table set before a replay.
type Resetter interface {
	Reset(ctx context.Context) error
}
