package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"subindex/internal/chain"
	"subindex/internal/metrics"
)

// Ingestor routes each decoded log to exactly one handler. It performs no
// business logic and does not deduplicate.
type Ingestor struct {
	subs  SubscriptionHandlers
	audit AuditRecorder
}

func NewIngestor(subs SubscriptionHandlers, audit AuditRecorder) *Ingestor {
	return &Ingestor{subs: subs, audit: audit}
}

// Process handles a single log. The caller MUST deliver logs in ascending
// (blockNumber, logIndex) order: handlers are not safe to reorder, since
// later events read state written by earlier ones for the same key.
//
// A log with an unknown topic or a malformed payload is counted and
// skipped; only store failures are returned, and they abort the run.
func (i *Ingestor) Process(ctx context.Context, lg chain.Log) error {
	kind, ok := chain.KindOf(lg)
	if !ok {
		metrics.EventsSkippedTotal.WithLabelValues("unknown", "unknown_topic").Inc()
		return nil
	}

	var err error
	switch kind {
	case chain.KindSubscriptionOffered:
		ev, derr := chain.DecodeSubscriptionOffered(lg)
		if derr != nil {
			return i.malformed(kind, lg, derr)
		}
		err = i.subs.HandleOffered(ctx, ev)
	case chain.KindSubscriptionActivated:
		ev, derr := chain.DecodeSubscriptionActivated(lg)
		if derr != nil {
			return i.malformed(kind, lg, derr)
		}
		err = i.subs.HandleActivated(ctx, ev)
	case chain.KindPaymentMade:
		ev, derr := chain.DecodePaymentMade(lg)
		if derr != nil {
			return i.malformed(kind, lg, derr)
		}
		err = i.subs.HandlePayment(ctx, ev)
	case chain.KindSubscriptionCancelled:
		ev, derr := chain.DecodeSubscriptionCancelled(lg)
		if derr != nil {
			return i.malformed(kind, lg, derr)
		}
		err = i.subs.HandleCancelled(ctx, ev)
	case chain.KindAdminEthWithdrawal, chain.KindAdminUsdWithdrawal,
		chain.KindOwnerEthFeesWithdrawal, chain.KindOwnerUsdFeesWithdrawal:
		ev, derr := chain.DecodeWithdrawal(kind, lg)
		if derr != nil {
			return i.malformed(kind, lg, derr)
		}
		err = i.audit.RecordWithdrawal(ctx, ev)
	case chain.KindOwnershipTransferred:
		ev, derr := chain.DecodeOwnershipTransferred(lg)
		if derr != nil {
			return i.malformed(kind, lg, derr)
		}
		err = i.audit.RecordOwnershipTransfer(ctx, ev)
	case chain.KindDayProcessed:
		ev, derr := chain.DecodeDayProcessed(lg)
		if derr != nil {
			return i.malformed(kind, lg, derr)
		}
		err = i.audit.RecordDayTick(ctx, ev)
	case chain.KindUserRegistered, chain.KindUserUnregistered:
		ev, derr := chain.DecodeUserRegistration(kind, lg)
		if derr != nil {
			return i.malformed(kind, lg, derr)
		}
		err = i.audit.RecordUserRegistration(ctx, ev)
	}
	if err != nil {
		return err
	}

	metrics.EventsProcessedTotal.WithLabelValues(string(kind)).Inc()
	return nil
}

// malformed records a payload that does not match its kind's schema. One
// bad event must not block the legitimate ones behind it.
func (i *Ingestor) malformed(kind chain.Kind, lg chain.Log, err error) error {
	metrics.EventsSkippedTotal.WithLabelValues(string(kind), "malformed_payload").Inc()
	log.Warn().
		Err(err).
		Str("event", string(kind)).
		Str("tx", lg.TxHash).
		Uint64("block", lg.BlockNumber).
		Uint32("log_index", lg.LogIndex).
		Msg("skipping malformed event payload")
	return nil
}
