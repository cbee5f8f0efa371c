package service

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"subindex/internal/chain"
	"subindex/internal/config"
	"subindex/internal/metrics"
)

// Poller drives the projection: it fetches confirmed logs in bounded block
// ranges, restores their canonical (block, logIndex) order, resolves block
// timestamps and feeds them to the ingestor one at a time. It is the only
// writer; everything downstream relies on that.
type Poller struct {
	client      RPCClient
	ingestor    *Ingestor
	checkpoints CheckpointStore
	resetters   []Resetter

	contract      string
	startBlock    uint64
	confirmations uint64
	interval      time.Duration
	batchSize     uint64

	reindex atomic.Bool
	wake    chan struct{}
}

func NewPoller(client RPCClient, ingestor *Ingestor, checkpoints CheckpointStore, cfg *config.Config, resetters ...Resetter) *Poller {
	return &Poller{
		client:        client,
		ingestor:      ingestor,
		checkpoints:   checkpoints,
		resetters:     resetters,
		contract:      cfg.ContractAddress,
		startBlock:    cfg.StartBlock,
		confirmations: cfg.Confirmations,
		interval:      cfg.PollInterval,
		batchSize:     cfg.LogBatchSize,
		wake:          make(chan struct{}, 1),
	}
}

// Wake triggers an immediate poll cycle. Safe from any goroutine.
func (p *Poller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// RequestReindex schedules a full replay: every projection table is
// emptied and ingestion restarts from the configured start block. The
// reset happens on the poller goroutine, so the single-writer discipline
// holds. Replaying onto a non-empty store is never allowed — handlers
// overwrite blindly.
func (p *Poller) RequestReindex() {
	p.reindex.Store(true)
	p.Wake()
}

// Run polls until ctx is cancelled. RPC failures are retried on the next
// tick; store failures end the run and are returned to the caller.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().
		Str("contract", p.contract).
		Uint64("start_block", p.startBlock).
		Uint64("confirmations", p.confirmations).
		Msg("poller starting")

	for {
		if p.reindex.CompareAndSwap(true, false) {
			for _, r := range p.resetters {
				if err := r.Reset(ctx); err != nil {
					return fmt.Errorf("reset projection for reindex: %w", err)
				}
			}
			log.Info().Uint64("start_block", p.startBlock).Msg("projection reset, replaying")
		}

		if err := p.cycle(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		case <-p.wake:
		}
	}
}

func (p *Poller) cycle(ctx context.Context) error {
	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("head fetch failed, retrying next tick")
		return nil
	}
	metrics.ChainHeadBlock.Set(float64(head))

	if head < p.confirmations {
		return nil
	}
	target := head - p.confirmations

	from := p.startBlock
	cp, err := p.checkpoints.Get(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if cp != nil {
		// checkpoints land on batch boundaries, never mid-block, so the
		// whole next block is the resume point
		from = cp.BlockNumber + 1
	}

	for from <= target {
		to := target
		if p.batchSize > 0 && to-from+1 > p.batchSize {
			to = from + p.batchSize - 1
		}

		logs, err := p.client.GetLogs(ctx, from, to, p.contract)
		if err != nil {
			log.Warn().Err(err).Uint64("from", from).Uint64("to", to).
				Msg("log fetch failed, retrying next tick")
			return nil
		}

		// eth_getLogs responses are ordered in practice, but ordering is a
		// hard precondition of the ingestor, so it is enforced here.
		sort.Slice(logs, func(a, b int) bool {
			if logs[a].BlockNumber != logs[b].BlockNumber {
				return logs[a].BlockNumber < logs[b].BlockNumber
			}
			return logs[a].LogIndex < logs[b].LogIndex
		})

		if err := p.deliver(ctx, logs); err != nil {
			return err
		}

		lastIdx := uint32(0)
		if n := len(logs); n > 0 {
			lastIdx = logs[n-1].LogIndex
		}
		if err := p.checkpoints.Save(ctx, chain.Checkpoint{BlockNumber: to, LogIndex: lastIdx}); err != nil {
			return fmt.Errorf("save checkpoint at block %d: %w", to, err)
		}
		metrics.CheckpointBlock.Set(float64(to))

		from = to + 1
	}
	return nil
}

func (p *Poller) deliver(ctx context.Context, logs []chain.Log) error {
	timestamps := make(map[uint64]uint64)
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ts, ok := timestamps[lg.BlockNumber]
		if !ok {
			var err error
			ts, err = p.client.BlockTimestamp(ctx, lg.BlockNumber)
			if err != nil {
				log.Warn().Err(err).Uint64("block", lg.BlockNumber).
					Msg("timestamp fetch failed, leaving zero")
			}
			timestamps[lg.BlockNumber] = ts
		}
		lg.BlockTimestamp = ts

		if err := p.ingestor.Process(ctx, lg); err != nil {
			return fmt.Errorf("process log %s/%d: %w", lg.TxHash, lg.LogIndex, err)
		}
	}
	return nil
}
