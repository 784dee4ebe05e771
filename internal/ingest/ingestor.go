// Package ingest implements the resumable consumer that turns indexer
// insert/delete events into holding-balance mutations under transactional
// guarantees.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/adapter"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/address"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/domain"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/logger"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/providers/indexer"
	"github.com/LavonTMCQ/bundledatabase-sub001/internal/store"
)

// Config holds ingestor timing configuration
type Config struct {
	// PollInterval is the idle sleep after an empty fetch
	PollInterval time.Duration
	// ErrorBackoff is the sleep before retrying after a transient failure
	ErrorBackoff time.Duration
}

// Ingestor is the single-flight ingestion loop. Each cycle fetches a batch of
// ledger events since the current checkpoint, applies the balance diffs and
// advances the checkpoint atomically with them.
type Ingestor struct {
	config  Config
	feed    indexer.Client
	store   store.Store
	clock   adapter.Clock
	running atomic.Bool

	cursor domain.Point
}

// New creates a new ingestor
func New(cfg Config, feed indexer.Client, st store.Store, clock adapter.Clock) *Ingestor {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = 10 * time.Second
	}
	return &Ingestor{
		config: cfg,
		feed:   feed,
		store:  st,
		clock:  clock,
	}
}

// Run starts the ingestion loop and blocks until the context is canceled.
// The loop resumes from the last committed checkpoint, so a restart after a
// crash mid-batch reprocesses that batch from scratch.
func (i *Ingestor) Run(ctx context.Context) error {
	if !i.running.CompareAndSwap(false, true) {
		return domain.ErrIngestorRunning
	}
	defer i.running.Store(false)

	cursor, err := i.store.GetSyncCursor(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sync cursor: %w", err)
	}
	i.cursor = cursor

	logger.InfoCtx(ctx, "Starting ingestor", zap.String("cursor", cursor.String()))

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Ingestor stopping", zap.String("cursor", i.cursor.String()))
			return nil
		default:
		}

		if err := i.runCycle(ctx); err != nil {
			logger.WarnCtx(ctx, "Ingestion cycle failed, backing off",
				zap.Error(err), zap.String("cursor", i.cursor.String()))
			if !i.sleep(ctx, i.config.ErrorBackoff) {
				return nil
			}
		}
	}
}

// runCycle performs one Fetching -> Applying -> Committing pass. Any error
// leaves the checkpoint untouched so the next cycle re-fetches the same batch.
func (i *Ingestor) runCycle(ctx context.Context) error {
	events, err := i.feed.FetchEvents(ctx, i.cursor)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}

	if len(events) == 0 {
		i.sleep(ctx, i.config.PollInterval)
		return nil
	}

	deltas, point := i.buildDeltas(events)
	if point.IsOrigin() {
		// Feed redelivered only already-applied points; nothing to do.
		i.sleep(ctx, i.config.PollInterval)
		return nil
	}

	// Holdings and cursor commit atomically; a failure rolls back the batch.
	if err := i.store.ApplyHoldingDeltas(ctx, deltas, point); err != nil {
		return fmt.Errorf("failed to apply batch ending at %s: %w", point, err)
	}

	i.cursor = point
	logger.DebugCtx(ctx, "Committed ingestion batch",
		zap.Int("events", len(events)),
		zap.Int("deltas", len(deltas)),
		zap.String("cursor", point.String()))

	return nil
}

// buildDeltas turns a batch of ledger events into aggregated balance
// mutations and returns the final event point. Events at or before the
// current checkpoint are dropped, guarding against feed redelivery.
func (i *Ingestor) buildDeltas(events []domain.LedgerEvent) ([]store.HoldingDelta, domain.Point) {
	type key struct {
		policy     string
		credential string
	}

	index := make(map[key]int)
	var deltas []store.HoldingDelta
	var last domain.Point

	apply := func(u domain.UTxO, sign int64) {
		credential, ok := address.ResolveStakeCredential(u.Address)
		if !ok {
			// Script/enterprise addresses and decode failures are excluded
			// from wallet tracking entirely.
			return
		}
		for _, asset := range u.Assets {
			k := key{policy: asset.PolicyID, credential: credential}
			idx, exists := index[k]
			if !exists {
				idx = len(deltas)
				index[k] = idx
				deltas = append(deltas, store.HoldingDelta{
					PolicyID:        asset.PolicyID,
					AssetName:       asset.AssetName,
					StakeCredential: credential,
				})
			}
			deltas[idx].Delta += sign * asset.Quantity
		}
	}

	for _, ev := range events {
		if i.applied(ev.Point) {
			continue
		}
		for _, u := range ev.Insert {
			apply(u, 1)
		}
		for _, u := range ev.Delete {
			apply(u, -1)
		}
		last = ev.Point
	}

	return deltas, last
}

// applied reports whether an event point is at or before the current checkpoint
func (i *Ingestor) applied(p domain.Point) bool {
	if p.Slot < i.cursor.Slot {
		return true
	}
	return p.Slot == i.cursor.Slot && p.Hash == i.cursor.Hash
}

// sleep waits for d or context cancellation; returns false when canceled
func (i *Ingestor) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-i.clock.After(d):
		return true
	}
}
