package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/farmlink/agritrade/internal/domain"
)

// AuctionCloser is an interface for executing the close transition of a
// due auction, including order creation, without the engine depending
// on the service layer directly.
type AuctionCloser interface {
	CloseDueAuction(auctionID string) error
}

// expiryEntry is one scheduled auction close, ordered by (EndsAt, id).
type expiryEntry struct {
	endsAt    time.Time
	auctionID string
}

func expiryLess(a, b expiryEntry) bool {
	if !a.endsAt.Equal(b.endsAt) {
		return a.endsAt.Before(b.endsAt)
	}
	return a.auctionID < b.auctionID
}

// ExpiryManager schedules one deferred close per active auction, keyed
// by auction id, and periodically fires the ones whose end time has
// passed. A failed close stays scheduled and is retried on the next
// tick: an auction stuck active past its end time is a correctness
// violation, so the scheduler never drops a due close.
type ExpiryManager struct {
	interval time.Duration
	closer   AuctionCloser
	logger   *slog.Logger

	mu       sync.Mutex
	schedule *btree.BTreeG[expiryEntry]
	byID     map[string]expiryEntry // auction_id → scheduled entry
}

// NewExpiryManager creates a new ExpiryManager with the given tick
// interval and close executor.
func NewExpiryManager(interval time.Duration, closer AuctionCloser, logger *slog.Logger) *ExpiryManager {
	const degree = 32
	return &ExpiryManager{
		interval: interval,
		closer:   closer,
		logger:   logger,
		schedule: btree.NewG[expiryEntry](degree, expiryLess),
		byID:     make(map[string]expiryEntry),
	}
}

// Add schedules the auction's close at its end time.
func (e *ExpiryManager) Add(a *domain.Auction) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := expiryEntry{endsAt: a.EndsAt, auctionID: a.AuctionID}
	e.schedule.ReplaceOrInsert(entry)
	e.byID[a.AuctionID] = entry
}

// Remove drops the scheduled close for an auction, e.g. when the
// farmer cancels it before expiry.
func (e *ExpiryManager) Remove(auctionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.byID[auctionID]
	if !ok {
		return
	}
	delete(e.byID, auctionID)
	e.schedule.Delete(entry)
}

// Start launches a background goroutine that ticks at the configured
// interval and closes due auctions. It stops when ctx is cancelled.
func (e *ExpiryManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				e.tick(t)
			}
		}
	}()
}

// tick collects every scheduled close with ends_at <= now, removes them
// from the schedule, and executes them. Closes that fail are put back
// for the next tick.
func (e *ExpiryManager) tick(now time.Time) {
	e.mu.Lock()
	var due []expiryEntry
	e.schedule.Ascend(func(entry expiryEntry) bool {
		if entry.endsAt.After(now) {
			return false
		}
		due = append(due, entry)
		return true
	})
	for _, entry := range due {
		e.schedule.Delete(entry)
		delete(e.byID, entry.auctionID)
	}
	e.mu.Unlock()

	for _, entry := range due {
		if err := e.closer.CloseDueAuction(entry.auctionID); err != nil {
			if e.logger != nil {
				e.logger.Warn("auction close failed, will retry",
					slog.String("auction_id", entry.auctionID),
					slog.String("error", err.Error()),
				)
			}
			// Reschedule so the next tick retries the close.
			e.mu.Lock()
			e.schedule.ReplaceOrInsert(entry)
			e.byID[entry.auctionID] = entry
			e.mu.Unlock()
		}
	}
}

// ScheduledCount returns the number of auctions currently scheduled for
// closing. Useful for testing.
func (e *ExpiryManager) ScheduledCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.byID)
}
