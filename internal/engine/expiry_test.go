package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/farmlink/agritrade/internal/domain"
)

type mockCloser struct {
	closed   []string
	failures map[string]int // auction_id → remaining failures
}

func (m *mockCloser) CloseDueAuction(auctionID string) error {
	if m.failures[auctionID] > 0 {
		m.failures[auctionID]--
		return errors.New("close failed")
	}
	m.closed = append(m.closed, auctionID)
	return nil
}

func scheduledAuction(id string, endsAt time.Time) *domain.Auction {
	return &domain.Auction{
		AuctionID: id,
		ListingID: "lst-" + id,
		EndsAt:    endsAt,
		Status:    domain.AuctionStatusActive,
	}
}

func TestExpiryManager_TickClosesDueAuctions(t *testing.T) {
	closer := &mockCloser{}
	em := NewExpiryManager(time.Second, closer, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	em.Add(scheduledAuction("auc-1", now.Add(-time.Minute)))
	em.Add(scheduledAuction("auc-2", now.Add(-time.Second)))
	em.Add(scheduledAuction("auc-3", now.Add(time.Hour)))

	em.tick(now)

	if len(closer.closed) != 2 {
		t.Fatalf("closed = %v, want auc-1 and auc-2", closer.closed)
	}
	// Due closes fire in end-time order.
	if closer.closed[0] != "auc-1" || closer.closed[1] != "auc-2" {
		t.Fatalf("close order = %v, want [auc-1 auc-2]", closer.closed)
	}
	if em.ScheduledCount() != 1 {
		t.Fatalf("ScheduledCount = %d, want 1 (auc-3 still pending)", em.ScheduledCount())
	}
}

func TestExpiryManager_ExactEndTimeIsDue(t *testing.T) {
	closer := &mockCloser{}
	em := NewExpiryManager(time.Second, closer, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	em.Add(scheduledAuction("auc-1", now))
	em.tick(now)

	if len(closer.closed) != 1 {
		t.Fatalf("auction ending exactly at tick time must close, closed = %v", closer.closed)
	}
}

func TestExpiryManager_FailedCloseRetriesNextTick(t *testing.T) {
	closer := &mockCloser{failures: map[string]int{"auc-1": 2}}
	em := NewExpiryManager(time.Second, closer, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	em.Add(scheduledAuction("auc-1", now.Add(-time.Second)))

	em.tick(now)
	if len(closer.closed) != 0 || em.ScheduledCount() != 1 {
		t.Fatal("failed close must stay scheduled")
	}

	em.tick(now.Add(time.Second))
	if len(closer.closed) != 0 || em.ScheduledCount() != 1 {
		t.Fatal("second failure must stay scheduled")
	}

	em.tick(now.Add(2 * time.Second))
	if len(closer.closed) != 1 || closer.closed[0] != "auc-1" {
		t.Fatalf("third attempt should succeed, closed = %v", closer.closed)
	}
	if em.ScheduledCount() != 0 {
		t.Fatalf("ScheduledCount = %d, want 0", em.ScheduledCount())
	}
}

func TestExpiryManager_RemoveCancelsScheduledClose(t *testing.T) {
	closer := &mockCloser{}
	em := NewExpiryManager(time.Second, closer, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	em.Add(scheduledAuction("auc-1", now.Add(-time.Second)))
	em.Remove("auc-1")
	em.Remove("auc-1") // second remove is a no-op

	em.tick(now)
	if len(closer.closed) != 0 {
		t.Fatalf("removed auction must not close, closed = %v", closer.closed)
	}
}

func TestExpiryManager_StartStopsOnContextCancel(t *testing.T) {
	closer := &mockCloser{}
	em := NewExpiryManager(5*time.Millisecond, closer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	em.Start(ctx)

	em.Add(scheduledAuction("auc-1", time.Now().Add(-time.Second)))

	deadline := time.Now().Add(2 * time.Second)
	for em.ScheduledCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if em.ScheduledCount() != 0 {
		t.Fatal("ticker should have closed the due auction")
	}
}
