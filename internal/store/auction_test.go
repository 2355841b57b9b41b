package store

import (
	"testing"
	"time"

	"github.com/farmlink/agritrade/internal/domain"
)

func newTestAuction(id, listingID string) *domain.Auction {
	now := time.Now()
	return &domain.Auction{
		AuctionID:     id,
		ListingID:     listingID,
		FarmerID:      "farmer-1",
		StartingPrice: 2000,
		StartsAt:      now,
		EndsAt:        now.Add(time.Hour),
		Status:        domain.AuctionStatusActive,
	}
}

func TestAuctionStore_Create_and_Get(t *testing.T) {
	s := NewAuctionStore()
	a := newTestAuction("auc-1", "lst-1")

	if err := s.Create(a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get("auc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.ListingID != "lst-1" {
		t.Fatalf("expected lst-1, got %s", got.ListingID)
	}
}

func TestAuctionStore_Get_NotFound(t *testing.T) {
	s := NewAuctionStore()

	_, err := s.Get("no-such-auction")
	if err != domain.ErrAuctionNotFound {
		t.Fatalf("expected ErrAuctionNotFound, got %v", err)
	}
}

func TestAuctionStore_OneActivePerListing(t *testing.T) {
	s := NewAuctionStore()
	if err := s.Create(newTestAuction("auc-1", "lst-1")); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	err := s.Create(newTestAuction("auc-2", "lst-1"))
	if err != domain.ErrAuctionActive {
		t.Fatalf("second Create on same listing: expected ErrAuctionActive, got %v", err)
	}
}

func TestAuctionStore_ClearActive_AllowsNewAuction(t *testing.T) {
	s := NewAuctionStore()
	a := newTestAuction("auc-1", "lst-1")
	if err := s.Create(a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	a.Status = domain.AuctionStatusEnded
	s.ClearActive("lst-1", "auc-1")

	if _, ok := s.GetActiveByListing("lst-1"); ok {
		t.Fatal("listing should have no active auction after clear")
	}
	if err := s.Create(newTestAuction("auc-2", "lst-1")); err != nil {
		t.Fatalf("Create after clear: %v", err)
	}
}

func TestAuctionStore_GetActiveByListing(t *testing.T) {
	s := NewAuctionStore()
	a := newTestAuction("auc-1", "lst-1")
	if err := s.Create(a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok := s.GetActiveByListing("lst-1")
	if !ok || got.AuctionID != "auc-1" {
		t.Fatalf("GetActiveByListing = (%v, %v), want auc-1", got, ok)
	}

	a.Status = domain.AuctionStatusCancelled
	s.ClearActive("lst-1", "auc-1")
	if _, ok := s.GetActiveByListing("lst-1"); ok {
		t.Fatal("cancelled auction should not be reported active")
	}
}

// The store answers activity questions from index membership alone;
// mutating Status without ClearActive must not be visible to it, and
// ClearActive alone is what frees the listing.
func TestAuctionStore_IndexMembershipGovernsActivity(t *testing.T) {
	s := NewAuctionStore()
	a := newTestAuction("auc-1", "lst-1")
	if err := s.Create(a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	a.Mu.Lock()
	a.Status = domain.AuctionStatusEnded
	a.Mu.Unlock()

	if _, ok := s.GetActiveByListing("lst-1"); !ok {
		t.Fatal("auction still indexed, should still be reported active")
	}
	if err := s.Create(newTestAuction("auc-2", "lst-1")); err != domain.ErrAuctionActive {
		t.Fatalf("Create while still indexed: expected ErrAuctionActive, got %v", err)
	}

	s.ClearActive("lst-1", "auc-1")
	if err := s.Create(newTestAuction("auc-2", "lst-1")); err != nil {
		t.Fatalf("Create after ClearActive: %v", err)
	}
}
