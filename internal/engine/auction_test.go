package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/store"
)

// outbidEvent records one DispatchBidOutbid call.
type outbidEvent struct {
	outbid        *domain.Bid
	currentAmount int64
}

type mockBidNotifier struct {
	mu     sync.Mutex
	events []outbidEvent
}

func (m *mockBidNotifier) DispatchBidOutbid(auctionID, listingID string, outbid *domain.Bid, currentAmount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, outbidEvent{outbid: outbid, currentAmount: currentAmount})
}

func newTestListing(id, farmerID string, qty int64) *domain.Listing {
	return &domain.Listing{
		ListingID:          id,
		FarmerID:           farmerID,
		Crop:               "onion",
		QualityGrade:       "A",
		UnitPrice:          2000,
		Quantity:           qty,
		RemainingQuantity:  qty,
		AuctionEnabled:     true,
		NegotiationEnabled: true,
		CreatedAt:          time.Now(),
	}
}

func TestAuctionBook_Open(t *testing.T) {
	book := NewAuctionBook(store.NewAuctionStore(), nil)
	listing := newTestListing("lst-1", "farmer-1", 500)

	a, err := book.Open(listing, 2000, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if a.Status != domain.AuctionStatusActive {
		t.Fatalf("status = %s, want active", a.Status)
	}
	if a.StartingPrice != 2000 || a.FarmerID != "farmer-1" {
		t.Fatalf("unexpected auction fields: %+v", a)
	}
}

func TestAuctionBook_Open_AuctionDisabled(t *testing.T) {
	book := NewAuctionBook(store.NewAuctionStore(), nil)
	listing := newTestListing("lst-1", "farmer-1", 500)
	listing.AuctionEnabled = false

	_, err := book.Open(listing, 2000, time.Now().Add(time.Hour))
	if _, ok := err.(*domain.ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAuctionBook_Open_SecondActiveRejected(t *testing.T) {
	book := NewAuctionBook(store.NewAuctionStore(), nil)
	listing := newTestListing("lst-1", "farmer-1", 500)

	if _, err := book.Open(listing, 2000, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := book.Open(listing, 2000, time.Now().Add(time.Hour)); err != domain.ErrAuctionActive {
		t.Fatalf("expected ErrAuctionActive, got %v", err)
	}
}

// Ascending auction walkthrough: ₹20/kg start, ₹21 accepted, ₹20
// rejected, ₹24 accepted, close produces the ₹24 winner.
func TestAuctionBook_BiddingSequence(t *testing.T) {
	notifier := &mockBidNotifier{}
	book := NewAuctionBook(store.NewAuctionStore(), notifier)
	listing := newTestListing("lst-1", "farmer-1", 500)

	a, err := book.Open(listing, 2000, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	b1, err := book.PlaceBid(a.AuctionID, "buyer-1", 2100)
	if err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if a.CurrentBid != b1 {
		t.Fatal("current bid should be buyer-1's ₹21")
	}

	if _, err := book.PlaceBid(a.AuctionID, "buyer-2", 2000); err != domain.ErrBidTooLow {
		t.Fatalf("bid at starting price with higher current: expected ErrBidTooLow, got %v", err)
	}

	b2, err := book.PlaceBid(a.AuctionID, "buyer-2", 2400)
	if err != nil {
		t.Fatalf("second bid: %v", err)
	}
	if a.CurrentBid != b2 || a.CurrentBid.BidderID != "buyer-2" {
		t.Fatal("current bid should be buyer-2's ₹24")
	}

	// buyer-1 was outbid exactly once, by the ₹24 bid.
	if len(notifier.events) != 1 || notifier.events[0].outbid.BidderID != "buyer-1" {
		t.Fatalf("outbid notifications = %+v, want one for buyer-1", notifier.events)
	}
	if notifier.events[0].currentAmount != 2400 {
		t.Fatalf("outbid notification carries amount %d, want 2400", notifier.events[0].currentAmount)
	}

	closed, winner, err := book.Close(a.AuctionID, nil)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != domain.AuctionStatusEnded {
		t.Fatalf("status = %s, want ended", closed.Status)
	}
	if winner == nil || winner.BidderID != "buyer-2" || winner.Amount != 2400 {
		t.Fatalf("winner = %+v, want buyer-2 at 2400", winner)
	}
}

func TestAuctionBook_PlaceBid_BelowStartingPrice(t *testing.T) {
	book := NewAuctionBook(store.NewAuctionStore(), nil)
	a, _ := book.Open(newTestListing("lst-1", "farmer-1", 500), 2000, time.Now().Add(time.Hour))

	if _, err := book.PlaceBid(a.AuctionID, "buyer-1", 2000); err != domain.ErrBidTooLow {
		t.Fatalf("bid equal to starting price: expected ErrBidTooLow, got %v", err)
	}
	if _, err := book.PlaceBid(a.AuctionID, "buyer-1", 1500); err != domain.ErrBidTooLow {
		t.Fatalf("bid below starting price: expected ErrBidTooLow, got %v", err)
	}
}

func TestAuctionBook_PlaceBid_EqualAmountRejected(t *testing.T) {
	book := NewAuctionBook(store.NewAuctionStore(), nil)
	a, _ := book.Open(newTestListing("lst-1", "farmer-1", 500), 2000, time.Now().Add(time.Hour))

	if _, err := book.PlaceBid(a.AuctionID, "buyer-1", 2100); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	// An equal-amount duplicate never overtakes the earlier bid.
	if _, err := book.PlaceBid(a.AuctionID, "buyer-2", 2100); err != domain.ErrBidTooLow {
		t.Fatalf("equal-amount bid: expected ErrBidTooLow, got %v", err)
	}
	if a.CurrentBid.BidderID != "buyer-1" {
		t.Fatal("earlier bid must keep the lead")
	}
}

func TestAuctionBook_PlaceBid_AfterEndTime(t *testing.T) {
	book := NewAuctionBook(store.NewAuctionStore(), nil)
	a, _ := book.Open(newTestListing("lst-1", "farmer-1", 500), 2000, time.Now().Add(time.Hour))

	// The closing transition has not run, but the clock is past EndsAt.
	a.EndsAt = time.Now().Add(-time.Second)

	if _, err := book.PlaceBid(a.AuctionID, "buyer-1", 2100); err != domain.ErrAuctionExpired {
		t.Fatalf("bid past end time: expected ErrAuctionExpired, got %v", err)
	}
}

func TestAuctionBook_PlaceBid_UnknownAuction(t *testing.T) {
	book := NewAuctionBook(store.NewAuctionStore(), nil)

	if _, err := book.PlaceBid("no-such-auction", "buyer-1", 2100); err != domain.ErrAuctionNotFound {
		t.Fatalf("expected ErrAuctionNotFound, got %v", err)
	}
}

func TestAuctionBook_Close_Idempotent(t *testing.T) {
	book := NewAuctionBook(store.NewAuctionStore(), nil)
	a, _ := book.Open(newTestListing("lst-1", "farmer-1", 500), 2000, time.Now().Add(time.Hour))
	book.PlaceBid(a.AuctionID, "buyer-1", 2100)

	if _, _, err := book.Close(a.AuctionID, nil); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	closed, winner, err := book.Close(a.AuctionID, nil)
	if err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if closed.Status != domain.AuctionStatusEnded || winner != nil {
		t.Fatal("second Close must be a no-op")
	}
}

func TestAuctionBook_Close_CommitFailureLeavesActive(t *testing.T) {
	book := NewAuctionBook(store.NewAuctionStore(), nil)
	a, _ := book.Open(newTestListing("lst-1", "farmer-1", 500), 2000, time.Now().Add(time.Hour))
	book.PlaceBid(a.AuctionID, "buyer-1", 2100)

	_, _, err := book.Close(a.AuctionID, func(_ *domain.Auction, _ *domain.Bid) error {
		return domain.ErrInsufficientQuantity
	})
	if err != domain.ErrInsufficientQuantity {
		t.Fatalf("expected commit error, got %v", err)
	}
	if a.Status != domain.AuctionStatusActive {
		t.Fatalf("failed close must leave the auction active, status = %s", a.Status)
	}
}

func TestAuctionBook_Cancel(t *testing.T) {
	book := NewAuctionBook(store.NewAuctionStore(), nil)
	a, _ := book.Open(newTestListing("lst-1", "farmer-1", 500), 2000, time.Now().Add(time.Hour))

	if _, err := book.Cancel(a.AuctionID, "someone-else"); err != domain.ErrNotAllowed {
		t.Fatalf("non-owner cancel: expected ErrNotAllowed, got %v", err)
	}

	cancelled, err := book.Cancel(a.AuctionID, "farmer-1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != domain.AuctionStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	if _, err := book.PlaceBid(a.AuctionID, "buyer-1", 2100); err != domain.ErrAuctionExpired {
		t.Fatalf("bid on cancelled auction: expected ErrAuctionExpired, got %v", err)
	}
}

// Outbid notifications are built from values snapshotted under the
// auction lock, so a burst of concurrent bids must never produce a
// notification whose amount fails to exceed the outbid bid it reports.
func TestAuctionBook_ConcurrentBids_OutbidSnapshots(t *testing.T) {
	notifier := &mockBidNotifier{}
	book := NewAuctionBook(store.NewAuctionStore(), notifier)
	listing := newTestListing("lst-1", "farmer-1", 500)

	a, err := book.Open(listing, 2000, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const bidders = 50
	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct amounts; some are rejected depending on arrival
			// order, which is fine.
			book.PlaceBid(a.AuctionID, fmt.Sprintf("buyer-%d", i), 2001+int64(i))
		}(i)
	}
	wg.Wait()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	for _, ev := range notifier.events {
		if ev.currentAmount <= ev.outbid.Amount {
			t.Fatalf("notification amount %d does not exceed outbid amount %d", ev.currentAmount, ev.outbid.Amount)
		}
	}
	if a.CurrentBid == nil || a.CurrentBid.Amount != 2000+bidders {
		t.Fatalf("current bid = %+v, want the maximum amount %d", a.CurrentBid, 2000+bidders)
	}
}
