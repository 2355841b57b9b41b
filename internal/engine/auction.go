package engine

import (
	"time"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/store"
)

// BidNotifier is an interface for dispatching outbid notifications from
// the engine layer without depending on the service layer directly.
// Arguments are plain values snapshotted under the auction lock; the
// notifier must not be handed live auction state, since it runs outside
// the lock while later bids keep mutating the auction.
type BidNotifier interface {
	DispatchBidOutbid(auctionID, listingID string, outbid *domain.Bid, currentAmount int64)
}

// AuctionBook owns the timed bidding state machine of every auction.
// All bid and close operations on one auction are serialized by the
// auction's own lock; operations on different auctions never contend.
type AuctionBook struct {
	auctions *store.AuctionStore
	notifier BidNotifier
}

// NewAuctionBook creates an AuctionBook over the given store. notifier
// may be nil, in which case outbid notifications are skipped.
func NewAuctionBook(auctions *store.AuctionStore, notifier BidNotifier) *AuctionBook {
	return &AuctionBook{
		auctions: auctions,
		notifier: notifier,
	}
}

// Open starts a timed auction on a listing. The listing must have
// auctioning enabled; at most one active auction per listing exists.
func (b *AuctionBook) Open(listing *domain.Listing, startingPrice int64, endsAt time.Time) (*domain.Auction, error) {
	if !listing.AuctionEnabled {
		return nil, &domain.ValidationError{Message: "auctioning is not enabled for this listing"}
	}

	now := time.Now()
	if !endsAt.After(now) {
		return nil, &domain.ValidationError{Message: "ends_at must be a future timestamp"}
	}

	a := &domain.Auction{
		AuctionID:     domain.NewID("auc"),
		ListingID:     listing.ListingID,
		FarmerID:      listing.FarmerID,
		StartingPrice: startingPrice,
		Bids:          []*domain.Bid{},
		StartsAt:      now,
		EndsAt:        endsAt,
		Status:        domain.AuctionStatusActive,
	}

	if err := b.auctions.Create(a); err != nil {
		return nil, err
	}
	return a, nil
}

// PlaceBid validates and records a bid against an active auction.
// Wall-clock time is re-checked against EndsAt under the auction lock,
// so no bid lands after expiry even if the closing transition has not
// run yet. A bid must strictly exceed the current highest amount (or
// the starting price with no bids); equal amounts are rejected, which
// makes the earlier bid unbeatable by duplicates.
func (b *AuctionBook) PlaceBid(auctionID, bidderID string, amount int64) (*domain.Bid, error) {
	a, err := b.auctions.Get(auctionID)
	if err != nil {
		return nil, err
	}

	a.Mu.Lock()

	if a.Status != domain.AuctionStatusActive {
		a.Mu.Unlock()
		return nil, domain.ErrAuctionExpired
	}
	if !time.Now().Before(a.EndsAt) {
		a.Mu.Unlock()
		return nil, domain.ErrAuctionExpired
	}
	if amount <= a.MinimumNextBid() {
		a.Mu.Unlock()
		return nil, domain.ErrBidTooLow
	}

	outbid := a.CurrentBid

	bid := &domain.Bid{
		BidID:     domain.NewID("bid"),
		AuctionID: a.AuctionID,
		BidderID:  bidderID,
		Amount:    amount,
		Seq:       len(a.Bids),
		Timestamp: time.Now(),
	}
	a.Bids = append(a.Bids, bid)
	a.CurrentBid = bid

	a.Mu.Unlock()

	// Notify the previous highest bidder outside the lock. Only
	// immutable data crosses: the outbid Bid record and the amount
	// snapshotted above.
	if outbid != nil && outbid.BidderID != bidderID && b.notifier != nil {
		b.notifier.DispatchBidOutbid(a.AuctionID, a.ListingID, outbid, amount)
	}

	return bid, nil
}

// Close transitions an active auction to ended and returns the winning
// bid, or nil if no bid was placed. The commit callback runs under the
// auction lock before the terminal transition; a non-nil error from it
// aborts the close, leaving the auction active for a later retry.
// Closing an already-terminal auction is a no-op.
func (b *AuctionBook) Close(auctionID string, commit func(a *domain.Auction, winner *domain.Bid) error) (*domain.Auction, *domain.Bid, error) {
	a, err := b.auctions.Get(auctionID)
	if err != nil {
		return nil, nil, err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()

	if a.Status != domain.AuctionStatusActive {
		return a, nil, nil
	}

	winner := a.CurrentBid
	if commit != nil {
		if err := commit(a, winner); err != nil {
			return nil, nil, err
		}
	}

	a.Status = domain.AuctionStatusEnded
	b.auctions.ClearActive(a.ListingID, a.AuctionID)
	return a, winner, nil
}

// Cancel transitions an active auction to cancelled. Only the owning
// farmer may cancel; no order is created regardless of bids.
func (b *AuctionBook) Cancel(auctionID, farmerID string) (*domain.Auction, error) {
	a, err := b.auctions.Get(auctionID)
	if err != nil {
		return nil, err
	}

	a.Mu.Lock()
	defer a.Mu.Unlock()

	if a.FarmerID != farmerID {
		return nil, domain.ErrNotAllowed
	}
	if a.Status != domain.AuctionStatusActive {
		return nil, domain.ErrAuctionExpired
	}

	a.Status = domain.AuctionStatusCancelled
	b.auctions.ClearActive(a.ListingID, a.AuctionID)
	return a, nil
}
