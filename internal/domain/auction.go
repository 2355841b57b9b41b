package domain

import (
	"sync"
	"time"
)

// AuctionStatus represents the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// Bid is a single bid recorded against an auction. Immutable once
// recorded; Seq is the insertion sequence number used as the tie-break
// after Timestamp, so ordering never depends on amount alone.
type Bid struct {
	BidID     string
	AuctionID string
	BidderID  string
	Amount    int64 // paise per kg
	Seq       int
	Timestamp time.Time
}

// Auction is a timed ascending-bid protocol on a listing. All mutations
// happen under Mu; the bid sequence is append-only and CurrentBid always
// points at the last (highest) accepted bid.
type Auction struct {
	AuctionID     string
	ListingID     string
	FarmerID      string
	StartingPrice int64 // paise per kg
	CurrentBid    *Bid  // nil until the first bid is accepted
	Bids          []*Bid
	StartsAt      time.Time
	EndsAt        time.Time
	Status        AuctionStatus
	Mu            sync.Mutex // per-auction lock, serializes bids and closing
}

// HighestBid returns the current highest bid, or (nil, false) if no bid
// has been accepted yet. Callers mutating the auction hold Mu already.
func (a *Auction) HighestBid() (*Bid, bool) {
	if a.CurrentBid == nil {
		return nil, false
	}
	return a.CurrentBid, true
}

// MinimumNextBid returns the smallest amount a new bid must strictly
// exceed: the current bid amount, or the starting price with no bids.
func (a *Auction) MinimumNextBid() int64 {
	if a.CurrentBid != nil {
		return a.CurrentBid.Amount
	}
	return a.StartingPrice
}
