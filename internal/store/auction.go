package store

import (
	"sync"

	"github.com/farmlink/agritrade/internal/domain"
)

// AuctionStore is a thread-safe in-memory store for auctions,
// with a primary index by auction_id and a secondary index tracking
// the active auction per listing (at most one per listing).
type AuctionStore struct {
	mu              sync.RWMutex
	auctions        map[string]*domain.Auction
	activeByListing map[string]*domain.Auction // listing_id → active auction
}

// NewAuctionStore creates an empty AuctionStore.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		auctions:        make(map[string]*domain.Auction),
		activeByListing: make(map[string]*domain.Auction),
	}
}

// Create adds an auction to the store and registers it as the listing's
// active auction. It returns domain.ErrAuctionActive if the listing
// already has an active auction. Index membership is the activity
// signal: engines call ClearActive when an auction goes terminal, so
// Status is never read here.
func (s *AuctionStore) Create(a *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activeByListing[a.ListingID]; ok {
		return domain.ErrAuctionActive
	}
	s.auctions[a.AuctionID] = a
	s.activeByListing[a.ListingID] = a
	return nil
}

// Get retrieves an auction by ID. It returns
// domain.ErrAuctionNotFound if the auction does not exist.
func (s *AuctionStore) Get(id string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return a, nil
}

// GetActiveByListing returns the active auction for a listing, or
// (nil, false) if none exists. An auction is active exactly while it
// remains in the index.
func (s *AuctionStore) GetActiveByListing(listingID string) (*domain.Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activeByListing[listingID]
	if !ok {
		return nil, false
	}
	return a, true
}

// ClearActive drops the active-auction index entry for a listing if it
// points at the given auction. Called after an auction reaches a
// terminal status so a new auction may be opened on the listing.
func (s *AuctionStore) ClearActive(listingID, auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.activeByListing[listingID]; ok && a.AuctionID == auctionID {
		delete(s.activeByListing, listingID)
	}
}
