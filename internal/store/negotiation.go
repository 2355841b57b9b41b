package store

import (
	"sync"

	"github.com/farmlink/agritrade/internal/domain"
)

// pairKey identifies a (listing, buyer) negotiation scope.
type pairKey struct {
	listingID string
	buyerID   string
}

// NegotiationStore is a thread-safe in-memory store for negotiations,
// with a primary index by negotiation_id and a secondary index tracking
// the active negotiation per (listing, buyer) pair. Terminal
// negotiations stay in the primary index but vacate the pair index, so
// a rejected negotiation can only be followed by a fresh one.
type NegotiationStore struct {
	mu           sync.RWMutex
	negotiations map[string]*domain.Negotiation
	activeByPair map[pairKey]*domain.Negotiation
}

// NewNegotiationStore creates an empty NegotiationStore.
func NewNegotiationStore() *NegotiationStore {
	return &NegotiationStore{
		negotiations: make(map[string]*domain.Negotiation),
		activeByPair: make(map[pairKey]*domain.Negotiation),
	}
}

// Create adds a negotiation and indexes it as the pair's active one.
func (s *NegotiationStore) Create(n *domain.Negotiation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.negotiations[n.NegotiationID] = n
	s.activeByPair[pairKey{n.ListingID, n.BuyerID}] = n
}

// Get retrieves a negotiation by ID. It returns
// domain.ErrNegotiationNotFound if the negotiation does not exist.
func (s *NegotiationStore) Get(id string) (*domain.Negotiation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.negotiations[id]
	if !ok {
		return nil, domain.ErrNegotiationNotFound
	}
	return n, nil
}

// GetActiveByPair returns the active negotiation for a (listing, buyer)
// pair, or (nil, false) if none exists. A negotiation is active exactly
// while it remains in the pair index.
func (s *NegotiationStore) GetActiveByPair(listingID, buyerID string) (*domain.Negotiation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.activeByPair[pairKey{listingID, buyerID}]
	if !ok {
		return nil, false
	}
	return n, true
}

// ClearActive drops the pair index entry if it points at the given
// negotiation. Called after a negotiation reaches a terminal status.
func (s *NegotiationStore) ClearActive(listingID, buyerID, negotiationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{listingID, buyerID}
	if n, ok := s.activeByPair[key]; ok && n.NegotiationID == negotiationID {
		delete(s.activeByPair, key)
	}
}
