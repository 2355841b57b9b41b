package store

import (
	"sync"

	"github.com/farmlink/agritrade/internal/domain"
)

// ListingStore is the in-process listing registry: a thread-safe store
// for listings keyed by listing_id, exposing the reserve/release
// capability the trade engine consumes.
type ListingStore struct {
	mu       sync.RWMutex
	listings map[string]*domain.Listing
}

// NewListingStore creates an empty ListingStore.
func NewListingStore() *ListingStore {
	return &ListingStore{
		listings: make(map[string]*domain.Listing),
	}
}

// Create adds a listing to the store.
func (s *ListingStore) Create(l *domain.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ListingID] = l
}

// Get retrieves a listing by ID. It returns
// domain.ErrListingNotFound if the listing does not exist.
func (s *ListingStore) Get(id string) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return l, nil
}

// Reserve decrements the listing's remaining quantity by qty as a single
// atomic step under the listing lock. It returns
// domain.ErrInsufficientQuantity without mutating anything when fewer
// than qty units remain.
func (s *ListingStore) Reserve(id string, qty int64) error {
	l, err := s.Get(id)
	if err != nil {
		return err
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.RemainingQuantity < qty {
		return domain.ErrInsufficientQuantity
	}
	l.RemainingQuantity -= qty
	return nil
}

// Release returns qty units to the listing's remaining quantity,
// capped at the originally published quantity. Unknown listings are a
// no-op: release runs on order cancellation and must not fail.
func (s *ListingStore) Release(id string, qty int64) {
	l, err := s.Get(id)
	if err != nil {
		return
	}

	l.Mu.Lock()
	defer l.Mu.Unlock()

	l.RemainingQuantity += qty
	if l.RemainingQuantity > l.Quantity {
		l.RemainingQuantity = l.Quantity
	}
}
