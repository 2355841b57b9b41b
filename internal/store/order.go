package store

import (
	"sync"

	"github.com/farmlink/agritrade/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders, with a
// primary index by order_id and secondary indexes by buyer_id and
// farmer_id (both append-only).
type OrderStore struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	byBuyer  map[string][]*domain.Order
	byFarmer map[string][]*domain.Order
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:   make(map[string]*domain.Order),
		byBuyer:  make(map[string][]*domain.Order),
		byFarmer: make(map[string][]*domain.Order),
	}
}

// Create adds an order to the store and appends it to both party indexes.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.OrderID] = o
	s.byBuyer[o.BuyerID] = append(s.byBuyer[o.BuyerID], o)
	s.byFarmer[o.FarmerID] = append(s.byFarmer[o.FarmerID], o)
}

// Get retrieves an order by ID. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListByUser returns orders where the user is buyer or farmer, newest
// first, with optional status filtering. Pagination is 1-based. Returns
// the requested page and the total count of matching orders. A user who
// trades on both sides sees both index slices merged; an order never
// has the same user as buyer and farmer, so the merge cannot duplicate.
func (s *OrderStore) ListByUser(userID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bought := s.byBuyer[userID]
	sold := s.byFarmer[userID]

	// Both index slices are append-only in creation order, so walking
	// them backwards in lockstep yields newest first.
	filtered := make([]*domain.Order, 0, len(bought)+len(sold))
	i, j := len(bought)-1, len(sold)-1
	for i >= 0 || j >= 0 {
		var o *domain.Order
		switch {
		case i < 0:
			o = sold[j]
			j--
		case j < 0:
			o = bought[i]
			i--
		case bought[i].CreatedAt.Before(sold[j].CreatedAt):
			o = sold[j]
			j--
		default:
			o = bought[i]
			i--
		}
		if status != nil && orderStatus(o) != *status {
			continue
		}
		filtered = append(filtered, o)
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total {
		return []*domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}

// orderStatus reads an order's status under its own lock; lifecycle
// transitions write Status while holding it.
func orderStatus(o *domain.Order) domain.OrderStatus {
	o.Mu.Lock()
	defer o.Mu.Unlock()
	return o.Status
}
