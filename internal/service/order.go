package service

import (
	"time"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/store"
)

// OrderService owns the delivery lifecycle of orders after creation:
// forward status transitions, cancellation with quantity restoration,
// and read access for the two parties.
type OrderService struct {
	orders   *store.OrderStore
	listings *store.ListingStore
	notify   *NotificationService
}

// NewOrderService creates a new OrderService.
func NewOrderService(orders *store.OrderStore, listings *store.ListingStore, notify *NotificationService) *OrderService {
	return &OrderService{
		orders:   orders,
		listings: listings,
		notify:   notify,
	}
}

// Advance moves an order one step along the forward path
// placed → confirmed → shipped → delivered and appends the timeline
// entry. Confirmation and shipping are farmer actions; delivery may be
// recorded by either party. Cancellation goes through Cancel, never
// through Advance.
func (s *OrderService) Advance(orderID, callerID string, role domain.Role, newStatus domain.OrderStatus, note string) (*domain.Order, error) {
	if !domain.ValidOrderStatus(newStatus) {
		return nil, &domain.ValidationError{Message: "unknown order status: " + string(newStatus)}
	}
	if newStatus == domain.OrderStatusCancelled {
		return nil, &domain.ValidationError{Message: "cancellation must use the cancel operation"}
	}
	if newStatus == domain.OrderStatusPlaced {
		return nil, domain.ErrInvalidTransition
	}

	o, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if callerID != o.BuyerID && callerID != o.FarmerID {
		return nil, domain.ErrNotAllowed
	}

	// Confirmed and shipped are the farmer's transitions.
	if (newStatus == domain.OrderStatusConfirmed || newStatus == domain.OrderStatusShipped) && callerID != o.FarmerID {
		return nil, domain.ErrNotAllowed
	}

	o.Mu.Lock()
	if !domain.CanTransition(o.Status, newStatus) {
		o.Mu.Unlock()
		return nil, domain.ErrInvalidTransition
	}
	o.Status = newStatus
	o.Timeline = append(o.Timeline, domain.TimelineEntry{
		Status:    newStatus,
		Timestamp: s.nextTimestamp(o),
		Note:      note,
	})
	o.Mu.Unlock()

	s.notify.DispatchOrderUpdated(o, note)
	return o, nil
}

// Cancel terminates an order before shipment and restores the reserved
// quantity to the listing. Legal only from placed or confirmed.
func (s *OrderService) Cancel(orderID, callerID string, role domain.Role, note string) (*domain.Order, error) {
	o, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if callerID != o.BuyerID && callerID != o.FarmerID {
		return nil, domain.ErrNotAllowed
	}

	o.Mu.Lock()
	if !domain.CanTransition(o.Status, domain.OrderStatusCancelled) {
		o.Mu.Unlock()
		return nil, domain.ErrInvalidTransition
	}
	o.Status = domain.OrderStatusCancelled
	o.Timeline = append(o.Timeline, domain.TimelineEntry{
		Status:    domain.OrderStatusCancelled,
		Timestamp: s.nextTimestamp(o),
		Note:      note,
	})
	o.Mu.Unlock()

	s.listings.Release(o.ListingID, o.Quantity)

	s.notify.DispatchOrderUpdated(o, note)
	return o, nil
}

// Get retrieves an order; only its two parties may read it.
func (s *OrderService) Get(orderID, callerID string) (*domain.Order, error) {
	o, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if callerID != o.BuyerID && callerID != o.FarmerID {
		return nil, domain.ErrNotAllowed
	}
	return o, nil
}

// List returns a paginated list of the caller's orders, newest first,
// with optional status filtering.
func (s *OrderService) List(callerID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if status != nil && !domain.ValidOrderStatus(*status) {
		return nil, 0, &domain.ValidationError{Message: "unknown order status: " + string(*status)}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	orders, total := s.orders.ListByUser(callerID, status, page, limit)
	return orders, total, nil
}

// nextTimestamp returns a timestamp strictly after the last timeline
// entry, so the timeline stays strictly increasing even when two
// transitions land within clock resolution. Caller holds o.Mu.
func (s *OrderService) nextTimestamp(o *domain.Order) time.Time {
	now := time.Now()
	if last := o.Timeline[len(o.Timeline)-1].Timestamp; !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	return now
}
