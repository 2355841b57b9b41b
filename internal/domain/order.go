package domain

import (
	"sync"
	"time"
)

// TradeProtocol identifies which close protocol produced an order.
type TradeProtocol string

const (
	ProtocolBuyNow      TradeProtocol = "buy-now"
	ProtocolAuction     TradeProtocol = "auction"
	ProtocolNegotiation TradeProtocol = "negotiation"
)

// OrderStatus represents the delivery lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderTransitions is the forward transition graph: a single path
// placed → confirmed → shipped → delivered, with cancelled reachable
// from placed or confirmed only.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// CanTransition reports whether moving from to next is a legal forward
// transition in the order lifecycle graph.
func CanTransition(from, next OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == next {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether s is a known order status value.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := orderTransitions[s]
	return ok
}

// TimelineEntry is one append-only step in an order's delivery timeline.
type TimelineEntry struct {
	Status    OrderStatus
	Timestamp time.Time
	Note      string
}

// Order is the fulfillment record created once any protocol closes
// successfully. TotalAmount is computed once at creation and never
// recomputed; the timeline is append-only and monotonic in timestamp.
type Order struct {
	OrderID         string
	Protocol        TradeProtocol
	ListingID       string
	BuyerID         string
	FarmerID        string
	Quantity        int64 // kg
	UnitPrice       int64 // paise per kg
	TotalAmount     int64 // paise, frozen at creation
	Status          OrderStatus
	Timeline        []TimelineEntry
	DeliveryAddress string // snapshot at creation
	CreatedAt       time.Time
	Mu              sync.Mutex // serializes timeline appends
}
