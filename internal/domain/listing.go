package domain

import (
	"sync"
	"time"
)

// Role identifies which side of a trade a caller is on.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
)

// Counterpart returns the opposite role.
func (r Role) Counterpart() Role {
	if r == RoleFarmer {
		return RoleBuyer
	}
	return RoleFarmer
}

// Listing is a farmer's published quantity of a crop at a given price.
// The engine treats the catalog fields as read-only; only the remaining
// quantity counter mutates, under the listing's own lock.
type Listing struct {
	ListingID          string
	FarmerID           string
	Crop               string
	QualityGrade       string
	UnitPrice          int64 // paise per kg
	Quantity           int64 // kg originally published
	RemainingQuantity  int64 // kg not yet consumed by orders
	AuctionEnabled     bool
	NegotiationEnabled bool
	CreatedAt          time.Time
	Mu                 sync.Mutex // guards RemainingQuantity
}

// AvailableQuantity returns the quantity not yet consumed by orders.
// Callers that need a consistent read-modify-write must hold Mu instead.
func (l *Listing) AvailableQuantity() int64 {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.RemainingQuantity
}
