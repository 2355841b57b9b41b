package domain

import "time"

// Subscription represents a user's registration for an event
// notification, delivered over the external notification transport.
type Subscription struct {
	SubscriptionID string
	UserID         string
	Event          string
	URL            string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
