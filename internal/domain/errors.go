package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrListingNotFound      = errors.New("listing_not_found")
	ErrAuctionNotFound      = errors.New("auction_not_found")
	ErrNegotiationNotFound  = errors.New("negotiation_not_found")
	ErrOrderNotFound        = errors.New("order_not_found")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrBidTooLow            = errors.New("bid_too_low")
	ErrAuctionExpired       = errors.New("auction_expired")
	ErrAuctionActive        = errors.New("auction_already_active")
	ErrOfferAlreadyPending  = errors.New("offer_already_pending")
	ErrNotYourTurn          = errors.New("not_your_turn")
	ErrNoCurrentOffer       = errors.New("no_current_offer")
	ErrNegotiationClosed    = errors.New("negotiation_closed")
	ErrInsufficientQuantity = errors.New("insufficient_quantity")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrNotAllowed           = errors.New("not_allowed")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
