package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/store"
)

// Valid notification event types.
var validNotificationEvents = map[string]bool{
	"bid.outbid":     true,
	"auction.won":    true,
	"auction.ended":  true,
	"offer.received": true,
	"offer.accepted": true,
	"offer.rejected": true,
	"order.updated":  true,
}

// UpsertSubscriptionRequest represents the input for subscription registration.
type UpsertSubscriptionRequest struct {
	UserID string
	URL    string
	Events []string
}

// NotificationService handles subscription CRUD and event dispatch over
// the external notification transport. Delivery is fire-and-forget:
// a failed delivery is never a trade-engine failure.
type NotificationService struct {
	store  *store.SubscriptionStore
	client *http.Client
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(subs *store.SubscriptionStore, timeout time.Duration) *NotificationService {
	return &NotificationService{
		store: subs,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Upsert validates the request and creates or updates subscriptions.
// Returns the resulting subscriptions, whether any new ones were created,
// and any error.
func (s *NotificationService) Upsert(req UpsertSubscriptionRequest) ([]*domain.Subscription, bool, error) {
	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	dedupedEvents := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validNotificationEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event,
			}
		}
		if !seen[event] {
			seen[event] = true
			dedupedEvents = append(dedupedEvents, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	subs := make([]*domain.Subscription, 0, len(dedupedEvents))

	for _, event := range dedupedEvents {
		sub := &domain.Subscription{
			SubscriptionID: domain.NewID("sub"),
			UserID:         req.UserID,
			Event:          event,
			URL:            req.URL,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		created := s.store.Upsert(sub)
		if created {
			anyCreated = true
			subs = append(subs, sub)
		} else {
			existing := s.store.GetByUserEvent(req.UserID, event)
			if existing != nil {
				subs = append(subs, existing)
			}
		}
	}

	return subs, anyCreated, nil
}

// List returns all subscriptions for a user.
func (s *NotificationService) List(userID string) []*domain.Subscription {
	return s.store.ListByUser(userID)
}

// Delete removes a subscription by ID. The caller must own it; a
// subscription belonging to someone else reads as not found.
func (s *NotificationService) Delete(subscriptionID, userID string) error {
	for _, sub := range s.store.ListByUser(userID) {
		if sub.SubscriptionID == subscriptionID {
			return s.store.Delete(subscriptionID)
		}
	}
	return domain.ErrSubscriptionNotFound
}

// eventPayload is the JSON envelope for all notification deliveries.
type eventPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

type bidOutbidData struct {
	AuctionID  string  `json:"auction_id"`
	ListingID  string  `json:"listing_id"`
	YourBid    float64 `json:"your_bid"`
	CurrentBid float64 `json:"current_bid"`
}

type auctionClosedData struct {
	AuctionID    string   `json:"auction_id"`
	ListingID    string   `json:"listing_id"`
	WinningBid   *float64 `json:"winning_bid"`
	WinnerUserID string   `json:"winner_user_id,omitempty"`
	OrderID      string   `json:"order_id,omitempty"`
}

type offerEventData struct {
	NegotiationID string  `json:"negotiation_id"`
	ListingID     string  `json:"listing_id"`
	Price         float64 `json:"price,omitempty"`
	Quantity      int64   `json:"quantity,omitempty"`
}

type orderUpdatedData struct {
	OrderID     string  `json:"order_id"`
	ListingID   string  `json:"listing_id"`
	Status      string  `json:"status"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalAmount float64 `json:"total_amount"`
	Note        string  `json:"note,omitempty"`
}

// DispatchBidOutbid notifies the previous highest bidder that they have
// been outbid. Implements engine.BidNotifier.
func (s *NotificationService) DispatchBidOutbid(auctionID, listingID string, outbid *domain.Bid, currentAmount int64) {
	s.dispatch(outbid.BidderID, "bid.outbid", bidOutbidData{
		AuctionID:  auctionID,
		ListingID:  listingID,
		YourBid:    domain.PaiseToRupees(outbid.Amount),
		CurrentBid: domain.PaiseToRupees(currentAmount),
	})
}

// DispatchAuctionWon notifies the winning bidder after a close.
func (s *NotificationService) DispatchAuctionWon(a *domain.Auction, winner *domain.Bid, orderID string) {
	amount := domain.PaiseToRupees(winner.Amount)
	s.dispatch(winner.BidderID, "auction.won", auctionClosedData{
		AuctionID:    a.AuctionID,
		ListingID:    a.ListingID,
		WinningBid:   &amount,
		WinnerUserID: winner.BidderID,
		OrderID:      orderID,
	})
}

// DispatchAuctionEnded notifies the owning farmer after a close,
// with or without a winner.
func (s *NotificationService) DispatchAuctionEnded(a *domain.Auction, winner *domain.Bid, orderID string) {
	data := auctionClosedData{
		AuctionID: a.AuctionID,
		ListingID: a.ListingID,
		OrderID:   orderID,
	}
	if winner != nil {
		amount := domain.PaiseToRupees(winner.Amount)
		data.WinningBid = &amount
		data.WinnerUserID = winner.BidderID
	}
	s.dispatch(a.FarmerID, "auction.ended", data)
}

// DispatchOfferEvent notifies a negotiation participant of an offer
// event: offer.received on propose/counter, offer.accepted and
// offer.rejected on the terminal transitions.
func (s *NotificationService) DispatchOfferEvent(userID, event string, n *domain.Negotiation, price, quantity int64) {
	s.dispatch(userID, event, offerEventData{
		NegotiationID: n.NegotiationID,
		ListingID:     n.ListingID,
		Price:         domain.PaiseToRupees(price),
		Quantity:      quantity,
	})
}

// DispatchOrderUpdated notifies both parties of an order status change,
// including the initial placement.
func (s *NotificationService) DispatchOrderUpdated(o *domain.Order, note string) {
	data := orderUpdatedData{
		OrderID:     o.OrderID,
		ListingID:   o.ListingID,
		Status:      string(o.Status),
		Quantity:    o.Quantity,
		UnitPrice:   domain.PaiseToRupees(o.UnitPrice),
		TotalAmount: domain.PaiseToRupees(o.TotalAmount),
		Note:        note,
	}
	s.dispatch(o.BuyerID, "order.updated", data)
	s.dispatch(o.FarmerID, "order.updated", data)
}

// dispatch looks up the user's subscription for the event and delivers
// the payload asynchronously. No subscription, no delivery.
func (s *NotificationService) dispatch(userID, event string, data any) {
	sub := s.store.GetByUserEvent(userID, event)
	if sub == nil {
		return
	}

	payload := eventPayload{
		Event:     event,
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data:      data,
	}
	go s.deliver(sub, event, payload)
}

// deliver sends the payload via HTTP POST with delivery headers.
// Errors are silently ignored (fire-and-forget).
func (s *NotificationService) deliver(sub *domain.Subscription, eventType string, payload eventPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Subscription-Id", sub.SubscriptionID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
