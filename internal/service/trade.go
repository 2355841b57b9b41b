package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/engine"
	"github.com/farmlink/agritrade/internal/store"
)

// TradeCoordinator is the top-level façade of the trade engine. It
// routes every incoming action to the auction book, the negotiation
// desk, or the direct buy-now path, and it is the sole writer of
// orders: the protocol engines request order creation through it and
// never construct orders themselves.
type TradeCoordinator struct {
	listings     *store.ListingStore
	auctions     *store.AuctionStore
	negotiations *store.NegotiationStore
	orders       *store.OrderStore
	book         *engine.AuctionBook
	desk         *engine.NegotiationDesk
	expiry       *engine.ExpiryManager
	notify       *NotificationService
	logger       *slog.Logger
}

// NewTradeCoordinator wires a coordinator over the given stores and
// engines. It owns its own expiry scheduler; call StartScheduler to
// begin closing due auctions.
func NewTradeCoordinator(
	listings *store.ListingStore,
	auctions *store.AuctionStore,
	negotiations *store.NegotiationStore,
	orders *store.OrderStore,
	book *engine.AuctionBook,
	desk *engine.NegotiationDesk,
	notify *NotificationService,
	expiryInterval time.Duration,
	logger *slog.Logger,
) *TradeCoordinator {
	c := &TradeCoordinator{
		listings:     listings,
		auctions:     auctions,
		negotiations: negotiations,
		orders:       orders,
		book:         book,
		desk:         desk,
		notify:       notify,
		logger:       logger,
	}
	c.expiry = engine.NewExpiryManager(expiryInterval, c, logger)
	return c
}

// StartScheduler launches the auction-expiry goroutine. It stops when
// ctx is cancelled.
func (c *TradeCoordinator) StartScheduler(ctx context.Context) {
	c.expiry.Start(ctx)
}

// CreateListingRequest represents the input for publishing a listing.
type CreateListingRequest struct {
	FarmerID           string
	Role               domain.Role
	Crop               string
	QualityGrade       string
	UnitPrice          int64 // paise per kg
	Quantity           int64 // kg
	AuctionEnabled     bool
	NegotiationEnabled bool
}

// CreateListing publishes a farmer's listing into the registry.
func (c *TradeCoordinator) CreateListing(req CreateListingRequest) (*domain.Listing, error) {
	if req.Role != domain.RoleFarmer {
		return nil, domain.ErrNotAllowed
	}
	if req.Crop == "" {
		return nil, &domain.ValidationError{Message: "crop is required"}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	if req.UnitPrice <= 0 {
		return nil, &domain.ValidationError{Message: "unit_price must be greater than 0"}
	}

	l := &domain.Listing{
		ListingID:          domain.NewID("lst"),
		FarmerID:           req.FarmerID,
		Crop:               req.Crop,
		QualityGrade:       req.QualityGrade,
		UnitPrice:          req.UnitPrice,
		Quantity:           req.Quantity,
		RemainingQuantity:  req.Quantity,
		AuctionEnabled:     req.AuctionEnabled,
		NegotiationEnabled: req.NegotiationEnabled,
		CreatedAt:          time.Now(),
	}
	c.listings.Create(l)
	return l, nil
}

// GetListing retrieves a listing by ID.
func (c *TradeCoordinator) GetListing(listingID string) (*domain.Listing, error) {
	return c.listings.Get(listingID)
}

// OpenAuction starts a timed auction on the caller's listing and
// schedules its close at ends_at.
func (c *TradeCoordinator) OpenAuction(listingID, callerID string, role domain.Role, startingPrice int64, endsAt time.Time) (*domain.Auction, error) {
	if role != domain.RoleFarmer {
		return nil, domain.ErrNotAllowed
	}
	if startingPrice <= 0 {
		return nil, &domain.ValidationError{Message: "starting_price must be greater than 0"}
	}

	listing, err := c.listings.Get(listingID)
	if err != nil {
		return nil, err
	}
	if listing.FarmerID != callerID {
		return nil, domain.ErrNotAllowed
	}

	a, err := c.book.Open(listing, startingPrice, endsAt)
	if err != nil {
		return nil, err
	}
	c.expiry.Add(a)
	return a, nil
}

// PlaceBid routes a buyer's bid to the auction book. A farmer cannot
// bid, and the auction's owner cannot bid on their own listing.
func (c *TradeCoordinator) PlaceBid(auctionID, callerID string, role domain.Role, amount int64) (*domain.Bid, error) {
	if role != domain.RoleBuyer {
		return nil, domain.ErrNotAllowed
	}
	if amount <= 0 {
		return nil, &domain.ValidationError{Message: "amount must be greater than 0"}
	}

	a, err := c.auctions.Get(auctionID)
	if err != nil {
		return nil, err
	}
	if a.FarmerID == callerID {
		return nil, domain.ErrNotAllowed
	}

	return c.book.PlaceBid(auctionID, callerID, amount)
}

// CancelAuction lets the owning farmer end an auction early without
// producing an order, and drops its scheduled close.
func (c *TradeCoordinator) CancelAuction(auctionID, callerID string, role domain.Role) (*domain.Auction, error) {
	if role != domain.RoleFarmer {
		return nil, domain.ErrNotAllowed
	}

	a, err := c.book.Cancel(auctionID, callerID)
	if err != nil {
		return nil, err
	}
	c.expiry.Remove(auctionID)
	return a, nil
}

// CloseDueAuction executes the timer-driven close of an auction at its
// end time. With at least one bid it creates the order for the highest
// bidder at the winning amount over the listing's remaining quantity;
// with zero bids the auction simply ends. Implements
// engine.AuctionCloser; retried by the scheduler until it succeeds.
func (c *TradeCoordinator) CloseDueAuction(auctionID string) error {
	var order *domain.Order

	a, winner, err := c.book.Close(auctionID, func(a *domain.Auction, winner *domain.Bid) error {
		if winner == nil {
			return nil
		}
		listing, err := c.listings.Get(a.ListingID)
		if err != nil {
			return err
		}
		qty := listing.AvailableQuantity()
		if qty == 0 {
			// Fully consumed by other protocols; end without an order.
			return nil
		}
		order, err = c.createOrder(domain.ProtocolAuction, listing, winner.BidderID, qty, winner.Amount, "")
		return err
	})
	if err != nil {
		return err
	}

	if winner != nil {
		orderID := ""
		if order != nil {
			orderID = order.OrderID
		}
		c.notify.DispatchAuctionWon(a, winner, orderID)
		c.notify.DispatchAuctionEnded(a, winner, orderID)
	} else {
		c.notify.DispatchAuctionEnded(a, nil, "")
	}
	return nil
}

// GetAuction retrieves an auction by ID.
func (c *TradeCoordinator) GetAuction(auctionID string) (*domain.Auction, error) {
	return c.auctions.Get(auctionID)
}

// BuyNow closes a trade instantly at the listing price.
func (c *TradeCoordinator) BuyNow(listingID, callerID string, role domain.Role, quantity int64, deliveryAddress string) (*domain.Order, error) {
	if role != domain.RoleBuyer {
		return nil, domain.ErrNotAllowed
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	listing, err := c.listings.Get(listingID)
	if err != nil {
		return nil, err
	}
	if listing.FarmerID == callerID {
		return nil, domain.ErrNotAllowed
	}

	return c.createOrder(domain.ProtocolBuyNow, listing, callerID, quantity, listing.UnitPrice, deliveryAddress)
}

// OpenNegotiation returns the caller's active negotiation on a listing,
// creating one if none exists. Idempotent per (listing, buyer) pair.
func (c *TradeCoordinator) OpenNegotiation(listingID, callerID string, role domain.Role) (*domain.Negotiation, error) {
	if role != domain.RoleBuyer {
		return nil, domain.ErrNotAllowed
	}

	listing, err := c.listings.Get(listingID)
	if err != nil {
		return nil, err
	}
	if listing.FarmerID == callerID {
		return nil, domain.ErrNotAllowed
	}

	return c.desk.Open(listing, callerID)
}

// senderRole resolves the caller's role inside a negotiation and
// rejects non-participants and role mismatches.
func (c *TradeCoordinator) senderRole(negotiationID, callerID string, role domain.Role) (*domain.Negotiation, domain.Role, error) {
	n, err := c.negotiations.Get(negotiationID)
	if err != nil {
		return nil, "", err
	}
	sender, ok := n.ParticipantRole(callerID)
	if !ok || sender != role {
		return nil, "", domain.ErrNotAllowed
	}
	return n, sender, nil
}

// Propose submits a new offer into a negotiation and notifies the
// counterparty.
func (c *TradeCoordinator) Propose(negotiationID, callerID string, role domain.Role, price, quantity int64) (*domain.Negotiation, error) {
	if price <= 0 {
		return nil, &domain.ValidationError{Message: "price must be greater than 0"}
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	n, sender, err := c.senderRole(negotiationID, callerID, role)
	if err != nil {
		return nil, err
	}

	n, err = c.desk.Propose(negotiationID, sender, price, quantity)
	if err != nil {
		return nil, err
	}

	c.notify.DispatchOfferEvent(c.counterpartID(n, sender), "offer.received", n, price, quantity)
	return n, nil
}

// Counter replaces the pending offer and notifies the counterparty.
func (c *TradeCoordinator) Counter(negotiationID, callerID string, role domain.Role, price, quantity int64) (*domain.Negotiation, error) {
	if price <= 0 {
		return nil, &domain.ValidationError{Message: "price must be greater than 0"}
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	n, sender, err := c.senderRole(negotiationID, callerID, role)
	if err != nil {
		return nil, err
	}

	n, err = c.desk.Counter(negotiationID, sender, price, quantity)
	if err != nil {
		return nil, err
	}

	c.notify.DispatchOfferEvent(c.counterpartID(n, sender), "offer.received", n, price, quantity)
	return n, nil
}

// Accept closes the negotiation at the pending offer's terms and
// creates the order as one atomic step with the accept transition:
// if the quantity cannot be reserved, the accept does not happen.
func (c *TradeCoordinator) Accept(negotiationID, callerID string, role domain.Role, deliveryAddress string) (*domain.Negotiation, *domain.Order, error) {
	n, sender, err := c.senderRole(negotiationID, callerID, role)
	if err != nil {
		return nil, nil, err
	}

	var order *domain.Order
	n, err = c.desk.Accept(negotiationID, sender, func(n *domain.Negotiation, offer domain.Offer) error {
		listing, err := c.listings.Get(n.ListingID)
		if err != nil {
			return err
		}
		order, err = c.createOrder(domain.ProtocolNegotiation, listing, n.BuyerID, offer.Quantity, offer.Price, deliveryAddress)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	c.notify.DispatchOfferEvent(c.counterpartID(n, sender), "offer.accepted", n, order.UnitPrice, order.Quantity)
	return n, order, nil
}

// Reject closes the negotiation without a trade and notifies the
// counterparty.
func (c *TradeCoordinator) Reject(negotiationID, callerID string, role domain.Role) (*domain.Negotiation, error) {
	n, sender, err := c.senderRole(negotiationID, callerID, role)
	if err != nil {
		return nil, err
	}

	n, err = c.desk.Reject(negotiationID, sender)
	if err != nil {
		return nil, err
	}

	c.notify.DispatchOfferEvent(c.counterpartID(n, sender), "offer.rejected", n, 0, 0)
	return n, nil
}

// SendText appends a chat message to a negotiation.
func (c *TradeCoordinator) SendText(negotiationID, callerID string, role domain.Role, body string) (*domain.Negotiation, error) {
	if body == "" {
		return nil, &domain.ValidationError{Message: "body is required"}
	}

	_, sender, err := c.senderRole(negotiationID, callerID, role)
	if err != nil {
		return nil, err
	}

	return c.desk.SendText(negotiationID, sender, body)
}

// GetNegotiation retrieves a negotiation; only its participants may
// read it.
func (c *TradeCoordinator) GetNegotiation(negotiationID, callerID string) (*domain.Negotiation, error) {
	n, err := c.negotiations.Get(negotiationID)
	if err != nil {
		return nil, err
	}
	if _, ok := n.ParticipantRole(callerID); !ok {
		return nil, domain.ErrNotAllowed
	}
	return n, nil
}

func (c *TradeCoordinator) counterpartID(n *domain.Negotiation, sender domain.Role) string {
	if sender == domain.RoleBuyer {
		return n.FarmerID
	}
	return n.BuyerID
}

// createOrder is the single order-creation path for all three
// protocols. Reserving the listing quantity and recording the order
// happen as one step: a failed reservation creates nothing, and the
// order exists before anyone can observe the decremented quantity
// without it.
func (c *TradeCoordinator) createOrder(protocol domain.TradeProtocol, listing *domain.Listing, buyerID string, quantity, unitPrice int64, deliveryAddress string) (*domain.Order, error) {
	if err := c.listings.Reserve(listing.ListingID, quantity); err != nil {
		return nil, err
	}

	now := time.Now()
	o := &domain.Order{
		OrderID:         domain.NewID("ord"),
		Protocol:        protocol,
		ListingID:       listing.ListingID,
		BuyerID:         buyerID,
		FarmerID:        listing.FarmerID,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		TotalAmount:     quantity * unitPrice,
		Status:          domain.OrderStatusPlaced,
		Timeline: []domain.TimelineEntry{
			{Status: domain.OrderStatusPlaced, Timestamp: now, Note: "order placed via " + string(protocol)},
		},
		DeliveryAddress: deliveryAddress,
		CreatedAt:       now,
	}
	c.orders.Create(o)

	if c.logger != nil {
		c.logger.Info("order created",
			slog.String("order_id", o.OrderID),
			slog.String("protocol", string(protocol)),
			slog.String("listing_id", listing.ListingID),
			slog.Int64("quantity", quantity),
			slog.Int64("unit_price", unitPrice),
		)
	}

	c.notify.DispatchOrderUpdated(o, "order placed")
	return o, nil
}
