package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/service"
)

// AuctionHandler handles HTTP requests for auction endpoints.
type AuctionHandler struct {
	coord *service.TradeCoordinator
}

// NewAuctionHandler creates a new AuctionHandler.
func NewAuctionHandler(coord *service.TradeCoordinator) *AuctionHandler {
	return &AuctionHandler{coord: coord}
}

// openAuctionRequest is the JSON request body for
// POST /listings/{listing_id}/auctions.
type openAuctionRequest struct {
	StartingPrice float64 `json:"starting_price"`
	EndsAt        string  `json:"ends_at"`
}

// placeBidRequest is the JSON request body for
// POST /auctions/{auction_id}/bids.
type placeBidRequest struct {
	Amount float64 `json:"amount"`
}

// bidResponse is a single bid in JSON form.
type bidResponse struct {
	BidID     string  `json:"bid_id"`
	AuctionID string  `json:"auction_id"`
	BidderID  string  `json:"bidder_id"`
	Amount    float64 `json:"amount"`
	Timestamp string  `json:"timestamp"`
}

// auctionResponse is an auction in JSON form. current_bid is null until
// the first bid is accepted.
type auctionResponse struct {
	AuctionID     string       `json:"auction_id"`
	ListingID     string       `json:"listing_id"`
	FarmerID      string       `json:"farmer_id"`
	StartingPrice float64      `json:"starting_price"`
	CurrentBid    *bidResponse `json:"current_bid"`
	BidCount      int          `json:"bid_count"`
	StartsAt      string       `json:"starts_at"`
	EndsAt        string       `json:"ends_at"`
	Status        string       `json:"status"`
}

// Open handles POST /listings/{listing_id}/auctions.
func (h *AuctionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAuctionRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	startingPrice, err := domain.RupeesToPaise(req.StartingPrice)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "starting_price: "+err.Error())
		return
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "ends_at must be a valid RFC 3339 timestamp")
		return
	}

	id := callerIdentity(r)
	a, err := h.coord.OpenAuction(chi.URLParam(r, "listing_id"), id.UserID, id.Role, startingPrice, endsAt)
	if err != nil {
		mapAuctionError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildAuctionResponse(a))
}

// Get handles GET /auctions/{auction_id}.
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.coord.GetAuction(chi.URLParam(r, "auction_id"))
	if err != nil {
		mapAuctionError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildAuctionResponse(a))
}

// PlaceBid handles POST /auctions/{auction_id}/bids.
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	amount, err := domain.RupeesToPaise(req.Amount)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "amount: "+err.Error())
		return
	}

	id := callerIdentity(r)
	bid, err := h.coord.PlaceBid(chi.URLParam(r, "auction_id"), id.UserID, id.Role, amount)
	if err != nil {
		mapAuctionError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildBidResponse(bid))
}

// Cancel handles DELETE /auctions/{auction_id}.
func (h *AuctionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	a, err := h.coord.CancelAuction(chi.URLParam(r, "auction_id"), id.UserID, id.Role)
	if err != nil {
		mapAuctionError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildAuctionResponse(a))
}

func buildBidResponse(b *domain.Bid) bidResponse {
	return bidResponse{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    domain.PaiseToRupees(b.Amount),
		Timestamp: b.Timestamp.UTC().Format(timeFormat),
	}
}

// buildAuctionResponse converts a domain auction to its JSON form.
// Reads CurrentBid and the bid count under the auction lock so a
// concurrent bid cannot produce a torn snapshot.
func buildAuctionResponse(a *domain.Auction) auctionResponse {
	a.Mu.Lock()
	var current *bidResponse
	if a.CurrentBid != nil {
		b := buildBidResponse(a.CurrentBid)
		current = &b
	}
	bidCount := len(a.Bids)
	status := a.Status
	a.Mu.Unlock()

	return auctionResponse{
		AuctionID:     a.AuctionID,
		ListingID:     a.ListingID,
		FarmerID:      a.FarmerID,
		StartingPrice: domain.PaiseToRupees(a.StartingPrice),
		CurrentBid:    current,
		BidCount:      bidCount,
		StartsAt:      a.StartsAt.UTC().Format(timeFormat),
		EndsAt:        a.EndsAt.UTC().Format(timeFormat),
		Status:        string(status),
	}
}

// mapAuctionError maps domain errors to HTTP responses for auction
// endpoints.
func mapAuctionError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotAllowed):
		WriteError(w, http.StatusForbidden, "not_allowed", err.Error())
	case errors.Is(err, domain.ErrListingNotFound):
		WriteError(w, http.StatusNotFound, "listing_not_found", err.Error())
	case errors.Is(err, domain.ErrAuctionNotFound):
		WriteError(w, http.StatusNotFound, "auction_not_found", err.Error())
	case errors.Is(err, domain.ErrBidTooLow):
		WriteError(w, http.StatusConflict, "bid_too_low", err.Error())
	case errors.Is(err, domain.ErrAuctionExpired):
		WriteError(w, http.StatusConflict, "auction_expired", err.Error())
	case errors.Is(err, domain.ErrAuctionActive):
		WriteError(w, http.StatusConflict, "auction_active", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
