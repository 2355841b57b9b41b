package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/service"
)

// ListingHandler handles HTTP requests for listing endpoints, including
// the instant buy-now purchase path.
type ListingHandler struct {
	coord *service.TradeCoordinator
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(coord *service.TradeCoordinator) *ListingHandler {
	return &ListingHandler{coord: coord}
}

// createListingRequest is the JSON request body for POST /listings.
type createListingRequest struct {
	Crop               string  `json:"crop"`
	QualityGrade       string  `json:"quality_grade"`
	UnitPrice          float64 `json:"unit_price"`
	Quantity           int64   `json:"quantity"`
	AuctionEnabled     bool    `json:"auction_enabled"`
	NegotiationEnabled bool    `json:"negotiation_enabled"`
}

// listingResponse is a listing in JSON form. Prices are rupees.
type listingResponse struct {
	ListingID          string  `json:"listing_id"`
	FarmerID           string  `json:"farmer_id"`
	Crop               string  `json:"crop"`
	QualityGrade       string  `json:"quality_grade"`
	UnitPrice          float64 `json:"unit_price"`
	Quantity           int64   `json:"quantity"`
	RemainingQuantity  int64   `json:"remaining_quantity"`
	AuctionEnabled     bool    `json:"auction_enabled"`
	NegotiationEnabled bool    `json:"negotiation_enabled"`
	CreatedAt          string  `json:"created_at"`
}

// buyNowRequest is the JSON request body for POST /listings/{listing_id}/buy.
type buyNowRequest struct {
	Quantity        int64  `json:"quantity"`
	DeliveryAddress string `json:"delivery_address"`
}

// Create handles POST /listings.
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	unitPrice, err := domain.RupeesToPaise(req.UnitPrice)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "unit_price: "+err.Error())
		return
	}

	id := callerIdentity(r)
	listing, err := h.coord.CreateListing(service.CreateListingRequest{
		FarmerID:           id.UserID,
		Role:               id.Role,
		Crop:               req.Crop,
		QualityGrade:       req.QualityGrade,
		UnitPrice:          unitPrice,
		Quantity:           req.Quantity,
		AuctionEnabled:     req.AuctionEnabled,
		NegotiationEnabled: req.NegotiationEnabled,
	})
	if err != nil {
		mapListingError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildListingResponse(listing))
}

// Get handles GET /listings/{listing_id}.
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	listing, err := h.coord.GetListing(chi.URLParam(r, "listing_id"))
	if err != nil {
		mapListingError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildListingResponse(listing))
}

// BuyNow handles POST /listings/{listing_id}/buy.
func (h *ListingHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	var req buyNowRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id := callerIdentity(r)
	order, err := h.coord.BuyNow(chi.URLParam(r, "listing_id"), id.UserID, id.Role, req.Quantity, req.DeliveryAddress)
	if err != nil {
		mapListingError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// buildListingResponse converts a domain listing to its JSON form.
func buildListingResponse(l *domain.Listing) listingResponse {
	return listingResponse{
		ListingID:          l.ListingID,
		FarmerID:           l.FarmerID,
		Crop:               l.Crop,
		QualityGrade:       l.QualityGrade,
		UnitPrice:          domain.PaiseToRupees(l.UnitPrice),
		Quantity:           l.Quantity,
		RemainingQuantity:  l.AvailableQuantity(),
		AuctionEnabled:     l.AuctionEnabled,
		NegotiationEnabled: l.NegotiationEnabled,
		CreatedAt:          l.CreatedAt.UTC().Format(timeFormat),
	}
}

// mapListingError maps domain errors to HTTP responses for listing
// endpoints.
func mapListingError(w http.ResponseWriter, err error) {
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
	case errors.Is(err, domain.ErrInsufficientQuantity):
		WriteError(w, http.StatusConflict, "insufficient_quantity", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
