package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/service"
)

// NegotiationHandler handles HTTP requests for negotiation endpoints.
type NegotiationHandler struct {
	coord *service.TradeCoordinator
}

// NewNegotiationHandler creates a new NegotiationHandler.
func NewNegotiationHandler(coord *service.TradeCoordinator) *NegotiationHandler {
	return &NegotiationHandler{coord: coord}
}

// offerRequest is the JSON request body for proposals and counters.
type offerRequest struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// acceptRequest is the JSON request body for POST /negotiations/{negotiation_id}/accept.
type acceptRequest struct {
	DeliveryAddress string `json:"delivery_address"`
}

// textMessageRequest is the JSON request body for POST /negotiations/{negotiation_id}/messages.
type textMessageRequest struct {
	Body string `json:"body"`
}

// messageResponse is a single transcript message in JSON form. body is
// present for text messages; price and quantity for proposals and
// counters.
type messageResponse struct {
	MessageID string   `json:"message_id"`
	Sender    string   `json:"sender"`
	Kind      string   `json:"kind"`
	Body      string   `json:"body,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Quantity  *int64   `json:"quantity,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// offerResponse is the pending offer in JSON form.
type offerResponse struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Holder   string  `json:"holder"`
}

// negotiationResponse is a negotiation in JSON form, including its full
// transcript. current_offer is null when no offer is pending.
type negotiationResponse struct {
	NegotiationID string            `json:"negotiation_id"`
	ListingID     string            `json:"listing_id"`
	BuyerID       string            `json:"buyer_id"`
	FarmerID      string            `json:"farmer_id"`
	Status        string            `json:"status"`
	CurrentOffer  *offerResponse    `json:"current_offer"`
	Messages      []messageResponse `json:"messages"`
	CreatedAt     string            `json:"created_at"`
}

// negotiationOrderResponse is the accept response: the closed
// negotiation plus the order it produced.
type negotiationOrderResponse struct {
	Negotiation negotiationResponse `json:"negotiation"`
	Order       orderResponse       `json:"order"`
}

// Open handles POST /listings/{listing_id}/negotiations.
func (h *NegotiationHandler) Open(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	n, err := h.coord.OpenNegotiation(chi.URLParam(r, "listing_id"), id.UserID, id.Role)
	if err != nil {
		mapNegotiationError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildNegotiationResponse(n))
}

// Get handles GET /negotiations/{negotiation_id}.
func (h *NegotiationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	n, err := h.coord.GetNegotiation(chi.URLParam(r, "negotiation_id"), id.UserID)
	if err != nil {
		mapNegotiationError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildNegotiationResponse(n))
}

// Propose handles POST /negotiations/{negotiation_id}/offers.
func (h *NegotiationHandler) Propose(w http.ResponseWriter, r *http.Request) {
	h.submitOffer(w, r, h.coord.Propose)
}

// Counter handles POST /negotiations/{negotiation_id}/counter-offers.
func (h *NegotiationHandler) Counter(w http.ResponseWriter, r *http.Request) {
	h.submitOffer(w, r, h.coord.Counter)
}

func (h *NegotiationHandler) submitOffer(
	w http.ResponseWriter,
	r *http.Request,
	submit func(negotiationID, callerID string, role domain.Role, price, quantity int64) (*domain.Negotiation, error),
) {
	var req offerRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	price, err := domain.RupeesToPaise(req.Price)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "price: "+err.Error())
		return
	}

	id := callerIdentity(r)
	n, err := submit(chi.URLParam(r, "negotiation_id"), id.UserID, id.Role, price, req.Quantity)
	if err != nil {
		mapNegotiationError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildNegotiationResponse(n))
}

// Accept handles POST /negotiations/{negotiation_id}/accept.
func (h *NegotiationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id := callerIdentity(r)
	n, order, err := h.coord.Accept(chi.URLParam(r, "negotiation_id"), id.UserID, id.Role, req.DeliveryAddress)
	if err != nil {
		mapNegotiationError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, negotiationOrderResponse{
		Negotiation: buildNegotiationResponse(n),
		Order:       buildOrderResponse(order),
	})
}

// Reject handles POST /negotiations/{negotiation_id}/reject.
func (h *NegotiationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	n, err := h.coord.Reject(chi.URLParam(r, "negotiation_id"), id.UserID, id.Role)
	if err != nil {
		mapNegotiationError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildNegotiationResponse(n))
}

// SendText handles POST /negotiations/{negotiation_id}/messages.
func (h *NegotiationHandler) SendText(w http.ResponseWriter, r *http.Request) {
	var req textMessageRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id := callerIdentity(r)
	n, err := h.coord.SendText(chi.URLParam(r, "negotiation_id"), id.UserID, id.Role, req.Body)
	if err != nil {
		mapNegotiationError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildNegotiationResponse(n))
}

// buildNegotiationResponse converts a domain negotiation to its JSON
// form. Reads the transcript and offer under the negotiation lock.
func buildNegotiationResponse(n *domain.Negotiation) negotiationResponse {
	n.Mu.Lock()
	defer n.Mu.Unlock()

	messages := make([]messageResponse, len(n.Messages))
	for i, m := range n.Messages {
		msg := messageResponse{
			MessageID: m.MessageID,
			Sender:    string(m.Sender),
			Kind:      string(m.Kind),
			Body:      m.Body,
			Timestamp: m.Timestamp.UTC().Format(timeFormat),
		}
		if m.Kind == domain.MessageKindProposal || m.Kind == domain.MessageKindCounter {
			price := domain.PaiseToRupees(m.Price)
			quantity := m.Quantity
			msg.Price = &price
			msg.Quantity = &quantity
		}
		messages[i] = msg
	}

	var current *offerResponse
	if n.CurrentOffer != nil {
		current = &offerResponse{
			Price:    domain.PaiseToRupees(n.CurrentOffer.Price),
			Quantity: n.CurrentOffer.Quantity,
			Holder:   string(n.CurrentOffer.Holder),
		}
	}

	return negotiationResponse{
		NegotiationID: n.NegotiationID,
		ListingID:     n.ListingID,
		BuyerID:       n.BuyerID,
		FarmerID:      n.FarmerID,
		Status:        string(n.Status),
		CurrentOffer:  current,
		Messages:      messages,
		CreatedAt:     n.CreatedAt.UTC().Format(timeFormat),
	}
}

// mapNegotiationError maps domain errors to HTTP responses for
// negotiation endpoints.
func mapNegotiationError(w http.ResponseWriter, err error) {
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
	case errors.Is(err, domain.ErrNegotiationNotFound):
		WriteError(w, http.StatusNotFound, "negotiation_not_found", err.Error())
	case errors.Is(err, domain.ErrOfferAlreadyPending):
		WriteError(w, http.StatusConflict, "offer_already_pending", err.Error())
	case errors.Is(err, domain.ErrNotYourTurn):
		WriteError(w, http.StatusConflict, "not_your_turn", err.Error())
	case errors.Is(err, domain.ErrNoCurrentOffer):
		WriteError(w, http.StatusConflict, "no_current_offer", err.Error())
	case errors.Is(err, domain.ErrNegotiationClosed):
		WriteError(w, http.StatusConflict, "negotiation_closed", err.Error())
	case errors.Is(err, domain.ErrInsufficientQuantity):
		WriteError(w, http.StatusConflict, "insufficient_quantity", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
