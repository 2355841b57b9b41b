package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// advanceOrderRequest is the JSON request body for
// POST /orders/{order_id}/status.
type advanceOrderRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// timelineEntryResponse is a single timeline entry in JSON form.
type timelineEntryResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Note      string `json:"note,omitempty"`
}

// orderResponse is an order in JSON form. Prices are rupees; the total
// is the amount frozen at creation.
type orderResponse struct {
	OrderID         string                  `json:"order_id"`
	Protocol        string                  `json:"protocol"`
	ListingID       string                  `json:"listing_id"`
	BuyerID         string                  `json:"buyer_id"`
	FarmerID        string                  `json:"farmer_id"`
	Quantity        int64                   `json:"quantity"`
	UnitPrice       float64                 `json:"unit_price"`
	TotalAmount     float64                 `json:"total_amount"`
	Status          string                  `json:"status"`
	Timeline        []timelineEntryResponse `json:"timeline"`
	DeliveryAddress string                  `json:"delivery_address,omitempty"`
	CreatedAt       string                  `json:"created_at"`
}

// orderListResponse is the JSON response for GET /orders.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
	Total  int             `json:"total"`
}

// Get handles GET /orders/{order_id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	order, err := h.orderSvc.Get(chi.URLParam(r, "order_id"), id.UserID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// List handles GET /orders. Supports status, page, and limit query
// parameters; defaults to the first 20, newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := 20
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be an integer")
			return
		}
		page = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
			return
		}
		limit = n
	}

	var status *domain.OrderStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := domain.OrderStatus(v)
		status = &s
	}

	id := callerIdentity(r)
	orders, total, err := h.orderSvc.List(id.UserID, status, page, limit)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	resp := orderListResponse{
		Orders: make([]orderResponse, len(orders)),
		Page:   page,
		Limit:  limit,
		Total:  total,
	}
	for i, o := range orders {
		resp.Orders[i] = buildOrderResponse(o)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Advance handles POST /orders/{order_id}/status.
func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req advanceOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id := callerIdentity(r)
	order, err := h.orderSvc.Advance(chi.URLParam(r, "order_id"), id.UserID, id.Role, domain.OrderStatus(req.Status), req.Note)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// Cancel handles DELETE /orders/{order_id}. An optional note query
// parameter is recorded on the timeline entry.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	order, err := h.orderSvc.Cancel(chi.URLParam(r, "order_id"), id.UserID, id.Role, r.URL.Query().Get("note"))
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// buildOrderResponse converts a domain order to its JSON form. Reads
// the status and timeline under the order lock.
func buildOrderResponse(o *domain.Order) orderResponse {
	o.Mu.Lock()
	status := o.Status
	timeline := make([]timelineEntryResponse, len(o.Timeline))
	for i, entry := range o.Timeline {
		timeline[i] = timelineEntryResponse{
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp.UTC().Format(timeFormat),
			Note:      entry.Note,
		}
	}
	o.Mu.Unlock()

	return orderResponse{
		OrderID:         o.OrderID,
		Protocol:        string(o.Protocol),
		ListingID:       o.ListingID,
		BuyerID:         o.BuyerID,
		FarmerID:        o.FarmerID,
		Quantity:        o.Quantity,
		UnitPrice:       domain.PaiseToRupees(o.UnitPrice),
		TotalAmount:     domain.PaiseToRupees(o.TotalAmount),
		Status:          string(status),
		Timeline:        timeline,
		DeliveryAddress: o.DeliveryAddress,
		CreatedAt:       o.CreatedAt.UTC().Format(timeFormat),
	}
}

// mapOrderError maps domain errors to HTTP responses for order
// endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotAllowed):
		WriteError(w, http.StatusForbidden, "not_allowed", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
