package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/service"
)

// NotificationHandler handles HTTP requests for notification
// subscription endpoints.
type NotificationHandler struct {
	notifySvc *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifySvc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifySvc: notifySvc}
}

// upsertSubscriptionRequest is the JSON request body for PUT /subscriptions.
type upsertSubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// subscriptionResponse is a single subscription in JSON form.
type subscriptionResponse struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	Event          string `json:"event"`
	URL            string `json:"url"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// subscriptionListResponse is the JSON response for PUT and GET
// /subscriptions.
type subscriptionListResponse struct {
	Subscriptions []subscriptionResponse `json:"subscriptions"`
}

// Upsert handles PUT /subscriptions.
func (h *NotificationHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertSubscriptionRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id := callerIdentity(r)
	subs, anyCreated, err := h.notifySvc.Upsert(service.UpsertSubscriptionRequest{
		UserID: id.UserID,
		URL:    req.URL,
		Events: req.Events,
	})
	if err != nil {
		mapNotificationError(w, err)
		return
	}

	status := http.StatusOK
	if anyCreated {
		status = http.StatusCreated
	}

	WriteJSON(w, status, subscriptionListResponse{
		Subscriptions: buildSubscriptionResponses(subs),
	})
}

// List handles GET /subscriptions.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	WriteJSON(w, http.StatusOK, subscriptionListResponse{
		Subscriptions: buildSubscriptionResponses(h.notifySvc.List(id.UserID)),
	})
}

// Delete handles DELETE /subscriptions/{subscription_id}.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	if err := h.notifySvc.Delete(chi.URLParam(r, "subscription_id"), id.UserID); err != nil {
		mapNotificationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// buildSubscriptionResponses converts domain subscriptions to response
// subscriptions.
func buildSubscriptionResponses(subs []*domain.Subscription) []subscriptionResponse {
	result := make([]subscriptionResponse, len(subs))
	for i, sub := range subs {
		result[i] = subscriptionResponse{
			SubscriptionID: sub.SubscriptionID,
			UserID:         sub.UserID,
			Event:          sub.Event,
			URL:            sub.URL,
			CreatedAt:      sub.CreatedAt.UTC().Format(timeFormat),
			UpdatedAt:      sub.UpdatedAt.UTC().Format(timeFormat),
		}
	}
	return result
}

// mapNotificationError maps domain errors to HTTP responses for
// subscription endpoints.
func mapNotificationError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		WriteError(w, http.StatusNotFound, "subscription_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
