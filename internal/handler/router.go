package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmlink/agritrade/internal/service"
)

// NewRouter creates a chi router with all routes registered, request
// logging, Content-Type validation, and identity extraction middleware.
func NewRouter(
	coord *service.TradeCoordinator,
	orderSvc *service.OrderService,
	notifySvc *service.NotificationService,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	listingH := NewListingHandler(coord)
	auctionH := NewAuctionHandler(coord)
	negotiationH := NewNegotiationHandler(coord)
	orderH := NewOrderHandler(orderSvc)
	notificationH := NewNotificationHandler(notifySvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Everything else requires an identity.
	r.Group(func(r chi.Router) {
		r.Use(identityRequired)

		// Listing routes.
		r.Post("/listings", listingH.Create)
		r.Get("/listings/{listing_id}", listingH.Get)
		r.Post("/listings/{listing_id}/buy", listingH.BuyNow)
		r.Post("/listings/{listing_id}/auctions", auctionH.Open)
		r.Post("/listings/{listing_id}/negotiations", negotiationH.Open)

		// Auction routes.
		r.Get("/auctions/{auction_id}", auctionH.Get)
		r.Post("/auctions/{auction_id}/bids", auctionH.PlaceBid)
		r.Delete("/auctions/{auction_id}", auctionH.Cancel)

		// Negotiation routes.
		r.Get("/negotiations/{negotiation_id}", negotiationH.Get)
		r.Post("/negotiations/{negotiation_id}/offers", negotiationH.Propose)
		r.Post("/negotiations/{negotiation_id}/counter-offers", negotiationH.Counter)
		r.Post("/negotiations/{negotiation_id}/accept", negotiationH.Accept)
		r.Post("/negotiations/{negotiation_id}/reject", negotiationH.Reject)
		r.Post("/negotiations/{negotiation_id}/messages", negotiationH.SendText)

		// Order routes.
		r.Get("/orders", orderH.List)
		r.Get("/orders/{order_id}", orderH.Get)
		r.Post("/orders/{order_id}/status", orderH.Advance)
		r.Delete("/orders/{order_id}", orderH.Cancel)

		// Notification subscription routes.
		r.Put("/subscriptions", notificationH.Upsert)
		r.Get("/subscriptions", notificationH.List)
		r.Delete("/subscriptions/{subscription_id}", notificationH.Delete)
	})

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
