package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/store"
)

func newNotifySvc() *NotificationService {
	return NewNotificationService(store.NewSubscriptionStore(), time.Second)
}

func TestSubscriptionUpsert_Validation(t *testing.T) {
	svc := newNotifySvc()

	tests := []struct {
		name string
		req  UpsertSubscriptionRequest
	}{
		{"missing url", UpsertSubscriptionRequest{UserID: "buyer-1", Events: []string{"bid.outbid"}}},
		{"http scheme", UpsertSubscriptionRequest{UserID: "buyer-1", URL: "http://example.com/hook", Events: []string{"bid.outbid"}}},
		{"not a url", UpsertSubscriptionRequest{UserID: "buyer-1", URL: "not a url", Events: []string{"bid.outbid"}}},
		{"url too long", UpsertSubscriptionRequest{UserID: "buyer-1", URL: "https://example.com/" + strings.Repeat("a", 2048), Events: []string{"bid.outbid"}}},
		{"no events", UpsertSubscriptionRequest{UserID: "buyer-1", URL: "https://example.com/hook"}},
		{"unknown event", UpsertSubscriptionRequest{UserID: "buyer-1", URL: "https://example.com/hook", Events: []string{"bid.sideways"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Upsert(tt.req)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSubscriptionUpsert_CreateThenUpdate(t *testing.T) {
	svc := newNotifySvc()

	subs, created, err := svc.Upsert(UpsertSubscriptionRequest{
		UserID: "buyer-1",
		URL:    "https://example.com/hook",
		Events: []string{"bid.outbid", "auction.won", "bid.outbid"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !created {
		t.Fatal("first upsert should create")
	}
	if len(subs) != 2 {
		t.Fatalf("duplicate events must collapse, got %d subscriptions", len(subs))
	}
	firstID := subs[0].SubscriptionID

	subs, created, err = svc.Upsert(UpsertSubscriptionRequest{
		UserID: "buyer-1",
		URL:    "https://example.com/hook2",
		Events: []string{"bid.outbid"},
	})
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if created {
		t.Fatal("re-registering an event should update, not create")
	}
	if subs[0].SubscriptionID != firstID {
		t.Fatalf("subscription id changed on update: %s != %s", subs[0].SubscriptionID, firstID)
	}
	if subs[0].URL != "https://example.com/hook2" {
		t.Fatalf("url not updated: %s", subs[0].URL)
	}

	if got := len(svc.List("buyer-1")); got != 2 {
		t.Fatalf("List = %d subscriptions, want 2", got)
	}
}

func TestSubscriptionDelete_Ownership(t *testing.T) {
	svc := newNotifySvc()

	subs, _, err := svc.Upsert(UpsertSubscriptionRequest{
		UserID: "buyer-1",
		URL:    "https://example.com/hook",
		Events: []string{"order.updated"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	id := subs[0].SubscriptionID

	// Another user cannot see or delete it.
	if err := svc.Delete(id, "buyer-2"); err != domain.ErrSubscriptionNotFound {
		t.Fatalf("foreign delete: expected ErrSubscriptionNotFound, got %v", err)
	}
	if err := svc.Delete(id, "buyer-1"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := svc.Delete(id, "buyer-1"); err != domain.ErrSubscriptionNotFound {
		t.Fatalf("double delete: expected ErrSubscriptionNotFound, got %v", err)
	}
	if got := len(svc.List("buyer-1")); got != 0 {
		t.Fatalf("List after delete = %d, want 0", got)
	}
}
