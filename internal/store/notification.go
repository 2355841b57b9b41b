package store

import (
	"sync"

	"github.com/farmlink/agritrade/internal/domain"
)

// SubscriptionStore is a thread-safe in-memory store for notification
// subscriptions. Primary index: subscription_id → subscription.
// Secondary index: user_id → event → subscription.
type SubscriptionStore struct {
	mu     sync.RWMutex
	subs   map[string]*domain.Subscription
	byUser map[string]map[string]*domain.Subscription
}

// NewSubscriptionStore creates an empty SubscriptionStore.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{
		subs:   make(map[string]*domain.Subscription),
		byUser: make(map[string]map[string]*domain.Subscription),
	}
}

// Upsert inserts or updates a subscription keyed by (user_id, event).
// If one already exists for that pair, the URL and UpdatedAt are updated
// and the subscription_id remains stable. Returns true if a new
// subscription was created.
func (s *SubscriptionStore) Upsert(sub *domain.Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if events, ok := s.byUser[sub.UserID]; ok {
		if existing, ok := events[sub.Event]; ok {
			if existing.URL != sub.URL {
				existing.URL = sub.URL
				existing.UpdatedAt = sub.UpdatedAt
			}
			return false
		}
	}

	s.subs[sub.SubscriptionID] = sub

	if s.byUser[sub.UserID] == nil {
		s.byUser[sub.UserID] = make(map[string]*domain.Subscription)
	}
	s.byUser[sub.UserID][sub.Event] = sub

	return true
}

// GetByUserEvent returns the subscription for a specific user+event
// pair, or nil if no subscription exists.
func (s *SubscriptionStore) GetByUserEvent(userID, event string) *domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byUser[userID]
	if events == nil {
		return nil
	}
	return events[event]
}

// ListByUser returns all subscriptions for a user.
// Returns an empty slice if the user has none.
func (s *SubscriptionStore) ListByUser(userID string) []*domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byUser[userID]
	if len(events) == 0 {
		return []*domain.Subscription{}
	}

	result := make([]*domain.Subscription, 0, len(events))
	for _, sub := range events {
		result = append(result, sub)
	}
	return result
}

// Delete removes a subscription by ID. It returns
// domain.ErrSubscriptionNotFound if the subscription does not exist.
// Both indexes are cleaned up.
func (s *SubscriptionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}

	delete(s.subs, id)

	if events, ok := s.byUser[sub.UserID]; ok {
		delete(events, sub.Event)
		if len(events) == 0 {
			delete(s.byUser, sub.UserID)
		}
	}

	return nil
}
