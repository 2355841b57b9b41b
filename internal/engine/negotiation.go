package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/farmlink/agritrade/internal/domain"
	"github.com/farmlink/agritrade/internal/store"
)

// NegotiationDesk owns the offer/counter-offer state machine of every
// negotiation. Turn alternation is the concurrency guard: only the
// counterparty of the current offer's holder may act on it, so
// conflicting concurrent actions from one party are rejected
// deterministically once serialized by the negotiation lock.
type NegotiationDesk struct {
	negotiations *store.NegotiationStore
	openMu       sync.Mutex // serializes Open so a pair never gets two negotiations
}

// NewNegotiationDesk creates a NegotiationDesk over the given store.
func NewNegotiationDesk(negotiations *store.NegotiationStore) *NegotiationDesk {
	return &NegotiationDesk{negotiations: negotiations}
}

// Open returns the active negotiation for (listing, buyer), creating
// one with an initial greeting message if none exists. Idempotent:
// calling it twice before a terminal transition returns the same
// negotiation both times.
func (d *NegotiationDesk) Open(listing *domain.Listing, buyerID string) (*domain.Negotiation, error) {
	if !listing.NegotiationEnabled {
		return nil, &domain.ValidationError{Message: "negotiation is not enabled for this listing"}
	}

	d.openMu.Lock()
	defer d.openMu.Unlock()

	if existing, ok := d.negotiations.GetActiveByPair(listing.ListingID, buyerID); ok {
		return existing, nil
	}

	now := time.Now()
	n := &domain.Negotiation{
		NegotiationID: domain.NewID("neg"),
		ListingID:     listing.ListingID,
		BuyerID:       buyerID,
		FarmerID:      listing.FarmerID,
		Status:        domain.NegotiationStatusActive,
		CreatedAt:     now,
	}
	greeting := fmt.Sprintf("Hello! Feel free to make an offer for my %s.", listing.Crop)
	n.Messages = append(n.Messages, domain.NewTextMessage(n.NegotiationID, domain.RoleFarmer, greeting, 0, now))

	d.negotiations.Create(n)
	return n, nil
}

// Propose submits a new offer. Allowed only when no offer is pending;
// returns ErrOfferAlreadyPending otherwise.
func (d *NegotiationDesk) Propose(negotiationID string, sender domain.Role, price, quantity int64) (*domain.Negotiation, error) {
	n, err := d.negotiations.Get(negotiationID)
	if err != nil {
		return nil, err
	}

	n.Mu.Lock()
	defer n.Mu.Unlock()

	if n.Status != domain.NegotiationStatusActive {
		return nil, domain.ErrNegotiationClosed
	}
	if n.CurrentOffer != nil {
		return nil, domain.ErrOfferAlreadyPending
	}

	n.CurrentOffer = &domain.Offer{Price: price, Quantity: quantity, Holder: sender}
	n.Messages = append(n.Messages, domain.NewOfferMessage(
		n.NegotiationID, sender, domain.MessageKindProposal, price, quantity, len(n.Messages), time.Now()))
	return n, nil
}

// Counter replaces the pending offer with a new one held by the sender.
// Only the counterparty of the current holder may counter; the holder
// of the pending offer gets ErrNotYourTurn.
func (d *NegotiationDesk) Counter(negotiationID string, sender domain.Role, price, quantity int64) (*domain.Negotiation, error) {
	n, err := d.negotiations.Get(negotiationID)
	if err != nil {
		return nil, err
	}

	n.Mu.Lock()
	defer n.Mu.Unlock()

	if n.Status != domain.NegotiationStatusActive {
		return nil, domain.ErrNegotiationClosed
	}
	if n.CurrentOffer == nil {
		return nil, domain.ErrNoCurrentOffer
	}
	if n.CurrentOffer.Holder == sender {
		return nil, domain.ErrNotYourTurn
	}

	n.CurrentOffer = &domain.Offer{Price: price, Quantity: quantity, Holder: sender}
	n.Messages = append(n.Messages, domain.NewOfferMessage(
		n.NegotiationID, sender, domain.MessageKindCounter, price, quantity, len(n.Messages), time.Now()))
	return n, nil
}

// Accept closes the negotiation as accepted at the pending offer's
// terms. Only the counterparty of the offer's holder may accept. The
// commit callback runs under the negotiation lock before the terminal
// transition; a non-nil error from it aborts the accept, leaving the
// negotiation active.
func (d *NegotiationDesk) Accept(negotiationID string, sender domain.Role, commit func(n *domain.Negotiation, offer domain.Offer) error) (*domain.Negotiation, error) {
	n, err := d.negotiations.Get(negotiationID)
	if err != nil {
		return nil, err
	}

	n.Mu.Lock()
	defer n.Mu.Unlock()

	if n.Status != domain.NegotiationStatusActive {
		return nil, domain.ErrNegotiationClosed
	}
	if n.CurrentOffer == nil {
		return nil, domain.ErrNoCurrentOffer
	}
	if n.CurrentOffer.Holder == sender {
		return nil, domain.ErrNotYourTurn
	}

	offer := *n.CurrentOffer
	if commit != nil {
		if err := commit(n, offer); err != nil {
			return nil, err
		}
	}

	n.Status = domain.NegotiationStatusAccepted
	n.Messages = append(n.Messages, domain.NewDecisionMessage(
		n.NegotiationID, sender, domain.MessageKindAccept, len(n.Messages), time.Now()))
	d.negotiations.ClearActive(n.ListingID, n.BuyerID, n.NegotiationID)
	return n, nil
}

// Reject closes the negotiation as rejected and clears the pending
// offer. Either participant may reject while an offer is pending; the
// holder rejecting their own offer amounts to a retraction. A rejected
// negotiation is terminal; further contact needs a new negotiation.
func (d *NegotiationDesk) Reject(negotiationID string, sender domain.Role) (*domain.Negotiation, error) {
	n, err := d.negotiations.Get(negotiationID)
	if err != nil {
		return nil, err
	}

	n.Mu.Lock()
	defer n.Mu.Unlock()

	if n.Status != domain.NegotiationStatusActive {
		return nil, domain.ErrNegotiationClosed
	}
	if n.CurrentOffer == nil {
		return nil, domain.ErrNoCurrentOffer
	}

	n.CurrentOffer = nil
	n.Status = domain.NegotiationStatusRejected
	n.Messages = append(n.Messages, domain.NewDecisionMessage(
		n.NegotiationID, sender, domain.MessageKindReject, len(n.Messages), time.Now()))
	d.negotiations.ClearActive(n.ListingID, n.BuyerID, n.NegotiationID)
	return n, nil
}

// SendText appends a plain text message. Text never touches the
// pending offer and may be sent regardless of whose turn it is.
func (d *NegotiationDesk) SendText(negotiationID string, sender domain.Role, body string) (*domain.Negotiation, error) {
	n, err := d.negotiations.Get(negotiationID)
	if err != nil {
		return nil, err
	}

	n.Mu.Lock()
	defer n.Mu.Unlock()

	if n.Status != domain.NegotiationStatusActive {
		return nil, domain.ErrNegotiationClosed
	}

	n.Messages = append(n.Messages, domain.NewTextMessage(
		n.NegotiationID, sender, body, len(n.Messages), time.Now()))
	return n, nil
}
