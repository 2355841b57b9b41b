package domain

import (
	"sync"
	"time"
)

// NegotiationStatus represents the lifecycle state of a negotiation.
type NegotiationStatus string

const (
	NegotiationStatusActive   NegotiationStatus = "active"
	NegotiationStatusAccepted NegotiationStatus = "accepted"
	NegotiationStatusRejected NegotiationStatus = "rejected"
)

// MessageKind is the closed set of message variants in a negotiation.
type MessageKind string

const (
	MessageKindText     MessageKind = "text"
	MessageKindProposal MessageKind = "proposal"
	MessageKindCounter  MessageKind = "counter"
	MessageKindAccept   MessageKind = "accept"
	MessageKindReject   MessageKind = "reject"
)

// Message is one entry in a negotiation's append-only transcript.
// Price and Quantity are only meaningful for proposal and counter
// variants; the constructors below are the only way other packages
// should build messages, so text/accept/reject never carry a payload.
type Message struct {
	MessageID     string
	NegotiationID string
	Sender        Role
	Kind          MessageKind
	Body          string // text variant only
	Price         int64  // paise per kg, proposal|counter only
	Quantity      int64  // kg, proposal|counter only
	Seq           int
	Timestamp     time.Time
}

// NewTextMessage builds a plain text message.
func NewTextMessage(negotiationID string, sender Role, body string, seq int, at time.Time) *Message {
	return &Message{
		MessageID:     NewID("msg"),
		NegotiationID: negotiationID,
		Sender:        sender,
		Kind:          MessageKindText,
		Body:          body,
		Seq:           seq,
		Timestamp:     at,
	}
}

// NewOfferMessage builds a proposal or counter message carrying a
// (price, quantity) payload. Kind must be proposal or counter.
func NewOfferMessage(negotiationID string, sender Role, kind MessageKind, price, quantity int64, seq int, at time.Time) *Message {
	return &Message{
		MessageID:     NewID("msg"),
		NegotiationID: negotiationID,
		Sender:        sender,
		Kind:          kind,
		Price:         price,
		Quantity:      quantity,
		Seq:           seq,
		Timestamp:     at,
	}
}

// NewDecisionMessage builds an accept or reject message.
func NewDecisionMessage(negotiationID string, sender Role, kind MessageKind, seq int, at time.Time) *Message {
	return &Message{
		MessageID:     NewID("msg"),
		NegotiationID: negotiationID,
		Sender:        sender,
		Kind:          kind,
		Seq:           seq,
		Timestamp:     at,
	}
}

// Offer is the currently pending (price, quantity) proposal in a
// negotiation, held by whichever party last proposed or countered.
type Offer struct {
	Price    int64 // paise per kg
	Quantity int64 // kg
	Holder   Role
}

// Negotiation is a turn-based offer/counter-offer protocol between one
// buyer and the farmer on a listing. At most one CurrentOffer exists at
// any time, and only the counterparty of its holder may act on it.
type Negotiation struct {
	NegotiationID string
	ListingID     string
	BuyerID       string
	FarmerID      string
	Messages      []*Message
	CurrentOffer  *Offer // nil when no offer is pending
	Status        NegotiationStatus
	CreatedAt     time.Time
	Mu            sync.Mutex // per-negotiation lock
}

// ParticipantRole maps a user id to its role in this negotiation,
// or ("", false) for non-participants.
func (n *Negotiation) ParticipantRole(userID string) (Role, bool) {
	switch userID {
	case n.BuyerID:
		return RoleBuyer, true
	case n.FarmerID:
		return RoleFarmer, true
	}
	return "", false
}
