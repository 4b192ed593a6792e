package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MonetaryPrecision is the number of decimal places kept for bid amounts.
const MonetaryPrecision int32 = 2

type SlotStatus string

const (
	SlotAvailable     SlotStatus = "AVAILABLE"
	SlotAuctionActive SlotStatus = "AUCTION_ACTIVE"
	SlotOccupied      SlotStatus = "OCCUPIED"
	SlotReserved      SlotStatus = "RESERVED"
)

// Slot is one advertising position in the fixed pool. CurrentBidID always
// points at the slot's unique ACTIVE or WON bid, or is empty.
type Slot struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	ReservePrice   decimal.Decimal `json:"reserve_price"`
	CurrentBid     decimal.Decimal `json:"current_bid"`
	CurrentBidder  string          `json:"current_bidder,omitempty"`
	CurrentBidID   string          `json:"current_bid_id,omitempty"`
	CurrentSponsor string          `json:"current_sponsor,omitempty"`
	TotalBids      int             `json:"total_bids"`
	LastBidTime    *time.Time      `json:"last_bid_time,omitempty"`
	Status         SlotStatus      `json:"status"`
	SessionID      string          `json:"session_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// HasCurrentBid reports whether a bid currently leads the slot.
func (s *Slot) HasCurrentBid() bool {
	return s.CurrentBidder != ""
}

// ResetBid clears the current bid fields.
func (s *Slot) ResetBid() {
	s.CurrentBid = decimal.Zero
	s.CurrentBidder = ""
	s.CurrentBidID = ""
}

// LeadWith makes bid the slot's current bid.
func (s *Slot) LeadWith(bid *Bid) {
	s.CurrentBid = bid.Amount
	s.CurrentBidder = bid.CompanyID
	s.CurrentBidID = bid.ID
}

type BidStatus string

const (
	BidActive    BidStatus = "ACTIVE"
	BidOutbid    BidStatus = "OUTBID"
	BidWon       BidStatus = "WON"
	BidWithdrawn BidStatus = "WITHDRAWN"
)

func (s BidStatus) Valid() bool {
	switch s {
	case BidActive, BidOutbid, BidWon, BidWithdrawn:
		return true
	}
	return false
}

type Bid struct {
	ID        string          `json:"id"`
	SlotID    int64           `json:"slot_id"`
	CompanyID string          `json:"company_id"`
	UserID    string          `json:"user_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    BidStatus       `json:"status"`
	SessionID string          `json:"session_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionActive    SessionStatus = "ACTIVE"
	SessionPaused    SessionStatus = "PAUSED"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionActive, SessionPaused, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

type AuctionSession struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	ActualStartTime *time.Time          `json:"actual_start_time,omitempty"`
	ActualEndTime   *time.Time          `json:"actual_end_time,omitempty"`
	Status          SessionStatus       `json:"status"`
	BidIncrement    decimal.Decimal     `json:"bid_increment"`
	ReservePrice    decimal.NullDecimal `json:"reserve_price"`
	AutoExtend      bool                `json:"auto_extend"`
	ExtendDuration  time.Duration       `json:"extend_duration"`
	MaxExtensions   int                 `json:"max_extensions"`
	ExtensionsUsed  int                 `json:"extensions_used"`
	SlotIDs         []int64             `json:"slot_ids"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// EffectiveReserve returns the session override when present, else the
// slot's own reserve.
func EffectiveReserve(slot *Slot, session *AuctionSession) decimal.Decimal {
	if session != nil && session.ReservePrice.Valid {
		return session.ReservePrice.Decimal
	}
	return slot.ReservePrice
}

// Company is the eligibility view of a bidder, owned by the identity provider.
type Company struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	AuctionEligible bool                `json:"auction_eligible"`
	MaxBid          decimal.NullDecimal `json:"max_bid"`
}

type NotificationType string

const (
	NotifyBidPlaced        NotificationType = "BID_PLACED"
	NotifyBidOutbid        NotificationType = "BID_OUTBID"
	NotifyAuctionStarting  NotificationType = "AUCTION_STARTING"
	NotifyAuctionEnding    NotificationType = "AUCTION_ENDING"
	NotifyAuctionExtended  NotificationType = "AUCTION_EXTENDED"
	NotifyAuctionCompleted NotificationType = "AUCTION_COMPLETED"
)

type RecipientScope string

const (
	ScopeBroadcast RecipientScope = "BROADCAST"
	ScopeSession   RecipientScope = "SESSION"
	ScopeSlot      RecipientScope = "SLOT"
	ScopeCompany   RecipientScope = "COMPANY"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Notification is an append-only outbox record. Seq is assigned by the store
// on append and defines delivery order.
type Notification struct {
	ID             string           `json:"id"`
	Seq            int64            `json:"seq"`
	SessionID      string           `json:"session_id,omitempty"`
	SlotID         int64            `json:"slot_id,omitempty"`
	Type           NotificationType `json:"type"`
	RecipientScope RecipientScope   `json:"recipient_scope"`
	RecipientID    string           `json:"recipient_id,omitempty"`
	Message        string           `json:"message"`
	Priority       Priority         `json:"priority"`
	CreatedAt      time.Time        `json:"created_at"`
	DispatchedAt   *time.Time       `json:"dispatched_at,omitempty"`
}

func SessionTopic(sessionID string) string { return "session:" + sessionID }

func SlotTopic(slotID int64) string { return fmt.Sprintf("slot:%d", slotID) }

// Topic is the push-gateway topic the notification is delivered on. Company
// and broadcast notifications have none.
func (n *Notification) Topic() string {
	switch n.RecipientScope {
	case ScopeSession:
		return SessionTopic(n.SessionID)
	case ScopeSlot:
		return SlotTopic(n.SlotID)
	}
	return ""
}

// Winner is the read projection of a resolved slot.
type Winner struct {
	SlotID    int64           `json:"slot_id"`
	BidID     string          `json:"bid_id"`
	CompanyID string          `json:"company_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type BidFilter struct {
	SlotID    int64
	SessionID string
	Status    BidStatus
}
