package domain

//go:generate mockgen -destination=mocks/mock_eligibility.go -package=mocks slot-auction/internal/domain EligibilityProvider

import (
	"context"
	"time"
)

// LedgerStore is the durable record store for slots, bids, sessions and
// notifications. Writes only happen through WithinTx; the embedded reader
// serves committed snapshots without taking row locks.
type LedgerStore interface {
	LedgerReader
	// WithinTx runs fn in one transaction. A nil return commits, anything else
	// rolls back. Serialization failures surface as ErrTxConflict.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is a single store transaction. Locking reads follow the order
// session -> slot -> bid; callers must not acquire them in another order.
type LedgerTx interface {
	GetSlot(ctx context.Context, slotID int64) (*Slot, error)
	GetSlotForUpdate(ctx context.Context, slotID int64) (*Slot, error)
	InsertSlot(ctx context.Context, slot *Slot) error
	UpdateSlot(ctx context.Context, slot *Slot) error

	// GetSession reads the session without locking it, for fields that never
	// change after creation.
	GetSession(ctx context.Context, sessionID string) (*AuctionSession, error)
	GetSessionForShare(ctx context.Context, sessionID string) (*AuctionSession, error)
	GetSessionForUpdate(ctx context.Context, sessionID string) (*AuctionSession, error)
	InsertSession(ctx context.Context, session *AuctionSession) error
	UpdateSession(ctx context.Context, session *AuctionSession) error

	GetBid(ctx context.Context, bidID string) (*Bid, error)
	GetBidForUpdate(ctx context.Context, bidID string) (*Bid, error)
	// HighestBid returns the highest-amount bid placed on the slot within the
	// given session ("" for sessionless bids) in one of the given statuses, or
	// ErrBidNotFound.
	HighestBid(ctx context.Context, slotID int64, sessionID string, statuses ...BidStatus) (*Bid, error)
	InsertBid(ctx context.Context, bid *Bid) error
	UpdateBidStatus(ctx context.Context, bidID string, status BidStatus, at time.Time) error
	// OutbidActiveBids moves every ACTIVE bid of the slot except exceptBidID to OUTBID.
	OutbidActiveBids(ctx context.Context, slotID int64, exceptBidID string, at time.Time) (int64, error)

	AppendNotification(ctx context.Context, n *Notification) error
}

type LedgerReader interface {
	GetSlot(ctx context.Context, slotID int64) (*Slot, error)
	ListSlots(ctx context.Context) ([]*Slot, error)
	GetSession(ctx context.Context, sessionID string) (*AuctionSession, error)
	// ListSessions returns all sessions when status is empty.
	ListSessions(ctx context.Context, status SessionStatus) ([]*AuctionSession, error)
	GetBid(ctx context.Context, bidID string) (*Bid, error)
	ListBids(ctx context.Context, filter BidFilter) ([]*Bid, error)
	ListNotifications(ctx context.Context, sessionID string, limit int) ([]*Notification, error)
}

// NotificationOutbox is read by the relay that hands notifications to the
// messaging collaborators.
type NotificationOutbox interface {
	PendingNotifications(ctx context.Context, limit int) ([]*Notification, error)
	MarkDispatched(ctx context.Context, notificationIDs []string, at time.Time) error
}

// EligibilityProvider resolves a bidder company's eligibility and ceiling.
type EligibilityProvider interface {
	GetCompany(ctx context.Context, companyID string) (*Company, error)
}

// NotificationPublisher delivers one notification out of band.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n *Notification) error
}

type NotificationSubscriber interface {
	SubscribeToNotifications(ctx context.Context, handler NotificationHandler) error
}

type NotificationHandler func(n *Notification) error

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(payload []byte) error
	Close() error
	CompanyID() string
	Topic() string
}

// ConnectionManager tracks push-gateway connections by topic (see
// SessionTopic and SlotTopic) and by company.
type ConnectionManager interface {
	RegisterConnection(companyID, topic string, conn WebSocketConnection) error
	UnregisterConnection(conn WebSocketConnection) error
	GetConnectionsForTopic(topic string) []WebSocketConnection
	GetConnectionsForCompany(companyID string) []WebSocketConnection
	BroadcastToTopic(topic string, message interface{}) error
	BroadcastToAll(message interface{}) error
	NotifyCompany(companyID string, message interface{}) error
	CloseAndUnregisterConnections(topic string) error
}
