package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Lookup errors
var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSessionNotFound = errors.New("auction session not found")
	ErrBidNotFound     = errors.New("bid not found")
	ErrCompanyNotFound = errors.New("company not found")
)

// State-conflict errors
var (
	ErrAlreadyTerminal          = errors.New("bid already terminal")
	ErrInvalidSessionTransition = errors.New("invalid session transition")
	ErrExtensionLimitReached    = errors.New("extension limit reached")
	ErrSlotUnavailable          = errors.New("slot unavailable for session")
	ErrSlotExists               = errors.New("slot already exists")
)

// ErrInvalidInput marks malformed commands (bad session window, empty name, ...).
var ErrInvalidInput = errors.New("invalid input")

// ErrTxConflict is returned by a LedgerStore when a transaction lost a
// serialization race and may succeed if retried against fresh state.
var ErrTxConflict = errors.New("transaction conflict")

// ErrBidRejected matches every *Rejection.
var ErrBidRejected = errors.New("bid rejected")

type RejectReason string

const (
	ReasonSlotNotBiddable  RejectReason = "SlotNotBiddable"
	ReasonNoActiveSession  RejectReason = "NoActiveSession"
	ReasonBidderIneligible RejectReason = "BidderIneligible"
	ReasonExceedsMaxBid    RejectReason = "ExceedsMaxBid"
	ReasonBelowReserve     RejectReason = "BelowReserve"
	ReasonBidTooLow        RejectReason = "BidTooLow"
)

// Rejection is a validator decision against a proposed bid.
type Rejection struct {
	Reason        RejectReason
	Message       string
	MinimumAmount decimal.NullDecimal
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

func (r *Rejection) Is(target error) bool {
	return target == ErrBidRejected
}

// TransitionError reports an attempt to move a session out of a state that
// does not allow it.
type TransitionError struct {
	From SessionStatus
	To   SessionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid session transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidSessionTransition
}
