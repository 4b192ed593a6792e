package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
	"slot-auction/pkg/metrics"
	"slot-auction/pkg/utils"
)

type PlaceBidRequest struct {
	SlotID    int64
	CompanyID string
	UserID    string
	Amount    decimal.Decimal
}

func (r PlaceBidRequest) validate() error {
	switch {
	case r.SlotID <= 0:
		return fmt.Errorf("%w: slot id must be positive", domain.ErrInvalidInput)
	case strings.TrimSpace(r.CompanyID) == "":
		return fmt.Errorf("%w: bidder id is required", domain.ErrInvalidInput)
	case !r.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	case !r.Amount.Equal(r.Amount.Round(domain.MonetaryPrecision)):
		return fmt.Errorf("%w: amount has more than %d decimal places", domain.ErrInvalidInput, domain.MonetaryPrecision)
	}
	return nil
}

// BidLedger is the only writer of bid status and of a slot's current-bid
// fields. Every operation runs as one transaction holding the slot row
// exclusively, so the current bid of a slot always reflects the most recently
// committed bid.
type BidLedger struct {
	store       domain.LedgerStore
	eligibility domain.EligibilityProvider
	controller  *SessionController
	dispatcher  *NotificationDispatcher
	clock       domain.Clock
	maxRetries  int
	metrics     *metrics.Metrics
	log         logger.Logger
}

func NewBidLedger(
	store domain.LedgerStore,
	eligibility domain.EligibilityProvider,
	controller *SessionController,
	dispatcher *NotificationDispatcher,
	clock domain.Clock,
	maxRetries int,
	m *metrics.Metrics,
	log logger.Logger,
) *BidLedger {
	return &BidLedger{
		store:       store,
		eligibility: eligibility,
		controller:  controller,
		dispatcher:  dispatcher,
		clock:       clock,
		maxRetries:  maxRetries,
		metrics:     m,
		log:         log,
	}
}

// PlaceBid validates and records a bid. A validator decision comes back as a
// *domain.Rejection and leaves no trace in the store.
func (l *BidLedger) PlaceBid(ctx context.Context, req PlaceBidRequest) (*domain.Bid, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	company, err := l.eligibility.GetCompany(ctx, req.CompanyID)
	if err != nil && !errors.Is(err, domain.ErrCompanyNotFound) {
		return nil, fmt.Errorf("ledger: resolve company %s: %w", req.CompanyID, err)
	}

	var bid *domain.Bid
	var extended bool
	err = l.retry(ctx, "place_bid", func() error {
		var err error
		bid, extended, err = l.placeBid(ctx, req, company)
		return err
	})
	if err != nil {
		var rejection *domain.Rejection
		if errors.As(err, &rejection) {
			l.metrics.RecordBidRejected(string(rejection.Reason))
			l.log.Info("Bid rejected", "slot_id", req.SlotID, "company_id", req.CompanyID,
				"amount", req.Amount.String(), "reason", rejection.Reason)
			return nil, rejection
		}
		return nil, fmt.Errorf("ledger: place bid on slot %d: %w", req.SlotID, err)
	}

	l.metrics.RecordBidAccepted()
	l.log.Info("Bid accepted", "bid_id", bid.ID, "slot_id", bid.SlotID, "company_id", bid.CompanyID,
		"amount", bid.Amount.String())

	if extended {
		l.controller.autoExtended(bid.SessionID)
	}
	return bid, nil
}

// placeBid records the bid and, for an auto-extend session, the extension it
// triggers in one transaction. It reports whether the session was extended.
func (l *BidLedger) placeBid(ctx context.Context, req PlaceBidRequest, company *domain.Company) (*domain.Bid, bool, error) {
	var placed *domain.Bid
	var extended bool

	err := l.store.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		// The unlocked read only finds the session, which has to be locked
		// before the slot.
		snapshot, err := tx.GetSlot(ctx, req.SlotID)
		if err != nil {
			return err
		}

		session, err := l.lockSession(ctx, tx, snapshot.SessionID)
		if err != nil {
			return err
		}

		slot, err := tx.GetSlotForUpdate(ctx, req.SlotID)
		if err != nil {
			return err
		}
		if slot.SessionID != snapshot.SessionID {
			return domain.ErrTxConflict
		}

		if rejection := ValidateBid(slot, session, company, req.Amount); rejection != nil {
			return rejection
		}

		now := l.clock.Now()
		bid := &domain.Bid{
			ID:        utils.GenerateID("bid"),
			SlotID:    slot.ID,
			CompanyID: req.CompanyID,
			UserID:    req.UserID,
			Amount:    req.Amount,
			Status:    domain.BidActive,
			SessionID: slot.SessionID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}

		var previous *domain.Bid
		if slot.CurrentBidID != "" {
			previous, err = tx.GetBid(ctx, slot.CurrentBidID)
			if err != nil {
				return err
			}
		}
		if _, err := tx.OutbidActiveBids(ctx, slot.ID, bid.ID, now); err != nil {
			return err
		}

		slot.LeadWith(bid)
		slot.TotalBids++
		slot.LastBidTime = &now
		if slot.Status == domain.SlotAvailable {
			slot.Status = domain.SlotAuctionActive
		}
		slot.UpdatedAt = now
		if err := tx.UpdateSlot(ctx, slot); err != nil {
			return err
		}

		if err := l.notifyPlaced(ctx, tx, slot, bid, previous); err != nil {
			return err
		}

		extended = false
		if session != nil && session.AutoExtend {
			if extended, err = l.controller.extendForBid(ctx, tx, session, now); err != nil {
				return err
			}
		}

		placed = bid
		return nil
	})
	return placed, extended, err
}

// lockSession locks the slot's session ahead of the slot: shared for plain
// sessions, exclusive for auto-extend ones, since their bids may move the end
// time. A missing session yields nil.
func (l *BidLedger) lockSession(ctx context.Context, tx domain.LedgerTx, sessionID string) (*domain.AuctionSession, error) {
	if sessionID == "" {
		return nil, nil
	}

	peek, err := tx.GetSession(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session *domain.AuctionSession
	if peek.AutoExtend {
		session, err = tx.GetSessionForUpdate(ctx, sessionID)
	} else {
		session, err = tx.GetSessionForShare(ctx, sessionID)
	}
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	return session, err
}

func (l *BidLedger) notifyPlaced(ctx context.Context, tx domain.LedgerTx, slot *domain.Slot, bid, previous *domain.Bid) error {
	placed := NotifyRequest{
		SessionID:   bid.SessionID,
		SlotID:      slot.ID,
		Type:        domain.NotifyBidPlaced,
		Scope:       domain.ScopeSession,
		RecipientID: bid.SessionID,
		Message:     fmt.Sprintf("New bid of %s on slot %d", bid.Amount.StringFixed(domain.MonetaryPrecision), slot.ID),
		Priority:    domain.PriorityNormal,
	}
	if bid.SessionID == "" {
		placed.Scope = domain.ScopeSlot
		placed.RecipientID = fmt.Sprintf("%d", slot.ID)
	}
	if err := l.dispatcher.Notify(ctx, tx, placed); err != nil {
		return err
	}

	if previous == nil || previous.CompanyID == bid.CompanyID {
		return nil
	}
	return l.dispatcher.Notify(ctx, tx, NotifyRequest{
		SessionID:   bid.SessionID,
		SlotID:      slot.ID,
		Type:        domain.NotifyBidOutbid,
		Scope:       domain.ScopeCompany,
		RecipientID: previous.CompanyID,
		Message: fmt.Sprintf("Your bid of %s on slot %d was outbid; the current bid is %s",
			previous.Amount.StringFixed(domain.MonetaryPrecision), slot.ID, bid.Amount.StringFixed(domain.MonetaryPrecision)),
		Priority: domain.PriorityHigh,
	})
}

// Withdraw retracts an ACTIVE bid on behalf of its bidder.
func (l *BidLedger) Withdraw(ctx context.Context, bidID string) (*domain.Bid, error) {
	return l.retire(ctx, bidID, "withdraw_bid")
}

// Reject retracts an ACTIVE bid on behalf of an operator.
func (l *BidLedger) Reject(ctx context.Context, bidID string) (*domain.Bid, error) {
	return l.retire(ctx, bidID, "reject_bid")
}

// retire marks an ACTIVE bid WITHDRAWN. When it led the slot, the highest
// OUTBID bid of the same session takes the lead again; with none left the
// slot's bid fields reset and it returns to AVAILABLE. A session binding is
// kept, and the next bid moves the slot back to AUCTION_ACTIVE.
func (l *BidLedger) retire(ctx context.Context, bidID, op string) (*domain.Bid, error) {
	var retired *domain.Bid
	var promoted *domain.Bid
	err := l.retry(ctx, op, func() error {
		promoted = nil
		return l.withBidLocked(ctx, bidID, func(ctx context.Context, tx domain.LedgerTx, slot *domain.Slot, bid *domain.Bid, now time.Time) error {
			if err := tx.UpdateBidStatus(ctx, bid.ID, domain.BidWithdrawn, now); err != nil {
				return err
			}
			bid.Status = domain.BidWithdrawn
			bid.UpdatedAt = now
			retired = bid

			if slot.CurrentBidID != bid.ID {
				return nil
			}

			next, err := tx.HighestBid(ctx, slot.ID, bid.SessionID, domain.BidOutbid)
			switch {
			case err == nil:
				if err := tx.UpdateBidStatus(ctx, next.ID, domain.BidActive, now); err != nil {
					return err
				}
				next.Status = domain.BidActive
				slot.LeadWith(next)
				promoted = next
			case errors.Is(err, domain.ErrBidNotFound):
				slot.ResetBid()
				slot.Status = domain.SlotAvailable
			default:
				return err
			}
			slot.UpdatedAt = now
			return tx.UpdateSlot(ctx, slot)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: %s %s: %w", strings.ReplaceAll(op, "_", " "), bidID, err)
	}

	if promoted != nil {
		l.log.Info("Bid retired, lead restored", "bid_id", bidID, "operation", op,
			"slot_id", retired.SlotID, "lead_bid_id", promoted.ID, "amount", promoted.Amount.String())
	} else {
		l.log.Info("Bid retired", "bid_id", bidID, "operation", op, "slot_id", retired.SlotID)
	}
	return retired, nil
}

// Accept makes an ACTIVE bid the slot's winner ahead of any session end.
func (l *BidLedger) Accept(ctx context.Context, bidID string) (*domain.Bid, error) {
	var accepted *domain.Bid
	err := l.retry(ctx, "accept_bid", func() error {
		return l.withBidLocked(ctx, bidID, func(ctx context.Context, tx domain.LedgerTx, slot *domain.Slot, bid *domain.Bid, now time.Time) error {
			if err := tx.UpdateBidStatus(ctx, bid.ID, domain.BidWon, now); err != nil {
				return err
			}
			if _, err := tx.OutbidActiveBids(ctx, slot.ID, bid.ID, now); err != nil {
				return err
			}
			bid.Status = domain.BidWon
			bid.UpdatedAt = now

			slot.LeadWith(bid)
			slot.CurrentSponsor = bid.CompanyID
			slot.Status = domain.SlotOccupied
			slot.UpdatedAt = now
			if err := tx.UpdateSlot(ctx, slot); err != nil {
				return err
			}

			accepted = bid
			return l.dispatcher.Notify(ctx, tx, NotifyRequest{
				SessionID:   bid.SessionID,
				SlotID:      slot.ID,
				Type:        domain.NotifyAuctionCompleted,
				Scope:       domain.ScopeCompany,
				RecipientID: bid.CompanyID,
				Message:     fmt.Sprintf("Your bid of %s on slot %d was accepted", bid.Amount.StringFixed(domain.MonetaryPrecision), slot.ID),
				Priority:    domain.PriorityHigh,
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: accept bid %s: %w", bidID, err)
	}

	l.log.Info("Bid accepted by operator", "bid_id", bidID, "slot_id", accepted.SlotID, "company_id", accepted.CompanyID)
	return accepted, nil
}

type bidFunc func(ctx context.Context, tx domain.LedgerTx, slot *domain.Slot, bid *domain.Bid, now time.Time) error

// withBidLocked locks the bid's slot and then the bid, and requires the bid
// to still be ACTIVE before calling fn.
func (l *BidLedger) withBidLocked(ctx context.Context, bidID string, fn bidFunc) error {
	return l.store.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		snapshot, err := tx.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		slot, err := tx.GetSlotForUpdate(ctx, snapshot.SlotID)
		if err != nil {
			return err
		}
		bid, err := tx.GetBidForUpdate(ctx, bidID)
		if err != nil {
			return err
		}
		if bid.Status != domain.BidActive {
			return fmt.Errorf("%w: bid %s is %s", domain.ErrAlreadyTerminal, bid.ID, bid.Status)
		}
		return fn(ctx, tx, slot, bid, l.clock.Now())
	})
}

func (l *BidLedger) retry(ctx context.Context, op string, fn func() error) error {
	return withRetry(ctx, l.maxRetries, func(attempt int) {
		l.metrics.RecordTxRetry(op)
		l.log.Warn("Retrying after transaction conflict", "operation", op, "attempt", attempt)
	}, fn)
}
