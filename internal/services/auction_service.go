package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
)

const defaultNotificationLimit = 100

type ProvisionSlotRequest struct {
	ID           int64
	Name         string
	ReservePrice decimal.Decimal
}

// AuctionService is the entry point for the transport layer. Commands go
// through the ledger and the session controller; queries read the latest
// committed snapshot and never take row locks.
type AuctionService struct {
	store      domain.LedgerStore
	ledger     *BidLedger
	controller *SessionController
	clock      domain.Clock
	log        logger.Logger
}

func NewAuctionService(
	store domain.LedgerStore,
	ledger *BidLedger,
	controller *SessionController,
	clock domain.Clock,
	log logger.Logger,
) *AuctionService {
	return &AuctionService{
		store:      store,
		ledger:     ledger,
		controller: controller,
		clock:      clock,
		log:        log,
	}
}

func (s *AuctionService) PlaceBid(ctx context.Context, req PlaceBidRequest) (*domain.Bid, error) {
	return s.ledger.PlaceBid(ctx, req)
}

func (s *AuctionService) WithdrawBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	return s.ledger.Withdraw(ctx, bidID)
}

func (s *AuctionService) AcceptBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	return s.ledger.Accept(ctx, bidID)
}

func (s *AuctionService) RejectBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	return s.ledger.Reject(ctx, bidID)
}

func (s *AuctionService) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.AuctionSession, error) {
	return s.controller.Create(ctx, req)
}

func (s *AuctionService) StartSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return s.controller.Start(ctx, sessionID)
}

func (s *AuctionService) PauseSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return s.controller.Pause(ctx, sessionID)
}

func (s *AuctionService) ResumeSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return s.controller.Resume(ctx, sessionID)
}

func (s *AuctionService) EndSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return s.controller.End(ctx, sessionID)
}

// ExtendSession extends by duration, or by the session default when zero.
func (s *AuctionService) ExtendSession(ctx context.Context, sessionID string, duration time.Duration) (*domain.AuctionSession, error) {
	return s.controller.Extend(ctx, sessionID, duration)
}

func (s *AuctionService) CancelSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return s.controller.Cancel(ctx, sessionID)
}

// ProvisionSlot adds a slot to the pool in AVAILABLE status.
func (s *AuctionService) ProvisionSlot(ctx context.Context, req ProvisionSlotRequest) (*domain.Slot, error) {
	switch {
	case req.ID <= 0:
		return nil, fmt.Errorf("%w: slot id must be positive", domain.ErrInvalidInput)
	case strings.TrimSpace(req.Name) == "":
		return nil, fmt.Errorf("%w: slot name is required", domain.ErrInvalidInput)
	case req.ReservePrice.IsNegative():
		return nil, fmt.Errorf("%w: reserve price must not be negative", domain.ErrInvalidInput)
	}

	now := s.clock.Now()
	slot := &domain.Slot{
		ID:           req.ID,
		Name:         strings.TrimSpace(req.Name),
		ReservePrice: req.ReservePrice.Round(domain.MonetaryPrecision),
		Status:       domain.SlotAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		return tx.InsertSlot(ctx, slot)
	})
	if err != nil {
		return nil, fmt.Errorf("service: provision slot %d: %w", req.ID, err)
	}

	s.log.Info("Slot provisioned", "slot_id", slot.ID, "reserve_price", slot.ReservePrice.String())
	return slot, nil
}

func (s *AuctionService) GetSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return s.store.GetSession(ctx, sessionID)
}

// ListSessions returns every session when status is empty.
func (s *AuctionService) ListSessions(ctx context.Context, status domain.SessionStatus) ([]*domain.AuctionSession, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown session status %q", domain.ErrInvalidInput, status)
	}
	return s.store.ListSessions(ctx, status)
}

func (s *AuctionService) ActiveSessions(ctx context.Context) ([]*domain.AuctionSession, error) {
	return s.store.ListSessions(ctx, domain.SessionActive)
}

func (s *AuctionService) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	return s.store.GetBid(ctx, bidID)
}

// ListBids returns bid history in acceptance order. A zero slotID or empty
// status matches everything.
func (s *AuctionService) ListBids(ctx context.Context, slotID int64, status domain.BidStatus) ([]*domain.Bid, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown bid status %q", domain.ErrInvalidInput, status)
	}
	return s.store.ListBids(ctx, domain.BidFilter{SlotID: slotID, Status: status})
}

func (s *AuctionService) GetSlot(ctx context.Context, slotID int64) (*domain.Slot, error) {
	return s.store.GetSlot(ctx, slotID)
}

func (s *AuctionService) ListSlots(ctx context.Context) ([]*domain.Slot, error) {
	return s.store.ListSlots(ctx)
}

// Winners lists the winning bid of every slot the session resolved.
func (s *AuctionService) Winners(ctx context.Context, sessionID string) ([]domain.Winner, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	bids, err := s.store.ListBids(ctx, domain.BidFilter{SessionID: sessionID, Status: domain.BidWon})
	if err != nil {
		return nil, err
	}

	winners := make([]domain.Winner, 0, len(bids))
	for _, b := range bids {
		winners = append(winners, domain.Winner{
			SlotID:    b.SlotID,
			BidID:     b.ID,
			CompanyID: b.CompanyID,
			Amount:    b.Amount,
		})
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].SlotID < winners[j].SlotID })
	return winners, nil
}

// ListNotifications returns the session's notification feed, newest first.
func (s *AuctionService) ListNotifications(ctx context.Context, sessionID string, limit int) ([]*domain.Notification, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	return s.store.ListNotifications(ctx, sessionID, limit)
}
