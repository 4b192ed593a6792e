package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
	"slot-auction/pkg/metrics"
	"slot-auction/pkg/utils"
)

type CreateSessionRequest struct {
	Name           string
	StartTime      time.Time
	EndTime        time.Time
	BidIncrement   decimal.Decimal
	ReservePrice   decimal.NullDecimal
	AutoExtend     bool
	ExtendDuration time.Duration
	MaxExtensions  int
	SlotIDs        []int64
}

func (r CreateSessionRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: session name is required", domain.ErrInvalidInput)
	case r.StartTime.IsZero() || r.EndTime.IsZero():
		return fmt.Errorf("%w: start and end time are required", domain.ErrInvalidInput)
	case !r.EndTime.After(r.StartTime):
		return fmt.Errorf("%w: end time must be after start time", domain.ErrInvalidInput)
	case r.BidIncrement.IsNegative():
		return fmt.Errorf("%w: bid increment must not be negative", domain.ErrInvalidInput)
	case r.ReservePrice.Valid && r.ReservePrice.Decimal.IsNegative():
		return fmt.Errorf("%w: reserve price must not be negative", domain.ErrInvalidInput)
	case r.MaxExtensions < 0:
		return fmt.Errorf("%w: max extensions must not be negative", domain.ErrInvalidInput)
	case r.ExtendDuration < 0:
		return fmt.Errorf("%w: extend duration must not be negative", domain.ErrInvalidInput)
	case r.AutoExtend && r.ExtendDuration == 0:
		return fmt.Errorf("%w: auto-extend needs an extend duration", domain.ErrInvalidInput)
	}
	return nil
}

type SessionControllerConfig struct {
	// AutoExtendWindow is how close to the end time an accepted bid has to land
	// to extend an auto-extend session.
	AutoExtendWindow time.Duration
	MaxTxRetries     int
}

// SessionController owns the auction session state machine and the status of
// the slots bound to a session. Each transition is a single transaction that
// holds the session row exclusively, then the bound slot rows in id order.
type SessionController struct {
	store      domain.LedgerStore
	dispatcher *NotificationDispatcher
	clock      domain.Clock
	cfg        SessionControllerConfig
	metrics    *metrics.Metrics
	log        logger.Logger
}

func NewSessionController(
	store domain.LedgerStore,
	dispatcher *NotificationDispatcher,
	clock domain.Clock,
	cfg SessionControllerConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *SessionController {
	return &SessionController{
		store:      store,
		dispatcher: dispatcher,
		clock:      clock,
		cfg:        cfg,
		metrics:    m,
		log:        log,
	}
}

func (c *SessionController) Create(ctx context.Context, req CreateSessionRequest) (*domain.AuctionSession, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	slotIDs := sortedUnique(req.SlotIDs)

	var created *domain.AuctionSession
	err := c.retry(ctx, "create_session", func() error {
		now := c.clock.Now()
		session := &domain.AuctionSession{
			ID:             utils.GenerateID("session"),
			Name:           strings.TrimSpace(req.Name),
			StartTime:      req.StartTime.UTC(),
			EndTime:        req.EndTime.UTC(),
			Status:         domain.SessionScheduled,
			BidIncrement:   req.BidIncrement.Round(domain.MonetaryPrecision),
			ReservePrice:   req.ReservePrice,
			AutoExtend:     req.AutoExtend,
			ExtendDuration: req.ExtendDuration,
			MaxExtensions:  req.MaxExtensions,
			SlotIDs:        slotIDs,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if session.ReservePrice.Valid {
			session.ReservePrice.Decimal = session.ReservePrice.Decimal.Round(domain.MonetaryPrecision)
		}

		return c.store.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
			// Every slot is locked and checked before the session and its
			// bindings are written.
			slots := make([]*domain.Slot, 0, len(slotIDs))
			for _, slotID := range slotIDs {
				slot, err := tx.GetSlotForUpdate(ctx, slotID)
				if err != nil {
					return err
				}
				if slot.SessionID != "" || slot.Status != domain.SlotAvailable || slot.HasCurrentBid() {
					return fmt.Errorf("%w: slot %d is %s", domain.ErrSlotUnavailable, slot.ID, slot.Status)
				}
				slots = append(slots, slot)
			}

			if err := tx.InsertSession(ctx, session); err != nil {
				return err
			}
			for _, slot := range slots {
				slot.SessionID = session.ID
				slot.UpdatedAt = now
				if err := tx.UpdateSlot(ctx, slot); err != nil {
					return err
				}
			}
			created = session
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("controller: create session: %w", err)
	}

	c.metrics.RecordSessionTransition(string(domain.SessionScheduled))
	c.log.Info("Auction session created", "session_id", created.ID, "slots", len(created.SlotIDs))
	return created, nil
}

func (c *SessionController) Start(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return c.transition(ctx, sessionID, domain.SessionActive,
		[]domain.SessionStatus{domain.SessionScheduled},
		func(ctx context.Context, tx domain.LedgerTx, session *domain.AuctionSession, now time.Time) error {
			session.ActualStartTime = &now
			err := c.eachSlot(ctx, tx, session, func(slot *domain.Slot) {
				slot.Status = domain.SlotAuctionActive
			})
			if err != nil {
				return err
			}
			return c.dispatcher.Notify(ctx, tx, NotifyRequest{
				SessionID: session.ID,
				Type:      domain.NotifyAuctionStarting,
				Scope:     domain.ScopeSession,
				Message:   fmt.Sprintf("Auction %q has started", session.Name),
				Priority:  domain.PriorityHigh,
			})
		})
}

func (c *SessionController) Pause(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return c.transition(ctx, sessionID, domain.SessionPaused,
		[]domain.SessionStatus{domain.SessionActive}, nil)
}

func (c *SessionController) Resume(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return c.transition(ctx, sessionID, domain.SessionActive,
		[]domain.SessionStatus{domain.SessionPaused}, nil)
}

// End completes the session and resolves every bound slot in the same
// transaction: the highest ACTIVE or WON bid wins and the slot becomes
// OCCUPIED, a slot without one returns to AVAILABLE.
func (c *SessionController) End(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return c.transition(ctx, sessionID, domain.SessionCompleted,
		[]domain.SessionStatus{domain.SessionActive, domain.SessionPaused},
		func(ctx context.Context, tx domain.LedgerTx, session *domain.AuctionSession, now time.Time) error {
			session.ActualEndTime = &now

			if err := c.dispatcher.Notify(ctx, tx, NotifyRequest{
				SessionID: session.ID,
				Type:      domain.NotifyAuctionEnding,
				Scope:     domain.ScopeSession,
				Message:   fmt.Sprintf("Auction %q is ending", session.Name),
				Priority:  domain.PriorityHigh,
			}); err != nil {
				return err
			}

			var winners []*domain.Bid
			for _, slotID := range session.SlotIDs {
				slot, err := tx.GetSlotForUpdate(ctx, slotID)
				if err != nil {
					return err
				}

				winner, err := tx.HighestBid(ctx, slot.ID, session.ID, domain.BidActive, domain.BidWon)
				switch {
				case err == nil:
					if winner.Status != domain.BidWon {
						if err := tx.UpdateBidStatus(ctx, winner.ID, domain.BidWon, now); err != nil {
							return err
						}
					}
					slot.LeadWith(winner)
					slot.CurrentSponsor = winner.CompanyID
					slot.Status = domain.SlotOccupied
					winners = append(winners, winner)
				case errors.Is(err, domain.ErrBidNotFound):
					slot.ResetBid()
					slot.Status = domain.SlotAvailable
				default:
					return err
				}

				slot.SessionID = ""
				slot.UpdatedAt = now
				if err := tx.UpdateSlot(ctx, slot); err != nil {
					return err
				}
			}

			for _, w := range winners {
				if err := c.dispatcher.Notify(ctx, tx, NotifyRequest{
					SessionID:   session.ID,
					SlotID:      w.SlotID,
					Type:        domain.NotifyAuctionCompleted,
					Scope:       domain.ScopeCompany,
					RecipientID: w.CompanyID,
					Message:     fmt.Sprintf("You won slot %d with a bid of %s", w.SlotID, w.Amount.StringFixed(domain.MonetaryPrecision)),
					Priority:    domain.PriorityHigh,
				}); err != nil {
					return err
				}
			}

			return c.dispatcher.Notify(ctx, tx, NotifyRequest{
				SessionID: session.ID,
				Type:      domain.NotifyAuctionCompleted,
				Scope:     domain.ScopeBroadcast,
				Message:   fmt.Sprintf("Auction %q completed: %d of %d slots won", session.Name, len(winners), len(session.SlotIDs)),
				Priority:  domain.PriorityNormal,
			})
		})
}

// Extend pushes the end time of an active session back by duration, or by the
// session's extend duration when duration is zero.
func (c *SessionController) Extend(ctx context.Context, sessionID string, duration time.Duration) (*domain.AuctionSession, error) {
	if duration < 0 {
		return nil, fmt.Errorf("%w: extension duration must not be negative", domain.ErrInvalidInput)
	}
	return c.transition(ctx, sessionID, domain.SessionActive,
		[]domain.SessionStatus{domain.SessionActive},
		func(ctx context.Context, tx domain.LedgerTx, session *domain.AuctionSession, now time.Time) error {
			return c.extend(ctx, tx, session, duration)
		})
}

// Cancel stops a session without resolving winners. Bound slots are released
// to AVAILABLE and their leading bids are superseded; a slot already occupied
// through an operator accept keeps its winner.
func (c *SessionController) Cancel(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return c.transition(ctx, sessionID, domain.SessionCancelled,
		[]domain.SessionStatus{domain.SessionScheduled, domain.SessionActive, domain.SessionPaused},
		func(ctx context.Context, tx domain.LedgerTx, session *domain.AuctionSession, now time.Time) error {
			for _, slotID := range session.SlotIDs {
				slot, err := tx.GetSlotForUpdate(ctx, slotID)
				if err != nil {
					return err
				}
				if slot.Status != domain.SlotOccupied {
					if _, err := tx.OutbidActiveBids(ctx, slot.ID, "", now); err != nil {
						return err
					}
					slot.ResetBid()
					slot.Status = domain.SlotAvailable
				}
				slot.SessionID = ""
				slot.UpdatedAt = now
				if err := tx.UpdateSlot(ctx, slot); err != nil {
					return err
				}
			}
			return c.dispatcher.Notify(ctx, tx, NotifyRequest{
				SessionID: session.ID,
				Type:      domain.NotifyAuctionCompleted,
				Scope:     domain.ScopeSession,
				Message:   fmt.Sprintf("Auction %q was cancelled", session.Name),
				Priority:  domain.PriorityHigh,
			})
		})
}

// extendForBid applies the auto-extend rule to a session the caller holds
// exclusively. A session at its extension ceiling is left alone.
func (c *SessionController) extendForBid(ctx context.Context, tx domain.LedgerTx, session *domain.AuctionSession, bidTime time.Time) (bool, error) {
	if c.cfg.AutoExtendWindow <= 0 || !session.AutoExtend || session.Status != domain.SessionActive {
		return false, nil
	}
	remaining := session.EndTime.Sub(bidTime)
	if remaining <= 0 || remaining > c.cfg.AutoExtendWindow {
		return false, nil
	}

	err := c.extend(ctx, tx, session, 0)
	if errors.Is(err, domain.ErrExtensionLimitReached) {
		c.log.Info("Auto-extension skipped, ceiling reached", "session_id", session.ID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	session.UpdatedAt = c.clock.Now()
	if err := tx.UpdateSession(ctx, session); err != nil {
		return false, err
	}
	return true, nil
}

func (c *SessionController) autoExtended(sessionID string) {
	c.metrics.RecordSessionTransition("EXTENDED")
	c.log.Info("Auction session auto-extended", "session_id", sessionID)
}

func (c *SessionController) extend(ctx context.Context, tx domain.LedgerTx, session *domain.AuctionSession, duration time.Duration) error {
	if session.ExtensionsUsed >= session.MaxExtensions {
		return domain.ErrExtensionLimitReached
	}
	if duration == 0 {
		duration = session.ExtendDuration
	}
	if duration <= 0 {
		return fmt.Errorf("%w: session %s has no extend duration", domain.ErrInvalidInput, session.ID)
	}

	session.EndTime = session.EndTime.Add(duration)
	session.ExtensionsUsed++

	return c.dispatcher.Notify(ctx, tx, NotifyRequest{
		SessionID: session.ID,
		Type:      domain.NotifyAuctionExtended,
		Scope:     domain.ScopeSession,
		Message:   fmt.Sprintf("Auction %q extended to %s", session.Name, session.EndTime.Format(time.RFC3339)),
		Priority:  domain.PriorityHigh,
	})
}

type transitionFunc func(ctx context.Context, tx domain.LedgerTx, session *domain.AuctionSession, now time.Time) error

// transition locks the session, checks its status against from, applies fn and
// stores the session in status to. Any error leaves the session and its slots
// untouched.
func (c *SessionController) transition(
	ctx context.Context,
	sessionID string,
	to domain.SessionStatus,
	from []domain.SessionStatus,
	fn transitionFunc,
) (*domain.AuctionSession, error) {
	var result *domain.AuctionSession
	err := c.retry(ctx, "session_"+strings.ToLower(string(to)), func() error {
		return c.store.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
			session, err := tx.GetSessionForUpdate(ctx, sessionID)
			if err != nil {
				return err
			}
			if !statusIn(session.Status, from) {
				return &domain.TransitionError{From: session.Status, To: to}
			}

			now := c.clock.Now()
			if fn != nil {
				if err := fn(ctx, tx, session, now); err != nil {
					return err
				}
			}
			session.Status = to
			session.UpdatedAt = now
			if err := tx.UpdateSession(ctx, session); err != nil {
				return err
			}
			result = session
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("controller: session %s to %s: %w", sessionID, to, err)
	}

	c.metrics.RecordSessionTransition(string(to))
	c.log.Info("Auction session transitioned", "session_id", sessionID, "status", to, "end_time", result.EndTime)
	return result, nil
}

// eachSlot locks every bound slot in id order, applies fn and stores it.
func (c *SessionController) eachSlot(ctx context.Context, tx domain.LedgerTx, session *domain.AuctionSession, fn func(slot *domain.Slot)) error {
	now := c.clock.Now()
	for _, slotID := range session.SlotIDs {
		slot, err := tx.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		fn(slot)
		slot.UpdatedAt = now
		if err := tx.UpdateSlot(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}

func (c *SessionController) retry(ctx context.Context, op string, fn func() error) error {
	return withRetry(ctx, c.cfg.MaxTxRetries, func(attempt int) {
		c.metrics.RecordTxRetry(op)
		c.log.Warn("Retrying after transaction conflict", "operation", op, "attempt", attempt)
	}, fn)
}

func statusIn(status domain.SessionStatus, allowed []domain.SessionStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

func sortedUnique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
