package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"slot-auction/internal/domain"
	"slot-auction/internal/infrastructure/memory"
	"slot-auction/pkg/logger"
	"slot-auction/pkg/metrics"
)

// testClock advances by tick on every reading so acceptance order is strict.
type testClock struct {
	mu   sync.Mutex
	now  time.Time
	tick time.Duration
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), tick: time.Millisecond}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.tick)
	return now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	store      *memory.Store
	companies  *memory.CompanyDirectory
	clock      *testClock
	controller *SessionController
	ledger     *BidLedger
	service    *AuctionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, SessionControllerConfig{AutoExtendWindow: 30 * time.Second, MaxTxRetries: 5})
}

func newTestEnvWithConfig(t *testing.T, cfg SessionControllerConfig) *testEnv {
	t.Helper()
	return newTracedTestEnv(t, cfg, nil)
}

// newTracedTestEnv runs every service transaction through trace when it is
// non-nil. Reads in the helpers still go to the memory store directly.
func newTracedTestEnv(t *testing.T, cfg SessionControllerConfig, trace *txTrace) *testEnv {
	t.Helper()
	log := logger.NewNop()
	m := metrics.New()
	clock := newTestClock()
	mem := memory.NewStore(memory.WithLockTimeout(2 * time.Second))
	var store domain.LedgerStore = mem
	if trace != nil {
		store = &tracedStore{Store: mem, trace: trace}
	}
	companies := memory.NewCompanyDirectory(
		domain.Company{ID: "acme", Name: "Acme", AuctionEligible: true},
		domain.Company{ID: "beta", Name: "Beta", AuctionEligible: true},
		domain.Company{ID: "gamma", Name: "Gamma", AuctionEligible: true},
		domain.Company{ID: "capped", Name: "Capped", AuctionEligible: true, MaxBid: decimal.NewNullDecimal(dec("1500"))},
		domain.Company{ID: "banned", Name: "Banned", AuctionEligible: false},
	)

	dispatcher := NewNotificationDispatcher(clock)
	controller := NewSessionController(store, dispatcher, clock, cfg, m, log)
	ledger := NewBidLedger(store, companies, controller, dispatcher, clock, cfg.MaxTxRetries, m, log)
	service := NewAuctionService(store, ledger, controller, clock, log)

	return &testEnv{
		store:      mem,
		companies:  companies,
		clock:      clock,
		controller: controller,
		ledger:     ledger,
		service:    service,
	}
}

// txTrace records the transactional writes services issue and can fail
// session updates.
type txTrace struct {
	mu               sync.Mutex
	calls            []string
	updateSessionErr error
}

func (tr *txTrace) record(call string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.calls = append(tr.calls, call)
}

func (tr *txTrace) Calls() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.calls...)
}

type tracedStore struct {
	*memory.Store
	trace *txTrace
}

func (s *tracedStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		return fn(ctx, &tracedTx{LedgerTx: tx, trace: s.trace})
	})
}

type tracedTx struct {
	domain.LedgerTx
	trace *txTrace
}

func (tx *tracedTx) GetSlotForUpdate(ctx context.Context, slotID int64) (*domain.Slot, error) {
	tx.trace.record("lock_slot")
	return tx.LedgerTx.GetSlotForUpdate(ctx, slotID)
}

func (tx *tracedTx) InsertSession(ctx context.Context, session *domain.AuctionSession) error {
	tx.trace.record("insert_session")
	return tx.LedgerTx.InsertSession(ctx, session)
}

func (tx *tracedTx) UpdateSlot(ctx context.Context, slot *domain.Slot) error {
	tx.trace.record("update_slot")
	return tx.LedgerTx.UpdateSlot(ctx, slot)
}

func (tx *tracedTx) UpdateSession(ctx context.Context, session *domain.AuctionSession) error {
	tx.trace.record("update_session")
	tx.trace.mu.Lock()
	err := tx.trace.updateSessionErr
	tx.trace.mu.Unlock()
	if err != nil {
		return err
	}
	return tx.LedgerTx.UpdateSession(ctx, session)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) provisionSlot(t *testing.T, id int64, reserve string) *domain.Slot {
	t.Helper()
	slot, err := e.service.ProvisionSlot(context.Background(), ProvisionSlotRequest{
		ID:           id,
		Name:         "slot",
		ReservePrice: dec(reserve),
	})
	require.NoError(t, err)
	return slot
}

type sessionOpts struct {
	increment      string
	autoExtend     bool
	extendDuration time.Duration
	maxExtensions  int
	duration       time.Duration
}

// createSession creates a SCHEDULED session over slotIDs.
func (e *testEnv) createSession(t *testing.T, slotIDs []int64, opts sessionOpts) *domain.AuctionSession {
	t.Helper()
	if opts.increment == "" {
		opts.increment = "0"
	}
	if opts.duration == 0 {
		opts.duration = time.Hour
	}
	start := e.clock.Now()
	session, err := e.service.CreateSession(context.Background(), CreateSessionRequest{
		Name:           "test session",
		StartTime:      start,
		EndTime:        start.Add(opts.duration),
		BidIncrement:   dec(opts.increment),
		AutoExtend:     opts.autoExtend,
		ExtendDuration: opts.extendDuration,
		MaxExtensions:  opts.maxExtensions,
		SlotIDs:        slotIDs,
	})
	require.NoError(t, err)
	return session
}

// activeSession creates and starts a session over slotIDs.
func (e *testEnv) activeSession(t *testing.T, slotIDs []int64, opts sessionOpts) *domain.AuctionSession {
	t.Helper()
	session := e.createSession(t, slotIDs, opts)
	started, err := e.service.StartSession(context.Background(), session.ID)
	require.NoError(t, err)
	return started
}

func (e *testEnv) bid(slotID int64, company, amount string) (*domain.Bid, error) {
	return e.service.PlaceBid(context.Background(), PlaceBidRequest{
		SlotID:    slotID,
		CompanyID: company,
		UserID:    "user-" + company,
		Amount:    dec(amount),
	})
}

func (e *testEnv) mustBid(t *testing.T, slotID int64, company, amount string) *domain.Bid {
	t.Helper()
	bid, err := e.bid(slotID, company, amount)
	require.NoError(t, err)
	return bid
}

func (e *testEnv) slot(t *testing.T, id int64) *domain.Slot {
	t.Helper()
	slot, err := e.store.GetSlot(context.Background(), id)
	require.NoError(t, err)
	return slot
}

func (e *testEnv) bidStatus(t *testing.T, id string) domain.BidStatus {
	t.Helper()
	bid, err := e.store.GetBid(context.Background(), id)
	require.NoError(t, err)
	return bid.Status
}

func requireRejection(t *testing.T, err error, reason domain.RejectReason) *domain.Rejection {
	t.Helper()
	require.ErrorIs(t, err, domain.ErrBidRejected)
	var rejection *domain.Rejection
	require.ErrorAs(t, err, &rejection)
	require.Equal(t, reason, rejection.Reason)
	require.NotEmpty(t, rejection.Message)
	return rejection
}

// requireSlotInvariants checks that a slot has at most one ACTIVE or WON bid,
// that its current-bid fields mirror that bid, and that accepted amounts rise
// strictly in acceptance order.
func (e *testEnv) requireSlotInvariants(t *testing.T, slotID int64) {
	t.Helper()
	slot := e.slot(t, slotID)
	bids, err := e.store.ListBids(context.Background(), domain.BidFilter{SlotID: slotID})
	require.NoError(t, err)

	var current []*domain.Bid
	for _, b := range bids {
		if b.Status == domain.BidActive || b.Status == domain.BidWon {
			current = append(current, b)
		}
	}
	require.LessOrEqual(t, len(current), 1, "slot %d has %d current bids", slotID, len(current))

	require.Equal(t, slot.CurrentBid.IsZero(), slot.CurrentBidder == "")
	if len(current) == 1 {
		require.Equal(t, current[0].ID, slot.CurrentBidID)
		require.True(t, current[0].Amount.Equal(slot.CurrentBid))
		require.Equal(t, current[0].CompanyID, slot.CurrentBidder)
	} else {
		require.True(t, slot.CurrentBid.IsZero())
		require.Empty(t, slot.CurrentBidID)
	}

	// Accepted amounts rise within one bidding round (a session, or the
	// sessionless market). Withdrawn bids drop out: the lead falls back to the
	// highest remaining bid, which every later bid has to beat.
	rounds := make(map[string][]*domain.Bid)
	for _, b := range bids {
		if b.Status == domain.BidWithdrawn {
			continue
		}
		rounds[b.SessionID] = append(rounds[b.SessionID], b)
	}
	for _, round := range rounds {
		for i := 1; i < len(round); i++ {
			require.True(t, round[i].Amount.GreaterThan(round[i-1].Amount),
				"bid %s (%s) accepted after %s (%s)", round[i].ID, round[i].Amount, round[i-1].ID, round[i-1].Amount)
		}
	}
}

// extendForBid runs the bid-time auto-extend rule in a transaction of its own,
// holding the session exclusively the way a bid on an auto-extend session does.
func (e *testEnv) extendForBid(t *testing.T, sessionID string, bidTime time.Time) (bool, error) {
	t.Helper()
	var extended bool
	err := e.store.WithinTx(context.Background(), func(ctx context.Context, tx domain.LedgerTx) error {
		session, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		extended, err = e.controller.extendForBid(ctx, tx, session, bidTime)
		return err
	})
	return extended, err
}
