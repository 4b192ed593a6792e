package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"slot-auction/internal/domain"
)

func TestCreateSession_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	start := env.clock.Now()

	valid := func() CreateSessionRequest {
		return CreateSessionRequest{
			Name:         "morning",
			StartTime:    start,
			EndTime:      start.Add(time.Hour),
			BidIncrement: dec("10"),
			SlotIDs:      []int64{1},
		}
	}

	tests := []struct {
		name   string
		mutate func(r *CreateSessionRequest)
	}{
		{"empty name", func(r *CreateSessionRequest) { r.Name = "  " }},
		{"missing start", func(r *CreateSessionRequest) { r.StartTime = time.Time{} }},
		{"end before start", func(r *CreateSessionRequest) { r.EndTime = start.Add(-time.Minute) }},
		{"end equals start", func(r *CreateSessionRequest) { r.EndTime = start }},
		{"negative increment", func(r *CreateSessionRequest) { r.BidIncrement = dec("-1") }},
		{"negative reserve", func(r *CreateSessionRequest) { r.ReservePrice = decimal.NewNullDecimal(dec("-1")) }},
		{"negative max extensions", func(r *CreateSessionRequest) { r.MaxExtensions = -1 }},
		{"auto-extend without duration", func(r *CreateSessionRequest) { r.AutoExtend = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			_, err := env.service.CreateSession(context.Background(), req)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	// None of the failed attempts bound the slot.
	require.Empty(t, env.slot(t, 1).SessionID)
	sessions, err := env.service.ListSessions(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestCreateSession_BindsSlots(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	env.provisionSlot(t, 2, "0")

	session := env.createSession(t, []int64{2, 1, 2}, sessionOpts{increment: "5"})
	require.Equal(t, domain.SessionScheduled, session.Status)
	require.Equal(t, []int64{1, 2}, session.SlotIDs)
	require.Nil(t, session.ActualStartTime)

	for _, id := range []int64{1, 2} {
		slot := env.slot(t, id)
		require.Equal(t, session.ID, slot.SessionID)
		require.Equal(t, domain.SlotAvailable, slot.Status)
	}

	stored, err := env.service.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, session.ID, stored.ID)
	require.True(t, stored.BidIncrement.Equal(dec("5")))
}

func TestCreateSession_SlotUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	env.provisionSlot(t, 2, "0")
	env.createSession(t, []int64{1}, sessionOpts{})

	start := env.clock.Now()
	_, err := env.service.CreateSession(context.Background(), CreateSessionRequest{
		Name:      "second",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		SlotIDs:   []int64{2, 1},
	})
	require.ErrorIs(t, err, domain.ErrSlotUnavailable)

	// The whole create rolled back, slot 2 included.
	require.Empty(t, env.slot(t, 2).SessionID)

	_, err = env.service.CreateSession(context.Background(), CreateSessionRequest{
		Name:      "third",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		SlotIDs:   []int64{99},
	})
	require.ErrorIs(t, err, domain.ErrSlotNotFound)
}

func TestCreateSession_ChecksSlotsBeforeWriting(t *testing.T) {
	trace := &txTrace{}
	env := newTracedTestEnv(t, SessionControllerConfig{MaxTxRetries: 5}, trace)
	env.provisionSlot(t, 1, "0")
	env.provisionSlot(t, 2, "0")
	start := env.clock.Now()

	before := len(trace.Calls())
	_, err := env.service.CreateSession(context.Background(), CreateSessionRequest{
		Name:      "missing slot",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		SlotIDs:   []int64{1, 99},
	})
	require.ErrorIs(t, err, domain.ErrSlotNotFound)
	require.Equal(t, []string{"lock_slot", "lock_slot"}, trace.Calls()[before:])

	before = len(trace.Calls())
	session, err := env.service.CreateSession(context.Background(), CreateSessionRequest{
		Name:      "morning",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		SlotIDs:   []int64{2, 1},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"lock_slot", "lock_slot", "insert_session", "update_slot", "update_slot"}, trace.Calls()[before:])
	require.Equal(t, session.ID, env.slot(t, 1).SessionID)
	require.Equal(t, session.ID, env.slot(t, 2).SessionID)
}

func TestCreateSession_SlotWithSessionlessBid(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	env.mustBid(t, 1, "acme", "10")

	start := env.clock.Now()
	_, err := env.service.CreateSession(context.Background(), CreateSessionRequest{
		Name:      "busy",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		SlotIDs:   []int64{1},
	})
	require.ErrorIs(t, err, domain.ErrSlotUnavailable)
}

func TestSessionTransitions(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	ctx := context.Background()
	session := env.createSession(t, []int64{1}, sessionOpts{})

	_, err := env.service.PauseSession(ctx, session.ID)
	requireTransition(t, err, domain.SessionScheduled, domain.SessionPaused)
	_, err = env.service.EndSession(ctx, session.ID)
	requireTransition(t, err, domain.SessionScheduled, domain.SessionCompleted)

	started, err := env.service.StartSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionActive, started.Status)
	require.NotNil(t, started.ActualStartTime)
	require.Equal(t, domain.SlotAuctionActive, env.slot(t, 1).Status)

	_, err = env.service.StartSession(ctx, session.ID)
	requireTransition(t, err, domain.SessionActive, domain.SessionActive)
	_, err = env.service.ResumeSession(ctx, session.ID)
	requireTransition(t, err, domain.SessionActive, domain.SessionActive)

	paused, err := env.service.PauseSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionPaused, paused.Status)

	_, err = env.service.ExtendSession(ctx, session.ID, time.Minute)
	requireTransition(t, err, domain.SessionPaused, domain.SessionActive)

	resumed, err := env.service.ResumeSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionActive, resumed.Status)

	ended, err := env.service.EndSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionCompleted, ended.Status)
	require.NotNil(t, ended.ActualEndTime)

	for _, op := range []func(context.Context, string) (*domain.AuctionSession, error){
		env.service.StartSession,
		env.service.PauseSession,
		env.service.ResumeSession,
		env.service.EndSession,
		env.service.CancelSession,
	} {
		_, err := op(ctx, session.ID)
		require.ErrorIs(t, err, domain.ErrInvalidSessionTransition)
	}

	_, err = env.service.StartSession(ctx, "session_missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEndSession_FromPaused(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	session := env.activeSession(t, []int64{1}, sessionOpts{})
	bid := env.mustBid(t, 1, "acme", "40")

	_, err := env.service.PauseSession(context.Background(), session.ID)
	require.NoError(t, err)
	_, err = env.service.EndSession(context.Background(), session.ID)
	require.NoError(t, err)

	require.Equal(t, domain.BidWon, env.bidStatus(t, bid.ID))
	require.Equal(t, domain.SlotOccupied, env.slot(t, 1).Status)
}

func requireTransition(t *testing.T, err error, from, to domain.SessionStatus) {
	t.Helper()
	require.ErrorIs(t, err, domain.ErrInvalidSessionTransition)
	var transition *domain.TransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, from, transition.From)
	require.Equal(t, to, transition.To)
}

func TestExtendSession_Ceiling(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	session := env.activeSession(t, []int64{1}, sessionOpts{maxExtensions: 1, extendDuration: time.Minute})
	ctx := context.Background()

	extended, err := env.service.ExtendSession(ctx, session.ID, 300*time.Second)
	require.NoError(t, err)
	require.True(t, extended.EndTime.Equal(session.EndTime.Add(300*time.Second)))
	require.Equal(t, 1, extended.ExtensionsUsed)

	_, err = env.service.ExtendSession(ctx, session.ID, 300*time.Second)
	require.ErrorIs(t, err, domain.ErrExtensionLimitReached)

	current, err := env.service.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, current.EndTime.Equal(extended.EndTime))
	require.Equal(t, 1, current.ExtensionsUsed)

	feed, err := env.service.ListNotifications(ctx, session.ID, 1)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, domain.NotifyAuctionExtended, feed[0].Type)
}

func TestExtendSession_DefaultDuration(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	ctx := context.Background()

	withDefault := env.activeSession(t, []int64{1}, sessionOpts{maxExtensions: 3, extendDuration: 90 * time.Second})
	extended, err := env.service.ExtendSession(ctx, withDefault.ID, 0)
	require.NoError(t, err)
	require.True(t, extended.EndTime.Equal(withDefault.EndTime.Add(90*time.Second)))

	_, err = env.service.ExtendSession(ctx, withDefault.ID, -time.Second)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	env.provisionSlot(t, 2, "0")
	noDefault := env.activeSession(t, []int64{2}, sessionOpts{maxExtensions: 3})
	_, err = env.service.ExtendSession(ctx, noDefault.ID, 0)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEndSession_ResolvesWinners(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	env.provisionSlot(t, 2, "0")
	session := env.activeSession(t, []int64{1, 2}, sessionOpts{increment: "10"})
	ctx := context.Background()

	env.mustBid(t, 1, "acme", "100")
	top := env.mustBid(t, 1, "beta", "250")

	ended, err := env.service.EndSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionCompleted, ended.Status)

	won := env.slot(t, 1)
	require.Equal(t, domain.SlotOccupied, won.Status)
	require.Equal(t, "beta", won.CurrentSponsor)
	require.Equal(t, top.ID, won.CurrentBidID)
	require.Empty(t, won.SessionID)
	require.Equal(t, domain.BidWon, env.bidStatus(t, top.ID))
	env.requireSlotInvariants(t, 1)

	empty := env.slot(t, 2)
	require.Equal(t, domain.SlotAvailable, empty.Status)
	require.True(t, empty.CurrentBid.IsZero())
	require.Empty(t, empty.CurrentBidder)
	require.Empty(t, empty.SessionID)

	winners, err := env.service.Winners(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, []domain.Winner{{SlotID: 1, BidID: top.ID, CompanyID: "beta", Amount: top.Amount}}, winners)

	feed, err := env.service.ListNotifications(ctx, session.ID, 3)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	require.Equal(t, domain.NotifyAuctionCompleted, feed[0].Type)
	require.Equal(t, domain.ScopeBroadcast, feed[0].RecipientScope)
	require.Equal(t, domain.NotifyAuctionCompleted, feed[1].Type)
	require.Equal(t, domain.ScopeCompany, feed[1].RecipientScope)
	require.Equal(t, "beta", feed[1].RecipientID)
	require.Equal(t, domain.NotifyAuctionEnding, feed[2].Type)

	// A completed session is over for bidding, but its slots are free again.
	_, err = env.bid(2, "acme", "1")
	require.NoError(t, err)
}

func TestEndSession_KeepsOperatorAcceptedWinner(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	session := env.activeSession(t, []int64{1}, sessionOpts{})
	bid := env.mustBid(t, 1, "acme", "100")

	_, err := env.service.AcceptBid(context.Background(), bid.ID)
	require.NoError(t, err)
	_, err = env.service.EndSession(context.Background(), session.ID)
	require.NoError(t, err)

	winners, err := env.service.Winners(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	require.Equal(t, bid.ID, winners[0].BidID)
	require.Equal(t, domain.SlotOccupied, env.slot(t, 1).Status)
}

func TestCancelSession(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	env.provisionSlot(t, 2, "0")
	session := env.activeSession(t, []int64{1, 2}, sessionOpts{})
	ctx := context.Background()

	low := env.mustBid(t, 1, "acme", "100")
	high := env.mustBid(t, 1, "beta", "200")
	accepted := env.mustBid(t, 2, "gamma", "300")
	_, err := env.service.AcceptBid(ctx, accepted.ID)
	require.NoError(t, err)

	cancelled, err := env.service.CancelSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionCancelled, cancelled.Status)

	released := env.slot(t, 1)
	require.Equal(t, domain.SlotAvailable, released.Status)
	require.True(t, released.CurrentBid.IsZero())
	require.Empty(t, released.SessionID)
	require.Equal(t, domain.BidOutbid, env.bidStatus(t, low.ID))
	require.Equal(t, domain.BidOutbid, env.bidStatus(t, high.ID))
	env.requireSlotInvariants(t, 1)

	occupied := env.slot(t, 2)
	require.Equal(t, domain.SlotOccupied, occupied.Status)
	require.Equal(t, domain.BidWon, env.bidStatus(t, accepted.ID))

	winners, err := env.service.Winners(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, winners, 1)

	_, err = env.service.EndSession(ctx, session.ID)
	require.ErrorIs(t, err, domain.ErrInvalidSessionTransition)

	// Released slots can join a new session.
	next := env.createSession(t, []int64{1}, sessionOpts{})
	require.Equal(t, next.ID, env.slot(t, 1).SessionID)
}

func TestCancelSession_Scheduled(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	session := env.createSession(t, []int64{1}, sessionOpts{})

	_, err := env.service.CancelSession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Empty(t, env.slot(t, 1).SessionID)

	_, err = env.service.StartSession(context.Background(), session.ID)
	requireTransition(t, err, domain.SessionCancelled, domain.SessionActive)
}

func TestAutoExtend_Conditions(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	env.provisionSlot(t, 2, "0")
	ctx := context.Background()

	plain := env.activeSession(t, []int64{1}, sessionOpts{maxExtensions: 2, extendDuration: time.Minute})
	auto := env.activeSession(t, []int64{2}, sessionOpts{autoExtend: true, maxExtensions: 2, extendDuration: time.Minute})

	tests := []struct {
		name     string
		session  *domain.AuctionSession
		bidTime  time.Time
		extended bool
	}{
		{"auto-extend disabled", plain, plain.EndTime.Add(-time.Second), false},
		{"outside window", auto, auto.EndTime.Add(-time.Minute), false},
		{"after end time", auto, auto.EndTime.Add(time.Second), false},
		{"inside window", auto, auto.EndTime.Add(-5 * time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extended, err := env.extendForBid(t, tt.session.ID, tt.bidTime)
			require.NoError(t, err)
			require.Equal(t, tt.extended, extended)
		})
	}

	current, err := env.service.GetSession(ctx, auto.ID)
	require.NoError(t, err)
	require.True(t, current.EndTime.Equal(auto.EndTime.Add(time.Minute)))
	require.Equal(t, 1, current.ExtensionsUsed)

	disabled := newTestEnvWithConfig(t, SessionControllerConfig{MaxTxRetries: 1})
	disabled.provisionSlot(t, 1, "0")
	late := disabled.activeSession(t, []int64{1}, sessionOpts{autoExtend: true, maxExtensions: 2, extendDuration: time.Minute})
	extended, err := disabled.extendForBid(t, late.ID, late.EndTime.Add(-time.Second))
	require.NoError(t, err)
	require.False(t, extended)
}

func TestAutoExtend_CeilingReached(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	session := env.activeSession(t, []int64{1}, sessionOpts{autoExtend: true, maxExtensions: 1, extendDuration: time.Minute})

	extended, err := env.extendForBid(t, session.ID, session.EndTime.Add(-time.Second))
	require.NoError(t, err)
	require.True(t, extended)

	extended, err = env.extendForBid(t, session.ID, session.EndTime.Add(time.Minute-time.Second))
	require.NoError(t, err)
	require.False(t, extended)
}

func TestEnd_SucceedsWhileBidding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slotIDs := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	for _, id := range slotIDs {
		env.provisionSlot(t, id, "0")
	}
	session := env.activeSession(t, slotIDs, sessionOpts{increment: "1"})

	var amount int64
	stop := make(chan struct{})
	errs := make(chan error, 16)
	var wg sync.WaitGroup
	for _, company := range []string{"acme", "beta", "gamma"} {
		wg.Add(1)
		go func(company string) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				next := atomic.AddInt64(&amount, 10)
				_, err := env.bid(slotIDs[i%len(slotIDs)], company, fmt.Sprintf("%d", next))
				if err != nil && !errors.Is(err, domain.ErrBidRejected) {
					select {
					case errs <- err:
					default:
					}
				}
			}
		}(company)
	}

	require.Eventually(t, func() bool {
		bids, err := env.store.ListBids(ctx, domain.BidFilter{SessionID: session.ID})
		return err == nil && len(bids) >= 3*len(slotIDs)
	}, 5*time.Second, 5*time.Millisecond)

	ended, err := env.service.EndSession(ctx, session.ID)

	// Keep bidding briefly against the resolved slots.
	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
	close(errs)

	require.NoError(t, err)
	require.Equal(t, domain.SessionCompleted, ended.Status)
	require.NotNil(t, ended.ActualEndTime)
	for err := range errs {
		require.NoError(t, err)
	}

	// Every bid landed entirely before or entirely after resolution: bids in
	// the session predate the end, later ones are sessionless, and each slot's
	// winner is its highest session bid.
	winners := 0
	for _, id := range slotIDs {
		bids, err := env.store.ListBids(ctx, domain.BidFilter{SlotID: id})
		require.NoError(t, err)

		var best *domain.Bid
		var won []*domain.Bid
		for _, b := range bids {
			if b.SessionID == "" {
				require.True(t, b.CreatedAt.After(*ended.ActualEndTime), "sessionless bid %s placed before the end", b.ID)
				continue
			}
			require.Equal(t, session.ID, b.SessionID)
			require.True(t, b.CreatedAt.Before(*ended.ActualEndTime), "session bid %s placed after the end", b.ID)
			require.NotEqual(t, domain.BidActive, b.Status)
			if best == nil || b.Amount.GreaterThan(best.Amount) {
				best = b
			}
			if b.Status == domain.BidWon {
				won = append(won, b)
			}
		}

		slot := env.slot(t, id)
		require.Empty(t, slot.SessionID)
		if best == nil {
			require.Empty(t, won)
			continue
		}
		winners++
		require.Len(t, won, 1)
		require.Equal(t, best.ID, won[0].ID)
		require.Equal(t, domain.SlotOccupied, slot.Status)
		require.Equal(t, best.CompanyID, slot.CurrentSponsor)
		require.Equal(t, best.ID, slot.CurrentBidID)
		env.requireSlotInvariants(t, id)
	}

	resolved, err := env.service.Winners(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, resolved, winners)
}
