package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"slot-auction/internal/domain"
)

func TestProvisionSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	slot := env.provisionSlot(t, 7, "12.345")
	require.Equal(t, domain.SlotAvailable, slot.Status)
	require.True(t, slot.ReservePrice.Equal(dec("12.35")))

	_, err := env.service.ProvisionSlot(ctx, ProvisionSlotRequest{ID: 7, Name: "dup"})
	require.ErrorIs(t, err, domain.ErrSlotExists)

	for _, req := range []ProvisionSlotRequest{
		{ID: 0, Name: "zero"},
		{ID: 8, Name: " "},
		{ID: 8, Name: "negative", ReservePrice: dec("-1")},
	} {
		_, err := env.service.ProvisionSlot(ctx, req)
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	}

	slots, err := env.service.ListSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)

	_, err = env.service.GetSlot(ctx, 8)
	require.ErrorIs(t, err, domain.ErrSlotNotFound)
}

func TestListBids(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provisionSlot(t, 1, "0")
	env.provisionSlot(t, 2, "0")

	first := env.mustBid(t, 1, "acme", "10")
	second := env.mustBid(t, 1, "beta", "20")
	other := env.mustBid(t, 2, "acme", "5")

	all, err := env.service.ListBids(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	history, err := env.service.ListBids(ctx, 1, "")
	require.NoError(t, err)
	require.Equal(t, []string{first.ID, second.ID}, bidIDs(history))

	active, err := env.service.ListBids(ctx, 0, domain.BidActive)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{second.ID, other.ID}, bidIDs(active))

	_, err = env.service.ListBids(ctx, 0, "PENDING")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err := env.service.GetBid(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BidOutbid, got.Status)

	_, err = env.service.GetBid(ctx, "bid_missing")
	require.ErrorIs(t, err, domain.ErrBidNotFound)
}

func bidIDs(bids []*domain.Bid) []string {
	ids := make([]string, 0, len(bids))
	for _, b := range bids {
		ids = append(ids, b.ID)
	}
	return ids
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provisionSlot(t, 1, "0")
	env.provisionSlot(t, 2, "0")

	scheduled := env.createSession(t, []int64{1}, sessionOpts{})
	active := env.activeSession(t, []int64{2}, sessionOpts{})

	all, err := env.service.ListSessions(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	running, err := env.service.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, running, 1)
	require.Equal(t, active.ID, running[0].ID)

	waiting, err := env.service.ListSessions(ctx, domain.SessionScheduled)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	require.Equal(t, scheduled.ID, waiting[0].ID)

	_, err = env.service.ListSessions(ctx, "RUNNING")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSessionQueries_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.GetSession(ctx, "session_missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = env.service.Winners(ctx, "session_missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = env.service.ListNotifications(ctx, "session_missing", 10)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestWinners_BeforeEnd(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	session := env.activeSession(t, []int64{1}, sessionOpts{})
	env.mustBid(t, 1, "acme", "10")

	winners, err := env.service.Winners(context.Background(), session.ID)
	require.NoError(t, err)
	require.Empty(t, winners)
}

func TestListNotifications_Limit(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	session := env.activeSession(t, []int64{1}, sessionOpts{})
	for _, amount := range []string{"10", "20", "30"} {
		env.mustBid(t, 1, "acme", amount)
	}

	feed, err := env.service.ListNotifications(context.Background(), session.ID, 2)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	require.Contains(t, feed[0].Message, "30.00")
	require.Contains(t, feed[1].Message, "20.00")
}
