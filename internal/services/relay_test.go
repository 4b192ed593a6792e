package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"slot-auction/internal/domain"
	"slot-auction/internal/infrastructure/memory"
	"slot-auction/pkg/logger"
	"slot-auction/pkg/metrics"
)

type recordingPublisher struct {
	mu       sync.Mutex
	received []*domain.Notification
	failOn   string
}

func (p *recordingPublisher) PublishNotification(ctx context.Context, n *domain.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n.ID == p.failOn {
		return errors.New("sink unavailable")
	}
	p.received = append(p.received, n)
	return nil
}

func (p *recordingPublisher) seqs() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int64, 0, len(p.received))
	for _, n := range p.received {
		out = append(out, n.Seq)
	}
	return out
}

type fakeLeader struct {
	leading  bool
	canLead  bool
	err      error
	attempts int
}

func (l *fakeLeader) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	l.attempts++
	if l.err != nil {
		return false, l.err
	}
	l.leading = l.canLead
	return l.leading, nil
}

func (l *fakeLeader) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return l.leading, l.err
}

func (l *fakeLeader) ReleaseLeadership(ctx context.Context, instanceID string) error {
	l.leading = false
	return nil
}

// seedOutbox commits count notifications and returns their IDs in order.
func seedOutbox(t *testing.T, store *memory.Store, count int) []string {
	t.Helper()
	dispatcher := NewNotificationDispatcher(newTestClock())
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.LedgerTx) error {
			return dispatcher.Notify(ctx, tx, NotifyRequest{
				SessionID: "session_1",
				Type:      domain.NotifyBidPlaced,
				Scope:     domain.ScopeSession,
				Message:   "bid",
			})
		})
		require.NoError(t, err)
	}
	pending, err := store.PendingNotifications(context.Background(), 0)
	require.NoError(t, err)
	for _, n := range pending {
		ids = append(ids, n.ID)
	}
	return ids
}

func newTestRelay(store *memory.Store, sinks []NotificationSink, leader domain.LeaderElection, batch int) *OutboxRelay {
	return NewOutboxRelay(store, sinks, leader, newTestClock(), OutboxRelayConfig{
		Schedule:   "*/1 * * * * *",
		BatchSize:  batch,
		InstanceID: "relay-1",
	}, metrics.New(), logger.NewNop())
}

func TestOutboxRelay_DeliversInOrder(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store, 5)

	gateway := &recordingPublisher{}
	queue := &recordingPublisher{}
	relay := newTestRelay(store, []NotificationSink{
		{Name: "redis", Publisher: gateway},
		{Name: "rabbitmq", Publisher: queue},
	}, nil, 3)

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	require.Equal(t, []int64{1, 2, 3, 4, 5}, gateway.seqs())
	require.Equal(t, []int64{1, 2, 3, 4, 5}, queue.seqs())

	pending, err := store.PendingNotifications(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestOutboxRelay_FailureStopsBatch(t *testing.T) {
	store := memory.NewStore()
	ids := seedOutbox(t, store, 4)

	sink := &recordingPublisher{failOn: ids[2]}
	relay := newTestRelay(store, []NotificationSink{{Name: "redis", Publisher: sink}}, nil, 10)

	n, err := relay.RelayOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), ids[2])
	require.Equal(t, 2, n)

	pending, err := store.PendingNotifications(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, ids[2], pending[0].ID)

	// Once the sink recovers, delivery resumes from the failed notification.
	sink.mu.Lock()
	sink.failOn = ""
	sink.mu.Unlock()
	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []int64{1, 2, 3, 4}, sink.seqs())
}

func TestOutboxRelay_OnlyLeaderRelays(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store, 2)
	sink := &recordingPublisher{}

	follower := &fakeLeader{canLead: false}
	relay := newTestRelay(store, []NotificationSink{{Name: "redis", Publisher: sink}}, follower, 10)
	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 1, follower.attempts)
	require.Empty(t, sink.seqs())

	follower.canLead = true
	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// A sitting leader does not re-acquire.
	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 2, follower.attempts)
}

func TestOutboxRelay_LeaderError(t *testing.T) {
	store := memory.NewStore()
	seedOutbox(t, store, 1)

	relay := newTestRelay(store, nil, &fakeLeader{err: errors.New("redis down")}, 10)
	n, err := relay.RelayOnce(context.Background())
	require.Error(t, err)
	require.Zero(t, n)
}

func TestOutboxRelay_StartRejectsBadSchedule(t *testing.T) {
	relay := NewOutboxRelay(memory.NewStore(), nil, nil, newTestClock(), OutboxRelayConfig{Schedule: "not a schedule"}, nil, logger.NewNop())
	require.Error(t, relay.Start(context.Background()))
}

func TestOutboxRelay_StartStop(t *testing.T) {
	relay := newTestRelay(memory.NewStore(), nil, nil, 10)
	require.NoError(t, relay.Start(context.Background()))
	require.NoError(t, relay.Stop())
}

func TestOutboxRelay_RelaysLedgerNotifications(t *testing.T) {
	env := newTestEnv(t)
	env.provisionSlot(t, 1, "0")
	session := env.activeSession(t, []int64{1}, sessionOpts{})
	env.mustBid(t, 1, "acme", "10")
	env.mustBid(t, 1, "beta", "20")
	_, err := env.service.EndSession(context.Background(), session.ID)
	require.NoError(t, err)

	sink := &recordingPublisher{}
	relay := newTestRelay(env.store, []NotificationSink{{Name: "redis", Publisher: sink}}, nil, 100)
	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)

	var types []domain.NotificationType
	for _, received := range sink.received {
		types = append(types, received.Type)
	}
	require.Equal(t, []domain.NotificationType{
		domain.NotifyAuctionStarting,
		domain.NotifyBidPlaced,
		domain.NotifyBidPlaced,
		domain.NotifyBidOutbid,
		domain.NotifyAuctionEnding,
		domain.NotifyAuctionCompleted,
		domain.NotifyAuctionCompleted,
	}, types)
	require.Equal(t, len(types), n)
}
