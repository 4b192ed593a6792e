package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"slot-auction/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedSlot(t *testing.T, s *Store, id int64) {
	t.Helper()
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx domain.LedgerTx) error {
		return tx.InsertSlot(ctx, &domain.Slot{
			ID:           id,
			Name:         "slot",
			ReservePrice: decimal.NewFromInt(100),
			Status:       domain.SlotAvailable,
			CreatedAt:    t0,
			UpdatedAt:    t0,
		})
	})
	require.NoError(t, err)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	s := NewStore()
	seedSlot(t, s, 1)
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx domain.LedgerTx) error {
		slot, err := tx.GetSlotForUpdate(ctx, 1)
		require.NoError(t, err)
		slot.CurrentBid = decimal.NewFromInt(500)
		slot.CurrentBidder = "acme"
		require.NoError(t, tx.UpdateSlot(ctx, slot))
		require.NoError(t, tx.InsertBid(ctx, &domain.Bid{ID: "bid_1", SlotID: 1, Amount: decimal.NewFromInt(500), Status: domain.BidActive}))
		require.NoError(t, tx.AppendNotification(ctx, &domain.Notification{ID: "ntf_1", SessionID: "s"}))

		// uncommitted writes are visible inside the transaction only
		inTx, err := tx.GetSlot(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, "acme", inTx.CurrentBidder)
		outside, err := s.GetSlot(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, "", outside.CurrentBidder)
		return boom
	})
	require.ErrorIs(t, err, boom)

	slot, err := s.GetSlot(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, slot.CurrentBid.IsZero())
	_, err = s.GetBid(context.Background(), "bid_1")
	require.ErrorIs(t, err, domain.ErrBidNotFound)
	pending, err := s.PendingNotifications(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestStore_InsertSlotTwice(t *testing.T) {
	s := NewStore()
	seedSlot(t, s, 1)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx domain.LedgerTx) error {
		return tx.InsertSlot(ctx, &domain.Slot{ID: 1, Status: domain.SlotAvailable})
	})
	require.ErrorIs(t, err, domain.ErrSlotExists)
}

func TestStore_HighestBidAndOutbid(t *testing.T) {
	s := NewStore()
	seedSlot(t, s, 1)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		for i, amount := range []int64{100, 300, 200} {
			bid := &domain.Bid{
				ID:        []string{"a", "b", "c"}[i],
				SlotID:    1,
				Amount:    decimal.NewFromInt(amount),
				Status:    domain.BidActive,
				CreatedAt: t0.Add(time.Duration(i) * time.Second),
			}
			if err := tx.InsertBid(ctx, bid); err != nil {
				return err
			}
		}
		n, err := tx.OutbidActiveBids(ctx, 1, "b", t0)
		require.NoError(t, err)
		require.Equal(t, int64(2), n)
		return nil
	})
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		best, err := tx.HighestBid(ctx, 1, "", domain.BidOutbid)
		require.NoError(t, err)
		require.Equal(t, "c", best.ID)

		best, err = tx.HighestBid(ctx, 1, "", domain.BidActive, domain.BidWon)
		require.NoError(t, err)
		require.Equal(t, "b", best.ID)

		_, err = tx.HighestBid(ctx, 2, "", domain.BidActive)
		require.ErrorIs(t, err, domain.ErrBidNotFound)
		return nil
	})
	require.NoError(t, err)

	bids, err := s.ListBids(ctx, domain.BidFilter{SlotID: 1})
	require.NoError(t, err)
	require.Len(t, bids, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{bids[0].ID, bids[1].ID, bids[2].ID})

	outbid, err := s.ListBids(ctx, domain.BidFilter{SlotID: 1, Status: domain.BidOutbid})
	require.NoError(t, err)
	require.Len(t, outbid, 2)
}

func TestStore_ExclusiveLockSerializesWriters(t *testing.T) {
	s := NewStore()
	seedSlot(t, s, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
				slot, err := tx.GetSlotForUpdate(ctx, 1)
				if err != nil {
					return err
				}
				slot.TotalBids++
				return tx.UpdateSlot(ctx, slot)
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	slot, err := s.GetSlot(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 20, slot.TotalBids)
}

func TestStore_LockTimeoutIsConflict(t *testing.T) {
	s := NewStore(WithLockTimeout(20 * time.Millisecond))
	seedSlot(t, s, 1)
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
			_, err := tx.GetSlotForUpdate(ctx, 1)
			close(locked)
			<-release
			return err
		})
	}()
	<-locked

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := tx.GetSlotForUpdate(ctx, 1)
		return err
	})
	close(release)
	require.ErrorIs(t, err, domain.ErrTxConflict)
}

func TestStore_SharedLocksDoNotBlockEachOther(t *testing.T) {
	s := NewStore(WithLockTimeout(50 * time.Millisecond))
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		return tx.InsertSession(ctx, &domain.AuctionSession{ID: "session_1", Status: domain.SessionActive})
	}))

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
			_, err := tx.GetSessionForShare(ctx, "session_1")
			close(locked)
			<-release
			return err
		})
	}()
	<-locked
	defer close(release)

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := tx.GetSessionForShare(ctx, "session_1")
		return err
	})
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := tx.GetSessionForUpdate(ctx, "session_1")
		return err
	})
	require.ErrorIs(t, err, domain.ErrTxConflict)
}

func TestStore_WaitingWriterBlocksNewReaders(t *testing.T) {
	s := NewStore(WithLockTimeout(time.Second))
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		return tx.InsertSession(ctx, &domain.AuctionSession{ID: "session_1", Status: domain.SessionActive})
	}))

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
			_, err := tx.GetSessionForShare(ctx, "session_1")
			close(locked)
			<-release
			return err
		})
	}()
	<-locked

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
			_, err := tx.GetSessionForUpdate(ctx, "session_1")
			return err
		})
	}()

	lock := s.locks.get(sessionKey("session_1"))
	require.Eventually(t, func() bool {
		lock.mu.Lock()
		defer lock.mu.Unlock()
		return lock.writersWaiting == 1
	}, time.Second, time.Millisecond)

	readCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := s.WithinTx(readCtx, func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := tx.GetSessionForShare(ctx, "session_1")
		return err
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-writerDone)

	lock.mu.Lock()
	defer lock.mu.Unlock()
	require.Zero(t, lock.writersWaiting)
	require.False(t, lock.writer)
	require.Zero(t, lock.readers)
}

func TestStore_TimedOutWriterLetsReadersIn(t *testing.T) {
	s := NewStore(WithLockTimeout(30 * time.Millisecond))
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		return tx.InsertSession(ctx, &domain.AuctionSession{ID: "session_1", Status: domain.SessionActive})
	}))

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
			_, err := tx.GetSessionForShare(ctx, "session_1")
			close(locked)
			<-release
			return err
		})
	}()
	<-locked
	defer close(release)

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := tx.GetSessionForUpdate(ctx, "session_1")
		return err
	})
	require.ErrorIs(t, err, domain.ErrTxConflict)

	err = s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := tx.GetSessionForShare(ctx, "session_1")
		return err
	})
	require.NoError(t, err)
}

func TestStore_NotificationOutbox(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		for _, id := range []string{"n1", "n2", "n3"} {
			if err := tx.AppendNotification(ctx, &domain.Notification{ID: id, SessionID: "s1"}); err != nil {
				return err
			}
		}
		return nil
	}))

	pending, err := s.PendingNotifications(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, int64(1), pending[0].Seq)
	require.Equal(t, int64(2), pending[1].Seq)

	require.NoError(t, s.MarkDispatched(ctx, []string{"n1", "n2"}, t0))
	pending, err = s.PendingNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "n3", pending[0].ID)

	feed, err := s.ListNotifications(ctx, "s1", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"n3", "n2"}, []string{feed[0].ID, feed[1].ID})
	require.NotNil(t, feed[1].DispatchedAt)
}
