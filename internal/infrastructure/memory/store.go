package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"slot-auction/internal/domain"
)

const defaultLockTimeout = 5 * time.Second

// Store is an in-process LedgerStore. Transactions take per-row shared or
// exclusive locks that are held until commit or rollback, and buffer their
// writes; a commit applies the whole buffer at once, so readers only ever see
// committed state.
type Store struct {
	mu            sync.RWMutex
	slots         map[int64]*domain.Slot
	sessions      map[string]*domain.AuctionSession
	bids          map[string]*domain.Bid
	bidsBySlot    map[int64][]string
	notifications []*domain.Notification
	seq           int64

	locks       *lockTable
	lockTimeout time.Duration
}

type Option func(*Store)

// WithLockTimeout bounds how long a transaction waits for a row lock before
// failing with ErrTxConflict.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		slots:       make(map[int64]*domain.Slot),
		sessions:    make(map[string]*domain.AuctionSession),
		bids:        make(map[string]*domain.Bid),
		bidsBySlot:  make(map[int64][]string),
		locks:       newLockTable(),
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	t := &tx{
		store:    s,
		held:     make(map[string]bool),
		slots:    make(map[int64]*domain.Slot),
		sessions: make(map[string]*domain.AuctionSession),
		bids:     make(map[string]*domain.Bid),
	}
	defer t.releaseLocks()

	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) GetSlot(ctx context.Context, slotID int64) (*domain.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return nil, domain.ErrSlotNotFound
	}
	return copySlot(slot), nil
}

func (s *Store) ListSlots(ctx context.Context) ([]*domain.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots := make([]*domain.Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		slots = append(slots, copySlot(slot))
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySession(session), nil
}

func (s *Store) ListSessions(ctx context.Context, status domain.SessionStatus) ([]*domain.AuctionSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*domain.AuctionSession, 0)
	for _, session := range s.sessions {
		if status != "" && session.Status != status {
			continue
		}
		sessions = append(sessions, copySession(session))
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].StartTime.Before(sessions[j].StartTime)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

func (s *Store) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bid, ok := s.bids[bidID]
	if !ok {
		return nil, domain.ErrBidNotFound
	}
	return copyBid(bid), nil
}

func (s *Store) ListBids(ctx context.Context, filter domain.BidFilter) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bids := make([]*domain.Bid, 0)
	for _, bid := range s.bids {
		if filter.SlotID != 0 && bid.SlotID != filter.SlotID {
			continue
		}
		if filter.SessionID != "" && bid.SessionID != filter.SessionID {
			continue
		}
		if filter.Status != "" && bid.Status != filter.Status {
			continue
		}
		bids = append(bids, copyBid(bid))
	}
	sortBids(bids)
	return bids, nil
}

// ListNotifications returns the session's notifications newest first. A
// non-positive limit returns all of them.
func (s *Store) ListNotifications(ctx context.Context, sessionID string, limit int) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Notification, 0)
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.SessionID != sessionID {
			continue
		}
		out = append(out, copyNotification(n))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) PendingNotifications(ctx context.Context, limit int) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Notification, 0)
	for _, n := range s.notifications {
		if n.DispatchedAt != nil {
			continue
		}
		out = append(out, copyNotification(n))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkDispatched(ctx context.Context, notificationIDs []string, at time.Time) error {
	ids := make(map[string]struct{}, len(notificationIDs))
	for _, id := range notificationIDs {
		ids[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if _, ok := ids[n.ID]; ok && n.DispatchedAt == nil {
			dispatched := at
			n.DispatchedAt = &dispatched
		}
	}
	return nil
}

type tx struct {
	store *Store
	// held maps a lock key to whether it is held exclusively.
	held map[string]bool

	slots         map[int64]*domain.Slot
	insertedSlots []int64
	sessions      map[string]*domain.AuctionSession
	bids          map[string]*domain.Bid
	insertedBids  []string
	notifications []*domain.Notification
}

func slotKey(id int64) string     { return fmt.Sprintf("slot:%d", id) }
func sessionKey(id string) string { return "session:" + id }
func bidKey(id string) string     { return "bid:" + id }

func (t *tx) lock(ctx context.Context, key string, exclusive bool) error {
	if held, ok := t.held[key]; ok {
		if exclusive && !held {
			// Upgrading a shared lock could deadlock against another reader.
			return domain.ErrTxConflict
		}
		return nil
	}
	if err := t.store.locks.get(key).acquire(ctx, exclusive, t.store.lockTimeout); err != nil {
		return err
	}
	t.held[key] = exclusive
	return nil
}

func (t *tx) releaseLocks() {
	for key, exclusive := range t.held {
		t.store.locks.get(key).release(exclusive)
	}
	t.held = nil
}

func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range t.insertedSlots {
		if _, exists := s.slots[id]; exists {
			return domain.ErrSlotExists
		}
	}
	for id, slot := range t.slots {
		s.slots[id] = slot
	}
	for id, session := range t.sessions {
		s.sessions[id] = session
	}
	for _, id := range t.insertedBids {
		s.bidsBySlot[t.bids[id].SlotID] = append(s.bidsBySlot[t.bids[id].SlotID], id)
	}
	for id, bid := range t.bids {
		s.bids[id] = bid
	}
	for _, n := range t.notifications {
		s.seq++
		n.Seq = s.seq
		s.notifications = append(s.notifications, n)
	}
	return nil
}

func (t *tx) GetSlot(ctx context.Context, slotID int64) (*domain.Slot, error) {
	if slot, ok := t.slots[slotID]; ok {
		return copySlot(slot), nil
	}
	return t.store.GetSlot(ctx, slotID)
}

func (t *tx) GetSlotForUpdate(ctx context.Context, slotID int64) (*domain.Slot, error) {
	if err := t.lock(ctx, slotKey(slotID), true); err != nil {
		return nil, err
	}
	return t.GetSlot(ctx, slotID)
}

func (t *tx) InsertSlot(ctx context.Context, slot *domain.Slot) error {
	if err := t.lock(ctx, slotKey(slot.ID), true); err != nil {
		return err
	}
	if _, err := t.GetSlot(ctx, slot.ID); err == nil {
		return domain.ErrSlotExists
	}
	t.slots[slot.ID] = copySlot(slot)
	t.insertedSlots = append(t.insertedSlots, slot.ID)
	return nil
}

func (t *tx) UpdateSlot(ctx context.Context, slot *domain.Slot) error {
	if _, err := t.GetSlot(ctx, slot.ID); err != nil {
		return err
	}
	t.slots[slot.ID] = copySlot(slot)
	return nil
}

func (t *tx) getSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	if session, ok := t.sessions[sessionID]; ok {
		return copySession(session), nil
	}
	return t.store.GetSession(ctx, sessionID)
}

func (t *tx) GetSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return t.getSession(ctx, sessionID)
}

func (t *tx) GetSessionForShare(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	if err := t.lock(ctx, sessionKey(sessionID), false); err != nil {
		return nil, err
	}
	return t.getSession(ctx, sessionID)
}

func (t *tx) GetSessionForUpdate(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	if err := t.lock(ctx, sessionKey(sessionID), true); err != nil {
		return nil, err
	}
	return t.getSession(ctx, sessionID)
}

func (t *tx) InsertSession(ctx context.Context, session *domain.AuctionSession) error {
	if err := t.lock(ctx, sessionKey(session.ID), true); err != nil {
		return err
	}
	t.sessions[session.ID] = copySession(session)
	return nil
}

func (t *tx) UpdateSession(ctx context.Context, session *domain.AuctionSession) error {
	if _, err := t.getSession(ctx, session.ID); err != nil {
		return err
	}
	t.sessions[session.ID] = copySession(session)
	return nil
}

func (t *tx) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	if bid, ok := t.bids[bidID]; ok {
		return copyBid(bid), nil
	}
	return t.store.GetBid(ctx, bidID)
}

func (t *tx) GetBidForUpdate(ctx context.Context, bidID string) (*domain.Bid, error) {
	if err := t.lock(ctx, bidKey(bidID), true); err != nil {
		return nil, err
	}
	return t.GetBid(ctx, bidID)
}

// slotBids merges the committed bids of a slot with this transaction's writes.
func (t *tx) slotBids(slotID int64) []*domain.Bid {
	t.store.mu.RLock()
	ids := append([]string(nil), t.store.bidsBySlot[slotID]...)
	committed := make(map[string]*domain.Bid, len(ids))
	for _, id := range ids {
		committed[id] = t.store.bids[id]
	}
	t.store.mu.RUnlock()

	bids := make([]*domain.Bid, 0, len(ids)+len(t.insertedBids))
	for _, id := range ids {
		if bid, ok := t.bids[id]; ok {
			bids = append(bids, bid)
			continue
		}
		bids = append(bids, committed[id])
	}
	for _, id := range t.insertedBids {
		if bid := t.bids[id]; bid.SlotID == slotID {
			bids = append(bids, bid)
		}
	}
	return bids
}

func (t *tx) HighestBid(ctx context.Context, slotID int64, sessionID string, statuses ...domain.BidStatus) (*domain.Bid, error) {
	var best *domain.Bid
	for _, bid := range t.slotBids(slotID) {
		if bid.SessionID != sessionID || !hasStatus(bid.Status, statuses) {
			continue
		}
		if best == nil || bid.Amount.GreaterThan(best.Amount) ||
			(bid.Amount.Equal(best.Amount) && bid.CreatedAt.Before(best.CreatedAt)) {
			best = bid
		}
	}
	if best == nil {
		return nil, domain.ErrBidNotFound
	}
	return copyBid(best), nil
}

func (t *tx) InsertBid(ctx context.Context, bid *domain.Bid) error {
	if _, err := t.GetBid(ctx, bid.ID); err == nil {
		return fmt.Errorf("memory: duplicate bid id %s", bid.ID)
	}
	t.bids[bid.ID] = copyBid(bid)
	t.insertedBids = append(t.insertedBids, bid.ID)
	return nil
}

func (t *tx) UpdateBidStatus(ctx context.Context, bidID string, status domain.BidStatus, at time.Time) error {
	bid, err := t.GetBid(ctx, bidID)
	if err != nil {
		return err
	}
	bid.Status = status
	bid.UpdatedAt = at
	t.bids[bidID] = bid
	return nil
}

func (t *tx) OutbidActiveBids(ctx context.Context, slotID int64, exceptBidID string, at time.Time) (int64, error) {
	var n int64
	for _, bid := range t.slotBids(slotID) {
		if bid.Status != domain.BidActive || bid.ID == exceptBidID {
			continue
		}
		updated := copyBid(bid)
		updated.Status = domain.BidOutbid
		updated.UpdatedAt = at
		t.bids[bid.ID] = updated
		n++
	}
	return n, nil
}

func (t *tx) AppendNotification(ctx context.Context, n *domain.Notification) error {
	t.notifications = append(t.notifications, copyNotification(n))
	return nil
}

func hasStatus(status domain.BidStatus, statuses []domain.BidStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func sortBids(bids []*domain.Bid) {
	sort.Slice(bids, func(i, j int) bool {
		if !bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].CreatedAt.Before(bids[j].CreatedAt)
		}
		return bids[i].Amount.LessThan(bids[j].Amount)
	})
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copySlot(s *domain.Slot) *domain.Slot {
	c := *s
	c.LastBidTime = copyTime(s.LastBidTime)
	return &c
}

func copySession(s *domain.AuctionSession) *domain.AuctionSession {
	c := *s
	c.ActualStartTime = copyTime(s.ActualStartTime)
	c.ActualEndTime = copyTime(s.ActualEndTime)
	c.SlotIDs = append([]int64(nil), s.SlotIDs...)
	return &c
}

func copyBid(b *domain.Bid) *domain.Bid {
	c := *b
	return &c
}

func copyNotification(n *domain.Notification) *domain.Notification {
	c := *n
	c.DispatchedAt = copyTime(n.DispatchedAt)
	return &c
}
