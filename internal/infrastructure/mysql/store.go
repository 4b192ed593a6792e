package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
)

// MySQL server error numbers that mean the transaction lost a lock race.
const (
	errLockWaitTimeout uint16 = 1205
	errDeadlock        uint16 = 1213
	errDuplicateEntry  uint16 = 1062
	errNoReferencedRow uint16 = 1452
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// MySQLStore is the durable LedgerStore. Row locks come from SELECT ... FOR
// UPDATE / FOR SHARE inside READ COMMITTED transactions.
type MySQLStore struct {
	db  *sql.DB
	log logger.Logger
}

func NewMySQLStore(db *sql.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, log: log}
}

func (s *MySQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error("Failed to roll back transaction", "error", rbErr)
		}
	}()

	if err := fn(ctx, &mysqlTx{q: sqlTx}); err != nil {
		return classify(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

func (s *MySQLStore) GetSlot(ctx context.Context, slotID int64) (*domain.Slot, error) {
	return getSlot(ctx, s.db, selectSlot+` WHERE id = ?`, slotID)
}

func (s *MySQLStore) ListSlots(ctx context.Context) ([]*domain.Slot, error) {
	return listSlots(ctx, s.db)
}

func (s *MySQLStore) GetSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return getSession(ctx, s.db, selectSession+` WHERE id = ?`, sessionID)
}

func (s *MySQLStore) ListSessions(ctx context.Context, status domain.SessionStatus) ([]*domain.AuctionSession, error) {
	return listSessions(ctx, s.db, status)
}

func (s *MySQLStore) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	return getBid(ctx, s.db, selectBid+` WHERE id = ?`, bidID)
}

func (s *MySQLStore) ListBids(ctx context.Context, filter domain.BidFilter) ([]*domain.Bid, error) {
	return listBids(ctx, s.db, filter)
}

func (s *MySQLStore) ListNotifications(ctx context.Context, sessionID string, limit int) ([]*domain.Notification, error) {
	return listNotifications(ctx, s.db, sessionID, limit)
}

func (s *MySQLStore) PendingNotifications(ctx context.Context, limit int) ([]*domain.Notification, error) {
	return pendingNotifications(ctx, s.db, limit)
}

func (s *MySQLStore) MarkDispatched(ctx context.Context, notificationIDs []string, at time.Time) error {
	return markDispatched(ctx, s.db, notificationIDs, at)
}

// mysqlTx implements domain.LedgerTx on one *sql.Tx.
type mysqlTx struct {
	q queryer
}

func (t *mysqlTx) GetSlot(ctx context.Context, slotID int64) (*domain.Slot, error) {
	return getSlot(ctx, t.q, selectSlot+` WHERE id = ?`, slotID)
}

func (t *mysqlTx) GetSlotForUpdate(ctx context.Context, slotID int64) (*domain.Slot, error) {
	return getSlot(ctx, t.q, selectSlot+` WHERE id = ? FOR UPDATE`, slotID)
}

func (t *mysqlTx) InsertSlot(ctx context.Context, slot *domain.Slot) error {
	return insertSlot(ctx, t.q, slot)
}

func (t *mysqlTx) UpdateSlot(ctx context.Context, slot *domain.Slot) error {
	return updateSlot(ctx, t.q, slot)
}

func (t *mysqlTx) GetSession(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return getSession(ctx, t.q, selectSession+` WHERE id = ?`, sessionID)
}

func (t *mysqlTx) GetSessionForShare(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return getSession(ctx, t.q, selectSession+` WHERE id = ? FOR SHARE`, sessionID)
}

func (t *mysqlTx) GetSessionForUpdate(ctx context.Context, sessionID string) (*domain.AuctionSession, error) {
	return getSession(ctx, t.q, selectSession+` WHERE id = ? FOR UPDATE`, sessionID)
}

func (t *mysqlTx) InsertSession(ctx context.Context, session *domain.AuctionSession) error {
	return insertSession(ctx, t.q, session)
}

func (t *mysqlTx) UpdateSession(ctx context.Context, session *domain.AuctionSession) error {
	return updateSession(ctx, t.q, session)
}

func (t *mysqlTx) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	return getBid(ctx, t.q, selectBid+` WHERE id = ?`, bidID)
}

func (t *mysqlTx) GetBidForUpdate(ctx context.Context, bidID string) (*domain.Bid, error) {
	return getBid(ctx, t.q, selectBid+` WHERE id = ? FOR UPDATE`, bidID)
}

func (t *mysqlTx) HighestBid(ctx context.Context, slotID int64, sessionID string, statuses ...domain.BidStatus) (*domain.Bid, error) {
	return highestBid(ctx, t.q, slotID, sessionID, statuses)
}

func (t *mysqlTx) InsertBid(ctx context.Context, bid *domain.Bid) error {
	return insertBid(ctx, t.q, bid)
}

func (t *mysqlTx) UpdateBidStatus(ctx context.Context, bidID string, status domain.BidStatus, at time.Time) error {
	return updateBidStatus(ctx, t.q, bidID, status, at)
}

func (t *mysqlTx) OutbidActiveBids(ctx context.Context, slotID int64, exceptBidID string, at time.Time) (int64, error) {
	return outbidActiveBids(ctx, t.q, slotID, exceptBidID, at)
}

func (t *mysqlTx) AppendNotification(ctx context.Context, n *domain.Notification) error {
	return appendNotification(ctx, t.q, n)
}

// classify maps lock-race server errors onto domain.ErrTxConflict.
func classify(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errDeadlock, errLockWaitTimeout:
			return fmt.Errorf("%w: %s", domain.ErrTxConflict, mysqlErr.Message)
		}
	}
	return err
}

func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}

func isMissingReference(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errNoReferencedRow
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
