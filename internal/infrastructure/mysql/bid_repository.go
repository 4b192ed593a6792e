package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"slot-auction/internal/domain"
)

const selectBid = `
        SELECT id, slot_id, company_id, user_id, amount, status, session_id, created_at, updated_at
        FROM bids`

func scanBid(row rowScanner) (*domain.Bid, error) {
	var bid domain.Bid
	var status string
	var sessionID sql.NullString

	err := row.Scan(&bid.ID, &bid.SlotID, &bid.CompanyID, &bid.UserID, &bid.Amount,
		&status, &sessionID, &bid.CreatedAt, &bid.UpdatedAt)
	if err != nil {
		return nil, err
	}

	bid.Status = domain.BidStatus(status)
	bid.SessionID = sessionID.String
	return &bid, nil
}

func getBid(ctx context.Context, q queryer, query, bidID string) (*domain.Bid, error) {
	bid, err := scanBid(q.QueryRowContext(ctx, query, bidID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get bid %s: %w", bidID, err)
	}
	return bid, nil
}

// listBids returns bids in acceptance order.
func listBids(ctx context.Context, q queryer, filter domain.BidFilter) ([]*domain.Bid, error) {
	var where []string
	var args []interface{}
	if filter.SlotID != 0 {
		where = append(where, "slot_id = ?")
		args = append(args, filter.SlotID)
	}
	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := selectBid
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC, amount ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: list bids: %w", err)
	}
	defer rows.Close()

	bids := make([]*domain.Bid, 0)
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("mysql: scan bid: %w", err)
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

// highestBid picks the largest amount among the slot's bids in the session
// (NULL session for sessionless bids), earliest first on ties.
func highestBid(ctx context.Context, q queryer, slotID int64, sessionID string, statuses []domain.BidStatus) (*domain.Bid, error) {
	query := selectBid + ` WHERE slot_id = ? AND session_id <=> ?`
	args := []interface{}{slotID, nullString(sessionID)}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY amount DESC, created_at ASC LIMIT 1`

	bid, err := scanBid(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: highest bid on slot %d: %w", slotID, err)
	}
	return bid, nil
}

func insertBid(ctx context.Context, q queryer, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, slot_id, company_id, user_id, amount, status, session_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := q.ExecContext(ctx, query,
		bid.ID, bid.SlotID, bid.CompanyID, bid.UserID, bid.Amount,
		string(bid.Status), nullString(bid.SessionID), bid.CreatedAt, bid.UpdatedAt)
	if err != nil {
		return fmt.Errorf("mysql: insert bid %s: %w", bid.ID, err)
	}
	return nil
}

func updateBidStatus(ctx context.Context, q queryer, bidID string, status domain.BidStatus, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE bids SET status = ?, updated_at = ? WHERE id = ?`, string(status), at, bidID)
	return err
}

func outbidActiveBids(ctx context.Context, q queryer, slotID int64, exceptBidID string, at time.Time) (int64, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE bids SET status = ?, updated_at = ? WHERE slot_id = ? AND status = ? AND id <> ?`,
		string(domain.BidOutbid), at, slotID, string(domain.BidActive), exceptBidID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
