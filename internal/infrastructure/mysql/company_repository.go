package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"slot-auction/internal/domain"
)

// MySQLCompanyRepository reads bidder eligibility from the companies table
// maintained by the identity provider.
type MySQLCompanyRepository struct {
	db *sql.DB
}

func NewMySQLCompanyRepository(db *sql.DB) *MySQLCompanyRepository {
	return &MySQLCompanyRepository{db: db}
}

func (r *MySQLCompanyRepository) GetCompany(ctx context.Context, companyID string) (*domain.Company, error) {
	query := `
        SELECT id, name, auction_eligible, max_bid
        FROM companies WHERE id = ?
    `

	var company domain.Company
	err := r.db.QueryRowContext(ctx, query, companyID).Scan(
		&company.ID, &company.Name, &company.AuctionEligible, &company.MaxBid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get company %s: %w", companyID, err)
	}
	return &company, nil
}
