package memory

import (
	"context"
	"sync"

	"slot-auction/internal/domain"
)

// CompanyDirectory is an in-process EligibilityProvider for the memory store
// driver and tests.
type CompanyDirectory struct {
	mu        sync.RWMutex
	companies map[string]domain.Company
}

func NewCompanyDirectory(companies ...domain.Company) *CompanyDirectory {
	d := &CompanyDirectory{companies: make(map[string]domain.Company)}
	for _, c := range companies {
		d.companies[c.ID] = c
	}
	return d
}

func (d *CompanyDirectory) PutCompany(c domain.Company) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.companies[c.ID] = c
}

func (d *CompanyDirectory) GetCompany(ctx context.Context, companyID string) (*domain.Company, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.companies[companyID]
	if !ok {
		return nil, domain.ErrCompanyNotFound
	}
	return &c, nil
}
