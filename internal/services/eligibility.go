package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
)

const eligibilityKeyPrefix = "company_eligibility:"

// CachedEligibilityProvider serves company eligibility from redis and falls
// back to the source provider on a miss. Redis failures degrade to the source
// instead of failing the bid.
type CachedEligibilityProvider struct {
	client redis.Cmdable
	source domain.EligibilityProvider
	ttl    time.Duration
	log    logger.Logger
}

func NewCachedEligibilityProvider(client redis.Cmdable, source domain.EligibilityProvider, ttl time.Duration, log logger.Logger) *CachedEligibilityProvider {
	return &CachedEligibilityProvider{
		client: client,
		source: source,
		ttl:    ttl,
		log:    log,
	}
}

func (p *CachedEligibilityProvider) GetCompany(ctx context.Context, companyID string) (*domain.Company, error) {
	key := eligibilityKeyPrefix + companyID

	data, err := p.client.Get(ctx, key).Result()
	if err == nil {
		var company domain.Company
		if err := json.Unmarshal([]byte(data), &company); err == nil {
			return &company, nil
		}
		p.log.Warn("Discarding unreadable eligibility cache entry", "company_id", companyID)
	} else if !errors.Is(err, redis.Nil) {
		p.log.Warn("Eligibility cache unavailable", "company_id", companyID, "error", err)
	}

	company, err := p.source.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(company); err == nil {
		if err := p.client.Set(ctx, key, encoded, p.ttl).Err(); err != nil {
			p.log.Warn("Failed to cache company eligibility", "company_id", companyID, "error", err)
		}
	}
	return company, nil
}
