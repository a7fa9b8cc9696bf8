package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/trustbank/backend/internal/config"
	"github.com/trustbank/backend/internal/models"
)

// RateSource returns the exchange rate for a currency pair. An
// unavailable rate is an explicit error; callers must never substitute
// a default rate.
type RateSource interface {
	Rate(ctx context.Context, base, target string) (decimal.Decimal, error)
}

type CurrencyService struct {
	redis  *redis.Client
	config *config.TransferConfig
	client *http.Client
}

func NewCurrencyService(redisClient *redis.Client, cfg *config.TransferConfig) *CurrencyService {
	return &CurrencyService{
		redis:  redisClient,
		config: cfg,
		client: &http.Client{Timeout: cfg.RateRequestTimeout},
	}
}

// Rate returns the base → target exchange rate, consulting the Redis
// cache before the external rate service. A pair's identity rate is
// answered locally.
func (s *CurrencyService) Rate(ctx context.Context, base, target string) (decimal.Decimal, error) {
	if base == target {
		return decimal.NewFromInt(1), nil
	}

	key := fmt.Sprintf("fx:%s:%s", base, target)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
			if rate, err := decimal.NewFromString(cached); err == nil {
				return rate, nil
			}
		}
	}

	rate, err := s.fetchRate(ctx, base, target)
	if err != nil {
		log.Printf("[CURRENCY] Rate lookup failed for %s/%s: %v", base, target, err)
		return decimal.Zero, models.ErrCurrencyUnavailable
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, rate.String(), s.config.RateCacheTTL).Err(); err != nil {
			log.Printf("[CURRENCY] Failed to cache rate for %s/%s: %v", base, target, err)
		}
	}

	return rate, nil
}

func (s *CurrencyService) fetchRate(ctx context.Context, base, target string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/rates?base=%s&target=%s", s.config.RateServiceURL, base, target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate service returned status %d", resp.StatusCode)
	}

	var result struct {
		Rate string `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, err
	}

	rate, err := decimal.NewFromString(result.Rate)
	if err != nil {
		return decimal.Zero, err
	}
	if rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("rate service returned non-positive rate %s", rate)
	}

	return rate, nil
}
