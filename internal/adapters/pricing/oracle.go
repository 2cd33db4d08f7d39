// Package pricing quotes the SOL/USD price for display amounts.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domainerrors "github.com/covest/covest-service/internal/domain/errors"
	"github.com/covest/covest-service/internal/infrastructure/cache"
	"github.com/covest/covest-service/internal/infrastructure/config"
	"github.com/covest/covest-service/pkg/logger"
	"github.com/covest/covest-service/pkg/metrics"
)

const priceCacheKey = "pricing:sol_usd"

// Oracle fetches the SOL/USD price from a primary feed with a fallback feed,
// caches quotes in Redis, and holds the last good quote in memory. A stale
// quote beats no quote: USD amounts are display-only and never drive ledger
// math.
type Oracle struct {
	primaryURL  string
	fallbackURL string
	cacheTTL    time.Duration
	httpClient  *http.Client
	cache       cache.RedisClient
	log         *logger.Logger

	mu        sync.RWMutex
	lastPrice decimal.Decimal
	lastAt    time.Time
}

func NewOracle(cfg config.PricingConfig, redis cache.RedisClient, log *logger.Logger) *Oracle {
	timeout := time.Duration(cfg.HTTPTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := time.Duration(cfg.CacheTTL) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Oracle{
		primaryURL:  cfg.PrimaryURL,
		fallbackURL: cfg.FallbackURL,
		cacheTTL:    ttl,
		httpClient:  &http.Client{Timeout: timeout},
		cache:       redis,
		log:         log,
	}
}

// SolPriceUSD returns the current SOL/USD quote. Resolution order is the
// Redis cache, the primary feed, the fallback feed, then the last quote held
// in memory. It fails only when no quote has ever been observed.
func (o *Oracle) SolPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	if o.cache != nil {
		var cached string
		if err := o.cache.Get(ctx, priceCacheKey, &cached); err == nil {
			if price, perr := decimal.NewFromString(cached); perr == nil && price.IsPositive() {
				return price, nil
			}
		}
	}
	return o.Refresh(ctx)
}

// Refresh fetches a fresh quote from the feeds, bypassing the cache, and
// stores the result. The price worker calls this on a schedule.
func (o *Oracle) Refresh(ctx context.Context) (decimal.Decimal, error) {
	price, err := o.fetchCoinGecko(ctx)
	if err != nil {
		metrics.PriceOracleFailures.Inc()
		o.log.Warn("primary price feed failed", "error", err)
		price, err = o.fetchCoinbase(ctx)
	}
	if err != nil {
		metrics.PriceOracleFailures.Inc()
		o.log.Warn("fallback price feed failed", "error", err)
		return o.lastKnown()
	}

	o.store(ctx, price)
	return price, nil
}

// LastKnown returns the most recent quote and when it was observed, without
// touching the network.
func (o *Oracle) LastKnown() (decimal.Decimal, time.Time, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastPrice, o.lastAt, o.lastPrice.IsPositive()
}

func (o *Oracle) lastKnown() (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastPrice.IsPositive() {
		o.log.Warn("serving stale price quote", "observed_at", o.lastAt)
		return o.lastPrice, nil
	}
	return decimal.Zero, domainerrors.ErrPriceUnavailable
}

func (o *Oracle) store(ctx context.Context, price decimal.Decimal) {
	o.mu.Lock()
	o.lastPrice = price
	o.lastAt = time.Now().UTC()
	o.mu.Unlock()

	if o.cache != nil {
		if err := o.cache.Set(ctx, priceCacheKey, price.String(), o.cacheTTL); err != nil {
			o.log.Warn("price cache write failed", "error", err)
		}
	}
}

func (o *Oracle) fetchCoinGecko(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := o.fetchJSON(ctx, o.primaryURL, &out); err != nil {
		return decimal.Zero, err
	}
	if out.Solana.USD <= 0 {
		return decimal.Zero, fmt.Errorf("primary feed returned %f", out.Solana.USD)
	}
	return decimal.NewFromFloat(out.Solana.USD), nil
}

func (o *Oracle) fetchCoinbase(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := o.fetchJSON(ctx, o.fallbackURL, &out); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(out.Data.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fallback feed returned %q: %w", out.Data.Amount, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("fallback feed returned non-positive price %s", price)
	}
	return price, nil
}

func (o *Oracle) fetchJSON(ctx context.Context, url string, dest interface{}) error {
	if url == "" {
		return fmt.Errorf("price feed url is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
