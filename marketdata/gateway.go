package marketdata

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"putscreenpro/cache"
	"putscreenpro/models"
	"putscreenpro/validation"
)

// Cache TTLs for raw provider responses. Quotes go stale fast; snapshots
// can sit a little longer. Derived metrics are never cached.
const (
	QuoteTTL    = 30 * time.Second
	SnapshotTTL = 5 * time.Minute
)

// expirationWeekday anchors the weekly-cycle fallback when the provider
// yields no expiration calendar. Equity options expire on Fridays.
const expirationWeekday = time.Friday

// Gateway fetches quotes, option chains, Greeks snapshots and expiration
// calendars from the provider through a two-tier cache: the in-process TTL
// cache first, then an optional shared Redis tier.
type Gateway struct {
	provider Provider
	memory   *cache.Memory
	shared   *cache.RedisClient
	now      func() time.Time
}

// NewGateway creates a gateway over provider backed by the given caches.
// shared may be nil.
func NewGateway(provider Provider, memory *cache.Memory, shared *cache.RedisClient) *Gateway {
	return &Gateway{
		provider: provider,
		memory:   memory,
		shared:   shared,
		now:      time.Now,
	}
}

// SetClock injects a clock for tests.
func (g *Gateway) SetClock(now func() time.Time) {
	g.now = now
}

// QuoteCacheKey returns the cache key for a symbol's quote. The stream
// warm-up writes under the same keys the gateway reads.
func QuoteCacheKey(symbol string) string {
	return "quote:" + strings.ToUpper(symbol)
}

func snapshotCacheKey(symbol string) string {
	return "snapshot:" + symbol
}

// GetQuote returns the current quote for symbol, cached for 30 seconds.
func (g *Gateway) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, validation.Errorf(validation.KindEmptySymbol, "empty symbol provided")
	}

	cacheKey := QuoteCacheKey(symbol)
	if v, ok := g.memory.Get(cacheKey); ok {
		if q, ok := v.(*models.Quote); ok {
			return q, nil
		}
	}
	if g.shared != nil {
		var q models.Quote
		if err := g.shared.Get(ctx, cacheKey, &q); err == nil && q.Bid > 0 {
			g.memory.Set(cacheKey, &q, QuoteTTL)
			return &q, nil
		}
	}

	quote, err := g.provider.StockQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	if quote == nil {
		return nil, validation.Errorf(validation.KindNoData, "no quote data returned for %s", symbol)
	}
	if quote.Bid == 0 || quote.Ask == 0 {
		return nil, validation.Errorf(validation.KindIncompleteQuote, "incomplete quote data for %s - missing bid or ask", symbol)
	}

	quote.Symbol = symbol
	quote.Mid = (quote.Bid + quote.Ask) / 2

	g.memory.Set(cacheKey, quote, QuoteTTL)
	if g.shared != nil {
		_ = g.shared.Set(ctx, cacheKey, quote, QuoteTTL)
	}
	return quote, nil
}

// StoreQuote primes the quote cache from an external feed. Incomplete
// quotes are ignored; the streamed quote takes the same TTL as a fetched
// one so a stalled feed decays naturally.
func (g *Gateway) StoreQuote(ctx context.Context, quote *models.Quote) {
	if quote == nil || quote.Symbol == "" || quote.Bid <= 0 || quote.Ask <= 0 {
		return
	}
	q := *quote
	q.Symbol = strings.ToUpper(q.Symbol)
	q.Mid = (q.Bid + q.Ask) / 2

	cacheKey := QuoteCacheKey(q.Symbol)
	g.memory.Set(cacheKey, &q, QuoteTTL)
	if g.shared != nil {
		_ = g.shared.Set(ctx, cacheKey, &q, QuoteTTL)
	}
}

// GetExpirations returns the distinct expiration dates for symbol within
// maxDays, ascending. It scans enough forward monthly windows to cover
// maxDays; when the provider yields nothing it falls back to a weekly-cycle
// estimate, which callers must treat as lower confidence.
func (g *Gateway) GetExpirations(ctx context.Context, symbol string, maxDays int) ([]time.Time, error) {
	today := dateOnly(g.now())
	end := today.AddDate(0, 0, maxDays)

	seen := make(map[time.Time]bool)

	// Window count scales with the horizon, no fixed cap
	monthsToCheck := maxDays/30 + 2
	for offset := 0; offset < monthsToCheck; offset++ {
		check := today.AddDate(0, 0, 30*offset)

		contracts, err := g.provider.OptionContracts(ctx, ContractsRequest{
			UnderlyingSymbol: symbol,
			ExpirationMonth:  check.Month(),
			ExpirationYear:   check.Year(),
			Limit:            50,
		})
		if err != nil {
			log.Printf("⚠️  Expiration window query failed for %s (%s %d): %v", symbol, check.Month(), check.Year(), err)
			continue
		}

		for _, c := range contracts {
			exp := c.Expiration
			if exp.IsZero() {
				parsed, err := ExpirationFromSymbol(c.Symbol)
				if err != nil {
					continue
				}
				exp = parsed
			}
			exp = dateOnly(exp)
			if !exp.Before(today) && !exp.After(end) {
				seen[exp] = true
			}
		}
	}

	if len(seen) == 0 {
		log.Printf("⚠️  No option expirations found for %s, using weekly estimates", symbol)
		return g.weeklyEstimates(maxDays), nil
	}

	expirations := make([]time.Time, 0, len(seen))
	for exp := range seen {
		expirations = append(expirations, exp)
	}
	sort.Slice(expirations, func(i, j int) bool { return expirations[i].Before(expirations[j]) })

	log.Printf("📅 Found %d expiration dates for %s within %d days", len(expirations), symbol, maxDays)
	return expirations, nil
}

// weeklyEstimates approximates the calendar as every expiration weekday
// within maxDays, starting from the next occurrence. Best effort only, not
// validated against real market calendars.
func (g *Gateway) weeklyEstimates(maxDays int) []time.Time {
	today := dateOnly(g.now())

	daysAhead := int(expirationWeekday-today.Weekday()+7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}

	var estimates []time.Time
	for d := today.AddDate(0, 0, daysAhead); !d.After(today.AddDate(0, 0, maxDays)); d = d.AddDate(0, 0, 7) {
		estimates = append(estimates, d)
	}
	return estimates
}

// GetContracts returns the contracts of the given type for one expiration,
// sorted by strike ascending. Malformed provider rows are already skipped
// by the adapter; rows without a positive strike never surface.
func (g *Gateway) GetContracts(ctx context.Context, symbol string, expiration time.Time, contractType string) ([]models.OptionContract, error) {
	contracts, err := g.provider.OptionContracts(ctx, ContractsRequest{
		UnderlyingSymbol: symbol,
		ExpirationDate:   &expiration,
		Type:             strings.ToLower(contractType),
		Status:           "active",
		Limit:            100,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching contracts for %s %s: %w", symbol, expiration.Format("2006-01-02"), err)
	}

	kept := contracts[:0]
	for _, c := range contracts {
		if c.StrikePrice > 0 {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].StrikePrice < kept[j].StrikePrice })
	return kept, nil
}

// GetGreeksSnapshot returns the Greeks snapshot for a contract symbol, or
// nil when the provider has no data. Provider failures are downgraded to
// absence so callers fall back to estimation.
func (g *Gateway) GetGreeksSnapshot(ctx context.Context, symbol string) *models.GreeksSnapshot {
	cacheKey := snapshotCacheKey(symbol)
	if v, ok := g.memory.Get(cacheKey); ok {
		if snap, ok := v.(*models.GreeksSnapshot); ok {
			return snap
		}
	}
	if g.shared != nil {
		var cached models.GreeksSnapshot
		if err := g.shared.Get(ctx, cacheKey, &cached); err == nil {
			g.memory.Set(cacheKey, &cached, SnapshotTTL)
			return &cached
		}
	}

	snap, err := g.provider.OptionSnapshot(ctx, symbol)
	if err != nil {
		log.Printf("⚠️  Snapshot fetch failed for %s: %v", symbol, err)
		return nil
	}
	if snap == nil {
		return nil
	}

	g.memory.Set(cacheKey, snap, SnapshotTTL)
	if g.shared != nil {
		_ = g.shared.Set(ctx, cacheKey, snap, SnapshotTTL)
	}
	return snap
}

// CacheLen reports the in-process cache entry count.
func (g *Gateway) CacheLen() int {
	return g.memory.Len()
}

// ClearCache empties the in-process cache.
func (g *Gateway) ClearCache() {
	g.memory.Clear()
	log.Println("🧹 Cache cleared")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
