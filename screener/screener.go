package screener

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"putscreenpro/config"
	"putscreenpro/models"
	"putscreenpro/validation"
)

// Gateway is the market data surface the screener consumes.
type Gateway interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetExpirations(ctx context.Context, symbol string, maxDays int) ([]time.Time, error)
	GetContracts(ctx context.Context, symbol string, expiration time.Time, contractType string) ([]models.OptionContract, error)
}

// MetricsEngine computes the per-contract metric set.
type MetricsEngine interface {
	Calculate(ctx context.Context, stockPrice, strikePrice, premium float64, days int, optionSymbol string) *models.Metrics
}

// Broadcaster pushes progress events to live subscribers. May be nil.
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// Screener runs the put-screening pipeline across a universe of symbols.
type Screener struct {
	gateway     Gateway
	engine      MetricsEngine
	cfg         config.ScreeningConfig
	broadcaster Broadcaster

	now func() time.Time
}

// NewScreener wires a screener. broadcaster may be nil when no live
// subscribers are attached.
func NewScreener(gateway Gateway, engine MetricsEngine, cfg config.ScreeningConfig, broadcaster Broadcaster) *Screener {
	return &Screener{
		gateway:     gateway,
		engine:      engine,
		cfg:         cfg,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Screener) SetClock(now func() time.Time) {
	s.now = now
}

// Screen runs the full pipeline for the request and returns the best
// candidate per symbol, sorted by score descending. A symbol whose data
// fetch or validation fails is logged and skipped; Screen only errors when
// the request itself is unusable.
func (s *Screener) Screen(ctx context.Context, req models.ScreeningRequest) ([]models.ScreeningResult, error) {
	req = s.applyDefaults(req)
	if len(req.Symbols) == 0 {
		return nil, validation.Errorf(validation.KindEmptySymbol, "no symbols to screen")
	}

	started := s.now()
	s.broadcast("screen_started", map[string]interface{}{
		"symbols":   req.Symbols,
		"max_dte":   req.MaxDTE,
		"started_at": started.Format(time.RFC3339),
	})

	var candidates []models.ScreeningResult
	if *req.Parallel {
		candidates = s.screenParallel(ctx, req)
	} else {
		candidates = s.screenSequential(ctx, req)
	}

	results := BestPerSymbol(candidates)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	s.broadcast("screen_completed", map[string]interface{}{
		"results":     len(results),
		"duration_ms": s.now().Sub(started).Milliseconds(),
	})
	log.Printf("✅ Screen finished: %d symbols in, %d results out (%.1fs)",
		len(req.Symbols), len(results), s.now().Sub(started).Seconds())

	return results, nil
}

func (s *Screener) screenSequential(ctx context.Context, req models.ScreeningRequest) []models.ScreeningResult {
	var all []models.ScreeningResult
	for _, symbol := range req.Symbols {
		all = append(all, s.screenOne(ctx, symbol, req)...)
	}
	return all
}

func (s *Screener) screenParallel(ctx context.Context, req models.ScreeningRequest) []models.ScreeningResult {
	workers := s.cfg.MaxParallelWorkers
	if workers <= 0 {
		workers = 1
	}
	if len(req.Symbols) < workers {
		workers = len(req.Symbols)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var all []models.ScreeningResult

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				found := s.screenOne(ctx, symbol, req)
				mu.Lock()
				all = append(all, found...)
				mu.Unlock()
			}
		}()
	}

	for _, symbol := range req.Symbols {
		jobs <- symbol
	}
	close(jobs)
	wg.Wait()

	return all
}

// screenOne runs the per-symbol pipeline: quote, expirations, contracts,
// metrics, filters. Failures are logged and produce an empty slice; one
// bad symbol never aborts the batch.
func (s *Screener) screenOne(ctx context.Context, symbol string, req models.ScreeningRequest) []models.ScreeningResult {
	quote, err := s.gateway.GetQuote(ctx, symbol)
	if err != nil {
		log.Printf("⚠️  %s: quote unavailable: %v", symbol, err)
		s.broadcastSymbol(symbol, 0, err)
		return nil
	}
	if _, err := validation.ValidateQuote(quote); err != nil {
		log.Printf("⚠️  %s: quote rejected: %v", symbol, err)
		s.broadcastSymbol(symbol, 0, err)
		return nil
	}
	stockPrice := quote.Mid

	expirations, err := s.gateway.GetExpirations(ctx, symbol, req.MaxDTE)
	if err != nil {
		log.Printf("⚠️  %s: expirations unavailable: %v", symbol, err)
		s.broadcastSymbol(symbol, 0, err)
		return nil
	}

	today := dateOnly(s.now())
	var found []models.ScreeningResult
	for _, expiration := range expirations {
		dte := int(dateOnly(expiration).Sub(today).Hours() / 24)
		if dte <= 0 || dte > req.MaxDTE {
			continue
		}

		contracts, err := s.gateway.GetContracts(ctx, symbol, expiration, "put")
		if err != nil {
			log.Printf("⚠️  %s %s: contracts unavailable: %v", symbol, expiration.Format("2006-01-02"), err)
			continue
		}

		for _, contract := range contracts {
			if _, err := validation.ValidateContract(&contract); err != nil {
				log.Printf("⚠️  %s: dropping contract %s: %v", symbol, contract.Symbol, err)
				continue
			}
			// Liquidity gate goes before the metrics pass: no point in
			// pricing contracts nobody holds.
			if contract.OpenInterest < req.MinOpenInterest {
				continue
			}

			m := s.engine.Calculate(ctx, stockPrice, contract.StrikePrice, contract.ClosePrice, dte, contract.Symbol)
			if _, err := validation.ValidateMetrics(m); err != nil {
				log.Printf("⚠️  %s: dropping contract %s: %v", symbol, contract.Symbol, err)
				continue
			}

			if m.PITM > req.MaxPITM {
				continue
			}
			if req.MinVolume > 0 && m.Volume < req.MinVolume {
				continue
			}

			found = append(found, models.ScreeningResult{
				Symbol:         symbol,
				StockPrice:     stockPrice,
				Quote:          *quote,
				Contract:       contract,
				DTE:            dte,
				Metrics:        *m,
				Score:          m.AdvancedScore,
				ExpectedReturn: m.ExpectedReturn,
			})
		}
	}

	s.broadcastSymbol(symbol, len(found), nil)
	return found
}

// BestPerSymbol keeps the highest-scoring candidate for each symbol. On a
// score tie the first-seen candidate wins.
func BestPerSymbol(candidates []models.ScreeningResult) []models.ScreeningResult {
	best := make(map[string]models.ScreeningResult, len(candidates))
	var order []string
	for _, c := range candidates {
		current, seen := best[c.Symbol]
		if !seen {
			best[c.Symbol] = c
			order = append(order, c.Symbol)
			continue
		}
		if c.Score > current.Score {
			best[c.Symbol] = c
		}
	}

	results := make([]models.ScreeningResult, 0, len(order))
	for _, symbol := range order {
		results = append(results, best[symbol])
	}
	return results
}

// applyDefaults fills unset request fields from the screening config.
func (s *Screener) applyDefaults(req models.ScreeningRequest) models.ScreeningRequest {
	if len(req.Symbols) == 0 {
		req.Symbols = append([]string(nil), s.cfg.DefaultSymbols...)
	}
	for i, symbol := range req.Symbols {
		req.Symbols[i] = strings.ToUpper(strings.TrimSpace(symbol))
	}
	if req.MaxDTE <= 0 {
		req.MaxDTE = s.cfg.MaxDTE
	}
	if req.MaxPITM <= 0 {
		req.MaxPITM = s.cfg.MaxPITM
	}
	if req.MinOpenInterest <= 0 {
		req.MinOpenInterest = s.cfg.MinOpenInterest
	}
	if req.MinVolume < 0 {
		req.MinVolume = 0
	}
	if req.Parallel == nil {
		req.Parallel = models.BoolPtr(s.cfg.ParallelDefault)
	}
	return req
}

func (s *Screener) broadcast(event string, data interface{}) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(event, data)
}

func (s *Screener) broadcastSymbol(symbol string, found int, err error) {
	data := map[string]interface{}{
		"symbol": symbol,
		"found":  found,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	s.broadcast("symbol_completed", data)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
