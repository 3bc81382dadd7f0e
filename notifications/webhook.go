package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"putscreenpro/cache"
	"putscreenpro/config"
	"putscreenpro/helpers"
	"putscreenpro/models"
)

const (
	deliveryTimeout = 10 * time.Second
	maxAttempts     = 3
	retryDelay      = 2 * time.Second
)

// WebhookManager posts high-scoring screening results to configured
// endpoints. A per-symbol cooldown keeps repeat runs from re-alerting on
// the same name; the cooldown lives in Redis when available so multiple
// instances share it, with an in-process fallback otherwise.
type WebhookManager struct {
	cfg    config.WebhookConfig
	redis  *cache.RedisClient
	client *http.Client

	mu        sync.Mutex
	cooldowns map[string]time.Time

	now func() time.Time
}

// WebhookPayload is the JSON body delivered to each endpoint.
type WebhookPayload struct {
	Symbol           string    `json:"symbol"`
	ContractSymbol   string    `json:"contract_symbol"`
	StrikePrice      float64   `json:"strike_price"`
	Expiration       string    `json:"expiration"`
	DTE              int       `json:"dte"`
	StockPrice       float64   `json:"stock_price"`
	Premium          float64   `json:"premium"`
	CashRequired     float64   `json:"cash_required"`
	AnnualizedReturn float64   `json:"annualized_return"`
	PITM             float64   `json:"pitm"`
	Score            float64   `json:"score"`
	DataSource       string    `json:"data_source"`
	DetectedAt       time.Time `json:"detected_at"`
	Message          string    `json:"message"`
}

func NewWebhookManager(cfg config.WebhookConfig, redis *cache.RedisClient) *WebhookManager {
	return &WebhookManager{
		cfg:       cfg,
		redis:     redis,
		client:    &http.Client{Timeout: deliveryTimeout},
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (wm *WebhookManager) SetClock(now func() time.Time) {
	wm.now = now
}

// NotifyResults fans qualifying results out to every configured endpoint.
// Delivery is asynchronous; a slow endpoint never delays the screen
// response.
func (wm *WebhookManager) NotifyResults(results []models.ScreeningResult) {
	if len(wm.cfg.URLs) == 0 {
		return
	}

	for _, result := range results {
		if result.Score < wm.cfg.MinScore {
			continue
		}
		if !wm.claimCooldown(result.Symbol) {
			continue
		}

		payload, err := json.Marshal(wm.CreatePayload(&result))
		if err != nil {
			log.Printf("⚠️  Failed to marshal webhook payload for %s: %v", result.Symbol, err)
			continue
		}

		for _, url := range wm.cfg.URLs {
			go wm.deliver(url, result.Symbol, payload)
		}
	}
}

// CreatePayload builds the webhook body for one screening result.
func (wm *WebhookManager) CreatePayload(result *models.ScreeningResult) WebhookPayload {
	m := result.Metrics
	message := fmt.Sprintf("📉 PUT CANDIDATE %s $%.2f strike, %dd | Premium: %s | Annualized: %s | PITM: %s | Score: %.1f",
		result.Symbol,
		result.Contract.StrikePrice,
		result.DTE,
		helpers.FormatUSD(m.PremiumReceived),
		helpers.FormatPercent(m.AnnualizedReturn),
		helpers.FormatPercent(m.PITM),
		result.Score,
	)

	return WebhookPayload{
		Symbol:           result.Symbol,
		ContractSymbol:   result.Contract.Symbol,
		StrikePrice:      result.Contract.StrikePrice,
		Expiration:       result.Contract.Expiration.Format("2006-01-02"),
		DTE:              result.DTE,
		StockPrice:       result.StockPrice,
		Premium:          result.Contract.ClosePrice,
		CashRequired:     m.CashRequired,
		AnnualizedReturn: m.AnnualizedReturn,
		PITM:             m.PITM,
		Score:            result.Score,
		DataSource:       m.DataSource,
		DetectedAt:       wm.now(),
		Message:          message,
	}
}

// claimCooldown reports whether the symbol is clear to alert and, if so,
// starts its cooldown window.
func (wm *WebhookManager) claimCooldown(symbol string) bool {
	ttl := time.Duration(wm.cfg.CooldownMinutes) * time.Minute
	if ttl <= 0 {
		return true
	}

	key := "webhook:cooldown:" + symbol
	if wm.redis != nil {
		if wm.redis.Exists(context.Background(), key) {
			return false
		}
		if err := wm.redis.Set(context.Background(), key, wm.now().Unix(), ttl); err == nil {
			return true
		}
		// Redis unreachable, use the local map
	}

	wm.mu.Lock()
	defer wm.mu.Unlock()
	if until, ok := wm.cooldowns[symbol]; ok && wm.now().Before(until) {
		return false
	}
	wm.cooldowns[symbol] = wm.now().Add(ttl)
	return true
}

func (wm *WebhookManager) deliver(url, symbol string, payload []byte) {
	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			log.Printf("⚠️  Webhook request build failed for %s: %v", url, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "PutScreenPro/1.0")

		resp, err := wm.client.Do(req)
		if err == nil {
			lastStatus = resp.StatusCode
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				log.Printf("🔔 Webhook delivered for %s to %s", symbol, url)
				return
			}
		} else {
			lastErr = err
		}

		if attempt < maxAttempts {
			time.Sleep(retryDelay)
		}
	}

	if lastErr != nil {
		log.Printf("⚠️  Webhook for %s to %s failed after %d attempts: %v", symbol, url, maxAttempts, lastErr)
	} else {
		log.Printf("⚠️  Webhook for %s to %s failed after %d attempts: HTTP %d", symbol, url, maxAttempts, lastStatus)
	}
}
