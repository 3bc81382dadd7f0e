package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"putscreenpro/api"
	"putscreenpro/cache"
	"putscreenpro/config"
	"putscreenpro/marketdata"
	"putscreenpro/metrics"
	"putscreenpro/notifications"
	"putscreenpro/realtime"
	"putscreenpro/screener"
	"putscreenpro/stream"
)

// App wires the screening service together and owns its lifecycle.
type App struct {
	config    *config.Config
	memory    *cache.Memory
	redis     *cache.RedisClient
	gateway   *marketdata.Gateway
	screener  *screener.Screener
	broker    *realtime.Broker
	webhooks  *notifications.WebhookManager
	streamMgr *stream.Manager
}

// New creates a new application instance
func New(cfg *config.Config) *App {
	return &App{
		config: cfg,
		memory: cache.NewMemory(),
	}
}

// Start brings up every component and blocks until a shutdown signal.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Redis (optional shared cache tier)
	fmt.Println("🧠 Connecting to Redis...")
	redisClient := cache.NewRedisClient(
		a.config.RedisHost,
		a.config.RedisPort,
		a.config.RedisPassword,
	)
	if redisClient == nil {
		fmt.Println("⚠️  Redis connection failed. Shared cache tier disabled.")
	} else {
		a.redis = redisClient
	}

	// 2. Market data gateway over the Alpaca REST API
	provider := marketdata.NewAlpacaClient(
		a.config.Alpaca.TradingURL,
		a.config.Alpaca.DataURL,
		a.config.Alpaca.KeyID,
		a.config.Alpaca.SecretKey,
	)
	a.gateway = marketdata.NewGateway(provider, a.memory, a.redis)

	// 3. Realtime broker for SSE progress events
	a.broker = realtime.NewBroker()
	go a.broker.Run()

	// 4. Webhook notifications
	a.webhooks = notifications.NewWebhookManager(a.config.Webhooks, a.redis)
	if len(a.config.Webhooks.URLs) > 0 {
		log.Printf("🔔 Webhook notifications ENABLED (%d endpoints, min score %.0f)",
			len(a.config.Webhooks.URLs), a.config.Webhooks.MinScore)
	}

	// 5. Screening pipeline
	engine := metrics.NewEngine(a.gateway, a.config.Screening.RiskFreeRate)
	a.screener = screener.NewScreener(a.gateway, engine, a.config.Screening, a.broker)

	// 6. API server
	apiServer := api.NewServer(a.screener, a.gateway, a.broker, a.webhooks)
	go func() {
		if err := apiServer.Start(a.config.APIPort); err != nil {
			log.Printf("⚠️  API Server failed: %v", err)
		}
	}()

	var wg sync.WaitGroup

	// 7. Quote stream warm-up (optional)
	if a.config.Alpaca.StreamEnabled {
		a.streamMgr = stream.NewManager(a.config.Alpaca, a.config.Screening.DefaultSymbols, a.gateway)
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.streamMgr.Run(ctx)
		}()
		log.Println("📡 Quote stream warm-up ENABLED")
	} else {
		log.Println("ℹ️  Quote stream warm-up DISABLED")
	}

	log.Printf("✅ Screener ready: %d default symbols, max DTE %d",
		len(a.config.Screening.DefaultSymbols), a.config.Screening.MaxDTE)

	// 8. Wait for interrupt and perform graceful shutdown
	err := a.gracefulShutdown(cancel)
	wg.Wait()
	return err
}

// gracefulShutdown handles graceful shutdown with timeout
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	<-interrupt
	fmt.Println("\n🛑 Shutdown signal received, initiating graceful shutdown...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		if a.streamMgr != nil {
			fmt.Println("📡 Closing quote stream...")
			a.streamMgr.Close()
		}
		if a.redis != nil {
			fmt.Println("🧠 Closing Redis connection...")
			_ = a.redis.Close()
		}
		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		fmt.Println("✅ Graceful shutdown complete")
	case <-shutdownCtx.Done():
		fmt.Println("⚠️  Shutdown timed out, forcing exit")
	}

	return nil
}
