package stream

import (
	"context"
	"log"
	"time"

	"putscreenpro/config"
	"putscreenpro/models"
)

const (
	readTimeout    = 2 * time.Minute
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// QuoteSink receives streamed quotes. The market data gateway implements
// this to keep its quote cache warm.
type QuoteSink interface {
	StoreQuote(ctx context.Context, quote *models.Quote)
}

// Manager owns the stream connection lifecycle: connect, subscribe, pump
// quotes into the sink, reconnect with backoff when the feed drops.
type Manager struct {
	cfg     config.AlpacaConfig
	symbols []string
	sink    QuoteSink
	client  *Client
}

func NewManager(cfg config.AlpacaConfig, symbols []string, sink QuoteSink) *Manager {
	return &Manager{
		cfg:     cfg,
		symbols: symbols,
		sink:    sink,
	}
}

// Run drives the connection until ctx is cancelled. Intended to run in its
// own goroutine; errors reconnect rather than propagate.
func (m *Manager) Run(ctx context.Context) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		if err := m.connect(); err != nil {
			log.Printf("⚠️  Quote stream connect failed: %v (retry in %v)", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = initialBackoff

		m.readLoop(ctx)
		m.Close()

		if ctx.Err() != nil {
			return
		}
		log.Printf("⚠️  Quote stream dropped, reconnecting in %v", backoff)
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (m *Manager) connect() error {
	m.client = NewClient(m.cfg.StreamURL, m.cfg.KeyID, m.cfg.SecretKey)
	if err := m.client.Connect(); err != nil {
		return err
	}
	return m.client.Subscribe(m.symbols)
}

// readLoop pumps frames into the sink until the connection errors out. A
// read deadline catches connections that die without a close frame.
func (m *Manager) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		_ = m.client.SetReadDeadline(time.Now().Add(readTimeout))

		msgs, err := m.client.ReadMessages()
		if err != nil {
			log.Printf("⚠️  Quote stream read failed: %v", err)
			return
		}

		for _, msg := range msgs {
			switch msg.Type {
			case "q":
				m.sink.StoreQuote(ctx, &models.Quote{
					Symbol: msg.Symbol,
					Bid:    msg.Bid,
					Ask:    msg.Ask,
				})
			case "error":
				log.Printf("⚠️  Quote stream error: %s (code %d)", msg.Msg, msg.Code)
			}
		}
	}
}

// Close tears down the current connection if any.
func (m *Manager) Close() {
	if m.client != nil {
		_ = m.client.Close()
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
