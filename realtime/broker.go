package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// Event is the envelope pushed to SSE subscribers. Screening progress
// events carry "screen_started", "symbol_completed" and "screen_completed".
type Event struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Broker fans screening progress out to Server-Sent Events subscribers.
// Slow subscribers are skipped rather than blocking a screen run.
type Broker struct {
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	events     chan []byte
	mu         sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		events:     make(chan []byte, 256),
	}
}

// Run drives the subscriber bookkeeping and fan-out loop. Call once from a
// goroutine at startup.
func (b *Broker) Run() {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			total := len(b.clients)
			b.mu.Unlock()
			log.Printf("📡 SSE subscriber connected (total: %d)", total)

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
				log.Printf("📡 SSE subscriber disconnected (total: %d)", len(b.clients))
			}
			b.mu.Unlock()

		case msg := <-b.events:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
					// Subscriber buffer full, skip rather than stall
				}
			}
			b.mu.RUnlock()
		}
	}
}

// ServeHTTP is the SSE endpoint handler. It holds the connection open and
// streams events until the client goes away.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientChan := make(chan []byte, 16)
	b.register <- clientChan

	done := r.Context().Done()
	for {
		select {
		case <-done:
			b.unregister <- clientChan
			return
		case msg, ok := <-clientChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Broadcast queues an event for all subscribers. Drops the event when the
// queue is saturated; progress events are advisory.
func (b *Broker) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(Event{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("⚠️  SSE marshal failed for %q: %v", event, err)
		return
	}

	select {
	case b.events <- msg:
	default:
	}
}

// ClientCount reports current subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
