package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is one element of the JSON arrays the market data stream sends.
// The T field discriminates: "q" quote, "success"/"error" control,
// "subscription" acknowledgement.
type Message struct {
	Type   string  `json:"T"`
	Symbol string  `json:"S,omitempty"`
	Bid    float64 `json:"bp,omitempty"`
	Ask    float64 `json:"ap,omitempty"`
	Msg    string  `json:"msg,omitempty"`
	Code   int     `json:"code,omitempty"`
}

// Client is a thin connection wrapper around the quote stream. Auth and
// subscription happen as JSON control messages after the dial.
type Client struct {
	url     string
	key     string
	secret  string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewClient(url, key, secret string) *Client {
	return &Client{
		url:    url,
		key:    key,
		secret: secret,
	}
}

// Connect dials the stream and completes the auth handshake. The server
// greets with a "connected" control message before accepting auth.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	c.conn = conn

	if _, err := c.ReadMessages(); err != nil {
		c.Close()
		return fmt.Errorf("stream greeting failed: %w", err)
	}

	if err := c.writeJSON(map[string]string{
		"action": "auth",
		"key":    c.key,
		"secret": c.secret,
	}); err != nil {
		c.Close()
		return fmt.Errorf("failed to send auth: %w", err)
	}

	msgs, err := c.ReadMessages()
	if err != nil {
		c.Close()
		return fmt.Errorf("auth response failed: %w", err)
	}
	for _, m := range msgs {
		if m.Type == "error" {
			c.Close()
			return fmt.Errorf("stream auth rejected: %s (code %d)", m.Msg, m.Code)
		}
	}

	log.Printf("✅ Connected to quote stream at %s", c.url)
	return nil
}

// Subscribe registers interest in quote updates for the given symbols.
func (c *Client) Subscribe(symbols []string) error {
	if err := c.writeJSON(map[string]interface{}{
		"action": "subscribe",
		"quotes": symbols,
	}); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}
	log.Printf("📡 Subscribed to quote stream for %d symbols", len(symbols))
	return nil
}

// ReadMessages reads one frame and decodes the message batch inside it.
func (c *Client) ReadMessages() ([]Message, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("connection is nil")
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream frame: %w", err)
	}
	return msgs, nil
}

// SetReadDeadline bounds the next read; used by the manager to detect a
// silent connection.
func (c *Client) SetReadDeadline(t time.Time) error {
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.conn.SetReadDeadline(t)
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
