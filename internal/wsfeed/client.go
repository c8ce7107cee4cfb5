// Package wsfeed is the generic transport this engine carries for the
// venue.Client contract: a WebSocket book feed with exponential-backoff
// reconnect, and REST calls for order placement, cancellation and
// position lookup. Per SPEC_FULL.md §1, venue-specific authentication,
// signing and wire-format translation are out of scope — an operator
// wiring a real venue supplies a Codec that turns that venue's raw
// messages into venue.BookUpdate and builds the REST request/response
// bodies for that venue's API, and points Client at that venue's
// endpoints. What this package owns is the reconnect/backoff loop and
// HTTP plumbing around that seam, adapted from the reference pool's
// WebSocket feed (0xtitan6-polymarket-mm's internal/exchange.WSFeed)
// generalized from a single hardcoded Polymarket message shape to a
// pluggable Codec.
package wsfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arbengine/boxarb/internal/venue"
)

const (
	initialBackoff   = time.Second
	maxBackoff       = 30 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 10 * time.Second
	bookChannelDepth = 256
)

// Codec translates between this venue's wire format and the engine's
// venue-agnostic types. A real deployment supplies one per venue;
// DefaultCodec below assumes the wire format already matches
// venue.BookUpdate/OrderRequest/OrderResult's JSON shape, which is
// enough to exercise this package's transport in dry-run mode against a
// test server or a venue that happens to speak that shape natively.
type Codec interface {
	DecodeBookUpdate(raw []byte) (venue.BookUpdate, error)
	EncodeOrderRequest(req venue.OrderRequest) ([]byte, error)
	DecodeOrderResult(raw []byte) (venue.OrderResult, error)
	DecodePositions(raw []byte) ([]venue.Position, error)
}

// DefaultCodec assumes the wire format is exactly the engine's own JSON
// encoding of these types — a reasonable default for a venue-neutral
// test harness or a venue fronted by a translation sidecar.
type DefaultCodec struct{}

func (DefaultCodec) DecodeBookUpdate(raw []byte) (venue.BookUpdate, error) {
	var u venue.BookUpdate
	err := json.Unmarshal(raw, &u)
	return u, err
}

func (DefaultCodec) EncodeOrderRequest(req venue.OrderRequest) ([]byte, error) {
	return json.Marshal(req)
}

func (DefaultCodec) DecodeOrderResult(raw []byte) (venue.OrderResult, error) {
	var r venue.OrderResult
	err := json.Unmarshal(raw, &r)
	return r, err
}

func (DefaultCodec) DecodePositions(raw []byte) ([]venue.Position, error) {
	var p []venue.Position
	err := json.Unmarshal(raw, &p)
	return p, err
}

// Config describes one venue's endpoints.
type Config struct {
	ID          venue.ID
	WSURL       string
	RESTBaseURL string
	AuthToken   string // read from the environment by the caller, never from YAML
	Codec       Codec
}

// Client is a venue.Client backed by a reconnecting WebSocket feed for
// book updates and plain REST calls for order placement, cancellation
// and position lookup.
type Client struct {
	cfg        Config
	httpClient *http.Client

	connMu sync.Mutex
	conn   *websocket.Conn

	bookCh chan venue.BookUpdate
}

// New constructs a Client. It does not dial until SubscribeBook is
// called.
func New(cfg Config) *Client {
	if cfg.Codec == nil {
		cfg.Codec = DefaultCodec{}
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: writeTimeout},
		bookCh:     make(chan venue.BookUpdate, bookChannelDepth),
	}
}

func (c *Client) ID() venue.ID { return c.cfg.ID }

// SubscribeBook dials the venue's WebSocket endpoint and starts a
// background reconnect loop that decodes every message with c.cfg.Codec
// and forwards it on the returned channel. marketIDs is sent as the
// initial subscription payload; reconnects resend it.
func (c *Client) SubscribeBook(ctx context.Context, marketIDs []string) (<-chan venue.BookUpdate, error) {
	go c.run(ctx, marketIDs)
	return c.bookCh, nil
}

func (c *Client) run(ctx context.Context, marketIDs []string) {
	backoff := initialBackoff
	for {
		err := c.connectAndRead(ctx, marketIDs)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context, marketIDs []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("wsfeed: dial %s: %w", c.cfg.ID, err)
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	defer func() {
		c.connMu.Lock()
		conn.Close()
		c.conn = nil
		c.connMu.Unlock()
	}()

	sub := map[string]interface{}{"operation": "subscribe", "market_ids": marketIDs}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("wsfeed: subscribe %s: %w", c.cfg.ID, err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("wsfeed: read %s: %w", c.cfg.ID, err)
		}
		u, err := c.cfg.Codec.DecodeBookUpdate(raw)
		if err != nil {
			continue
		}
		select {
		case c.bookCh <- u:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PlaceOrder submits req to the venue's REST order endpoint.
func (c *Client) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	body, err := c.cfg.Codec.EncodeOrderRequest(req)
	if err != nil {
		return venue.OrderResult{}, fmt.Errorf("wsfeed: encode order: %w", err)
	}
	raw, err := c.post(ctx, "/orders", body)
	if err != nil {
		return venue.OrderResult{}, err
	}
	return c.cfg.Codec.DecodeOrderResult(raw)
}

// CancelAll cancels every open order on marketID, best-effort.
func (c *Client) CancelAll(ctx context.Context, marketID string) error {
	body, _ := json.Marshal(map[string]string{"market_id": marketID})
	_, err := c.post(ctx, "/orders/cancel-all", body)
	return err
}

// GetPositions fetches the authoritative position list.
func (c *Client) GetPositions(ctx context.Context) ([]venue.Position, error) {
	raw, err := c.get(ctx, "/positions")
	if err != nil {
		return nil, err
	}
	return c.cfg.Codec.DecodePositions(raw)
}

// Close tears down the active WebSocket connection, if any.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RESTBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.RESTBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)
	return c.do(req)
}

func (c *Client) setAuth(req *http.Request) {
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wsfeed: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("wsfeed: %s %s: read body: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("wsfeed: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return buf, nil
}
