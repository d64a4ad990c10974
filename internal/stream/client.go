package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/thruflo/slidesync/internal/logging"
)

// ErrUnknownEvent is returned by Publish for event names the relay does not route.
var ErrUnknownEvent = errors.New("unknown event")

// Client talks to a relay server. Subscriptions reconnect automatically;
// publishes are single attempts.
type Client struct {
	// baseURL is the relay address (e.g., "http://10.0.0.2:9090")
	baseURL string

	httpClient *http.Client
	logger     *logging.Logger

	// connID is the connection ID of the live subscription, if any
	connID string
	mu     sync.RWMutex

	// reconnectInterval is the time to wait between reconnection attempts
	reconnectInterval time.Duration

	// maxReconnectAttempts is the maximum number of reconnection attempts (0 = unlimited)
	maxReconnectAttempts int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithReconnectInterval sets the interval between reconnection attempts.
func WithReconnectInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.reconnectInterval = interval
	}
}

// WithMaxReconnectAttempts sets the maximum number of consecutive failed
// connection attempts. Set to 0 for unlimited attempts.
func WithMaxReconnectAttempts(attempts int) ClientOption {
	return func(c *Client) {
		c.maxReconnectAttempts = attempts
	}
}

// WithLogger sets the logger used for connection diagnostics.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the relay at baseURL. A missing scheme
// defaults to http.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: NormalizeAddress(baseURL),
		httpClient: &http.Client{
			Timeout: 0, // No timeout for streaming connections
		},
		logger:               logging.Default(),
		reconnectInterval:    2 * time.Second,
		maxReconnectAttempts: 0,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NormalizeAddress trims a trailing slash and prepends http:// when addr has no scheme.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSuffix(strings.TrimSpace(addr), "/")
	if addr != "" && !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return addr
}

// BaseURL returns the relay address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ConnectionID returns the connection ID of the current subscription, or ""
// when not subscribed.
func (c *Client) ConnectionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connID
}

func (c *Client) setConnectionID(id string) {
	c.mu.Lock()
	c.connID = id
	c.mu.Unlock()
}

// Ping checks that the relay is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Subscribe returns a channel of envelopes relayed on topic. The subscription
// reconnects after failures; the envelope channel is closed when ctx is
// cancelled or the reconnect budget is exhausted, in which case the final
// error is sent on the error channel first.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *Envelope, <-chan error) {
	envCh := make(chan *Envelope, 64)
	errCh := make(chan error, 1)

	go c.subscriptionLoop(ctx, topic, envCh, errCh)

	return envCh, errCh
}

func (c *Client) subscriptionLoop(ctx context.Context, topic string, envCh chan<- *Envelope, errCh chan<- error) {
	defer close(envCh)
	defer close(errCh)
	defer c.setConnectionID("")

	attempts := 0

	for {
		if ctx.Err() != nil {
			return
		}

		received, err := c.streamEnvelopes(ctx, topic, envCh)
		if ctx.Err() != nil {
			return
		}
		if received {
			attempts = 0
		}
		if err == nil {
			err = errors.New("stream closed by relay")
		}

		attempts++
		c.logger.Debug("relay subscription dropped", "channel", topic, "attempt", attempts, "error", err)
		if c.maxReconnectAttempts > 0 && attempts >= c.maxReconnectAttempts {
			errCh <- fmt.Errorf("max reconnection attempts (%d) exceeded: %w", c.maxReconnectAttempts, err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectInterval):
		}
	}
}

// streamEnvelopes runs one SSE connection. received reports whether the relay
// accepted the subscription (sent its hello frame).
func (c *Client) streamEnvelopes(ctx context.Context, topic string, envCh chan<- *Envelope) (received bool, err error) {
	u := fmt.Sprintf("%s/subscribe?channel=%s", c.baseURL, url.QueryEscape(topic))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	defer c.setConnectionID("")
	return c.parseSSEStream(ctx, resp.Body, envCh)
}

// parseSSEStream reads frames until the body ends or ctx is cancelled.
func (c *Client) parseSSEStream(ctx context.Context, body io.Reader, envCh chan<- *Envelope) (bool, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		eventName string
		dataLines []string
		hello     bool
	)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return hello, nil
		}

		line := scanner.Text()

		// Empty line terminates a frame
		if line == "" {
			if len(dataLines) > 0 {
				data := []byte(strings.Join(dataLines, "\n"))
				switch eventName {
				case FrameHello:
					var h Hello
					if err := json.Unmarshal(data, &h); err != nil {
						return hello, fmt.Errorf("malformed hello frame: %w", err)
					}
					c.setConnectionID(h.ConnectionID)
					hello = true
				case FrameStateChanged, "":
					env, err := UnmarshalEnvelope(data)
					if err != nil {
						c.logger.Debug("skipping malformed envelope", "error", err)
						break
					}
					select {
					case <-ctx.Done():
						return hello, nil
					case envCh <- env:
					}
				}
			}
			eventName = ""
			dataLines = nil
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil {
		return hello, fmt.Errorf("error reading stream: %w", err)
	}
	return hello, nil
}

// Publish sends env to the relay under eventName. When a subscription is
// live its connection ID is attached so the relay does not echo the message
// back to this client.
func (c *Client) Publish(ctx context.Context, eventName string, env *Envelope) error {
	if eventName != EventStateChanged {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, eventName)
	}
	if env == nil {
		return errors.New("envelope is nil")
	}

	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	u := fmt.Sprintf("%s/publish?event=%s", c.baseURL, url.QueryEscape(eventName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := c.ConnectionID(); id != "" {
		req.Header.Set(HeaderConnection, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result PublishResult
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse publish result: %w", err)
	}
	c.logger.Debug("published", "channel", env.ChannelID, "delivered", result.Delivered)
	return nil
}
