package liveavatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"

	"github.com/andrassy/viseme-core/core/audio"
	"github.com/andrassy/viseme-core/core/avatar"
)

// Client streams synthesized speech to the avatar-rendering endpoint and
// surfaces its connection lifecycle. Protocol framing stays inside this
// package; callers only see PCM chunks going out and connected/disconnected
// callbacks coming back.
type Client struct {
	ws *websocket.Conn
	mu sync.Mutex

	httpClient *http.Client

	config  avatar.Config
	options avatar.ConnectionOptions

	sessionToken string
	closed       atomic.Bool
	generation   atomic.Int64
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
	}
}

// Initialize bootstraps a rendering session for the configured avatar and
// stores the returned session token. It does not open the media connection;
// that happens in [Client.Start].
func (c *Client) Initialize(ctx context.Context, config avatar.Config) error {
	ctx, span := tracer.Start(ctx, "initialize avatar session")
	defer span.End()

	c.config = config

	token, err := c.createSession(ctx)
	if err != nil {
		recordedErr := fmt.Errorf("failed to create avatar session: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return recordedErr
	}
	c.sessionToken = token

	return nil
}

func (c *Client) createSession(ctx context.Context) (string, error) {
	apiKey, ok := os.LookupEnv("AVATAR_API_KEY")
	if !ok {
		return "", fmt.Errorf("avatar api key not found")
	}

	reqBody, err := json.Marshal(struct {
		AvatarID       string `json:"avatar_id"`
		SessionTimeout int    `json:"session_timeout,omitempty"`
		IdleTimeout    int    `json:"idle_timeout,omitempty"`
	}{
		AvatarID:       c.config.AvatarID,
		SessionTimeout: int(c.config.SessionTimeout.Seconds()),
		IdleTimeout:    int(c.config.IdleTimeout.Seconds()),
	})
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		(&url.URL{Scheme: "https", Host: endpointHost(), Path: "/v1/sessions"}).String(),
		bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	var parsedResp struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsedResp); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	if parsedResp.SessionToken == "" {
		return "", fmt.Errorf("session response missing token")
	}

	return parsedResp.SessionToken, nil
}

func endpointHost() string {
	if override, ok := os.LookupEnv("AVATAR_ENDPOINT_HOST"); ok {
		return override
	}
	return "api.liveavatar.dev"
}

// Start opens the media websocket. The configured callbacks fire from the
// read loop goroutine; ConnectedCallback fires once the socket is up.
func (c *Client) Start(ctx context.Context, opts ...avatar.ConnectionOption) error {
	c.options = avatar.ConnectionOptions{
		ConnectedCallback:    func() {},
		DisconnectedCallback: func(string) {},
		ErrorCallback:        func(error) {},
	}
	for _, opt := range opts {
		opt(&c.options)
	}

	return c.dial(ctx)
}

// Reconnect re-dials the media websocket after a drop, reusing the session
// token from [Client.Initialize] so the rendering session resumes rather than
// restarts. The ConnectedCallback fires again on success.
func (c *Client) Reconnect(ctx context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("avatar client closed")
	}

	c.mu.Lock()
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
	c.mu.Unlock()

	return c.dial(ctx)
}

func (c *Client) dial(_ context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("avatar client closed")
	}
	if c.sessionToken == "" {
		return fmt.Errorf("avatar session not initialized")
	}

	urlValues := url.Values{}
	urlValues.Set("session", c.sessionToken)
	urlValues.Set("sample_rate", fmt.Sprintf("%d", audio.RenderSampleRate))
	urlValues.Set("encoding", audio.DefaultFormat)

	conn, _, err := websocket.DefaultDialer.Dial(
		(&url.URL{
			Scheme: "wss",
			Host:   endpointHost(), Path: "/v1/stream",
			RawQuery: urlValues.Encode(),
		}).String(), nil)
	if err != nil {
		return fmt.Errorf("failed to open socket connection to avatar endpoint: %w", err)
	}

	c.mu.Lock()
	c.ws = conn
	c.mu.Unlock()

	generation := c.generation.Add(1)
	go c.processIncomingMessages(conn, generation)

	c.options.ConnectedCallback()
	return nil
}

func (c *Client) processIncomingMessages(conn *websocket.Conn, generation int64) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			// A stale read loop must not report a drop for a socket that was
			// already replaced by Reconnect.
			if c.closed.Load() || c.generation.Load() != generation {
				return
			}
			if err.Error() != "websocket: close 1000 (normal)" {
				logger.Warn("avatar websocket read error", "error", err)
			}
			c.options.DisconnectedCallback(err.Error())
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		var parsedMsg struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			continue
		}

		switch parsedMsg.Type {
		case "connected":
			c.options.ConnectedCallback()
		case "disconnected":
			c.options.DisconnectedCallback(parsedMsg.Reason)
		case "error":
			c.options.ErrorCallback(fmt.Errorf("avatar endpoint error: %s", parsedMsg.Reason))
		}
	}
}

// SendAudioData forwards one chunk of int16 samples at the render rate. When
// the endpoint is disconnected this is a no-op; the health monitor is
// responsible for halting the producer side instead.
func (c *Client) SendAudioData(chunk []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil || c.closed.Load() {
		return nil
	}

	if err := c.ws.WriteMessage(websocket.BinaryMessage, audio.BytesLE(chunk)); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// ClearBuffer discards audio the endpoint has buffered but not yet played.
func (c *Client) ClearBuffer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil || c.closed.Load() {
		return nil
	}

	if err := c.ws.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "clear"}); err != nil {
		return fmt.Errorf("failed to clear avatar buffer: %w", err)
	}
	return nil
}

// Close is safe to call repeatedly, and a socket that lands after an earlier
// Close (a dial that was already in flight) is torn down by the next call
// rather than leaked.
func (c *Client) Close() error {
	c.closed.Store(true)

	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws == nil {
		return nil
	}

	if err := ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	); err != nil {
		if aggressiveCloseErr := ws.Close(); aggressiveCloseErr != nil {
			return fmt.Errorf("failed to close websocket: %w", aggressiveCloseErr)
		}
		return nil
	}

	return ws.Close()
}
