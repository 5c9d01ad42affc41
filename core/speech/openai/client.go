package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/codes"

	"github.com/andrassy/viseme-core/core/speech"
)

// Client speaks the realtime speech-model protocol over a websocket. It is
// the session's outbound sink for microphone audio and its inbound source of
// synthesized speech, transcripts and turn-taking signals.
type Client struct {
	ws *websocket.Conn
	mu sync.Mutex

	voice   realtimeVoice
	options speech.SessionOptions

	paused atomic.Bool
	closed atomic.Bool

	// contextReference is the opaque conversation token reported by the
	// endpoint. Its internal structure is not ours to interpret.
	contextReference   atomic.Value
	activeResponseID   atomic.Value
	sessionID          atomic.Value
	readLoopDone       chan struct{}
	appendedFrameCount atomic.Int64
}

func NewClient(voice realtimeVoice) (*Client, error) {
	client := &Client{voice: defaultVoice, readLoopDone: make(chan struct{})}

	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice")
	}
	client.voice = voice

	return client, nil
}

// Connect dials the endpoint and starts processing server events. The
// configured callbacks fire from the read loop goroutine.
func (c *Client) Connect(ctx context.Context, opts ...speech.SessionOption) error {
	if c.closed.Load() {
		return fmt.Errorf("speech session closed")
	}

	ctx, span := tracer.Start(ctx, "connect speech endpoint")
	defer span.End()

	c.options = speech.SessionOptions{
		AudioDeltaCallback:      func(string, []float32) {},
		TranscriptDeltaCallback: func(string, string) {},
		UserTranscriptCallback:  func(string, bool) {},
		SpeechStoppedCallback:   func() {},
		InterruptedCallback:     func(string) {},
		ErrorCallback:           func(error) {},
	}
	for _, opt := range opts {
		opt(&c.options)
	}

	ws, err := connectWebsocket(ctx)
	if err != nil {
		recordedErr := fmt.Errorf("failed to open websocket: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return recordedErr
	}
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()

	go c.processIncomingMessages(ctx, ws)

	return nil
}

func connectWebsocket(_ context.Context) (*websocket.Conn, error) {
	// TODO: Allow passing API key in constructor
	apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
	if !ok {
		return nil, fmt.Errorf("openai api key not found")
	}

	host := "api.openai.com"
	if override, ok := os.LookupEnv("OPENAI_REALTIME_HOST"); ok {
		host = override
	}

	urlValues := url.Values{}
	urlValues.Set("model", "gpt-4o-realtime-preview")

	conn, _, err := websocket.DefaultDialer.Dial(
		(&url.URL{
			Scheme: "wss",
			Host:   host, Path: "/v1/realtime",
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{
			"Authorization": {"Bearer " + apiKey},
			"OpenAI-Beta":   {"realtime=v1"},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to speech endpoint: %w", err)
	}

	return conn, nil
}

// UpdateSession applies voice, instructions, turn detection and transcription
// settings. Safe to call again after a context restore.
func (c *Client) UpdateSession(_ context.Context, config speech.SessionConfig) error {
	voice := string(c.voice)
	if config.Voice != "" {
		voice = config.Voice
	}

	turnDetection := config.TurnDetection
	if turnDetection == "" {
		turnDetection = speech.TurnDetectionServerVAD
	}

	msg := sessionUpdateMsg(sessionSettings{
		Voice:         voice,
		Instructions:  config.Instructions,
		TurnDetection: &turnDetectionSettings{Type: string(turnDetection)},
	})
	if config.TranscriptionModel != "" {
		msg.Session.InputAudioTranscription = &transcriptionSettings{Model: config.TranscriptionModel}
	}

	if err := c.sendWebsocketMessage(msg); err != nil {
		return fmt.Errorf("failed to update speech session: %w", err)
	}
	return nil
}

// AppendInputAudio forwards one microphone frame (PCM16LE at the capture
// rate). Frames sent while paused are dropped without error; the endpoint
// keeps its own input buffer, so no local queueing happens here.
func (c *Client) AppendInputAudio(frame []byte) error {
	if c.closed.Load() {
		return fmt.Errorf("speech session closed")
	}
	if c.paused.Load() {
		return nil
	}

	if err := c.sendWebsocketMessage(inputAudioAppendMsg(frame)); err != nil {
		return fmt.Errorf("failed to append input audio: %w", err)
	}
	c.appendedFrameCount.Add(1)
	return nil
}

// CancelResponse cancels the in-flight model response, if any.
func (c *Client) CancelResponse(responseID string) error {
	if c.closed.Load() {
		return fmt.Errorf("speech session closed")
	}

	if err := c.sendWebsocketMessage(responseCancelMsg(responseID)); err != nil {
		return fmt.Errorf("failed to cancel response: %w", err)
	}
	return nil
}

// Pause stops accepting new input audio. Purely local: nothing is sent on
// the wire, so whatever the endpoint has buffered survives the pause.
func (c *Client) Pause(context.Context) error {
	c.paused.Store(true)
	return nil
}

// Resume re-enables input audio after a [Client.Pause].
func (c *Client) Resume(context.Context) error {
	c.paused.Store(false)
	return nil
}

// ContextReference returns the opaque token identifying the current
// conversation context, or an empty string before the endpoint reports one.
func (c *Client) ContextReference() string {
	if ref, ok := c.contextReference.Load().(string); ok {
		return ref
	}
	return ""
}

// RestoreContext re-applies a previously captured context token to a
// (re)connected session.
func (c *Client) RestoreContext(_ context.Context, contextReference string) error {
	if contextReference == "" {
		return nil
	}

	if err := c.sendWebsocketMessage(conversationRestoreMsg(contextReference)); err != nil {
		return fmt.Errorf("failed to restore conversation context: %w", err)
	}
	return nil
}

// Close is safe to call repeatedly, and a connection that lands after an
// earlier Close (a connect that was already in flight) is torn down by the
// next call rather than leaked.
func (c *Client) Close(ctx context.Context) error {
	c.closed.Store(true)

	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws == nil {
		return nil
	}

	var closeErr error
	if err := ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	); err != nil {
		if aggressiveCloseErr := ws.Close(); aggressiveCloseErr != nil {
			closeErr = fmt.Errorf("failed to close websocket: %w", aggressiveCloseErr)
		}
	} else {
		closeErr = ws.Close()
	}

	select {
	case <-c.readLoopDone:
	case <-time.After(2 * time.Second):
		logger.Warn("timed out waiting for speech read loop to exit")
	}

	return closeErr
}

func (c *Client) sendWebsocketMessage(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return fmt.Errorf("websocket connection closed")
	} else if c.ws == nil {
		return fmt.Errorf("websocket connection closed")
	}

	if err := c.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
