package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	"github.com/gorilla/websocket"
)

type sessionSettings struct {
	Voice                   string                 `json:"voice,omitempty"`
	Instructions            string                 `json:"instructions,omitempty"`
	TurnDetection           *turnDetectionSettings `json:"turn_detection,omitempty"`
	InputAudioTranscription *transcriptionSettings `json:"input_audio_transcription,omitempty"`
}

type turnDetectionSettings struct {
	Type string `json:"type"`
}

type transcriptionSettings struct {
	Model string `json:"model"`
}

type sessionUpdateMessage struct {
	Type    string          `json:"type"`
	Session sessionSettings `json:"session"`
}

func sessionUpdateMsg(settings sessionSettings) sessionUpdateMessage {
	return sessionUpdateMessage{Type: "session.update", Session: settings}
}

func inputAudioAppendMsg(frame []byte) struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
} {
	return struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}{Type: "input_audio_buffer.append", Audio: base64.StdEncoding.EncodeToString(frame)}
}

func responseCancelMsg(responseID string) struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id,omitempty"`
} {
	return struct {
		Type       string `json:"type"`
		ResponseID string `json:"response_id,omitempty"`
	}{Type: "response.cancel", ResponseID: responseID}
}

func conversationRestoreMsg(contextReference string) struct {
	Type    string `json:"type"`
	Context string `json:"context"`
} {
	return struct {
		Type    string `json:"type"`
		Context string `json:"context"`
	}{Type: "conversation.restore", Context: contextReference}
}

type serverEvent struct {
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	ItemID     string `json:"item_id"`
	ResponseID string `json:"response_id"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`

	Session struct {
		ID string `json:"id"`
	} `json:"session"`

	Item struct {
		ID string `json:"id"`
	} `json:"item"`

	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) processIncomingMessages(ctx context.Context, ws *websocket.Conn) {
	defer close(c.readLoopDone)

	for {
		msgType, msg, err := ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() && err.Error() != "websocket: close 1000 (normal)" {
				log.Printf("Websocket read error: %v", err)
				c.options.ErrorCallback(fmt.Errorf("speech endpoint connection lost: %w", err))
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		c.handleMessage(ctx, msg)
	}
}

func (c *Client) handleMessage(_ context.Context, msg []byte) {
	var parsedMsg serverEvent
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("dropping unparseable speech endpoint message", "error", err)
		return
	}

	switch parsedMsg.Type {
	case "session.created", "session.updated":
		c.sessionID.Store(parsedMsg.Session.ID)
		if c.ContextReference() == "" {
			c.contextReference.Store(parsedMsg.Session.ID)
		}
	case "conversation.item.created":
		c.contextReference.Store(parsedMsg.Item.ID)
	case "response.created":
		c.activeResponseID.Store(parsedMsg.ResponseID)
	case "response.audio.delta":
		samples, err := decodeAudioDelta(parsedMsg.Delta)
		if err != nil {
			logger.Warn("dropping malformed audio delta", "error", err)
			return
		}
		c.options.AudioDeltaCallback(parsedMsg.ItemID, samples)
	case "response.audio_transcript.delta":
		c.options.TranscriptDeltaCallback(parsedMsg.ItemID, parsedMsg.Delta)
	case "conversation.item.input_audio_transcription.delta":
		c.options.UserTranscriptCallback(parsedMsg.Delta, false)
	case "conversation.item.input_audio_transcription.completed":
		c.options.UserTranscriptCallback(parsedMsg.Transcript, true)
	case "input_audio_buffer.speech_stopped":
		c.options.SpeechStoppedCallback()
	case "input_audio_buffer.speech_started", "conversation.interrupted":
		// Barge-in: speech_started while a response is playing is the
		// endpoint's interruption signal.
		responseID, _ := c.activeResponseID.Load().(string)
		c.options.InterruptedCallback(responseID)
	case "response.done":
		c.activeResponseID.Store("")
	case "error":
		c.options.ErrorCallback(fmt.Errorf("speech endpoint error: %s (%s)", parsedMsg.Error.Message, parsedMsg.Error.Code))
	default:
		// Unknown event shapes are dropped rather than accessed unchecked.
	}
}

// decodeAudioDelta turns the endpoint's base64 PCM16LE payload into float
// samples in [-1, 1] at the model's native rate.
func decodeAudioDelta(delta string) ([]float32, error) {
	data, err := base64.StdEncoding.DecodeString(delta)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio delta: %w", err)
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(data[2*i])|int16(data[2*i+1])<<8) / 32768
	}
	return samples, nil
}
