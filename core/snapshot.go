package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/andrassy/viseme-core/core/speech"
)

// ConversationSnapshot freezes the speech session's state at the moment a
// rendering-endpoint disconnect is first observed. ContextReference is an
// opaque token supplied by the endpoint; nothing here inspects it.
type ConversationSnapshot struct {
	ID               string
	ContextReference string
	SessionConfig    speech.SessionConfig
	CapturedAt       time.Time
}

// conversationState captures and restores speech-session context across
// disconnects. It does not own the speech session; it reads and writes
// session context through the facade it is given. At most one snapshot is
// live at a time: captured on the first disconnect observation, consumed
// exactly once on a successful reconnect.
type conversationState struct {
	mu sync.Mutex

	speech   *speechEndpoint
	snapshot *ConversationSnapshot
}

func newConversationState(speechFacade *speechEndpoint) *conversationState {
	return &conversationState{speech: speechFacade}
}

// Capture records the current context reference and session configuration.
// A second capture while a snapshot is live is a no-op: the first disconnect
// observation wins.
func (c *conversationState) Capture(config speech.SessionConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil {
		return
	}

	capturedConfig := speech.SessionConfig{}
	if err := copier.CopyWithOption(&capturedConfig, &config, copier.Option{DeepCopy: true}); err != nil {
		capturedConfig = config
	}

	c.snapshot = &ConversationSnapshot{
		ID:               uuid.NewString(),
		ContextReference: c.speech.ContextReference(),
		SessionConfig:    capturedConfig,
		CapturedAt:       time.Now(),
	}
}

// Restore re-applies the captured context to a (re)connected speech session
// and resumes turn-taking. Without a live snapshot it is a no-op. The
// snapshot is consumed even when restoration partially fails; retrying with
// stale context is worse than continuing fresh.
func (c *conversationState) Restore(ctx context.Context) error {
	c.mu.Lock()
	snapshot := c.snapshot
	c.snapshot = nil
	c.mu.Unlock()

	if snapshot == nil {
		return nil
	}

	if err := c.speech.UpdateSession(ctx, snapshot.SessionConfig); err != nil {
		return fmt.Errorf("failed to re-apply session config: %w", err)
	}

	if err := c.speech.RestoreContext(ctx, snapshot.ContextReference); err != nil {
		return fmt.Errorf("failed to restore conversation context: %w", err)
	}

	if err := c.speech.Resume(ctx); err != nil {
		return fmt.Errorf("failed to resume speech session: %w", err)
	}

	return nil
}

// HasSnapshot reports whether a snapshot is currently live.
func (c *conversationState) HasSnapshot() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot != nil
}

// Discard drops a live snapshot without restoring it. Used on teardown.
func (c *conversationState) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
}
