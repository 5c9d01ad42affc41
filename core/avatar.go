package session

import (
	"context"
	"fmt"

	"github.com/andrassy/viseme-core/core/avatar"
	"github.com/andrassy/viseme-core/core/events"
)

// avatarEndpoint normalizes the configured rendering client behind a
// nil-safe facade and translates its connection lifecycle into events.
type avatarEndpoint struct {
	client AvatarClient

	emitEvent eventEmitter
}

func newAvatarEndpoint(client AvatarClient) *avatarEndpoint {
	return &avatarEndpoint{
		client:    client,
		emitEvent: noopEventEmitter,
	}
}

func (a *avatarEndpoint) set(client AvatarClient) {
	if a != nil {
		a.client = client
	}
}

func (a *avatarEndpoint) isConfigured() bool {
	return a != nil && a.client != nil
}

func (a *avatarEndpoint) Initialize(ctx context.Context, config avatar.Config) error {
	if !a.isConfigured() {
		return nil
	}

	if err := a.client.Initialize(ctx, config); err != nil {
		return fmt.Errorf("failed to initialize avatar endpoint: %w", err)
	}
	return nil
}

func (a *avatarEndpoint) Start(ctx context.Context) error {
	if !a.isConfigured() {
		return nil
	}

	if err := a.client.Start(ctx,
		avatar.WithConnectedCallback(a.invokeConnected),
		avatar.WithDisconnectedCallback(a.invokeDisconnected),
		avatar.WithErrorCallback(a.invokeError),
	); err != nil {
		return fmt.Errorf("failed to start avatar endpoint: %w", err)
	}
	return nil
}

func (a *avatarEndpoint) Reconnect(ctx context.Context) error {
	if !a.isConfigured() {
		return nil
	}
	return a.client.Reconnect(ctx)
}

func (a *avatarEndpoint) SendAudioData(chunk []int16) error {
	if !a.isConfigured() {
		return nil
	}
	return a.client.SendAudioData(chunk)
}

func (a *avatarEndpoint) ClearBuffer() error {
	if !a.isConfigured() {
		return nil
	}
	return a.client.ClearBuffer()
}

func (a *avatarEndpoint) Close(ctx context.Context) error {
	if !a.isConfigured() {
		return nil
	}

	switch c := a.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close avatar client: %w", err)
		}
	case interface{ Close(context.Context) }:
		c.Close(ctx)
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close avatar client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}

func (a *avatarEndpoint) SetEventEmitter(emitEvent eventEmitter) {
	if a != nil {
		if emitEvent != nil {
			a.emitEvent = emitEvent
		} else {
			a.emitEvent = noopEventEmitter
		}
	}
}

func (a *avatarEndpoint) invokeConnected() {
	a.emitEvent(events.NewAvatarConnected())
}

func (a *avatarEndpoint) invokeDisconnected(reason string) {
	a.emitEvent(events.NewAvatarDisconnected(reason))
}

func (a *avatarEndpoint) invokeError(err error) {
	logger.Warn("avatar endpoint error", "error", err)
}
