// Package events publishes project lifecycle events to a message broker.
// Publishing is best-effort: a broker outage must never fail the request
// that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reqforge/apiserver/types"
)

// Channel is the broker channel all project events go to.
const Channel = "project-events"

// Event kinds.
const (
	KindProjectCreated    = "project.created"
	KindProjectDeleted    = "project.deleted"
	KindArtifactGenerated = "project.artifact_generated"
	KindProjectExported   = "project.exported"
)

// Event describes something that happened to a project. Events carry ids
// only, never document or credential contents.
type Event struct {
	Kind      string         `json:"kind"`
	ProjectID string         `json:"project_id"`
	UserID    string         `json:"user_id"`
	Artifact  types.Artifact `json:"artifact,omitempty"`
	At        time.Time      `json:"at"`
}

// Handler processes an event. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, event Event) error

// Backend defines the broker-agnostic operations used by the bus.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler func(ctx context.Context, data []byte) error) error
	Close() error
}

// Bus wraps a backend with a typed API.
type Bus struct {
	backend Backend
}

// NewBus constructs a Bus for the provided backend.
func NewBus(backend Backend) *Bus {
	return &Bus{backend: backend}
}

// Publish sends the event to the project-events channel.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = b.backend.Publish(ctx, Channel, data, map[string]string{"kind": event.Kind})
	return err
}

// Subscribe consumes project events, for out-of-process consumers built on
// this module.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	return b.backend.Subscribe(ctx, Channel, func(ctx context.Context, data []byte) error {
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			return err
		}
		return handler(ctx, event)
	})
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops events; used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
