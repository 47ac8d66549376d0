package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
}

func (b *memBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.channel = channel
	b.data = data
	b.attrs = attrs
	return "msg-1", nil
}

func (b *memBackend) Subscribe(ctx context.Context, _ string, handler func(ctx context.Context, data []byte) error) error {
	return handler(ctx, b.data)
}

func (b *memBackend) Close() error { return nil }

func TestBusPublishStampsTimeAndKind(t *testing.T) {
	backend := &memBackend{}
	bus := NewBus(backend)

	err := bus.Publish(context.Background(), Event{
		Kind:      KindProjectCreated,
		ProjectID: "p-1",
		UserID:    "u-1",
	})
	require.NoError(t, err)

	assert.Equal(t, Channel, backend.channel)
	assert.Equal(t, KindProjectCreated, backend.attrs["kind"])

	var sent Event
	require.NoError(t, json.Unmarshal(backend.data, &sent))
	assert.Equal(t, "p-1", sent.ProjectID)
	assert.False(t, sent.At.IsZero())
}

func TestBusSubscribeDecodesEvent(t *testing.T) {
	backend := &memBackend{}
	bus := NewBus(backend)

	original := Event{Kind: KindProjectDeleted, ProjectID: "p-1", UserID: "u-1"}
	require.NoError(t, bus.Publish(context.Background(), original))

	var received Event
	err := bus.Subscribe(context.Background(), func(_ context.Context, event Event) error {
		received = event
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, KindProjectDeleted, received.Kind)
	assert.Equal(t, "p-1", received.ProjectID)
}
