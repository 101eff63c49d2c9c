package api

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/host"
)

func newHubClient(hub *WebSocketHub) *WebSocketClient {
	return &WebSocketClient{hub: hub, send: make(chan []byte, 256), remoteAddr: "shim"}
}

func TestHostHubTracksShimConnection(t *testing.T) {
	registry := host.NewRegistry(zerolog.Nop(), 16)
	hub := NewWebSocketHub("host", zerolog.Nop())
	hub.OnCount(func(n int) { registry.SetConnected(n > 0) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	connected := func() bool { return registry.Connected() }
	disconnected := func() bool { return !registry.Connected() }
	event := domain.Event{Type: domain.EventBroadcast, Data: domain.BroadcastEvent{Text: "hello"}}

	shim := newHubClient(hub)
	hub.register <- shim
	require.Eventually(t, connected, time.Second, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		hub.Broadcast(event)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-shim.send:
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	hub.unregister <- shim
	require.Eventually(t, disconnected, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())

	for i := 0; i < 10; i++ {
		hub.Broadcast(event)
	}

	again := newHubClient(hub)
	hub.register <- again
	require.Eventually(t, connected, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	// a second shim leaving does not hide the first
	other := newHubClient(hub)
	hub.register <- other
	hub.unregister <- other
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, registry.Connected())

	cancel()
	require.Eventually(t, disconnected, time.Second, 5*time.Millisecond)
}
