package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
)

func TestNewNoneDriver(t *testing.T) {
	b, err := New(config.BridgeConfig{Driver: "none"}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.ErrorIs(t, b.Send(context.Background(), "1", "hi"), ErrDisabled)
	assert.ErrorIs(t, b.Check(context.Background()), ErrDisabled)
	assert.NoError(t, b.Close())

	_, err = New(config.BridgeConfig{Driver: "carrier-pigeon"}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestNATSRoundTrip(t *testing.T) {
	var (
		mu       sync.Mutex
		received []domain.BridgeMessage
	)
	got := make(chan struct{}, 1)
	handler := func(msg domain.BridgeMessage) {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		got <- struct{}{}
	}

	n, err := NewNATS(config.NATSConfig{
		SubjectPrefix: "test.bridge",
		Embedded:      true,
		EmbeddedPort:  -1,
	}, handler, zerolog.Nop())
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.Check(context.Background()))

	peer, err := nats.Connect(n.conn.ConnectedUrl())
	require.NoError(t, err)
	defer peer.Close()

	out, err := peer.SubscribeSync("test.bridge.out.>")
	require.NoError(t, err)
	require.NoError(t, peer.Flush())

	require.NoError(t, n.Send(context.Background(), "100", "Alice: hello"))
	msg, err := out.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "test.bridge.out.100", msg.Subject)
	var o outbound
	require.NoError(t, json.Unmarshal(msg.Data, &o))
	assert.Equal(t, outbound{ChannelID: "100", Text: "Alice: hello"}, o)

	payload, _ := json.Marshal(inbound{ChannelID: "200", Author: "mod", Text: "hi", Attachments: []string{"http://x/a.png"}})
	require.NoError(t, peer.Publish("test.bridge.in.200", payload))
	require.NoError(t, peer.Publish("test.bridge.in.200", []byte("not json")))
	require.NoError(t, peer.Flush())

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "mod", received[0].Author)
	assert.Equal(t, []string{"http://x/a.png"}, received[0].Attachments)
}

func TestSlackSend(t *testing.T) {
	var (
		mu     sync.Mutex
		posted []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/chat.postMessage":
			mu.Lock()
			posted = append(posted, r.FormValue("channel")+"|"+r.FormValue("text"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1.0"}`))
		case "/auth.test":
			_, _ = w.Write([]byte(`{"ok":true,"team":"pitch","user":"bot"}`))
		default:
			_, _ = w.Write([]byte(`{"ok":false,"error":"unknown_method"}`))
		}
	}))
	defer srv.Close()

	s, err := NewSlack(config.SlackConfig{Token: "xoxb-test", APIURL: srv.URL + "/"}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), "C1", "Console » hi"))
	require.NoError(t, s.Check(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"C1|Console » hi"}, posted)

	_, err = NewSlack(config.SlackConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

type countingBridge struct {
	None
	sends int
}

func (c *countingBridge) Send(context.Context, string, string) error {
	c.sends++
	return nil
}

func TestLimited(t *testing.T) {
	inner := &countingBridge{}
	l := NewLimited(inner, 1000, 2)

	require.NoError(t, l.Send(context.Background(), "1", "a"))
	require.NoError(t, l.Send(context.Background(), "1", "b"))
	assert.Equal(t, 2, inner.sends)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Send(ctx, "1", "c"))
	assert.Equal(t, 2, inner.sends)
}

func TestLimitedNonPositiveRate(t *testing.T) {
	for _, rate := range []float64{0, -3} {
		inner := &countingBridge{}
		l := NewLimited(inner, rate, 1)
		assert.Equal(t, float64(DefaultRate), float64(l.limiter.Limit()))

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		require.NoError(t, l.Send(ctx, "1", "a"))
		require.NoError(t, l.Send(ctx, "1", "b"))
		cancel()
		assert.Equal(t, 2, inner.sends)
	}
}
