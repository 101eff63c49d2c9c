package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernie/pitchside/internal/bridge"
	"github.com/ernie/pitchside/internal/chat"
	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/storage"
)

const baseConfig = `
bridge:
  driver: fake
channels:
  default_channel: global
  list:
    global:
      broadcast: true
      bridge_id: "100"
      formats:
        chat: "%player%: %message%"
        chat_to_bridge: "%player_name%: %message%"
    staff:
      permission: core.staff
      aliases: [sc]
match:
  half_duration: 10m
  tick: 1h
`

type fakeBridge struct {
	mu      sync.Mutex
	sent    []string
	closed  bool
	handler bridge.Handler
}

func (b *fakeBridge) Send(_ context.Context, channelID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, channelID+"|"+text)
	return nil
}

func (b *fakeBridge) Check(context.Context) error { return nil }

func (b *fakeBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBridge) Sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent...)
}

func (b *fakeBridge) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type fixture struct {
	m       *Manager
	store   *storage.Store
	bridges []*fakeBridge
	dir     string
}

func (f *fixture) lastBridge() *fakeBridge {
	if len(f.bridges) == 0 {
		return nil
	}
	return f.bridges[len(f.bridges)-1]
}

func parseConfig(t *testing.T, yml, dir string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yml))
	require.NoError(t, err)
	cfg.Rosters.File = filepath.Join(dir, "rosters.yml")
	return cfg
}

func newFixture(t *testing.T, load Loader) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store, dir: dir}
	f.m = NewManager(parseConfig(t, baseConfig, dir), load, store, zerolog.Nop())
	f.m.newBridge = func(_ config.BridgeConfig, handler bridge.Handler, _ zerolog.Logger) (bridge.Bridge, error) {
		b := &fakeBridge{handler: handler}
		f.bridges = append(f.bridges, b)
		return b, nil
	}
	require.NoError(t, f.m.Start(context.Background()))
	t.Cleanup(f.m.Stop)
	return f
}

// drain collects every event published so far
func drain(m *Manager) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev := <-m.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func findText(events []domain.Event, needle string) (domain.Event, bool) {
	for _, ev := range events {
		switch d := ev.Data.(type) {
		case domain.BroadcastEvent:
			if strings.Contains(d.Text, needle) {
				return ev, true
			}
		case domain.SendEvent:
			if strings.Contains(d.Text, needle) {
				return ev, true
			}
		}
	}
	return domain.Event{}, false
}

func TestJoinChatLeave(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.m.PlayerJoin(ctx, domain.Player{UUID: "a", Name: "Alice"}))
	rec, err := f.store.GetPlayerByUUID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec.Name)

	d, err := f.m.Chat(ctx, "a", "hello all")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, d.Everyone)
	assert.Equal(t, "global", d.Channel)

	_, ok := findText(drain(f.m), "Alice: hello all")
	assert.True(t, ok)

	b := f.lastBridge()
	require.NotNil(t, b)
	assert.Eventually(t, func() bool {
		sent := b.Sent()
		return len(sent) == 1 && sent[0] == "100|Alice: hello all"
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, f.m.PlayerLeave(ctx, "a"))
	assert.ErrorIs(t, f.m.PlayerLeave(ctx, "a"), ErrNotOnline)

	_, err = f.m.Chat(ctx, "a", "anyone?")
	assert.ErrorIs(t, err, ErrNotOnline)
}

func TestPlayerJoinValidation(t *testing.T) {
	f := newFixture(t, nil)
	assert.Error(t, f.m.PlayerJoin(context.Background(), domain.Player{UUID: " ", Name: "Alice"}))
	assert.Error(t, f.m.PlayerJoin(context.Background(), domain.Player{UUID: "a"}))
	assert.Empty(t, f.m.Host().Online())
}

func TestBridgeInbound(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.m.PlayerJoin(context.Background(), domain.Player{UUID: "a", Name: "Alice"}))
	drain(f.m)

	b := f.lastBridge()
	require.NotNil(t, b)
	b.handler(domain.BridgeMessage{ChannelID: "100", Author: "Zed", Text: "kickoff soon"})

	ev, ok := findText(drain(f.m), "Zed: kickoff soon")
	require.True(t, ok)
	assert.Equal(t, domain.EventBroadcast, ev.Type)

	// unknown ids reach nobody
	b.handler(domain.BridgeMessage{ChannelID: "999", Author: "Zed", Text: "lost"})
	_, ok = findText(drain(f.m), "lost")
	assert.False(t, ok)
}

func TestCommandReplies(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.m.PlayerJoin(ctx, domain.Player{UUID: "a", Name: "Alice"}))
	drain(f.m)

	reply, err := f.m.Command(ctx, "a", "channel", []string{"list"})
	require.NoError(t, err)
	require.NotEmpty(t, reply)

	sends := 0
	for _, ev := range drain(f.m) {
		if s, ok := ev.Data.(domain.SendEvent); ok {
			assert.Equal(t, []string{"a"}, s.Recipients)
			sends++
		}
	}
	assert.Equal(t, len(reply), sends)

	_, err = f.m.Command(ctx, "ghost", "channel", []string{"list"})
	assert.ErrorIs(t, err, ErrNotOnline)

	assert.Nil(t, f.m.ConsoleCommand(ctx, "   "))
	assert.NotEmpty(t, f.m.ConsoleCommand(ctx, "result status"))
	assert.NotEmpty(t, f.m.MatchCommand(ctx, "status", nil))
}

func TestRosterGrants(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.m.PlayerJoin(ctx, domain.Player{UUID: "b", Name: "Bob"}))
	f.m.ConsoleCommand(ctx, "rosters create ars ARS")
	f.m.ConsoleCommand(ctx, "rosters add ars Bob")

	// online members are granted as soon as the roster changes
	assert.True(t, f.m.Host().HasPermission("b", "core.team.ars"))
	_, ok := f.m.Router().Registry().Get("ars")
	assert.True(t, ok)

	f.m.ConsoleCommand(ctx, "rosters add ars Alice")
	require.NoError(t, f.m.PlayerJoin(ctx, domain.Player{UUID: "a", Name: "Alice"}))
	assert.True(t, f.m.Host().HasPermission("a", "core.team.ars"))

	f.m.ConsoleCommand(ctx, "rosters remove Bob")
	assert.False(t, f.m.Host().HasPermission("b", "core.team.ars"))
}

func TestReload(t *testing.T) {
	var (
		mu      sync.Mutex
		yml     = baseConfig
		loadErr error
	)
	var dir string
	load := func() (*config.Config, error) {
		mu.Lock()
		defer mu.Unlock()
		if loadErr != nil {
			return nil, loadErr
		}
		cfg, err := config.Parse([]byte(yml))
		if err != nil {
			return nil, err
		}
		cfg.Rosters.File = filepath.Join(dir, "rosters.yml")
		return cfg, nil
	}
	f := newFixture(t, load)
	dir = f.dir
	ctx := context.Background()

	_, ok := f.m.Router().Registry().Get("trade")
	require.False(t, ok)
	first := f.lastBridge()

	mu.Lock()
	yml = strings.Replace(baseConfig, "match:", `    trade:
      formats:
        chat: "[T] %player%: %message%"
match:`, 1)
	mu.Unlock()
	require.NoError(t, f.m.Reload(ctx))
	_, ok = f.m.Router().Registry().Get("trade")
	assert.True(t, ok)

	// an unchanged bridge section keeps the connection
	assert.Same(t, first, f.lastBridge())
	assert.False(t, first.Closed())

	mu.Lock()
	loadErr = errors.New("broken yaml")
	mu.Unlock()
	before := f.m.Config()
	assert.Error(t, f.m.Reload(ctx))
	assert.Same(t, before, f.m.Config())

	mu.Lock()
	loadErr = nil
	yml = strings.Replace(baseConfig, "driver: fake", "driver: fake\n  burst: 3", 1)
	mu.Unlock()
	require.Len(t, f.m.ConsoleCommand(ctx, "core reload"), 1)
	assert.True(t, first.Closed())
	assert.NotSame(t, first, f.lastBridge())
	require.NoError(t, f.m.CheckBridge(ctx))
}

func TestBridgeFailureDegrades(t *testing.T) {
	f := newFixture(t, nil)
	f.m.newBridge = func(config.BridgeConfig, bridge.Handler, zerolog.Logger) (bridge.Bridge, error) {
		return nil, errors.New("dial refused")
	}
	f.m.mu.Lock()
	f.m.cfg.Bridge.Burst = 99
	f.m.mu.Unlock()

	require.NoError(t, f.m.Reload(context.Background()))
	assert.False(t, f.m.Router().Relay().Active())
	assert.ErrorIs(t, f.m.CheckBridge(context.Background()), bridge.ErrDisabled)
}

func TestChannelAdmin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.m.PlayerJoin(ctx, domain.Player{UUID: "a", Name: "Alice"}))
	require.NoError(t, f.m.PlayerJoin(ctx, domain.Player{UUID: "b", Name: "Bob", Permissions: []string{"core.staff"}}))
	f.m.Router().Subscriptions().Subscribe("b", "staff")
	drain(f.m)

	subs, err := f.m.Subscribers("sc")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Bob", subs[0].Name)

	_, err = f.m.Subscribers("nope")
	assert.ErrorIs(t, err, chat.ErrChannelNotFound)

	disabled, err := f.m.ToggleChannel("staff", "admin")
	require.NoError(t, err)
	assert.True(t, disabled)
	ev, ok := findText(drain(f.m), "admin")
	require.True(t, ok)
	assert.Equal(t, domain.EventBroadcast, ev.Type)

	var staff domain.ChannelInfo
	for _, info := range f.m.Channels() {
		if info.Name == "staff" {
			staff = info
		}
	}
	assert.True(t, staff.Disabled)
	assert.Equal(t, 1, staff.Subscribers)

	_, err = f.m.ToggleChannel("nope", "admin")
	assert.ErrorIs(t, err, chat.ErrChannelNotFound)
}

func TestStopClosesBridge(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.m.PlayerJoin(context.Background(), domain.Player{UUID: "a", Name: "Alice"}))
	b := f.lastBridge()

	f.m.Stop()
	assert.True(t, b.Closed())
	assert.ErrorIs(t, f.m.CheckBridge(context.Background()), bridge.ErrDisabled)
}
