// Package core wires the chat, match, roster and playtime components to the
// host and the external bridge, and owns their lifecycle.
package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/bridge"
	"github.com/ernie/pitchside/internal/chat"
	"github.com/ernie/pitchside/internal/command"
	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/host"
	"github.com/ernie/pitchside/internal/match"
	"github.com/ernie/pitchside/internal/playtime"
	"github.com/ernie/pitchside/internal/reload"
	"github.com/ernie/pitchside/internal/roster"
	"github.com/ernie/pitchside/internal/storage"
	"github.com/ernie/pitchside/internal/text"
)

// ErrNotOnline is returned for events about players the host never reported
var ErrNotOnline = errors.New("player is not online")

// Loader reads a fresh configuration snapshot for reloads
type Loader func() (*config.Config, error)

// Manager owns every runtime component
type Manager struct {
	mu     sync.RWMutex
	cfg    *config.Config
	load   Loader
	bridge bridge.Bridge

	store    *storage.Store
	host     *host.Registry
	router   *chat.Router
	match    *match.Manager
	rosters  *roster.Manager
	playtime *playtime.Tracker
	commands *command.Dispatcher
	pipeline *reload.Pipeline

	// newBridge builds the bridge driver; replaced in tests
	newBridge func(cfg config.BridgeConfig, handler bridge.Handler, log zerolog.Logger) (bridge.Bridge, error)

	cancel context.CancelFunc
	wg     sync.WaitGroup // background loops
	log    zerolog.Logger
	now    func() time.Time
}

// NewManager builds the component graph from cfg. load is used by Reload;
// when nil, Reload re-applies the current snapshot.
func NewManager(cfg *config.Config, load Loader, store *storage.Store, log zerolog.Logger) *Manager {
	m := &Manager{
		cfg:       cfg,
		load:      load,
		store:     store,
		bridge:    bridge.None{},
		newBridge: bridge.New,
		log:       log.With().Str("component", "core").Logger(),
		now:       time.Now,
	}

	m.host = host.NewRegistry(log, 1024)
	m.rosters = roster.NewManager(cfg.Rosters, log)

	reg := chat.NewRegistry()
	m.router = chat.NewRouter(reg, chat.NewSubscriptions(reg),
		chat.NewGate(cfg.Channels.AntiSpam.MaxMessages, cfg.Channels.AntiSpam.CooldownMs),
		chat.NewRelay(nil, log), m.host, store, text.NewMessages(cfg.Messages), log)

	m.match = match.NewManager(cfg.Match, m.host, m.rosters, store, nil, log)
	m.playtime = playtime.NewTracker(store, cfg.Playtime.RefreshInterval, log)

	m.commands = command.NewDispatcher(m.router, m.match, m.rosters, m.host, store, m.playtime, log)
	m.commands.SetReloader(m)
	m.commands.OnRostersChanged(m.refreshRosters)

	m.pipeline = reload.NewPipeline(log)
	for _, s := range m.stages() {
		if err := m.pipeline.Register(s); err != nil {
			// stage names are fixed above
			panic(err)
		}
	}
	return m
}

// stages are the steps of applying a configuration snapshot
func (m *Manager) stages() []reload.Stage {
	return []reload.Stage{
		{Name: "messages", Run: func(context.Context) error {
			m.router.SetMessages(text.NewMessages(m.Config().Messages))
			return nil
		}},
		{Name: "rosters", Run: func(context.Context) error {
			m.rosters.Configure(m.Config().Rosters)
			return m.rosters.Load()
		}},
		{Name: "channels", After: []string{"rosters"}, Run: func(context.Context) error {
			m.refreshRosters()
			return nil
		}},
		{Name: "anti-spam", After: []string{"channels"}, Run: func(context.Context) error {
			as := m.Config().Channels.AntiSpam
			m.router.Gate().Configure(as.MaxMessages, as.CooldownMs)
			return nil
		}},
		{Name: "match", After: []string{"channels"}, Run: func(context.Context) error {
			m.match.Configure(m.Config().Match)
			return nil
		}},
		{Name: "bridge", Run: m.reconnectBridge},
	}
}

// Start applies the configuration, connects the bridge and starts the
// background loops
func (m *Manager) Start(ctx context.Context) error {
	// sessions left open by an unclean shutdown
	if n, err := m.store.EndOpenSessions(ctx, m.now()); err != nil {
		return err
	} else if n > 0 {
		m.log.Info().Int64("sessions", n).Msg("Closed sessions left open by the last run")
	}

	if err := m.pipeline.Run(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.playtime.Run(loopCtx)
	}()

	m.log.Info().Int("channels", len(m.router.Registry().Names())).Msg("Startup complete")
	return nil
}

// Stop stops the loops, the match clock and the bridge, and closes the
// sessions of everyone still online
func (m *Manager) Stop() {
	m.log.Info().Msg("Stopping...")
	if m.cancel != nil {
		m.cancel()
	}
	m.match.Close()

	m.mu.Lock()
	b := m.bridge
	m.bridge = bridge.None{}
	m.mu.Unlock()
	if err := b.Close(); err != nil {
		m.log.Warn().Err(err).Msg("Closing bridge")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.store.EndOpenSessions(ctx, m.now()); err != nil {
		m.log.Error().Err(err).Msg("Failed to close open sessions")
	}
	m.wg.Wait()
	m.log.Info().Msg("Shutdown complete")
}

// Reload reads the configuration again and re-applies it. On a load error
// the running configuration is kept.
func (m *Manager) Reload(ctx context.Context) error {
	if m.load != nil {
		cfg, err := m.load()
		if err != nil {
			m.log.Warn().Err(err).Msg("Reload aborted, keeping current configuration")
			return err
		}
		m.mu.Lock()
		m.cfg = cfg
		m.mu.Unlock()
	}
	return m.pipeline.Run(ctx)
}

// reconnectBridge replaces the bridge when its configuration changed or
// none is connected yet
func (m *Manager) reconnectBridge(context.Context) error {
	cfg := m.Config().Bridge

	m.mu.RLock()
	current := m.bridge
	m.mu.RUnlock()
	if active, ok := current.(*activeBridge); ok && active.cfg == cfg {
		return nil
	}

	// the old driver goes first so an embedded server can rebind its port
	m.router.Relay().SetBridge(nil)
	m.match.SetBridge(nil)
	if err := current.Close(); err != nil {
		m.log.Warn().Err(err).Msg("Closing previous bridge")
	}

	next := bridge.Bridge(bridge.None{})
	b, err := m.newBridge(cfg, m.handleBridgeMessage, m.log)
	if err != nil {
		// relay degrades to a no-op
		m.log.Warn().Err(err).Str("driver", cfg.Driver).Msg("Bridge unavailable, relay disabled")
	} else if _, off := b.(bridge.None); !off {
		next = &activeBridge{Bridge: b, cfg: cfg}
	}

	m.mu.Lock()
	m.bridge = next
	m.mu.Unlock()

	if _, off := next.(bridge.None); !off {
		m.router.Relay().SetBridge(next)
		m.match.SetBridge(next)
		m.log.Info().Str("driver", cfg.Driver).Msg("Bridge connected")
	}
	return nil
}

// activeBridge remembers the configuration a driver was built from
type activeBridge struct {
	bridge.Bridge
	cfg config.BridgeConfig
}

func (m *Manager) handleBridgeMessage(msg domain.BridgeMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	delivered := m.router.HandleBridgeMessage(ctx, msg)
	m.log.Debug().Str("channel_id", msg.ChannelID).Strs("channels", delivered).Msg("Bridge message")
}

// refreshRosters rebuilds channels so team channels follow the rosters and
// re-grants team permissions to everyone online
func (m *Manager) refreshRosters() {
	cfg := m.Config()
	m.router.LoadChannels(cfg.Channels, cfg.PrivateMessages, m.rosters.Channels())
	for _, p := range m.host.Online() {
		m.host.Grant(p.UUID, m.rosters.Grants(p.Name))
	}
}

// CheckBridge verifies the bridge connection
func (m *Manager) CheckBridge(ctx context.Context) error {
	m.mu.RLock()
	b := m.bridge
	m.mu.RUnlock()
	return b.Check(ctx)
}

// --- Host intake ---

// PlayerJoin records a player coming online
func (m *Manager) PlayerJoin(ctx context.Context, p domain.Player) error {
	p.UUID = strings.TrimSpace(p.UUID)
	if p.UUID == "" || strings.TrimSpace(p.Name) == "" {
		return errors.New("player uuid and name are required")
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = m.now()
	}
	m.host.Join(p)
	m.host.Grant(p.UUID, m.rosters.Grants(p.Name))

	if _, _, err := m.store.PlayerJoined(ctx, p.UUID, p.Name, p.JoinedAt); err != nil {
		m.log.Error().Err(err).Str("player", p.Name).Msg("Failed to record join")
		return err
	}
	m.log.Info().Str("player", p.Name).Str("uuid", p.UUID).Msg("Player joined")
	return nil
}

// PlayerLeave records a player going offline
func (m *Manager) PlayerLeave(ctx context.Context, uuid string) error {
	p, ok := m.host.Leave(uuid)
	if !ok {
		return ErrNotOnline
	}
	m.router.PlayerLeft(uuid)
	if err := m.store.PlayerLeft(ctx, uuid, m.now()); err != nil {
		m.log.Error().Err(err).Str("player", p.Name).Msg("Failed to record leave")
		return err
	}
	m.log.Info().Str("player", p.Name).Msg("Player left")
	return nil
}

// Chat routes a chat line from an online player into their active channel
func (m *Manager) Chat(ctx context.Context, uuid, line string) (*domain.Delivery, error) {
	p, ok := m.host.Player(uuid)
	if !ok {
		return nil, ErrNotOnline
	}
	return m.router.Chat(ctx, domain.Sender{UUID: p.UUID, Name: p.Name}, line)
}

// Command runs a command for an online player and delivers the reply to them
func (m *Manager) Command(ctx context.Context, uuid, name string, args []string) ([]string, error) {
	p, ok := m.host.Player(uuid)
	if !ok {
		return nil, ErrNotOnline
	}
	reply := m.commands.Execute(ctx, domain.Sender{UUID: p.UUID, Name: p.Name}, name, args)
	for _, line := range reply {
		m.host.Send([]string{p.UUID}, line)
	}
	return reply, nil
}

// ConsoleCommand runs a command line as the console and returns the reply
func (m *Manager) ConsoleCommand(ctx context.Context, line string) []string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	m.log.Info().Str("command", line).Msg("Console command")
	return m.commands.Execute(ctx, domain.ConsoleSender, fields[0], fields[1:])
}

// --- Admin surface ---

// Channels lists every channel with its state and online subscriber count
func (m *Manager) Channels() []domain.ChannelInfo {
	reg := m.router.Registry()
	online := m.host.Online()
	out := make([]domain.ChannelInfo, 0)
	for _, ch := range reg.All() {
		info := domain.ChannelInfo{Channel: ch, Disabled: reg.IsDisabled(ch.Name)}
		for _, p := range online {
			if m.router.Subscriptions().IsSubscribed(p.UUID, ch.Name) {
				info.Subscribers++
			}
		}
		out = append(out, info)
	}
	return out
}

// Subscribers returns the online players subscribed to a channel
func (m *Manager) Subscribers(name string) ([]domain.Player, error) {
	ch, ok := m.router.Registry().Lookup(name)
	if !ok {
		return nil, chat.ErrChannelNotFound
	}
	out := make([]domain.Player, 0)
	for _, p := range m.host.Online() {
		if m.router.Subscriptions().IsSubscribed(p.UUID, ch.Name) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ToggleChannel flips the disabled flag of a channel and announces it
func (m *Manager) ToggleChannel(name, by string) (bool, error) {
	ch, ok := m.router.Registry().Lookup(name)
	if !ok {
		return false, chat.ErrChannelNotFound
	}
	disabled, err := m.router.Registry().ToggleDisabled(ch.Name)
	if err != nil {
		return false, err
	}
	msgs := m.router.Messages()
	m.host.Broadcast(msgs.Get(text.KeyChannelDisabledAll, "channel", ch.Name, "state", msgs.State(!disabled), "player", by))
	m.log.Info().Str("channel", ch.Name).Bool("disabled", disabled).Str("by", by).Msg("Channel toggled")
	return disabled, nil
}

// MatchCommand runs a "result" subcommand as the console
func (m *Manager) MatchCommand(ctx context.Context, op string, args []string) []string {
	return m.commands.Execute(ctx, domain.ConsoleSender, "result", append([]string{op}, args...))
}

// --- Accessors ---

// Config returns the current configuration snapshot
func (m *Manager) Config() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Events returns the outbound event stream for the WebSocket hub
func (m *Manager) Events() <-chan domain.Event { return m.host.Events() }

func (m *Manager) Host() *host.Registry { return m.host }
func (m *Manager) Router() *chat.Router { return m.router }
func (m *Manager) Match() *match.Manager { return m.match }
func (m *Manager) Rosters() *roster.Manager { return m.rosters }
func (m *Manager) Playtime() *playtime.Tracker { return m.playtime }
func (m *Manager) Store() *storage.Store { return m.store }
func (m *Manager) Commands() *command.Dispatcher { return m.commands }
