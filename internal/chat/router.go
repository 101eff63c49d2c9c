package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/text"
)

// Permissions checked by the router
const (
	PermBypassDisabled = "core.bypass.disabled-channel"
	PermChatColor      = "core.chat.color"
)

// Host is the subset of the game server the router talks to
type Host interface {
	Online() []domain.Player
	Player(uuid string) (domain.Player, bool)
	ByName(name string) (domain.Player, bool)
	HasPermission(uuid, perm string) bool
	Send(recipients []string, text string)
	Broadcast(text string)
	BroadcastPermission(perm, text string)
	ActionBar(recipients []string, text string)
	PlaySound(uuid, sound string)
	Publish(eventType string, data interface{})
}

// Settings exposes per-user preferences
type Settings interface {
	MentionSound(ctx context.Context, uuid string) (bool, error)
}

// Result describes what a Route call did
type Result struct {
	Toggled    bool
	Subscribed bool
	Delivery   *domain.Delivery
}

type mentionConfig struct {
	enabled bool
	color   string
	sound   string
}

// Router decides who sees a channel message and delivers it
type Router struct {
	mu sync.Mutex

	registry *Registry
	subs     *Subscriptions
	gate     *Gate
	relay    *Relay
	host     Host
	settings Settings
	msgs     *text.Messages

	mentions mentionConfig
	pm       config.PrivateMessagesConfig

	spies       map[string]bool
	lastPartner map[string]string

	log zerolog.Logger
	now func() time.Time
}

// NewRouter wires a router. settings may be nil, in which case mention
// sounds are always played.
func NewRouter(registry *Registry, subs *Subscriptions, gate *Gate, relay *Relay, host Host, settings Settings, msgs *text.Messages, log zerolog.Logger) *Router {
	return &Router{
		registry:    registry,
		subs:        subs,
		gate:        gate,
		relay:       relay,
		host:        host,
		settings:    settings,
		msgs:        msgs,
		mentions:    mentionConfig{enabled: true, color: "&e", sound: "LEVEL_UP"},
		pm:          config.PrivateMessagesConfig{},
		spies:       make(map[string]bool),
		lastPartner: make(map[string]string),
		log:         log.With().Str("component", "chat").Logger(),
		now:         time.Now,
	}
}

// Registry returns the channel registry
func (r *Router) Registry() *Registry { return r.registry }

// Subscriptions returns the subscription store
func (r *Router) Subscriptions() *Subscriptions { return r.subs }

// Gate returns the anti-spam gate
func (r *Router) Gate() *Gate { return r.gate }

// Relay returns the bridge relay
func (r *Router) Relay() *Relay { return r.relay }

// Messages returns the current message catalogue
func (r *Router) Messages() *text.Messages {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs
}

// SetMessages swaps the message catalogue
func (r *Router) SetMessages(msgs *text.Messages) {
	r.mu.Lock()
	r.msgs = msgs
	r.mu.Unlock()
}

// LoadChannels reloads channel definitions and prunes stale subscriptions
func (r *Router) LoadChannels(cfg config.ChannelsConfig, pm config.PrivateMessagesConfig, dynamic []domain.Channel) int {
	n := r.registry.Load(cfg, dynamic)
	r.subs.Prune()

	r.mu.Lock()
	r.mentions = mentionConfig{
		enabled: cfg.Mentions.IsEnabled(),
		color:   cfg.Mentions.Color,
		sound:   cfg.Mentions.Sound,
	}
	r.pm = pm
	r.mu.Unlock()

	if !r.registry.Enabled() {
		r.log.Warn().Msg("Chat channels are disabled in config")
	}
	r.log.Info().Int("channels", n).Msg("Loaded chat channels")
	return n
}

// Route sends message from sender into the named channel. An empty message
// from a player toggles their subscription instead.
func (r *Router) Route(ctx context.Context, sender domain.Sender, channel, message string) (*Result, error) {
	ch, ok := r.registry.Get(channel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channel)
	}

	message = strings.TrimSpace(message)
	if message == "" {
		if sender.Console {
			return nil, ErrIngameOnly
		}
		on := r.subs.Toggle(sender.UUID, ch.Name)
		return &Result{Toggled: true, Subscribed: on}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sender.Console {
		return &Result{Delivery: r.routeConsole(ch, message)}, nil
	}
	d, err := r.routePlayer(ctx, sender, ch, message)
	if err != nil {
		return nil, err
	}
	return &Result{Delivery: d}, nil
}

// Chat routes a raw chat line into the sender's active channel and tells
// the sender when it was refused.
func (r *Router) Chat(ctx context.Context, sender domain.Sender, line string) (*domain.Delivery, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	if !r.registry.Enabled() {
		return nil, ErrChannelsOff
	}
	channel := r.subs.ActiveChannel(sender.UUID)
	res, err := r.Route(ctx, sender, channel, line)
	if err != nil {
		r.notifyError(sender, channel, err)
		return nil, err
	}
	return res.Delivery, nil
}

func (r *Router) notifyError(sender domain.Sender, channel string, err error) {
	if sender.UUID == "" {
		return
	}
	msg := r.Describe(err, channel)
	if errors.Is(err, ErrRateLimited) {
		r.host.ActionBar([]string{sender.UUID}, msg)
		return
	}
	r.host.Send([]string{sender.UUID}, msg)
}

func (r *Router) routeConsole(ch domain.Channel, message string) *domain.Delivery {
	formatted := r.format(ch.Formats.Chat, domain.ConsoleSender, "&cConsole", message)

	d := &domain.Delivery{Channel: ch.Name, Text: formatted}
	online := r.host.Online()
	if ch.Broadcast || ch.Permission == "" {
		d.Everyone = true
		d.Recipients = uuids(online)
		r.host.Broadcast(formatted)
	} else {
		for _, p := range online {
			if r.host.HasPermission(p.UUID, ch.Permission) {
				d.Recipients = append(d.Recipients, p.UUID)
			}
		}
		r.host.BroadcastPermission(ch.Permission, formatted)
	}

	if ch.Formats.ChatToBridge != "" {
		r.forward(ch, d, "Console » "+message)
	}
	r.host.Publish(domain.EventChat, domain.ChatEvent{Channel: ch.Name, Sender: "Console", Message: message})
	return d
}

func (r *Router) routePlayer(ctx context.Context, sender domain.Sender, ch domain.Channel, message string) (*domain.Delivery, error) {
	if r.registry.IsDisabled(ch.Name) && !r.host.HasPermission(sender.UUID, PermBypassDisabled) {
		return nil, fmt.Errorf("%w: %s", ErrChannelDisabled, ch.Name)
	}
	if !r.gate.Allow(sender.UUID, r.now()) {
		return nil, ErrRateLimited
	}

	raw := message
	message = text.SanitizeMessage(message, r.host.HasPermission(sender.UUID, PermChatColor))

	online := r.host.Online()
	d := &domain.Delivery{Channel: ch.Name}
	switch {
	case ch.Broadcast:
		d.Everyone = true
		d.Recipients = uuids(online)
	case r.subs.IsSubscribed(sender.UUID, ch.Name):
		for _, p := range online {
			if r.subs.IsSubscribed(p.UUID, ch.Name) && r.host.HasPermission(p.UUID, ch.Permission) {
				d.Recipients = append(d.Recipients, p.UUID)
			}
		}
		if !contains(d.Recipients, sender.UUID) {
			d.Recipients = append(d.Recipients, sender.UUID)
		}
	case r.host.HasPermission(sender.UUID, ch.Permission):
		for _, p := range online {
			if r.host.HasPermission(p.UUID, ch.Permission) {
				d.Recipients = append(d.Recipients, p.UUID)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotSubscribed, ch.Name)
	}

	message, d.Mentioned = r.applyMentions(ctx, sender, ch, online, message)

	name := sender.Name
	if p, ok := r.host.Player(sender.UUID); ok {
		name = p.Display()
	}
	d.Text = r.format(ch.Formats.Chat, sender, name, message)

	if !ch.Broadcast {
		d.Spies = r.spyTargets(sender, ch, d.Recipients)
		if len(d.Spies) > 0 {
			d.SpyText = r.msgs.Get(text.KeySpyPrefix, "channel", strings.ToUpper(ch.Name)) + d.Text
		}
	}

	if d.Everyone {
		r.host.Broadcast(d.Text)
	} else {
		r.host.Send(d.Recipients, d.Text)
	}
	if len(d.Spies) > 0 {
		r.host.Send(d.Spies, d.SpyText)
	}

	if ch.Formats.ChatToBridge != "" {
		r.forward(ch, d, r.format(ch.Formats.ChatToBridge, sender, sender.Name, text.Strip(raw)))
	}
	r.host.Publish(domain.EventChat, domain.ChatEvent{Channel: ch.Name, Sender: sender.Name, Message: text.Strip(message)})
	return d, nil
}

func (r *Router) forward(ch domain.Channel, d *domain.Delivery, bridgeText string) {
	if r.relay == nil || !r.relay.Active() {
		return
	}
	def, hasDef := r.registry.Get(r.registry.Default())
	dest := Destination(ch, def, hasDef)
	if r.relay.Forward(dest, bridgeText) {
		d.BridgeID = dest
		d.BridgeText = text.Strip(bridgeText)
	}
}

// format renders a channel template. The message is inserted after the
// template is rendered so players cannot inject placeholders.
func (r *Router) format(tmpl string, sender domain.Sender, display, message string) string {
	if tmpl == "" {
		tmpl = "%player%: %message%"
	}
	const marker = "\x00MESSAGE\x00"
	tmpl = strings.ReplaceAll(tmpl, "%message%", marker)
	out := text.RenderStrict(tmpl, text.Vars{
		"player":             display,
		"player_displayname": display,
		"player_name":        sender.Name,
		"name":               sender.Name,
	})
	return strings.TrimSpace(strings.ReplaceAll(out, marker, message))
}

// ToggleSpy flips social spy for a user and returns the new state
func (r *Router) ToggleSpy(uuid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spies[uuid] {
		delete(r.spies, uuid)
		return false
	}
	r.spies[uuid] = true
	return true
}

// IsSpy reports whether a user has social spy on
func (r *Router) IsSpy(uuid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spies[uuid]
}

func (r *Router) spyTargets(sender domain.Sender, ch domain.Channel, recipients []string) []string {
	var out []string
	for uuid := range r.spies {
		if uuid == sender.UUID || contains(recipients, uuid) {
			continue
		}
		if _, online := r.host.Player(uuid); !online {
			continue
		}
		if ch.Permission != "" && r.host.HasPermission(uuid, ch.Permission) {
			continue
		}
		out = append(out, uuid)
	}
	sort.Strings(out)
	return out
}

// PlayerLeft drops per-session state for a player
func (r *Router) PlayerLeft(uuid string) {
	r.gate.Forget(uuid)
	r.mu.Lock()
	delete(r.lastPartner, uuid)
	r.mu.Unlock()
}

// Describe turns a routing error into a message for the sender
func (r *Router) Describe(err error, channel string) string {
	msgs := r.Messages()
	switch {
	case errors.Is(err, ErrChannelNotFound):
		return msgs.Get(text.KeyChannelNotFound, "channel", channel)
	case errors.Is(err, ErrChannelDisabled):
		return msgs.Get(text.KeyChannelDisabled, "channel", channel)
	case errors.Is(err, ErrRateLimited):
		return msgs.Get(text.KeyAntiSpam)
	case errors.Is(err, ErrNotSubscribed):
		return msgs.Get(text.KeyChannelNotSubbed, "channel", channel)
	case errors.Is(err, ErrIngameOnly):
		return msgs.Get(text.KeyIngameOnly)
	case errors.Is(err, ErrPlayerNotFound):
		return msgs.Get(text.KeyPlayerNotFound, "player", channel)
	case errors.Is(err, ErrSelfMessage):
		return msgs.Get(text.KeyPMSelf)
	case errors.Is(err, ErrNoReplyTarget):
		return msgs.Get(text.KeyPMNoTarget)
	case errors.Is(err, ErrPMDisabled):
		return msgs.Get(text.KeyPMDisabled)
	case errors.Is(err, ErrChannelsOff):
		return msgs.Get(text.KeyChannelsOff)
	default:
		return msgs.Get(text.KeyUnknownCommand)
	}
}

func uuids(players []domain.Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.UUID)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
