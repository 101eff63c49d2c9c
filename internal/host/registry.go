package host

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/domain"
)

// Registry tracks the players online on the host and emits delivery
// instructions for the host shim as events.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*domain.Player // keyed by UUID
	grants  map[string][]string       // permissions granted by this service, keyed by UUID

	events    chan domain.Event
	connected atomic.Int32
	log       zerolog.Logger
	now       func() time.Time
}

// NewRegistry creates a registry whose event channel holds up to buffer events
func NewRegistry(log zerolog.Logger, buffer int) *Registry {
	if buffer <= 0 {
		buffer = 256
	}
	return &Registry{
		players: make(map[string]*domain.Player),
		grants:  make(map[string][]string),
		events:  make(chan domain.Event, buffer),
		log:     log.With().Str("component", "host").Logger(),
		now:     time.Now,
	}
}

// Events returns the outbound event stream
func (r *Registry) Events() <-chan domain.Event {
	return r.events
}

// Join records a player as online, replacing any previous entry
func (r *Registry) Join(p domain.Player) {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = r.now()
	}
	r.mu.Lock()
	r.players[p.UUID] = &p
	r.mu.Unlock()

	r.Publish(domain.EventPlayerJoin, domain.PlayerJoinEvent{UUID: p.UUID, Name: p.Name})
}

// Leave removes a player and returns the entry that was removed
func (r *Registry) Leave(uuid string) (domain.Player, bool) {
	r.mu.Lock()
	p, ok := r.players[uuid]
	delete(r.players, uuid)
	delete(r.grants, uuid)
	r.mu.Unlock()

	if !ok {
		return domain.Player{}, false
	}
	r.Publish(domain.EventPlayerLeave, domain.PlayerLeaveEvent{UUID: p.UUID, Name: p.Name})
	return *p, true
}

// SetPermissions replaces the permission list of an online player
func (r *Registry) SetPermissions(uuid string, perms []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[uuid]
	if !ok {
		return false
	}
	p.Permissions = append([]string(nil), perms...)
	return true
}

// Grant replaces the permissions this service adds on top of the host's own
// (team channel access from roster membership).
func (r *Registry) Grant(uuid string, perms []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(perms) == 0 {
		delete(r.grants, uuid)
		return
	}
	r.grants[uuid] = append([]string(nil), perms...)
}

// Online returns all online players sorted by name
func (r *Registry) Online() []domain.Player {
	r.mu.RLock()
	out := make([]domain.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Player looks up an online player by UUID
func (r *Registry) Player(uuid string) (domain.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[uuid]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

// ByName looks up an online player by name, ignoring case
func (r *Registry) ByName(name string) (domain.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			return *p, true
		}
	}
	return domain.Player{}, false
}

// HasPermission reports whether an online player holds perm.
// An empty permission is held by everyone.
func (r *Registry) HasPermission(uuid, perm string) bool {
	if perm == "" {
		return true
	}
	r.mu.RLock()
	p, ok := r.players[uuid]
	var perms, granted []string
	if ok {
		perms = p.Permissions
		granted = r.grants[uuid]
	}
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return Grants(perms, perm) || Grants(granted, perm)
}

// Grants reports whether a permission list grants perm.
// Supports "*" and "prefix.*" wildcards.
func Grants(perms []string, perm string) bool {
	perm = strings.ToLower(perm)
	for _, p := range perms {
		p = strings.ToLower(p)
		switch {
		case p == "*", p == perm:
			return true
		case strings.HasSuffix(p, ".*") && strings.HasPrefix(perm, strings.TrimSuffix(p, "*")):
			return true
		}
	}
	return false
}

// SetConnected records whether a host shim is attached to the delivery feed.
// The latest call wins.
func (r *Registry) SetConnected(connected bool) {
	if connected {
		r.connected.Store(1)
	} else {
		r.connected.Store(0)
	}
}

// Connected reports whether any host shim is attached
func (r *Registry) Connected() bool {
	return r.connected.Load() > 0
}

// Send delivers text to the given players
func (r *Registry) Send(recipients []string, text string) {
	if len(recipients) == 0 || text == "" {
		return
	}
	r.Publish(domain.EventSend, domain.SendEvent{Recipients: recipients, Text: text})
}

// Broadcast delivers text to every online player
func (r *Registry) Broadcast(text string) {
	r.Publish(domain.EventBroadcast, domain.BroadcastEvent{Text: text})
}

// BroadcastPermission delivers text to every online player holding perm.
// Recipients are resolved here so granted permissions count too.
func (r *Registry) BroadcastPermission(perm, text string) {
	var recipients []string
	for _, p := range r.Online() {
		if r.HasPermission(p.UUID, perm) {
			recipients = append(recipients, p.UUID)
		}
	}
	r.Publish(domain.EventBroadcastPermission, domain.BroadcastPermissionEvent{Permission: perm, Recipients: recipients, Text: text})
}

// ActionBar shows transient status text. Without an attached shim it is skipped.
func (r *Registry) ActionBar(recipients []string, text string) {
	if !r.Connected() {
		r.log.Debug().Msg("No host attached, skipping action bar")
		return
	}
	r.Publish(domain.EventActionBar, domain.ActionBarEvent{Recipients: recipients, Text: text})
}

// PlaySound plays a sound cue for one player
func (r *Registry) PlaySound(uuid, sound string) {
	if sound == "" {
		return
	}
	r.Publish(domain.EventSound, domain.SoundEvent{Recipient: uuid, Sound: sound, Volume: 1, Pitch: 1})
}

// Publish emits an event without blocking; events are dropped when the buffer is full
func (r *Registry) Publish(eventType string, data interface{}) {
	event := domain.Event{Type: eventType, Timestamp: r.now(), Data: data}
	select {
	case r.events <- event:
	default:
		r.log.Warn().Str("event", eventType).Msg("Event channel full, dropping event")
	}
}
