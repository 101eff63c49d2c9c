package chat

import (
	"sort"
	"strings"
	"sync"

	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
)

// reservedTemplate is a channel list entry used only as a copy-paste template
const reservedTemplate = "template"

// Registry holds the channel definitions of the current configuration
type Registry struct {
	mu          sync.RWMutex
	channels    map[string]domain.Channel
	aliases     map[string]string   // alias -> channel name
	byBridge    map[string][]string // bridge id -> channel names
	disabled    map[string]bool
	defaultName string
	enabled     bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		channels:    make(map[string]domain.Channel),
		aliases:     make(map[string]string),
		byBridge:    make(map[string][]string),
		disabled:    make(map[string]bool),
		defaultName: "global",
	}
}

// Load replaces every channel with the ones from cfg plus the dynamic
// channels contributed by rosters. A disabled or empty configuration
// leaves the registry empty. Returns the number of channels loaded.
func (r *Registry) Load(cfg config.ChannelsConfig, dynamic []domain.Channel) int {
	channels := make(map[string]domain.Channel)
	aliases := make(map[string]string)
	byBridge := make(map[string][]string)

	enabled := cfg.IsEnabled()
	if enabled {
		for key, cc := range cfg.List {
			name := strings.ToLower(strings.TrimSpace(key))
			if name == "" || name == reservedTemplate {
				continue
			}
			channels[name] = domain.Channel{
				Name:       name,
				Permission: cc.Permission,
				BridgeID:   cc.BridgeID,
				Broadcast:  cc.Broadcast,
				Aliases:    lowerAll(cc.Aliases),
				Formats: domain.ChannelFormats{
					Chat:         cc.Formats.Chat,
					BridgeToChat: cc.Formats.BridgeToChat,
					ChatToBridge: cc.Formats.ChatToBridge,
				},
			}
		}
		for _, ch := range dynamic {
			ch.Name = strings.ToLower(ch.Name)
			if _, exists := channels[ch.Name]; exists || ch.Name == "" {
				continue
			}
			ch.Dynamic = true
			channels[ch.Name] = ch
		}
	}

	for name, ch := range channels {
		for _, alias := range ch.Aliases {
			if _, taken := channels[alias]; !taken {
				aliases[alias] = name
			}
		}
		if ch.BridgeID != "" {
			byBridge[ch.BridgeID] = append(byBridge[ch.BridgeID], name)
		}
	}
	for id := range byBridge {
		sort.Strings(byBridge[id])
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = channels
	r.aliases = aliases
	r.byBridge = byBridge
	r.enabled = enabled
	if cfg.DefaultChannel != "" {
		r.defaultName = strings.ToLower(cfg.DefaultChannel)
	}
	for name := range r.disabled {
		if _, ok := channels[name]; !ok {
			delete(r.disabled, name)
		}
	}
	return len(channels)
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Enabled reports whether channels were enabled by the last load
func (r *Registry) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// Get returns a channel by exact name
func (r *Registry) Get(name string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[strings.ToLower(name)]
	return ch, ok
}

// Lookup resolves a channel by name or alias
func (r *Registry) Lookup(nameOrAlias string) (domain.Channel, bool) {
	key := strings.ToLower(nameOrAlias)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ch, ok := r.channels[key]; ok {
		return ch, true
	}
	if name, ok := r.aliases[key]; ok {
		return r.channels[name], true
	}
	return domain.Channel{}, false
}

// Has reports whether a channel exists
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all channel names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// All returns every channel, sorted by name
func (r *Registry) All() []domain.Channel {
	names := r.Names()
	out := make([]domain.Channel, 0, len(names))
	for _, name := range names {
		if ch, ok := r.Get(name); ok {
			out = append(out, ch)
		}
	}
	return out
}

// BridgeChannels returns the channels mirrored to a bridge channel id
func (r *Registry) BridgeChannels(bridgeID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.byBridge[bridgeID]...)
}

// Default returns the default channel name
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// ToggleDisabled flips the disabled flag of a channel and returns the new state
func (r *Registry) ToggleDisabled(name string) (bool, error) {
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[name]; !ok {
		return false, ErrChannelNotFound
	}
	if r.disabled[name] {
		delete(r.disabled, name)
		return false, nil
	}
	r.disabled[name] = true
	return true, nil
}

// IsDisabled reports whether a channel is disabled
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[strings.ToLower(name)]
}
