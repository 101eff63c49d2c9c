package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/domain"
)

// BridgeSender delivers plain text to an external bridge channel
type BridgeSender interface {
	Send(ctx context.Context, channelID, text string) error
}

// Relay mirrors channel traffic to the external bridge.
// Identical consecutive messages per destination are dropped.
type Relay struct {
	mu       sync.Mutex
	bridge   BridgeSender
	last     map[string]string
	timeout  time.Duration
	dispatch func(func())
	log      zerolog.Logger
}

// NewRelay creates a relay; a nil bridge disables forwarding
func NewRelay(bridge BridgeSender, log zerolog.Logger) *Relay {
	return &Relay{
		bridge:   bridge,
		last:     make(map[string]string),
		timeout:  10 * time.Second,
		dispatch: func(f func()) { go f() },
		log:      log.With().Str("component", "relay").Logger(),
	}
}

// SetBridge swaps the bridge; nil disables forwarding
func (r *Relay) SetBridge(bridge BridgeSender) {
	r.mu.Lock()
	r.bridge = bridge
	r.mu.Unlock()
}

// Active reports whether a bridge is attached
func (r *Relay) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bridge != nil
}

// Destination returns the bridge channel id for ch. Broadcast channels
// without their own id use the default channel's id.
func Destination(ch domain.Channel, def domain.Channel, hasDefault bool) string {
	if ch.BridgeID != "" {
		return ch.BridgeID
	}
	if ch.Broadcast && hasDefault {
		return def.BridgeID
	}
	return ""
}

// Forward sends text to dest without waiting for the result.
// Returns false when nothing was sent.
func (r *Relay) Forward(dest, text string) bool {
	if dest == "" {
		return false
	}
	plain := strings.TrimSpace(domain.StripColors(text))
	if plain == "" {
		return false
	}

	r.mu.Lock()
	bridge := r.bridge
	if bridge == nil {
		r.mu.Unlock()
		return false
	}
	if prev, ok := r.last[dest]; ok && strings.EqualFold(prev, plain) {
		r.mu.Unlock()
		return false
	}
	r.last[dest] = plain
	r.mu.Unlock()

	r.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := bridge.Send(ctx, dest, plain); err != nil {
			r.log.Error().Err(err).Str("channel_id", dest).Msg("Bridge send failed")
		}
	})
	return true
}
