// Package bridge connects chat channels to an external messaging platform.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
)

// ErrDisabled is returned by the none driver
var ErrDisabled = errors.New("bridge is disabled")

// Bridge sends plain text to external channels
type Bridge interface {
	Send(ctx context.Context, channelID, text string) error
	Check(ctx context.Context) error
	Close() error
}

// Handler receives inbound bridge messages
type Handler func(msg domain.BridgeMessage)

// New builds the driver named in cfg. Inbound messages, where the driver
// supports them, are passed to handler. Outbound sends are rate limited.
func New(cfg config.BridgeConfig, handler Handler, log zerolog.Logger) (Bridge, error) {
	log = log.With().Str("component", "bridge").Str("driver", cfg.Driver).Logger()

	var (
		b   Bridge
		err error
	)
	switch cfg.Driver {
	case "", "none":
		return None{}, nil
	case "nats":
		b, err = NewNATS(cfg.NATS, handler, log)
	case "slack":
		b, err = NewSlack(cfg.Slack, log)
	default:
		return nil, fmt.Errorf("unknown bridge driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return NewLimited(b, cfg.RatePerS, cfg.Burst), nil
}

// None drops every message
type None struct{}

func (None) Send(context.Context, string, string) error { return ErrDisabled }
func (None) Check(context.Context) error                { return ErrDisabled }
func (None) Close() error                               { return nil }
