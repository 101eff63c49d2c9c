package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
)

// outbound is published to <prefix>.out.<channel_id>
type outbound struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// inbound arrives on <prefix>.in.<anything>
type inbound struct {
	ChannelID   string   `json:"channel_id"`
	Author      string   `json:"author"`
	Text        string   `json:"text"`
	ReplyTo     string   `json:"reply_to"`
	Attachments []string `json:"attachments"`
}

// NATS relays messages through subjects on a NATS server, optionally one
// embedded in this process.
type NATS struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	embedded *server.Server
	prefix   string
	log      zerolog.Logger
}

func NewNATS(cfg config.NATSConfig, handler Handler, log zerolog.Logger) (*NATS, error) {
	n := &NATS{
		prefix: strings.TrimSuffix(cfg.SubjectPrefix, "."),
		log:    log,
	}

	url := cfg.URL
	if cfg.Embedded {
		ns, err := server.NewServer(&server.Options{
			Host:   "127.0.0.1",
			Port:   cfg.EmbeddedPort,
			NoLog:  true,
			NoSigs: true,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedded nats: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return nil, fmt.Errorf("embedded nats did not start")
		}
		n.embedded = ns
		url = ns.ClientURL()
		log.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	conn, err := nats.Connect(url,
		nats.Name("pitchside"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		n.shutdownServer()
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	n.conn = conn

	if handler != nil {
		sub, err := conn.Subscribe(n.prefix+".in.>", func(m *nats.Msg) {
			var in inbound
			if err := json.Unmarshal(m.Data, &in); err != nil {
				log.Warn().Err(err).Str("subject", m.Subject).Msg("Dropping malformed bridge message")
				return
			}
			handler(domain.BridgeMessage{
				ChannelID:   in.ChannelID,
				Author:      in.Author,
				Text:        in.Text,
				ReplyTo:     in.ReplyTo,
				Attachments: in.Attachments,
			})
		})
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("subscribing to bridge input: %w", err)
		}
		n.sub = sub
	}

	log.Info().Str("url", conn.ConnectedUrl()).Str("prefix", n.prefix).Msg("NATS bridge connected")
	return n, nil
}

// Subject is where messages for channelID are published
func (n *NATS) Subject(channelID string) string {
	return n.prefix + ".out." + channelID
}

func (n *NATS) Send(ctx context.Context, channelID, text string) error {
	data, err := json.Marshal(outbound{ChannelID: channelID, Text: text})
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.Subject(channelID), data); err != nil {
		return fmt.Errorf("publishing to nats: %w", err)
	}
	return nil
}

// Check round-trips to the server
func (n *NATS) Check(ctx context.Context) error {
	if !n.conn.IsConnected() {
		return fmt.Errorf("nats status %s", n.conn.Status())
	}
	return n.conn.FlushWithContext(ctx)
}

func (n *NATS) Close() error {
	if n.sub != nil {
		_ = n.sub.Unsubscribe()
	}
	if n.conn != nil {
		n.conn.Close()
	}
	n.shutdownServer()
	return nil
}

func (n *NATS) shutdownServer() {
	if n.embedded != nil {
		n.embedded.Shutdown()
		n.embedded.WaitForShutdown()
		n.embedded = nil
	}
}
