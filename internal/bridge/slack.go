package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/ernie/pitchside/internal/config"
)

// Slack posts outbound messages with chat.postMessage. It has no inbound side.
type Slack struct {
	api *slack.Client
	log zerolog.Logger
}

func NewSlack(cfg config.SlackConfig, log zerolog.Logger) (*Slack, error) {
	if cfg.Token == "" {
		return nil, errors.New("slack bridge requires a token")
	}
	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	return &Slack{api: slack.New(cfg.Token, opts...), log: log}, nil
}

func (s *Slack) Send(ctx context.Context, channelID, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	return nil
}

func (s *Slack) Check(ctx context.Context) error {
	resp, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	s.log.Debug().Str("team", resp.Team).Str("user", resp.User).Msg("Slack bridge authenticated")
	return nil
}

func (s *Slack) Close() error { return nil }
