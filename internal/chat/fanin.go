package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/text"
)

const attachmentsMarker = "{ATTACHMENTS}"

// HandleBridgeMessage delivers a message received from the bridge to every
// local channel mirrored to its channel id. Returns the channels that got it.
func (r *Router) HandleBridgeMessage(ctx context.Context, msg domain.BridgeMessage) []string {
	names := r.registry.BridgeChannels(msg.ChannelID)
	if len(names) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	def, hasDef := r.registry.Get(r.registry.Default())
	online := r.host.Online()

	var delivered []string
	for _, name := range names {
		ch, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		// the default channel owns a bridge id it shares with others
		if hasDef && ch.Name != def.Name && ch.BridgeID == def.BridgeID {
			continue
		}

		formatted := r.formatBridge(ch, msg)
		if ch.Permission != "" {
			var recipients []string
			for _, p := range online {
				if r.host.HasPermission(p.UUID, ch.Permission) || r.subs.IsSubscribed(p.UUID, ch.Name) {
					recipients = append(recipients, p.UUID)
				}
			}
			r.host.Send(recipients, formatted)
		} else {
			r.host.Broadcast(formatted)
		}
		delivered = append(delivered, ch.Name)

		r.host.Publish(domain.EventChat, domain.ChatEvent{
			Channel: ch.Name,
			Sender:  msg.Author,
			Message: msg.Text,
			Bridged: true,
		})
	}

	if len(delivered) > 0 {
		r.log.Debug().Str("channel_id", msg.ChannelID).Strs("channels", delivered).Msg("Relayed bridge message")
	}
	return delivered
}

func (r *Router) formatBridge(ch domain.Channel, msg domain.BridgeMessage) string {
	format := ch.Formats.BridgeToChat
	if strings.TrimSpace(format) == "" {
		format = "%name%: %message%"
	}

	reply := ""
	if msg.ReplyTo != "" {
		reply = r.msgs.Get(text.KeyChannelReply, "name", strings.TrimSpace(msg.ReplyTo))
	}

	const marker = "\x00MESSAGE\x00"
	format = strings.ReplaceAll(format, "%message%", marker)
	out := text.RenderStrict(format, text.Vars{
		"channelName": strings.ToUpper(ch.Name),
		"name":        strings.TrimSpace(msg.Author),
		"reply":       reply,
	})
	out = strings.TrimSpace(strings.ReplaceAll(out, marker, msg.Text))

	label := attachmentLabel(msg.Attachments)
	if strings.Contains(out, attachmentsMarker) {
		return strings.Replace(out, attachmentsMarker, label, 1)
	}
	return out + label
}

func attachmentLabel(urls []string) string {
	switch len(urls) {
	case 0:
		return ""
	case 1:
		return "&9 &l[ATTACHMENT]&r " + urls[0]
	default:
		return fmt.Sprintf("&9 &l[%dx ATTACHMENTS] &r%s", len(urls), urls[0])
	}
}
