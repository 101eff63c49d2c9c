package chat

import (
	"context"
	"strings"

	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/text"
)

// applyMentions highlights "@name" tokens, and a leading bare "name", of
// online players whose active channel is ch. Mentioned players get an action
// bar notice and, when their setting allows it, a sound.
func (r *Router) applyMentions(ctx context.Context, sender domain.Sender, ch domain.Channel, online []domain.Player, message string) (string, []string) {
	if !r.mentions.enabled {
		return message, nil
	}

	var mentioned []string
	for _, target := range online {
		if target.UUID == sender.UUID || target.Name == "" {
			continue
		}
		if !mentions(message, target.Name) {
			continue
		}
		if r.subs.ActiveChannel(target.UUID) != ch.Name {
			continue
		}

		message = highlight(message, target.Name, r.mentions.color)
		mentioned = append(mentioned, target.UUID)

		r.host.ActionBar([]string{target.UUID}, r.msgs.Get(text.KeyMentionNotice,
			"player", sender.Name, "channel", strings.ToUpper(ch.Name)))
		if r.wantsMentionSound(ctx, target.UUID) {
			r.host.PlaySound(target.UUID, r.mentions.sound)
		}
	}
	return message, mentioned
}

func (r *Router) wantsMentionSound(ctx context.Context, uuid string) bool {
	if r.settings == nil {
		return true
	}
	on, err := r.settings.MentionSound(ctx, uuid)
	if err != nil {
		r.log.Error().Err(err).Str("uuid", uuid).Msg("Failed to read mention setting")
		return true
	}
	return on
}

// mentions reports whether message opens with name as a whole word or
// carries @name as a whole word anywhere
func mentions(message, name string) bool {
	for i, tok := range strings.Split(message, " ") {
		if tok == "@"+name || (i == 0 && tok == name) {
			return true
		}
	}
	return false
}

// highlight rewrites whitespace-separated tokens equal to name or @name
func highlight(message, name, color string) string {
	tokens := strings.Split(message, " ")
	for i, tok := range tokens {
		if tok == name || tok == "@"+name {
			tokens[i] = color + "@" + name + "&r"
		}
	}
	return strings.Join(tokens, " ")
}
