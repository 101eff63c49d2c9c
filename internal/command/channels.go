package command

import (
	"context"
	"strings"

	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/text"
)

func (d *Dispatcher) cmdChannel(ctx context.Context, sender domain.Sender, args []string) []string {
	if len(args) == 0 {
		return d.usage("channel <toggle|focus|list|spy> [channel]")
	}
	msgs := d.router.Messages()
	reg := d.router.Registry()

	switch strings.ToLower(args[0]) {
	case "list":
		return d.channelList(sender)

	case "toggle":
		if !d.can(sender, PermChannelToggle) {
			return lines(msgs.Get(text.KeyNoPermission, "permission", PermChannelToggle, "command", "channel toggle"))
		}
		if len(args) < 2 {
			return d.usage("channel toggle <channel>")
		}
		ch, ok := reg.Lookup(args[1])
		if !ok {
			return lines(msgs.Get(text.KeyChannelNotFound, "channel", args[1]))
		}
		disabled, err := reg.ToggleDisabled(ch.Name)
		if err != nil {
			return lines(d.router.Describe(err, ch.Name))
		}
		d.log.Info().Str("channel", ch.Name).Bool("disabled", disabled).Str("by", sender.Name).Msg("Channel toggled")
		notice := msgs.Get(text.KeyChannelDisabledAll, "channel", ch.Name, "state", msgs.State(!disabled), "player", sender.Name)
		d.host.Broadcast(notice)
		if sender.Console {
			return lines(notice)
		}
		return nil

	case "focus":
		if sender.Console {
			return lines(msgs.Get(text.KeyIngameOnly))
		}
		if len(args) < 2 {
			return d.usage("channel focus <channel>")
		}
		ch, ok := reg.Lookup(args[1])
		if !ok {
			return lines(msgs.Get(text.KeyChannelNotFound, "channel", args[1]))
		}
		if !d.canRead(sender, ch) {
			return lines(msgs.Get(text.KeyChannelNoPerm, "permission", ch.Permission, "channel", ch.Name))
		}
		subs := d.router.Subscriptions()
		if !subs.IsSubscribed(sender.UUID, ch.Name) {
			subs.Subscribe(sender.UUID, ch.Name)
		}
		subs.SetActive(sender.UUID, ch.Name)
		return lines(msgs.Get(text.KeyChannelFocus, "channel", ch.Name))

	case "spy":
		if !d.can(sender, PermSpy) {
			return lines(msgs.Get(text.KeyNoPermission, "permission", PermSpy, "command", "channel spy"))
		}
		return d.cmdSpy(ctx, sender, args[1:])
	}
	return d.usage("channel <toggle|focus|list|spy> [channel]")
}

// channelList shows the channels the sender may read. For players the state
// is their subscription; for the console it is whether the channel is enabled.
func (d *Dispatcher) channelList(sender domain.Sender) []string {
	msgs := d.router.Messages()
	reg := d.router.Registry()
	if !reg.Enabled() {
		return lines(msgs.Get(text.KeyChannelsOff))
	}

	subs := d.router.Subscriptions()
	active := ""
	if !sender.Console {
		active = subs.ActiveChannel(sender.UUID)
	}

	out := lines(msgs.Get(text.KeyChannelListHeader))
	for _, ch := range reg.All() {
		if !d.canRead(sender, ch) {
			continue
		}
		on := !reg.IsDisabled(ch.Name)
		if !sender.Console {
			on = ch.Broadcast || subs.IsSubscribed(sender.UUID, ch.Name)
		}
		marker := ""
		if ch.Name == active {
			marker = " &a*"
		}
		out = append(out, msgs.Get(text.KeyChannelListEntry, "channel", ch.Name, "state", msgs.State(on), "active", marker))
	}
	return out
}

func (d *Dispatcher) canRead(sender domain.Sender, ch domain.Channel) bool {
	return ch.Broadcast || ch.Permission == "" || d.can(sender, ch.Permission)
}

// channelMessage handles "/<channel> [message]": a message is routed into
// the channel, no message toggles the subscription.
func (d *Dispatcher) channelMessage(ctx context.Context, sender domain.Sender, ch domain.Channel, message string) []string {
	msgs := d.router.Messages()
	if !d.canRead(sender, ch) {
		return lines(msgs.Get(text.KeyChannelNoPerm, "permission", ch.Permission, "channel", ch.Name))
	}

	res, err := d.router.Route(ctx, sender, ch.Name, message)
	if err != nil {
		return lines(d.router.Describe(err, ch.Name))
	}
	if res.Toggled {
		return lines(msgs.Get(text.KeyChannelToggle, "channel", ch.Name, "state", msgs.State(res.Subscribed)))
	}
	return nil
}

// cmdTeam writes into the sender's team channel in the active league.
// Without a message the sender's active channel flips between the team
// channel and the default channel.
func (d *Dispatcher) cmdTeam(ctx context.Context, sender domain.Sender, args []string) []string {
	msgs := d.router.Messages()
	if d.rosters == nil {
		return lines(msgs.Get(text.KeyChannelNotInTeam))
	}
	r, ok := d.rosters.PlayerRoster(sender.Name, "")
	if !ok {
		return lines(msgs.Get(text.KeyChannelNotInTeam))
	}
	name := strings.ToLower(r.Name)
	if _, ok := d.router.Registry().Get(name); !ok {
		return lines(msgs.Get(text.KeyChannelNotFound, "channel", name))
	}

	if len(args) > 0 {
		res, err := d.router.Route(ctx, sender, name, strings.Join(args, " "))
		if err != nil {
			return lines(d.router.Describe(err, name))
		}
		if res.Toggled {
			return lines(msgs.Get(text.KeyChannelToggle, "channel", name, "state", msgs.State(res.Subscribed)))
		}
		return nil
	}

	subs := d.router.Subscriptions()
	target := name
	if subs.ActiveChannel(sender.UUID) == name {
		target = d.router.Registry().Default()
	} else if !subs.IsSubscribed(sender.UUID, name) {
		subs.Subscribe(sender.UUID, name)
	}
	subs.SetActive(sender.UUID, target)
	return lines(msgs.Get(text.KeyChannelFocus, "channel", target))
}

func (d *Dispatcher) cmdSpy(_ context.Context, sender domain.Sender, _ []string) []string {
	if sender.Console {
		return lines(d.router.Messages().Get(text.KeyIngameOnly))
	}
	on := d.router.ToggleSpy(sender.UUID)
	msgs := d.router.Messages()
	return lines(msgs.Get(text.KeySpyToggled, "state", msgs.State(on)))
}
