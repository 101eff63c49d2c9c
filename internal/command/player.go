package command

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/playtime"
	"github.com/ernie/pitchside/internal/storage"
	"github.com/ernie/pitchside/internal/text"
)

func (d *Dispatcher) cmdToggleMention(ctx context.Context, sender domain.Sender, args []string) []string {
	msgs := d.router.Messages()
	if d.settings == nil {
		return lines(msgs.Get(text.KeyUnknownCommand))
	}

	uuid := sender.UUID
	if len(args) > 0 {
		if !d.can(sender, PermMentionOthers) {
			return lines(msgs.Get(text.KeyNoPermission, "permission", PermMentionOthers, "command", "togglemention"))
		}
		p, err := d.settings.GetPlayerByName(ctx, args[0])
		if err != nil {
			return d.lookupError(err, args[0])
		}
		uuid = p.UUID
	} else if sender.Console {
		return lines(msgs.Get(text.KeyIngameOnly))
	}

	on, err := d.settings.ToggleMentionSound(ctx, uuid)
	if err != nil {
		target := sender.Name
		if len(args) > 0 {
			target = args[0]
		}
		return d.lookupError(err, target)
	}
	return lines(msgs.Get(text.KeyMentionToggled, "state", msgs.State(on)))
}

func (d *Dispatcher) cmdMsg(_ context.Context, sender domain.Sender, args []string) []string {
	if len(args) < 2 {
		return d.usage("msg <player> <message>")
	}
	if err := d.router.PrivateMessage(sender, args[0], strings.Join(args[1:], " ")); err != nil {
		return lines(d.router.Describe(err, args[0]))
	}
	return nil
}

func (d *Dispatcher) cmdReply(_ context.Context, sender domain.Sender, args []string) []string {
	if len(args) == 0 {
		return d.usage("reply <message>")
	}
	if err := d.router.Reply(sender, strings.Join(args, " ")); err != nil {
		partner, _ := d.router.LastPartner(sender.UUID)
		return lines(d.router.Describe(err, partner))
	}
	return nil
}

// cmdPlaytime handles "playtime", "playtime <player>" and
// "playtime top [page] [size]"
func (d *Dispatcher) cmdPlaytime(ctx context.Context, sender domain.Sender, args []string) []string {
	msgs := d.router.Messages()
	if d.playtime == nil {
		return lines(msgs.Get(text.KeyUnknownCommand))
	}

	if len(args) == 0 {
		if sender.Console {
			return lines(msgs.Get(text.KeyIngameOnly))
		}
		total, err := d.playtime.Get(ctx, sender.UUID)
		if err != nil {
			return d.lookupError(err, sender.Name)
		}
		return lines(msgs.Get(text.KeyPlaytimeSelf, "time", playtime.Format(total)))
	}

	if strings.EqualFold(args[0], "top") {
		page, size := 1, 10
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
				page = n
			}
		}
		if len(args) > 2 {
			if n, err := strconv.Atoi(args[2]); err == nil && n > 0 && n <= 50 {
				size = n
			}
		}
		entries, pages, err := d.playtime.Top(ctx, page, size)
		if err != nil {
			d.log.Error().Err(err).Msg("Failed to load playtime leaderboard")
			return lines(msgs.Get(text.KeyUnknownCommand))
		}
		out := lines(msgs.Get(text.KeyPlaytimeTopHeader,
			"count", strconv.Itoa(size), "page", strconv.Itoa(page), "pages", strconv.Itoa(pages)))
		for _, e := range entries {
			out = append(out, msgs.Get(text.KeyPlaytimeTopEntry,
				"rank", strconv.Itoa(e.Rank), "player", e.Name, "time", playtime.Format(time.Duration(e.Seconds)*time.Second)))
		}
		return out
	}

	name, total, err := d.playtime.ByName(ctx, args[0])
	if err != nil {
		return d.lookupError(err, args[0])
	}
	return lines(msgs.Get(text.KeyPlaytimeOther, "player", name, "time", playtime.Format(total)))
}

func (d *Dispatcher) cmdCore(ctx context.Context, _ domain.Sender, args []string) []string {
	msgs := d.router.Messages()
	if len(args) == 0 || !strings.EqualFold(args[0], "reload") {
		return d.usage("core reload")
	}
	if d.reloader == nil {
		return lines(msgs.Get(text.KeyReloadFailed, "error", "reload is not available"))
	}
	if err := d.reloader.Reload(ctx); err != nil {
		d.log.Error().Err(err).Msg("Reload failed")
		return lines(d.router.Messages().Get(text.KeyReloadFailed, "error", err.Error()))
	}
	// the catalogue may have been replaced by the reload
	return lines(d.router.Messages().Get(text.KeyReloadDone))
}

func (d *Dispatcher) lookupError(err error, player string) []string {
	msgs := d.router.Messages()
	if errors.Is(err, storage.ErrNotFound) {
		return lines(msgs.Get(text.KeyPlayerNotFound, "player", player))
	}
	d.log.Error().Err(err).Str("player", player).Msg("Player lookup failed")
	return lines(msgs.Get(text.KeyUnknownCommand))
}
