// Package command turns player and console commands into replies.
package command

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/chat"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/match"
	"github.com/ernie/pitchside/internal/roster"
	"github.com/ernie/pitchside/internal/text"
)

// Permissions checked by commands
const (
	PermChannelToggle = "core.channel.toggle"
	PermResult        = "core.result"
	PermSpy           = "core.chat.spy"
	PermMentionOthers = "core.togglemention.others"
	PermRosters       = "core.rosters"
	PermReload        = "core.reload"
)

// Host is the part of the host registry commands need
type Host interface {
	ByName(name string) (domain.Player, bool)
	HasPermission(uuid, perm string) bool
	Broadcast(text string)
}

// Settings stores per-player preferences
type Settings interface {
	ToggleMentionSound(ctx context.Context, uuid string) (bool, error)
	GetPlayerByName(ctx context.Context, name string) (*domain.PlayerRecord, error)
}

// Playtime serves playtime totals
type Playtime interface {
	Get(ctx context.Context, uuid string) (time.Duration, error)
	ByName(ctx context.Context, name string) (string, time.Duration, error)
	Top(ctx context.Context, page, size int) ([]domain.PlaytimeEntry, int, error)
}

// Reloader re-reads configuration and reapplies it
type Reloader interface {
	Reload(ctx context.Context) error
}

type handler func(ctx context.Context, sender domain.Sender, args []string) []string

type command struct {
	permission string
	ingame     bool
	run        handler
}

// Dispatcher executes commands by name
type Dispatcher struct {
	router   *chat.Router
	match    *match.Manager
	rosters  *roster.Manager
	host     Host
	settings Settings
	playtime Playtime
	reloader Reloader

	// rostersChanged runs after every successful roster mutation
	rostersChanged func()

	commands map[string]command
	log      zerolog.Logger
}

func NewDispatcher(router *chat.Router, matches *match.Manager, rosters *roster.Manager, host Host, settings Settings, playtime Playtime, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		router:         router,
		match:          matches,
		rosters:        rosters,
		host:           host,
		settings:       settings,
		playtime:       playtime,
		rostersChanged: func() {},
		log:            log.With().Str("component", "commands").Logger(),
	}

	d.commands = map[string]command{
		"channel":       {run: d.cmdChannel},
		"team":          {ingame: true, run: d.cmdTeam},
		"result":        {permission: PermResult, run: d.cmdResult},
		"spy":           {permission: PermSpy, ingame: true, run: d.cmdSpy},
		"togglemention": {run: d.cmdToggleMention},
		"msg":           {run: d.cmdMsg},
		"reply":         {ingame: true, run: d.cmdReply},
		"playtime":      {run: d.cmdPlaytime},
		"rosters":       {permission: PermRosters, run: d.cmdRosters},
		"core":          {permission: PermReload, run: d.cmdCore},
	}
	for alias, target := range map[string]string{"pm": "msg", "tell": "msg", "w": "msg", "r": "reply", "pt": "playtime"} {
		d.commands[alias] = d.commands[target]
	}
	return d
}

// SetReloader sets what "core reload" calls
func (d *Dispatcher) SetReloader(r Reloader) {
	d.reloader = r
}

// OnRostersChanged registers a hook run after roster mutations
func (d *Dispatcher) OnRostersChanged(f func()) {
	if f == nil {
		f = func() {}
	}
	d.rostersChanged = f
}

// Names lists the built-in commands, aliases included
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a command and returns the reply lines for the sender.
// Names that are not built-in commands are tried as channel names or aliases.
func (d *Dispatcher) Execute(ctx context.Context, sender domain.Sender, name string, args []string) []string {
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	msgs := d.router.Messages()

	cmd, ok := d.commands[name]
	if !ok {
		if ch, found := d.router.Registry().Lookup(name); found {
			return d.channelMessage(ctx, sender, ch, strings.Join(args, " "))
		}
		return lines(msgs.Get(text.KeyUnknownCommand))
	}

	if cmd.ingame && sender.Console {
		return lines(msgs.Get(text.KeyIngameOnly))
	}
	if cmd.permission != "" && !d.can(sender, cmd.permission) {
		return lines(msgs.Get(text.KeyNoPermission, "permission", cmd.permission, "command", name))
	}

	d.log.Debug().Str("sender", sender.Name).Str("command", name).Strs("args", args).Msg("Executing command")
	return cmd.run(ctx, sender, args)
}

func (d *Dispatcher) can(sender domain.Sender, perm string) bool {
	return sender.Console || d.host.HasPermission(sender.UUID, perm)
}

func (d *Dispatcher) usage(usage string) []string {
	return lines(d.router.Messages().Get(text.KeyUsage, "usage", usage))
}

// lines splits multi-line catalogue entries into reply lines
func lines(msgs ...string) []string {
	var out []string
	for _, m := range msgs {
		if m == "" {
			continue
		}
		out = append(out, strings.Split(m, "\n")...)
	}
	return out
}
