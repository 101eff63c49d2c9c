package command

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/roster"
	"github.com/ernie/pitchside/internal/text"
)

func (d *Dispatcher) cmdRosters(_ context.Context, sender domain.Sender, args []string) []string {
	msgs := d.router.Messages()
	if d.rosters == nil || len(args) == 0 {
		return lines(msgs.Get(text.KeyRostersUsage))
	}

	sub := strings.ToLower(args[0])
	args = args[1:]
	switch sub {
	case "create":
		if len(args) < 2 {
			return d.usage("rosters create <team> <tag> [league]")
		}
		league := d.rosters.ActiveLeague()
		if len(args) > 2 {
			league = args[2]
		}
		r, err := d.rosters.Create(args[0], args[1], league)
		if err != nil {
			return d.rosterError(err, args[0], league)
		}
		d.log.Info().Str("team", r.Name).Str("league", r.League).Str("by", sender.Name).Msg("Roster created")
		d.rostersChanged()
		return lines(msgs.Get(text.KeyRostersCreated, "team", r.Name, "tag", r.Tag))

	case "delete":
		if len(args) < 1 {
			return d.usage("rosters delete <team>")
		}
		r, err := d.rosters.Delete(args[0])
		if err != nil {
			return d.rosterError(err, args[0], "")
		}
		d.log.Info().Str("team", r.Name).Str("by", sender.Name).Msg("Roster deleted")
		d.rostersChanged()
		return lines(msgs.Get(text.KeyRostersDeleted, "team", r.Name))

	case "add":
		if len(args) < 2 {
			return d.usage("rosters add <team> <player>")
		}
		r, _, err := d.rosters.AddMember(args[0], args[1])
		if err != nil {
			return d.rosterError(err, args[0], "")
		}
		d.rostersChanged()
		if p, ok := d.host.ByName(args[1]); ok {
			d.router.Subscriptions().Subscribe(p.UUID, strings.ToLower(r.Name))
		}
		return lines(msgs.Get(text.KeyRostersAdded, "player", args[1], "team", r.Name))

	case "remove":
		if len(args) < 1 {
			return d.usage("rosters remove <player> [league]")
		}
		league := d.rosters.ActiveLeague()
		if len(args) > 1 {
			league = args[1]
		}
		r, err := d.rosters.RemoveMember(args[0], league)
		if err != nil {
			if errors.Is(err, roster.ErrNotMember) {
				return lines(msgs.Get(text.KeyRostersNotMember, "player", args[0]))
			}
			return d.rosterError(err, "", league)
		}
		d.rostersChanged()
		if p, ok := d.host.ByName(args[0]); ok {
			d.router.Subscriptions().Unsubscribe(p.UUID, strings.ToLower(r.Name))
		}
		return lines(msgs.Get(text.KeyRostersRemoved, "player", args[0], "team", r.Name))

	case "manager":
		if len(args) < 2 {
			return d.usage("rosters manager <team> <player>")
		}
		r, ok := d.rosters.Get(args[0])
		if !ok {
			return lines(msgs.Get(text.KeyRostersNotFound, "team", args[0]))
		}
		if !r.HasMember(args[1]) {
			return lines(msgs.Get(text.KeyRostersNotMember, "player", args[1]))
		}
		r, err := d.rosters.SetManager(args[1], r.League)
		if err != nil {
			return d.rosterError(err, args[0], "")
		}
		return lines(msgs.Get(text.KeyRostersManager, "player", r.Manager, "team", r.Name))

	case "set":
		if len(args) < 3 {
			return d.usage("rosters set <team> <name|tag|league|bridge> <value>")
		}
		field := strings.ToLower(args[1])
		switch field {
		case "name", "longname", "tag", "league", "bridge":
		default:
			return lines(msgs.Get(text.KeyRostersInvalidType))
		}
		value := strings.Join(args[2:], " ")
		r, err := d.rosters.Set(args[0], field, value)
		if err != nil {
			return d.rosterError(err, args[0], value)
		}
		d.rostersChanged()
		return lines(msgs.Get(text.KeyRostersSet, "field", field, "value", value, "team", r.Name))

	case "info":
		if len(args) < 1 {
			return d.usage("rosters info <team>")
		}
		r, ok := d.rosters.Get(args[0])
		if !ok {
			return lines(msgs.Get(text.KeyRostersNotFound, "team", args[0]))
		}
		manager := r.Manager
		if manager == "" {
			manager = "-"
		}
		return lines(msgs.Get(text.KeyRostersInfo,
			"long_name", r.Display(), "tag", r.Tag, "league", r.League,
			"manager", manager, "members", strings.Join(r.Members, ", ")))

	case "list":
		league := d.rosters.ActiveLeague()
		if len(args) > 0 {
			league = args[0]
		}
		out := lines(msgs.Get(text.KeyRostersLeague, "league", league))
		for _, r := range d.rosters.List(league) {
			out = append(out, msgs.Get(text.KeyRostersListEntry,
				"team", r.Name, "tag", r.Tag, "members", strconv.Itoa(len(r.Members))))
		}
		return out

	case "league":
		if len(args) < 1 {
			return lines(msgs.Get(text.KeyRostersLeague, "league", d.rosters.ActiveLeague()))
		}
		if err := d.rosters.SetActiveLeague(args[0]); err != nil {
			return d.rosterError(err, "", args[0])
		}
		d.rostersChanged()
		return lines(msgs.Get(text.KeyRostersLeague, "league", d.rosters.ActiveLeague()))

	case "addleague":
		if len(args) < 1 {
			return d.usage("rosters addleague <league>")
		}
		if err := d.rosters.AddLeague(args[0]); err != nil {
			return d.rosterError(err, "", args[0])
		}
		return lines(msgs.Get(text.KeyRostersLeagueAdd, "league", strings.ToLower(args[0])))

	case "removeleague":
		if len(args) < 1 {
			return d.usage("rosters removeleague <league>")
		}
		if err := d.rosters.RemoveLeague(args[0]); err != nil {
			return d.rosterError(err, "", args[0])
		}
		return lines(msgs.Get(text.KeyRostersLeagueDel, "league", strings.ToLower(args[0])))

	case "renameleague":
		if len(args) < 2 {
			return d.usage("rosters renameleague <league> <new name>")
		}
		if err := d.rosters.RenameLeague(args[0], args[1]); err != nil {
			return d.rosterError(err, "", args[0])
		}
		d.rostersChanged()
		return lines(msgs.Get(text.KeyRostersLeagueMove, "league", strings.ToLower(args[0]), "value", strings.ToLower(args[1])))
	}
	return lines(msgs.Get(text.KeyRostersUsage))
}

func (d *Dispatcher) rosterError(err error, team, league string) []string {
	msgs := d.router.Messages()
	switch {
	case errors.Is(err, roster.ErrExists):
		return lines(msgs.Get(text.KeyRostersExists, "team", strings.ToUpper(team)))
	case errors.Is(err, roster.ErrNotFound):
		return lines(msgs.Get(text.KeyRostersNotFound, "team", team))
	case errors.Is(err, roster.ErrInvalidLeague):
		return lines(msgs.Get(text.KeyRostersLeagueBad, "league", league, "leagues", strings.Join(d.rosters.Leagues(), ", ")))
	case errors.Is(err, roster.ErrLeagueExists):
		return lines(msgs.Get(text.KeyRostersLeagueDup, "league", league))
	case errors.Is(err, roster.ErrLeagueNotEmpty):
		return lines(msgs.Get(text.KeyRostersLeagueFull, "league", league))
	case errors.Is(err, roster.ErrInvalidValue):
		return lines(msgs.Get(text.KeyRostersInvalidType))
	}
	d.log.Error().Err(err).Msg("Roster update failed")
	return lines(msgs.Get(text.KeyUnknownCommand))
}
