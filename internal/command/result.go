package command

import (
	"context"
	"errors"
	"strings"

	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/match"
	"github.com/ernie/pitchside/internal/text"
)

func (d *Dispatcher) cmdResult(_ context.Context, _ domain.Sender, args []string) []string {
	msgs := d.router.Messages()
	if d.match == nil {
		return lines(msgs.Get(text.KeyResultDisabled))
	}
	if len(args) == 0 {
		return lines(msgs.Get(text.KeyResultHelp))
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "status":
		return lines(d.match.StatusText(msgs))

	case "start":
		err = d.match.Start()

	case "stop":
		err = d.match.Stop()

	case "stophalf":
		if err = d.match.StopHalf(); err == nil {
			return lines(msgs.Get(text.KeyResultHalfStopped))
		}

	case "teams":
		if len(args) < 3 {
			return d.usage("result teams <home> <away>")
		}
		home, away, err := d.match.SetTeams(args[1], args[2])
		if err != nil {
			return d.resultError(err)
		}
		return lines(msgs.Get(text.KeyResultTeamsSet, "home", home, "away", away))

	case "prefix":
		if len(args) < 2 {
			return d.usage("result prefix <text>")
		}
		prefix := d.match.SetPrefix(strings.Join(args[1:], " "))
		return lines(msgs.Get(text.KeyResultPrefix, "value", prefix))

	case "warp":
		if len(args) < 2 {
			return d.usage("result warp <name>")
		}
		d.match.SetWarp(args[1])
		return nil

	case "time":
		if len(args) < 2 {
			return d.usage("result time <duration>")
		}
		seconds, perr := match.ParseSeconds(strings.Join(args[1:], ""))
		if perr != nil || seconds <= 0 {
			return lines(msgs.Get(text.KeyResultInvalidTime))
		}
		if err = d.match.SetHalfDuration(seconds); err == nil {
			return lines(msgs.Get(text.KeyResultTime, "value", match.FormatClock(seconds)))
		}
		if errors.Is(err, match.ErrTimeUnchanged) {
			return lines(msgs.Get(text.KeyResultTimeSame, "value", match.FormatClock(seconds)))
		}

	case "add":
		if len(args) < 3 {
			return d.usage("result add <home|away> <scorer> [assist]")
		}
		assist := ""
		if len(args) > 3 {
			assist = args[3]
		}
		if err = d.match.AddScore(args[1], args[2], assist); err == nil {
			return d.scoreUpdated(args[1])
		}

	case "remove":
		if len(args) < 2 {
			return d.usage("result remove <home|away>")
		}
		if err = d.match.RemoveScore(args[1]); err == nil {
			return d.scoreUpdated(args[1])
		}

	case "extratime":
		if len(args) < 2 {
			return d.usage("result extratime <time>")
		}
		seconds, eerr := d.match.AddExtraTime(strings.Join(args[1:], ""))
		if eerr != nil {
			return lines(msgs.Get(text.KeyResultInvalidTime))
		}
		return lines(msgs.Get(text.KeyResultExtra, "value", match.FormatClock(seconds)))

	default:
		return lines(msgs.Get(text.KeyResultHelp))
	}

	if err != nil {
		return d.resultError(err)
	}
	return nil
}

func (d *Dispatcher) scoreUpdated(team string) []string {
	status := d.match.Status()
	name := status.Home
	if strings.EqualFold(team, "away") {
		name = status.Away
	}
	return lines(d.router.Messages().Get(text.KeyResultScoreUpdated, "team", name))
}

func (d *Dispatcher) resultError(err error) []string {
	msgs := d.router.Messages()
	switch {
	case errors.Is(err, match.ErrDisabled):
		return lines(msgs.Get(text.KeyResultDisabled))
	case errors.Is(err, match.ErrTeamsUnknown):
		return lines(msgs.Get(text.KeyResultTeamsUnknown))
	case errors.Is(err, match.ErrMatchRunning):
		return lines(msgs.Get(text.KeyResultRunning))
	case errors.Is(err, match.ErrMatchFinished):
		return lines(msgs.Get(text.KeyResultFinished))
	case errors.Is(err, match.ErrNoHalf):
		return lines(msgs.Get(text.KeyResultHalfNone))
	case errors.Is(err, match.ErrNoMatch):
		return lines(msgs.Get(text.KeyResultStatusNone))
	case errors.Is(err, match.ErrInvalidTeam):
		return lines(msgs.Get(text.KeyResultTeamInvalid))
	case errors.Is(err, match.ErrInvalidScore):
		return lines(msgs.Get(text.KeyResultScoreInvalid))
	case errors.Is(err, match.ErrInvalidTime):
		return lines(msgs.Get(text.KeyResultInvalidTime))
	}
	d.log.Error().Err(err).Msg("Result command failed")
	return lines(msgs.Get(text.KeyUnknownCommand))
}
