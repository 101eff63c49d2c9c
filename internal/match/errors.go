package match

import "errors"

var (
	ErrDisabled      = errors.New("match tracking disabled")
	ErrTeamsUnknown  = errors.New("teams not set")
	ErrMatchRunning  = errors.New("match already running")
	ErrMatchFinished = errors.New("match already finished")
	ErrNoMatch       = errors.New("no match in progress")
	ErrNoHalf        = errors.New("no half in progress")
	ErrInvalidTeam   = errors.New("invalid team")
	ErrInvalidScore  = errors.New("invalid score")
	ErrInvalidTime   = errors.New("invalid time")
	ErrTimeUnchanged = errors.New("half duration unchanged")
)
