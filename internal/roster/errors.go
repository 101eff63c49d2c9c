package roster

import "errors"

var (
	ErrExists         = errors.New("roster already exists")
	ErrNotFound       = errors.New("roster not found")
	ErrNotMember      = errors.New("player is not on a roster in that league")
	ErrInvalidLeague  = errors.New("unknown league")
	ErrLeagueExists   = errors.New("league already exists")
	ErrLeagueNotEmpty = errors.New("league still has rosters")
	ErrInvalidValue   = errors.New("invalid value")
)
