package chat

import "errors"

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelDisabled = errors.New("channel disabled")
	ErrRateLimited     = errors.New("rate limited")
	ErrNotSubscribed   = errors.New("not subscribed")
	ErrIngameOnly      = errors.New("only players can do this")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrSelfMessage     = errors.New("cannot message yourself")
	ErrNoReplyTarget   = errors.New("no reply target")
	ErrPMDisabled      = errors.New("private messages disabled")
	ErrChannelsOff     = errors.New("chat channels disabled")
)
