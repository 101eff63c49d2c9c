package text

import "strings"

// Message keys
const (
	KeyPrefix             = "prefix"
	KeyOn                 = "on"
	KeyOff                = "off"
	KeyUnknownCommand     = "unknown_command"
	KeyNoPermission       = "no_permission"
	KeyPlayerNotFound     = "player_not_found"
	KeyIngameOnly         = "ingame_only"
	KeyUsage              = "usage"
	KeyAntiSpam           = "anti_spam"
	KeyChannelNotFound    = "channel.not_found"
	KeyChannelNotInTeam   = "channel.not_in_team"
	KeyChannelNoPerm      = "channel.no_permission"
	KeyChannelNotSubbed   = "channel.not_subscribed"
	KeyChannelToggle      = "channel.toggle"
	KeyChannelFocus       = "channel.focus"
	KeyChannelDisabled    = "channel.disabled"
	KeyChannelDisabledAll = "channel.disabled_broadcast"
	KeyChannelReply       = "channel.reply"
	KeyChannelListHeader  = "channel.list_header"
	KeyChannelListEntry   = "channel.list_entry"
	KeyChannelsOff        = "channel.feature_disabled"
	KeySpyPrefix          = "spy.prefix"
	KeySpyToggled         = "spy.toggled"
	KeyMentionNotice      = "mention.notice"
	KeyMentionToggled     = "mention.toggled"
	KeyPMDisabled         = "pm.disabled"
	KeyPMSelf             = "pm.self"
	KeyPMNoTarget         = "pm.no_target"
	KeyResultHelp         = "result.help"
	KeyResultTeamsSet     = "result.teams_set"
	KeyResultTeamsUnknown = "result.teams_unknown"
	KeyResultTeamInvalid  = "result.team_invalid"
	KeyResultRunning      = "result.match_running"
	KeyResultFinished     = "result.match_finished"
	KeyResultPrefix       = "result.prefix_set"
	KeyResultTime         = "result.time_set"
	KeyResultTimeSame     = "result.time_unchanged"
	KeyResultInvalidTime  = "result.invalid_time"
	KeyResultExtra        = "result.extra"
	KeyResultHalfStopped  = "result.half_stopped"
	KeyResultHalfNone     = "result.half_none"
	KeyResultScoreInvalid = "result.score_invalid"
	KeyResultScoreUpdated = "result.score_updated"
	KeyResultStatus       = "result.status"
	KeyResultStatusNone   = "result.status_none"
	KeyResultPaused       = "result.paused"
	KeyResultDisabled     = "result.disabled"
	KeyPlaytimeSelf       = "playtime.self"
	KeyPlaytimeOther      = "playtime.other"
	KeyPlaytimeTopHeader  = "playtime.top_header"
	KeyPlaytimeTopEntry   = "playtime.top_entry"
	KeyRostersUsage       = "rosters.usage"
	KeyRostersExists      = "rosters.exists"
	KeyRostersNotFound    = "rosters.not_found"
	KeyRostersCreated     = "rosters.created"
	KeyRostersDeleted     = "rosters.deleted"
	KeyRostersSet         = "rosters.set"
	KeyRostersInvalidType = "rosters.invalid_type"
	KeyRostersAdded       = "rosters.member_added"
	KeyRostersRemoved     = "rosters.member_removed"
	KeyRostersNotMember   = "rosters.not_member"
	KeyRostersManager     = "rosters.manager_set"
	KeyRostersInfo        = "rosters.info"
	KeyRostersListEntry   = "rosters.list_entry"
	KeyRostersLeague      = "rosters.league_set"
	KeyRostersLeagueBad   = "rosters.league_invalid"
	KeyRostersLeagueAdd   = "rosters.league_added"
	KeyRostersLeagueDel   = "rosters.league_removed"
	KeyRostersLeagueMove  = "rosters.league_renamed"
	KeyRostersLeagueDup   = "rosters.league_exists"
	KeyRostersLeagueFull  = "rosters.league_not_empty"
	KeyReloadDone         = "reload.done"
	KeyReloadFailed       = "reload.failed"
	KeyBridgeOK           = "bridge.ok"
	KeyBridgeFailed       = "bridge.failed"
)

var defaultMessages = map[string]string{
	KeyPrefix:             "&b&lPitchside&8&l» &9",
	KeyOn:                 "&aon",
	KeyOff:                "&coff",
	KeyUnknownCommand:     "%prefix%&cUnknown command.",
	KeyNoPermission:       "%prefix%&cYou need permission (&4%permission%&c) for &6/&e%command%&c!",
	KeyPlayerNotFound:     "%prefix%&cPlayer %player% was not found.",
	KeyIngameOnly:         "%prefix%&cThis command can only be used in game.",
	KeyUsage:              "%prefix%Usage: /%usage%",
	KeyAntiSpam:           "&cYou are sending messages too quickly, slow down.",
	KeyChannelNotFound:    "&cChannel '&e%channel%&c' not found.",
	KeyChannelNotInTeam:   "%prefix%&cYou are not in a team!",
	KeyChannelNoPerm:      "%prefix%&cYou need permission (&4%permission%&c) to write in '&e%channel%&c'!",
	KeyChannelNotSubbed:   "%prefix%&cYou are not subscribed to '&e%channel%&c'.",
	KeyChannelToggle:      "%prefix%&e%channel% chat is %state%&e!",
	KeyChannelFocus:       "%prefix%&aNow talking in &e%channel%&a.",
	KeyChannelDisabled:    "%prefix%&cChannel '&e%channel%&c' was disabled by an admin.",
	KeyChannelDisabledAll: "%prefix%&cChannel &e%channel% &cwas turned %state%&c by %player%!",
	KeyChannelReply:       "&7 &o(reply -> %name%)&r",
	KeyChannelListHeader:  "%prefix%&eChannels:",
	KeyChannelListEntry:   "&7- &e%channel% &7(%state%&7)%active%",
	KeyChannelsOff:        "%prefix%&cChat channels are disabled.",
	KeySpyPrefix:          "&c[SPY] [&e%channel%&c] &r",
	KeySpyToggled:         "%prefix%Social spy is %state%&f!",
	KeyMentionNotice:      "&e%player% &fmentioned you in &e%channel%",
	KeyMentionToggled:     "%prefix%Mention sound is %state%&f!",
	KeyPMDisabled:         "%prefix%&cPrivate messages are disabled.",
	KeyPMSelf:             "&cYou cannot message yourself.",
	KeyPMNoTarget:         "%prefix%&cYou have nobody to reply to.",
	KeyResultHelp: strings.Join([]string{
		"%prefix%Available &6/result &9commands:",
		"&6/result status: &fShows the current match.",
		"&6/result start: &fStarts the match or the second half.",
		"&6/result stop: &fEnds the match.",
		"&6/result stophalf: &fStops the current half.",
		"&6/result teams <home> <away>: &fSets the teams.",
		"&6/result prefix <text>: &fSets the prefix.",
		"&6/result time <duration>: &fSets the half duration.",
		"&6/result add <home|away> <scorer> [assist]: &fAdds a goal.",
		"&6/result remove <home|away>: &fRemoves a goal.",
		"&6/result extratime <time>: &fAdds extra time (20s, 1min, 1min20s, -50s).",
	}, "\n"),
	KeyResultTeamsSet:     "%prefix%&aTeams set: &9%home% &avs &c%away%&a!",
	KeyResultTeamsUnknown: "%prefix%&cTeams are not set. Use: &6/result teams <home> <away>",
	KeyResultTeamInvalid:  "%prefix%&cInvalid team! Use &ehome &cor &eaway&c.",
	KeyResultRunning:      "%prefix%&cThe match is already running!",
	KeyResultFinished:     "%prefix%&cThe match is already finished!",
	KeyResultPrefix:       "%prefix%&aMatch prefix set: %value%",
	KeyResultTime:         "%prefix%&aHalf duration set to &e%value%&a!",
	KeyResultTimeSame:     "%prefix%&cHalf duration is already &e%value%&c.",
	KeyResultInvalidTime:  "%prefix%&cInvalid time! Use: 1min20s, 30s or -20s.",
	KeyResultExtra:        "%prefix%&aExtra time set to: &e%value%",
	KeyResultHalfStopped:  "%prefix%&cHalf stopped!",
	KeyResultHalfNone:     "%prefix%&cThere is no active half.",
	KeyResultScoreInvalid: "%prefix%&cUnknown team or the score is already 0.",
	KeyResultScoreUpdated: "%prefix%&aScore updated for team %team%&a.",
	KeyResultStatus: strings.Join([]string{
		"&e---------------------------------------------",
		"%prefix%&bCurrent match:",
		"&e[%match_prefix% Match&e]",
		"&7Score: &9%home% &f%home_score% &7- &f%away_score% &c%away%",
		"&7Time: &e%time%%half%%extra%%paused%",
		"&e---------------------------------------------",
	}, "\n"),
	KeyResultStatusNone:   "%prefix%&cNo match is running...",
	KeyResultPaused:       " &c(Paused)",
	KeyResultDisabled:     "%prefix%&cMatch tracking is disabled.",
	KeyPlaytimeSelf:       "%prefix%Your playtime is: &e%time%",
	KeyPlaytimeOther:      "%prefix%Playtime of &b%player% &fis: &e%time%",
	KeyPlaytimeTopHeader:  "%prefix%&eTop %count% playtime &7(page %page%/%pages%)",
	KeyPlaytimeTopEntry:   "&e#%rank% &b%player% &7- &e%time%",
	KeyRostersUsage: strings.Join([]string{
		"%prefix%Available &b/rosters&f commands:",
		"&b/rosters create <team> <tag>: &fCreates a team.",
		"&b/rosters delete <team>: &fDeletes a team.",
		"&b/rosters set <team> name|tag|league <value>: &fUpdates a team.",
		"&b/rosters add <team> <player>: &fAdds a player to a team.",
		"&b/rosters remove <player>: &fRemoves a player from their team.",
		"&b/rosters manager <team> <player>: &fSets the team manager.",
		"&b/rosters info <team>: &fShows team details.",
		"&b/rosters list: &fLists teams of the active league.",
		"&b/rosters league <league>: &fSwitches the active league.",
	}, "\n"),
	KeyRostersExists:      "%prefix%&cTeam &e\"%team%\" &calready exists!",
	KeyRostersNotFound:    "%prefix%&cTeam &e\"%team%\" &cwas not found!",
	KeyRostersCreated:     "%prefix%Team &e\"%team%\"&f with tag %tag%&f was created!",
	KeyRostersDeleted:     "%prefix%Team &e\"%team%\"&f was deleted.",
	KeyRostersSet:         "%prefix%Set &e%field% &fto %value%&f for team &e\"%team%\"&f!",
	KeyRostersInvalidType: "%prefix%&cUse &e\"name\"&c, &e\"tag\"&c or &e\"league\"&c.",
	KeyRostersAdded:       "%prefix%&b%player% &fjoined team &e\"%team%\"&f.",
	KeyRostersRemoved:     "%prefix%&b%player% &fleft team &e\"%team%\"&f.",
	KeyRostersNotMember:   "%prefix%&b%player% &cis not in any team.",
	KeyRostersManager:     "%prefix%&b%player% &fnow manages &e\"%team%\"&f.",
	KeyRostersInfo:        "%prefix%&e%long_name% &7[%tag%&7] &fleague &e%league% &fmanager &b%manager% &fmembers: &7%members%",
	KeyRostersListEntry:   "&7- &e%team% &7[%tag%&7] &8(%members% members)",
	KeyRostersLeague:      "%prefix%Active league is now &e%league%&f.",
	KeyRostersLeagueBad:   "%prefix%&cUnknown league &e%league%&c. Available: %leagues%",
	KeyRostersLeagueAdd:   "%prefix%League &e%league%&f was added.",
	KeyRostersLeagueDel:   "%prefix%League &e%league%&f was removed.",
	KeyRostersLeagueMove:  "%prefix%League &e%league%&f is now &e%value%&f.",
	KeyRostersLeagueDup:   "%prefix%&cLeague &e%league% &calready exists!",
	KeyRostersLeagueFull:  "%prefix%&cLeague &e%league% &cstill has teams or is active.",
	KeyReloadDone:         "%prefix%&aConfiguration reloaded.",
	KeyReloadFailed:       "%prefix%&cReload failed: %error%",
	KeyBridgeOK:           "%prefix%&aBridge is reachable.",
	KeyBridgeFailed:       "%prefix%&cBridge check failed.",
}

// Messages is the user-facing message catalogue
type Messages struct {
	m map[string]string
}

// NewMessages builds a catalogue from the defaults plus overrides
func NewMessages(overrides map[string]string) *Messages {
	m := make(map[string]string, len(defaultMessages))
	for k, v := range defaultMessages {
		m[k] = v
	}
	for k, v := range overrides {
		m[k] = v
	}
	return &Messages{m: m}
}

// Raw returns the template for key without rendering
func (c *Messages) Raw(key string) string {
	if v, ok := c.m[key]; ok {
		return v
	}
	return key
}

// Get renders the message for key with the given key/value pairs.
// The %prefix% placeholder is always available.
func (c *Messages) Get(key string, kv ...string) string {
	vars := Vars{KeyPrefix: c.m[KeyPrefix]}
	for i := 0; i+1 < len(kv); i += 2 {
		vars[kv[i]] = kv[i+1]
	}
	return Render(c.Raw(key), vars)
}

// State renders the on/off marker
func (c *Messages) State(on bool) string {
	if on {
		return c.m[KeyOn]
	}
	return c.m[KeyOff]
}
