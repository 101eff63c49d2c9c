package command

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernie/pitchside/internal/chat"
	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/host"
	"github.com/ernie/pitchside/internal/match"
	"github.com/ernie/pitchside/internal/roster"
	"github.com/ernie/pitchside/internal/storage"
	"github.com/ernie/pitchside/internal/text"
)

const testConfig = `
channels:
  default_channel: global
  list:
    global:
      broadcast: true
      formats:
        chat: "&7%player%: %message%"
    staff:
      permission: core.staff
      aliases: [sc]
      formats:
        chat: "[S] %player%: %message%"
    trade:
      formats:
        chat: "[T] %player%: %message%"
match:
  half_duration: 10m
  tick: 1h
`

type fakeSettings struct {
	players map[string]string // name -> uuid
	sound   map[string]bool
}

func (s *fakeSettings) ToggleMentionSound(_ context.Context, uuid string) (bool, error) {
	for _, u := range s.players {
		if u == uuid {
			s.sound[uuid] = !s.sound[uuid]
			return s.sound[uuid], nil
		}
	}
	return false, storage.ErrNotFound
}

func (s *fakeSettings) GetPlayerByName(_ context.Context, name string) (*domain.PlayerRecord, error) {
	uuid, ok := s.players[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &domain.PlayerRecord{UUID: uuid, Name: name}, nil
}

type fakePlaytime struct {
	totals map[string]time.Duration // keyed by uuid and by name
	top    []domain.PlaytimeEntry
}

func (p *fakePlaytime) Get(_ context.Context, uuid string) (time.Duration, error) {
	d, ok := p.totals[uuid]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return d, nil
}

func (p *fakePlaytime) ByName(_ context.Context, name string) (string, time.Duration, error) {
	d, ok := p.totals[name]
	if !ok {
		return "", 0, storage.ErrNotFound
	}
	return name, d, nil
}

func (p *fakePlaytime) Top(_ context.Context, page, size int) ([]domain.PlaytimeEntry, int, error) {
	return p.top, 1, nil
}

type fakeReloader struct {
	calls int
	err   error
}

func (r *fakeReloader) Reload(context.Context) error {
	r.calls++
	return r.err
}

type fixture struct {
	d        *Dispatcher
	router   *chat.Router
	host     *host.Registry
	match    *match.Manager
	rosters  *roster.Manager
	settings *fakeSettings
	msgs     *text.Messages
}

var (
	alice   = domain.Sender{UUID: "a", Name: "Alice"}
	bob     = domain.Sender{UUID: "b", Name: "Bob"}
	console = domain.ConsoleSender
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	cfg.Rosters.File = filepath.Join(t.TempDir(), "rosters.yml")

	h := host.NewRegistry(zerolog.Nop(), 4096)
	h.Join(domain.Player{UUID: "a", Name: "Alice"})
	h.Join(domain.Player{UUID: "b", Name: "Bob", Permissions: []string{"core.*"}})

	rosters := roster.NewManager(cfg.Rosters, zerolog.Nop())
	require.NoError(t, rosters.Load())

	msgs := text.NewMessages(nil)
	reg := chat.NewRegistry()
	router := chat.NewRouter(reg, chat.NewSubscriptions(reg), chat.NewGate(100, 1000),
		chat.NewRelay(nil, zerolog.Nop()), h, nil, msgs, zerolog.Nop())
	router.LoadChannels(cfg.Channels, cfg.PrivateMessages, rosters.Channels())

	matches := match.NewManager(cfg.Match, h, rosters, nil, nil, zerolog.Nop())
	t.Cleanup(matches.Close)

	settings := &fakeSettings{players: map[string]string{"Alice": "a"}, sound: map[string]bool{"a": true}}
	pt := &fakePlaytime{
		totals: map[string]time.Duration{"a": 90 * time.Minute, "Bob": 45 * time.Second},
		top:    []domain.PlaytimeEntry{{Rank: 1, UUID: "a", Name: "Alice", Seconds: 5400}},
	}

	d := NewDispatcher(router, matches, rosters, h, settings, pt, zerolog.Nop())
	d.OnRostersChanged(func() {
		router.LoadChannels(cfg.Channels, cfg.PrivateMessages, rosters.Channels())
		for _, p := range h.Online() {
			h.Grant(p.UUID, rosters.Grants(p.Name))
		}
	})

	return &fixture{d: d, router: router, host: h, match: matches, rosters: rosters, settings: settings, msgs: msgs}
}

func (f *fixture) run(sender domain.Sender, line ...string) []string {
	return f.d.Execute(context.Background(), sender, line[0], line[1:])
}

func TestUnknownCommandAndPermissions(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{f.msgs.Get(text.KeyUnknownCommand)}, f.run(alice, "nope"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyNoPermission, "permission", PermResult, "command", "result")},
		f.run(alice, "result", "start"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyIngameOnly)}, f.run(console, "spy"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyIngameOnly)}, f.run(console, "reply", "hi"))
}

func TestChannelCommandToggleAndPermission(t *testing.T) {
	f := newFixture(t)

	out := f.run(alice, "trade")
	assert.Equal(t, []string{f.msgs.Get(text.KeyChannelToggle, "channel", "trade", "state", f.msgs.State(true))}, out)
	assert.True(t, f.router.Subscriptions().IsSubscribed("a", "trade"))

	out = f.run(alice, "/TRADE")
	assert.Equal(t, []string{f.msgs.Get(text.KeyChannelToggle, "channel", "trade", "state", f.msgs.State(false))}, out)

	out = f.run(alice, "sc", "hello")
	assert.Equal(t, []string{f.msgs.Get(text.KeyChannelNoPerm, "permission", "core.staff", "channel", "staff")}, out)

	assert.Empty(t, f.run(bob, "sc", "hello"), "permission holders may post without subscribing")
}

func TestChannelToggleDisabled(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{f.msgs.Get(text.KeyNoPermission, "permission", PermChannelToggle, "command", "channel toggle")},
		f.run(alice, "channel", "toggle", "trade"))

	assert.Empty(t, f.run(bob, "channel", "toggle", "trade"))
	assert.True(t, f.router.Registry().IsDisabled("trade"))

	out := f.run(console, "channel", "toggle", "trade")
	require.Len(t, out, 1)
	assert.Equal(t, f.msgs.Get(text.KeyChannelDisabledAll, "channel", "trade", "state", f.msgs.State(true), "player", "Console"), out[0])
	assert.False(t, f.router.Registry().IsDisabled("trade"))

	out = f.run(bob, "channel", "toggle", "nope")
	assert.Equal(t, []string{f.msgs.Get(text.KeyChannelNotFound, "channel", "nope")}, out)
}

func TestChannelFocusAndList(t *testing.T) {
	f := newFixture(t)

	out := f.run(alice, "channel", "focus", "trade")
	assert.Equal(t, []string{f.msgs.Get(text.KeyChannelFocus, "channel", "trade")}, out)
	assert.Equal(t, "trade", f.router.Subscriptions().ActiveChannel("a"))

	out = f.run(alice, "channel", "focus", "staff")
	assert.Equal(t, []string{f.msgs.Get(text.KeyChannelNoPerm, "permission", "core.staff", "channel", "staff")}, out)

	out = f.run(alice, "channel", "list")
	require.Len(t, out, 3, "staff is hidden from players without the permission")
	assert.Equal(t, f.msgs.Get(text.KeyChannelListHeader), out[0])
	assert.Equal(t, f.msgs.Get(text.KeyChannelListEntry, "channel", "global", "state", f.msgs.State(true), "active", ""), out[1])
	assert.Equal(t, f.msgs.Get(text.KeyChannelListEntry, "channel", "trade", "state", f.msgs.State(true), "active", " &a*"), out[2])

	assert.Len(t, f.run(bob, "channel", "list"), 4)
}

func TestResultCommands(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{f.msgs.Get(text.KeyResultTeamsUnknown)}, f.run(bob, "result", "start"))

	out := f.run(bob, "result", "teams", "ars", "che")
	assert.Equal(t, []string{f.msgs.Get(text.KeyResultTeamsSet, "home", "ARS", "away", "CHE")}, out)

	assert.Empty(t, f.run(bob, "result", "start"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyResultRunning)}, f.run(bob, "result", "start"))

	out = f.run(bob, "result", "add", "home", "Alice")
	assert.Equal(t, []string{f.msgs.Get(text.KeyResultScoreUpdated, "team", "ARS")}, out)
	assert.Equal(t, 1, f.match.Status().HomeScore)

	assert.Equal(t, []string{f.msgs.Get(text.KeyResultScoreInvalid)}, f.run(bob, "result", "remove", "away"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyResultTeamInvalid)}, f.run(bob, "result", "add", "left", "Alice"))

	assert.Equal(t, []string{f.msgs.Get(text.KeyResultTimeSame, "value", "10:00")}, f.run(bob, "result", "time", "10min"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyResultTime, "value", "12:00")}, f.run(bob, "result", "time", "12m"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyResultInvalidTime)}, f.run(bob, "result", "time", "soon"))

	assert.Equal(t, []string{f.msgs.Get(text.KeyResultExtra, "value", "01:20")}, f.run(bob, "result", "extratime", "1min20s"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyResultInvalidTime)}, f.run(bob, "result", "extratime", "later"))

	assert.Equal(t, []string{f.msgs.Get(text.KeyResultHalfStopped)}, f.run(bob, "result", "stophalf"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyResultHalfNone)}, f.run(bob, "result", "stophalf"))

	status := f.run(bob, "result", "status")
	assert.Greater(t, len(status), 1)

	assert.Empty(t, f.run(bob, "result", "stop"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyResultStatusNone)}, f.run(bob, "result", "status"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyResultStatusNone)}, f.run(bob, "result", "stop"))

	assert.Greater(t, len(f.run(bob, "result")), 5, "help lists every subcommand")
}

func TestRostersAndTeamChannel(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{f.msgs.Get(text.KeyChannelNotInTeam)}, f.run(alice, "team"))

	out := f.run(bob, "rosters", "create", "ars", "&cARS")
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersCreated, "team", "ARS", "tag", "&cARS")}, out)
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersExists, "team", "ARS")}, f.run(bob, "rosters", "create", "ars", "X"))

	out = f.run(bob, "rosters", "add", "ars", "Alice")
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersAdded, "player", "Alice", "team", "ARS")}, out)
	assert.True(t, f.host.HasPermission("a", "core.team.ars"))
	assert.True(t, f.router.Registry().Has("ars"))
	assert.True(t, f.router.Subscriptions().IsSubscribed("a", "ars"))

	// the team channel is Alice's only subscription, so she already talks there
	assert.Equal(t, "ars", f.router.Subscriptions().ActiveChannel("a"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyChannelFocus, "channel", "global")}, f.run(alice, "team"))
	assert.Equal(t, "global", f.router.Subscriptions().ActiveChannel("a"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyChannelFocus, "channel", "ars")}, f.run(alice, "team"))
	assert.Empty(t, f.run(alice, "team", "hello", "team"))

	out = f.run(bob, "rosters", "info", "ars")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "Alice")

	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersInvalidType)}, f.run(bob, "rosters", "set", "ars", "colour", "red"))
	out = f.run(bob, "rosters", "set", "ars", "name", "Arsenal", "FC")
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersSet, "field", "name", "value", "Arsenal FC", "team", "ARS")}, out)

	out = f.run(bob, "rosters", "list")
	require.Len(t, out, 2)
	assert.Equal(t, f.msgs.Get(text.KeyRostersListEntry, "team", "ARS", "tag", "&cARS", "members", "1"), out[1])

	out = f.run(bob, "rosters", "league", "premier")
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersLeagueBad, "league", "premier", "leagues", "main, juniors, nationals")}, out)

	out = f.run(bob, "rosters", "remove", "Alice")
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersRemoved, "player", "Alice", "team", "ARS")}, out)
	assert.False(t, f.host.HasPermission("a", "core.team.ars"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersNotMember, "player", "Alice")}, f.run(bob, "rosters", "remove", "Alice"))

	out = f.run(bob, "rosters", "delete", "ars")
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersDeleted, "team", "ARS")}, out)
	assert.False(t, f.router.Registry().Has("ars"))
}

func TestRosterLeagues(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersLeagueAdd, "league", "cup")}, f.run(bob, "rosters", "addleague", "Cup"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersLeagueDup, "league", "cup")}, f.run(bob, "rosters", "addleague", "cup"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersLeague, "league", "cup")}, f.run(bob, "rosters", "league", "cup"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersLeagueMove, "league", "cup", "value", "trophy")},
		f.run(bob, "rosters", "renameleague", "cup", "trophy"))
	assert.Equal(t, "trophy", f.rosters.ActiveLeague())
	assert.Equal(t, []string{f.msgs.Get(text.KeyRostersLeagueDel, "league", "juniors")}, f.run(bob, "rosters", "removeleague", "juniors"))
}

func TestMessagesAndReply(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{f.msgs.Get(text.KeyUsage, "usage", "msg <player> <message>")}, f.run(alice, "msg", "Bob"))
	assert.Empty(t, f.run(alice, "tell", "bob", "hi", "there"))
	assert.Empty(t, f.run(bob, "r", "hello back"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyPlayerNotFound, "player", "zed")}, f.run(alice, "msg", "zed", "hi"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyPMSelf)}, f.run(alice, "msg", "alice", "hi"))
}

func TestToggleMention(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{f.msgs.Get(text.KeyMentionToggled, "state", f.msgs.State(false))}, f.run(alice, "togglemention"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyIngameOnly)}, f.run(console, "togglemention"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyMentionToggled, "state", f.msgs.State(true))}, f.run(console, "togglemention", "Alice"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyPlayerNotFound, "player", "Zed")}, f.run(bob, "togglemention", "Zed"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyNoPermission, "permission", PermMentionOthers, "command", "togglemention")},
		f.run(alice, "togglemention", "Bob"))
}

func TestPlaytime(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{f.msgs.Get(text.KeyPlaytimeSelf, "time", "1 h 30 m")}, f.run(alice, "playtime"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyPlaytimeOther, "player", "Bob", "time", "45 s")}, f.run(alice, "pt", "Bob"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyPlayerNotFound, "player", "Zed")}, f.run(alice, "playtime", "Zed"))

	out := f.run(console, "playtime", "top")
	require.Len(t, out, 2)
	assert.Equal(t, f.msgs.Get(text.KeyPlaytimeTopHeader, "count", "10", "page", "1", "pages", "1"), out[0])
	assert.Equal(t, f.msgs.Get(text.KeyPlaytimeTopEntry, "rank", "1", "player", "Alice", "time", "1 h 30 m"), out[1])
}

func TestCoreReload(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{f.msgs.Get(text.KeyUsage, "usage", "core reload")}, f.run(bob, "core"))

	r := &fakeReloader{}
	f.d.SetReloader(r)
	assert.Equal(t, []string{f.msgs.Get(text.KeyReloadDone)}, f.run(console, "core", "reload"))
	assert.Equal(t, 1, r.calls)

	r.err = errors.New("bad yaml")
	assert.Equal(t, []string{f.msgs.Get(text.KeyReloadFailed, "error", "bad yaml")}, f.run(bob, "core", "reload"))
	assert.Equal(t, []string{f.msgs.Get(text.KeyNoPermission, "permission", PermReload, "command", "core")}, f.run(alice, "core", "reload"))
}
