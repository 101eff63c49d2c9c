package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/text"
)

type fakeHost struct {
	mu         sync.Mutex
	broadcasts []string
	bars       []string
	events     []string
}

func (h *fakeHost) Broadcast(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, s)
}

func (h *fakeHost) ActionBar(_ []string, s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bars = append(h.bars, s)
}

func (h *fakeHost) Publish(t string, _ interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, t)
}

type fakeTeams map[string]string

func (f fakeTeams) Resolve(name string) (string, bool) {
	d, ok := f[name]
	return d, ok
}

type fakeRecorder struct {
	results []domain.MatchResult
}

func (r *fakeRecorder) RecordMatchResult(_ context.Context, res domain.MatchResult) (int64, error) {
	r.results = append(r.results, res)
	return int64(len(r.results)), nil
}

type fakeBridge struct {
	sent []string
}

func (b *fakeBridge) Send(_ context.Context, id, s string) error {
	b.sent = append(b.sent, id+"|"+s)
	return nil
}

func testConfig(t *testing.T) config.MatchConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(`
match:
  bridge_id: "900"
  half_duration: 10m
  tick: 1h
`))
	require.NoError(t, err)
	return cfg.Match
}

type fixture struct {
	m        *Manager
	host     *fakeHost
	recorder *fakeRecorder
	bridge   *fakeBridge
}

func newFixture(t *testing.T, cfg config.MatchConfig) *fixture {
	t.Helper()
	f := &fixture{host: &fakeHost{}, recorder: &fakeRecorder{}, bridge: &fakeBridge{}}
	teams := fakeTeams{"ARS": "&cArsenal", "CHE": "&9Chelsea"}
	f.m = NewManager(cfg, f.host, teams, f.recorder, f.bridge, zerolog.Nop())
	f.m.dispatch = func(fn func()) { fn() }
	t.Cleanup(f.m.Close)
	return f
}

// tick advances the clock n seconds without waiting on the ticker
func (f *fixture) tick(n int) {
	for i := 0; i < n; i++ {
		f.m.mu.Lock()
		gen := f.m.gen
		f.m.mu.Unlock()
		f.m.onTick(gen)
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		expr    string
		want    int
		wantErr bool
	}{
		{"30s", 30, false},
		{"-20s", -20, false},
		{"+15s", 15, false},
		{"1min20s", 80, false},
		{"2m", 120, false},
		{"1m 5s", 65, false},
		{"45", 45, false},
		{"-1min", -60, false},
		{"", 0, true},
		{"abc", 0, true},
		{"10x", 0, true},
		{"s", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseSeconds(tt.expr)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "01:05", FormatClock(65))
	assert.Equal(t, "10:00", FormatClock(600))
	assert.Equal(t, "-00:20", FormatClock(-20))
}

func TestStartRequiresTeams(t *testing.T) {
	f := newFixture(t, testConfig(t))
	assert.ErrorIs(t, f.m.Start(), ErrTeamsUnknown)
}

func TestSetTeamsResolvesRosters(t *testing.T) {
	f := newFixture(t, testConfig(t))

	home, away, err := f.m.SetTeams("ars", "che")
	require.NoError(t, err)
	assert.Equal(t, "&cArsenal", home)
	assert.Equal(t, "&9Chelsea", away)
	assert.Equal(t, "ars", f.m.Status().Warp)

	home, away, err = f.m.SetTeams("red", "blue")
	require.NoError(t, err)
	assert.Equal(t, "RED", home)
	assert.Equal(t, "BLUE", away)
}

func TestStartTwice(t *testing.T) {
	f := newFixture(t, testConfig(t))
	_, _, err := f.m.SetTeams("ars", "che")
	require.NoError(t, err)

	require.NoError(t, f.m.Start())
	assert.ErrorIs(t, f.m.Start(), ErrMatchRunning)

	st := f.m.Status()
	assert.Equal(t, domain.HalfFirst, st.Half)
	assert.True(t, st.Running)
	assert.Contains(t, f.host.events, domain.EventMatchStart)
	assert.NotEmpty(t, f.host.broadcasts)
	require.NotEmpty(t, f.bridge.sent)
	assert.Contains(t, f.bridge.sent[0], "900|")
	assert.NotContains(t, f.bridge.sent[0], "&")
}

func TestBridgeOutputRequiresKnownTeams(t *testing.T) {
	f := newFixture(t, testConfig(t))
	_, _, err := f.m.SetTeams("ars", "nobody")
	require.NoError(t, err)
	require.NoError(t, f.m.Start())
	assert.Empty(t, f.bridge.sent)
}

func TestAddAndRemoveScore(t *testing.T) {
	f := newFixture(t, testConfig(t))
	assert.ErrorIs(t, f.m.AddScore("home", "Alice", ""), ErrTeamsUnknown)

	_, _, err := f.m.SetTeams("ars", "che")
	require.NoError(t, err)
	require.NoError(t, f.m.Start())

	assert.ErrorIs(t, f.m.RemoveScore("home"), ErrInvalidScore)
	assert.ErrorIs(t, f.m.AddScore("middle", "Alice", ""), ErrInvalidTeam)

	require.NoError(t, f.m.AddScore("home", "Alice", "Bob"))
	require.NoError(t, f.m.AddScore("away", "Carol", ""))
	st := f.m.Status()
	assert.Equal(t, 1, st.HomeScore)
	assert.Equal(t, 1, st.AwayScore)

	require.NoError(t, f.m.RemoveScore("home"))
	st = f.m.Status()
	assert.Equal(t, 0, st.HomeScore)
	assert.Equal(t, 1, st.AwayScore)
	assert.Contains(t, f.host.events, domain.EventGoal)
}

func TestExtraTimeLeavesClock(t *testing.T) {
	f := newFixture(t, testConfig(t))
	_, _, err := f.m.SetTeams("ars", "che")
	require.NoError(t, err)
	require.NoError(t, f.m.Start())
	f.tick(5)

	_, err = f.m.AddExtraTime("30s")
	require.NoError(t, err)
	_, err = f.m.AddExtraTime("-10s")
	require.NoError(t, err)
	_, err = f.m.AddExtraTime("soon")
	assert.ErrorIs(t, err, ErrInvalidTime)

	st := f.m.Status()
	assert.Equal(t, 20, st.ExtraTime)
	assert.Equal(t, 5, st.Elapsed)
	assert.Equal(t, 600+20-5, f.m.Remaining())
}

func TestClockTiers(t *testing.T) {
	cfg := testConfig(t)
	cfg.HalfDuration = 100 * time.Second
	f := newFixture(t, cfg)
	_, _, err := f.m.SetTeams("ars", "che")
	require.NoError(t, err)
	require.NoError(t, f.m.Start())

	tier := func() Tier {
		f.m.mu.Lock()
		defer f.m.mu.Unlock()
		return f.m.tierLocked()
	}

	f.tick(89)
	assert.Equal(t, TierNormal, tier())
	f.tick(1)
	assert.Equal(t, TierWarning, tier())
	f.tick(10)
	assert.Equal(t, TierWarning, tier())
	f.tick(1)
	assert.Equal(t, TierOvertime, tier())

	_, err = f.m.AddExtraTime("20s")
	require.NoError(t, err)
	assert.Equal(t, TierNormal, tier())
	_, err = f.m.AddExtraTime("-12s")
	require.NoError(t, err)
	assert.Equal(t, TierWarning, tier())
}

func TestHalvesAndRecording(t *testing.T) {
	cfg := testConfig(t)
	cfg.HalfDuration = 60 * time.Second
	f := newFixture(t, cfg)
	_, _, err := f.m.SetTeams("ars", "che")
	require.NoError(t, err)

	assert.ErrorIs(t, f.m.StopHalf(), ErrNoHalf)
	require.NoError(t, f.m.Start())
	f.tick(61)
	_, err = f.m.AddExtraTime("15s")
	require.NoError(t, err)
	require.NoError(t, f.m.StopHalf())

	st := f.m.Status()
	assert.True(t, st.Paused)
	assert.False(t, st.Running)
	assert.Equal(t, 0, st.ExtraTime)

	require.NoError(t, f.m.Start())
	st = f.m.Status()
	assert.Equal(t, domain.HalfSecond, st.Half)
	assert.Equal(t, 60, st.Elapsed)
	assert.Equal(t, 60, f.m.Remaining())

	require.NoError(t, f.m.AddScore("away", "Carol", ""))
	require.NoError(t, f.m.StopHalf())

	st = f.m.Status()
	assert.Equal(t, domain.HalfNotStarted, st.Half)
	assert.Empty(t, st.Home)
	require.Len(t, f.recorder.results, 1)
	assert.Equal(t, "Arsenal", f.recorder.results[0].Home)
	assert.Equal(t, 1, f.recorder.results[0].AwayScore)
	assert.Contains(t, f.host.events, domain.EventMatchEnd)
}

func TestAutoEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.HalfDuration = 3 * time.Second
	cfg.AutoEnd = true
	f := newFixture(t, cfg)
	_, _, err := f.m.SetTeams("ars", "che")
	require.NoError(t, err)

	require.NoError(t, f.m.Start())
	f.tick(10)
	assert.Equal(t, domain.HalfFirst, f.m.Status().Half, "first half never ends on its own")
	require.NoError(t, f.m.StopHalf())

	require.NoError(t, f.m.Start())
	f.tick(3)
	assert.Equal(t, domain.HalfNotStarted, f.m.Status().Half)
	assert.Len(t, f.recorder.results, 1)
}

func TestStaleTickIgnored(t *testing.T) {
	f := newFixture(t, testConfig(t))
	_, _, err := f.m.SetTeams("ars", "che")
	require.NoError(t, err)
	require.NoError(t, f.m.Start())

	f.m.mu.Lock()
	stale := f.m.gen - 1
	f.m.mu.Unlock()
	f.m.onTick(stale)
	assert.Equal(t, 0, f.m.Status().Elapsed)
}

func TestSetHalfDuration(t *testing.T) {
	f := newFixture(t, testConfig(t))
	assert.ErrorIs(t, f.m.SetHalfDuration(600), ErrTimeUnchanged)
	assert.ErrorIs(t, f.m.SetHalfDuration(0), ErrInvalidTime)
	require.NoError(t, f.m.SetHalfDuration(900))
	assert.Equal(t, 15*time.Minute, f.m.Status().HalfDuration)
}

func TestStopWithoutMatch(t *testing.T) {
	f := newFixture(t, testConfig(t))
	assert.ErrorIs(t, f.m.Stop(), ErrNoMatch)
}

func TestDisabled(t *testing.T) {
	cfg := testConfig(t)
	off := false
	cfg.Enabled = &off
	f := newFixture(t, cfg)
	_, _, err := f.m.SetTeams("ars", "che")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestStatusText(t *testing.T) {
	f := newFixture(t, testConfig(t))
	msgs := text.NewMessages(nil)
	assert.Contains(t, f.m.StatusText(msgs), "No match")

	_, _, err := f.m.SetTeams("ars", "che")
	require.NoError(t, err)
	require.NoError(t, f.m.Start())
	f.tick(65)
	out := f.m.StatusText(msgs)
	assert.Contains(t, out, "&a01:05")
	assert.Contains(t, out, "Arsenal")
}
