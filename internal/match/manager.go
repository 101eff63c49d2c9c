package match

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/text"
)

// Host receives in-game match output
type Host interface {
	Broadcast(text string)
	ActionBar(recipients []string, text string)
	Publish(eventType string, data interface{})
}

// Teams resolves team names against the roster directory
type Teams interface {
	Resolve(name string) (display string, known bool)
}

// Recorder persists finished matches
type Recorder interface {
	RecordMatchResult(ctx context.Context, r domain.MatchResult) (int64, error)
}

// Bridge delivers plain text to an external bridge channel
type Bridge interface {
	Send(ctx context.Context, channelID, text string) error
}

// Manager is the live match state machine. At most one match and one clock
// exist at a time.
type Manager struct {
	mu  sync.Mutex
	cfg config.MatchConfig

	halfDuration int // seconds
	prefix       string
	home, away   string
	warp         string
	homeScore    int
	awayScore    int
	half         domain.Half
	paused       bool
	elapsed      int // seconds on the match clock
	extra        int // signed extra time for the current half
	bridgeOut    bool
	startedAt    time.Time

	// clock
	running bool
	gen     int
	cancel  context.CancelFunc
	done    chan struct{}

	host     Host
	teams    Teams
	recorder Recorder
	bridge   Bridge
	log      zerolog.Logger
	now      func() time.Time
	dispatch func(func())
}

// NewManager creates a manager. teams, recorder and bridge may be nil.
func NewManager(cfg config.MatchConfig, host Host, teams Teams, recorder Recorder, bridge Bridge, log zerolog.Logger) *Manager {
	m := &Manager{
		host:     host,
		teams:    teams,
		recorder: recorder,
		bridge:   bridge,
		log:      log.With().Str("component", "match").Logger(),
		now:      time.Now,
		dispatch: func(f func()) { go f() },
	}
	m.Configure(cfg)
	m.resetLocked()
	return m
}

// Configure applies a new configuration snapshot. The half duration is only
// replaced while no match is in progress.
func (m *Manager) Configure(cfg config.MatchConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	if m.half == domain.HalfNotStarted || m.half == "" {
		m.halfDuration = int(cfg.HalfDuration / time.Second)
		if m.home == "" && m.away == "" {
			m.prefix = cfg.Prefix
		}
	}
}

// SetBridge swaps the bridge used for match output
func (m *Manager) SetBridge(b Bridge) {
	m.mu.Lock()
	m.bridge = b
	m.mu.Unlock()
}

// SetTeams sets home and away. Names known to the roster directory are
// replaced by their display names and enable bridge output.
func (m *Manager) SetTeams(home, away string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cfg.IsEnabled() {
		return "", "", ErrDisabled
	}
	if strings.TrimSpace(home) == "" || strings.TrimSpace(away) == "" {
		return "", "", ErrInvalidTeam
	}

	homeName, homeKnown := m.resolve(home)
	awayName, awayKnown := m.resolve(away)
	m.home, m.away = homeName, awayName
	m.bridgeOut = homeKnown && awayKnown
	if m.warp == "" {
		m.warp = strings.ToLower(home)
	}
	return m.home, m.away, nil
}

func (m *Manager) resolve(name string) (string, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if m.teams == nil {
		return name, false
	}
	if display, ok := m.teams.Resolve(name); ok {
		return display, true
	}
	return name, false
}

// SetPrefix sets the free-text prefix shown in match messages
func (m *Manager) SetPrefix(prefix string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefix = prefix
	return m.prefix
}

// SetWarp sets the meeting point label
func (m *Manager) SetWarp(warp string) {
	m.mu.Lock()
	m.warp = warp
	m.mu.Unlock()
}

// SetHalfDuration changes the length of a half
func (m *Manager) SetHalfDuration(seconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seconds <= 0 {
		return ErrInvalidTime
	}
	if seconds == m.halfDuration {
		return ErrTimeUnchanged
	}
	m.halfDuration = seconds
	if m.running {
		m.updateLocked()
	}
	return nil
}

// Start begins the first half, or the second half after a halftime pause
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cfg.IsEnabled() {
		return ErrDisabled
	}
	if m.home == "" || m.away == "" {
		return ErrTeamsUnknown
	}
	if m.running {
		return ErrMatchRunning
	}

	switch {
	case m.half == domain.HalfNotStarted:
		m.half = domain.HalfFirst
		m.elapsed = 0
		m.extra = 0
		m.startedAt = m.now()
		m.announceLocked(m.cfg.Formats.Platform.Start, m.cfg.Formats.Bridge.Start)
		m.host.Publish(domain.EventMatchStart, m.statusLocked())
	case m.half == domain.HalfFirst && m.paused:
		m.half = domain.HalfSecond
		m.paused = false
		m.elapsed = m.halfDuration
		m.extra = 0
		m.announceLocked(m.cfg.Formats.Platform.Resume, m.cfg.Formats.Bridge.Resume)
	default:
		return ErrMatchFinished
	}

	m.startClockLocked()
	m.updateLocked()
	return nil
}

// StopHalf stops the running half. Stopping the first half pauses for
// halftime; stopping the second half ends the match.
func (m *Manager) StopHalf() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ErrNoHalf
	}
	m.stopClockLocked()
	m.endHalfLocked("stopped")
	return nil
}

// Stop ends the match regardless of the current half
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.half == domain.HalfNotStarted && m.home == "" && m.away == "" {
		return ErrNoMatch
	}
	m.stopClockLocked()
	m.endMatchLocked("stopped")
	return nil
}

func (m *Manager) endHalfLocked(reason string) {
	switch m.half {
	case domain.HalfFirst:
		m.announceLocked(m.cfg.Formats.Platform.Half, m.cfg.Formats.Bridge.Half)
		m.paused = true
		m.extra = 0
		m.host.Publish(domain.EventMatchUpdate, m.statusLocked())
	case domain.HalfSecond:
		m.endMatchLocked(reason)
	}
}

func (m *Manager) endMatchLocked(reason string) {
	m.announceLocked(m.cfg.Formats.Platform.End, m.cfg.Formats.Bridge.End)
	status := m.statusLocked()
	m.host.Publish(domain.EventMatchEnd, status)

	if m.half != domain.HalfNotStarted && m.recorder != nil {
		result := domain.MatchResult{
			Home:      text.Strip(m.home),
			Away:      text.Strip(m.away),
			HomeScore: m.homeScore,
			AwayScore: m.awayScore,
			Reason:    reason,
			StartedAt: m.startedAt,
			EndedAt:   m.now(),
		}
		recorder := m.recorder
		m.dispatch(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := recorder.RecordMatchResult(ctx, result); err != nil {
				m.log.Error().Err(err).Msg("Failed to record match result")
			}
		})
	}
	m.log.Info().Str("home", m.home).Str("away", m.away).
		Int("home_score", m.homeScore).Int("away_score", m.awayScore).
		Str("reason", reason).Msg("Match ended")
	m.resetLocked()
}

func (m *Manager) resetLocked() {
	m.home, m.away, m.warp = "", "", ""
	m.homeScore, m.awayScore = 0, 0
	m.half = domain.HalfNotStarted
	m.paused = false
	m.elapsed = 0
	m.extra = 0
	m.bridgeOut = false
	m.startedAt = time.Time{}
	m.prefix = m.cfg.Prefix
	m.halfDuration = int(m.cfg.HalfDuration / time.Second)
}

// AddScore records a goal for "home" or "away"
func (m *Manager) AddScore(team, scorer, assist string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.home == "" || m.away == "" {
		return ErrTeamsUnknown
	}

	var teamName string
	switch strings.ToLower(team) {
	case "home":
		m.homeScore++
		teamName = m.home
	case "away":
		m.awayScore++
		teamName = m.away
	default:
		return ErrInvalidTeam
	}

	vars := m.varsLocked(false)
	vars["scorer"] = scorer
	vars["assist"] = assist
	vars["team"] = teamName
	vars["minute"] = strconv.Itoa(m.elapsed/60 + 1)
	bridgeVars := m.varsLocked(true)
	bridgeVars["scorer"] = scorer
	bridgeVars["assist"] = assist
	bridgeVars["team"] = text.Strip(teamName)
	bridgeVars["minute"] = vars["minute"]

	platform, bridge := m.cfg.Formats.Platform.Goal, m.cfg.Formats.Bridge.Goal
	if assist != "" {
		platform, bridge = m.cfg.Formats.Platform.GoalAssist, m.cfg.Formats.Bridge.GoalAssist
	}
	m.emitLocked(text.Render(platform, vars), text.Render(bridge, bridgeVars))
	m.host.Publish(domain.EventGoal, domain.GoalEvent{Team: strings.ToLower(team), Scorer: scorer, Assist: assist, Status: m.statusLocked()})
	m.updateLocked()
	return nil
}

// RemoveScore takes a goal away from "home" or "away". Scores never go below zero.
func (m *Manager) RemoveScore(team string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var teamName string
	switch strings.ToLower(team) {
	case "home":
		if m.homeScore <= 0 {
			return ErrInvalidScore
		}
		m.homeScore--
		teamName = m.home
	case "away":
		if m.awayScore <= 0 {
			return ErrInvalidScore
		}
		m.awayScore--
		teamName = m.away
	default:
		return ErrInvalidScore
	}

	vars := m.varsLocked(false)
	vars["team"] = teamName
	bridgeVars := m.varsLocked(true)
	bridgeVars["team"] = text.Strip(teamName)
	m.emitLocked(text.Render(m.cfg.Formats.Platform.GoalRemove, vars), text.Render(m.cfg.Formats.Bridge.GoalRemove, bridgeVars))
	m.host.Publish(domain.EventGoal, domain.GoalEvent{Team: strings.ToLower(team), Removed: true, Status: m.statusLocked()})
	m.updateLocked()
	return nil
}

// AddExtraTime adjusts the displayed time of the current half by a signed
// expression like "30s" or "-1min". The match clock itself is unchanged.
func (m *Manager) AddExtraTime(expr string) (int, error) {
	seconds, err := ParseSeconds(expr)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extra += seconds
	m.updateLocked()
	return seconds, nil
}

// Status returns a snapshot of the match
func (m *Manager) Status() domain.MatchStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Remaining returns the seconds left in the current half including extra time
func (m *Manager) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remainingLocked()
}

func (m *Manager) statusLocked() domain.MatchStatus {
	s := domain.MatchStatus{
		Half:         m.half,
		Paused:       m.paused,
		Running:      m.running,
		Prefix:       m.prefix,
		Home:         m.home,
		Away:         m.away,
		HomeScore:    m.homeScore,
		AwayScore:    m.awayScore,
		Elapsed:      m.elapsed,
		ExtraTime:    m.extra,
		HalfDuration: time.Duration(m.halfDuration) * time.Second,
		Remaining:    m.remainingLocked(),
		Warp:         m.warp,
	}
	if !m.startedAt.IsZero() {
		t := m.startedAt
		s.StartedAt = &t
	}
	return s
}

func (m *Manager) elapsedInHalfLocked() int {
	if m.half == domain.HalfSecond {
		return m.elapsed - m.halfDuration
	}
	return m.elapsed
}

func (m *Manager) remainingLocked() int {
	if m.half == domain.HalfNotStarted {
		return 0
	}
	return m.halfDuration + m.extra - m.elapsedInHalfLocked()
}

// announceLocked renders a transition template pair and sends it out
func (m *Manager) announceLocked(platformTmpl, bridgeTmpl string) {
	m.emitLocked(text.Render(platformTmpl, m.varsLocked(false)), text.Render(bridgeTmpl, m.varsLocked(true)))
}

func (m *Manager) emitLocked(platform, bridgeText string) {
	if platform != "" {
		m.host.Broadcast(platform)
		m.host.ActionBar(nil, platform)
	}
	if !m.bridgeOut || bridgeText == "" || m.cfg.BridgeID == "" || m.bridge == nil {
		return
	}
	b, id, plain := m.bridge, m.cfg.BridgeID, text.Strip(bridgeText)
	m.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.Send(ctx, id, plain); err != nil {
			m.log.Error().Err(err).Str("channel_id", id).Msg("Bridge send failed")
		}
	})
}

// updateLocked pushes the live status line
func (m *Manager) updateLocked() {
	if !m.running {
		return
	}
	m.host.ActionBar(nil, text.Render(m.cfg.Formats.Platform.Update, m.varsLocked(false)))
	m.host.Publish(domain.EventMatchUpdate, m.statusLocked())
}

func (m *Manager) varsLocked(plain bool) text.Vars {
	v := text.Vars{
		"prefix":     m.prefix,
		"home":       m.home,
		"away":       m.away,
		"home_score": strconv.Itoa(m.homeScore),
		"away_score": strconv.Itoa(m.awayScore),
		"warp":       m.warp,
		"half":       m.halfSuffixLocked(),
		"extra":      m.extraSuffixLocked(),
	}
	if plain {
		v["time"] = FormatClock(m.elapsed)
		for k, s := range v {
			v[k] = text.Strip(s)
		}
		return v
	}
	v["time"] = m.coloredTimeLocked()
	return v
}

func (m *Manager) halfSuffixLocked() string {
	switch m.half {
	case domain.HalfFirst:
		return " 1HT"
	case domain.HalfSecond:
		return " 2HT"
	}
	return ""
}

func (m *Manager) extraSuffixLocked() string {
	if m.extra <= 0 {
		return ""
	}
	return "&c (ET: " + FormatClock(m.extra) + ")"
}

// Tier is the colour band of the clock
type Tier int

const (
	TierNormal Tier = iota
	TierWarning
	TierOvertime
)

// tierLocked compares time spent in the current half to half duration plus extra time
func (m *Manager) tierLocked() Tier {
	total := m.halfDuration + m.extra
	if total <= 0 {
		return TierOvertime
	}
	spent := m.elapsedInHalfLocked()
	switch {
	case spent*10 < total*9:
		return TierNormal
	case spent <= total:
		return TierWarning
	default:
		return TierOvertime
	}
}

func (m *Manager) coloredTimeLocked() string {
	color := "&a"
	switch m.tierLocked() {
	case TierWarning:
		color = "&e"
	case TierOvertime:
		color = "&c"
	}
	return color + FormatClock(m.elapsed)
}

// StatusText renders the status report for a command reply
func (m *Manager) StatusText(msgs *text.Messages) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.half == domain.HalfNotStarted {
		return msgs.Get(text.KeyResultStatusNone)
	}
	paused := ""
	if m.paused {
		paused = msgs.Raw(text.KeyResultPaused)
	}
	return msgs.Get(text.KeyResultStatus,
		"match_prefix", m.prefix,
		"home", m.home,
		"away", m.away,
		"home_score", strconv.Itoa(m.homeScore),
		"away_score", strconv.Itoa(m.awayScore),
		"time", m.coloredTimeLocked(),
		"half", m.halfSuffixLocked(),
		"extra", m.extraSuffixLocked(),
		"paused", paused,
	)
}
