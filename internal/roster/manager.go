package roster

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/text"
)

// file is the on-disk layout of rosters.yml
type file struct {
	ActiveLeague string             `yaml:"active_league,omitempty"`
	Leagues      []string           `yaml:"available_leagues,omitempty"`
	Rosters      map[string]*Roster `yaml:"rosters"`
}

// Manager owns the roster directory and keeps rosters.yml in sync
type Manager struct {
	mu      sync.RWMutex
	cfg     config.RostersConfig
	rosters map[string]*Roster // upper-case name
	active  string
	leagues []string
	log     zerolog.Logger
}

func NewManager(cfg config.RostersConfig, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		rosters: make(map[string]*Roster),
		active:  strings.ToLower(cfg.ActiveLeague),
		leagues: lowerAll(cfg.Leagues),
		log:     log.With().Str("component", "rosters").Logger(),
	}
}

// Configure swaps the configuration used by the next Load
func (m *Manager) Configure(cfg config.RostersConfig) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// Load reads rosters.yml. A missing file yields an empty directory.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rosters = make(map[string]*Roster)
	m.active = strings.ToLower(m.cfg.ActiveLeague)
	m.leagues = lowerAll(m.cfg.Leagues)

	data, err := os.ReadFile(m.cfg.File)
	if os.IsNotExist(err) {
		m.log.Info().Str("file", m.cfg.File).Msg("No rosters file, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading rosters: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing rosters: %w", err)
	}
	if f.ActiveLeague != "" {
		m.active = strings.ToLower(f.ActiveLeague)
	}
	if len(f.Leagues) > 0 {
		m.leagues = lowerAll(f.Leagues)
	}

	members := 0
	for name, r := range f.Rosters {
		if r == nil {
			continue
		}
		r.Name = strings.ToUpper(name)
		r.League = strings.ToLower(r.League)
		if r.League == "" {
			r.League = "main"
		}
		if r.LongName == "" {
			r.LongName = name
		}
		if r.Manager != "" {
			r.addMember(r.Manager)
		}
		members += len(r.Members)
		m.rosters[r.Name] = r
	}

	m.log.Info().Int("rosters", len(m.rosters)).Int("members", members).Msg("Loaded rosters")
	return nil
}

// saveLocked writes rosters.yml through a temp file and rename
func (m *Manager) saveLocked() error {
	f := file{
		ActiveLeague: m.active,
		Leagues:      m.leagues,
		Rosters:      m.rosters,
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encoding rosters: %w", err)
	}

	if dir := filepath.Dir(m.cfg.File); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating rosters dir: %w", err)
		}
	}
	tmp := m.cfg.File + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing rosters: %w", err)
	}
	if err := os.Rename(tmp, m.cfg.File); err != nil {
		return fmt.Errorf("replacing rosters: %w", err)
	}
	return nil
}

func (m *Manager) validLeagueLocked(league string) bool {
	for _, l := range m.leagues {
		if l == league {
			return true
		}
	}
	return false
}

// Create registers a new roster in league
func (m *Manager) Create(name, tag, league string) (Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToUpper(strings.TrimSpace(name))
	league = strings.ToLower(league)
	if key == "" || tag == "" {
		return Roster{}, ErrInvalidValue
	}
	if !m.validLeagueLocked(league) {
		return Roster{}, fmt.Errorf("%w: %s", ErrInvalidLeague, league)
	}
	if _, ok := m.rosters[key]; ok {
		return Roster{}, fmt.Errorf("%w: %s", ErrExists, key)
	}

	r := &Roster{Name: key, LongName: name, Tag: tag, League: league}
	m.rosters[key] = r
	if err := m.saveLocked(); err != nil {
		delete(m.rosters, key)
		return Roster{}, err
	}
	return r.clone(), nil
}

// Delete removes a roster and its team channel
func (m *Manager) Delete(name string) (Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToUpper(name)
	r, ok := m.rosters[key]
	if !ok {
		return Roster{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(m.rosters, key)
	if err := m.saveLocked(); err != nil {
		m.rosters[key] = r
		return Roster{}, err
	}
	return r.clone(), nil
}

// Get returns a copy of the roster
func (m *Manager) Get(name string) (Roster, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rosters[strings.ToUpper(name)]
	if !ok {
		return Roster{}, false
	}
	return r.clone(), true
}

// AddMember puts player on the roster. A player sits on at most one roster
// per league, so any previous roster in the same league loses them.
// The previous roster's name is returned when one was left.
func (m *Manager) AddMember(name, player string) (Roster, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rosters[strings.ToUpper(name)]
	if !ok {
		return Roster{}, "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	previous := ""
	if old := m.playerRosterLocked(player, r.League); old != nil && old != r {
		old.removeMember(player)
		previous = old.Name
	}
	r.addMember(player)
	if err := m.saveLocked(); err != nil {
		return Roster{}, "", err
	}
	return r.clone(), previous, nil
}

// RemoveMember takes player off their roster in league
func (m *Manager) RemoveMember(player, league string) (Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.playerRosterLocked(player, strings.ToLower(league))
	if r == nil {
		return Roster{}, ErrNotMember
	}
	r.removeMember(player)
	if err := m.saveLocked(); err != nil {
		return Roster{}, err
	}
	return r.clone(), nil
}

// SetManager makes player the manager of their roster in league
func (m *Manager) SetManager(player, league string) (Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.playerRosterLocked(player, strings.ToLower(league))
	if r == nil {
		return Roster{}, ErrNotMember
	}
	r.Manager = r.Members[r.memberIndex(player)]
	if err := m.saveLocked(); err != nil {
		return Roster{}, err
	}
	return r.clone(), nil
}

// Set updates one field of a roster: "tag", "name" (long name), "league" or "bridge".
func (m *Manager) Set(name, field, value string) (Roster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rosters[strings.ToUpper(name)]
	if !ok {
		return Roster{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Roster{}, ErrInvalidValue
	}

	switch strings.ToLower(field) {
	case "tag":
		r.Tag = value
	case "name", "longname":
		r.LongName = value
	case "league":
		league := strings.ToLower(value)
		if !m.validLeagueLocked(league) {
			return Roster{}, fmt.Errorf("%w: %s", ErrInvalidLeague, value)
		}
		r.League = league
	case "bridge":
		r.BridgeID = value
	default:
		return Roster{}, fmt.Errorf("%w: field %s", ErrInvalidValue, field)
	}
	if err := m.saveLocked(); err != nil {
		return Roster{}, err
	}
	return r.clone(), nil
}

func (m *Manager) playerRosterLocked(player, league string) *Roster {
	for _, r := range m.rosters {
		if r.League == league && r.HasMember(player) {
			return r
		}
	}
	return nil
}

// PlayerRoster returns the roster player belongs to in league. An empty
// league means the active one.
func (m *Manager) PlayerRoster(player, league string) (Roster, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if league == "" {
		league = m.active
	}
	r := m.playerRosterLocked(player, strings.ToLower(league))
	if r == nil {
		return Roster{}, false
	}
	return r.clone(), true
}

// Grants lists the team channel permissions player holds through roster membership
func (m *Manager) Grants(player string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var perms []string
	for _, r := range m.rosters {
		if r.HasMember(player) {
			perms = append(perms, m.cfg.PermissionPrefix+strings.ToLower(r.Name))
		}
	}
	sort.Strings(perms)
	return perms
}

// Resolve maps a team name to its display name for match output
func (m *Manager) Resolve(name string) (string, bool) {
	r, ok := m.Get(name)
	if !ok {
		return "", false
	}
	return r.Display(), true
}

// List returns rosters in league sorted by name; an empty league lists all
func (m *Manager) List(league string) []Roster {
	m.mu.RLock()
	defer m.mu.RUnlock()
	league = strings.ToLower(league)
	var out []Roster
	for _, r := range m.rosters {
		if league == "" || r.League == league {
			out = append(out, r.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Channels builds one team channel per roster
func (m *Manager) Channels() []domain.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channels := make([]domain.Channel, 0, len(m.rosters))
	for _, r := range m.rosters {
		name := strings.ToLower(r.Name)
		vars := text.Vars{"channel": r.Name, "tag": r.Tag, "team": r.Display()}
		bridgeFormat := m.cfg.BridgeFormat
		if bridgeFormat != "" {
			bridgeFormat = text.Render(bridgeFormat, vars)
		}
		channels = append(channels, domain.Channel{
			Name:       name,
			Permission: m.cfg.PermissionPrefix + name,
			BridgeID:   r.BridgeID,
			Formats: domain.ChannelFormats{
				Chat:         text.Render(m.cfg.ChannelFormat, vars),
				BridgeToChat: "%name%: %message%",
				ChatToBridge: bridgeFormat,
			},
			Dynamic: true,
		})
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
	return channels
}

// ActiveLeague is the league used when a command names none
func (m *Manager) ActiveLeague() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Leagues returns the available leagues in configured order
func (m *Manager) Leagues() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.leagues...)
}

func (m *Manager) SetActiveLeague(league string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	league = strings.ToLower(league)
	if !m.validLeagueLocked(league) {
		return fmt.Errorf("%w: %s", ErrInvalidLeague, league)
	}
	m.active = league
	return m.saveLocked()
}

func (m *Manager) AddLeague(league string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	league = strings.ToLower(strings.TrimSpace(league))
	if league == "" {
		return ErrInvalidValue
	}
	if m.validLeagueLocked(league) {
		return fmt.Errorf("%w: %s", ErrLeagueExists, league)
	}
	m.leagues = append(m.leagues, league)
	return m.saveLocked()
}

// RemoveLeague drops an empty league. The active league cannot be removed.
func (m *Manager) RemoveLeague(league string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	league = strings.ToLower(league)
	if !m.validLeagueLocked(league) || league == m.active {
		return fmt.Errorf("%w: %s", ErrInvalidLeague, league)
	}
	for _, r := range m.rosters {
		if r.League == league {
			return fmt.Errorf("%w: %s", ErrLeagueNotEmpty, league)
		}
	}
	kept := m.leagues[:0]
	for _, l := range m.leagues {
		if l != league {
			kept = append(kept, l)
		}
	}
	m.leagues = kept
	return m.saveLocked()
}

// RenameLeague renames a league and moves its rosters along
func (m *Manager) RenameLeague(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, to = strings.ToLower(from), strings.ToLower(strings.TrimSpace(to))
	if !m.validLeagueLocked(from) {
		return fmt.Errorf("%w: %s", ErrInvalidLeague, from)
	}
	if to == "" {
		return ErrInvalidValue
	}
	if m.validLeagueLocked(to) {
		return fmt.Errorf("%w: %s", ErrLeagueExists, to)
	}
	for i, l := range m.leagues {
		if l == from {
			m.leagues[i] = to
		}
	}
	for _, r := range m.rosters {
		if r.League == from {
			r.League = to
		}
	}
	if m.active == from {
		m.active = to
	}
	return m.saveLocked()
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
