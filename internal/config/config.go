package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Database        DatabaseConfig        `yaml:"database"`
	Auth            AuthConfig            `yaml:"auth"`
	Host            HostConfig            `yaml:"host"`
	Logging         LoggingConfig         `yaml:"logging"`
	Bridge          BridgeConfig          `yaml:"bridge"`
	Channels        ChannelsConfig        `yaml:"channels"`
	Match           MatchConfig           `yaml:"match"`
	Rosters         RostersConfig         `yaml:"rosters"`
	Playtime        PlaytimeConfig        `yaml:"playtime"`
	PrivateMessages PrivateMessagesConfig `yaml:"private_messages"`
	Messages        map[string]string     `yaml:"messages"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
	StaticDir  string `yaml:"static_dir"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HostConfig holds settings for the game server shim
type HostConfig struct {
	Token string `yaml:"token"`
}

// LoggingConfig holds log settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// BridgeConfig selects and configures the external chat bridge
type BridgeConfig struct {
	Driver   string      `yaml:"driver"` // "nats", "slack" or "none"
	NATS     NATSConfig  `yaml:"nats"`
	Slack    SlackConfig `yaml:"slack"`
	RatePerS float64     `yaml:"rate_per_second"`
	Burst    int         `yaml:"burst"`
}

// NATSConfig configures the NATS bridge driver
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Embedded      bool   `yaml:"embedded"`
	EmbeddedPort  int    `yaml:"embedded_port"`
}

// SlackConfig configures the Slack bridge driver
type SlackConfig struct {
	Token  string `yaml:"token"`
	APIURL string `yaml:"api_url"` // override for self-hosted gateways
}

// ChannelsConfig holds chat channel settings
type ChannelsConfig struct {
	Enabled        *bool                    `yaml:"enabled"`
	DefaultChannel string                   `yaml:"default_channel"`
	AntiSpam       AntiSpamConfig           `yaml:"anti_spam"`
	Mentions       MentionsConfig           `yaml:"mentions"`
	List           map[string]ChannelConfig `yaml:"list"`
}

// IsEnabled reports whether chat channels are enabled (default true)
func (c ChannelsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AntiSpamConfig holds the fixed-window anti-spam thresholds
type AntiSpamConfig struct {
	MaxMessages int   `yaml:"max_messages"`
	CooldownMs  int64 `yaml:"cooldown"`
}

// MentionsConfig holds @mention settings
type MentionsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Color   string `yaml:"format"`
	Sound   string `yaml:"sound"`
}

// IsEnabled reports whether mentions are enabled (default true)
func (m MentionsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// ChannelConfig is a single entry of channels.list
type ChannelConfig struct {
	Permission string         `yaml:"permission"`
	BridgeID   string         `yaml:"bridge_id"`
	Broadcast  bool           `yaml:"broadcast"`
	Aliases    []string       `yaml:"aliases"`
	Formats    ChannelFormats `yaml:"formats"`
}

// ChannelFormats holds the three message templates of a channel
type ChannelFormats struct {
	Chat         string `yaml:"chat"`
	BridgeToChat string `yaml:"bridge_to_chat"`
	ChatToBridge string `yaml:"chat_to_bridge"`
}

// MatchConfig holds live match settings
type MatchConfig struct {
	Enabled      *bool         `yaml:"enabled"`
	BridgeID     string        `yaml:"bridge_id"`
	HalfDuration time.Duration `yaml:"half_duration"`
	Tick         time.Duration `yaml:"tick"`
	AutoEnd      bool          `yaml:"auto_end"`
	Prefix       string        `yaml:"prefix"`
	Formats      MatchFormats  `yaml:"formats"`
}

// IsEnabled reports whether the match module is enabled (default true)
func (m MatchConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// MatchFormats holds templates for in-game and bridge output
type MatchFormats struct {
	Platform MatchTemplates `yaml:"platform"`
	Bridge   MatchTemplates `yaml:"bridge"`
}

// MatchTemplates holds one template per match message kind
type MatchTemplates struct {
	Start      string `yaml:"start"`
	Half       string `yaml:"half"`
	Resume     string `yaml:"resume"`
	End        string `yaml:"end"`
	Update     string `yaml:"update"`
	Goal       string `yaml:"goal"`
	GoalAssist string `yaml:"goal_assist"`
	GoalRemove string `yaml:"goal_remove"`
}

// RostersConfig holds roster settings
type RostersConfig struct {
	File             string   `yaml:"file"`
	ActiveLeague     string   `yaml:"active_league"`
	Leagues          []string `yaml:"available_leagues"`
	PermissionPrefix string   `yaml:"permission_prefix"`
	ChannelFormat    string   `yaml:"channel_format"`
	BridgeFormat     string   `yaml:"bridge_format"`
}

// PlaytimeConfig holds playtime cache settings
type PlaytimeConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// PrivateMessagesConfig holds private message settings
type PrivateMessagesConfig struct {
	Enabled         *bool  `yaml:"enabled"`
	SenderFormat    string `yaml:"sender"`
	RecipientFormat string `yaml:"recipient"`
	SpyFormat       string `yaml:"spy"`
}

// IsEnabled reports whether private messages are enabled (default true)
func (p PrivateMessagesConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Secrets may live in a .env file next to the config
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	applyEnv(cfg)

	if cfg.Rosters.File != "" && !filepath.IsAbs(cfg.Rosters.File) {
		cfg.Rosters.File = filepath.Join(filepath.Dir(path), cfg.Rosters.File)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and fills in defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	setDefaults(&cfg)
	return &cfg, nil
}

// applyEnv lets environment variables override secrets from the file
func applyEnv(cfg *Config) {
	if v := os.Getenv("PITCHSIDE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("PITCHSIDE_HOST_TOKEN"); v != "" {
		cfg.Host.Token = v
	}
	if v := os.Getenv("PITCHSIDE_SLACK_TOKEN"); v != "" {
		cfg.Bridge.Slack.Token = v
	}
	if v := os.Getenv("PITCHSIDE_NATS_URL"); v != "" {
		cfg.Bridge.NATS.URL = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/pitchside/pitchside.db"
	}
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	// Bridge defaults
	if cfg.Bridge.Driver == "" {
		cfg.Bridge.Driver = "none"
	}
	if cfg.Bridge.NATS.URL == "" {
		cfg.Bridge.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Bridge.NATS.SubjectPrefix == "" {
		cfg.Bridge.NATS.SubjectPrefix = "pitchside.bridge"
	}
	if cfg.Bridge.NATS.EmbeddedPort == 0 {
		cfg.Bridge.NATS.EmbeddedPort = 4222
	}
	if cfg.Bridge.RatePerS <= 0 {
		cfg.Bridge.RatePerS = 5
	}
	if cfg.Bridge.Burst <= 0 {
		cfg.Bridge.Burst = 10
	}

	// Channel defaults
	if cfg.Channels.DefaultChannel == "" {
		cfg.Channels.DefaultChannel = "global"
	}
	if cfg.Channels.AntiSpam.MaxMessages == 0 {
		cfg.Channels.AntiSpam.MaxMessages = 5
	}
	if cfg.Channels.AntiSpam.CooldownMs == 0 {
		cfg.Channels.AntiSpam.CooldownMs = 2500
	}
	if cfg.Channels.Mentions.Color == "" {
		cfg.Channels.Mentions.Color = "&e"
	}
	if cfg.Channels.Mentions.Sound == "" {
		cfg.Channels.Mentions.Sound = "LEVEL_UP"
	}
	for name, ch := range cfg.Channels.List {
		if ch.Formats.Chat == "" {
			ch.Formats.Chat = "%player%: %message%"
		}
		if ch.Formats.BridgeToChat == "" {
			ch.Formats.BridgeToChat = "%name%: %message%"
		}
		cfg.Channels.List[name] = ch
	}

	// Match defaults
	if cfg.Match.HalfDuration == 0 {
		cfg.Match.HalfDuration = 10 * time.Minute
	}
	if cfg.Match.Tick == 0 {
		cfg.Match.Tick = time.Second
	}
	if cfg.Match.Prefix == "" {
		cfg.Match.Prefix = "&b&lEvent Host"
	}
	setMatchTemplateDefaults(&cfg.Match.Formats.Platform, defaultPlatformTemplates)
	setMatchTemplateDefaults(&cfg.Match.Formats.Bridge, defaultBridgeTemplates)

	// Roster defaults
	if cfg.Rosters.File == "" {
		cfg.Rosters.File = "rosters.yml"
	}
	if cfg.Rosters.ActiveLeague == "" {
		cfg.Rosters.ActiveLeague = "main"
	}
	if len(cfg.Rosters.Leagues) == 0 {
		cfg.Rosters.Leagues = []string{"main", "juniors", "nationals"}
	}
	if cfg.Rosters.PermissionPrefix == "" {
		cfg.Rosters.PermissionPrefix = "core.team."
	}
	if cfg.Rosters.ChannelFormat == "" {
		cfg.Rosters.ChannelFormat = "&8[&b%channel%&8] &r%player% &8» &r%message%"
	}

	if cfg.Playtime.RefreshInterval == 0 {
		cfg.Playtime.RefreshInterval = 10 * time.Minute
	}

	if cfg.PrivateMessages.SenderFormat == "" {
		cfg.PrivateMessages.SenderFormat = "&6✉ &fYou &7→ &b%recipient%&7: %message%"
	}
	if cfg.PrivateMessages.RecipientFormat == "" {
		cfg.PrivateMessages.RecipientFormat = "&6✉ &b%sender% &7says: &f%message%"
	}
	if cfg.PrivateMessages.SpyFormat == "" {
		cfg.PrivateMessages.SpyFormat = "&c[SPY] &e(%sender% &7→ &e%recipient%): &f%message%"
	}
}

var defaultPlatformTemplates = MatchTemplates{
	Start:      "%prefix% &8| &aMatch starting: &9%home% &fvs &c%away%",
	Half:       "%prefix% &8| &eHalftime! &9%home% &f%home_score% &7- &f%away_score% &c%away%",
	Resume:     "%prefix% &8| &aSecond half starting!",
	End:        "%prefix% &8| &cMatch over! &9%home% &f%home_score% &7- &f%away_score% &c%away%",
	Update:     "%prefix% &8| &9%home% &f%home_score% &7- &f%away_score% &c%away% &8| %time%%half%%extra%",
	Goal:       "&e&lGOAL! &b%scorer% &rscored for %team%&r! &7(%minute%')",
	GoalAssist: "&e&lGOAL! &b%scorer% &rscored for %team%&r! &7(%minute%') &fAssist: &b%assist%",
	GoalRemove: "%prefix% &8| &cGoal removed for team %team%",
}

var defaultBridgeTemplates = MatchTemplates{
	Start:      "`%time%` **%home%** vs **%away%** is starting!",
	Half:       "`%time%` Halftime: **%home%** %home_score% - %away_score% **%away%**",
	Resume:     "`%time%` Second half starting! **%home%** %home_score% - %away_score% **%away%**",
	End:        "`%time%` Match over: **%home%** %home_score% - %away_score% **%away%**",
	Goal:       "`%time%` **GOAL! %scorer%** scored for **%team%**! Result: **%home% %home_score% - %away_score% %away%**",
	GoalAssist: "`%time%` **GOAL! %scorer%** scored for **%team%**! Assist: **%assist%** Result: **%home% %home_score% - %away_score% %away%**",
	GoalRemove: "`%time%` __Removed__ goal for team **%team%**!",
}

func setMatchTemplateDefaults(t *MatchTemplates, def MatchTemplates) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&t.Start, def.Start)
	fill(&t.Half, def.Half)
	fill(&t.Resume, def.Resume)
	fill(&t.End, def.End)
	fill(&t.Update, def.Update)
	fill(&t.Goal, def.Goal)
	fill(&t.GoalAssist, def.GoalAssist)
	fill(&t.GoalRemove, def.GoalRemove)
}
