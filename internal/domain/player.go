package domain

import (
	"regexp"
	"strings"
	"time"
)

// Player is an online player as reported by the host
type Player struct {
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Display returns the name shown in chat
func (p Player) Display() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// PlayerRecord is the persisted view of a player
type PlayerRecord struct {
	ID                   int64     `json:"id"`
	UUID                 string    `json:"uuid"`
	Name                 string    `json:"name"`
	FirstSeen            time.Time `json:"first_seen"`
	LastSeen             time.Time `json:"last_seen"`
	MentionSound         bool      `json:"mention_sound"`
	TotalPlaytimeSeconds int64     `json:"total_playtime_seconds"`
}

// Session represents a player's time on the server
type Session struct {
	ID              int64      `json:"id"`
	PlayerID        int64      `json:"player_id"`
	JoinedAt        time.Time  `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds,omitempty"`
}

// PlaytimeEntry represents a player's position on the playtime leaderboard
type PlaytimeEntry struct {
	Rank    int    `json:"rank"`
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Seconds int64  `json:"seconds"`
}

// Sender identifies who produced a message or command
type Sender struct {
	UUID    string `json:"uuid,omitempty"`
	Name    string `json:"name"`
	Console bool   `json:"console,omitempty"`
}

// ConsoleSender is the administrative console
var ConsoleSender = Sender{Name: "Console", Console: true}

// colorCodeRegex matches legacy colour and format codes like &a, &l, §r
var colorCodeRegex = regexp.MustCompile(`(?i)[&§][0-9a-fk-or]`)

// StripColors removes colour and format codes from text
func StripColors(s string) string {
	return colorCodeRegex.ReplaceAllString(s, "")
}

// CleanName lowercases a player name with colour codes removed
func CleanName(name string) string {
	return strings.ToLower(StripColors(name))
}
