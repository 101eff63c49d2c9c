package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ernie/pitchside/internal/domain"
)

func scanNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// notFound maps sql.ErrNoRows onto ErrNotFound
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanUser(s scanner) (*User, error) {
	var user User
	var lastLogin sql.NullTime
	err := s.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin,
		&user.PasswordChangeRequired, &user.CreatedAt, &lastLogin)
	if err != nil {
		return nil, notFound(err)
	}
	user.LastLogin = scanNullTime(lastLogin)
	return &user, nil
}

func scanPlayer(s scanner) (*domain.PlayerRecord, error) {
	var p domain.PlayerRecord
	err := s.Scan(&p.ID, &p.UUID, &p.Name, &p.FirstSeen, &p.LastSeen, &p.MentionSound, &p.TotalPlaytimeSeconds)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func scanMatchResult(s scanner) (*domain.MatchResult, error) {
	var r domain.MatchResult
	err := s.Scan(&r.ID, &r.Home, &r.Away, &r.HomeScore, &r.AwayScore, &r.Reason, &r.StartedAt, &r.EndedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}
