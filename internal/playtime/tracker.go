// Package playtime serves player playtime totals and the leaderboard.
package playtime

import (
	"context"
	"sync"
	"time"

	"github.com/hako/durafmt"
	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/domain"
)

// cacheSize is how many leaderboard rows the refresh keeps in memory
const cacheSize = 100

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:y,wk:w,d:d,h:h,m:m,s:s,ms:ms,us:us")

// Source is the persistent playtime store
type Source interface {
	Playtime(ctx context.Context, uuid string) (int64, error)
	TopPlaytime(ctx context.Context, limit, offset int) ([]domain.PlaytimeEntry, int, error)
	GetPlayerByName(ctx context.Context, name string) (*domain.PlayerRecord, error)
}

// Tracker caches the top of the leaderboard and refreshes it periodically
type Tracker struct {
	source   Source
	interval time.Duration
	log      zerolog.Logger

	mu        sync.RWMutex
	top       []domain.PlaytimeEntry
	total     int
	refreshed time.Time
}

func NewTracker(source Source, interval time.Duration, log zerolog.Logger) *Tracker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Tracker{
		source:   source,
		interval: interval,
		log:      log.With().Str("component", "playtime").Logger(),
	}
}

// Run refreshes the cache until ctx is done
func (t *Tracker) Run(ctx context.Context) {
	if err := t.Refresh(ctx); err != nil {
		t.log.Error().Err(err).Msg("Initial playtime refresh failed")
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				t.log.Error().Err(err).Msg("Playtime refresh failed")
			}
		}
	}
}

// Refresh reloads the cached leaderboard
func (t *Tracker) Refresh(ctx context.Context) error {
	top, total, err := t.source.TopPlaytime(ctx, cacheSize, 0)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.top = top
	t.total = total
	t.refreshed = time.Now()
	t.mu.Unlock()
	t.log.Debug().Int("players", total).Msg("Playtime leaderboard refreshed")
	return nil
}

// Get returns a player's total playtime
func (t *Tracker) Get(ctx context.Context, uuid string) (time.Duration, error) {
	secs, err := t.source.Playtime(ctx, uuid)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// ByName resolves a player by name and returns their display name and playtime
func (t *Tracker) ByName(ctx context.Context, name string) (string, time.Duration, error) {
	p, err := t.source.GetPlayerByName(ctx, name)
	if err != nil {
		return "", 0, err
	}
	return p.Name, time.Duration(p.TotalPlaytimeSeconds) * time.Second, nil
}

// Top returns page (1-based) of the leaderboard and the page count. Pages
// inside the cached range are served from memory.
func (t *Tracker) Top(ctx context.Context, page, size int) ([]domain.PlaytimeEntry, int, error) {
	if size <= 0 {
		size = 10
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size

	t.mu.RLock()
	cached := !t.refreshed.IsZero() && offset+size <= cacheSize
	if cached {
		entries := window(t.top, offset, size)
		pages := pageCount(t.total, size)
		t.mu.RUnlock()
		return entries, pages, nil
	}
	t.mu.RUnlock()

	entries, total, err := t.source.TopPlaytime(ctx, size, offset)
	if err != nil {
		return nil, 0, err
	}
	return entries, pageCount(total, size), nil
}

func window(entries []domain.PlaytimeEntry, offset, size int) []domain.PlaytimeEntry {
	if offset >= len(entries) {
		return nil
	}
	end := offset + size
	if end > len(entries) {
		end = len(entries)
	}
	return append([]domain.PlaytimeEntry(nil), entries[offset:end]...)
}

func pageCount(total, size int) int {
	if total == 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Format renders a duration as its two largest units, e.g. "3 d 4 h"
func Format(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(2).Format(shortUnits)
}
