package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/playtime"
	"github.com/ernie/pitchside/internal/roster"
	"github.com/ernie/pitchside/internal/storage"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseID parses an ID from the URL path
func parseID(req *http.Request, param string) (int64, error) {
	idStr := req.PathValue(param)
	return strconv.ParseInt(idStr, 10, 64)
}

// decodeBody decodes a JSON request body into v
func decodeBody(w http.ResponseWriter, req *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16))
	return dec.Decode(v)
}

// handleGetChannels returns every channel with its state
func (r *Router) handleGetChannels(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.manager.Channels())
}

// handleGetPlayers returns the players currently online
func (r *Router) handleGetPlayers(w http.ResponseWriter, req *http.Request) {
	online := r.manager.Host().Online()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"players": online,
		"total":   len(online),
	})
}

// handleGetMatch returns the live match status
func (r *Router) handleGetMatch(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.manager.Match().Status())
}

// handleGetMatches returns recent match results
func (r *Router) handleGetMatches(w http.ResponseWriter, req *http.Request) {
	limit := parseLimit(req, 20, 100)
	results, err := r.store.RecentMatchResults(req.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []domain.MatchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// PlaytimeResponse is one player's total playtime
type PlaytimeResponse struct {
	Name     string `json:"name"`
	Seconds  int64  `json:"seconds"`
	Readable string `json:"readable"`
}

// handleGetPlaytime returns a single player's playtime
func (r *Router) handleGetPlaytime(w http.ResponseWriter, req *http.Request) {
	name, total, err := r.manager.Playtime().ByName(req.Context(), req.PathValue("name"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "player not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PlaytimeResponse{
		Name:     name,
		Seconds:  int64(total / time.Second),
		Readable: playtime.Format(total),
	})
}

// handleGetPlaytimeTop returns one page of the playtime leaderboard
func (r *Router) handleGetPlaytimeTop(w http.ResponseWriter, req *http.Request) {
	page := parsePage(req)
	size := parseLimit(req, 10, 50)

	entries, pages, err := r.manager.Playtime().Top(req.Context(), page, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.PlaytimeEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"page":    page,
		"pages":   pages,
		"entries": entries,
	})
}

// handleGetRosters lists the rosters of a league (active league by default)
func (r *Router) handleGetRosters(w http.ResponseWriter, req *http.Request) {
	rosters := r.manager.Rosters()
	league := req.URL.Query().Get("league")
	if league == "" {
		league = rosters.ActiveLeague()
	}
	list := rosters.List(league)
	if list == nil {
		list = []roster.Roster{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"league":  league,
		"leagues": rosters.Leagues(),
		"rosters": list,
	})
}

// handleHealth reports liveness of the database and the host connection
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":         "ok",
		"host_connected": r.manager.Host().Connected(),
		"players_online": len(r.manager.Host().Online()),
		"ws_clients":     r.liveHub.ClientCount(),
	}
	if err := r.store.Ping(req.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = err.Error()
	}
	writeJSON(w, status, body)
}
