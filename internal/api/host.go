package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/chat"
	"github.com/ernie/pitchside/internal/core"
	"github.com/ernie/pitchside/internal/domain"
)

// offlineNamespace derives stable ids for players the host reports without one
var offlineNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("pitchside:offline-player"))

// requireHost is middleware that checks the shared host token. WebSocket
// clients that cannot set headers may pass it as ?token=.
func (r *Router) requireHost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.hostToken == "" {
			writeError(w, http.StatusServiceUnavailable, "host token not configured")
			return
		}
		token, ok := bearerToken(req)
		if !ok {
			token = req.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(r.hostToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid host token")
			return
		}
		next(w, req)
	}
}

// HostJoinRequest reports a player coming online
type HostJoinRequest struct {
	UUID        string   `json:"uuid"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Permissions []string `json:"permissions"`
}

// handleHostJoin registers a player with the service
func (r *Router) handleHostJoin(w http.ResponseWriter, req *http.Request) {
	var body HostJoinRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if body.UUID == "" {
		body.UUID = offlinePlayerID(body.Name)
	}

	p := domain.Player{
		UUID:        body.UUID,
		Name:        body.Name,
		DisplayName: body.DisplayName,
		Permissions: body.Permissions,
	}
	if err := r.manager.PlayerJoin(req.Context(), p); err != nil {
		zerolog.Ctx(req.Context()).Error().Err(err).Str("player", p.Name).Msg("Join failed")
		writeError(w, http.StatusInternalServerError, "failed to record join")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uuid": p.UUID})
}

// offlinePlayerID is the stable id of a player known only by name
func offlinePlayerID(name string) string {
	return uuid.NewSHA1(offlineNamespace, []byte(strings.ToLower(name))).String()
}

// HostPlayerRequest identifies an online player
type HostPlayerRequest struct {
	UUID string `json:"uuid"`
}

// handleHostLeave removes a player
func (r *Router) handleHostLeave(w http.ResponseWriter, req *http.Request) {
	var body HostPlayerRequest
	if err := decodeBody(w, req, &body); err != nil || body.UUID == "" {
		writeError(w, http.StatusBadRequest, "uuid is required")
		return
	}
	if err := r.manager.PlayerLeave(req.Context(), body.UUID); err != nil {
		r.writeIntakeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HostPermissionsRequest replaces an online player's permission list
type HostPermissionsRequest struct {
	UUID        string   `json:"uuid"`
	Permissions []string `json:"permissions"`
}

// handleHostPermissions syncs permissions changed on the host
func (r *Router) handleHostPermissions(w http.ResponseWriter, req *http.Request) {
	var body HostPermissionsRequest
	if err := decodeBody(w, req, &body); err != nil || body.UUID == "" {
		writeError(w, http.StatusBadRequest, "uuid is required")
		return
	}
	if !r.manager.Host().SetPermissions(body.UUID, body.Permissions) {
		r.writeIntakeError(w, req, core.ErrNotOnline)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HostChatRequest carries one chat line typed by a player
type HostChatRequest struct {
	UUID    string `json:"uuid"`
	Message string `json:"message"`
}

// HostChatResponse tells the host whether to cancel its own chat handling
type HostChatResponse struct {
	Suppress bool   `json:"suppress"`
	Channel  string `json:"channel,omitempty"`
}

// handleHostChat routes a chat line into the sender's active channel. The
// host always suppresses its own broadcast unless channels are disabled.
func (r *Router) handleHostChat(w http.ResponseWriter, req *http.Request) {
	var body HostChatRequest
	if err := decodeBody(w, req, &body); err != nil || body.UUID == "" {
		writeError(w, http.StatusBadRequest, "uuid is required")
		return
	}

	d, err := r.manager.Chat(req.Context(), body.UUID, body.Message)
	switch {
	case errors.Is(err, chat.ErrChannelsOff):
		writeJSON(w, http.StatusOK, HostChatResponse{Suppress: false})
		return
	case errors.Is(err, core.ErrNotOnline):
		r.writeIntakeError(w, req, err)
		return
	}

	resp := HostChatResponse{Suppress: true}
	if d != nil {
		resp.Channel = d.Channel
	}
	writeJSON(w, http.StatusOK, resp)
}

// HostCommandRequest carries one command typed by a player
type HostCommandRequest struct {
	UUID    string   `json:"uuid"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// handleHostCommand runs a player command. The reply is delivered through
// the host feed and echoed in the response.
func (r *Router) handleHostCommand(w http.ResponseWriter, req *http.Request) {
	var body HostCommandRequest
	if err := decodeBody(w, req, &body); err != nil || body.UUID == "" || body.Command == "" {
		writeError(w, http.StatusBadRequest, "uuid and command are required")
		return
	}

	reply, err := r.manager.Command(req.Context(), body.UUID, body.Command, body.Args)
	if err != nil {
		r.writeIntakeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"reply": nonNil(reply)})
}

func (r *Router) writeIntakeError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, core.ErrNotOnline) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	zerolog.Ctx(req.Context()).Error().Err(err).Msg("Host intake failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
