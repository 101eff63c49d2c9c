package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/chat"
)

// CommandRequest is the request body for console commands
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResponse is the reply of a console command
type CommandResponse struct {
	Output []string `json:"output"`
}

// handleConsoleCommand runs a command line as the console (admin only)
func (r *Router) handleConsoleCommand(w http.ResponseWriter, req *http.Request) {
	var body CommandRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	line := strings.TrimPrefix(strings.TrimSpace(body.Command), "/")
	if line == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	writeJSON(w, http.StatusOK, CommandResponse{Output: nonNil(r.manager.ConsoleCommand(req.Context(), line))})
}

// handleReload re-reads the configuration and re-applies it
func (r *Router) handleReload(w http.ResponseWriter, req *http.Request) {
	if err := r.manager.Reload(req.Context()); err != nil {
		zerolog.Ctx(req.Context()).Error().Err(err).Msg("Reload failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// handleToggleChannel flips the disabled flag of a channel
func (r *Router) handleToggleChannel(w http.ResponseWriter, req *http.Request) {
	by := "Console"
	if claims := r.getAuthClaims(req); claims != nil {
		by = claims.Username
	}

	disabled, err := r.manager.ToggleChannel(req.PathValue("name"), by)
	if err != nil {
		writeChannelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channel":  strings.ToLower(req.PathValue("name")),
		"disabled": disabled,
	})
}

// handleGetSubscribers lists the online subscribers of a channel
func (r *Router) handleGetSubscribers(w http.ResponseWriter, req *http.Request) {
	players, err := r.manager.Subscribers(req.PathValue("name"))
	if err != nil {
		writeChannelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

// handleBridgeCheck verifies the external bridge connection
func (r *Router) handleBridgeCheck(w http.ResponseWriter, req *http.Request) {
	driver := r.manager.Config().Bridge.Driver
	if err := r.manager.CheckBridge(req.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"driver": driver,
			"ok":     false,
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"driver": driver, "ok": true})
}

// MatchOpRequest carries the arguments of a match operation
type MatchOpRequest struct {
	Args []string `json:"args"`
}

// handleMatchOp runs a result subcommand as the console
func (r *Router) handleMatchOp(w http.ResponseWriter, req *http.Request) {
	op := strings.ToLower(req.PathValue("op"))
	if !validateMatchOp(op) {
		writeError(w, http.StatusBadRequest, "unknown match operation")
		return
	}

	var body MatchOpRequest
	if req.ContentLength != 0 {
		if err := decodeBody(w, req, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	output := r.manager.MatchCommand(req.Context(), op, body.Args)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"output": nonNil(output),
		"status": r.manager.Match().Status(),
	})
}

func writeChannelError(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrChannelNotFound) {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
