package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"

	"github.com/ernie/pitchside/internal/auth"
	"github.com/ernie/pitchside/internal/core"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/storage"
)

// Router holds the HTTP routes and dependencies
type Router struct {
	mux       *http.ServeMux
	handler   http.Handler
	store     *storage.Store
	manager   *core.Manager
	hostHub   *WebSocketHub // delivery instructions for the game server shim
	liveHub   *WebSocketHub // spectator feed
	auth      *auth.Service
	hostToken string
	staticDir string
	log       zerolog.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(manager *core.Manager, authService *auth.Service, hostToken, staticDir string, log zerolog.Logger) *Router {
	log = log.With().Str("component", "api").Logger()
	r := &Router{
		mux:       http.NewServeMux(),
		store:     manager.Store(),
		manager:   manager,
		hostHub:   NewWebSocketHub("host", log),
		liveHub:   NewWebSocketHub("live", log),
		auth:      authService,
		hostToken: hostToken,
		staticDir: staticDir,
		log:       log,
	}

	r.hostHub.OnCount(func(n int) { manager.Host().SetConnected(n > 0) })

	// Host intake (game server shim)
	r.mux.HandleFunc("POST /api/host/join", r.requireHost(r.handleHostJoin))
	r.mux.HandleFunc("POST /api/host/leave", r.requireHost(r.handleHostLeave))
	r.mux.HandleFunc("POST /api/host/chat", r.requireHost(r.handleHostChat))
	r.mux.HandleFunc("POST /api/host/command", r.requireHost(r.handleHostCommand))
	r.mux.HandleFunc("POST /api/host/permissions", r.requireHost(r.handleHostPermissions))
	r.mux.HandleFunc("GET /ws/host", r.requireHost(r.handleHostWebSocket))

	// Public routes
	r.mux.HandleFunc("GET /api/channels", r.handleGetChannels)
	r.mux.HandleFunc("GET /api/players", r.handleGetPlayers)
	r.mux.HandleFunc("GET /api/match", r.handleGetMatch)
	r.mux.HandleFunc("GET /api/matches", r.handleGetMatches)
	r.mux.HandleFunc("GET /api/playtime/top", r.handleGetPlaytimeTop)
	r.mux.HandleFunc("GET /api/playtime/{name}", r.handleGetPlaytime)
	r.mux.HandleFunc("GET /api/rosters", r.handleGetRosters)

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /api/auth/logout", r.handleLogout)
	r.mux.HandleFunc("GET /api/auth/check", r.handleAuthCheck)
	r.mux.HandleFunc("POST /api/auth/change-password", r.requireAuth(r.handleChangePassword))

	// User management routes (admin only)
	r.mux.HandleFunc("GET /api/users", r.requireAdmin(r.handleListUsers))
	r.mux.HandleFunc("POST /api/users", r.requireAdmin(r.handleCreateUser))
	r.mux.HandleFunc("DELETE /api/users/{username}", r.requireAdmin(r.handleDeleteUser))
	r.mux.HandleFunc("POST /api/users/{id}/reset-password", r.requireAdmin(r.handleResetUserPassword))

	// Admin surface
	r.mux.HandleFunc("POST /api/admin/command", r.requireAdmin(r.handleConsoleCommand))
	r.mux.HandleFunc("POST /api/admin/reload", r.requireAdmin(r.handleReload))
	r.mux.HandleFunc("POST /api/admin/channels/{name}/toggle", r.requireAdmin(r.handleToggleChannel))
	r.mux.HandleFunc("GET /api/admin/channels/{name}/subscribers", r.requireAdmin(r.handleGetSubscribers))
	r.mux.HandleFunc("GET /api/admin/bridge/check", r.requireAdmin(r.handleBridgeCheck))
	r.mux.HandleFunc("POST /api/admin/match/{op}", r.requireAdmin(r.handleMatchOp))

	// Spectator WebSocket
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	// Static files - only serve if staticDir is configured
	if staticDir != "" {
		r.mux.HandleFunc("GET /", r.handleStatic)
	}

	r.handler = gzhttp.GzipHandler(r.mux)
	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := req.Header.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", id)
	req = req.WithContext(r.log.With().Str("request_id", id).Logger().WithContext(req.Context()))

	// upgrades need the raw connection, compression would hide it
	if strings.HasPrefix(req.URL.Path, "/ws") {
		r.mux.ServeHTTP(w, req)
		return
	}
	r.handler.ServeHTTP(w, req)
}

// StartWebSocketHub starts broadcasting events to WebSocket clients until
// ctx is done
func (r *Router) StartWebSocketHub(ctx context.Context) {
	go r.hostHub.Run(ctx)
	go r.liveHub.Run(ctx)

	// Delivery instructions go to the host, everything else to spectators
	go func() {
		events := r.manager.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-events:
				if domain.IsDelivery(event.Type) {
					r.hostHub.Broadcast(event)
				} else {
					r.liveHub.Broadcast(event)
				}
			}
		}
	}()
}

// handleStatic serves static files from the configured directory
// For SPA support, serves index.html for any path that doesn't match a file
func (r *Router) handleStatic(w http.ResponseWriter, req *http.Request) {
	path := filepath.Clean(req.URL.Path)
	if path == "/" {
		path = "/index.html"
	}

	fullPath := filepath.Join(r.staticDir, path)

	// Security: ensure the path is within staticDir
	absStaticDir, _ := filepath.Abs(r.staticDir)
	absPath, _ := filepath.Abs(fullPath)
	if !strings.HasPrefix(absPath, absStaticDir) {
		http.NotFound(w, req)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		// SPA fallback: serve index.html for unknown paths
		fullPath = filepath.Join(r.staticDir, "index.html")
		if _, err = os.Stat(fullPath); err != nil {
			http.NotFound(w, req)
			return
		}
	}

	if contentType := getContentType(fullPath); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeFile(w, req, fullPath)
}

// getContentType returns the content type for a file based on extension
func getContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".ico":
		return "image/x-icon"
	default:
		return ""
	}
}
