package api

import (
	"net/http"
	"regexp"
	"strconv"
)

// matchOps are the result subcommands reachable through the admin API
var matchOps = map[string]bool{
	"status": true, "start": true, "stop": true, "stophalf": true,
	"teams": true, "prefix": true, "warp": true, "time": true,
	"add": true, "remove": true, "extratime": true,
}

var validUsername = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// parseLimit parses and validates a limit parameter with default and max values
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			return parsed
		}
	}
	return defaultLimit
}

// parsePage parses a 1-based page parameter
func parsePage(r *http.Request) int {
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 1
}

// validateMatchOp checks if a match operation name is valid
func validateMatchOp(op string) bool {
	return matchOps[op]
}

// validateUsername checks an admin account name
func validateUsername(username string) bool {
	return validUsername.MatchString(username)
}
