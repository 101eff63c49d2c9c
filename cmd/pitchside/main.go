// pitchside - chat channels, live matches and team rosters for a game server
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/ernie/pitchside/internal/api"
	"github.com/ernie/pitchside/internal/auth"
	"github.com/ernie/pitchside/internal/config"
	"github.com/ernie/pitchside/internal/core"
	"github.com/ernie/pitchside/internal/domain"
	"github.com/ernie/pitchside/internal/logger"
	"github.com/ernie/pitchside/internal/playtime"
	"github.com/ernie/pitchside/internal/roster"
	"github.com/ernie/pitchside/internal/storage"
)

var version = "dev"

const defaultConfigPath = "/etc/pitchside/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "user":
		cmdUser(os.Args[2:])
	case "channels":
		cmdChannels(os.Args[2:])
	case "rosters":
		cmdRosters(os.Args[2:])
	case "players":
		cmdPlayers(os.Args[2:])
	case "matches":
		cmdMatches(os.Args[2:])
	case "playtime":
		cmdPlaytime(os.Args[2:])
	case "version":
		fmt.Printf("pitchside %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: pitchside <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                               Start the service")
	fmt.Println("  channels                            Show chat channels and subscriber counts")
	fmt.Println("  rosters [--league L]                Show the rosters of a league")
	fmt.Println("  players                             Show players currently online")
	fmt.Println("  matches [--recent N]                Show recent match results (default: 20)")
	fmt.Println("  playtime [--top N]                  Show the playtime leaderboard (default: 10)")
	fmt.Println("  user add [--admin] <username>       Add a user (prompts for password)")
	fmt.Println("  user remove <username>              Remove a user")
	fmt.Println("  user list                           List all users")
	fmt.Println("  user reset <username>               Reset a user's password")
	fmt.Println("  user admin <username>               Toggle admin status for a user")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/pitchside/config.yml)")
	fmt.Println("  --url <url>        Base URL of the pitchside service (default: derived from config)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  pitchside serve --config /etc/pitchside/config.yml")
	fmt.Println("  pitchside rosters --league juniors")
	fmt.Println("  pitchside matches --recent 50")
	fmt.Println("  pitchside user add --admin myuser")
}

// cmdServe starts the service
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfgPath := *configPath
	if cfgPath == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			fmt.Fprintf(os.Stderr, "No config file found at %s. Use --config to specify a config file.\n", defaultConfigPath)
			os.Exit(1)
		}
		cfgPath = defaultConfigPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info().Str("version", version).Str("config", cfgPath).Msg("Pitchside starting...")

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	manager := core.NewManager(cfg, func() (*config.Config, error) {
		return config.Load(cfgPath)
	}, store, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("No JWT secret configured. Auth tokens will use an empty secret.")
	}
	if cfg.Host.Token == "" {
		log.Warn().Msg("No host token configured. The host intake is closed.")
	}

	router := api.NewRouter(manager, authService, cfg.Host.Token, cfg.Server.StaticDir, log)
	router.StartWebSocketHub(ctx)
	if cfg.Server.StaticDir != "" {
		log.Info().Str("dir", cfg.Server.StaticDir).Msg("Serving static files")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// SIGHUP reloads; anything else shuts down
wait:
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				if err := manager.Reload(ctx); err != nil {
					log.Error().Err(err).Msg("Reload failed")
				} else {
					log.Info().Msg("Configuration reloaded")
				}
				continue
			}
			log.Info().Str("signal", sig.String()).Msg("Shutting down...")
			break wait
		case err := <-serverErr:
			if err != nil {
				log.Fatal().Err(err).Msg("HTTP server error")
			}
			break wait
		}
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	cancel()
	manager.Stop()
}

// CLI helper variables
var (
	baseURL = "http://localhost:8080"
	dbPath  string
)

// loadCLIConfigFromFlags loads config using pre-parsed flag values
func loadCLIConfigFromFlags(configPath, serviceURL string) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config from %s: %v\n", configPath, err)
		dbPath = "/var/lib/pitchside/pitchside.db"
		if serviceURL != "" {
			baseURL = serviceURL
		}
		return nil
	}

	dbPath = cfg.Database.Path
	// Derive URL from config, but allow --url flag to override
	if serviceURL != "" {
		baseURL = serviceURL
	} else {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	}
	return cfg
}

// newCLIFlags returns a flag set carrying the global options
func newCLIFlags(name string) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	serviceURL := fs.String("url", "", "base URL of the pitchside service")
	return fs, configPath, serviceURL
}

func loadCLIConfig(args []string) (*config.Config, []string) {
	fs, configPath, serviceURL := newCLIFlags("cli")
	fs.Parse(args)

	cfg := loadCLIConfigFromFlags(*configPath, *serviceURL)
	return cfg, fs.Args()
}

func getJSON(path string, target interface{}) error {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdChannels(args []string) {
	loadCLIConfig(args)

	var channels []domain.ChannelInfo
	if err := getJSON("/api/channels", &channels); err != nil {
		fail(err)
	}
	if len(channels) == 0 {
		fmt.Println("No channels configured")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tPERMISSION\tBRIDGE\tSTATE\tSUBSCRIBERS")
	fmt.Fprintln(w, "-------\t----------\t------\t-----\t-----------")
	for _, ch := range channels {
		state := "on"
		if ch.Disabled {
			state = "off"
		}
		if ch.Broadcast {
			state += " (broadcast)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ch.Name, orDash(ch.Permission), orDash(ch.BridgeID), state, humanize.Comma(int64(ch.Subscribers)))
	}
	w.Flush()
}

func cmdRosters(args []string) {
	fs, configPath, serviceURL := newCLIFlags("rosters")
	league := fs.String("league", "", "league to show (default: active league)")
	fs.Parse(args)
	loadCLIConfigFromFlags(*configPath, *serviceURL)

	path := "/api/rosters"
	if *league != "" {
		path += "?league=" + url.QueryEscape(*league)
	}

	var resp struct {
		League  string          `json:"league"`
		Leagues []string        `json:"leagues"`
		Rosters []roster.Roster `json:"rosters"`
	}
	if err := getJSON(path, &resp); err != nil {
		fail(err)
	}

	fmt.Printf("League: %s (available: %s)\n\n", resp.League, strings.Join(resp.Leagues, ", "))
	if len(resp.Rosters) == 0 {
		fmt.Println("No rosters in this league")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEAM\tTAG\tNAME\tMANAGER\tMEMBERS")
	fmt.Fprintln(w, "----\t---\t----\t-------\t-------")
	for _, r := range resp.Rosters {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.Name, r.Tag, r.Display(), orDash(r.Manager), len(r.Members))
	}
	w.Flush()
}

func cmdPlayers(args []string) {
	loadCLIConfig(args)

	var resp struct {
		Players []domain.Player `json:"players"`
		Total   int             `json:"total"`
	}
	if err := getJSON("/api/players", &resp); err != nil {
		fail(err)
	}
	if resp.Total == 0 {
		fmt.Println("No players online")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUUID\tJOINED")
	fmt.Fprintln(w, "----\t----\t------")
	for _, p := range resp.Players {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.UUID, humanize.Time(p.JoinedAt))
	}
	w.Flush()
	fmt.Printf("\n%d online\n", resp.Total)
}

func cmdMatches(args []string) {
	fs, configPath, serviceURL := newCLIFlags("matches")
	recent := fs.Int("recent", 20, "number of matches to show")
	fs.Parse(args)
	loadCLIConfigFromFlags(*configPath, *serviceURL)

	var results []domain.MatchResult
	if err := getJSON(fmt.Sprintf("/api/matches?limit=%d", *recent), &results); err != nil {
		fail(err)
	}
	if len(results) == 0 {
		fmt.Println("No matches recorded")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOME\tSCORE\tAWAY\tREASON\tDURATION\tENDED")
	fmt.Fprintln(w, "----\t-----\t----\t------\t--------\t-----")
	for _, m := range results {
		fmt.Fprintf(w, "%s\t%d - %d\t%s\t%s\t%s\t%s\n", m.Home, m.HomeScore, m.AwayScore, m.Away, m.Reason,
			playtime.Format(m.EndedAt.Sub(m.StartedAt)), humanize.Time(m.EndedAt))
	}
	w.Flush()
}

func cmdPlaytime(args []string) {
	fs, configPath, serviceURL := newCLIFlags("playtime")
	top := fs.Int("top", 10, "number of players to show (max 50)")
	fs.Parse(args)
	loadCLIConfigFromFlags(*configPath, *serviceURL)

	var resp struct {
		Entries []domain.PlaytimeEntry `json:"entries"`
	}
	if err := getJSON(fmt.Sprintf("/api/playtime/top?limit=%d", *top), &resp); err != nil {
		fail(err)
	}
	if len(resp.Entries) == 0 {
		fmt.Println("No playtime recorded")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPLAYER\tPLAYTIME")
	fmt.Fprintln(w, "----\t------\t--------")
	for _, e := range resp.Entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", humanize.Ordinal(e.Rank), e.Name, playtime.Format(time.Duration(e.Seconds)*time.Second))
	}
	w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func cmdUser(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: user subcommand required: add, remove, list, reset, admin\n")
		os.Exit(1)
	}

	subCmd := args[0]
	_, remaining := loadCLIConfig(args[1:])

	store, err := storage.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	switch subCmd {
	case "add":
		err = cmdUserAdd(ctx, store, remaining)
	case "remove":
		err = cmdUserRemove(ctx, store, remaining)
	case "list":
		err = cmdUserList(ctx, store)
	case "reset":
		err = cmdUserReset(ctx, store, remaining)
	case "admin":
		err = cmdUserAdmin(ctx, store, remaining)
	default:
		err = fmt.Errorf("unknown user command: %s (use: add, remove, list, reset, admin)", subCmd)
	}
	if err != nil {
		store.Close()
		fail(err)
	}
}

// readPassword prompts twice without echo and enforces the password policy
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if err := auth.ValidatePassword(string(password)); err != nil {
		return "", err
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(password), nil
}

func cmdUserAdd(ctx context.Context, store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("user add", flag.ExitOnError)
	isAdmin := fs.Bool("admin", false, "create as admin user")
	fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) < 1 {
		return fmt.Errorf("usage: pitchside user add [--admin] <username>")
	}
	username := remaining[0]

	if _, err := store.GetUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("user '%s' already exists", username)
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := store.CreateUser(ctx, username, hash, *isAdmin); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	roleStr := "user"
	if *isAdmin {
		roleStr = "admin"
	}
	fmt.Printf("User '%s' created successfully (role: %s)\n", username, roleStr)
	return nil
}

func cmdUserRemove(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pitchside user remove <username>")
	}
	username := args[0]

	if err := store.DeleteUser(ctx, username); err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}

	fmt.Printf("User '%s' removed\n", username)
	return nil
}

func cmdUserList(ctx context.Context, store *storage.Store) error {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tROLE\tPWD_CHANGE\tCREATED\tLAST_LOGIN")
	fmt.Fprintln(w, "--------\t----\t----------\t-------\t----------")

	for _, user := range users {
		role := "user"
		if user.IsAdmin {
			role = "admin"
		}
		pwdChange := "no"
		if user.PasswordChangeRequired {
			pwdChange = "yes"
		}
		lastLogin := "never"
		if user.LastLogin != nil {
			lastLogin = humanize.Time(*user.LastLogin)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", user.Username, role, pwdChange, user.CreatedAt.Format("2006-01-02"), lastLogin)
	}
	return w.Flush()
}

func cmdUserReset(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pitchside user reset <username>")
	}
	username := args[0]

	user, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user not found: %s", username)
	}

	password, err := readPassword("Enter new password: ")
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := store.ResetUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	fmt.Printf("Password reset for '%s' (user will be required to change it on next login)\n", username)
	return nil
}

func cmdUserAdmin(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pitchside user admin <username>")
	}
	username := args[0]

	user, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user not found: %s", username)
	}

	newAdminStatus := !user.IsAdmin
	if err := store.UpdateUserAdmin(ctx, user.ID, newAdminStatus); err != nil {
		return fmt.Errorf("failed to update admin status: %w", err)
	}

	if newAdminStatus {
		fmt.Printf("User '%s' is now an admin\n", username)
	} else {
		fmt.Printf("User '%s' is no longer an admin\n", username)
	}
	return nil
}
