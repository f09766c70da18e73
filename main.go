// Command guildkeeper is the main entrypoint for the community bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Connects to the Discord gateway and wires the lobby, invite, ceremony, and
//     command handlers.
//   - Starts background jobs: the voice channel sweep and the invite snapshot refresh.
//   - Exposes an HTTP ops surface with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/onnwee/guildkeeper/ceremony"
	"github.com/onnwee/guildkeeper/commands"
	"github.com/onnwee/guildkeeper/config"
	"github.com/onnwee/guildkeeper/db"
	"github.com/onnwee/guildkeeper/gateway"
	"github.com/onnwee/guildkeeper/invites"
	"github.com/onnwee/guildkeeper/lobby"
	"github.com/onnwee/guildkeeper/platform"
	"github.com/onnwee/guildkeeper/roster"
	"github.com/onnwee/guildkeeper/server"
	"github.com/onnwee/guildkeeper/telemetry"
	"github.com/onnwee/guildkeeper/voicechannel"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("discord credentials missing", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("guildkeeper", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// REST client. The app token source covers the OAuth-scoped endpoints; bot endpoints
	// authenticate with the bot token directly.
	client := &platform.Client{
		BaseURL:  cfg.APIBase,
		BotToken: cfg.BotToken,
	}
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		client.AppTokenSource = &platform.AppTokenSource{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.APIBase + "/oauth2/token",
		}
		// Best-effort startup sanity check against the application endpoint.
		ctx2, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		if appID, err := client.GetApplicationID(ctx2); err != nil {
			slog.Warn("application lookup failed", slog.Any("err", err))
		} else {
			slog.Info("application verified", slog.String("app_id", appID))
		}
		cancel()
	}

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first, embedded SQL as the fallback for deployments that
	// predate the schema_migrations table.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to legacy embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("legacy embedded SQL migration completed",
			slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed",
			slog.String("component", "db_migrate"))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Gateway session first: the voice tracker it feeds backs the manager's emptiness
	// checks, so the platform facade needs it before anything else is wired.
	session := gateway.NewSession(client, cfg.BotToken, gateway.Handlers{})
	guild := &platform.GuildPlatform{Client: client, Voice: session.Voice(), GuildID: cfg.GuildID}

	store := &voicechannel.Store{DB: database}
	mgr := voicechannel.NewManager(guild, store, voicechannel.Options{
		GuildID:       cfg.GuildID,
		CategoryID:    cfg.VoiceCategoryID,
		TTL:           cfg.VoiceTTL,
		MemberRoleIDs: cfg.MemberRoleIDs,
		Label:         cfg.VoiceNameLabel,
	})
	if err := mgr.LoadFromStore(ctx); err != nil {
		slog.Error("ownership cache rebuild failed", slog.Any("err", err))
		os.Exit(1)
	}

	tracker := invites.NewTracker(client, database, cfg.GuildID)
	rosterStore := &roster.Store{DB: database}
	rites := ceremony.New(cfg.GuildID, client, client, ceremonyTree(cfg))

	router := &commands.Router{
		Prefix:   cfg.CommandPrefix,
		GuildID:  cfg.GuildID,
		Manager:  mgr,
		Mover:    guild,
		Roster:   rosterStore,
		Ceremony: rites,
		Replier:  client,
	}

	var lobbyListener *lobby.Listener
	if err := cfg.ValidateVoiceReady(); err != nil {
		slog.Info("voice provisioning disabled", slog.Any("err", err))
	} else {
		lobbyListener = lobby.NewListener(mgr, guild, cfg.LobbyChannelID)
	}

	session.SetHandlers(gateway.Handlers{
		OnReady: func(hctx context.Context) {
			slog.Info("gateway ready", slog.String("guild", cfg.GuildID))
		},
		OnVoiceStateUpdate: func(hctx context.Context, vs gateway.VoiceState) {
			if lobbyListener != nil {
				lobbyListener.HandleVoiceState(hctx, vs)
			}
		},
		OnMemberAdd: func(hctx context.Context, m gateway.MemberAdd) {
			go func() {
				if _, err := tracker.OnMemberAdd(hctx, m.User.ID); err != nil {
					slog.Warn("invite attribution failed", slog.String("user", m.User.ID), slog.Any("err", err))
				}
			}()
			router.HandleMemberAdd(hctx, m)
		},
		OnMessage: router.HandleMessage,
	})

	go session.Run(ctx)
	go voicechannel.StartSweepJob(ctx, mgr, database, cfg.SweepInterval)
	go invites.StartRefreshJob(ctx, tracker, 15*time.Minute)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/metrics/admin)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handlers := server.NewHandlers(database, mgr, tracker, rosterStore, cfg.GuildID)
	go func() {
		if err := server.Start(ctx, handlers, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
	if lobbyListener != nil {
		lobbyListener.Wait()
	}
}

// ceremonyTree builds the role dialogue from the configured member roles. With no roles
// configured the ceremony is disabled.
func ceremonyTree(cfg *config.Config) *ceremony.Step {
	if len(cfg.MemberRoleIDs) == 0 {
		return nil
	}
	names := strings.Split(os.Getenv("MEMBER_ROLE_NAMES"), ",")
	opts := make([]ceremony.Option, 0, len(cfg.MemberRoleIDs))
	for i, roleID := range cfg.MemberRoleIDs {
		name := "Member"
		if i < len(names) && strings.TrimSpace(names[i]) != "" {
			name = strings.TrimSpace(names[i])
		}
		opts = append(opts, ceremony.Option{Label: name, RoleID: roleID, RoleName: name})
	}
	return &ceremony.Step{
		Prompt:  "Welcome! Pick the role that fits you best:",
		Options: opts,
	}
}
