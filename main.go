// Command streamwatch watches streamers on Twitch, Kick and YouTube and
// announces each go-live exactly once per live session.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the watchlist store (Postgres with migrations, Redis, or memory).
//   - Starts one poll scheduler per enabled provider.
//   - Delivers notifications to Discord, Twitch chat, Redis pub/sub or the log.
//   - Exposes the admin HTTP API with /healthz, /readyz and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/streamwatch/config"
	"github.com/onnwee/streamwatch/db"
	"github.com/onnwee/streamwatch/kickapi"
	"github.com/onnwee/streamwatch/notify"
	"github.com/onnwee/streamwatch/presence"
	"github.com/onnwee/streamwatch/server"
	"github.com/onnwee/streamwatch/telemetry"
	"github.com/onnwee/streamwatch/twitchapi"
	"github.com/onnwee/streamwatch/watchlist"
	"github.com/onnwee/streamwatch/youtubeapi"
)

func main() {
	// Local dev convenience only; production relies on real env.
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdown, err := telemetry.InitTracing("streamwatch", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("streamwatch exited with error", slog.Any("err", err))
		stop()
		shutdown()
		os.Exit(1)
	}
	slog.Info("shutting down")
}

func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
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
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

// backends holds the shared connections opened for the configured store and sinks.
type backends struct {
	db  *sql.DB
	rdb *redis.Client
}

func (b *backends) Close() {
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}
	if b.rdb != nil {
		if err := b.rdb.Close(); err != nil {
			slog.Error("failed to close redis", slog.Any("err", err))
		}
	}
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Store == config.StorePostgres {
		database, err := db.Connect(ctx, cfg.DBDsn)
		if err != nil {
			return nil, err
		}
		b.db = database
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.RunMigrations(database); err != nil {
			b.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if cfg.Store == config.StoreRedis || cfg.RedisEventsChannel != "" {
		b.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := b.rdb.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}
	return b, nil
}

func (b *backends) store(cfg *config.Config, provider string) watchlist.Store {
	switch cfg.Store {
	case config.StorePostgres:
		return db.NewWatchlistStore(b.db, provider)
	case config.StoreRedis:
		return watchlist.NewRedisStore(b.rdb, provider)
	default:
		return watchlist.NewMemoryStore()
	}
}

func (b *backends) readyChecks() []server.ReadyCheck {
	var checks []server.ReadyCheck
	if b.db != nil {
		checks = append(checks, server.ReadyCheck{Name: "database", Check: b.db.PingContext})
	}
	if b.rdb != nil {
		checks = append(checks, server.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return b.rdb.Ping(ctx).Err()
		}})
	}
	return checks
}

// buildLookup returns the raw adapter for provider.
func buildLookup(ctx context.Context, cfg *config.Config, provider string) (presence.Lookup, error) {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	switch provider {
	case config.ProviderTwitch:
		if err := cfg.ValidateTwitch(); err != nil {
			return nil, err
		}
		ts := &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret, HTTPClient: httpClient}
		return twitchapi.NewLookup(&twitchapi.HelixClient{
			AppTokenSource: ts,
			ClientID:       cfg.TwitchClientID,
			HTTPClient:     httpClient,
		}), nil
	case config.ProviderKick:
		return kickapi.NewLookup(&kickapi.Client{HTTPClient: httpClient}), nil
	case config.ProviderYouTube:
		if err := cfg.ValidateYouTube(); err != nil {
			return nil, err
		}
		yt, err := youtubeapi.New(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			return nil, err
		}
		return yt, nil
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

// buildLookups builds the adapter of every enabled provider, failing on the first that cannot be built.
func buildLookups(ctx context.Context, cfg *config.Config) (map[string]presence.Lookup, error) {
	lookups := make(map[string]presence.Lookup, len(cfg.Providers))
	for _, provider := range cfg.Providers {
		lookup, err := buildLookup(ctx, cfg, provider)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", provider, err)
		}
		lookups[provider] = lookup
	}
	return lookups, nil
}

// buildNotifier fans out to every configured sink, falling back to the log.
func buildNotifier(ctx context.Context, cfg *config.Config, b *backends, wg *sync.WaitGroup) notify.Notifier {
	var sinks notify.Multi
	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, &notify.DiscordWebhook{
			URL:        cfg.DiscordWebhookURL,
			Username:   cfg.DiscordUsername,
			HTTPClient: &http.Client{Timeout: 10 * time.Second},
		})
	}
	if cfg.ChatEnabled() {
		chat := notify.NewTwitchChatNotifier(cfg.TwitchBotUsername, cfg.TwitchOAuthToken, cfg.TwitchChatChannel)
		wg.Add(1)
		go func() {
			defer wg.Done()
			chat.Run(ctx)
		}()
		sinks = append(sinks, chat)
	}
	if cfg.RedisEventsChannel != "" && b.rdb != nil {
		sinks = append(sinks, notify.NewRedisPublisher(b.rdb, cfg.RedisEventsChannel))
	}
	if len(sinks) == 0 {
		slog.Warn("no notification sink configured, go-lives are only logged", slog.String("component", "notify"))
		return notify.LogNotifier{}
	}
	return sinks
}

func run(ctx context.Context, cfg *config.Config) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	// Every provider must be usable before any goroutine starts.
	lookups, err := buildLookups(ctx, cfg)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	dispatcher := notify.NewDispatcher(buildNotifier(ctx, cfg, b, &wg), notify.DispatcherOptions{})
	defer dispatcher.Close()

	services := make(map[string]*presence.Service, len(cfg.Providers))
	for _, provider := range cfg.Providers {
		lookup := lookups[provider]
		w := presence.NewWatcher(presence.Options{
			Provider:      provider,
			Store:         b.store(cfg, provider),
			Lookup:        lookup,
			Emitter:       dispatcher,
			Interval:      cfg.PollInterval,
			PacingDelay:   cfg.PacingDelay,
			LookupTimeout: cfg.LookupTimeout,
			StoreTimeout:  cfg.StoreTimeout,
			Retries:       retriesOption(cfg.LookupRetries),
			RetryDelay:    time.Second,
			Workers:       cfg.Workers,
			RatePerSec:    cfg.RatePerSec,
			RateBurst:     cfg.RateBurst,
		})
		services[provider] = w.Service
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Scheduler.Run(ctx); err != nil {
				slog.Error("scheduler stopped", slog.String("provider", provider), slog.Any("err", err))
			}
		}()
		slog.Info("watcher started", slog.String("provider", provider), slog.Duration("interval", cfg.PollInterval))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx, cfg.HTTPAddr, services, b.readyChecks()); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	wg.Wait()
	return nil
}

// retriesOption maps LOOKUP_RETRIES onto Options.Retries, where 0 means default.
func retriesOption(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}
