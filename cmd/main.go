package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"telesumm/internal/aggregator"
	"telesumm/internal/bot"
	"telesumm/internal/cache"
	"telesumm/internal/chunker"
	"telesumm/internal/config"
	"telesumm/internal/controller"
	"telesumm/internal/database"
	"telesumm/internal/extract"
	"telesumm/internal/httpapi"
	"telesumm/internal/length"
	"telesumm/internal/scheduler"
	"telesumm/internal/service"
	"telesumm/internal/summarizer"
	"telesumm/internal/telemetry"
	"telesumm/internal/tokenizer"
)

const (
	httpShutdownTimeout = 10 * time.Second
	cachePingTimeout    = 5 * time.Second
)

func main() {
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{Enabled: cfg.TracingEnabled}, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize tracing",
			"error", err)

		return
	}
	defer func() {
		if err = shutdownTracing(context.Background()); err != nil {
			log.ErrorContext(ctx, "Failed to shut down tracing",
				"error", err)
		}
	}()

	tok, err := tokenizer.NewTiktoken(cfg.TokenizerEncoding)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize tokenizer",
			"error", err,
			"encoding", cfg.TokenizerEncoding)

		return
	}
	log.InfoContext(ctx, "Tokenizer is initialized",
		"encoding", tok.Name())

	s, backend := initSummarizer(ctx, cfg, tok, log)

	agg := aggregator.New(s, cfg.SummaryParallelism, log)
	window := chunker.Window{MaxTokens: cfg.ChunkMaxTokens, OverlapTokens: cfg.ChunkOverlapTokens}

	ctrl, err := controller.New(
		tok,
		agg,
		length.NewPolicy(cfg.ModelMaxOutputTokens),
		window,
		log,
	)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize controller",
			"error", err,
			"maxWindow", cfg.ChunkMaxTokens,
			"overlap", cfg.ChunkOverlapTokens)

		return
	}

	summaryCache, closeCache := initCache(ctx, cfg, log)
	defer closeCache()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	svc := service.New(ctrl, service.Options{
		Cache:    summaryCache,
		CacheTTL: cfg.CacheTTL,
		CacheScope: cache.Scope{
			Backend:         backend,
			Window:          window,
			MaxOutputTokens: cfg.ModelMaxOutputTokens,
		},
		History: db,
		Fetcher: extract.NewFetcher(
			&http.Client{Timeout: extract.DefaultFetchTimeout},
			cfg.MaxUploadBytes,
			log,
		),
	}, log)

	sched := scheduler.New(ctx, db, cfg.HistoryRetention, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", scheduler.DailyRetentionSpec)

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", scheduler.DailyRetentionSpec,
		"timezone", scheduler.Timezone,
		"retention", cfg.HistoryRetention.String())

	var botInst *bot.Bot

	if token := strings.TrimSpace(cfg.TelegramToken); token != "" {
		botInst, err = bot.New(token, svc, db, bot.Options{
			AllowedUsers:   cfg.AllowedUsers,
			MaxUploadBytes: cfg.MaxUploadBytes,
			UpdateTimeout:  cfg.RequestTimeout,
		}, log)
		if err != nil {
			log.ErrorContext(ctx, "Failed to initialize bot",
				"error", err,
				"allowedUsersCount", len(cfg.AllowedUsers))

			return
		}

		go botInst.Start(ctx)
	} else {
		log.InfoContext(ctx, "TELEGRAM_TOKEN is empty so bot is disabled")
	}

	var api *httpapi.Server

	if cfg.HTTPEnabled {
		api = httpapi.New(cfg.HTTPAddr, svc, httpapi.Options{
			MaxUploadBytes: cfg.MaxUploadBytes,
			RequestTimeout: cfg.RequestTimeout,
		}, log)

		go func() {
			if serveErr := api.Start(); serveErr != nil {
				log.ErrorContext(ctx, "HTTP server failed",
					"error", serveErr,
					"addr", api.Addr())
				cancel()
			}
		}()
		log.InfoContext(ctx, "HTTP server is started",
			"addr", api.Addr())
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	if api != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		if err = api.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(shutdownCtx, "Failed to shut down HTTP server",
				"error", err)
		}
		shutdownCancel()
	}

	if botInst != nil {
		botInst.Stop()
		log.InfoContext(ctx, "Bot is stopped",
			"uptimeSeconds", time.Since(start).Seconds())
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// initSummarizer falls back to the lead extract when the configured
// provider cannot be created. The second result names the backend and model.
func initSummarizer(
	ctx context.Context,
	cfg config.Config,
	tok tokenizer.Tokenizer,
	log *slog.Logger,
) (summarizer.Summarizer, string) {
	provider := strings.ToLower(strings.TrimSpace(cfg.SummarizerProvider))

	var (
		s     summarizer.Summarizer
		model string
		err   error
	)

	switch provider {
	case "openai":
		var openAI *summarizer.OpenAISummarizer
		if openAI, err = summarizer.NewOpenAISummarizer(summarizer.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			BaseURL:     cfg.OpenAIBaseURL,
			ServiceTier: cfg.OpenAIServiceTier,
		}); err == nil {
			s, model = openAI, openAI.Model()
		}
	case "anthropic":
		var anthropic *summarizer.AnthropicSummarizer
		if anthropic, err = summarizer.NewAnthropicSummarizer(summarizer.AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			BaseURL: cfg.AnthropicBaseURL,
		}); err == nil {
			s, model = anthropic, anthropic.Model()
		}
	case "lead":
	default:
		err = errors.New("unknown provider")
	}

	if err != nil {
		log.WarnContext(ctx, "Failed to create summarizer so fallback will be used",
			"error", err,
			"provider", provider,
			"fallback", "lead")
	}

	if s == nil {
		s = summarizer.NewLeadSummarizer(tok)
		provider, model = "lead", cfg.TokenizerEncoding
	}

	log.InfoContext(ctx, "Summarizer is initialized",
		"provider", provider,
		"model", model,
		"parallelism", cfg.SummaryParallelism)

	return s, provider + ":" + model
}

func initCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Cache, func()) {
	if addr := strings.TrimSpace(cfg.CacheRedisAddr); addr != "" {
		rc := cache.NewRedis(cache.RedisConfig{
			Addr:     addr,
			Password: cfg.CacheRedisPassword,
			DB:       cfg.CacheRedisDB,
		})

		pingCtx, pingCancel := context.WithTimeout(ctx, cachePingTimeout)
		defer pingCancel()

		if err := rc.Ping(pingCtx); err != nil {
			log.WarnContext(ctx, "Redis is unreachable so in-memory cache will be used",
				"error", err,
				"addr", addr)

			if closeErr := rc.Close(); closeErr != nil {
				log.ErrorContext(ctx, "Failed to close Redis client",
					"error", closeErr)
			}
		} else {
			log.InfoContext(ctx, "Summary cache is initialized",
				"backend", "redis",
				"addr", addr,
				"ttl", cfg.CacheTTL.String())

			return rc, func() {
				if closeErr := rc.Close(); closeErr != nil {
					log.ErrorContext(ctx, "Failed to close Redis client",
						"error", closeErr)
				}
			}
		}
	}

	lru := cache.NewLRU(cfg.CacheMaxEntries)
	if lru == nil {
		log.InfoContext(ctx, "Summary cache is disabled")

		return nil, func() {}
	}

	log.InfoContext(ctx, "Summary cache is initialized",
		"backend", "memory",
		"maxEntries", cfg.CacheMaxEntries,
		"ttl", cfg.CacheTTL.String())

	return lru, func() {}
}
