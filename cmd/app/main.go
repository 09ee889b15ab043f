// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"future-self-ai/internal/config"
	"future-self-ai/internal/domain/ports/adapter"
	"future-self-ai/internal/infra/adapters/image"
	tele "future-self-ai/internal/infra/adapters/telegram"
	"future-self-ai/internal/infra/cache"
	pg "future-self-ai/internal/infra/db/postgres"
	"future-self-ai/internal/infra/logging"
	"future-self-ai/internal/infra/metrics"
	red "future-self-ai/internal/infra/redis"
	"future-self-ai/internal/infra/sched"
	"future-self-ai/internal/infra/scheduler"
	"future-self-ai/internal/infra/storage"
	"future-self-ai/internal/infra/web"
	"future-self-ai/internal/infra/worker"
	"future-self-ai/internal/usecase"

	"github.com/jackc/pgx/v4/pgxpool"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

const orphanReason = "generation interrupted by service restart"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bootedAt := time.Now()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting")

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Generation.Provider)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool, 15*time.Second)

	jobRepo := pg.NewJobRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Cache (+ sweep lock when shared) ----
	var (
		jobCache adapter.JobCache
		locker   red.Locker
	)
	switch cfg.Cache.Backend {
	case "redis":
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		jobCache = red.NewJobCache(redisClient, cfg.Redis.KeyPrefix, cfg.Cache.TTL, logger)
		locker = red.NewLocker(redisClient)
	default:
		jobCache = cache.NewMemoryJobCache(cfg.Cache.Shards)
	}
	logger.Info().Str("backend", cfg.Cache.Backend).Msg("job cache ready")

	// ---- Artifact storage ----
	files, err := storage.NewFileStore(cfg.Storage.UploadDir, cfg.Storage.PublicPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage")
	}

	// ---- Generation backend ----
	generator, err := newGenerator(ctx, cfg.Generation)
	if err != nil {
		logger.Fatal().Err(err).Msg("generation backend")
	}
	generator = image.NewLimitedGenerator(generator, cfg.Generation.ConcurrentLimit)
	logger.Info().Str("provider", generator.Name()).Int("concurrent_limit", cfg.Generation.ConcurrentLimit).Msg("generation backend ready")

	// ---- Failure notifications ----
	var notifier adapter.JobNotifier = tele.NewNoopNotifier(logger)
	if tg := cfg.Notify.Telegram; tg.Token != "" && tg.ChatID != 0 {
		n, err := tele.NewFailureNotifier(tg.Token, tg.ChatID)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier = n
			logger.Info().Str("token", logging.Redact(tg.Token, cfg.Runtime.Dev)).Int64("chat_id", tg.ChatID).Msg("telegram failure notifications enabled")
		}
	}

	// ---- Use cases ----
	jobUC := usecase.NewJobUseCase(jobRepo, txManager, jobCache, usecase.JobTrackerConfig{
		CacheTTL:        cfg.Cache.TTL,
		RetentionMaxAge: cfg.Retention.MaxAge,
		InstanceID:      cfg.Generation.InstanceID,
	}, logger)

	workers := worker.NewPool(cfg.Generation.ConcurrentLimit, cfg.Generation.QueueSize, logger)
	dispatcher := worker.NewGenerationDispatcher(workers, jobUC, files, notifier, logger)
	portraitUC := usecase.NewPortraitUseCase(jobUC, generator, dispatcher, files, logger)

	if cfg.Generation.FailOrphansOnStart {
		n, err := jobUC.FailOrphaned(ctx, bootedAt, orphanReason)
		if err != nil {
			logger.Error().Err(err).Msg("fail orphaned jobs")
		} else if n > 0 {
			logger.Warn().Int("count", n).Msg("orphaned jobs failed at startup")
		}
	}

	// ---- Sweeps ----
	schedulers := []*scheduler.Scheduler{
		scheduler.NewScheduler(cfg.Cache.SweepInterval, time.Minute, sched.NewCacheSweeper(jobUC), logger),
		scheduler.NewScheduler(cfg.Retention.SweepInterval, cfg.Retention.LockTTL,
			sched.NewRetentionSweeper(jobUC, locker, cfg.Retention.LockTTL, logger), logger),
		scheduler.NewScheduler(cfg.Retention.SweepInterval, cfg.Retention.LockTTL,
			sched.NewArtifactSweeper(files, cfg.Retention.MaxAge), logger),
	}
	for _, s := range schedulers {
		s.Start(ctx)
	}

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Admin.APIKey, cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.TokenTTL)
	if !auth.Enabled() {
		logger.Warn().Msg("admin.api_key not set; admin routes are disabled")
	}
	api := web.NewServer(portraitUC, jobUC, files, auth, web.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RequestTimeout: cfg.Server.WriteTimeout,
		ImagePath:      cfg.Storage.PublicPath,
		Ready:          pool.Ping,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	for _, s := range schedulers {
		s.Stop()
	}
	if err := workers.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("generation pool did not drain")
	}
	cancel()
	logger.Info().Msg("bye")
}

func newGenerator(ctx context.Context, g config.GenerationConfig) (adapter.ImageGenerator, error) {
	switch g.Provider {
	case "stable_diffusion":
		sd := g.StableDiffusion
		return image.NewStableDiffusionGenerator(sd.URL, sd.Timeout, image.StableDiffusionOptions{
			Steps:             sd.Steps,
			CFGScale:          sd.CFGScale,
			Sampler:           sd.Sampler,
			DenoisingStrength: sd.DenoisingStrength,
			ControlNetModel:   sd.ControlNetModel,
		})
	case "gemini":
		return image.NewGeminiGenerator(ctx, g.Gemini.APIKey, g.Gemini.BaseURL, g.Gemini.Model)
	case "openai":
		return image.NewOpenAIGenerator(g.OpenAI.APIKey, g.OpenAI.Model, g.OpenAI.Size)
	case "noop":
		return image.NewNoopGenerator(2 * time.Second), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", g.Provider)
	}
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := pool.Stat()
			metrics.ObserveJobStorePool(metrics.JobStorePool{
				Max:           st.MaxConns(),
				Open:          st.TotalConns(),
				Idle:          st.IdleConns(),
				Acquired:      st.AcquiredConns(),
				EmptyAcquires: st.EmptyAcquireCount(),
			})
		}
	}
}
