package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"

	"github.com/agent0/runner/internal/adapter/gotrue"
	cfhttp "github.com/agent0/runner/internal/adapter/http"
	mcpadapter "github.com/agent0/runner/internal/adapter/mcp"
	cfnats "github.com/agent0/runner/internal/adapter/nats"
	"github.com/agent0/runner/internal/adapter/natskv"
	cfotel "github.com/agent0/runner/internal/adapter/otel"
	"github.com/agent0/runner/internal/adapter/postgres"
	"github.com/agent0/runner/internal/adapter/ristretto"
	"github.com/agent0/runner/internal/adapter/tiered"
	"github.com/agent0/runner/internal/config"
	"github.com/agent0/runner/internal/logger"
	"github.com/agent0/runner/internal/middleware"
	"github.com/agent0/runner/internal/port/cache"
	"github.com/agent0/runner/internal/port/llm"
	"github.com/agent0/runner/internal/port/messagequeue"
	"github.com/agent0/runner/internal/resilience"
	"github.com/agent0/runner/internal/secrets"
	"github.com/agent0/runner/internal/service"
)

// catalogBucket is the NATS KV bucket shared by all runners for MCP tool
// catalogs.
const catalogBucket = "mcp_tool_catalog"

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"vendors", llm.Available(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOtel, err := cfotel.Init(ctx, cfg.OTEL, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Secrets ---
	vault, err := secrets.NewVault(secrets.RequireLoader(
		secrets.EnvLoader(cfg.Crypto.PrivateKeyEnv, cfg.Crypto.PassphraseEnv),
		cfg.Crypto.PrivateKeyEnv,
	))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	stopReload := reloadOnHangup(vault)
	defer stopReload()

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	l1, err := ristretto.New(int(cfg.Cache.L1MaxSizeMB))
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()
	var catalog cache.Cache = l1

	var queue messagequeue.Queue
	if cfg.NATS.URL != "" {
		q, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := q.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()
		queue = q

		kv, err := q.KeyValue(ctx, catalogBucket, cfg.Cache.ToolTTL)
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		catalog = tiered.New(l1, natskv.New(kv), cfg.Cache.ToolTTL)
	} else {
		slog.Info("nats disabled, run notifications off")
	}

	// --- Services ---
	store := postgres.NewStore(pool)
	tools := mcpadapter.NewResolver(store, catalog, mcpadapter.Options{
		CatalogTTL:  cfg.Cache.ToolTTL,
		CallTimeout: cfg.MCP.Timeout,
	})
	creds := service.NewCredentialService(store, vault, cfg.Crypto)
	recorder := service.NewRunRecorder(store, queue, metrics)
	generation := service.NewGenerationService(store, creds, tools, recorder, metrics, cfg.Generation)

	if queue != nil {
		cancelReplay, err := service.NewReplayService(store, queue).Start(ctx)
		if err != nil {
			return fmt.Errorf("replay subscriber: %w", err)
		}
		defer cancelReplay()
	}

	inviter := gotrue.NewClient(cfg.Invite.AuthURL, cfg.Invite.ServiceKey, cfg.Invite.RedirectTo, cfotel.Transport(http.DefaultTransport))
	inviter.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- HTTP ---
	handlers := &cfhttp.Handlers{
		Generation: generation,
		Deploy:     service.NewDeployService(store),
		Invite:     service.NewInviteService(store, inviter),
		Tools:      service.NewToolService(store, tools),
		WSOrigins:  originPatterns(cfg.Server.CORSOrigin),
		Health:     store.Ping,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(cfotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(limiter.Handler)

	cfhttp.MountRoutes(r, handlers, cfhttp.Auth{
		Users: middleware.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience),
		Keys:  store,
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Streams clear their own write deadline.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// reloadOnHangup reloads the key material on SIGHUP so keys can be rotated
// without a restart.
func reloadOnHangup(vault *secrets.Vault) func() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-hup:
				if err := vault.Reload(); err != nil {
					slog.Error("secret reload failed", "error", err)
					continue
				}
				slog.Info("secrets reloaded", "keys", vault.Keys())
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(hup)
		close(done)
	}
}

// originPatterns turns the CORS origin into a WebSocket origin host
// pattern. A wildcard origin accepts any host.
func originPatterns(origin string) []string {
	if origin == "" || origin == "*" {
		return nil
	}
	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return []string{strings.TrimRight(host, "/")}
}
