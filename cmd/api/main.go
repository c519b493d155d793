// Command api runs the Rigsy gateway: the rate-limiting and input-screening
// front door for the chat, voice, and waitlist endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rigsy-gateway/internal/gate"
	hhttp "rigsy-gateway/internal/handler/http"
	"rigsy-gateway/internal/handler/http/middleware"
	"rigsy-gateway/internal/handler/http/requestid"
	"rigsy-gateway/internal/infra/completion"
	"rigsy-gateway/internal/infra/speech"
	"rigsy-gateway/internal/infra/waitlist"
	"rigsy-gateway/internal/observability/logging"
	"rigsy-gateway/internal/observability/tracing"
	"rigsy-gateway/pkg/config"
	"rigsy-gateway/pkg/ratelimit"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	cfg.LogSummary(logger)

	shutdownTracing := initTracing(logger)
	defer shutdownTracing()

	components, err := setupServer(logger, cfg)
	if err != nil {
		logger.Error("failed to set up server", slog.Any("error", err))
		os.Exit(1)
	}

	runServer(logger, cfg, components)
}

// initTracing installs the OpenTelemetry tracer provider and W3C trace
// context propagator. Without an exporter configured, spans only feed the
// X-Trace-Id response header; an exporter can be attached later without
// touching the handlers.
func initTracing(logger *slog.Logger) func() {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", "rigsy-gateway")),
	)
	if err != nil {
		logger.Warn("failed to build tracing resource", slog.Any("error", err))
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("tracer provider shutdown failed", slog.Any("error", err))
		}
	}
}

// ServerComponents holds the wired server pieces that runServer needs.
type ServerComponents struct {
	Handler       http.Handler
	Limiter       *ratelimit.Limiter
	StoreBackend  string
	SweepInterval time.Duration
}

// setupServer wires the counter store, gates, upstream clients, handlers,
// and middleware chain into a single http.Handler.
func setupServer(logger *slog.Logger, cfg *config.AppConfig) (*ServerComponents, error) {
	policies := config.LoadGatePolicies()
	storeCfg := config.LoadStoreConfig()

	store, err := buildStore(storeCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build counter store: %w", err)
	}

	guard := ratelimit.NewStoreGuard(ratelimit.StoreGuardConfig{
		FailureThreshold: storeCfg.GuardFailureThreshold,
		RecoveryTimeout:  storeCfg.GuardRecoveryTimeout,
	})
	limiter := ratelimit.NewLimiter(store,
		ratelimit.WithMetrics(ratelimit.NewPrometheusMetrics()),
		ratelimit.WithStoreGuard(guard),
	)

	chatGate := gate.NewChatGate(limiter, gate.ChatPolicies{
		Session: policies.ChatSession,
		Daily:   policies.ChatDaily,
		Minute:  policies.ChatMinute,
	}, loadPatterns(cfg.PatternsFile, logger))

	speechGate := gate.NewSpeechGate(limiter, gate.SpeechPolicies{
		Daily:  policies.TTSDaily,
		Minute: policies.TTSMinute,
	}, gate.OriginCheck{
		Enforce: cfg.IsProduction(),
		Allowed: cfg.AllowedOrigins,
	}, cfg.TTSSharedSecret, nil)

	completer := buildCompleter(cfg, logger)
	synthesizer := buildSynthesizer(cfg, logger)

	notionConfigured := cfg.NotionAPIKey != "" && cfg.NotionDatabaseID != ""
	var signupStore hhttp.SignupStore
	if notionConfigured {
		signupStore = waitlist.NewNotionClient(waitlist.NotionConfig{
			APIKey:     cfg.NotionAPIKey,
			DatabaseID: cfg.NotionDatabaseID,
		})
	} else {
		logger.Warn("Notion is not configured, waitlist endpoint disabled")
	}

	mux := http.NewServeMux()
	hhttp.Register(mux, hhttp.Handlers{
		Chat: hhttp.ChatHandler{
			Gate:      chatGate,
			Speech:    speechGate,
			Completer: completer,
		},
		TTS: hhttp.TTSHandler{
			Gate:        speechGate,
			Synthesizer: synthesizer,
		},
		Waitlist: hhttp.WaitlistHandler{
			Store:      signupStore,
			Configured: notionConfigured,
		},
		Health: &hhttp.HealthHandler{
			Version:              version,
			Store:                store,
			Guard:                guard,
			StoreBackend:         storeCfg.Backend,
			CompletionConfigured: completer != nil,
			SpeechConfigured:     synthesizer != nil,
			WaitlistConfigured:   notionConfigured,
		},
		Ready: &hhttp.ReadyHandler{Store: store},
	})

	handler := applyMiddleware(logger, cfg, mux)

	return &ServerComponents{
		Handler:       handler,
		Limiter:       limiter,
		StoreBackend:  storeCfg.Backend,
		SweepInterval: storeCfg.SweepInterval,
	}, nil
}

// buildStore creates the counter store selected by configuration.
func buildStore(storeCfg *config.StoreConfig, logger *slog.Logger) (ratelimit.CounterStore, error) {
	if storeCfg.Backend == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := ratelimit.NewRedisStore(ctx, ratelimit.RedisStoreConfig{
			Addr:      storeCfg.RedisAddr,
			Password:  storeCfg.RedisPassword,
			DB:        storeCfg.RedisDB,
			KeyPrefix: storeCfg.RedisKeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("rate limit store: redis", slog.String("addr", storeCfg.RedisAddr))
		return store, nil
	}

	logger.Info("rate limit store: in-memory")
	return ratelimit.NewMemoryStore(), nil
}

// loadPatterns loads extra suspicious-input rules from the configured file.
// A bad file logs a warning and falls back to the built-in rules; a typo in
// an optional tuning file should not take the gateway down.
func loadPatterns(path string, logger *slog.Logger) *gate.PatternSet {
	if path == "" {
		return nil
	}
	patterns, err := gate.LoadPatternsFile(path)
	if err != nil {
		logger.Warn("failed to load patterns file, using built-in rules",
			slog.String("path", path),
			slog.Any("error", err))
		return nil
	}
	logger.Info("loaded extra suspicious-input patterns", slog.String("path", path))
	return patterns
}

// buildCompleter selects the chat completion upstream. A missing API key
// disables the upstream in production and falls back to the canned offline
// reply elsewhere, so local development works without credentials.
func buildCompleter(cfg *config.AppConfig, logger *slog.Logger) completion.Completer {
	switch cfg.ChatProvider {
	case "claude":
		if cfg.AnthropicAPIKey != "" {
			logger.Info("chat completion upstream: claude")
			return completion.NewClaude(cfg.AnthropicAPIKey)
		}
	default:
		if cfg.OpenAIAPIKey != "" {
			logger.Info("chat completion upstream: openai")
			return completion.NewOpenAI(cfg.OpenAIAPIKey)
		}
	}

	if cfg.IsProduction() {
		logger.Error("chat completion upstream is not configured",
			slog.String("provider", cfg.ChatProvider))
		return nil
	}
	logger.Warn("chat completion upstream not configured, using offline replies",
		slog.String("provider", cfg.ChatProvider))
	return completion.NewNoOp()
}

// buildSynthesizer selects the speech synthesis upstream, with the same
// missing-key behavior as buildCompleter.
func buildSynthesizer(cfg *config.AppConfig, logger *slog.Logger) speech.Synthesizer {
	if cfg.OpenAIAPIKey != "" {
		logger.Info("speech synthesis upstream: openai")
		return speech.NewOpenAI(cfg.OpenAIAPIKey)
	}

	if cfg.IsProduction() {
		logger.Error("speech synthesis upstream is not configured")
		return nil
	}
	logger.Warn("speech synthesis upstream not configured, using silent audio")
	return speech.NewNoOp()
}

// applyMiddleware wraps the handler with the middleware chain.
// Order (outermost first): Request ID → Tracing → Recovery → Logging →
// Identity → Body Limit → Timeout → Metrics.
func applyMiddleware(logger *slog.Logger, cfg *config.AppConfig, handler http.Handler) http.Handler {
	var resolver middleware.IdentityResolver = middleware.RemoteAddrResolver{}
	if cfg.TrustProxy {
		trusted, err := middleware.NewTrustedProxyConfig(cfg.TrustedProxies)
		if err != nil {
			// LoadAppConfig already validated the CIDRs
			logger.Error("invalid trusted proxy configuration", slog.Any("error", err))
			os.Exit(1)
		}
		resolver = &middleware.ForwardedResolver{Trusted: trusted}
		logger.Info("client identity: forwarding headers from trusted proxies",
			slog.Int("trusted_proxies_count", len(cfg.TrustedProxies)))
	} else {
		logger.Info("client identity: TCP peer address (proxy headers ignored)")
	}

	chain := handler

	// Apply in reverse order (innermost to outermost).
	chain = hhttp.MetricsMiddleware(chain)
	chain = hhttp.Timeout(30 * time.Second)(chain)
	chain = hhttp.LimitRequestBody(1 << 20)(chain) // 1MB limit
	chain = middleware.Identity(resolver)(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)
	chain = tracing.Middleware(chain)
	chain = requestid.Middleware(chain)

	return chain
}

// runServer starts the HTTP server, the periodic counter sweep, and handles
// graceful shutdown on SIGINT/SIGTERM.
func runServer(logger *slog.Logger, cfg *config.AppConfig, components *ServerComponents) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis expires its own keys; only the memory store needs sweeping.
	var sweeper *cron.Cron
	if components.StoreBackend == "memory" {
		sweeper = cron.New()
		_, err := sweeper.AddFunc("@every "+components.SweepInterval.String(), func() {
			removed, err := components.Limiter.Sweep(ctx)
			if err != nil {
				logger.Warn("counter sweep failed", slog.Any("error", err))
				return
			}
			if removed > 0 {
				logger.Debug("swept expired counters", slog.Int("removed", removed))
			}
		})
		if err != nil {
			logger.Error("failed to schedule counter sweep", slog.Any("error", err))
			os.Exit(1)
		}
		sweeper.Start()
		logger.Info("counter sweep scheduled",
			slog.Duration("interval", components.SweepInterval))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Slowloris対策
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("env", cfg.Env),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		if sweeper != nil {
			sweeper.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
