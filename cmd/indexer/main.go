// cmd/indexer/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	auditrepository "subindex/internal/audit/repository"
	auditservice "subindex/internal/audit/service"
	audithttp "subindex/internal/audit/transport/http"
	chainrepository "subindex/internal/chain/repository"
	chainservice "subindex/internal/chain/service"
	chainhttp "subindex/internal/chain/transport/http"
	"subindex/internal/config"
	"subindex/internal/metrics"
	subscriptionrepository "subindex/internal/subscription/repository"
	subscriptionservice "subindex/internal/subscription/service"
	subscriptionhttp "subindex/internal/subscription/transport/http"
	"subindex/pkg/db"
	"subindex/pkg/middleware"
)

var server *http.Server

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_FORMAT") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration failed")
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	log.Info().Msg("connected to PostgreSQL")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- repositories and schema ---
	subRepo := subscriptionrepository.NewPostgresSubscriptionRepository(database)
	auditRepo := auditrepository.NewPostgresAuditRepository(sqlx.NewDb(database, "postgres"))
	checkpointRepo := chainrepository.NewPostgresCheckpointRepository(database)
	for _, init := range []func(context.Context) error{
		subRepo.InitSchema, auditRepo.InitSchema, checkpointRepo.InitSchema,
	} {
		if err := init(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema init failed")
		}
	}

	// --- services ---
	subService := subscriptionservice.NewService(subRepo)
	auditService := auditservice.NewService(auditRepo)
	ingestor := chainservice.NewIngestor(subService, auditService)

	rpcClient, err := chainservice.NewRPCHTTPClient(cfg.RPCHTTPURL, cfg.ProxyAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("rpc client setup failed")
	}
	poller := chainservice.NewPoller(rpcClient, ingestor, checkpointRepo, cfg,
		subRepo, auditRepo, checkpointRepo)

	subHandler := subscriptionhttp.NewSubscriptionHandler(subService)
	auditHandler := audithttp.NewAuditHandler(auditService)
	chainHandler := chainhttp.NewChainHandler(poller, checkpointRepo, rpcClient, cfg)

	metrics.InitMetrics()

	// --- background workers ---
	go func() {
		if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("poller stopped")
			shutdownServer()
		}
	}()
	if cfg.RPCWSURL != "" {
		headSub := chainservice.NewHeadSubscriber(cfg.RPCWSURL, func(uint64) { poller.Wake() })
		go headSub.Run(ctx)
	}

	// --- router ---
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://localhost:3000", "http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.ValidateRequest)

	limiter := middleware.NewRateLimiter(100, 1*time.Minute)

	r.Group(func(pr chi.Router) {
		pr.Use(limiter.Middleware)

		pr.Get("/api/subscriptions/inactive", subHandler.GetInactive)
		pr.Get("/api/subscriptions/active", subHandler.GetActive)
		pr.Get("/api/withdrawals", auditHandler.GetWithdrawals)
		pr.Get("/api/audit/ownership", auditHandler.GetOwnershipTransfers)
		pr.Get("/api/audit/days", auditHandler.GetDayTicks)
		pr.Get("/api/status", chainHandler.Status)

		pr.With(middleware.RequireBody).Post("/api/admin/login", chainHandler.Login)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.JWTAuth(cfg.JWTSecret))
		pr.Post("/api/admin/reindex", chainHandler.Reindex)
	})

	if cfg.MetricsUser != "" {
		r.With(middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPassword)).
			Get("/metrics", promhttp.Handler().ServeHTTP)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	log.Info().Str("addr", cfg.ListenAddr).Msg("server running")

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Info().Msg("shutdown signal received, starting graceful shutdown")
		cancel()
		shutdownServer()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func shutdownServer() {
	if server == nil {
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("server stopped")
}
