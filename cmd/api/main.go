package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resilience-platform/internal/action"
	"resilience-platform/internal/aiassist"
	"resilience-platform/internal/auth"
	"resilience-platform/internal/config"
	"resilience-platform/internal/decision"
	"resilience-platform/internal/escalation"
	"resilience-platform/internal/event"
	"resilience-platform/internal/httpapi"
	"resilience-platform/internal/incident"
	"resilience-platform/internal/killswitch"
	"resilience-platform/internal/metrics"
	"resilience-platform/internal/retry"
	"resilience-platform/internal/rules"
	"resilience-platform/internal/safety"
	"resilience-platform/internal/signature"
	"resilience-platform/internal/storage/postgres"
	"resilience-platform/internal/vendorguard"
	"resilience-platform/pkg/logger"
	"resilience-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Error("metrics registration failed", "err", err)
		os.Exit(1)
	}

	// Rule tables and per-vendor overrides from the config directory.
	tables, err := rules.LoadTables(cfg.Rules.Dir)
	if err != nil {
		log.Error("rule tables load failed", "dir", cfg.Rules.Dir, "err", err)
		os.Exit(1)
	}
	overrides, err := vendorguard.LoadOverrides(cfg.Rules.Dir,
		cfg.Safety.CircuitBreakerThreshold, cfg.Safety.CircuitBreakerTimeout, 100)
	if err != nil {
		log.Error("vendor overrides load failed", "dir", cfg.Rules.Dir, "err", err)
		os.Exit(1)
	}

	// Repositories
	eventRepo := postgres.NewEventRepo(db)
	directory := postgres.NewDirectory(db)
	incidentRepo := postgres.NewIncidentRepo(db)
	vendorRepo := postgres.NewVendorRepo(db)
	actionRepo := postgres.NewActionRepo(db)
	decisionRepo := postgres.NewDecisionRepo(db)
	switchRepo := postgres.NewSwitchRepo(db)

	// Services
	failOpen := cfg.Safety.OnCounterStoreError != config.StoreErrorDeny
	counters := safety.NewRedisCounterStore(rdb)
	limiter := safety.NewLimiter(counters, safety.LimiterConfig{
		MaxRetriesPerWorkflow: cfg.Safety.MaxRetriesPerWorkflow,
		MaxRetriesPerVendor:   cfg.Safety.MaxRetriesPerVendor,
		FailOpen:              failOpen,
	})
	rateLimiter := safety.NewRateLimiter(counters, overrides, failOpen)

	engine := rules.NewEngine(tables, rand.New(rand.NewSource(time.Now().UnixNano())))
	breaker := vendorguard.NewBreaker(vendorRepo, overrides)
	kills := killswitch.NewService(switchRepo, log)
	ingestion := event.NewIngestionService(eventRepo, directory, kills, limiter)

	sigs := signature.NewGenerator()
	correlator := incident.NewCorrelator(incidentRepo)
	detector := incident.NewDetector(incidentRepo, sigs, correlator, engine)
	manager := incident.NewManager(incidentRepo)
	escalator := escalation.NewHandler(manager, escalation.LogNotifier{})

	decisions := decision.NewService(decisionRepo)
	stateMachine := action.NewStateMachine(actionRepo)
	coordinator := retry.NewCoordinator(engine, limiter, breaker, decisions, actionRepo)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:        authManager,
		Ingestion:   ingestion,
		Detector:    detector,
		Manager:     manager,
		Incidents:   incidentRepo,
		DecisionLog: decisionRepo,
		Retry:       coordinator,
		Breaker:     breaker,
		Vendors:     vendorRepo,
		Actions:     stateMachine,
		KillSwitch:  kills,
		RateLimit:   rateLimiter,
		Escalation:  escalator,
		Similar:     aiassist.SignatureSearcher{Repo: incidentRepo},
		Classify:    aiassist.HeuristicClassifier{},
		Decisions:   decisions,
	}
	// Readiness checks both stores; a dead store means decisions cannot be
	// persisted or counted, so the instance should be pulled from rotation.
	ready := func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := utils.HealthCheck(ctx, db, 3*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager), ready)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
