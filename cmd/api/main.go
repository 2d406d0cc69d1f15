// Command api is the screening platform process: it wires repositories,
// the provider stack, the investigation and risk services, the screening
// orchestrator and the monitoring scheduler, and serves Prometheus metrics.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/audit"
	monitordomain "github.com/veriscreen/screening-backend/internal/domain/monitoring"
	"github.com/veriscreen/screening-backend/internal/infrastructure/cache"
	"github.com/veriscreen/screening-backend/internal/infrastructure/config"
	"github.com/veriscreen/screening-backend/internal/infrastructure/cost"
	"github.com/veriscreen/screening-backend/internal/infrastructure/database"
	"github.com/veriscreen/screening-backend/internal/infrastructure/notify"
	"github.com/veriscreen/screening-backend/internal/infrastructure/providers"
	"github.com/veriscreen/screening-backend/internal/infrastructure/repository"
	"github.com/veriscreen/screening-backend/internal/infrastructure/telemetry"
	"github.com/veriscreen/screening-backend/internal/service/ai"
	"github.com/veriscreen/screening-backend/internal/service/compliance"
	"github.com/veriscreen/screening-backend/internal/service/entityres"
	invsvc "github.com/veriscreen/screening-backend/internal/service/investigation"
	"github.com/veriscreen/screening-backend/internal/service/monitoring"
	"github.com/veriscreen/screening-backend/internal/service/risk"
	"github.com/veriscreen/screening-backend/internal/service/screening"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := hex.DecodeString(cfg.Security.EncryptionKey)
	if err != nil || len(key) != 32 {
		return fmt.Errorf("security.encryption_key must be 64 hex characters")
	}
	encryptor, err := cache.NewEncryptor(key)
	if err != nil {
		return fmt.Errorf("building encryptor: %w", err)
	}

	db, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	redisOpts.DB = cfg.Redis.DB
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Repositories.
	tenants := repository.NewTenantRepository(db)
	entities := repository.NewEntityRepository(db, encryptor)
	profiles := repository.NewProfileRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	subjects := repository.NewSubjectRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	checkpoints := repository.NewCheckpointRepository(db)
	ruleRepo := repository.NewComplianceRuleRepository(db)

	auditLog := audit.NewLogger(auditRepo, logger)

	// Provider stack.
	responseCache := cache.NewResponseCache(redisClient, encryptor, cfg.Cache, logger)
	costs := cost.NewService(cfg.Budget, logger)
	breakers := providers.NewBreakerRegistry(cfg.Breaker, logger)
	registry := providers.NewRegistry(breakers, logger)
	limiter := providers.NewRateLimiter(providers.LimitConfig{TokensPerSecond: 10, MaxTokens: 20})
	router := providers.NewRouter(registry, breakers, limiter, responseCache, costs, cfg.Router, logger)
	registry.StartHealthMonitor(ctx)
	defer registry.Stop()

	// Compliance.
	loader := compliance.NewLoader(ruleRepo, logger)
	engine, err := loader.EngineFor(ctx, uuid.Nil, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("loading compliance rules: %w", err)
	}

	// Risk pipeline.
	classifier := risk.NewClassifier(cfg.Risk.MinValidationConfidence)
	severity := risk.NewSeverityCalculator()
	scorer := risk.NewScorer()
	patterns := risk.NewPatternRecognizer()
	anomaly := risk.NewAnomalyDetector()

	var model ai.Classifier = ai.NoopClassifier{}
	if cfg.AI.APIKey != "" {
		model = ai.NewAnthropicClassifier(cfg.AI.APIKey, cfg.AI.Model, logger)
	}

	// Investigation stack.
	planner := invsvc.NewPlanner(registry, logger)
	executor := invsvc.NewExecutor(router, cfg.Provider.MaxConcurrentQueries, logger)
	assessor := invsvc.NewAssessor(logger)
	controller := invsvc.NewController(invsvc.ControllerConfig{
		ConfidenceThreshold:     cfg.SAR.ConfidenceThreshold,
		FoundationThreshold:     cfg.SAR.FoundationConfidenceThreshold,
		MaxIterations:           cfg.SAR.MaxIterationsPerType,
		FoundationMaxIterations: cfg.SAR.FoundationMaxIterations,
		MinInformationGain:      cfg.SAR.MinGainThreshold,
	})
	investigator := invsvc.NewTypeInvestigator(planner, executor, assessor, controller, logger)
	phaseRunner := invsvc.NewPhaseRunner(investigator, cfg.Provider.MaxConcurrentQueries, logger)
	extractor := invsvc.NewExtractor(classifier, severity, model, logger)
	invOrch := invsvc.NewOrchestrator(phaseRunner, extractor, checkpoints, logger)

	entityRes := entityres.NewService(entities, auditLog, logger)

	screeningOrch := screening.NewOrchestrator(screening.Deps{
		Tenants:      tenants,
		Compliance:   engine,
		Entities:     entityRes,
		Investigator: invOrch,
		Scorer:       scorer,
		Patterns:     patterns,
		Anomaly:      anomaly,
		Compiler:     screening.NewCompiler(cfg.SAR.MinFindingConfidence),
		Reports:      screening.NewJSONReportGenerator(logger),
		Costs:        costs,
		Profiles:     profiles,
		AuditLog:     auditLog,
		Config:       cfg,
		Logger:       logger,
	})

	// Monitoring.
	channels := []monitordomain.Channel{notify.NewLogChannel(logger)}
	if cfg.Notify.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret))
	}
	alerts := monitoring.NewAlertGenerator(alertRepo, channels, auditLog, cfg.Monitoring, logger)
	scheduler := monitoring.NewScheduler(subjects, entities, profiles, screeningOrch,
		monitoring.NewDeltaDetector(logger), monitoring.NewVigilanceManager(logger),
		alerts, cfg.Monitoring.MaxParallelChecks, logger)
	go scheduler.Start(ctx, cfg.Monitoring.SchedulerInterval)

	// Metrics endpoint.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("screening platform ready",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
	return nil
}
