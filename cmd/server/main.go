package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/application/service"
	"github.com/tejasbhor/civiclens-core/internal/config"
	openaiext "github.com/tejasbhor/civiclens-core/internal/infrastructure/external/openai"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/persistence/repository"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/persistence/sqlite"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/queue"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/worker"
	httpadapter "github.com/tejasbhor/civiclens-core/internal/interfaces/http"
	"github.com/tejasbhor/civiclens-core/internal/pipeline"
	"github.com/tejasbhor/civiclens-core/pkg/database"
	"github.com/tejasbhor/civiclens-core/pkg/utils"
)

func main() {
	// Local development convenience; a missing .env is fine.
	gotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting CivicLens core",
		zap.Int("port", cfg.Server.Port))

	// Database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Message broker
	queueClient, err := queue.NewClient(queue.Config{
		URI:                  cfg.Queue.URI,
		ReportQueue:          cfg.Queue.ReportQueue,
		RetryQueue:           cfg.Queue.RetryQueue,
		DeadLetterQueue:      cfg.Queue.DeadLetterQueue,
		NotificationExchange: cfg.Queue.NotificationExchange,
		Prefetch:             cfg.Queue.Prefetch,
		RetryBaseDelay:       cfg.Queue.RetryBaseDelay,
		RetryMaxDelay:        cfg.Queue.RetryMaxDelay,
		MaxAttempts:          cfg.Queue.MaxAttempts,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message broker", zap.Error(err))
	}
	defer queueClient.Close()

	reportQueue := queue.NewReportQueue(queueClient, logger)
	notifier := queue.NewNotifier(queueClient, logger)

	// Repositories
	txManager := sqlite.NewDB(db.DB, logger)
	reportRepo := repository.NewReportRepository(db.DB, logger)
	taskRepo := repository.NewTaskRepository(db.DB, logger)
	appealRepo := repository.NewAppealRepository(db.DB, logger)
	feedbackRepo := repository.NewFeedbackRepository(db.DB, logger)
	escalationRepo := repository.NewEscalationRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)
	departmentRepo := repository.NewDepartmentRepository(db.DB, logger)
	officerRepo := repository.NewOfficerRepository(db.DB, logger)

	// Intelligence
	intelligence := openaiext.NewClassifier(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.EmbeddingModel,
		cfg.OpenAI.Temperature,
		logger,
	)

	// Pipeline
	thresholds := pipeline.Thresholds{
		ClassificationFloor:  cfg.Pipeline.Thresholds.ClassificationFloor,
		AutoAssignDepartment: cfg.Pipeline.Thresholds.AutoAssignDepartment,
		AutoAssignOfficer:    cfg.Pipeline.Thresholds.AutoAssignOfficer,
		HighConfidence:       cfg.Pipeline.Thresholds.HighConfidence,
	}
	if err := thresholds.Validate(); err != nil {
		logger.Fatal("Invalid pipeline thresholds", zap.Error(err))
	}

	dedupConfig := pipeline.DefaultDedupConfig()
	dedupConfig.Window = time.Duration(cfg.Pipeline.Dedup.WindowDays) * 24 * time.Hour
	dedupConfig.SimilarityThreshold = cfg.Pipeline.Dedup.SimilarityThreshold
	dedupConfig.DefaultRadiusMeters = cfg.Pipeline.Dedup.DefaultRadiusMeters
	for category, radius := range cfg.Pipeline.Dedup.RadiusMeters {
		dedupConfig.RadiusMetersByCategory[category] = radius
	}

	assignConfig := pipeline.DefaultAssignConfig()
	assignConfig.SpecialistConfidence = cfg.Pipeline.Assign.SpecialistConfidence
	assignConfig.GeneralistConfidence = cfg.Pipeline.Assign.GeneralistConfidence
	assignConfig.MismatchConfidence = cfg.Pipeline.Assign.MismatchConfidence
	for severity, hours := range cfg.Pipeline.Assign.SLAHours {
		assignConfig.SLAHours[severity] = hours
	}

	finder := pipeline.NewDuplicateFinder(dedupConfig, reportRepo, intelligence, nil, logger)
	classifier := pipeline.NewClassifier(intelligence, logger)
	router := pipeline.NewDepartmentRouter(pipeline.RouterConfig{
		ExactMatchConfidence: cfg.Pipeline.Router.ExactMatchConfidence,
		EnableLearnedMatcher: cfg.Pipeline.Router.EnableLearnedMatcher,
	}, departmentRepo, intelligence, logger)
	engine := pipeline.NewAssignmentEngine(assignConfig, officerRepo, logger)

	// Services
	lifecycleService := service.NewLifecycleService(
		reportRepo, taskRepo, officerRepo, historyRepo, escalationRepo,
		txManager, notifier, engine, thresholds, logger)
	reportService := service.NewReportService(reportRepo, historyRepo, txManager, reportQueue, logger)
	appealService := service.NewAppealService(appealRepo, reportRepo, officerRepo, lifecycleService, logger)
	feedbackService := service.NewFeedbackService(feedbackRepo, reportRepo, lifecycleService, logger)

	orchestrator := pipeline.NewOrchestrator(
		thresholds, reportRepo, taskRepo, officerRepo,
		finder, classifier, router, engine, lifecycleService, logger)

	// Workers
	reportWorker := worker.NewReportWorker(worker.ReportWorkerConfig{
		Concurrency:    cfg.Worker.Concurrency,
		ProcessTimeout: cfg.Worker.ProcessTimeout,
	}, reportQueue, orchestrator, reportRepo, logger)

	slaWorker := worker.NewSLAWorker(worker.SLAWorkerConfig{
		PollInterval:      cfg.Worker.SLAPollInterval,
		MaxViolationLevel: cfg.Worker.MaxViolationLevel,
		SweepTimeout:      2 * time.Minute,
	}, taskRepo, lifecycleService, logger)

	workerManager := worker.NewManager(logger)
	workerManager.Register(reportWorker)
	workerManager.Register(slaWorker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// HTTP
	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, reportService, lifecycleService, appealService, feedbackService,
		reportQueue, reportWorker, slaWorker, workerManager, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	logger.Info("Shutting down")
	if err := workerManager.StopAll(); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "configs/config.yaml"
}
