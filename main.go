// Package main provides the main entry point for the hopgate click redirection service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/hopgate/app/handlers"
	"github.com/amirphl/hopgate/app/router"
	"github.com/amirphl/hopgate/app/scheduler"
	"github.com/amirphl/hopgate/app/services"
	businessflow "github.com/amirphl/hopgate/business_flow"
	"github.com/amirphl/hopgate/config"
	"github.com/amirphl/hopgate/logger"
	"github.com/amirphl/hopgate/repository"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	log       *logrus.Logger
	recorder  *businessflow.AttributionRecorderImpl
	publisher services.AttributionPublisher
	cache     *redis.Client
	stopFuncs []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log.WithFields(logrus.Fields{
		"version":     cfg.Deployment.Version,
		"commit":      cfg.Deployment.CommitHash,
		"environment": cfg.Deployment.Environment,
	}).Info("starting hopgate")

	// Initialize application
	app, err := initializeApplication(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize application")
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("shutting down gracefully")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("server stopped unexpectedly")
		}
	}

	app.shutdown()
	log.Info("server stopped")
}

// shutdown stops intake first, then drains click writes before closing their sinks
func (a *Application) shutdown() {
	if err := a.router.Shutdown(); err != nil {
		a.log.WithError(err).Error("error during http shutdown")
	}

	// Stop background workers
	for _, fn := range a.stopFuncs {
		fn()
	}

	a.recorder.Wait()

	if err := a.publisher.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close attribution publisher")
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close redis client")
		}
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("database connection established")

	if cfg.AutoMigrate {
		if err := repository.RunMigrations(db, cfg.MigrationsPath); err != nil {
			return nil, err
		}
		log.WithField("path", cfg.MigrationsPath).Info("database migrations applied")
	}

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, log *logrus.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.WithFields(logrus.Fields{"addr": opt.Addr, "db": cfg.RedisDB}).Info("redis connection established")
	return rc, nil
}

// initializePublisher mirrors attribution rows to Kafka when enabled
func initializePublisher(cfg config.KafkaConfig, log *logrus.Logger) services.AttributionPublisher {
	if !cfg.Enabled {
		return services.NewNoopAttributionPublisher()
	}
	log.WithFields(logrus.Fields{
		"brokers":          cfg.Brokers,
		"click_topic":      cfg.ClickTopic,
		"impression_topic": cfg.ImpressionTopic,
	}).Info("kafka attribution publisher enabled")
	return services.NewKafkaAttributionPublisher(cfg.Brokers, cfg.ClickTopic, cfg.ImpressionTopic, cfg.WriteTimeout)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, log *logrus.Logger) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, log)
	if err != nil {
		return nil, err
	}
	var invalidations redis.UniversalClient
	if rc != nil {
		invalidations = rc
		stopFuncs = append(stopFuncs, scheduler.StartCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval, log))
	}

	publisher := initializePublisher(cfg.Kafka, log)

	// Initialize repositories
	routingRepo := repository.NewRoutingRepository(db)
	clickLogRepo := repository.NewClickLogRepository(db)
	impressionRepo := repository.NewImpressionRepository(db)

	// Initialize services
	hasher, err := services.NewFingerprintService(cfg.Tracking.FingerprintPepper)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fingerprint service: %w", err)
	}

	// Rule index: first load happens synchronously inside Start
	index := businessflow.NewRuleIndex(routingRepo, log)
	refresher := scheduler.NewRuleIndexRefresher(index, cfg.Tracking.RuleRefreshInterval, invalidations, cfg.Tracking.InvalidationChannel, log)
	stopFuncs = append(stopFuncs, refresher.Start(context.Background()))

	// Initialize flows
	recorder := businessflow.NewAttributionRecorder(clickLogRepo, impressionRepo, hasher, publisher, cfg.Tracking.StoreWriteTimeout, log)
	matcher := businessflow.NewRuleMatcher(index)
	redirectFlow := businessflow.NewRedirectFlow(index, matcher, recorder, businessflow.RedirectOptions{
		FallbackURL:  cfg.Tracking.FallbackURL,
		ClickIDParam: cfg.Tracking.ClickIDParam,
		PartnerParam: cfg.Tracking.PartnerParam,
	}, log)
	impressionFlow := businessflow.NewImpressionFlow(index, recorder)

	// Initialize handlers
	signals := handlers.ClientSignals{ProxyHeader: cfg.Server.ProxyHeader}
	appRouter := router.NewFiberRouter(router.Handlers{
		Redirect:   handlers.NewRedirectHandler(redirectFlow, signals, log),
		Impression: handlers.NewImpressionHandler(impressionFlow, signals, log),
		Health:     handlers.NewHealthHandler(index, cfg.Deployment.Version),
	}, cfg, log)

	return &Application{
		router:    appRouter,
		config:    cfg,
		log:       log,
		recorder:  recorder,
		publisher: publisher,
		cache:     rc,
		stopFuncs: stopFuncs,
	}, nil
}
