package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opmelink-api/internal/cache"
	"opmelink-api/internal/config"
	"opmelink-api/internal/events"
	"opmelink-api/internal/handler"
	"opmelink-api/internal/logger"
	"opmelink-api/internal/metrics"
	"opmelink-api/internal/middleware"
	"opmelink-api/internal/repository"
	"opmelink-api/internal/router"
	"opmelink-api/internal/service"
	"opmelink-api/internal/source"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.App.Name)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("starting opmelink api",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	if !cfg.App.IsDevelopment() {
		if cfg.Sync.Secret == "" {
			log.Warn("SYNC_SECRET is empty, the sync endpoint is disabled")
		}
		if cfg.App.LoginKey == "" {
			log.Warn("LOGIN_KEY is empty, admin endpoints are disabled")
		}
	}

	m := metrics.New()
	var checks []handler.ReadinessCheck

	// Store for case records, links and restriction rules
	var store repository.Store
	switch cfg.Store.Type {
	case "postgres", "postgresql":
		pgStore, err := repository.NewPostgresStore(cfg.Store.PostgresDSN(), log)
		if err != nil {
			log.Fatal("failed to initialize PostgreSQL store", zap.Error(err))
		}
		store = pgStore
	default: // sqlite
		sqliteStore, err := repository.NewSQLiteStore(cfg.Store.Path, log)
		if err != nil {
			log.Fatal("failed to initialize SQLite store", zap.Error(err))
		}
		store = sqliteStore
	}
	defer store.Close()
	checks = append(checks, handler.ReadinessCheck{Name: "store", Ping: func(ctx context.Context) error {
		_, err := store.GetStats(ctx)
		return err
	}})

	// Implant catalog: next to the store, or the shared MySQL catalog
	var catalogRepo repository.ImplantRepository = store
	if cfg.Catalog.Type == "mysql" {
		mysqlDB, err := sql.Open("mysql", cfg.Catalog.DSN())
		if err != nil {
			log.Fatal("failed to open MySQL catalog", zap.Error(err))
		}
		mysqlDB.SetMaxOpenConns(10)
		mysqlDB.SetMaxIdleConns(5)
		mysqlDB.SetConnMaxLifetime(5 * time.Minute)
		defer mysqlDB.Close()

		mysqlRepo := repository.NewMySQLImplantRepository(mysqlDB, log)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = mysqlRepo.EnsureSchema(ctx)
		cancel()
		if err != nil {
			log.Fatal("failed to prepare MySQL catalog", zap.Error(err))
		}
		catalogRepo = mysqlRepo
		checks = append(checks, handler.ReadinessCheck{Name: "catalog", Ping: mysqlDB.PingContext})
		log.Info("MySQL implant catalog initialized")
	}

	// Optional sync history
	var syncRuns repository.SyncRunRepository
	if cfg.SyncLog.MongoURI != "" {
		mongoRepo, err := repository.NewMongoDBSyncRunRepository(
			cfg.SyncLog.MongoURI,
			cfg.SyncLog.MongoDatabase,
			cfg.SyncLog.MongoCollection,
		)
		if err != nil {
			log.Warn("sync history disabled: MongoDB unavailable", zap.Error(err))
		} else {
			defer mongoRepo.Close()
			syncRuns = mongoRepo
			log.Info("MongoDB sync history initialized")
		}
	}

	// Cache and the shared Redis client
	var redisClient *redis.Client
	var appCache cache.Cache
	if cfg.Cache.Type == "redis" {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		appCache = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix, log)
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
		log.Info("Redis cache initialized", zap.String("addr", cfg.Cache.RedisAddress()))
	} else {
		appCache = cache.NewMemoryCache()
	}
	defer appCache.Close()

	// LinkCreated delivery
	broker := events.NewBroker(events.DefaultBuffer, m, log)
	defer broker.Close()

	// Remote targets are fed from a queue so scans never wait on them
	var remote events.MultiPublisher
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	if redisClient != nil {
		relay := events.NewRedisRelay(redisClient, cfg.Events.RedisChannel, broker, log)
		go relay.RunWithRetry(relayCtx, events.DefaultRelayBackoff)
		remote = append(remote, relay)
	}
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafkaPub, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, log)
		if err != nil {
			log.Fatal("failed to initialize Kafka publisher", zap.Error(err))
		}
		defer kafkaPub.Close()
		remote = append(remote, kafkaPub)
		log.Info("Kafka publisher initialized", zap.String("topic", cfg.Events.KafkaTopic))
	}
	publishers := events.MultiPublisher{broker}
	var eventQueue *events.Queue
	if len(remote) > 0 {
		eventQueue = events.NewQueue(remote, events.DefaultQueueSize, events.DefaultDeliverTimeout, m, log)
		publishers = append(publishers, eventQueue)
	}

	// Services
	fetcher := source.NewFetcher(source.FetcherConfig{
		BaseURL:     cfg.Upstream.BaseURL,
		Timeout:     cfg.Upstream.Timeout,
		RetryCount:  cfg.Upstream.RetryCount,
		Concurrency: cfg.Upstream.Concurrency,
	}, m, log)

	recordService := service.NewRecordService(store, log)
	syncService := service.NewSyncService(fetcher, recordService, syncRuns, service.SyncConfig{
		BusinessUnits: cfg.Upstream.BusinessUnits,
		CatchAllGroup: cfg.Upstream.CatchAllGroup,
	}, m, log)
	lookup := service.LookupFetchFunc(fetcher, service.LookupConfig{
		BusinessUnits: cfg.Upstream.BusinessUnits,
		CatchAllGroup: cfg.Upstream.CatchAllGroup,
		Window:        cfg.Upstream.LookupWindow,
	})
	tokenService := service.NewTokenService(appCache, cfg.Cache.TokenTTL, log)
	ruleService := service.NewRuleService(store, log)
	catalogService := service.NewCatalogService(catalogRepo, appCache, cfg.Cache.TTL, log)
	ledger := service.NewLinkLedger(store, publishers, m, log)
	scanService := service.NewScanService(ruleService, catalogService, ledger, m, log)
	summaryService := service.NewSummaryService(store, store)

	var scheduler *service.SyncScheduler
	if cfg.Sync.Interval > 0 {
		scheduler = service.NewSyncScheduler(syncService, service.SchedulerConfig{
			OwnerID:      cfg.Sync.DefaultOwner,
			Interval:     cfg.Sync.Interval,
			LookbackDays: cfg.Sync.LookbackDays,
			Location:     cfg.App.Location(),
		}, log)
		scheduler.Start()
	}

	r := router.New(router.Config{
		Logger:              log,
		Metrics:             m,
		Handler:             handler.New(cfg.App.Name, cfg.App.Version, checks...),
		SyncHandler:         handler.NewSyncHandler(syncService, cfg.Sync.DefaultOwner, 5*time.Minute, log),
		RecordHandler:       handler.NewRecordHandler(recordService, lookup, log),
		CaseHandler:         handler.NewCaseHandler(scanService, recordService, ledger, lookup, log),
		SummaryHandler:      handler.NewSummaryHandler(summaryService, cfg.App.Location(), log),
		RestrictionHandler:  handler.NewRestrictionHandler(ruleService, log),
		ImplantHandler:      handler.NewImplantHandler(catalogService, log),
		NotificationHandler: handler.NewNotificationHandler(broker, recordService, handler.DefaultHeartbeat, log),
		AuthHandler:         handler.NewAuthHandler(tokenService, log),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Tokens:      tokenService,
			Sync:        syncService,
			Store:       store,
			Subscribers: broker.Subscribers,
			DBType:      cfg.Store.Type,
			CacheType:   cfg.Cache.Type,
		}, log),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{Tokens: tokenService, Logger: log}),
		SyncSecret:     cfg.Sync.Secret,
		LoginKey:       cfg.App.LoginKey,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	if scheduler != nil {
		scheduler.Stop()
	}
	stopRelay()
	broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	if eventQueue != nil {
		if err := eventQueue.Close(ctx); err != nil {
			log.Warn("pending events not delivered", zap.Int("pending", eventQueue.Pending()), zap.Error(err))
		}
	}

	log.Info("server stopped")
}
