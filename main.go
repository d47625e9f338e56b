package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"promptcoach/internal/api"
	"promptcoach/internal/auth"
	"promptcoach/internal/broker"
	"promptcoach/internal/config"
	"promptcoach/internal/models"
	"promptcoach/internal/redis"
	"promptcoach/internal/service/ai"
	"promptcoach/internal/service/assistant"
	"promptcoach/internal/storage"
	"promptcoach/internal/worker"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("load .env")
	}
	if os.Getenv("PROMPTCOACH_DEBUG") == "1" {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfgPath := os.Getenv("PROMPTCOACH_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("PROMPTCOACH_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	logrus.Infof("dbType: %s", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer db.Close()
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		logrus.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	// users, auth_tokens, modules, lessons, resources, chat_messages
	if err := storage.Migrate(db, dbType); err != nil {
		logrus.Fatalf("migrate database: %v", err)
	}
	if err := storage.SeedCatalog(db); err != nil {
		logrus.Fatalf("seed catalog: %v", err)
	}
	resourcesDir := cfg.BasicConfig.ResourcesDir
	if resourcesDir == "" {
		resourcesDir = "./resources"
	}
	if err := storage.EnsureResourceFiles(resourcesDir); err != nil {
		logrus.Fatalf("prepare resources: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote, err := ai.NewFromConfig(ctx, cfg, logrus.WithField("component", "ai"))
	if err != nil {
		logrus.Fatalf("init ai service: %v", err)
	}
	defaultLang := models.LanguageOr(cfg.Chat.DefaultLanguage, models.LanguageES)
	messageBroker := broker.New(remote, broker.Options{
		DefaultLanguage: defaultLang,
		DefaultQuota:    cfg.Chat.DefaultQuota,
		ResetQuota:      cfg.Chat.ResetQuota,
		Timeout:         time.Duration(cfg.Chat.RemoteTimeoutSeconds) * time.Second,
		Logger:          logrus.StandardLogger(),
	})
	if status := messageBroker.CheckCredential(ctx); !status.Valid {
		logrus.Warnf("remote AI unavailable at startup: %s", status.Message)
	}

	workers := worker.NewManager(messageBroker, worker.DispatcherConfig{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		WorkerIdle:  time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
		SessionIdle: time.Duration(cfg.BasicConfig.SessionIdleTimeout) * time.Minute,
	}, rdb)
	defer workers.Close()

	assistantService := assistant.NewService(db)
	assistantService.StartHistoryCleaner(ctx,
		time.Duration(cfg.BasicConfig.HistoryRetentionDays)*24*time.Hour,
		time.Duration(cfg.BasicConfig.HistoryCleanInterval)*time.Minute,
	)
	authService := auth.NewService(db, rdb, time.Duration(cfg.BasicConfig.TokenTTLHours)*time.Hour)

	handlers := api.NewHandler(assistantService, authService, workers, messageBroker, api.Options{
		ResourcesDir:       resourcesDir,
		RateLimitPerMinute: cfg.BasicConfig.RateLimitPerMinute,
		DefaultLanguage:    defaultLang,
	})

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		logrus.Fatalf("server stopped: %v", err)
	}
}
