package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"walletcore.backend/internal/app"
	"walletcore.backend/internal/config"
	"walletcore.backend/internal/infrastructure/datasources/postgres"
	"walletcore.backend/internal/infrastructure/jobs"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/redis"
)

var (
	loadDotenv     = godotenv.Load
	loadCfg        = config.Load
	initLog        = logger.Init
	openDB         = postgres.NewConnection
	newRedisClient = redis.NewClient
	buildContainer = app.New
	// signalContext is cancelled on SIGINT or SIGTERM.
	signalContext = func(parent context.Context) (context.Context, context.CancelFunc) {
		return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	initLog(cfg.Server.Env)
	defer logger.Sync()

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	cache, err := newRedisClient(cfg.Redis.URL, cfg.Redis.Password)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer cache.Close()

	broker := cache
	if cfg.Broker.URL != cfg.Redis.URL {
		b, err := newRedisClient(cfg.Broker.URL, cfg.Redis.Password)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer b.Close()
		broker = b
	}

	c, err := buildContainer(cfg, db, cache, broker)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(context.Background())
	defer stop()
	serve(ctx, c, broker)
	return nil
}

// serve runs queue workers and every scheduled processor until ctx is done.
func serve(ctx context.Context, c *app.Container, broker *goredis.Client) {
	c.RegisterTaskHandlers()

	var wg sync.WaitGroup
	for _, job := range c.Jobs() {
		wg.Add(1)
		go func(j *jobs.PeriodicJob) {
			defer wg.Done()
			j.Start(ctx)
		}(job)
	}

	concurrency := c.Config.Broker.Concurrency
	logger.Info(ctx, "Worker started",
		zap.String("queue", app.QueueName),
		zap.Int("concurrency", concurrency),
		zap.String("broker", broker.Options().Addr))

	c.Queue.Run(ctx, concurrency)
	wg.Wait()
	logger.Info(context.Background(), "Worker stopped")
}
