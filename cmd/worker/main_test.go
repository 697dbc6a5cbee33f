package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"walletcore.backend/internal/app"
	"walletcore.backend/internal/config"
	"walletcore.backend/internal/infrastructure/models"
	"walletcore.backend/internal/usecases"
	plog "walletcore.backend/pkg/logger"
)

func withWorkerHooks(t *testing.T) {
	t.Helper()
	origDotenv, origCfg, origLog := loadDotenv, loadCfg, initLog
	origDB, origRedis, origBuild, origSignal := openDB, newRedisClient, buildContainer, signalContext
	t.Cleanup(func() {
		loadDotenv, loadCfg, initLog = origDotenv, origCfg, origLog
		openDB, newRedisClient, buildContainer, signalContext = origDB, origRedis, origBuild, origSignal
	})
	loadDotenv = func(...string) error { return errors.New("no .env") }
	initLog = plog.Init
}

func testConfig(redisURL string) func() *config.Config {
	return func() *config.Config {
		cfg := config.Load()
		cfg.Server.Env = "test"
		cfg.Redis.URL = redisURL
		cfg.Broker.URL = redisURL
		cfg.Broker.Concurrency = 2
		cfg.Providers.UseInternal = true
		cfg.Notifications.BackoffBase = time.Minute
		return cfg
	}
}

func sqliteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:worker_%d?mode=memory&cache=shared", time.Now().UnixNano())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestRun_InvalidConfig(t *testing.T) {
	withWorkerHooks(t)
	loadCfg = func() *config.Config {
		cfg := config.Load()
		cfg.Notifications.MaxAttempts = 0
		return cfg
	}
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOTIFICATION_MAX_ATTEMPTS")
}

func TestRun_DatabaseError(t *testing.T) {
	withWorkerHooks(t)
	loadCfg = testConfig("redis://127.0.0.1:0")
	openDB = func(config.DatabaseConfig) (*gorm.DB, error) { return nil, errors.New("refused") }

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")
}

func TestRun_RedisError(t *testing.T) {
	withWorkerHooks(t)
	loadCfg = testConfig("redis://127.0.0.1:0")
	db := sqliteDB(t)
	openDB = func(config.DatabaseConfig) (*gorm.DB, error) { return db, nil }

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestRun_StopsOnSignal(t *testing.T) {
	withWorkerHooks(t)
	mr := miniredis.RunT(t)
	loadCfg = testConfig("redis://" + mr.Addr())
	db := sqliteDB(t)
	openDB = func(config.DatabaseConfig) (*gorm.DB, error) { return db, nil }

	var built *app.Container
	buildContainer = func(cfg *config.Config, db *gorm.DB, cache, broker *goredis.Client) (*app.Container, error) {
		c, err := app.New(cfg, db, cache, broker)
		built = c
		return c, err
	}
	signalContext = func(parent context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(parent, 200*time.Millisecond)
	}

	done := make(chan error, 1)
	go func() { done <- run() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
	require.NotNil(t, built)
}

func TestServe_DeliversQueuedNotification(t *testing.T) {
	withWorkerHooks(t)
	plog.Init("test")
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig("redis://" + mr.Addr())()
	c, err := app.New(cfg, sqliteDB(t), client, client)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = c.Queue.Enqueue(ctx, usecases.TaskDeliverNotification, "not-a-payload")
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		serve(ctx, c, client)
		close(stopped)
	}()

	// the undecodable task is picked up and parked for a retry
	require.Eventually(t, func() bool {
		n, err := c.Queue.Delayed(context.Background())
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return")
	}
}
