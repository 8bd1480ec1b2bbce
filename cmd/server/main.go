package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/koopa0/system-design/14-player-ranking/internal"
	"github.com/koopa0/system-design/14-player-ranking/internal/migrations"
	"github.com/koopa0/system-design/14-player-ranking/internal/sqlc"
	"github.com/koopa0/system-design/14-player-ranking/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 載入配置
	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 設定日誌
	log, err := logger.Init(config.Log.Level, config.Log.Format, config.Log.Output, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(config, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(config *internal.Config, log *slog.Logger) error {
	ctx := context.Background()

	// 段位表
	ranks, err := internal.LoadRankTable(config.Rank.TiersFile)
	if err != nil {
		return fmt.Errorf("load rank table: %w", err)
	}
	log.Info("rank table loaded", "tiers", len(ranks.Tiers()), "file", config.Rank.TiersFile)

	// 連接 PostgreSQL
	pgConfig, err := pgxpool.ParseConfig(config.PostgresDSN())
	if err != nil {
		return fmt.Errorf("parse postgres config: %w", err)
	}
	if config.Postgres.MaxConns > 0 {
		pgConfig.MaxConns = config.Postgres.MaxConns
	}
	if config.Postgres.MinConns > 0 {
		pgConfig.MinConns = config.Postgres.MinConns
	}

	pgPool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	// 執行資料庫遷移
	migrator, err := migrations.New(config.PostgresURL(), log)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	_ = migrator.Close()

	checks := []internal.ReadinessCheck{
		{Name: "postgres", Ping: pgPool.Ping},
	}

	// 權限表：啟用 Redis 時跨行程共享，否則保存在記憶體
	var (
		authorizer   internal.Authorizer
		capabilities internal.CapabilityReader
	)
	if config.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         config.Redis.Addr,
			Password:     config.Redis.Password,
			DB:           config.Redis.DB,
			PoolSize:     config.Redis.PoolSize,
			MinIdleConns: config.Redis.MinIdleConns,
			MaxRetries:   config.Redis.MaxRetries,
			ReadTimeout:  config.Redis.ReadTimeout,
			WriteTimeout: config.Redis.WriteTimeout,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		redisAuth := internal.NewRedisAuthorizer(redisClient, config.Redis.KeyPrefix)
		authorizer, capabilities = redisAuth, redisAuth
		checks = append(checks, internal.ReadinessCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		memAuth := internal.NewMemoryAuthorizer()
		authorizer, capabilities = memAuth, memAuth
		log.Warn("redis disabled, capabilities are kept in memory")
	}

	// 通知：有 NATS 時發佈，否則寫入日誌
	var notifier internal.Notifier = internal.NewLogNotifier(log)
	if config.Notify.NATSUrl != "" {
		natsNotifier, err := internal.NewNATSNotifier(config.Notify.NATSUrl, config.Notify.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
	}

	outbox := internal.NewOutbox()
	dispatcher := internal.NewDispatcher(outbox, notifier, config.Notify.DispatchInterval, log)
	dispatcher.Start()

	roster := internal.NewRoster()
	service := internal.NewService(internal.Dependencies{
		Queries:    sqlc.New(pgPool),
		Ranks:      ranks,
		Game:       roster,
		Authorizer: authorizer,
		Outbox:     outbox,
	}, config, log)

	scheduler := internal.NewSaveScheduler(service, config.Persist.SaveInterval, log)
	scheduler.Start()

	handler := internal.NewHandler(service, roster, capabilities, log, checks...)

	// 設定 HTTP 伺服器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// 啟動伺服器
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", config.Server.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	// 先停止接收請求，再寫入所有玩家
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("failed to force close server", "error", closeErr)
		}
	}

	scheduler.Stop()

	report := service.SaveAllSessions(ctx, true)
	if report.Failed > 0 {
		log.Error("final save incomplete",
			"attempted", report.Attempted,
			"failed", report.Failed)
	}

	service.Shutdown()
	dispatcher.Stop()

	return serveErr
}
