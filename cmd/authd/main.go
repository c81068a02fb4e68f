// Command authd serves the account token lifecycle over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/santokhan/authkit"
	"github.com/santokhan/authkit/delivery"
	"github.com/santokhan/authkit/store/memory"
	"github.com/santokhan/authkit/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.slogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	rdb, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, closeRedis)

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, closeRepo)

	sender, closeSender := newDelivery(cfg, logger)
	cleanups = append(cleanups, closeSender)

	builder := authkit.New().
		WithConfig(cfg.engineConfig()).
		WithRedis(rdb).
		WithAccountRepository(repo).
		WithDelivery(sender).
		WithLogger(logger)
	if cfg.AuditLog {
		builder = builder.WithAuditSink(authkit.NewSlogSink(logger.With(slog.String("component", "audit"))))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	cleanups = append(cleanups, engine.Close)

	handler, err := newServer(engine, logger).routes()
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// openRedis starts an in-process miniredis when REDIS_ADDR is "memory".
func openRedis(cfg config, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.RedisAddr
	var mr *miniredis.Miniredis
	if addr == "memory" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn("using in-process redis; sessions are lost on restart", slog.String("addr", addr))
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.RedisPassword,
	})
	return client, func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}, nil
}

func openRepository(ctx context.Context, cfg config, logger *slog.Logger) (authkit.AccountRepository, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory accounts")
		return memory.New(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		pool.Close()
		return nil, nil, err
	}
	return postgres.NewAccountRepository(pool), func() {
		_ = db.Close()
		pool.Close()
	}, nil
}

func newDelivery(cfg config, logger *slog.Logger) (authkit.Delivery, func()) {
	switch cfg.Delivery {
	case "smtp":
		return delivery.NewSMTPSender(delivery.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}), func() {}
	case "kafka":
		p := delivery.NewKafkaPublisher(delivery.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger)
		return p, func() { _ = p.Close() }
	default:
		return delivery.NewLogSender(logger), func() {}
	}
}
