package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/mailer"
	"github.com/MrEthical07/authflow/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// backend is everything the engine needs from the outside world, plus the
// hooks to release it.
type backend struct {
	store   authflow.UserStore
	redis   redis.UniversalClient
	mongo   *store.Mongo
	pool    *pgxpool.Pool
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// connectRetryBase is the first backoff between store connection attempts.
var connectRetryBase = 500 * time.Millisecond

// openBackend connects the configured store and the rate-limit Redis and
// waits until the store answers a ping.
func openBackend(ctx context.Context, cfg *config, logger *slog.Logger) (*backend, error) {
	b := &backend{}

	redisAddr := cfg.Redis.Addr
	if cfg.DevRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start in-process redis: %w", err)
		}
		b.closers = append(b.closers, mr.Close)
		redisAddr = mr.Addr()
		logger.Warn("using in-process redis; data is lost on exit", "addr", redisAddr)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	b.redis = rdb
	b.closers = append(b.closers, func() { _ = rdb.Close() })

	switch cfg.Store.Driver {
	case "redis":
		b.store = store.NewRedis(rdb, cfg.Redis.Prefix)
	case "mongo":
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		b.closers = append(b.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		b.mongo = store.NewMongo(client.Database(cfg.Mongo.Database))
		b.store = b.mongo
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.pool = pool
		b.store = store.NewPostgres(pool)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := waitReady(ctx, cfg.Store.ConnectRetries, logger, b.store, rdb); err != nil {
		b.Close()
		return nil, err
	}
	logger.Info("store connected", "driver", cfg.Store.Driver)
	return b, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// waitReady pings the store and the rate-limit Redis with exponential
// backoff until both answer or retries run out.
func waitReady(ctx context.Context, retries uint64, logger *slog.Logger, s pinger, rdb redis.UniversalClient) error {
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(connectRetryBase))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := errors.Join(s.Ping(ctx), rdb.Ping(ctx).Err())
		if err != nil {
			logger.Warn("backend not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// newSender picks the mail transport.
func newSender(cfg *config, logger *slog.Logger) (mailer.Sender, error) {
	if cfg.Mail.Driver == "log" {
		if cfg.production() {
			logger.Warn("mail driver is log; no email leaves this process")
		}
		return mailer.NewLog(logger), nil
	}
	return mailer.NewSMTP(mailer.SMTPConfig{
		Host:       cfg.Mail.SMTP.Host,
		Port:       cfg.Mail.SMTP.Port,
		Username:   cfg.Mail.SMTP.Username,
		Password:   cfg.Mail.SMTP.Password,
		From:       cfg.Mail.From,
		MaxRetries: cfg.Mail.SMTP.MaxRetries,
	})
}

// buildEngine wires an engine over an open backend.
func buildEngine(cfg *config, b *backend, logger *slog.Logger) (*authflow.Engine, error) {
	engineCfg := cfg.engineConfig()

	sender, err := newSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	notifier, err := mailer.New(sender, mailer.Options{
		AppName:         cfg.AppName,
		VerificationTTL: engineCfg.EmailVerification.TTL,
		ResetTTL:        engineCfg.PasswordReset.TTL,
	})
	if err != nil {
		return nil, err
	}

	builder := authflow.New().
		WithConfig(engineCfg).
		WithStore(b.store).
		WithNotifier(notifier).
		WithRedis(b.redis).
		WithLogger(logger)
	if engineCfg.Audit.Enabled {
		builder = builder.WithAuditSink(authflow.NewSlogSink(logger.With("component", "audit")))
	}
	return builder.Build()
}
