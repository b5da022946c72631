package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/AngelGarcia/Mistery/internal/anonymize"
	"github.com/AngelGarcia/Mistery/internal/config"
	"github.com/AngelGarcia/Mistery/internal/game"
	"github.com/AngelGarcia/Mistery/internal/identity"
	"github.com/AngelGarcia/Mistery/internal/logging"
	"github.com/AngelGarcia/Mistery/internal/notify"
	"github.com/AngelGarcia/Mistery/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// app is the service graph built from configuration.
type app struct {
	svc     *game.Service
	ids     *identity.Manager
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadConfig(opts *Options) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	log, err := logging.New(cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// newApp connects to PostgreSQL for documents and Redis for change
// notifications. Without REDIS_URL changes are only seen by this process.
func newApp(ctx context.Context, opts *Options) (*app, error) {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	a := &app{}

	var (
		feed   store.Feed
		client *redis.Client
	)
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		client = redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { client.Close() })
		feed = store.NewRedisFeed(client, cfg.ChannelPrefix, log)
	} else {
		log.Warn("REDIS_URL not set, change notifications stay in this process")
		mem := store.NewMemoryFeed()
		a.closers = append(a.closers, func() { mem.Close() })
		feed = mem
	}

	retry := store.DefaultRetryPolicy
	retry.MaxAttempts = cfg.StoreMaxRetries
	docs, err := store.NewPostgresDocuments(ctx, cfg.DatabaseURL, feed, retry, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, docs.Close)

	var anon anonymize.Anonymizer = anonymize.Identity
	if cfg.AnonymizerURL != "" {
		anon = anonymize.NewHTTPClient(cfg.AnonymizerURL, cfg.AnonymizerRPS, cfg.AnonymizerTimeout)
	}

	a.svc = game.NewService(docs, feed, anon, notify.New(log, cfg.IsDevelopment()), log)
	a.ids = identity.NewManager(newBindings(client, cfg), log)
	return a, nil
}

// newBindings keeps client-to-player bindings in Redis, expiring after
// BINDING_TTL, or in memory when Redis is not configured.
func newBindings(client *redis.Client, cfg config.Config) identity.Bindings {
	if client == nil {
		return identity.NewMemoryBindings()
	}
	return identity.NewRedisBindings(client, cfg.ChannelPrefix, cfg.BindingTTL)
}
