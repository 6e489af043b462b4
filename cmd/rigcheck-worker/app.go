package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/firehall/rigcheck/config"
	"github.com/firehall/rigcheck/internal/broker/kafka"
	"github.com/firehall/rigcheck/internal/cache/rediscache"
	"github.com/firehall/rigcheck/internal/services/fleet"
	"github.com/firehall/rigcheck/internal/services/stockwatch"
	"github.com/firehall/rigcheck/internal/tracker"
	"github.com/firehall/rigcheck/internal/tracker/fake"
	"github.com/firehall/rigcheck/internal/tracker/githubissues"
	"github.com/firehall/rigcheck/internal/tracker/pgissues"
)

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newTracker     func(cfg *config.Config) (tracker.Client, func(), error)
	newProducer    func(cfg *config.Config) stockwatch.Producer
	newRateLimiter func(cfg *config.Config) stockwatch.RateLimiter
	newConsumer    func(cfg *config.Config) kafkaConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newTracker: func(cfg *config.Config) (tracker.Client, func(), error) {
			switch cfg.Tracker.Kind {
			case "github":
				return githubissues.New(cfg.Tracker.BaseURL, cfg.Tracker.Token, cfg.Tracker.Owner, cfg.Tracker.Repo), func() {}, nil
			case "postgres":
				sslMode := cfg.Database.SSLMode
				if sslMode == "" {
					sslMode = "disable"
				}
				connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
					cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
				st, err := pgissues.New(connString, cfg.Tracker.AdminToken)
				if err != nil {
					return nil, nil, err
				}
				return st, st.Close, nil
			default:
				return fake.New(), func() {}, nil
			}
		},
		newProducer: func(cfg *config.Config) stockwatch.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) stockwatch.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newConsumer: func(cfg *config.Config) kafkaConsumer {
			topic := cfg.Kafka.InspectionCompletedTopic
			if topic == "" {
				topic = "inspection.completed"
			}
			group := cfg.RigCheck.KafkaConsumerGroup
			if group == "" {
				group = "rigcheck-worker"
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewConsumer(brokers, topic, group)
		},
	}
}

func RunRigCheckWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("app", "rigcheck-worker").Logger()

	alertTopic := cfg.Kafka.LowStockAlertTopic
	if alertTopic == "" {
		alertTopic = "lowstock.alert"
	}

	trk, closeFn, err := f.newTracker(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)

	reporter := fleet.New(trk, log, fleet.Config{
		Roster:         cfg.RigCheck.Roster,
		DefectLabel:    cfg.RigCheck.DefectLabel,
		ResolvedLabel:  cfg.RigCheck.ResolvedLabel,
		ListPageSize:   cfg.RigCheck.ListPageSize,
		WindowDays:     cfg.RigCheck.LowStockWindowDays,
		MinOccurrences: cfg.RigCheck.LowStockMinOccurrence,
	})

	scanner := stockwatch.New(reporter, producer, rl, log, stockwatch.Config{
		CronSpec:       cfg.RigCheck.StockScanCron,
		Topic:          alertTopic,
		WindowDays:     cfg.RigCheck.LowStockWindowDays,
		ScansPerMinute: int64(cfg.RigCheck.StockScanRatePerMinute),
	})

	// Finished inspections nudge the scanner so a restock alert follows a
	// morning of checks, not tomorrow's cron tick.
	if f.newConsumer != nil {
		consumer := f.newConsumer(cfg)
		defer func() { _ = consumer.Close() }()
		go func() {
			err := consumer.Consume(ctx, func(_, _ []byte) error {
				scanner.Trigger()
				return nil
			})
			if err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("inspection.completed consumer stopped")
			}
		}()
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.RigCheck.WorkerHTTPAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			scanner:     scanner,
			cfg:         cfg,
		})
	}()

	scanErr := make(chan error, 1)
	go func() { scanErr <- scanner.Run(ctx) }()

	select {
	case <-ctx.Done():
		// Give the goroutines a beat to unwind before the deferred closes.
		select {
		case <-scanErr:
		case <-time.After(2 * time.Second):
		}
		return ctx.Err()
	case err := <-httpErr:
		return err
	case err := <-scanErr:
		return err
	}
}
