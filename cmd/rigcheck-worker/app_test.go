package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/firehall/rigcheck/config"
	"github.com/firehall/rigcheck/internal/services/stockwatch"
	"github.com/firehall/rigcheck/internal/tracker"
	"github.com/firehall/rigcheck/internal/tracker/fake"
	"github.com/firehall/rigcheck/internal/tracker/githubissues"
)

type noopProducer struct{}

func (noopProducer) PublishJSON(context.Context, string, string, any) error { return nil }

func TestDefaultWorkerFactories_SelectTracker(t *testing.T) {
	f := defaultWorkerFactories()

	gh, closeFn, err := f.newTracker(&config.Config{
		Tracker: config.TrackerConfig{Kind: "github", Owner: "firehall", Repo: "station4", Token: "x"},
	})
	require.NoError(t, err)
	defer closeFn()
	_, ok := gh.(*githubissues.Client)
	require.True(t, ok)

	fb, closeFn, err := f.newTracker(&config.Config{Tracker: config.TrackerConfig{Kind: ""}})
	require.NoError(t, err)
	defer closeFn()
	_, ok = fb.(*fake.Tracker)
	require.True(t, ok)
}

func TestDefaultWorkerFactories_ProducerAndRateLimiter_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(cfg))
	require.NotNil(t, f.newRateLimiter(cfg))
}

func TestRunRigCheckWorker_ContextCanceled(t *testing.T) {
	calledClose := false

	f := workerFactories{
		newTracker: func(cfg *config.Config) (tracker.Client, func(), error) {
			return fake.New(), func() { calledClose = true }, nil
		},
		newProducer: func(cfg *config.Config) stockwatch.Producer {
			return noopProducer{}
		},
		newRateLimiter: func(cfg *config.Config) stockwatch.RateLimiter {
			return nil
		},
		newConsumer: nil,
	}

	cfg := &config.Config{
		RigCheck: config.RigCheckConfig{
			WorkerHTTPAddr: "127.0.0.1:0",
			Roster:         []string{"Engine 1"},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunRigCheckWorker(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}
