package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/firehall/rigcheck/config"
	"github.com/firehall/rigcheck/internal/api/inspectionsapi"
	"github.com/firehall/rigcheck/internal/broker/kafka"
	"github.com/firehall/rigcheck/internal/cache/rediscache"
	"github.com/firehall/rigcheck/internal/release"
	"github.com/firehall/rigcheck/internal/services/fleet"
	"github.com/firehall/rigcheck/internal/services/inspections"
	"github.com/firehall/rigcheck/internal/tracker"
	"github.com/firehall/rigcheck/internal/tracker/fake"
	"github.com/firehall/rigcheck/internal/tracker/githubissues"
	"github.com/firehall/rigcheck/internal/tracker/pgissues"
)

type rigcheckAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   rigcheckAPIOpts
	api    *inspectionsapi.API

	closeTracker  func()
	closeProducer func() error
}

func mustBootstrapRigCheckAPI() *rigcheckAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	httpAddr := cfg.RigCheck.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	log := zerolog.New(os.Stdout).With().Timestamp().Str("app", "rigcheck-api").Logger()

	trk, closeTracker := mustBuildTracker(cfg, log)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	locker := rediscache.NewLocker(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	checklist, err := release.LoadChecklist(cfg.RigCheck.ChecklistPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load checklist: %v", err))
	}

	swaggerJSON, err := os.ReadFile(swaggerPath)
	if err != nil {
		panic(fmt.Sprintf("failed to read swagger file: %v", err))
	}

	inspSvc := inspections.New(trk, producer, locker, log, inspections.Config{
		Roster:         cfg.RigCheck.Roster,
		DefectLabel:    cfg.RigCheck.DefectLabel,
		LogLabel:       cfg.RigCheck.LogLabel,
		ResolvedLabel:  cfg.RigCheck.ResolvedLabel,
		DamagedLabel:   cfg.RigCheck.DamagedLabel,
		ListPageSize:   cfg.RigCheck.ListPageSize,
		Concurrency:    cfg.RigCheck.SubmitConcurrency,
		SubmitLockTTL:  time.Duration(cfg.RigCheck.SubmitLockTTLSeconds) * time.Second,
		CompletedTopic: cfg.Kafka.InspectionCompletedTopic,
		ResolvedTopic:  cfg.Kafka.DefectResolvedTopic,
	})

	fleetSvc := fleet.New(trk, log, fleet.Config{
		Roster:         cfg.RigCheck.Roster,
		DefectLabel:    cfg.RigCheck.DefectLabel,
		ResolvedLabel:  cfg.RigCheck.ResolvedLabel,
		ListPageSize:   cfg.RigCheck.ListPageSize,
		WindowDays:     cfg.RigCheck.LowStockWindowDays,
		MinOccurrences: cfg.RigCheck.LowStockMinOccurrence,
	})

	api := inspectionsapi.New(inspSvc, fleetSvc, checklist, swaggerJSON, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &rigcheckAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: rigcheckAPIOpts{
			httpAddr: httpAddr,
		},
		api:           api,
		closeTracker:  closeTracker,
		closeProducer: producer.Close,
	}
}

// mustBuildTracker selects the tracker backend. The fake keeps everything
// in memory so a bare `kind: fake` config runs end to end on a laptop.
func mustBuildTracker(cfg *config.Config, log zerolog.Logger) (tracker.Client, func()) {
	switch cfg.Tracker.Kind {
	case "github":
		log.Info().Str("owner", cfg.Tracker.Owner).Str("repo", cfg.Tracker.Repo).Msg("using github tracker")
		return githubissues.New(cfg.Tracker.BaseURL, cfg.Tracker.Token, cfg.Tracker.Owner, cfg.Tracker.Repo), func() {}
	case "postgres":
		st := mustOpenPostgresWithRetry(pgConnString(cfg), cfg.Tracker.AdminToken, 60*time.Second)
		log.Info().Str("host", cfg.Database.Host).Msg("using postgres tracker")
		return st, st.Close
	default:
		log.Warn().Str("kind", cfg.Tracker.Kind).Msg("no real tracker configured, using in-memory fake")
		f := fake.New()
		f.AdminCred = cfg.Tracker.AdminToken
		return f, func() {}
	}
}

func pgConnString(cfg *config.Config) string {
	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
}

func mustOpenPostgresWithRetry(connString, adminToken string, wait time.Duration) *pgissues.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgissues.New(connString, adminToken)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *rigcheckAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.closeProducer != nil {
		_ = a.closeProducer()
	}
	if a.closeTracker != nil {
		a.closeTracker()
	}
}

func (a *rigcheckAPIApp) Run() error {
	return runRigCheckAPI(a.ctx, a.opts, a.api)
}
