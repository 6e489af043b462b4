// Package stockwatch runs the scheduled low-stock scan. On each tick it
// asks the fleet reporter for the trailing-window restock report and, when
// the report is non-empty, publishes a lowstock.alert event for the supply
// officer's tooling to pick up.
package stockwatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/firehall/rigcheck/internal/broker/messages"
	"github.com/firehall/rigcheck/internal/models"
)

type Reporter interface {
	LowStock(ctx context.Context) ([]models.LowStockEntry, error)
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, event any) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Config struct {
	// CronSpec is a standard 5-field cron expression. The default scans
	// once per morning, before the day shift checks rigs out.
	CronSpec string

	Topic      string
	WindowDays int

	// ScansPerMinute caps tracker reads when triggers pile up.
	ScansPerMinute int64
}

func (c Config) withDefaults() Config {
	if c.CronSpec == "" {
		c.CronSpec = "0 6 * * *"
	}
	if c.Topic == "" {
		c.Topic = "lowstock.alert"
	}
	if c.WindowDays <= 0 {
		c.WindowDays = 30
	}
	if c.ScansPerMinute <= 0 {
		c.ScansPerMinute = 2
	}
	return c
}

type Scanner struct {
	reporter Reporter
	producer Producer
	rl       RateLimiter
	log      zerolog.Logger
	cfg      Config

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastScanUnixNano    atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalScans          atomic.Int64
	totalAlerts         atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(reporter Reporter, producer Producer, rl RateLimiter, log zerolog.Logger, cfg Config) *Scanner {
	return &Scanner{
		reporter:          reporter,
		producer:          producer,
		rl:                rl,
		log:               log,
		cfg:               cfg.withDefaults(),
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// Trigger forces an immediate scan (best-effort, non-blocking). Wired to
// the worker's HTTP trigger endpoint and to inspection.completed events.
func (s *Scanner) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastScanAt    *time.Time `json:"lastScanAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalScans    int64      `json:"totalScans"`
	TotalAlerts   int64      `json:"totalAlerts"`
	TotalErrors   int64      `json:"totalErrors"`
	LastError     string     `json:"lastError,omitempty"`
}

func (s *Scanner) Stats() Stats {
	st := Stats{
		StartedAt:   time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalScans:  s.totalScans.Load(),
		TotalAlerts: s.totalAlerts.Load(),
		TotalErrors: s.totalErrors.Load(),
	}
	if n := s.lastScanUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastScanAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

// Run blocks until the context is cancelled. Scans fire on the cron
// schedule and on Trigger; both funnel into one serial loop so scans never
// overlap.
func (s *Scanner) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.CronSpec, s.Trigger); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Scanner) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	s.lastScanUnixNano.Store(now.UnixNano())

	if s.rl != nil {
		key := fmt.Sprintf("rl:stockwatch:%s", now.Format("200601021504"))
		allowed, n, err := s.rl.Allow(ctx, key, s.cfg.ScansPerMinute, 70*time.Second)
		if err != nil {
			s.log.Warn().Err(err).Msg("rate limiter unavailable, scanning anyway")
		} else if !allowed {
			s.log.Warn().Int64("count", n).Msg("scan rate limit exceeded, skipping")
			return
		}
	}

	s.totalScans.Add(1)
	entries, err := s.reporter.LowStock(ctx)
	if err != nil {
		s.recordError(err)
		s.log.Error().Err(err).Msg("low-stock scan failed")
		return
	}
	if len(entries) == 0 {
		return
	}

	alert := messages.LowStockAlert{
		GeneratedAt: now,
		WindowDays:  s.cfg.WindowDays,
		Entries:     entries,
	}
	if err := s.producer.PublishJSON(ctx, s.cfg.Topic, "fleet", alert); err != nil {
		s.recordError(err)
		s.log.Error().Err(err).Msg("lowstock.alert publish failed")
		return
	}
	s.totalAlerts.Add(1)
}

func (s *Scanner) recordError(err error) {
	s.totalErrors.Add(1)
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}
