package stockwatch

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/firehall/rigcheck/internal/models"
)

type fakeReporter struct {
	entries []models.LowStockEntry
	err     error
	calls   int
}

func (r *fakeReporter) LowStock(context.Context) ([]models.LowStockEntry, error) {
	r.calls++
	return r.entries, r.err
}

type capturedEvent struct {
	topic string
	event any
}

type fakeProducer struct {
	published []capturedEvent
	err       error
}

func (p *fakeProducer) PublishJSON(_ context.Context, topic, _ string, event any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, capturedEvent{topic: topic, event: event})
	return nil
}

type fakeLimiter struct {
	allowed bool
	err     error
}

func (l *fakeLimiter) Allow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return l.allowed, 1, l.err
}

func TestRunOnce_PublishesAlert(t *testing.T) {
	rep := &fakeReporter{entries: []models.LowStockEntry{
		{Item: "Flashlight", Compartment: "Cab", Apparatus: []string{"Engine 1", "Engine 2"}, Occurrences: 3},
	}}
	prod := &fakeProducer{}
	s := New(rep, prod, nil, zerolog.Nop(), Config{})

	s.runOnce(context.Background())

	require.Len(t, prod.published, 1)
	require.Equal(t, "lowstock.alert", prod.published[0].topic)

	st := s.Stats()
	require.Equal(t, int64(1), st.TotalScans)
	require.Equal(t, int64(1), st.TotalAlerts)
	require.Equal(t, int64(0), st.TotalErrors)
	require.NotNil(t, st.LastScanAt)
}

func TestRunOnce_EmptyReportNoAlert(t *testing.T) {
	prod := &fakeProducer{}
	s := New(&fakeReporter{}, prod, nil, zerolog.Nop(), Config{})

	s.runOnce(context.Background())

	require.Empty(t, prod.published)
	require.Equal(t, int64(1), s.Stats().TotalScans)
	require.Equal(t, int64(0), s.Stats().TotalAlerts)
}

func TestRunOnce_RateLimited(t *testing.T) {
	rep := &fakeReporter{}
	s := New(rep, &fakeProducer{}, &fakeLimiter{allowed: false}, zerolog.Nop(), Config{})

	s.runOnce(context.Background())

	require.Equal(t, 0, rep.calls)
	require.Equal(t, int64(0), s.Stats().TotalScans)
}

func TestRunOnce_LimiterDownScansAnyway(t *testing.T) {
	rep := &fakeReporter{}
	s := New(rep, &fakeProducer{}, &fakeLimiter{err: errors.New("redis down")}, zerolog.Nop(), Config{})

	s.runOnce(context.Background())

	require.Equal(t, 1, rep.calls)
}

func TestRunOnce_ReporterErrorRecorded(t *testing.T) {
	s := New(&fakeReporter{err: errors.New("tracker boom")}, &fakeProducer{}, nil, zerolog.Nop(), Config{})

	s.runOnce(context.Background())

	st := s.Stats()
	require.Equal(t, int64(1), st.TotalErrors)
	require.Equal(t, "tracker boom", st.LastError)
}

func TestRun_TriggerFiresScan(t *testing.T) {
	rep := &fakeReporter{}
	s := New(rep, &fakeProducer{}, nil, zerolog.Nop(), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Trigger()
	require.Eventually(t, func() bool {
		return s.Stats().TotalScans >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.NotNil(t, s.Stats().LastTriggerAt)
}
