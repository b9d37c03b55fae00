package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
)

type fakeWeekly struct {
	offset   int
	channels []notification.Channel
	err      error
}

func (f *fakeWeekly) WeeklyBatch(_ context.Context, offset int, channels []notification.Channel) (*service.WeeklyBatchResult, error) {
	f.offset, f.channels = offset, channels
	if f.err != nil {
		return nil, f.err
	}
	return &service.WeeklyBatchResult{WeekStart: "2025-03-16", Recipients: 2, Sent: 4}, nil
}

type fakeInvoices struct {
	calls int
	err   error
}

func (f *fakeInvoices) GenerateMonthly(context.Context) (*service.CronResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &service.CronResult{PeriodStart: "2025-02-01", Generated: []uuid.UUID{uuid.New()}}, nil
}

func newTestScheduler(t *testing.T, cfg config.CronConfig, w *fakeWeekly, inv *fakeInvoices) (*Scheduler, *metrics.Collector) {
	t.Helper()
	m := metrics.NewCollector("carelink_test", prometheus.NewRegistry())
	s, err := NewScheduler(cfg, time.UTC, w, inv, m, zap.NewNop())
	require.NoError(t, err)
	return s, m
}

func TestNewScheduler_DefaultSpecs(t *testing.T) {
	s, _ := newTestScheduler(t, config.CronConfig{}, &fakeWeekly{}, &fakeInvoices{})
	entries := s.cron.Entries()
	require.Len(t, entries, 2)

	from := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC) // Wednesday
	assert.Equal(t, time.Date(2025, 3, 16, 18, 0, 0, 0, time.UTC), entries[0].Schedule.Next(from))
	assert.Equal(t, time.Date(2025, 4, 1, 3, 0, 0, 0, time.UTC), entries[1].Schedule.Next(from))
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler(config.CronConfig{WeeklySpec: "every tuesday"}, time.UTC, &fakeWeekly{}, &fakeInvoices{}, nil, zap.NewNop())
	assert.ErrorContains(t, err, "weekly spec")
}

func TestWeeklyBatch_TargetsNextWeekOnBothChannels(t *testing.T) {
	w := &fakeWeekly{}
	s, m := newTestScheduler(t, config.CronConfig{}, w, &fakeInvoices{})

	s.run(jobWeeklyBatch, s.WeeklyBatch)
	assert.Equal(t, 1, w.offset)
	assert.Equal(t, []notification.Channel{notification.ChannelEmail, notification.ChannelSMS}, w.channels)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues(jobWeeklyBatch, "ok")))
}

func TestRun_CountsFailures(t *testing.T) {
	inv := &fakeInvoices{err: errors.New("db down")}
	s, m := newTestScheduler(t, config.CronConfig{}, &fakeWeekly{}, inv)

	s.run(jobMonthlyInvoices, s.MonthlyInvoices)
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues(jobMonthlyInvoices, "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.JobRuns.WithLabelValues(jobMonthlyInvoices, "ok")))
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler(t, config.CronConfig{}, &fakeWeekly{}, &fakeInvoices{})
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
