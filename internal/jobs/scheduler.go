// Package jobs runs the periodic work of the platform: the weekly schedule
// summary and the monthly invoice run.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
)

const (
	DefaultWeeklySpec  = "0 18 * * 0"
	DefaultMonthlySpec = "0 3 1 * *"

	jobWeeklyBatch     = "weekly_batch"
	jobMonthlyInvoices = "monthly_invoices"

	jobTimeout = 30 * time.Minute
)

type WeeklySender interface {
	WeeklyBatch(ctx context.Context, weekOffset int, channels []notification.Channel) (*service.WeeklyBatchResult, error)
}

type InvoiceGenerator interface {
	GenerateMonthly(ctx context.Context) (*service.CronResult, error)
}

type Scheduler struct {
	cron     *cron.Cron
	weekly   WeeklySender
	invoices InvoiceGenerator
	metrics  *metrics.Collector
	log      *zap.Logger
}

// NewScheduler registers both jobs. Empty specs fall back to Sunday 18:00 for
// the summary of the coming week and 03:00 on the 1st for invoicing.
func NewScheduler(cfg config.CronConfig, loc *time.Location, weekly WeeklySender, invoices InvoiceGenerator, m *metrics.Collector, log *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	log = log.Named("jobs")
	s := &Scheduler{
		weekly:   weekly,
		invoices: invoices,
		metrics:  m,
		log:      log,
	}
	cl := cronLogger{log: log}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	weeklySpec := cfg.WeeklySpec
	if weeklySpec == "" {
		weeklySpec = DefaultWeeklySpec
	}
	if _, err := s.cron.AddFunc(weeklySpec, func() { s.run(jobWeeklyBatch, s.WeeklyBatch) }); err != nil {
		return nil, fmt.Errorf("weekly spec %q: %w", weeklySpec, err)
	}

	monthlySpec := cfg.MonthlySpec
	if monthlySpec == "" {
		monthlySpec = DefaultMonthlySpec
	}
	if _, err := s.cron.AddFunc(monthlySpec, func() { s.run(jobMonthlyInvoices, s.MonthlyInvoices) }); err != nil {
		return nil, fmt.Errorf("monthly spec %q: %w", monthlySpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info("job scheduled", zap.Time("next_run", e.Next))
	}
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("jobs still running at shutdown")
	}
}

// WeeklyBatch sends next week's schedule on every channel.
func (s *Scheduler) WeeklyBatch(ctx context.Context) error {
	channels, _ := service.ParseBatchChannels("both")
	res, err := s.weekly.WeeklyBatch(ctx, 1, channels)
	if err != nil {
		return err
	}
	s.log.Info("weekly batch sent",
		zap.String("week_start", res.WeekStart),
		zap.Int("recipients", res.Recipients),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", len(res.Skipped)),
	)
	return nil
}

func (s *Scheduler) MonthlyInvoices(ctx context.Context) error {
	res, err := s.invoices.GenerateMonthly(ctx)
	if err != nil {
		return err
	}
	s.log.Info("monthly invoices generated",
		zap.String("period_start", res.PeriodStart),
		zap.Int("generated", len(res.Generated)),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return nil
}

func (s *Scheduler) run(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	outcome := "ok"
	if err := fn(ctx); err != nil {
		outcome = "error"
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.JobRuns.WithLabelValues(name, outcome).Inc()
	}
	s.log.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
