// Package app assembles the CareLink server from configuration: storage,
// services, background workers and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/delivery"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	v1 "github.com/dmehra2102/prod-golang-projects/carelink/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/jobs"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/realtime"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/repository"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/cache"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/tracer"
)

// metricsNamespace prefixes every exported series.
const metricsNamespace = "carelink"

type App struct {
	cfg *config.Config
	log *zap.Logger

	DB    *gorm.DB
	redis *redis.Client
	tp    *sdktrace.TracerProvider

	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	JWT      *auth.JWTManager
	Services v1.Services
	Hub      *realtime.Hub
}

// New connects to Postgres (and Redis when enabled) and builds every service.
// Nothing is started; Serve or the one-shot commands do that.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	tp, err := tracer.Init(ctx, cfg.Tracing, cfg.App.Version)
	if err != nil {
		return nil, fmt.Errorf("initialising tracing: %w", err)
	}
	a.tp = tp

	a.DB, err = database.Connect(cfg.Database, log.Named("gorm"))
	if err != nil {
		return nil, err
	}

	var blacklist service.TokenBlacklist
	if cfg.Redis.Enabled {
		a.redis, err = cache.Connect(ctx, cfg.Redis)
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		blacklist = cache.NewTokenBlacklist(a.redis)
	} else {
		log.Warn("redis disabled, refresh token revocation relies on the database only")
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewCollector(metricsNamespace, a.Registry)
	a.JWT = auth.NewJWTManager(cfg.JWT)
	a.Hub = realtime.NewHub(cfg.CORS.AllowedOrigins, log)

	a.buildServices(blacklist)
	return a, nil
}

func (a *App) buildServices(blacklist service.TokenBlacklist) {
	log := a.log
	db := a.DB

	users := repository.NewUserRepository(db)
	patients := repository.NewPatientRepository(db)
	providers := repository.NewProviderRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	schedules := repository.NewScheduleRepository(db)
	prescriptions := repository.NewPrescriptionRepository(db)
	demands := repository.NewDemandRepository(db)
	tx := repository.NewTransactor(db)

	audit := service.NewAuditService(repository.NewAuditRepository(db), a.Metrics, log)
	patientSvc := service.NewPatientService(patients, users, audit, log)
	pricing := service.NewPricingService(catalogRepo, audit, log)
	prescriptionSvc := service.NewPrescriptionService(prescriptions, demands, patientSvc, audit, log)

	notify := service.NewNotificationService(service.NotificationDeps{
		Repo:      repository.NewNotificationRepository(db),
		Users:     users,
		Patients:  patients,
		Providers: providers,
		Schedules: schedules,
		Email:     a.emailSender(),
		SMS:       a.smsSender(),
		Pusher:    a.Hub,
	}, a.cfg.Delivery, a.Metrics, log)

	scheduling := service.NewScheduleService(service.ScheduleDeps{
		Repo:          schedules,
		Providers:     providers,
		Catalog:       catalogRepo,
		Patients:      patientSvc,
		Prescriptions: prescriptionSvc,
		Tx:            tx,
		Events:        notify,
		Audit:         audit,
	}, a.Metrics, log)
	tickets := service.NewTicketService(repository.NewTicketRepository(db), users, notify, audit, log)
	billingSvc := service.NewBillingService(service.BillingDeps{
		Repo:          repository.NewBillingRepository(db),
		Schedules:     schedules,
		Catalog:       catalogRepo,
		Prescriptions: prescriptions,
		Providers:     providers,
		Users:         users,
		Pricing:       pricing,
		Patients:      patientSvc,
		Tickets:       tickets,
		Tx:            tx,
		Events:        notify,
		Audit:         audit,
	}, a.Metrics, log)
	demandSvc := service.NewDemandService(service.DemandDeps{
		Repo:          demands,
		Catalog:       catalogRepo,
		Patients:      patientSvc,
		Prescriptions: prescriptionSvc,
		Tx:            tx,
		Events:        notify,
		Audit:         audit,
	}, log)
	authSvc := service.NewAuthService(users, repository.NewTokenRepository(db), blacklist, a.JWT, audit, a.Metrics, log)

	a.Services = v1.Services{
		Auth:          authSvc,
		Patients:      patientSvc,
		Schedules:     scheduling,
		Billing:       billingSvc,
		Pricing:       pricing,
		Prescriptions: prescriptionSvc,
		Notifications: notify,
		Tickets:       tickets,
		Demands:       demandSvc,
		Audit:         audit,
		Checks:        a.healthChecks(),
	}
}

func (a *App) emailSender() delivery.Sender {
	if a.cfg.Delivery.EmailAPIURL == "" {
		a.log.Warn("EMAIL_API_URL not set, emails are logged only")
		return delivery.NewLogSender(notification.ChannelEmail, a.log)
	}
	return delivery.NewEmailClient(a.cfg.Delivery, a.log)
}

func (a *App) smsSender() delivery.Sender {
	if a.cfg.Delivery.SMSAPIURL == "" {
		a.log.Warn("SMS_API_URL not set, text messages are logged only")
		return delivery.NewLogSender(notification.ChannelSMS, a.log)
	}
	return delivery.NewSMSClient(a.cfg.Delivery, a.log)
}

func (a *App) healthChecks() []v1.HealthCheck {
	checks := []v1.HealthCheck{{
		Name: "postgres",
		Ping: func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if a.redis != nil {
		checks = append(checks, v1.HealthCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		})
	}
	return checks
}

// Serve runs the HTTP server and every background worker until ctx is done,
// then drains them in dependency order.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	global := middleware.NewGlobalLimiter(a.cfg.RateLimit, a.Metrics, a.log)
	authLimiter := middleware.NewAuthLimiter(a.cfg.RateLimit, a.Metrics, a.log)
	defer global.Close()
	defer authLimiter.Close()

	handler := v1.NewHandler(a.Services, a.Hub, a.cfg, a.log)
	router := v1.NewRouter(handler, v1.RouterDeps{
		JWT:         a.JWT,
		Metrics:     a.Metrics,
		Gatherer:    a.Registry,
		Global:      global,
		AuthLimiter: authLimiter,
		CORS:        a.cfg.CORS,
		Log:         a.log,
	})

	srv := &http.Server{
		Addr:         a.cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	var scheduler *jobs.Scheduler
	if a.cfg.Cron.Enabled {
		var err error
		scheduler, err = jobs.NewScheduler(a.cfg.Cron, time.Local, a.Services.Notifications, a.Services.Billing, a.Metrics, a.log)
		if err != nil {
			return err
		}
	}

	a.Services.Notifications.Start(a.cfg.Notification.Workers, a.cfg.Notification.QueueSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		global.Run(gctx)
		return nil
	})
	g.Go(func() error {
		authLimiter.Run(gctx)
		return nil
	})
	if scheduler != nil {
		scheduler.Start()
	}
	g.Go(func() error {
		a.log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("http shutdown", zap.Error(err))
		}
		if scheduler != nil {
			scheduler.Stop(shutdownCtx)
		}
		return nil
	})

	err := g.Wait()
	a.Services.Notifications.Shutdown()
	return err
}

// Close flushes the audit buffer and traces and releases the stores.
func (a *App) Close() {
	if a.Services.Audit != nil {
		a.Services.Audit.Shutdown()
	}
	if a.tp != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tp.Shutdown(ctx); err != nil {
			a.log.Warn("flushing traces", zap.Error(err))
		}
	}
	a.closeStores()
}

func (a *App) closeStores() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
