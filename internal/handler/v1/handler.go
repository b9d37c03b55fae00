package v1

import (
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/realtime"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
)

type Services struct {
	Auth          *service.AuthService
	Patients      *service.PatientService
	Schedules     *service.ScheduleService
	Billing       *service.BillingService
	Pricing       *service.PricingService
	Prescriptions *service.PrescriptionService
	Notifications *service.NotificationService
	Tickets       *service.TicketService
	Demands       *service.DemandService
	Audit         *service.AuditService

	// Checks back the readiness probe.
	Checks []HealthCheck
}

type Handler struct {
	auth          *service.AuthService
	patients      *service.PatientService
	schedules     *service.ScheduleService
	billing       *service.BillingService
	pricing       *service.PricingService
	prescriptions *service.PrescriptionService
	notifications *service.NotificationService
	tickets       *service.TicketService
	demands       *service.DemandService
	audit         *service.AuditService

	checks     []HealthCheck
	hub        *realtime.Hub
	cookie     config.CookieConfig
	refreshTTL int
	cronSecret string
	log        *zap.Logger
}

// NewHandler wires the HTTP layer. hub may be nil when realtime push is disabled.
func NewHandler(svc Services, hub *realtime.Hub, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		auth:          svc.Auth,
		patients:      svc.Patients,
		schedules:     svc.Schedules,
		billing:       svc.Billing,
		pricing:       svc.Pricing,
		prescriptions: svc.Prescriptions,
		notifications: svc.Notifications,
		tickets:       svc.Tickets,
		demands:       svc.Demands,
		audit:         svc.Audit,
		checks:        svc.Checks,
		hub:           hub,
		cookie:        cfg.Cookie,
		refreshTTL:    int(cfg.JWT.RefreshTokenTTL.Seconds()),
		cronSecret:    cfg.Cron.Secret,
		log:           log.Named("http"),
	}
}
