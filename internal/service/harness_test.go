package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/catalog"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/testutil"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
)

type harness struct {
	users         *testutil.UserRepo
	tokens        *testutil.TokenRepo
	auditRepo     *testutil.AuditRepo
	patients      *testutil.PatientRepo
	providers     *testutil.ProviderRepo
	catalog       *testutil.CatalogRepo
	schedules     *testutil.ScheduleRepo
	prescriptions *testutil.PrescriptionRepo
	demands       *testutil.DemandRepo
	billing       *testutil.BillingRepo
	tickets       *testutil.TicketRepo
	notifications *testutil.NotificationRepo
	email, sms    *testutil.Sender
	pusher        *testutil.Pusher

	metrics        *metrics.Collector
	audit          *AuditService
	patientSvc     *PatientService
	pricing        *PricingService
	prescriptionSv *PrescriptionService
	notify         *NotificationService
	scheduling     *ScheduleService
	billingSvc     *BillingService
	ticketSvc      *TicketService
	demandSvc      *DemandService
	authSvc        *AuthService

	admin       domain.Actor
	coordinator domain.Actor
	seq         int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop()
	h := &harness{
		users:         testutil.NewUserRepo(),
		tokens:        testutil.NewTokenRepo(),
		auditRepo:     &testutil.AuditRepo{},
		patients:      testutil.NewPatientRepo(),
		providers:     testutil.NewProviderRepo(),
		catalog:       testutil.NewCatalogRepo(),
		schedules:     testutil.NewScheduleRepo(),
		prescriptions: testutil.NewPrescriptionRepo(),
		demands:       testutil.NewDemandRepo(),
		billing:       testutil.NewBillingRepo(),
		tickets:       testutil.NewTicketRepo(),
		notifications: testutil.NewNotificationRepo(),
		email:         testutil.NewSender(notification.ChannelEmail),
		sms:           testutil.NewSender(notification.ChannelSMS),
		pusher:        &testutil.Pusher{},
		metrics:       metrics.NewCollector("carelink_test", prometheus.NewRegistry()),
	}

	h.audit = NewAuditService(h.auditRepo, h.metrics, log)
	t.Cleanup(h.audit.Shutdown)

	h.patientSvc = NewPatientService(h.patients, h.users, h.audit, log)
	h.pricing = NewPricingService(h.catalog, h.audit, log)
	h.prescriptionSv = NewPrescriptionService(h.prescriptions, h.demands, h.patientSvc, h.audit, log)
	h.notify = NewNotificationService(NotificationDeps{
		Repo:      h.notifications,
		Users:     h.users,
		Patients:  h.patients,
		Providers: h.providers,
		Schedules: h.schedules,
		Email:     h.email,
		SMS:       h.sms,
		Pusher:    h.pusher,
	}, config.DeliveryConfig{DefaultCountryCode: "+32", Timeout: time.Second}, h.metrics, log)

	tx := testutil.Tx{}
	h.scheduling = NewScheduleService(ScheduleDeps{
		Repo:          h.schedules,
		Providers:     h.providers,
		Catalog:       h.catalog,
		Patients:      h.patientSvc,
		Prescriptions: h.prescriptionSv,
		Tx:            tx,
		Events:        h.notify,
		Audit:         h.audit,
	}, h.metrics, log)
	h.ticketSvc = NewTicketService(h.tickets, h.users, h.notify, h.audit, log)
	h.billingSvc = NewBillingService(BillingDeps{
		Repo:          h.billing,
		Schedules:     h.schedules,
		Catalog:       h.catalog,
		Prescriptions: h.prescriptions,
		Providers:     h.providers,
		Users:         h.users,
		Pricing:       h.pricing,
		Patients:      h.patientSvc,
		Tickets:       h.ticketSvc,
		Tx:            tx,
		Events:        h.notify,
		Audit:         h.audit,
	}, h.metrics, log)
	h.demandSvc = NewDemandService(DemandDeps{
		Repo:          h.demands,
		Catalog:       h.catalog,
		Patients:      h.patientSvc,
		Prescriptions: h.prescriptionSv,
		Tx:            tx,
		Events:        h.notify,
		Audit:         h.audit,
	}, log)
	h.authSvc = NewAuthService(h.users, h.tokens, nil, auth.NewJWTManager(config.JWTConfig{
		Secret:          "test-secret-that-is-long-enough-for-hs256",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 12 * time.Hour,
		Issuer:          "carelink-test",
	}), h.audit, h.metrics, log)

	admin := h.addUser(domain.RoleAdministrator, "Ada")
	h.admin = domain.Actor{UserID: admin.ID, Role: admin.Role}
	coord := h.addUser(domain.RoleCoordinator, "Cora")
	h.coordinator = domain.Actor{UserID: coord.ID, Role: coord.Role}
	return h
}

func (h *harness) addUser(role domain.Role, first string) *domain.User {
	h.seq++
	return h.users.Add(&domain.User{
		Email:         strings.ToLower(fmt.Sprintf("%s%d@carelink.test", first, h.seq)),
		FirstName:     first,
		LastName:      "Test",
		Role:          role,
		IsActive:      true,
		EmailVerified: true,
		Phone:         fmt.Sprintf("04701234%02d", h.seq),
	})
}

func (h *harness) addPatient(t *testing.T, first string) (*patient.Patient, domain.Actor) {
	t.Helper()
	u := h.addUser(domain.RolePatient, first)
	p := &patient.Patient{UserID: u.ID, IsAlive: true}
	require.NoError(t, h.patients.Create(t.Context(), p))
	return p, domain.Actor{UserID: u.ID, Role: u.Role, PatientID: &p.ID}
}

func (h *harness) addProvider(t *testing.T, first string, serviceID *uuid.UUID) (*provider.Provider, domain.Actor) {
	t.Helper()
	u := h.addUser(domain.RoleProvider, first)
	p := &provider.Provider{UserID: u.ID, ServiceID: serviceID, IsInternal: true}
	require.NoError(t, h.providers.Create(t.Context(), p))
	return p, domain.Actor{UserID: u.ID, Role: u.Role, ProviderID: &p.ID}
}

func (h *harness) addService(t *testing.T, name, price string, familyHelp bool) *catalog.Service {
	t.Helper()
	svc := &catalog.Service{Name: name, Price: decimal.RequireFromString(price), IsFamilyHelp: familyHelp}
	require.NoError(t, h.catalog.CreateService(t.Context(), svc))
	return svc
}

func (h *harness) setNow(now time.Time) {
	clock := func() time.Time { return now }
	h.scheduling.now = clock
	h.billingSvc.now = clock
	h.notify.now = clock
	h.demandSvc.now = clock
	h.authSvc.now = clock
	h.prescriptionSv.now = clock
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := schedule.ParseDate(s)
	require.NoError(t, err)
	return d
}

func clock(hour, minute int) schedule.Clock {
	return schedule.NewClock(hour, minute)
}

// book creates one scheduled timeslot, bypassing conflict checks.
func (h *harness) book(t *testing.T, providerID uuid.UUID, patientID *uuid.UUID, day string, start, end schedule.Clock, status schedule.Status, serviceID *uuid.UUID) (*schedule.Schedule, *schedule.TimeSlot) {
	t.Helper()
	ctx := t.Context()
	d := date(t, day)
	sc, err := h.schedules.FindByKey(ctx, d, providerID, patientID)
	if err != nil {
		sc = &schedule.Schedule{ProviderID: providerID, PatientID: patientID, Date: d, CreatedBy: h.admin.UserID}
		require.NoError(t, h.schedules.Create(ctx, sc))
	}
	slot := &schedule.TimeSlot{StartTime: start, EndTime: end, Status: status, ServiceID: serviceID}
	require.NoError(t, h.schedules.CreateTimeslot(ctx, sc.ID, slot))
	return sc, slot
}
