package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/testutil"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
)

const (
	testPassword   = "Secret#2025a"
	testCronSecret = "cron-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiHarness struct {
	router    *gin.Engine
	jwt       *auth.JWTManager
	auth      *service.AuthService
	users     *testutil.UserRepo
	patients  *testutil.PatientRepo
	providers *testutil.ProviderRepo
	auditRepo *testutil.AuditRepo
}

func newAPIHarness(t *testing.T, checks ...HealthCheck) *apiHarness {
	t.Helper()
	return buildAPIHarness(t, testutil.NewTokenRepo(), checks)
}

func buildAPIHarness(t *testing.T, tokens domain.TokenRepository, checks []HealthCheck) *apiHarness {
	t.Helper()
	log := zap.NewNop()
	m := metrics.NewCollector("carelink_api_test", prometheus.NewRegistry())

	users := testutil.NewUserRepo()
	patients := testutil.NewPatientRepo()
	providers := testutil.NewProviderRepo()
	catalogRepo := testutil.NewCatalogRepo()
	schedules := testutil.NewScheduleRepo()
	prescriptions := testutil.NewPrescriptionRepo()
	demands := testutil.NewDemandRepo()
	auditRepo := &testutil.AuditRepo{}

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:          "test-secret-that-is-long-enough-for-hs256",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 12 * time.Hour,
			Issuer:          "carelink-test",
		},
		Cookie: config.CookieConfig{Name: "carelink_refresh", Path: "/account/"},
		Cron:   config.CronConfig{Secret: testCronSecret},
	}
	jwt := auth.NewJWTManager(cfg.JWT)

	audit := service.NewAuditService(auditRepo, m, log)
	t.Cleanup(audit.Shutdown)

	patientSvc := service.NewPatientService(patients, users, audit, log)
	pricing := service.NewPricingService(catalogRepo, audit, log)
	prescriptionSvc := service.NewPrescriptionService(prescriptions, demands, patientSvc, audit, log)
	notify := service.NewNotificationService(service.NotificationDeps{
		Repo:      testutil.NewNotificationRepo(),
		Users:     users,
		Patients:  patients,
		Providers: providers,
		Schedules: schedules,
		Email:     testutil.NewSender(notification.ChannelEmail),
		SMS:       testutil.NewSender(notification.ChannelSMS),
		Pusher:    &testutil.Pusher{},
	}, config.DeliveryConfig{DefaultCountryCode: "+32", Timeout: time.Second}, m, log)

	tx := testutil.Tx{}
	scheduling := service.NewScheduleService(service.ScheduleDeps{
		Repo:          schedules,
		Providers:     providers,
		Catalog:       catalogRepo,
		Patients:      patientSvc,
		Prescriptions: prescriptionSvc,
		Tx:            tx,
		Events:        notify,
		Audit:         audit,
	}, m, log)
	tickets := service.NewTicketService(testutil.NewTicketRepo(), users, notify, audit, log)
	billingSvc := service.NewBillingService(service.BillingDeps{
		Repo:          testutil.NewBillingRepo(),
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
	}, m, log)
	demandSvc := service.NewDemandService(service.DemandDeps{
		Repo:          demands,
		Catalog:       catalogRepo,
		Patients:      patientSvc,
		Prescriptions: prescriptionSvc,
		Tx:            tx,
		Events:        notify,
		Audit:         audit,
	}, log)
	authSvc := service.NewAuthService(users, tokens, nil, jwt, audit, m, log)

	h := NewHandler(Services{
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
		Checks:        checks,
	}, nil, cfg, log)

	return &apiHarness{
		router:    NewRouter(h, RouterDeps{JWT: jwt, Log: log}),
		jwt:       jwt,
		auth:      authSvc,
		users:     users,
		patients:  patients,
		providers: providers,
		auditRepo: auditRepo,
	}
}

func (a *apiHarness) token(t *testing.T, u *domain.User, patientID, providerID *uuid.UUID) string {
	t.Helper()
	pair, err := a.jwt.GenerateTokenPair(&domain.Claims{
		UserID:     u.ID,
		Email:      u.Email,
		Role:       u.Role,
		PatientID:  patientID,
		ProviderID: providerID,
	})
	require.NoError(t, err)
	return pair.AccessToken
}

func (a *apiHarness) addUser(role domain.Role, email string) *domain.User {
	return a.users.Add(&domain.User{
		Email:         email,
		FirstName:     "Test",
		LastName:      string(role),
		Role:          role,
		IsActive:      true,
		EmailVerified: true,
	})
}

func (a *apiHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestLogin_AttemptsThenLock(t *testing.T) {
	a := newAPIHarness(t)
	u, err := a.auth.CreateUser(t.Context(), service.CreateUserCommand{
		Email:     "nora@carelink.test",
		Password:  testPassword,
		FirstName: "Nora",
		LastName:  "Nurse",
		Role:      domain.RoleCoordinator,
	})
	require.NoError(t, err)

	creds := map[string]string{"email": u.Email, "password": "wrong"}
	for i := 1; i < domain.SoftLockThreshold; i++ {
		w := a.do(t, http.MethodPost, "/account/login/", "", creds)
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i)
		assert.EqualValues(t, domain.SoftLockThreshold-i, decode(t, w)["attempts_remaining"])
	}

	w := a.do(t, http.MethodPost, "/account/login/", "", creds)
	require.Equal(t, http.StatusLocked, w.Code)
	info := decode(t, w)["lockout_info"].(map[string]any)
	assert.Equal(t, false, info["hard_blocked"])
	assert.Greater(t, info["minutes_remaining"], float64(0))
	assert.NotNil(t, info["locked_until"])

	// The right password is refused while locked.
	w = a.do(t, http.MethodPost, "/account/login/", "", map[string]string{"email": u.Email, "password": testPassword})
	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestLogin_SetsRefreshCookie(t *testing.T) {
	a := newAPIHarness(t)
	_, err := a.auth.CreateUser(t.Context(), service.CreateUserCommand{
		Email:     "nora@carelink.test",
		Password:  testPassword,
		FirstName: "Nora",
		LastName:  "Nurse",
		Role:      domain.RoleCoordinator,
	})
	require.NoError(t, err)

	w := a.do(t, http.MethodPost, "/account/login/", "", map[string]string{
		"email": "nora@carelink.test", "password": testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "carelink_refresh", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(t, "/account/", cookies[0].Path)
	assert.NotEmpty(t, cookies[0].Value)

	data := decode(t, w)["data"].(map[string]any)
	tokens := data["tokens"].(map[string]any)
	assert.NotEmpty(t, tokens["access"])

	// The cookie alone is enough to refresh.
	req := httptest.NewRequest(http.MethodPost, "/account/token/refresh/", nil)
	req.AddCookie(cookies[0])
	rw := httptest.NewRecorder()
	a.router.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
}

type failingTokenRepo struct {
	*testutil.TokenRepo
}

func (failingTokenRepo) Revoke(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("db down")
}

func TestLogout_ClearsCookie(t *testing.T) {
	tests := []struct {
		name   string
		tokens domain.TokenRepository
		status int
	}{
		{"revoked", testutil.NewTokenRepo(), http.StatusOK},
		{"revoke fails", failingTokenRepo{testutil.NewTokenRepo()}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := buildAPIHarness(t, tt.tokens, nil)

			req := httptest.NewRequest(http.MethodPost, "/account/logout/", nil)
			req.AddCookie(&http.Cookie{Name: "carelink_refresh", Value: "stale-refresh-token"})
			w := httptest.NewRecorder()
			a.router.ServeHTTP(w, req)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, "carelink_refresh", cookies[0].Name)
			assert.Empty(t, cookies[0].Value)
			assert.Negative(t, cookies[0].MaxAge)
			assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
		})
	}
}

func TestRefresh_MissingToken(t *testing.T) {
	a := newAPIHarness(t)
	w := a.do(t, http.MethodPost, "/account/token/refresh/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "refresh token is required", decode(t, w)["error"])
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	a := newAPIHarness(t)
	w := a.do(t, http.MethodGet, "/notifications/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForbiddenRoute_IsAudited(t *testing.T) {
	a := newAPIHarness(t)
	u := a.addUser(domain.RolePatient, "pat@carelink.test")

	w := a.do(t, http.MethodPost, "/account/communication/weekly/", a.token(t, u, nil, nil), map[string]any{})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "access denied", decode(t, w)["error"])

	assert.Eventually(t, func() bool {
		for _, e := range a.auditRepo.Entries() {
			if e.Action == domain.ActionUnauthorized && e.UserID != nil && *e.UserID == u.ID {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestQuickSchedule_ConflictReturns409(t *testing.T) {
	a := newAPIHarness(t)
	ctx := t.Context()
	coord := a.addUser(domain.RoleCoordinator, "cora@carelink.test")
	token := a.token(t, coord, nil, nil)

	provUser := a.addUser(domain.RoleProvider, "paul@carelink.test")
	prov := &provider.Provider{UserID: provUser.ID, IsInternal: true}
	require.NoError(t, a.providers.Create(ctx, prov))

	var patientIDs []uuid.UUID
	for _, email := range []string{"alice@carelink.test", "bob@carelink.test"} {
		pu := a.addUser(domain.RolePatient, email)
		p := &patient.Patient{UserID: pu.ID, IsAlive: true}
		require.NoError(t, a.patients.Create(ctx, p))
		patientIDs = append(patientIDs, p.ID)
	}

	first := map[string]any{
		"provider_id": prov.ID,
		"patient_id":  patientIDs[0],
		"date":        "2030-03-11",
		"start_time":  "09:00",
		"end_time":    "10:00",
	}
	w := a.do(t, http.MethodPost, "/schedule/quick-schedule/", token, first)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	second := map[string]any{
		"provider_id": prov.ID,
		"patient_id":  patientIDs[1],
		"date":        "2030-03-11",
		"start_time":  "09:30",
		"end_time":    "10:30",
	}
	w = a.do(t, http.MethodPost, "/schedule/quick-schedule/", token, second)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "Scheduling conflicts detected", body["error"])
	assert.Equal(t, true, body["has_conflicts"])
	assert.Equal(t, true, body["requires_confirmation"])
	conflicts := body["conflicts"].([]any)
	require.NotEmpty(t, conflicts)
	assert.Equal(t, "provider", conflicts[0].(map[string]any)["type"])
	echoed := body["scheduling_data"].(map[string]any)
	assert.Equal(t, "09:30", echoed["start_time"])

	// Forcing the booking goes through.
	second["force_schedule"] = true
	w = a.do(t, http.MethodPost, "/schedule/quick-schedule/", token, second)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestQuickSchedule_ValidationErrors(t *testing.T) {
	a := newAPIHarness(t)
	coord := a.addUser(domain.RoleCoordinator, "cora@carelink.test")

	w := a.do(t, http.MethodPost, "/schedule/quick-schedule/", a.token(t, coord, nil, nil), map[string]any{
		"date":       "11/03/2030",
		"start_time": "9h",
		"end_time":   "10:00",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].([]any)
	assert.Len(t, fields, 3)
}

func TestGetPatient_NotFoundAndBadID(t *testing.T) {
	a := newAPIHarness(t)
	admin := a.addUser(domain.RoleAdministrator, "ada@carelink.test")
	token := a.token(t, admin, nil, nil)

	w := a.do(t, http.MethodGet, "/patients/"+uuid.NewString()+"/", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodGet, "/patients/not-a-uuid/", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCronGenerate_Token(t *testing.T) {
	a := newAPIHarness(t)

	w := a.do(t, http.MethodPost, "/account/invoices/cron-generate/", "", map[string]string{"token": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/account/invoices/cron-generate/", nil)
	req.Header.Set("X-Cron-Token", testCronSecret)
	rw := httptest.NewRecorder()
	a.router.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	data := decode(t, rw)["data"].(map[string]any)
	assert.Empty(t, data["generated"])
}

func TestReadiness(t *testing.T) {
	up := HealthCheck{Name: "postgres", Ping: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	a := newAPIHarness(t, up)
	w := a.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	a = newAPIHarness(t, up, down)
	w = a.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	checks := decode(t, w)["checks"].(map[string]any)
	assert.Equal(t, "up", checks["postgres"])
	assert.Equal(t, "down", checks["redis"])
}

func TestNotifications_EmptyInbox(t *testing.T) {
	a := newAPIHarness(t)
	u := a.addUser(domain.RolePatient, "pat@carelink.test")
	token := a.token(t, u, nil, nil)

	w := a.do(t, http.MethodGet, "/notifications/?unread_only=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["data"])

	w = a.do(t, http.MethodGet, "/notifications/unread-count/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["data"].(map[string]any)["unread_count"])

	w = a.do(t, http.MethodGet, "/ws/notifications/", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
