package v1

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
)

const wsPath = "/ws/notifications/"

type RouterDeps struct {
	JWT         *auth.JWTManager
	Metrics     *metrics.Collector
	Gatherer    prometheus.Gatherer
	Global      *middleware.RateLimiter
	AuthLimiter *middleware.RateLimiter
	CORS        config.CORSConfig
	Log         *zap.Logger
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           cfg.MaxAge,
	}
	if len(cc.AllowOrigins) == 0 {
		cc.AllowOrigins = []string{"http://localhost:3000"}
	}
	if len(cc.AllowMethods) == 0 {
		cc.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cc.AllowHeaders) == 0 {
		cc.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader, "X-Cron-Token"}
	}
	return cc
}

// NewRouter builds the gin engine with the full middleware chain and route table.
func NewRouter(h *Handler, deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(deps.Log),
		middleware.RequestID(deps.Log),
		middleware.Tracing(),
		middleware.AccessLog(deps.Log),
	)
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	if deps.Global != nil {
		r.Use(deps.Global.Middleware())
	}
	r.Use(
		cors.New(corsConfig(deps.CORS)),
		gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedPaths([]string{wsPath})),
	)

	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	// Public routes.
	login := r.Group("/account")
	if deps.AuthLimiter != nil {
		login.Use(deps.AuthLimiter.Middleware())
	}
	login.POST("/login/", h.Login)
	login.POST("/token/refresh/", h.Refresh)
	r.POST("/account/logout/", h.Logout)
	r.POST("/account/invoices/cron-generate/", h.CronGenerate)

	authed := r.Group("")
	authed.Use(middleware.Authenticate(deps.JWT))

	staffOnly := middleware.RequireRoles(h.audit,
		domain.RoleAdministrator, domain.RoleAdministrative, domain.RoleCoordinator)

	authed.GET(wsPath, h.NotificationSocket)

	account := authed.Group("/account")
	{
		account.POST("/password/change/", h.ChangePassword)
		account.POST("/password/strength/", h.PasswordStrength)
		account.POST("/users/:id/unblock/",
			middleware.RequireRoles(h.audit, domain.RoleAdministrator, domain.RoleAdministrative), h.UnblockUser)
		account.GET("/notification-preferences/", h.GetNotificationPreferences)
		account.PUT("/notification-preferences/", h.UpdateNotificationPreferences)
		account.POST("/communication/weekly/", staffOnly, h.WeeklyBatch)

		account.GET("/invoices/", h.ListInvoices)
		account.POST("/invoices/generate/", h.GenerateInvoice)
		account.GET("/invoices/:id/", h.GetInvoice)
		account.POST("/invoices/:id/regenerate/", h.RegenerateInvoice)
		account.POST("/invoices/:id/successor/", h.CreateSuccessor)
		account.GET("/invoices/:id/export/", h.ExportInvoice)
		account.POST("/invoices/:id/contest/", h.ContestInvoice)
		account.GET("/invoices/:id/contests/", h.ListContests)
		account.POST("/contests/:id/resolve/", h.ResolveContest)
	}

	sched := authed.Group("/schedule")
	{
		sched.GET("/calendar/", h.Calendar)
		sched.GET("/availability/", h.Availability)
		sched.POST("/quick-schedule/", h.QuickSchedule)
		sched.POST("/recurring-schedule/", h.RecurringSchedule)
		sched.POST("/check-conflicts/", h.CheckConflicts)
		sched.POST("/bulk-delete/", staffOnly, h.BulkDelete)
		sched.GET("/appointment/:id/", h.GetAppointment)
		sched.PUT("/appointment/:id/", h.UpdateAppointment)
		sched.DELETE("/appointment/:id/", h.DeleteAppointment)
		sched.PATCH("/timeslot/:id/status/", h.UpdateTimeslotStatus)
	}

	tickets := authed.Group("/tickets")
	{
		tickets.POST("/", h.CreateTicket)
		tickets.GET("/", h.ListTickets)
		tickets.GET("/:id/", h.GetTicket)
		tickets.POST("/:id/assign/", h.AssignTicket)
		tickets.PATCH("/:id/status/", h.UpdateTicketStatus)
		tickets.POST("/:id/comments/", h.AddTicketComment)
		tickets.GET("/:id/comments/", h.ListTicketComments)
	}

	demands := authed.Group("/demands")
	{
		demands.POST("/", h.CreateDemand)
		demands.GET("/", h.ListDemands)
		demands.GET("/:id/", h.GetDemand)
		demands.PATCH("/:id/status/", h.TransitionDemand)
		demands.POST("/:id/accept/", h.AcceptDemand)
		demands.POST("/:id/comments/", h.CommentDemand)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("/", h.ListNotifications)
		notifications.GET("/unread-count/", h.UnreadCount)
		notifications.POST("/read-all/", h.MarkAllNotificationsRead)
		notifications.POST("/:id/read/", h.MarkNotificationRead)
	}

	patients := authed.Group("/patients")
	{
		patients.POST("/", staffOnly, h.CreatePatient)
		patients.GET("/:id/", h.GetPatient)
		patients.POST("/:id/family/", staffOnly, h.LinkFamily)
		patients.GET("/:id/prices/", h.ListPriceOverrides)
		patients.POST("/:id/prices/", h.CreatePriceOverride)
		patients.GET("/:id/prescriptions/", h.ListPrescriptions)
	}
	authed.DELETE("/prices/:id/", h.DeletePriceOverride)
	authed.GET("/prescriptions/:id/", h.GetPrescription)
	authed.PATCH("/prescriptions/:id/status/", h.UpdatePrescriptionStatus)

	authed.GET("/services/", h.ListServices)
	authed.POST("/services/", h.CreateService)

	return r
}
