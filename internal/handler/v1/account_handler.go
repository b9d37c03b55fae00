package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	User   *domain.User      `json:"user"`
	Tokens *domain.TokenPair `json:"tokens"`
}

// Login authenticates by password and sets the refresh cookie. Failures return
// 401 with the attempts left before a lock, locks return 423.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password, c.ClientIP())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.setRefreshCookie(c, result.Tokens.RefreshToken)
	respondOK(c, loginResponse{User: result.User, Tokens: result.Tokens})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// refreshToken reads the token from the body, falling back to the cookie.
func (h *Handler) refreshToken(c *gin.Context) string {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}
	if token := strings.TrimSpace(req.Refresh); token != "" {
		return token
	}
	token, _ := c.Cookie(h.cookie.Name)
	return token
}

func (h *Handler) Refresh(c *gin.Context) {
	token := h.refreshToken(c)
	if token == "" {
		respondError(c, http.StatusUnauthorized, "refresh token is required")
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.setRefreshCookie(c, pair.RefreshToken)
	respondOK(c, pair)
}

// Logout blacklists the refresh token and clears the cookie. It succeeds even
// when no token is presented; the cookie is cleared on failure too.
func (h *Handler) Logout(c *gin.Context) {
	token := h.refreshToken(c)
	h.clearRefreshCookie(c)
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse[any]{Message: "logged out"})
}

func (h *Handler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, token, h.refreshTTL, h.cookie.Path, h.cookie.Domain, h.cookie.Secure, true)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, "", -1, h.cookie.Path, h.cookie.Domain, h.cookie.Secure, true)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword also revokes every session of the user.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), actor(c).UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, APIResponse[any]{Message: "password changed"})
}

type passwordStrengthRequest struct {
	Password string `json:"password"`
}

func (h *Handler) PasswordStrength(c *gin.Context) {
	var req passwordStrengthRequest
	if !bindJSON(c, &req) {
		return
	}
	respondOK(c, h.auth.PasswordStrength(req.Password))
}

func (h *Handler) UnblockUser(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	user, err := h.auth.Unblock(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, user)
}

// ── Notification preferences ─────────────────────────────────────────────────

func (h *Handler) GetNotificationPreferences(c *gin.Context) {
	pref, err := h.notifications.GetPreference(c.Request.Context(), actor(c).UserID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, pref)
}

type preferencesRequest struct {
	EmailNotifications     *bool                       `json:"email_notifications"`
	SMSNotifications       *bool                       `json:"sms_notifications"`
	InAppNotifications     *bool                       `json:"in_app_notifications"`
	AppointmentReminders   *bool                       `json:"appointment_reminders"`
	BillingNotifications   *bool                       `json:"billing_notifications"`
	MedicalNotifications   *bool                       `json:"medical_notifications"`
	MarketingNotifications *bool                       `json:"marketing_notifications"`
	ScheduleChanges        *bool                       `json:"schedule_changes"`
	NewTickets             *bool                       `json:"new_tickets"`
	Comments               *bool                       `json:"comments"`
	PreferredContactMethod *notification.ContactMethod `json:"preferred_contact_method"`
	PrimaryPhone           *string                     `json:"primary_phone"`
}

func (h *Handler) UpdateNotificationPreferences(c *gin.Context) {
	var req preferencesRequest
	if !bindJSON(c, &req) {
		return
	}
	pref, err := h.notifications.UpdatePreference(c.Request.Context(), actor(c).UserID, service.PreferenceUpdate{
		EmailNotifications:     req.EmailNotifications,
		SMSNotifications:       req.SMSNotifications,
		InAppNotifications:     req.InAppNotifications,
		AppointmentReminders:   req.AppointmentReminders,
		BillingNotifications:   req.BillingNotifications,
		MedicalNotifications:   req.MedicalNotifications,
		MarketingNotifications: req.MarketingNotifications,
		ScheduleChanges:        req.ScheduleChanges,
		NewTickets:             req.NewTickets,
		Comments:               req.Comments,
		PreferredContactMethod: req.PreferredContactMethod,
		PrimaryPhone:           req.PrimaryPhone,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, pref)
}

// ── Weekly communication ─────────────────────────────────────────────────────

type weeklyBatchRequest struct {
	WeekOffset int    `json:"week_offset"`
	Channel    string `json:"channel"`
}

// WeeklyBatch sends each patient and provider their schedule for the target
// week. The route is restricted to administrators and coordinators.
func (h *Handler) WeeklyBatch(c *gin.Context) {
	var req weeklyBatchRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	channels, err := service.ParseBatchChannels(req.Channel)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	result, err := h.notifications.WeeklyBatch(c.Request.Context(), req.WeekOffset, channels)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}
