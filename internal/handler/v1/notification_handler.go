package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
)

func (h *Handler) ListNotifications(c *gin.Context) {
	q := &notification.ListQuery{
		UnreadOnly: c.Query("unread_only") == "true",
		Limit:      parseQueryInt(c, "limit", 50),
		Offset:     parseQueryInt(c, "offset", 0),
	}
	items, err := h.notifications.List(c.Request.Context(), actor(c).UserID, q)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if items == nil {
		items = []*notification.Notification{}
	}
	respondOK(c, items)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), actor(c).UserID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"unread_count": n})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), actor(c).UserID, id); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse[any]{Message: "notification marked as read"})
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), actor(c).UserID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": n})
}

// NotificationSocket upgrades to a websocket that receives in-app
// notifications for the authenticated user.
func (h *Handler) NotificationSocket(c *gin.Context) {
	if h.hub == nil {
		respondError(c, http.StatusServiceUnavailable, "realtime notifications are disabled")
		return
	}
	h.hub.ServeWS(c.Writer, c.Request, actor(c).UserID)
}
