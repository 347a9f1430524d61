package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"infrasee/middleware"
)

// ListNotifications handles GET /api/v3/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	unreadOnly := c.DefaultQuery("unread_only", "false") == "true"
	notifications, err := h.db.ListNotifications(c.Request.Context(), actor.ID, unreadOnly)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "count": len(notifications)})
}

// MarkNotificationRead handles POST /api/v3/notifications/:seq/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	seq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil || seq <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'seq' parameter. Must be a positive integer."})
		return
	}

	updated, err := h.db.MarkNotificationRead(c.Request.Context(), seq, actor.ID)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"seq": seq, "read": true})
}

// MarkAllNotificationsRead handles POST /api/v3/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	updated, err := h.db.MarkAllNotificationsRead(c.Request.Context(), actor.ID)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
