package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"infrasee/middleware"
	"infrasee/models"
	"infrasee/workflow"
)

// CreateReport handles POST /api/v3/reports
func (h *Handlers) CreateReport(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var sub workflow.Submission
	if err := c.BindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	report, err := h.engine.CreateReport(c.Request.Context(), sub)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	h.audit(c, actor.ID, "report_created", report.Seq, string(report.InfraType))
	h.hub.BroadcastReport(*report)
	c.JSON(http.StatusCreated, report)
}

// GetReport handles GET /api/v3/reports/:seq
func (h *Handlers) GetReport(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	seq, ok := seqParam(c)
	if !ok {
		return
	}

	report, err := h.db.GetReport(c.Request.Context(), seq)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	if report == nil || (report.IsHidden && !actor.IsAdmin) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListReports handles GET /api/v3/reports. Archived reports appear only for
// admins asking for them explicitly.
func (h *Handlers) ListReports(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	includeHidden := actor.IsAdmin && c.DefaultQuery("include_hidden", "false") == "true"
	reports, err := h.db.ListReports(c.Request.Context(), includeHidden)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// ModeratorQueue handles GET /api/v3/queue: everything assigned to the acting
// moderator plus the unassigned reports of their infrastructure type.
func (h *Handlers) ModeratorQueue(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if !actor.IsModerator {
		c.JSON(http.StatusForbidden, gin.H{"error": "moderator role required"})
		return
	}

	reports, err := h.db.ListModeratorQueue(c.Request.Context(), actor.ID, actor.InfraType)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// ReviewQueue handles GET /api/v3/review-queue: the pending resolution
// requests a sub-moderator still has to confirm or reject.
func (h *Handlers) ReviewQueue(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if !actor.IsSubModerator || actor.AssignedModeratorID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "sub-moderator role required"})
		return
	}

	reports, err := h.db.ListReviewQueue(c.Request.Context(), actor.AssignedModeratorID)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// ClaimReport handles POST /api/v3/reports/:seq/claim
func (h *Handlers) ClaimReport(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	seq, ok := seqParam(c)
	if !ok {
		return
	}

	report, err := h.engine.Claim(c.Request.Context(), actor, seq)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	h.audit(c, actor.ID, "report_claimed", seq, "")
	h.hub.BroadcastReport(*report)
	c.JSON(http.StatusOK, report)
}

// StatusRequest is the body of a moderator status change.
type StatusRequest struct {
	Status models.Status `json:"status"`
	Remark string        `json:"remark"`
}

// SetStatus handles POST /api/v3/reports/:seq/status
func (h *Handlers) SetStatus(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	seq, ok := seqParam(c)
	if !ok {
		return
	}

	var req StatusRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	report, err := h.engine.SetStatus(c.Request.Context(), actor, seq, req.Status, req.Remark)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	h.audit(c, actor.ID, "status_"+req.Status.Slug(), seq, req.Remark)
	h.hub.BroadcastReport(*report)
	c.JSON(http.StatusOK, report)
}

// ApproveResolution handles POST /api/v3/reports/:seq/approve
func (h *Handlers) ApproveResolution(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	seq, ok := seqParam(c)
	if !ok {
		return
	}

	report, err := h.engine.Approve(c.Request.Context(), actor, seq)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	h.audit(c, actor.ID, "resolution_approved", seq, "")
	h.hub.BroadcastReport(*report)
	c.JSON(http.StatusOK, report)
}

// RejectRequest is the body of a resolution rejection.
type RejectRequest struct {
	Remark string `json:"remark"`
}

// RejectResolution handles POST /api/v3/reports/:seq/reject
func (h *Handlers) RejectResolution(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	seq, ok := seqParam(c)
	if !ok {
		return
	}

	var req RejectRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	report, err := h.engine.Reject(c.Request.Context(), actor, seq, req.Remark)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	h.audit(c, actor.ID, "resolution_rejected", seq, req.Remark)
	h.hub.BroadcastReport(*report)
	c.JSON(http.StatusOK, report)
}

// SeenRequest toggles an unread flag.
type SeenRequest struct {
	Unread bool `json:"unread"`
}

// MarkSeen handles POST /api/v3/reports/:seq/seen
func (h *Handlers) MarkSeen(c *gin.Context) {
	h.markSeen(c, false)
}

// MarkSubModeratorSeen handles POST /api/v3/reports/:seq/submoderator-seen
func (h *Handlers) MarkSubModeratorSeen(c *gin.Context) {
	h.markSeen(c, true)
}

func (h *Handlers) markSeen(c *gin.Context, subModeratorView bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	seq, ok := seqParam(c)
	if !ok {
		return
	}

	var req SeenRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var err error
	if subModeratorView {
		err = h.engine.MarkSubModeratorSeen(c.Request.Context(), actor, seq, req.Unread)
	} else {
		err = h.engine.MarkSeen(c.Request.Context(), actor, seq, req.Unread)
	}
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"seq": seq, "unread": req.Unread})
}

// HideRequest archives or restores a report.
type HideRequest struct {
	Hidden bool `json:"hidden"`
}

// SetHidden handles POST /api/v3/reports/:seq/hide
func (h *Handlers) SetHidden(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	seq, ok := seqParam(c)
	if !ok {
		return
	}

	var req HideRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if err := h.engine.SetHidden(c.Request.Context(), actor, seq, req.Hidden); err != nil {
		writeWorkflowError(c, err)
		return
	}

	action := "report_restored"
	if req.Hidden {
		action = "report_hidden"
	}
	h.audit(c, actor.ID, action, seq, "")
	c.JSON(http.StatusOK, gin.H{"seq": seq, "hidden": req.Hidden})
}

// DeleteReport handles DELETE /api/v3/reports/:seq
func (h *Handlers) DeleteReport(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	seq, ok := seqParam(c)
	if !ok {
		return
	}

	if err := h.engine.Delete(c.Request.Context(), actor, seq); err != nil {
		writeWorkflowError(c, err)
		return
	}

	h.audit(c, actor.ID, "report_deleted", seq, "")
	c.JSON(http.StatusOK, gin.H{"seq": seq, "deleted": true})
}

func seqParam(c *gin.Context) (int64, bool) {
	seq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil || seq <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'seq' parameter. Must be a positive integer."})
		return 0, false
	}
	return seq, true
}
