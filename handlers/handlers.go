package handlers

import (
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	"infrasee/database"
	"infrasee/workflow"
	ws "infrasee/websocket"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	engine *workflow.Engine
	db     *database.Database
	hub    *ws.Hub
}

// NewHandlers creates a new handlers instance
func NewHandlers(engine *workflow.Engine, db *database.Database, hub *ws.Hub) *Handlers {
	return &Handlers{
		engine: engine,
		db:     db,
		hub:    hub,
	}
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status           string    `json:"status"`
	Service          string    `json:"service"`
	Timestamp        string    `json:"timestamp"`
	ConnectedClients int       `json:"connected_clients"`
	LastEventAt      time.Time `json:"last_event_at,omitempty"`
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	connectedClients, lastEventAt := h.hub.GetStats()

	c.JSON(http.StatusOK, HealthResponse{
		Status:           "healthy",
		Service:          "infrasee-workflow",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ConnectedClients: connectedClients,
		LastEventAt:      lastEventAt,
	})
}

// WebSocket upgrader
var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The gateway in front of this service owns origin policy.
		return true
	},
}

// Listen upgrades the connection and subscribes it to workflow broadcasts.
func (h *Handlers) Listen(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// writeWorkflowError maps classified workflow failures onto HTTP statuses.
// Anything unclassified is a storage or wiring fault and stays a 500.
func writeWorkflowError(c *gin.Context, err error) {
	kind, ok := workflow.KindOf(err)
	if !ok {
		log.Errorf("Request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var status int
	switch kind {
	case workflow.KindNotFound:
		status = http.StatusNotFound
	case workflow.KindForbidden:
		status = http.StatusForbidden
	case workflow.KindInvalidTransition, workflow.KindDuplicateRejected:
		status = http.StatusConflict
	case workflow.KindValidation:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"error": err.Error(), "kind": kind.String()})
}

// audit appends a moderation-trail row. Best-effort: a failed insert never
// fails the request that triggered it.
func (h *Handlers) audit(c *gin.Context, actorID, action string, reportSeq int64, details string) {
	ev := database.AuditEvent{
		Actor:     actorID,
		Action:    action,
		ReportSeq: reportSeq,
		Details:   details,
		RequestID: uuid.New().String(),
	}
	if err := h.db.InsertAuditEvent(c.Request.Context(), ev); err != nil {
		log.Warnf("Failed to record audit event %s for report %d: %v", action, reportSeq, err)
	}
}
