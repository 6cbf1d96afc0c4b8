package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"uplevel-orchestrator/internal/models"
	"uplevel-orchestrator/internal/pkg/logger"
	"uplevel-orchestrator/internal/services"
)

const serviceVersion = "1.0.0"

// OrchestratorService is the surface the HTTP layer needs from the
// orchestrator.
type OrchestratorService interface {
	ProcessQuery(ctx context.Context, query *models.Query) *models.Response
	SessionContext(ctx context.Context, sessionID string) map[string]interface{}
	Workflow(ctx context.Context, workflowID string) *models.Workflow
	AgentsStatus(ctx context.Context) map[string]services.AgentHealth
	StateStoreFallback() bool
	Uptime() time.Duration
}

type QueryHandler struct {
	orchestrator OrchestratorService
	logger       *logger.Logger
}

func NewQueryHandler(orchestrator OrchestratorService, log *logger.Logger) *QueryHandler {
	return &QueryHandler{
		orchestrator: orchestrator,
		logger:       log,
	}
}

// ProcessQuery handles POST /query. Handled failures still return 200;
// only a malformed body is rejected.
func (handler *QueryHandler) ProcessQuery(c *gin.Context) {
	var query models.Query
	if err := c.ShouldBindJSON(&query); err != nil {
		handler.logger.WithError(err).Warn("Rejected malformed query request")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	response := handler.orchestrator.ProcessQuery(c.Request.Context(), &query)
	c.JSON(http.StatusOK, response)
}

// GetSessionContext handles GET /session/:id/context.
func (handler *QueryHandler) GetSessionContext(c *gin.Context) {
	sessionID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"context":    handler.orchestrator.SessionContext(c.Request.Context(), sessionID),
	})
}

// GetWorkflow handles GET /workflow/:id.
func (handler *QueryHandler) GetWorkflow(c *gin.Context) {
	workflow := handler.orchestrator.Workflow(c.Request.Context(), c.Param("id"))
	if workflow == nil {
		notFound := models.ErrWorkflowNotFound().WithMetadata("workflow_id", c.Param("id"))
		handler.logger.WithError(notFound).Debug("Workflow lookup missed")
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Message})
		return
	}
	c.JSON(http.StatusOK, workflow)
}

// GetAgentsStatus handles GET /agents/status.
func (handler *QueryHandler) GetAgentsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"agents":              handler.orchestrator.AgentsStatus(c.Request.Context()),
		"orchestrator_status": "healthy",
	})
}

// HealthCheck handles GET /health. The state_store field surfaces
// fallback mode so the in-memory fidelity gap is never hidden.
func (handler *QueryHandler) HealthCheck(c *gin.Context) {
	stateStore := "redis"
	if handler.orchestrator.StateStoreFallback() {
		stateStore = "fallback"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"service":        "central_orchestrator",
		"version":        serviceVersion,
		"state_store":    stateStore,
		"uptime_seconds": handler.orchestrator.Uptime().Seconds(),
	})
}
