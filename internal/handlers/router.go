package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"uplevel-orchestrator/internal/config"
	"uplevel-orchestrator/internal/pkg/logger"
)

// NewRouter wires the REST surface. Routes mirror the agent contract:
// the orchestrator accepts queries the same way its downstream agents
// do, so the fleet is uniformly probeable.
func NewRouter(orchestrator OrchestratorService, cfg *config.Config, log *logger.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))

	handler := NewQueryHandler(orchestrator, log)

	query := router.Group("/")
	if cfg.RequireAPIKey {
		query.Use(APIKeyAuth(cfg.APIKey, log))
	}
	query.POST("/query", handler.ProcessQuery)

	router.GET("/session/:id/context", handler.GetSessionContext)
	router.GET("/workflow/:id", handler.GetWorkflow)
	router.GET("/agents/status", handler.GetAgentsStatus)
	router.GET("/health", handler.HealthCheck)

	return router
}

// RequestID attaches an X-Request-ID to every request, generating one
// when the client did not send it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		log.Info("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(startTime).Milliseconds(),
			"request_id", c.GetString("request_id"))
	}
}

// APIKeyAuth enforces a bearer token when the deployment requires one.
func APIKeyAuth(apiKey string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authorization, "Bearer ")

		if authorization == "" || token != apiKey {
			log.Warn("Rejected request with missing or invalid API key",
				"path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
			return
		}

		c.Next()
	}
}
