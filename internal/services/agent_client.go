package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"uplevel-orchestrator/internal/config"
	"uplevel-orchestrator/internal/models"
	"uplevel-orchestrator/internal/pkg/logger"
)

// AgentClient dispatches messages to the downstream agents over HTTP
// and normalizes every outcome into a tagged AgentResult. Callers never
// see an error value from Send; failure lives in the result.
type AgentClient struct {
	endpoints  map[models.AgentID]string
	httpClient *http.Client
	breakers   map[models.AgentID]*gobreaker.CircuitBreaker
	logger     *logger.Logger

	healthTimeout time.Duration
}

// AgentHealth is one probe result for GET /agents/status.
type AgentHealth struct {
	Status       string  `json:"status"`
	ResponseTime float64 `json:"response_time,omitempty"`
	Error        string  `json:"error,omitempty"`
	Endpoint     string  `json:"endpoint"`
}

func NewAgentClient(cfg config.AgentsConfig, log *logger.Logger) *AgentClient {
	endpoints := map[models.AgentID]string{
		models.AgentFinancial:      cfg.FinancialURL,
		models.AgentSalesMarketing: cfg.SalesMarketingURL,
	}

	breakers := make(map[models.AgentID]*gobreaker.CircuitBreaker, len(endpoints))
	for agent := range endpoints {
		agent := agent
		breakers[agent] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    string(agent),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("Agent circuit breaker state changed",
					"agent", name, "from", from.String(), "to", to.String())
			},
		})
	}

	client := &AgentClient{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		breakers:      breakers,
		logger:        log,
		healthTimeout: cfg.HealthTimeout,
	}

	log.Info("Agent Client Initialized Successfully",
		"financial_endpoint", cfg.FinancialURL,
		"sales_marketing_endpoint", cfg.SalesMarketingURL,
		"request_timeout", cfg.RequestTimeout.String())

	return client
}

func (client *AgentClient) Endpoint(agent models.AgentID) string {
	return client.endpoints[agent]
}

// Send posts a message to the named agent. Unknown agents, transport
// failures, and non-200 replies all normalize into the error branch of
// the result.
func (client *AgentClient) Send(ctx context.Context, agent models.AgentID, message *models.Message) *models.AgentResult {
	startTime := time.Now()

	endpoint, exists := client.endpoints[agent]
	if !exists {
		return models.AgentFailure(
			fmt.Sprintf("Agent %s not found", agent),
			"no endpoint configured")
	}

	requestBody := client.buildRequestBody(agent, message)
	url := endpoint + "/query"

	client.logger.Info("Sending request to agent",
		"agent", string(agent), "url", url, "message_type", message.Kind)

	raw, err := client.breakers[agent].Execute(func() (interface{}, error) {
		return client.exchange(ctx, url, requestBody)
	})

	if err != nil {
		appErr := models.NewExternalError("AGENT_REQUEST_FAILED", "Agent communication failed")
		if errors.Is(err, context.DeadlineExceeded) {
			appErr = models.NewTimeoutError("AGENT_REQUEST_TIMEOUT", "Agent request timed out")
		}

		client.logger.LogService("agent_client", "send", time.Since(startTime), map[string]interface{}{
			"agent": string(agent),
			"url":   url,
		}, appErr.WithCause(err))

		return models.AgentFailure(
			fmt.Sprintf("Failed to communicate with %s", agent),
			err.Error())
	}

	reply := raw.(*agentReply)
	if reply.statusCode != http.StatusOK {
		client.logger.Error("Agent request failed",
			"agent", string(agent),
			"status_code", reply.statusCode,
			"response_text", string(reply.body))

		return models.AgentFailure(
			fmt.Sprintf("Agent %s returned status %d", agent, reply.statusCode),
			string(reply.body))
	}

	decoded := make(map[string]interface{})
	if err := json.Unmarshal(reply.body, &decoded); err != nil {
		return models.AgentFailure(
			fmt.Sprintf("Agent %s returned a malformed reply", agent),
			err.Error())
	}

	client.logger.LogService("agent_client", "send", time.Since(startTime), map[string]interface{}{
		"agent": string(agent),
		"url":   url,
	}, nil)

	return models.AgentSuccess(decoded)
}

// SendCollaborative wraps Send with message kind "collaborative_query".
func (client *AgentClient) SendCollaborative(ctx context.Context, query string, agent models.AgentID, context map[string]interface{}) *models.AgentResult {
	message := models.NewMessage(
		models.AgentOrchestrator,
		agent,
		"collaborative_query",
		map[string]interface{}{"query": query},
		context,
	)
	return client.Send(ctx, agent, message)
}

type agentReply struct {
	statusCode int
	body       []byte
}

// exchange performs the HTTP round trip. A non-200 status is not a
// breaker failure; only transport-level errors trip the breaker.
func (client *AgentClient) exchange(ctx context.Context, url string, requestBody map[string]interface{}) (*agentReply, error) {
	encoded, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	return &agentReply{statusCode: response.StatusCode, body: body}, nil
}

// buildRequestBody shapes the payload each agent expects.
func (client *AgentClient) buildRequestBody(agent models.AgentID, message *models.Message) map[string]interface{} {
	query, _ := message.Content["query"].(string)

	if agent == models.AgentFinancial {
		period, ok := message.Content["period"].(string)
		if !ok || period == "" {
			period = "current_month"
		}
		return map[string]interface{}{
			"query":   query,
			"period":  period,
			"context": message.Context,
		}
	}

	agentType, ok := message.Content["agent_type"].(string)
	if !ok || agentType == "" {
		agentType = "general"
	}
	return map[string]interface{}{
		"query":      query,
		"context":    message.Context,
		"agent_type": agentType,
	}
}

// ProbeHealth calls the agent's own health endpoint with a short
// timeout and maps the outcome to healthy/unhealthy/unreachable.
func (client *AgentClient) ProbeHealth(ctx context.Context, agent models.AgentID) AgentHealth {
	endpoint, exists := client.endpoints[agent]
	if !exists {
		return AgentHealth{Status: "unreachable", Error: fmt.Sprintf("Agent %s not found", agent)}
	}

	probeCtx, cancel := context.WithTimeout(ctx, client.healthTimeout)
	defer cancel()

	startTime := time.Now()

	request, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		return AgentHealth{Status: "unreachable", Error: err.Error(), Endpoint: endpoint}
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return AgentHealth{Status: "unreachable", Error: err.Error(), Endpoint: endpoint}
	}
	defer response.Body.Close()
	io.Copy(io.Discard, response.Body)

	status := "healthy"
	if response.StatusCode != http.StatusOK {
		status = "unhealthy"
	}

	return AgentHealth{
		Status:       status,
		ResponseTime: time.Since(startTime).Seconds(),
		Endpoint:     endpoint,
	}
}
