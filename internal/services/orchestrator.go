package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"uplevel-orchestrator/internal/models"
	"uplevel-orchestrator/internal/pkg/logger"
)

// Orchestrator owns the per-query pipeline: load session context,
// classify, dispatch to a routing strategy, synthesize, persist. It is
// constructed once at startup and handed to the HTTP layer; there are
// no package-level instances.
type Orchestrator struct {
	stateStore     *StateStore
	agentClient    *AgentClient
	classifier     *IntentClassifier
	workflowEngine *WorkflowEngine
	logger         *logger.Logger

	startTime time.Time
}

func NewOrchestrator(
	stateStore *StateStore,
	agentClient *AgentClient,
	classifier *IntentClassifier,
	workflowEngine *WorkflowEngine,
	log *logger.Logger) *Orchestrator {

	orchestrator := &Orchestrator{
		stateStore:     stateStore,
		agentClient:    agentClient,
		classifier:     classifier,
		workflowEngine: workflowEngine,
		logger:         log,
		startTime:      time.Now(),
	}

	log.Info("Orchestrator Initialized Successfully",
		"agents", len(models.DownstreamAgents()),
		"routing_classes", []string{
			string(models.RoutingSingleAgent),
			string(models.RoutingCollaborative),
			string(models.RoutingSequential),
			string(models.RoutingMultiAgent),
		})

	return orchestrator
}

// ProcessQuery never propagates a failure to its caller: every error is
// folded into the Response, and an unexpected panic becomes the
// degraded orchestrator-attributed answer.
func (orchestrator *Orchestrator) ProcessQuery(ctx context.Context, query *models.Query) (response *models.Response) {
	startTime := time.Now()
	query.EnsureSessionID()

	defer func() {
		if recovered := recover(); recovered != nil {
			orchestrator.logger.Error("Query processing failed",
				"session_id", query.SessionID, "panic", fmt.Sprintf("%v", recovered))

			response = models.NewResponse(models.RoutingSingleAgent, query.SessionID)
			response.Answer = fmt.Sprintf("I encountered an error processing your request: %v", recovered)
			response.AgentsInvolved = []models.AgentID{models.AgentOrchestrator}
			response.Analysis = map[string]interface{}{"error": fmt.Sprintf("%v", recovered)}
			response.Recommendations = []string{"Please try again", "Contact support if the issue persists"}
		}
	}()

	orchestrator.logger.Info("Processing orchestrator query",
		"query", query.Query, "session_id", query.SessionID)

	// stored context first, incoming query context wins on collision
	combinedContext := orchestrator.stateStore.GetSessionContext(ctx, query.SessionID)
	for key, value := range query.Context {
		combinedContext[key] = value
	}

	decision := orchestrator.classifier.Classify(query.Query)

	orchestrator.logger.Info("Query classified",
		"routing_class", string(decision.Class),
		"primary_agent", agentName(decision.PrimaryAgent),
		"confidence", decision.Confidence)

	switch decision.Class {
	case models.RoutingSequential:
		response = orchestrator.handleSequential(ctx, query, primaryOrDefault(decision.PrimaryAgent), combinedContext)
	case models.RoutingCollaborative, models.RoutingMultiAgent:
		response = orchestrator.handleCollaborative(ctx, query, combinedContext)
	default:
		response = orchestrator.handleSingleAgent(ctx, query, primaryOrDefault(decision.PrimaryAgent), combinedContext)
	}

	orchestrator.updateSessionContext(ctx, query, combinedContext, response)

	orchestrator.logger.LogWorkflow(response.WorkflowID, query.SessionID, "query_processed", time.Since(startTime), nil)

	return response
}

func (orchestrator *Orchestrator) handleSingleAgent(ctx context.Context, query *models.Query, agent models.AgentID, combinedContext map[string]interface{}) *models.Response {
	message := models.NewMessage(
		models.AgentOrchestrator,
		agent,
		"single_query",
		map[string]interface{}{"query": query.Query},
		combinedContext,
	)

	result := orchestrator.agentClient.Send(ctx, agent, message)
	orchestrator.stateStore.StoreAgentResponse(ctx, query.SessionID, agent, result.Raw)

	response := models.NewResponse(models.RoutingSingleAgent, query.SessionID)
	response.AgentsInvolved = []models.AgentID{agent}

	if result.Failed() {
		response.Answer = fmt.Sprintf("I encountered an issue with the %s agent: %s", agent, result.Err.Message)
		response.Recommendations = []string{"Please try again", "Check agent connectivity"}
		return response
	}

	response.Answer = result.OK.Answer
	if response.Answer == "" {
		response.Answer = "No response received from agent"
	}
	response.Data = result.OK.Data
	response.Analysis = result.OK.Analysis
	response.Recommendations = result.OK.Recommendations
	response.NextActions = result.OK.NextActions

	return response
}

// handleCollaborative fans the query out to both agents without
// ordering between the calls; synthesis orders financial before sales
// regardless of which reply arrived first.
func (orchestrator *Orchestrator) handleCollaborative(ctx context.Context, query *models.Query, combinedContext map[string]interface{}) *models.Response {
	agents := models.DownstreamAgents()
	results := make([]*models.AgentResult, len(agents))

	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent models.AgentID) {
			defer wg.Done()
			results[i] = orchestrator.agentClient.SendCollaborative(ctx, query.Query, agent, combinedContext)
		}(i, agent)
	}
	wg.Wait()

	payloads := make(map[models.AgentID]*models.AgentPayload)
	for i, agent := range agents {
		orchestrator.stateStore.StoreAgentResponse(ctx, query.SessionID, agent, results[i].Raw)
		if !results[i].Failed() {
			payloads[agent] = results[i].OK
		}
	}

	synthesized := synthesizeAgentResponses(payloads[models.AgentFinancial], payloads[models.AgentSalesMarketing])

	response := models.NewResponse(models.RoutingCollaborative, query.SessionID)
	response.AgentsInvolved = agents
	response.Answer = synthesized.Answer
	response.Data = synthesized.Data
	response.Analysis = synthesized.Analysis
	response.Recommendations = synthesized.Recommendations
	response.NextActions = synthesized.NextActions

	return response
}

func (orchestrator *Orchestrator) handleSequential(ctx context.Context, query *models.Query, primaryAgent models.AgentID, combinedContext map[string]interface{}) *models.Response {
	workflow := orchestrator.workflowEngine.BuildSequential(query.Query, primaryAgent, query.SessionID)
	orchestrator.stateStore.StoreWorkflow(ctx, workflow)

	outcome := orchestrator.workflowEngine.Execute(ctx, workflow)

	response := models.NewResponse(models.RoutingSequential, query.SessionID)
	response.WorkflowID = workflow.ID
	if len(outcome.AgentsInvolved) > 0 {
		response.AgentsInvolved = outcome.AgentsInvolved
	}
	response.Answer = outcome.Answer
	response.Data = outcome.Data
	response.Analysis = outcome.Analysis
	response.Recommendations = outcome.Recommendations
	response.NextActions = outcome.NextActions

	return response
}

// updateSessionContext folds the query and response into the stored
// session context. Concurrent queries on the same session race here and
// the later write wins; that is the accepted behavior.
func (orchestrator *Orchestrator) updateSessionContext(ctx context.Context, query *models.Query, combinedContext map[string]interface{}, response *models.Response) {
	updated := make(map[string]interface{}, len(combinedContext)+3)
	for key, value := range combinedContext {
		updated[key] = value
	}
	updated["last_query"] = query.Query
	updated["last_response"] = response
	updated["last_updated"] = time.Now().UTC().Format(time.RFC3339)

	orchestrator.stateStore.StoreSessionContext(ctx, query.SessionID, updated)
}

// SessionContext exposes the stored context for the session endpoint.
func (orchestrator *Orchestrator) SessionContext(ctx context.Context, sessionID string) map[string]interface{} {
	return orchestrator.stateStore.GetSessionContext(ctx, sessionID)
}

// Workflow returns nil when the workflow id is unknown.
func (orchestrator *Orchestrator) Workflow(ctx context.Context, workflowID string) *models.Workflow {
	return orchestrator.stateStore.GetWorkflow(ctx, workflowID)
}

// AgentsStatus probes every downstream agent's health endpoint.
func (orchestrator *Orchestrator) AgentsStatus(ctx context.Context) map[string]AgentHealth {
	status := make(map[string]AgentHealth, len(models.DownstreamAgents()))
	for _, agent := range models.DownstreamAgents() {
		status[string(agent)] = orchestrator.agentClient.ProbeHealth(ctx, agent)
	}
	return status
}

// StateStoreFallback reports whether session state is running on the
// in-process fallback, so the health endpoint can surface the gap.
func (orchestrator *Orchestrator) StateStoreFallback() bool {
	return orchestrator.stateStore.FallbackActive()
}

func (orchestrator *Orchestrator) Uptime() time.Duration {
	return time.Since(orchestrator.startTime)
}

func primaryOrDefault(agent *models.AgentID) models.AgentID {
	if agent == nil {
		return models.AgentFinancial
	}
	return *agent
}

func agentName(agent *models.AgentID) string {
	if agent == nil {
		return "none"
	}
	return string(*agent)
}
