package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"uplevel-orchestrator/internal/models"
	"uplevel-orchestrator/internal/pkg/logger"
)

const dependenciesNotMet = "Dependencies not met"

// WorkflowEngine builds and executes sequential multi-agent workflows.
// Steps run strictly in declaration order, which BuildSequential
// guarantees already satisfies the dependency graph.
type WorkflowEngine struct {
	agentClient *AgentClient
	stateStore  *StateStore
	logger      *logger.Logger
}

// WorkflowOutcome is the synthesized result of one workflow run.
type WorkflowOutcome struct {
	*SynthesizedResult
	AgentsInvolved []models.AgentID
}

func NewWorkflowEngine(agentClient *AgentClient, stateStore *StateStore, log *logger.Logger) *WorkflowEngine {
	return &WorkflowEngine{
		agentClient: agentClient,
		stateStore:  stateStore,
		logger:      log,
	}
}

// BuildSequential parses the query into dependent steps. A query with
// both "first" and "then" is split on "then": the first segment goes to
// the primary agent, each later segment to the other agent, every step
// depending on the one before it. Any other query produces the fixed
// two-step shape.
func (engine *WorkflowEngine) BuildSequential(queryText string, primaryAgent models.AgentID, sessionID string) *models.Workflow {
	queryLower := strings.ToLower(queryText)
	var steps []*models.WorkflowStep

	if strings.Contains(queryLower, "first") && strings.Contains(queryLower, "then") {
		segments := strings.Split(queryLower, "then")

		firstTask := strings.TrimSpace(strings.ReplaceAll(segments[0], "first", ""))
		steps = append(steps, models.NewWorkflowStep(primaryAgent, firstTask))

		secondaryAgent := primaryAgent.Counterpart()
		for _, segment := range segments[1:] {
			step := models.NewWorkflowStep(secondaryAgent, strings.TrimSpace(segment), steps[len(steps)-1].ID)
			steps = append(steps, step)
		}
	} else {
		first := models.NewWorkflowStep(primaryAgent, queryText)
		second := models.NewWorkflowStep(
			primaryAgent.Counterpart(),
			fmt.Sprintf("Based on the previous analysis, provide recommendations for %s", queryText),
			first.ID,
		)
		steps = append(steps, first, second)
	}

	workflow := models.NewWorkflow(queryText, sessionID, steps)

	engine.logger.LogWorkflow(workflow.ID, workflow.SessionID, "workflow_built", 0, nil)
	engine.logger.Debug("Sequential workflow built",
		"workflow_id", workflow.ID,
		"steps", len(steps),
		"primary_agent", string(primaryAgent))

	return workflow
}

// Execute runs the steps in declaration order. A step with an unmet
// dependency is failed with a fixed reason and never dispatched; its
// dependents then fail the same check. No step is retried. The workflow
// is persisted after execution regardless of outcome.
func (engine *WorkflowEngine) Execute(ctx context.Context, workflow *models.Workflow) *WorkflowOutcome {
	startTime := time.Now()
	workflow.Status = models.TaskStatusInProgress

	engine.logger.LogWorkflow(workflow.ID, workflow.SessionID, "workflow_started", 0, nil)

	stepIndex := make(map[string]*models.WorkflowStep, len(workflow.Steps))
	for _, step := range workflow.Steps {
		stepIndex[step.ID] = step
	}

	var agentsInvolved []models.AgentID
	payloads := make(map[models.AgentID]*models.AgentPayload)

	for _, step := range workflow.Steps {
		if !dependenciesMet(step, stepIndex) {
			step.MarkFailed(dependenciesNotMet)
			engine.logger.Warn("Workflow step skipped",
				"workflow_id", workflow.ID,
				"step_id", step.ID,
				"agent", string(step.Agent),
				"reason", dependenciesNotMet)
			continue
		}

		step.MarkInProgress()

		stepContext := make(map[string]interface{})
		for _, previous := range workflow.Steps {
			if previous.Status == models.TaskStatusCompleted && previous.Result != nil {
				stepContext[fmt.Sprintf("previous_%s", previous.Agent)] = previous.Result
			}
		}

		message := models.NewMessage(
			models.AgentOrchestrator,
			step.Agent,
			"workflow_step",
			map[string]interface{}{"query": step.Task},
			stepContext,
		)

		result := engine.agentClient.Send(ctx, step.Agent, message)
		if result.Failed() {
			step.MarkFailed(result.Err.Message)
			engine.logger.Error("Workflow step failed",
				"workflow_id", workflow.ID,
				"step_id", step.ID,
				"agent", string(step.Agent),
				"error", result.Err.Message)
			continue
		}

		step.MarkCompleted(result.Raw)
		payloads[step.Agent] = result.OK

		if !containsAgent(agentsInvolved, step.Agent) {
			agentsInvolved = append(agentsInvolved, step.Agent)
		}
	}

	workflow.Finalize()
	engine.stateStore.StoreWorkflow(ctx, workflow)

	engine.logger.LogWorkflow(workflow.ID, workflow.SessionID,
		fmt.Sprintf("workflow_%s", workflow.Status), time.Since(startTime), nil)

	if len(payloads) == 0 {
		return &WorkflowOutcome{
			SynthesizedResult: &SynthesizedResult{
				Answer:          "Workflow execution failed",
				Data:            map[string]interface{}{},
				Analysis:        map[string]interface{}{"workflow_status": string(workflow.Status)},
				Recommendations: []string{"Review workflow configuration", "Check agent connectivity"},
				NextActions:     []string{"Retry workflow", "Debug failed steps"},
			},
			AgentsInvolved: agentsInvolved,
		}
	}

	return &WorkflowOutcome{
		SynthesizedResult: synthesizeAgentResponses(payloads[models.AgentFinancial], payloads[models.AgentSalesMarketing]),
		AgentsInvolved:    agentsInvolved,
	}
}

func dependenciesMet(step *models.WorkflowStep, stepIndex map[string]*models.WorkflowStep) bool {
	for _, dependencyID := range step.Dependencies {
		dependency, exists := stepIndex[dependencyID]
		if !exists || dependency.Status != models.TaskStatusCompleted {
			return false
		}
	}
	return true
}

func containsAgent(agents []models.AgentID, agent models.AgentID) bool {
	for _, candidate := range agents {
		if candidate == agent {
			return true
		}
	}
	return false
}
