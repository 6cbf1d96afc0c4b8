package services_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"uplevel-orchestrator/internal/models"
	"uplevel-orchestrator/internal/services"
)

func newTestWorkflowEngine(t *testing.T, financial, sales *fakeAgent) *services.WorkflowEngine {
	t.Helper()

	client := newTestAgentClient(t, financial.server.URL, sales.server.URL)
	return services.NewWorkflowEngine(client, newFallbackStore(t), newTestLogger(t))
}

func TestBuildSequentialSplitsOnThen(t *testing.T) {
	financial := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	sales := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	engine := newTestWorkflowEngine(t, financial, sales)

	workflow := engine.BuildSequential(
		"First analyze the budget then plan the next campaign",
		models.AgentFinancial,
		"session-1",
	)

	if len(workflow.Steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(workflow.Steps))
	}

	first, second := workflow.Steps[0], workflow.Steps[1]
	if first.Agent != models.AgentFinancial {
		t.Errorf("First step should go to the primary agent, got %s", first.Agent)
	}
	if first.Task != "analyze the budget" {
		t.Errorf("Unexpected first task: %q", first.Task)
	}
	if second.Agent != models.AgentSalesMarketing {
		t.Errorf("Second step should go to the counterpart, got %s", second.Agent)
	}
	if second.Task != "plan the next campaign" {
		t.Errorf("Unexpected second task: %q", second.Task)
	}
	if len(second.Dependencies) != 1 || second.Dependencies[0] != first.ID {
		t.Errorf("Second step should depend on the first, got %v", second.Dependencies)
	}
	if workflow.Status != models.TaskStatusPending {
		t.Errorf("New workflow should be pending, got %s", workflow.Status)
	}
}

func TestBuildSequentialChainsMultipleThens(t *testing.T) {
	financial := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	sales := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	engine := newTestWorkflowEngine(t, financial, sales)

	workflow := engine.BuildSequential(
		"First review revenue then assess leads then report back",
		models.AgentFinancial,
		"session-1",
	)

	if len(workflow.Steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(workflow.Steps))
	}
	third := workflow.Steps[2]
	if len(third.Dependencies) != 1 || third.Dependencies[0] != workflow.Steps[1].ID {
		t.Errorf("Each step should depend on the previous one, got %v", third.Dependencies)
	}
}

func TestBuildSequentialDefaultShape(t *testing.T) {
	financial := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	sales := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	engine := newTestWorkflowEngine(t, financial, sales)

	queryText := "Prepare the quarterly review after that brief the team"
	workflow := engine.BuildSequential(queryText, models.AgentSalesMarketing, "session-1")

	if len(workflow.Steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(workflow.Steps))
	}

	first, second := workflow.Steps[0], workflow.Steps[1]
	if first.Agent != models.AgentSalesMarketing {
		t.Errorf("First step should go to the primary agent, got %s", first.Agent)
	}
	if first.Task != queryText {
		t.Errorf("First task should carry the full query, got %q", first.Task)
	}
	if second.Agent != models.AgentFinancial {
		t.Errorf("Second step should go to the counterpart, got %s", second.Agent)
	}
	if !strings.HasPrefix(second.Task, "Based on the previous analysis, provide recommendations for ") {
		t.Errorf("Unexpected second task: %q", second.Task)
	}
	if len(second.Dependencies) != 1 || second.Dependencies[0] != first.ID {
		t.Errorf("Second step should depend on the first, got %v", second.Dependencies)
	}
}

func TestExecuteCompletesAllSteps(t *testing.T) {
	financial := newFakeAgent(t, map[string]interface{}{
		"answer": "Budget reviewed",
		"data":   map[string]interface{}{"total_revenue": 125000.0},
	})
	sales := newFakeAgent(t, map[string]interface{}{
		"answer": "Campaign planned",
		"data":   map[string]interface{}{"total_campaigns": 2.0},
	})
	engine := newTestWorkflowEngine(t, financial, sales)

	workflow := engine.BuildSequential("First review the budget then plan a campaign", models.AgentFinancial, "session-1")
	outcome := engine.Execute(context.Background(), workflow)

	if workflow.Status != models.TaskStatusCompleted {
		t.Errorf("Expected completed workflow, got %s", workflow.Status)
	}
	for _, step := range workflow.Steps {
		if step.Status != models.TaskStatusCompleted {
			t.Errorf("Step %s not completed: %s", step.ID, step.Status)
		}
	}

	if len(outcome.AgentsInvolved) != 2 {
		t.Errorf("Expected both agents involved, got %v", outcome.AgentsInvolved)
	}
	if !strings.Contains(outcome.Answer, "Budget reviewed") || !strings.Contains(outcome.Answer, "Campaign planned") {
		t.Errorf("Expected both answers synthesized:\n%s", outcome.Answer)
	}
}

func TestExecutePassesPreviousResultsAsContext(t *testing.T) {
	financial := newFakeAgent(t, map[string]interface{}{"answer": "Budget reviewed"})
	sales := newFakeAgent(t, map[string]interface{}{"answer": "Campaign planned"})
	engine := newTestWorkflowEngine(t, financial, sales)

	workflow := engine.BuildSequential("First review the budget then plan a campaign", models.AgentFinancial, "session-1")
	engine.Execute(context.Background(), workflow)

	if len(sales.requests) != 1 {
		t.Fatalf("Expected one sales request, got %d", len(sales.requests))
	}
	forwarded, ok := sales.requests[0]["context"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected context in sales request, got %v", sales.requests[0])
	}
	if _, exists := forwarded["previous_financial_intelligence"]; !exists {
		t.Errorf("Expected previous step result in context, got %v", forwarded)
	}
}

func TestExecuteFailedStepBlocksDependents(t *testing.T) {
	financial := newFakeAgent(t, nil)
	financial.statusCode = http.StatusInternalServerError
	financial.rawBody = "boom"
	sales := newFakeAgent(t, map[string]interface{}{"answer": "Campaign planned"})
	engine := newTestWorkflowEngine(t, financial, sales)

	workflow := engine.BuildSequential("First review the budget then plan a campaign", models.AgentFinancial, "session-1")
	outcome := engine.Execute(context.Background(), workflow)

	first, second := workflow.Steps[0], workflow.Steps[1]
	if first.Status != models.TaskStatusFailed {
		t.Errorf("First step should fail, got %s", first.Status)
	}
	if first.Error != "Agent financial_intelligence returned status 500" {
		t.Errorf("Unexpected first step error: %q", first.Error)
	}
	if second.Status != models.TaskStatusFailed {
		t.Errorf("Dependent step should fail, got %s", second.Status)
	}
	if second.Error != "Dependencies not met" {
		t.Errorf("Unexpected dependent step error: %q", second.Error)
	}
	if len(sales.requests) != 0 {
		t.Errorf("Blocked step must not be dispatched, saw %d requests", len(sales.requests))
	}

	if workflow.Status != models.TaskStatusFailed {
		t.Errorf("Expected failed workflow, got %s", workflow.Status)
	}
	if outcome.Answer != "Workflow execution failed" {
		t.Errorf("Unexpected outcome answer: %q", outcome.Answer)
	}
	if len(outcome.Recommendations) != 2 || outcome.Recommendations[0] != "Review workflow configuration" {
		t.Errorf("Unexpected recommendations: %v", outcome.Recommendations)
	}
	if len(outcome.NextActions) != 2 || outcome.NextActions[0] != "Retry workflow" {
		t.Errorf("Unexpected next actions: %v", outcome.NextActions)
	}
}

func TestExecuteInBandErrorFailsStep(t *testing.T) {
	financial := newFakeAgent(t, nil)
	financial.rawBody = `{"error": "agent overloaded", "details": "queue full"}`
	sales := newFakeAgent(t, map[string]interface{}{"answer": "Campaign planned"})
	engine := newTestWorkflowEngine(t, financial, sales)

	workflow := engine.BuildSequential("First review the budget then plan a campaign", models.AgentFinancial, "session-1")
	engine.Execute(context.Background(), workflow)

	first, second := workflow.Steps[0], workflow.Steps[1]
	if first.Status != models.TaskStatusFailed {
		t.Errorf("A 200 reply with an error body should fail the step, got %s", first.Status)
	}
	if first.Error != "agent overloaded" {
		t.Errorf("Expected the agent's error text, got %q", first.Error)
	}
	if second.Status != models.TaskStatusFailed || second.Error != "Dependencies not met" {
		t.Errorf("Dependent step should stay blocked, got %s (%q)", second.Status, second.Error)
	}
	if len(sales.requests) != 0 {
		t.Errorf("Blocked step must not be dispatched, saw %d requests", len(sales.requests))
	}
	if workflow.Status != models.TaskStatusFailed {
		t.Errorf("Expected failed workflow, got %s", workflow.Status)
	}
}

func TestExecutePersistsWorkflow(t *testing.T) {
	financial := newFakeAgent(t, map[string]interface{}{"answer": "Budget reviewed"})
	sales := newFakeAgent(t, map[string]interface{}{"answer": "Campaign planned"})

	client := newTestAgentClient(t, financial.server.URL, sales.server.URL)
	store := newFallbackStore(t)
	engine := services.NewWorkflowEngine(client, store, newTestLogger(t))

	workflow := engine.BuildSequential("First review the budget then plan a campaign", models.AgentFinancial, "session-1")
	engine.Execute(context.Background(), workflow)

	stored := store.GetWorkflow(context.Background(), workflow.ID)
	if stored == nil {
		t.Fatal("Workflow should be persisted after execution")
	}
	if stored.Status != models.TaskStatusCompleted {
		t.Errorf("Persisted workflow should carry final status, got %s", stored.Status)
	}
}
