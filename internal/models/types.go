package models

import (
	"time"

	"github.com/google/uuid"
)

// RoutingClass is the orchestrator's decision about how many agents a
// query involves and in what order.
type RoutingClass string

const (
	RoutingSingleAgent   RoutingClass = "single_agent"
	RoutingMultiAgent    RoutingClass = "multi_agent"
	RoutingCollaborative RoutingClass = "collaborative"
	RoutingSequential    RoutingClass = "sequential"
)

type AgentID string

const (
	AgentFinancial      AgentID = "financial_intelligence"
	AgentSalesMarketing AgentID = "sales_marketing"
	AgentOrchestrator   AgentID = "orchestrator"
)

// DownstreamAgents lists the agents that can receive messages. The
// orchestrator itself is only ever a sender.
func DownstreamAgents() []AgentID {
	return []AgentID{AgentFinancial, AgentSalesMarketing}
}

// Counterpart returns the other downstream agent.
func (agent AgentID) Counterpart() AgentID {
	if agent == AgentFinancial {
		return AgentSalesMarketing
	}
	return AgentFinancial
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Message is the agent-to-agent envelope created per dispatch. Immutable
// once sent; persisted only indirectly through workflow step results.
type Message struct {
	ID            string                 `json:"message_id"`
	From          AgentID                `json:"from_agent"`
	To            AgentID                `json:"to_agent"`
	Kind          string                 `json:"message_type"`
	Content       map[string]interface{} `json:"content"`
	Context       map[string]interface{} `json:"context"`
	CreatedAt     time.Time              `json:"timestamp"`
	NeedsReply    bool                   `json:"requires_response"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

func NewMessage(from, to AgentID, kind string, content, context map[string]interface{}) *Message {
	if content == nil {
		content = make(map[string]interface{})
	}
	if context == nil {
		context = make(map[string]interface{})
	}

	return &Message{
		ID:         uuid.New().String(),
		From:       from,
		To:         to,
		Kind:       kind,
		Content:    content,
		Context:    context,
		CreatedAt:  time.Now().UTC(),
		NeedsReply: true,
	}
}

type Query struct {
	Query     string                 `json:"query" binding:"required"`
	SessionID string                 `json:"session_id,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
}

// EnsureSessionID generates a session id when the client did not supply
// one. The session id is the join key into the state store.
func (q *Query) EnsureSessionID() {
	if q.SessionID == "" {
		q.SessionID = uuid.New().String()
	}
	if q.Context == nil {
		q.Context = make(map[string]interface{})
	}
}

type Response struct {
	Answer          string                 `json:"answer"`
	RoutingClass    RoutingClass           `json:"routing_class"`
	AgentsInvolved  []AgentID              `json:"agents_involved"`
	SessionID       string                 `json:"session_id"`
	Data            map[string]interface{} `json:"data"`
	Analysis        map[string]interface{} `json:"analysis"`
	Recommendations []string               `json:"recommendations"`
	WorkflowID      string                 `json:"workflow_id,omitempty"`
	NextActions     []string               `json:"next_actions"`
}

func NewResponse(routingClass RoutingClass, sessionID string) *Response {
	return &Response{
		RoutingClass:    routingClass,
		AgentsInvolved:  []AgentID{},
		SessionID:       sessionID,
		Data:            make(map[string]interface{}),
		Analysis:        make(map[string]interface{}),
		Recommendations: []string{},
		NextActions:     []string{},
	}
}

type WorkflowStep struct {
	ID           string                 `json:"step_id"`
	Agent        AgentID                `json:"agent"`
	Task         string                 `json:"task"`
	Dependencies []string               `json:"dependencies"`
	Status       TaskStatus             `json:"status"`
	Result       map[string]interface{} `json:"result,omitempty"`
	Error        string                 `json:"error,omitempty"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

func NewWorkflowStep(agent AgentID, task string, dependencies ...string) *WorkflowStep {
	if dependencies == nil {
		dependencies = []string{}
	}

	return &WorkflowStep{
		ID:           uuid.New().String(),
		Agent:        agent,
		Task:         task,
		Dependencies: dependencies,
		Status:       TaskStatusPending,
	}
}

func (step *WorkflowStep) MarkInProgress() {
	step.Status = TaskStatusInProgress
	now := time.Now().UTC()
	step.StartedAt = &now
}

func (step *WorkflowStep) MarkCompleted(result map[string]interface{}) {
	step.Status = TaskStatusCompleted
	step.Result = result
	now := time.Now().UTC()
	step.CompletedAt = &now
}

func (step *WorkflowStep) MarkFailed(reason string) {
	step.Status = TaskStatusFailed
	step.Error = reason
}

// Workflow is a persisted, ordered set of dependent agent-call steps.
// Step order matches dependency order: later steps depend only on
// earlier ones.
type Workflow struct {
	ID            string          `json:"workflow_id"`
	OriginalQuery string          `json:"query"`
	Steps         []*WorkflowStep `json:"steps"`
	Status        TaskStatus      `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	SessionID     string          `json:"session_id"`
}

func NewWorkflow(query, sessionID string, steps []*WorkflowStep) *Workflow {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	now := time.Now().UTC()
	return &Workflow{
		ID:            uuid.New().String(),
		OriginalQuery: query,
		Steps:         steps,
		Status:        TaskStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		SessionID:     sessionID,
	}
}

// Finalize sets the workflow status from its steps: completed only when
// every step completed, failed otherwise.
func (workflow *Workflow) Finalize() {
	workflow.Status = TaskStatusCompleted
	for _, step := range workflow.Steps {
		if step.Status != TaskStatusCompleted {
			workflow.Status = TaskStatusFailed
			break
		}
	}
	workflow.UpdatedAt = time.Now().UTC()
}

func (workflow *Workflow) IsCompleted() bool {
	return workflow.Status == TaskStatusCompleted
}

func (workflow *Workflow) IsFailed() bool {
	return workflow.Status == TaskStatusFailed
}
