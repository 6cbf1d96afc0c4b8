package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"uplevel-orchestrator/internal/config"
	"uplevel-orchestrator/internal/models"
	"uplevel-orchestrator/internal/services"
)

// fakeAgent serves the agent HTTP contract for tests: POST /query and
// GET /health. Each received query body is recorded for assertions.
type fakeAgent struct {
	server *httptest.Server

	reply      map[string]interface{}
	statusCode int
	rawBody    string

	mu       sync.Mutex
	requests []map[string]interface{}
}

func (agent *fakeAgent) recordRequest(body map[string]interface{}) {
	agent.mu.Lock()
	defer agent.mu.Unlock()
	agent.requests = append(agent.requests, body)
}

func newFakeAgent(t *testing.T, reply map[string]interface{}) *fakeAgent {
	t.Helper()

	agent := &fakeAgent{reply: reply, statusCode: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		body := make(map[string]interface{})
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Fake agent received invalid JSON: %v", err)
		}
		agent.recordRequest(body)

		if agent.statusCode != http.StatusOK {
			w.WriteHeader(agent.statusCode)
			w.Write([]byte(agent.rawBody))
			return
		}
		if agent.rawBody != "" {
			w.Write([]byte(agent.rawBody))
			return
		}
		json.NewEncoder(w).Encode(agent.reply)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	agent.server = httptest.NewServer(mux)
	t.Cleanup(agent.server.Close)
	return agent
}

func newTestAgentClient(t *testing.T, financialURL, salesURL string) *services.AgentClient {
	t.Helper()

	return services.NewAgentClient(config.AgentsConfig{
		FinancialURL:      financialURL,
		SalesMarketingURL: salesURL,
		RequestTimeout:    5 * time.Second,
		HealthTimeout:     2 * time.Second,
	}, newTestLogger(t))
}

func queryMessage(agent models.AgentID, query string) *models.Message {
	return models.NewMessage(
		models.AgentOrchestrator,
		agent,
		"query",
		map[string]interface{}{"query": query},
		map[string]interface{}{},
	)
}

func TestSendParsesAnswer(t *testing.T) {
	agent := newFakeAgent(t, map[string]interface{}{
		"answer": "Revenue is up 12%",
		"data":   map[string]interface{}{"total_revenue": 125000.0},
	})
	client := newTestAgentClient(t, agent.server.URL, agent.server.URL)

	result := client.Send(context.Background(), models.AgentFinancial, queryMessage(models.AgentFinancial, "show revenue"))

	if result.Failed() {
		t.Fatalf("Expected success, got error %+v", result.Err)
	}
	if result.OK.Answer != "Revenue is up 12%" {
		t.Errorf("Unexpected answer: %q", result.OK.Answer)
	}
	if result.Raw["answer"] != "Revenue is up 12%" {
		t.Errorf("Raw reply should be kept, got %v", result.Raw)
	}
}

func TestSendParsesResponseKey(t *testing.T) {
	agent := newFakeAgent(t, map[string]interface{}{"response": "Campaign launched"})
	client := newTestAgentClient(t, agent.server.URL, agent.server.URL)

	result := client.Send(context.Background(), models.AgentSalesMarketing, queryMessage(models.AgentSalesMarketing, "launch campaign"))

	if result.Failed() {
		t.Fatalf("Expected success, got error %+v", result.Err)
	}
	if result.OK.Answer != "Campaign launched" {
		t.Errorf("Unexpected answer: %q", result.OK.Answer)
	}
}

func TestSendFinancialPayloadShape(t *testing.T) {
	agent := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	client := newTestAgentClient(t, agent.server.URL, agent.server.URL)

	client.Send(context.Background(), models.AgentFinancial, queryMessage(models.AgentFinancial, "generate p&l"))

	if len(agent.requests) != 1 {
		t.Fatalf("Expected one request, got %d", len(agent.requests))
	}
	request := agent.requests[0]
	if request["query"] != "generate p&l" {
		t.Errorf("Unexpected query: %v", request["query"])
	}
	if request["period"] != "current_month" {
		t.Errorf("Expected default period, got %v", request["period"])
	}
	if _, exists := request["context"]; !exists {
		t.Error("Expected context field in financial payload")
	}
	if _, exists := request["agent_type"]; exists {
		t.Error("Financial payload should not carry agent_type")
	}
}

func TestSendSalesPayloadShape(t *testing.T) {
	agent := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	client := newTestAgentClient(t, agent.server.URL, agent.server.URL)

	client.Send(context.Background(), models.AgentSalesMarketing, queryMessage(models.AgentSalesMarketing, "review leads"))

	request := agent.requests[0]
	if request["agent_type"] != "general" {
		t.Errorf("Expected default agent_type, got %v", request["agent_type"])
	}
	if _, exists := request["period"]; exists {
		t.Error("Sales payload should not carry period")
	}
}

func TestSendUnknownAgent(t *testing.T) {
	agent := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	client := newTestAgentClient(t, agent.server.URL, agent.server.URL)

	result := client.Send(context.Background(), models.AgentOrchestrator, queryMessage(models.AgentOrchestrator, "loop"))

	if !result.Failed() {
		t.Fatal("Expected failure for unknown agent")
	}
	if result.Err.Message != "Agent orchestrator not found" {
		t.Errorf("Unexpected error message: %q", result.Err.Message)
	}
}

func TestSendNon200Status(t *testing.T) {
	agent := newFakeAgent(t, nil)
	agent.statusCode = http.StatusServiceUnavailable
	agent.rawBody = "overloaded"
	client := newTestAgentClient(t, agent.server.URL, agent.server.URL)

	result := client.Send(context.Background(), models.AgentFinancial, queryMessage(models.AgentFinancial, "show revenue"))

	if !result.Failed() {
		t.Fatal("Expected failure for non-200 reply")
	}
	if result.Err.Message != "Agent financial_intelligence returned status 503" {
		t.Errorf("Unexpected error message: %q", result.Err.Message)
	}
	if result.Err.Details != "overloaded" {
		t.Errorf("Expected body as details, got %q", result.Err.Details)
	}
}

func TestSendUnreachableAgent(t *testing.T) {
	client := newTestAgentClient(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	result := client.Send(context.Background(), models.AgentFinancial, queryMessage(models.AgentFinancial, "show revenue"))

	if !result.Failed() {
		t.Fatal("Expected failure for unreachable agent")
	}
	if !strings.HasPrefix(result.Err.Message, "Failed to communicate with financial_intelligence") {
		t.Errorf("Unexpected error message: %q", result.Err.Message)
	}
}

func TestSendMalformedReply(t *testing.T) {
	agent := newFakeAgent(t, nil)
	agent.rawBody = "not json at all"
	client := newTestAgentClient(t, agent.server.URL, agent.server.URL)

	result := client.Send(context.Background(), models.AgentFinancial, queryMessage(models.AgentFinancial, "show revenue"))

	if !result.Failed() {
		t.Fatal("Expected failure for malformed reply")
	}
	if !strings.Contains(result.Err.Message, "malformed reply") {
		t.Errorf("Unexpected error message: %q", result.Err.Message)
	}
}

func TestSendCollaborativeKind(t *testing.T) {
	agent := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	client := newTestAgentClient(t, agent.server.URL, agent.server.URL)

	result := client.SendCollaborative(context.Background(), "analyze revenue and leads", models.AgentSalesMarketing, map[string]interface{}{"collaboration": true})

	if result.Failed() {
		t.Fatalf("Expected success, got %+v", result.Err)
	}
	request := agent.requests[0]
	forwarded, ok := request["context"].(map[string]interface{})
	if !ok || forwarded["collaboration"] != true {
		t.Errorf("Expected collaboration context forwarded, got %v", request["context"])
	}
}

func TestProbeHealthHealthy(t *testing.T) {
	agent := newFakeAgent(t, map[string]interface{}{"answer": "ok"})
	client := newTestAgentClient(t, agent.server.URL, agent.server.URL)

	health := client.ProbeHealth(context.Background(), models.AgentFinancial)

	if health.Status != "healthy" {
		t.Errorf("Expected healthy, got %q (%s)", health.Status, health.Error)
	}
	if health.Endpoint != agent.server.URL {
		t.Errorf("Unexpected endpoint: %q", health.Endpoint)
	}
}

func TestProbeHealthUnreachable(t *testing.T) {
	client := newTestAgentClient(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	health := client.ProbeHealth(context.Background(), models.AgentFinancial)

	if health.Status != "unreachable" {
		t.Errorf("Expected unreachable, got %q", health.Status)
	}
	if health.Error == "" {
		t.Error("Expected probe error to be reported")
	}
}
