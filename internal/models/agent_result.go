package models

import "fmt"

// AgentPayload is the structured shape of a successful downstream agent
// reply.
type AgentPayload struct {
	Answer          string                 `json:"answer"`
	Data            map[string]interface{} `json:"data"`
	Analysis        map[string]interface{} `json:"analysis"`
	Recommendations []string               `json:"recommendations"`
	NextActions     []string               `json:"next_actions"`
}

// AgentError is the normalized failure shape for a downstream agent
// call: unreachable endpoint, non-200 status, or unknown agent.
type AgentError struct {
	Message string `json:"error"`
	Details string `json:"details"`
}

// AgentResult is the tagged outcome of one agent call. Exactly one of
// OK and Err is set. Raw keeps the decoded reply body for the
// agent-response cache.
type AgentResult struct {
	OK  *AgentPayload
	Err *AgentError
	Raw map[string]interface{}
}

func (result *AgentResult) Failed() bool {
	return result.Err != nil
}

// AgentSuccess normalizes a decoded 200 reply. Agents report handled
// failures in-band: a body carrying an "error" key is a failure no
// matter the status code, so it lands on the Err branch with the raw
// map retained for the cache.
func AgentSuccess(raw map[string]interface{}) *AgentResult {
	if value, exists := raw["error"]; exists {
		message, ok := value.(string)
		if !ok {
			message = fmt.Sprintf("%v", value)
		}
		details, _ := raw["details"].(string)
		return &AgentResult{
			Err: &AgentError{Message: message, Details: details},
			Raw: raw,
		}
	}

	return &AgentResult{
		OK:  payloadFromRaw(raw),
		Raw: raw,
	}
}

func AgentFailure(message, details string) *AgentResult {
	return &AgentResult{
		Err: &AgentError{Message: message, Details: details},
		Raw: map[string]interface{}{"error": message, "details": details},
	}
}

func payloadFromRaw(raw map[string]interface{}) *AgentPayload {
	payload := &AgentPayload{
		Data:            stringMap(raw["data"]),
		Analysis:        stringMap(raw["analysis"]),
		Recommendations: stringSlice(raw["recommendations"]),
		NextActions:     stringSlice(raw["next_actions"]),
	}

	// agents reply with either "answer" or "response"
	if answer, ok := raw["answer"].(string); ok {
		payload.Answer = answer
	} else if answer, ok := raw["response"].(string); ok {
		payload.Answer = answer
	}

	return payload
}

func stringMap(value interface{}) map[string]interface{} {
	if mapped, ok := value.(map[string]interface{}); ok {
		return mapped
	}
	return map[string]interface{}{}
}

func stringSlice(value interface{}) []string {
	switch typed := value.(type) {
	case []string:
		return typed
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			if text, ok := item.(string); ok {
				items = append(items, text)
			} else {
				items = append(items, fmt.Sprintf("%v", item))
			}
		}
		return items
	default:
		return []string{}
	}
}
