package services

import (
	"strings"

	"uplevel-orchestrator/internal/models"
)

// SynthesizedResult is the deterministic merge of both agents' replies.
type SynthesizedResult struct {
	Answer          string
	Data            map[string]interface{}
	Analysis        map[string]interface{}
	Recommendations []string
	NextActions     []string
}

// synthesizeAgentResponses combines the agents' answers under labeled
// headings in a fixed order, financial before sales, regardless of
// reply arrival order. Either payload may be nil.
func synthesizeAgentResponses(financial, sales *models.AgentPayload) *SynthesizedResult {
	var answerParts []string

	if financial != nil && financial.Answer != "" {
		answerParts = append(answerParts, "**Financial Analysis:**\n"+financial.Answer)
	}

	if sales != nil && sales.Answer != "" {
		answerParts = append(answerParts, "**Sales & Marketing Insights:**\n"+sales.Answer)
	}

	if financial != nil && sales != nil && len(financial.Data) > 0 && len(sales.Data) > 0 {
		if crossInsights := generateCrossInsights(financial.Data, sales.Data); crossInsights != "" {
			answerParts = append(answerParts, crossInsights)
		}
	}

	answer := "No responses received from agents."
	if len(answerParts) > 0 {
		answer = strings.Join(answerParts, "\n\n")
	}

	result := &SynthesizedResult{
		Answer:          answer,
		Data:            make(map[string]interface{}),
		Analysis:        make(map[string]interface{}),
		Recommendations: []string{},
		NextActions:     []string{},
	}

	// financial merged first so sales keys override on collision
	for _, payload := range []*models.AgentPayload{financial, sales} {
		if payload == nil {
			continue
		}
		for key, value := range payload.Data {
			result.Data[key] = value
		}
		for key, value := range payload.Analysis {
			result.Analysis[key] = value
		}
		result.Recommendations = append(result.Recommendations, payload.Recommendations...)
		result.NextActions = append(result.NextActions, payload.NextActions...)
	}

	return result
}

// generateCrossInsights correlates financial and sales figures with
// simple threshold rules. Returns "" when no rule fires, so the section
// is omitted rather than rendered as a bare heading.
func generateCrossInsights(financialData, salesData map[string]interface{}) string {
	insights := []string{"**Cross-Functional Insights:**"}

	profitMargin, hasMargin := numberField(financialData, "profit_margin")
	conversionRate, hasConversion := numberField(salesData, "conversion_rate")

	if hasMargin && hasConversion {
		if profitMargin < 20 && conversionRate > 15 {
			insights = append(insights, "• High sales conversion but low profit margins suggest pricing optimization opportunities")
		} else if profitMargin > 30 && conversionRate < 10 {
			insights = append(insights, "• Strong margins but low conversion suggest potential for increased sales investment")
		}
	}

	_, hasRevenue := financialData["total_revenue"]
	_, hasCampaigns := salesData["total_campaigns"]
	if hasRevenue && hasCampaigns {
		insights = append(insights, "• Marketing campaign effectiveness directly correlates with revenue performance")
	}

	if len(insights) == 1 {
		return ""
	}
	return strings.Join(insights, "\n")
}

func numberField(data map[string]interface{}, key string) (float64, bool) {
	switch value := data[key].(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	default:
		return 0, false
	}
}
