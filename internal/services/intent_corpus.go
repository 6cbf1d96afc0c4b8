package services

import "uplevel-orchestrator/internal/models"

// Keyword sets for the rule evaluator. The sequential rule uses the
// narrow sales set; the collaborative and single-agent rules use the
// broad set, which also carries the singular "lead".
var (
	sequentialCues = []string{"first", "then", "after that", "next", "followed by"}

	conjunctionCues = []string{"and", "along with", "combined with", "plus", "also", "both", "analyze and", "with"}

	financialKeywords = []string{"p&l", "profit", "loss", "revenue", "expense", "financial", "cost", "budget"}

	salesKeywords = []string{"sales", "marketing", "leads", "campaign", "pipeline", "conversion"}

	salesKeywordsBroad = []string{"sales", "marketing", "leads", "campaign", "pipeline", "conversion", "lead"}
)

// intentExample is one pre-labeled phrase in the similarity corpus.
type intentExample struct {
	phrase string
	class  models.RoutingClass
	agent  *models.AgentID
}

func intentCorpus() []intentExample {
	financial := agentRef(models.AgentFinancial)
	sales := agentRef(models.AgentSalesMarketing)

	var corpus []intentExample

	financialPhrases := []string{
		"generate p&l statement", "profit and loss report", "financial statement analysis",
		"revenue analysis report", "expense breakdown analysis", "cost analysis detailed",
		"financial forecast planning", "budget variance report", "cash flow statement",
		"profitability analysis", "financial performance metrics", "income statement",
		"balance sheet review", "financial ratios", "expense management", "revenue tracking",
		"profit margin analysis", "financial dashboard", "accounting reports", "tax analysis",
	}
	for _, phrase := range financialPhrases {
		corpus = append(corpus, intentExample{phrase, models.RoutingSingleAgent, financial})
	}

	salesPhrases := []string{
		"lead generation campaign", "marketing campaign strategy", "sales pipeline analysis",
		"email marketing automation", "linkedin prospecting tools", "campaign analytics dashboard",
		"conversion rate optimization", "lead scoring system", "sales performance tracking",
		"marketing roi calculation", "customer acquisition cost", "pipeline management",
		"sales forecasting", "marketing metrics", "customer segmentation", "campaign management",
		"social media marketing", "content marketing", "sales automation", "crm management",
	}
	for _, phrase := range salesPhrases {
		corpus = append(corpus, intentExample{phrase, models.RoutingSingleAgent, sales})
	}

	collaborativePhrases := []string{
		"analyze financial performance and create marketing strategy",
		"revenue analysis with sales recommendations",
		"cost analysis combined with marketing optimization",
		"profit analysis and sales strategy development",
		"financial review and marketing plan",
		"budget analysis with sales forecasting",
		"expense review and sales optimization",
		"comprehensive business performance analysis",
	}
	for _, phrase := range collaborativePhrases {
		corpus = append(corpus, intentExample{phrase, models.RoutingMultiAgent, nil})
	}

	sequentialPhrases := []string{
		"first generate financial report then create sales strategy",
		"show p&l statement then recommend marketing actions",
		"analyze expenses first then optimize sales process",
		"create financial forecast then develop marketing plan",
		"review profitability then suggest sales improvements",
	}
	for _, phrase := range sequentialPhrases {
		corpus = append(corpus, intentExample{phrase, models.RoutingSequential, nil})
	}

	return corpus
}

func agentRef(agent models.AgentID) *models.AgentID {
	return &agent
}

// englishStopWords mirrors the common English stop-word list used when
// vectorizing the corpus.
var englishStopWords = map[string]bool{}

func init() {
	words := []string{
		"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
		"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
		"between", "both", "but", "by", "can", "cannot", "could", "did", "do", "does",
		"doing", "down", "during", "each", "few", "for", "from", "further", "had",
		"has", "have", "having", "he", "her", "here", "hers", "herself", "him",
		"himself", "his", "how", "i", "if", "in", "into", "is", "it", "its", "itself",
		"just", "me", "more", "most", "my", "myself", "no", "nor", "not", "now", "of",
		"off", "on", "once", "only", "or", "other", "our", "ours", "ourselves", "out",
		"over", "own", "same", "she", "should", "so", "some", "such", "than", "that",
		"the", "their", "theirs", "them", "themselves", "then", "there", "these",
		"they", "this", "those", "through", "to", "too", "under", "until", "up",
		"very", "was", "we", "were", "what", "when", "where", "which", "while", "who",
		"whom", "why", "will", "with", "you", "your", "yours", "yourself", "yourselves",
	}
	for _, word := range words {
		englishStopWords[word] = true
	}
}
