package services

import (
	"math"
	"sort"
	"strings"

	"uplevel-orchestrator/internal/models"
	"uplevel-orchestrator/internal/pkg/logger"
)

// RoutingDecision is the classifier's verdict for one query.
// PrimaryAgent is nil for collaborative routing.
type RoutingDecision struct {
	Class        models.RoutingClass
	PrimaryAgent *models.AgentID
	Confidence   float64
}

// IntentClassifier composes two strategies by fixed priority: keyword
// rules first, a TF-IDF similarity lookup as fallback, then a static
// default. Classify never fails.
type IntentClassifier struct {
	rules      *ruleEvaluator
	similarity *similarityEvaluator
	logger     *logger.Logger
}

func NewIntentClassifier(log *logger.Logger) *IntentClassifier {
	classifier := &IntentClassifier{
		rules:      newRuleEvaluator(),
		similarity: newSimilarityEvaluator(intentCorpus()),
		logger:     log,
	}

	log.Info("Intent Classifier Initialized Successfully",
		"corpus_size", len(classifier.similarity.labels),
		"feature_count", len(classifier.similarity.vocabulary))

	return classifier
}

func (classifier *IntentClassifier) Classify(queryText string) RoutingDecision {
	queryLower := strings.ToLower(queryText)

	if decision, matched := classifier.rules.Evaluate(queryLower); matched {
		return decision
	}

	if decision, matched := classifier.similarity.Evaluate(queryLower); matched {
		return decision
	}

	return defaultDecision()
}

func defaultDecision() RoutingDecision {
	return RoutingDecision{
		Class:        models.RoutingSingleAgent,
		PrimaryAgent: agentRef(models.AgentFinancial),
		Confidence:   0.5,
	}
}

// ruleEvaluator applies the keyword heuristics in priority order:
// sequential cue, collaborative cue, single-agent disjoint match.
type ruleEvaluator struct{}

func newRuleEvaluator() *ruleEvaluator {
	return &ruleEvaluator{}
}

func (rules *ruleEvaluator) Evaluate(queryLower string) (RoutingDecision, bool) {
	if containsAny(queryLower, sequentialCues) {
		return RoutingDecision{
			Class:        models.RoutingSequential,
			PrimaryAgent: agentRef(rules.sequentialPrimary(queryLower)),
			Confidence:   0.9,
		}, true
	}

	hasConjunction := containsAny(queryLower, conjunctionCues)
	hasFinancial := containsAny(queryLower, financialKeywords)
	hasSales := containsAny(queryLower, salesKeywordsBroad)

	if hasConjunction && hasFinancial && hasSales {
		return RoutingDecision{
			Class:      models.RoutingCollaborative,
			Confidence: 0.85,
		}, true
	}

	if hasFinancial && !hasSales {
		return RoutingDecision{
			Class:        models.RoutingSingleAgent,
			PrimaryAgent: agentRef(models.AgentFinancial),
			Confidence:   0.8,
		}, true
	}

	if hasSales && !hasFinancial {
		return RoutingDecision{
			Class:        models.RoutingSingleAgent,
			PrimaryAgent: agentRef(models.AgentSalesMarketing),
			Confidence:   0.8,
		}, true
	}

	return RoutingDecision{}, false
}

// sequentialPrimary picks the agent whose keyword appears earliest in
// the query. Financial wins ties, including the case where neither
// keyword set matches and both positions sit at the sentinel.
func (rules *ruleEvaluator) sequentialPrimary(queryLower string) models.AgentID {
	financialPos := earliestKeywordIndex(queryLower, financialKeywords)
	salesPos := earliestKeywordIndex(queryLower, salesKeywords)

	if salesPos < financialPos {
		return models.AgentSalesMarketing
	}
	return models.AgentFinancial
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func earliestKeywordIndex(text string, keywords []string) int {
	earliest := math.MaxInt
	for _, keyword := range keywords {
		if index := strings.Index(text, keyword); index >= 0 && index < earliest {
			earliest = index
		}
	}
	return earliest
}

// similarityEvaluator encodes the query as a TF-IDF vector over the
// labeled corpus (unigrams and bigrams, stop words removed, capped
// vocabulary) and returns the best cosine match when it is positive.
type similarityEvaluator struct {
	vocabulary map[string]int
	idf        []float64
	vectors    []map[int]float64
	labels     []intentExample
}

const maxVocabularyFeatures = 500

func newSimilarityEvaluator(corpus []intentExample) *similarityEvaluator {
	evaluator := &similarityEvaluator{
		vocabulary: make(map[string]int),
		labels:     corpus,
	}

	documents := make([][]string, len(corpus))
	termDocFreq := make(map[string]int)
	termTotal := make(map[string]int)

	for i, example := range corpus {
		terms := extractTerms(example.phrase)
		documents[i] = terms

		seen := make(map[string]bool)
		for _, term := range terms {
			termTotal[term]++
			if !seen[term] {
				termDocFreq[term]++
				seen[term] = true
			}
		}
	}

	evaluator.buildVocabulary(termTotal)

	documentCount := len(corpus)
	evaluator.idf = make([]float64, len(evaluator.vocabulary))
	for term, index := range evaluator.vocabulary {
		evaluator.idf[index] = math.Log(float64(1+documentCount)/float64(1+termDocFreq[term])) + 1
	}

	evaluator.vectors = make([]map[int]float64, len(documents))
	for i, terms := range documents {
		evaluator.vectors[i] = evaluator.vectorize(terms)
	}

	return evaluator
}

// buildVocabulary keeps the most frequent terms when the corpus yields
// more than the feature cap, ties broken alphabetically.
func (evaluator *similarityEvaluator) buildVocabulary(termTotal map[string]int) {
	terms := make([]string, 0, len(termTotal))
	for term := range termTotal {
		terms = append(terms, term)
	}

	sort.Slice(terms, func(i, j int) bool {
		if termTotal[terms[i]] != termTotal[terms[j]] {
			return termTotal[terms[i]] > termTotal[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > maxVocabularyFeatures {
		terms = terms[:maxVocabularyFeatures]
	}

	sort.Strings(terms)
	for index, term := range terms {
		evaluator.vocabulary[term] = index
	}
}

func (evaluator *similarityEvaluator) Evaluate(queryLower string) (RoutingDecision, bool) {
	queryVector := evaluator.vectorize(extractTerms(queryLower))
	if len(queryVector) == 0 {
		return RoutingDecision{}, false
	}

	bestSimilarity := 0.0
	bestIndex := -1

	for i, documentVector := range evaluator.vectors {
		similarity := dotProduct(queryVector, documentVector)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			bestIndex = i
		}
	}

	if bestIndex < 0 {
		return RoutingDecision{}, false
	}

	label := evaluator.labels[bestIndex]
	return RoutingDecision{
		Class:        label.class,
		PrimaryAgent: label.agent,
		Confidence:   bestSimilarity,
	}, true
}

// vectorize produces an L2-normalized sparse TF-IDF vector; cosine
// similarity reduces to a dot product.
func (evaluator *similarityEvaluator) vectorize(terms []string) map[int]float64 {
	counts := make(map[int]float64)
	for _, term := range terms {
		if index, exists := evaluator.vocabulary[term]; exists {
			counts[index]++
		}
	}

	norm := 0.0
	for index, count := range counts {
		weighted := count * evaluator.idf[index]
		counts[index] = weighted
		norm += weighted * weighted
	}

	if norm == 0 {
		return map[int]float64{}
	}

	norm = math.Sqrt(norm)
	for index := range counts {
		counts[index] /= norm
	}

	return counts
}

func dotProduct(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}

	product := 0.0
	for index, value := range a {
		product += value * b[index]
	}
	return product
}

// extractTerms lowercases, tokenizes, removes stop words and
// single-character tokens, and emits unigrams plus bigrams.
func extractTerms(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() >= 2 {
			token := current.String()
			if !englishStopWords[token] {
				tokens = append(tokens, token)
			}
		}
		current.Reset()
	}

	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	terms := make([]string, 0, len(tokens)*2)
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}

	return terms
}
