package summarizer

import (
	"strings"

	"studyrag/internal/domain"
)

// GeneralTopic collects sections that match no canonical topic.
const GeneralTopic = "General Concepts"

// Topic is a canonical topic and the keywords that identify it. Keywords are
// lower case and matched as substrings.
type Topic struct {
	Name     string
	Keywords []string
}

// CanonicalTopics is the ordered topic table. On equal scores the topic
// declared first wins.
var CanonicalTopics = []Topic{
	{Name: "Introduction to R Programming", Keywords: []string{"rstudio", "r programming", "data frame", "vector", "install.packages", "library(", "<-", "cran"}},
	{Name: "Data Wrangling with dplyr", Keywords: []string{"dplyr", "tidyverse", "mutate", "summarise", "summarize", "group_by", "filter(", "select(", "arrange(", "%>%", "tibble"}},
	{Name: "Data Visualization with ggplot2", Keywords: []string{"ggplot", "geom_", "aes", "plot", "chart", "visualization", "visualisation", "scatter", "histogram", "facet"}},
	{Name: "Probability and Distributions", Keywords: []string{"probability", "random variable", "distribution", "bayes", "expected value", "variance", "binomial", "normal curve"}},
	{Name: "Statistical Inference", Keywords: []string{"hypothesis", "p-value", "confidence interval", "t-test", "null", "significance", "sampling", "standard error"}},
	{Name: "Regression and Modeling", Keywords: []string{"regression", "linear model", "lm(", "coefficient", "residual", "predictor", "r-squared", "least squares"}},
	{Name: "Machine Learning", Keywords: []string{"machine learning", "classification", "clustering", "training set", "overfitting", "neural network", "cross-validation", "supervised"}},
	{Name: "Databases and SQL", Keywords: []string{"sql", "database", "primary key", "foreign key", "join", "schema", "normalization", "transaction"}},
	{Name: "Algorithms and Data Structures", Keywords: []string{"algorithm", "complexity", "big-o", "sorting", "recursion", "binary tree", "graph", "hash table"}},
	{Name: "Cell Biology", Keywords: []string{"cell", "dna", "protein", "photosynthesis", "mitochondria", "enzyme", "membrane", "chloroplast"}},
}

// ScoreTopic counts the topic keywords present in text, case-insensitively.
func ScoreTopic(topic Topic, text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range topic.Keywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	return score
}

// MatchText is the text a section is scored on: heading, definitions,
// bullet points and key terms.
func MatchText(s domain.SemanticSection) string {
	parts := make([]string, 0, 1+len(s.Definitions)+len(s.BulletPoints)+len(s.KeyTerms))
	parts = append(parts, s.Heading)
	parts = append(parts, s.Definitions...)
	parts = append(parts, s.BulletPoints...)
	parts = append(parts, s.KeyTerms...)
	return strings.Join(parts, " ")
}

// BestTopic returns the highest scoring topic name, or GeneralTopic when
// nothing scores above zero.
func BestTopic(table []Topic, s domain.SemanticSection) string {
	text := MatchText(s)
	best, bestScore := GeneralTopic, 0
	for _, t := range table {
		if score := ScoreTopic(t, text); score > bestScore {
			best, bestScore = t.Name, score
		}
	}
	return best
}

// GroupByTopic assigns every section to its best topic. Groups follow the
// table order with GeneralTopic last; empty groups are omitted.
func GroupByTopic(sections []domain.SemanticSection, table []Topic) []domain.TopicGroup {
	byName := make(map[string][]domain.SemanticSection)
	for _, s := range sections {
		name := BestTopic(table, s)
		byName[name] = append(byName[name], s)
	}

	groups := make([]domain.TopicGroup, 0, len(byName))
	for _, t := range table {
		if secs, ok := byName[t.Name]; ok {
			groups = append(groups, domain.TopicGroup{Name: t.Name, Sections: secs})
		}
	}
	if secs, ok := byName[GeneralTopic]; ok {
		groups = append(groups, domain.TopicGroup{Name: GeneralTopic, Sections: secs})
	}
	return groups
}
