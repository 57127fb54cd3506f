package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
)

func TestScoreTopic(t *testing.T) {
	topic := Topic{Name: "Viz", Keywords: []string{"ggplot", "geom_", "aes"}}
	assert.Equal(t, 3, ScoreTopic(topic, "GGPLOT with geom_line and AES"))
	assert.Equal(t, 1, ScoreTopic(topic, "ggplot ggplot ggplot"))
	assert.Zero(t, ScoreTopic(topic, "nothing relevant"))
}

func TestBestTopic_TiesGoToFirstDeclared(t *testing.T) {
	table := []Topic{
		{Name: "First", Keywords: []string{"alpha"}},
		{Name: "Second", Keywords: []string{"beta"}},
	}
	s := domain.SemanticSection{Heading: "alpha and beta"}
	assert.Equal(t, "First", BestTopic(table, s))

	s = domain.SemanticSection{Heading: "beta only", KeyTerms: []string{"alpha beta"}}
	assert.Equal(t, "First", BestTopic(table, s))
}

func TestBestTopic_IgnoresExamples(t *testing.T) {
	table := []Topic{{Name: "Viz", Keywords: []string{"ggplot"}}}
	s := domain.SemanticSection{Examples: []string{"For example, ggplot draws"}}
	assert.Equal(t, GeneralTopic, BestTopic(table, s))
}

func TestGroupByTopic_Order(t *testing.T) {
	sections := []domain.SemanticSection{
		{SectionNumber: 1, Heading: "Unrelated"},
		{SectionNumber: 2, Definitions: []string{"A p-value is the probability under the null"}},
		{SectionNumber: 3, BulletPoints: []string{"geom_point draws points"}},
		{SectionNumber: 4, KeyTerms: []string{"ggplot"}},
	}
	groups := GroupByTopic(sections, CanonicalTopics)
	require.Len(t, groups, 3)

	assert.Equal(t, "Data Visualization with ggplot2", groups[0].Name)
	assert.Len(t, groups[0].Sections, 2)
	assert.Equal(t, "Statistical Inference", groups[1].Name)
	assert.Equal(t, GeneralTopic, groups[2].Name)
	assert.Equal(t, 1, groups[2].Sections[0].SectionNumber)
}

func TestCanonicalTopicsIncludeGgplot(t *testing.T) {
	var found bool
	for _, topic := range CanonicalTopics {
		if topic.Name == "Data Visualization with ggplot2" {
			found = true
			assert.Subset(t, topic.Keywords, []string{"ggplot", "geom_", "aes"})
		}
	}
	assert.True(t, found)
}
