package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"studyrag/internal/domain"
)

func TestValidateCoverage_Full(t *testing.T) {
	sections := []domain.SemanticSection{
		{SectionNumber: 1, Definitions: []string{"a"}, BulletPoints: []string{"b", "c"}},
		{SectionNumber: 2, Heading: "Only a heading"},
		{SectionNumber: 3, Algorithms: []string{"Step 1: x"}},
	}
	groups := GroupByTopic(sections, CanonicalTopics)
	r := ValidateCoverage(3, sections, groups)

	assert.Equal(t, 100.0, r.CoveragePercentage)
	assert.Equal(t, domain.QualityHigh, r.Quality)
	assert.Equal(t, 3, r.SectionsWithContent)
	assert.Equal(t, 1, r.SectionsWithDefinitions)
	assert.Equal(t, 2, r.SectionsWithStructure)
	assert.Equal(t, 4, r.TotalItems)
	assert.Equal(t, len(groups), r.TopicCount)
}

func TestValidateCoverage_Partial(t *testing.T) {
	sections := []domain.SemanticSection{{SectionNumber: 1, BulletPoints: []string{"x"}}}

	r := ValidateCoverage(4, sections, nil)
	assert.Equal(t, 25.0, r.CoveragePercentage)
	assert.Equal(t, domain.QualityLow, r.Quality)

	r = ValidateCoverage(0, nil, nil)
	assert.Zero(t, r.CoveragePercentage)
	assert.Equal(t, domain.QualityLow, r.Quality)
}

func TestQualityLabel(t *testing.T) {
	assert.Equal(t, domain.QualityHigh, QualityLabel(90))
	assert.Equal(t, domain.QualityMedium, QualityLabel(89.9))
	assert.Equal(t, domain.QualityMedium, QualityLabel(70))
	assert.Equal(t, domain.QualityLow, QualityLabel(69.9))
}

func TestCoverageLine(t *testing.T) {
	r := domain.CoverageReport{TotalChunks: 4, SectionsWithContent: 3, CoveragePercentage: 75, Quality: domain.QualityMedium, TopicCount: 2}
	assert.Equal(t, "This guide covers 3 of 4 sections (75.0% coverage, medium quality) across 2 topics.", CoverageLine(r))
}
