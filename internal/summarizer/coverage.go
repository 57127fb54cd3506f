package summarizer

import (
	"fmt"

	"studyrag/internal/domain"
)

// Quality thresholds in percent.
const (
	HighCoverage   = 90.0
	MediumCoverage = 70.0
)

// ValidateCoverage describes how much of the document the skeleton captured.
// It never blocks synthesis.
func ValidateCoverage(totalChunks int, sections []domain.SemanticSection, groups []domain.TopicGroup) domain.CoverageReport {
	r := domain.CoverageReport{
		TotalChunks:         totalChunks,
		SectionsWithContent: len(sections),
		TopicCount:          len(groups),
	}
	for _, s := range sections {
		if len(s.Definitions) > 0 {
			r.SectionsWithDefinitions++
		}
		if s.HasStructure() {
			r.SectionsWithStructure++
		}
		r.TotalItems += s.ItemCount()
	}
	if totalChunks > 0 {
		r.CoveragePercentage = float64(r.SectionsWithContent) / float64(totalChunks) * 100
	}
	r.Quality = QualityLabel(r.CoveragePercentage)
	return r
}

// QualityLabel buckets a coverage percentage.
func QualityLabel(pct float64) string {
	switch {
	case pct >= HighCoverage:
		return domain.QualityHigh
	case pct >= MediumCoverage:
		return domain.QualityMedium
	default:
		return domain.QualityLow
	}
}

// CoverageLine is the disclosure sentence placed under the Coverage heading.
func CoverageLine(r domain.CoverageReport) string {
	return fmt.Sprintf("This guide covers %d of %d sections (%.1f%% coverage, %s quality) across %d topics.",
		r.SectionsWithContent, r.TotalChunks, r.CoveragePercentage, r.Quality, r.TopicCount)
}
