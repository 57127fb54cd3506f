package summarizer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"studyrag/internal/domain"
	"studyrag/internal/llm"
)

// Outline limits.
const (
	MaxOutlineChars     = 6000
	OutlineTruncated    = "\n[... outline truncated ...]"
	maxTopicDefinitions = 5
	maxTopicFormulas    = 5
	maxTopicConcepts    = 8
	maxTopicExamples    = 3
	maxExampleChars     = 150
	maxTopicTerms       = 10
)

// Study guide headings requested from the model and parsed back afterwards.
const (
	HeadingExecutiveSummary = "Executive Summary"
	HeadingMainTopics       = "Main Topics Covered"
	HeadingDetailed         = "Detailed Explanations"
	HeadingTakeaways        = "Key Takeaways"
	HeadingTerms            = "Important Terms"
	HeadingFormulas         = "Key Formulas"
	HeadingQuestions        = "Practice Questions"
	HeadingCoverage         = "Coverage"
)

// SynthesisOptions are the sampling parameters of the study guide call.
var SynthesisOptions = llm.Options{Temperature: 0.4, TopP: 0.9, MaxTokens: 3000, ContextWindow: 8192}

// RenderOutline lists per topic the definitions, formulas, key concepts,
// examples and key terms of its sections, bounded by MaxOutlineChars.
func RenderOutline(groups []domain.TopicGroup) string {
	var b strings.Builder
	for _, g := range groups {
		var defs, formulas, concepts, examples, terms []string
		for _, s := range g.Sections {
			defs = append(defs, s.Definitions...)
			formulas = append(formulas, s.Formulas...)
			concepts = append(concepts, s.BulletPoints...)
			concepts = append(concepts, s.Enumerations...)
			examples = append(examples, s.Examples...)
			terms = append(terms, s.KeyTerms...)
		}

		fmt.Fprintf(&b, "### %s (%d sections)\n", g.Name, len(g.Sections))
		writeList(&b, "Definitions", firstN(defs, maxTopicDefinitions))
		writeList(&b, "Formulas", firstN(formulas, maxTopicFormulas))
		writeList(&b, "Key concepts", firstN(concepts, maxTopicConcepts))
		ex := firstN(examples, maxTopicExamples)
		for i := range ex {
			ex[i] = truncateChars(ex[i], maxExampleChars)
		}
		writeList(&b, "Examples", ex)
		if t := firstN(unique(terms), maxTopicTerms); len(t) > 0 {
			fmt.Fprintf(&b, "Key terms: %s\n", strings.Join(t, ", "))
		}
		b.WriteString("\n")
	}

	outline := strings.TrimRight(b.String(), "\n")
	if len(outline) > MaxOutlineChars {
		outline = truncateBytes(outline, MaxOutlineChars) + OutlineTruncated
	}
	return outline
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(label + ":\n")
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	return append([]string(nil), items...)
}

func unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		k := strings.ToLower(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

func truncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// BuildSynthesisPrompt asks for a study guide with the fixed heading set.
func BuildSynthesisPrompt(filename, outline string, report domain.CoverageReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert tutor writing a study guide for the document %q.\n", filename)
	b.WriteString("The outline below was extracted from the document and grouped by topic. ")
	b.WriteString("Teach every topic in the outline. Do not invent topics that are not in it.\n\n")
	b.WriteString("OUTLINE:\n")
	b.WriteString(outline)
	b.WriteString("\n\nWrite the study guide in Markdown using exactly these sections:\n\n")
	fmt.Fprintf(&b, "## %s\n2-3 sentences describing the whole document.\n\n", HeadingExecutiveSummary)
	fmt.Fprintf(&b, "## %s\nOne bullet per topic, just the topic name.\n\n", HeadingMainTopics)
	fmt.Fprintf(&b, "## %s\nA ### subsection per topic that explains its ideas the way a tutor would.\n\n", HeadingDetailed)
	fmt.Fprintf(&b, "## %s\n5 bullets a student must remember for the exam.\n\n", HeadingTakeaways)
	fmt.Fprintf(&b, "## %s\nBullets in the form \"- **Term**: definition\".\n\n", HeadingTerms)
	fmt.Fprintf(&b, "## %s\nOne bullet per formula from the outline, or \"- None\".\n\n", HeadingFormulas)
	fmt.Fprintf(&b, "## %s\n3-5 numbered questions that test understanding.\n\n", HeadingQuestions)
	fmt.Fprintf(&b, "## %s\n%s\n\n", HeadingCoverage, CoverageLine(report))
	b.WriteString("Study guide:")
	return b.String()
}

// FallbackSummary is the deterministic guide used when synthesis fails. It
// only uses topic names and coverage numbers.
func FallbackSummary(filename string, groups []domain.TopicGroup, report domain.CoverageReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", HeadingExecutiveSummary)
	fmt.Fprintf(&b, "%s was analysed into %d sections grouped under %d topics. ", filename, report.SectionsWithContent, len(groups))
	b.WriteString("A written explanation could not be generated, so this outline lists what the document covers.\n\n")

	fmt.Fprintf(&b, "## %s\n", HeadingMainTopics)
	if len(groups) == 0 {
		b.WriteString("- " + GeneralTopic + "\n")
	}
	for _, g := range groups {
		b.WriteString("- " + g.Name + "\n")
	}

	fmt.Fprintf(&b, "\n## %s\n", HeadingTakeaways)
	for _, g := range groups {
		fmt.Fprintf(&b, "- Review %s (%d sections)\n", g.Name, len(g.Sections))
	}
	b.WriteString("- Use the chat to ask questions about specific topics\n")
	b.WriteString("- Practice with generated flashcards\n")

	fmt.Fprintf(&b, "\n## %s\n%s\n", HeadingCoverage, CoverageLine(report))
	return b.String()
}
