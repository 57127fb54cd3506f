package summarizer

import (
	"regexp"
	"strings"
)

// Cleanup drops consecutive duplicate lines and bullets that carry only a
// page, slide or unit marker. Heading lines are always kept.
func Cleanup(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	prev, first := "", true
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if metadataBullet.MatchString(trimmed) {
				continue
			}
			if !first && trimmed == prev {
				continue
			}
		}
		out = append(out, strings.TrimRight(line, " \t"))
		prev, first = trimmed, false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Item limits of the sub-extractors.
const (
	MaxKeyPoints   = 5
	MaxTopics      = 8
	MaxFormulas    = 10
	MaxTerms       = 10
	maxTopicLength = 100
)

var (
	listItem    = regexp.MustCompile(`^\s*(?:[-*•]|\d{1,2}[.)])\s+(.+?)\s*$`)
	boldSpan    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	noneMarker  = regexp.MustCompile(`(?i)^(?:none|n/a|no formulas?(?: found| provided)?)\.?$`)
	headingLine = regexp.MustCompile(`^\s*#{1,6}\s*`)
)

// sectionBody returns the lines under the first heading whose title contains
// name, up to the next heading of the same or higher level.
func sectionBody(text, name string) []string {
	lines := strings.Split(text, "\n")
	want := strings.ToLower(name)
	for i, line := range lines {
		loc := headingLine.FindStringIndex(line)
		if loc == nil || !strings.Contains(strings.ToLower(line[loc[1]:]), want) {
			continue
		}
		level := strings.Count(strings.TrimSpace(line[:loc[1]]), "#")
		var body []string
		for _, next := range lines[i+1:] {
			if l := headingLine.FindString(next); l != "" && strings.Count(l, "#") <= level {
				break
			}
			body = append(body, next)
		}
		return body
	}
	return nil
}

func listItems(body []string) []string {
	var items []string
	for _, line := range body {
		m := listItem.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		items = append(items, m[1])
	}
	return items
}

func stripMarkup(s string) string {
	s = boldSpan.ReplaceAllString(s, "$1")
	s = strings.NewReplacer("`", "", "$", "", "__", "").Replace(s)
	return strings.TrimSpace(s)
}

func capped(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	if items == nil {
		return []string{}
	}
	return items
}

// ExtractKeyPoints returns the Key Takeaways bullets.
func ExtractKeyPoints(text string) []string {
	var out []string
	for _, it := range listItems(sectionBody(text, HeadingTakeaways)) {
		if v := stripMarkup(it); v != "" {
			out = append(out, v)
		}
	}
	return capped(out, MaxKeyPoints)
}

// ExtractTopics returns the Main Topics Covered bullets, skipping entries
// longer than 100 characters.
func ExtractTopics(text string) []string {
	var out []string
	for _, it := range listItems(sectionBody(text, HeadingMainTopics)) {
		v := stripMarkup(it)
		if v == "" || len([]rune(v)) > maxTopicLength {
			continue
		}
		out = append(out, v)
	}
	return capped(out, MaxTopics)
}

// ExtractFormulas returns the Key Formulas bullets, without placeholders.
func ExtractFormulas(text string) []string {
	var out []string
	for _, it := range listItems(sectionBody(text, HeadingFormulas)) {
		v := stripMarkup(it)
		if v == "" || noneMarker.MatchString(v) {
			continue
		}
		out = append(out, v)
	}
	return capped(out, MaxFormulas)
}

// ExtractTerms returns the term names of the Important Terms bullets: the bold
// span when present, otherwise the text before the first colon.
func ExtractTerms(text string) []string {
	var out []string
	for _, it := range listItems(sectionBody(text, HeadingTerms)) {
		var term string
		if m := boldSpan.FindStringSubmatch(it); m != nil {
			term = m[1]
		} else if i := strings.Index(it, ":"); i > 0 {
			term = it[:i]
		} else {
			term = it
		}
		if term = strings.Trim(stripMarkup(term), " :"); term != "" {
			out = append(out, term)
		}
	}
	return capped(out, MaxTerms)
}
