package summarizer

import "regexp"

// Field names of a SemanticSection, in extraction order.
const (
	FieldDefinitions  = "definitions"
	FieldBulletPoints = "bullet_points"
	FieldEnumerations = "enumerations"
	FieldFormulas     = "formulas"
	FieldAlgorithms   = "algorithms"
	FieldExamples     = "examples"
	FieldConclusions  = "conclusions"
	FieldKeyTerms     = "key_terms"
)

// Extractor pulls one SemanticSection field out of a chunk. Each pattern
// contributes its first capture group, or the whole match when it has none.
type Extractor struct {
	Field    string
	Patterns []*regexp.Regexp
	Limit    int
}

// Extractors is the ordered extraction table. Adding a pattern or a field
// only touches this table.
var Extractors = []Extractor{
	{
		Field: FieldDefinitions,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)(?:^|[.!?:]\s+)\s*([A-Za-z][^.!?\n]{0,60}?\s(?:is defined as|refers to|is called|is known as|means|is an?|is the|are)\s[^.!?\n]{3,200})`),
		},
		Limit: 3,
	},
	{
		Field: FieldBulletPoints,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^[ \t]*[-*•●▪◦][ \t]+(.+?)[ \t]*$`),
		},
		Limit: 10,
	},
	{
		Field: FieldEnumerations,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^[ \t]*(?:\d{1,2}[.)]|[a-z]\))[ \t]+(.+?)[ \t]*$`),
		},
		Limit: 6,
	},
	{
		Field: FieldFormulas,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\$\$?([^$\n]{2,120})\$\$?`),
			regexp.MustCompile(`\b([A-Za-z][\w]{0,15}(?:\([^()\n]{0,30}\))?\s*=\s*[^=\n.;,]{1,80})`),
		},
		Limit: 5,
	},
	{
		Field: FieldAlgorithms,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b((?:algorithm|procedure|steps?\s+\d+)\s*[:\-]\s*[^\n]{3,200})`),
		},
		Limit: 2,
	},
	{
		Field: FieldExamples,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b((?:for example|for instance|example:)[^.!?\n]*[.!?]?)`),
		},
		Limit: 2,
	},
	{
		Field: FieldConclusions,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b((?:in conclusion|in summary|to summarize|to sum up|therefore|overall)[,:]?\s[^.!?\n]{3,200}[.!?]?)`),
		},
		Limit: 2,
	},
	{
		Field: FieldKeyTerms,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\*\*([^*\n]{2,60})\*\*`),
			regexp.MustCompile(`__([^_\n]{2,60})__`),
			regexp.MustCompile(`"([^"\n]{2,40})"`),
			regexp.MustCompile(`“([^”\n]{2,40})”`),
		},
		Limit: 8,
	},
}

// Heading candidates, tried in order.
var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+(.+?)[ \t#]*$`),
	regexp.MustCompile(`(?mi)^[ \t]*((?:unit|chapter|lecture|module|section|part)[ \t]+\d+[ \t]*[:.\-][^\n]*)$`),
	regexp.MustCompile(`(?m)^[ \t]*([A-Z][A-Z0-9&,'\- ]{3,80})[ \t]*$`),
}

// Metadata noise stripped from headings.
var headingNoise = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bpage\s+\d+(?:\s+of\s+\d+)?\b`),
	regexp.MustCompile(`\b\d+\s*/\s*\d+\b`),
	regexp.MustCompile(`(?i)^\s*(?:unit|chapter|lecture|module|section|part)\s+\d+\s*[:.\-]\s*`),
}

// Sentence-embedded list markers are moved to their own lines before
// extraction, since chunking joins sentences with spaces.
var (
	inlineBullet = regexp.MustCompile(`([.!?:])[ \t]+([-*•●▪◦][ \t]+\S)`)
	inlineEnum   = regexp.MustCompile(`([.!?:])[ \t]+(\d{1,2}[.)][ \t]+[A-Za-z])`)
)

// Bullet lines of synthesized text that carry nothing but a location marker.
var metadataBullet = regexp.MustCompile(`(?i)^[-*•]\s*(?:(?:page|slide|unit|lecture|chapter|section)\s*\d+|\d+\s*(?:/|of)\s*\d+)?\s*[.:]?\s*$`)
