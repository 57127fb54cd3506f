package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Document is a study document as seen by the core: an id, a display name and
// the single concatenated text the extractor produced for it.
type Document struct {
	ID          string
	WorkspaceID string
	Filename    string
	Content     string
	ChunkCount  int
}

// Chunk is a bounded segment of a document used for embedding and retrieval.
type Chunk struct {
	DocumentID string
	Text       string
	Index      int
}

// Key returns the vector index id of the chunk.
func (c Chunk) Key() string { return ChunkKey(c.DocumentID, c.Index) }

// ChunkKey builds the deterministic id "doc{documentID}_chunk{index}".
func ChunkKey(documentID string, index int) string {
	return "doc" + documentID + "_chunk" + strconv.Itoa(index)
}

// ChunkKeys returns the ids of the first count chunks of a document.
func ChunkKeys(documentID string, count int) []string {
	keys := make([]string, count)
	for i := range keys {
		keys[i] = ChunkKey(documentID, i)
	}
	return keys
}

// EmbeddingRecord is one stored chunk embedding inside a workspace collection.
type EmbeddingRecord struct {
	ID         string
	Vector     []float32
	Text       string
	DocumentID string
	ChunkIndex int
}

// Metadata renders the record metadata the same way for every backend.
func (r EmbeddingRecord) Metadata() map[string]string {
	return map[string]string{
		"document_id": r.DocumentID,
		"chunk_index": strconv.Itoa(r.ChunkIndex),
	}
}

// ScoredRecord is a search hit. Distance is cosine distance (1 - similarity).
type ScoredRecord struct {
	EmbeddingRecord
	Distance float64
}

// SemanticSection is the structural extraction of a single chunk.
type SemanticSection struct {
	SectionNumber int      `json:"section_number"`
	Heading       string   `json:"heading,omitempty"`
	Definitions   []string `json:"definitions,omitempty"`
	BulletPoints  []string `json:"bullet_points,omitempty"`
	Enumerations  []string `json:"enumerations,omitempty"`
	Formulas      []string `json:"formulas,omitempty"`
	Algorithms    []string `json:"algorithms,omitempty"`
	Examples      []string `json:"examples,omitempty"`
	Conclusions   []string `json:"conclusions,omitempty"`
	KeyTerms      []string `json:"key_terms,omitempty"`
}

// IsEmpty reports whether no structural field was extracted.
func (s SemanticSection) IsEmpty() bool {
	return s.Heading == "" && s.ItemCount() == 0
}

// ItemCount is the number of list items extracted (the heading is not counted).
func (s SemanticSection) ItemCount() int {
	return len(s.Definitions) + len(s.BulletPoints) + len(s.Enumerations) +
		len(s.Formulas) + len(s.Algorithms) + len(s.Examples) +
		len(s.Conclusions) + len(s.KeyTerms)
}

// HasStructure reports whether the section carries list-like structure.
func (s SemanticSection) HasStructure() bool {
	return len(s.BulletPoints) > 0 || len(s.Enumerations) > 0 || len(s.Algorithms) > 0
}

// TopicGroup is a canonical topic with the sections assigned to it.
type TopicGroup struct {
	Name     string
	Sections []SemanticSection
}

// Quality labels of a coverage report.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// CoverageReport describes how much of a document the skeleton captured.
type CoverageReport struct {
	TotalChunks             int     `json:"total_chunks"`
	SectionsWithContent     int     `json:"sections_with_content"`
	SectionsWithDefinitions int     `json:"sections_with_definitions"`
	SectionsWithStructure   int     `json:"sections_with_structure"`
	TotalItems              int     `json:"total_items"`
	TopicCount              int     `json:"topic_count"`
	CoveragePercentage      float64 `json:"coverage_percentage"`
	Quality                 string  `json:"quality"`
}

// Summary is the outcome of summarizing one document.
type Summary struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Text       string         `json:"summary"`
	KeyPoints  []string       `json:"key_points"`
	Topics     []string       `json:"topics"`
	Formulas   []string       `json:"formulas"`
	Terms      []string       `json:"terms"`
	WordCount  int            `json:"word_count"`
	ChunkCount int            `json:"chunk_count"`
	Coverage   CoverageReport `json:"coverage"`
	Fallback   bool           `json:"fallback"`
}

// FlashcardDraft is a generated question/answer pair not yet persisted.
type FlashcardDraft struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Default SM-2 starting values.
const (
	DefaultEasinessFactor = 2.5
	MinEasinessFactor     = 1.3
)

// ReviewState is the spaced-repetition state of one flashcard.
type ReviewState struct {
	EasinessFactor float64    `json:"easiness_factor"`
	Interval       int        `json:"interval"`
	Repetitions    int        `json:"repetitions"`
	NextReview     time.Time  `json:"next_review"`
	LastReviewed   *time.Time `json:"last_reviewed,omitempty"`
}

// NewReviewState returns the state of a card that was never reviewed.
func NewReviewState(now time.Time) ReviewState {
	return ReviewState{
		EasinessFactor: DefaultEasinessFactor,
		NextReview:     now,
	}
}

// Flashcard is a persisted card with its review state.
type Flashcard struct {
	ID          int64
	WorkspaceID string
	Question    string
	Answer      string
	State       ReviewState
	CreatedAt   time.Time
}

func (f Flashcard) String() string {
	return fmt.Sprintf("#%d %q (reps=%d, interval=%dd)", f.ID, f.Question, f.State.Repetitions, f.State.Interval)
}

// ChatMessage is one recorded question and answer of a workspace chat.
type ChatMessage struct {
	ID          int64
	WorkspaceID string
	Question    string
	Answer      string
	CreatedAt   time.Time
}
