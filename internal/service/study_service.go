// Package service wires the study components into the operations the CLI and
// TUI expose: ingest, ask, summarize, flashcards, plans and deletion.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"studyrag/internal/answer"
	"studyrag/internal/chunker"
	"studyrag/internal/domain"
	"studyrag/internal/extract"
	"studyrag/internal/flashcards"
	"studyrag/internal/srs"
	"studyrag/internal/studyplan"
	"studyrag/internal/summarizer"
	"studyrag/internal/vectorindex"
)

// Store is the persistence the service needs.
type Store interface {
	CreateDocument(ctx context.Context, doc domain.Document, now time.Time) (domain.Document, error)
	SetChunkCount(ctx context.Context, id string, count int) error
	GetDocument(ctx context.Context, id string) (domain.Document, error)
	ListDocuments(ctx context.Context, workspaceID string) ([]domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	DeleteWorkspace(ctx context.Context, workspaceID string) error

	AddFlashcards(ctx context.Context, workspaceID string, drafts []domain.FlashcardDraft, now time.Time) ([]domain.Flashcard, error)
	GetFlashcard(ctx context.Context, id int64) (domain.Flashcard, error)
	UpdateReview(ctx context.Context, id int64, state domain.ReviewState) error
	DueFlashcards(ctx context.Context, workspaceID string, now time.Time, limit int) ([]domain.Flashcard, error)

	RecordChat(ctx context.Context, workspaceID, question, answer string, now time.Time) error
	ChatHistory(ctx context.Context, workspaceID string, limit int) ([]domain.ChatMessage, error)
}

// VectorIndex is the chunk index the service needs.
type VectorIndex interface {
	EmbedAndStore(ctx context.Context, workspaceID, documentID string, chunks []string) (int, error)
	DocumentChunks(ctx context.Context, workspaceID, documentID string, limit int) ([]string, error)
	SampleChunks(ctx context.Context, workspaceID string, limit int) ([]string, error)
	DeleteByIDs(ctx context.Context, workspaceID string, ids []string) vectorindex.CleanupStatus
	DeleteByDocument(ctx context.Context, workspaceID, documentID string) vectorindex.CleanupStatus
	DeleteCollection(ctx context.Context, workspaceID string) vectorindex.CleanupStatus
}

// Deps are the collaborators of a StudyService. Clock and Logger are optional.
type Deps struct {
	Store      Store
	Index      VectorIndex
	Chunker    *chunker.SentenceChunker
	Answerer   *answer.Answerer
	Summarizer *summarizer.Summarizer
	Flashcards *flashcards.Generator
	Planner    *studyplan.Planner
	Logger     *zap.Logger
	Clock      func() time.Time
}

// StudyService implements the study operations.
type StudyService struct {
	store      Store
	index      VectorIndex
	chunker    *chunker.SentenceChunker
	answerer   *answer.Answerer
	summarizer *summarizer.Summarizer
	cards      *flashcards.Generator
	planner    *studyplan.Planner
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a StudyService from d.
func New(d Deps) *StudyService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Chunker == nil {
		d.Chunker = chunker.NewSentenceChunker(chunker.DefaultChunkSize, chunker.DefaultOverlap)
	}
	return &StudyService{
		store:      d.Store,
		index:      d.Index,
		chunker:    d.Chunker,
		answerer:   d.Answerer,
		summarizer: d.Summarizer,
		cards:      d.Flashcards,
		planner:    d.Planner,
		logger:     d.Logger,
		now:        d.Clock,
	}
}

// IngestFile extracts the text of path and ingests it under its base name.
func (s *StudyService) IngestFile(ctx context.Context, workspaceID, path string) (domain.Document, error) {
	text, err := extract.File(ctx, path)
	if err != nil {
		return domain.Document{}, err
	}
	return s.Ingest(ctx, workspaceID, filepath.Base(path), text)
}

// Ingest stores a document, indexes its chunks and then records the chunk
// count. A failure in either step removes what was already written.
func (s *StudyService) Ingest(ctx context.Context, workspaceID, filename, content string) (domain.Document, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Document{}, fmt.Errorf("%w: %s has no text", domain.ErrEmptyInput, filename)
	}
	doc, err := s.store.CreateDocument(ctx, domain.Document{
		WorkspaceID: workspaceID,
		Filename:    filename,
		Content:     content,
	}, s.now())
	if err != nil {
		return domain.Document{}, fmt.Errorf("saving document: %w", err)
	}

	chunks := s.chunker.Texts(content)
	n, err := s.index.EmbedAndStore(ctx, workspaceID, doc.ID, chunks)
	if err != nil {
		if derr := s.store.DeleteDocument(context.WithoutCancel(ctx), doc.ID); derr != nil {
			s.logger.Warn("removing document after failed indexing", zap.String("document_id", doc.ID), zap.Error(derr))
		}
		return domain.Document{}, fmt.Errorf("indexing %s: %w", filename, err)
	}
	if err := s.store.SetChunkCount(ctx, doc.ID, n); err != nil {
		cleanup := context.WithoutCancel(ctx)
		s.index.DeleteByIDs(cleanup, workspaceID, domain.ChunkKeys(doc.ID, n))
		if derr := s.store.DeleteDocument(cleanup, doc.ID); derr != nil {
			s.logger.Warn("removing document after failed chunk count", zap.String("document_id", doc.ID), zap.Error(derr))
		}
		return domain.Document{}, fmt.Errorf("recording chunk count: %w", err)
	}
	doc.ChunkCount = n

	s.logger.Info("document ingested",
		zap.String("workspace_id", workspaceID),
		zap.String("document_id", doc.ID),
		zap.String("filename", filename),
		zap.Int("chunks", n),
	)
	return doc, nil
}

// Documents lists the documents of a workspace.
func (s *StudyService) Documents(ctx context.Context, workspaceID string) ([]domain.Document, error) {
	return s.store.ListDocuments(ctx, workspaceID)
}

// Ask answers question from the workspace documents and records the exchange.
// A failed model call yields answer.AnswerFailedMessage instead of an error.
func (s *StudyService) Ask(ctx context.Context, workspaceID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	reply, err := s.answerer.Answer(ctx, workspaceID, question)
	if err != nil {
		if !errors.Is(err, domain.ErrUpstream) || ctx.Err() != nil {
			return "", err
		}
		reply = answer.AnswerFailedMessage
	}
	if err := s.store.RecordChat(ctx, workspaceID, question, reply, s.now()); err != nil {
		s.logger.Warn("recording chat failed", zap.String("workspace_id", workspaceID), zap.Error(err))
	}
	return reply, nil
}

// ChatHistory returns the last limit exchanges of a workspace.
func (s *StudyService) ChatHistory(ctx context.Context, workspaceID string, limit int) ([]domain.ChatMessage, error) {
	return s.store.ChatHistory(ctx, workspaceID, limit)
}

// SummarizeDocument builds the study guide of one document.
func (s *StudyService) SummarizeDocument(ctx context.Context, documentID string) (domain.Summary, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return domain.Summary{}, err
	}
	return s.summarize(ctx, doc)
}

func (s *StudyService) summarize(ctx context.Context, doc domain.Document) (domain.Summary, error) {
	chunks, err := s.index.DocumentChunks(ctx, doc.WorkspaceID, doc.ID, 0)
	if err != nil {
		return domain.Summary{}, err
	}
	return s.summarizer.Summarize(ctx, doc.ID, doc.Filename, chunks)
}

// DocumentSummary is one entry of a workspace summary run. Err is set when
// that document could not be summarized.
type DocumentSummary struct {
	Document domain.Document
	Summary  domain.Summary
	Err      error
}

// SummarizeWorkspace summarizes every document of a workspace concurrently.
// A failing document is reported in its entry and does not stop the others.
func (s *StudyService) SummarizeWorkspace(ctx context.Context, workspaceID string) ([]DocumentSummary, error) {
	docs, err := s.store.ListDocuments(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	results := make([]DocumentSummary, len(docs))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, doc := range docs {
		g.Go(func() error {
			sum, err := s.summarize(ctx, doc)
			results[i] = DocumentSummary{Document: doc, Summary: sum, Err: err}
			if err != nil {
				s.logger.Warn("document summary failed",
					zap.String("document_id", doc.ID),
					zap.String("filename", doc.Filename),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

// QuickSummary summarizes the stored text of a document in at most maxWords
// words. The bool reports that the extractive fallback was used.
func (s *StudyService) QuickSummary(ctx context.Context, documentID string, maxWords int) (string, bool, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return "", false, err
	}
	text, fallback := s.summarizer.QuickSummary(ctx, doc.Content, maxWords)
	if text == "" {
		return "", false, fmt.Errorf("%w: document %s has no text", domain.ErrEmptyInput, documentID)
	}
	return text, fallback, nil
}

// GenerateFlashcards creates up to count cards from a sample of workspace
// chunks and stores them. The bool reports that fallback cards were stored.
func (s *StudyService) GenerateFlashcards(ctx context.Context, workspaceID string, count int) ([]domain.Flashcard, bool, error) {
	chunks, err := s.index.SampleChunks(ctx, workspaceID, flashcards.MaxSampleChunks)
	if err != nil {
		return nil, false, err
	}
	drafts, fallback := s.cards.Generate(ctx, chunks, count)
	if len(drafts) == 0 {
		return nil, false, fmt.Errorf("%w: workspace %s has no indexed chunks", domain.ErrEmptyInput, workspaceID)
	}
	cards, err := s.store.AddFlashcards(ctx, workspaceID, drafts, s.now())
	if err != nil {
		return nil, false, err
	}
	return cards, fallback, nil
}

// DueFlashcards lists the cards due now.
func (s *StudyService) DueFlashcards(ctx context.Context, workspaceID string, limit int) ([]domain.Flashcard, error) {
	return s.store.DueFlashcards(ctx, workspaceID, s.now(), limit)
}

// ReviewFlashcard grades one recall of a card and reschedules it.
func (s *StudyService) ReviewFlashcard(ctx context.Context, id int64, quality int) (domain.Flashcard, error) {
	card, err := s.store.GetFlashcard(ctx, id)
	if err != nil {
		return domain.Flashcard{}, err
	}
	state, err := srs.Review(card.State, quality, s.now())
	if err != nil {
		return domain.Flashcard{}, err
	}
	if err := s.store.UpdateReview(ctx, id, state); err != nil {
		return domain.Flashcard{}, err
	}
	card.State = state
	return card, nil
}

// StudyPlan drafts a plan for the workspace documents towards deadline.
func (s *StudyService) StudyPlan(ctx context.Context, workspaceID string, deadline time.Time) (studyplan.Result, error) {
	docs, err := s.store.ListDocuments(ctx, workspaceID)
	if err != nil {
		return studyplan.Result{}, err
	}
	return s.planner.Generate(ctx, workspaceID, deadline, docs, s.now())
}

// DeleteDocument removes the document embeddings, best effort, and then its
// record. The returned status describes the embedding cleanup.
func (s *StudyService) DeleteDocument(ctx context.Context, documentID string) (vectorindex.CleanupStatus, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return vectorindex.CleanupStatus{}, err
	}
	status := s.index.DeleteByDocument(ctx, doc.WorkspaceID, doc.ID)
	if err := s.store.DeleteDocument(ctx, doc.ID); err != nil {
		return status, err
	}
	return status, nil
}

// DeleteWorkspace drops the workspace collection, best effort, and every
// record of the workspace.
func (s *StudyService) DeleteWorkspace(ctx context.Context, workspaceID string) (vectorindex.CleanupStatus, error) {
	status := s.index.DeleteCollection(ctx, workspaceID)
	if err := s.store.DeleteWorkspace(ctx, workspaceID); err != nil {
		return status, err
	}
	return status, nil
}
