// Package sqlite persists documents, flashcards and chat history in a single
// SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"studyrag/internal/domain"
	"studyrag/internal/store/sqlite/migrations"
)

// DefaultDueLimit caps a due flashcard listing.
const DefaultDueLimit = 10

// Store is the SQLite backed persistence of the study tool.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies pending migrations.
// An empty path selects ~/.local/share/studyrag/studyrag.db.
func Open(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".local", "share", "studyrag", "studyrag.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	var ups []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// Times are stored as unix nanoseconds.
func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: document id %q", domain.ErrInvalidInput, id)
	}
	return n, nil
}

// ==================== Documents ====================

// CreateDocument stores doc with a chunk count of zero and returns it with
// its assigned id.
func (s *Store) CreateDocument(ctx context.Context, doc domain.Document, now time.Time) (domain.Document, error) {
	if doc.WorkspaceID == "" || doc.Filename == "" {
		return domain.Document{}, fmt.Errorf("%w: document needs a workspace and a filename", domain.ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (workspace_id, filename, content, chunk_count, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, doc.WorkspaceID, doc.Filename, doc.Content, toUnix(now))
	if err != nil {
		return domain.Document{}, fmt.Errorf("inserting document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading document id: %w", err)
	}
	doc.ID = strconv.FormatInt(id, 10)
	doc.ChunkCount = 0
	return doc, nil
}

// SetChunkCount records how many chunks of the document were indexed.
func (s *Store) SetChunkCount(ctx context.Context, id string, count int) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE documents SET chunk_count = ? WHERE id = ?", count, n)
	if err != nil {
		return fmt.Errorf("updating chunk count: %w", err)
	}
	return expectRow(res, "document", id)
}

// GetDocument returns one document.
func (s *Store) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	n, err := parseID(id)
	if err != nil {
		return domain.Document{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, filename, content, chunk_count FROM documents WHERE id = ?
	`, n)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return doc, err
}

// ListDocuments returns the documents of a workspace in upload order.
func (s *Store) ListDocuments(ctx context.Context, workspaceID string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, filename, content, chunk_count
		FROM documents WHERE workspace_id = ? ORDER BY id
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes the document record.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", n)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return expectRow(res, "document", id)
}

// DeleteWorkspace removes every record of a workspace.
func (s *Store) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"documents", "flashcards", "chat_messages"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE workspace_id = ?", workspaceID); err != nil {
			return fmt.Errorf("deleting %s: %w", table, err)
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (domain.Document, error) {
	var doc domain.Document
	var id int64
	if err := row.Scan(&id, &doc.WorkspaceID, &doc.Filename, &doc.Content, &doc.ChunkCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return doc, err
		}
		return doc, fmt.Errorf("scanning document: %w", err)
	}
	doc.ID = strconv.FormatInt(id, 10)
	return doc, nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return nil
}

// ==================== Flashcards ====================

// AddFlashcards stores drafts as new cards that are due immediately.
func (s *Store) AddFlashcards(ctx context.Context, workspaceID string, drafts []domain.FlashcardDraft, now time.Time) ([]domain.Flashcard, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cards := make([]domain.Flashcard, 0, len(drafts))
	for _, d := range drafts {
		state := domain.NewReviewState(now)
		res, err := tx.ExecContext(ctx, `
			INSERT INTO flashcards (workspace_id, question, answer, easiness_factor, interval_days, repetitions, next_review, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, workspaceID, d.Question, d.Answer, state.EasinessFactor, state.Interval, state.Repetitions, toUnix(state.NextReview), toUnix(now))
		if err != nil {
			return nil, fmt.Errorf("inserting flashcard: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading flashcard id: %w", err)
		}
		cards = append(cards, domain.Flashcard{
			ID:          id,
			WorkspaceID: workspaceID,
			Question:    d.Question,
			Answer:      d.Answer,
			State:       state,
			CreatedAt:   now.UTC(),
		})
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing flashcards: %w", err)
	}
	return cards, nil
}

const flashcardColumns = `id, workspace_id, question, answer, easiness_factor, interval_days, repetitions, next_review, last_reviewed, created_at`

// GetFlashcard returns one card.
func (s *Store) GetFlashcard(ctx context.Context, id int64) (domain.Flashcard, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+flashcardColumns+" FROM flashcards WHERE id = ?", id)
	card, err := scanFlashcard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Flashcard{}, fmt.Errorf("%w: flashcard %d", domain.ErrNotFound, id)
	}
	return card, err
}

// UpdateReview replaces the review state of a card.
func (s *Store) UpdateReview(ctx context.Context, id int64, state domain.ReviewState) error {
	var last sql.NullInt64
	if state.LastReviewed != nil {
		last = sql.NullInt64{Int64: toUnix(*state.LastReviewed), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE flashcards
		SET easiness_factor = ?, interval_days = ?, repetitions = ?, next_review = ?, last_reviewed = ?
		WHERE id = ?
	`, state.EasinessFactor, state.Interval, state.Repetitions, toUnix(state.NextReview), last, id)
	if err != nil {
		return fmt.Errorf("updating review: %w", err)
	}
	return expectRow(res, "flashcard", strconv.FormatInt(id, 10))
}

// ListFlashcards returns every card of a workspace.
func (s *Store) ListFlashcards(ctx context.Context, workspaceID string) ([]domain.Flashcard, error) {
	return s.queryFlashcards(ctx, "SELECT "+flashcardColumns+" FROM flashcards WHERE workspace_id = ? ORDER BY id", workspaceID)
}

// DueFlashcards returns up to limit cards whose next review is not after now,
// most overdue first. A limit of zero or less means DefaultDueLimit.
func (s *Store) DueFlashcards(ctx context.Context, workspaceID string, now time.Time, limit int) ([]domain.Flashcard, error) {
	if limit <= 0 {
		limit = DefaultDueLimit
	}
	return s.queryFlashcards(ctx, `
		SELECT `+flashcardColumns+` FROM flashcards
		WHERE workspace_id = ? AND next_review <= ?
		ORDER BY next_review, id LIMIT ?
	`, workspaceID, toUnix(now), limit)
}

func (s *Store) queryFlashcards(ctx context.Context, query string, args ...any) ([]domain.Flashcard, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying flashcards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Flashcard
	for rows.Next() {
		card, err := scanFlashcard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func scanFlashcard(row scanner) (domain.Flashcard, error) {
	var c domain.Flashcard
	var next, created int64
	var last sql.NullInt64
	if err := row.Scan(&c.ID, &c.WorkspaceID, &c.Question, &c.Answer,
		&c.State.EasinessFactor, &c.State.Interval, &c.State.Repetitions,
		&next, &last, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scanning flashcard: %w", err)
	}
	c.State.NextReview = fromUnix(next)
	if last.Valid {
		t := fromUnix(last.Int64)
		c.State.LastReviewed = &t
	}
	c.CreatedAt = fromUnix(created)
	return c, nil
}

// ==================== Chat ====================

// RecordChat appends one answered question to the workspace history.
func (s *Store) RecordChat(ctx context.Context, workspaceID, question, answer string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (workspace_id, question, answer, created_at) VALUES (?, ?, ?, ?)
	`, workspaceID, question, answer, toUnix(now))
	if err != nil {
		return fmt.Errorf("recording chat: %w", err)
	}
	return nil
}

// ChatHistory returns the last limit messages of a workspace, oldest first.
func (s *Store) ChatHistory(ctx context.Context, workspaceID string, limit int) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, question, answer, created_at FROM (
			SELECT * FROM chat_messages WHERE workspace_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id
	`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var created int64
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.Question, &m.Answer, &created); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		m.CreatedAt = fromUnix(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
