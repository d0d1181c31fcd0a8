package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/privatetune/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
)

const dbFileName = "state.db"

// Store is the local SQLite database holding client-side state.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database in dataDir and applies
// pending migrations. If dataDir is empty, defaults to ~/.privatetune/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".privatetune", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)

	// WAL lets the TUI and a CLI command share the file.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SessionStore returns the session store backed by this database.
func (s *Store) SessionStore() driven.SessionStore {
	return &sessionStore{store: s}
}

// OutcomeStore returns the generation outcome history backed by this database.
func (s *Store) OutcomeStore() driven.OutcomeStore {
	return &outcomeStore{store: s}
}

// migrate applies every *.up.sql file newer than the recorded version,
// each in its own transaction.
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
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
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

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}
	return nil
}

// ==================== Session Store ====================

// sessionStore implements driven.SessionStore.
type sessionStore struct {
	store *Store
}

var _ driven.SessionStore = (*sessionStore)(nil)

// LoadSession returns the most recently updated session, or nil.
func (s *sessionStore) LoadSession(ctx context.Context) (*domain.Session, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, active_item_id, selection, template, last_generation_job_id, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT 1
	`)

	var (
		session   domain.Session
		activeID  sql.NullInt64
		selection string
		updatedAt time.Time
	)
	err := row.Scan(&session.ID, &activeID, &selection, &session.Template, &session.LastGenerationJobID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if activeID.Valid {
		id := activeID.Int64
		session.ActiveItemID = &id
	}
	if err := json.Unmarshal([]byte(selection), &session.Selection); err != nil {
		return nil, fmt.Errorf("decoding selection: %w", err)
	}
	session.UpdatedAt = updatedAt
	return &session, nil
}

// SaveSession creates or replaces a session by ID.
func (s *sessionStore) SaveSession(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}

	keys := session.Selection
	if keys == nil {
		keys = []domain.FragmentKey{}
	}
	selection, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("encoding selection: %w", err)
	}

	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	var activeID any
	if session.ActiveItemID != nil {
		activeID = *session.ActiveItemID
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sessions (id, active_item_id, selection, template, last_generation_job_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active_item_id = excluded.active_item_id,
			selection = excluded.selection,
			template = excluded.template,
			last_generation_job_id = excluded.last_generation_job_id,
			updated_at = excluded.updated_at
	`, session.ID, activeID, string(selection), session.Template, session.LastGenerationJobID, updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// ==================== Outcome Store ====================

// outcomeStore implements driven.OutcomeStore.
type outcomeStore struct {
	store *Store
}

var _ driven.OutcomeStore = (*outcomeStore)(nil)

// RecordOutcome stores or replaces an outcome by job ID.
func (s *outcomeStore) RecordOutcome(ctx context.Context, outcome *domain.GenerationOutcome) error {
	if outcome == nil || outcome.JobID == "" {
		return fmt.Errorf("%w: job id is required", domain.ErrInvalidInput)
	}
	finished := outcome.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO generation_outcomes (job_id, status, annotation_count, error_message, finished_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			annotation_count = excluded.annotation_count,
			error_message = excluded.error_message,
			finished_at = excluded.finished_at
	`, outcome.JobID, string(outcome.Status), outcome.AnnotationCount, outcome.ErrorMessage, finished.UTC())
	if err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns the newest outcomes first.
func (s *outcomeStore) ListOutcomes(ctx context.Context, limit int) ([]domain.GenerationOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT job_id, status, annotation_count, error_message, finished_at
		FROM generation_outcomes
		ORDER BY finished_at DESC, job_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.GenerationOutcome
	for rows.Next() {
		var (
			o      domain.GenerationOutcome
			status string
		)
		if err := rows.Scan(&o.JobID, &status, &o.AnnotationCount, &o.ErrorMessage, &o.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Status = domain.GenerationStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// PruneOutcomes keeps only the newest keep outcomes.
func (s *outcomeStore) PruneOutcomes(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM generation_outcomes
		WHERE job_id NOT IN (
			SELECT job_id FROM generation_outcomes
			ORDER BY finished_at DESC, job_id DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning outcomes: %w", err)
	}
	return nil
}
