package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repobrief/repobrief/pkg/models"
)

// Sentinel failures for the persistence path. Callers distinguish them with
// errors.Is to pick the right HTTP status.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNotAuthorized   = errors.New("not authorized for project")
)

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
}

// FileStore is the read-only file access the QA engine needs.
type FileStore interface {
	ProjectFiles(ctx context.Context, projectID string, limit int) ([]models.FileRecord, error)
}

// FileSink is the write access the ingestion pipeline needs.
type FileSink interface {
	EnsureProject(ctx context.Context, p models.Project) error
	UpsertFile(ctx context.Context, f models.FileRecord) error
}

// QuestionStore persists and lists saved question/answer/citation triples.
type QuestionStore interface {
	SaveQuestion(ctx context.Context, projectID, question, answer string, referencedFiles []models.CitedFile, caller string) (models.SavedQuestion, error)
	ListQuestions(ctx context.Context, projectID string) ([]models.SavedQuestion, error)
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Migrate applies necessary database migrations and schema setup.
func (s *Store) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS projects (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  owner      TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE TABLE IF NOT EXISTS files (
  id          TEXT PRIMARY KEY,
  project_id  TEXT NOT NULL REFERENCES projects(id),
  file_name   TEXT NOT NULL,
  summary     TEXT NOT NULL DEFAULT '',
  source_code TEXT NOT NULL DEFAULT '',
  created_at  TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS files_project_name_uidx
  ON files (project_id, file_name);

CREATE INDEX IF NOT EXISTS files_project_idx
  ON files (project_id);

CREATE TABLE IF NOT EXISTS questions (
  id               TEXT PRIMARY KEY,
  project_id       TEXT NOT NULL REFERENCES projects(id),
  question         TEXT NOT NULL,
  answer           TEXT NOT NULL,
  referenced_files JSONB NOT NULL DEFAULT '[]',
  created_at       TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS questions_project_created_idx
  ON questions (project_id, created_at DESC);
`
	_, err := s.pool.Exec(ctx, q)
	return err
}

// GetProjects returns all projects, newest first.
func (s *Store) GetProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, owner, created_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Owner, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject looks up one project by id.
func (s *Store) GetProject(ctx context.Context, id string) (models.Project, bool, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner, created_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Owner, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Project{}, false, nil
		}
		return models.Project{}, false, err
	}
	return p, true, nil
}

// EnsureProject creates the project if it does not exist yet. Used by the
// ingestion tool before upserting files.
func (s *Store) EnsureProject(ctx context.Context, p models.Project) error {
	const q = `
		INSERT INTO projects (id, name, owner, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, p.ID, p.Name, p.Owner)
	return err
}

// UpsertFile inserts or updates one indexed file, keyed by (project, name).
func (s *Store) UpsertFile(ctx context.Context, f models.FileRecord) error {
	const q = `
		INSERT INTO files (id, project_id, file_name, summary, source_code, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (project_id, file_name) DO UPDATE SET
			summary     = COALESCE(NULLIF(EXCLUDED.summary, ''), files.summary),
			source_code = EXCLUDED.source_code,
			created_at  = now()`
	_, err := s.pool.Exec(ctx, q, f.ID, f.ProjectID, f.FileName, f.Summary, f.SourceCode)
	return err
}

// ProjectFiles returns up to limit of the project's most recently indexed
// files. The cap keeps the scoring pass cheap; it means scoring sees a
// recent subset, not the full corpus.
func (s *Store) ProjectFiles(ctx context.Context, projectID string, limit int) ([]models.FileRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, file_name,
		       COALESCE(summary, ''), COALESCE(source_code, ''), created_at
		FROM files
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.FileRecord
	for rows.Next() {
		var f models.FileRecord
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.FileName, &f.Summary, &f.SourceCode, &f.CreatedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// SaveQuestion persists one question/answer/citation triple. It fails with
// ErrProjectNotFound for an unknown project and ErrNotAuthorized when the
// project has an owner and the caller is someone else.
func (s *Store) SaveQuestion(ctx context.Context, projectID, question, answer string, referencedFiles []models.CitedFile, caller string) (models.SavedQuestion, error) {
	p, found, err := s.GetProject(ctx, projectID)
	if err != nil {
		return models.SavedQuestion{}, err
	}
	if !found {
		return models.SavedQuestion{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if p.Owner != "" && p.Owner != caller {
		return models.SavedQuestion{}, fmt.Errorf("%w: %s", ErrNotAuthorized, projectID)
	}

	if referencedFiles == nil {
		referencedFiles = []models.CitedFile{}
	}
	refs, err := json.Marshal(referencedFiles)
	if err != nil {
		return models.SavedQuestion{}, fmt.Errorf("marshal referenced files: %w", err)
	}

	sq := models.SavedQuestion{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		Question:        question,
		Answer:          answer,
		ReferencedFiles: referencedFiles,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO questions (id, project_id, question, answer, referenced_files, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at`,
		sq.ID, sq.ProjectID, sq.Question, sq.Answer, refs).Scan(&sq.CreatedAt)
	if err != nil {
		return models.SavedQuestion{}, err
	}
	return sq, nil
}

// ListQuestions returns a project's saved questions, newest first. No saved
// questions is an empty slice, not an error.
func (s *Store) ListQuestions(ctx context.Context, projectID string) ([]models.SavedQuestion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, question, answer, referenced_files, created_at
		FROM questions
		WHERE project_id = $1
		ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []models.SavedQuestion{}
	for rows.Next() {
		var sq models.SavedQuestion
		var refs []byte
		if err := rows.Scan(&sq.ID, &sq.ProjectID, &sq.Question, &sq.Answer, &refs, &sq.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(refs, &sq.ReferencedFiles); err != nil {
			return nil, fmt.Errorf("unmarshal referenced files: %w", err)
		}
		questions = append(questions, sq)
	}
	return questions, rows.Err()
}
