package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/repobrief/repobrief/pkg/models"
)

// Backend is the full storage surface the API server needs.
type Backend interface {
	FileStore
	FileSink
	QuestionStore
	GetProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id string) (models.Project, bool, error)
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

// Memory is an in-memory Backend for tests and local development without a
// database. Selected with REPOBRIEF_DB_URL=memory.
type Memory struct {
	mu        sync.RWMutex
	projects  map[string]models.Project
	files     map[string][]models.FileRecord // projectID -> records, oldest first
	questions map[string][]models.SavedQuestion
	seq       int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects:  make(map[string]models.Project),
		files:     make(map[string][]models.FileRecord),
		questions: make(map[string][]models.SavedQuestion),
	}
}

func (m *Memory) Close() {}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Migrate(ctx context.Context) error { return nil }

// now returns a strictly increasing timestamp so recency ordering stays
// deterministic even within one clock tick.
func (m *Memory) now() time.Time {
	m.seq++
	return time.Now().Add(time.Duration(m.seq) * time.Nanosecond)
}

func (m *Memory) EnsureProject(ctx context.Context, p models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return nil
	}
	p.CreatedAt = m.now()
	m.projects[p.ID] = p
	return nil
}

func (m *Memory) GetProjects(ctx context.Context) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	projects := make([]models.Project, 0, len(m.projects))
	for _, p := range m.projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

func (m *Memory) GetProject(ctx context.Context, id string) (models.Project, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	return p, ok, nil
}

func (m *Memory) UpsertFile(ctx context.Context, f models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.CreatedAt = m.now()
	records := m.files[f.ProjectID]
	for i, existing := range records {
		if existing.FileName == f.FileName {
			if f.Summary == "" {
				f.Summary = existing.Summary
			}
			records[i] = f
			return nil
		}
	}
	m.files[f.ProjectID] = append(records, f)
	return nil
}

func (m *Memory) ProjectFiles(ctx context.Context, projectID string, limit int) ([]models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := m.files[projectID]

	out := make([]models.FileRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SaveQuestion(ctx context.Context, projectID, question, answer string, referencedFiles []models.CitedFile, caller string) (models.SavedQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[projectID]
	if !ok {
		return models.SavedQuestion{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if p.Owner != "" && p.Owner != caller {
		return models.SavedQuestion{}, fmt.Errorf("%w: %s", ErrNotAuthorized, projectID)
	}

	refs := make([]models.CitedFile, len(referencedFiles))
	copy(refs, referencedFiles)

	sq := models.SavedQuestion{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		Question:        question,
		Answer:          answer,
		ReferencedFiles: refs,
		CreatedAt:       m.now(),
	}
	m.questions[projectID] = append(m.questions[projectID], sq)
	return sq, nil
}

func (m *Memory) ListQuestions(ctx context.Context, projectID string) ([]models.SavedQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	saved := m.questions[projectID]
	out := make([]models.SavedQuestion, len(saved))
	copy(out, saved)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
