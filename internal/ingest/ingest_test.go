package ingest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/karrick/godirwalk"

	"github.com/repobrief/repobrief/internal/ai"
	"github.com/repobrief/repobrief/pkg/models"
)

// MockWalker feeds a fixed list of paths to the callback
type MockWalker struct {
	Paths []string
}

func (m *MockWalker) Walk(root string, options *godirwalk.Options) error {
	for _, p := range m.Paths {
		if err := options.Callback(p, nil); err != nil {
			return err
		}
	}
	return nil
}

// MockReader serves file contents from a map
type MockReader struct {
	Files map[string]string
}

func (m *MockReader) ReadFile(filename string) ([]byte, error) {
	if content, ok := m.Files[filename]; ok {
		return []byte(content), nil
	}
	return nil, errors.New("file not found")
}

// MockSink records upserted file records
type MockSink struct {
	mu        sync.Mutex
	projects  []models.Project
	files     []models.FileRecord
	upsertErr error
}

func (m *MockSink) EnsureProject(ctx context.Context, p models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = append(m.projects, p)
	return nil
}

func (m *MockSink) UpsertFile(ctx context.Context, f models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.files = append(m.files, f)
	return nil
}

func (m *MockSink) fileNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for _, f := range m.files {
		names = append(names, f.FileName)
	}
	sort.Strings(names)
	return names
}

// failingClient always errors, forcing the heuristic summary path
type failingClient struct{}

func (f *failingClient) Generate(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("backend down")
}

func (f *failingClient) Summarize(ctx context.Context, filePath, content string) (string, error) {
	return "", errors.New("backend down")
}

func TestIngester_Run(t *testing.T) {
	sink := &MockSink{}
	ix := New(sink, "/repo", "p1", ai.NewStubClient())
	ix.Walker = &MockWalker{Paths: []string{
		"/repo/main.go",
		"/repo/node_modules/dep/index.js",
		"/repo/logo.png",
		"/repo/auth/login.go",
	}}
	ix.FileReader = &MockReader{Files: map[string]string{
		"/repo/main.go":       "// main starts the api server\npackage main",
		"/repo/auth/login.go": "package auth",
	}}

	if err := ix.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	names := sink.fileNames()
	expected := []string{"auth/login.go", "main.go"}
	if len(names) != len(expected) {
		t.Fatalf("ingested files = %v, want %v", names, expected)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("ingested files = %v, want %v", names, expected)
		}
	}

	for _, f := range sink.files {
		if f.ProjectID != "p1" {
			t.Errorf("file %s has project %q, want p1", f.FileName, f.ProjectID)
		}
		if f.ID == "" {
			t.Errorf("file %s has no id", f.FileName)
		}
		if f.Summary == "" {
			t.Errorf("file %s has no summary", f.FileName)
		}
	}
}

func TestIngester_SummarizeFallback(t *testing.T) {
	sink := &MockSink{}
	ix := New(sink, "/repo", "p1", &failingClient{})
	ix.Walker = &MockWalker{Paths: []string{"/repo/a.go"}}
	ix.FileReader = &MockReader{Files: map[string]string{
		"/repo/a.go": "  package a\n" + strings.Repeat("x", 500),
	}}

	if err := ix.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(sink.files))
	}

	summary := sink.files[0].Summary
	if summary == "" {
		t.Fatal("heuristic summary must not be empty")
	}
	if len(summary) > 240 {
		t.Errorf("heuristic summary too long: %d chars", len(summary))
	}
	if !strings.HasPrefix(summary, "package a") {
		t.Errorf("heuristic summary should start with trimmed content, got %q", summary)
	}
}

func TestIngester_UpsertErrorSurfaces(t *testing.T) {
	sink := &MockSink{upsertErr: errors.New("insert failed")}
	ix := New(sink, "/repo", "p1", ai.NewStubClient())
	ix.Walker = &MockWalker{Paths: []string{"/repo/a.go"}}
	ix.FileReader = &MockReader{Files: map[string]string{"/repo/a.go": "package a"}}

	if err := ix.Run(context.Background()); err == nil {
		t.Error("expected upsert error to surface from Run")
	}
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/repo/main.go", false},
		{"/repo/README.md", false},
		{"/repo/node_modules/x/index.js", true},
		{"/repo/.git/HEAD", true},
		{"/repo/vendor/lib/lib.go", true},
		{"/repo/logo.png", true},
		{"/repo/yarn.lock", true},
		{"/repo/go.sum", true},
		{"/repo/dist/bundle.js", true},
		{"/repo/src/app.ts", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ShouldSkip(tt.path); got != tt.expected {
				t.Errorf("ShouldSkip(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}
