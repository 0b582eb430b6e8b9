package ingest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"github.com/repobrief/repobrief/internal/ai"
	"github.com/repobrief/repobrief/internal/store"
	"github.com/repobrief/repobrief/pkg/models"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Ingester walks a source tree and turns every kept file into a FileRecord:
// one record per file, summarized by the AI client, upserted into the store.
type Ingester struct {
	Store      store.FileSink
	RepoRoot   string
	ProjectID  string
	Client     ai.Client
	Walker     FileSystemWalker
	FileReader FileReader
}

// New creates a new Ingester instance.
func New(s store.FileSink, repoRoot, projectID string, client ai.Client) *Ingester {
	return &Ingester{
		Store:      s,
		RepoRoot:   repoRoot,
		ProjectID:  projectID,
		Client:     client,
		Walker:     &DefaultFileSystemWalker{},
		FileReader: &DefaultFileReader{},
	}
}

// workItem represents a file to be processed
type workItem struct {
	path    string
	content string
}

// processWorkItem summarizes and upserts a single file.
func (ix *Ingester) processWorkItem(ctx context.Context, item workItem) error {
	relPath := rel(ix.RepoRoot, item.path)

	var summary string
	if ix.Client != nil {
		content := item.content
		// if content is long, we can just summarize the start
		if len(content) > 400_000 {
			content = content[:400_000]
		}
		if s, err := ix.Client.Summarize(ctx, relPath, content); err == nil && strings.TrimSpace(s) != "" {
			summary = s
		} else {
			log.Warn().Err(err).Str("path", item.path).Msg("summarization failed, using heuristic")
			summary = summarizeHeuristic(item.content)
		}
	} else {
		log.Warn().Str("path", item.path).Msg("no summarizer client, using heuristic")
		summary = summarizeHeuristic(item.content)
	}

	f := models.FileRecord{
		ID:         uuid.NewString(),
		ProjectID:  ix.ProjectID,
		FileName:   relPath,
		Summary:    summary,
		SourceCode: item.content,
	}
	log.Info().Str("path", relPath).Int("bytes", len(item.content)).Msg("ingesting file")
	return ix.Store.UpsertFile(ctx, f)
}

// Run walks the repo root and processes every kept file with a bounded
// worker pool.
func (ix *Ingester) Run(ctx context.Context) error {
	numWorkers := runtime.NumCPU()
	if numWorkers > 8 {
		numWorkers = 8 // Cap at 8 to avoid overwhelming the AI API
	}

	log.Info().Int("workers", numWorkers).Str("project", ix.ProjectID).Msg("starting concurrent ingestion")

	workChan := make(chan workItem, numWorkers*2)
	errorChan := make(chan error, 1)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range workChan {
				if err := ix.processWorkItem(ctx, item); err != nil {
					select {
					case errorChan <- err:
					default:
						log.Error().Err(err).Str("path", item.path).Msg("worker processing error")
					}
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(errorChan)
	}()

	walkErr := ix.Walker.Walk(ix.RepoRoot, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			if ShouldSkip(path) {
				return nil
			}

			b, err := ix.FileReader.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to read file")
				return nil
			}

			select {
			case workChan <- workItem{path: path, content: string(b)}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	close(workChan)
	wg.Wait()

	select {
	case err := <-errorChan:
		if err != nil {
			return err
		}
	default:
	}

	return walkErr
}

// summarizeHeuristic provides a simple heuristic summary by truncating the content.
func summarizeHeuristic(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 240 {
		s = s[:240]
	}
	return s
}

// ShouldSkip returns true if the file at path should be skipped.
func ShouldSkip(path string) bool {
	p := strings.ToLower(path)
	if strings.Contains(p, "/vendor/") ||
		strings.Contains(p, "/.git/") ||
		strings.Contains(p, "/node_modules/") ||
		strings.Contains(p, "/target/") ||
		strings.Contains(p, "/build/") ||
		strings.Contains(p, "/dist/") ||
		strings.Contains(p, "/out/") ||
		strings.Contains(p, "/bin/") ||
		strings.Contains(p, "/obj/") ||
		strings.Contains(p, "/.venv/") ||
		strings.Contains(p, "/venv/") ||
		strings.Contains(p, "/__pycache__/") ||
		strings.Contains(p, "/.pytest_cache/") ||
		strings.Contains(p, "/.idea/") ||
		strings.Contains(p, "/coverage/") ||
		strings.Contains(p, "/.cache/") {
		return true
	}
	switch filepath.Ext(p) {
	case ".png", ".jpg", ".jpeg", ".gif", ".pdf", ".webp", ".lock", ".zip", ".svg", ".exe", ".dll", ".sum":
		return true
	}
	return false
}

func rel(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return r
}
