package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/repobrief/repobrief/internal/ai"
	"github.com/repobrief/repobrief/internal/store"
	"github.com/repobrief/repobrief/pkg/models"
)

// Defaults for the retrieval bounds. Both are deliberate small-corpus caps
// and can be raised through configuration; scoring operates on a recent
// subset of the project, not the full corpus.
const (
	DefaultTopK          = 5
	DefaultMaxCandidates = 10
)

// Canned answers the engine degrades to. The UI renders these verbatim, so
// the end user never sees a raw backend error.
const (
	NoFilesAnswer  = "Sorry, no files were found for this project. Please add some files first."
	FallbackAnswer = "Sorry, there was an error generating the answer. Please try again later."
)

// Engine answers natural-language questions about a project's indexed files.
// Each call is an independent, stateless unit of work; the only suspension
// points are the store read and the generation call.
type Engine struct {
	Client        ai.Client
	Store         store.FileStore
	TopK          int
	MaxCandidates int
}

// NewEngine creates an engine with the provided AI client and file store.
// Non-positive bounds fall back to the defaults.
func NewEngine(client ai.Client, st store.FileStore, topK, maxCandidates int) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Engine{Client: client, Store: st, TopK: topK, MaxCandidates: maxCandidates}
}

// Answer runs the full retrieval pass: fetch up to MaxCandidates recent
// files, score them against the question, select the TopK, assemble the
// context, generate an answer, and decorate each citation with matching-line
// evidence. A backend generation failure is absorbed into FallbackAnswer;
// only store failures surface as errors.
func (e *Engine) Answer(ctx context.Context, projectID, question string) (models.Answer, error) {
	question = strings.TrimSpace(question)

	files, err := e.Store.ProjectFiles(ctx, projectID, e.MaxCandidates)
	if err != nil {
		return models.Answer{}, fmt.Errorf("fetch project files: %w", err)
	}
	if len(files) == 0 {
		return models.Answer{
			Answer:          NoFilesAnswer,
			ReferencedFiles: []models.CitedFile{},
		}, nil
	}

	scored := ScoreAll(question, files)
	selected := TopK(scored, e.TopK)
	contextBlock := BuildContext(selected)

	answer, err := e.Client.Generate(ctx, ai.Prompt(question, contextBlock))
	if err != nil {
		log.Error().Err(err).Str("project_id", projectID).Msg("answer generation failed")
		answer = FallbackAnswer
	}

	needles := Needles(question)
	cited := make([]models.CitedFile, 0, len(selected))
	for _, f := range selected {
		lines, contents := MatchingLines(f.SourceCode, needles)
		cited = append(cited, models.CitedFile{
			ID:                   f.ID,
			FileName:             f.FileName,
			Summary:              f.Summary,
			SourceCode:           f.SourceCode,
			MatchingLines:        lines,
			MatchingLineContents: contents,
		})
	}

	return models.Answer{Answer: answer, ReferencedFiles: cited}, nil
}
