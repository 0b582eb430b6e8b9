package models

import "time"

// Project scopes a set of indexed files and saved questions. Owner is the
// login of the user allowed to save answers when auth is enabled; an empty
// owner means the project is open.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FileRecord is one indexed source file belonging to a project. Records are
// produced by the ingestion pipeline and read-only afterwards.
type FileRecord struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	FileName   string    `json:"fileName"`
	Summary    string    `json:"summary"`
	SourceCode string    `json:"sourceCode"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ScoredFile pairs a FileRecord with its relevance score for one question.
// Request-scoped, never persisted.
type ScoredFile struct {
	File  FileRecord
	Score float64
}

// CitedFile is a file returned alongside an answer, optionally annotated
// with matching-line evidence. MatchingLines holds 1-based line numbers in
// strictly ascending order without duplicates; MatchingLineContents is
// index-aligned with it and holds the literal text of each line.
type CitedFile struct {
	ID                   string   `json:"id"`
	FileName             string   `json:"fileName"`
	Summary              string   `json:"summary"`
	SourceCode           string   `json:"sourceCode"`
	MatchingLines        []int    `json:"matchingLines,omitempty"`
	MatchingLineContents []string `json:"matchingLineContents,omitempty"`
}

// Answer is the result of one question-answering request.
type Answer struct {
	Answer          string      `json:"answer"`
	ReferencedFiles []CitedFile `json:"referencedFiles"`
}

// SavedQuestion is a persisted question/answer/citation triple, frozen at
// save time and immutable afterwards.
type SavedQuestion struct {
	ID              string      `json:"id"`
	ProjectID       string      `json:"projectId"`
	Question        string      `json:"question"`
	Answer          string      `json:"answer"`
	ReferencedFiles []CitedFile `json:"referencedFiles"`
	CreatedAt       time.Time   `json:"createdAt"`
}
