package ai

import (
	"context"
	"errors"
	"strings"
)

// Client provides answer generation for the QA engine and summarization for
// the ingestion pipeline.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Summarize(ctx context.Context, filePath, content string) (string, error)
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	ProviderStub   Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey       string
	AnswerModel  string
	SummaryModel string
	ProjectID    string
	Location     string
	Provider     Provider
}

// NewClient creates a new AI client based on configuration
func NewClient(ctx context.Context, config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderStub:
		return NewStubClient(), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// Prompt composes the single instruction prompt handed to the generation
// backend: fixed framing, the assembled context, then the literal question.
func Prompt(question, context string) string {
	return "You are an AI code assistant. Use the following context from the user's codebase to answer the question.\n\n" +
		"Context:\n" + context + "\n\n" +
		"Question: " + question + "\nAnswer:"
}

// StubClient is a stub implementation of the Client interface for testing
// and local development without credentials.
type StubClient struct{}

// NewStubClient creates a new StubClient
func NewStubClient() *StubClient {
	return &StubClient{}
}

// Generate echoes the question back with a canned preamble.
func (s *StubClient) Generate(ctx context.Context, prompt string) (string, error) {
	q := prompt
	if i := strings.LastIndex(prompt, "Question: "); i >= 0 {
		q = strings.TrimSuffix(prompt[i+len("Question: "):], "\nAnswer:")
	}
	return "Stub answer for: " + strings.TrimSpace(q), nil
}

// Summarize produces a simple heuristic summary: the first substantial
// comment line, or a generic label.
func (s *StubClient) Summarize(ctx context.Context, filePath, content string) (string, error) {
	lines := strings.Split(content, "\n")
	for _, line := range lines[:min(5, len(lines))] {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			if len(line) > 10 {
				return line, nil
			}
		}
	}
	return "Code file: " + filePath, nil
}
