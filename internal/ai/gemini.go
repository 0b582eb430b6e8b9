package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type GeminiClient struct {
	config *ClientConfig
	client *genai.Client
}

// NewGeminiClient creates a new client for the Google Gemini API.
func NewGeminiClient(ctx context.Context, config *ClientConfig) (*GeminiClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	if config.AnswerModel == "" {
		config.AnswerModel = "gemini-1.5-flash"
	}
	if config.SummaryModel == "" {
		config.SummaryModel = "gemini-2.0-flash"
	}

	cc := genai.ClientConfig{}
	if strings.TrimSpace(config.APIKey) != "" {
		cc.APIKey = config.APIKey
	}
	if strings.TrimSpace(config.ProjectID) != "" {
		cc.Backend = genai.BackendVertexAI
		cc.Project = config.ProjectID
		if config.Location == "" {
			config.Location = "us-central1"
		}
		cc.Location = config.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		config: config,
		client: client,
	}, nil
}

// Generate produces an answer for the composed prompt. A single attempt, no
// retry; the caller decides how to degrade on failure.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.config.AnswerModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no answer returned")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	answer := strings.TrimSpace(b.String())
	if answer == "" {
		return "", errors.New("empty answer returned")
	}
	return answer, nil
}

// Summarize asks Gemini for a short description of one source file.
func (c *GeminiClient) Summarize(ctx context.Context, filePath, content string) (string, error) {
	// Keep request small; the model only needs a taste
	const maxInput = 8000
	if len(content) > maxInput {
		content = content[:maxInput]
	}

	sys := genai.Text("You are a concise code summarizer. Write at most 240 characters, 1-2 sentences, no code blocks, no backticks. Mention the file's purpose and notable actions. Prefer verbs.")
	temp := float32(0.2)
	cfg := genai.GenerateContentConfig{
		Temperature:       &temp,
		MaxOutputTokens:   120,
		SystemInstruction: sys[0],
	}

	userPrompt := "Path: " + filePath + "\n---\n" + content
	resp, err := c.client.Models.GenerateContent(ctx, c.config.SummaryModel, genai.Text(userPrompt), &cfg)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no summary returned")
	}

	summary := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	summary = strings.ReplaceAll(summary, "\n", " ")
	return summary, nil
}
