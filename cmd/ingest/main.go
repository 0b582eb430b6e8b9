package main

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/repobrief/repobrief/internal/ai"
	"github.com/repobrief/repobrief/internal/config"
	"github.com/repobrief/repobrief/internal/ingest"
	"github.com/repobrief/repobrief/internal/store"
	"github.com/repobrief/repobrief/pkg/models"
)

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("repobrief-ingest", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	provider := strings.ToLower(cfg.Provider)
	log.Printf("using provider: %s", provider)
	var clientConfig *ai.ClientConfig
	switch provider {
	case "gemini", "google":
		clientConfig = &ai.ClientConfig{
			APIKey:       cfg.APIKey,
			AnswerModel:  cfg.AnswerModel,
			SummaryModel: cfg.SummaryModel,
			ProjectID:    cfg.ProjectID,
			Location:     cfg.Location,
			Provider:     ai.ProviderGemini,
		}
	case "openai":
		clientConfig = &ai.ClientConfig{
			APIKey:       cfg.APIKey,
			AnswerModel:  cfg.AnswerModel,
			SummaryModel: cfg.SummaryModel,
			ProjectID:    cfg.ProjectID,
			Provider:     ai.ProviderOpenAI,
		}
	case "stub":
		clientConfig = &ai.ClientConfig{
			Provider: ai.ProviderStub,
		}
	default:
		log.Fatalf("unsupported provider: %s", cfg.Provider)
	}

	// The in-memory backend makes no sense for a one-shot ingestion run.
	if cfg.Database == "memory" {
		log.Fatal("ingestion requires a persistent database, not the memory store")
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	client, err := ai.NewClient(ctx, clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	projectID := cfg.Project
	if projectID == "" {
		projectID = uuid.NewString()
		log.Printf("no project id given, created %s", projectID)
	}
	name := cfg.ProjectName
	if name == "" {
		name = projectID
	}
	if err := st.EnsureProject(ctx, models.Project{ID: projectID, Name: name}); err != nil {
		log.Fatalf("Failed to ensure project: %v", err)
	}

	ix := ingest.New(st, cfg.RepoRoot, projectID, client)
	if err := ix.Run(ctx); err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}
	log.Printf("ingestion complete for project %s", projectID)
}
