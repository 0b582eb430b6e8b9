package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/repobrief/repobrief/internal/ai"
	"github.com/repobrief/repobrief/internal/auth"
	"github.com/repobrief/repobrief/internal/config"
	"github.com/repobrief/repobrief/internal/qa"
	"github.com/repobrief/repobrief/internal/store"
	"github.com/repobrief/repobrief/pkg/models"
)

type askRequest struct {
	Question  string `json:"question"`
	ProjectID string `json:"projectId"`
}

type saveRequest struct {
	ProjectID       string             `json:"projectId"`
	Question        string             `json:"question"`
	Answer          string             `json:"answer"`
	ReferencedFiles []models.CitedFile `json:"referencedFiles"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Answer  string `json:"answer,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Create flagset for configuration
	fs := pflag.NewFlagSet("repobrief-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting repobrief api")

	// Create AI client configuration
	var clientConfig *ai.ClientConfig
	switch strings.ToLower(cfg.Provider) {
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

	authSvc := auth.New(
		cfg.Auth.JwtSecret,
		cfg.Auth.GithubClientID,
		cfg.Auth.GithubClientSecret,
		cfg.Auth.GithubRedirectURL,
		cfg.Auth.GithubAllowedOrg,
		cfg.Auth.Enabled,
	)

	ctx := context.Background()
	var st store.Backend
	if cfg.Database == "memory" {
		logger.Warn().Msg("using in-memory store, data will not survive restarts")
		st = store.NewMemory()
	} else {
		pg, err := store.New(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		st = pg
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	client, err := ai.NewClient(ctx, clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	engine := qa.NewEngine(client, st, cfg.TopK, cfg.MaxCandidates)
	logger.Info().Int("top_k", engine.TopK).Int("max_candidates", engine.MaxCandidates).Str("answer_model", clientConfig.AnswerModel).Msg("qa engine initialized")

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	// Auth status endpoint (always available)
	mux.HandleFunc("/auth/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": authSvc.Enabled()})
	})

	// Authentication endpoints (only if auth is enabled)
	if authSvc.Enabled() {
		log.Println("Authentication is ENABLED")

		mux.HandleFunc("/auth/github", func(w http.ResponseWriter, r *http.Request) {
			state := authSvc.GenerateState()

			// Store state in cookie for validation
			http.SetCookie(w, &http.Cookie{
				Name:     "oauth_state",
				Value:    state,
				Path:     "/",
				MaxAge:   600, // 10 minutes
				HttpOnly: true,
				Secure:   strings.HasPrefix(r.Header.Get("X-Forwarded-Proto"), "https"),
				SameSite: http.SameSiteLaxMode,
			})

			http.Redirect(w, r, authSvc.LoginURL(state), http.StatusTemporaryRedirect)
		})

		mux.HandleFunc("/auth/callback", func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			state := r.URL.Query().Get("state")

			stateCookie, err := r.Cookie("oauth_state")
			if err != nil || stateCookie.Value != state {
				http.Error(w, "Invalid state parameter", http.StatusBadRequest)
				return
			}

			// Clear state cookie
			http.SetCookie(w, &http.Cookie{
				Name:   "oauth_state",
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})

			if code == "" {
				http.Error(w, "Missing code parameter", http.StatusBadRequest)
				return
			}

			accessToken, err := authSvc.ExchangeCode(code)
			if err != nil {
				http.Error(w, "Failed to exchange code for token", http.StatusInternalServerError)
				return
			}

			user, err := authSvc.FetchUser(accessToken)
			if err != nil {
				http.Error(w, "Failed to get user info: "+err.Error(), http.StatusInternalServerError)
				return
			}

			token, err := authSvc.GenerateJWT(user)
			if err != nil {
				http.Error(w, "Failed to generate token", http.StatusInternalServerError)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     "auth_token",
				Value:    token,
				Path:     "/",
				MaxAge:   86400, // 24 hours
				HttpOnly: true,
				Secure:   strings.HasPrefix(r.Header.Get("X-Forwarded-Proto"), "https"),
				SameSite: http.SameSiteLaxMode,
			})

			writeJSON(w, http.StatusOK, auth.AuthResponse{User: *user, Token: token})
		})

		mux.HandleFunc("/auth/me", authSvc.Middleware(func(w http.ResponseWriter, r *http.Request) {
			user := auth.UserFromRequest(r)
			if user == nil {
				http.Error(w, "No authentication token", http.StatusUnauthorized)
				return
			}
			writeJSON(w, http.StatusOK, auth.AuthResponse{User: *user})
		}))

		mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "POST" {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:   "auth_token",
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})
			w.WriteHeader(http.StatusOK)
		})
	} else {
		log.Println("Authentication is DISABLED - running in open mode")
	}

	mux.HandleFunc("/projects", authSvc.Middleware(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		projects, err := st.GetProjects(ctx)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	}))

	mux.HandleFunc("/qa", authSvc.Middleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		start := time.Now()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
		if strings.TrimSpace(req.Question) == "" || req.ProjectID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing required fields: question and projectId"})
			return
		}

		res, err := engine.Answer(r.Context(), req.ProjectID, req.Question)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("project_id", req.ProjectID).Msg("qa request failed")
			// The answer field is populated even on error so the UI can
			// render something.
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "Error generating answer",
				Message: err.Error(),
				Answer:  qa.FallbackAnswer,
			})
			return
		}

		writeJSON(w, http.StatusOK, res)
		hlog.FromRequest(r).Info().Str("path", "/qa").Str("project_id", req.ProjectID).Int("cited", len(res.ReferencedFiles)).Dur("dur", time.Since(start)).Msg("served")
	}))

	mux.HandleFunc("/questions", authSvc.Middleware(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			projectID := r.URL.Query().Get("projectId")
			if projectID == "" {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing query parameter projectId"})
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			questions, err := st.ListQuestions(ctx, projectID)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list saved questions", Message: err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, questions)

		case http.MethodPost:
			var req saveRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
				return
			}
			if req.ProjectID == "" || strings.TrimSpace(req.Question) == "" || req.Answer == "" {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing required fields: projectId, question and answer"})
				return
			}

			var caller string
			if user := auth.UserFromRequest(r); user != nil {
				caller = user.Login
			}

			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			saved, err := st.SaveQuestion(ctx, req.ProjectID, req.Question, req.Answer, req.ReferencedFiles, caller)
			if err != nil {
				switch {
				case errors.Is(err, store.ErrProjectNotFound):
					writeJSON(w, http.StatusNotFound, errorResponse{Error: "project not found"})
				case errors.Is(err, store.ErrNotAuthorized):
					writeJSON(w, http.StatusForbidden, errorResponse{Error: "not authorized for project"})
				default:
					writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to save answer", Message: err.Error()})
				}
				return
			}
			writeJSON(w, http.StatusCreated, saved)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}
