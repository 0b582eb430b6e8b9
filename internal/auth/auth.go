package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

type GithubUser struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type AuthResponse struct {
	User  GithubUser `json:"user"`
	Token string     `json:"token,omitempty"`
}

type Claims struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	jwt.RegisteredClaims
}

// Service holds the auth configuration. A nil or disabled Service lets every
// request through anonymously.
type Service struct {
	jwtSecret    []byte
	clientID     string
	clientSecret string
	redirectURL  string
	allowedOrg   string
	enabled      bool

	http *http.Client
}

// New creates an auth service. When enabled is false all middleware becomes
// pass-through and callers are anonymous.
func New(jwtSecret, clientID, clientSecret, redirectURL, allowedOrg string, enabled bool) *Service {
	return &Service{
		jwtSecret:    []byte(jwtSecret),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		allowedOrg:   allowedOrg,
		enabled:      enabled,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether authentication is enforced.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// GenerateState creates a random state parameter for OAuth
func (s *Service) GenerateState() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// Predictable fallback, should rarely happen
		return "fallback-state-" + fmt.Sprintf("%d", time.Now().Unix())
	}
	return base64.URLEncoding.EncodeToString(b)
}

// LoginURL returns the GitHub OAuth login URL.
func (s *Service) LoginURL(state string) string {
	scope := "read:user,user:email"
	if s.allowedOrg != "" {
		scope += ",read:org"
	}
	return fmt.Sprintf(
		"https://github.com/login/oauth/authorize?client_id=%s&redirect_uri=%s&scope=%s&state=%s",
		s.clientID, s.redirectURL, scope, state,
	)
}

// ExchangeCode exchanges an OAuth code for an access token.
func (s *Service) ExchangeCode(code string) (string, error) {
	data := fmt.Sprintf(
		"client_id=%s&client_secret=%s&code=%s",
		s.clientID, s.clientSecret, code,
	)

	req, err := http.NewRequest("POST", "https://github.com/login/oauth/access_token", strings.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if accessToken, ok := result["access_token"].(string); ok {
		return accessToken, nil
	}
	return "", fmt.Errorf("failed to get access token")
}

// FetchUser fetches user info from the GitHub API, enforcing org membership
// when the service restricts logins to an organization.
func (s *Service) FetchUser(accessToken string) (*GithubUser, error) {
	req, err := http.NewRequest("GET", "https://api.github.com/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var user GithubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}

	if s.allowedOrg != "" && !s.isOrgMember(accessToken, user.Login) {
		return nil, fmt.Errorf("user is not a member of the required organization")
	}
	return &user, nil
}

func (s *Service) isOrgMember(accessToken, username string) bool {
	url := fmt.Sprintf("https://api.github.com/orgs/%s/members/%s", s.allowedOrg, username)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := s.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	// 204 means public member, 200 means private member
	return resp.StatusCode == 200 || resp.StatusCode == 204
}

// GenerateJWT creates a signed token for the user, valid for 24 hours.
func (s *Service) GenerateJWT(user *GithubUser) (string, error) {
	claims := Claims{
		Login:     user.Login,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.Login,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateJWT validates and parses a token.
func (s *Service) ValidateJWT(tokenString string) (*GithubUser, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return &GithubUser{
			Login:     claims.Login,
			Name:      claims.Name,
			Email:     claims.Email,
			AvatarURL: claims.AvatarURL,
		}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// tokenFromRequest extracts the bearer token from the Authorization header
// or the auth_token cookie.
func tokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware validates the caller's JWT and stores the user in the request
// context. When auth is disabled it passes every request through.
func (s *Service) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		user, err := s.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// UserFromRequest extracts the authenticated user from the request context.
// Returns nil for anonymous callers.
func UserFromRequest(r *http.Request) *GithubUser {
	if user, ok := r.Context().Value(UserContextKey).(*GithubUser); ok {
		return user
	}
	return nil
}
