package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testService(enabled bool) *Service {
	return New("test-secret", "client-id", "client-secret", "http://localhost/callback", "", enabled)
}

func TestJWT_RoundTrip(t *testing.T) {
	s := testService(true)
	user := &GithubUser{
		Login:     "octocat",
		Name:      "The Octocat",
		Email:     "octocat@example.com",
		AvatarURL: "https://example.com/avatar.png",
	}

	token, err := s.GenerateJWT(user)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	got, err := s.ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT failed: %v", err)
	}
	if got.Login != user.Login || got.Name != user.Name || got.Email != user.Email || got.AvatarURL != user.AvatarURL {
		t.Errorf("round-tripped user = %+v, want %+v", got, user)
	}
}

func TestValidateJWT_Errors(t *testing.T) {
	s := testService(true)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage token", "not-a-token"},
		{"empty token", ""},
		{"token signed with another secret", mustSign(t, testService(true).withSecret("other-secret"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.ValidateJWT(tt.token); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

// withSecret returns a copy of the service with a different signing secret.
func (s *Service) withSecret(secret string) *Service {
	c := *s
	c.jwtSecret = []byte(secret)
	return &c
}

func mustSign(t *testing.T, s *Service) string {
	t.Helper()
	token, err := s.GenerateJWT(&GithubUser{Login: "octocat"})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return token
}

func TestMiddleware(t *testing.T) {
	okHandler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	t.Run("disabled auth passes through", func(t *testing.T) {
		s := testService(false)
		req := httptest.NewRequest("GET", "/qa", nil)
		rec := httptest.NewRecorder()

		s.Middleware(okHandler)(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("missing token rejected", func(t *testing.T) {
		s := testService(true)
		req := httptest.NewRequest("GET", "/qa", nil)
		rec := httptest.NewRecorder()

		s.Middleware(okHandler)(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		s := testService(true)
		req := httptest.NewRequest("GET", "/qa", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rec := httptest.NewRecorder()

		s.Middleware(okHandler)(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid bearer token attaches user", func(t *testing.T) {
		s := testService(true)
		token := mustSign(t, s)

		var seen *GithubUser
		handler := func(w http.ResponseWriter, r *http.Request) {
			seen = UserFromRequest(r)
			w.WriteHeader(http.StatusOK)
		}

		req := httptest.NewRequest("POST", "/questions", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		s.Middleware(handler)(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if seen == nil || seen.Login != "octocat" {
			t.Errorf("user from context = %+v, want octocat", seen)
		}
	})

	t.Run("valid cookie token accepted", func(t *testing.T) {
		s := testService(true)
		token := mustSign(t, s)

		req := httptest.NewRequest("GET", "/questions", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
		rec := httptest.NewRecorder()

		s.Middleware(okHandler)(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestLoginURL(t *testing.T) {
	s := testService(true)
	url := s.LoginURL("state123")

	for _, want := range []string{
		"client_id=client-id",
		"state=state123",
		"scope=read:user,user:email",
	} {
		if !strings.Contains(url, want) {
			t.Errorf("login URL missing %q: %s", want, url)
		}
	}
	if strings.Contains(url, "read:org") {
		t.Error("org scope should not be requested without an allowed org")
	}

	withOrg := New("secret", "id", "sec", "http://cb", "my-org", true)
	if !strings.Contains(withOrg.LoginURL("s"), "read:org") {
		t.Error("org scope should be requested when an allowed org is set")
	}
}

func TestEnabled(t *testing.T) {
	if testService(false).Enabled() {
		t.Error("disabled service reports enabled")
	}
	if !testService(true).Enabled() {
		t.Error("enabled service reports disabled")
	}
	var nilSvc *Service
	if nilSvc.Enabled() {
		t.Error("nil service must report disabled")
	}
}
