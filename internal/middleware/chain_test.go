package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sproutly/internal/auth"
)

// newChainRouter は本番と同じ順序でミドルウェアを組んだchi.Routerを返す。
func newChainRouter(t *testing.T, verifier auth.Verifier, logBuf *bytes.Buffer) chi.Router {
	t.Helper()

	rl := NewRateLimiter(DefaultRateLimiterConfig())

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(newTestLogger(logBuf), nil))
	r.Use(NewRecoveryMiddleware())
	r.Use(NewSecurityHeadersMiddleware("https://project.supabase.co"))
	r.Use(NewCORSMiddleware(nil))
	r.Use(NewClientRateLimitMiddleware(100, 15*time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Use(NewBearerAuthMiddleware(verifier, nil, nil))
		r.Use(rl.GeneralMiddleware())
		r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			WriteJSON(w, http.StatusOK, map[string]string{"user": userID})
		})
		r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("handler exploded")
		})
	})
	return r
}

func TestMiddlewareChain_AuthenticatedRequest(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(ctx context.Context, authorization string) (string, error) {
			return "user-chain", nil
		},
	}
	var logBuf bytes.Buffer
	r := newChainRouter(t, verifier, &logBuf)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Origin", "https://garden.example")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["user"] != "user-chain" {
		t.Errorf("user = %q, want %q", body["user"], "user-chain")
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected Content-Security-Policy header")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://garden.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	entry := decodeLogEntry(t, &logBuf)
	if entry["user_id"] != "user-chain" {
		t.Errorf("logged user_id = %v, want %q", entry["user_id"], "user-chain")
	}
}

func TestMiddlewareChain_UnauthenticatedRequest_Returns401(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(ctx context.Context, authorization string) (string, error) {
			return "", auth.ErrMissingCredential
		},
	}
	var logBuf bytes.Buffer
	r := newChainRouter(t, verifier, &logBuf)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/whoami", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	// 401でもセキュリティヘッダーは付与される
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on 401 response")
	}
}

func TestMiddlewareChain_PanicIsRecoveredAndLogged(t *testing.T) {
	verifier := &mockVerifier{
		verifyFn: func(ctx context.Context, authorization string) (string, error) {
			return "user-panic", nil
		},
	}
	var logBuf bytes.Buffer
	r := newChainRouter(t, verifier, &logBuf)

	req := httptest.NewRequest(http.MethodGet, "/api/panic", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	entry := decodeLogEntry(t, &logBuf)
	if status := int(entry["status"].(float64)); status != http.StatusInternalServerError {
		t.Errorf("logged status = %d, want 500", status)
	}
}
