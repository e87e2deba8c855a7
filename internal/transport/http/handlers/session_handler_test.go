package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	memoryrepo "github.com/passgage/auth-gateway/internal/repository/memory"
	"github.com/passgage/auth-gateway/internal/transport/http/middleware"
	"github.com/passgage/auth-gateway/internal/usecase"
)

func newSessionTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cipher := newHandlerTestCipher(t)
	sessions := usecase.NewSessionManager(memoryrepo.NewSessionStore(), cipher, time.Hour, nil)
	monitor := usecase.NewSecurityMonitor(usecase.SecurityConfig{}, memoryrepo.NewAttemptStore(), nil)
	handler := NewSessionHandler(sessions, monitor, nil)

	engine := gin.New()
	engine.Use(middleware.EnrichContext(), middleware.CallerIdentity())

	group := engine.Group("/api/v1/sessions")
	group.POST("", handler.Create)
	group.GET("/stats", handler.Stats)
	group.GET("/:id", handler.Get)
	group.POST("/:id/mode", handler.SwitchMode)
	group.POST("/:id/tokens", handler.UpdateTokens)
	group.DELETE("/:id", handler.Delete)

	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func createTestSession(t *testing.T, engine *gin.Engine, body string) string {
	t.Helper()

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/sessions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created CreateSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("expected a session id")
	}
	return created.SessionID
}

func TestSessionCreateAndIntrospect(t *testing.T) {
	engine := newSessionTestRouter(t)

	id := createTestSession(t, engine, `{"api_key":"pk_live_secret","user_email":"worker@example.com","user_password":"hunter2"}`)

	rec := doJSON(t, engine, http.MethodGet, "/api/v1/sessions/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var view SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal introspection: %v", err)
	}
	if view.Mode != "company" {
		t.Fatalf("expected company mode, got %s", view.Mode)
	}
	if !view.HasAPIKey {
		t.Fatal("expected has_api_key true")
	}

	// Raw credential values never appear in the introspection body.
	body := rec.Body.String()
	for _, secret := range []string{"pk_live_secret", "hunter2"} {
		if strings.Contains(body, secret) {
			t.Fatalf("introspection leaked %q: %s", secret, body)
		}
	}
}

func TestSessionCreateRejectsEmptyBundle(t *testing.T) {
	engine := newSessionTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/sessions", `{"user_password":"only-a-password"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSessionSwitchModeDenied(t *testing.T) {
	engine := newSessionTestRouter(t)

	id := createTestSession(t, engine, `{"user_email":"worker@example.com","user_password":"hunter2"}`)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/sessions/"+id+"/mode", `{"mode":"company"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSessionSwitchMode(t *testing.T) {
	engine := newSessionTestRouter(t)

	id := createTestSession(t, engine, `{"api_key":"pk","user_email":"worker@example.com","user_password":"hunter2"}`)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/sessions/"+id+"/mode", `{"mode":"user"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var view SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if view.Mode != "user" {
		t.Fatalf("expected user mode, got %s", view.Mode)
	}
}

func TestSessionUpdateTokens(t *testing.T) {
	engine := newSessionTestRouter(t)

	id := createTestSession(t, engine, `{"user_email":"worker@example.com"}`)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/sessions/"+id+"/tokens", `{"jwt_token":"jwt-1","refresh_token":"refresh-1"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/sessions/"+id, "")
	var view SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal introspection: %v", err)
	}
	if !view.HasTokens {
		t.Fatal("expected has_tokens true after the update")
	}
}

func TestSessionUpdateTokensMissingSession(t *testing.T) {
	engine := newSessionTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/sessions/no-such-session/tokens", `{"jwt_token":"jwt-1"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSessionDelete(t *testing.T) {
	engine := newSessionTestRouter(t)

	id := createTestSession(t, engine, `{"api_key":"pk"}`)

	rec := doJSON(t, engine, http.MethodDelete, "/api/v1/sessions/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodGet, "/api/v1/sessions/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}

	// Deleting again is not an error.
	rec = doJSON(t, engine, http.MethodDelete, "/api/v1/sessions/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on repeat delete, got %d", rec.Code)
	}
}

func TestSessionStats(t *testing.T) {
	engine := newSessionTestRouter(t)

	createTestSession(t, engine, `{"api_key":"pk"}`)
	createTestSession(t, engine, `{"user_email":"worker@example.com"}`)

	rec := doJSON(t, engine, http.MethodGet, "/api/v1/sessions/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats SessionStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.ActiveSessions != 2 {
		t.Fatalf("expected 2 active sessions, got %d", stats.ActiveSessions)
	}
}
