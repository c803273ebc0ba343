package gate

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nocodo/manager/internal/auth"
	"github.com/nocodo/manager/internal/authz"
	"github.com/nocodo/manager/pkg/models"
)

func newTestGate(t *testing.T, secret string) (*Gate, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	var jwt *auth.JWTService
	if secret != "" {
		jwt = auth.NewJWTService(secret)
	}
	return New(jwt, authz.New(store), store), store
}

func registerBody(t *testing.T, username, password, email string) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(registerRequest{Username: username, Password: password, Email: email})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewBuffer(b)
}

func loginBody(t *testing.T, username, password string) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewBuffer(b)
}

func TestRegister_FirstUserCreatesAccount(t *testing.T) {
	g, store := newTestGate(t, "test-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "alice", "SecurePass123!", "alice@example.com"))
	rec := httptest.NewRecorder()
	g.RegisterHandler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	count, _ := store.CountUsers(req.Context())
	if count != 1 {
		t.Fatalf("expected 1 user, got %d", count)
	}
}

func TestRegister_FirstUserGetsSuperAdminPermissions(t *testing.T) {
	g, store := newTestGate(t, "test-secret")
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "alice", "SecurePass123!", "alice@example.com"))
	rec := httptest.NewRecorder()
	g.RegisterHandler(rec, req)

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected registration to imply login and return a token")
	}

	engine := authz.New(store)
	for _, rt := range models.AllResourceTypes {
		ok, err := engine.CheckPermission(req.Context(), resp.User.ID, rt, nil, models.ActionAdmin)
		if err != nil || !ok {
			t.Errorf("expected bootstrap admin on %s, got %v err=%v", rt, ok, err)
		}
	}
}

func TestRegister_SecondUserNotBootstrapped(t *testing.T) {
	g, store := newTestGate(t, "test-secret")
	first := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "alice", "SecurePass123!", ""))
	g.RegisterHandler(httptest.NewRecorder(), first)

	secondReq := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "bob", "AnotherPass456!", ""))
	rec := httptest.NewRecorder()
	g.RegisterHandler(rec, secondReq)

	var resp loginResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)

	engine := authz.New(store)
	ok, _ := engine.CheckPermission(secondReq.Context(), resp.User.ID, models.ResourceProject, nil, models.ActionAdmin)
	if ok {
		t.Error("second registered user should not receive bootstrap admin permissions")
	}
}

func TestRegister_DuplicateUsernameReturnsAlreadyExists(t *testing.T) {
	g, _ := newTestGate(t, "test-secret")
	first := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "alice", "SecurePass123!", "alice@example.com"))
	g.RegisterHandler(httptest.NewRecorder(), first)

	dup := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "alice", "AnotherPass456!", "alice2@example.com"))
	rec := httptest.NewRecorder()
	g.RegisterHandler(rec, dup)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRegister_EmptyUsernameReturnsInvalidRequest(t *testing.T) {
	g, _ := newTestGate(t, "test-secret")
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "", "SecurePass123!", ""))
	rec := httptest.NewRecorder()
	g.RegisterHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRegister_EmptyPasswordReturnsInvalidRequest(t *testing.T) {
	g, _ := newTestGate(t, "test-secret")
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "testuser", "", ""))
	rec := httptest.NewRecorder()
	g.RegisterHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLogin_ValidCredentialsReturnsToken(t *testing.T) {
	g, _ := newTestGate(t, "test-secret")
	reg := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "alice", "SecurePass123!", "alice@example.com"))
	g.RegisterHandler(httptest.NewRecorder(), reg)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", loginBody(t, "alice", "SecurePass123!"))
	rec := httptest.NewRecorder()
	g.LoginHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected non-empty token")
	}
	if resp.User.Username != "alice" {
		t.Fatalf("expected username alice, got %q", resp.User.Username)
	}

	claims, err := auth.NewJWTService("test-secret").Validate(resp.Token)
	if err != nil {
		t.Fatalf("expected issued token to validate: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected claims username alice, got %q", claims.Username)
	}
}

func TestLogin_InvalidUsernameReturns401(t *testing.T) {
	g, _ := newTestGate(t, "test-secret")
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", loginBody(t, "nonexistent", "SomePassword123!"))
	rec := httptest.NewRecorder()
	g.LoginHandler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogin_InvalidPasswordReturns401(t *testing.T) {
	g, _ := newTestGate(t, "test-secret")
	reg := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "alice", "SecurePass123!", ""))
	g.RegisterHandler(httptest.NewRecorder(), reg)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", loginBody(t, "alice", "WrongPassword456!"))
	rec := httptest.NewRecorder()
	g.LoginHandler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func protectedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func routeOnAnyProject() RouteAuth {
	return RouteAuth{ResourceType: models.ResourceProject, Action: models.ActionRead}
}

func TestProtect_ValidTokenSucceeds(t *testing.T) {
	g, store := newTestGate(t, "test-secret")
	reg := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "alice", "SecurePass123!", ""))
	rec := httptest.NewRecorder()
	g.RegisterHandler(rec, reg)
	var regResp userResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &regResp)
	_ = store

	login := httptest.NewRequest(http.MethodPost, "/api/auth/login", loginBody(t, "alice", "SecurePass123!"))
	loginRec := httptest.NewRecorder()
	g.LoginHandler(loginRec, login)
	var loginResp loginResponse
	_ = json.Unmarshal(loginRec.Body.Bytes(), &loginResp)

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	rec2 := httptest.NewRecorder()
	g.Protect(routeOnAnyProject(), protectedHandler()).ServeHTTP(rec2, req)

	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}
}

func TestProtect_MissingAuthHeaderReturns401(t *testing.T) {
	g, _ := newTestGate(t, "test-secret")
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	rec := httptest.NewRecorder()
	g.Protect(routeOnAnyProject(), protectedHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProtect_MalformedAuthHeaderReturns401(t *testing.T) {
	g, _ := newTestGate(t, "test-secret")
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "InvalidFormat token123")
	rec := httptest.NewRecorder()
	g.Protect(routeOnAnyProject(), protectedHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProtect_MalformedTokenReturns401(t *testing.T) {
	g, _ := newTestGate(t, "test-secret")
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer invalid.token.here")
	rec := httptest.NewRecorder()
	g.Protect(routeOnAnyProject(), protectedHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProtect_WrongSecretTokenReturns401(t *testing.T) {
	g, _ := newTestGate(t, "test-secret")
	reg := httptest.NewRequest(http.MethodPost, "/api/auth/register", registerBody(t, "alice", "SecurePass123!", ""))
	g.RegisterHandler(httptest.NewRecorder(), reg)
	login := httptest.NewRequest(http.MethodPost, "/api/auth/login", loginBody(t, "alice", "SecurePass123!"))
	loginRec := httptest.NewRecorder()
	g.LoginHandler(loginRec, login)
	var loginResp loginResponse
	_ = json.Unmarshal(loginRec.Body.Bytes(), &loginResp)

	otherGate, _ := newTestGate(t, "a-different-secret")
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	rec := httptest.NewRecorder()
	otherGate.Protect(routeOnAnyProject(), protectedHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProtect_LocalBypassModePermitsWithoutToken(t *testing.T) {
	g, store := newTestGate(t, "")
	store.AddTeamMember("team", LocalUserID)
	store.Grant(models.Permission{TeamID: "team", ResourceType: models.ResourceProject, ResourceID: nil, Action: models.ActionRead})

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	rec := httptest.NewRecorder()
	g.Protect(routeOnAnyProject(), protectedHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 in bypass mode with local user permission, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProtect_LocalBypassModeResolvesLocalUser(t *testing.T) {
	g, store := newTestGate(t, "")
	store.AddTeamMember("team", LocalUserID)
	store.Grant(models.Permission{TeamID: "team", ResourceType: models.ResourceProject, ResourceID: nil, Action: models.ActionAdmin})

	var captured Identity
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		captured = id
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	rec := httptest.NewRecorder()
	g.Protect(routeOnAnyProject(), handler).ServeHTTP(rec, req)

	if captured.UserID != LocalUserID {
		t.Fatalf("expected local user id, got %q", captured.UserID)
	}
}

func TestProtect_DeniesWithoutPermission(t *testing.T) {
	g, store := newTestGate(t, "")
	_ = store
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	rec := httptest.NewRecorder()
	g.Protect(RouteAuth{ResourceType: models.ResourceProject, Action: models.ActionAdmin}, protectedHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
