package gate

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nocodo/manager/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// RegisterHandler implements POST /api/auth/register: creates a user
// account and, when the user table was empty, applies §4.7's bootstrap
// rule (a "Super Admins" team with entity-level admin on every resource
// type).
func (g *Gate) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, KindInvalidJSON, "malformed JSON body")
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		WriteError(w, KindInvalidRequest, "username cannot be empty")
		return
	}
	if req.Password == "" {
		WriteError(w, KindInvalidRequest, "password is required")
		return
	}

	ctx := r.Context()
	countBefore, err := g.store.CountUsers(ctx)
	if err != nil {
		WriteError(w, KindInternal, "failed to check existing users")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		WriteError(w, KindInternal, "failed to hash password")
		return
	}

	user, err := g.store.CreateUser(ctx, req.Username, req.Email, hash)
	if err != nil {
		WriteError(w, KindAlreadyExists, "username already exists")
		return
	}

	if countBefore == 0 {
		if err := g.store.CreateSuperAdminTeam(ctx, user.ID); err != nil {
			WriteError(w, KindInternal, "failed to bootstrap super admin team")
			return
		}
	}

	resp := userResponse{ID: user.ID, Username: user.Username, Email: user.Email}
	w.Header().Set("Content-Type", "application/json")

	// Registration implies login: the caller gets a usable token
	// without a second round trip.
	if g.jwt != nil {
		token, err := g.jwt.Generate(user)
		if err != nil {
			WriteError(w, KindInternal, "failed to issue token")
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(loginResponse{Token: token, User: resp})
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// LoginHandler implements POST /api/auth/login: validates credentials
// and issues a bearer JWT per §6.
func (g *Gate) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, KindInvalidJSON, "malformed JSON body")
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		WriteError(w, KindInvalidRequest, "username cannot be empty")
		return
	}
	if req.Password == "" {
		WriteError(w, KindInvalidRequest, "password is required")
		return
	}

	ctx := r.Context()
	user, err := g.store.UserByUsername(ctx, req.Username)
	if err != nil {
		WriteError(w, KindUnauthorized, "invalid credentials")
		return
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil || !ok {
		WriteError(w, KindUnauthorized, "invalid credentials")
		return
	}

	if g.jwt == nil {
		WriteError(w, KindInternal, "login is unavailable in local-bypass mode")
		return
	}
	token, err := g.jwt.Generate(user)
	if err != nil {
		WriteError(w, KindInternal, "failed to issue token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(loginResponse{
		Token: token,
		User:  userResponse{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}
