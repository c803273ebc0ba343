package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nocodo/manager/internal/agentloop"
	"github.com/nocodo/manager/internal/gate"
	"github.com/nocodo/manager/internal/metrics"
	"github.com/nocodo/manager/internal/sessionstore"
	"github.com/nocodo/manager/pkg/models"
)

// newHTTPServer builds the daemon's HTTP surface: account bootstrap
// (register/login), a health check, a Prometheus scrape endpoint, and the
// one session-driving route the Agent Execution Loop is exercised
// through. Full route wiring for every entity is outside this core's
// scope; this is the minimal boundary the core needs to be reachable.
func newHTTPServer(addr string, g *gate.Gate, loop *agentloop.Loop, store sessionstore.Store, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", g.RegisterHandler)
	mux.HandleFunc("POST /api/auth/login", g.LoginHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	sessionsRoute := gate.RouteAuth{
		ResourceType: models.ResourceAISession,
		Action:       models.ActionWrite,
	}
	mux.Handle("POST /api/sessions", g.Protect(sessionsRoute, sessionHandler(loop, store, m)))

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
}

type createSessionRequest struct {
	AgentKind string `json:"agent_kind"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
}

type createSessionResponse struct {
	SessionID        string `json:"session_id"`
	Text             string `json:"text,omitempty"`
	WaitingForUser   bool   `json:"waiting_for_user"`
	QuestionToolCall string `json:"question_tool_call,omitempty"`
}

// sessionHandler creates a Session and drives one Execute call of the
// Agent Execution Loop against it, per §4.2/§4.4.
func sessionHandler(loop *agentloop.Loop, store sessionstore.Store, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			gate.WriteError(w, gate.KindInvalidJSON, "malformed JSON body")
			return
		}
		if req.Prompt == "" {
			gate.WriteError(w, gate.KindInvalidRequest, "prompt is required")
			return
		}

		session := &models.Session{
			ID:        uuid.NewString(),
			Tool:      req.AgentKind,
			Provider:  req.Provider,
			Model:     req.Model,
			Status:    models.SessionRunning,
			StartedAt: time.Now(),
		}

		ctx := r.Context()
		if err := store.CreateSession(ctx, session); err != nil {
			gate.WriteError(w, gate.KindInternal, "failed to create session")
			return
		}

		start := time.Now()
		outcome, err := loop.Execute(ctx, session.ID, req.Prompt)
		m.ObserveIteration(req.AgentKind, time.Since(start))
		if err != nil {
			gate.WriteError(w, gate.KindInternal, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(createSessionResponse{
			SessionID:        session.ID,
			Text:             outcome.Text,
			WaitingForUser:   outcome.WaitingForUser,
			QuestionToolCall: outcome.QuestionToolCall,
		})
	}
}
