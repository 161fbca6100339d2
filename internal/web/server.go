// Package web exposes the realtime WebSocket endpoint and the
// collaborator-facing HTTP API consumed by the dispatch workflow.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/akontos/sirena/internal/audit"
	"github.com/akontos/sirena/internal/auth"
	"github.com/akontos/sirena/internal/broadcast"
	"github.com/akontos/sirena/internal/config"
	"github.com/akontos/sirena/internal/registry"
	"github.com/akontos/sirena/internal/silent"
)

type Server struct {
	reg       *registry.Registry
	bcast     *broadcast.Broadcaster
	manager   *silent.Manager
	audit     *audit.Store // nil when the audit trail is disabled
	resolver  *auth.Resolver
	cfg       config.WebConfig
	version   string
	startedAt time.Time
}

func NewServer(reg *registry.Registry, bcast *broadcast.Broadcaster, manager *silent.Manager, auditStore *audit.Store, resolver *auth.Resolver, cfg config.WebConfig, version string) *Server {
	return &Server{
		reg:       reg,
		bcast:     bcast,
		manager:   manager,
		audit:     auditStore,
		resolver:  resolver,
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	// Realtime endpoint; authenticates itself via the token query param
	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/health", s.handleHealth)
	s.registerAPI(mux)

	handler := s.withMiddleware(mux)
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		// The collaborator API requires the service token; /ws and
		// health stay public.
		if strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/health" && s.cfg.APIToken != "" {
			if !s.checkAPIToken(r) {
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkAPIToken(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	return ok && token == s.cfg.APIToken
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startedAt).String(),
	})
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
