package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crossroads-sim/worldengine/internal/metrics"
	"github.com/crossroads-sim/worldengine/internal/ports"
	"github.com/crossroads-sim/worldengine/internal/snapshot"
)

// Server serves the REST admin surface and the WebSocket WorldUpdate
// stream. Grounded on the teacher's internal/api.Server (mux.HandleFunc
// routing, adminOnly bearer-token wrapper, writeJSON), generalized from the
// teacher's hex-world status/settlement/faction read model to this
// engine's snapshot/stats/agent-command model.
type Server struct {
	Port     int
	AdminKey string // Bearer token for POST/DELETE endpoints. Empty disables them.
	Codec    Codec  // default codec for GET /world/snapshot and the WS stream

	Handler  CommandHandler
	Hub      *Hub
	Metrics  *metrics.Collector
	SnapshotSource func() snapshot.Snapshot

	log *slog.Logger
}

// NewServer returns a Server. log defaults to slog.Default() if nil.
func NewServer(port int, adminKey string, codec Codec, handler CommandHandler, hub *Hub, mc *metrics.Collector, snapSrc func() snapshot.Snapshot, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if codec == "" {
		codec = CodecJSON
	}
	return &Server{Port: port, AdminKey: adminKey, Codec: codec, Handler: handler, Hub: hub, Metrics: mc, SnapshotSource: snapSrc, log: log}
}

// Start begins serving HTTP in a background goroutine, matching the
// teacher's Server.Start shape.
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/world/snapshot", s.handleSnapshot)
	mux.HandleFunc("/world/stats", s.handleStats)
	mux.HandleFunc("/world/start", s.adminOnly(s.handleStart))
	mux.HandleFunc("/world/stop", s.adminOnly(s.handleStop))
	mux.HandleFunc("/world/step", s.adminOnly(s.handleStep))
	mux.HandleFunc("/agents", s.adminOnly(s.handleSpawnAgent))
	mux.HandleFunc("/agents/", s.adminOnly(s.handleAgentRoutes))
	mux.HandleFunc("/ws", s.handleWS)

	addr := fmt.Sprintf(":%d", s.Port)
	s.log.Info("transport starting", slog.String("addr", addr), slog.Bool("admin_auth", s.AdminKey != ""))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			s.log.Error("transport server error", slog.Any("error", err))
		}
	}()
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires a valid bearer token, matching the teacher's admin
// gating convention: admin routes are disabled entirely (403) when no
// WORLDSIM_ADMIN_KEY is configured, rather than silently accepting
// unauthenticated writes.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no WORLDSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) codecForRequest(r *http.Request) Codec {
	if q := r.URL.Query().Get("codec"); q == string(CodecMsgpack) {
		return CodecMsgpack
	}
	if q := r.URL.Query().Get("codec"); q == string(CodecJSON) {
		return CodecJSON
	}
	return s.Codec
}

func (s *Server) writeEncoded(w http.ResponseWriter, r *http.Request, v any) {
	codec := s.codecForRequest(r)
	data, err := Encode(codec, v)
	if err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	if codec == CodecMsgpack {
		w.Header().Set("Content-Type", "application/msgpack")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Write(data)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.SnapshotSource == nil {
		http.Error(w, "snapshot source not wired", http.StatusServiceUnavailable)
		return
	}
	s.writeEncoded(w, r, s.SnapshotSource())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.Metrics == nil {
		http.Error(w, "metrics not wired", http.StatusServiceUnavailable)
		return
	}
	s.writeEncoded(w, r, s.Metrics.Latest())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.Handler.StartSim()
	writeJSON(w, CommandResult{OK: true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Handler.StopSim()
	writeJSON(w, CommandResult{OK: true})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	s.Handler.StepSim()
	writeJSON(w, CommandResult{OK: true})
}

func (s *Server) handleSpawnAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Name   string  `json:"name"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		ZoneID string  `json:"zone_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	id := s.Handler.SpawnAgent(req.Name, req.X, req.Y, req.ZoneID)
	writeJSON(w, CommandResult{OK: true, AgentID: id})
}

// handleAgentRoutes dispatches DELETE /agents/:id and POST /agents/:id/orders.
func (s *Server) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/agents/")
	parts := strings.SplitN(path, "/", 2)
	agentID := parts[0]
	if agentID == "" {
		http.Error(w, "agent id required", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 && parts[1] == "orders" {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			OrderType string         `json:"order_type"`
			Priority  int            `json:"priority"`
			Detail    map[string]any `json:"detail"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		ok := s.Handler.IssueOrder(agentID, req.OrderType, req.Priority, req.Detail)
		writeJSON(w, CommandResult{OK: ok, AgentID: agentID})
		return
	}

	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res := s.Handler.RemoveAgent(agentID)
	writeJSON(w, CommandResult{OK: res.Status == ports.StatusCompleted, AgentID: agentID, Message: res.Message})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	c := &client{hub: s.Hub, conn: conn, send: make(chan []byte, sendBufferSize)}
	s.Hub.register <- c
	go c.writePump()
	go c.readPump()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.Encode(v)
}
