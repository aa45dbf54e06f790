package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/service"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/store"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

type Dependencies struct {
	Logger     *slog.Logger
	Addr       string
	Controller *service.Controller
	Events     store.EventStore
	Commands   store.CommandStore
	Hub        *Hub
	Metrics    http.Handler
	// Shutdown is called once when a client requests POST /v1/shutdown.
	Shutdown func()
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	controller *service.Controller
	events     store.EventStore
	commands   store.CommandStore
	shutdown   func()
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:     d.Logger,
		mux:        mux,
		controller: d.Controller,
		events:     d.Events,
		commands:   d.Commands,
		shutdown:   d.Shutdown,
	}

	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/monitoring/start", s.handleStart)
	mux.HandleFunc("POST /v1/monitoring/stop", s.handleStop)
	mux.HandleFunc("POST /v1/mode", s.handleMode)
	mux.HandleFunc("POST /v1/valve", s.handleValve)
	mux.HandleFunc("PUT /v1/night_window", s.handleNightWindow)
	mux.HandleFunc("PUT /v1/speed", s.handleSpeed)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/events.csv", s.handleEventsCSV)
	mux.HandleFunc("GET /v1/commands", s.handleCommands)
	mux.HandleFunc("POST /v1/shutdown", s.handleShutdown)
	if d.Hub != nil {
		mux.HandleFunc("GET /ws", d.Hub.ServeWS)
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Monitoring ───────────────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.controller.Snapshot(r.Context())
	if err != nil {
		s.writeServiceError(w, "status", err)
		return
	}

	if wantsProtobuf(r) {
		msg, err := snapshotToProto(snap)
		if err != nil {
			s.logger.Error("status proto encode failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

type startRequest struct {
	StartHour *int `json:"start_hour"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.StartHour != nil && (*req.StartHour < 0 || *req.StartHour > 23) {
		writeError(w, http.StatusBadRequest, "invalid_start_hour", "start_hour must be between 0 and 23")
		return
	}

	snap, err := s.controller.StartMonitoring(r.Context(), req.StartHour)
	if err != nil {
		s.writeServiceError(w, "start", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	snap, err := s.controller.StopMonitoring(r.Context())
	if err != nil {
		s.writeServiceError(w, "stop", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ── Operator commands ────────────────────────────────────────────────────────

type modeRequest struct {
	Mode string `json:"mode"`
}

type commandResponse struct {
	Mode    types.Mode    `json:"mode"`
	Command types.Command `json:"command,omitempty"`
	Sent    bool          `json:"sent"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	mode, err := types.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_mode", service.ErrInvalidMode.Error())
		return
	}

	out, err := s.controller.SetMode(r.Context(), mode)
	if err != nil {
		s.writeServiceError(w, "mode", err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Mode: mode, Command: out.Command, Sent: out.Sent})
}

type valveRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleValve(w http.ResponseWriter, r *http.Request) {
	var req valveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	var (
		out service.CommandOutcome
		err error
	)
	switch req.Action {
	case "open":
		out, err = s.controller.OpenValve(r.Context())
	case "close":
		out, err = s.controller.CloseValve(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "invalid_action", `action must be "open" or "close"`)
		return
	}
	if err != nil {
		s.writeServiceError(w, "valve", err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Mode: types.ModeDisarmed, Command: out.Command, Sent: out.Sent})
}

type nightWindowRequest struct {
	StartHour *int `json:"start_hour"`
	EndHour   *int `json:"end_hour"`
}

func (s *Server) handleNightWindow(w http.ResponseWriter, r *http.Request) {
	var req nightWindowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.StartHour == nil || req.EndHour == nil {
		writeError(w, http.StatusBadRequest, "invalid_night_window", "start_hour and end_hour are required")
		return
	}

	nw := types.NightWindow{StartHour: *req.StartHour, EndHour: *req.EndHour}
	if err := s.controller.SetNightWindow(r.Context(), nw); err != nil {
		s.writeServiceError(w, "night_window", err)
		return
	}
	writeJSON(w, http.StatusOK, nw)
}

type speedRequest struct {
	Factor int `json:"factor"`
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if err := s.controller.SetSpeed(r.Context(), req.Factor); err != nil {
		s.writeServiceError(w, "speed", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	if s.shutdown == nil {
		writeError(w, http.StatusNotImplemented, "not_supported", "shutdown is not enabled")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
	go s.shutdown()
}

// ── Logs ─────────────────────────────────────────────────────────────────────

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	samples, err := s.controller.History(r.Context())
	if err != nil {
		s.writeServiceError(w, "history", err)
		return
	}
	if samples == nil {
		samples = []types.Sample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	evs, err := s.events.ListEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("list events failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if evs == nil {
		evs = []types.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleEventsCSV(w http.ResponseWriter, r *http.Request) {
	evs, err := s.events.ListEvents(r.Context(), 0)
	if err != nil {
		s.logger.Error("list events failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	var buf bytes.Buffer
	if err := writeEventsCSV(&buf, evs); err != nil {
		s.logger.Error("csv export failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leak_report.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	recs, err := s.commands.ListCommands(r.Context(), limit)
	if err != nil {
		s.logger.Error("list commands failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	if recs == nil {
		recs = []store.CommandRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrManualControlLocked):
		writeError(w, http.StatusConflict, "manual_control_locked", err.Error())
	case errors.Is(err, service.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, "invalid_mode", err.Error())
	case errors.Is(err, service.ErrInvalidSpeed):
		writeError(w, http.StatusBadRequest, "invalid_speed", err.Error())
	case errors.Is(err, service.ErrInvalidNightWindow):
		writeError(w, http.StatusBadRequest, "invalid_night_window", err.Error())
	case errors.Is(err, service.ErrControllerStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "monitor is not running")
	default:
		s.logger.Error("request failed", "op", op, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
