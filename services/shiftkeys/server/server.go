// Package server exposes the sweep/redemption engine over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"hobbyhub-backend/services/shiftkeys"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Server struct {
	router chi.Router
	shift  shiftkeys.Service
}

func NewServer(shift shiftkeys.Service) *Server {
	s := &Server{shift: shift}

	r := chi.NewRouter()
	r.Use(requestIdMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Route("/v1/shift", func(r chi.Router) {
		r.Post("/sweeps", s.runSweep)
		r.Post("/redemptions", s.redeemCode)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sweepRequest struct {
	LookbackHours float64 `json:"lookback_hours"`
}

func (s *Server) runSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lookback := time.Duration(req.LookbackHours * float64(time.Hour))
	result, err := s.shift.Sweep(r.Context(), lookback)
	if err != nil {
		slog.ErrorContext(r.Context(), "sweep failed", "err", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type redeemRequest struct {
	Code string `json:"code"`
}

type redeemResponse struct {
	Results []shiftkeys.RedeemResult `json:"results"`
}

// per-account redemption failures come back inside a 200 response;
// only a structurally invalid request is a client error.
func (s *Server) redeemCode(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := s.shift.Redeem(r.Context(), req.Code)
	if errors.Is(err, shiftkeys.ErrBlankCode) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "redemption failed", "err", err)
		writeError(w, http.StatusInternalServerError, "redemption failed")
		return
	}

	writeJSON(w, http.StatusOK, redeemResponse{Results: results})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("failed to encode response body", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func requestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug(
			"http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in handler", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
