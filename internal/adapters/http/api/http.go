// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	eventqueue "github.com/okian/enemy/internal/adapters/mq/queue"
	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ObservationDependencies
	BoundsDependencies
	ScoringDependencies
	SessionDependencies
	Conflicts() []model.Conflict
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	observationsHandler *ObservationsHandler
	boundsHandler       *BoundsHandler
	scoringHandler      *ScoringHandler
	sessionHandler      *SessionHandler
	conflicts           func() []model.Conflict
	limiter             *RateLimiter
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimiter limits observation ingestion.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		observationsHandler: NewObservationsHandler(deps),
		boundsHandler:       NewBoundsHandler(deps),
		scoringHandler:      NewScoringHandler(deps),
		sessionHandler:      NewSessionHandler(deps),
		conflicts:           deps.Conflicts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	ingest := http.HandlerFunc(s.observationsHandler.HandlePostObservation)
	if s.limiter != nil {
		ingest = s.limiter.Middleware(ingest)
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /conflicts", MetricsMiddleware(s.handleConflicts, "conflicts"))
	mux.HandleFunc("POST /observations", MetricsMiddleware(ingest, "observations"))
	mux.HandleFunc("GET /bounds", MetricsMiddleware(s.boundsHandler.HandleGetBounds, "bounds"))
	mux.HandleFunc("POST /bounds/refresh", MetricsMiddleware(s.boundsHandler.HandleRefresh, "bounds_refresh"))
	mux.HandleFunc("GET /users/{user}/combatants/{combatant}/classification",
		MetricsMiddleware(s.scoringHandler.HandleClassification, "classification"))
	mux.HandleFunc("GET /users/{user}/combatants/{combatant}/sky",
		MetricsMiddleware(s.scoringHandler.HandleSky, "sky"))
	mux.HandleFunc("GET /users/{user}/conflicts/{conflict}/bias",
		MetricsMiddleware(s.scoringHandler.HandleBias, "bias"))
	mux.HandleFunc("PUT /users/{user}/survey", MetricsMiddleware(s.sessionHandler.HandlePutSurvey, "survey"))
	mux.HandleFunc("GET /users/{user}/epilogue", MetricsMiddleware(s.sessionHandler.HandleEpilogue, "epilogue"))
}

type conflictResponse struct {
	Name       string `json:"name"`
	Combatant1 string `json:"combatant_1"`
	Combatant2 string `json:"combatant_2"`
}

func (s *Server) handleConflicts(w http.ResponseWriter, _ *http.Request) {
	conflicts := s.conflicts()
	out := make([]conflictResponse, len(conflicts))
	for i, c := range conflicts {
		out[i] = conflictResponse{Name: c.Name, Combatant1: c.Combatant1, Combatant2: c.Combatant2}
	}
	writeJSON(w, http.StatusOK, out)
}

type ackResponse struct {
	Status string `json:"status"`
	types.IngestResult
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps domain and queue errors to a status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrMissingFeature):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrUnknownUser),
		errors.Is(err, model.ErrUnknownCombatant),
		errors.Is(err, model.ErrUnknownConflict):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrBoundsNotComputed):
		return http.StatusConflict, "bounds_not_computed"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ErrBackpressure), errors.Is(err, eventqueue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable), errors.Is(err, eventqueue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError tags err with op and writes its mapped status.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	switch {
	case status == http.StatusBadRequest && !errors.Is(err, ErrBadRequest):
		err = WrapKind(op, ErrBadRequest, err)
	case errors.Is(err, eventqueue.ErrFull):
		err = WrapKind(op, ErrBackpressure, err)
	case errors.Is(err, eventqueue.ErrClosed):
		err = WrapKind(op, ErrUnavailable, err)
	}
	writeError(w, status, code, err)
}
