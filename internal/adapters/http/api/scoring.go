package api

import (
	"context"
	"net/http"

	"github.com/okian/enemy/internal/domain/types"
)

// ScoringDependencies defines the interface for per-user scoring reads.
type ScoringDependencies interface {
	Classify(ctx context.Context, userID, combatant string) (types.Classification, error)
	SkyValue(ctx context.Context, userID, combatant string) (types.Sky, error)
	ConflictBias(ctx context.Context, userID, conflict string) (types.Bias, error)
}

// ScoringHandler handles classification, sky and bias requests.
type ScoringHandler struct {
	deps ScoringDependencies
}

// NewScoringHandler creates a new scoring handler.
func NewScoringHandler(deps ScoringDependencies) *ScoringHandler {
	return &ScoringHandler{deps: deps}
}

// HandleClassification handles GET /users/{user}/combatants/{combatant}/classification.
func (h *ScoringHandler) HandleClassification(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Classify(r.Context(), r.PathValue("user"), r.PathValue("combatant"))
	if err != nil {
		writeServiceError(w, "api.classify", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleSky handles GET /users/{user}/combatants/{combatant}/sky. Every call
// advances the sky state of the pair.
func (h *ScoringHandler) HandleSky(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.SkyValue(r.Context(), r.PathValue("user"), r.PathValue("combatant"))
	if err != nil {
		writeServiceError(w, "api.sky", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleBias handles GET /users/{user}/conflicts/{conflict}/bias. The outcome
// is recorded for the epilogue.
func (h *ScoringHandler) HandleBias(w http.ResponseWriter, r *http.Request) {
	b, err := h.deps.ConflictBias(r.Context(), r.PathValue("user"), r.PathValue("conflict"))
	if err != nil {
		writeServiceError(w, "api.bias", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
