package api

import (
	"context"
	"net/http"

	"github.com/okian/enemy/internal/domain/types"
)

// BoundsDependencies defines the interface for baseline operations.
type BoundsDependencies interface {
	Bounds(ctx context.Context) (types.Bounds, error)
	RefreshBounds(ctx context.Context) (types.Bounds, error)
}

// BoundsHandler handles bounds requests.
type BoundsHandler struct {
	deps BoundsDependencies
}

// NewBoundsHandler creates a new bounds handler.
func NewBoundsHandler(deps BoundsDependencies) *BoundsHandler {
	return &BoundsHandler{deps: deps}
}

// HandleGetBounds handles GET /bounds requests.
func (h *BoundsHandler) HandleGetBounds(w http.ResponseWriter, r *http.Request) {
	b, err := h.deps.Bounds(r.Context())
	if err != nil {
		writeServiceError(w, "api.get_bounds", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleRefresh handles POST /bounds/refresh requests.
func (h *BoundsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	b, err := h.deps.RefreshBounds(r.Context())
	if err != nil {
		writeServiceError(w, "api.refresh_bounds", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
