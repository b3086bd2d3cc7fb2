package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/types"
)

// SessionDependencies defines the interface for survey and epilogue operations.
type SessionDependencies interface {
	SetSurvey(ctx context.Context, userID string, answers model.SurveyAnswers) error
	Epilogue(ctx context.Context, userID string) (types.Epilogue, error)
}

// SessionHandler handles survey and epilogue requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type surveyRequest struct {
	Completed    bool     `json:"completed"`
	WarAttitude  int      `json:"war_attitude"`
	BiasedToward []string `json:"biased_toward"`
}

// HandlePutSurvey handles PUT /users/{user}/survey requests.
func (h *SessionHandler) HandlePutSurvey(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_survey"
	var req surveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	err := h.deps.SetSurvey(r.Context(), r.PathValue("user"), model.SurveyAnswers{
		Completed:    req.Completed,
		WarAttitude:  req.WarAttitude,
		BiasedToward: req.BiasedToward,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEpilogue handles GET /users/{user}/epilogue requests.
func (h *SessionHandler) HandleEpilogue(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.Epilogue(r.Context(), r.PathValue("user"))
	if err != nil {
		writeServiceError(w, "api.epilogue", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
