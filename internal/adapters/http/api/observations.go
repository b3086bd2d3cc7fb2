package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/types"
)

// ObservationDependencies defines the interface for observation ingestion.
type ObservationDependencies interface {
	Enqueue(ctx context.Context, obs model.Observation) (types.IngestResult, error)
}

// ObservationsHandler handles observation requests.
type ObservationsHandler struct {
	deps ObservationDependencies
}

// NewObservationsHandler creates a new observations handler.
func NewObservationsHandler(deps ObservationDependencies) *ObservationsHandler {
	return &ObservationsHandler{deps: deps}
}

// featuresRequest uses pointers so an omitted channel stays missing instead
// of reading as zero.
type featuresRequest struct {
	MeanDistance     *float64 `json:"mean_distance"`
	Stillness        *float64 `json:"stillness"`
	AngularStillness *float64 `json:"angular_stillness"`
}

// observationRequest mirrors the OpenAPI schema for POST /observations.
type observationRequest struct {
	ObservationID string             `json:"observation_id"`
	UserID        string             `json:"user_id"`
	Features      featuresRequest    `json:"features"`
	Gaze          map[string]float64 `json:"gaze"`
	TS            string             `json:"ts"`
}

func (o observationRequest) toObservation() (model.Observation, error) {
	if strings.TrimSpace(o.UserID) == "" {
		return model.Observation{}, errors.New("missing user_id")
	}
	ts := time.Time{}
	if strings.TrimSpace(o.TS) != "" {
		parsed, err := time.Parse(time.RFC3339, o.TS)
		if err != nil {
			return model.Observation{}, errors.New("invalid ts; must be RFC3339")
		}
		ts = parsed
	}

	channels := make(map[model.Channel]float64, 3)
	for ch, v := range map[model.Channel]*float64{
		model.ChannelDistance:         o.Features.MeanDistance,
		model.ChannelStillness:        o.Features.Stillness,
		model.ChannelAngularStillness: o.Features.AngularStillness,
	} {
		if v != nil {
			channels[ch] = *v
		}
	}
	return model.Observation{
		ObservationID: o.ObservationID,
		UserID:        o.UserID,
		Features:      model.FeaturesFromMap(o.UserID, channels),
		Gaze:          o.Gaze,
		TS:            ts,
	}, nil
}

// HandlePostObservation handles POST /observations requests.
func (h *ObservationsHandler) HandlePostObservation(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_observation"
	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	obs, err := req.toObservation()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Enqueue(r.Context(), obs)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", IngestResult: res})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", IngestResult: res})
}
