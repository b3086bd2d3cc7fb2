package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/types"
	"github.com/okian/enemy/pkg/logger"
	"github.com/okian/enemy/pkg/metrics"
)

// observationNamespace scopes name-based ids derived from observation content.
var observationNamespace = uuid.MustParse("6f1c2f9e-3f53-4c1e-9a8e-2d0c1b8f5a41")

// ObservationID returns obs.ObservationID, or a deterministic id derived from
// the window content so retries of the same window deduplicate.
func ObservationID(obs model.Observation) string {
	if obs.ObservationID != "" {
		return obs.ObservationID
	}
	payload, _ := json.Marshal(struct {
		User     string                    `json:"u"`
		Features map[model.Channel]float64 `json:"f"`
		Gaze     map[string]float64        `json:"g"`
		TS       time.Time                 `json:"t"`
	}{obs.UserID, obs.Features.Map(), obs.Gaze, obs.TS})
	return uuid.NewSHA1(observationNamespace, payload).String()
}

// validateObservation rejects windows the registry would refuse, plus gaze
// ratios for combatants outside the catalog. It runs before the id is recorded
// so a refused window can be corrected and resent under the same id.
func (s *Service) validateObservation(obs model.Observation) error {
	if obs.UserID == "" {
		return fmt.Errorf("%w: empty user id", model.ErrInvalidInput)
	}
	if err := obs.Features.Validate(); err != nil {
		return err
	}
	if err := model.ValidateGaze(obs.Gaze); err != nil {
		return err
	}
	for combatant := range obs.Gaze {
		if err := s.catalog.Combatant(combatant); err != nil {
			return err
		}
	}
	return nil
}

// stamp sets the window time to now when the sender left it empty, so the
// registry can order windows applied by different workers.
func (s *Service) stamp(obs *model.Observation) {
	if obs.TS.IsZero() {
		obs.TS = s.clock.Now()
	}
}

// RecordObservation applies an observation window synchronously.
func (s *Service) RecordObservation(ctx context.Context, obs model.Observation) error {
	if err := s.validateObservation(obs); err != nil {
		return err
	}
	s.stamp(&obs)
	if err := s.store.Apply(ctx, obs); err != nil {
		return err
	}
	metrics.RecordObservationIngested()
	return nil
}

// Enqueue validates an observation window and queues it for the workers. A
// window whose id was already seen is acknowledged as a duplicate. Queue
// failures (queue.ErrFull, queue.ErrClosed) are returned unchanged.
func (s *Service) Enqueue(ctx context.Context, obs model.Observation) (types.IngestResult, error) {
	if err := s.validateObservation(obs); err != nil {
		return types.IngestResult{}, err
	}
	obs.ObservationID = ObservationID(obs)
	res := types.IngestResult{ObservationID: obs.ObservationID}

	if s.deduper.SeenAndRecord(ctx, obs.ObservationID) {
		metrics.RecordObservationDuplicate()
		s.logger.Debug(ctx, "duplicate observation skipped",
			logger.String("observation_id", obs.ObservationID),
			logger.String("user_id", obs.UserID),
		)
		res.Duplicate = true
		return res, nil
	}
	s.stamp(&obs)

	if err := s.queue.Enqueue(ctx, obs); err != nil {
		s.deduper.Unrecord(ctx, obs.ObservationID)
		metrics.RecordObservationRejected("queue")
		return res, err
	}
	return res, nil
}
