package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/pkg/metrics"
)

const defaultShardCount = 32

type session struct {
	features    model.UserFeatures
	hasFeatures bool
	gaze        map[string]float64
	survey      *model.SurveyAnswers
	bias        map[string]model.BiasRecord
	updatedAt   time.Time
	// windowTS is the stamp of the newest applied window.
	windowTS time.Time
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// Registry is a sharded in-memory Store.
type Registry struct {
	shardCount int
	shards     []*shard
	clock      clockwork.Clock
}

var _ Store = (*Registry)(nil)

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		shardCount: defaultShardCount,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.shards = make([]*shard, r.shardCount)
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]*session)}
	}
	metrics.UpdateRepositoryShardCount(r.shardCount)
	return r
}

func (r *Registry) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(r.shards)))
}

// sessionLocked returns the user's session, creating it. Caller holds s.mu.
func (s *shard) sessionLocked(userID string) *session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{gaze: make(map[string]float64), bias: make(map[string]model.BiasRecord)}
		s.sessions[userID] = sess
	}
	return sess
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

// Apply implements Store.Apply. Features are replaced as a whole; gaze ratios
// are merged per combatant. A window stamped before the newest applied window
// of the user is skipped; unstamped windows always apply.
func (r *Registry) Apply(ctx context.Context, obs model.Observation) error {
	start := time.Now()
	defer observeUpdate(start)

	if err := ctx.Err(); err != nil {
		return err
	}
	if obs.UserID == "" {
		return fmt.Errorf("%w: empty user id", model.ErrInvalidInput)
	}
	if obs.Features.UserID != "" && obs.Features.UserID != obs.UserID {
		return fmt.Errorf("%w: features belong to %s, not %s", model.ErrInvalidInput, obs.Features.UserID, obs.UserID)
	}
	if err := obs.Features.Validate(); err != nil {
		return err
	}
	if err := model.ValidateGaze(obs.Gaze); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGaze, err)
	}

	features := model.FeaturesFromMap(obs.UserID, obs.Features.Map())

	idx := r.shardIndex(obs.UserID)
	s := r.shards[idx]
	s.mu.Lock()
	sess := s.sessionLocked(obs.UserID)
	if !obs.TS.IsZero() && obs.TS.Before(sess.windowTS) {
		s.mu.Unlock()
		metrics.RecordObservationRejected("out_of_order")
		return nil
	}
	if obs.TS.After(sess.windowTS) {
		sess.windowTS = obs.TS
	}
	sess.features = features
	sess.hasFeatures = true
	for combatant, ratio := range obs.Gaze {
		sess.gaze[combatant] = ratio
	}
	sess.updatedAt = r.clock.Now()
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.UpdateRepositoryRecordsPerShard(fmt.Sprintf("shard_%d", idx), n)
	return nil
}

// Features implements Store.Features.
func (r *Registry) Features(_ context.Context, userID string) (model.UserFeatures, error) {
	start := time.Now()
	defer observeQuery(start)

	s := r.shards[r.shardIndex(userID)]
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok || !sess.hasFeatures {
		metrics.RecordErrorByComponent("repository", "unknown_user")
		return model.UserFeatures{}, fmt.Errorf("%w: %s", model.ErrUnknownUser, userID)
	}
	return sess.features, nil
}

// Population implements Store.Population.
func (r *Registry) Population(_ context.Context) []model.UserFeatures {
	start := time.Now()
	defer observeQuery(start)

	var out []model.UserFeatures
	for _, s := range r.shards {
		s.mu.RLock()
		for _, sess := range s.sessions {
			if sess.hasFeatures {
				out = append(out, sess.features)
			}
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Gaze implements Store.Gaze. A user without features is unknown; a known
// user without a ratio for the combatant is missing a feature.
func (r *Registry) Gaze(_ context.Context, userID, combatant string) (float64, error) {
	s := r.shards[r.shardIndex(userID)]
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok || !sess.hasFeatures {
		return 0, fmt.Errorf("%w: %s", model.ErrUnknownUser, userID)
	}
	ratio, ok := sess.gaze[combatant]
	if !ok {
		return 0, fmt.Errorf("%w: gaze ratio for %s/%s", model.ErrMissingFeature, userID, combatant)
	}
	return ratio, nil
}

// PutSurvey implements Store.PutSurvey.
func (r *Registry) PutSurvey(_ context.Context, userID string, answers model.SurveyAnswers) error {
	start := time.Now()
	defer observeUpdate(start)

	if userID == "" {
		return fmt.Errorf("%w: empty user id", model.ErrInvalidInput)
	}
	answers.BiasedToward = append([]string(nil), answers.BiasedToward...)

	s := r.shards[r.shardIndex(userID)]
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessionLocked(userID)
	sess.survey = &answers
	sess.updatedAt = r.clock.Now()
	return nil
}

// Survey implements Store.Survey.
func (r *Registry) Survey(_ context.Context, userID string) *model.SurveyAnswers {
	s := r.shards[r.shardIndex(userID)]
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok || sess.survey == nil {
		return nil
	}
	cp := *sess.survey
	cp.BiasedToward = append([]string(nil), sess.survey.BiasedToward...)
	return &cp
}

// PutBias implements Store.PutBias. A record replaces the previous one for
// the same conflict.
func (r *Registry) PutBias(_ context.Context, rec model.BiasRecord) error {
	start := time.Now()
	defer observeUpdate(start)

	if rec.UserID == "" || rec.Conflict == "" {
		return fmt.Errorf("%w: bias record needs user and conflict", model.ErrInvalidInput)
	}

	s := r.shards[r.shardIndex(rec.UserID)]
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessionLocked(rec.UserID)
	sess.bias[rec.Conflict] = rec
	sess.updatedAt = r.clock.Now()
	return nil
}

// BiasRecords implements Store.BiasRecords.
func (r *Registry) BiasRecords(_ context.Context, userID string) []model.BiasRecord {
	s := r.shards[r.shardIndex(userID)]
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	var out []model.BiasRecord
	if ok {
		out = make([]model.BiasRecord, 0, len(sess.bias))
		for _, rec := range sess.bias {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Conflict < out[j].Conflict })
	return out
}

// UpdatedAt implements Store.UpdatedAt.
func (r *Registry) UpdatedAt(_ context.Context, userID string) (time.Time, bool) {
	s := r.shards[r.shardIndex(userID)]
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return time.Time{}, false
	}
	return sess.updatedAt, true
}

// Count implements Store.Count.
func (r *Registry) Count(_ context.Context) int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, sess := range s.sessions {
			if sess.hasFeatures {
				n++
			}
		}
		s.mu.RUnlock()
	}
	return n
}
