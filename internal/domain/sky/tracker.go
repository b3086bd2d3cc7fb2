// Package sky smooths per (user, combatant) classifications into a cloud
// opacity value in [0,1].
package sky

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/enemy/internal/domain/model"
)

// Default tracker configuration constants.
const (
	DefaultSteps      = 15 // calls needed to cross the full range
	defaultShardCount = 16
)

// Key identifies one independent state slot.
type Key struct {
	UserID    string
	Combatant string
}

// State is the stored value of one slot.
type State struct {
	Key
	Value     float64
	Last      model.Classification
	Updates   int
	UpdatedAt time.Time
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithSteps sets how many successive changes cross the full [0,1] range.
func WithSteps(steps int) Option {
	return func(t *Tracker) {
		if steps > 0 {
			t.step = 1.0 / float64(steps)
		}
	}
}

// WithClock sets the clock used for UpdatedAt.
func WithClock(clock clockwork.Clock) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithShardCount sets the number of lock shards.
func WithShardCount(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.shardCount = n
		}
	}
}

type shard struct {
	mu     sync.Mutex
	states map[Key]*State
}

// Tracker holds one slot per key. Writes to the same key are serialized by
// its shard lock; different keys never share a slot.
type Tracker struct {
	step       float64
	clock      clockwork.Clock
	shardCount int
	shards     []*shard
}

// NewTracker creates a tracker with a 1/15 step unless overridden.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		step:       1.0 / DefaultSteps,
		clock:      clockwork.NewRealClock(),
		shardCount: defaultShardCount,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.shards = make([]*shard, t.shardCount)
	for i := range t.shards {
		t.shards[i] = &shard{states: make(map[Key]*State)}
	}
	return t
}

// Step returns the per-call increment.
func (t *Tracker) Step() float64 { return t.step }

func (t *Tracker) shardFor(k Key) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.UserID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Combatant))
	return t.shards[h.Sum32()%uint32(len(t.shards))]
}

// Advance records class for the key and returns the new sky value. A drop in
// nervousness clears the sky by one step, a rise clouds it by one step, no
// change leaves it as is. The first call for a key compares against neutral.
func (t *Tracker) Advance(_ context.Context, userID, combatant string, class model.Classification) float64 {
	k := Key{UserID: userID, Combatant: combatant}
	s := t.shardFor(k)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[k]
	if !ok {
		st = &State{Key: k, Last: model.ClassNeutral}
		s.states[k] = st
	}
	switch {
	case class < st.Last:
		st.Value = math.Min(1, st.Value+t.step)
	case class > st.Last:
		st.Value = math.Max(0, st.Value-t.step)
	}
	st.Last = class
	st.Updates++
	st.UpdatedAt = t.clock.Now()
	return st.Value
}

// Get returns the state of a key, if any.
func (t *Tracker) Get(userID, combatant string) (State, bool) {
	k := Key{UserID: userID, Combatant: combatant}
	s := t.shardFor(k)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[k]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Snapshot returns every state of a user ordered by combatant.
func (t *Tracker) Snapshot(userID string) []State {
	var out []State
	for _, s := range t.shards {
		s.mu.Lock()
		for k, st := range s.states {
			if k.UserID == userID {
				out = append(out, *st)
			}
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Combatant < out[j].Combatant })
	return out
}

// Len returns the number of slots.
func (t *Tracker) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.states)
		s.mu.Unlock()
	}
	return n
}
