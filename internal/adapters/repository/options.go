package repository

import "github.com/jonboulle/clockwork"

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithShardCount sets the number of lock shards.
func WithShardCount(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.shardCount = n
		}
	}
}

// WithClock sets the clock used to stamp session updates.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}
