package worker

import (
	"github.com/okian/enemy/pkg/logger"
)

// Option applies a configuration option to a worker or a pool.
type Option func(*options)

type options struct {
	name   string
	logger logger.Logger
}

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
