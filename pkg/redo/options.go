package redo

import "github.com/bft-labs/pushgate/pkg/log"

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used for action failures and rewinds.
func WithLogger(logger log.Logger) Option {
	return func(q *Queue) {
		q.logger = log.OrNoop(logger)
	}
}
