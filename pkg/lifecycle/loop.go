package lifecycle

import (
	"context"
	"time"

	"github.com/bft-labs/pushgate/pkg/log"
)

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

// RunEventEmitter is called after every run of a Loop's task.
type RunEventEmitter interface {
	OnRunSuccess(duration time.Duration)
	OnRunError(err error, attempt int)
}

// LoopConfig configures a Loop.
type LoopConfig struct {
	// Name labels log lines.
	Name string

	// Interval is the pause after a successful run.
	Interval time.Duration

	// RetryInitial and RetryMax bound the backoff after a failed run.
	// Defaults: 500ms and Interval.
	RetryInitial time.Duration
	RetryMax     time.Duration

	// Once stops the loop after the first successful run.
	Once bool
}

// Loop runs a Task on an interval, retrying failures with backoff.
type Loop struct {
	config  LoopConfig
	task    Task
	logger  log.Logger
	emitter RunEventEmitter
}

// NewLoop creates a loop. logger and emitter may be nil.
func NewLoop(config LoopConfig, task Task, logger log.Logger, emitter RunEventEmitter) *Loop {
	if config.RetryInitial <= 0 {
		config.RetryInitial = 500 * time.Millisecond
	}
	if config.RetryMax <= 0 {
		config.RetryMax = config.Interval
	}
	if config.RetryMax < config.RetryInitial {
		config.RetryMax = config.RetryInitial
	}
	return &Loop{
		config:  config,
		task:    task,
		logger:  log.OrNoop(logger),
		emitter: emitter,
	}
}

// Run executes the task immediately and then after every Interval until ctx
// ends. It returns ctx.Err(), or nil when Once is set and a run succeeded.
func (l *Loop) Run(ctx context.Context) error {
	backoff := NewBackoff(l.config.RetryInitial, l.config.RetryMax)
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := l.task(ctx)
		duration := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			l.logger.Error("periodic task failed",
				log.String("task", l.config.Name),
				log.Int("attempt", attempt),
				log.Duration("retry_in", backoff.Current()),
				log.Err(err),
			)
			if l.emitter != nil {
				l.emitter.OnRunError(err, attempt)
			}
			if err := backoff.Wait(ctx); err != nil {
				return err
			}
			continue
		}

		if attempt > 0 {
			l.logger.Info("periodic task recovered",
				log.String("task", l.config.Name),
				log.Int("attempts", attempt+1),
			)
		}
		attempt = 0
		backoff.Reset()
		if l.emitter != nil {
			l.emitter.OnRunSuccess(duration)
		}
		if l.config.Once {
			return nil
		}

		t := time.NewTimer(l.config.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
