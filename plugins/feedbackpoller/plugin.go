// Package feedbackpoller periodically drains the feedback service and
// records every reported token in the gateway's token store.
package feedbackpoller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/pushgate/pkg/feedback"
	"github.com/bft-labs/pushgate/pkg/lifecycle"
	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/pushgate"
	"github.com/bft-labs/pushgate/pkg/wire"
)

// Config holds configuration options for the feedback poller.
type Config struct {
	// Interval is the pause between two successful fetches.
	// Default: 1 hour
	Interval time.Duration

	// RetryInitial and RetryMax bound the backoff after a failed fetch.
	// Default: 5 seconds and 5 minutes
	RetryInitial time.Duration
	RetryMax     time.Duration

	// ReadTimeout bounds the silence between two records.
	// Default: feedback.DefaultReadTimeout
	ReadTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     time.Hour,
		RetryInitial: 5 * time.Second,
		RetryMax:     5 * time.Minute,
		ReadTimeout:  feedback.DefaultReadTimeout,
	}
}

// Plugin polls the feedback service in the background.
type Plugin struct {
	config Config

	logger log.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup

	fetches atomic.Int64
	tokens  atomic.Int64
}

// New creates a feedback poller. Zero fields in cfg take their defaults.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = def.RetryInitial
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = def.RetryMax
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	return &Plugin{config: cfg}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "feedbackpoller"
}

// Initialize starts polling. Without a token store there is nowhere to
// record tokens and the plugin stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg pushgate.PluginConfig) error {
	p.logger = log.OrNoop(cfg.Logger).With(log.String("plugin", p.Name()))

	if cfg.Tokens == nil {
		p.logger.Warn("feedback poller idle: no token store configured")
		return nil
	}
	if cfg.FeedbackDialer == nil {
		return errors.New("feedbackpoller: no feedback dialer")
	}

	client := feedback.NewClient(cfg.FeedbackDialer,
		feedback.WithLogger(p.logger),
		feedback.WithReadTimeout(p.config.ReadTimeout),
	)
	tokens := cfg.Tokens

	task := func(ctx context.Context) error {
		n, err := client.Fetch(ctx, func(rec wire.FeedbackRecord) error {
			return tokens.MarkInactive(ctx, rec.Token, rec.Time)
		})
		p.tokens.Add(int64(n))
		if err != nil {
			return err
		}
		p.fetches.Add(1)
		return nil
	}

	loop := lifecycle.NewLoop(lifecycle.LoopConfig{
		Name:         "feedback",
		Interval:     p.config.Interval,
		RetryInitial: p.config.RetryInitial,
		RetryMax:     p.config.RetryMax,
	}, task, p.logger, nil)

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = loop.Run(runCtx)
	}()

	p.logger.Info("polling feedback service",
		log.String("addr", cfg.FeedbackDialer.Addr()),
		log.Duration("interval", p.config.Interval),
	)
	return nil
}

// Shutdown stops polling and waits for an in-progress fetch to end.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetches returns the number of completed fetches.
func (p *Plugin) Fetches() int64 { return p.fetches.Load() }

// Tokens returns the number of tokens recorded so far.
func (p *Plugin) Tokens() int64 { return p.tokens.Load() }

// WithFeedbackPoller returns a pushgate Option that polls the feedback
// service in the background.
func WithFeedbackPoller(cfg Config) pushgate.Option {
	return pushgate.WithPlugin(New(cfg))
}

var _ pushgate.Plugin = (*Plugin)(nil)
