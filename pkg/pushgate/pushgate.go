package pushgate

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/bft-labs/pushgate/internal/domain"
	"github.com/bft-labs/pushgate/pkg/certsource"
	"github.com/bft-labs/pushgate/pkg/feedback"
	"github.com/bft-labs/pushgate/pkg/gateway"
	"github.com/bft-labs/pushgate/pkg/lifecycle"
	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/notification"
	"github.com/bft-labs/pushgate/pkg/redo"
	"github.com/bft-labs/pushgate/pkg/sender"
	"github.com/bft-labs/pushgate/pkg/wire"
)

// Re-exported sentinel errors.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrNoRoute         = domain.ErrNoRoute
	ErrInactiveToken   = domain.ErrInactiveToken
)

// Gateway delivers notifications: binary ones through the replaying queue
// and the gateway connection, JSON/HTTP ones through the HTTP sender.
type Gateway struct {
	config  Config
	opts    options
	logger  log.Logger
	manager *lifecycle.DefaultManager

	queue    *redo.Queue
	conn     *gateway.Connection
	dialer   gateway.Dialer
	feedback gateway.Dialer
	http     *sender.HTTPSender
	plugins  []Plugin

	// sendMu makes id allocation and Enqueue one step so ids reach the
	// queue in increasing order.
	sendMu sync.Mutex
	nextID uint32

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Gateway in StateStopped. Call Start before Send.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrNoop(o.logger)

	dialer, feedbackDialer, err := buildDialers(cfg, o)
	if err != nil {
		return nil, err
	}

	queue := redo.New(cfg.QueueSize, cfg.Retain, redo.WithLogger(logger.With(log.String("component", "queue"))))

	metrics := gateway.NewMetrics(o.registerer)
	if o.registerer != nil {
		gateway.ObserveQueue(o.registerer, queue.Stats)
	}
	connOpts := append([]gateway.Option{
		gateway.WithLogger(logger.With(log.String("component", "gateway"))),
		gateway.WithMetrics(metrics),
		gateway.WithWriteTimeout(cfg.WriteTimeout),
	}, o.connOpts...)
	conn := gateway.NewConnection(dialer, queue, connOpts...)

	var httpSender *sender.HTTPSender
	if cfg.HTTPAPIKey != "" {
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		httpSender = sender.NewHTTPSender(client, sender.Metadata{
			Endpoint: cfg.HTTPEndpoint,
			APIKey:   cfg.HTTPAPIKey,
		}, o.delegate, logger.With(log.String("component", "http")))
	}

	return &Gateway{
		config:   cfg,
		opts:     o,
		logger:   logger,
		manager:  lifecycle.NewManager(logger, eventEmitter{handler: o.eventHandler}),
		queue:    queue,
		conn:     conn,
		dialer:   dialer,
		feedback: feedbackDialer,
		http:     httpSender,
		plugins:  o.plugins,
	}, nil
}

func buildDialers(cfg Config, o options) (gateway.Dialer, gateway.Dialer, error) {
	dispatch, fb := o.dialer, o.feedbackDialer
	if dispatch != nil && fb != nil {
		return dispatch, fb, nil
	}

	if cfg.Plain {
		if dispatch == nil {
			dispatch = gateway.NewPlainDialer(cfg.GatewayEndpoint(), cfg.DialTimeout)
		}
		if fb == nil {
			fb = gateway.NewPlainDialer(cfg.FeedbackEndpoint(), cfg.DialTimeout)
		}
		return dispatch, fb, nil
	}

	src := o.certSource
	if src == nil {
		if cfg.CertFile == "" {
			return nil, nil, invalid("a certificate file is required unless plain is set")
		}
		src = certsource.NewFile(cfg.CertFile, cfg.CertPassphrase)
	}
	if dispatch == nil {
		dispatch = gateway.NewTLSDialer(cfg.GatewayEndpoint(), src, cfg.DialTimeout)
	}
	if fb == nil {
		fb = gateway.NewTLSDialer(cfg.FeedbackEndpoint(), src, cfg.DialTimeout)
	}
	return dispatch, fb, nil
}

// Start initializes plugins and accepts notifications until Stop or until
// ctx ends.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.manager.CanStart() {
		return ErrAlreadyRunning
	}
	if err := g.manager.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.manager.SetCancel(cancel)

	pluginCfg := PluginConfig{
		Logger:            g.logger,
		FeedbackDialer:    g.feedback,
		Tokens:            g.opts.tokens,
		CertFile:          g.config.CertFile,
		ReloadCertificate: g.reloadCertificate,
	}
	for i, p := range g.plugins {
		if err := initPlugin(runCtx, p, pluginCfg); err != nil {
			g.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			g.shutdownPlugins(g.plugins[:i])
			cancel()
			_ = g.manager.TransitionTo(StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		g.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	g.manager.AddWorker()
	go g.closeOnDone(runCtx)

	return g.manager.TransitionTo(StateRunning, "started")
}

// closeOnDone drains the queue once the run context ends and then closes
// the gateway connection.
func (g *Gateway) closeOnDone(ctx context.Context) {
	defer g.manager.WorkerDone()
	<-ctx.Done()

	drainCtx, cancel := context.WithTimeout(context.Background(), g.config.ShutdownTimeout)
	defer cancel()
	if err := g.queue.Drain(drainCtx); err != nil {
		st := g.queue.Stats()
		g.logger.Error("queue not drained before shutdown",
			log.Int("pending", st.Pending),
			log.Err(err))
	}
	if err := g.conn.Close(); err != nil {
		g.logger.Debug("close gateway connection", log.Err(err))
	}
}

// Stop stops accepting notifications, waits for queued ones to be written
// and shuts plugins down. It returns ErrShutdownTimeout if that takes
// longer than Config.ShutdownTimeout.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	if !g.manager.CanStop() {
		g.mu.Unlock()
		return ErrNotRunning
	}
	if err := g.manager.TransitionTo(StateStopping, "Stop() called"); err != nil {
		g.mu.Unlock()
		return err
	}
	if g.cancel != nil {
		g.cancel()
	}
	g.mu.Unlock()

	err := g.manager.WaitWithTimeout(g.config.ShutdownTimeout)
	g.shutdownPlugins(g.plugins)

	if err != nil {
		_ = g.manager.TransitionTo(StateCrashed, "shutdown timeout")
		return err
	}
	_ = g.manager.TransitionTo(StateStopped, "graceful shutdown")
	return nil
}

func (g *Gateway) shutdownPlugins(plugins []Plugin) {
	ctx, cancel := context.WithTimeout(context.Background(), g.config.ShutdownTimeout)
	defer cancel()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := shutdownPlugin(ctx, p); err != nil {
			g.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			continue
		}
		g.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
	}
}

func initPlugin(ctx context.Context, p Plugin, cfg PluginConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked during initialization: %v", p.Name(), r)
		}
	}()
	return p.Initialize(ctx, cfg)
}

func shutdownPlugin(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked during shutdown: %v", p.Name(), r)
		}
	}()
	return p.Shutdown(ctx)
}

// Send seals n if needed and hands it to the delivery path of its channel.
//
// A binary notification gets the next sequence id and is queued; Send
// returns once it is queued, blocking while the queue is full. A JSON/HTTP
// notification is posted before Send returns.
func (g *Gateway) Send(ctx context.Context, n *notification.Notification) error {
	if g.manager.State() != StateRunning {
		return ErrNotRunning
	}
	if !n.Sealed() {
		if err := n.Seal(); err != nil {
			return err
		}
	}

	switch n.Channel() {
	case notification.BinaryFramed:
		return g.sendBinary(ctx, n)
	case notification.JSONHTTP:
		if g.http == nil {
			return ErrNoRoute
		}
		return g.http.Send(ctx, n)
	default:
		return ErrNoRoute
	}
}

func (g *Gateway) sendBinary(ctx context.Context, n *notification.Notification) error {
	if g.config.SkipInactive && g.opts.tokens != nil {
		inactive, err := g.opts.tokens.IsInactive(ctx, n.Token.Binary())
		if err != nil {
			g.logger.Warn("token store lookup failed", log.Err(err))
		} else if inactive {
			g.logger.Debug("skipping inactive token", log.String("token", n.Token.String()))
			return ErrInactiveToken
		}
	}

	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	id := g.nextID + 1
	f, err := n.Frame(id)
	if err != nil {
		return err
	}
	err = g.queue.Enqueue(ctx, id, func(actx context.Context) error {
		return g.conn.Send(actx, f)
	})
	if err != nil {
		return err
	}
	g.nextID = id
	return nil
}

// Drain blocks until every queued notification has been written.
func (g *Gateway) Drain(ctx context.Context) error {
	return g.queue.Drain(ctx)
}

// Feedback fetches the inactive tokens once, passing each to fn. When a
// token store is configured, every token is also recorded there.
func (g *Gateway) Feedback(ctx context.Context, fn feedback.Handler) (int, error) {
	c := feedback.NewClient(g.feedback, feedback.WithLogger(g.logger.With(log.String("component", "feedback"))))
	return c.Fetch(ctx, func(rec wire.FeedbackRecord) error {
		if g.opts.tokens != nil {
			if err := g.opts.tokens.MarkInactive(ctx, rec.Token, rec.Time); err != nil {
				return err
			}
		}
		if fn != nil {
			return fn(rec)
		}
		return nil
	})
}

// Status returns the current lifecycle state.
func (g *Gateway) Status() State {
	return g.manager.State()
}

// Stats returns a snapshot of the replay queue.
func (g *Gateway) Stats() redo.Stats {
	return g.queue.Stats()
}

// ConnectionState returns the state of the gateway connection.
func (g *Gateway) ConnectionState() gateway.State {
	return g.conn.State()
}

func (g *Gateway) reloadCertificate() {
	for _, d := range []gateway.Dialer{g.dialer, g.feedback} {
		if inv, ok := d.(interface{ Invalidate() }); ok {
			inv.Invalidate()
		}
	}
	g.logger.Info("client certificate will be reloaded on next connect")
}

// validateModuleVersions checks that all module versions are compatible.
func validateModuleVersions() error {
	for name, m := range ModuleVersions() {
		if !isVersionCompatible(m.Version, m.MinCompatibleVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.Version, m.MinCompatibleVersion)
		}
	}
	return nil
}

// isVersionCompatible reports whether version >= minVersion, comparing
// "major.minor.patch" numerically.
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
