package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bft-labs/pushgate/internal/adapters/sqlite"
	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/pushgate"
	"github.com/bft-labs/pushgate/plugins/certwatcher"
	"github.com/bft-labs/pushgate/plugins/feedbackpoller"
)

// openStore opens the inactive token database, or returns nil when none is
// configured.
func (a *app) openStore() (*sqlite.TokenStore, error) {
	if a.cfg.TokenDB == "" {
		return nil, nil
	}
	if dir := filepath.Dir(a.cfg.TokenDB); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	return sqlite.Open(a.cfg.TokenDB)
}

// newGateway builds a gateway from the resolved configuration. Background
// plugins are only attached when withPlugins is set.
func (a *app) newGateway(store *sqlite.TokenStore, reg prometheus.Registerer, withPlugins bool) (*pushgate.Gateway, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	gcfg, err := a.cfg.Gateway()
	if err != nil {
		return nil, err
	}

	opts := []pushgate.Option{
		pushgate.WithLogger(log.NewZerologAdapterWithLogger(a.log)),
		pushgate.WithEventHandler(stateLogger{log: a.log}),
	}
	if reg != nil {
		opts = append(opts, pushgate.WithRegisterer(reg))
	}
	if store != nil {
		opts = append(opts, pushgate.WithTokenStore(store))
	}
	if withPlugins {
		opts = append(opts, certwatcher.WithCertWatcher(certwatcher.DefaultConfig()))
		if store != nil {
			fc := feedbackpoller.DefaultConfig()
			fc.Interval = a.cfg.FeedbackInterval
			opts = append(opts, feedbackpoller.WithFeedbackPoller(fc))
		}
	}
	return pushgate.New(gcfg, opts...)
}

// stateLogger logs gateway lifecycle transitions.
type stateLogger struct {
	log zerolog.Logger
}

func (l stateLogger) OnStateChange(ev pushgate.StateChangeEvent) {
	l.log.Debug().
		Str("from", ev.Previous.String()).
		Str("to", ev.Current.String()).
		Str("reason", ev.Reason).
		Msg("gateway state changed")
}

// serveMetrics serves a fresh registry on the configured address until ctx
// ends and returns it. Without an address it returns nil.
func (a *app) serveMetrics(ctx context.Context) prometheus.Registerer {
	if a.cfg.MetricsAddr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return reg
}
