package pushgate

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/pushgate/pkg/certsource"
	"github.com/bft-labs/pushgate/pkg/gateway"
	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/sender"
)

// Option configures optional behavior of a Gateway.
type Option func(*options)

type options struct {
	logger         log.Logger
	httpClient     sender.HTTPClient
	delegate       sender.Delegate
	registerer     prometheus.Registerer
	tokens         TokenStore
	certSource     certsource.Source
	dialer         gateway.Dialer
	feedbackDialer gateway.Dialer
	eventHandler   EventHandler
	plugins        []Plugin
	connOpts       []gateway.Option
}

// WithLogger sets the logger. A no-op logger is used otherwise.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient sets the client used by the JSON/HTTP channel. By
// default an *http.Client with Config.HTTPTimeout is used.
func WithHTTPClient(client sender.HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithDelegate receives per-device results of the JSON/HTTP channel.
func WithDelegate(d sender.Delegate) Option {
	return func(o *options) {
		o.delegate = d
	}
}

// WithRegisterer registers the gateway metrics with reg. Without it the
// metrics are collected but not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithTokenStore sets the inactive-token store shared with plugins and
// consulted when Config.SkipInactive is set.
func WithTokenStore(store TokenStore) Option {
	return func(o *options) {
		o.tokens = store
	}
}

// WithCertSource supplies the client certificate instead of
// Config.CertFile.
func WithCertSource(src certsource.Source) Option {
	return func(o *options) {
		o.certSource = src
	}
}

// WithDialers replaces the dispatch and feedback dialers built from the
// configuration. A nil feedback dialer keeps the configured one.
func WithDialers(dispatch, feedback gateway.Dialer) Option {
	return func(o *options) {
		o.dialer = dispatch
		o.feedbackDialer = feedback
	}
}

// WithConnectionOptions passes extra options to the gateway connection.
func WithConnectionOptions(opts ...gateway.Option) Option {
	return func(o *options) {
		o.connOpts = append(o.connOpts, opts...)
	}
}

// WithEventHandler sets a handler for lifecycle events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the Gateway starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
