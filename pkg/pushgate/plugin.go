package pushgate

import (
	"context"
	"time"

	"github.com/bft-labs/pushgate/pkg/gateway"
	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/wire"
)

// Plugin extends a Gateway with background work. Plugins are initialized
// in registration order on Start and shut down in reverse order on Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// BasePlugin provides no-op lifecycle methods for embedding.
type BasePlugin struct{}

// Initialize does nothing.
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }

// Shutdown does nothing.
func (BasePlugin) Shutdown(context.Context) error { return nil }

// TokenStore records device tokens reported inactive by the feedback
// service.
type TokenStore interface {
	MarkInactive(ctx context.Context, token [wire.TokenSize]byte, reportedAt time.Time) error
	IsInactive(ctx context.Context, token [wire.TokenSize]byte) (bool, error)
}

// PluginConfig is what a plugin gets from the Gateway it is attached to.
type PluginConfig struct {
	Logger log.Logger

	// FeedbackDialer connects to the feedback service.
	FeedbackDialer gateway.Dialer

	// Tokens is the store configured with WithTokenStore, or nil.
	Tokens TokenStore

	// CertFile is the certificate bundle path, empty when the certificate
	// does not come from a file.
	CertFile string

	// ReloadCertificate drops every cached client certificate so the next
	// connection loads it again.
	ReloadCertificate func()
}
