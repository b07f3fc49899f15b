package gateway

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bft-labs/pushgate/pkg/certsource"
)

// DefaultDialTimeout bounds connection setup, including the TLS handshake.
const DefaultDialTimeout = 20 * time.Second

// Dialer opens connections to one endpoint.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
	Addr() string
}

// PlainDialer opens unencrypted TCP connections.
type PlainDialer struct {
	addr    string
	timeout time.Duration
}

// NewPlainDialer creates a dialer for addr. A zero timeout uses
// DefaultDialTimeout.
func NewPlainDialer(addr string, timeout time.Duration) *PlainDialer {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &PlainDialer{addr: addr, timeout: timeout}
}

// Addr returns the endpoint.
func (d *PlainDialer) Addr() string { return d.addr }

// Dial connects to the endpoint.
func (d *PlainDialer) Dial(ctx context.Context) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.timeout}
	return nd.DialContext(ctx, "tcp", d.addr)
}

// TLSDialer opens TLS connections authenticated with the client certificate
// from a certsource.Source. The certificate is decoded on the first dial and
// reused until Invalidate.
type TLSDialer struct {
	addr    string
	timeout time.Duration
	source  certsource.Source
	roots   *x509.CertPool

	mu  sync.Mutex
	cfg *tls.Config
}

// TLSOption configures a TLSDialer.
type TLSOption func(*TLSDialer)

// WithRootCAs sets the pool used to verify the server. The system pool is
// used otherwise.
func WithRootCAs(pool *x509.CertPool) TLSOption {
	return func(d *TLSDialer) {
		d.roots = pool
	}
}

// NewTLSDialer creates a TLS dialer for addr. A zero timeout uses
// DefaultDialTimeout.
func NewTLSDialer(addr string, source certsource.Source, timeout time.Duration, opts ...TLSOption) *TLSDialer {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := &TLSDialer{addr: addr, timeout: timeout, source: source}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Addr returns the endpoint.
func (d *TLSDialer) Addr() string { return d.addr }

// Dial connects and completes the handshake.
func (d *TLSDialer) Dial(ctx context.Context) (net.Conn, error) {
	cfg, err := d.config()
	if err != nil {
		return nil, err
	}
	td := tls.Dialer{
		NetDialer: &net.Dialer{Timeout: d.timeout},
		Config:    cfg,
	}
	return td.DialContext(ctx, "tcp", d.addr)
}

// Invalidate drops the cached TLS configuration and, if the source caches
// its bundle, the bundle too.
func (d *TLSDialer) Invalidate() {
	d.mu.Lock()
	d.cfg = nil
	d.mu.Unlock()
	if inv, ok := d.source.(certsource.Invalidator); ok {
		inv.Invalidate()
	}
}

func (d *TLSDialer) config() (*tls.Config, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg != nil {
		return d.cfg, nil
	}

	cert, err := certsource.Certificate(d.source)
	if err != nil {
		return nil, fmt.Errorf("gateway: load client certificate: %w", err)
	}
	host, _, err := net.SplitHostPort(d.addr)
	if err != nil {
		return nil, fmt.Errorf("gateway: bad address %q: %w", d.addr, err)
	}

	d.cfg = &tls.Config{
		Certificates: []tls.Certificate{cert},
		ServerName:   host,
		RootCAs:      d.roots,
		MinVersion:   tls.VersionTLS12,
	}
	return d.cfg, nil
}
