// Package certwatcher reloads the client certificate when its bundle file
// changes on disk. The next gateway or feedback connection then
// authenticates with the new certificate; open connections are kept.
package certwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/pushgate"
)

// Config holds configuration options for the certificate watcher.
type Config struct {
	// DebounceDelay collapses the burst of events produced by one file
	// replacement into a single reload.
	// Default: 250 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{DebounceDelay: 250 * time.Millisecond}
}

// Plugin watches the certificate bundle of a pushgate.Gateway.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration

	path     string
	reload   func()
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// New creates a certificate watcher plugin.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultConfig().DebounceDelay
	}
	return &Plugin{debounceDelay: cfg.DebounceDelay}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "certwatcher"
}

// Initialize starts watching cfg.CertFile. Without a certificate file the
// plugin stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg pushgate.PluginConfig) error {
	p.mu.Lock()
	p.path = cfg.CertFile
	p.reload = cfg.ReloadCertificate
	p.logger = log.OrNoop(cfg.Logger).With(log.String("plugin", p.Name()))
	p.mu.Unlock()

	if p.path == "" || p.reload == nil {
		p.logger.Info("certificate watcher idle: certificate does not come from a file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors and secret managers replace the file
	// by rename, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("watching certificate bundle", log.String("path", p.path))
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.scheduleReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("certificate watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) scheduleReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.logger.Info("certificate bundle changed", log.String("path", p.path))
		p.reload()
	})
}

// WithCertWatcher returns a pushgate Option that reloads the client
// certificate whenever Config.CertFile changes.
func WithCertWatcher(cfg Config) pushgate.Option {
	return pushgate.WithPlugin(New(cfg))
}

var _ pushgate.Plugin = (*Plugin)(nil)
