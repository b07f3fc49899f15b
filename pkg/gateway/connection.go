package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/redo"
	"github.com/bft-labs/pushgate/pkg/wire"
)

// State is the connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateErrorObserved
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateErrorObserved:
		return "error-observed"
	default:
		return "disconnected"
	}
}

// Rewinder replays queued notifications after the given id. *redo.Queue
// implements it.
type Rewinder interface {
	Rewind(ctx context.Context, id uint32) error
	Epoch() uint64
}

// Connection owns the socket to the gateway and the Monitor reading it.
type Connection struct {
	dialer       Dialer
	queue        Rewinder
	logger       log.Logger
	metrics      *Metrics
	writeTimeout time.Duration
	reportGrace  time.Duration
	proactive    bool

	// recovering is set while an error seen between sends is being handled
	// outside Send. Sends that started before the rewind was applied are
	// skipped and kept in skipped; the replay delivers them, or they are
	// written once the rewind has failed.
	recovering    atomic.Bool
	recoveryEpoch atomic.Uint64

	mu      sync.Mutex
	state   State
	conn    net.Conn
	monitor *Monitor
	session string
	// written counts frames written on the current socket.
	written int
	skipped []wire.Frame
	buf     []byte
}

// NewConnection creates a disconnected Connection that dials with dialer and
// rewinds queue when the peer reports an error.
func NewConnection(dialer Dialer, queue Rewinder, opts ...Option) *Connection {
	c := &Connection{
		dialer:       dialer,
		queue:        queue,
		logger:       log.NoopLogger{},
		writeTimeout: DefaultWriteTimeout,
		reportGrace:  DefaultReportGrace,
		proactive:    true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the id of the current or last socket, for log correlation.
func (c *Connection) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Send writes f to the gateway.
//
// Send must run inside an action of the queue passed to NewConnection, with
// the context the action received. Before writing, it checks whether the
// peer reported an error on the current socket; if so it closes the socket
// and rewinds the queue to the reported id. When that rewind succeeds, f is
// not written now because the queue replays it. A disconnected Connection
// dials first.
//
// A failed write closes the socket. If the peer explains the failure with a
// status frame the queue is rewound; otherwise f is retried once on a new
// socket. A *ConnectionError is returned when f could not be written.
func (c *Connection) Send(ctx context.Context, f wire.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.superseded(ctx) {
		c.skipped = append(c.skipped, f)
		return c.skip(f)
	}

	b, err := wire.AppendFrame(c.buf[:0], f)
	if err != nil {
		return fmt.Errorf("gateway: encode notification %d: %w", f.ID, err)
	}
	c.buf = b

	if m := c.monitor; m != nil {
		if rep := m.Report(); rep.Failed() {
			written := c.written
			c.state = StateErrorObserved
			c.dropLocked()
			if c.rewind(ctx, rep, written) {
				return c.skip(f)
			}
		}
	}

	for attempt := 0; ; attempt++ {
		if c.conn == nil {
			if err := c.connectLocked(ctx); err != nil {
				c.drop(f, err)
				return err
			}
		}

		werr := c.writeLocked(b)
		if werr == nil {
			c.written++
			c.metrics.incSent()
			return nil
		}
		c.metrics.incWriteErrors()

		rep := c.awaitReportLocked()
		written := c.written
		c.dropLocked()
		if rep.Failed() && rep.HasID && rep.ID == f.ID {
			// f itself was rejected and nothing was written after it.
			c.metrics.incStatus(rep.Status)
			c.logger.Warn("notification rejected",
				log.Uint32("id", f.ID),
				log.String("status", rep.Status.String()),
			)
			return nil
		}
		if rep.Failed() && c.rewind(ctx, rep, written) {
			return c.skip(f)
		}

		err := &ConnectionError{Op: "write", Err: werr}
		if attempt > 0 {
			c.drop(f, err)
			return err
		}
		c.logger.Warn("write failed, retrying on a new connection",
			log.Uint32("id", f.ID),
			log.Err(werr),
		)
	}
}

// Close closes the socket, if any. A later Send reconnects.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.monitor.stop()
	c.conn, c.monitor = nil, nil
	c.written = 0
	c.state = StateDisconnected
	return conn.Close()
}

func (c *Connection) connectLocked(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		c.metrics.incDialErrors()
		return &ConnectionError{Op: "dial", Err: err}
	}
	// The peer holds idle connections open; reads never time out.
	_ = conn.SetReadDeadline(time.Time{})

	c.session = uuid.NewString()
	c.conn = conn
	c.written = 0
	c.monitor = StartMonitor(conn, c.logger.With(log.String("session", c.session)), c.handleError)
	c.state = StateConnected
	c.metrics.incConnects()
	c.logger.Info("connected to gateway",
		log.String("addr", c.dialer.Addr()),
		log.String("session", c.session),
	)
	return nil
}

func (c *Connection) writeLocked(b []byte) error {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.conn.Write(b)
	return err
}

// awaitReportLocked gives the monitor a short time to read the status frame
// that usually explains a failed write.
func (c *Connection) awaitReportLocked() Report {
	m := c.monitor
	if m == nil {
		return Report{}
	}
	if c.reportGrace > 0 {
		t := time.NewTimer(c.reportGrace)
		defer t.Stop()
		select {
		case <-m.Done():
		case <-t.C:
		}
	}
	return m.Report()
}

func (c *Connection) dropLocked() {
	if c.monitor != nil {
		c.monitor.stop()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn, c.monitor = nil, nil
	c.written = 0
	c.state = StateDisconnected
}

// rewind replays everything queued after the id in rep and reports whether
// a replay was scheduled. written is the number of frames sent on the
// socket rep came from.
func (c *Connection) rewind(ctx context.Context, rep Report, written int) bool {
	c.metrics.incStatus(rep.Status)

	if !rep.HasID {
		if written > 0 {
			c.lose(&redo.EntryNotFoundError{Unknown: true}, rep)
		}
		return false
	}

	err := c.queue.Rewind(ctx, rep.ID)
	switch {
	case err == nil:
		c.metrics.incRewinds()
		c.logger.Info("replaying notifications after reported error",
			log.String("status", rep.Status.String()),
			log.Uint32("after_id", rep.ID),
		)
		return true
	case errors.Is(err, redo.ErrEntryNotFound):
		c.lose(err, rep)
	default:
		c.logger.Error("rewind failed", log.Err(err))
	}
	return false
}

func (c *Connection) lose(err error, rep Report) {
	c.metrics.incLost()
	fields := []log.Field{
		log.String("status", rep.Status.String()),
		log.Err(err),
	}
	if rep.HasID {
		fields = append(fields, log.Uint32("after_id", rep.ID))
	} else {
		fields = append(fields, log.String("after_id", "unknown"))
	}
	c.logger.Error("notifications lost, cannot replay", fields...)
}

func (c *Connection) drop(f wire.Frame, err error) {
	c.metrics.incLost()
	c.logger.Error("notification dropped",
		log.Uint32("id", f.ID),
		log.Err(err),
	)
}

// superseded reports whether a recovery in progress will replay the entry
// running under ctx.
func (c *Connection) superseded(ctx context.Context) bool {
	if !c.recovering.Load() {
		return false
	}
	epoch, ok := redo.EpochOf(ctx)
	return ok && epoch <= c.recoveryEpoch.Load()
}

func (c *Connection) skip(f wire.Frame) error {
	c.metrics.incSkipped()
	c.logger.Debug("send skipped, replay pending", log.Uint32("id", f.ID))
	return nil
}

// handleError runs on the monitor goroutine when the peer reports an error
// between sends.
func (c *Connection) handleError(m *Monitor) {
	if !c.proactive {
		return
	}

	c.mu.Lock()
	if c.monitor != m {
		c.mu.Unlock()
		return
	}
	rep, written := m.Report(), c.written
	c.state = StateErrorObserved
	c.dropLocked()
	if !rep.HasID {
		// Nothing to rewind to; the queue carries on from its tail.
		c.rewind(context.Background(), rep, written)
		c.mu.Unlock()
		return
	}
	c.recoveryEpoch.Store(c.queue.Epoch())
	c.recovering.Store(true)
	c.mu.Unlock()

	replayed := c.rewind(context.Background(), rep, written)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recovering.Store(false)
	skipped := c.skipped
	c.skipped = nil
	if !replayed {
		c.resendLocked(skipped)
	}
}

// resendLocked writes frames that were skipped for a replay that never
// happened. Each frame gets one attempt.
func (c *Connection) resendLocked(frames []wire.Frame) {
	ctx := context.Background()
	for i, f := range frames {
		b, err := wire.AppendFrame(c.buf[:0], f)
		if err != nil {
			c.drop(f, err)
			continue
		}
		c.buf = b

		if c.conn == nil {
			if err := c.connectLocked(ctx); err != nil {
				for _, lost := range frames[i:] {
					c.drop(lost, err)
				}
				return
			}
		}
		if err := c.writeLocked(b); err != nil {
			c.metrics.incWriteErrors()
			c.dropLocked()
			werr := &ConnectionError{Op: "write", Err: err}
			for _, lost := range frames[i:] {
				c.drop(lost, werr)
			}
			return
		}
		c.written++
		c.metrics.incSent()
	}
}
