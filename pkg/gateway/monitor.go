package gateway

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/wire"
)

// Report is the error a peer reported on one connection. ID is the last
// notification the peer accepted and is only meaningful when HasID is set.
type Report struct {
	Status wire.Status
	ID     uint32
	HasID  bool
}

// Failed reports whether the peer signalled an error.
func (r Report) Failed() bool {
	return r.Status != wire.StatusNone
}

// Monitor reads status frames from one connection until the peer reports an
// error or hangs up. It records the first error and then stops.
//
// Bytes that do not form a status frame are not an error: the monitor logs
// them and discards everything else the peer sends, still recording the
// hangup when the connection ends.
type Monitor struct {
	logger  log.Logger
	onError func(*Monitor)
	stopped atomic.Bool

	mu     sync.Mutex
	report Report

	done chan struct{}
}

// StartMonitor begins reading r in a new goroutine. onError, if not nil, is
// called from that goroutine once an error has been recorded, after Done is
// closed.
//
// The reader must not have a read deadline: an idle peer keeps the
// connection open indefinitely.
func StartMonitor(r io.Reader, logger log.Logger, onError func(*Monitor)) *Monitor {
	m := &Monitor{
		logger:  log.OrNoop(logger),
		onError: onError,
		done:    make(chan struct{}),
	}
	go m.run(r)
	return m
}

// Report returns the recorded error; its Status is StatusNone until one is
// observed.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.report
}

// ErrorCode returns the recorded status.
func (m *Monitor) ErrorCode() wire.Status {
	return m.Report().Status
}

// LastAcceptedID returns the id the peer reported, if any.
func (m *Monitor) LastAcceptedID() (uint32, bool) {
	r := m.Report()
	return r.ID, r.HasID
}

// Done is closed when the monitor has stopped reading.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// stop makes the monitor ignore the read error caused by the owner closing
// the connection.
func (m *Monitor) stop() {
	m.stopped.Store(true)
}

func (m *Monitor) run(r io.Reader) {
	recorded := m.read(r)
	close(m.done)
	if recorded && m.onError != nil {
		m.onError(m)
	}
}

// read consumes status frames and reports whether an error was recorded.
func (m *Monitor) read(r io.Reader) bool {
	for {
		frame, err := wire.ReadStatus(r)
		if m.stopped.Load() {
			return false
		}

		var perr *wire.ProtocolError
		if errors.As(err, &perr) {
			m.logger.Error("protocol error from peer", log.Err(err))
			return m.awaitHangup(r)
		}
		if frame.Status == wire.StatusNone {
			continue
		}

		m.record(Report{Status: frame.Status, ID: frame.ID, HasID: frame.HasID})

		fields := []log.Field{log.String("status", frame.Status.String())}
		if frame.HasID {
			fields = append(fields, log.Uint32("last_accepted_id", frame.ID))
		}
		if err != nil {
			fields = append(fields, log.Err(err))
		}
		m.logger.Warn("peer reported error", fields...)
		return true
	}
}

// awaitHangup discards the rest of a stream that can no longer be framed
// and records the hangup that ends it.
func (m *Monitor) awaitHangup(r io.Reader) bool {
	_, err := io.Copy(io.Discard, r)
	if m.stopped.Load() {
		return false
	}
	m.record(Report{Status: wire.StatusHangup})
	fields := []log.Field{log.String("status", wire.StatusHangup.String())}
	if err != nil {
		fields = append(fields, log.Err(err))
	}
	m.logger.Warn("peer reported error", fields...)
	return true
}

func (m *Monitor) record(rep Report) {
	m.mu.Lock()
	m.report = rep
	m.mu.Unlock()
}
