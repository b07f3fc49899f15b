package gateway

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/pushgate/internal/apnstest"
	"github.com/bft-labs/pushgate/pkg/certsource"
	"github.com/bft-labs/pushgate/pkg/redo"
	"github.com/bft-labs/pushgate/pkg/wire"
)

const eventually = 5 * time.Second

func token(b byte) [wire.TokenSize]byte {
	var t [wire.TokenSize]byte
	for i := range t {
		t[i] = b
	}
	return t
}

func frame(id uint32, tok byte) wire.Frame {
	return wire.Frame{
		Token:    token(tok),
		Payload:  []byte(`{"aps":{"alert":"hello"}}`),
		ID:       id,
		Priority: wire.PriorityImmediate,
	}
}

func ids(from, to uint32, skip ...uint32) []uint32 {
	var out []uint32
next:
	for id := from; id <= to; id++ {
		for _, s := range skip {
			if id == s {
				continue next
			}
		}
		out = append(out, id)
	}
	return out
}

func startServer(t *testing.T, opts ...apnstest.Option) *apnstest.Server {
	t.Helper()
	srv, err := apnstest.NewServer(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

type harness struct {
	queue   *redo.Queue
	conn    *Connection
	metrics *Metrics
}

func newHarness(t *testing.T, dialer Dialer, opts ...Option) *harness {
	t.Helper()
	q := redo.New(64, 2*time.Second)
	m := NewMetrics(prometheus.NewRegistry())
	opts = append([]Option{WithMetrics(m), WithReportGrace(200 * time.Millisecond)}, opts...)
	c := NewConnection(dialer, q, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return &harness{queue: q, conn: c, metrics: m}
}

func (h *harness) send(t *testing.T, frames ...wire.Frame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), eventually)
	defer cancel()
	for _, f := range frames {
		f := f
		require.NoError(t, h.queue.Enqueue(ctx, f.ID, func(ctx context.Context) error {
			return h.conn.Send(ctx, f)
		}))
	}
	require.NoError(t, h.queue.Drain(ctx))
}

func (h *harness) observedError() bool {
	h.conn.mu.Lock()
	defer h.conn.mu.Unlock()
	return h.conn.monitor != nil && h.conn.monitor.Report().Failed()
}

func framesFor(from, to uint32, bad ...uint32) []wire.Frame {
	var out []wire.Frame
	for id := from; id <= to; id++ {
		tok := byte(1)
		for _, b := range bad {
			if id == b {
				tok = 0xee
			}
		}
		out = append(out, frame(id, tok))
	}
	return out
}

func TestConnection_DeliversInOrder(t *testing.T) {
	srv := startServer(t)
	h := newHarness(t, NewPlainDialer(srv.Addr(), time.Second))

	h.send(t, framesFor(1, 20)...)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(ids(1, 20), srv.AcceptedIDs())
	}, eventually, 10*time.Millisecond)
	assert.Equal(t, 1, srv.Dials())
	assert.Equal(t, StateConnected, h.conn.State())
	assert.NotEmpty(t, h.conn.Session())
	assert.Equal(t, float64(20), testutil.ToFloat64(h.metrics.sent))

	got := srv.Accepted()[0]
	assert.Equal(t, token(1), got.Token)
	assert.Equal(t, []byte(`{"aps":{"alert":"hello"}}`), got.Payload)
}

func TestConnection_ReplaysAfterRejectedToken(t *testing.T) {
	srv := startServer(t, apnstest.WithBadToken(token(0xee)))
	h := newHarness(t, NewPlainDialer(srv.Addr(), time.Second))

	h.send(t, framesFor(1, 20, 5)...)

	want := ids(1, 20, 5)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, srv.AcceptedIDs())
	}, eventually, 10*time.Millisecond)
	require.NoError(t, h.queue.Drain(context.Background()))
	assert.Equal(t, want, srv.AcceptedIDs())
	assert.GreaterOrEqual(t, srv.Dials(), 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.statusErrors.WithLabelValues("invalid token")))
	assert.Zero(t, testutil.ToFloat64(h.metrics.lost))
}

func TestConnection_RecoversOnNextSendWithoutProactiveRecovery(t *testing.T) {
	srv := startServer(t, apnstest.WithBadToken(token(0xee)))
	h := newHarness(t, NewPlainDialer(srv.Addr(), time.Second), WithProactiveRecovery(false))

	h.send(t, framesFor(1, 3, 3)...)
	require.Eventually(t, h.observedError, eventually, 10*time.Millisecond)
	assert.Equal(t, ids(1, 2), srv.AcceptedIDs())
	assert.Equal(t, StateConnected, h.conn.State())

	h.send(t, framesFor(4, 5)...)

	want := []uint32{1, 2, 4, 5}
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, srv.AcceptedIDs())
	}, eventually, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.rewinds))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.skipped))
}

func TestConnection_ReconnectsAfterShutdown(t *testing.T) {
	srv := startServer(t)
	h := newHarness(t, NewPlainDialer(srv.Addr(), time.Second))

	h.send(t, framesFor(1, 10)...)
	require.Eventually(t, func() bool {
		return len(srv.AcceptedIDs()) == 10
	}, eventually, 10*time.Millisecond)

	srv.Disconnect()
	require.Eventually(t, func() bool {
		return h.conn.State() == StateDisconnected
	}, eventually, 10*time.Millisecond)

	h.send(t, framesFor(11, 15)...)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(ids(1, 15), srv.AcceptedIDs())
	}, eventually, 10*time.Millisecond)
	assert.Equal(t, 2, srv.Dials())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.statusErrors.WithLabelValues("shutdown")))
}

func TestConnection_HangupWithoutStatusIsReportedAsLoss(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	var accepts atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepts.Add(1)
			go func() {
				_, _ = wire.ReadFrame(bufio.NewReader(conn))
				_ = conn.Close()
			}()
		}
	}()

	h := newHarness(t, NewPlainDialer(ln.Addr().String(), time.Second))
	h.send(t, frame(1, 1))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.lost) == 1
	}, eventually, 10*time.Millisecond)
	assert.Equal(t, StateDisconnected, h.conn.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.statusErrors.WithLabelValues("hangup")))

	h.send(t, frame(2, 1))
	assert.Equal(t, int32(2), accepts.Load())
}

// stallingPeer accepts frames and records their ids. On the first
// connection it reads one frame, waits for end and then writes final (if
// set) and hangs up.
type stallingPeer struct {
	ln    net.Listener
	end   chan struct{}
	final []byte

	mu       sync.Mutex
	accepted []uint32
}

func startStallingPeer(t *testing.T, final []byte) *stallingPeer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	p := &stallingPeer{ln: ln, end: make(chan struct{}), final: final}
	go func() {
		first := true
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go p.serve(conn, first)
			first = false
		}
	}()
	return p
}

func (p *stallingPeer) serve(conn net.Conn, first bool) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		f, err := wire.ReadFrame(r)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.accepted = append(p.accepted, f.ID)
		p.mu.Unlock()
		if first {
			<-p.end
			if p.final != nil {
				_, _ = conn.Write(p.final)
			}
			return
		}
	}
}

func (p *stallingPeer) acceptedIDs() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint32(nil), p.accepted...)
}

// sendDuringRecovery makes the peer end the first connection while the
// connection lock is held and a second frame is waiting to be sent, so the
// monitor's recovery and the send race for the lock.
func sendDuringRecovery(t *testing.T, p *stallingPeer, h *harness) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), eventually)
	defer cancel()

	h.send(t, frame(1, 1))
	require.Eventually(t, func() bool {
		return len(p.acceptedIDs()) == 1
	}, eventually, 10*time.Millisecond)

	h.conn.mu.Lock()
	m := h.conn.monitor
	close(p.end)
	<-m.Done()

	f := frame(2, 1)
	require.NoError(t, h.queue.Enqueue(ctx, f.ID, func(actx context.Context) error {
		return h.conn.Send(actx, f)
	}))
	time.Sleep(20 * time.Millisecond)
	h.conn.mu.Unlock()

	require.NoError(t, h.queue.Drain(ctx))
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]uint32{1, 2}, p.acceptedIDs())
	}, eventually, 10*time.Millisecond)
}

func TestConnection_HangupDuringSendStillWritesFrame(t *testing.T) {
	p := startStallingPeer(t, nil)
	h := newHarness(t, NewPlainDialer(p.ln.Addr().String(), time.Second))

	sendDuringRecovery(t, p, h)

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.lost))
	assert.Zero(t, testutil.ToFloat64(h.metrics.rewinds))
}

// unreplayable fails every rewind as if the entry had been evicted.
type unreplayable struct {
	*redo.Queue
}

func (unreplayable) Rewind(_ context.Context, id uint32) error {
	return &redo.EntryNotFoundError{ID: id}
}

func TestConnection_FailedRewindDuringSendStillWritesFrame(t *testing.T) {
	status := wire.EncodeStatus(wire.StatusFrame{Status: wire.StatusShutdown, ID: 1, HasID: true})
	p := startStallingPeer(t, status[:])

	q := redo.New(64, 2*time.Second)
	m := NewMetrics(prometheus.NewRegistry())
	c := NewConnection(NewPlainDialer(p.ln.Addr().String(), time.Second), unreplayable{q},
		WithMetrics(m), WithReportGrace(200*time.Millisecond))
	t.Cleanup(func() { _ = c.Close() })
	h := &harness{queue: q, conn: c, metrics: m}

	sendDuringRecovery(t, p, h)

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.lost))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.statusErrors.WithLabelValues("shutdown")))
}

func TestConnection_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	q := redo.New(4, time.Second)
	m := NewMetrics(prometheus.NewRegistry())
	c := NewConnection(NewPlainDialer(addr, time.Second), q, WithMetrics(m))

	err = c.Send(context.Background(), frame(1, 1))

	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "dial", cerr.Op)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dialErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.lost))
}

func TestConnection_EncodeErrorDoesNotDial(t *testing.T) {
	srv := startServer(t)
	q := redo.New(4, time.Second)
	c := NewConnection(NewPlainDialer(srv.Addr(), time.Second), q)

	f := frame(1, 1)
	f.Payload = bytes.Repeat([]byte("x"), wire.MaxPayloadSize+1)
	err := c.Send(context.Background(), f)

	var tooLong *wire.ItemTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Zero(t, srv.Dials())
}

func TestConnection_TLS(t *testing.T) {
	bundle, err := apnstest.NewBundle("push test", "secret")
	require.NoError(t, err)

	srv := startServer(t, apnstest.WithTLS(&tls.Config{
		Certificates: []tls.Certificate{bundle.Certificate},
		ClientAuth:   tls.RequireAnyClientCert,
		MinVersion:   tls.VersionTLS12,
	}))
	src := certsource.Static{Data: bundle.PKCS12, Passphrase: bundle.Passphrase}
	dialer := NewTLSDialer(srv.Addr(), src, time.Second, WithRootCAs(bundle.Pool()))
	h := newHarness(t, dialer)

	h.send(t, framesFor(1, 3)...)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(ids(1, 3), srv.AcceptedIDs())
	}, eventually, 10*time.Millisecond)

	dialer.Invalidate()
	dialer.mu.Lock()
	assert.Nil(t, dialer.cfg)
	dialer.mu.Unlock()
}

func TestTLSDialer_BadBundle(t *testing.T) {
	d := NewTLSDialer("127.0.0.1:1", certsource.Static{Data: []byte("nope")}, time.Second)
	_, err := d.Dial(context.Background())
	assert.Error(t, err)
}

func TestObserveQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	q := redo.New(8, time.Second)
	ObserveQueue(reg, q.Stats)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.ElementsMatch(t, []string{
		"pushgate_queue_pending_entries",
		"pushgate_queue_retained_entries",
	}, names)
}
