package feedback

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/pushgate/internal/apnstest"
	"github.com/bft-labs/pushgate/pkg/gateway"
	"github.com/bft-labs/pushgate/pkg/wire"
)

func record(b byte, at int64) wire.FeedbackRecord {
	var rec wire.FeedbackRecord
	for i := range rec.Token {
		rec.Token[i] = b
	}
	rec.Time = time.Unix(at, 0)
	return rec
}

func startFeedback(t *testing.T, records []wire.FeedbackRecord, extra ...byte) *apnstest.FeedbackServer {
	t.Helper()
	srv, err := apnstest.NewFeedbackServer(records, extra...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func collect(t *testing.T, addr string) ([]wire.FeedbackRecord, int, error) {
	t.Helper()
	c := NewClient(gateway.NewPlainDialer(addr, time.Second), WithReadTimeout(2*time.Second))
	var got []wire.FeedbackRecord
	n, err := c.Fetch(context.Background(), func(rec wire.FeedbackRecord) error {
		got = append(got, rec)
		return nil
	})
	return got, n, err
}

func TestFetch_ReadsAllRecords(t *testing.T) {
	want := []wire.FeedbackRecord{record(1, 1700000000), record(2, 1700000100), record(3, 1700000200)}
	srv := startFeedback(t, want)

	got, n, err := collect(t, srv.Addr())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, got, 3)
	for i := range want {
		assert.Equal(t, want[i].Token, got[i].Token)
		assert.True(t, want[i].Time.Equal(got[i].Time))
	}
	assert.Equal(t, 1, srv.Dials())
}

func TestFetch_Empty(t *testing.T) {
	srv := startFeedback(t, nil)

	got, n, err := collect(t, srv.Addr())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, got)
}

func TestFetch_TruncatedTail(t *testing.T) {
	srv := startFeedback(t, []wire.FeedbackRecord{record(1, 1700000000)}, 0x65, 0x4f)

	got, n, err := collect(t, srv.Addr())
	var perr *wire.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, n)
	assert.Len(t, got, 1)
}

func TestFetch_BadTokenLength(t *testing.T) {
	srv := startFeedback(t, nil, 0, 0, 0, 1, 0, 16)

	_, n, err := collect(t, srv.Addr())
	var perr *wire.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Zero(t, n)
}

func TestFetch_HandlerErrorStops(t *testing.T) {
	srv := startFeedback(t, []wire.FeedbackRecord{record(1, 1), record(2, 2)})
	c := NewClient(gateway.NewPlainDialer(srv.Addr(), time.Second))

	boom := errors.New("store closed")
	n, err := c.Fetch(context.Background(), func(wire.FeedbackRecord) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestFetch_DialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, _, err = collect(t, addr)
	var cerr *gateway.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "dial", cerr.Op)
}

func TestFetch_ContextCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Hold the connection open without sending anything.
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
		_ = conn.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c := NewClient(gateway.NewPlainDialer(ln.Addr().String(), time.Second))
	_, err = c.Fetch(ctx, func(wire.FeedbackRecord) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
