package gateway

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/wire"
)

func waitDone(t *testing.T, m *Monitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(eventually):
		t.Fatal("monitor did not stop")
	}
}

func TestMonitor_RecordsStatusFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	called := make(chan *Monitor, 1)
	m := StartMonitor(client, log.NewNoopLogger(), func(m *Monitor) { called <- m })

	assert.Equal(t, wire.StatusNone, m.ErrorCode())
	_, ok := m.LastAcceptedID()
	assert.False(t, ok)

	none := wire.EncodeStatus(wire.StatusFrame{Status: wire.StatusNone})
	_, err := server.Write(none[:])
	require.NoError(t, err)
	bad := wire.EncodeStatus(wire.StatusFrame{Status: wire.StatusInvalidToken, ID: 7, HasID: true})
	_, err = server.Write(bad[:])
	require.NoError(t, err)

	waitDone(t, m)
	assert.Same(t, m, <-called)
	assert.Equal(t, wire.StatusInvalidToken, m.ErrorCode())
	id, ok := m.LastAcceptedID()
	assert.True(t, ok)
	assert.Equal(t, uint32(7), id)
}

func TestMonitor_HangupHasNoID(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	m := StartMonitor(client, nil, nil)
	_, err := server.Write([]byte{wire.CommandStatus})
	require.NoError(t, err)
	require.NoError(t, server.Close())

	waitDone(t, m)
	rep := m.Report()
	assert.True(t, rep.Failed())
	assert.Equal(t, wire.StatusHangup, rep.Status)
	assert.False(t, rep.HasID)
}

func TestMonitor_ProtocolErrorIsNotAnError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	var called atomic.Bool
	m := StartMonitor(client, nil, func(*Monitor) { called.Store(true) })
	_, err := server.Write([]byte{0x42, 1, 0, 0, 0, 1})
	require.NoError(t, err)
	_, err = server.Write([]byte{wire.CommandStatus, 8, 0, 0, 0, 3})
	require.NoError(t, err)

	select {
	case <-m.Done():
		t.Fatal("monitor stopped on a protocol error")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, m.Report().Failed())
	assert.False(t, called.Load())

	// The peer hanging up afterwards is still noticed.
	require.NoError(t, server.Close())
	waitDone(t, m)
	rep := m.Report()
	assert.Equal(t, wire.StatusHangup, rep.Status)
	assert.False(t, rep.HasID)
	assert.Eventually(t, called.Load, eventually, 10*time.Millisecond)
}

func TestMonitor_StoppedAfterProtocolError(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	var called atomic.Bool
	m := StartMonitor(client, nil, func(*Monitor) { called.Store(true) })
	_, err := server.Write([]byte{0x42, 1, 0, 0, 0, 1})
	require.NoError(t, err)

	m.stop()
	require.NoError(t, client.Close())

	waitDone(t, m)
	assert.False(t, m.Report().Failed())
	assert.False(t, called.Load())
}

func TestMonitor_StoppedIgnoresClose(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	var called atomic.Bool
	m := StartMonitor(client, nil, func(*Monitor) { called.Store(true) })
	m.stop()
	require.NoError(t, client.Close())

	waitDone(t, m)
	assert.False(t, m.Report().Failed())
	assert.False(t, called.Load())
}
