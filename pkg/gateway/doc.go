// Package gateway owns the connection to the push gateway.
//
// A Connection writes encoded notifications to the socket and runs a Monitor
// that reads the peer's status frames. The peer reports a failed
// notification asynchronously, after it may already have dropped several
// later ones, so when the Monitor sees an error the Connection closes the
// socket and rewinds its queue to the last id the peer accepted. The next
// Send reconnects lazily.
//
// Connection.Send is meant to run as a redo.Queue action:
//
//	q := redo.New(128, 2*time.Second)
//	conn := gateway.NewConnection(dialer, q)
//	_ = q.Enqueue(ctx, f.ID, func(ctx context.Context) error {
//	    return conn.Send(ctx, f)
//	})
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package gateway
