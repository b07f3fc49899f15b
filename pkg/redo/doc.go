// Package redo provides a bounded delivery queue that can replay what it has
// already delivered.
//
// A Queue keeps entries on a fixed-capacity circular tape. Producers append
// with Enqueue; a single consumer goroutine, started on demand, runs each
// entry's action in order and stamps it as sent. Sent entries stay on the
// tape for at least the retention window so that a peer which reports
// failures late and asynchronously can still ask for them again: Rewind(id)
// moves the consumer back to the entry with that id and runs every later
// entry again, in the original order.
//
//	q := redo.New(128, 2*time.Second)
//	_ = q.Enqueue(ctx, 1, func(ctx context.Context) error { return send(n1) })
//	...
//	if err := q.Rewind(ctx, lastAccepted); errors.Is(err, redo.ErrEntryNotFound) {
//	    // entries after lastAccepted are gone
//	}
//
// Enqueue blocks while the tape is full of unconsumed entries and while the
// slot it is about to reuse is still inside the retention window.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package redo
