// Package lifecycle provides the state machine and retry helpers shared by
// pushgate instances and plugins.
//
// # State Machine
//
// A Manager tracks one component through these transitions:
//   - Stopped -> Starting
//   - Starting -> Running, Stopping, Crashed
//   - Running -> Stopping, Crashed
//   - Stopping -> Stopped, Crashed
//   - Crashed -> Starting
//
//	manager := lifecycle.NewManager(logger, emitter)
//	if !manager.CanStart() {
//	    return lifecycle.ErrAlreadyRunning
//	}
//	if err := manager.TransitionTo(lifecycle.StateStarting, "Start() called"); err != nil {
//	    return err
//	}
//
// # Background Work
//
// Loop runs a task on a fixed interval and backs off exponentially while it
// fails. Workers register with AddWorker/WorkerDone so that shutdown can be
// bounded with WaitWithTimeout.
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
