package domain

import "errors"

// Domain errors represent error conditions of a pushgate instance.
// They are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("pushgate: already running")

	// ErrNotRunning is returned when Stop() or Send() is called on a stopped instance.
	ErrNotRunning = errors.New("pushgate: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("pushgate: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("pushgate: invalid configuration")

	// ErrNoRoute is returned when a notification's channel has no configured
	// delivery path.
	ErrNoRoute = errors.New("pushgate: no route for notification channel")

	// ErrInactiveToken is returned when a notification targets a token the
	// feedback service reported as inactive.
	ErrInactiveToken = errors.New("pushgate: device token is inactive")
)
