package sender

import (
	"context"

	"github.com/bft-labs/pushgate/pkg/notification"
)

// Sender delivers sealed JSON/HTTP notifications.
type Sender interface {
	// Send delivers one notification. Per-device outcomes go to the
	// sender's Delegate; an error means the request itself failed.
	Send(ctx context.Context, n *notification.Notification) error
}

// Delegate receives per-device delivery results.
type Delegate interface {
	// DidSend is called when the endpoint accepted the notification.
	// registrationID is non-empty when the endpoint assigned the device a
	// new canonical id.
	DidSend(n *notification.Notification, registrationID string)

	// DidFail is called when the endpoint rejected the notification or its
	// answer could not be read. reason is the endpoint's error string, or
	// empty when none was given.
	DidFail(n *notification.Notification, reason string)
}

// DelegateFuncs adapts two functions to a Delegate. Nil functions are
// skipped.
type DelegateFuncs struct {
	OnSend func(n *notification.Notification, registrationID string)
	OnFail func(n *notification.Notification, reason string)
}

// DidSend calls OnSend.
func (d DelegateFuncs) DidSend(n *notification.Notification, registrationID string) {
	if d.OnSend != nil {
		d.OnSend(n, registrationID)
	}
}

// DidFail calls OnFail.
func (d DelegateFuncs) DidFail(n *notification.Notification, reason string) {
	if d.OnFail != nil {
		d.OnFail(n, reason)
	}
}
