// Package notification models a push notification and the device it is
// addressed to.
//
// A DeviceToken is either a 32-byte binary token, delivered over the binary
// gateway protocol, or a registration id, delivered over JSON/HTTP. The
// token decides the Channel of a Notification. Seal renders the payload for
// that channel exactly once; after that the notification can be turned into
// a wire.Frame or an HTTP body.
package notification
