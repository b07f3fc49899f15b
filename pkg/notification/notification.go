package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/pushgate/pkg/wire"
)

// DefaultSound is the sound name binary-channel clients play by default.
const DefaultSound = "default"

var (
	// ErrReservedKey is returned when a custom field would overwrite the
	// payload's "aps" dictionary.
	ErrReservedKey = errors.New(`notification: "aps" is a reserved key`)

	// ErrAlreadySealed is returned by Seal on a sealed notification.
	ErrAlreadySealed = errors.New("notification: already sealed")

	// ErrNotSealed is returned when a payload is needed before Seal.
	ErrNotSealed = errors.New("notification: not sealed")

	// ErrWrongChannel is returned when a notification is encoded for a
	// channel its token does not belong to.
	ErrWrongChannel = errors.New("notification: wrong channel for token")
)

// Notification is a message to one device.
type Notification struct {
	Token   DeviceToken
	Message string
	Sound   string
	// Expiration is when the gateway may discard an undelivered binary
	// notification. The zero time means never.
	Expiration time.Time
	// Priority is wire.PriorityImmediate or wire.PriorityPowerSaving. Zero
	// means immediate.
	Priority uint8

	custom  map[string]any
	payload []byte
	sealed  bool
}

// New creates a notification addressed to token.
func New(token DeviceToken) *Notification {
	return &Notification{Token: token}
}

// Channel returns the delivery path chosen by the token.
func (n *Notification) Channel() Channel {
	return n.Token.Channel()
}

// SetDefaultSound selects the channel's default sound.
func (n *Notification) SetDefaultSound() {
	if n.Channel() == BinaryFramed {
		n.Sound = DefaultSound
		return
	}
	n.Sound = ""
}

// SetCustom adds a top-level payload field. value must marshal to JSON.
func (n *Notification) SetCustom(key string, value any) error {
	if key == "aps" {
		return ErrReservedKey
	}
	if n.custom == nil {
		n.custom = make(map[string]any)
	}
	n.custom[key] = value
	return nil
}

// Custom returns the value set for key.
func (n *Notification) Custom(key string) (any, bool) {
	v, ok := n.custom[key]
	return v, ok
}

// Seal renders the JSON payload. A notification can be sealed once.
//
// Binary payloads carry the message and sound under "aps"; JSON/HTTP
// payloads carry them as top-level "message" and "sound" fields. Custom
// fields sit next to them.
func (n *Notification) Seal() error {
	if n.sealed {
		return ErrAlreadySealed
	}
	if n.Token.IsZero() {
		return ErrEmptyToken
	}

	doc := make(map[string]any, len(n.custom)+2)
	for k, v := range n.custom {
		doc[k] = v
	}

	switch n.Channel() {
	case BinaryFramed:
		aps := map[string]any{"alert": n.Message}
		if n.Sound != "" {
			aps["sound"] = n.Sound
		}
		doc["aps"] = aps
	default:
		doc["message"] = n.Message
		if n.Sound != "" {
			doc["sound"] = n.Sound
		}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("notification: encode payload: %w", err)
	}
	if n.Channel() == BinaryFramed && len(payload) > wire.MaxPayloadSize {
		return &wire.ItemTooLongError{Item: wire.ItemPayload, Len: len(payload), Max: wire.MaxPayloadSize}
	}

	n.payload = payload
	n.sealed = true
	return nil
}

// Sealed reports whether Seal succeeded.
func (n *Notification) Sealed() bool { return n.sealed }

// Payload returns the sealed JSON payload, or nil before Seal.
func (n *Notification) Payload() []byte { return n.payload }

// Frame builds the wire frame for a sealed binary notification.
func (n *Notification) Frame(id uint32) (wire.Frame, error) {
	if n.Channel() != BinaryFramed {
		return wire.Frame{}, ErrWrongChannel
	}
	if !n.sealed {
		return wire.Frame{}, ErrNotSealed
	}

	var exp uint32
	if !n.Expiration.IsZero() {
		exp = uint32(n.Expiration.Unix())
	}
	return wire.Frame{
		Token:      n.Token.Binary(),
		Payload:    n.payload,
		ID:         id,
		Expiration: exp,
		Priority:   n.Priority,
	}, nil
}
