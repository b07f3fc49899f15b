package notification

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bft-labs/pushgate/pkg/wire"
)

// Channel is the delivery path a notification takes.
type Channel int

const (
	// BinaryFramed notifications are written to the gateway socket.
	BinaryFramed Channel = iota
	// JSONHTTP notifications are posted to an HTTP push endpoint.
	JSONHTTP
)

func (c Channel) String() string {
	if c == JSONHTTP {
		return "json-http"
	}
	return "binary"
}

// ErrEmptyToken is returned for a blank token string.
var ErrEmptyToken = errors.New("notification: empty device token")

// DeviceToken identifies one device on one channel. The zero value is not a
// valid token.
type DeviceToken struct {
	set          bool
	channel      Channel
	binary       [wire.TokenSize]byte
	registration string
}

// BinaryToken wraps a raw 32-byte token.
func BinaryToken(b []byte) (DeviceToken, error) {
	if len(b) != wire.TokenSize {
		return DeviceToken{}, fmt.Errorf("notification: binary token must be %d bytes, got %d", wire.TokenSize, len(b))
	}
	t := DeviceToken{set: true, channel: BinaryFramed}
	copy(t.binary[:], b)
	return t, nil
}

// ParseBinaryToken decodes a binary token written as hex or base64.
func ParseBinaryToken(s string) (DeviceToken, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DeviceToken{}, ErrEmptyToken
	}
	if b, err := hex.DecodeString(s); err == nil && len(b) == wire.TokenSize {
		return BinaryToken(b)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return BinaryToken(b)
	}
	return DeviceToken{}, fmt.Errorf("notification: %q is not a hex or base64 binary token", s)
}

// RegistrationToken wraps a registration id for the JSON/HTTP channel.
func RegistrationToken(id string) (DeviceToken, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DeviceToken{}, ErrEmptyToken
	}
	return DeviceToken{set: true, channel: JSONHTTP, registration: id}, nil
}

// ParseToken reads a binary token if s decodes to exactly 32 bytes and a
// registration id otherwise.
func ParseToken(s string) (DeviceToken, error) {
	if t, err := ParseBinaryToken(s); err == nil {
		return t, nil
	}
	return RegistrationToken(s)
}

// Channel returns the delivery path for the token.
func (t DeviceToken) Channel() Channel { return t.channel }

// IsZero reports whether t is the zero value.
func (t DeviceToken) IsZero() bool { return !t.set }

// Binary returns the raw token. It is all zeros for registration tokens.
func (t DeviceToken) Binary() [wire.TokenSize]byte { return t.binary }

// Registration returns the registration id, or "" for binary tokens.
func (t DeviceToken) Registration() string { return t.registration }

// String returns the hex form of a binary token or the registration id.
func (t DeviceToken) String() string {
	if t.channel == JSONHTTP {
		return t.registration
	}
	return hex.EncodeToString(t.binary[:])
}
