package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strconv"
)

// Command bytes.
const (
	CommandNotification byte = 2
	CommandStatus       byte = 8
)

// ItemID identifies a TLV item inside a notification frame.
type ItemID byte

const (
	ItemToken      ItemID = 1
	ItemPayload    ItemID = 2
	ItemIdentifier ItemID = 3
	ItemExpiration ItemID = 4
	ItemPriority   ItemID = 5
)

func (i ItemID) String() string {
	switch i {
	case ItemToken:
		return "token"
	case ItemPayload:
		return "payload"
	case ItemIdentifier:
		return "identifier"
	case ItemExpiration:
		return "expiration"
	case ItemPriority:
		return "priority"
	default:
		return "item " + strconv.Itoa(int(i))
	}
}

// Priorities.
const (
	PriorityImmediate   uint8 = 10
	PriorityPowerSaving uint8 = 5
)

const (
	// TokenSize is the exact length of a device token item.
	TokenSize = 32

	// MaxPayloadSize bounds the JSON payload item.
	MaxPayloadSize = 2048

	// StatusFrameSize is the length of a status frame.
	StatusFrameSize = 6

	headerSize     = 1 + 4
	itemHeaderSize = 1 + 2
)

// Frame is a notification as it travels on the wire.
type Frame struct {
	Token   [TokenSize]byte
	Payload []byte
	ID      uint32
	// Expiration is in epoch seconds; 0 means the peer should not store it.
	Expiration uint32
	// Priority defaults to PriorityImmediate when zero.
	Priority uint8
}

// Size returns the number of bytes Encode produces for f.
func (f Frame) Size() int {
	return headerSize + f.itemsLen()
}

func (f Frame) itemsLen() int {
	return itemHeaderSize + TokenSize +
		itemHeaderSize + len(f.Payload) +
		itemHeaderSize + 4 +
		itemHeaderSize + 4 +
		itemHeaderSize + 1
}

// Encode renders f as a notification frame.
func Encode(f Frame) ([]byte, error) {
	return AppendFrame(make([]byte, 0, f.Size()), f)
}

// AppendFrame appends the encoded frame to dst.
func AppendFrame(dst []byte, f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return dst, &ItemTooLongError{Item: ItemPayload, Len: len(f.Payload), Max: MaxPayloadSize}
	}
	priority := f.Priority
	if priority == 0 {
		priority = PriorityImmediate
	}

	dst = append(dst, CommandNotification)
	dst = binary.BigEndian.AppendUint32(dst, uint32(f.itemsLen()))

	dst = appendItemHeader(dst, ItemToken, TokenSize)
	dst = append(dst, f.Token[:]...)

	dst = appendItemHeader(dst, ItemPayload, len(f.Payload))
	dst = append(dst, f.Payload...)

	dst = appendItemHeader(dst, ItemIdentifier, 4)
	dst = binary.BigEndian.AppendUint32(dst, f.ID)

	dst = appendItemHeader(dst, ItemExpiration, 4)
	dst = binary.BigEndian.AppendUint32(dst, f.Expiration)

	dst = appendItemHeader(dst, ItemPriority, 1)
	dst = append(dst, priority)
	return dst, nil
}

func appendItemHeader(dst []byte, id ItemID, n int) []byte {
	dst = append(dst, byte(id))
	return binary.BigEndian.AppendUint16(dst, uint16(n))
}

// Decode parses exactly one notification frame from b.
func Decode(b []byte) (Frame, error) {
	r := bytes.NewReader(b)
	f, err := ReadFrame(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return f, io.ErrUnexpectedEOF
		}
		return f, err
	}
	if r.Len() != 0 {
		return f, &ProtocolError{Reason: strconv.Itoa(r.Len()) + " trailing bytes after frame"}
	}
	return f, nil
}

// ReadFrame reads one notification frame. It returns io.EOF when the stream
// ends cleanly before a frame starts, a *DecodeError when the frame violates
// the item rules, and io.ErrUnexpectedEOF when the stream ends mid-frame.
// Readers of a frame stream should pass an io.ByteReader such as a
// *bufio.Reader; other readers are wrapped for the duration of one call.
func ReadFrame(r io.Reader) (Frame, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		b := bufio.NewReader(r)
		r, br = b, b
	}

	var f Frame
	cmd, err := br.ReadByte()
	if err != nil {
		return f, err
	}
	if cmd != CommandNotification {
		return f, &DecodeError{Status: StatusProcessingError, Reason: "unexpected command " + strconv.Itoa(int(cmd))}
	}

	var hdr [4]byte
	if err := readFull(r, hdr[:]); err != nil {
		return f, err
	}
	remaining := int(binary.BigEndian.Uint32(hdr[:]))

	var hasToken, hasPayload, hasID bool
	reject := func(s Status, reason string) (Frame, error) {
		return f, &DecodeError{Status: s, ID: f.ID, HasID: hasID, Reason: reason}
	}

	for remaining > 0 {
		var ih [itemHeaderSize]byte
		if err := readFull(r, ih[:]); err != nil {
			return f, err
		}
		id := ItemID(ih[0])
		n := int(binary.BigEndian.Uint16(ih[1:]))
		remaining -= itemHeaderSize + n
		if remaining < 0 {
			return reject(StatusProcessingError, "item overruns frame")
		}

		switch id {
		case ItemToken:
			if n != TokenSize {
				return reject(StatusInvalidTokenSize, "token item is "+strconv.Itoa(n)+" bytes")
			}
			if err := readFull(r, f.Token[:]); err != nil {
				return f, err
			}
			hasToken = true
		case ItemPayload:
			if n > MaxPayloadSize {
				return reject(StatusInvalidPayloadSize, "payload item is "+strconv.Itoa(n)+" bytes")
			}
			f.Payload = make([]byte, n)
			if err := readFull(r, f.Payload); err != nil {
				return f, err
			}
			hasPayload = true
		case ItemIdentifier, ItemExpiration:
			if n != 4 {
				return reject(StatusProcessingError, id.String()+" item is "+strconv.Itoa(n)+" bytes")
			}
			var v [4]byte
			if err := readFull(r, v[:]); err != nil {
				return f, err
			}
			if id == ItemIdentifier {
				f.ID = binary.BigEndian.Uint32(v[:])
				hasID = true
			} else {
				f.Expiration = binary.BigEndian.Uint32(v[:])
			}
		case ItemPriority:
			if n != 1 {
				return reject(StatusProcessingError, "priority item is "+strconv.Itoa(n)+" bytes")
			}
			p, err := br.ReadByte()
			if err != nil {
				return f, unexpected(err)
			}
			f.Priority = p
		default:
			return reject(StatusProcessingError, "unknown "+id.String())
		}
	}

	if !hasToken {
		return reject(StatusMissingToken, "no token item")
	}
	if !hasPayload {
		return reject(StatusMissingPayload, "no payload item")
	}
	return f, nil
}

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	return unexpected(err)
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
