package wire

import (
	"encoding/binary"
	"errors"
	"io"
	"strconv"
)

// Status is the code carried by a status frame. StatusHangup is local: it
// never appears on the wire and marks a peer that closed the connection
// without a well-formed report.
type Status uint16

const (
	StatusNone               Status = 0
	StatusProcessingError    Status = 1
	StatusMissingToken       Status = 2
	StatusMissingTopic       Status = 3
	StatusMissingPayload     Status = 4
	StatusInvalidTokenSize   Status = 5
	StatusInvalidTopicSize   Status = 6
	StatusInvalidPayloadSize Status = 7
	StatusInvalidToken       Status = 8
	StatusShutdown           Status = 10
	StatusUnknown            Status = 255
	StatusHangup             Status = 1024
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusProcessingError:
		return "processing error"
	case StatusMissingToken:
		return "missing token"
	case StatusMissingTopic:
		return "missing topic"
	case StatusMissingPayload:
		return "missing payload"
	case StatusInvalidTokenSize:
		return "bad token size"
	case StatusInvalidTopicSize:
		return "bad topic size"
	case StatusInvalidPayloadSize:
		return "bad payload size"
	case StatusInvalidToken:
		return "invalid token"
	case StatusShutdown:
		return "shutdown"
	case StatusUnknown:
		return "unknown"
	case StatusHangup:
		return "hangup"
	default:
		return "status " + strconv.Itoa(int(s))
	}
}

// StatusFrame is the decoded peer report. ID is meaningful only when HasID is set.
type StatusFrame struct {
	Status Status
	ID     uint32
	HasID  bool
}

// EncodeStatus renders a status frame. StatusHangup cannot be encoded and is
// written as StatusUnknown.
func EncodeStatus(s StatusFrame) [StatusFrameSize]byte {
	var b [StatusFrameSize]byte
	b[0] = CommandStatus
	code := s.Status
	if code > 0xff {
		code = StatusUnknown
	}
	b[1] = byte(code)
	binary.BigEndian.PutUint32(b[2:], s.ID)
	return b
}

// DecodeStatus decodes a complete 6-byte status frame.
func DecodeStatus(b []byte) (StatusFrame, error) {
	if len(b) != StatusFrameSize {
		return StatusFrame{}, &ProtocolError{Reason: "status frame must be 6 bytes, got " + strconv.Itoa(len(b))}
	}
	if b[0] != CommandStatus {
		return StatusFrame{}, &ProtocolError{Reason: "unexpected status command " + strconv.Itoa(int(b[0]))}
	}
	return StatusFrame{
		Status: Status(b[1]),
		ID:     binary.BigEndian.Uint32(b[2:]),
		HasID:  true,
	}, nil
}

// ReadStatus blocks until a status frame arrives or the stream ends.
//
// A complete frame returns a nil error. A malformed command byte returns a
// *ProtocolError and StatusNone. When the stream ends early the returned
// frame holds StatusHangup, or the status code if at least two bytes arrived
// (without an id), together with the read error.
func ReadStatus(r io.Reader) (StatusFrame, error) {
	var buf [StatusFrameSize]byte
	n, err := io.ReadFull(r, buf[:])
	if n >= 1 && buf[0] != CommandStatus {
		return StatusFrame{}, &ProtocolError{Reason: "unexpected status command " + strconv.Itoa(int(buf[0]))}
	}
	if err == nil {
		return DecodeStatus(buf[:])
	}
	if errors.Is(err, io.EOF) && n > 0 {
		err = io.ErrUnexpectedEOF
	}
	if n >= 2 && buf[1] != byte(StatusNone) {
		return StatusFrame{Status: Status(buf[1])}, err
	}
	return StatusFrame{Status: StatusHangup}, err
}
