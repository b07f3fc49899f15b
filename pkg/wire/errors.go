package wire

import "fmt"

// ProtocolError reports bytes from the peer that do not follow the framing.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "wire: protocol error: " + e.Reason
}

// ItemTooLongError is returned when an item exceeds its allowed length.
type ItemTooLongError struct {
	Item ItemID
	Len  int
	Max  int
}

func (e *ItemTooLongError) Error() string {
	return fmt.Sprintf("wire: %s item is %d bytes, max %d", e.Item, e.Len, e.Max)
}

// DecodeError describes a rejected notification frame. Status is the code a
// peer answers with; ID is set when the frame carried an identifier item
// before the problem was found.
type DecodeError struct {
	Status Status
	ID     uint32
	HasID  bool
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: rejected frame (%s): %s", e.Status, e.Reason)
}
