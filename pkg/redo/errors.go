package redo

import (
	"errors"
	"fmt"
)

// ErrEntryNotFound matches every *EntryNotFoundError.
var ErrEntryNotFound = errors.New("redo: entry not found")

// EntryNotFoundError is returned by Rewind when the requested entry is no
// longer retained on the tape (or was never enqueued). Entries after it
// cannot be replayed. Unknown is set when the caller had no id to rewind to.
type EntryNotFoundError struct {
	ID      uint32
	Unknown bool
}

func (e *EntryNotFoundError) Error() string {
	if e.Unknown {
		return "redo: unable to rewind, last accepted entry is unknown"
	}
	return fmt.Sprintf("redo: unable to rewind to entry %d", e.ID)
}

// Is reports whether target is ErrEntryNotFound.
func (e *EntryNotFoundError) Is(target error) bool {
	return target == ErrEntryNotFound
}
