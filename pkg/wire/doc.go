// Package wire implements the binary framing shared by the push gateway and
// its peer.
//
// A notification travels as a command byte (2), a 4-byte big-endian frame
// length and a sequence of items, each a 1-byte item id, a 2-byte big-endian
// item length and the item bytes:
//
//	byte    command = 2
//	int32   frame length
//	repeat: byte item id | int16 item length | item bytes
//
// The peer reports failures with a fixed 6-byte status frame (command 8,
// status code, id of the last notification it accepted). The feedback
// service streams {time, token length, token} records.
//
// Everything in this package is a stateless transform.
package wire
