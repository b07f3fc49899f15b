package wire

import (
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"time"
)

// FeedbackRecordSize is the length of one feedback record.
const FeedbackRecordSize = 4 + 2 + TokenSize

// FeedbackRecord reports a device token the push service found inactive.
type FeedbackRecord struct {
	Time  time.Time
	Token [TokenSize]byte
}

// AppendFeedback appends the encoded record to dst.
func AppendFeedback(dst []byte, rec FeedbackRecord) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(rec.Time.Unix()))
	dst = binary.BigEndian.AppendUint16(dst, TokenSize)
	return append(dst, rec.Token[:]...)
}

// ReadFeedback reads one feedback record. It returns io.EOF when the stream
// ends on a record boundary.
func ReadFeedback(r io.Reader) (FeedbackRecord, error) {
	var rec FeedbackRecord
	var hdr [6]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, &ProtocolError{Reason: "short feedback header: " + err.Error()}
	}
	if l := binary.BigEndian.Uint16(hdr[4:]); l != TokenSize {
		return rec, &ProtocolError{Reason: "feedback token length " + strconv.Itoa(int(l))}
	}
	if _, err := io.ReadFull(r, rec.Token[:]); err != nil {
		return rec, &ProtocolError{Reason: "short feedback token: " + err.Error()}
	}
	rec.Time = time.Unix(int64(binary.BigEndian.Uint32(hdr[:4])), 0)
	return rec, nil
}
