package apns

import (
	"bytes"
	"encoding/binary"
)

// Wire constants for the legacy APS binary protocol (§4.C). All
// multi-byte integers are big-endian; this is the one point the
// original implementation got inconsistent, and the spec this is built
// from is explicit that big-endian applies throughout.
const (
	commandSendNotification byte = 0x01
	commandErrorResponse    byte = 0x08

	deviceTokenLength = 32
	errorFrameLength  = 6
	feedbackRecordLen = 38

	sendFrameHeaderLength = 1 + 4 + 4 + 2 + deviceTokenLength + 2 // 45
)

// encodeSendFrame builds the on-wire representation of a single
// notification send (the legacy "command 1" frame). expiry is seconds
// since epoch, or 0 for "do not store".
func encodeSendFrame(requestID uint32, expiry uint32, token [deviceTokenLength]byte, payload []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, sendFrameHeaderLength+len(payload)))
	buf.WriteByte(commandSendNotification)
	binary.Write(buf, binary.BigEndian, requestID)
	binary.Write(buf, binary.BigEndian, expiry)
	binary.Write(buf, binary.BigEndian, uint16(deviceTokenLength))
	buf.Write(token[:])
	binary.Write(buf, binary.BigEndian, uint16(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// decodeErrorFrame parses a 6-byte error-response frame (§4.C).
func decodeErrorFrame(data []byte) (status Status, requestID uint32, err error) {
	if len(data) != errorFrameLength {
		return 0, 0, ErrMalformedResponse
	}
	if data[0] != commandErrorResponse {
		return 0, 0, ErrMalformedResponse
	}
	status = Status(data[1])
	if !status.valid() {
		return 0, 0, ErrMalformedResponse
	}
	requestID = binary.BigEndian.Uint32(data[2:6])
	return status, requestID, nil
}

// FeedbackRecord is one entry read off the feedback stream (§4.C).
type FeedbackRecord struct {
	Timestamp uint32
	Token     [deviceTokenLength]byte
}

// decodeFeedbackRecord parses a 38-byte feedback record.
func decodeFeedbackRecord(data []byte) (FeedbackRecord, error) {
	var rec FeedbackRecord
	if len(data) != feedbackRecordLen {
		return rec, ErrMalformedRecord
	}
	tokenLen := binary.BigEndian.Uint16(data[4:6])
	if tokenLen != deviceTokenLength {
		return rec, ErrMalformedRecord
	}
	rec.Timestamp = binary.BigEndian.Uint32(data[0:4])
	copy(rec.Token[:], data[6:38])
	return rec, nil
}
