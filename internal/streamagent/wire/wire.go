// Package wire implements the fixed-header framed message codec shared by
// every stream-device message: an 8-byte little-endian header followed by a
// body whose length is carried in the header.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/spice-space/stream-agent/internal/ioerr"
)

// ProtocolVersion is the only version this codec understands. A mismatching
// header is always a fatal ProtocolError; there is no negotiation.
const ProtocolVersion = 1

// HeaderSize is the fixed wire size of a message header, in bytes.
const HeaderSize = 8

// Message types used by the core protocol (spec §6).
const (
	TypeCapabilities uint16 = 1
	TypeNotifyError  uint16 = 2
	TypeStartStop    uint16 = 3
	TypeFormat       uint16 = 4
	TypeData         uint16 = 5
	TypeCursor       uint16 = 6
)

// CapabilitiesMaxBytes bounds an inbound Capabilities body.
const CapabilitiesMaxBytes = 1024

// NotifyErrorCodeSize is the size of the fixed error_code prefix of a
// NotifyError body.
const NotifyErrorCodeSize = 4

// NotifyErrorMaxTextBytes bounds the UTF-8 text following the error_code
// prefix in a NotifyError body.
const NotifyErrorMaxTextBytes = 1024

// Header is the parsed form of the 8-byte fixed header.
type Header struct {
	ProtocolVersion uint8
	Padding         uint8
	Type            uint16
	Size            uint32 // body length, header excluded
}

// EncodeHeader serializes a header for message type t with a body of
// bodyLen bytes. ProtocolVersion is always the package constant; Padding is
// always zero on send.
func EncodeHeader(t uint16, bodyLen uint32) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = ProtocolVersion
	buf[1] = 0
	binary.LittleEndian.PutUint16(buf[2:4], t)
	binary.LittleEndian.PutUint32(buf[4:8], bodyLen)
	return buf
}

// DecodeHeader parses exactly HeaderSize bytes into a Header. It fails with
// a ProtocolError unless ProtocolVersion matches the known constant.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, ioerr.NewProtocolError("decode_header", fmt.Errorf("need %d bytes, got %d", HeaderSize, len(b)))
	}
	h := Header{
		ProtocolVersion: b[0],
		Padding:         b[1],
		Type:            binary.LittleEndian.Uint16(b[2:4]),
		Size:            binary.LittleEndian.Uint32(b[4:8]),
	}
	if h.ProtocolVersion != ProtocolVersion {
		return Header{}, ioerr.NewProtocolError("bad_version", fmt.Errorf("got version %d, want %d", h.ProtocolVersion, ProtocolVersion))
	}
	return h, nil
}

// Format is the body of an outbound Format message.
type Format struct {
	Width  uint32
	Height uint32
	Codec  uint8
}

// EncodeFormat serializes a complete Format message (header + body).
func EncodeFormat(f Format) []byte {
	body := make([]byte, 12) // width(4) + height(4) + codec(1) + 3 bytes padding
	binary.LittleEndian.PutUint32(body[0:4], f.Width)
	binary.LittleEndian.PutUint32(body[4:8], f.Height)
	body[8] = f.Codec
	out := make([]byte, 0, HeaderSize+len(body))
	out = append(out, EncodeHeader(TypeFormat, uint32(len(body)))...)
	out = append(out, body...)
	return out
}

// DecodeFormat parses a Format body (header already consumed).
func DecodeFormat(body []byte) (Format, error) {
	if len(body) < 9 {
		return Format{}, ioerr.NewProtocolError("decode_format", fmt.Errorf("body too short: %d", len(body)))
	}
	return Format{
		Width:  binary.LittleEndian.Uint32(body[0:4]),
		Height: binary.LittleEndian.Uint32(body[4:8]),
		Codec:  body[8],
	}, nil
}

// EncodeDataHeader returns just the 8-byte header for a Data message of the
// given body length; the caller writes the raw frame bytes immediately
// after under the same write-mutex hold, without copying them into this
// function.
func EncodeDataHeader(bodyLen uint32) []byte {
	return EncodeHeader(TypeData, bodyLen)
}

// EncodeCapabilitiesReply returns a complete Capabilities reply message: the
// header only, since the reply body is always empty.
func EncodeCapabilitiesReply() []byte {
	return EncodeHeader(TypeCapabilities, 0)
}

// StartStop is the parsed body of an inbound StartStop message.
type StartStop struct {
	Codecs []uint8
}

// DecodeStartStop parses a StartStop body of the form
// [num_codecs, c1, ..., cN]. It fails if num_codecs exceeds the number of
// bytes actually available after the count byte.
func DecodeStartStop(body []byte) (StartStop, error) {
	if len(body) < 1 {
		return StartStop{}, ioerr.NewProtocolError("malformed_start_stop", fmt.Errorf("empty body"))
	}
	n := int(body[0])
	if n > len(body)-1 {
		return StartStop{}, ioerr.NewProtocolError("malformed_start_stop", fmt.Errorf("num_codecs=%d exceeds body_len-1=%d", n, len(body)-1))
	}
	codecs := make([]uint8, n)
	copy(codecs, body[1:1+n])
	return StartStop{Codecs: codecs}, nil
}

// EncodeStartStop serializes a StartStop body from a codec list, mirroring
// the inbound wire layout exactly (used by tests to round-trip).
func EncodeStartStop(codecs []uint8) []byte {
	body := make([]byte, 1+len(codecs))
	body[0] = uint8(len(codecs))
	copy(body[1:], codecs)
	return body
}

// EncodeCursor serializes a complete Cursor message (header + body). The
// body layout is owned by the cursor-shape collaborator (spec.md §6); this
// codec only frames whatever bytes it's given.
func EncodeCursor(body []byte) []byte {
	out := make([]byte, 0, HeaderSize+len(body))
	out = append(out, EncodeHeader(TypeCursor, uint32(len(body)))...)
	out = append(out, body...)
	return out
}

// NotifyError is the parsed body of an inbound NotifyError message.
type NotifyError struct {
	Code uint32
	Text string
}

// DecodeNotifyError parses a NotifyError body of error_code(4 bytes,
// little-endian) + UTF-8 text. body must already be truncated to at most
// NotifyErrorCodeSize+NotifyErrorMaxTextBytes by the caller; this function
// only validates the minimum length.
func DecodeNotifyError(body []byte) (NotifyError, error) {
	if len(body) < NotifyErrorCodeSize {
		return NotifyError{}, ioerr.NewProtocolError("malformed_notify_error", fmt.Errorf("body too short: %d", len(body)))
	}
	code := binary.LittleEndian.Uint32(body[0:NotifyErrorCodeSize])
	text := body[NotifyErrorCodeSize:]
	// Truncate at the first NUL, mirroring a null-terminated C string.
	for i, c := range text {
		if c == 0 {
			text = text[:i]
			break
		}
	}
	return NotifyError{Code: code, Text: string(text)}, nil
}
