// Package framing implements the stereo pair wire format: two length-prefixed
// frames, LEFT then RIGHT, each written as
//
//	[u32 channel tag][u32 payload length][payload]
//
// with all integers big-endian. There is no version or checksum field.
package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"time"
)

// HeaderSize is the size in bytes of a frame header (tag + length).
const HeaderSize = 8

// readChunk is the largest buffer ReadExact allocates before data arrives.
const readChunk = 64 << 10

// Channel identifies which camera a frame belongs to.
type Channel uint32

const (
	ChannelLeft  Channel = 0
	ChannelRight Channel = 1
)

// String returns a human-readable channel name.
func (c Channel) String() string {
	switch c {
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	default:
		return fmt.Sprintf("channel(%d)", uint32(c))
	}
}

var (
	// ErrConnectionClosed is returned when the stream ends before a read is satisfied.
	ErrConnectionClosed = errors.New("connection closed mid-read")
	// ErrProtocolMismatch is matched by *ProtocolMismatchError in strict decoding.
	ErrProtocolMismatch = errors.New("protocol mismatch")
	// ErrFrameTooLarge is returned when a decoded length exceeds the decoder limit.
	ErrFrameTooLarge = errors.New("frame exceeds maximum length")
	// ErrPayloadTooLarge is returned when a payload does not fit a u32 length.
	ErrPayloadTooLarge = errors.New("payload too large for u32 length")
)

// Frame is one channel's payload.
type Frame struct {
	Channel Channel
	Payload []byte
}

// Pair is a decoded stereo pair. ReceivedAt is set by the decoder once both
// frames have been read.
type Pair struct {
	Left       []byte    `json:"left"`
	Right      []byte    `json:"right"`
	ReceivedAt time.Time `json:"received_at"`
}

// ProtocolMismatchError reports an unexpected channel tag.
type ProtocolMismatchError struct {
	Expected Channel
	Got      Channel
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("protocol mismatch: expected %s tag, got %s", e.Expected, e.Got)
}

// Is makes errors.Is(err, ErrProtocolMismatch) match.
func (e *ProtocolMismatchError) Is(target error) bool {
	return target == ErrProtocolMismatch
}

// ShortReadError is returned by ReadExact when the stream closes early. It
// matches ErrConnectionClosed.
type ShortReadError struct {
	Want int
	Got  int
	Err  error
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("connection closed mid-read: got %d of %d bytes: %v", e.Got, e.Want, e.Err)
}

func (e *ShortReadError) Is(target error) bool {
	return target == ErrConnectionClosed
}

func (e *ShortReadError) Unwrap() error {
	return e.Err
}

// EncodeHeader returns the 8-byte header for a frame.
//
// Parameters:
//   - ch: The frame channel
//   - length: The payload length
//
// Returns:
//   - The big-endian encoded header
func EncodeHeader(ch Channel, length uint32) []byte {
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(ch))
	binary.BigEndian.PutUint32(header[4:8], length)
	return header
}

// WriteFrame writes one frame to w. The header and payload go out in a single
// write call when w is a net.Conn (net.Buffers), otherwise in two.
//
// Parameters:
//   - w: Destination stream
//   - ch: The frame channel
//   - payload: Bytes to send; may be empty
//
// Returns:
//   - ErrPayloadTooLarge, or the first write error
func WriteFrame(w io.Writer, ch Channel, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("%s frame of %d bytes: %w", ch, len(payload), ErrPayloadTooLarge)
	}

	bufs := net.Buffers{EncodeHeader(ch, uint32(len(payload)))}
	if len(payload) > 0 {
		bufs = append(bufs, payload)
	}

	if _, err := bufs.WriteTo(w); err != nil {
		return fmt.Errorf("write %s frame: %w", ch, err)
	}

	return nil
}

// WritePair writes the LEFT frame followed by the RIGHT frame.
//
// Parameters:
//   - w: Destination stream
//   - left: Left camera payload
//   - right: Right camera payload
//
// Returns:
//   - The first error encountered; the RIGHT frame is not written if LEFT fails
func WritePair(w io.Writer, left, right []byte) error {
	if err := WriteFrame(w, ChannelLeft, left); err != nil {
		return err
	}

	return WriteFrame(w, ChannelRight, right)
}

// ReadExact reads exactly n bytes from r. If the stream ends or the
// connection is closed first, it returns a *ShortReadError matching
// ErrConnectionClosed; a short buffer is never returned. Reads above 64KiB
// grow the buffer as data arrives, so a bogus length cannot force a huge
// allocation on its own.
//
// Parameters:
//   - r: Source stream
//   - n: Number of bytes to read
//
// Returns:
//   - A buffer of length n
//   - An error if the read could not be completed
func ReadExact(r io.Reader, n int) ([]byte, error) {
	if n <= readChunk {
		buf := make([]byte, n)
		got, err := io.ReadFull(r, buf)
		if err != nil {
			if isClosed(err) {
				return nil, &ShortReadError{Want: n, Got: got, Err: err}
			}

			return nil, err
		}

		return buf, nil
	}

	var buf bytes.Buffer
	buf.Grow(readChunk)
	got, err := io.CopyN(&buf, r, int64(n))
	if err != nil {
		if isClosed(err) {
			if errors.Is(err, io.EOF) && got > 0 {
				err = io.ErrUnexpectedEOF
			}

			return nil, &ShortReadError{Want: n, Got: int(got), Err: err}
		}

		return nil, err
	}

	return buf.Bytes(), nil
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
