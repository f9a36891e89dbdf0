package framing

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/cyberinferno/stereolink/logger"
)

// DecoderOptions controls how strictly frames are validated.
type DecoderOptions struct {
	// Strict rejects a frame whose tag does not match its position. By default
	// a mismatch is only logged and decoding continues by position.
	Strict bool
	// MaxFrameLength caps a single payload length; 0 means no limit.
	MaxFrameLength uint32
	// Logger receives tag mismatch warnings. Nil discards them.
	Logger logger.Logger
}

// Decoder reads frames and stereo pairs from a stream.
type Decoder struct {
	r    io.Reader
	opts DecoderOptions
	log  logger.Logger
	now  func() time.Time
}

// NewDecoder returns a Decoder reading from r.
//
// Parameters:
//   - r: Source stream, typically a net.Conn
//   - opts: Validation options
//
// Returns:
//   - A new *Decoder
func NewDecoder(r io.Reader, opts DecoderOptions) *Decoder {
	return &Decoder{
		r:    r,
		opts: opts,
		log:  logger.OrNop(opts.Logger),
		now:  time.Now,
	}
}

// ReadFrame reads one frame expected to carry the given channel. The returned
// frame carries the tag as read from the wire.
//
// Parameters:
//   - expected: The channel this position in the stream should hold
//
// Returns:
//   - The decoded frame
//   - ErrConnectionClosed if the stream ends mid-frame, *ProtocolMismatchError
//     in strict mode, ErrFrameTooLarge, or the underlying read error
func (d *Decoder) ReadFrame(expected Channel) (Frame, error) {
	header, err := ReadExact(d.r, HeaderSize)
	if err != nil {
		return Frame{}, fmt.Errorf("read %s header: %w", expected, err)
	}

	tag := Channel(binary.BigEndian.Uint32(header[0:4]))
	length := binary.BigEndian.Uint32(header[4:8])

	if tag != expected {
		mismatch := &ProtocolMismatchError{Expected: expected, Got: tag}
		if d.opts.Strict {
			return Frame{}, mismatch
		}

		d.log.Warn("unexpected channel tag, decoding by position",
			logger.Field{Key: "expected", Value: uint32(expected)},
			logger.Field{Key: "got", Value: uint32(tag)})
	}

	if d.opts.MaxFrameLength > 0 && length > d.opts.MaxFrameLength {
		return Frame{}, fmt.Errorf("%s frame of %d bytes (max %d): %w", expected, length, d.opts.MaxFrameLength, ErrFrameTooLarge)
	}

	payload, err := ReadExact(d.r, int(length))
	if err != nil {
		return Frame{}, fmt.Errorf("read %s payload: %w", expected, err)
	}

	return Frame{Channel: tag, Payload: payload}, nil
}

// ReadPair reads a LEFT frame then a RIGHT frame. Nothing is returned unless
// both frames were read completely.
//
// Returns:
//   - The decoded pair with ReceivedAt set
//   - The first frame error
func (d *Decoder) ReadPair() (Pair, error) {
	left, err := d.ReadFrame(ChannelLeft)
	if err != nil {
		return Pair{}, err
	}

	right, err := d.ReadFrame(ChannelRight)
	if err != nil {
		return Pair{}, err
	}

	return Pair{Left: left.Payload, Right: right.Payload, ReceivedAt: d.now()}, nil
}
