// Package stereoclient provides the processing-side Stream Client: it connects
// to a stereo Session Listener, decodes stereo pairs with blocking exact-byte
// reads, and can persist each pair to disk.
package stereoclient

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/stereolink/framing"
	"github.com/cyberinferno/stereolink/logger"
	"github.com/cyberinferno/stereolink/perfmonitor"
	"github.com/cyberinferno/stereolink/persist"
)

// ConnectionState represents the current state of the client connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected
	Connecting                          // Dial in progress
	Connected                           // Connected and able to receive
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// ConnectionStateEvent is passed to the handler registered with OnConnectionState.
type ConnectionStateEvent struct {
	State     ConnectionState // The new state
	Address   string          // The listener address
	Timestamp time.Time       // When the change happened
	Error     error           // Non-nil if the change was caused by an error
}

// ConnectionStateHandler is called on every state change from its own
// goroutine; implementations must be safe for concurrent use.
type ConnectionStateHandler func(event ConnectionStateEvent)

// ErrAlreadyConnected is returned by Connect on a connected client.
var ErrAlreadyConnected = errors.New("already connected or connecting")

// ErrNotConnected is returned by ReceiveStereoPair before Connect.
var ErrNotConnected = errors.New("not connected")

// ConnectError reports a failed dial.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Config holds configuration for the stream client.
type Config struct {
	// Address is the listener "host:port".
	Address string
	// ConnectionTimeout bounds the dial; 0 means no timeout.
	ConnectionTimeout time.Duration
	// StrictChannelTags rejects pairs whose channel tags are out of place
	// instead of logging a warning.
	StrictChannelTags bool
	// MaxFrameLength caps one payload; 0 means no limit.
	MaxFrameLength uint32
	// Persist writes every received pair to PersistDir.
	Persist bool
	// PersistDir is the directory for persisted pairs.
	PersistDir string
	// PersistExt is the persisted file extension (default ".jpg").
	PersistExt string
}

// DefaultConfig returns a Config for address with a 10s dial timeout,
// tolerant tag checking, no frame limit and persistence off.
//
// Parameters:
//   - address: The listener "host:port"
//
// Returns:
//   - A Config ready to pass to New
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ConnectionTimeout: 10 * time.Second,
		PersistDir:        "captures",
		PersistExt:        persist.DefaultExt,
	}
}

// Client is the stream client. Connect, then call ReceiveStereoPair in a
// loop; Disconnect from any goroutine to unblock a pending receive.
type Client struct {
	config Config
	log    logger.Logger
	writer *persist.PairWriter

	mu                sync.RWMutex
	conn              net.Conn
	state             ConnectionState
	onConnectionState ConnectionStateHandler

	recvMu sync.Mutex
}

// New creates a Client in the Disconnected state.
//
// Parameters:
//   - config: Connection and decoding settings
//   - log: Logger for client events; nil discards them
//
// Returns:
//   - A new *Client, or an error if persistence is on and PersistDir cannot be created
func New(config Config, log logger.Logger) (*Client, error) {
	c := &Client{
		config: config,
		log:    logger.OrNop(log).With(logger.Field{Key: "addr", Value: config.Address}),
		state:  Disconnected,
	}

	if config.Persist {
		w, err := persist.NewPairWriter(config.PersistDir, config.PersistExt)
		if err != nil {
			return nil, err
		}

		c.writer = w
	}

	return c, nil
}

// OnConnectionState registers the state change handler, replacing any
// previous one. Pass nil to clear it.
func (c *Client) OnConnectionState(handler ConnectionStateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnectionState = handler
}

// Connect dials the listener.
//
// Returns:
//   - ErrAlreadyConnected if connected or connecting
//   - A *ConnectError if the listener is unreachable or refuses
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = Connecting
	handler := c.onConnectionState
	c.mu.Unlock()

	c.emitConnectionState(handler, Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.Dial("tcp", c.config.Address)
	if err != nil {
		connectErr := &ConnectError{Address: c.config.Address, Err: err}
		c.setState(Disconnected, connectErr)
		c.log.Warn("connect failed", logger.Field{Key: "error", Value: err})
		return connectErr
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(Connected, nil)
	c.log.Info("connected", logger.Field{Key: "local", Value: conn.LocalAddr().String()})
	return nil
}

// ReceiveStereoPair blocks until one full stereo pair has been read. On any
// read error the connection is closed and the client returns to
// Disconnected; the caller decides whether to reconnect. If persistence is on
// the pair is saved to disk; a save failure is logged and does not fail the
// receive.
//
// Returns:
//   - The left and right payloads
//   - ErrNotConnected, an error matching framing.ErrConnectionClosed if the
//     stream closed mid-read, a framing protocol error in strict mode, or the
//     underlying read error
func (c *Client) ReceiveStereoPair() ([]byte, []byte, error) {
	pair, err := c.Receive()
	if err != nil {
		return nil, nil, err
	}

	return pair.Left, pair.Right, nil
}

// Receive is ReceiveStereoPair returning the decoded framing.Pair, which also
// carries the receive time.
func (c *Client) Receive() (framing.Pair, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return framing.Pair{}, ErrNotConnected
	}

	dec := framing.NewDecoder(conn, framing.DecoderOptions{
		Strict:         c.config.StrictChannelTags,
		MaxFrameLength: c.config.MaxFrameLength,
		Logger:         c.log,
	})

	pm := perfmonitor.NewPerformanceMonitor()
	pm.Start()

	pair, err := dec.ReadPair()
	if err != nil {
		c.dropConn(conn, err)
		return framing.Pair{}, err
	}

	pm.Stop()
	c.log.Debug("stereo pair received",
		logger.Field{Key: "left_bytes", Value: len(pair.Left)},
		logger.Field{Key: "right_bytes", Value: len(pair.Right)},
		logger.Field{Key: "elapsed_ms", Value: pm.ElapsedMilliseconds()})

	if c.writer != nil {
		leftPath, rightPath, saveErr := c.writer.Save(pair)
		if saveErr != nil {
			c.log.Error("failed to persist stereo pair", logger.Field{Key: "error", Value: saveErr})
		} else {
			c.log.Info("stereo pair saved",
				logger.Field{Key: "left", Value: leftPath},
				logger.Field{Key: "right", Value: rightPath})
		}
	}

	return pair, nil
}

// Disconnect closes the connection. Safe to call repeatedly and while a
// receive is blocked, which then fails with a connection-closed error.
//
// Returns:
//   - nil if already disconnected, or the error from closing the socket
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	err := conn.Close()
	c.setState(Disconnected, nil)
	c.log.Info("disconnected")
	return err
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client is in the Connected state.
func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

// RemoteAddr returns the listener address of the live connection, or "".
func (c *Client) RemoteAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil {
		return ""
	}

	return c.conn.RemoteAddr().String()
}

// dropConn closes conn after a failed read unless Disconnect already did.
func (c *Client) dropConn(conn net.Conn, cause error) {
	c.mu.Lock()
	owned := c.conn == conn
	if owned {
		c.conn = nil
	}
	c.mu.Unlock()

	if !owned {
		return
	}

	_ = conn.Close()
	c.setState(Disconnected, cause)
	c.log.Warn("connection lost", logger.Field{Key: "error", Value: cause})
}

func (c *Client) setState(state ConnectionState, err error) {
	c.mu.Lock()
	c.state = state
	handler := c.onConnectionState
	c.mu.Unlock()

	c.emitConnectionState(handler, state, err)
}

func (c *Client) emitConnectionState(handler ConnectionStateHandler, state ConnectionState, err error) {
	if handler != nil {
		event := ConnectionStateEvent{
			State:     state,
			Address:   c.config.Address,
			Timestamp: time.Now(),
			Error:     err,
		}

		go handler(event)
	}
}
