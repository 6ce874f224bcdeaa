// Package conn implements per-connection handshake state machine driven by
// readiness notifications.
//
// Conn never waits for readiness itself. Each handler runs until the socket
// reports that no more progress is possible and returns a Transition that
// tells the caller which interest the connection must be re-armed with.
package conn

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/eapache/queue"
	"github.com/gobwas/pool/pbytes"

	"github.com/gobwas/wsreactor/handshake"
	"github.com/gobwas/wsreactor/internal/sock"
	"github.com/gobwas/wsreactor/poll"
)

// DefaultReadBufferSize is used when Options.ReadBufferSize is zero.
const DefaultReadBufferSize = 4096

// State represents handshake state of a connection.
type State uint8

const (
	// AwaitingHandshake means that request head is being received.
	AwaitingHandshake State = iota
	// HandshakeResponse means that request head was received and the 101
	// response is to be sent.
	HandshakeResponse
	// Connected means that the handshake is complete.
	Connected
)

func (s State) String() string {
	switch s {
	case AwaitingHandshake:
		return "awaiting_handshake"
	case HandshakeResponse:
		return "handshake_response"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Socket is a non-blocking stream socket.
//
// Read and Write must return sock.ErrWouldBlock when no progress is possible
// without blocking. Read must return io.EOF when peer closed the connection.
type Socket interface {
	io.ReadWriteCloser
	Fd() int
	RemoteAddr() net.Addr
}

// Transition describes result of an event handling. Interest is the set the
// connection must be re-registered with.
type Transition struct {
	From, To State
	Interest poll.Interest
}

// Changed reports whether the state was changed.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// OpError describes socket failure.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return "conn: " + e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// ErrResponseStarted is returned by Reject when the handshake response was
// already (partially) sent and an error response can not follow it.
var ErrResponseStarted = errors.New("conn: handshake response already started")

// IsClosed reports whether err means that peer closed the connection.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF)
}

// Options contains connection options.
type Options struct {
	// ReadBufferSize is the size of buffer for a single read call.
	ReadBufferSize int

	// MaxHeaderSize limits handshake request head size.
	MaxHeaderSize int

	// Created is the time the connection was accepted at. It is also the
	// initial LastActive value.
	Created time.Time
}

// Conn is a client connection in the middle of (or after) the websocket
// handshake. It is not safe for concurrent use.
type Conn struct {
	sock     Socket
	header   handshake.Header
	codec    handshake.Codec
	state    State
	interest poll.Interest

	// out holds []byte responses queued for writing (the 101 response or an
	// error response); off is the number of bytes of the head chunk already
	// written.
	out *queue.Queue
	off int

	bufSize    int
	discarded  int
	created    time.Time
	lastActive time.Time
}

// New creates connection in AwaitingHandshake state interested in reading.
func New(s Socket, opts Options) *Conn {
	bufSize := opts.ReadBufferSize
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	return &Conn{
		sock:     s,
		codec:    handshake.Codec{MaxHeaderSize: opts.MaxHeaderSize},
		state:    AwaitingHandshake,
		interest: poll.Readable,
		out:      queue.New(),
		bufSize:  bufSize,

		created:    opts.Created,
		lastActive: opts.Created,
	}
}

// State returns current state.
func (c *Conn) State() State { return c.state }

// Interest returns current interest set.
func (c *Conn) Interest() poll.Interest { return c.interest }

// Header returns request header fields received so far.
func (c *Conn) Header() *handshake.Header { return &c.header }

// URI returns request URI once the request line is received.
func (c *Conn) URI() string { return c.codec.URI() }

// Fd returns socket descriptor.
func (c *Conn) Fd() int { return c.sock.Fd() }

// RemoteAddr returns peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.sock.RemoteAddr() }

// Discarded returns number of bytes received after the request head. They
// belong to the websocket session and are dropped.
func (c *Conn) Discarded() int { return c.discarded }

// Touch marks connection as active at the given time.
func (c *Conn) Touch(now time.Time) { c.lastActive = now }

// Created returns the time the connection was accepted at.
func (c *Conn) Created() time.Time { return c.created }

// LastActive returns the time of the last activity.
func (c *Conn) LastActive() time.Time { return c.lastActive }

// HandleRead reads from socket until it would block. In AwaitingHandshake
// state received bytes are fed to the codec; when the upgrade request is
// complete the connection moves to HandshakeResponse and becomes interested
// in writing.
//
// Returned error is either *OpError (socket failure or peer close) or
// handshake error. In both cases the connection should be dropped.
func (c *Conn) HandleRead() (Transition, error) {
	from := c.state

	buf := pbytes.GetLen(c.bufSize)
	defer pbytes.Put(buf)

	for {
		n, err := c.sock.Read(buf)
		if n > 0 {
			if e := c.consume(buf[:n]); e != nil {
				return c.transition(from), e
			}
		}
		if errors.Is(err, sock.ErrWouldBlock) {
			break
		}
		if err != nil {
			return c.transition(from), &OpError{Op: "read", Err: err}
		}
	}
	return c.transition(from), nil
}

// HandleWrite sends the handshake response. If the socket accepts only part
// of it, connection stays in HandshakeResponse state interested in writing.
// Once the response is flushed the connection is Connected and interested
// in reading.
//
// It returns handshake.ErrMissingKey (or other handshake error) if request
// lacks required headers, or *OpError on socket failure.
func (c *Conn) HandleWrite() (Transition, error) {
	from := c.state
	if c.state != HandshakeResponse {
		return c.transition(from), nil
	}
	if c.out.Length() == 0 {
		accept, err := handshake.Prepare(&c.header)
		if err != nil {
			return c.transition(from), err
		}
		buf := pbytes.GetCap(handshake.UpgradeSize())
		c.out.Add(handshake.AppendUpgrade(buf, accept))
	}
	if err := c.flush(); err != nil {
		return c.transition(from), &OpError{Op: "write", Err: err}
	}
	if c.out.Length() == 0 {
		c.state = Connected
		c.interest = poll.Readable
	}
	return c.transition(from), nil
}

// Reject makes an attempt to send an error response describing err. It
// replaces the 101 response if none of it was sent yet. Reject does not wait
// for socket to become writable: the connection is expected to be closed
// right after.
//
// It returns ErrResponseStarted if the 101 response was already (partially)
// sent, io.ErrShortWrite if the socket accepted only part of the error
// response, or *OpError on socket failure.
func (c *Conn) Reject(err error) error {
	if c.state == Connected || c.off > 0 {
		return ErrResponseStarted
	}
	c.release()
	c.out.Add(handshake.AppendError(pbytes.GetCap(256), err))
	if err := c.flush(); err != nil {
		return &OpError{Op: "reject", Err: err}
	}
	if c.out.Length() > 0 {
		return io.ErrShortWrite
	}
	return nil
}

// Close closes the socket and releases buffers.
func (c *Conn) Close() error {
	c.release()
	return c.sock.Close()
}

func (c *Conn) release() {
	for c.out.Length() > 0 {
		pbytes.Put(c.out.Remove().([]byte))
	}
	c.off = 0
}

func (c *Conn) consume(p []byte) error {
	if c.state != AwaitingHandshake {
		c.discarded += len(p)
		return nil
	}
	out, err := c.codec.Feed(p, &c.header)
	if err != nil {
		return err
	}
	if out.Upgrade {
		c.state = HandshakeResponse
		c.interest = poll.Writable
		c.discarded += out.Rest
	}
	return nil
}

func (c *Conn) flush() error {
	for c.out.Length() > 0 {
		p := c.out.Peek().([]byte)
		n, err := c.sock.Write(p[c.off:])
		c.off += n
		if c.off == len(p) {
			pbytes.Put(c.out.Remove().([]byte))
			c.off = 0
		}
		if errors.Is(err, sock.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

func (c *Conn) transition(from State) Transition {
	return Transition{
		From:     from,
		To:       c.state,
		Interest: c.interest,
	}
}
