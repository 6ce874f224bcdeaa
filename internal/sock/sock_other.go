//go:build !linux
// +build !linux

package sock

import (
	"errors"
	"net"
)

var errUnsupported = errors.New("sock: platform is not supported")

// Listener is not implemented on this platform.
type Listener struct{}

// Listen returns error on platforms other than linux.
func Listen(addr string, backlog int) (*Listener, error) {
	return nil, errUnsupported
}

func (l *Listener) Fd() int                { return -1 }
func (l *Listener) Addr() net.Addr         { return nil }
func (l *Listener) Accept() (*Conn, error) { return nil, errUnsupported }
func (l *Listener) Close() error           { return errUnsupported }

// Conn is not implemented on this platform.
type Conn struct{}

func (c *Conn) Fd() int                     { return -1 }
func (c *Conn) RemoteAddr() net.Addr        { return nil }
func (c *Conn) Read(p []byte) (int, error)  { return 0, errUnsupported }
func (c *Conn) Write(p []byte) (int, error) { return 0, errUnsupported }
func (c *Conn) Close() error                { return errUnsupported }
