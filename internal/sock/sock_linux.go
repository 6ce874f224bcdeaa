//go:build linux
// +build linux

package sock

import (
	"fmt"
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listener is a non-blocking listening TCP socket.
type Listener struct {
	fd   int
	addr net.Addr
}

// Listen creates non-blocking TCP socket bound to addr.
func Listen(addr string, backlog int) (*Listener, error) {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	family, sa := sockaddr(tcp)

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", addr, os.NewSyscallError("bind", err))
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("getsockname", err)
	}
	return &Listener{
		fd:   fd,
		addr: tcpAddr(bound),
	}, nil
}

// Fd returns listener descriptor.
func (l *Listener) Fd() int { return l.fd }

// Addr returns address the listener is bound to.
func (l *Listener) Addr() net.Addr { return l.addr }

// Accept accepts next pending connection. It returns ErrWouldBlock when
// there is no pending connection.
func (l *Listener) Accept() (*Conn, error) {
	if l.fd < 0 {
		return nil, ErrClosed
	}
	for {
		fd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
			return &Conn{fd: fd, remote: tcpAddr(sa)}, nil
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
			return nil, ErrWouldBlock
		default:
			return nil, os.NewSyscallError("accept4", err)
		}
	}
}

// Close closes the listener.
func (l *Listener) Close() error {
	if l.fd < 0 {
		return ErrClosed
	}
	fd := l.fd
	l.fd = -1
	return unix.Close(fd)
}

// Conn is a non-blocking connected TCP socket.
type Conn struct {
	fd     int
	remote net.Addr
}

// Fd returns connection descriptor.
func (c *Conn) Fd() int { return c.fd }

// RemoteAddr returns address of the peer.
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// Read reads available bytes into p. It returns ErrWouldBlock if there is
// nothing to read right now and io.EOF when peer closed the connection.
func (c *Conn) Read(p []byte) (int, error) {
	if c.fd < 0 {
		return 0, ErrClosed
	}
	for {
		n, err := unix.Read(c.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err != nil:
			return 0, os.NewSyscallError("read", err)
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write writes p without blocking. It may write less than len(p); in that
// case error is ErrWouldBlock.
func (c *Conn) Write(p []byte) (int, error) {
	if c.fd < 0 {
		return 0, ErrClosed
	}
	var written int
	for written < len(p) {
		n, err := unix.SendmsgN(c.fd, p[written:], nil, nil, unix.MSG_NOSIGNAL)
		if n > 0 {
			written += n
		}
		switch err {
		case nil:
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return written, ErrWouldBlock
		default:
			return written, os.NewSyscallError("sendmsg", err)
		}
	}
	return written, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	if c.fd < 0 {
		return ErrClosed
	}
	fd := c.fd
	c.fd = -1
	return unix.Close(fd)
}

func sockaddr(a *net.TCPAddr) (family int, sa unix.Sockaddr) {
	if ip4 := a.IP.To4(); ip4 != nil || a.IP == nil {
		sa4 := &unix.SockaddrInet4{Port: a.Port}
		copy(sa4.Addr[:], ip4)
		return unix.AF_INET, sa4
	}
	sa6 := &unix.SockaddrInet6{Port: a.Port}
	copy(sa6.Addr[:], a.IP.To16())
	return unix.AF_INET6, sa6
}

func tcpAddr(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]).To16(), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	}
	return nil
}
