// Package sock contains thin wrappers around raw non-blocking TCP sockets.
package sock

import "errors"

// ErrWouldBlock is returned when operation can not make progress without
// blocking. Caller should wait for readiness notification and retry.
var ErrWouldBlock = errors.New("sock: operation would block")

// ErrClosed is returned on use of closed socket.
var ErrClosed = errors.New("sock: use of closed socket")

// DefaultBacklog is used when Listen() is given non-positive backlog.
const DefaultBacklog = 1024
