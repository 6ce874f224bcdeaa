//go:build !linux
// +build !linux

package poll

// New returns ErrUnsupported on platforms without epoll.
func New() (Poller, error) {
	return nil, ErrUnsupported
}
