//go:build linux
// +build linux

package poll

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// epoll is a Poller backed by epoll(7).
type epoll struct {
	fd  int
	raw []unix.EpollEvent
}

// New creates epoll based Poller.
func New() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epoll{fd: fd}, nil
}

func (p *epoll) Add(fd int, t Token, i Interest, m Mode) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, t, i, m)
}

func (p *epoll) Mod(fd int, t Token, i Interest, m Mode) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, t, i, m)
}

func (p *epoll) Del(fd int) error {
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (p *epoll) Wait(events []Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	raw := p.raw[:len(events)]

	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(p.fd, raw, msec)
	if err == unix.EINTR {
		// Interrupted by signal, that is ok.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := raw[i]
		events[i] = Event{
			Token:    getToken(&ev),
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Hangup:   ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		}
	}
	return n, nil
}

func (p *epoll) Close() error {
	return unix.Close(p.fd)
}

func (p *epoll) ctl(op, fd int, t Token, i Interest, m Mode) error {
	if i.Empty() {
		return ErrEmptyInterest
	}
	ev := unix.EpollEvent{Events: epollEvents(i, m)}
	putToken(&ev, t)
	if err := unix.EpollCtl(p.fd, op, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl: %w", err)
	}
	return nil
}

func epollEvents(i Interest, m Mode) (events uint32) {
	if i.Is(Readable) {
		events |= unix.EPOLLIN
	}
	if i.Is(Writable) {
		events |= unix.EPOLLOUT
	}
	if m&EdgeTriggered != 0 {
		events |= unix.EPOLLET
	}
	if m&OneShot != 0 {
		events |= unix.EPOLLONESHOT
	}
	return events
}

// Token is stored in the 64-bit user data of epoll event, which is
// represented by Fd and Pad fields.
func putToken(ev *unix.EpollEvent, t Token) {
	ev.Fd = int32(uint32(t))
	ev.Pad = int32(uint32(t >> 32))
}

func getToken(ev *unix.EpollEvent) Token {
	return Token(uint32(ev.Fd)) | Token(uint32(ev.Pad))<<32
}
