// Package poll provides readiness notification for non-blocking descriptors.
//
// Registrations are identified by a Token chosen by the caller. One-shot
// registrations deliver a single notification and must be re-armed with
// Poller.Mod() before the next one can be delivered.
package poll

import (
	"errors"
	"strings"
	"time"
)

// Token identifies a registered descriptor.
type Token uint64

// ListenerToken is reserved for the listening socket.
const ListenerToken Token = 0

// Interest is a set of readiness kinds a registration wants to be notified
// about.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// Is reports whether i contains v.
func (i Interest) Is(v Interest) bool {
	return i&v != 0
}

// Empty reports whether i contains nothing.
func (i Interest) Empty() bool {
	return i&(Readable|Writable) == 0
}

func (i Interest) String() string {
	if i.Empty() {
		return "none"
	}
	var parts []string
	if i.Is(Readable) {
		parts = append(parts, "readable")
	}
	if i.Is(Writable) {
		parts = append(parts, "writable")
	}
	return strings.Join(parts, "|")
}

// Mode describes how notifications are delivered.
type Mode uint8

const (
	// EdgeTriggered delivers notifications only on readiness transitions.
	EdgeTriggered Mode = 1 << iota
	// OneShot disables the registration after one notification.
	OneShot
)

// Event is a readiness notification.
type Event struct {
	Token    Token
	Readable bool
	Writable bool
	// Hangup reports an error condition or that the peer closed both
	// directions of the connection.
	Hangup bool
}

// Poller is an OS readiness multiplexer.
type Poller interface {
	// Add registers fd under the token t.
	Add(fd int, t Token, i Interest, m Mode) error

	// Mod changes (or re-arms) registration of fd.
	Mod(fd int, t Token, i Interest, m Mode) error

	// Del removes fd registration.
	Del(fd int) error

	// Wait blocks for at most timeout waiting for notifications and fills
	// events with them. Negative timeout means no limit. It returns number of
	// events written.
	Wait(events []Event, timeout time.Duration) (int, error)

	// Close releases poller resources.
	Close() error
}

// Errors returned by pollers.
var (
	ErrEmptyInterest = errors.New("poll: empty interest set")
	ErrUnsupported   = errors.New("poll: platform is not supported")
)
