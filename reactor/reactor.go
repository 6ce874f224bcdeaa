// Package reactor implements single-threaded readiness driven server that
// upgrades accepted TCP connections to websocket.
//
// All the state (listener, poller, registry and connections) is owned by
// the goroutine calling Run(). Nothing blocks in the loop except the poll
// wait itself.
package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/gobwas/wsreactor/config"
	"github.com/gobwas/wsreactor/conn"
	"github.com/gobwas/wsreactor/handshake"
	"github.com/gobwas/wsreactor/internal/logging"
	"github.com/gobwas/wsreactor/internal/sock"
	"github.com/gobwas/wsreactor/poll"
	"github.com/gobwas/wsreactor/registry"
)

// Client connections are registered edge-triggered and one-shot: every
// notification must be followed by explicit re-arm.
const connMode = poll.EdgeTriggered | poll.OneShot

// Listener is a non-blocking listening socket.
type Listener interface {
	Fd() int
	// Accept returns sock.ErrWouldBlock when there is no pending connection.
	Accept() (conn.Socket, error)
	Close() error
}

// RegistrationError describes poller registration failure of a single
// connection.
type RegistrationError struct {
	Token poll.Token
	Err   error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("reactor: register token %d: %v", e.Token, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Stats contains reactor counters.
type Stats struct {
	Accepted     int64
	Rejected     int64
	AcceptErrors int64
	Upgraded     int64
	Failed       int64
	TimedOut     int64
	Active       int64
}

type stats struct {
	accepted     atomic.Int64
	rejected     atomic.Int64
	acceptErrors atomic.Int64
	upgraded     atomic.Int64
	failed       atomic.Int64
	timedOut     atomic.Int64
	active       atomic.Int64
}

// Option configures Reactor.
type Option func(*Reactor)

// WithLogger sets reactor logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reactor) {
		r.log = log
	}
}

// WithClock sets the function used to get current time.
func WithClock(now func() time.Time) Option {
	return func(r *Reactor) {
		r.now = now
	}
}

// Reactor accepts connections and drives their handshakes.
type Reactor struct {
	ln     Listener
	poller poll.Poller
	conns  *registry.Registry[*conn.Conn]
	config config.Config
	log    *slog.Logger
	now    func() time.Time

	events    []poll.Event
	lastSweep time.Time
	stats     stats

	// acceptPending is set when accept drain stopped on error with
	// connections possibly left in the backlog. The edge-triggered listener
	// will not report them again until a new connection arrives.
	acceptPending bool
}

// New creates reactor serving ln with poller p. It registers the listener
// within p.
func New(ln Listener, p poll.Poller, cfg config.Config, opts ...Option) (*Reactor, error) {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = config.DefaultMaxEvents
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultPollInterval
	}
	r := &Reactor{
		ln:     ln,
		poller: p,
		conns:  registry.New[*conn.Conn](),
		config: cfg,
		log:    logging.Nop(),
		now:    time.Now,
		events: make([]poll.Event, cfg.MaxEvents),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastSweep = r.now()

	if err := p.Add(ln.Fd(), poll.ListenerToken, poll.Readable, poll.EdgeTriggered); err != nil {
		return nil, fmt.Errorf("reactor: register listener: %w", err)
	}
	return r, nil
}

// Listen binds listening socket to cfg.Addr and returns reactor serving it.
func Listen(cfg config.Config, opts ...Option) (*Reactor, error) {
	ln, err := sock.Listen(cfg.Addr, cfg.Backlog)
	if err != nil {
		return nil, fmt.Errorf("reactor: listen: %w", err)
	}
	p, err := poll.New()
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("reactor: poller: %w", err)
	}
	r, err := New(sockListener{ln}, p, cfg, opts...)
	if err != nil {
		p.Close()
		ln.Close()
		return nil, err
	}
	return r, nil
}

// Addr returns listener address if it is known.
func (r *Reactor) Addr() net.Addr {
	if a, ok := r.ln.(interface{ Addr() net.Addr }); ok {
		return a.Addr()
	}
	return nil
}

// Stats returns snapshot of reactor counters. It is safe to call it
// concurrently with Run().
func (r *Reactor) Stats() Stats {
	return Stats{
		Accepted:     r.stats.accepted.Load(),
		Rejected:     r.stats.rejected.Load(),
		AcceptErrors: r.stats.acceptErrors.Load(),
		Upgraded:     r.stats.upgraded.Load(),
		Failed:       r.stats.failed.Load(),
		TimedOut:     r.stats.timedOut.Load(),
		Active:       r.stats.active.Load(),
	}
}

// Run runs the dispatch loop until ctx is done. It returns non-nil error
// only if the poller fails.
func (r *Reactor) Run(ctx context.Context) error {
	r.log.Info("reactor started", "addr", r.Addr())
	defer r.log.Info("reactor stopped")
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := r.step(r.config.PollInterval); err != nil {
			return err
		}
	}
}

// Close drops all connections and releases the listener and the poller.
// It must not be called concurrently with Run().
func (r *Reactor) Close() error {
	r.conns.Range(func(t poll.Token, c *conn.Conn) bool {
		r.teardown(t, c)
		return true
	})
	return errors.Join(
		r.poller.Del(r.ln.Fd()),
		r.ln.Close(),
		r.poller.Close(),
	)
}

func (r *Reactor) step(timeout time.Duration) error {
	n, err := r.poller.Wait(r.events, timeout)
	if err != nil {
		return fmt.Errorf("reactor: poll: %w", err)
	}
	retry := r.acceptPending
	for _, ev := range r.events[:n] {
		if ev.Token == poll.ListenerToken {
			r.accept()
			retry = false
			continue
		}
		r.dispatch(ev)
	}
	r.sweep()
	if retry {
		// Descriptors may have been freed by teardowns above.
		r.accept()
	}
	return nil
}

// accept drains pending connections. Listener is registered edge-triggered,
// so it must be drained until it would block. If drain stops on error, it is
// retried on the next step.
func (r *Reactor) accept() {
	for {
		s, err := r.ln.Accept()
		if errors.Is(err, sock.ErrWouldBlock) {
			r.acceptPending = false
			return
		}
		if err != nil {
			r.stats.acceptErrors.Add(1)
			if r.acceptPending {
				r.log.Debug("accept error", "error", err)
			} else {
				r.log.Warn("accept error", "error", err)
			}
			r.acceptPending = true
			return
		}
		if limit := r.config.MaxConns; limit > 0 && r.conns.Len() >= limit {
			r.stats.rejected.Add(1)
			r.log.Warn("too many connections",
				"remote", s.RemoteAddr(),
				"limit", limit,
			)
			s.Close()
			continue
		}
		r.register(s)
	}
}

func (r *Reactor) register(s conn.Socket) {
	var (
		t = r.conns.Allocate()
		c = conn.New(s, conn.Options{
			ReadBufferSize: r.config.ReadBufferSize,
			MaxHeaderSize:  r.config.MaxHeaderSize,
			Created:        r.now(),
		})
	)
	if err := r.conns.Insert(t, c); err != nil {
		// Allocate() never returns token that is in use.
		r.log.Error("insert connection", "token", t, "error", err)
		c.Close()
		return
	}
	r.stats.accepted.Add(1)
	r.stats.active.Add(1)

	if err := r.poller.Add(c.Fd(), t, c.Interest(), connMode); err != nil {
		r.fail(t, c, &RegistrationError{Token: t, Err: err})
		return
	}
	r.log.Debug("accepted connection",
		"token", t,
		"remote", c.RemoteAddr(),
	)
}

func (r *Reactor) dispatch(ev poll.Event) {
	c, err := r.conns.Get(ev.Token)
	if err != nil {
		// Connection was dropped while the event was pending.
		r.log.Debug("event for unknown token", "token", ev.Token)
		return
	}
	c.Touch(r.now())

	tr := conn.Transition{
		From:     c.State(),
		To:       c.State(),
		Interest: c.Interest(),
	}
	if ev.Readable || ev.Hangup {
		if tr, err = c.HandleRead(); err != nil {
			r.fail(ev.Token, c, err)
			return
		}
	}
	if ev.Writable {
		wr, err := c.HandleWrite()
		if err != nil {
			r.fail(ev.Token, c, err)
			return
		}
		tr.To, tr.Interest = wr.To, wr.Interest
	}
	if ev.Hangup && tr.To != conn.Connected {
		r.fail(ev.Token, c, &conn.OpError{Op: "poll", Err: errHangup})
		return
	}
	r.rearm(ev.Token, c, tr)
}

var errHangup = errors.New("connection hung up")

// rearm honours the re-registration obligation of a handled event.
func (r *Reactor) rearm(t poll.Token, c *conn.Conn, tr conn.Transition) {
	if tr.Changed() {
		r.log.Debug("connection state changed",
			"token", t,
			"from", tr.From,
			"to", tr.To,
			"interest", tr.Interest,
		)
		if tr.To == conn.Connected {
			r.stats.upgraded.Add(1)
			r.log.Info("connection upgraded",
				"token", t,
				"remote", c.RemoteAddr(),
				"uri", c.URI(),
			)
		}
	}
	if err := r.poller.Mod(c.Fd(), t, tr.Interest, connMode); err != nil {
		r.fail(t, c, &RegistrationError{Token: t, Err: err})
	}
}

// sweep drops connections that did not complete the handshake in time:
// either idle for IdleTimeout or alive for HandshakeTimeout since accept.
func (r *Reactor) sweep() {
	var (
		idle     = r.config.IdleTimeout
		deadline = r.config.HandshakeTimeout
	)
	if idle <= 0 && deadline <= 0 {
		return
	}
	now := r.now()
	if now.Sub(r.lastSweep) < r.config.PollInterval {
		return
	}
	r.lastSweep = now

	r.conns.Range(func(t poll.Token, c *conn.Conn) bool {
		if c.State() == conn.Connected {
			return true
		}
		var reason string
		switch {
		case idle > 0 && now.Sub(c.LastActive()) >= idle:
			reason = "idle"
		case deadline > 0 && now.Sub(c.Created()) >= deadline:
			reason = "deadline"
		default:
			return true
		}
		r.stats.timedOut.Add(1)
		r.log.Info("handshake timed out",
			"token", t,
			"remote", c.RemoteAddr(),
			"state", c.State(),
			"reason", reason,
			"idle", now.Sub(c.LastActive()),
			"age", now.Sub(c.Created()),
		)
		r.teardown(t, c)
		return true
	})
}

// fail drops the connection after error err.
func (r *Reactor) fail(t poll.Token, c *conn.Conn, err error) {
	r.stats.failed.Add(1)
	attrs := []any{
		"token", t,
		"remote", c.RemoteAddr(),
		"state", c.State(),
		"error", err,
	}
	var regErr *RegistrationError
	switch {
	case handshake.IsProtocolError(err):
		if rerr := c.Reject(err); rerr != nil {
			r.log.Debug("error response not sent", "token", t, "error", rerr)
		}
		r.log.Info("handshake rejected", attrs...)
	case conn.IsClosed(err):
		r.log.Debug("connection closed by peer", attrs...)
	case errors.As(err, &regErr):
		r.log.Error("connection registration failed", attrs...)
	default:
		r.log.Warn("connection failed", attrs...)
	}
	r.teardown(t, c)
}

func (r *Reactor) teardown(t poll.Token, c *conn.Conn) {
	if _, ok := r.conns.Remove(t); !ok {
		return
	}
	r.stats.active.Add(-1)
	if err := r.poller.Del(c.Fd()); err != nil {
		r.log.Debug("deregister connection", "token", t, "error", err)
	}
	if err := c.Close(); err != nil {
		r.log.Debug("close connection", "token", t, "error", err)
	}
}

// sockListener adapts *sock.Listener to Listener.
type sockListener struct {
	*sock.Listener
}

func (l sockListener) Accept() (conn.Socket, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return c, nil
}
