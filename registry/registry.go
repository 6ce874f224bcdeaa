// Package registry maps poll tokens to live connections.
package registry

import (
	"errors"

	"github.com/gobwas/wsreactor/poll"
)

// Errors returned by Registry.
var (
	ErrNotFound   = errors.New("registry: token not found")
	ErrTokenInUse = errors.New("registry: token is already in use")
	ErrReserved   = errors.New("registry: token is reserved")
)

// Registry owns the mapping from token to value. Tokens are allocated from
// a monotonic counter starting at 1 and are never reused, so an event for a
// removed token can not be mistaken for an event of a newer connection.
//
// Registry is not safe for concurrent use.
type Registry[T any] struct {
	last  poll.Token
	items map[poll.Token]T
}

// New creates empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		last:  poll.ListenerToken,
		items: make(map[poll.Token]T),
	}
}

// Allocate returns next unused token. It never returns poll.ListenerToken.
func (r *Registry[T]) Allocate() poll.Token {
	r.last++
	return r.last
}

// Insert stores v under token t.
func (r *Registry[T]) Insert(t poll.Token, v T) error {
	if t == poll.ListenerToken {
		return ErrReserved
	}
	if _, has := r.items[t]; has {
		return ErrTokenInUse
	}
	r.items[t] = v
	return nil
}

// Get returns value stored under token t or ErrNotFound.
func (r *Registry[T]) Get(t poll.Token) (v T, err error) {
	v, has := r.items[t]
	if !has {
		return v, ErrNotFound
	}
	return v, nil
}

// Remove deletes token t and returns its value.
func (r *Registry[T]) Remove(t poll.Token) (v T, ok bool) {
	v, ok = r.items[t]
	if ok {
		delete(r.items, t)
	}
	return v, ok
}

// Len returns number of stored values.
func (r *Registry[T]) Len() int {
	return len(r.items)
}

// Range calls f for each stored value until f returns false. It is safe to
// Remove() the visited token from f.
func (r *Registry[T]) Range(f func(poll.Token, T) bool) {
	for t, v := range r.items {
		if !f(t, v) {
			return
		}
	}
}
