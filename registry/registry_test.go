package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobwas/wsreactor/poll"
)

func TestAllocateMonotonic(t *testing.T) {
	r := New[string]()

	const n = 1000
	seen := make(map[poll.Token]bool, n)
	var prev poll.Token
	for i := 0; i < n; i++ {
		tok := r.Allocate()
		require.NotEqual(t, poll.ListenerToken, tok)
		require.Greater(t, tok, prev)
		require.False(t, seen[tok], "token %d allocated twice", tok)
		seen[tok] = true
		prev = tok

		require.NoError(t, r.Insert(tok, "conn"))
		// Drop every other value: freed tokens must not be handed out again.
		if i%2 == 0 {
			_, ok := r.Remove(tok)
			require.True(t, ok)
		}
	}
	assert.Equal(t, n/2, r.Len())
}

func TestFirstToken(t *testing.T) {
	r := New[int]()
	assert.Equal(t, poll.Token(1), r.Allocate())
	assert.Equal(t, poll.Token(2), r.Allocate())
}

func TestInsertGetRemove(t *testing.T) {
	r := New[int]()
	tok := r.Allocate()

	_, err := r.Get(tok)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Insert(tok, 7))
	assert.ErrorIs(t, r.Insert(tok, 8), ErrTokenInUse)
	assert.ErrorIs(t, r.Insert(poll.ListenerToken, 9), ErrReserved)

	v, err := r.Get(tok)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, ok := r.Remove(tok)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = r.Remove(tok)
	assert.False(t, ok)

	_, err = r.Get(tok)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, r.Len())
}

func TestRangeRemove(t *testing.T) {
	r := New[int]()
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Insert(r.Allocate(), i))
	}
	r.Range(func(tok poll.Token, v int) bool {
		if v%2 == 1 {
			r.Remove(tok)
		}
		return true
	})
	assert.Equal(t, 5, r.Len())

	var visited int
	r.Range(func(poll.Token, int) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}
