package handshake

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"hash"
	"sync"
)

const (
	// acceptSize is the length of base64 encoded sha1 digest.
	acceptSize = 28

	versionSupported = "13"
)

// WebSocketMagic is the GUID concatenated with the client key to compute
// the accept value.
var WebSocketMagic = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

var digests = sync.Pool{
	New: func() any { return sha1.New() },
}

// Accept returns the "Sec-WebSocket-Accept" value for the given client key.
// It returns ErrMissingKey if key is empty.
func Accept(key string) (string, error) {
	if key == "" {
		return "", ErrMissingKey
	}
	var b [acceptSize]byte
	PutAccept(b[:], []byte(key))
	return string(b[:]), nil
}

// PutAccept fills dst with accept bytes generated from the given key.
// Given buffer should be exactly 28 bytes. If not PutAccept will panic.
func PutAccept(dst, key []byte) {
	if len(dst) != acceptSize {
		panic(fmt.Sprintf("buffer size is %d; want %d", len(dst), acceptSize))
	}

	d := digests.Get().(hash.Hash)
	d.Write(key)
	d.Write(WebSocketMagic)

	var sum [sha1.Size]byte
	base64.StdEncoding.Encode(dst, d.Sum(sum[:0]))

	d.Reset()
	digests.Put(d)
}

// Prepare checks the parsed request header and returns the accept value to
// send back. Missing "Sec-WebSocket-Key" results in ErrMissingKey. When
// "Sec-WebSocket-Version" is present it must be "13".
func Prepare(h *Header) (string, error) {
	if v, ok := h.Get(headerSecVersion); ok && v != versionSupported {
		return "", ErrBadSecVersion
	}
	key, _ := h.Get(headerSecKey)
	return Accept(key)
}
