package handshake

import (
	"errors"
	"net/http"
)

// ProtocolError describes a malformed or unacceptable handshake request.
// Connections that hit a ProtocolError should be abandoned, not retried.
type ProtocolError struct {
	msg  string
	code int
}

func (e *ProtocolError) Error() string { return e.msg }

// StatusCode returns http status code that should be sent to the peer
// before the connection is closed.
func (e *ProtocolError) StatusCode() int { return e.code }

func protocolError(msg string, code int) *ProtocolError {
	return &ProtocolError{msg: msg, code: code}
}

// Errors returned by Codec and Prepare.
var (
	ErrMalformedRequest     = protocolError("handshake: malformed HTTP request", http.StatusBadRequest)
	ErrBadHttpRequestMethod = protocolError("handshake: request method is not GET", http.StatusMethodNotAllowed)
	ErrBadHttpRequestProto  = protocolError("handshake: request HTTP version is less than 1.1", http.StatusHTTPVersionNotSupported)
	ErrHeaderTooLarge       = protocolError("handshake: request header is too large", http.StatusRequestHeaderFieldsTooLarge)
	ErrNotUpgrade           = protocolError("handshake: request does not ask for websocket upgrade", http.StatusBadRequest)
	ErrMissingKey           = protocolError("handshake: missing \"Sec-WebSocket-Key\" header", http.StatusBadRequest)
	ErrBadSecVersion        = protocolError("handshake: unsupported \"Sec-WebSocket-Version\"", http.StatusUpgradeRequired)
)

// ErrCodecFailed is returned by Codec.Feed() once a previous call has failed.
var ErrCodecFailed = errors.New("handshake: codec is in failed state")

// IsProtocolError reports whether err is (or wraps) a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
