package handshake

import (
	"errors"
	"net/http"
	"strconv"
)

const (
	textErrorContent = "Content-Type: text/plain; charset=utf-8\r\nX-Content-Type-Options: nosniff\r\n"
	textUpgrade      = "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\n"
	textUpgradeTail  = "Upgrade: websocket\r\n\r\n"
	crlf             = "\r\n"
	colonAndSpace    = ": "
)

// AppendUpgrade appends the "101 Switching Protocols" response carrying the
// given accept value to dst and returns the extended buffer.
func AppendUpgrade(dst []byte, accept string) []byte {
	dst = append(dst, textUpgrade...)
	dst = appendHeader(dst, headerSecAccept, accept)
	dst = append(dst, textUpgradeTail...)
	return dst
}

// UpgradeSize returns the length of the response produced by AppendUpgrade()
// for an accept value of standard length.
func UpgradeSize() int {
	return len(textUpgrade) +
		len(headerSecAccept) + len(colonAndSpace) + acceptSize + len(crlf) +
		len(textUpgradeTail)
}

// AppendError appends a plain text error response describing err to dst.
// Status code is taken from ProtocolError; other errors are reported as
// 400 Bad Request.
func AppendError(dst []byte, err error) []byte {
	code := http.StatusBadRequest
	var pe *ProtocolError
	if errors.As(err, &pe) {
		code = pe.StatusCode()
	}
	body := err.Error() + "\n"

	dst = append(dst, "HTTP/1.1 "...)
	dst = strconv.AppendInt(dst, int64(code), 10)
	dst = append(dst, ' ')
	dst = append(dst, http.StatusText(code)...)
	dst = append(dst, crlf...)
	dst = append(dst, textErrorContent...)
	if errors.Is(err, ErrBadSecVersion) {
		dst = appendHeader(dst, headerSecVersion, versionSupported)
	}
	dst = appendHeader(dst, "Content-Length", strconv.Itoa(len(body)))
	dst = appendHeader(dst, headerConnection, "close")
	dst = append(dst, crlf...)
	dst = append(dst, body...)
	return dst
}

func appendHeader(dst []byte, k, v string) []byte {
	dst = append(dst, k...)
	dst = append(dst, colonAndSpace...)
	dst = append(dst, v...)
	dst = append(dst, crlf...)
	return dst
}
