package handshake

import (
	"bytes"

	"github.com/gobwas/httphead"
)

// DefaultMaxHeaderSize is the default limit for the request head size,
// including the request line and the terminating empty line.
const DefaultMaxHeaderSize = 8192

var (
	expHeaderUpgrade    = []byte("websocket")
	expHeaderConnection = []byte("upgrade")
	methodGet           = []byte("GET")
)

type codecState uint8

const (
	stateRequestLine codecState = iota
	stateHeaders
	stateDone
	stateFailed
)

// headerSeen bits report which upgrade related headers were seen with
// acceptable values.
const (
	headerSeenUpgrade = 1 << iota
	headerSeenConnection

	headerSeenAll = headerSeenUpgrade | headerSeenConnection
)

// Outcome describes the result of a Codec.Feed() call.
type Outcome struct {
	// Done reports whether the empty line terminating request head was seen.
	Done bool

	// Upgrade reports whether the complete request head asked for the
	// websocket protocol upgrade. It is never true when Done is false.
	Upgrade bool

	// Rest is the number of trailing bytes of the fed slice that follow the
	// request head.
	Rest int
}

// Codec is an incremental parser of HTTP/1.x request head. It is designed to
// be fed by chunks of bytes read from a non-blocking socket: the chunk
// boundaries may fall anywhere, including the middle of a header name.
//
// Zero value is ready to use and limits head size by DefaultMaxHeaderSize.
type Codec struct {
	// MaxHeaderSize limits the request head size. If zero,
	// DefaultMaxHeaderSize is used.
	MaxHeaderSize int

	state codecState
	seen  byte
	size  int
	line  []byte
	uri   string
}

// Feed parses next chunk of request bytes. Header fields completely received
// so far are stored in h before Feed returns. Incomplete line is buffered
// inside the codec until the next call.
//
// Once the head is complete and it asks for an upgrade, Feed returns
// Outcome with both Done and Upgrade set. A complete head without upgrade
// request results in ErrNotUpgrade. After any error the codec refuses further
// input with ErrCodecFailed until Reset() is called.
func (c *Codec) Feed(p []byte, h *Header) (out Outcome, err error) {
	switch c.state {
	case stateFailed:
		return out, ErrCodecFailed
	case stateDone:
		return c.outcome(len(p)), nil
	}
	for i := 0; i < len(p); {
		var (
			j     = bytes.IndexByte(p[i:], '\n')
			chunk []byte
		)
		if j == -1 {
			chunk = p[i:]
		} else {
			chunk = p[i : i+j+1]
		}
		i += len(chunk)

		c.size += len(chunk)
		if c.size > c.maxHeaderSize() {
			return out, c.fail(ErrHeaderTooLarge)
		}
		if j == -1 {
			c.line = append(c.line, chunk...)
			break
		}

		line := chunk
		if len(c.line) > 0 {
			c.line = append(c.line, chunk...)
			line = c.line
		}
		if err = c.parseLine(trimEOL(line), h); err != nil {
			return out, c.fail(err)
		}
		c.line = c.line[:0]

		if c.state == stateDone {
			out = c.outcome(len(p) - i)
			if !out.Upgrade {
				return out, c.fail(ErrNotUpgrade)
			}
			return out, nil
		}
	}
	return out, nil
}

// Reset makes codec ready to parse a new request head.
func (c *Codec) Reset() {
	c.state = stateRequestLine
	c.seen = 0
	c.size = 0
	c.line = c.line[:0]
	c.uri = ""
}

// URI returns request URI once request line was parsed.
func (c *Codec) URI() string {
	return c.uri
}

func (c *Codec) parseLine(line []byte, h *Header) error {
	switch c.state {
	case stateRequestLine:
		// RFC7230 3.5: server SHOULD ignore at least one empty line received
		// prior to the request-line.
		if len(line) == 0 {
			return nil
		}
		req, ok := httphead.ParseRequestLine(line)
		if !ok {
			return ErrMalformedRequest
		}
		if !bytes.Equal(req.Method, methodGet) {
			return ErrBadHttpRequestMethod
		}
		if v := req.Version; v.Major < 1 || (v.Major == 1 && v.Minor < 1) {
			return ErrBadHttpRequestProto
		}
		c.uri = string(req.URI)
		c.state = stateHeaders
		return nil

	case stateHeaders:
		if len(line) == 0 {
			c.state = stateDone
			return nil
		}
		k, v, ok := parseHeaderLine(line)
		if !ok {
			return ErrMalformedRequest
		}
		switch {
		case bytes.EqualFold(k, []byte(headerUpgrade)):
			c.setSeen(headerSeenUpgrade, hasToken(v, expHeaderUpgrade))
		case bytes.EqualFold(k, []byte(headerConnection)):
			c.setSeen(headerSeenConnection, hasToken(v, expHeaderConnection))
		}
		h.Set(string(k), string(v))
		return nil
	}
	return ErrCodecFailed
}

func (c *Codec) setSeen(bit byte, cond bool) {
	if cond {
		c.seen |= bit
	} else {
		c.seen &^= bit
	}
}

func (c *Codec) outcome(rest int) Outcome {
	return Outcome{
		Done:    true,
		Upgrade: c.seen == headerSeenAll,
		Rest:    rest,
	}
}

func (c *Codec) fail(err error) error {
	c.state = stateFailed
	c.line = c.line[:0]
	return err
}

func (c *Codec) maxHeaderSize() int {
	if c.MaxHeaderSize > 0 {
		return c.MaxHeaderSize
	}
	return DefaultMaxHeaderSize
}

// parseHeaderLine splits header line into name and value. Unlike
// httphead.ParseHeaderLine() it keeps the name case as received.
func parseHeaderLine(line []byte) (k, v []byte, ok bool) {
	// Obsolete line folding is not accepted (RFC7230 3.2.4).
	if line[0] == ' ' || line[0] == '\t' {
		return nil, nil, false
	}
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return nil, nil, false
	}
	k = line[:colon]
	// No whitespace is allowed between the field name and colon.
	if bytes.IndexAny(k, " \t") != -1 {
		return nil, nil, false
	}
	v = btrim(line[colon+1:])
	return k, v, true
}

// hasToken reports whether comma separated list of tokens in v contains
// token t, compared case-insensitively.
func hasToken(v, t []byte) (has bool) {
	httphead.ScanTokens(v, func(tok []byte) bool {
		has = bytes.EqualFold(tok, t)
		return !has
	})
	return has
}

func trimEOL(line []byte) []byte {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

func btrim(bts []byte) []byte {
	var i, j int
	for i = 0; i < len(bts) && (bts[i] == ' ' || bts[i] == '\t'); {
		i++
	}
	for j = len(bts); j > i && (bts[j-1] == ' ' || bts[j-1] == '\t'); {
		j--
	}
	return bts[i:j]
}
