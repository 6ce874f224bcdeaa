/*
Package handshake implements the server side of the RFC6455 opening
handshake for non-blocking connections.

Unlike net/http based upgraders, nothing here reads from a socket. Bytes are
pushed into a Codec as they arrive, possibly split at arbitrary points:

	var (
		c Codec
		h Header
	)
	out, err := c.Feed(chunk, &h)
	if err != nil {
		// Protocol error: reply with AppendError() and drop the connection.
	}
	if out.Upgrade {
		accept, err := Prepare(&h)
		if err != nil {
			// handle err
		}
		resp := AppendUpgrade(nil, accept)
		// write resp when the socket becomes writable.
	}

The Header always belongs to the caller. The codec writes parsed fields
into it during Feed() and keeps no reference to it afterwards.
*/
package handshake
