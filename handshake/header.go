package handshake

import "strings"

// Header names used during the handshake.
const (
	headerUpgrade    = "Upgrade"
	headerConnection = "Connection"
	headerSecVersion = "Sec-WebSocket-Version"
	headerSecKey     = "Sec-WebSocket-Key"
	headerSecAccept  = "Sec-WebSocket-Accept"
)

type field struct {
	name  string
	value string
}

// Header holds request header fields. Names are kept as received and looked
// up case-insensitively. When a field appears more than once the last value
// wins.
//
// Zero value is an empty header ready to use.
type Header struct {
	// fields is indexed by lower-cased field name.
	fields map[string]field
}

// Set stores value for the field name k. A previous value stored under a
// differently cased name is dropped.
func (h *Header) Set(k, v string) {
	if h.fields == nil {
		h.fields = make(map[string]field)
	}
	h.fields[strings.ToLower(k)] = field{name: k, value: v}
}

// Get returns value of the field name k.
func (h *Header) Get(k string) (string, bool) {
	f, ok := h.fields[strings.ToLower(k)]
	return f.value, ok
}

// Len returns number of distinct fields.
func (h *Header) Len() int {
	return len(h.fields)
}

// Range calls f for each field with its name as received. Iteration order is
// not specified. It stops if f returns false.
func (h *Header) Range(f func(name, value string) bool) {
	for _, x := range h.fields {
		if !f(x.name, x.value) {
			return
		}
	}
}

// Reset removes all fields.
func (h *Header) Reset() {
	for k := range h.fields {
		delete(h.fields, k)
	}
}
