// Package resp implements the RESP wire format: frame encoding/decoding
// and a cursor for walking the arguments of a command array.
package resp

import "errors"

// ErrIncomplete signals that the read buffer does not yet hold a full
// frame. Callers must read more bytes from the socket and retry; it is
// never surfaced to a client.
var ErrIncomplete = errors.New("resp: incomplete frame")

// ErrProtocol signals a malformed frame: an invalid leading type byte,
// a non-numeric length, or a broken null-bulk marker.
var ErrProtocol = errors.New("resp: protocol violation")

// ErrEndOfStream signals that a Parser has no more elements to yield.
var ErrEndOfStream = errors.New("resp: end of stream")
