// Package decoder defines the port that turns raw upstream messages into events.
package decoder

import "github.com/Strob0t/solrelay/internal/domain/event"

// Decoder maps one raw upstream message to at most one event.
// Implementations must be pure and non-blocking; any failure is reported
// as ok == false and the message is dropped.
type Decoder interface {
	Decode(raw []byte) (ev event.TokenEvent, ok bool)
}

// Func adapts an ordinary function to the Decoder interface.
type Func func(raw []byte) (event.TokenEvent, bool)

// Decode calls f(raw).
func (f Func) Decode(raw []byte) (event.TokenEvent, bool) {
	return f(raw)
}
