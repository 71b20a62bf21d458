// Package sink abstracts the node's local delivery endpoint: whatever
// receives an onion payload whose next hop is meshid.Local. It replaces
// onion.h's global g_phone_client WiFiClient (spec §9's sink abstraction).
package sink

import "fmt"

// Sink accepts plaintext delivered to this node.
type Sink interface {
	Deliver(payload []byte) error
}

// Discard is a Sink that drops everything, used where no local endpoint is
// wired up (e.g. a pure relay node in tests).
type Discard struct{}

// Deliver always succeeds and throws the payload away.
func (Discard) Deliver([]byte) error { return nil }

// Channel is a Sink backed by a buffered channel, used in tests and small
// programs that want to read delivered payloads directly.
type Channel struct {
	C chan []byte
}

// NewChannel returns a Channel sink with the given buffer size.
func NewChannel(buf int) *Channel {
	return &Channel{C: make(chan []byte, buf)}
}

// Deliver pushes payload onto the channel, or fails if it is full — a full
// buffer means the local endpoint is not draining, mirroring the source's
// "no phone connected" warning path.
func (s *Channel) Deliver(payload []byte) error {
	select {
	case s.C <- payload:
		return nil
	default:
		return fmt.Errorf("sink channel full, dropping %d bytes", len(payload))
	}
}
