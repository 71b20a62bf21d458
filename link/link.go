// Package link stands in for the external radio driver (spec §1's
// "assumed, not specified" radio layer): a 32-byte frame transport keyed by
// next-hop NodeID, with meshid.Broadcast fanning a frame out to every
// currently-known peer. Two implementations are provided: an in-memory
// link for single-process multi-node tests, and a libp2p-stream-backed
// link used by the demo command to run simulated nodes across real OS
// processes.
package link

import (
	"context"

	"github.com/fusionmesh/meshnode/frag"
	"github.com/fusionmesh/meshnode/meshid"
)

// Frame is one 32-byte link frame, matching frag.FrameSize exactly.
type Frame [frag.FrameSize]byte

// Link moves frames between neighbors. It is the single point every
// component in this module that "touches the radio" depends on.
type Link interface {
	// Send transmits frame to nextHop, or to every known peer if nextHop is
	// meshid.Broadcast. Like radio_send, it reports failure per attempt
	// rather than partial success; the caller decides what "abort the
	// datagram" means for a multi-fragment send (spec §4.2).
	Send(ctx context.Context, nextHop meshid.NodeID, frame Frame) error

	// Frames yields every frame received on this link, in arrival order.
	Frames() <-chan Frame

	// Close releases the link's resources.
	Close() error
}
