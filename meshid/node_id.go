// Package meshid holds the node identity types shared across the mesh:
// the routing label (NodeID) and the long-term keypairs bound to it.
package meshid

import "fmt"

// MaxIDLen is the maximum length of a node identifier (spec §3).
const MaxIDLen = 31

// Local is the sentinel "next hop" meaning "deliver here" in an onion layer.
const Local = "LOCAL"

// Broadcast is the link-layer destination used for HELLO beacons.
const Broadcast = "BCAST"

// NodeID is the single representation of a node identifier. It is used both
// as a routing label and, verbatim, as the suffix of the HKDF "layer:" info
// string — binding the two contracts together (spec §9 design note) so the
// byte form that goes into key derivation can never drift from the byte form
// used for routing.
type NodeID string

// Validate reports whether id is a legal node identifier: non-empty, ASCII,
// and no longer than MaxIDLen bytes.
func (id NodeID) Validate() error {
	if len(id) == 0 {
		return fmt.Errorf("node id is empty")
	}
	if len(id) > MaxIDLen {
		return fmt.Errorf("node id %q exceeds %d bytes", string(id), MaxIDLen)
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 0x7f {
			return fmt.Errorf("node id %q is not ASCII", string(id))
		}
	}
	return nil
}

// String returns the identifier's textual form.
func (id NodeID) String() string { return string(id) }

// Bytes returns the identifier's byte form.
func (id NodeID) Bytes() []byte { return []byte(id) }

// HKDFInfo returns the HKDF info string for a layer keyed to this hop:
// the ASCII literal "layer:" followed by the exact identifier bytes, no
// length prefix, no terminator (spec §4.4, §6).
func (id NodeID) HKDFInfo() []byte {
	return append([]byte("layer:"), id...)
}

// IsLocal reports whether this identifier is the onion "deliver locally"
// sentinel rather than an actual node id.
func (id NodeID) IsLocal() bool { return string(id) == Local }
