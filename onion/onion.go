package onion

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/fusionmesh/meshnode/meshcrypto"
	"github.com/fusionmesh/meshnode/meshid"
)

const (
	ephemeralPubSize = 32
	nonceSize        = 24
	headerSize       = ephemeralPubSize + nonceSize // 56, matching peel_and_forward's magic constant

	// OnionMaxBytes bounds the onion-wrapped datagram at every layering
	// step, matching node_config.h's ONION_MAX_BYTES build-time constant.
	OnionMaxBytes = 2048
)

// KeyLookup resolves a hop's X25519 public key, satisfied by
// *neighbor.Table.
type KeyLookup interface {
	XPubOf(id meshid.NodeID) ([32]byte, bool)
}

// layerPlaintext is the JSON object encrypted inside one onion layer,
// mirroring onion_build's cJSON object with "next"/"inner" fields.
type layerPlaintext struct {
	Next  string `json:"next"`
	Inner string `json:"inner"`
}

// Build wraps inner in one onion layer per hop in route (outermost last),
// exactly like onion_build: iterates the route in reverse, so the first
// hop's layer is applied last and ends up outermost on the wire.
func Build(keys KeyLookup, route []meshid.NodeID, inner []byte) ([]byte, error) {
	if len(route) == 0 {
		return nil, fmt.Errorf("onion build: empty route")
	}
	if len(inner) > OnionMaxBytes {
		return nil, fmt.Errorf("onion build: inner payload %d bytes exceeds %d-byte cap", len(inner), OnionMaxBytes)
	}
	payload := append([]byte(nil), inner...)

	for i := len(route) - 1; i >= 0; i-- {
		hop := route[i]
		hopPub, ok := keys.XPubOf(hop)
		if !ok {
			return nil, fmt.Errorf("onion build: no x25519 public key for hop %q", hop)
		}
		eph, err := meshcrypto.X25519Ephemeral()
		if err != nil {
			return nil, fmt.Errorf("onion build: %w", err)
		}
		shared, err := meshcrypto.X25519Shared(eph.Priv, hopPub)
		if err != nil {
			return nil, fmt.Errorf("onion build: %w", err)
		}
		key, err := meshcrypto.HKDFSHA256Raw(shared, hop)
		if err != nil {
			return nil, fmt.Errorf("onion build: %w", err)
		}
		var nonce [24]byte
		nb, err := meshcrypto.RandomBytes(nonceSize)
		if err != nil {
			return nil, fmt.Errorf("onion build: %w", err)
		}
		copy(nonce[:], nb)

		next := meshid.Local
		if i+1 < len(route) {
			next = route[i+1].String()
		}
		plain, err := json.Marshal(layerPlaintext{Next: next, Inner: hex.EncodeToString(payload)})
		if err != nil {
			return nil, fmt.Errorf("onion build: marshal layer: %w", err)
		}

		ct, err := meshcrypto.AEADSeal(key, nonce, plain)
		if err != nil {
			return nil, fmt.Errorf("onion build: %w", err)
		}

		layer := make([]byte, 0, headerSize+len(ct))
		layer = append(layer, eph.Pub[:]...)
		layer = append(layer, nonce[:]...)
		layer = append(layer, ct...)
		if len(layer) > OnionMaxBytes {
			return nil, fmt.Errorf("onion build: layer for hop %q grew to %d bytes, exceeds %d-byte cap", hop, len(layer), OnionMaxBytes)
		}
		payload = layer
	}
	return payload, nil
}

// Peeled is the result of removing one onion layer.
type Peeled struct {
	// Next is either meshid.Local (deliver here) or the next hop to
	// forward to.
	Next  meshid.NodeID
	Inner []byte
}

// Peel decrypts exactly one onion layer addressed to self, mirroring
// peel_and_forward. The caller must have already passed buf through a
// ReplayCache check.
func Peel(selfXPriv [32]byte, self meshid.NodeID, buf []byte) (Peeled, error) {
	if len(buf) < headerSize {
		return Peeled{}, fmt.Errorf("onion peel: datagram too short: %d bytes", len(buf))
	}
	if len(buf) > OnionMaxBytes {
		return Peeled{}, fmt.Errorf("onion peel: datagram %d bytes exceeds %d-byte cap", len(buf), OnionMaxBytes)
	}
	var ephPub [32]byte
	copy(ephPub[:], buf[:ephemeralPubSize])
	var nonce [24]byte
	copy(nonce[:], buf[ephemeralPubSize:headerSize])
	ct := buf[headerSize:]

	shared, err := meshcrypto.X25519Shared(selfXPriv, ephPub)
	if err != nil {
		return Peeled{}, fmt.Errorf("onion peel: %w", err)
	}
	key, err := meshcrypto.HKDFSHA256Raw(shared, self)
	if err != nil {
		return Peeled{}, fmt.Errorf("onion peel: %w", err)
	}
	plain, err := meshcrypto.AEADOpen(key, nonce, ct)
	if err != nil {
		return Peeled{}, fmt.Errorf("onion peel: aead open failed: %w", err)
	}

	var layer layerPlaintext
	if err := json.Unmarshal(plain, &layer); err != nil {
		return Peeled{}, fmt.Errorf("onion peel: malformed layer plaintext: %w", err)
	}
	innerBytes, err := hex.DecodeString(layer.Inner)
	if err != nil {
		return Peeled{}, fmt.Errorf("onion peel: malformed inner hex: %w", err)
	}
	return Peeled{Next: meshid.NodeID(layer.Next), Inner: innerBytes}, nil
}
