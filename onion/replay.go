// Package onion builds and peels the layered (onion) encrypted forwarding
// payloads described in spec §4.4, and defends against replayed ciphertexts
// (spec §4.5), grounded on onion.cpp's onion_build/peel_and_forward and
// is_replay.
package onion

import (
	"crypto/sha256"
	"sync"
)

// ReplayCacheSize is the ring buffer capacity (spec §3).
const ReplayCacheSize = 64

// ReplayCache is a fixed-size ring of SHA-256 digests of recently-seen
// reassembled datagrams, mirroring onion.cpp's replay_cache array. It is
// per-packet, not per-layer: a reused outer datagram is rejected, but a
// re-encrypted retry with a fresh ephemeral/nonce produces a different
// digest and is accepted (spec §4.5).
type ReplayCache struct {
	mu    sync.Mutex
	cache [ReplayCacheSize][32]byte
	next  int
	count int
}

// NewReplayCache returns an empty ring.
func NewReplayCache() *ReplayCache {
	return &ReplayCache{}
}

// CheckAndInsert returns true if buf's digest was already present (replay);
// otherwise it inserts the digest and returns false. Must be called before
// any onion peel is attempted.
func (c *ReplayCache) CheckAndInsert(buf []byte) bool {
	h := sha256.Sum256(buf)
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < c.count; i++ {
		if c.cache[i] == h {
			return true
		}
	}
	c.cache[c.next] = h
	c.next = (c.next + 1) % ReplayCacheSize
	if c.count < ReplayCacheSize {
		c.count++
	}
	return false
}
