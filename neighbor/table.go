// Package neighbor holds per-neighbor key material learned from HELLO
// beacons and the HELLO protocol itself. Grounded on mesh.cpp's nb_t/NB
// array and nb_upsert/mesh_get_x25519_pub, generalized to a mutex-guarded
// map with an explicit capacity (spec §4.3, §9's "own objects" redesign
// flag).
package neighbor

import (
	"sync"
	"time"

	"github.com/fusionmesh/meshnode/meshid"
)

// MaxNeighbors bounds the table exactly like the source's MAX_NB (spec §3).
const MaxNeighbors = 32

// Entry is one learned neighbor's key material, mirroring nb_t.
type Entry struct {
	ID       meshid.NodeID
	XPub     [32]byte // X25519 public key, used for onion layer ECDH
	EPub     [32]byte // Ed25519 public key, used to verify its HELLOs
	LastSeen time.Time
}

// Table is the TOFU (trust-on-first-use) neighbor set: the first HELLO
// from an id is trusted on its own signature; later HELLOs from the same id
// with a valid signature replace the stored key material and refresh
// LastSeen in place, so an entry holds the keys last verified.
type Table struct {
	mu  sync.RWMutex
	nbs map[meshid.NodeID]*Entry
}

// NewTable returns an empty neighbor table.
func NewTable() *Table {
	return &Table{nbs: make(map[meshid.NodeID]*Entry)}
}

// Upsert records or refreshes a neighbor. It returns false (matching
// mesh_upsert's silent drop on a full table) if the table is at capacity
// and id is not already present.
func (t *Table) Upsert(id meshid.NodeID, xPub, ePub [32]byte, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.nbs[id]; ok {
		e.XPub = xPub
		e.EPub = ePub
		e.LastSeen = now
		return true
	}
	if len(t.nbs) >= MaxNeighbors {
		return false
	}
	t.nbs[id] = &Entry{ID: id, XPub: xPub, EPub: ePub, LastSeen: now}
	return true
}

// Lookup returns a copy of the neighbor entry for id, if known.
func (t *Table) Lookup(id meshid.NodeID) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.nbs[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// XPubOf returns id's X25519 public key, mirroring mesh_get_x25519_pub.
func (t *Table) XPubOf(id meshid.NodeID) ([32]byte, bool) {
	e, ok := t.Lookup(id)
	return e.XPub, ok
}

// Any returns an arbitrary known neighbor, used by routing's single-relay
// fallback (spec §4.6). Iteration order over a map is unspecified, which
// matches the source's behavior of always picking NB[0] only in the sense
// that "some neighbor" is picked — callers must not depend on which one.
func (t *Table) Any() (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.nbs {
		return *e, true
	}
	return Entry{}, false
}

// Len reports the current neighbor count.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nbs)
}

// All returns a snapshot of every neighbor, used by the encrypted
// export/import path (supplemented from go-node's peers.go).
func (t *Table) All() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, 0, len(t.nbs))
	for _, e := range t.nbs {
		out = append(out, *e)
	}
	return out
}
