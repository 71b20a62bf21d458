package neighbor

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/fusionmesh/meshnode/meshid"
)

// Snapshot is a point-in-time export of a node's neighbor table, adapted
// from go-node's peers.go PeerSnapshot/exportPeersSnapshot: the mesh core
// itself has no concept of "save the neighbor table to disk", but a node
// restarting after a reboot benefits from seeding its table from a prior
// run rather than waiting for fresh HELLOs to trickle back in.
type Snapshot struct {
	Version int            `json:"version"`
	NodeID  string         `json:"node_id"`
	Created time.Time      `json:"created"`
	Entries []SnapshotEntry `json:"entries"`
}

// SnapshotEntry is one neighbor's exported key material.
type SnapshotEntry struct {
	ID       string `json:"id"`
	XPubB64  string `json:"x_pub"`
	EPubB64  string `json:"e_pub"`
	LastSeen time.Time `json:"last_seen"`
}

// Export captures the current table contents as a Snapshot, the same
// List()-then-project shape as exportPeersSnapshot.
func Export(selfID meshid.NodeID, t *Table) Snapshot {
	entries := t.All()
	out := make([]SnapshotEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, SnapshotEntry{
			ID:       e.ID.String(),
			XPubB64:  base64.RawURLEncoding.EncodeToString(e.XPub[:]),
			EPubB64:  base64.RawURLEncoding.EncodeToString(e.EPub[:]),
			LastSeen: e.LastSeen,
		})
	}
	return Snapshot{Version: 1, NodeID: selfID.String(), Entries: out}
}

// EncryptSnapshot seals a Snapshot under key32 with XChaCha20-Poly1305,
// mirroring go-node's encryptSnapshot (nonce-prefixed ciphertext).
func EncryptSnapshot(key32 [32]byte, snap Snapshot) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key32[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	plain, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plain, nil)
	return append(nonce, ct...), nil
}

// DecryptSnapshot is the inverse of EncryptSnapshot.
func DecryptSnapshot(key32 [32]byte, nonceAndCT []byte) (Snapshot, error) {
	var snap Snapshot
	if len(nonceAndCT) < chacha20poly1305.NonceSizeX {
		return snap, errors.New("ciphertext too short")
	}
	aead, err := chacha20poly1305.NewX(key32[:])
	if err != nil {
		return snap, err
	}
	nonce := nonceAndCT[:chacha20poly1305.NonceSizeX]
	ct := nonceAndCT[chacha20poly1305.NonceSizeX:]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(pt, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Merge upserts every entry of snap into t, returning the count merged.
// Malformed base64 key material is skipped rather than failing the whole
// merge, matching mergeSnapshot's best-effort decode.
func Merge(t *Table, snap Snapshot) int {
	count := 0
	for _, e := range snap.Entries {
		xPub, err1 := decodeB64Key32(e.XPubB64)
		ePub, err2 := decodeB64Key32(e.EPubB64)
		if err1 != nil || err2 != nil {
			continue
		}
		if t.Upsert(meshid.NodeID(e.ID), xPub, ePub, e.LastSeen) {
			count++
		}
	}
	return count
}

func decodeB64Key32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, errors.New("wrong key length")
	}
	copy(out[:], b)
	return out, nil
}
