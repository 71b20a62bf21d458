// Package keystore persists the four long-term identity blobs
// (x_priv, x_pub, e_priv, e_pub) across reboots. This is the "external
// collaborator" spec §1 explicitly puts out of scope — the mesh core never
// talks to a Store directly, only the key-genesis routine
// node.LoadOrCreateIdentity does.
// A default in-memory store and a SQLite-backed store are provided so a
// concrete node can actually run.
package keystore

import "context"

// Store is the persisted blob interface identity load/create depends on.
// Implementations report a value as "not present" (ok=false) for both a
// missing key and a corrupt one — spec §7 treats persistence failure as
// "not present" and lets the caller regenerate.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Well-known blob keys (spec §6).
const (
	KeyXPriv = "x_priv"
	KeyXPub  = "x_pub"
	KeyEPriv = "e_priv"
	KeyEPub  = "e_pub"
)
