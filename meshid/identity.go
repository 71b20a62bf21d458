package meshid

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"

	"filippo.io/edwards25519"
)

// Identity holds a node's long-term keypairs: X25519 for per-message ECDH
// and Ed25519 for signing HELLO beacons (spec §3).
type Identity struct {
	Self  NodeID
	XPriv [32]byte
	XPub  [32]byte
	EPriv [64]byte // seed || pub, matching crypto/ed25519's private key layout
	EPub  [32]byte
}

// ValidateEPub reports whether pub decodes to a genuine point on the
// twisted-Edwards curve, rejecting the all-zero or otherwise degenerate
// encodings a corrupted or malicious HELLO beacon might carry. Mirrors the
// onion-service identity key check in the teacher's onion/address.go.
func ValidateEPub(pub [32]byte) error {
	p, err := new(edwards25519.Point).SetBytes(pub[:])
	if err != nil {
		return fmt.Errorf("invalid ed25519 point: %w", err)
	}
	// The all-zero encoding (and other degenerate ones) decode to points of
	// small order, which multiplying by the cofactor sends to the identity.
	if new(edwards25519.Point).MultByCofactor(p).Equal(edwards25519.NewIdentityPoint()) == 1 {
		return fmt.Errorf("invalid ed25519 point: small order")
	}
	return nil
}

// VerifyEd25519Consistent checks that EPub is actually the public half of
// EPriv, the same self-consistency check keys_load_or_create performs on
// the X25519 pair (spec §4.1).
func (id *Identity) VerifyEd25519Consistent() bool {
	priv := ed25519.PrivateKey(id.EPriv[:])
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return false
	}
	return bytes.Equal(pub, id.EPub[:])
}

// Fingerprint is a diagnostic, operator-facing identifier derived from local
// host attributes. It supplements spec §3 (which fixes NodeID by
// configuration) and is never used for routing or key derivation — it only
// appears in logs, the way go-node's buildNodeIdentity produces a
// human-debuggable string distinct from any protocol identifier.
func Fingerprint() string {
	hn, _ := os.Hostname()
	attrs := []string{
		"goos=" + runtime.GOOS,
		"goarch=" + runtime.GOARCH,
		"hostname=" + hn,
		"goversion=" + runtime.Version(),
	}
	sum := sha256.Sum256([]byte(strings.Join(attrs, ";")))
	return hex.EncodeToString(sum[:8])
}
