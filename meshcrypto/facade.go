// Package meshcrypto is the stable façade over the primitive crypto
// library (spec §4.1): long-term key generation, sign/verify, ephemeral
// X25519, HKDF, AEAD seal/open, and secure random. Loading and persisting
// the identity is done by node.LoadOrCreateIdentity, not here. Every
// constant here — the zero salt, the single HKDF output block, the AEAD
// layout — is pinned exactly because beacons and peers depend on it
// bit-for-bit (spec §4.1).
package meshcrypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/fusionmesh/meshnode/meshid"
)

// EphemeralKeyPair is a one-shot X25519 keypair, e.g. one onion layer's
// sender ephemeral.
type EphemeralKeyPair struct {
	Priv [32]byte
	Pub  [32]byte
}

// Sign produces a 64-byte Ed25519 signature over msg using the node's
// long-term signing key.
func Sign(ePriv [64]byte, msg []byte) [64]byte {
	sig := ed25519.Sign(ed25519.PrivateKey(ePriv[:]), msg)
	var out [64]byte
	copy(out[:], sig)
	return out
}

// Verify checks a 64-byte Ed25519 signature against pub.
func Verify(sig [64]byte, pub [32]byte, msg []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:])
}

// X25519Ephemeral generates a fresh ephemeral X25519 keypair.
func X25519Ephemeral() (EphemeralKeyPair, error) {
	var kp EphemeralKeyPair
	if _, err := rand.Read(kp.Priv[:]); err != nil {
		return kp, fmt.Errorf("generate ephemeral private key: %w", err)
	}
	pub, err := curve25519.X25519(kp.Priv[:], curve25519.Basepoint)
	if err != nil {
		return kp, fmt.Errorf("derive ephemeral public key: %w", err)
	}
	copy(kp.Pub[:], pub)
	return kp, nil
}

// X25519PublicFromPrivate recomputes the public half of an X25519 private
// key, used by keys_load_or_create to re-derive x_pub for self-consistency
// (spec §4.1) regardless of how the private key was sourced.
func X25519PublicFromPrivate(priv [32]byte) ([32]byte, error) {
	var pub [32]byte
	out, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("derive public key: %w", err)
	}
	copy(pub[:], out)
	return pub, nil
}

// X25519Shared computes the ECDH shared secret between myPriv and peerPub.
func X25519Shared(myPriv, peerPub [32]byte) ([32]byte, error) {
	var shared [32]byte
	out, err := curve25519.X25519(myPriv[:], peerPub[:])
	if err != nil {
		return shared, fmt.Errorf("x25519 shared secret: %w", err)
	}
	copy(shared[:], out)
	return shared, nil
}

// HKDFSHA256 derives a single 32-byte output block from ikm and info, with
// an all-zero 32-byte salt and counter=1 — exactly the construction spec
// §4.1 mandates, matching the original firmware's hand-rolled HKDF-Extract
// + one-block HKDF-Expand. Implementations MUST NOT introduce additional
// blocks or a non-zero salt; beacons and peers depend on this bit-for-bit.
func HKDFSHA256(ikm, info []byte) ([32]byte, error) {
	var out [32]byte
	salt := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, ikm, salt, info)
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// HKDFSHA256Raw is a convenience wrapper for info strings built from a
// meshid.NodeID, keeping the HKDF info contract in one place (spec §9).
func HKDFSHA256Raw(ikm [32]byte, hop meshid.NodeID) ([32]byte, error) {
	return HKDFSHA256(ikm[:], hop.HKDFInfo())
}

// AEADSeal seals plaintext under key/nonce24 with XChaCha20-Poly1305, no
// associated data. The output layout is tag(16) || ciphertext(len(plaintext)),
// matching the original firmware's aead_encrypt_xc20p (spec §4.1).
func AEADSeal(key [32]byte, nonce24 [24]byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("new xchacha20poly1305: %w", err)
	}
	sealed := aead.Seal(nil, nonce24[:], plaintext, nil)
	// Go's Seal appends the tag after the ciphertext; the wire format here
	// wants tag-first (spec §4.1), so swap the two halves.
	ctLen := len(plaintext)
	out := make([]byte, len(sealed))
	copy(out[:aead.Overhead()], sealed[ctLen:])
	copy(out[aead.Overhead():], sealed[:ctLen])
	return out, nil
}

// AEADOpen is the inverse of AEADSeal; it fails on any tag mismatch.
func AEADOpen(key [32]byte, nonce24 [24]byte, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("new xchacha20poly1305: %w", err)
	}
	if len(ciphertext) < aead.Overhead() {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(ciphertext))
	}
	tag := ciphertext[:aead.Overhead()]
	ct := ciphertext[aead.Overhead():]
	// Reassemble into the ct||tag layout Go's AEAD expects.
	reordered := make([]byte, 0, len(ciphertext))
	reordered = append(reordered, ct...)
	reordered = append(reordered, tag...)
	pt, err := aead.Open(nil, nonce24[:], reordered, nil)
	if err != nil {
		return nil, fmt.Errorf("aead open: %w", err)
	}
	return pt, nil
}

// GenerateEd25519Seed generates a fresh Ed25519 keypair and returns its
// 64-byte private key (seed || public), the same layout
// crypto_eddsa_key_pair writes into e_priv.
func GenerateEd25519Seed() ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	return priv, nil
}

// RandomBytes returns n cryptographically strong random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("random bytes: %w", err)
	}
	return b, nil
}

// ConstantTimeEqual reports whether a and b are equal without leaking
// timing information. The replay cache does not use it; it compares its
// digests with ==.
func ConstantTimeEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}
