package neighbor

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/fusionmesh/meshnode/meshcrypto"
	"github.com/fusionmesh/meshnode/meshid"
)

func genIdentity(t *testing.T) (xPub [32]byte, ePub [32]byte, ePriv [64]byte) {
	t.Helper()
	kp, err := meshcrypto.X25519Ephemeral()
	if err != nil {
		t.Fatal(err)
	}
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	copy(ePub[:], pk)
	copy(ePriv[:], sk)
	return kp.Pub, ePub, ePriv
}

func TestBuildAndVerifyHello(t *testing.T) {
	xPub, ePub, ePriv := genIdentity(t)
	raw, err := BuildHello("alice", xPub, ePub, ePriv, HelloTTL)
	if err != nil {
		t.Fatal(err)
	}
	v, err := ParseAndVerify(raw, "bob")
	if err != nil {
		t.Fatalf("expected valid hello to verify, got %v", err)
	}
	if v.From != "alice" || v.XPub != xPub || v.EPub != ePub || v.TTL != HelloTTL {
		t.Fatalf("unexpected verified fields: %+v", v)
	}
}

func TestVerifyHelloFromSelfRejected(t *testing.T) {
	xPub, ePub, ePriv := genIdentity(t)
	raw, err := BuildHello("alice", xPub, ePub, ePriv, HelloTTL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAndVerify(raw, "alice"); err == nil {
		t.Fatal("expected hello from self to be rejected")
	}
}

func TestVerifyHelloTamperedSignatureRejected(t *testing.T) {
	xPub, ePub, ePriv := genIdentity(t)
	raw, err := BuildHello("alice", xPub, ePub, ePriv, HelloTTL)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-3] ^= 0xff
	if _, err := ParseAndVerify(raw, "bob"); err == nil {
		t.Fatal("expected tampered hello to fail verification")
	}
}

func TestIsHelloClassification(t *testing.T) {
	xPub, ePub, ePriv := genIdentity(t)
	helloRaw, err := BuildHello("alice", xPub, ePub, ePriv, HelloTTL)
	if err != nil {
		t.Fatal(err)
	}
	if !IsHello(helloRaw) {
		t.Fatal("expected a built hello envelope to classify as hello")
	}
	if IsHello([]byte("short")) {
		t.Fatal("short buffers must never classify as hello")
	}
	if IsHello([]byte("this is eleven+ bytes with no marker in it")) {
		t.Fatal("onion payloads without the marker must not classify as hello")
	}
}

func TestRebuildDecrementsTTLAndStopsAtZero(t *testing.T) {
	// Use distinct origin and forwarder identities: a rebuilt beacon is
	// re-signed by the forwarder, not the original sender, so this must
	// still verify even though signer != origin.
	xPub, ePub, ePriv := genIdentity(t)
	_, fwdEPub, fwdEPriv := genIdentity(t)
	v := VerifiedHello{From: "alice", XPub: xPub, EPub: ePub, TTL: 1}
	out, ok, err := Rebuild(v, fwdEPub, fwdEPriv)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected rebroadcast at ttl=1")
	}
	v2, err := ParseAndVerify(out, meshid.NodeID(""))
	if err != nil {
		t.Fatal(err)
	}
	if v2.TTL != 0 {
		t.Fatalf("expected ttl 0 after rebuild, got %d", v2.TTL)
	}
	if v2.EPub != fwdEPub {
		t.Fatalf("expected rebuilt beacon to embed the forwarder's e_pub, not the origin's")
	}

	v.TTL = 0
	_, ok, err = Rebuild(v, fwdEPub, fwdEPriv)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no rebroadcast at ttl=0")
	}
}
