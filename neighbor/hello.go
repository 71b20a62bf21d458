package neighbor

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/fusionmesh/meshnode/meshcrypto"
	"github.com/fusionmesh/meshnode/meshid"
)

// HelloTTL bounds how many times a beacon is rebroadcast (spec §3, §4.3).
const HelloTTL = 5

// helloData is the signed payload of a beacon, mirroring hello_task's
// cJSON object. Field order is fixed so encoding/json.Marshal's output is
// byte-stable across processes; a verifier checks the signature against the
// exact data bytes carried in the envelope, without re-marshalling (spec §6).
type helloData struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	XPub string `json:"x_pub"`
	EPub string `json:"e_pub"`
	TTL  int    `json:"ttl"`
}

// Hello is the outer signed envelope broadcast on the wire.
type Hello struct {
	Data string `json:"data"`
	Sig  string `json:"sig"`
}

// BuildHello constructs a freshly-signed beacon for self, mirroring
// hello_task's per-interval broadcast body.
func BuildHello(self meshid.NodeID, xPub [32]byte, ePub [32]byte, ePriv [64]byte, ttl int) ([]byte, error) {
	d := helloData{
		Type: "HELLO",
		ID:   self.String(),
		XPub: hex.EncodeToString(xPub[:]),
		EPub: hex.EncodeToString(ePub[:]),
		TTL:  ttl,
	}
	dataBytes, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal hello data: %w", err)
	}
	sig := meshcrypto.Sign(ePriv, dataBytes)
	h := Hello{Data: string(dataBytes), Sig: hex.EncodeToString(sig[:])}
	out, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshal hello envelope: %w", err)
	}
	return out, nil
}

// VerifiedHello is the result of successfully validating an inbound beacon.
type VerifiedHello struct {
	From meshid.NodeID
	XPub [32]byte
	EPub [32]byte
	TTL  int
}

// ParseAndVerify decodes and signature-checks an inbound HELLO envelope,
// mirroring handle_hello up to (but not including) the neighbor-table
// upsert and rebroadcast, which the caller performs. selfID beacons are
// rejected, matching the source's self-id short-circuit.
func ParseAndVerify(raw []byte, selfID meshid.NodeID) (VerifiedHello, error) {
	var env Hello
	if err := json.Unmarshal(raw, &env); err != nil {
		return VerifiedHello{}, fmt.Errorf("parse hello envelope: %w", err)
	}
	var d helloData
	if err := json.Unmarshal([]byte(env.Data), &d); err != nil {
		return VerifiedHello{}, fmt.Errorf("parse hello data: %w", err)
	}
	if meshid.NodeID(d.ID) == selfID {
		return VerifiedHello{}, fmt.Errorf("hello from self, ignored")
	}

	ePub, err := decodeKey32(d.EPub)
	if err != nil {
		return VerifiedHello{}, fmt.Errorf("decode e_pub: %w", err)
	}
	sig, err := decodeSig64(env.Sig)
	if err != nil {
		return VerifiedHello{}, fmt.Errorf("decode sig: %w", err)
	}
	if err := meshid.ValidateEPub(ePub); err != nil {
		return VerifiedHello{}, fmt.Errorf("reject hello: %w", err)
	}
	if !meshcrypto.Verify(sig, ePub, []byte(env.Data)) {
		return VerifiedHello{}, fmt.Errorf("invalid signature from %s", d.ID)
	}

	xPub, err := decodeKey32(d.XPub)
	if err != nil {
		return VerifiedHello{}, fmt.Errorf("decode x_pub: %w", err)
	}
	return VerifiedHello{From: meshid.NodeID(d.ID), XPub: xPub, EPub: ePub, TTL: d.TTL}, nil
}

// Rebuild re-signs a verified beacon's data with ttl-1 under the
// forwarder's own key — handle_hello's rebroadcast step signs with the
// *local* node's key, not the original sender's, so a rebroadcast beacon is
// authenticated by whoever last forwarded it, not by provenance all the way
// back to the origin (spec §9, preserved deliberately, not "fixed"). The
// embedded e_pub must therefore be the forwarder's own (ePub), not the
// original sender's — a verifier checks the signature against whatever
// e_pub is embedded, so signer and embedded key must always match.
func Rebuild(v VerifiedHello, ePub [32]byte, ePriv [64]byte) ([]byte, bool, error) {
	if v.TTL <= 0 {
		return nil, false, nil
	}
	d := helloData{
		Type: "HELLO",
		ID:   v.From.String(),
		XPub: hex.EncodeToString(v.XPub[:]),
		EPub: hex.EncodeToString(ePub[:]),
		TTL:  v.TTL - 1,
	}
	dataBytes, err := json.Marshal(d)
	if err != nil {
		return nil, false, fmt.Errorf("marshal rebroadcast data: %w", err)
	}
	sig := meshcrypto.Sign(ePriv, dataBytes)
	h := Hello{Data: string(dataBytes), Sig: hex.EncodeToString(sig[:])}
	out, err := json.Marshal(h)
	if err != nil {
		return nil, false, fmt.Errorf("marshal rebroadcast envelope: %w", err)
	}
	return out, true, nil
}

// IsHello classifies a reassembled datagram as a HELLO iff it is longer
// than 10 bytes and its payload contains the HELLO type marker, matching
// mesh_on_radio_frame's memmem check exactly (spec §4.7). The dispatch
// package's one-byte tag has replaced this as the actual dispatcher
// (dispatch.Unwrap); IsHello is kept only as the documented prior
// classification rule, not invoked on any live code path.
func IsHello(buf []byte) bool {
	if len(buf) <= 10 {
		return false
	}
	return containsHelloMarker(buf)
}

const helloMarker = `HELLO`

func containsHelloMarker(buf []byte) bool {
	n := len(helloMarker)
	for i := 0; i+n <= len(buf); i++ {
		if string(buf[i:i+n]) == helloMarker {
			return true
		}
	}
	return false
}

func decodeKey32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func decodeSig64(s string) ([64]byte, error) {
	var out [64]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 64 {
		return out, fmt.Errorf("expected 64 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
