package node

import (
	"context"
	"fmt"

	"github.com/fusionmesh/meshnode/keystore"
	"github.com/fusionmesh/meshnode/meshcrypto"
	"github.com/fusionmesh/meshnode/meshid"
)

// LoadOrCreateIdentity reads self's long-term keypairs from store, generating
// and persisting any missing or wrong-length blob, and always recomputing
// XPub from XPriv for self-consistency — the Go form of
// crypto_abstraction.cpp's crypto_keys_load_or_create (spec §4.1).
func LoadOrCreateIdentity(ctx context.Context, store keystore.Store, self meshid.NodeID) (meshid.Identity, error) {
	if err := self.Validate(); err != nil {
		return meshid.Identity{}, fmt.Errorf("load identity: %w", err)
	}

	xPriv, err := loadOrCreateBlob(ctx, store, keystore.KeyXPriv, 32, func() ([]byte, error) {
		return meshcrypto.RandomBytes(32)
	})
	if err != nil {
		return meshid.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	var xPrivArr [32]byte
	copy(xPrivArr[:], xPriv)

	xPub, err := meshcrypto.X25519PublicFromPrivate(xPrivArr)
	if err != nil {
		return meshid.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	if err := store.Set(ctx, keystore.KeyXPub, xPub[:]); err != nil {
		return meshid.Identity{}, fmt.Errorf("load identity: persist x_pub: %w", err)
	}

	ePriv, err := loadOrCreateBlob(ctx, store, keystore.KeyEPriv, 64, func() ([]byte, error) {
		return meshcrypto.GenerateEd25519Seed()
	})
	if err != nil {
		return meshid.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	var ePrivArr [64]byte
	copy(ePrivArr[:], ePriv)

	var ePub [32]byte
	copy(ePub[:], ePriv[32:64])
	if err := store.Set(ctx, keystore.KeyEPub, ePub[:]); err != nil {
		return meshid.Identity{}, fmt.Errorf("load identity: persist e_pub: %w", err)
	}

	id := meshid.Identity{Self: self, XPriv: xPrivArr, XPub: xPub, EPriv: ePrivArr, EPub: ePub}
	if !id.VerifyEd25519Consistent() {
		return meshid.Identity{}, fmt.Errorf("load identity: e_pub inconsistent with e_priv")
	}
	return id, nil
}

func loadOrCreateBlob(ctx context.Context, store keystore.Store, key string, wantLen int, gen func() ([]byte, error)) ([]byte, error) {
	existing, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if ok && len(existing) == wantLen {
		return existing, nil
	}
	fresh, err := gen()
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", key, err)
	}
	if err := store.Set(ctx, key, fresh); err != nil {
		return nil, fmt.Errorf("persist %s: %w", key, err)
	}
	return fresh, nil
}
