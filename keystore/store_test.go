package keystore

import (
	"context"
	"testing"
)

func TestMemStoreRoundTrip(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, KeyXPriv); err != nil || ok {
		t.Fatalf("expected miss on empty store, got ok=%v err=%v", ok, err)
	}

	want := []byte{1, 2, 3, 4}
	if err := s.Set(ctx, KeyXPriv, want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get(ctx, KeyXPriv)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %v want %v", got, want)
	}

	// Mutating the returned slice must not corrupt the store's copy.
	got[0] = 0xff
	got2, _, _ := s.Get(ctx, KeyXPriv)
	if got2[0] != 1 {
		t.Fatal("MemStore.Get leaked internal slice")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLiteStore(dir+"/identity.db", "test-master-key")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, ok, err := s.Get(ctx, KeyEPub); err != nil || ok {
		t.Fatalf("expected miss on fresh db, got ok=%v err=%v", ok, err)
	}

	want := []byte("an ed25519 public key, 32 bytes long...")
	if err := s.Set(ctx, KeyEPub, want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get(ctx, KeyEPub)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q want %q", got, want)
	}

	// Overwrite exercises the ON CONFLICT DO UPDATE path.
	want2 := []byte("replacement value")
	if err := s.Set(ctx, KeyEPub, want2); err != nil {
		t.Fatal(err)
	}
	got2, _, _ := s.Get(ctx, KeyEPub)
	if string(got2) != string(want2) {
		t.Fatalf("update did not take effect: got %q", got2)
	}
}

func TestSQLiteStoreCorruptBlobTreatedAsMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLiteStore(dir+"/identity.db", "key-a")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Set(ctx, KeyXPub, []byte("value")); err != nil {
		t.Fatal(err)
	}

	// Reopening under a different master key makes the stored ciphertext
	// fail to authenticate; spec §7 treats that as "not present".
	s2, err := OpenSQLiteStore(dir+"/identity.db", "key-b")
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	_, ok, err := s2.Get(ctx, KeyXPub)
	if err != nil {
		t.Fatalf("expected nil error on corrupt blob, got %v", err)
	}
	if ok {
		t.Fatal("expected corrupt blob to be reported as missing")
	}
}
