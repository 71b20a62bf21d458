package dispatch

import (
	"bytes"
	"testing"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	payload := []byte("a hello or onion body")
	for _, tag := range []Tag{TagHello, TagOnion} {
		datagram := Wrap(tag, payload)
		gotTag, gotPayload, err := Unwrap(datagram)
		if err != nil {
			t.Fatal(err)
		}
		if gotTag != tag {
			t.Fatalf("tag mismatch: got %v want %v", gotTag, tag)
		}
		if !bytes.Equal(gotPayload, payload) {
			t.Fatalf("payload mismatch: got %q want %q", gotPayload, payload)
		}
	}
}

func TestUnwrapRejectsEmpty(t *testing.T) {
	if _, _, err := Unwrap(nil); err == nil {
		t.Fatal("expected error on empty datagram")
	}
}

func TestUnwrapRejectsUnknownTag(t *testing.T) {
	if _, _, err := Unwrap([]byte{0xff, 1, 2, 3}); err == nil {
		t.Fatal("expected error on unknown tag")
	}
}

func TestUnwrapNoPanicOnGarbage(t *testing.T) {
	for i := 0; i < 256; i++ {
		_, _, _ = Unwrap([]byte{byte(i)})
	}
}
