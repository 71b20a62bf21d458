package meshid

import (
	"strings"
	"testing"
)

func TestNodeIDValidate(t *testing.T) {
	cases := []struct {
		id      NodeID
		wantErr bool
	}{
		{"", true},
		{"A", false},
		{NodeID(strings.Repeat("x", MaxIDLen)), false},
		{NodeID(strings.Repeat("x", MaxIDLen+1)), true},
		{NodeID("caf\xe9"), true}, // non-ASCII byte
	}
	for _, c := range cases {
		err := c.id.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", string(c.id), err, c.wantErr)
		}
	}
}

func TestHKDFInfoBinding(t *testing.T) {
	id := NodeID("relay-7")
	info := id.HKDFInfo()
	want := "layer:relay-7"
	if string(info) != want {
		t.Fatalf("HKDFInfo() = %q, want %q", info, want)
	}
}

func TestIsLocal(t *testing.T) {
	if !NodeID(Local).IsLocal() {
		t.Fatal("Local sentinel should report IsLocal")
	}
	if NodeID("B").IsLocal() {
		t.Fatal("ordinary id should not report IsLocal")
	}
}
