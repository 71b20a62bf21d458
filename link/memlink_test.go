package link

import (
	"context"
	"testing"
	"time"

	"github.com/fusionmesh/meshnode/meshid"
)

func TestMemLinkDirectSend(t *testing.T) {
	hub := NewHub()
	a := hub.Join("a", 4)
	b := hub.Join("b", 4)
	defer a.Close()
	defer b.Close()

	var frame Frame
	frame[0] = 0x42
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Send(ctx, "b", frame); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-b.Frames():
		if got != frame {
			t.Fatalf("frame mismatch: got %v want %v", got, frame)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestMemLinkBroadcastFansOutExcludingSelf(t *testing.T) {
	hub := NewHub()
	a := hub.Join("a", 4)
	b := hub.Join("b", 4)
	c := hub.Join("c", 4)
	defer a.Close()
	defer b.Close()
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var frame Frame
	frame[0] = 0x7
	if err := a.Send(ctx, meshid.NodeID(meshid.Broadcast), frame); err != nil {
		t.Fatal(err)
	}

	for _, l := range []*MemLink{b, c} {
		select {
		case got := <-l.Frames():
			if got != frame {
				t.Fatalf("frame mismatch: got %v want %v", got, frame)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast frame")
		}
	}

	select {
	case <-a.Frames():
		t.Fatal("broadcast must not loop back to the sender")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemLinkSendToUnknownPeerFails(t *testing.T) {
	hub := NewHub()
	a := hub.Join("a", 4)
	defer a.Close()

	var frame Frame
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Send(ctx, "ghost", frame); err == nil {
		t.Fatal("expected error sending to unknown peer")
	}
}
