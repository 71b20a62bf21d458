package node

import (
	"context"
	"testing"
	"time"

	"github.com/fusionmesh/meshnode/keystore"
	"github.com/fusionmesh/meshnode/link"
	"github.com/fusionmesh/meshnode/meshid"
	"github.com/fusionmesh/meshnode/sink"
)

func TestTwoNodesExchangeHelloAndDeliverOnion(t *testing.T) {
	hub := link.NewHub()
	linkA := hub.Join("alice", 32)
	linkB := hub.Join("bob", 32)

	sinkB := sink.NewChannel(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA, err := New(ctx, Config{
		Self:        "alice",
		Store:       keystore.NewMemStore(),
		Link:        linkA,
		Sink:        sink.Discard{},
		HelloPeriod: 20 * time.Millisecond,
		DTNPeriod:   20 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	nodeB, err := New(ctx, Config{
		Self:        "bob",
		Store:       keystore.NewMemStore(),
		Link:        linkB,
		Sink:        sinkB,
		HelloPeriod: 20 * time.Millisecond,
		DTNPeriod:   20 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	go nodeA.Run(ctx)
	go nodeB.Run(ctx)

	// Wait for mutual neighbor discovery via HELLO broadcast.
	deadline := time.After(3 * time.Second)
	for {
		_, aKnowsB := nodeA.Neighbors().Lookup("bob")
		_, bKnowsA := nodeB.Neighbors().Lookup("alice")
		if aKnowsB && bKnowsA {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("neighbor discovery did not converge: aKnowsB=%v bKnowsA=%v", aKnowsB, bKnowsA)
		case <-time.After(10 * time.Millisecond):
		}
	}

	payload := []byte("hello from alice to bob")
	if !nodeA.Send("bob", payload) {
		t.Fatal("expected enqueue to succeed")
	}

	select {
	case got := <-sinkB.C:
		if string(got) != string(payload) {
			t.Fatalf("delivered payload mismatch: got %q want %q", got, payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for end-to-end delivery")
	}
}

func TestSendQueueFullReturnsFalse(t *testing.T) {
	hub := link.NewHub()
	linkA := hub.Join("alice", 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA, err := New(ctx, Config{
		Self:  "alice",
		Store: keystore.NewMemStore(),
		Link:  linkA,
	})
	if err != nil {
		t.Fatal(err)
	}

	ok := true
	for i := 0; i < 1000 && ok; i++ {
		ok = nodeA.Send(meshid.NodeID("nowhere"), []byte("x"))
	}
	if ok {
		t.Fatal("expected the outbound queue to eventually fill up")
	}
}
