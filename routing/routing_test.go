package routing

import (
	"testing"
	"time"

	"github.com/fusionmesh/meshnode/meshid"
	"github.com/fusionmesh/meshnode/neighbor"
)

func TestChooseNoNeighbors(t *testing.T) {
	table := neighbor.NewTable()
	if _, ok := Choose(table, "dest"); ok {
		t.Fatal("expected no route with an empty table")
	}
}

func TestChooseDirectNeighbor(t *testing.T) {
	table := neighbor.NewTable()
	var xPub, ePub [32]byte
	table.Upsert("dest", xPub, ePub, time.Now())

	route, ok := Choose(table, "dest")
	if !ok {
		t.Fatal("expected a route")
	}
	if len(route) != 1 || route[0] != meshid.NodeID("dest") {
		t.Fatalf("expected direct route [dest], got %v", route)
	}
}

func TestChooseSingleRelay(t *testing.T) {
	table := neighbor.NewTable()
	var xPub, ePub [32]byte
	table.Upsert("relay", xPub, ePub, time.Now())

	route, ok := Choose(table, "dest")
	if !ok {
		t.Fatal("expected a route")
	}
	if len(route) != 2 || route[0] != meshid.NodeID("relay") || route[1] != meshid.NodeID("dest") {
		t.Fatalf("expected relay route [relay dest], got %v", route)
	}
}
