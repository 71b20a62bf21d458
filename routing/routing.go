// Package routing implements the trivial routing policy of spec §4.6:
// direct delivery to a known neighbor, or a single-relay hop through an
// arbitrary other known neighbor, grounded on mesh.cpp's mesh_choose_route.
package routing

import (
	"github.com/fusionmesh/meshnode/meshid"
	"github.com/fusionmesh/meshnode/neighbor"
)

// Choose returns the route to dest: a single-element route if dest is a
// direct neighbor, a two-element {relay, dest} route if not but some other
// neighbor is known, or ok=false if the node has no neighbors at all.
func Choose(table *neighbor.Table, dest meshid.NodeID) (route []meshid.NodeID, ok bool) {
	if _, direct := table.Lookup(dest); direct {
		return []meshid.NodeID{dest}, true
	}
	relay, any := table.Any()
	if !any {
		return nil, false
	}
	return []meshid.NodeID{relay.ID, dest}, true
}
