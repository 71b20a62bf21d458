package link

import (
	"context"
	"fmt"
	"sync"

	"github.com/fusionmesh/meshnode/meshid"
)

// hub is the shared broadcast medium a group of MemLinks attach to,
// modeling the single shared radio channel every real node on the mesh
// contends for.
type hub struct {
	mu    sync.RWMutex
	nodes map[meshid.NodeID]*MemLink
}

// NewHub returns an empty in-memory radio medium.
func NewHub() *Hub {
	return &Hub{h: &hub{nodes: make(map[meshid.NodeID]*MemLink)}}
}

// Hub is the exported handle tests create links from.
type Hub struct{ h *hub }

// Join attaches a new node to the hub and returns its Link.
func (hb *Hub) Join(id meshid.NodeID, bufSize int) *MemLink {
	l := &MemLink{id: id, hub: hb.h, inbox: make(chan Frame, bufSize)}
	hb.h.mu.Lock()
	hb.h.nodes[id] = l
	hb.h.mu.Unlock()
	return l
}

// MemLink is a Link backed by Go channels, with no encoding or real I/O —
// used by node package tests to run several mesh nodes in one process.
type MemLink struct {
	id    meshid.NodeID
	hub   *hub
	inbox chan Frame
}

func (l *MemLink) Send(ctx context.Context, nextHop meshid.NodeID, frame Frame) error {
	l.hub.mu.RLock()
	defer l.hub.mu.RUnlock()

	if nextHop == meshid.NodeID(meshid.Broadcast) {
		for id, peer := range l.hub.nodes {
			if id == l.id {
				continue
			}
			peer.deliver(ctx, frame)
		}
		return nil
	}
	peer, ok := l.hub.nodes[nextHop]
	if !ok {
		return fmt.Errorf("memlink: no such peer %q", nextHop)
	}
	return peer.deliver(ctx, frame)
}

func (l *MemLink) deliver(ctx context.Context, frame Frame) error {
	select {
	case l.inbox <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *MemLink) Frames() <-chan Frame { return l.inbox }

func (l *MemLink) Close() error {
	l.hub.mu.Lock()
	delete(l.hub.nodes, l.id)
	l.hub.mu.Unlock()
	close(l.inbox)
	return nil
}
