// Package node is the orchestrator: it owns every per-node singleton
// (neighbor table, replay cache, reassembly pool, DTN queue) as fields of a
// Node struct instead of process-wide globals, and drives the RX, HELLO,
// and DTN tasks as goroutines over a context.Context — the redesign
// spec.md §9 calls for in place of mesh.cpp/onion.cpp/dtn.cpp's static
// arrays and FreeRTOS tasks.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fusionmesh/meshnode/dispatch"
	"github.com/fusionmesh/meshnode/dtn"
	"github.com/fusionmesh/meshnode/frag"
	"github.com/fusionmesh/meshnode/keystore"
	"github.com/fusionmesh/meshnode/link"
	"github.com/fusionmesh/meshnode/meshid"
	"github.com/fusionmesh/meshnode/neighbor"
	"github.com/fusionmesh/meshnode/onion"
	"github.com/fusionmesh/meshnode/routing"
	"github.com/fusionmesh/meshnode/sink"
)

// Config configures a Node.
type Config struct {
	Self        meshid.NodeID
	Store       keystore.Store
	Link        link.Link
	Sink        sink.Sink
	Logger      *slog.Logger
	HelloPeriod time.Duration // defaults to 10s, matching HELLO_INTERVAL_MS
	DTNPeriod   time.Duration // defaults to 5s, matching dtn_task's tick
}

// Node is a single mesh participant.
type Node struct {
	self   meshid.NodeID
	id     meshid.Identity
	link   link.Link
	sink   sink.Sink
	logger *slog.Logger

	neighbors *neighbor.Table
	replay    *onion.ReplayCache
	reasm     *frag.Reassembler
	outbound  *dtn.Queue

	helloPeriod time.Duration
	dtnPeriod   time.Duration

	// nextPacketID is shared by the HELLO, DTN, and RX (rebroadcast/forward)
	// tasks, all of which can originate a send; the source leaves this
	// unsynchronized (spec §9's open item on the missing radio mutex), but a
	// portable multi-goroutine implementation must not let concurrent
	// increments race.
	nextPacketID atomic.Uint32
}

// New loads or creates cfg.Self's identity from cfg.Store and constructs a
// Node ready to Run.
func New(ctx context.Context, cfg Config) (*Node, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HelloPeriod == 0 {
		cfg.HelloPeriod = 10 * time.Second
	}
	if cfg.DTNPeriod == 0 {
		cfg.DTNPeriod = dtn.TickInterval
	}
	if cfg.Sink == nil {
		cfg.Sink = sink.Discard{}
	}

	id, err := LoadOrCreateIdentity(ctx, cfg.Store, cfg.Self)
	if err != nil {
		return nil, fmt.Errorf("node new: %w", err)
	}

	return &Node{
		self:        cfg.Self,
		id:          id,
		link:        cfg.Link,
		sink:        cfg.Sink,
		logger:      cfg.Logger.With("node_id", string(cfg.Self)),
		neighbors:   neighbor.NewTable(),
		replay:      onion.NewReplayCache(),
		reasm:       frag.NewReassembler(),
		outbound:    dtn.NewQueue(),
		helloPeriod: cfg.HelloPeriod,
		dtnPeriod:   cfg.DTNPeriod,
	}, nil
}

// Identity returns the node's long-term identity.
func (n *Node) Identity() meshid.Identity { return n.id }

// Neighbors returns the node's neighbor table, for tests and diagnostics.
func (n *Node) Neighbors() *neighbor.Table { return n.neighbors }

// Run starts the RX, HELLO, and DTN tasks and blocks until ctx is
// cancelled.
func (n *Node) Run(ctx context.Context) error {
	errs := make(chan error, 3)
	go func() { errs <- n.rxTask(ctx) }()
	go func() { errs <- n.helloTask(ctx) }()
	go func() { errs <- n.dtnTask(ctx) }()

	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}

// Send queues payload for delivery to dest via the DTN queue, mirroring
// the outbound data flow application → DTN queue → routing → onion build →
// fragmentation → link send (spec §2). It returns false if the queue is
// full or payload already exceeds onion.OnionMaxBytes and could never be
// wrapped, regardless of route length.
func (n *Node) Send(dest meshid.NodeID, payload []byte) bool {
	if len(payload) > onion.OnionMaxBytes {
		n.logger.Warn("dropping oversized send", "dest", dest, "bytes", len(payload))
		return false
	}
	return n.outbound.Enqueue(dest, payload)
}

// rxTask is the high-priority loop reading inbound frames, driving
// reassembly, then the dispatcher — the Go analog of radio_nrf24.cpp's
// rx_task (spec §5).
func (n *Node) rxTask(ctx context.Context) error {
	frames := n.link.Frames()
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			now := time.Now()
			datagram, complete := n.reasm.Accept([frag.FrameSize]byte(f), now)
			if !complete {
				continue
			}
			n.handleDatagram(ctx, datagram)
		}
	}
}

// helloTask broadcasts a signed HELLO beacon every helloPeriod, mirroring
// hello_task.
func (n *Node) helloTask(ctx context.Context) error {
	ticker := time.NewTicker(n.helloPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			raw, err := neighbor.BuildHello(n.self, n.id.XPub, n.id.EPub, n.id.EPriv, neighbor.HelloTTL)
			if err != nil {
				n.logger.Error("build hello failed", "err", err)
				continue
			}
			if err := n.sendDatagram(ctx, meshid.NodeID(meshid.Broadcast), dispatch.Wrap(dispatch.TagHello, raw)); err != nil {
				n.logger.Warn("broadcast hello failed", "err", err)
			}
		}
	}
}

// dtnTask attempts the head of the outbound queue every dtnPeriod,
// mirroring dtn_task's head-of-line, pop-regardless-of-outcome tick.
func (n *Node) dtnTask(ctx context.Context) error {
	ticker := time.NewTicker(n.dtnPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.tryDrainHead(ctx)
		}
	}
}

// tryDrainHead attempts to send the queue's head item once, then always
// pops it — fire-and-forget, lossy delivery (spec §4.5), not retry-until-
// success. A head with no route yet is left in place for the next tick;
// once a route exists, the send is attempted exactly once regardless of
// outcome, so one unsendable item can never wedge the rest of the queue.
func (n *Node) tryDrainHead(ctx context.Context) {
	item, ok := n.outbound.Peek()
	if !ok {
		return
	}
	route, ok := routing.Choose(n.neighbors, item.Dest)
	if !ok {
		return
	}
	defer func() { _ = n.outbound.PopFront() }()

	wire, err := onion.Build(n.neighbors, route, item.Payload)
	if err != nil {
		n.logger.Warn("onion build failed, dropping queued item", "dest", item.Dest, "err", err)
		return
	}
	if err := n.sendDatagram(ctx, route[0], dispatch.Wrap(dispatch.TagOnion, wire)); err != nil {
		n.logger.Warn("send to first hop failed, dropping queued item", "dest", item.Dest, "err", err)
	}
}

// handleDatagram is the dispatcher: classify the reassembled datagram,
// replay-check it if it's onion traffic, then act (spec §4.7).
func (n *Node) handleDatagram(ctx context.Context, datagram []byte) {
	tag, payload, err := dispatch.Unwrap(datagram)
	if err != nil {
		n.logger.Debug("dropping malformed datagram", "err", err)
		return
	}

	switch tag {
	case dispatch.TagHello:
		n.handleHello(ctx, payload)
	case dispatch.TagOnion:
		n.handleOnion(ctx, datagram, payload)
	}
}

func (n *Node) handleHello(ctx context.Context, raw []byte) {
	v, err := neighbor.ParseAndVerify(raw, n.self)
	if err != nil {
		n.logger.Debug("rejecting hello", "err", err)
		return
	}
	if !n.neighbors.Upsert(v.From, v.XPub, v.EPub, time.Now()) {
		n.logger.Warn("neighbor table full, dropping new neighbor", "from", v.From)
		return
	}
	n.logger.Info("learned neighbor", "from", v.From)

	rebroadcast, ok, err := neighbor.Rebuild(v, n.id.EPub, n.id.EPriv)
	if err != nil {
		n.logger.Warn("rebuild hello for rebroadcast failed", "err", err)
		return
	}
	if !ok {
		return
	}
	if err := n.sendDatagram(ctx, meshid.NodeID(meshid.Broadcast), dispatch.Wrap(dispatch.TagHello, rebroadcast)); err != nil {
		n.logger.Warn("rebroadcast hello failed", "err", err)
	}
}

// handleOnion replay-checks the whole reassembled datagram (not just the
// onion payload) before peeling, matching onion_on_frame's ordering (spec
// §4.5).
func (n *Node) handleOnion(ctx context.Context, fullDatagram []byte, onionWire []byte) {
	if n.replay.CheckAndInsert(fullDatagram) {
		n.logger.Warn("replayed datagram dropped")
		return
	}
	peeled, err := onion.Peel(n.id.XPriv, n.self, onionWire)
	if err != nil {
		n.logger.Warn("onion peel failed", "err", err)
		return
	}
	if peeled.Next == meshid.Local {
		if err := n.sink.Deliver(peeled.Inner); err != nil {
			n.logger.Warn("local delivery failed", "err", err)
		}
		return
	}
	if err := n.sendDatagram(ctx, peeled.Next, dispatch.Wrap(dispatch.TagOnion, peeled.Inner)); err != nil {
		n.logger.Warn("forward failed", "next", peeled.Next, "err", err)
	}
}

// sendDatagram fragments datagram and sends every frame over the link,
// aborting on the first failed fragment send (spec §4.2).
func (n *Node) sendDatagram(ctx context.Context, nextHop meshid.NodeID, datagram []byte) error {
	packetID := uint8(n.nextPacketID.Add(1) - 1)
	return frag.Fragment(packetID, datagram, func(f [frag.FrameSize]byte) error {
		return n.link.Send(ctx, nextHop, link.Frame(f))
	})
}
