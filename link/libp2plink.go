package link

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	mdns "github.com/libp2p/go-libp2p/p2p/discovery/mdns"

	"github.com/fusionmesh/meshnode/meshid"
)

const (
	mdnsTag      = "fusionmesh-node-discovery"
	framesProto  = protocol.ID("/fusionmesh/frame/1.0.0")
	identProto   = protocol.ID("/fusionmesh/ident/1.0.0")
)

// identMsg is exchanged once per connection so a libp2p peer.ID can be
// mapped back to the mesh's own NodeID space, the same role go-node's
// newNode/mdnsNotifeeImpl pairing plays for its peer table.
type identMsg struct {
	NodeID string `json:"node_id"`
}

// P2PLink is a Link backed by a libp2p host: every Send opens a stream
// carrying exactly one 32-byte frame, and mDNS discovers peers on the local
// network automatically. This replaces radio_nrf24.cpp's hardware driver
// for development and demos; it is not a substitute for a real radio (spec
// §1 puts the radio driver itself out of scope).
type P2PLink struct {
	self   meshid.NodeID
	host   host.Host
	logger *slog.Logger

	mu      sync.RWMutex
	peerIDs map[meshid.NodeID]peer.ID

	inbox chan Frame
}

// NewP2PLink starts a libp2p host listening on listenAddrs, identified by
// priv, and begins mDNS discovery tagged mdnsTag.
func NewP2PLink(ctx context.Context, self meshid.NodeID, priv crypto.PrivKey, listenAddrs []string, logger *slog.Logger) (*P2PLink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.DefaultSecurity,
		libp2p.DefaultMuxers,
		libp2p.DefaultTransports,
		libp2p.ListenAddrStrings(listenAddrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("libp2p new host: %w", err)
	}

	l := &P2PLink{
		self:    self,
		host:    h,
		logger:  logger,
		peerIDs: make(map[meshid.NodeID]peer.ID),
		inbox:   make(chan Frame, 256),
	}

	h.SetStreamHandler(identProto, l.handleIdent)
	h.SetStreamHandler(framesProto, l.handleFrame)

	svc := mdns.NewMdnsService(h, mdnsTag, &mdnsNotifee{ctx: ctx, link: l})
	if err := svc.Start(); err != nil {
		h.Close()
		return nil, fmt.Errorf("start mdns: %w", err)
	}
	return l, nil
}

type mdnsNotifee struct {
	ctx  context.Context
	link *P2PLink
}

func (n *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if err := n.link.host.Connect(n.ctx, info); err != nil {
		n.link.logger.Debug("mdns connect failed", "peer", info.ID, "err", err)
		return
	}
	n.link.sendIdent(n.ctx, info.ID)
}

func (l *P2PLink) sendIdent(ctx context.Context, pid peer.ID) {
	s, err := l.host.NewStream(ctx, pid, identProto)
	if err != nil {
		l.logger.Debug("open ident stream failed", "peer", pid, "err", err)
		return
	}
	defer s.Close()
	enc := json.NewEncoder(s)
	if err := enc.Encode(identMsg{NodeID: l.self.String()}); err != nil {
		l.logger.Debug("send ident failed", "peer", pid, "err", err)
	}
}

func (l *P2PLink) handleIdent(s network.Stream) {
	defer s.Close()
	var msg identMsg
	if err := json.NewDecoder(bufio.NewReader(s)).Decode(&msg); err != nil {
		l.logger.Debug("decode ident failed", "err", err)
		return
	}
	l.mu.Lock()
	l.peerIDs[meshid.NodeID(msg.NodeID)] = s.Conn().RemotePeer()
	l.mu.Unlock()
	l.logger.Info("learned mesh peer", "node_id", msg.NodeID, "libp2p_peer", s.Conn().RemotePeer())
}

func (l *P2PLink) handleFrame(s network.Stream) {
	defer s.Close()
	var frame Frame
	if _, err := readFull(s, frame[:]); err != nil {
		l.logger.Debug("read frame failed", "err", err)
		return
	}
	select {
	case l.inbox <- frame:
	default:
		l.logger.Warn("inbox full, dropping frame")
	}
}

func readFull(s network.Stream, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := s.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (l *P2PLink) Send(ctx context.Context, nextHop meshid.NodeID, frame Frame) error {
	if nextHop == meshid.NodeID(meshid.Broadcast) {
		l.mu.RLock()
		targets := make([]peer.ID, 0, len(l.peerIDs))
		for _, pid := range l.peerIDs {
			targets = append(targets, pid)
		}
		l.mu.RUnlock()
		var lastErr error
		for _, pid := range targets {
			if err := l.sendTo(ctx, pid, frame); err != nil {
				lastErr = err
			}
		}
		return lastErr
	}

	l.mu.RLock()
	pid, ok := l.peerIDs[nextHop]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("p2plink: unknown mesh peer %q", nextHop)
	}
	return l.sendTo(ctx, pid, frame)
}

func (l *P2PLink) sendTo(ctx context.Context, pid peer.ID, frame Frame) error {
	s, err := l.host.NewStream(ctx, pid, framesProto)
	if err != nil {
		return fmt.Errorf("p2plink: open stream to %s: %w", pid, err)
	}
	defer s.Close()
	if _, err := s.Write(frame[:]); err != nil {
		return fmt.Errorf("p2plink: write frame to %s: %w", pid, err)
	}
	return nil
}

func (l *P2PLink) Frames() <-chan Frame { return l.inbox }

func (l *P2PLink) Close() error {
	return l.host.Close()
}
