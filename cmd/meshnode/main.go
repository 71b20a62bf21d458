// Command meshnode runs one simulated mesh participant over a libp2p demo
// transport, standing in for the radio hardware the original firmware
// targets (spec §1's external radio driver). Several instances on the same
// LAN discover each other via mDNS and exchange HELLO beacons as spec.md
// describes. The command originates no onion traffic of its own; onion
// datagrams it receives are peeled, forwarded, or delivered to a local sink
// that logs their size.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"

	"github.com/fusionmesh/meshnode/keystore"
	"github.com/fusionmesh/meshnode/link"
	"github.com/fusionmesh/meshnode/meshid"
	"github.com/fusionmesh/meshnode/node"
	"github.com/fusionmesh/meshnode/sink"
)

func main() {
	var (
		selfID      = flag.String("id", "", "this node's id (<=31 ASCII bytes)")
		dbPath      = flag.String("db", "", "path to the SQLite identity store (empty = in-memory)")
		masterKey   = flag.String("master-key", "mesh-dev-key", "passphrase used to encrypt persisted identity blobs")
		listenAddr  = flag.String("listen", "/ip4/0.0.0.0/tcp/0", "libp2p listen multiaddr (repeat by separating with commas)")
		helloPeriod = flag.Duration("hello-interval", 10*time.Second, "HELLO beacon interval")
		dtnPeriod   = flag.Duration("dtn-interval", 5*time.Second, "DTN queue retry interval")
		logLevel    = flag.String("log-level", "info", "debug|info|warn|error")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	if *selfID == "" {
		logger.Error("missing required -id flag")
		os.Exit(1)
	}
	self := meshid.NodeID(*selfID)
	if err := self.Validate(); err != nil {
		logger.Error("invalid -id", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(*dbPath, *masterKey)
	if err != nil {
		logger.Error("open identity store failed", "err", err)
		os.Exit(1)
	}

	libp2pPriv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		logger.Error("generate libp2p transport key failed", "err", err)
		os.Exit(1)
	}

	transport, err := link.NewP2PLink(ctx, self, libp2pPriv, splitAddrs(*listenAddr), logger)
	if err != nil {
		logger.Error("start libp2p link failed", "err", err)
		os.Exit(1)
	}
	defer transport.Close()

	localSink := sink.NewChannel(32)
	go func() {
		for payload := range localSink.C {
			logger.Info("delivered to local sink", "bytes", len(payload))
		}
	}()

	n, err := node.New(ctx, node.Config{
		Self:        self,
		Store:       store,
		Link:        transport,
		Sink:        localSink,
		Logger:      logger,
		HelloPeriod: *helloPeriod,
		DTNPeriod:   *dtnPeriod,
	})
	if err != nil {
		logger.Error("construct node failed", "err", err)
		os.Exit(1)
	}

	logger.Info("mesh node starting", "id", string(self), "x_pub", fmt.Sprintf("%x", n.Identity().XPub))
	if err := n.Run(ctx); err != nil {
		logger.Error("node run exited with error", "err", err)
		os.Exit(1)
	}
	logger.Info("mesh node stopped")
}

func openStore(dbPath, masterKey string) (keystore.Store, error) {
	if dbPath == "" {
		return keystore.NewMemStore(), nil
	}
	return keystore.OpenSQLiteStore(dbPath, masterKey)
}

func splitAddrs(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
