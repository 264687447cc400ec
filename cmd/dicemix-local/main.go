// Command dicemix-local runs a complete mix among peers simulated in one
// process, all connected through a protocol.LocalHub.
//
// It is meant for trying out parameters: field size, message size and
// count, key exchange. Each peer contributes random messages; the first
// peer is the observed one, its metrics and state are served over HTTP
// when --metrics-addr is set.
//
// # Configuration File
//
//	field: p127
//	message_size: 32
//	round_timeout: 10s
//	key_exchange: secp256k1
//	max_runs: 8
//	log_level: info
//
// # Usage
//
//	go run ./cmd/dicemix-local --peers=5 --messages=2
//	go run ./cmd/dicemix-local --config=dicemix.yaml --metrics-addr=:9090
//	go run ./cmd/dicemix-local --field=p521 --key-exchange=x25519 --silent=1
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flashbots/dicemix/cmd/common"
	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/metrics"
	"github.com/flashbots/dicemix/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		peerCount   = flag.Int("peers", 3, "Number of simulated peers")
		msgCount    = flag.Int("messages", 1, "Messages per peer")
		silent      = flag.Int("silent", 0, "Number of peers that stop after key exchange")
		field       = flag.String("field", "", "Field preset or decimal prime (overrides config)")
		keyExchange = flag.String("key-exchange", "", "secp256k1 or x25519 (overrides config)")
		signingKey  = flag.String("signing-key", "", "Ed25519 signing key of the observed peer (hex, generates if empty)")
		metricsAddr = flag.String("metrics-addr", "", "Serve /metrics and /status on this address")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *field != "" {
		cfg.Field = *field
	}
	if *keyExchange != "" {
		cfg.KeyExchange = *keyExchange
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *peerCount < 2 || *silent >= *peerCount || *msgCount < 1 {
		fmt.Println("Need at least 2 peers, at least one of them not silent, and at least 1 message")
		os.Exit(1)
	}

	log, err := common.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, *peerCount, *msgCount, *silent, *signingKey, *metricsAddr); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Error("mix failed")
		os.Exit(1)
	}
}

func loadConfiguration(path string) (*protocol.Config, error) {
	if path == "" {
		return protocol.DefaultConfig(), nil
	}
	return protocol.LoadConfig(path)
}

type simulatedPeer struct {
	local    protocol.LocalPeer
	remote   protocol.RemotePeer
	messages [][]byte
}

func generatePeers(cfg *protocol.Config, count, msgCount int, observedKey string) ([]simulatedPeer, error) {
	peers := make([]simulatedPeer, count)
	for i := range peers {
		keyHex := ""
		if i == 0 {
			keyHex = observedKey
		}
		sk, err := common.LoadOrGenerateSigningKey(keyHex)
		if err != nil {
			return nil, fmt.Errorf("signing key of peer %d: %w", i, err)
		}
		pk, err := sk.PublicKey()
		if err != nil {
			return nil, err
		}

		id := protocol.PeerID(fmt.Sprintf("peer-%02d", i))
		peers[i] = simulatedPeer{
			local:  protocol.LocalPeer{ID: id, SigningKey: sk},
			remote: protocol.RemotePeer{ID: id, VerificationKey: pk},
		}
		prg := crypto.NewPRG(crypto.Hash("DICEMIX/LOCAL-MESSAGES", sk.Bytes()))
		for j := 0; j < msgCount; j++ {
			peers[i].messages = append(peers[i].messages, prg.Bytes(cfg.MessageSize))
		}
	}
	return peers, nil
}

func run(ctx context.Context, cfg *protocol.Config, log *logrus.Logger, peerCount, msgCount, silent int, observedKey, metricsAddr string) error {
	peers, err := generatePeers(cfg, peerCount, msgCount, observedKey)
	if err != nil {
		return err
	}

	hub := protocol.NewLocalHub()
	silentIDs := make(map[protocol.PeerID]bool)
	for i := peerCount - silent; i < peerCount; i++ {
		silentIDs[peers[i].local.ID] = true
	}
	hub.Intercept(func(from protocol.PeerID, tag protocol.Tag, payload []byte) []byte {
		if silentIDs[from] && tag.Phase != protocol.PhaseKeyExchange {
			return nil
		}
		return payload
	})

	reg := prometheus.NewRegistry()
	engines := make([]*protocol.Engine, peerCount)
	for i, p := range peers {
		var remotes []protocol.RemotePeer
		for j, other := range peers {
			if j != i {
				remotes = append(remotes, other.remote)
			}
		}

		opts := []protocol.Option{protocol.WithLogger(log.WithField("peer", string(p.local.ID)))}
		if i == 0 {
			opts = append(opts, protocol.WithMetrics(metrics.NewCollector(reg)))
		}
		msgs := p.messages
		source := protocol.MessageSourceFunc(func(context.Context) ([][]byte, error) {
			return msgs, nil
		})

		engines[i], err = protocol.NewEngine(cfg, p.local, remotes, hub.Endpoint(p.local.ID), source, opts...)
		if err != nil {
			return fmt.Errorf("peer %s: %w", p.local.ID, err)
		}
	}

	if metricsAddr != "" {
		srv := &http.Server{
			Addr: metricsAddr,
			Handler: common.NewStatusRouter(reg, func() any {
				return map[string]string{"state": engines[0].State().String()}
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server failed")
			}
		}()
		defer srv.Close()
	}

	results := make([]*protocol.Result, peerCount)
	var g errgroup.Group
	for i, e := range engines {
		g.Go(func() error {
			res, err := e.Run(ctx)
			if err != nil && !silentIDs[peers[i].local.ID] {
				return fmt.Errorf("peer %s: %w", peers[i].local.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	res := results[0]
	fmt.Printf("confirmed in run %d by %d peers\n", res.Run, len(res.Peers))
	for id, reason := range res.Excluded {
		fmt.Printf("excluded %s: %s\n", id, reason)
	}
	for _, msg := range res.Messages {
		fmt.Println(hex.EncodeToString(msg))
	}
	return nil
}
