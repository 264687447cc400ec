package testutil

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/protocol"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/sync/errgroup"
)

// =====================================
// Configuration Generators
// =====================================

// TestConfigOption is a function that modifies a protocol.Config
type TestConfigOption func(*protocol.Config)

// WithField sets the field preset or decimal prime
func WithField(field string) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.Field = field
	}
}

// WithMessageSize sets the message size in bytes
func WithMessageSize(size int) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.MessageSize = size
	}
}

// WithRoundTimeout sets the per-phase timeout
func WithRoundTimeout(timeout time.Duration) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.RoundTimeout = timeout
	}
}

// WithKeyExchange selects the NIKE by name
func WithKeyExchange(name string) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.KeyExchange = name
	}
}

// WithMaxRuns caps the number of runs
func WithMaxRuns(runs int) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.MaxRuns = runs
	}
}

// NewTestConfig creates a configuration small enough for fast tests that
// can be customized using options
func NewTestConfig(options ...TestConfigOption) *protocol.Config {
	cfg := protocol.DefaultConfig()
	cfg.Field = "p64"
	cfg.MessageSize = 16
	cfg.RoundTimeout = 2 * time.Second
	cfg.MaxRuns = 8
	cfg.LogLevel = "warn"

	for _, option := range options {
		option(cfg)
	}

	return cfg
}

// =====================================
// Crypto Generators
// =====================================

// GenerateRandomBytes generates a slice of random bytes with the specified length
func GenerateRandomBytes(length int) ([]byte, error) {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// GenerateTestKeyPair generates a long-term signing key pair
func GenerateTestKeyPair() (crypto.PublicKey, crypto.PrivateKey, error) {
	return crypto.GenerateKeyPair()
}

// TestPeer is a generated identity in both its local and remote form
type TestPeer struct {
	Local  protocol.LocalPeer
	Remote protocol.RemotePeer
}

// GenerateTestPeers generates count identities named peer-00, peer-01, ...
func GenerateTestPeers(count int) ([]TestPeer, error) {
	peers := make([]TestPeer, count)
	for i := range peers {
		pk, sk, err := GenerateTestKeyPair()
		if err != nil {
			return nil, err
		}
		id := protocol.PeerID(fmt.Sprintf("peer-%02d", i))
		peers[i] = TestPeer{
			Local:  protocol.LocalPeer{ID: id, SigningKey: sk},
			Remote: protocol.RemotePeer{ID: id, VerificationKey: pk},
		}
	}
	return peers, nil
}

// RemotesExcept returns the remote form of every peer but peers[skip]
func RemotesExcept(peers []TestPeer, skip int) []protocol.RemotePeer {
	res := make([]protocol.RemotePeer, 0, len(peers)-1)
	for i, p := range peers {
		if i != skip {
			res = append(res, p.Remote)
		}
	}
	return res
}

// =====================================
// Message Generators
// =====================================

// GenerateTestMessages generates count random messages of size bytes
func GenerateTestMessages(count int, size int) ([][]byte, error) {
	msgs := make([][]byte, count)
	for i := range msgs {
		msg, err := GenerateRandomBytes(size)
		if err != nil {
			return nil, err
		}
		msgs[i] = msg
	}
	return msgs, nil
}

// StaticMessages returns a source that hands out copies of msgs every run
func StaticMessages(msgs [][]byte) protocol.MessageSource {
	return protocol.MessageSourceFunc(func(context.Context) ([][]byte, error) {
		res := make([][]byte, len(msgs))
		for i, msg := range msgs {
			res[i] = append([]byte(nil), msg...)
		}
		return res, nil
	})
}

// NewTestLogEntry returns a discarding logger entry and the hook recording
// everything logged through it
func NewTestLogEntry(id protocol.PeerID) (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("peer", string(id)), hook
}

// =====================================
// Mix Harness
// =====================================

// TestMix wires a set of generated peers to one in-process hub
type TestMix struct {
	Config   *protocol.Config
	Hub      *protocol.LocalHub
	Peers    []TestPeer
	Messages [][][]byte
}

// NewTestMix generates peerCount peers with msgsPerPeer random messages each
func NewTestMix(cfg *protocol.Config, peerCount int, msgsPerPeer int) (*TestMix, error) {
	peers, err := GenerateTestPeers(peerCount)
	if err != nil {
		return nil, err
	}
	mix := &TestMix{
		Config:   cfg,
		Hub:      protocol.NewLocalHub(),
		Peers:    peers,
		Messages: make([][][]byte, peerCount),
	}
	for i := range peers {
		if mix.Messages[i], err = GenerateTestMessages(msgsPerPeer, cfg.MessageSize); err != nil {
			return nil, err
		}
	}
	return mix, nil
}

// ID returns the id of peer i
func (m *TestMix) ID(i int) protocol.PeerID {
	return m.Peers[i].Local.ID
}

// Engine builds the engine of peer i
func (m *TestMix) Engine(i int, opts ...protocol.Option) (*protocol.Engine, error) {
	return protocol.NewEngine(
		m.Config,
		m.Peers[i].Local,
		RemotesExcept(m.Peers, i),
		m.Hub.Endpoint(m.ID(i)),
		StaticMessages(m.Messages[i]),
		opts...,
	)
}

// RunOutcome is what one engine's Run returned
type RunOutcome struct {
	Result *protocol.Result
	Err    error
}

// RunAll runs every engine concurrently and waits for all of them
func RunAll(ctx context.Context, engines []*protocol.Engine) []RunOutcome {
	outcomes := make([]RunOutcome, len(engines))
	var g errgroup.Group
	for i, e := range engines {
		g.Go(func() error {
			res, err := e.Run(ctx)
			outcomes[i] = RunOutcome{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// AllMessages returns every generated message of the given peers
func (m *TestMix) AllMessages(peers ...int) [][]byte {
	var res [][]byte
	for _, i := range peers {
		res = append(res, m.Messages[i]...)
	}
	return res
}
