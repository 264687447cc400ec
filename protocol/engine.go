package protocol

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/dcnet"
	"github.com/flashbots/dicemix/metrics"
	"github.com/flashbots/dicemix/solver"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of a successful mix.
type Result struct {
	// Messages are the anonymized messages of every member, sorted.
	Messages [][]byte
	// Peers is the final membership including self, sorted.
	Peers []PeerID
	// Run is the run that confirmed.
	Run uint32
	// Confirmation is the value every member confirmed.
	Confirmation []byte
	// Excluded lists every peer removed along the way.
	Excluded map[PeerID]ExclusionReason
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger replaces the logger built from Config.LogLevel.
func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithMetrics reports progress to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = c
	}
}

// WithRandomness sources key exchange key pairs from r instead of crypto/rand.
func WithRandomness(r io.Reader) Option {
	return func(e *Engine) {
		e.rand = r
	}
}

// engineHooks let tests make an engine misbehave.
type engineHooks struct {
	xorVector func(v dcnet.XorVector, slots []int)
	confirm   func(c *Confirm)
}

// Engine runs the mix for one local peer. An Engine is used for a single
// Run; State may be read concurrently.
type Engine struct {
	cfg    *Config
	field  *crypto.Field
	nike   crypto.NIKE
	self   LocalPeer
	peers  []RemotePeer
	bc     Broadcaster
	source MessageSource

	log     *logrus.Entry
	metrics *metrics.Collector
	rand    io.Reader
	hooks   engineHooks

	state   atomic.Int32
	started atomic.Bool
}

// NewEngine validates the configuration and the peer set. peers must not
// contain self.
func NewEngine(cfg *Config, self LocalPeer, peers []RemotePeer, bc Broadcaster, source MessageSource, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	field, err := crypto.FieldByName(cfg.Field)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	nike, err := crypto.NIKEByName(cfg.KeyExchange)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	if bc == nil || source == nil {
		return nil, fmt.Errorf("%w: broadcaster and message source are required", ErrInput)
	}

	if _, err := self.SigningKey.PublicKey(); err != nil {
		return nil, fmt.Errorf("%w: signing key: %w", ErrInput, err)
	}
	ids := []PeerID{self.ID}
	for _, p := range peers {
		if len(p.VerificationKey) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: verification key of %s", ErrInput, p.ID)
		}
		ids = append(ids, p.ID)
	}
	if _, err := sortedIDs(ids); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		field:   field,
		nike:    nike,
		self:    self,
		peers:   slices.Clone(peers),
		bc:      bc,
		source:  source,
		metrics: metrics.NewCollector(nil),
		rand:    rand.Reader,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = newLogger(cfg.LogLevel).WithField("peer", string(self.ID))
	}
	return e, nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// State returns the state the engine is currently in.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(st *runState, s State, log *logrus.Entry) {
	st.state = s
	e.state.Store(int32(s))
	log.WithField("state", s).Debug("entering state")
}

// Run drives runs until one confirms, the peer set empties, the run limit
// is hit or ctx is done.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.started.Swap(true) {
		return nil, fmt.Errorf("%w: engine already ran", ErrInput)
	}

	res, err := e.run(ctx)
	if err != nil {
		e.state.Store(int32(StateFatal))
		e.log.WithError(err).Error("mix failed")
		return nil, err
	}
	e.state.Store(int32(StateSuccess))
	e.metrics.Succeeded()
	e.log.WithFields(logrus.Fields{
		"run":      res.Run,
		"peers":    len(res.Peers),
		"messages": len(res.Messages),
	}).Info("mix confirmed")
	return res, nil
}

func (e *Engine) run(ctx context.Context) (*Result, error) {
	st := newRunState(e.peers)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.cfg.MaxRuns > 0 && int(st.run) >= e.cfg.MaxRuns {
			return nil, ErrMaxRuns
		}
		e.metrics.RunStarted()
		log := e.log.WithField("run", st.run)

		var err error
		switch {
		case st.run == 0:
			err = e.keyExchange(ctx, st, log)
		case len(st.exclude) > 0:
			e.removeExcluded(st, log)
			st.rotateKeys()
		default:
			err = e.revealAndBlame(ctx, st, log)
		}
		if err != nil {
			return nil, err
		}
		if len(st.peers) == 0 {
			return nil, ErrNoPeersLeft
		}

		res, err := e.execute(ctx, st, log)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}

		path := metrics.RestartBlame
		if len(st.exclude) > 0 {
			path = metrics.RestartCheap
		}
		e.metrics.Restarted(path)
		log.WithField("path", path).Warn("run failed, restarting")
		st.run++
	}
}

func (e *Engine) removeExcluded(st *runState, log *logrus.Entry) {
	for id, reason := range st.removeExcluded() {
		e.metrics.Excluded(string(reason))
		log.WithFields(logrus.Fields{"excluded": id, "reason": reason}).Info("peer removed")
	}
}

func (e *Engine) header(st *runState, phase Phase, sid []byte) Header {
	return Header{Sender: e.self.ID, Run: st.run, Phase: phase, SessionID: sid}
}

// exchange broadcasts payload and collects the active peers' payloads for
// the same phase. Silent peers are marked for exclusion.
func (e *Engine) exchange(ctx context.Context, st *runState, phase Phase, payload []byte) (map[PeerID][]byte, error) {
	tag := Tag{Run: st.run, Phase: phase}
	if err := e.bc.Broadcast(ctx, tag, payload); err != nil {
		return nil, fmt.Errorf("broadcasting %s: %w", phase, err)
	}
	received, missing, err := e.bc.ReceiveAll(ctx, tag, st.peerIDs(), time.Now().Add(e.cfg.RoundTimeout))
	if err != nil {
		return nil, fmt.Errorf("receiving %s: %w", phase, err)
	}
	for _, id := range missing {
		st.markExcluded(id, ExclusionMissing)
	}
	return received, nil
}

// openAll authenticates the received payloads of the active peers. Payloads
// that fail to open or validate get their sender marked for exclusion.
func openAll[T any, PT interface {
	*T
	header() *Header
}](st *runState, received map[PeerID][]byte, want Header, validate func(id PeerID, msg *T) error, log *logrus.Entry) map[PeerID]*T {
	res := make(map[PeerID]*T, len(received))
	for id, p := range st.peers {
		raw, ok := received[id]
		if !ok {
			continue
		}
		h := want
		h.Sender = id
		msg, err := openPayload[T, PT](raw, p.VerificationKey, h)
		if err == nil && validate != nil {
			err = validate(id, msg)
		}
		if err != nil {
			log.WithError(err).WithField("sender", id).Info("dropping invalid payload")
			st.markExcluded(id, ExclusionInvalid)
			continue
		}
		res[id] = msg
	}
	return res
}

// freshMessages asks the source for this run's messages and checks them.
func (e *Engine) freshMessages(ctx context.Context, st *runState) ([][]byte, error) {
	msgs, err := e.source.FreshMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	if len(msgs) == 0 || len(msgs) > e.cfg.MaxMessagesPerPeer {
		return nil, fmt.Errorf("%w: got %d messages, want 1 to %d", ErrInput, len(msgs), e.cfg.MaxMessagesPerPeer)
	}
	if st.numMsgs != 0 && len(msgs) != st.numMsgs {
		return nil, fmt.Errorf("%w: got %d messages, declared %d", ErrInput, len(msgs), st.numMsgs)
	}

	res := make([][]byte, len(msgs))
	for i, msg := range msgs {
		if len(msg) != e.cfg.MessageSize {
			return nil, fmt.Errorf("%w: message %d has %d bytes, want %d", ErrInput, i, len(msg), e.cfg.MessageSize)
		}
		res[i] = bytes.Clone(msg)
	}
	return res, nil
}

// keyExchange opens run 0: every peer announces its first key exchange
// public key and its message count.
func (e *Engine) keyExchange(ctx context.Context, st *runState, log *logrus.Entry) error {
	e.setState(st, StateKeyExchange, log)

	msgs, err := e.freshMessages(ctx, st)
	if err != nil {
		return err
	}
	st.messages = msgs
	st.numMsgs = len(msgs)

	st.kxPub, st.kxSecret, err = e.nike.GenerateKeyPair(e.rand)
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	hdr := e.header(st, PhaseKeyExchange, nil)
	payload, err := sealPayload(e.self.SigningKey, &KeyExchange{Header: hdr, KxPublicKey: st.kxPub, NumMsgs: st.numMsgs})
	if err != nil {
		return err
	}
	received, err := e.exchange(ctx, st, PhaseKeyExchange, payload)
	if err != nil {
		return err
	}

	kes := openAll[KeyExchange](st, received, hdr, func(_ PeerID, m *KeyExchange) error {
		if m.NumMsgs < 1 || m.NumMsgs > e.cfg.MaxMessagesPerPeer {
			return fmt.Errorf("%w: declared %d messages", ErrProtocolViolation, m.NumMsgs)
		}
		return e.nike.ValidatePublicKey(m.KxPublicKey)
	}, log)
	for id, m := range kes {
		p := st.peers[id]
		p.kxPub = m.KxPublicKey
		p.numMsgs = m.NumMsgs
	}

	e.removeExcluded(st, log)
	return nil
}

// execute runs the slot reservation, message exchange and confirmation of
// one run. It returns a nil result when the run has to be restarted; the
// pending exclusions then tell which restart path applies.
func (e *Engine) execute(ctx context.Context, st *runState, log *logrus.Entry) (*Result, error) {
	ids := st.memberIDs(e.self.ID)
	sid, err := SessionID(e.cfg, st.run, ids)
	if err != nil {
		return nil, err
	}
	log = log.WithField("sid", hex.EncodeToString(sid[:4]))

	messages := st.messages
	st.messages = nil
	if messages == nil {
		if messages, err = e.freshMessages(ctx, st); err != nil {
			return nil, err
		}
	}
	n := st.totalMsgs()

	keys, err := deriveRunKeys(e.nike, st.kxSecret, e.self.ID, st.kxPubs(), sid)
	if err != nil {
		return nil, err
	}
	witnesses := slotWitnesses(e.field, sid, st.kxSecret, st.numMsgs)

	st.nextKxPub, st.nextKxSecret, err = e.nike.GenerateKeyPair(e.rand)
	if err != nil {
		return nil, fmt.Errorf("generating next key pair: %w", err)
	}

	t := newTranscript(st.run, sid, ids, n)
	t.kxPubs[e.self.ID] = st.kxPub
	t.numMsgs[e.self.ID] = st.numMsgs
	for id, p := range st.peers {
		t.kxPubs[id] = p.kxPub
		t.numMsgs[id] = p.numMsgs
	}
	st.prev = t

	e.setState(st, StateSlotReservation, log)

	expVector := dcnet.BuildExpVector(e.field, witnesses, n, keys.expPads)
	expHdr := e.header(st, PhaseDCExp, sid)
	ownExp := &DCExp{
		Header:          expHdr,
		Commitment:      commitment(sid, e.self.ID, messages),
		Vector:          expVector.Encode(e.field),
		NextKxPublicKey: st.nextKxPub,
	}
	t.dcExp[e.self.ID] = ownExp
	t.expVectors[e.self.ID] = expVector

	payload, err := sealPayload(e.self.SigningKey, ownExp)
	if err != nil {
		return nil, err
	}
	received, err := e.exchange(ctx, st, PhaseDCExp, payload)
	if err != nil {
		return nil, err
	}
	dcExps := openAll[DCExp](st, received, expHdr, func(id PeerID, m *DCExp) error {
		if len(m.Commitment) != crypto.HashSize {
			return fmt.Errorf("%w: commitment of %d bytes", ErrProtocolViolation, len(m.Commitment))
		}
		if err := e.nike.ValidatePublicKey(m.NextKxPublicKey); err != nil {
			return err
		}
		vec, err := dcnet.DecodeFieldVector(e.field, n, m.Vector)
		if err != nil {
			return err
		}
		t.expVectors[id] = vec
		return nil
	}, log)
	for id, m := range dcExps {
		t.dcExp[id] = m
		st.peers[id].nextKxPub = m.NextKxPublicKey
	}
	if len(st.exclude) > 0 {
		return nil, nil
	}

	expVectors := make([]dcnet.FieldVector, 0, len(ids))
	for _, id := range ids {
		expVectors = append(expVectors, t.expVectors[id])
	}
	if t.sums, err = dcnet.CombineExp(e.field, n, expVectors...); err != nil {
		return nil, err
	}

	start := time.Now()
	roots, err := solver.Solve(e.field, witnesses[0], t.sums, n)
	e.metrics.ObserveSolve(time.Since(start))

	var slots []int
	ok := false
	switch {
	case err == nil:
		slots, ok = dcnet.Slots(e.field, witnesses, roots)
	case errors.Is(err, solver.ErrCandidateMissing):
	case errors.Is(err, solver.ErrInvalid):
		log.WithError(err).Warn("slot reservation failed")
		return nil, nil
	default:
		return nil, fmt.Errorf("solving slot reservation: %w", err)
	}
	if !ok {
		log.Warn("own slot witness not among roots")
	}

	e.setState(st, StateMessageExchange, log)

	xorVector, err := dcnet.BuildXorVector(n, e.cfg.MessageSize, ok, slots, messages, keys.xorKeys)
	if err != nil {
		return nil, err
	}
	if e.hooks.xorVector != nil {
		e.hooks.xorVector(xorVector, slots)
	}
	xorHdr := e.header(st, PhaseDCXor, sid)
	ownXor := &DCXor{Header: xorHdr, OK: ok, Vector: xorVector.Bytes()}
	t.dcXor[e.self.ID] = ownXor
	t.xorVectors[e.self.ID] = xorVector

	if payload, err = sealPayload(e.self.SigningKey, ownXor); err != nil {
		return nil, err
	}
	if received, err = e.exchange(ctx, st, PhaseDCXor, payload); err != nil {
		return nil, err
	}
	dcXors := openAll[DCXor](st, received, xorHdr, func(id PeerID, m *DCXor) error {
		vec, err := dcnet.DecodeXorVector(m.Vector, n, e.cfg.MessageSize)
		if err != nil {
			return err
		}
		t.xorVectors[id] = vec
		return nil
	}, log)
	allOK := ok
	for id, m := range dcXors {
		t.dcXor[id] = m
		allOK = allOK && m.OK
	}
	if len(st.exclude) > 0 {
		return nil, nil
	}
	if !allOK {
		log.Warn("a peer did not find its slots")
		return nil, nil
	}

	xorVectors := make([]dcnet.XorVector, 0, len(ids))
	for _, id := range ids {
		xorVectors = append(xorVectors, t.xorVectors[id])
	}
	if t.resolved, err = dcnet.CombineXor(n, e.cfg.MessageSize, xorVectors...); err != nil {
		return nil, err
	}

	e.setState(st, StateConfirm, log)

	delivered := true
	for j, slot := range slots {
		delivered = t.resolved.ContainsAt(slot, messages[j]) && delivered
	}
	t.confirmation = confirmationValue(sid, ids, t.commitments(), t.resolved)

	confirmHdr := e.header(st, PhaseConfirm, sid)
	ownConfirm := &Confirm{Header: confirmHdr, OK: delivered}
	if delivered {
		ownConfirm.Value = t.confirmation
	} else {
		log.Warn("own message missing from the resolved vector")
	}
	if e.hooks.confirm != nil {
		e.hooks.confirm(ownConfirm)
	}
	t.confirms[e.self.ID] = ownConfirm

	if payload, err = sealPayload(e.self.SigningKey, ownConfirm); err != nil {
		return nil, err
	}
	if received, err = e.exchange(ctx, st, PhaseConfirm, payload); err != nil {
		return nil, err
	}
	confirms := openAll[Confirm](st, received, confirmHdr, nil, log)
	allOK = delivered
	for id, m := range confirms {
		t.confirms[id] = m
		allOK = allOK && m.OK
	}
	if len(st.exclude) > 0 || !allOK {
		return nil, nil
	}
	for id, m := range confirms {
		if !bytes.Equal(m.Value, t.confirmation) {
			st.markExcluded(id, ExclusionConfirmationMismatch)
		}
	}
	if len(st.exclude) > 0 {
		return nil, nil
	}

	result := &Result{
		Messages:     make([][]byte, len(t.resolved)),
		Peers:        ids,
		Run:          st.run,
		Confirmation: bytes.Clone(t.confirmation),
		Excluded:     maps.Clone(st.excluded),
	}
	for i, msg := range t.resolved {
		result.Messages[i] = bytes.Clone(msg)
	}
	slices.SortFunc(result.Messages, bytes.Compare)
	return result, nil
}
