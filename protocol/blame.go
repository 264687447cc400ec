package protocol

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"runtime"
	"slices"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/dcnet"
	"github.com/flashbots/dicemix/solver"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// replayEnv is the read-only context of a replay.
type replayEnv struct {
	field   *crypto.Field
	nike    crypto.NIKE
	msgSize int
}

// replayResult is the verdict on one peer. err is nil when every broadcast
// of the peer is reproduced by its revealed secret.
type replayResult struct {
	id        PeerID
	err       error
	witnesses []*big.Int
}

func replayMismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}

// replayPeer recomputes everything peer id sent in run t from its revealed
// secret and compares it with what was received. It only reads t.
func replayPeer(env replayEnv, t *transcript, roots []*big.Int, id PeerID, secret crypto.KxSecretKey) replayResult {
	res := replayResult{id: id}

	pk, err := env.nike.PublicKey(secret)
	if err != nil {
		res.err = replayMismatch("revealed secret: %v", err)
		return res
	}
	if !bytes.Equal(pk, t.kxPubs[id]) {
		res.err = replayMismatch("revealed secret does not match announced key")
		return res
	}

	res.witnesses = slotWitnesses(env.field, t.sid, secret, t.numMsgs[id])

	others := make(map[PeerID]crypto.KxPublicKey, len(t.kxPubs)-1)
	for other, otherPk := range t.kxPubs {
		if other != id {
			others[other] = otherPk
		}
	}
	keys, err := deriveRunKeys(env.nike, secret, id, others, t.sid)
	if err != nil {
		res.err = replayMismatch("%v", err)
		return res
	}

	dcExp, ok := t.dcExp[id]
	if !ok {
		return res
	}
	expected := dcnet.BuildExpVector(env.field, res.witnesses, t.n, keys.expPads)
	if !expected.Equal(t.expVectors[id]) {
		res.err = replayMismatch("slot reservation vector does not replay")
		return res
	}

	dcXor, ok := t.dcXor[id]
	if !ok {
		return res
	}
	slots, found := dcnet.Slots(env.field, res.witnesses, roots)
	if dcXor.OK != found {
		res.err = replayMismatch("reported ok=%v, slots found=%v", dcXor.OK, found)
		return res
	}

	contribution := t.xorVectors[id].Clone().XorPads(keys.xorKeys)
	if !found {
		if !contribution.IsZero() {
			res.err = replayMismatch("fallback message vector is not pure padding")
		}
		return res
	}

	messages := make([][]byte, len(slots))
	for j, slot := range slots {
		messages[j] = bytes.Clone(contribution[slot])
	}
	placed, err := dcnet.BuildXorVector(t.n, env.msgSize, true, slots, messages, nil)
	if err != nil {
		res.err = replayMismatch("%v", err)
		return res
	}
	for i := range placed {
		if !bytes.Equal(placed[i], contribution[i]) {
			res.err = replayMismatch("message vector writes to slot %d", i)
			return res
		}
	}
	if !bytes.Equal(commitment(t.sid, id, messages), dcExp.Commitment) {
		res.err = replayMismatch("messages do not match commitment")
		return res
	}

	confirm, ok := t.confirms[id]
	if !ok {
		return res
	}
	if confirm.OK {
		if !bytes.Equal(confirm.Value, t.confirmation) {
			res.err = replayMismatch("confirmed a different transcript")
		}
		return res
	}
	delivered := t.resolved != nil
	for j, slot := range slots {
		delivered = delivered && bytes.Equal(t.resolved[slot], messages[j])
	}
	if delivered {
		res.err = replayMismatch("reported delivered messages as missing")
	}
	return res
}

// slotCollisions returns every peer that shares a witness with another peer
// or repeats one of its own.
func slotCollisions(f *crypto.Field, witnesses map[PeerID][]*big.Int) []PeerID {
	owners := make(map[string][]PeerID)
	for id, ws := range witnesses {
		for _, w := range ws {
			key := string(f.Encode(w))
			owners[key] = append(owners[key], id)
		}
	}

	var colliding []PeerID
	for _, ids := range owners {
		if len(ids) > 1 {
			colliding = append(colliding, ids...)
		}
	}
	slices.Sort(colliding)
	return slices.Compact(colliding)
}

// revealAndBlame opens a run after an inconclusive failure: every peer
// reveals the previous run's secret, every revealed secret is replayed, and
// peers that deviated or collided are excluded before keys rotate.
func (e *Engine) revealAndBlame(ctx context.Context, st *runState, log *logrus.Entry) error {
	e.setState(st, StateKeyRevealAndBlame, log)
	prev := st.prev

	hdr := e.header(st, PhaseReveal, nil)
	payload, err := sealPayload(e.self.SigningKey, &Reveal{Header: hdr, KxSecretKey: st.kxSecret})
	if err != nil {
		return err
	}
	received, err := e.exchange(ctx, st, PhaseReveal, payload)
	if err != nil {
		return err
	}
	e.metrics.KeyRevealed()
	reveals := openAll[Reveal](st, received, hdr, nil, log)

	env := replayEnv{field: e.field, nike: e.nike, msgSize: e.cfg.MessageSize}
	roots := prev.witnessRoots(func(sums []*big.Int, n int) ([]*big.Int, error) {
		return solver.Roots(e.field, sums, n)
	})

	ids := make([]PeerID, 0, len(reveals))
	for id := range reveals {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	results := make([]replayResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = replayPeer(env, prev, roots, id, reveals[id].KxSecretKey)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	witnesses := map[PeerID][]*big.Int{
		e.self.ID: slotWitnesses(e.field, prev.sid, st.kxSecret, st.numMsgs),
	}
	for _, r := range results {
		if r.err != nil {
			log.WithError(r.err).WithField("blamed", r.id).Info("replay mismatch")
			st.markExcluded(r.id, ExclusionReplayMismatch)
			continue
		}
		witnesses[r.id] = r.witnesses
	}
	for _, id := range slotCollisions(e.field, witnesses) {
		if id != e.self.ID {
			log.WithField("blamed", id).Info("slot collision")
			st.markExcluded(id, ExclusionSlotCollision)
		}
	}

	e.removeExcluded(st, log)
	st.rotateKeys()
	return nil
}
