package protocol

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"slices"
	"testing"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/dcnet"
	"github.com/flashbots/dicemix/solver"
	"github.com/stretchr/testify/require"
)

type simPeer struct {
	id     PeerID
	pub    crypto.KxPublicKey
	secret crypto.KxSecretKey
	msgs   [][]byte
	slots  []int
}

type simRun struct {
	env   replayEnv
	t     *transcript
	peers []*simPeer
	roots []*big.Int
}

// simulateRun plays an honest run among count peers and records it.
func simulateRun(t *testing.T, count int, msgsPerPeer int) *simRun {
	t.Helper()
	f, err := crypto.FieldByName("p64")
	require.NoError(t, err)
	env := replayEnv{field: f, nike: crypto.Secp256k1NIKE{}, msgSize: 8}

	var peers []*simPeer
	var ids []PeerID
	for i := 0; i < count; i++ {
		p := &simPeer{id: PeerID(fmt.Sprintf("p%d", i))}
		p.pub, p.secret, err = env.nike.GenerateKeyPair(rand.Reader)
		require.NoError(t, err)
		for j := 0; j < msgsPerPeer; j++ {
			p.msgs = append(p.msgs, []byte(fmt.Sprintf("msg%d-%03d", i, j)))
		}
		peers = append(peers, p)
		ids = append(ids, p.id)
	}

	sid := crypto.Hash("TEST/SID")
	tr := newTranscript(0, sid, ids, count*msgsPerPeer)
	for _, p := range peers {
		tr.kxPubs[p.id] = p.pub
		tr.numMsgs[p.id] = msgsPerPeer
	}

	keys := make(map[PeerID]*runKeys)
	witnesses := make(map[PeerID][]*big.Int)
	var expVectors []dcnet.FieldVector
	for _, p := range peers {
		others := make(map[PeerID]crypto.KxPublicKey)
		for _, o := range peers {
			if o.id != p.id {
				others[o.id] = o.pub
			}
		}
		keys[p.id], err = deriveRunKeys(env.nike, p.secret, p.id, others, sid)
		require.NoError(t, err)
		witnesses[p.id] = slotWitnesses(f, sid, p.secret, msgsPerPeer)

		vec := dcnet.BuildExpVector(f, witnesses[p.id], tr.n, keys[p.id].expPads)
		tr.dcExp[p.id] = &DCExp{Commitment: commitment(sid, p.id, p.msgs)}
		tr.expVectors[p.id] = vec
		expVectors = append(expVectors, vec)
	}
	tr.sums, err = dcnet.CombineExp(f, tr.n, expVectors...)
	require.NoError(t, err)

	roots, err := solver.Roots(f, tr.sums, tr.n)
	require.NoError(t, err)

	var xorVectors []dcnet.XorVector
	for _, p := range peers {
		var ok bool
		p.slots, ok = dcnet.Slots(f, witnesses[p.id], roots)
		require.True(t, ok)
		vec, err := dcnet.BuildXorVector(tr.n, env.msgSize, true, p.slots, p.msgs, keys[p.id].xorKeys)
		require.NoError(t, err)
		tr.dcXor[p.id] = &DCXor{OK: true}
		tr.xorVectors[p.id] = vec
		xorVectors = append(xorVectors, vec)
	}
	tr.resolved, err = dcnet.CombineXor(tr.n, env.msgSize, xorVectors...)
	require.NoError(t, err)

	tr.confirmation = confirmationValue(sid, ids, tr.commitments(), tr.resolved)
	for _, p := range peers {
		tr.confirms[p.id] = &Confirm{OK: true, Value: tr.confirmation}
	}
	return &simRun{env: env, t: tr, peers: peers, roots: roots}
}

func (s *simRun) replay(i int) replayResult {
	p := s.peers[i]
	return replayPeer(s.env, s.t, s.roots, p.id, p.secret)
}

// foreignSlot returns a slot that does not belong to peer i.
func (s *simRun) foreignSlot(i int) int {
	for slot := 0; slot < s.t.n; slot++ {
		if !slices.Contains(s.peers[i].slots, slot) {
			return slot
		}
	}
	panic("no foreign slot")
}

func TestReplayHonestRun(t *testing.T) {
	sim := simulateRun(t, 4, 2)
	for i := range sim.peers {
		res := sim.replay(i)
		require.NoError(t, res.err, "peer %d", i)
		require.Len(t, res.witnesses, 2)
	}
	require.Empty(t, slotCollisions(sim.env.field, map[PeerID][]*big.Int{
		"p0": sim.replay(0).witnesses,
		"p1": sim.replay(1).witnesses,
	}))
}

func TestReplayWrongSecret(t *testing.T) {
	sim := simulateRun(t, 3, 1)
	res := replayPeer(sim.env, sim.t, sim.roots, sim.peers[0].id, sim.peers[1].secret)
	require.ErrorIs(t, res.err, ErrProtocolViolation)

	res = replayPeer(sim.env, sim.t, sim.roots, sim.peers[0].id, crypto.KxSecretKey{1, 2, 3})
	require.ErrorIs(t, res.err, ErrProtocolViolation)
}

func TestReplayDetectsDeviations(t *testing.T) {
	for name, tc := range map[string]struct {
		tamper func(sim *simRun)
		blamed int
	}{
		"slot reservation vector": {
			tamper: func(sim *simRun) {
				v := sim.t.expVectors["p1"]
				v[0] = sim.env.field.Add(v[0], big.NewInt(1))
			},
			blamed: 1,
		},
		"write to foreign slot": {
			tamper: func(sim *simRun) {
				sim.t.xorVectors["p2"][sim.foreignSlot(2)][0] ^= 1
			},
			blamed: 2,
		},
		"false ok flag": {
			tamper: func(sim *simRun) {
				sim.t.dcXor["p0"].OK = false
			},
			blamed: 0,
		},
		"broken commitment": {
			tamper: func(sim *simRun) {
				sim.t.dcExp["p1"].Commitment = crypto.Hash("other")
			},
			blamed: 1,
		},
		"false missing report": {
			tamper: func(sim *simRun) {
				sim.t.confirms["p2"] = &Confirm{OK: false}
			},
			blamed: 2,
		},
		"confirmed other value": {
			tamper: func(sim *simRun) {
				sim.t.confirms["p0"] = &Confirm{OK: true, Value: crypto.Hash("other")}
			},
			blamed: 0,
		},
	} {
		t.Run(name, func(t *testing.T) {
			sim := simulateRun(t, 3, 1)
			tc.tamper(sim)
			for i := range sim.peers {
				res := sim.replay(i)
				if i == tc.blamed {
					require.ErrorIs(t, res.err, ErrProtocolViolation)
				} else {
					require.NoError(t, res.err, "peer %d", i)
				}
			}
		})
	}
}

func TestReplayAcceptsHonestMissingReport(t *testing.T) {
	sim := simulateRun(t, 3, 1)
	victim := sim.peers[1]
	sim.t.resolved[victim.slots[0]][0] ^= 1
	sim.t.confirms[victim.id] = &Confirm{OK: false}

	require.NoError(t, sim.replay(1).err)
}

func TestReplayStopsAtLastPhase(t *testing.T) {
	sim := simulateRun(t, 3, 1)
	sim.t.dcXor = make(map[PeerID]*DCXor)
	sim.t.confirms = make(map[PeerID]*Confirm)
	// A broken message vector is irrelevant once DC-XOR was never completed.
	sim.t.xorVectors["p0"][0][0] ^= 1

	for i := range sim.peers {
		require.NoError(t, sim.replay(i).err)
	}
}

func TestSlotCollisions(t *testing.T) {
	w := func(vs ...int64) []*big.Int {
		res := make([]*big.Int, len(vs))
		for i, v := range vs {
			res[i] = big.NewInt(v)
		}
		return res
	}
	f, err := crypto.FieldByName("p61")
	require.NoError(t, err)

	require.Empty(t, slotCollisions(f, map[PeerID][]*big.Int{"a": w(1, 2), "b": w(3)}))
	require.Equal(t, []PeerID{"a", "c"}, slotCollisions(f, map[PeerID][]*big.Int{"a": w(1, 2), "b": w(3), "c": w(2)}))
	require.Equal(t, []PeerID{"b"}, slotCollisions(f, map[PeerID][]*big.Int{"a": w(1), "b": w(5, 5)}))
}
