package protocol

import (
	"crypto/rand"
	"testing"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/dcnet"
	"github.com/stretchr/testify/require"
)

func TestSessionIDBindsParameters(t *testing.T) {
	cfg := DefaultConfig()
	ids := []PeerID{"carol", "alice", "bob"}

	sid, err := SessionID(cfg, 0, ids)
	require.NoError(t, err)

	// Membership order does not matter.
	same, err := SessionID(cfg, 0, []PeerID{"alice", "bob", "carol"})
	require.NoError(t, err)
	require.Equal(t, sid, same)

	otherRun, err := SessionID(cfg, 1, ids)
	require.NoError(t, err)
	require.NotEqual(t, sid, otherRun)

	fewer, err := SessionID(cfg, 0, ids[:2])
	require.NoError(t, err)
	require.NotEqual(t, sid, fewer)

	other := DefaultConfig()
	other.Options = "other"
	otherOpts, err := SessionID(other, 0, ids)
	require.NoError(t, err)
	require.NotEqual(t, sid, otherOpts)

	_, err = SessionID(cfg, 0, []PeerID{"alice", "alice"})
	require.ErrorIs(t, err, ErrInput)
}

func TestSlotWitnessesDependOnSecretOnly(t *testing.T) {
	f, err := crypto.FieldByName("p64")
	require.NoError(t, err)
	sid := crypto.Hash("test")

	w1 := slotWitnesses(f, sid, []byte("secret"), 3)
	w2 := slotWitnesses(f, sid, []byte("secret"), 3)
	require.Equal(t, w1, w2)
	require.NotEqual(t, w1[0], w1[1])

	w3 := slotWitnesses(f, sid, []byte("other"), 3)
	require.NotEqual(t, w1[0], w3[0])
}

func TestRunKeysCancel(t *testing.T) {
	f, err := crypto.FieldByName("p127")
	require.NoError(t, err)
	nike := crypto.Secp256k1NIKE{}
	sid := crypto.Hash("test")
	ids := []PeerID{"a", "b", "c"}

	pubs := make(map[PeerID]crypto.KxPublicKey)
	secrets := make(map[PeerID]crypto.KxSecretKey)
	for _, id := range ids {
		pubs[id], secrets[id], err = nike.GenerateKeyPair(rand.Reader)
		require.NoError(t, err)
	}

	var exp []dcnet.FieldVector
	var xor []dcnet.XorVector
	for _, id := range ids {
		others := make(map[PeerID]crypto.KxPublicKey)
		for other, pk := range pubs {
			if other != id {
				others[other] = pk
			}
		}
		keys, err := deriveRunKeys(nike, secrets[id], id, others, sid)
		require.NoError(t, err)
		require.Len(t, keys.expPads, 2)

		exp = append(exp, dcnet.BuildExpVector(f, nil, 4, keys.expPads))
		xor = append(xor, dcnet.NewXorVector(4, 8).XorPads(keys.xorKeys))
	}

	sums, err := dcnet.CombineExp(f, 4, exp...)
	require.NoError(t, err)
	for _, s := range sums {
		require.Zero(t, s.Sign())
	}

	resolved, err := dcnet.CombineXor(4, 8, xor...)
	require.NoError(t, err)
	require.True(t, resolved.IsZero())
}

func TestConfirmationValueIgnoresMessageOrder(t *testing.T) {
	sid := crypto.Hash("test")
	ids := []PeerID{"a", "b"}
	commits := [][]byte{{1}, {2}}

	v1 := confirmationValue(sid, ids, commits, [][]byte{[]byte("x"), []byte("y")})
	v2 := confirmationValue(sid, ids, commits, [][]byte{[]byte("y"), []byte("x")})
	require.Equal(t, v1, v2)

	v3 := confirmationValue(sid, ids, [][]byte{{1}, {3}}, [][]byte{[]byte("x"), []byte("y")})
	require.NotEqual(t, v1, v3)
}
