package protocol

import (
	"encoding/json"
	"testing"

	"github.com/flashbots/dicemix/crypto"
	"github.com/stretchr/testify/require"
)

func TestSealOpenPayload(t *testing.T) {
	pk, sk, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	hdr := Header{Sender: "alice", Run: 2, Phase: PhaseDCXor, SessionID: []byte{1, 2, 3}}
	raw, err := sealPayload(sk, &DCXor{Header: hdr, OK: true, Vector: []byte{9, 9}})
	require.NoError(t, err)

	msg, err := openPayload[DCXor](raw, pk, hdr)
	require.NoError(t, err)
	require.True(t, msg.OK)
	require.Equal(t, []byte{9, 9}, msg.Vector)

	t.Run("wrong signer", func(t *testing.T) {
		otherPk, _, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		_, err = openPayload[DCXor](raw, otherPk, hdr)
		require.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("replayed into another run", func(t *testing.T) {
		want := hdr
		want.Run = 3
		_, err := openPayload[DCXor](raw, pk, want)
		require.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("other session", func(t *testing.T) {
		want := hdr
		want.SessionID = []byte{1, 2, 4}
		_, err := openPayload[DCXor](raw, pk, want)
		require.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("tampered object", func(t *testing.T) {
		var env Envelope[DCXor]
		require.NoError(t, json.Unmarshal(raw, &env))
		env.Body.OK = false
		tampered, err := json.Marshal(env)
		require.NoError(t, err)
		_, err = openPayload[DCXor](tampered, pk, hdr)
		require.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("signature reused for another key", func(t *testing.T) {
		otherPk, _, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		var env Envelope[DCXor]
		require.NoError(t, json.Unmarshal(raw, &env))
		env.Signer = otherPk
		forged, err := json.Marshal(env)
		require.NoError(t, err)
		_, err = openPayload[DCXor](forged, otherPk, hdr)
		require.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := openPayload[DCXor]([]byte("{"), pk, hdr)
		require.ErrorIs(t, err, ErrProtocolViolation)
	})
}
