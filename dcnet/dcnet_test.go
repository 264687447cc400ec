package dcnet

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/solver"
	"github.com/stretchr/testify/require"
)

// pairKeys returns the pairwise keys of peer i among n, keyed deterministically.
func pairKeys(i, n int, tweak string) []Pad {
	var pads []Pad
	for j := 0; j < n; j++ {
		if i == j {
			continue
		}
		lo, hi := min(i, j), max(i, j)
		key := crypto.Hash(tweak, []byte{byte(lo)}, []byte{byte(hi)})
		pads = append(pads, Pad{Key: key, Positive: PadPositive([]byte{byte(i)}, []byte{byte(j)})})
	}
	return pads
}

func keysOf(pads []Pad) []crypto.SharedKey {
	keys := make([]crypto.SharedKey, len(pads))
	for i, p := range pads {
		keys[i] = p.Key
	}
	return keys
}

func TestExpVectorPadsCancel(t *testing.T) {
	f, err := crypto.NewField(crypto.P64)
	require.NoError(t, err)
	prg := crypto.NewPRG([]byte("exp"))

	const peers = 4
	var all []*big.Int
	var vectors []FieldVector
	for i := 0; i < peers; i++ {
		witnesses := prg.FieldElements(f, i%2+1)
		all = append(all, witnesses...)
		vectors = append(vectors, witnesses)
	}
	n := len(all)

	padded := make([]FieldVector, peers)
	for i := range padded {
		padded[i] = BuildExpVector(f, vectors[i], n, pairKeys(i, peers, "DCEXP"))
		require.False(t, padded[i].Equal(NewExpVector(f, vectors[i], n)))
	}

	sums, err := CombineExp(f, n, padded...)
	require.NoError(t, err)
	require.True(t, sums.Equal(NewExpVector(f, all, n)))

	roots, err := solver.Roots(f, sums, n)
	require.NoError(t, err)
	for i := range vectors {
		_, ok := Slots(f, vectors[i], roots)
		require.True(t, ok)
	}
}

func TestXorVectorRoundTrip(t *testing.T) {
	const peers, size = 3, 16
	messages := [][]byte{
		bytes.Repeat([]byte{1}, size),
		bytes.Repeat([]byte{2}, size),
		bytes.Repeat([]byte{3}, size),
	}
	slots := []int{2, 0, 1}

	var vectors []XorVector
	for i := 0; i < peers; i++ {
		v, err := BuildXorVector(peers, size, true, slots[i:i+1], messages[i:i+1], keysOf(pairKeys(i, peers, "DC")))
		require.NoError(t, err)
		require.False(t, v.ContainsAt(slots[i], messages[i]))
		vectors = append(vectors, v)
	}

	combined, err := CombineXor(peers, size, vectors...)
	require.NoError(t, err)
	for i := range messages {
		require.Equal(t, messages[i], combined[slots[i]])
		require.True(t, combined.ContainsAt(slots[i], messages[i]))
		require.False(t, combined.ContainsAt((slots[i]+1)%peers, messages[i]))
	}
}

func TestXorVectorFallbackIsPurePadding(t *testing.T) {
	keys := keysOf(pairKeys(0, 3, "DC"))
	v, err := BuildXorVector(3, 8, false, []int{1}, [][]byte{bytes.Repeat([]byte{9}, 8)}, keys)
	require.NoError(t, err)
	require.True(t, v.XorPads(keys).IsZero())
}

func TestXorVectorEncoding(t *testing.T) {
	v := NewXorVector(3, 4)
	require.NoError(t, v.Place(1, []byte{1, 2, 3, 4}))
	require.Error(t, v.Place(3, []byte{1, 2, 3, 4}))
	require.ErrorIs(t, v.Place(0, []byte{1}), ErrVectorLength)

	decoded, err := DecodeXorVector(v.Bytes(), 3, 4)
	require.NoError(t, err)
	require.Equal(t, v, decoded)

	_, err = DecodeXorVector(v.Bytes()[1:], 3, 4)
	require.ErrorIs(t, err, ErrVectorLength)
}

func TestFieldVectorEncoding(t *testing.T) {
	f, err := crypto.NewField(crypto.P61)
	require.NoError(t, err)
	v := FieldVector{big.NewInt(1), big.NewInt(2)}

	decoded, err := DecodeFieldVector(f, 2, v.Encode(f))
	require.NoError(t, err)
	require.True(t, v.Equal(decoded))

	_, err = DecodeFieldVector(f, 3, v.Encode(f))
	require.ErrorIs(t, err, ErrVectorLength)

	_, err = DecodeFieldVector(f, 1, [][]byte{f.P.FillBytes(make([]byte, 8))})
	require.ErrorIs(t, err, crypto.ErrInvalidElement)

	_, err = CombineExp(f, 3, v)
	require.ErrorIs(t, err, ErrVectorLength)
}

func TestSlots(t *testing.T) {
	f, err := crypto.NewField(big.NewInt(101))
	require.NoError(t, err)
	roots := []*big.Int{big.NewInt(4), big.NewInt(8), big.NewInt(15)}

	slots, ok := Slots(f, []*big.Int{big.NewInt(15), big.NewInt(4)}, roots)
	require.True(t, ok)
	require.Equal(t, []int{2, 0}, slots)

	_, ok = Slots(f, []*big.Int{big.NewInt(15), big.NewInt(5)}, roots)
	require.False(t, ok)
}

func TestPadPositive(t *testing.T) {
	require.True(t, PadPositive([]byte("a"), []byte("b")))
	require.False(t, PadPositive([]byte("b"), []byte("a")))
}
