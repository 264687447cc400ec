package crypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldByName(t *testing.T) {
	for name, p := range map[string]*big.Int{"p61": P61, "P64": P64, "p127": P127, "p521": P521} {
		f, err := FieldByName(name)
		require.NoError(t, err, name)
		require.Zero(t, f.P.Cmp(p), name)
	}

	f, err := FieldByName("101")
	require.NoError(t, err)
	require.Equal(t, 1, f.ByteLen())

	_, err = FieldByName("100")
	require.ErrorIs(t, err, ErrNotPrime)

	_, err = FieldByName("not-a-field")
	require.Error(t, err)
}

func TestFieldPresetSizes(t *testing.T) {
	require.Equal(t, 61, P61.BitLen())
	require.Equal(t, 64, P64.BitLen())
	require.Equal(t, "18446744073709551557", P64.String())
	require.Equal(t, 127, P127.BitLen())
	require.Equal(t, 521, P521.BitLen())
}

func TestFieldArithmetic(t *testing.T) {
	f, err := NewField(big.NewInt(101))
	require.NoError(t, err)

	require.Equal(t, int64(3), f.Add(big.NewInt(100), big.NewInt(4)).Int64())
	require.Equal(t, int64(97), f.Sub(big.NewInt(1), big.NewInt(5)).Int64())
	require.Equal(t, int64(1), f.Mul(big.NewInt(50), big.NewInt(99)).Int64()) // 4950 = 49*101 + 1
	require.Equal(t, int64(0), f.Neg(big.NewInt(0)).Int64())
	require.Equal(t, int64(100), f.Neg(big.NewInt(1)).Int64())
	require.Equal(t, int64(100), f.Reduce(big.NewInt(-1)).Int64())
	require.Equal(t, int64(3), f.Reduce(big.NewInt(205)).Int64())

	inv, err := f.Inv(big.NewInt(7))
	require.NoError(t, err)
	require.Equal(t, int64(1), f.Mul(inv, big.NewInt(7)).Int64())

	_, err = f.Inv(big.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidElement)

	require.Equal(t, 1, f.ConstantTimeEqual(big.NewInt(5), big.NewInt(5)))
	require.Equal(t, 0, f.ConstantTimeEqual(big.NewInt(5), big.NewInt(6)))
}

func TestFieldDecodeRejectsNonCanonical(t *testing.T) {
	f, err := NewField(P61)
	require.NoError(t, err)

	_, err = f.Decode(make([]byte, 7))
	require.ErrorIs(t, err, ErrInvalidElement)

	_, err = f.Decode(f.P.FillBytes(make([]byte, 8)))
	require.ErrorIs(t, err, ErrInvalidElement)

	x, err := f.Decode(new(big.Int).Sub(f.P, big.NewInt(1)).FillBytes(make([]byte, 8)))
	require.NoError(t, err)
	require.True(t, f.Contains(x))
}
