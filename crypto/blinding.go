package crypto

import (
	"math/big"
)

// DeriveFieldPad expands a pairwise key into n field elements. Both ends of
// the pair derive the same pad; one adds it and the other subtracts it.
func DeriveFieldPad(key SharedKey, f *Field, n int) []*big.Int {
	return NewPRG(key).FieldElements(f, n)
}

// DeriveXorPad expands a pairwise key into nBytes of XOR padding.
func DeriveXorPad(key SharedKey, nBytes int) []byte {
	if nBytes == 0 {
		return []byte{}
	}
	return NewPRG(key).Bytes(nBytes)
}

// XorInplace sets l = l XOR r over the common prefix and returns l.
func XorInplace(l []byte, r []byte) []byte {
	n := min(len(l), len(r))
	for i := 0; i < n; i++ {
		l[i] ^= r[i]
	}
	return l
}
