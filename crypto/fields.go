package crypto

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrNotPrime is returned when a field modulus fails the primality test.
	ErrNotPrime = errors.New("field modulus is not prime")

	// ErrInvalidElement is returned when decoding bytes that are not a canonical field element.
	ErrInvalidElement = errors.New("invalid field element")
)

// Preset prime moduli. The Mersenne primes allow cheap reduction in other
// implementations; here they are only convenient, well known choices.
var (
	// P61 is the Mersenne prime 2^61 - 1.
	P61 *big.Int
	// P64 is the largest prime below 2^64, 2^64 - 59.
	P64 *big.Int
	// P127 is the Mersenne prime 2^127 - 1.
	P127 *big.Int
	// P521 is the Mersenne prime 2^521 - 1.
	P521 *big.Int
)

func init() {
	one := big.NewInt(1)
	P61 = new(big.Int).Sub(new(big.Int).Lsh(one, 61), one)
	P64 = new(big.Int).Sub(new(big.Int).Lsh(one, 64), big.NewInt(59))
	P127 = new(big.Int).Sub(new(big.Int).Lsh(one, 127), one)
	P521 = new(big.Int).Sub(new(big.Int).Lsh(one, 521), one)
}

// Field is the prime field GF(p). Elements are *big.Int values in [0, p)
// and are serialized as fixed-length big-endian byte strings.
type Field struct {
	P       *big.Int
	byteLen int
}

// NewField validates p and returns the field it defines.
func NewField(p *big.Int) (*Field, error) {
	if p == nil || p.Cmp(big.NewInt(2)) < 0 || !p.ProbablyPrime(20) {
		return nil, ErrNotPrime
	}
	return &Field{
		P:       new(big.Int).Set(p),
		byteLen: (p.BitLen() + 7) / 8,
	}, nil
}

// FieldByName resolves a preset name (p61, p64, p127, p521) or a decimal prime.
func FieldByName(name string) (*Field, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "p61":
		return NewField(P61)
	case "p64":
		return NewField(P64)
	case "p127":
		return NewField(P127)
	case "p521":
		return NewField(P521)
	}

	p, ok := new(big.Int).SetString(name, 10)
	if !ok {
		return nil, fmt.Errorf("unknown field %q", name)
	}
	return NewField(p)
}

// ByteLen is the length of the canonical element encoding.
func (f *Field) ByteLen() int {
	return f.byteLen
}

// Contains reports whether x is a canonical element of the field.
func (f *Field) Contains(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(f.P) < 0
}

// Reduce returns x mod p as a new element.
func (f *Field) Reduce(x *big.Int) *big.Int {
	return new(big.Int).Mod(x, f.P)
}

// Add returns a + b for reduced a and b.
func (f *Field) Add(a, b *big.Int) *big.Int {
	return FieldAddInplace(new(big.Int).Set(a), b, f.P)
}

// Sub returns a - b for reduced a and b.
func (f *Field) Sub(a, b *big.Int) *big.Int {
	return FieldSubInplace(new(big.Int).Set(a), b, f.P)
}

// Mul returns a * b mod p. The operands need not be reduced.
func (f *Field) Mul(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Mod(r, f.P)
}

// Neg returns -a for reduced a.
func (f *Field) Neg(a *big.Int) *big.Int {
	if a.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(f.P, a)
}

// Inv returns the multiplicative inverse of a.
func (f *Field) Inv(a *big.Int) (*big.Int, error) {
	r := new(big.Int).ModInverse(a, f.P)
	if r == nil {
		return nil, fmt.Errorf("%w: %s has no inverse", ErrInvalidElement, a)
	}
	return r, nil
}

// Encode serializes x as a big-endian byte string of ByteLen bytes.
func (f *Field) Encode(x *big.Int) []byte {
	return x.FillBytes(make([]byte, f.byteLen))
}

// Decode parses a canonical element, rejecting wrong lengths and values >= p.
func (f *Field) Decode(b []byte) (*big.Int, error) {
	if len(b) != f.byteLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidElement, f.byteLen, len(b))
	}
	x := new(big.Int).SetBytes(b)
	if x.Cmp(f.P) >= 0 {
		return nil, fmt.Errorf("%w: value not below modulus", ErrInvalidElement)
	}
	return x, nil
}

// ConstantTimeEqual returns 1 if the reduced elements a and b are equal and
// 0 otherwise. It compares the fixed-length encodings in constant time.
func (f *Field) ConstantTimeEqual(a, b *big.Int) int {
	return subtle.ConstantTimeCompare(f.Encode(a), f.Encode(b))
}

// FieldAddInplace performs modular addition in-place: l = (l + r) mod fieldOrder.
// Both operands must already be reduced. The result is stored in l and also returned.
func FieldAddInplace(l *big.Int, r *big.Int, fieldOrder *big.Int) *big.Int {
	l.Add(l, r)
	if l.Cmp(fieldOrder) >= 0 {
		l.Sub(l, fieldOrder)
	}
	if l.Sign() < 0 {
		l.Add(l, fieldOrder)
	}
	return l
}

// FieldSubInplace performs modular subtraction in-place: l = (l - r) mod fieldOrder.
// Both operands must already be reduced. The result is stored in l and also returned.
func FieldSubInplace(l *big.Int, r *big.Int, fieldOrder *big.Int) *big.Int {
	l.Sub(l, r)
	if l.Cmp(fieldOrder) >= 0 {
		l.Sub(l, fieldOrder)
	}
	if l.Sign() < 0 {
		l.Add(l, fieldOrder)
	}
	return l
}
