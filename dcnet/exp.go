package dcnet

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/solver"
)

// ErrVectorLength is returned when vectors of different lengths are combined or decoded.
var ErrVectorLength = errors.New("dcnet: vector length mismatch")

// FieldVector is an exponential DC-net vector.
type FieldVector []*big.Int

// NewExpVector returns the unpadded vector sum_j w_j^(i+1) for i < n.
func NewExpVector(f *crypto.Field, witnesses []*big.Int, n int) FieldVector {
	return FieldVector(solver.PowerSums(f, witnesses, n))
}

// AddPads applies every pairwise pad in place and returns v.
func (v FieldVector) AddPads(f *crypto.Field, pads []Pad) FieldVector {
	for _, pad := range pads {
		elements := crypto.DeriveFieldPad(pad.Key, f, len(v))
		for i := range v {
			if pad.Positive {
				crypto.FieldAddInplace(v[i], elements[i], f.P)
			} else {
				crypto.FieldSubInplace(v[i], elements[i], f.P)
			}
		}
	}
	return v
}

// BuildExpVector is NewExpVector followed by AddPads.
func BuildExpVector(f *crypto.Field, witnesses []*big.Int, n int, pads []Pad) FieldVector {
	return NewExpVector(f, witnesses, n).AddPads(f, pads)
}

// CombineExp adds vectors element-wise. With every peer's vector present the
// pads cancel and the result is the power sum vector of all witnesses.
func CombineExp(f *crypto.Field, n int, vectors ...FieldVector) (FieldVector, error) {
	res := make(FieldVector, n)
	for i := range res {
		res[i] = new(big.Int)
	}
	for _, v := range vectors {
		if len(v) != n {
			return nil, fmt.Errorf("%w: expected %d elements, got %d", ErrVectorLength, n, len(v))
		}
		for i := range res {
			crypto.FieldAddInplace(res[i], v[i], f.P)
		}
	}
	return res, nil
}

// Encode serializes every element with the field's fixed-length encoding.
func (v FieldVector) Encode(f *crypto.Field) [][]byte {
	res := make([][]byte, len(v))
	for i, x := range v {
		res[i] = f.Encode(x)
	}
	return res
}

// DecodeFieldVector parses exactly n canonical field elements.
func DecodeFieldVector(f *crypto.Field, n int, data [][]byte) (FieldVector, error) {
	if len(data) != n {
		return nil, fmt.Errorf("%w: expected %d elements, got %d", ErrVectorLength, n, len(data))
	}
	res := make(FieldVector, n)
	for i, b := range data {
		x, err := f.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		res[i] = x
	}
	return res, nil
}

// Equal reports whether both vectors hold the same elements.
func (v FieldVector) Equal(other FieldVector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i].Cmp(other[i]) != 0 {
			return false
		}
	}
	return true
}
