package dcnet

import (
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/solver"
)

// XorVector is a message DC-net vector of n slots of equal size.
type XorVector [][]byte

// NewXorVector returns n zeroed slots of size bytes.
func NewXorVector(n int, size int) XorVector {
	v := make(XorVector, n)
	for i := range v {
		v[i] = make([]byte, size)
	}
	return v
}

// Place copies msg into slot. Every slot is touched so the memory access
// pattern does not reveal the slot.
func (v XorVector) Place(slot int, msg []byte) error {
	if slot < 0 || slot >= len(v) {
		return fmt.Errorf("dcnet: slot %d out of range", slot)
	}
	for i := range v {
		if len(v[i]) != len(msg) {
			return fmt.Errorf("%w: slot size %d, message size %d", ErrVectorLength, len(v[i]), len(msg))
		}
		subtle.ConstantTimeCopy(subtle.ConstantTimeEq(int32(i), int32(slot)), v[i], msg)
	}
	return nil
}

// XorPads applies every pairwise keystream in place and returns v. Applying
// the same keys again removes them.
func (v XorVector) XorPads(keys []crypto.SharedKey) XorVector {
	if len(v) == 0 {
		return v
	}
	size := len(v[0])
	for _, key := range keys {
		stream := crypto.DeriveXorPad(key, len(v)*size)
		for i := range v {
			crypto.XorInplace(v[i], stream[i*size:(i+1)*size])
		}
	}
	return v
}

// CombineXor XORs vectors slot-wise.
func CombineXor(n int, size int, vectors ...XorVector) (XorVector, error) {
	res := NewXorVector(n, size)
	for _, v := range vectors {
		if len(v) != n {
			return nil, fmt.Errorf("%w: expected %d slots, got %d", ErrVectorLength, n, len(v))
		}
		for i := range res {
			if len(v[i]) != size {
				return nil, fmt.Errorf("%w: slot %d has %d bytes, want %d", ErrVectorLength, i, len(v[i]), size)
			}
			crypto.XorInplace(res[i], v[i])
		}
	}
	return res, nil
}

// ContainsAt reports whether slot holds msg without revealing the slot
// through timing.
func (v XorVector) ContainsAt(slot int, msg []byte) bool {
	found := 0
	for i := range v {
		eq := subtle.ConstantTimeCompare(v[i], msg)
		found |= eq & subtle.ConstantTimeEq(int32(i), int32(slot))
	}
	return found == 1
}

// IsZero reports whether every slot is all zero bytes.
func (v XorVector) IsZero() bool {
	var acc byte
	for _, slot := range v {
		for _, b := range slot {
			acc |= b
		}
	}
	return acc == 0
}

// Clone returns a deep copy.
func (v XorVector) Clone() XorVector {
	res := make(XorVector, len(v))
	for i := range v {
		res[i] = append([]byte(nil), v[i]...)
	}
	return res
}

// Slots maps each witness to its index among the sorted roots. It reports
// false if any witness is absent; the returned indices are then meaningless.
func Slots(f *crypto.Field, witnesses []*big.Int, roots []*big.Int) ([]int, bool) {
	slots := make([]int, len(witnesses))
	allFound := 1
	for j, w := range witnesses {
		idx := solver.IndexOf(f, w, roots)
		allFound &= 1 ^ subtle.ConstantTimeEq(int32(idx), -1)
		slots[j] = idx
	}
	return slots, allFound == 1
}

// BuildXorVector places messages at their slots and pads the result. With
// ok false nothing is placed and the vector is pure padding, which depends
// only on the keys.
func BuildXorVector(n int, size int, ok bool, slots []int, messages [][]byte, keys []crypto.SharedKey) (XorVector, error) {
	v := NewXorVector(n, size)
	if ok {
		if len(slots) != len(messages) {
			return nil, fmt.Errorf("%w: %d slots for %d messages", ErrVectorLength, len(slots), len(messages))
		}
		for j, msg := range messages {
			if err := v.Place(slots[j], msg); err != nil {
				return nil, err
			}
		}
	}
	return v.XorPads(keys), nil
}

// Bytes flattens the vector for transmission.
func (v XorVector) Bytes() []byte {
	var res []byte
	for _, slot := range v {
		res = append(res, slot...)
	}
	return res
}

// DecodeXorVector splits data into n slots of size bytes.
func DecodeXorVector(data []byte, n int, size int) (XorVector, error) {
	if len(data) != n*size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrVectorLength, n*size, len(data))
	}
	v := make(XorVector, n)
	for i := range v {
		v[i] = append([]byte(nil), data[i*size:(i+1)*size]...)
	}
	return v, nil
}
