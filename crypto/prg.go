package crypto

import (
	"math/big"

	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/chacha20"
)

// PRG is a deterministic byte stream expanded from a seed with ChaCha20.
// Two PRGs built from the same seed produce identical output, which is what
// lets a revealed secret be replayed by other peers.
type PRG struct {
	cipher *chacha20.Cipher
}

// NewPRG keys a ChaCha20 stream with the BLAKE2s digest of seed.
func NewPRG(seed []byte) *PRG {
	key := blake2s.Sum256(seed)
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		panic(err.Error())
	}
	return &PRG{cipher: c}
}

// Read fills p with the next len(p) bytes of the stream. It never fails.
func (g *PRG) Read(p []byte) (int, error) {
	clear(p)
	g.cipher.XORKeyStream(p, p)
	return len(p), nil
}

// Bytes returns the next n bytes of the stream.
func (g *PRG) Bytes(n int) []byte {
	buf := make([]byte, n)
	g.Read(buf)
	return buf
}

// FieldElement draws a uniform element of f by rejection sampling.
func (g *PRG) FieldElement(f *Field) *big.Int {
	buf := make([]byte, f.ByteLen())
	excess := uint(f.ByteLen()*8 - f.P.BitLen())
	mask := byte(0xff >> excess)

	x := new(big.Int)
	for {
		g.Read(buf)
		buf[0] &= mask
		x.SetBytes(buf)
		if x.Cmp(f.P) < 0 {
			return x
		}
	}
}

// FieldElements draws n consecutive elements.
func (g *PRG) FieldElements(f *Field, n int) []*big.Int {
	res := make([]*big.Int, n)
	for i := range res {
		res[i] = g.FieldElement(f)
	}
	return res
}
