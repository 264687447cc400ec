package crypto

import (
	"encoding/binary"
	"hash"
	"io"
	"math/big"

	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// HashSize is the output length of Hash.
const HashSize = blake2s.Size

// Hash computes BLAKE2s-256 over a domain tag followed by length-prefixed parts.
// Length prefixes keep distinct part sequences from colliding.
func Hash(domain string, parts ...[]byte) []byte {
	h, err := blake2s.New256(nil)
	if err != nil {
		panic(err.Error())
	}
	writeParts(h, domain, parts)
	return h.Sum(nil)
}

// HashToField maps the domain-separated input to a uniform element of f.
// It reads 128 bits more than the element size from SHAKE256 so that the
// reduction bias is negligible.
func HashToField(f *Field, domain string, parts ...[]byte) *big.Int {
	h := sha3.NewShake256()
	writeParts(h, domain, parts)

	buf := make([]byte, f.ByteLen()+16)
	if _, err := io.ReadFull(h, buf); err != nil {
		panic(err.Error())
	}
	x := new(big.Int).SetBytes(buf)
	return x.Mod(x, f.P)
}

// Uint32Bytes encodes v big-endian, for use as a hash part.
func Uint32Bytes(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func writeParts(h hash.Hash, domain string, parts [][]byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(domain)))
	h.Write(lenBuf[:])
	h.Write([]byte(domain))
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
}
