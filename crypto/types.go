package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"slices"
)

// ErrInvalidPrivateKey is returned for signing keys of the wrong length.
var ErrInvalidPrivateKey = errors.New("invalid private key size")

// PublicKey is a long-term Ed25519 verification key. It authenticates every
// payload a peer broadcasts and is never rotated between runs.
type PublicKey []byte

// NewPublicKeyFromString decodes a hex-encoded key.
func NewPublicKeyFromString(data string) (PublicKey, error) {
	raw, err := hex.DecodeString(data)
	if err != nil {
		return nil, err
	}
	return PublicKey(raw), nil
}

// Bytes returns the raw key without copying.
func (pk PublicKey) Bytes() []byte {
	return pk
}

// Equal runs in constant time for keys of equal length.
func (pk PublicKey) Equal(other PublicKey) bool {
	return subtle.ConstantTimeCompare(pk, other) == 1
}

// String returns the hex encoding of the key.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk)
}

// PrivateKey is a long-term Ed25519 signing key in the 64-byte seed||public
// layout of crypto/ed25519.
type PrivateKey []byte

// NewPrivateKeyFromBytes copies data so the caller may wipe its buffer.
func NewPrivateKeyFromBytes(data []byte) PrivateKey {
	return PrivateKey(slices.Clone(data))
}

// Bytes returns the raw key without copying.
func (sk PrivateKey) Bytes() []byte {
	return sk
}

// PublicKey returns the verification half embedded in sk.
func (sk PrivateKey) PublicKey() (PublicKey, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	return PublicKey(sk[ed25519.SeedSize:]), nil
}

// GenerateKeyPair draws a fresh Ed25519 key pair from crypto/rand.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PublicKey(pub), PrivateKey(priv), nil
}

// Signature is an Ed25519 signature over a serialized payload.
type Signature []byte

// Verify reports whether s signs data under publicKey. Keys of the wrong
// length never verify.
func (s Signature) Verify(publicKey PublicKey, data []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), data, s)
}

// String returns the hex encoding of the signature.
func (s Signature) String() string {
	return hex.EncodeToString(s)
}

// Sign signs data with privateKey.
func Sign(privateKey PrivateKey, data []byte) (Signature, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	return Signature(ed25519.Sign(ed25519.PrivateKey(privateKey), data)), nil
}

// SharedKey is a pairwise key derived from a key exchange for one run and
// one purpose. It is only ever used to seed a PRG.
type SharedKey []byte

// Bytes returns a copy.
func (sk SharedKey) Bytes() []byte {
	return slices.Clone(sk)
}
