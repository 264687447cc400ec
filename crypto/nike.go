package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrInvalidKxPublicKey is returned for public keys that do not decode to a usable point.
	ErrInvalidKxPublicKey = errors.New("invalid key exchange public key")

	// ErrInvalidKxSecretKey is returned for secrets that are not in canonical form.
	ErrInvalidKxSecretKey = errors.New("invalid key exchange secret key")
)

// KxPublicKey is an ephemeral key exchange public key, valid for one run.
type KxPublicKey []byte

func (pk KxPublicKey) String() string {
	return hex.EncodeToString(pk)
}

// KxSecretKey is an ephemeral key exchange secret. It is revealed once the
// run it belongs to is abandoned, so it must never protect anything else.
type KxSecretKey []byte

// NIKE is a non-interactive key exchange. Every valid public key has exactly
// one accepted secret, so a revealed secret can be checked against the
// public key announced earlier.
type NIKE interface {
	Name() string
	GenerateKeyPair(rand io.Reader) (KxPublicKey, KxSecretKey, error)
	// PublicKey validates secret and derives its public key.
	PublicKey(secret KxSecretKey) (KxPublicKey, error)
	ValidatePublicKey(pk KxPublicKey) error
	// SharedSecret is symmetric in (myID, theirID) and bound to tweak.
	SharedSecret(secret KxSecretKey, pk KxPublicKey, myID, theirID, tweak []byte) (SharedKey, error)
}

// NIKEByName returns the key exchange registered under name.
func NIKEByName(name string) (NIKE, error) {
	switch name {
	case "", Secp256k1NIKE{}.Name():
		return Secp256k1NIKE{}, nil
	case X25519NIKE{}.Name():
		return X25519NIKE{}, nil
	}
	return nil, fmt.Errorf("unknown key exchange %q", name)
}

// deriveSharedKey expands an ECDH output into a 32-byte key with HKDF-SHA256.
// The salt commits to the unordered id pair.
func deriveSharedKey(point []byte, myID, theirID, tweak []byte) (SharedKey, error) {
	lo, hi := myID, theirID
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	salt := Hash("DICEMIX/NIKE", lo, hi)

	kdf := hkdf.New(sha256.New, point, salt, tweak)
	secret := make([]byte, 32)
	if _, err := io.ReadFull(kdf, secret); err != nil {
		return nil, err
	}
	return SharedKey(secret), nil
}

// Secp256k1NIKE is ECDH over secp256k1 with compressed public keys.
type Secp256k1NIKE struct{}

func (Secp256k1NIKE) Name() string { return "secp256k1" }

func (Secp256k1NIKE) GenerateKeyPair(rand io.Reader) (KxPublicKey, KxSecretKey, error) {
	priv, err := secp256k1.GeneratePrivateKeyFromRand(rand)
	if err != nil {
		return nil, nil, err
	}
	return priv.PubKey().SerializeCompressed(), priv.Serialize(), nil
}

func (Secp256k1NIKE) PublicKey(secret KxSecretKey) (KxPublicKey, error) {
	priv, err := parseSecp256k1Secret(secret)
	if err != nil {
		return nil, err
	}
	return priv.PubKey().SerializeCompressed(), nil
}

func (Secp256k1NIKE) ValidatePublicKey(pk KxPublicKey) error {
	_, err := parseSecp256k1Public(pk)
	return err
}

func (Secp256k1NIKE) SharedSecret(secret KxSecretKey, pk KxPublicKey, myID, theirID, tweak []byte) (SharedKey, error) {
	priv, err := parseSecp256k1Secret(secret)
	if err != nil {
		return nil, err
	}
	pub, err := parseSecp256k1Public(pk)
	if err != nil {
		return nil, err
	}
	return deriveSharedKey(secp256k1.GenerateSharedSecret(priv, pub), myID, theirID, tweak)
}

func parseSecp256k1Secret(secret KxSecretKey) (*secp256k1.PrivateKey, error) {
	if len(secret) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKxSecretKey, secp256k1.PrivKeyBytesLen, len(secret))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(secret); overflow || s.IsZero() {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidKxSecretKey)
	}
	return secp256k1.NewPrivateKey(&s), nil
}

func parseSecp256k1Public(pk KxPublicKey) (*secp256k1.PublicKey, error) {
	if len(pk) != secp256k1.PubKeyBytesLenCompressed {
		return nil, fmt.Errorf("%w: expected compressed encoding", ErrInvalidKxPublicKey)
	}
	pub, err := secp256k1.ParsePubKey(pk)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKxPublicKey, err)
	}
	return pub, nil
}

// X25519NIKE is Diffie-Hellman over Curve25519. Secrets are stored clamped
// and only clamped secrets are accepted.
type X25519NIKE struct{}

func (X25519NIKE) Name() string { return "x25519" }

func (n X25519NIKE) GenerateKeyPair(rand io.Reader) (KxPublicKey, KxSecretKey, error) {
	secret := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand, secret); err != nil {
		return nil, nil, err
	}
	secret[0] &= 248
	secret[31] &= 127
	secret[31] |= 64

	pk, err := n.PublicKey(secret)
	if err != nil {
		return nil, nil, err
	}
	return pk, secret, nil
}

func (X25519NIKE) PublicKey(secret KxSecretKey) (KxPublicKey, error) {
	if len(secret) != curve25519.ScalarSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKxSecretKey, curve25519.ScalarSize, len(secret))
	}
	if secret[0]&7 != 0 || secret[31]&128 != 0 || secret[31]&64 == 0 {
		return nil, fmt.Errorf("%w: scalar not clamped", ErrInvalidKxSecretKey)
	}
	pk, err := curve25519.X25519(secret, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKxSecretKey, err)
	}
	return pk, nil
}

// x25519Probe is an arbitrary clamped scalar used to reject low-order points.
var x25519Probe = func() []byte {
	s := Hash("DICEMIX/X25519-PROBE")
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64
	return s
}()

func (X25519NIKE) ValidatePublicKey(pk KxPublicKey) error {
	if len(pk) != curve25519.PointSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKxPublicKey, curve25519.PointSize, len(pk))
	}
	if pk[31]&128 != 0 {
		return fmt.Errorf("%w: non-canonical encoding", ErrInvalidKxPublicKey)
	}
	if _, err := curve25519.X25519(x25519Probe, pk); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKxPublicKey, err)
	}
	return nil
}

func (n X25519NIKE) SharedSecret(secret KxSecretKey, pk KxPublicKey, myID, theirID, tweak []byte) (SharedKey, error) {
	if _, err := n.PublicKey(secret); err != nil {
		return nil, err
	}
	if err := n.ValidatePublicKey(pk); err != nil {
		return nil, err
	}
	point, err := curve25519.X25519(secret, pk)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKxPublicKey, err)
	}
	return deriveSharedKey(point, myID, theirID, tweak)
}
