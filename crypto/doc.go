// Package crypto provides the primitives the mixing engine is built from.
//
//   - Prime field arithmetic with fixed-length element encoding (Field)
//   - A ChaCha20 pseudorandom generator keyed by a seed (PRG)
//   - Domain-separated hashing, BLAKE2s into bytes and SHAKE256 into a field
//   - Non-interactive key exchange over secp256k1 or X25519 (NIKE)
//   - Ed25519 long-term keys used to authenticate broadcast payloads
//   - Pad derivation for field and XOR DC-nets
//
// Note: field arithmetic is not constant-time. Code paths that touch secret
// positions (slot lookup) use crypto/subtle explicitly.
package crypto
