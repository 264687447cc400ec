package protocol

import (
	"encoding/json"
	"errors"

	"github.com/flashbots/dicemix/crypto"
)

var (
	errEmptyEnvelope    = errors.New("envelope without body")
	errUnexpectedSigner = errors.New("envelope signed by unexpected key")
	errBadSignature     = errors.New("envelope signature not valid")
)

// Envelope carries one phase payload with the sender's long-term signature.
// The signature covers a fixed context string, the signer key and the JSON
// body, so an envelope cannot be reinterpreted outside this protocol.
type Envelope[T any] struct {
	Signer    crypto.PublicKey `json:"signer"`
	Signature crypto.Signature `json:"signature"`
	Body      *T               `json:"body"`
}

const envelopeContext = "DICEMIX/ENVELOPE"

func envelopeDigest(signer crypto.PublicKey, body []byte) []byte {
	return crypto.Hash(envelopeContext, signer, body)
}

// Seal signs body with sk.
func Seal[T any](sk crypto.PrivateKey, body *T) (*Envelope[T], error) {
	signer, err := sk.PublicKey()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(sk, envelopeDigest(signer, raw))
	if err != nil {
		return nil, err
	}
	return &Envelope[T]{Signer: signer, Signature: sig, Body: body}, nil
}

// Open returns the body if the envelope was signed by vk.
func (e *Envelope[T]) Open(vk crypto.PublicKey) (*T, error) {
	if e.Body == nil {
		return nil, errEmptyEnvelope
	}
	if !e.Signer.Equal(vk) {
		return nil, errUnexpectedSigner
	}
	raw, err := json.Marshal(e.Body)
	if err != nil {
		return nil, err
	}
	if !e.Signature.Verify(vk, envelopeDigest(vk, raw)) {
		return nil, errBadSignature
	}
	return e.Body, nil
}
