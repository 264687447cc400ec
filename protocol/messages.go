package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/flashbots/dicemix/crypto"
)

// Header binds a payload to its sender, run and phase. SessionID is empty
// for key exchange and reveal payloads, which precede the session ID of the
// run they open.
type Header struct {
	Sender    PeerID `json:"sender"`
	Run       uint32 `json:"run"`
	Phase     Phase  `json:"phase"`
	SessionID []byte `json:"session_id,omitempty"`
}

func (h *Header) header() *Header {
	return h
}

// KeyExchange announces the first run's ephemeral public key and the number
// of messages the sender contributes in every run.
type KeyExchange struct {
	Header
	KxPublicKey crypto.KxPublicKey `json:"kx_public_key"`
	NumMsgs     int                `json:"num_msgs"`
}

// Reveal publishes the key exchange secret of the previous, failed run.
type Reveal struct {
	Header
	KxSecretKey crypto.KxSecretKey `json:"kx_secret_key"`
}

// DCExp is the slot reservation broadcast.
type DCExp struct {
	Header
	// Commitment to the sender's messages of this run.
	Commitment []byte `json:"commitment"`
	// Vector holds the padded power sums, one encoded element per position.
	Vector [][]byte `json:"vector"`
	// NextKxPublicKey is the key exchange public key for the next run.
	NextKxPublicKey crypto.KxPublicKey `json:"next_kx_public_key"`
}

// DCXor is the message exchange broadcast. OK is false when the sender did
// not find all of its slots, in which case Vector is pure padding.
type DCXor struct {
	Header
	OK     bool   `json:"ok"`
	Vector []byte `json:"vector"`
}

// Confirm reports the confirmation value over the resolved messages, or
// OK false if one of the sender's messages is missing from them.
type Confirm struct {
	Header
	OK    bool   `json:"ok"`
	Value []byte `json:"value,omitempty"`
}

// sealPayload signs obj with the long-term key and serializes the envelope.
func sealPayload[T any](sk crypto.PrivateKey, obj *T) ([]byte, error) {
	env, err := Seal(sk, obj)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// openPayload authenticates raw against the sender's long-term key and
// checks that its header matches want.
func openPayload[T any, PT interface {
	*T
	header() *Header
}](raw []byte, vk crypto.PublicKey, want Header) (*T, error) {
	var env Envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope: %w", ErrProtocolViolation, err)
	}
	obj, err := env.Open(vk)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	h := PT(obj).header()
	if h.Sender != want.Sender || h.Run != want.Run || h.Phase != want.Phase || !bytes.Equal(h.SessionID, want.SessionID) {
		return nil, fmt.Errorf("%w: unexpected header %+v", ErrProtocolViolation, *h)
	}
	return obj, nil
}
