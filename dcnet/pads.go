package dcnet

import (
	"bytes"

	"github.com/flashbots/dicemix/crypto"
)

// Pad is the key shared with one other peer and the sign it takes on this
// side of the pair. The two ends of a pair always disagree on the sign.
type Pad struct {
	Key      crypto.SharedKey
	Positive bool
}

// PadPositive reports whether the peer with myID adds the pad it shares with
// theirID. The lower id adds and the higher id subtracts.
func PadPositive(myID, theirID []byte) bool {
	return bytes.Compare(myID, theirID) < 0
}
