package protocol

import (
	"math/big"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/dcnet"
)

// transcript is everything a run exchanged, kept until the next run has had
// the chance to replay it. Maps are keyed by member id and include self.
type transcript struct {
	run uint32
	sid []byte
	ids []PeerID
	n   int

	kxPubs  map[PeerID]crypto.KxPublicKey
	numMsgs map[PeerID]int

	dcExp      map[PeerID]*DCExp
	expVectors map[PeerID]dcnet.FieldVector
	// sums is set once every DC-EXP vector was received.
	sums dcnet.FieldVector

	dcXor      map[PeerID]*DCXor
	xorVectors map[PeerID]dcnet.XorVector
	// resolved is set once every DC-XOR vector was received.
	resolved dcnet.XorVector

	confirmation []byte
	confirms     map[PeerID]*Confirm
}

func newTranscript(run uint32, sid []byte, ids []PeerID, n int) *transcript {
	return &transcript{
		run:        run,
		sid:        sid,
		ids:        ids,
		n:          n,
		kxPubs:     make(map[PeerID]crypto.KxPublicKey),
		numMsgs:    make(map[PeerID]int),
		dcExp:      make(map[PeerID]*DCExp),
		expVectors: make(map[PeerID]dcnet.FieldVector),
		dcXor:      make(map[PeerID]*DCXor),
		xorVectors: make(map[PeerID]dcnet.XorVector),
		confirms:   make(map[PeerID]*Confirm),
	}
}

// commitments returns the DC-EXP commitments in member order.
func (t *transcript) commitments() [][]byte {
	res := make([][]byte, len(t.ids))
	for i, id := range t.ids {
		if m, ok := t.dcExp[id]; ok {
			res[i] = m.Commitment
		}
	}
	return res
}

// witnessRoots solves the recorded power sums, if the run got that far.
func (t *transcript) witnessRoots(solve func(sums []*big.Int, n int) ([]*big.Int, error)) []*big.Int {
	if t.sums == nil {
		return nil
	}
	roots, err := solve(t.sums, t.n)
	if err != nil {
		return nil
	}
	return roots
}
