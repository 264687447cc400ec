package protocol

import (
	"bytes"
	"fmt"
	"math/big"
	"slices"

	"github.com/flashbots/dicemix/crypto"
	"github.com/flashbots/dicemix/dcnet"
)

// Pairwise key tweaks for the two DC-nets of a run.
var (
	tweakDCExp = []byte("DCEXP")
	tweakDC    = []byte("DC")
)

// sortedIDs returns a sorted copy of ids, or ErrInput on duplicates.
func sortedIDs(ids []PeerID) ([]PeerID, error) {
	res := slices.Clone(ids)
	slices.Sort(res)
	for i := 1; i < len(res); i++ {
		if res[i] == res[i-1] {
			return nil, fmt.Errorf("%w: duplicate peer id %q", ErrInput, res[i])
		}
	}
	return res, nil
}

// SessionID binds a run to the configuration, the run counter and the exact
// membership. ids must include the local peer.
func SessionID(cfg *Config, run uint32, ids []PeerID) ([]byte, error) {
	sorted, err := sortedIDs(ids)
	if err != nil {
		return nil, err
	}

	parts := [][]byte{
		crypto.Uint32Bytes(cfg.Version),
		[]byte(cfg.Options),
		[]byte(cfg.Field),
		crypto.Uint32Bytes(uint32(cfg.MessageSize)),
		crypto.Uint32Bytes(run),
	}
	for _, id := range sorted {
		parts = append(parts, id.Bytes())
	}
	return crypto.Hash("DICEMIX/SID", parts...), nil
}

// slotWitnesses derives the peer's slot reservation witnesses. They depend
// only on the session and the revealable run secret so that replay can
// recompute them.
func slotWitnesses(f *crypto.Field, sid []byte, secret crypto.KxSecretKey, count int) []*big.Int {
	res := make([]*big.Int, count)
	for j := range res {
		res[j] = crypto.HashToField(f, "DICEMIX/SLOT", sid, secret, crypto.Uint32Bytes(uint32(j)))
	}
	return res
}

// commitment binds the sender to its messages before slots are known.
func commitment(sid []byte, id PeerID, messages [][]byte) []byte {
	parts := append([][]byte{sid, id.Bytes()}, messages...)
	return crypto.Hash("DICEMIX/COMMIT", parts...)
}

// confirmationValue is what every peer signs off on at the end of a run.
// commitments follow the order of the sorted ids.
func confirmationValue(sid []byte, ids []PeerID, commitments [][]byte, messages [][]byte) []byte {
	sortedMsgs := slices.Clone(messages)
	slices.SortFunc(sortedMsgs, bytes.Compare)

	parts := [][]byte{sid, crypto.Uint32Bytes(uint32(len(ids)))}
	for _, id := range ids {
		parts = append(parts, id.Bytes())
	}
	parts = append(parts, commitments...)
	parts = append(parts, sortedMsgs...)
	return crypto.Hash("DICEMIX/CONFIRM", parts...)
}

// runKeys are the pairwise keys of one peer for one run.
type runKeys struct {
	expPads []dcnet.Pad
	xorKeys []crypto.SharedKey
}

// deriveRunKeys computes the DCEXP and DC keys that self shares with every
// peer in pks.
func deriveRunKeys(nike crypto.NIKE, secret crypto.KxSecretKey, self PeerID, pks map[PeerID]crypto.KxPublicKey, sid []byte) (*runKeys, error) {
	ids := make([]PeerID, 0, len(pks))
	for id := range pks {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	keys := &runKeys{}
	for _, id := range ids {
		expKey, err := nike.SharedSecret(secret, pks[id], self.Bytes(), id.Bytes(), slices.Concat(sid, tweakDCExp))
		if err != nil {
			return nil, fmt.Errorf("deriving DCEXP key with %s: %w", id, err)
		}
		xorKey, err := nike.SharedSecret(secret, pks[id], self.Bytes(), id.Bytes(), slices.Concat(sid, tweakDC))
		if err != nil {
			return nil, fmt.Errorf("deriving DC key with %s: %w", id, err)
		}
		keys.expPads = append(keys.expPads, dcnet.Pad{Key: expKey, Positive: dcnet.PadPositive(self.Bytes(), id.Bytes())})
		keys.xorKeys = append(keys.xorKeys, xorKey)
	}
	return keys, nil
}
