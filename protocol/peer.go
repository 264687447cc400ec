package protocol

import (
	"maps"
	"slices"

	"github.com/flashbots/dicemix/crypto"
)

// LocalPeer is the identity the engine runs as.
type LocalPeer struct {
	ID         PeerID
	SigningKey crypto.PrivateKey
}

// RemotePeer is another participant, known by id and long-term verification key.
type RemotePeer struct {
	ID              PeerID
	VerificationKey crypto.PublicKey
}

// peerState is what the engine tracks about an active remote peer.
type peerState struct {
	RemotePeer
	kxPub     crypto.KxPublicKey
	nextKxPub crypto.KxPublicKey
	numMsgs   int
}

// runState is the context owned by a single Run call. Nothing in it is
// shared with other engines.
type runState struct {
	run   uint32
	state State
	peers map[PeerID]*peerState

	// exclude is the set pending removal at the start of the next run.
	exclude map[PeerID]ExclusionReason
	// excluded accumulates every removal for the result.
	excluded map[PeerID]ExclusionReason

	kxPub        crypto.KxPublicKey
	kxSecret     crypto.KxSecretKey
	nextKxPub    crypto.KxPublicKey
	nextKxSecret crypto.KxSecretKey

	numMsgs  int
	messages [][]byte

	// prev is the transcript of the previous run, kept for blame.
	prev *transcript
}

func newRunState(peers []RemotePeer) *runState {
	st := &runState{
		peers:    make(map[PeerID]*peerState, len(peers)),
		exclude:  make(map[PeerID]ExclusionReason),
		excluded: make(map[PeerID]ExclusionReason),
	}
	for _, p := range peers {
		st.peers[p.ID] = &peerState{RemotePeer: p}
	}
	return st
}

// peerIDs returns the sorted ids of the active remote peers.
func (st *runState) peerIDs() []PeerID {
	return slices.Sorted(maps.Keys(st.peers))
}

// memberIDs returns the sorted ids of the active peers and self.
func (st *runState) memberIDs(self PeerID) []PeerID {
	ids := append(st.peerIDs(), self)
	slices.Sort(ids)
	return ids
}

// markExcluded schedules id for removal. The first reason recorded wins.
func (st *runState) markExcluded(id PeerID, reason ExclusionReason) {
	if _, ok := st.exclude[id]; !ok {
		st.exclude[id] = reason
	}
}

// removeExcluded drops every pending peer from the active set and returns
// what was removed.
func (st *runState) removeExcluded() map[PeerID]ExclusionReason {
	removed := st.exclude
	for id, reason := range removed {
		delete(st.peers, id)
		st.excluded[id] = reason
	}
	st.exclude = make(map[PeerID]ExclusionReason)
	return removed
}

// rotateKeys moves self and every peer to the key pair announced for the
// next run.
func (st *runState) rotateKeys() {
	st.kxPub, st.kxSecret = st.nextKxPub, st.nextKxSecret
	st.nextKxPub, st.nextKxSecret = nil, nil
	for _, p := range st.peers {
		p.kxPub, p.nextKxPub = p.nextKxPub, nil
	}
}

func (st *runState) kxPubs() map[PeerID]crypto.KxPublicKey {
	res := make(map[PeerID]crypto.KxPublicKey, len(st.peers))
	for id, p := range st.peers {
		res[id] = p.kxPub
	}
	return res
}

func (st *runState) totalMsgs() int {
	n := st.numMsgs
	for _, p := range st.peers {
		n += p.numMsgs
	}
	return n
}
