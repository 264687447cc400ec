package protocol

import (
	"context"
	"time"
)

// PeerID identifies a peer. IDs are compared byte-wise and must be unique
// within a mix.
type PeerID string

func (id PeerID) Bytes() []byte {
	return []byte(id)
}

// Tag names one broadcast phase of one run.
type Tag struct {
	Run   uint32
	Phase Phase
}

// Broadcaster is the reliable broadcast channel the engine runs over. It
// must deliver the same payload from a sender to every receiver, or the
// same absence.
type Broadcaster interface {
	// Broadcast sends payload to every other peer under tag.
	Broadcast(ctx context.Context, tag Tag, payload []byte) error

	// ReceiveAll waits until every expected peer has broadcast under tag or
	// the deadline passes. It returns the payloads received and the peers
	// that stayed silent.
	ReceiveAll(ctx context.Context, tag Tag, expected []PeerID, deadline time.Time) (map[PeerID][]byte, []PeerID, error)
}

// MessageSource supplies the messages to mix. It is asked again for every
// run, and must return the same number of messages each time.
type MessageSource interface {
	FreshMessages(ctx context.Context) ([][]byte, error)
}

// MessageSourceFunc adapts a function to MessageSource.
type MessageSourceFunc func(ctx context.Context) ([][]byte, error)

func (f MessageSourceFunc) FreshMessages(ctx context.Context) ([][]byte, error) {
	return f(ctx)
}
