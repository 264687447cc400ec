package protocol

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// InterceptFunc rewrites a payload on its way into the hub. Returning nil
// drops it.
type InterceptFunc func(from PeerID, tag Tag, payload []byte) []byte

// LocalHub is an in-process Broadcaster for engines running in the same
// process. The first payload a sender broadcasts under a tag is the one
// every receiver gets. A tag is sealed when the first receiver's deadline
// for it passes; later broadcasts under a sealed tag are dropped, so every
// receiver sees the same set of missing peers.
//
// Only the two most recent runs are retained. A peer still in the run
// before that has been excluded by everyone else, so payloads for older
// runs are dropped and reads report every peer missing.
type LocalHub struct {
	mu        sync.Mutex
	messages  map[Tag]map[PeerID][]byte
	sealed    map[Tag]bool
	floor     uint32
	notify    chan struct{}
	intercept InterceptFunc
}

const retainRuns = 2

// NewLocalHub returns an empty hub.
func NewLocalHub() *LocalHub {
	return &LocalHub{
		messages: make(map[Tag]map[PeerID][]byte),
		sealed:   make(map[Tag]bool),
		notify:   make(chan struct{}),
	}
}

// Intercept installs fn on every later broadcast.
func (h *LocalHub) Intercept(fn InterceptFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.intercept = fn
}

// Endpoint returns the Broadcaster used by peer id.
func (h *LocalHub) Endpoint(id PeerID) Broadcaster {
	return &hubEndpoint{hub: h, id: id}
}

// wake releases every waiting receiver. Callers hold mu.
func (h *LocalHub) wake() {
	close(h.notify)
	h.notify = make(chan struct{})
}

func (h *LocalHub) broadcast(from PeerID, tag Tag, payload []byte) {
	h.mu.Lock()
	intercept := h.intercept
	h.mu.Unlock()

	payload = bytes.Clone(payload)
	if intercept != nil {
		payload = intercept(from, tag, payload)
	}
	if payload == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if tag.Run < h.floor || h.sealed[tag] {
		return
	}
	if tag.Run >= h.floor+retainRuns {
		h.prune(tag.Run + 1 - retainRuns)
	}
	received, ok := h.messages[tag]
	if !ok {
		received = make(map[PeerID][]byte)
		h.messages[tag] = received
	}
	if _, dup := received[from]; dup {
		return
	}
	received[from] = payload
	h.wake()
}

// prune forgets every tag of a run below floor. Callers hold mu.
func (h *LocalHub) prune(floor uint32) {
	for tag := range h.messages {
		if tag.Run < floor {
			delete(h.messages, tag)
		}
	}
	for tag := range h.sealed {
		if tag.Run < floor {
			delete(h.sealed, tag)
		}
	}
	h.floor = floor
	h.wake()
}

func (h *LocalHub) receiveAll(ctx context.Context, tag Tag, expected []PeerID, deadline time.Time) (map[PeerID][]byte, []PeerID, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		h.mu.Lock()
		received := h.messages[tag]
		complete := true
		for _, id := range expected {
			if _, ok := received[id]; !ok {
				complete = false
				break
			}
		}
		pruned := tag.Run < h.floor
		if !complete && !pruned && !h.sealed[tag] && !time.Now().Before(deadline) {
			h.sealed[tag] = true
			h.wake()
		}

		if complete || pruned || h.sealed[tag] {
			res := make(map[PeerID][]byte, len(expected))
			var missing []PeerID
			for _, id := range expected {
				if payload, ok := received[id]; ok {
					res[id] = bytes.Clone(payload)
				} else {
					missing = append(missing, id)
				}
			}
			h.mu.Unlock()
			return res, missing, nil
		}

		wait := h.notify
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-wait:
		case <-timer.C:
		}
	}
}

type hubEndpoint struct {
	hub *LocalHub
	id  PeerID
}

func (e *hubEndpoint) Broadcast(ctx context.Context, tag Tag, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.hub.broadcast(e.id, tag, payload)
	return nil
}

func (e *hubEndpoint) ReceiveAll(ctx context.Context, tag Tag, expected []PeerID, deadline time.Time) (map[PeerID][]byte, []PeerID, error) {
	return e.hub.receiveAll(ctx, tag, expected, deadline)
}
