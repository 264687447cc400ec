package protocol

import (
	"github.com/flashbots/dicemix/dcnet"
)

// WithXorVectorHook lets fn rewrite the padded DC-XOR vector before it is
// broadcast.
func WithXorVectorHook(fn func(v dcnet.XorVector, slots []int)) Option {
	return func(e *Engine) {
		e.hooks.xorVector = fn
	}
}

// WithConfirmHook lets fn rewrite the confirmation before it is broadcast.
func WithConfirmHook(fn func(c *Confirm)) Option {
	return func(e *Engine) {
		e.hooks.confirm = fn
	}
}
