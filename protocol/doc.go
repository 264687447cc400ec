// Package protocol implements the DiceMix run engine: a peer-to-peer
// anonymous broadcast in which every peer publishes a fixed number of
// fixed-size messages and nobody learns which peer sent which message, as
// long as at least two peers are honest.
//
// # Runs
//
// A mix proceeds in runs. Each run uses fresh ephemeral key exchange keys
// and goes through three broadcast phases:
//
//  1. Slot reservation (DC-EXP): every peer derives one witness per message
//     from the session ID and its run secret, and broadcasts the power sums
//     of its witnesses blinded with pairwise field pads. Summing all vectors
//     cancels the pads; solving the resulting power sums yields the sorted
//     witnesses, and a peer's slots are the positions of its own witnesses.
//     The broadcast also commits to the messages and announces the next
//     run's key exchange public key.
//
//  2. Message exchange (DC-XOR): every peer places its messages at its slots
//     in an otherwise zero vector and XORs pairwise pads over it. XORing all
//     vectors reveals every message at its slot.
//
//  3. Confirmation: every peer checks that its messages are present and
//     broadcasts a hash over the session, the commitments and the sorted
//     messages.
//
// # Failures
//
// Peers that stay silent or send payloads that cannot be authenticated are
// excluded and the next run starts directly with the announced keys (the
// cheap path). Failures that cannot be pinned on anyone, such as a slot
// collision or a peer reporting a missing message, start the next run by
// revealing the previous run's secrets. Each peer replays every revealed
// secret against the broadcasts of the failed run and excludes peers whose
// broadcasts do not reproduce, as well as peers whose witnesses collide.
// Since revealed secrets only ever protected the failed run, revealing them
// costs no anonymity.
//
// # Transport
//
// The engine only needs a Broadcaster that delivers the same payload, or
// the same absence, to every receiver. LocalHub provides one in process.
// Every payload is signed with the sender's long-term Ed25519 key and
// carries a header naming the sender, run, phase and session.
package protocol
