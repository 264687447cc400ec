// Package dcnet builds and combines the two dining-cryptographers vectors
// of a run.
//
// The exponential vector carries, at position i, the sum of every own slot
// witness raised to the power i+1, padded with pairwise field elements that
// cancel when all peers' vectors are added. Its combination is the power sum
// vector handed to the solver.
//
// The XOR vector carries each own message in the slot of its witness among
// the sorted roots, padded with pairwise keystreams that cancel when all
// peers' vectors are XORed.
package dcnet
