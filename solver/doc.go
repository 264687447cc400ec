// Package solver recovers a set of field elements from their power sums.
//
// Given s_i = sum_j r_j^i for i = 1..n, Newton's identities yield the monic
// polynomial f with roots r_1..r_n. The roots are found by checking that
// x^p = x mod f (so f splits into linear factors) and then splitting f with
// the Cantor-Zassenhaus equal-degree algorithm. Polynomial products use
// Kronecker substitution on math/big integers, and reductions modulo f use a
// precomputed power series inverse, which keeps exponentiation to x^p
// sub-quadratic in n.
//
// A repeated root, or a polynomial that does not split, is reported as
// ErrInvalid. Callers in the mixing protocol treat this as a slot collision.
package solver
