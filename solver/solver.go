package solver

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/flashbots/dicemix/crypto"
)

var (
	// ErrInvalid means the power sums do not describe n distinct field
	// elements. In the mixing protocol this is a slot collision.
	ErrInvalid = errors.New("solver: no valid solution")

	ErrRepeatedRoot     = fmt.Errorf("%w: repeated root", ErrInvalid)
	ErrNotSplit         = fmt.Errorf("%w: polynomial does not split into linear factors", ErrInvalid)
	ErrCandidateMissing = fmt.Errorf("%w: own candidate not among roots", ErrInvalid)

	// ErrInput reports degenerate arguments.
	ErrInput = errors.New("solver: invalid input")

	// ErrInternal reports arithmetic failures that honest inputs cannot cause.
	ErrInternal = errors.New("solver: internal error")
)

// bruteForceLimit is the largest modulus for which roots are found by
// evaluating the polynomial at every field element.
const bruteForceLimit = 4096

// maxSplitAttempts bounds the random trials of a single equal-degree split.
// Each trial succeeds with probability close to 1/2 for odd p.
const maxSplitAttempts = 128

// Solve recovers the n distinct elements whose power sums s_1..s_n are given
// and checks that own is one of them. Roots are returned in ascending order.
func Solve(field *crypto.Field, own *big.Int, sums []*big.Int, n int) ([]*big.Int, error) {
	roots, err := Roots(field, sums, n)
	if err != nil {
		return nil, err
	}
	if own == nil || IndexOf(field, own, roots) < 0 {
		return nil, ErrCandidateMissing
	}
	return roots, nil
}

// Roots is Solve without the own candidate check.
func Roots(field *crypto.Field, sums []*big.Int, n int) ([]*big.Int, error) {
	if err := validate(field, sums, n); err != nil {
		return nil, err
	}

	r := newRing(field)
	f, err := r.fromPowerSums(sums)
	if err != nil {
		return nil, err
	}

	// A repeated root is a slot collision and must not be hidden by
	// collecting distinct roots.
	g, err := r.gcd(f, r.derivative(f))
	if err != nil {
		return nil, err
	}
	if g.deg() > 0 {
		return nil, ErrRepeatedRoot
	}

	var roots []*big.Int
	if field.P.Cmp(big.NewInt(bruteForceLimit)) <= 0 {
		roots = r.bruteForceRoots(f)
	} else {
		roots, err = r.splitRoots(field, f, sums)
		if err != nil {
			return nil, err
		}
	}

	if len(roots) != n {
		return nil, ErrNotSplit
	}
	slices.SortFunc(roots, func(a, b *big.Int) int { return a.Cmp(b) })
	for i := range roots {
		if r.eval(f, roots[i]).Sign() != 0 || (i > 0 && roots[i-1].Cmp(roots[i]) == 0) {
			return nil, fmt.Errorf("%w: root verification failed", ErrInternal)
		}
	}
	return roots, nil
}

func validate(field *crypto.Field, sums []*big.Int, n int) error {
	if field == nil {
		return fmt.Errorf("%w: nil field", ErrInput)
	}
	if n < 2 {
		return fmt.Errorf("%w: need at least 2 elements, got %d", ErrInput, n)
	}
	if len(sums) != n {
		return fmt.Errorf("%w: got %d power sums for %d elements", ErrInput, len(sums), n)
	}
	// Newton's identities divide by 1..n.
	if big.NewInt(int64(n)).Cmp(field.P) >= 0 {
		return fmt.Errorf("%w: %d elements do not fit a field of size %s", ErrInput, n, field.P)
	}
	for i, s := range sums {
		if !field.Contains(s) {
			return fmt.Errorf("%w: power sum %d is not a field element", ErrInput, i+1)
		}
	}
	return nil
}

// fromPowerSums builds the monic polynomial whose roots have the given power
// sums. Newton's identities give the elementary symmetric polynomials:
// e_k = (1/k) * sum_{i=1..k} (-1)^(i-1) e_(k-i) s_i.
func (r *ring) fromPowerSums(sums []*big.Int) (poly, error) {
	n := len(sums)
	e := make([]*big.Int, n+1)
	e[0] = big.NewInt(1)

	for k := 1; k <= n; k++ {
		acc := new(big.Int)
		for i := 1; i <= k; i++ {
			t := r.f.Mul(e[k-i], sums[i-1])
			if i%2 == 1 {
				acc = r.f.Add(acc, t)
			} else {
				acc = r.f.Sub(acc, t)
			}
		}

		kInv, err := r.inverse(big.NewInt(int64(k)))
		if err != nil {
			return nil, err
		}
		e[k] = r.f.Mul(acc, kInv)
	}

	// f(x) = sum_k (-1)^k e_k x^(n-k)
	f := make(poly, n+1)
	for k := 0; k <= n; k++ {
		c := e[k]
		if k%2 == 1 {
			c = r.f.Neg(c)
		}
		f[n-k] = c
	}
	return f, nil
}

func (r *ring) bruteForceRoots(f poly) []*big.Int {
	var roots []*big.Int
	limit := int(r.p.Int64())
	for x := 0; x < limit; x++ {
		v := big.NewInt(int64(x))
		if r.eval(f, v).Sign() == 0 {
			roots = append(roots, v)
		}
	}
	return roots
}

// splitRoots returns the roots of a squarefree f, or none when f has an
// irreducible factor of degree > 1. f splits into distinct linear factors
// exactly when x^p = x mod f.
func (r *ring) splitRoots(field *crypto.Field, f poly, sums []*big.Int) ([]*big.Int, error) {
	m := r.newModulus(f)
	if xp := r.sub(m.powX(field.P), poly{new(big.Int), big.NewInt(1)}); len(xp) != 0 {
		return nil, nil
	}

	seed := make([][]byte, 0, len(sums)+1)
	seed = append(seed, field.P.Bytes())
	for _, s := range sums {
		seed = append(seed, field.Encode(s))
	}
	prg := crypto.NewPRG(crypto.Hash("DICEMIX/SOLVER", seed...))

	roots := make([]*big.Int, 0, f.deg())
	if err := r.equalDegreeSplit(field, prg, f, &roots); err != nil {
		return nil, err
	}
	return roots, nil
}

// equalDegreeSplit is the Cantor-Zassenhaus step for a product of distinct
// linear factors: gcd(h, (x+a)^((p-1)/2) - 1) separates the roots r with
// r+a a quadratic residue from the rest.
func (r *ring) equalDegreeSplit(field *crypto.Field, prg *crypto.PRG, h poly, roots *[]*big.Int) error {
	switch h.deg() {
	case 0:
		return nil
	case 1:
		*roots = append(*roots, field.Neg(h[0]))
		return nil
	}

	if field.P.Bit(0) == 0 {
		return fmt.Errorf("%w: even modulus %s", ErrInternal, field.P)
	}
	exp := new(big.Int).Rsh(field.P, 1)
	m := r.newModulus(h)
	one := r.constant(1)

	for attempt := 0; attempt < maxSplitAttempts; attempt++ {
		base := m.reduce(poly{prg.FieldElement(field), big.NewInt(1)})
		d, err := r.gcd(r.sub(m.pow(base, exp), one), h)
		if err != nil {
			return err
		}
		if d.deg() <= 0 || d.deg() >= h.deg() {
			continue
		}

		q, rem, err := r.divmod(h, d)
		if err != nil {
			return err
		}
		if len(rem) != 0 {
			return fmt.Errorf("%w: non-exact factor division", ErrInternal)
		}
		if err := r.equalDegreeSplit(field, prg, d, roots); err != nil {
			return err
		}
		return r.equalDegreeSplit(field, prg, q, roots)
	}
	return fmt.Errorf("%w: splitting did not converge", ErrInternal)
}

// IndexOf returns the position of x in roots, or -1. Every root is compared
// so the running time does not depend on the position of x.
func IndexOf(field *crypto.Field, x *big.Int, roots []*big.Int) int {
	if !field.Contains(x) {
		return -1
	}
	idx := -1
	for i, root := range roots {
		idx = subtle.ConstantTimeSelect(field.ConstantTimeEqual(x, root), i, idx)
	}
	return idx
}

// PowerSums returns s_1..s_n of the given elements.
func PowerSums(field *crypto.Field, elements []*big.Int, n int) []*big.Int {
	sums := make([]*big.Int, n)
	for i := range sums {
		sums[i] = new(big.Int)
	}
	for _, el := range elements {
		base := field.Reduce(el)
		pow := base
		for i := range sums {
			sums[i] = field.Add(sums[i], pow)
			pow = field.Mul(pow, base)
		}
	}
	return sums
}
