package solver

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/flashbots/dicemix/crypto"
)

// poly is a polynomial over GF(p) with coefficients in ascending degree
// order. The zero polynomial is the empty slice and the leading coefficient
// of any other polynomial is non-zero.
type poly []*big.Int

func (a poly) deg() int {
	return len(a) - 1
}

func (a poly) clone() poly {
	res := make(poly, len(a))
	for i, c := range a {
		res[i] = new(big.Int).Set(c)
	}
	return res
}

// truncate returns a mod x^k. It shares coefficients with a.
func (a poly) truncate(k int) poly {
	if len(a) > k {
		a = a[:k]
	}
	return trim(a)
}

// reverse returns x^(k-1) * a(1/x) for a of length at most k.
func (a poly) reverse(k int) poly {
	res := make(poly, k)
	for i := range res {
		if j := k - 1 - i; j < len(a) {
			res[i] = a[j]
		} else {
			res[i] = new(big.Int)
		}
	}
	return trim(res)
}

func trim(a poly) poly {
	for len(a) > 0 && a[len(a)-1].Sign() == 0 {
		a = a[:len(a)-1]
	}
	return a
}

// ring holds the coefficient field shared by all polynomial operations.
// Coefficient arithmetic goes through f; p is kept for the packed
// multiplication and long division, which reduce raw accumulators.
type ring struct {
	f *crypto.Field
	p *big.Int
}

func newRing(f *crypto.Field) *ring {
	return &ring{f: f, p: f.P}
}

func (r *ring) constant(v int64) poly {
	return trim(poly{r.f.Reduce(big.NewInt(v))})
}

func (r *ring) add(a, b poly) poly {
	if len(a) < len(b) {
		a, b = b, a
	}
	res := a.clone()
	for i, c := range b {
		res[i] = r.f.Add(res[i], c)
	}
	return trim(res)
}

func (r *ring) sub(a, b poly) poly {
	n := max(len(a), len(b))
	res := make(poly, n)
	zero := new(big.Int)
	for i := range res {
		ai, bi := zero, zero
		if i < len(a) {
			ai = a[i]
		}
		if i < len(b) {
			bi = b[i]
		}
		res[i] = r.f.Sub(ai, bi)
	}
	return trim(res)
}

func (r *ring) scale(a poly, c *big.Int) poly {
	res := make(poly, len(a))
	for i := range a {
		res[i] = r.f.Mul(a[i], c)
	}
	return trim(res)
}

// mulX returns a * x.
func (r *ring) mulX(a poly) poly {
	if len(a) == 0 {
		return a
	}
	return append(poly{new(big.Int)}, a...)
}

// mul multiplies by Kronecker substitution: both operands are packed into
// integers with one fixed-width slot per coefficient, multiplied once with
// math/big (Karatsuba above its threshold) and unpacked. Slots are sized so
// that no product coefficient can carry into its neighbour.
func (r *ring) mul(a, b poly) poly {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	if len(a) == 1 {
		return r.scale(b, a[0])
	}
	if len(b) == 1 {
		return r.scale(a, b[0])
	}

	slotBits := 2*r.p.BitLen() + bits.Len(uint(min(len(a), len(b))))
	slotWords := (slotBits + bits.UintSize - 1) / bits.UintSize

	x := pack(a, slotWords)
	var prod *big.Int
	if &a[0] == &b[0] && len(a) == len(b) {
		prod = new(big.Int).Mul(x, x)
	} else {
		prod = new(big.Int).Mul(x, pack(b, slotWords))
	}
	return r.unpack(prod, len(a)+len(b)-1, slotWords)
}

func pack(a poly, slotWords int) *big.Int {
	words := make([]big.Word, len(a)*slotWords)
	for i, c := range a {
		copy(words[i*slotWords:], c.Bits())
	}
	return new(big.Int).SetBits(words)
}

func (r *ring) unpack(x *big.Int, n int, slotWords int) poly {
	words := x.Bits()
	res := make(poly, n)
	for i := range res {
		lo := i * slotWords
		hi := min(lo+slotWords, len(words))
		if lo >= hi {
			res[i] = new(big.Int)
			continue
		}
		slot := make([]big.Word, hi-lo)
		copy(slot, words[lo:hi])
		res[i] = new(big.Int).SetBits(slot)
		res[i].Mod(res[i], r.p)
	}
	return trim(res)
}

// mulSchoolbook is the quadratic reference multiplication.
func (r *ring) mulSchoolbook(a, b poly) poly {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	res := make(poly, len(a)+len(b)-1)
	for i := range res {
		res[i] = new(big.Int)
	}
	t := new(big.Int)
	for i, ca := range a {
		for j, cb := range b {
			res[i+j].Add(res[i+j], t.Mul(ca, cb))
		}
	}
	for _, c := range res {
		c.Mod(c, r.p)
	}
	return trim(res)
}

func (r *ring) inverse(c *big.Int) (*big.Int, error) {
	inv, err := r.f.Inv(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return inv, nil
}

func (r *ring) monic(a poly) (poly, error) {
	if len(a) == 0 {
		return a, nil
	}
	lc := a[len(a)-1]
	if lc.Cmp(big.NewInt(1)) == 0 {
		return a, nil
	}
	inv, err := r.inverse(lc)
	if err != nil {
		return nil, err
	}
	return r.scale(a, inv), nil
}

// divmod is schoolbook long division.
func (r *ring) divmod(a, b poly) (poly, poly, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("%w: division by zero polynomial", ErrInternal)
	}
	lcInv, err := r.inverse(b[len(b)-1])
	if err != nil {
		return nil, nil, err
	}

	rem := a.clone()
	if len(a) < len(b) {
		return nil, rem, nil
	}

	q := make(poly, len(a)-len(b)+1)
	t := new(big.Int)
	for i := len(rem) - 1; i >= len(b)-1; i-- {
		shift := i - (len(b) - 1)
		c := new(big.Int).Mul(rem[i], lcInv)
		c.Mod(c, r.p)
		q[shift] = c
		if c.Sign() == 0 {
			continue
		}
		for j, bj := range b {
			k := shift + j
			rem[k].Sub(rem[k], t.Mul(c, bj))
			rem[k].Mod(rem[k], r.p)
		}
	}
	return trim(q), trim(rem[:len(b)-1]), nil
}

// gcd returns the monic greatest common divisor.
func (r *ring) gcd(a, b poly) (poly, error) {
	for len(b) > 0 {
		_, rem, err := r.divmod(a, b)
		if err != nil {
			return nil, err
		}
		a, b = b, rem
	}
	return r.monic(a)
}

func (r *ring) derivative(a poly) poly {
	if len(a) <= 1 {
		return nil
	}
	res := make(poly, len(a)-1)
	for i := range res {
		res[i] = r.f.Mul(a[i+1], big.NewInt(int64(i+1)))
	}
	return trim(res)
}

// eval evaluates a at x by Horner's rule.
func (r *ring) eval(a poly, x *big.Int) *big.Int {
	acc := new(big.Int)
	for i := len(a) - 1; i >= 0; i-- {
		acc = r.f.Add(r.f.Mul(acc, x), a[i])
	}
	return acc
}

// invSeries computes 1/g mod x^k by Newton iteration, doubling the precision
// each step. g(0) must be 1.
func (r *ring) invSeries(g poly, k int) poly {
	h := r.constant(1)
	two := r.constant(2)
	for prec := 1; prec < k; {
		prec = min(2*prec, k)
		gh := r.mul(g.truncate(prec), h).truncate(prec)
		h = r.mul(h, r.sub(two, gh)).truncate(prec)
	}
	return h.truncate(k)
}

// modulus reduces products modulo a fixed monic polynomial f using a
// precomputed inverse of its reversal, so a reduction costs two
// multiplications instead of a quadratic long division.
type modulus struct {
	r   *ring
	f   poly
	inv poly
}

func (r *ring) newModulus(f poly) *modulus {
	n := f.deg()
	prec := max(n-1, 1)
	return &modulus{
		r:   r,
		f:   f,
		inv: r.invSeries(f.reverse(n+1), prec),
	}
}

// reduce returns a mod f for deg(a) <= 2*deg(f) - 2, or deg(a) <= deg(f).
func (m *modulus) reduce(a poly) poly {
	n := m.f.deg()
	da := a.deg()
	if da < n {
		return a
	}

	k := da - n + 1
	qRev := m.r.mul(a.reverse(da+1).truncate(k), m.inv.truncate(k)).truncate(k)
	q := qRev.reverse(k)
	return m.r.sub(a, m.r.mul(q, m.f)).truncate(n)
}

func (m *modulus) mul(a, b poly) poly {
	return m.reduce(m.r.mul(a, b))
}

// powX returns x^e mod f.
func (m *modulus) powX(e *big.Int) poly {
	res := m.reduce(m.r.constant(1))
	for i := e.BitLen() - 1; i >= 0; i-- {
		res = m.mul(res, res)
		if e.Bit(i) == 1 {
			res = m.reduce(m.r.mulX(res))
		}
	}
	return res
}

// pow returns base^e mod f for a reduced base.
func (m *modulus) pow(base poly, e *big.Int) poly {
	res := m.reduce(m.r.constant(1))
	for i := e.BitLen() - 1; i >= 0; i-- {
		res = m.mul(res, res)
		if e.Bit(i) == 1 {
			res = m.mul(res, base)
		}
	}
	return res
}
