// Package group implements arithmetic in a prime-order multiplicative
// subgroup of Z/pZ, the algebraic home for the zero-knowledge proofs and
// the threshold-ElGamal distributed key generation built on top of it.
package group

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/xerrors"
)

// Context fixes the public parameters of the group: a safe prime p, its
// associated order q = (p-1)/2, and a generator g of the order-q subgroup.
type Context struct {
	p *big.Int
	q *big.Int
	g Element
}

// NewContext builds a Context from a safe prime p and a generator g of the
// order-(p-1)/2 subgroup. It does not verify primality of p; callers are
// expected to supply a vetted, fixed group (e.g. an RFC 3526 MODP prime).
func NewContext(p, g *big.Int) (*Context, error) {
	if p == nil || p.Sign() <= 0 {
		return nil, xerrors.Errorf("group: p must be a positive integer")
	}
	if g == nil || g.Sign() <= 0 {
		return nil, xerrors.Errorf("group: g must be a positive integer")
	}

	q := new(big.Int).Sub(p, big.NewInt(1))
	q.Div(q, big.NewInt(2))

	gg := new(big.Int).Mod(g, p)
	if gg.Sign() == 0 {
		return nil, xerrors.Errorf("group: g must not reduce to zero mod p")
	}

	return &Context{
		p: new(big.Int).Set(p),
		q: q,
		g: Element{v: gg, p: new(big.Int).Set(p)},
	}, nil
}

// P returns the group's modulus.
func (c *Context) P() *big.Int { return new(big.Int).Set(c.p) }

// Q returns the group order, (p-1)/2 under the safe-prime assumption.
func (c *Context) Q() *big.Int { return new(big.Int).Set(c.q) }

// Generator returns the fixed generator g.
func (c *Context) Generator() Element { return c.g }

// Identity returns the group's identity element, 1.
func (c *Context) Identity() Element {
	return Element{v: big.NewInt(1), p: c.p}
}

// ByteLen reports the fixed-width encoding length used by Element.Bytes,
// the byte length of p.
func (c *Context) ByteLen() int {
	return (c.p.BitLen() + 7) / 8
}

// RandomExponent draws a uniformly random scalar in [1, q).
func (c *Context) RandomExponent() (*big.Int, error) {
	qMinus1 := new(big.Int).Sub(c.q, big.NewInt(1))
	if qMinus1.Sign() <= 0 {
		return nil, xerrors.Errorf("group: q too small to sample an exponent")
	}

	x, err := rand.Int(rand.Reader, qMinus1)
	if err != nil {
		return nil, xerrors.Errorf("group: sampling exponent: %v", err)
	}
	return x.Add(x, big.NewInt(1)), nil
}

// Element is a member of the multiplicative group mod p, always held in
// canonical (reduced) form.
type Element struct {
	v *big.Int
	p *big.Int
}

// Mul returns the product of e and other, reduced mod p.
func (e Element) Mul(other Element) Element {
	r := new(big.Int).Mul(e.v, other.v)
	r.Mod(r, e.p)
	return Element{v: r, p: e.p}
}

// Pow returns e raised to the given exponent, reduced mod p.
func (e Element) Pow(exp *big.Int) Element {
	r := new(big.Int).Exp(e.v, exp, e.p)
	return Element{v: r, p: e.p}
}

// Inverse returns the multiplicative inverse of e mod p.
func (e Element) Inverse() Element {
	r := new(big.Int).ModInverse(e.v, e.p)
	return Element{v: r, p: e.p}
}

// Equal reports whether e and other denote the same group element.
func (e Element) Equal(other Element) bool {
	if e.v == nil || other.v == nil {
		return false
	}
	return e.v.Cmp(other.v) == 0
}

// Bytes encodes e as a fixed-width big-endian byte slice of length
// ctx.ByteLen(), left-padded with zeros.
func (e Element) Bytes(ctx *Context) []byte {
	buf := make([]byte, ctx.ByteLen())
	b := e.v.Bytes()
	copy(buf[len(buf)-len(b):], b)
	return buf
}

// Int returns the element's canonical big.Int representation. Callers must
// not mutate the result.
func (e Element) Int() *big.Int { return e.v }

// DecodeElement parses a fixed-width big-endian encoding produced by Bytes,
// rejecting values that are not strictly less than p.
func DecodeElement(ctx *Context, b []byte) (Element, bool) {
	v := new(big.Int).SetBytes(b)
	if v.Cmp(ctx.p) >= 0 {
		return Element{}, false
	}
	return Element{v: v, p: ctx.p}, true
}

// NewElement wraps an already-reduced integer as an Element. The caller is
// responsible for ensuring v is in [0, p).
func NewElement(ctx *Context, v *big.Int) Element {
	return Element{v: new(big.Int).Set(v), p: ctx.p}
}
