// Package zkp implements the two non-interactive zero-knowledge proofs the
// DKG protocol and threshold decryption rely on: knowledge of a discrete
// log, and equality of two discrete logs, both via Fiat-Shamir over the
// group package's prime-order group.
package zkp

import (
	"math/big"

	"golang.org/x/xerrors"

	"github.com/quorumkit/raftdkg/group"
)

// DlogProof is a non-interactive proof of knowledge of x such that y = g^x.
type DlogProof struct {
	G group.Element
	Y group.Element
	T group.Element
	R *big.Int
}

// ProveDlog constructs a PoK-DL for the statement y = g^x, given the
// witness x.
func ProveDlog(ctx *group.Context, g, y group.Element, x *big.Int) (*DlogProof, error) {
	z, err := ctx.RandomExponent()
	if err != nil {
		return nil, xerrors.Errorf("zkp: proving dlog: %v", err)
	}

	t := g.Pow(z)
	c := dlogChallenge(ctx, g, y, t)

	r := new(big.Int).Mul(c, x)
	r.Add(r, z)
	r.Mod(r, ctx.Q())

	return &DlogProof{G: g, Y: y, T: t, R: r}, nil
}

// Verify checks the proof against its own embedded statement (g, y).
func (p *DlogProof) Verify(ctx *group.Context) bool {
	c := dlogChallenge(ctx, p.G, p.Y, p.T)

	lhs := p.G.Pow(p.R)
	rhs := p.T.Mul(p.Y.Pow(c))
	return lhs.Equal(rhs)
}

func dlogChallenge(ctx *group.Context, g, y, t group.Element) *big.Int {
	tr := newTranscript("pok-dl")
	tr.appendElements([]byte("elem"), g.Bytes(ctx), y.Bytes(ctx), t.Bytes(ctx))
	return new(big.Int).SetBytes(tr.challenge())
}

// EqDlogProof is a non-interactive proof that log_a(d) == log_b(e), i.e.
// both statements share the same witness x, for caller-supplied bases a, b.
type EqDlogProof struct {
	A, B group.Element
	D, E group.Element
	Gp   group.Element // a^z
	Hp   group.Element // b^z
	R    *big.Int
}

// ProveEquality constructs a PoK-EqDL for d = a^x, e = b^x, given witness x.
func ProveEquality(ctx *group.Context, a, b, d, e group.Element, x *big.Int) (*EqDlogProof, error) {
	z, err := ctx.RandomExponent()
	if err != nil {
		return nil, xerrors.Errorf("zkp: proving dlog equality: %v", err)
	}

	gp := a.Pow(z)
	hp := b.Pow(z)
	c := eqDlogChallenge(ctx, a, b, d, e, gp, hp)

	r := new(big.Int).Mul(c, x)
	r.Add(r, z)
	r.Mod(r, ctx.Q())

	return &EqDlogProof{A: a, B: b, D: d, E: e, Gp: gp, Hp: hp, R: r}, nil
}

// Verify checks a^r == g' * d^c AND b^r == h' * e^c.
func (p *EqDlogProof) Verify(ctx *group.Context) bool {
	c := eqDlogChallenge(ctx, p.A, p.B, p.D, p.E, p.Gp, p.Hp)

	left1 := p.A.Pow(p.R)
	right1 := p.Gp.Mul(p.D.Pow(c))
	if !left1.Equal(right1) {
		return false
	}

	left2 := p.B.Pow(p.R)
	right2 := p.Hp.Mul(p.E.Pow(c))
	return left2.Equal(right2)
}

func eqDlogChallenge(ctx *group.Context, a, b, d, e, gp, hp group.Element) *big.Int {
	tr := newTranscript("pok-eqdl")
	tr.appendElements([]byte("elem"),
		a.Bytes(ctx), b.Bytes(ctx), d.Bytes(ctx), e.Bytes(ctx), gp.Bytes(ctx), hp.Bytes(ctx))
	return new(big.Int).SetBytes(tr.challenge())
}
